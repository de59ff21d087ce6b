package repositories

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/myrjola/surveycall/internal/errors"
	"github.com/myrjola/surveycall/internal/models"
	"github.com/myrjola/surveycall/internal/sqlite"
)

// timeFormat has a fixed width so that stored timestamps sort as text.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

type CallRepository struct {
	database *sqlite.Database
	logger   *slog.Logger
}

func NewCallRepository(database *sqlite.Database, logger *slog.Logger) *CallRepository {
	return &CallRepository{
		database: database,
		logger:   logger.With(slog.String("source", "CallRepository")),
	}
}

// callRow is models.CallRecord as stored in the calls table.
type callRow struct {
	CallID          string  `db:"call_id"`
	SurveyID        string  `db:"survey_id"`
	RecipientNumber string  `db:"recipient_number"`
	StartedAt       string  `db:"call_start_time"`
	DurationSeconds float64 `db:"call_duration_seconds"`
	Completed       bool    `db:"completed"`
	EndReason       string  `db:"end_reason"`
	CallbackTime    string  `db:"callback_time"`
	Transcript      string  `db:"call_transcript"`
}

// SaveCall stores the outcome of a finished call. Saving the same call twice keeps the first record.
func (r *CallRepository) SaveCall(ctx context.Context, record models.CallRecord) error {
	transcript := record.Transcript
	if transcript == nil {
		transcript = []models.TranscriptEntry{}
	}
	encoded, err := json.Marshal(transcript)
	if err != nil {
		return errors.Wrap(err, "marshal transcript")
	}
	row := callRow{
		CallID:          record.CallID,
		SurveyID:        record.SurveyID,
		RecipientNumber: record.RecipientNumber,
		StartedAt:       record.StartedAt.UTC().Format(timeFormat),
		DurationSeconds: record.DurationSeconds,
		Completed:       record.Completed,
		EndReason:       record.EndReason,
		CallbackTime:    record.CallbackTime,
		Transcript:      string(encoded),
	}
	stmt := `INSERT INTO calls (call_id, survey_id, recipient_number, call_start_time, call_duration_seconds,
                   completed, end_reason, callback_time, call_transcript)
VALUES (:call_id, :survey_id, :recipient_number, :call_start_time, :call_duration_seconds,
        :completed, :end_reason, :callback_time, :call_transcript)
ON CONFLICT (call_id) DO NOTHING`
	if _, err = r.database.ReadWrite.NamedExecContext(ctx, stmt, row); err != nil {
		return errors.Wrap(err, "insert call", slog.String("call_id", record.CallID))
	}
	return nil
}

// ListByRecipient returns the calls made to recipientNumber, most recent first.
func (r *CallRepository) ListByRecipient(ctx context.Context, recipientNumber string) ([]models.CallRecord, error) {
	var rows []callRow
	stmt := `SELECT call_id, survey_id, recipient_number, call_start_time, call_duration_seconds, completed, end_reason,
       callback_time, call_transcript
FROM calls
WHERE recipient_number = ?
ORDER BY call_start_time DESC`
	if err := r.database.ReadOnly.SelectContext(ctx, &rows, stmt, recipientNumber); err != nil {
		return nil, errors.Wrap(err, "select calls")
	}
	records := make([]models.CallRecord, 0, len(rows))
	for _, row := range rows {
		record, err := row.toModel()
		if err != nil {
			return nil, errors.Wrap(err, "decode call", slog.String("call_id", row.CallID))
		}
		records = append(records, record)
	}
	return records, nil
}

func (row callRow) toModel() (models.CallRecord, error) {
	startedAt, err := time.Parse(timeFormat, row.StartedAt)
	if err != nil {
		return models.CallRecord{}, errors.Wrap(err, "parse call start time")
	}
	var transcript []models.TranscriptEntry
	if err = json.Unmarshal([]byte(row.Transcript), &transcript); err != nil {
		return models.CallRecord{}, errors.Wrap(err, "unmarshal transcript")
	}
	return models.CallRecord{
		CallID:          row.CallID,
		SurveyID:        row.SurveyID,
		RecipientNumber: row.RecipientNumber,
		StartedAt:       startedAt,
		DurationSeconds: row.DurationSeconds,
		Completed:       row.Completed,
		EndReason:       row.EndReason,
		CallbackTime:    row.CallbackTime,
		Transcript:      transcript,
	}, nil
}
