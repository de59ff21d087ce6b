package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"

	"github.com/myrjola/surveycall/internal/errors"
	"github.com/myrjola/surveycall/internal/sqlite"
	"github.com/myrjola/surveycall/internal/survey"
)

var ErrNotFound = errors.NewSentinel("not found")

type SurveyRepository struct {
	database *sqlite.Database
	logger   *slog.Logger
}

func NewSurveyRepository(database *sqlite.Database, logger *slog.Logger) *SurveyRepository {
	return &SurveyRepository{
		database: database,
		logger:   logger.With(slog.String("source", "SurveyRepository")),
	}
}

type questionRow struct {
	ID                string `db:"id"`
	Text              string `db:"text"`
	Kind              string `db:"kind"`
	ScaleMax          int    `db:"scale_max"`
	Categories        string `db:"categories"`
	ParentID          string `db:"parent_id"`
	TriggerCategories string `db:"trigger_categories"`
}

// Get loads the survey with its questions in authoring order.
func (r *SurveyRepository) Get(ctx context.Context, id string) (*survey.Survey, error) {
	var name string
	err := r.database.ReadOnly.GetContext(ctx, &name, `SELECT name FROM surveys WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrap(ErrNotFound, "get survey", slog.String("survey_id", id))
	}
	if err != nil {
		return nil, errors.Wrap(err, "select survey", slog.String("survey_id", id))
	}

	var rows []questionRow
	stmt := `SELECT id, text, kind, scale_max, categories, parent_id, trigger_categories
FROM questions
WHERE survey_id = ?
ORDER BY position`
	if err = r.database.ReadOnly.SelectContext(ctx, &rows, stmt, id); err != nil {
		return nil, errors.Wrap(err, "select questions", slog.String("survey_id", id))
	}
	questions := make([]survey.Question, len(rows))
	for i, row := range rows {
		q := survey.Question{
			ID:                row.ID,
			Text:              row.Text,
			Kind:              survey.Kind(row.Kind),
			ScaleMax:          row.ScaleMax,
			Categories:        nil,
			ParentID:          row.ParentID,
			TriggerCategories: nil,
		}
		if err = json.Unmarshal([]byte(row.Categories), &q.Categories); err != nil {
			return nil, errors.Wrap(err, "unmarshal categories", slog.String("question_id", row.ID))
		}
		if err = json.Unmarshal([]byte(row.TriggerCategories), &q.TriggerCategories); err != nil {
			return nil, errors.Wrap(err, "unmarshal trigger categories", slog.String("question_id", row.ID))
		}
		questions[i] = q
	}
	s, err := survey.New(id, name, questions)
	if err != nil {
		return nil, errors.Wrap(err, "build survey")
	}
	return s, nil
}

// Save stores the survey definition, replacing the questions of an existing survey with the same ID.
func (r *SurveyRepository) Save(ctx context.Context, s *survey.Survey) (err error) {
	tx, err := r.database.ReadWrite.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin transaction")
	}
	defer func() {
		if err != nil {
			if rollbackErr := tx.Rollback(); rollbackErr != nil {
				r.logger.LogAttrs(ctx, slog.LevelError, "failed to rollback", errors.SlogError(rollbackErr))
			}
		}
	}()

	if _, err = tx.ExecContext(ctx, `INSERT INTO surveys (id, name) VALUES (?, ?)
ON CONFLICT (id) DO UPDATE SET name = excluded.name`, s.ID, s.Name); err != nil {
		return errors.Wrap(err, "upsert survey", slog.String("survey_id", s.ID))
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM questions WHERE survey_id = ?`, s.ID); err != nil {
		return errors.Wrap(err, "delete old questions", slog.String("survey_id", s.ID))
	}
	stmt := `INSERT INTO questions (survey_id, id, position, text, kind, scale_max, categories, parent_id,
                       trigger_categories)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	for position, q := range s.Questions() {
		kind := q.Kind
		if kind == "" {
			kind = survey.KindOpen
		}
		var categories, triggers []byte
		if categories, err = json.Marshal(nonNil(q.Categories)); err != nil {
			return errors.Wrap(err, "marshal categories")
		}
		if triggers, err = json.Marshal(nonNil(q.TriggerCategories)); err != nil {
			return errors.Wrap(err, "marshal trigger categories")
		}
		if _, err = tx.ExecContext(ctx, stmt, s.ID, q.ID, position, q.Text, string(kind), q.ScaleMax,
			string(categories), q.ParentID, string(triggers)); err != nil {
			return errors.Wrap(err, "insert question", slog.String("question_id", q.ID))
		}
	}
	if err = tx.Commit(); err != nil {
		return errors.Wrap(err, "commit")
	}
	return nil
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
