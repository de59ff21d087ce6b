package call

import (
	"context"
	"log/slog"
	"time"

	"github.com/myrjola/surveycall/internal/errors"
	"github.com/myrjola/surveycall/internal/models"
)

// EndResult describes a finalized call. Collaborator failures are reported here instead of failing End.
type EndResult struct {
	Reason        EndReason
	Record        models.CallRecord
	Farewell      string
	PersistErr    error
	FarewellErr   error
	DisconnectErr error
}

// End runs the terminal sequence of the call at most once: persist, notify, speak the farewell and wait for it to
// play out, wait the buffer and disconnect.
//
// ErrAlreadyFinalized is returned if another path already ended the call. An [*IncompleteError] is returned when
// reason is Completed but eligible questions remain. In both cases nothing has changed.
func (c *Call) End(ctx context.Context, reason EndReason) (EndResult, error) {
	snapshot, err := c.session.claim(reason)
	if err != nil {
		return EndResult{}, err //nolint:exhaustruct // nothing happened
	}
	// Teardown must finish even when the triggering request goes away.
	ctx = context.WithoutCancel(ctx)
	c.stopTimers()

	record := c.buildRecord(snapshot)
	c.logger.LogAttrs(ctx, slog.LevelInfo, "ending call",
		slog.String("reason", reason.String()),
		slog.Bool("completed", record.Completed),
		slog.Float64("duration_seconds", record.DurationSeconds),
		slog.Int("answers", len(record.Transcript)))

	result := EndResult{Reason: reason, Record: record} //nolint:exhaustruct // filled in below

	if result.PersistErr = c.deps.Store.SaveCall(ctx, record); result.PersistErr != nil {
		c.logger.LogAttrs(ctx, slog.LevelError, "failed to persist call", errors.SlogError(result.PersistErr))
	}
	c.deps.Notifier.CallEnded(ctx, record)

	result.Farewell = c.cfg.Farewells.Render(reason, c.session.Caller)
	if result.FarewellErr = c.sayFarewell(ctx, result.Farewell); result.FarewellErr != nil {
		c.logger.LogAttrs(ctx, slog.LevelWarn, "farewell not delivered", errors.SlogError(result.FarewellErr))
	}

	if c.cfg.FarewellBuffer > 0 {
		time.Sleep(c.cfg.FarewellBuffer)
	}

	if result.DisconnectErr = c.disconnect(ctx); result.DisconnectErr != nil {
		c.logger.LogAttrs(ctx, slog.LevelError, "failed to disconnect", errors.SlogError(result.DisconnectErr))
	} else {
		c.logger.LogAttrs(ctx, slog.LevelInfo, "call disconnected")
	}

	c.cancelTasks()
	if c.deps.Log != nil {
		if err = c.deps.Log.Close(); err != nil {
			c.logger.LogAttrs(ctx, slog.LevelWarn, "failed to close call log", errors.SlogError(err))
		}
	}
	c.result = result
	close(c.done)
	return result, nil
}

func (c *Call) buildRecord(snapshot Snapshot) models.CallRecord {
	s := c.session
	transcript := make([]models.TranscriptEntry, len(snapshot.Transcript))
	for i, answer := range snapshot.Transcript {
		q, _ := s.Survey.Question(answer.QuestionID)
		transcript[i] = models.TranscriptEntry{
			QuestionID: answer.QuestionID,
			Question:   q.Text,
			Answer:     answer.RawText,
			RecordedAt: answer.RecordedAt,
		}
	}
	return models.CallRecord{
		CallID:          s.ID,
		SurveyID:        s.Survey.ID,
		RecipientNumber: s.Caller.Number,
		StartedAt:       s.StartedAt,
		DurationSeconds: c.deps.Now().Sub(s.StartedAt).Seconds(),
		Completed:       snapshot.Reason == Completed,
		EndReason:       snapshot.Reason.String(),
		CallbackTime:    snapshot.CallbackTime,
		Transcript:      transcript,
	}
}

func (c *Call) sayFarewell(ctx context.Context, text string) error {
	if c.cfg.PlayoutTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.PlayoutTimeout)
		defer cancel()
	}
	c.logger.LogAttrs(ctx, slog.LevelInfo, "speaking farewell", slog.String("text", text))
	playout, err := c.deps.Phone.Speak(ctx, text)
	if err != nil {
		return errors.Wrap(err, "speak farewell")
	}
	if err = playout.WaitForPlayout(ctx); err != nil {
		return errors.Wrap(err, "wait for farewell playout")
	}
	c.logger.LogAttrs(ctx, slog.LevelInfo, "farewell played out")
	return nil
}

func (c *Call) disconnect(ctx context.Context) error {
	if c.cfg.DisconnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.DisconnectTimeout)
		defer cancel()
	}
	return errors.Wrap(c.deps.Phone.Disconnect(ctx), "disconnect")
}
