// Package call runs one live survey call: it records answers through the session, keeps the auto-end and time-limit
// timers, and ends the call exactly once.
package call

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/myrjola/surveycall/internal/errors"
	"github.com/myrjola/surveycall/internal/models"
	"github.com/myrjola/surveycall/internal/survey"
)

// Playout is an utterance queued on the line.
type Playout interface {
	// WaitForPlayout blocks until the utterance has been fully delivered to the caller.
	WaitForPlayout(ctx context.Context) error
}

// Phone is the telephony side of a single call.
type Phone interface {
	Speak(ctx context.Context, text string) (Playout, error)
	Disconnect(ctx context.Context) error
}

// Store persists the finished call.
type Store interface {
	SaveCall(ctx context.Context, record models.CallRecord) error
}

// Notifier informs downstream services. Implementations must not block the caller.
type Notifier interface {
	AnswerRecorded(ctx context.Context, surveyID string, entry models.TranscriptEntry)
	CallEnded(ctx context.Context, record models.CallRecord)
}

type Deps struct {
	Store    Store
	Notifier Notifier
	Phone    Phone
	Logger   *slog.Logger
	// Log is closed once the call has been finalized. Optional.
	Log io.Closer
	// Now defaults to time.Now.
	Now func() time.Time
}

type Config struct {
	// FarewellBuffer is waited after the farewell playout before disconnecting to cover trailing audio.
	FarewellBuffer time.Duration
	// AutoEndGrace is how long the agent has to end the call itself after all questions are done.
	AutoEndGrace time.Duration
	// MaxDuration ends the call with TimeLimit once exceeded. Zero disables the limit.
	MaxDuration       time.Duration
	PlayoutTimeout    time.Duration
	DisconnectTimeout time.Duration
	Farewells         *Farewells
}

func DefaultConfig() Config {
	return Config{
		FarewellBuffer:    2 * time.Second,  //nolint:mnd // trailing audio
		AutoEndGrace:      20 * time.Second, //nolint:mnd // enough for the agent to wrap up
		MaxDuration:       8 * time.Minute,  //nolint:mnd // survey calls are short
		PlayoutTimeout:    30 * time.Second, //nolint:mnd // longest farewell with margin
		DisconnectTimeout: 5 * time.Second,  //nolint:mnd // telephony round trip
		Farewells:         DefaultFarewells(),
	}
}

// Call owns a [Session] and everything that may end it.
type Call struct {
	session *Session
	deps    Deps
	cfg     Config
	logger  *slog.Logger

	timersMu     sync.Mutex
	timersClosed bool
	autoEnd      *time.Timer
	watchdog     *time.Timer
	tasksCtx     context.Context //nolint:containedctx // lifetime of the background timers
	cancelTasks  context.CancelFunc

	done   chan struct{}
	result EndResult
}

// New wires a call around session and starts the time-limit watchdog when cfg.MaxDuration is set.
func New(session *Session, deps Deps, cfg Config) *Call {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if cfg.Farewells == nil {
		cfg.Farewells = DefaultFarewells()
	}
	tasksCtx, cancel := context.WithCancel(context.Background())
	c := &Call{ //nolint:exhaustruct // timers are started on demand
		session:     session,
		deps:        deps,
		cfg:         cfg,
		logger:      deps.Logger.With(slog.String("call_id", session.ID), slog.String("survey_id", session.Survey.ID)),
		tasksCtx:    tasksCtx,
		cancelTasks: cancel,
		done:        make(chan struct{}),
	}
	if cfg.MaxDuration > 0 {
		remaining := cfg.MaxDuration - deps.Now().Sub(session.StartedAt)
		// An expired limit fires at once and reaches stopTimers through End.
		c.timersMu.Lock()
		c.watchdog = time.AfterFunc(max(remaining, 0), func() {
			c.endInBackground(TimeLimit)
		})
		c.timersMu.Unlock()
	}
	return c
}

// Discard releases a call that never went live: the timers are stopped and the call log is closed without
// finalizing, so nothing is persisted, notified or said on the line.
func (c *Call) Discard() error {
	c.stopTimers()
	c.cancelTasks()
	if c.deps.Log == nil {
		return nil
	}
	if err := c.deps.Log.Close(); err != nil {
		return errors.Wrap(err, "close call log", slog.String("call_id", c.ID()))
	}
	return nil
}

func (c *Call) ID() string {
	return c.session.ID
}

func (c *Call) Session() *Session {
	return c.session
}

func (c *Call) Logger() *slog.Logger {
	return c.logger
}

// Done is closed once the call has been finalized.
func (c *Call) Done() <-chan struct{} {
	return c.done
}

// Result returns the outcome of the finalization. ok is false while the call is live.
func (c *Call) Result() (EndResult, bool) {
	select {
	case <-c.done:
		return c.result, true
	default:
		return EndResult{}, false //nolint:exhaustruct // zero value for a live call
	}
}

// RecordResult tells what happened to an answer and what comes next.
type RecordResult struct {
	Outcome  survey.Outcome
	Question survey.Question
	Progress Progress
}

// RecordAnswer stores the answer for questionID. Once no eligible question remains the auto-end timer is started.
func (c *Call) RecordAnswer(ctx context.Context, questionID, answer string) (RecordResult, error) {
	outcome, progress, err := c.session.record(questionID, answer)
	if err != nil {
		c.logger.LogAttrs(ctx, slog.LevelWarn, "answer rejected",
			slog.String("question_id", questionID), errors.SlogError(err))
		return RecordResult{Outcome: 0, Question: survey.Question{}, Progress: progress}, err
	}
	q, _ := c.session.Survey.Question(questionID)
	result := RecordResult{Outcome: outcome, Question: q, Progress: progress}

	switch outcome {
	case survey.Recorded:
		c.logger.LogAttrs(ctx, slog.LevelInfo, "answer recorded",
			slog.String("question_id", questionID),
			slog.Int("answered", progress.Answered),
			slog.Int("total", progress.Total))
		entry := progress.Transcript[len(progress.Transcript)-1]
		c.deps.Notifier.AnswerRecorded(ctx, c.session.Survey.ID, models.TranscriptEntry{
			QuestionID: entry.QuestionID,
			Question:   q.Text,
			Answer:     entry.RawText,
			RecordedAt: entry.RecordedAt,
		})
	case survey.AlreadyRecorded:
		c.logger.LogAttrs(ctx, slog.LevelInfo, "answer already recorded", slog.String("question_id", questionID))
	}

	if progress.AllDone {
		c.startAutoEnd(ctx)
	}
	return result, nil
}

// RequestCallback keeps the preferred callback time for the call record. It does not end the call.
func (c *Call) RequestCallback(ctx context.Context, preferredTime string) error {
	if err := c.session.requestCallback(preferredTime); err != nil {
		return err
	}
	c.logger.LogAttrs(ctx, slog.LevelInfo, "callback requested", slog.String("preferred_time", preferredTime))
	return nil
}

// startAutoEnd arms the auto-end timer once per call.
func (c *Call) startAutoEnd(ctx context.Context) {
	c.timersMu.Lock()
	defer c.timersMu.Unlock()
	if c.timersClosed || c.autoEnd != nil {
		return
	}
	c.logger.LogAttrs(ctx, slog.LevelInfo, "all questions done, auto-end armed",
		slog.Duration("grace", c.cfg.AutoEndGrace))
	c.autoEnd = time.AfterFunc(c.cfg.AutoEndGrace, func() {
		c.endInBackground(Completed)
	})
}

// stopTimers disarms both timers. Timers armed afterwards are refused.
func (c *Call) stopTimers() {
	c.timersMu.Lock()
	defer c.timersMu.Unlock()
	c.timersClosed = true
	if c.autoEnd != nil {
		c.autoEnd.Stop()
	}
	if c.watchdog != nil {
		c.watchdog.Stop()
	}
}

func (c *Call) endInBackground(reason EndReason) {
	ctx := c.tasksCtx
	if ctx.Err() != nil {
		return
	}
	c.logger.LogAttrs(ctx, slog.LevelInfo, "timer ending call", slog.String("reason", reason.String()))
	if _, err := c.End(ctx, reason); err != nil {
		level := slog.LevelWarn
		if errors.Is(err, ErrAlreadyFinalized) {
			level = slog.LevelDebug
		}
		c.logger.LogAttrs(ctx, level, "timer did not end call", errors.SlogError(err))
	}
}
