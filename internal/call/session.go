package call

import (
	"log/slog"
	"sync"
	"time"

	"github.com/myrjola/surveycall/internal/errors"
	"github.com/myrjola/surveycall/internal/survey"
)

var (
	ErrAlreadyFinalized = errors.NewSentinel("call already finalized")
	ErrIncomplete       = errors.NewSentinel("survey incomplete")
)

// IncompleteError is returned when the call is asked to end as completed while eligible questions are still open.
type IncompleteError struct {
	Remaining []survey.Question
	Next      survey.Question
}

func (e *IncompleteError) Error() string {
	return ErrIncomplete.Error()
}

func (e *IncompleteError) Is(target error) bool {
	return target == ErrIncomplete
}

// Caller identifies the person on the line.
type Caller struct {
	Number string `json:"number"`
	Name   string `json:"name,omitempty"`
	Email  string `json:"email,omitempty"`
}

// Session is the mutable state of one live call. Every field below mu is guarded by it so that recording an answer,
// ending the survey and the timers never interleave.
type Session struct {
	ID        string
	Caller    Caller
	Survey    *survey.Survey
	SurveyURL string
	StartedAt time.Time

	mu           sync.Mutex
	tracker      *survey.Tracker
	finalized    bool
	endReason    EndReason
	callbackTime string
}

// NewSession creates the state for a call that started at startedAt. now stamps the answers.
func NewSession(
	id string,
	caller Caller,
	s *survey.Survey,
	surveyURL string,
	startedAt time.Time,
	now func() time.Time,
) *Session {
	return &Session{
		ID:           id,
		Caller:       caller,
		Survey:       s,
		SurveyURL:    surveyURL,
		StartedAt:    startedAt,
		mu:           sync.Mutex{},
		tracker:      survey.NewTracker(s, now),
		finalized:    false,
		endReason:    "",
		callbackTime: "",
	}
}

// Progress is a consistent view of the session at one point in time.
type Progress struct {
	Answered     int
	Total        int
	Next         survey.Question
	AllDone      bool
	Remaining    []survey.Question
	Transcript   []survey.Answer
	Finalized    bool
	EndReason    EndReason
	CallbackTime string
}

func (s *Session) Progress() Progress {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.progressLocked()
}

func (s *Session) progressLocked() Progress {
	next, ok := s.tracker.Next()
	return Progress{
		Answered:     s.tracker.Answered(),
		Total:        s.tracker.Total(),
		Next:         next,
		AllDone:      !ok,
		Remaining:    s.tracker.Remaining(),
		Transcript:   s.tracker.Transcript(),
		Finalized:    s.finalized,
		EndReason:    s.endReason,
		CallbackTime: s.callbackTime,
	}
}

// record stores an answer unless the call has already been finalized.
func (s *Session) record(questionID, rawText string) (survey.Outcome, Progress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finalized {
		return 0, s.progressLocked(), errors.Wrap(ErrAlreadyFinalized, "record answer",
			slog.String("question_id", questionID))
	}
	outcome, err := s.tracker.Record(questionID, rawText)
	if err != nil {
		return 0, s.progressLocked(), err
	}
	return outcome, s.progressLocked(), nil
}

// requestCallback keeps the caller's preferred callback time for the call record.
func (s *Session) requestCallback(preferredTime string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finalized {
		return errors.Wrap(ErrAlreadyFinalized, "request callback")
	}
	s.callbackTime = preferredTime
	return nil
}

// Snapshot is the immutable state taken at the moment the call was claimed for finalization.
type Snapshot struct {
	Reason       EndReason
	Transcript   []survey.Answer
	CallbackTime string
}

// claim checks whether the call may end for reason and marks it finalized in the same critical section. On failure
// the session is left untouched.
func (s *Session) claim(reason EndReason) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finalized {
		return Snapshot{}, errors.Wrap(ErrAlreadyFinalized, "claim",
			slog.String("reason", reason.String()), slog.String("end_reason", s.endReason.String()))
	}
	if reason == Completed {
		if next, ok := s.tracker.Next(); ok {
			return Snapshot{}, &IncompleteError{Remaining: s.tracker.Remaining(), Next: next}
		}
	}
	s.finalized = true
	s.endReason = reason
	return Snapshot{
		Reason:       reason,
		Transcript:   s.tracker.Transcript(),
		CallbackTime: s.callbackTime,
	}, nil
}
