package survey

import (
	"log/slog"
	"time"

	"github.com/myrjola/surveycall/internal/errors"
)

var ErrUnknownQuestion = errors.NewSentinel("unknown question")

type Outcome int

const (
	// Recorded means the answer was appended to the transcript.
	Recorded Outcome = iota + 1
	// AlreadyRecorded means the question already had an answer. Nothing was changed.
	AlreadyRecorded
)

func (o Outcome) String() string {
	switch o {
	case Recorded:
		return "recorded"
	case AlreadyRecorded:
		return "already_recorded"
	default:
		return "unknown"
	}
}

// Answer is an immutable answer record.
type Answer struct {
	QuestionID string    `json:"question_id"`
	RawText    string    `json:"answer"`
	RecordedAt time.Time `json:"timestamp"`
}

// Tracker records the answers of one call and derives the next question to ask. It is not safe for concurrent use;
// the owner serialises access.
type Tracker struct {
	survey  *Survey
	answers map[string]Answer
	order   []string
	now     func() time.Time
}

// NewTracker creates a tracker for s. now stamps the answer records and defaults to [time.Now].
func NewTracker(s *Survey, now func() time.Time) *Tracker {
	if now == nil {
		now = time.Now
	}
	return &Tracker{
		survey:  s,
		answers: make(map[string]Answer, s.Len()),
		order:   make([]string, 0, s.Len()),
		now:     now,
	}
}

func (t *Tracker) Survey() *Survey {
	return t.survey
}

// Record stores rawText as the answer to questionID. The first answer wins, a second one for the same question returns
// AlreadyRecorded and leaves the transcript untouched.
func (t *Tracker) Record(questionID, rawText string) (Outcome, error) {
	if _, ok := t.survey.Question(questionID); !ok {
		return 0, errors.Wrap(ErrUnknownQuestion, "record answer",
			slog.String("survey_id", t.survey.ID), slog.String("question_id", questionID))
	}
	if _, ok := t.answers[questionID]; ok {
		return AlreadyRecorded, nil
	}
	t.answers[questionID] = Answer{QuestionID: questionID, RawText: rawText, RecordedAt: t.now()}
	t.order = append(t.order, questionID)
	return Recorded, nil
}

// Answer implements [Answers].
func (t *Tracker) Answer(questionID string) (string, bool) {
	a, ok := t.answers[questionID]
	return a.RawText, ok
}

// Next returns the first question in authoring order that is unanswered and eligible. ok is false once every
// remaining question is answered or excluded by branching.
func (t *Tracker) Next() (Question, bool) {
	for _, q := range t.survey.questions {
		if t.eligibleAndOpen(q) {
			return q, true
		}
	}
	return Question{}, false
}

// Remaining lists the unanswered questions that are currently eligible, in authoring order.
func (t *Tracker) Remaining() []Question {
	var remaining []Question
	for _, q := range t.survey.questions {
		if t.eligibleAndOpen(q) {
			remaining = append(remaining, q)
		}
	}
	return remaining
}

func (t *Tracker) eligibleAndOpen(q Question) bool {
	if _, answered := t.answers[q.ID]; answered {
		return false
	}
	return t.survey.Eligible(q, t)
}

func (t *Tracker) Answered() int {
	return len(t.order)
}

func (t *Tracker) Total() int {
	return t.survey.Len()
}

// Transcript returns the answers in the order they were recorded during the call.
func (t *Tracker) Transcript() []Answer {
	transcript := make([]Answer, len(t.order))
	for i, id := range t.order {
		transcript[i] = t.answers[id]
	}
	return transcript
}
