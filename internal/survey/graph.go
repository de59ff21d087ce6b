// Package survey holds the question graph of a survey and tracks the progress of a single call through it.
package survey

import (
	"log/slog"
	"strings"

	"github.com/myrjola/surveycall/internal/errors"
)

type Kind string

const (
	KindScale       Kind = "scale"
	KindCategorical Kind = "categorical"
	KindOpen        Kind = "open"
)

var ErrInvalidSurvey = errors.NewSentinel("invalid survey")

// Question is one node of the question graph. A question with ParentID set is a branch child that is only asked when
// the parent's answer matches one of TriggerCategories.
type Question struct {
	ID                string   `json:"id"`
	Text              string   `json:"text"`
	Kind              Kind     `json:"kind"`
	ScaleMax          int      `json:"scale_max,omitempty"`
	Categories        []string `json:"categories,omitempty"`
	ParentID          string   `json:"parent_id,omitempty"`
	TriggerCategories []string `json:"trigger_categories,omitempty"`
}

// IsBranch reports whether the question is conditioned on a parent's answer.
func (q Question) IsBranch() bool {
	return q.ParentID != ""
}

// Answers gives read access to recorded raw answers by question ID.
type Answers interface {
	Answer(questionID string) (string, bool)
}

// Survey is the immutable, ordered question list used for one call.
type Survey struct {
	ID        string
	Name      string
	questions []Question
	index     map[string]int
}

// New builds a survey from questions in authoring order.
//
// Authoring invariants such as trigger categories being drawn from the parent's categories are trusted, only
// structurally unusable input is rejected.
func New(id, name string, questions []Question) (*Survey, error) {
	if len(questions) == 0 {
		return nil, errors.Wrap(ErrInvalidSurvey, "no questions", slog.String("survey_id", id))
	}
	index := make(map[string]int, len(questions))
	copied := make([]Question, len(questions))
	for i, q := range questions {
		if q.ID == "" {
			return nil, errors.Wrap(ErrInvalidSurvey, "question without id",
				slog.String("survey_id", id), slog.Int("position", i))
		}
		if _, ok := index[q.ID]; ok {
			return nil, errors.Wrap(ErrInvalidSurvey, "duplicate question id",
				slog.String("survey_id", id), slog.String("question_id", q.ID))
		}
		index[q.ID] = i
		q.Categories = append([]string(nil), q.Categories...)
		q.TriggerCategories = append([]string(nil), q.TriggerCategories...)
		copied[i] = q
	}
	return &Survey{ID: id, Name: name, questions: copied, index: index}, nil
}

// Questions returns a copy of the questions in authoring order.
func (s *Survey) Questions() []Question {
	return append([]Question(nil), s.questions...)
}

func (s *Survey) Len() int {
	return len(s.questions)
}

func (s *Survey) Question(id string) (Question, bool) {
	i, ok := s.index[id]
	if !ok {
		return Question{}, false
	}
	return s.questions[i], true
}

// Eligible reports whether q may be asked given the answers recorded so far.
//
// A root question is always eligible. A branch child is eligible only once its parent is answered and the normalized
// parent answer equals one of the trigger categories or contains one of them. A child whose parent answer did not
// match stays ineligible for the rest of the call because answers are never overwritten.
func (s *Survey) Eligible(q Question, answers Answers) bool {
	if !q.IsBranch() {
		return true
	}
	parentAnswer, ok := answers.Answer(q.ParentID)
	if !ok {
		return false
	}
	return matchesTrigger(parentAnswer, q.TriggerCategories)
}

// matchesTrigger tolerates free-form phone speech where the category word is part of a longer sentence. An empty
// trigger set is unlocked by any answer.
func matchesTrigger(answer string, triggers []string) bool {
	if len(triggers) == 0 {
		return true
	}
	normalized := normalize(answer)
	for _, trigger := range triggers {
		t := normalize(trigger)
		if t == "" {
			continue
		}
		if normalized == t || strings.Contains(normalized, t) {
			return true
		}
	}
	return false
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
