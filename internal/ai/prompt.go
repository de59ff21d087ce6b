package ai

import (
	_ "embed"
	"strconv"
	"strings"
	"text/template"

	"github.com/myrjola/surveycall/internal/call"
	"github.com/myrjola/surveycall/internal/errors"
	"github.com/myrjola/surveycall/internal/survey"
)

//go:embed prompt.tmpl
var defaultPrompt string

var defaultPromptTemplate = template.Must(template.New("prompt").Parse(defaultPrompt))

type PromptOptions struct {
	AgentName        string
	Organization     string
	RestrictedTopics []string
	// Template replaces the built-in prompt. It is executed with the same data.
	Template *template.Template
}

type promptQuestion struct {
	Order       int
	ID          string
	Label       string
	Text        string
	Condition   string
	ParentOrder int
}

type promptData struct {
	AgentName        string
	Organization     string
	Caller           call.Caller
	SurveyName       string
	Questions        []promptQuestion
	RestrictedTopics []string
}

// ParsePromptTemplate parses a replacement for the built-in prompt.
func ParsePromptTemplate(text string) (*template.Template, error) {
	tmpl, err := template.New("prompt").Parse(text)
	if err != nil {
		return nil, errors.Wrap(err, "parse prompt template")
	}
	return tmpl, nil
}

// BuildSystemPrompt renders the agent instructions for a call to caller.
func BuildSystemPrompt(s *survey.Survey, caller call.Caller, opts PromptOptions) (string, error) {
	tmpl := opts.Template
	if tmpl == nil {
		tmpl = defaultPromptTemplate
	}
	data := promptData{
		AgentName:        valueOr(opts.AgentName, "Cameron"),
		Organization:     valueOr(opts.Organization, "our team"),
		Caller:           caller,
		SurveyName:       s.Name,
		Questions:        nil,
		RestrictedTopics: opts.RestrictedTopics,
	}
	order := make(map[string]int, s.Len())
	for i, q := range s.Questions() {
		order[q.ID] = i + 1
		pq := promptQuestion{Order: i + 1, ID: q.ID, Label: label(q), Text: q.Text, Condition: "", ParentOrder: 0}
		if q.IsBranch() {
			pq.ParentOrder = order[q.ParentID]
			pq.Condition = "any answer"
			if len(q.TriggerCategories) > 0 {
				pq.Condition = strings.Join(q.TriggerCategories, ", ")
			}
		}
		data.Questions = append(data.Questions, pq)
	}

	var b strings.Builder
	if err := tmpl.Execute(&b, data); err != nil {
		return "", errors.Wrap(err, "execute prompt template")
	}
	return b.String(), nil
}

func label(q survey.Question) string {
	switch q.Kind {
	case survey.KindScale:
		scaleMax := q.ScaleMax
		if scaleMax == 0 {
			scaleMax = 5
		}
		return "RATING 1-" + strconv.Itoa(scaleMax)
	case survey.KindCategorical:
		if len(q.Categories) == 0 {
			return "CHOICE"
		}
		return "CHOICE [" + strings.Join(q.Categories, ", ") + "]"
	case survey.KindOpen:
		return "OPEN"
	default:
		return "OPEN"
	}
}

func valueOr(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
