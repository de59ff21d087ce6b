package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"
)

const (
	RecordAnswerName     = "record_answer"
	EndSurveyName        = "end_survey"
	ScheduleCallbackName = "schedule_callback"
	SendSurveyLinkName   = "send_survey_link"
)

// Known reports whether name is one of the tools.
func Known(name string) bool {
	switch name {
	case RecordAnswerName, EndSurveyName, ScheduleCallbackName, SendSurveyLinkName:
		return true
	default:
		return false
	}
}

type recordAnswerArgs struct {
	QuestionID string `json:"question_id"`
	Answer     string `json:"answer"`
}

type endSurveyArgs struct {
	Reason string `json:"reason"`
}

type scheduleCallbackArgs struct {
	PreferredTime string `json:"preferred_time"`
}

// Invoke runs the tool called name with JSON encoded arguments as sent by the agent. Unknown tools and malformed
// arguments are answered with a directive so that the agent can correct itself.
func (t *Toolbox) Invoke(ctx context.Context, name, arguments string) string {
	if strings.TrimSpace(arguments) == "" {
		arguments = "{}"
	}
	t.logger.LogAttrs(ctx, slog.LevelDebug, "tool invoked", slog.String("tool", name), slog.String("arguments", arguments))

	var result string
	switch name {
	case RecordAnswerName:
		var args recordAnswerArgs
		if err := json.Unmarshal([]byte(arguments), &args); err != nil || args.QuestionID == "" {
			return invalidArguments(name, `{"question_id": "...", "answer": "..."}`)
		}
		result = t.RecordAnswer(ctx, args.QuestionID, args.Answer)
	case EndSurveyName:
		args := endSurveyArgs{Reason: "completed"}
		if err := json.Unmarshal([]byte(arguments), &args); err != nil {
			return invalidArguments(name, `{"reason": "completed"}`)
		}
		result = t.EndSurvey(ctx, args.Reason)
	case ScheduleCallbackName:
		var args scheduleCallbackArgs
		if err := json.Unmarshal([]byte(arguments), &args); err != nil {
			return invalidArguments(name, `{"preferred_time": "tomorrow at 3pm"}`)
		}
		result = t.ScheduleCallback(ctx, args.PreferredTime)
	case SendSurveyLinkName:
		result = t.SendSurveyLink(ctx)
	default:
		return fmt.Sprintf("Unknown tool %q. Available tools: %s, %s, %s, %s.",
			name, RecordAnswerName, EndSurveyName, ScheduleCallbackName, SendSurveyLinkName)
	}
	t.logger.LogAttrs(ctx, slog.LevelInfo, "tool result", slog.String("tool", name), slog.String("result", result))
	return result
}

func invalidArguments(name, example string) string {
	return fmt.Sprintf("Invalid arguments for %s. Call it again with arguments like %s.", name, example)
}

// Definitions describes the tools for the agent.
func Definitions() []openai.Tool {
	functions := []openai.FunctionDefinition{
		{
			Name: RecordAnswerName,
			Description: "Record the caller's answer to a survey question. " +
				"Read the response carefully, it tells you exactly what to do next.",
			Parameters: jsonschema.Definition{
				Type: jsonschema.Object,
				Properties: map[string]jsonschema.Definition{
					"question_id": {Type: jsonschema.String, Description: "The question identifier from the survey"},
					"answer":      {Type: jsonschema.String, Description: "The caller's response in their own words"},
				},
				Required: []string{"question_id", "answer"},
			},
		},
		{
			Name: EndSurveyName,
			Description: "End the call: save the answers, speak the farewell, wait for it to finish, then hang up. " +
				"This is the only way to end a call.",
			Parameters: jsonschema.Definition{
				Type: jsonschema.Object,
				Properties: map[string]jsonschema.Definition{
					"reason": {
						Type:        jsonschema.String,
						Description: "Why the call is ending",
						Enum:        strings.Split(reasonList(), ", "),
					},
				},
				Required: []string{"reason"},
			},
		},
		{
			Name: ScheduleCallbackName,
			Description: "Schedule a callback when the person is busy but would like to be called later. " +
				`Afterwards call end_survey with reason "callback_scheduled".`,
			Parameters: jsonschema.Definition{
				Type: jsonschema.Object,
				Properties: map[string]jsonschema.Definition{
					"preferred_time": {
						Type:        jsonschema.String,
						Description: `When they want to be called back, e.g. "tomorrow at 3pm" or "in 2 hours"`,
					},
				},
				Required: []string{"preferred_time"},
			},
		},
		{
			Name: SendSurveyLinkName,
			Description: "Send the survey link by email so they can answer at their convenience. " +
				`Afterwards call end_survey with reason "link_sent".`,
			Parameters: jsonschema.Definition{
				Type:       jsonschema.Object,
				Properties: map[string]jsonschema.Definition{},
			},
		},
	}
	tools := make([]openai.Tool, len(functions))
	for i := range functions {
		tools[i] = openai.Tool{Type: openai.ToolTypeFunction, Function: &functions[i]}
	}
	return tools
}
