package ai_test

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/myrjola/surveycall/internal/ai"
	"github.com/myrjola/surveycall/internal/call"
	"github.com/myrjola/surveycall/internal/survey"
	"github.com/myrjola/surveycall/internal/testhelpers"
	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/require"
)

// scriptedCompleter answers each completion request with the next scripted message.
type scriptedCompleter struct {
	replies  []openai.ChatCompletionMessage
	requests []openai.ChatCompletionRequest
}

func (s *scriptedCompleter) CreateChatCompletion(
	_ context.Context,
	request openai.ChatCompletionRequest,
) (openai.ChatCompletionResponse, error) {
	s.requests = append(s.requests, request)
	if len(s.replies) == 0 {
		return openai.ChatCompletionResponse{}, nil
	}
	reply := s.replies[0]
	s.replies = s.replies[1:]
	return openai.ChatCompletionResponse{Choices: []openai.ChatCompletionChoice{{Message: reply}}}, nil
}

type invocation struct {
	name      string
	arguments string
}

type recordingInvoker struct {
	calls []invocation
}

func (r *recordingInvoker) Invoke(_ context.Context, name, arguments string) string {
	r.calls = append(r.calls, invocation{name: name, arguments: arguments})
	return "RECORDED. ALL DONE."
}

func toolCall(id, name, arguments string) openai.ChatCompletionMessage {
	return openai.ChatCompletionMessage{
		Role: openai.ChatMessageRoleAssistant,
		ToolCalls: []openai.ToolCall{{
			ID:       id,
			Type:     openai.ToolTypeFunction,
			Function: openai.FunctionCall{Name: name, Arguments: arguments},
		}},
	}
}

func text(content string) openai.ChatCompletionMessage {
	return openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: content}
}

func TestAgent_Reply(t *testing.T) {
	completer := &scriptedCompleter{replies: []openai.ChatCompletionMessage{
		text("Hi, is this Alex?"),
		toolCall("call_1", "record_answer", `{"question_id":"q1","answer":"4"}`),
		text("Thanks, that was all."),
	}}
	invoker := &recordingInvoker{}
	agent := ai.NewAgent(completer, "test-model", "system prompt", nil, invoker, testhelpers.NewLogger(io.Discard))
	ctx := context.Background()

	reply, err := agent.Reply(ctx, "")
	require.NoError(t, err)
	require.Equal(t, "Hi, is this Alex?", reply)

	reply, err = agent.Reply(ctx, "Four")
	require.NoError(t, err)
	require.Equal(t, "Thanks, that was all.", reply)

	require.Equal(t, []invocation{{name: "record_answer", arguments: `{"question_id":"q1","answer":"4"}`}}, invoker.calls)
	require.Len(t, completer.requests, 3)
	require.Equal(t, "test-model", completer.requests[0].Model)

	messages := agent.Messages()
	roles := make([]string, len(messages))
	for i, m := range messages {
		roles[i] = m.Role
	}
	require.Equal(t, []string{
		openai.ChatMessageRoleSystem,
		openai.ChatMessageRoleAssistant,
		openai.ChatMessageRoleUser,
		openai.ChatMessageRoleAssistant,
		openai.ChatMessageRoleTool,
		openai.ChatMessageRoleAssistant,
	}, roles)
	require.Equal(t, "call_1", messages[4].ToolCallID)
	require.Equal(t, "RECORDED. ALL DONE.", messages[4].Content)
}

func TestAgent_Reply_errors(t *testing.T) {
	t.Run("no choices", func(t *testing.T) {
		agent := ai.NewAgent(&scriptedCompleter{}, "m", "p", nil, &recordingInvoker{}, testhelpers.NewLogger(io.Discard))
		_, err := agent.Reply(context.Background(), "hello")
		require.ErrorIs(t, err, ai.ErrNoChoices)
	})
	t.Run("endless tool calls", func(t *testing.T) {
		completer := &scriptedCompleter{}
		for i := range 3 {
			completer.replies = append(completer.replies, toolCall(strings.Repeat("x", i+1), "end_survey", "{}"))
		}
		agent := ai.NewAgent(completer, "m", "p", nil, &recordingInvoker{}, testhelpers.NewLogger(io.Discard))
		agent.MaxRounds = 2
		_, err := agent.Reply(context.Background(), "bye")
		require.ErrorIs(t, err, ai.ErrTooManyRounds)
	})
}

func TestBuildSystemPrompt(t *testing.T) {
	s, err := survey.New("ride", "Ride feedback", []survey.Question{
		{ID: "q1", Text: "How was your ride?", Kind: survey.KindScale, ScaleMax: 5},
		{ID: "q2", Text: "Was the driver on time?", Kind: survey.KindCategorical, Categories: []string{"Yes", "No"}},
		{ID: "q3", Text: "What went wrong?", Kind: survey.KindOpen, ParentID: "q2", TriggerCategories: []string{"No"}},
		{ID: "q4", Text: "Anything else?", Kind: survey.KindOpen, ParentID: "q1"},
	})
	require.NoError(t, err)

	prompt, err := ai.BuildSystemPrompt(s, call.Caller{Number: "+1555", Name: "Alex", Email: ""}, ai.PromptOptions{
		AgentName:        "",
		Organization:     "Acme Transit",
		RestrictedTopics: []string{"pricing"},
		Template:         nil,
	})
	require.NoError(t, err)

	require.Contains(t, prompt, "You are Cameron")
	require.Contains(t, prompt, "Acme Transit")
	require.Contains(t, prompt, "speaking with Alex")
	require.Contains(t, prompt, `Q1 [q1] RATING 1-5: "How was your ride?"`)
	require.Contains(t, prompt, `Q2 [q2] CHOICE [Yes, No]: "Was the driver on time?"`)
	require.Contains(t, prompt, "Ask ONLY IF the answer to Q2 includes: No.")
	require.Contains(t, prompt, "Ask ONLY IF the answer to Q1 includes: any answer.")
	require.Contains(t, prompt, "NEVER discuss pricing.")
}

func TestBuildSystemPrompt_customTemplate(t *testing.T) {
	s, err := survey.New("s", "Short", []survey.Question{{ID: "a", Text: "Why?", Kind: survey.KindOpen}})
	require.NoError(t, err)
	tmpl, err := ai.ParsePromptTemplate(`{{.AgentName}} asks {{range .Questions}}{{.ID}}:{{.Label}}{{end}}`)
	require.NoError(t, err)

	prompt, err := ai.BuildSystemPrompt(s, call.Caller{}, ai.PromptOptions{AgentName: "Robin", Template: tmpl})
	require.NoError(t, err)
	require.Equal(t, "Robin asks a:OPEN", prompt)

	_, err = ai.ParsePromptTemplate("{{.Broken")
	require.Error(t, err)
}
