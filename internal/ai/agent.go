package ai

import (
	"context"
	"log/slog"

	"github.com/myrjola/surveycall/internal/errors"
	"github.com/sashabaranov/go-openai"
)

var (
	ErrNoChoices     = errors.NewSentinel("completion without choices")
	ErrTooManyRounds = errors.NewSentinel("too many tool rounds")
)

const defaultMaxRounds = 8

// Agent holds the conversation of one call. Tool calls requested by the model are executed through the invoker and
// their directives are fed back until the model replies with text. It is not safe for concurrent use.
type Agent struct {
	completer ChatCompleter
	model     string
	invoker   ToolInvoker
	tools     []openai.Tool
	logger    *slog.Logger
	messages  []openai.ChatCompletionMessage
	MaxRounds int
}

func NewAgent(
	completer ChatCompleter,
	model string,
	systemPrompt string,
	tools []openai.Tool,
	invoker ToolInvoker,
	logger *slog.Logger,
) *Agent {
	return &Agent{
		completer: completer,
		model:     model,
		invoker:   invoker,
		tools:     tools,
		logger:    logger.With(slog.String("source", "agent")),
		messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt}, //nolint:exhaustruct // only content is needed
		},
		MaxRounds: defaultMaxRounds,
	}
}

// Reply adds the caller's utterance to the conversation and returns what the agent says back. An empty utterance
// asks the agent to open the call.
func (a *Agent) Reply(ctx context.Context, utterance string) (string, error) {
	if utterance != "" {
		a.messages = append(a.messages, openai.ChatCompletionMessage{ //nolint:exhaustruct // only content is needed
			Role:    openai.ChatMessageRoleUser,
			Content: utterance,
		})
	}

	for range a.MaxRounds {
		completion, err := a.completer.CreateChatCompletion(ctx, openai.ChatCompletionRequest{ //nolint:exhaustruct // readability
			Model:    a.model,
			Messages: a.messages,
			Tools:    a.tools,
		})
		if err != nil {
			return "", errors.Wrap(err, "agent completion")
		}
		if len(completion.Choices) == 0 {
			return "", errors.Wrap(ErrNoChoices, "agent completion", slog.String("model", a.model))
		}
		message := completion.Choices[0].Message
		a.messages = append(a.messages, message)
		if len(message.ToolCalls) == 0 {
			return message.Content, nil
		}
		for _, toolCall := range message.ToolCalls {
			result := a.invoker.Invoke(ctx, toolCall.Function.Name, toolCall.Function.Arguments)
			a.logger.LogAttrs(ctx, slog.LevelDebug, "tool call answered",
				slog.String("tool", toolCall.Function.Name), slog.String("tool_call_id", toolCall.ID))
			a.messages = append(a.messages, openai.ChatCompletionMessage{ //nolint:exhaustruct // tool reply
				Role:       openai.ChatMessageRoleTool,
				Content:    result,
				ToolCallID: toolCall.ID,
			})
		}
	}
	return "", errors.Wrap(ErrTooManyRounds, "agent reply", slog.Int("max_rounds", a.MaxRounds))
}

// Messages returns a copy of the conversation so far.
func (a *Agent) Messages() []openai.ChatCompletionMessage {
	return append([]openai.ChatCompletionMessage(nil), a.messages...)
}
