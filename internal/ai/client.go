// Package ai drives the conversational agent of a survey call.
package ai

import (
	"context"

	"github.com/myrjola/surveycall/internal/errors"
	"github.com/sashabaranov/go-openai"
)

// ChatCompleter is the part of [openai.Client] the agent needs.
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// ToolInvoker executes a tool call and returns the directive shown to the model.
type ToolInvoker interface {
	Invoke(ctx context.Context, name, arguments string) string
}

type Client struct {
	client *openai.Client
	model  string
}

const (
	MaxTokens    = 4096
	DefaultModel = "gpt-4o"
)

func NewClient(apiKey, model string) *Client {
	if model == "" {
		model = DefaultModel
	}
	return &Client{
		client: openai.NewClient(apiKey),
		model:  model,
	}
}

func (c *Client) Model() string {
	return c.model
}

// CreateChatCompletion fills in the configured model and token limit when the request leaves them empty.
func (c *Client) CreateChatCompletion(
	ctx context.Context,
	request openai.ChatCompletionRequest,
) (openai.ChatCompletionResponse, error) {
	if request.Model == "" {
		request.Model = c.model
	}
	if request.MaxTokens == 0 {
		request.MaxTokens = MaxTokens
	}
	completion, err := c.client.CreateChatCompletion(ctx, request)
	if err != nil {
		return openai.ChatCompletionResponse{}, errors.Wrap(err, "create chat completion")
	}
	return completion, nil
}
