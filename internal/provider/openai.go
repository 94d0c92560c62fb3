package provider

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/logkn/poemprobe/internal/completion"
	"github.com/logkn/poemprobe/internal/utils"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Options holds explicit overrides for the OpenAI client. Empty fields leave
// the SDK's environment discovery (OPENAI_API_KEY, OPENAI_BASE_URL, ...) in charge.
type Options struct {
	BaseURL string
	APIKey  string
	Logger  *slog.Logger
}

// OpenAIProvider implements completion.Completer using OpenAI's chat completion API
type OpenAIProvider struct {
	client openai.Client
	logger *slog.Logger
}

// NewOpenAIProvider creates a provider that resolves credentials the way the SDK
// does by default. SDK retries are disabled so one invocation is one request.
func NewOpenAIProvider(opts Options) *OpenAIProvider {
	reqOpts := []option.RequestOption{option.WithMaxRetries(0)}
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
	}
	if opts.APIKey != "" {
		reqOpts = append(reqOpts, option.WithAPIKey(opts.APIKey))
	}

	logger := opts.Logger
	if logger == nil {
		logger = utils.NilLogger()
	}

	return &OpenAIProvider{
		client: openai.NewClient(reqOpts...),
		logger: logger,
	}
}

// Complete sends req and maps the result back into the completion types.
func (p *OpenAIProvider) Complete(ctx context.Context, req completion.Request) (*completion.Response, error) {
	params := openai.ChatCompletionNewParams{
		Messages: convertMessages(req.Messages),
		Model:    openai.ChatModel(req.Model),
	}

	p.logger.Debug("sending chat completion", "model", req.Model, "messages", len(req.Messages))

	result, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai chat completion: %w", err)
	}

	p.logger.Debug("received chat completion",
		"id", result.ID,
		"model", result.Model,
		"choices", len(result.Choices),
		"input_tokens", result.Usage.PromptTokens,
		"output_tokens", result.Usage.CompletionTokens,
	)

	return convertCompletion(result), nil
}

func convertMessages(msgs []completion.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, msg := range msgs {
		switch msg.Role {
		case completion.User:
			out = append(out, openai.UserMessage(msg.Content))
		case completion.Assistant:
			out = append(out, openai.AssistantMessage(msg.Content))
		}
	}
	return out
}

func convertCompletion(c *openai.ChatCompletion) *completion.Response {
	resp := &completion.Response{
		ID:      c.ID,
		Model:   c.Model,
		Choices: make([]completion.Choice, 0, len(c.Choices)),
	}

	for _, choice := range c.Choices {
		converted := completion.Choice{
			Index:        int(choice.Index),
			FinishReason: string(choice.FinishReason),
		}
		// The SDK always hands back a message value; presence lives in the JSON metadata.
		if choice.JSON.Message.Valid() {
			converted.Message = &completion.ChoiceMessage{
				Role:    completion.Role(choice.Message.Role),
				Content: choice.Message.Content,
			}
		}
		resp.Choices = append(resp.Choices, converted)
	}

	return resp
}
