package completion

import (
	"context"
	"fmt"
	"io"
)

const (
	// DefaultModel is the model the probe asks for unless configured otherwise.
	DefaultModel = "gpt-4o-mini"

	// Prompt is the single user message sent on every invocation.
	Prompt = "Write a short poem on OpenTelemetry."
)

// Role identifies the author of a message.
type Role string

const (
	User      Role = "user"
	Assistant Role = "assistant"
)

// Message is one role/content pair of a chat request.
type Message struct {
	Role    Role   `json:"role" jsonschema:"enum=user,enum=assistant,description=Author of the message"`
	Content string `json:"content" jsonschema:"description=Text of the message"`
}

// Request is the outbound chat completion call.
type Request struct {
	Model    string    `json:"model" jsonschema:"description=Model identifier"`
	Messages []Message `json:"messages" jsonschema:"description=Ordered conversation. Always one user message"`
}

// ChoiceMessage is the message carried by a choice. Content may be empty.
type ChoiceMessage struct {
	Role    Role   `json:"role,omitempty" jsonschema:"description=Author of the message"`
	Content string `json:"content,omitempty" jsonschema:"description=Generated text"`
}

// Choice is one candidate returned by the service. Message is nil when the
// service omitted it.
type Choice struct {
	Index        int            `json:"index" jsonschema:"description=Position of the choice"`
	FinishReason string         `json:"finish_reason,omitempty" jsonschema:"description=Why generation stopped"`
	Message      *ChoiceMessage `json:"message,omitempty" jsonschema:"description=Generated message. May be absent"`
}

// Response is what the service returned for a Request.
type Response struct {
	ID      string   `json:"id,omitempty" jsonschema:"description=Completion identifier"`
	Model   string   `json:"model,omitempty" jsonschema:"description=Model that served the request"`
	Choices []Choice `json:"choices" jsonschema:"description=Zero or more candidates"`
}

// Completer is the external chat completion capability.
type Completer interface {
	Complete(ctx context.Context, req Request) (*Response, error)
}

// NewRequest builds the probe request for model, falling back to DefaultModel.
func NewRequest(model string) Request {
	if model == "" {
		model = DefaultModel
	}
	return Request{
		Model: model,
		Messages: []Message{
			{Role: User, Content: Prompt},
		},
	}
}

// FirstContent returns the content of the first choice's message, or "" when
// the response, the choice or the message is missing.
func (r *Response) FirstContent() string {
	if r == nil || len(r.Choices) == 0 {
		return ""
	}
	msg := r.Choices[0].Message
	if msg == nil {
		return ""
	}
	return msg.Content
}

// Invoke sends the probe request once and writes the first choice's content to
// w followed by a newline. A failed call is returned and nothing is written.
func Invoke(ctx context.Context, c Completer, w io.Writer, model string) error {
	resp, err := c.Complete(ctx, NewRequest(model))
	if err != nil {
		return fmt.Errorf("chat completion: %w", err)
	}

	if _, err := fmt.Fprintln(w, resp.FirstContent()); err != nil {
		return fmt.Errorf("failed to write completion: %w", err)
	}
	return nil
}
