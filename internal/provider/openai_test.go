package provider

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/logkn/poemprobe/internal/completion"
	"github.com/logkn/poemprobe/internal/mockserver"
	"github.com/openai/openai-go"
)

func newTestProvider(t *testing.T, opts ...mockserver.Option) (*OpenAIProvider, *mockserver.Server) {
	t.Helper()
	mock := mockserver.New("", opts...)
	srv := httptest.NewServer(mock.Handler())
	t.Cleanup(srv.Close)

	p := NewOpenAIProvider(Options{
		BaseURL: srv.URL + "/v1/",
		APIKey:  "sk-mock",
	})
	return p, mock
}

func TestCompleteSendsProbeRequest(t *testing.T) {
	p, mock := newTestProvider(t)

	resp, err := p.Complete(context.Background(), completion.NewRequest(""))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	last := mock.LastRequest()
	if last["model"] != completion.DefaultModel {
		t.Fatalf("expected model %q got %v", completion.DefaultModel, last["model"])
	}
	msgs, ok := last["messages"].([]any)
	if !ok || len(msgs) != 1 {
		t.Fatalf("expected exactly one message got %v", last["messages"])
	}
	msg := msgs[0].(map[string]any)
	if msg["role"] != "user" || msg["content"] != completion.Prompt {
		t.Fatalf("unexpected message %v", msg)
	}

	if resp.ID != mockserver.CompletionID {
		t.Fatalf("expected id %q got %q", mockserver.CompletionID, resp.ID)
	}
	if got := resp.FirstContent(); got != mockserver.DefaultContent {
		t.Fatalf("expected %q got %q", mockserver.DefaultContent, got)
	}
	if resp.Choices[0].FinishReason != "stop" {
		t.Fatalf("expected finish reason stop got %q", resp.Choices[0].FinishReason)
	}
}

func TestCompleteMissingFields(t *testing.T) {
	tests := []struct {
		name    string
		choices []map[string]any
		count   int
	}{
		{"no choices", []map[string]any{}, 0},
		{"no message", []map[string]any{{"index": 0, "finish_reason": "stop"}}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, _ := newTestProvider(t, mockserver.WithChoices(tt.choices))

			resp, err := p.Complete(context.Background(), completion.NewRequest(""))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(resp.Choices) != tt.count {
				t.Fatalf("expected %d choices got %d", tt.count, len(resp.Choices))
			}
			if tt.count > 0 && resp.Choices[0].Message != nil {
				t.Fatalf("expected absent message got %+v", resp.Choices[0].Message)
			}
			if got := resp.FirstContent(); got != "" {
				t.Fatalf("expected empty content got %q", got)
			}
		})
	}
}

func TestCompleteErrorIsReturned(t *testing.T) {
	p, _ := newTestProvider(t, mockserver.WithStatus(http.StatusUnauthorized))

	_, err := p.Complete(context.Background(), completion.NewRequest(""))
	if err == nil {
		t.Fatalf("expected error")
	}

	var apiErr *openai.Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *openai.Error in chain got %T: %v", err, err)
	}
	if apiErr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", apiErr.StatusCode)
	}
}

func TestInvokeAgainstMockServer(t *testing.T) {
	p, _ := newTestProvider(t, mockserver.WithContent("Roses are red"))
	var out bytes.Buffer

	if err := completion.Invoke(context.Background(), p, &out, ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.String() != "Roses are red\n" {
		t.Fatalf("expected %q got %q", "Roses are red\n", out.String())
	}
}
