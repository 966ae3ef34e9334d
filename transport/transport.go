package transport

import (
	"context"

	"github.com/hupe1980/xyz/core"
)

// ToolChoice selects whether the model may call tools.
type ToolChoice string

const (
	// ToolChoiceAuto lets the model decide whether to call one of the supplied tools.
	ToolChoiceAuto ToolChoice = "auto"
	// ToolChoiceNone disables tool calling. Backends omit the tools field entirely.
	ToolChoiceNone ToolChoice = "none"
)

// Request is the normalized input handed to a Backend.
type Request struct {
	ID         string             `json:"id"`
	Messages   []core.Message     `json:"messages"`
	Tools      []core.Information `json:"tools,omitempty"`
	ToolChoice ToolChoice         `json:"tool_choice"`
	Params     map[string]any     `json:"params,omitempty"`
	Stream     bool               `json:"stream,omitempty"`
}

// Model returns the "model" generation parameter, if set.
func (r *Request) Model() string {
	m, _ := r.Params["model"].(string)
	return m
}

// Usage captures token usage statistics for a completion.
type Usage struct {
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
	TotalTokens      int64 `json:"total_tokens"`
}

// ResponseMessage is the assistant message of a choice. Content is nil when
// the model produced no text, typically because it called a tool instead.
type ResponseMessage struct {
	Role      core.Role       `json:"role"`
	Content   *string         `json:"content"`
	ToolCalls []core.ToolCall `json:"tool_calls,omitempty"`
}

// Choice is one candidate answer of a completion.
type Choice struct {
	Index        int             `json:"index"`
	Message      ResponseMessage `json:"message"`
	FinishReason string          `json:"finish_reason"` // "stop", "length", "tool_calls", etc.
}

// Completion is the structured result of a non-streaming call.
type Completion struct {
	ID      string   `json:"id"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   *Usage   `json:"usage,omitempty"`
}

// Delta is one streamed text increment. Done marks the null delta that ends
// the stream.
type Delta struct {
	Text string
	Done bool
}

// Stream is a single-pass cursor over the deltas of one streaming attempt.
type Stream interface {
	Next() bool
	Current() Delta
	Err() error
	Close() error
}

// Backend performs one attempt against an LLM provider. Implementations must
// not retry on their own.
type Backend interface {
	Complete(ctx context.Context, req *Request) (*Completion, error)
	Stream(ctx context.Context, req *Request) (Stream, error)
}
