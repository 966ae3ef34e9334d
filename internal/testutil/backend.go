package testutil

import (
	"context"
	"errors"
	"sync"

	"github.com/hupe1980/xyz/core"
	"github.com/hupe1980/xyz/transport"
)

// ErrScriptExhausted is returned when a step carries neither a completion
// nor deltas nor an error.
var ErrScriptExhausted = errors.New("scripted backend: nothing to return")

// Step scripts one backend attempt.
type Step struct {
	Completion *transport.Completion
	Deltas     []transport.Delta
	// Err fails the attempt before any data is produced.
	Err error
	// StreamErr fails the stream after Deltas were delivered.
	StreamErr error
	// Block makes the stream wait for context cancellation after Deltas.
	Block bool
}

// ScriptedBackend replays Steps in order, one per attempt. Once the script is
// exhausted the last step repeats. Every request is recorded.
type ScriptedBackend struct {
	mu       sync.Mutex
	steps    []Step
	calls    int
	requests []*transport.Request
}

// NewScriptedBackend creates a backend replaying steps.
func NewScriptedBackend(steps ...Step) *ScriptedBackend {
	return &ScriptedBackend{steps: steps}
}

// Complete implements transport.Backend.
func (b *ScriptedBackend) Complete(_ context.Context, req *transport.Request) (*transport.Completion, error) {
	s := b.next(req)
	if s.Err != nil {
		return nil, s.Err
	}
	if s.Completion == nil {
		return nil, ErrScriptExhausted
	}
	return s.Completion, nil
}

// Stream implements transport.Backend.
func (b *ScriptedBackend) Stream(ctx context.Context, req *transport.Request) (transport.Stream, error) {
	s := b.next(req)
	if s.Err != nil {
		return nil, s.Err
	}
	return &scriptedStream{ctx: ctx, step: s}, nil
}

// Attempts returns how many attempts reached the backend.
func (b *ScriptedBackend) Attempts() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls
}

// Requests returns the recorded requests in attempt order.
func (b *ScriptedBackend) Requests() []*transport.Request {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*transport.Request(nil), b.requests...)
}

// LastRequest returns the most recent request or nil.
func (b *ScriptedBackend) LastRequest() *transport.Request {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.requests) == 0 {
		return nil
	}
	return b.requests[len(b.requests)-1]
}

func (b *ScriptedBackend) next(req *transport.Request) Step {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.requests = append(b.requests, req)
	idx := b.calls
	b.calls++

	if len(b.steps) == 0 {
		return Step{}
	}
	if idx >= len(b.steps) {
		idx = len(b.steps) - 1
	}
	return b.steps[idx]
}

type scriptedStream struct {
	ctx    context.Context
	step   Step
	idx    int
	cur    transport.Delta
	err    error
	closed bool
}

func (s *scriptedStream) Next() bool {
	if s.closed || s.err != nil {
		return false
	}
	if err := s.ctx.Err(); err != nil {
		s.err = err
		return false
	}
	if s.idx < len(s.step.Deltas) {
		s.cur = s.step.Deltas[s.idx]
		s.idx++
		return true
	}
	switch {
	case s.step.Block:
		<-s.ctx.Done()
		s.err = s.ctx.Err()
	case s.step.StreamErr != nil:
		s.err = s.step.StreamErr
	}
	return false
}

func (s *scriptedStream) Current() transport.Delta { return s.cur }
func (s *scriptedStream) Err() error { return s.err }
func (s *scriptedStream) Close() error { s.closed = true; return nil }

// TextCompletion builds a single-choice completion with text content.
func TextCompletion(text string) *transport.Completion {
	return &transport.Completion{
		ID:    "cmpl-test",
		Model: "test-model",
		Choices: []transport.Choice{{
			Message:      transport.ResponseMessage{Role: core.RoleAssistant, Content: &text},
			FinishReason: "stop",
		}},
	}
}

// ToolCallCompletion builds a completion with null content and one tool call.
func ToolCallCompletion(name, arguments string) *transport.Completion {
	return &transport.Completion{
		ID:    "cmpl-test",
		Model: "test-model",
		Choices: []transport.Choice{{
			Message: transport.ResponseMessage{
				Role: core.RoleAssistant,
				ToolCalls: []core.ToolCall{{
					ID:       "call_1",
					Type:     "function",
					Function: core.FunctionCall{Name: name, Arguments: arguments},
				}},
			},
			FinishReason: "tool_calls",
		}},
	}
}

// Deltas turns texts into stream deltas terminated by a null delta.
func Deltas(texts ...string) []transport.Delta {
	out := make([]transport.Delta, 0, len(texts)+1)
	for _, t := range texts {
		out = append(out, transport.Delta{Text: t})
	}
	return append(out, transport.Delta{Done: true})
}
