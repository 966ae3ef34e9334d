package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/hupe1980/xyz/core"
	"github.com/hupe1980/xyz/logging"
)

// SetOptions configure a Set.
type SetOptions struct {
	Logger logging.Logger
}

// Set routes model function calls to registered tools by name. Its
// Information list is what an LLM agent receives as available tools.
type Set struct {
	mu     sync.RWMutex
	tools  map[string]Tool
	order  []string
	logger logging.Logger
}

// NewSet creates a Set holding tools.
func NewSet(tools []Tool, optFns ...func(o *SetOptions)) (*Set, error) {
	opts := SetOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}

	s := &Set{tools: map[string]Tool{}, logger: logging.OrNoOp(opts.Logger)}
	for _, t := range tools {
		if err := s.Add(t); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// Add registers t under its function name. The record must be valid and the
// name unused.
func (s *Set) Add(t Tool) error {
	if t == nil {
		return errors.New("tool must not be nil")
	}

	info, ok := t.Information()
	if !ok {
		return fmt.Errorf("tool %T has no information record", t)
	}
	if err := info.Validate(); err != nil {
		return err
	}

	name := info.Function.Name

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tools[name]; exists {
		return fmt.Errorf("tool %q is already registered", name)
	}

	s.tools[name] = t
	s.order = append(s.order, name)

	return nil
}

// Get returns the tool registered under name.
func (s *Set) Get(name string) (Tool, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tools[name]
	return t, ok
}

// Information returns the records of all tools in registration order.
func (s *Set) Information() []core.Information {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]core.Information, 0, len(s.order))
	for _, name := range s.order {
		if info, ok := s.tools[name].Information(); ok {
			out = append(out, info)
		}
	}

	return out
}

// Dispatch decodes the JSON arguments of call and invokes the named tool.
func (s *Set) Dispatch(ctx context.Context, call core.FunctionCall) (any, error) {
	t, ok := s.Get(call.Name)
	if !ok {
		s.logger.Warn("tool.call.not_found", "tool", call.Name)
		return nil, NewToolError(call.Name, "no such tool", CodeNotFound)
	}

	args := core.Args{}
	if raw := strings.TrimSpace(call.Arguments); raw != "" {
		if err := json.Unmarshal([]byte(raw), &args); err != nil {
			s.logger.Warn("tool.call.invalid_arguments", "tool", call.Name, "error", err.Error())
			return nil, &ToolError{Tool: call.Name, Message: fmt.Sprintf("arguments are not a JSON object: %v", err), Code: CodeInvalidArguments, Err: err}
		}
	}

	start := time.Now()
	s.logger.Debug("tool.call.start", "tool", call.Name)

	result, err := t.Flowing(ctx, args)
	if err != nil {
		s.logger.Error("tool.call.error", "tool", call.Name, "error", err.Error())
		return nil, err
	}

	s.logger.Info("tool.call.success", "tool", call.Name, "duration_ms", time.Since(start).Milliseconds())

	return result, nil
}
