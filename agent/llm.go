package agent

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"slices"

	"github.com/hupe1980/xyz/core"
	"github.com/hupe1980/xyz/logging"
	"github.com/hupe1980/xyz/template"
	"github.com/hupe1980/xyz/transport"
)

// Reserved argument keys of LLMAgent.Flowing. They never reach the template.
const (
	ArgMessages = "messages"
	ArgTools    = "tools"
	ArgImages   = "images"
)

// Completer sends messages to a model. *transport.Client implements it.
type Completer interface {
	Run(ctx context.Context, messages []core.Message, optFns ...func(o *transport.CallOptions)) (*transport.Completion, error)
	StreamRun(ctx context.Context, messages []core.Message, optFns ...func(o *transport.CallOptions)) iter.Seq2[string, error]
}

var _ Completer = (*transport.Client)(nil)

// LLMAgentOptions configure an LLMAgent. The response mode is fixed at
// construction.
type LLMAgentOptions struct {
	// Stream makes Flowing return an iter.Seq2[string, error] of text deltas.
	Stream bool
	// OriginalResponse makes Flowing return the full *transport.Completion.
	OriginalResponse bool
	// Information is validated and attached to the agent.
	Information *core.Information
	// Params override the client's generation parameters on every call.
	Params map[string]any
	Logger logging.Logger
}

// Input is the typed form of the Flowing arguments.
type Input struct {
	Messages []core.Message
	Tools    []core.Information
	Images   []string
	Values   map[string]any
}

// DebugInfo is the last request an LLMAgent resolved.
type DebugInfo struct {
	Messages []core.Message
	Tools    []core.Information
}

// LLMAgent resolves a prompt template and sends it through a Completer.
//
// In the default mode Flowing extracts a single value from the completion:
// the first choice's text content when present, otherwise the function of its
// first tool call. Streaming and original-response modes return the delta
// sequence or the raw completion instead.
type LLMAgent struct {
	BaseAgent
	template template.Template
	client   Completer
	opts     LLMAgentOptions
	last     *DebugInfo
}

// NewLLMAgent creates an agent for tmpl dispatching through client.
func NewLLMAgent(name string, tmpl template.Template, client Completer, optFns ...func(o *LLMAgentOptions)) (*LLMAgent, error) {
	if client == nil {
		return nil, errors.New("llm agent requires a client")
	}

	opts := LLMAgentOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.Logger = logging.OrNoOp(opts.Logger)

	a := &LLMAgent{
		BaseAgent: NewBaseAgent(name),
		template:  tmpl,
		client:    client,
		opts:      opts,
	}

	if opts.Information != nil {
		if err := a.SetInformation(*opts.Information); err != nil {
			return nil, err
		}
	}

	return a, nil
}

// Template returns the prompt template.
func (a *LLMAgent) Template() template.Template { return a.template }

// String renders the agent tree, see core.Structure.
func (a *LLMAgent) String() string { return core.Structure(a) }

// Flowing implements core.Agent. The reserved keys "messages", "tools" and
// "images" are split off; every other argument is a template value.
func (a *LLMAgent) Flowing(ctx context.Context, args core.Args) (any, error) {
	in, err := inputFromArgs(args)
	if err != nil {
		return nil, err
	}
	return a.Invoke(ctx, in)
}

// Invoke resolves the template against in.Values, appends the result to
// in.Messages and dispatches the request. The lists in in are copied, so
// the caller keeps ownership of its slices.
func (a *LLMAgent) Invoke(ctx context.Context, in Input) (any, error) {
	if err := a.ValidateArgs(in.Values); err != nil {
		return nil, err
	}

	resolved, err := a.template.Resolve(in.Values)
	if err != nil {
		return nil, err
	}

	messages := append(core.CloneMessages(in.Messages), resolved...)
	tools := core.CloneInformation(in.Tools)
	images := slices.Clone(in.Images)

	a.setDebug(messages, tools)

	a.opts.Logger.Debug("agent.llm.request",
		"agent", a.Name(),
		"messages", len(messages),
		"tools", len(tools),
		"images", len(images),
		"stream", a.opts.Stream,
	)

	callOpts := []func(o *transport.CallOptions){transport.WithImages(images...)}
	if len(a.opts.Params) > 0 {
		callOpts = append(callOpts, transport.WithParams(a.opts.Params))
	}

	if a.opts.Stream {
		return a.client.StreamRun(ctx, messages, callOpts...), nil
	}

	callOpts = append(callOpts, transport.WithTools(tools...))

	resp, err := a.client.Run(ctx, messages, callOpts...)
	if err != nil {
		a.opts.Logger.Error("agent.llm.failed", "agent", a.Name(), "error", err.Error())
		return nil, err
	}

	if a.opts.OriginalResponse {
		return resp, nil
	}

	return Extract(resp)
}

// Debug returns a copy of the most recently resolved request.
func (a *LLMAgent) Debug() (DebugInfo, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.last == nil {
		return DebugInfo{}, false
	}

	return DebugInfo{
		Messages: core.CloneMessages(a.last.Messages),
		Tools:    core.CloneInformation(a.last.Tools),
	}, true
}

func (a *LLMAgent) setDebug(messages []core.Message, tools []core.Information) {
	snapshot := &DebugInfo{
		Messages: core.CloneMessages(messages),
		Tools:    core.CloneInformation(tools),
	}

	a.mu.Lock()
	a.last = snapshot
	a.mu.Unlock()
}

// Extract returns the first choice's text content, or the function of its
// first tool call when the content is null. A completion with neither is
// core.ErrEmptyCompletion.
func Extract(resp *transport.Completion) (any, error) {
	if resp == nil || len(resp.Choices) == 0 {
		return nil, core.ErrEmptyCompletion
	}

	msg := resp.Choices[0].Message
	if msg.Content != nil {
		return *msg.Content, nil
	}

	if len(msg.ToolCalls) > 0 {
		return msg.ToolCalls[0].Function, nil
	}

	return nil, core.ErrEmptyCompletion
}

func inputFromArgs(args core.Args) (Input, error) {
	in := Input{Values: make(map[string]any, len(args))}

	for k, v := range args {
		switch k {
		case ArgMessages:
			msgs, err := messagesArg(v)
			if err != nil {
				return Input{}, err
			}
			in.Messages = msgs
		case ArgTools:
			tools, err := toolsArg(v)
			if err != nil {
				return Input{}, err
			}
			in.Tools = tools
		case ArgImages:
			images, err := imagesArg(v)
			if err != nil {
				return Input{}, err
			}
			in.Images = images
		default:
			in.Values[k] = v
		}
	}

	return in, nil
}

func messagesArg(v any) ([]core.Message, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case []core.Message:
		return t, nil
	case core.Message:
		return []core.Message{t}, nil
	default:
		return nil, &core.ValidationError{Field: ArgMessages, Value: v, Message: fmt.Sprintf("expected []core.Message, got %T", v)}
	}
}

func toolsArg(v any) ([]core.Information, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case []core.Information:
		return t, nil
	case core.Information:
		return []core.Information{t}, nil
	default:
		return nil, &core.ValidationError{Field: ArgTools, Value: v, Message: fmt.Sprintf("expected []core.Information, got %T", v)}
	}
}

func imagesArg(v any) ([]string, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case []string:
		return t, nil
	case string:
		return []string{t}, nil
	case []any:
		out := make([]string, len(t))
		for i, item := range t {
			s, ok := item.(string)
			if !ok {
				return nil, &core.ValidationError{Field: ArgImages, Value: v, Message: fmt.Sprintf("image %d is %T, expected string", i, item)}
			}
			out[i] = s
		}
		return out, nil
	default:
		return nil, &core.ValidationError{Field: ArgImages, Value: v, Message: fmt.Sprintf("expected []string, got %T", v)}
	}
}
