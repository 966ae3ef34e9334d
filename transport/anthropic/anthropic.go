// Package anthropic provides a transport.Backend over the Anthropic Messages API.
package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"

	"github.com/hupe1980/xyz/core"
	"github.com/hupe1980/xyz/transport"
)

// DefaultMaxTokens is sent when a request has no max_tokens parameter; the
// Messages API requires one.
const DefaultMaxTokens = 4096

// Options configure the Anthropic backend.
type Options struct {
	APIKey         string
	BaseURL        string
	Model          anthropic.Model
	MaxTokens      int64
	RequestTimeout time.Duration
	HTTPClient     *http.Client
	ClientOptions  []option.RequestOption
}

// Backend implements transport.Backend using the official Anthropic client.
type Backend struct {
	client *anthropic.Client
	opts   Options
}

var _ transport.Backend = (*Backend)(nil)

// New creates a backend with its own client. SDK level retries are disabled.
func New(optFns ...func(o *Options)) *Backend {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	clientOpts := []option.RequestOption{option.WithMaxRetries(0)}
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	if opts.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(opts.BaseURL))
	}
	if opts.RequestTimeout > 0 {
		clientOpts = append(clientOpts, option.WithRequestTimeout(opts.RequestTimeout))
	}
	if opts.HTTPClient != nil {
		clientOpts = append(clientOpts, option.WithHTTPClient(opts.HTTPClient))
	}
	clientOpts = append(clientOpts, opts.ClientOptions...)

	client := anthropic.NewClient(clientOpts...)

	return &Backend{client: &client, opts: opts}
}

// NewFromClient creates a backend from an existing client.
func NewFromClient(client *anthropic.Client, optFns ...func(o *Options)) *Backend {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Backend{client: client, opts: opts}
}

func defaultOptions() Options {
	return Options{
		Model:     anthropic.ModelClaudeSonnet4_5,
		MaxTokens: DefaultMaxTokens,
	}
}

// Complete implements transport.Backend.
func (b *Backend) Complete(ctx context.Context, req *transport.Request) (*transport.Completion, error) {
	params, reqOpts := b.buildParams(req)

	resp, err := b.client.Messages.New(ctx, params, reqOpts...)
	if err != nil {
		return nil, fmt.Errorf("anthropic api error: %w", err)
	}

	return fromMessage(resp), nil
}

// Stream implements transport.Backend. Tools are never sent in streaming mode.
func (b *Backend) Stream(ctx context.Context, req *transport.Request) (transport.Stream, error) {
	streamReq := *req
	streamReq.Tools = nil
	streamReq.ToolChoice = transport.ToolChoiceNone

	params, reqOpts := b.buildParams(&streamReq)

	s := b.client.Messages.NewStreaming(ctx, params, reqOpts...)
	if err := s.Err(); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("anthropic streaming error: %w", err)
	}

	return &stream{s: s}, nil
}

func (b *Backend) buildParams(req *transport.Request) (anthropic.MessageNewParams, []option.RequestOption) {
	model := anthropic.Model(req.Model())
	if model == "" {
		model = b.opts.Model
	}

	maxTokens := b.opts.MaxTokens
	if v, ok := toInt64(req.Params["max_tokens"]); ok {
		maxTokens = v
	}

	system, messages := toMessages(req.Messages)

	params := anthropic.MessageNewParams{
		Model:     model,
		MaxTokens: maxTokens,
		System:    system,
		Messages:  messages,
	}

	if req.ToolChoice == transport.ToolChoiceAuto && len(req.Tools) > 0 {
		params.Tools = toTools(req.Tools)
		params.ToolChoice = anthropic.ToolChoiceUnionParam{OfAuto: &anthropic.ToolChoiceAutoParam{}}
	}

	// Current Claude models reject top_p alongside temperature.
	_, hasTemperature := req.Params["temperature"]

	keys := make([]string, 0, len(req.Params))
	for k := range req.Params {
		switch {
		case k == "model", k == "max_tokens", k == "stream":
			continue
		case k == "top_p" && hasTemperature:
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	reqOpts := make([]option.RequestOption, 0, len(keys))
	for _, k := range keys {
		reqOpts = append(reqOpts, option.WithJSONSet(k, req.Params[k]))
	}

	return params, reqOpts
}

// toMessages splits system messages out of the conversation. Tool results
// are sent as user turns, as the Messages API requires.
func toMessages(msgs []core.Message) ([]anthropic.TextBlockParam, []anthropic.MessageParam) {
	var (
		system []anthropic.TextBlockParam
		out    []anthropic.MessageParam
	)

	for _, m := range msgs {
		switch m.Role {
		case core.RoleSystem:
			system = append(system, anthropic.TextBlockParam{Text: m.Content.String()})
		case core.RoleAssistant:
			blocks := []anthropic.ContentBlockParamUnion{}
			if text := m.Content.String(); text != "" {
				blocks = append(blocks, anthropic.NewTextBlock(text))
			}
			for _, tc := range m.ToolCalls {
				blocks = append(blocks, anthropic.NewToolUseBlock(tc.ID, json.RawMessage(tc.Function.Arguments), tc.Function.Name))
			}
			out = append(out, anthropic.NewAssistantMessage(blocks...))
		case core.RoleTool:
			out = append(out, anthropic.NewUserMessage(anthropic.NewToolResultBlock(m.ToolCallID, m.Content.String(), false)))
		default:
			out = append(out, anthropic.NewUserMessage(toBlocks(m.Content)...))
		}
	}

	return system, out
}

func toBlocks(c core.Content) []anthropic.ContentBlockParamUnion {
	if !c.IsMultipart() {
		return []anthropic.ContentBlockParamUnion{anthropic.NewTextBlock(c.Text)}
	}

	blocks := make([]anthropic.ContentBlockParamUnion, 0, len(c.Parts))
	for _, p := range c.Parts {
		switch p.Type {
		case core.PartImage:
			if p.ImageURL != nil {
				blocks = append(blocks, anthropic.NewImageBlock(anthropic.URLImageSourceParam{URL: p.ImageURL.URL}))
			}
		default:
			blocks = append(blocks, anthropic.NewTextBlock(p.Text))
		}
	}

	return blocks
}

func toTools(infos []core.Information) []anthropic.ToolUnionParam {
	tools := make([]anthropic.ToolUnionParam, len(infos))

	for i, info := range infos {
		tool := anthropic.ToolUnionParamOfTool(anthropic.ToolInputSchemaParam{
			Properties: info.Function.Parameters.Properties,
			Required:   info.Function.Parameters.Required,
		}, info.Function.Name)
		tool.OfTool.Description = anthropic.String(info.Function.Description)
		tools[i] = tool
	}

	return tools
}

func fromMessage(resp *anthropic.Message) *transport.Completion {
	msg := transport.ResponseMessage{Role: core.RoleAssistant}

	var (
		text    strings.Builder
		hasText bool
	)

	for _, block := range resp.Content {
		switch v := block.AsAny().(type) {
		case anthropic.TextBlock:
			text.WriteString(v.Text)
			hasText = true
		case anthropic.ToolUseBlock:
			msg.ToolCalls = append(msg.ToolCalls, core.ToolCall{
				ID:   v.ID,
				Type: "function",
				Function: core.FunctionCall{
					Name:      v.Name,
					Arguments: string(v.Input),
				},
			})
		}
	}

	if hasText {
		content := text.String()
		msg.Content = &content
	}

	return &transport.Completion{
		ID:    resp.ID,
		Model: string(resp.Model),
		Choices: []transport.Choice{{
			Message:      msg,
			FinishReason: finishReason(resp.StopReason),
		}},
		Usage: &transport.Usage{
			PromptTokens:     resp.Usage.InputTokens,
			CompletionTokens: resp.Usage.OutputTokens,
			TotalTokens:      resp.Usage.InputTokens + resp.Usage.OutputTokens,
		},
	}
}

// finishReason maps Anthropic stop reasons onto the chat completion vocabulary.
func finishReason(r anthropic.StopReason) string {
	switch r {
	case anthropic.StopReasonEndTurn, anthropic.StopReasonStopSequence:
		return "stop"
	case anthropic.StopReasonToolUse:
		return "tool_calls"
	case anthropic.StopReasonMaxTokens:
		return "length"
	default:
		return string(r)
	}
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		return int64(n), true
	default:
		return 0, false
	}
}

// stream surfaces text deltas and turns message_stop into the end marker.
type stream struct {
	s   *ssestream.Stream[anthropic.MessageStreamEventUnion]
	cur transport.Delta
}

func (s *stream) Next() bool {
	for s.s.Next() {
		switch ev := s.s.Current().AsAny().(type) {
		case anthropic.ContentBlockDeltaEvent:
			if d, ok := ev.Delta.AsAny().(anthropic.TextDelta); ok {
				s.cur = transport.Delta{Text: d.Text}
				return true
			}
		case anthropic.MessageStopEvent:
			s.cur = transport.Delta{Done: true}
			return true
		}
	}

	return false
}

func (s *stream) Current() transport.Delta { return s.cur }

func (s *stream) Err() error {
	if err := s.s.Err(); err != nil {
		return fmt.Errorf("anthropic streaming error: %w", err)
	}
	return nil
}

func (s *stream) Close() error { return s.s.Close() }
