// Package openai provides a transport.Backend over the OpenAI Chat
// Completions API. Any OpenAI compatible host can be targeted with BaseURL,
// which is how DeepSeek, Qwen or Llama deployments behind NetMind are served.
package openai

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/ssestream"

	"github.com/hupe1980/xyz/core"
	"github.com/hupe1980/xyz/transport"
)

// Options configure the OpenAI backend.
type Options struct {
	APIKey  string
	BaseURL string
	// Model is used when a request carries no "model" parameter.
	Model          string
	RequestTimeout time.Duration
	HTTPClient     *http.Client
	// ClientOptions are appended after the options derived from the fields above.
	ClientOptions []option.RequestOption
}

// Backend implements transport.Backend using the official OpenAI client.
type Backend struct {
	client *openai.Client
	opts   Options
}

var _ transport.Backend = (*Backend)(nil)

// New creates a backend with its own client. SDK level retries are disabled;
// retrying is the job of transport.Client.
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

	client := openai.NewClient(clientOpts...)

	return &Backend{client: &client, opts: opts}
}

// NewFromClient creates a backend from an existing client.
func NewFromClient(client *openai.Client, optFns ...func(o *Options)) *Backend {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Backend{client: client, opts: opts}
}

func defaultOptions() Options {
	return Options{Model: openai.ChatModelGPT4oMini}
}

// Complete implements transport.Backend.
func (b *Backend) Complete(ctx context.Context, req *transport.Request) (*transport.Completion, error) {
	params, reqOpts := b.buildParams(req)

	resp, err := b.client.Chat.Completions.New(ctx, params, reqOpts...)
	if err != nil {
		return nil, fmt.Errorf("openai api error: %w", err)
	}

	return fromCompletion(resp), nil
}

// Stream implements transport.Backend. Tools are never sent in streaming mode.
func (b *Backend) Stream(ctx context.Context, req *transport.Request) (transport.Stream, error) {
	streamReq := *req
	streamReq.Tools = nil
	streamReq.ToolChoice = transport.ToolChoiceNone

	params, reqOpts := b.buildParams(&streamReq)

	s := b.client.Chat.Completions.NewStreaming(ctx, params, reqOpts...)
	if err := s.Err(); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("openai streaming error: %w", err)
	}

	return &stream{s: s}, nil
}

// buildParams assembles the SDK parameters. The model is typed; every other
// generation parameter is set on the JSON body as is.
func (b *Backend) buildParams(req *transport.Request) (openai.ChatCompletionNewParams, []option.RequestOption) {
	model := req.Model()
	if model == "" {
		model = b.opts.Model
	}

	params := openai.ChatCompletionNewParams{
		Messages: toMessages(req.Messages),
		Model:    model,
	}

	if req.ToolChoice == transport.ToolChoiceAuto && len(req.Tools) > 0 {
		params.Tools = toTools(req.Tools)
		params.ToolChoice = openai.ChatCompletionToolChoiceOptionUnionParam{OfAuto: openai.String(string(transport.ToolChoiceAuto))}
	}

	keys := make([]string, 0, len(req.Params))
	for k := range req.Params {
		if k == "model" || k == "stream" {
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

func toMessages(msgs []core.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))

	for _, m := range msgs {
		switch m.Role {
		case core.RoleSystem:
			out = append(out, openai.SystemMessage(m.Content.String()))
		case core.RoleAssistant:
			out = append(out, assistantMessage(m))
		case core.RoleTool:
			out = append(out, openai.ToolMessage(m.Content.String(), m.ToolCallID))
		default:
			if m.Content.IsMultipart() {
				out = append(out, openai.UserMessage(toParts(m.Content.Parts)))
				continue
			}
			out = append(out, openai.UserMessage(m.Content.Text))
		}
	}

	return out
}

func assistantMessage(m core.Message) openai.ChatCompletionMessageParamUnion {
	if len(m.ToolCalls) == 0 {
		return openai.AssistantMessage(m.Content.String())
	}

	calls := make([]openai.ChatCompletionMessageToolCallParam, len(m.ToolCalls))
	for i, tc := range m.ToolCalls {
		calls[i] = openai.ChatCompletionMessageToolCallParam{
			ID: tc.ID,
			Function: openai.ChatCompletionMessageToolCallFunctionParam{
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			},
		}
	}

	msg := openai.ChatCompletionAssistantMessageParam{ToolCalls: calls}
	if text := m.Content.String(); text != "" {
		msg.Content.OfString = openai.String(text)
	}

	return openai.ChatCompletionMessageParamUnion{OfAssistant: &msg}
}

func toParts(parts []core.Part) []openai.ChatCompletionContentPartUnionParam {
	out := make([]openai.ChatCompletionContentPartUnionParam, 0, len(parts))

	for _, p := range parts {
		switch p.Type {
		case core.PartImage:
			if p.ImageURL == nil {
				continue
			}
			out = append(out, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
				URL:    p.ImageURL.URL,
				Detail: p.ImageURL.Detail,
			}))
		default:
			out = append(out, openai.TextContentPart(p.Text))
		}
	}

	return out
}

func toTools(infos []core.Information) []openai.ChatCompletionToolParam {
	tools := make([]openai.ChatCompletionToolParam, len(infos))

	for i, info := range infos {
		tools[i] = openai.ChatCompletionToolParam{
			Function: openai.FunctionDefinitionParam{
				Name:        info.Function.Name,
				Description: openai.String(info.Function.Description),
				Parameters:  openai.FunctionParameters(info.Schema()),
			},
		}
	}

	return tools
}

func fromCompletion(resp *openai.ChatCompletion) *transport.Completion {
	out := &transport.Completion{
		ID:      resp.ID,
		Model:   resp.Model,
		Choices: make([]transport.Choice, 0, len(resp.Choices)),
	}

	for _, ch := range resp.Choices {
		msg := transport.ResponseMessage{Role: core.RoleAssistant}

		if ch.Message.JSON.Content.Valid() {
			content := ch.Message.Content
			msg.Content = &content
		}

		for _, tc := range ch.Message.ToolCalls {
			msg.ToolCalls = append(msg.ToolCalls, core.ToolCall{
				ID:   tc.ID,
				Type: "function",
				Function: core.FunctionCall{
					Name:      tc.Function.Name,
					Arguments: tc.Function.Arguments,
				},
			})
		}

		out.Choices = append(out.Choices, transport.Choice{
			Index:        int(ch.Index),
			Message:      msg,
			FinishReason: ch.FinishReason,
		})
	}

	if resp.JSON.Usage.Valid() {
		out.Usage = &transport.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		}
	}

	return out
}

// stream adapts an SSE chunk stream. A first-choice delta whose content is
// null or absent is the end marker.
type stream struct {
	s   *ssestream.Stream[openai.ChatCompletionChunk]
	cur transport.Delta
}

func (s *stream) Next() bool {
	for s.s.Next() {
		chunk := s.s.Current()
		if len(chunk.Choices) == 0 {
			continue
		}

		delta := chunk.Choices[0].Delta
		if !delta.JSON.Content.Valid() {
			s.cur = transport.Delta{Done: true}
			return true
		}

		s.cur = transport.Delta{Text: delta.Content}
		return true
	}

	return false
}

func (s *stream) Current() transport.Delta { return s.cur }

func (s *stream) Err() error {
	if err := s.s.Err(); err != nil {
		return fmt.Errorf("openai streaming error: %w", err)
	}
	return nil
}

func (s *stream) Close() error { return s.s.Close() }
