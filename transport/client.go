package transport

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"maps"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/hupe1980/xyz/core"
	"github.com/hupe1980/xyz/internal/util"
	"github.com/hupe1980/xyz/logging"
)

const (
	// DefaultMaxAttempts is the retry ceiling of a single call.
	DefaultMaxAttempts = 10
	// DefaultInterval is the constant pause between two attempts.
	DefaultInterval = 2 * time.Second
	// DefaultStreamIdleTimeout aborts a streaming attempt that stalls.
	DefaultStreamIdleTimeout = 5 * time.Second
)

// ErrStreamIdle is the cause of a streaming attempt cancelled because no
// delta arrived within the idle timeout.
var ErrStreamIdle = errors.New("stream idle timeout")

// Options configure a Client.
type Options struct {
	// Params are generation defaults (model, temperature, top_p, max_tokens ...)
	// sent with every request. Per-call params override them key by key.
	Params map[string]any

	MaxAttempts int
	Interval    time.Duration

	// StreamIdleTimeout cancels a streaming attempt when no delta arrives in
	// time. Zero disables the idle timer.
	StreamIdleTimeout time.Duration

	Logger logging.Logger
}

// CallOptions configure a single Run or StreamRun call.
type CallOptions struct {
	Tools  []core.Information
	Images []string
	Params map[string]any
}

// WithTools attaches tool descriptors to a call.
func WithTools(tools ...core.Information) func(o *CallOptions) {
	return func(o *CallOptions) { o.Tools = append(o.Tools, tools...) }
}

// WithImages attaches image URLs to the last message of a call.
func WithImages(urls ...string) func(o *CallOptions) {
	return func(o *CallOptions) { o.Images = append(o.Images, urls...) }
}

// WithParams overrides generation parameters for a call.
func WithParams(params map[string]any) func(o *CallOptions) {
	return func(o *CallOptions) {
		if o.Params == nil {
			o.Params = map[string]any{}
		}
		maps.Copy(o.Params, params)
	}
}

// Client dispatches requests to a Backend with bounded retries.
type Client struct {
	backend Backend
	opts    Options
}

// New creates a Client for backend.
func New(backend Backend, optFns ...func(o *Options)) *Client {
	opts := Options{
		Params:            map[string]any{},
		MaxAttempts:       DefaultMaxAttempts,
		Interval:          DefaultInterval,
		StreamIdleTimeout: DefaultStreamIdleTimeout,
		Logger:            logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	if opts.Interval < 0 {
		opts.Interval = 0
	}
	if opts.StreamIdleTimeout < 0 {
		opts.StreamIdleTimeout = 0
	}
	opts.Logger = logging.OrNoOp(opts.Logger)

	return &Client{backend: backend, opts: opts}
}

// Options returns a copy of the client configuration.
func (c *Client) Options() Options {
	out := c.opts
	out.Params = maps.Clone(c.opts.Params)
	return out
}

// Run sends messages and returns the structured completion. Every backend
// failure is retried until MaxAttempts is reached; the terminal error is a
// *core.TransportError. Context cancellation ends the call immediately.
func (c *Client) Run(ctx context.Context, messages []core.Message, optFns ...func(o *CallOptions)) (*Completion, error) {
	req, err := c.buildRequest(messages, false, optFns)
	if err != nil {
		return nil, err
	}

	c.opts.Logger.Debug("transport.request.start", "request_id", req.ID, "model", req.Model(), "messages", len(req.Messages), "tools", len(req.Tools))

	attempts := 0
	start := time.Now()

	resp, err := backoff.Retry(ctx, func() (*Completion, error) {
		attempts++

		resp, err := c.backend.Complete(ctx, req)
		if err != nil {
			return nil, c.attemptFailed(ctx, req, attempts, err)
		}

		return resp, nil
	}, c.retryOptions()...)

	logging.LogLLMCall(c.opts.Logger, req.Model(), time.Since(start), err)

	if err != nil {
		return nil, c.terminal(ctx, attempts, err)
	}

	return resp, nil
}

// StreamRun sends messages in streaming mode. The returned sequence yields
// text deltas until the backend's null delta. A failure mid-stream restarts
// the request; text already yielded is not replayed. Once retries are
// exhausted the sequence yields a single ("", err) pair and ends.
func (c *Client) StreamRun(ctx context.Context, messages []core.Message, optFns ...func(o *CallOptions)) iter.Seq2[string, error] {
	req, err := c.buildRequest(messages, true, optFns)

	return func(yield func(string, error) bool) {
		if err != nil {
			yield("", err)
			return
		}

		c.opts.Logger.Debug("transport.stream.start", "request_id", req.ID, "model", req.Model(), "messages", len(req.Messages))

		attempts := 0
		start := time.Now()

		_, rerr := backoff.Retry(ctx, func() (struct{}, error) {
			attempts++

			if err := c.streamAttempt(ctx, req, yield); err != nil {
				return struct{}{}, c.attemptFailed(ctx, req, attempts, err)
			}

			return struct{}{}, nil
		}, c.retryOptions()...)

		logging.LogLLMCall(c.opts.Logger, req.Model(), time.Since(start), rerr)

		if rerr != nil {
			yield("", c.terminal(ctx, attempts, rerr))
		}
	}
}

// streamAttempt forwards the deltas of one backend stream to yield. It
// returns nil when the stream ends normally or the consumer stops early.
func (c *Client) streamAttempt(ctx context.Context, req *Request, yield func(string, error) bool) error {
	attemptCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	stream, err := c.backend.Stream(attemptCtx, req)
	if err != nil {
		return err
	}
	defer stream.Close() //nolint:errcheck // nothing useful to do on close failure

	idle := newIdleTimer(c.opts.StreamIdleTimeout, func() { cancel(ErrStreamIdle) })
	defer idle.stop()

	for stream.Next() {
		delta := stream.Current()
		if delta.Done {
			return nil
		}

		if delta.Text == "" {
			idle.reset()
			continue
		}

		idle.stop()
		if !yield(delta.Text, nil) {
			return nil
		}
		idle.reset()
	}

	if err := stream.Err(); err != nil {
		if errors.Is(context.Cause(attemptCtx), ErrStreamIdle) {
			return fmt.Errorf("%w: %v", ErrStreamIdle, err)
		}
		return err
	}

	if errors.Is(context.Cause(attemptCtx), ErrStreamIdle) {
		return ErrStreamIdle
	}

	return nil
}

// idleTimer is a restartable timer. A zero timeout never fires.
type idleTimer struct {
	timeout time.Duration
	t       *time.Timer
}

func newIdleTimer(timeout time.Duration, fire func()) *idleTimer {
	it := &idleTimer{timeout: timeout}
	if timeout > 0 {
		it.t = time.AfterFunc(timeout, fire)
	}
	return it
}

func (it *idleTimer) reset() {
	if it.t != nil {
		it.t.Reset(it.timeout)
	}
}

func (it *idleTimer) stop() {
	if it.t != nil {
		it.t.Stop()
	}
}

func (c *Client) attemptFailed(ctx context.Context, req *Request, attempt int, err error) error {
	if ctx.Err() != nil {
		return backoff.Permanent(err)
	}

	c.opts.Logger.Warn("transport.attempt.failed",
		"request_id", req.ID,
		"attempt", attempt,
		"max_attempts", c.opts.MaxAttempts,
		"error", err.Error(),
	)

	return err
}

func (c *Client) terminal(ctx context.Context, attempts int, err error) error {
	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		err = perm.Unwrap()
	}

	if ctx.Err() != nil {
		return err
	}

	c.opts.Logger.Error("transport.request.failed", "attempts", attempts, "error", err.Error())

	return &core.TransportError{Attempts: attempts, Err: err}
}

func (c *Client) retryOptions() []backoff.RetryOption {
	return []backoff.RetryOption{
		backoff.WithBackOff(backoff.NewConstantBackOff(c.opts.Interval)),
		backoff.WithMaxTries(uint(c.opts.MaxAttempts)), //nolint:gosec // MaxAttempts is at least 1
		backoff.WithMaxElapsedTime(0),
	}
}

// buildRequest assembles the request once per dispatch. Messages are cloned
// so the caller's slice is never modified.
func (c *Client) buildRequest(messages []core.Message, stream bool, optFns []func(o *CallOptions)) (*Request, error) {
	var call CallOptions
	for _, fn := range optFns {
		fn(&call)
	}

	merged, err := mergeImages(messages, call.Images)
	if err != nil {
		return nil, err
	}

	params := maps.Clone(c.opts.Params)
	if params == nil {
		params = map[string]any{}
	}
	maps.Copy(params, call.Params)

	req := &Request{
		ID:         util.NewID(),
		Messages:   merged,
		ToolChoice: ToolChoiceNone,
		Params:     params,
		Stream:     stream,
	}

	if len(call.Tools) > 0 {
		req.Tools = core.CloneInformation(call.Tools)
		req.ToolChoice = ToolChoiceAuto
	}

	return req, nil
}

// mergeImages converts the last message into a multi-part message holding its
// original text followed by one image reference per URL, in input order.
// Earlier messages are untouched.
func mergeImages(messages []core.Message, images []string) ([]core.Message, error) {
	out := core.CloneMessages(messages)
	if len(images) == 0 {
		return out, nil
	}

	if len(out) == 0 {
		return nil, &core.ValidationError{Field: "images", Message: "images require at least one message"}
	}

	last := &out[len(out)-1]

	parts := make([]core.Part, 0, len(images)+1)
	if last.Content.IsMultipart() {
		parts = append(parts, last.Content.Parts...)
	} else {
		parts = append(parts, core.TextPart(last.Content.Text))
	}

	for _, url := range images {
		parts = append(parts, core.ImagePart(url))
	}

	last.Content = core.Parts(parts...)

	return out, nil
}
