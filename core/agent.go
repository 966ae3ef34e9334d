package core

import (
	"context"
	"fmt"
)

// Args carries the named inputs of a single agent call.
type Args map[string]any

// Agent defines the contract every callable unit in xyz implements.
//
// Flowing is the only required operation. Its inputs are named arguments and
// its result is arbitrary: a string, a structured payload or a lazy text
// sequence, depending on the concrete agent. Flowing has no default
// implementation; types embedding agent.BaseAgent must provide it.
type Agent interface {
	Flowing(ctx context.Context, args Args) (any, error)
}

// Call invokes a. It forwards to Flowing without any pre- or post-processing.
func Call(ctx context.Context, a Agent, args Args) (any, error) {
	return a.Flowing(ctx, args)
}

// CallAs invokes a and asserts the result to T.
func CallAs[T any](ctx context.Context, a Agent, args Args) (T, error) {
	var zero T

	out, err := a.Flowing(ctx, args)
	if err != nil {
		return zero, err
	}

	typed, ok := out.(T)
	if !ok {
		return zero, &UnexpectedResultError{Want: fmt.Sprintf("%T", zero), Got: out}
	}

	return typed, nil
}

// Func is a functional adapter to allow ordinary functions to be used as Agents.
type Func func(ctx context.Context, args Args) (any, error)

// Flowing implements Agent.
func (f Func) Flowing(ctx context.Context, args Args) (any, error) { return f(ctx, args) }

// Unimplemented is a placeholder Agent whose processing method was never
// provided. Calling it always fails with ErrNotImplemented.
type Unimplemented struct{}

// Flowing implements Agent.
func (Unimplemented) Flowing(context.Context, Args) (any, error) {
	return nil, ErrNotImplemented
}

// String returns the string stored under key. A missing or non-string value
// is a *ValidationError.
func (a Args) String(key string) (string, error) {
	v, ok := a[key]
	if !ok || v == nil {
		return "", &ValidationError{Field: key, Message: "required argument is missing"}
	}

	s, ok := v.(string)
	if !ok {
		return "", &ValidationError{Field: key, Value: v, Message: fmt.Sprintf("expected string, got %T", v)}
	}

	return s, nil
}

// Clone returns a shallow copy of the arguments map.
func (a Args) Clone() Args {
	out := make(Args, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}
