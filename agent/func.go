package agent

import (
	"context"

	"github.com/hupe1980/xyz/core"
)

// FuncAgentOptions configure a FuncAgent.
type FuncAgentOptions struct {
	Information *core.Information
}

// FuncAgent adapts a plain function to a named agent.
type FuncAgent struct {
	BaseAgent
	fn core.Func
}

// NewFuncAgent wraps fn. When an Information record is given, arguments are
// validated against it before fn runs.
func NewFuncAgent(name string, fn core.Func, optFns ...func(o *FuncAgentOptions)) (*FuncAgent, error) {
	opts := FuncAgentOptions{}
	for _, f := range optFns {
		f(&opts)
	}

	a := &FuncAgent{BaseAgent: NewBaseAgent(name), fn: fn}
	if opts.Information != nil {
		if err := a.SetInformation(*opts.Information); err != nil {
			return nil, err
		}
	}

	return a, nil
}

func (a *FuncAgent) String() string { return core.Structure(a) }

// Flowing implements core.Agent.
func (a *FuncAgent) Flowing(ctx context.Context, args core.Args) (any, error) {
	if a.fn == nil {
		return nil, core.ErrNotImplemented
	}
	if err := a.ValidateArgs(args); err != nil {
		return nil, err
	}
	return a.fn(ctx, args)
}
