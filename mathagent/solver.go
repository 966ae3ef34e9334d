package mathagent

import (
	"context"
	"maps"

	"github.com/hupe1980/xyz/agent"
	"github.com/hupe1980/xyz/core"
	"github.com/hupe1980/xyz/internal/util"
	"github.com/hupe1980/xyz/logging"
)

// SolverOptions configure a Solver.
type SolverOptions struct {
	// Template names the embedded prompt to use. Defaults to TemplateSolution.
	Template string
	// Params are generation parameters sent with every call.
	Params map[string]any
	Logger logging.Logger
}

type solveParams struct {
	Question string `json:"question" description:"The math problem to solve."`
}

// Solver asks a model for a worked solution and returns its JSON answer block.
type Solver struct {
	agent.BaseAgent
	llm    *agent.LLMAgent
	logger logging.Logger
}

// NewSolver creates a Solver dispatching through client.
func NewSolver(client agent.Completer, optFns ...func(o *SolverOptions)) (*Solver, error) {
	opts := SolverOptions{
		Template: TemplateSolution,
		Params:   map[string]any{"temperature": 0.0, "top_p": 0.8},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.Logger = logging.OrNoOp(opts.Logger)

	tmpl, err := Prompt(opts.Template)
	if err != nil {
		return nil, err
	}

	llm, err := agent.NewLLMAgent(opts.Template, tmpl, client, func(o *agent.LLMAgentOptions) {
		o.Params = maps.Clone(opts.Params)
		o.Logger = opts.Logger
	})
	if err != nil {
		return nil, err
	}

	s := &Solver{BaseAgent: agent.NewBaseAgent("math_solver"), llm: llm, logger: opts.Logger}

	if err := s.SetInformation(core.Information{
		Type: "function",
		Function: core.FunctionDefinition{
			Name:        "math_solver",
			Description: "Solves a math problem step by step and returns the JSON answer block.",
			Parameters:  util.ParametersFromStruct(solveParams{}),
		},
	}); err != nil {
		return nil, err
	}

	if err := s.AddSubAgent("llm", llm); err != nil {
		return nil, err
	}

	return s, nil
}

// String renders the agent tree.
func (s *Solver) String() string { return core.Structure(s) }

// Flowing implements core.Agent. It expects a "question" argument.
func (s *Solver) Flowing(ctx context.Context, args core.Args) (any, error) {
	if err := s.ValidateArgs(args); err != nil {
		return nil, err
	}

	question, err := args.String("question")
	if err != nil {
		return nil, err
	}

	return s.Solve(ctx, question)
}

// Solve returns the fenced JSON block of the model answer, or the raw answer
// when it has none.
func (s *Solver) Solve(ctx context.Context, question string) (string, error) {
	text, err := core.CallAs[string](ctx, s.llm, core.Args{"question": question})
	if err != nil {
		return "", err
	}

	if block, ok := ExtractFencedJSON(text); ok {
		return block, nil
	}

	s.logger.Debug("mathagent.solve.unfenced", "length", len(text))

	return text, nil
}
