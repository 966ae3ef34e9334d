package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"iter"
	"os"
	"strings"

	"github.com/hupe1980/xyz/agent"
	"github.com/hupe1980/xyz/batch"
	"github.com/hupe1980/xyz/core"
	"github.com/hupe1980/xyz/mathagent"
)

func (e *env) flagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(e.stderr)
	return fs
}

func (e *env) solve(ctx context.Context, args []string) error {
	fs := e.flagSet("solve")
	tmplName := fs.String("template", mathagent.TemplateSolution, "prompt template: "+strings.Join(mathagent.TemplateNames(), ", "))
	stream := fs.Bool("stream", false, "print the model output as it arrives")

	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	question := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if question == "" {
		return errors.New("solve: a question is required")
	}

	client, err := e.client()
	if err != nil {
		return err
	}

	if *stream {
		tmpl, err := mathagent.Prompt(*tmplName)
		if err != nil {
			return err
		}

		llm, err := agent.NewLLMAgent(*tmplName, tmpl, client, func(o *agent.LLMAgentOptions) {
			o.Stream = true
			o.Logger = e.logger
		})
		if err != nil {
			return err
		}

		seq, err := core.CallAs[iter.Seq2[string, error]](ctx, llm, core.Args{"question": question})
		if err != nil {
			return err
		}

		for text, err := range seq {
			if err != nil {
				return err
			}
			fmt.Fprint(e.stdout, text)
		}
		fmt.Fprintln(e.stdout)

		return nil
	}

	solver, err := mathagent.NewSolver(client, func(o *mathagent.SolverOptions) {
		o.Template = *tmplName
		o.Logger = e.logger
	})
	if err != nil {
		return err
	}

	answer, err := solver.Solve(ctx, question)
	if err != nil {
		return err
	}

	fmt.Fprintln(e.stdout, answer)

	return nil
}

func (e *env) grade(ctx context.Context, args []string) error {
	fs := e.flagSet("grade")
	question := fs.String("question", "", "the problem statement")
	truth := fs.String("true", "", "the reference answer")
	prediction := fs.String("prediction", "", "the answer to grade")

	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	if *question == "" || *truth == "" || *prediction == "" {
		return errors.New("grade: -question, -true and -prediction are required")
	}

	client, err := e.client()
	if err != nil {
		return err
	}

	evaluator, err := mathagent.NewEvaluator(client, func(o *mathagent.EvaluatorOptions) { o.Logger = e.logger })
	if err != nil {
		return err
	}

	ok, err := evaluator.Grade(ctx, *question, *truth, *prediction)
	if err != nil {
		return err
	}

	if ok {
		fmt.Fprintln(e.stdout, "1")
	} else {
		fmt.Fprintln(e.stdout, "0")
	}

	return nil
}

func (e *env) generate(ctx context.Context, args []string) error {
	fs := e.flagSet("generate")
	truthPath := fs.String("truth", "", "truth JSONL file")
	outPath := fs.String("out", "", "predictions JSONL file to write")
	tmplName := fs.String("template", mathagent.TemplateSolution, "prompt template")
	resume := fs.Bool("resume", false, "append to -out, skipping problems it already holds")

	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	if *truthPath == "" || *outPath == "" {
		return errors.New("generate: -truth and -out are required")
	}

	client, err := e.client()
	if err != nil {
		return err
	}

	solver, err := mathagent.NewSolver(client, func(o *mathagent.SolverOptions) {
		o.Template = *tmplName
		o.Logger = e.logger
	})
	if err != nil {
		return err
	}

	var done map[string]bool
	flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	if *resume {
		if done, err = completedIDs(*outPath); err != nil {
			return err
		}
		flags = os.O_CREATE | os.O_WRONLY | os.O_APPEND
	}

	truth, err := os.Open(*truthPath)
	if err != nil {
		return err
	}
	defer truth.Close() //nolint:errcheck

	out, err := os.OpenFile(*outPath, flags, 0o644)
	if err != nil {
		return err
	}

	sum, err := batch.Generate(ctx, solver, truth, out, e.batchOptions(func(o *batch.Options) { o.Done = done }))
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(e.stdout, "generated %d predictions (%d failed, %d skipped) into %s\n", sum.Processed, sum.Failed, sum.Skipped, *outPath)

	return nil
}

func (e *env) evaluate(ctx context.Context, args []string) error {
	fs := e.flagSet("evaluate")
	truthPath := fs.String("truth", "", "truth JSONL file")
	predPath := fs.String("predictions", "", "predictions JSONL file")
	outPath := fs.String("out", "", "results JSONL file to write")

	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	if *truthPath == "" || *predPath == "" || *outPath == "" {
		return errors.New("evaluate: -truth, -predictions and -out are required")
	}

	client, err := e.client()
	if err != nil {
		return err
	}

	evaluator, err := mathagent.NewEvaluator(client, func(o *mathagent.EvaluatorOptions) { o.Logger = e.logger })
	if err != nil {
		return err
	}

	truth, err := os.Open(*truthPath)
	if err != nil {
		return err
	}
	defer truth.Close() //nolint:errcheck

	preds, err := os.Open(*predPath)
	if err != nil {
		return err
	}
	defer preds.Close() //nolint:errcheck

	out, err := os.Create(*outPath)
	if err != nil {
		return err
	}

	sum, err := batch.Evaluate(ctx, evaluator, truth, preds, out, e.batchOptions())
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(e.stdout, "graded %d predictions (%d failed, %d missing) into %s\n", sum.Processed, sum.Failed, sum.Skipped, *outPath)

	return nil
}

func (e *env) batchOptions(extra ...func(o *batch.Options)) func(o *batch.Options) {
	return func(o *batch.Options) {
		o.Delay = e.cfg.Batch.Delay
		o.ContinueOnError = e.cfg.Batch.ContinueOnError
		o.Logger = e.logger
		for _, fn := range extra {
			fn(o)
		}
	}
}

// completedIDs returns the IDs of the predictions already in path, none when
// it does not exist.
func completedIDs(path string) (map[string]bool, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close() //nolint:errcheck

	done, err := batch.CompletedIDs(f)
	if err != nil {
		return nil, fmt.Errorf("resume %s: %w", path, err)
	}

	return done, nil
}
