package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/hupe1980/xyz/config"
	"github.com/hupe1980/xyz/logging"
)

const usage = `xyz - templated LLM agents and math benchmark harnesses

Usage: xyz [flags] <command> [command flags] [args]

Flags:
  -config string     YAML configuration file (default ./xyz.yaml when present)
  -env string        .env file (default ./.env when present)
  -provider string   Override backend.provider (openai, anthropic, netmind)
  -model string      Override backend.model
  -log-level string  Override log.level (debug, info, warn, error)

Commands:
  solve     [-template name] [-stream] <question>   Solve one problem and print the answer
  grade     -question q -true t -prediction p        Grade one prediction, prints 1 or 0
  generate  -truth file -out file [-template name] [-resume]
                                                     Solve every problem of a truth file
  evaluate  -truth file -predictions file -out file  Grade a predictions file

Environment:
  XYZ_<SECTION>_<KEY> overrides any setting, e.g. XYZ_RETRY_MAX_ATTEMPTS=3.
  OPENAI_API_KEY, ANTHROPIC_API_KEY and NETMIND_POWER_KEY supply credentials.
`

var errUsage = errors.New("usage")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, errUsage) {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(1)
	}
}

// env carries what every command needs.
type env struct {
	cfg    *config.Config
	logger logging.Logger
	stdout io.Writer
	stderr io.Writer
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("xyz", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { fmt.Fprint(stderr, usage) }

	configFile := fs.String("config", "", "YAML configuration file")
	envFile := fs.String("env", "", ".env file")
	provider := fs.String("provider", "", "backend provider")
	model := fs.String("model", "", "backend model")
	logLevel := fs.String("log-level", "", "log level")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return errUsage
	}

	if fs.NArg() == 0 {
		fs.Usage()
		return errUsage
	}

	overrides := map[string]any{}
	for key, value := range map[string]string{
		"backend.provider": *provider,
		"backend.model":    *model,
		"log.level":        *logLevel,
	} {
		if value != "" {
			overrides[key] = value
		}
	}

	cfg, err := config.Load(func(o *config.LoadOptions) {
		o.ConfigFile = *configFile
		o.EnvFile = *envFile
		o.Overrides = overrides
	})
	if err != nil {
		return err
	}

	e := &env{
		cfg: cfg,
		logger: logging.New(logging.Config{
			Level:  logging.ParseLevel(cfg.Log.Level),
			Format: cfg.Log.Format,
			Output: stderr,
		}),
		stdout: stdout,
		stderr: stderr,
	}

	cmd, rest := fs.Arg(0), fs.Args()[1:]

	switch cmd {
	case "solve":
		return e.solve(ctx, rest)
	case "grade":
		return e.grade(ctx, rest)
	case "generate":
		return e.generate(ctx, rest)
	case "evaluate":
		return e.evaluate(ctx, rest)
	case "help", "h":
		fs.Usage()
		return nil
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n", cmd)
		fs.Usage()
		return errUsage
	}
}
