package batch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/hupe1980/xyz/core"
	"github.com/hupe1980/xyz/internal/util"
	"github.com/hupe1980/xyz/jsonl"
	"github.com/hupe1980/xyz/logging"
)

// DefaultDelay is the pause between two model calls.
const DefaultDelay = 2 * time.Second

// Options configure a harness run.
type Options struct {
	// Delay between records. Zero disables the pause.
	Delay time.Duration
	// ContinueOnError logs and counts failed records instead of aborting.
	ContinueOnError bool
	// Done holds the IDs of truth records Generate passes over, used to
	// resume an interrupted run. See CompletedIDs.
	Done   map[string]bool
	Logger logging.Logger
}

// Summary reports what a run did.
type Summary struct {
	RunID     string
	Processed int
	Failed    int
	Skipped   int
}

// RecordError is the failure of a single record.
type RecordError struct {
	ID  string
	Err error
}

func (e *RecordError) Error() string { return fmt.Sprintf("record %s: %v", e.ID, e.Err) }

func (e *RecordError) Unwrap() error { return e.Err }

func newOptions(optFns []func(o *Options)) Options {
	opts := Options{Delay: DefaultDelay}
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.Logger = logging.OrNoOp(opts.Logger)
	return opts
}

// Generate calls solver with the question of every truth record and writes
// {id: answer} lines to out.
func Generate(ctx context.Context, solver core.Agent, truth io.Reader, out io.Writer, optFns ...func(o *Options)) (Summary, error) {
	opts := newOptions(optFns)
	sum := Summary{RunID: util.ShortID()}
	w := jsonl.NewWriter[jsonl.Prediction](out)
	log := opts.Logger

	log.Info("batch.generate.started", "run", sum.RunID, "done", len(opts.Done))

	for rec, err := range jsonl.NewReader[jsonl.Truth](truth).All() {
		if err != nil {
			return sum, err
		}

		if opts.Done[rec.ID] {
			sum.Skipped++
			continue
		}

		if sum.Processed+sum.Failed > 0 {
			if err := sleep(ctx, opts.Delay); err != nil {
				return sum, err
			}
		}

		start := time.Now()
		res, err := core.Call(ctx, solver, core.Args{"question": rec.Value.Question})
		if err == nil {
			var pred jsonl.Prediction
			if pred, err = toPrediction(res); err == nil {
				err = w.Write(rec.ID, pred)
			}
		}

		if err != nil {
			if ctx.Err() != nil || !opts.ContinueOnError {
				return sum, &RecordError{ID: rec.ID, Err: err}
			}
			sum.Failed++
			log.Warn("batch.record.failed", "run", sum.RunID, "id", rec.ID, "error", err.Error())
			continue
		}

		sum.Processed++
		log.Info("batch.record.done", "run", sum.RunID, "id", rec.ID, "duration_ms", time.Since(start).Milliseconds())
	}

	log.Info("batch.generate.completed", "run", sum.RunID, "processed", sum.Processed, "failed", sum.Failed, "skipped", sum.Skipped)

	return sum, nil
}

// CompletedIDs returns the IDs of the prediction records in r. Records that
// failed in an earlier run are absent, so resuming with them as Options.Done
// retries exactly those.
func CompletedIDs(r io.Reader) (map[string]bool, error) {
	done := map[string]bool{}
	for rec, err := range jsonl.NewReader[jsonl.Prediction](r).All() {
		if err != nil {
			return nil, err
		}
		done[rec.ID] = true
	}
	return done, nil
}

// Evaluate grades the predictions of every truth record with evaluator and
// writes result lines to out. Predictions are matched by ID; a truth record
// without a prediction is written with NoAnswer and counted as skipped
// without calling the evaluator.
func Evaluate(ctx context.Context, evaluator core.Agent, truth, predictions io.Reader, out io.Writer, optFns ...func(o *Options)) (Summary, error) {
	opts := newOptions(optFns)
	sum := Summary{RunID: util.ShortID()}
	w := jsonl.NewWriter[jsonl.Result](out)
	log := opts.Logger

	preds, err := jsonl.ReadAll[jsonl.Prediction](predictions)
	if err != nil {
		return sum, fmt.Errorf("read predictions: %w", err)
	}

	byID := make(map[string]jsonl.Prediction, len(preds))
	for _, p := range preds {
		byID[p.ID] = p.Value
	}

	log.Info("batch.evaluate.started", "run", sum.RunID, "predictions", len(byID))

	for rec, err := range jsonl.NewReader[jsonl.Truth](truth).All() {
		if err != nil {
			return sum, err
		}

		t := rec.Value
		result := jsonl.Result{True: t.Answer, Label: t.Label, Level: t.Level}

		pred, ok := byID[rec.ID]
		if !ok {
			result.Prediction = jsonl.NoAnswer
			result.IsCorrect = "0"
			result.Error = "missing prediction"
			if err := w.Write(rec.ID, result); err != nil {
				return sum, &RecordError{ID: rec.ID, Err: err}
			}
			sum.Skipped++
			log.Warn("batch.record.missing", "run", sum.RunID, "id", rec.ID)
			continue
		}

		result.Prediction = pred.Answer()

		if sum.Processed+sum.Failed > 0 {
			if err := sleep(ctx, opts.Delay); err != nil {
				return sum, err
			}
		}

		grade, err := core.CallAs[string](ctx, evaluator, core.Args{
			"question":   t.Question,
			"true":       t.AnswerText(),
			"prediction": result.Prediction,
		})
		if err != nil {
			if ctx.Err() != nil || !opts.ContinueOnError {
				return sum, &RecordError{ID: rec.ID, Err: err}
			}
			result.Error = err.Error()
			sum.Failed++
			log.Warn("batch.record.failed", "run", sum.RunID, "id", rec.ID, "error", err.Error())
		} else {
			result.IsCorrect = grade
			sum.Processed++
			log.Info("batch.record.done", "run", sum.RunID, "id", rec.ID, "is_correct", grade)
		}

		if err := w.Write(rec.ID, result); err != nil {
			return sum, &RecordError{ID: rec.ID, Err: err}
		}
	}

	log.Info("batch.evaluate.completed", "run", sum.RunID, "processed", sum.Processed, "failed", sum.Failed, "skipped", sum.Skipped)

	return sum, nil
}

func toPrediction(v any) (jsonl.Prediction, error) {
	if s, ok := v.(string); ok {
		return jsonl.NewPrediction(s), nil
	}

	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode solver result %T: %w", v, err)
	}

	return jsonl.Prediction(data), nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
