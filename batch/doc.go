// Package batch runs the math benchmark harnesses over JSONL files.
//
// Generate asks a solver agent for every problem of a truth file and writes
// one prediction per line. Evaluate grades those predictions with an
// evaluator agent and writes one result per line. Both process records
// strictly one after another, pausing for Options.Delay between model calls.
package batch
