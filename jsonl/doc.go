// Package jsonl reads and writes the line-delimited record files exchanged by
// the batch harnesses. Every line is a JSON object with exactly one key, the
// problem ID, mapping to the record value:
//
//	{"prob-1": {"question": "...", "answer": "4", "label": "Algebra", "level": 2}}
//
// Truth, Prediction and Result model the three files of a benchmark run.
package jsonl
