package jsonl

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"sync"
)

// maxLineSize bounds a single record; model answers can be long.
const maxLineSize = 16 << 20

// Record is one decoded line.
type Record[T any] struct {
	ID    string
	Value T
}

// Reader decodes records line by line. Blank lines are skipped.
type Reader[T any] struct {
	sc   *bufio.Scanner
	line int
	cur  Record[T]
	err  error
}

// NewReader creates a Reader over r.
func NewReader[T any](r io.Reader) *Reader[T] {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return &Reader[T]{sc: sc}
}

// Next advances to the next record. It returns false at the end of input or
// on the first error.
func (r *Reader[T]) Next() bool {
	if r.err != nil {
		return false
	}

	for r.sc.Scan() {
		r.line++

		data := bytes.TrimSpace(r.sc.Bytes())
		if len(data) == 0 {
			continue
		}

		rec, err := decodeLine[T](data)
		if err != nil {
			r.err = fmt.Errorf("line %d: %w", r.line, err)
			return false
		}

		r.cur = rec
		return true
	}

	r.err = r.sc.Err()

	return false
}

// Record returns the current record.
func (r *Reader[T]) Record() Record[T] { return r.cur }

// Line returns the line number of the current record.
func (r *Reader[T]) Line() int { return r.line }

// Err returns the first error encountered.
func (r *Reader[T]) Err() error { return r.err }

// All iterates the remaining records. A decode error is yielded once and
// ends the sequence.
func (r *Reader[T]) All() iter.Seq2[Record[T], error] {
	return func(yield func(Record[T], error) bool) {
		for r.Next() {
			if !yield(r.cur, nil) {
				return
			}
		}
		if r.err != nil {
			yield(Record[T]{}, r.err)
		}
	}
}

// ReadAll decodes every record of r.
func ReadAll[T any](r io.Reader) ([]Record[T], error) {
	var out []Record[T]

	for rec, err := range NewReader[T](r).All() {
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}

	return out, nil
}

func decodeLine[T any](data []byte) (Record[T], error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return Record[T]{}, err
	}

	if len(obj) != 1 {
		return Record[T]{}, fmt.Errorf("expected exactly one key per line, got %d", len(obj))
	}

	var (
		id  string
		raw json.RawMessage
	)
	for id, raw = range obj {
	}

	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return Record[T]{}, fmt.Errorf("record %q: %w", id, err)
	}

	return Record[T]{ID: id, Value: v}, nil
}

// Writer encodes records one per line. It is safe for concurrent use.
type Writer[T any] struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewWriter creates a Writer over w.
func NewWriter[T any](w io.Writer) *Writer[T] {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return &Writer[T]{enc: enc}
}

// Write encodes {id: value} followed by a newline.
func (w *Writer[T]) Write(id string, value T) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.enc.Encode(map[string]T{id: value})
}
