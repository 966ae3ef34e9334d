package jsonl

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// NoAnswer stands in for predictions without a usable answer.
const NoAnswer = "No answer provided."

// Truth is a reference problem.
type Truth struct {
	Question string `json:"question"`
	Answer   any    `json:"answer"`
	Label    string `json:"label,omitempty"`
	Level    any    `json:"level,omitempty"`
}

// AnswerText renders the reference answer as text.
func (t Truth) AnswerText() string {
	return text(t.Answer)
}

// Prediction is a model answer as stored by the generate harness: either a
// JSON object with an "answer" field or a string holding such an object.
type Prediction json.RawMessage

// MarshalJSON implements json.Marshaler.
func (p Prediction) MarshalJSON() ([]byte, error) {
	if len(p) == 0 {
		return []byte("null"), nil
	}
	return []byte(p), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (p *Prediction) UnmarshalJSON(data []byte) error {
	*p = append((*p)[:0], data...)
	return nil
}

// Answer extracts the predicted answer. Strings are unwrapped from a ```json
// fence and parsed leniently, so the trailing commas models tend to emit do
// not lose the answer. A string that is valid JSON without an answer field is
// returned as is; anything unusable yields NoAnswer.
func (p Prediction) Answer() string {
	raw := bytes.TrimSpace(p)
	if len(raw) == 0 {
		return NoAnswer
	}

	v := gjson.ParseBytes(raw)

	switch {
	case v.IsObject():
		if a := v.Get("answer"); a.Exists() {
			return a.String()
		}
		return NoAnswer
	case v.Type == gjson.String:
		return answerFromText(v.String())
	case v.Type == gjson.Null:
		return NoAnswer
	default:
		return v.Raw
	}
}

func answerFromText(s string) string {
	body := strings.TrimSpace(s)
	if rest, ok := strings.CutPrefix(body, "```json"); ok {
		body = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(rest), "```"))
	}

	if !strings.HasPrefix(body, "{") {
		return NoAnswer
	}

	if a := gjson.Get(body, "answer"); a.Exists() {
		return a.String()
	}

	if gjson.Valid(body) {
		return s
	}

	return NoAnswer
}

// NewPrediction stores text as a JSON string prediction.
func NewPrediction(text string) Prediction {
	data, _ := json.Marshal(text)
	return Prediction(data)
}

// Result is one graded prediction.
type Result struct {
	True       any    `json:"true"`
	Prediction string `json:"prediction"`
	IsCorrect  string `json:"is_correct"`
	Label      string `json:"label,omitempty"`
	Level      any    `json:"level,omitempty"`
	Error      string `json:"error,omitempty"`
}

func text(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		data, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(data)
	}
}
