package template

import (
	"fmt"
	"strings"

	"github.com/hupe1980/xyz/core"
)

// segment is either literal text or a named placeholder.
type segment struct {
	literal string
	name    string
}

func (s segment) isPlaceholder() bool { return s.name != "" }

// parse splits text into literal and placeholder segments.
func parse(text string) ([]segment, error) {
	if !strings.ContainsAny(text, "{}") { // fast path: no placeholder markers
		return []segment{{literal: text}}, nil
	}

	var (
		segments []segment
		lit      strings.Builder
	)

	for i := 0; i < len(text); i++ {
		c := text[i]
		switch c {
		case '{':
			if i+1 < len(text) && text[i+1] == '{' {
				lit.WriteByte('{')
				i++
				continue
			}

			end := strings.IndexByte(text[i+1:], '}')
			if end < 0 {
				return nil, &core.TemplateError{Text: text, Offset: i, Message: "unclosed placeholder"}
			}

			name := text[i+1 : i+1+end]
			if err := checkName(name); err != nil {
				return nil, &core.TemplateError{Text: text, Offset: i, Message: err.Error()}
			}

			if lit.Len() > 0 {
				segments = append(segments, segment{literal: lit.String()})
				lit.Reset()
			}
			segments = append(segments, segment{name: name})
			i += end + 1
		case '}':
			if i+1 < len(text) && text[i+1] == '}' {
				lit.WriteByte('}')
				i++
				continue
			}
			return nil, &core.TemplateError{Text: text, Offset: i, Message: "single '}' encountered"}
		default:
			lit.WriteByte(c)
		}
	}

	if lit.Len() > 0 {
		segments = append(segments, segment{literal: lit.String()})
	}

	return segments, nil
}

func checkName(name string) error {
	if name == "" {
		return fmt.Errorf("positional placeholders are not supported")
	}

	for i, r := range name {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return fmt.Errorf("invalid placeholder name %q", name)
		}
	}

	return nil
}

// placeholders returns the placeholder names referenced in text, in order of appearance.
func placeholders(text string) ([]string, error) {
	segments, err := parse(text)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, s := range segments {
		if s.isPlaceholder() {
			names = append(names, s.name)
		}
	}
	return names, nil
}

// render substitutes values into text. It returns the names without a value;
// the rendered text is only meaningful when none are missing.
func render(text string, values map[string]any) (string, []string, error) {
	segments, err := parse(text)
	if err != nil {
		return "", nil, err
	}

	var (
		b       strings.Builder
		missing []string
	)

	for _, s := range segments {
		if !s.isPlaceholder() {
			b.WriteString(s.literal)
			continue
		}

		v, ok := values[s.name]
		if !ok {
			missing = append(missing, s.name)
			continue
		}
		b.WriteString(fmt.Sprint(v))
	}

	return b.String(), missing, nil
}
