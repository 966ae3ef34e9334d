package mathagent

import (
	"regexp"
	"strings"
)

var fencedJSON = regexp.MustCompile("(?s)```json(.*?)```")

// ExtractFencedJSON returns the trimmed body of the first ```json fenced
// block in text.
func ExtractFencedJSON(text string) (string, bool) {
	m := fencedJSON.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return strings.TrimSpace(m[1]), true
}
