package selection

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-go-golems/palaver/pkg/agents"
)

// ParseError reports a selection completion that names no known agent.
type ParseError struct {
	Raw    string
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("could not parse selection %q: %s: %v", e.Raw, e.Reason, e.Err)
	}
	return fmt.Sprintf("could not parse selection %q: %s", e.Raw, e.Reason)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

var labels = []string{"next agent", "next speaker", "next", "agent", "participant", "selected", "selection", "answer", "response"}

// ParseSelection extracts one agent name from a selection completion.
//
// List-like completions yield their first element. Quotes, backticks,
// emphasis, trailing punctuation and a leading label such as "Next:" are
// stripped. Names match case-insensitively and are returned in their
// registered spelling. "end" yields EndToken.
func ParseSelection(raw string, names []string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", &ParseError{Raw: raw, Reason: "empty completion"}
	}

	s = firstElement(s)
	s = stripLabel(s)
	s = strings.Trim(s, " \t\"'`*_")
	s = strings.TrimRight(s, ".!?;:")
	s = strings.Trim(s, " \t\"'`*_")
	if s == "" {
		return "", &ParseError{Raw: raw, Reason: "no name in completion"}
	}

	if strings.EqualFold(s, EndToken) {
		return EndToken, nil
	}
	for _, name := range names {
		if strings.EqualFold(s, name) {
			return name, nil
		}
	}
	return "", &ParseError{Raw: raw, Reason: "unknown agent", Err: &agents.UnknownAgentError{Name: s}}
}

func firstElement(s string) string {
	if strings.HasPrefix(s, "[") {
		var list []any
		if err := json.Unmarshal([]byte(s), &list); err == nil {
			if len(list) == 0 {
				return ""
			}
			return fmt.Sprint(list[0])
		}
		s = strings.TrimSuffix(strings.TrimPrefix(s, "["), "]")
	}
	for _, part := range strings.FieldsFunc(s, func(r rune) bool {
		return r == '\n' || r == ',' || r == ';'
	}) {
		// a part holding only a label, as in "Next agent:\nX", is skipped
		p := stripLabel(strings.TrimLeft(strings.TrimSpace(part), "-• "))
		if strings.Trim(p, " \t\"'`*_") != "" {
			return p
		}
	}
	return ""
}

func stripLabel(s string) string {
	idx := strings.Index(s, ":")
	if idx < 0 {
		return s
	}
	label := strings.ToLower(strings.Trim(s[:idx], " \t*_`\"'"))
	for _, l := range labels {
		if label == l {
			return strings.TrimSpace(s[idx+1:])
		}
	}
	return s
}
