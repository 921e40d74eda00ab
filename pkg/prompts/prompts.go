// Package prompts renders the natural-language policies handed to the
// reasoning service by the turn selector and the termination evaluator.
package prompts

import (
	"bytes"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig"
	"github.com/pkg/errors"

	"github.com/go-go-golems/palaver/pkg/turns"
)

// Agent is the view of a registered agent available to policy templates.
type Agent struct {
	Name        string
	Description string
}

// PolicyData is the data a selection or termination policy is rendered with.
// The reduced history is also sent as chat messages, so policies only need to
// embed it when they quote it.
type PolicyData struct {
	Agents []Agent
	// History is the reduced history, one "speaker: text" line per turn
	History string
	// LastSpeaker and LastMessage describe the newest turn of History
	LastSpeaker string
	LastMessage string
	// Extra carries scenario-specific values from the roster
	Extra map[string]string
}

// AgentNames returns the agent names joined by ", ".
func (d PolicyData) AgentNames() string {
	names := make([]string, 0, len(d.Agents))
	for _, a := range d.Agents {
		names = append(names, a.Name)
	}
	return strings.Join(names, ", ")
}

func NewPolicyData(agents []Agent, history []turns.Turn, extra map[string]string) PolicyData {
	ret := PolicyData{
		Agents:  agents,
		History: FormatHistory(history),
		Extra:   extra,
	}
	if len(history) > 0 {
		last := history[len(history)-1]
		ret.LastSpeaker = last.Speaker
		ret.LastMessage = last.Text()
	}
	return ret
}

// FormatHistory renders turns the way policy prompts expect them.
func FormatHistory(history []turns.Turn) string {
	var buf bytes.Buffer
	turns.FprintLog(&buf, history, turns.WithToolDetail(false))
	return strings.TrimRight(buf.String(), "\n")
}

// Template is a parsed policy template.
type Template struct {
	name string
	tmpl *template.Template
}

// Parse parses text as a text/template with the sprig function map.
func Parse(name, text string) (*Template, error) {
	t, err := template.New(name).Funcs(sprig.TxtFuncMap()).Option("missingkey=zero").Parse(text)
	if err != nil {
		return nil, errors.Wrapf(err, "could not parse template %s", name)
	}
	return &Template{name: name, tmpl: t}, nil
}

func MustParse(name, text string) *Template {
	t, err := Parse(name, text)
	if err != nil {
		panic(err)
	}
	return t
}

func (t *Template) Name() string {
	return t.name
}

func (t *Template) Render(data any) (string, error) {
	var buf bytes.Buffer
	if err := t.tmpl.Execute(&buf, data); err != nil {
		return "", errors.Wrapf(err, "could not render template %s", t.name)
	}
	return strings.TrimSpace(buf.String()), nil
}

// DefaultSelectionPolicy asks for the next agent by name.
const DefaultSelectionPolicy = `Determine which participant takes the next turn in the conversation based on the most recent message.
State only the name of the participant to take the next turn.
{{- if .Extra.allow_end }}
If the conversation is finished, answer with "end".
{{- end }}

Participants:
{{- range .Agents }}
- {{ .Name }}{{ if .Description }}: {{ .Description }}{{ end }}
{{- end }}`

// DefaultTerminationPolicy asks whether the conversation reached its goal.
const DefaultTerminationPolicy = `Examine the conversation and determine whether the task is complete.
If it is complete, respond with a single word without explanation: true.
Otherwise respond with: false.`
