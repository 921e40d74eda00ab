// Package scripted is an offline reasoning backend driven by YAML rules.
// It makes scenarios runnable without a language model and keeps tests
// deterministic.
package scripted

import (
	"os"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/go-go-golems/palaver/pkg/prompts"
)

// Script is an ordered list of rules. The first matching rule answers.
type Script struct {
	// DefaultReply answers requests no rule matches
	DefaultReply string `yaml:"default_reply"`
	Rules        []Rule `yaml:"rules"`
}

// Rule matches a request and produces a reply and capability calls.
//
// Rules with AfterTools only match once the turn in progress carries
// capability results; all other rules only match before that.
type Rule struct {
	Agent       string `yaml:"agent"`
	LastSpeaker string `yaml:"last_speaker"`
	Contains    string `yaml:"contains"`
	AfterTools  bool   `yaml:"after_tools"`
	// Reply is a template rendered with the request, see ReplyData
	Reply string `yaml:"reply"`
	Calls []Call `yaml:"calls"`

	tmpl *prompts.Template
}

type Call struct {
	Name      string         `yaml:"name"`
	Arguments map[string]any `yaml:"arguments"`
}

// ReplyData is what reply templates are rendered with.
type ReplyData struct {
	Agent       string
	LastSpeaker string
	// LastMessage is the newest text in the history, skipping turns that
	// only carry capability calls
	LastMessage string
	// ToolResult is the newest capability result of the turn in progress
	ToolResult string
}

func ParseScript(b []byte) (*Script, error) {
	ret := &Script{}
	if err := yaml.Unmarshal(b, ret); err != nil {
		return nil, errors.Wrap(err, "could not parse script")
	}
	for i := range ret.Rules {
		r := &ret.Rules[i]
		if r.Reply == "" && len(r.Calls) == 0 {
			return nil, errors.Errorf("rule %d has neither a reply nor calls", i)
		}
		for _, c := range r.Calls {
			if c.Name == "" {
				return nil, errors.Errorf("rule %d has a call without name", i)
			}
		}
		if strings.Contains(r.Reply, "{{") {
			t, err := prompts.Parse("rule", r.Reply)
			if err != nil {
				return nil, errors.Wrapf(err, "rule %d", i)
			}
			r.tmpl = t
		}
	}
	return ret, nil
}

func LoadScript(path string) (*Script, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "could not read script %s", path)
	}
	return ParseScript(b)
}

func (r *Rule) matches(d ReplyData, hasResults bool) bool {
	if r.AfterTools != hasResults {
		return false
	}
	if r.Agent != "" && r.Agent != "*" && !strings.EqualFold(r.Agent, d.Agent) {
		return false
	}
	if r.LastSpeaker != "" && !strings.EqualFold(r.LastSpeaker, d.LastSpeaker) {
		return false
	}
	if r.Contains != "" && !strings.Contains(strings.ToLower(d.LastMessage), strings.ToLower(r.Contains)) {
		return false
	}
	return true
}

func (r *Rule) render(d ReplyData) (string, error) {
	if r.tmpl == nil {
		return r.Reply, nil
	}
	return r.tmpl.Render(d)
}
