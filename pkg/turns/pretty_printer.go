package turns

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// PrettyPrinter renders Turns in a configurable human-friendly way.
type PrettyPrinter struct {
	IncludeSeq        bool
	IncludeToolDetail bool
	IndentSpaces      int
	MaxTextLines      int // 0 => unlimited
}

// PrintOption configures a PrettyPrinter.
type PrintOption func(*PrettyPrinter)

// WithSeq toggles inclusion of sequence numbers.
func WithSeq(include bool) PrintOption { return func(p *PrettyPrinter) { p.IncludeSeq = include } }

// WithToolDetail toggles inclusion of tool args/result details.
func WithToolDetail(include bool) PrintOption {
	return func(p *PrettyPrinter) { p.IncludeToolDetail = include }
}

// WithIndent sets the number of spaces used for indentation.
func WithIndent(spaces int) PrintOption { return func(p *PrettyPrinter) { p.IndentSpaces = spaces } }

// WithMaxTextLines limits how many lines of text to print for message bodies (0 = unlimited).
func WithMaxTextLines(n int) PrintOption { return func(p *PrettyPrinter) { p.MaxTextLines = n } }

func NewPrettyPrinter(opts ...PrintOption) *PrettyPrinter {
	p := &PrettyPrinter{
		IncludeToolDetail: true,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// FprintLog prints a sequence of turns using an ephemeral PrettyPrinter.
func FprintLog(w io.Writer, log []Turn, opts ...PrintOption) {
	pp := NewPrettyPrinter(opts...)
	for i := range log {
		pp.FprintTurn(w, &log[i])
	}
}

// FprintTurn emits a human-readable rendering of a Turn, prefixed by its speaker.
func (p *PrettyPrinter) FprintTurn(w io.Writer, t *Turn) {
	if t == nil {
		return
	}
	pad := strings.Repeat(" ", p.IndentSpaces)
	label := t.Speaker
	if p.IncludeSeq {
		label = fmt.Sprintf("[%d] %s", t.Seq, t.Speaker)
	}
	if text := t.Text(); text != "" {
		_, _ = fmt.Fprintf(w, "%s%s: %s\n", pad, label, p.clip(text))
	}
	if !p.IncludeToolDetail {
		return
	}
	for _, b := range t.Blocks {
		switch b.Kind {
		case BlockKindToolCall:
			args, _ := json.Marshal(b.ToolCall.Arguments)
			_, _ = fmt.Fprintf(w, "%s  -> %s(%s)\n", pad, b.ToolCall.Name, string(args))
		case BlockKindToolUse:
			if b.ToolUse.Error != "" {
				_, _ = fmt.Fprintf(w, "%s  <- %s failed: %s\n", pad, b.ToolUse.Name, b.ToolUse.Error)
			} else {
				_, _ = fmt.Fprintf(w, "%s  <- %s: %s\n", pad, b.ToolUse.Name, p.clip(b.ToolUse.Result))
			}
		case BlockKindText:
		}
	}
}

func (p *PrettyPrinter) clip(s string) string {
	if p.MaxTextLines <= 0 {
		return s
	}
	lines := strings.Split(s, "\n")
	if len(lines) <= p.MaxTextLines {
		return s
	}
	return strings.Join(lines[:p.MaxTextLines], "\n") + "\n…"
}
