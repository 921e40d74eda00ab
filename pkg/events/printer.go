package events

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/charmbracelet/glamour"
	"github.com/mattn/go-isatty"
	"github.com/muesli/termenv"
)

type printerSettings struct {
	profile     termenv.Profile
	markdown    *glamour.TermRenderer
	toolDetails bool
	showRouting bool
}

type PrinterOption func(*printerSettings)

func WithColorProfile(profile termenv.Profile) PrinterOption {
	return func(s *printerSettings) {
		s.profile = profile
	}
}

// WithMarkdown buffers agent messages and renders them with r once final.
func WithMarkdown(r *glamour.TermRenderer) PrinterOption {
	return func(s *printerSettings) {
		s.markdown = r
	}
}

// WithToolDetails toggles printing capability calls and results.
func WithToolDetails(show bool) PrinterOption {
	return func(s *printerSettings) {
		s.toolDetails = show
	}
}

// WithRouting toggles printing selection and handoff decisions.
func WithRouting(show bool) PrinterOption {
	return func(s *printerSettings) {
		s.showRouting = show
	}
}

func NewMarkdownRenderer() (*glamour.TermRenderer, error) {
	return glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
}

// ProfileFor returns the color profile of w when it is a terminal and Ascii
// otherwise.
func ProfileFor(w io.Writer) termenv.Profile {
	if f, ok := w.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		return termenv.NewOutput(f).ColorProfile()
	}
	return termenv.Ascii
}

// ConsolePrinterFunc returns a handler printing agent messages the way a chat
// transcript reads: the speaker name once per message, then the streamed text.
func ConsolePrinterFunc(w io.Writer, options ...PrinterOption) func(msg *message.Message) error {
	s := &printerSettings{
		profile:     ProfileFor(w),
		toolDetails: true,
	}
	for _, o := range options {
		o(s)
	}

	isNew := true
	var buf strings.Builder

	name := func(agent string) string {
		return s.profile.String(agent).Foreground(s.profile.Color("12")).Bold().String()
	}
	dim := func(text string) string {
		return s.profile.String(text).Faint().String()
	}
	// endLine closes a streamed message that is still open
	endLine := func() error {
		if isNew {
			return nil
		}
		isNew = true
		_, err := fmt.Fprintln(w)
		return err
	}

	return func(msg *message.Message) error {
		defer msg.Ack()

		e, err := NewEventFromJson(msg.Payload)
		if err != nil {
			return err
		}
		agent := e.Metadata().Agent

		switch p_ := e.(type) {
		case *EventPartialCompletion:
			if s.markdown != nil {
				buf.WriteString(p_.Delta)
				return nil
			}
			if isNew {
				isNew = false
				if _, err := fmt.Fprintf(w, "%s: ", name(agent)); err != nil {
					return err
				}
			}
			_, err = fmt.Fprint(w, p_.Delta)
			return err

		case *EventFinal:
			if s.markdown != nil {
				text := buf.String()
				buf.Reset()
				if strings.TrimSpace(text) == "" {
					return nil
				}
				rendered, err := s.markdown.Render(text)
				if err != nil {
					rendered = text + "\n"
				}
				_, err = fmt.Fprintf(w, "%s:\n%s", name(agent), rendered)
				return err
			}
			return endLine()

		case *EventToolCall:
			if !s.toolDetails {
				return nil
			}
			if err := endLine(); err != nil {
				return err
			}
			_, err = fmt.Fprintf(w, "%s: Calling '%s' with arguments '%s'\n", name(agent), p_.ToolCall.Name, p_.ToolCall.Input)
			return err

		case *EventToolResult:
			if !s.toolDetails {
				return nil
			}
			if err := endLine(); err != nil {
				return err
			}
			if p_.ToolResult.Error != "" {
				_, err = fmt.Fprintf(w, "%s: Call to '%s' failed: %s\n", name(agent), p_.ToolResult.Name, p_.ToolResult.Error)
				return err
			}
			_, err = fmt.Fprintf(w, "%s: Result from '%s' is '%s'\n", name(agent), p_.ToolResult.Name, p_.ToolResult.Result)
			return err

		case *EventSelection:
			if !s.showRouting || !p_.Fallback {
				return nil
			}
			if err := endLine(); err != nil {
				return err
			}
			_, err = fmt.Fprintln(w, dim(fmt.Sprintf("[selection fell back to %s]", p_.Agent)))
			return err

		case *EventHandoff:
			if !s.showRouting {
				return nil
			}
			if err := endLine(); err != nil {
				return err
			}
			line := fmt.Sprintf("[handoff %s -> %s]", p_.From, p_.To)
			if !p_.Accepted {
				line = fmt.Sprintf("[handoff %s -> %s rejected: %s]", p_.From, p_.To, p_.Reason)
			}
			_, err = fmt.Fprintln(w, dim(line))
			return err

		case *EventCompleted:
			if err := endLine(); err != nil {
				return err
			}
			_, err = fmt.Fprintln(w, dim(fmt.Sprintf("[task completed: %s]", p_.Summary)))
			return err

		case *EventError:
			if err := endLine(); err != nil {
				return err
			}
			_, err = fmt.Fprintln(w, dim(fmt.Sprintf("[error: %s]", p_.ErrorString)))
			return err

		case *EventInterrupt:
			buf.Reset()
			if err := endLine(); err != nil {
				return err
			}
			_, err = fmt.Fprintln(w, dim("[interrupted]"))
			return err

		case *EventLog:
			level := p_.Level
			if level == "" {
				level = "info"
			}
			if err := endLine(); err != nil {
				return err
			}
			_, err = fmt.Fprintln(w, dim(fmt.Sprintf("[%s] %s", level, p_.Message)))
			return err

		case *EventPartialCompletionStart:
		}

		return nil
	}
}
