package events

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type EventType string

const (
	// EventTypeStart to EventTypeFinal frame one agent message
	EventTypeStart             EventType = "start"
	EventTypePartialCompletion EventType = "partial"
	EventTypeFinal             EventType = "final"

	// capability calls made while producing a message
	EventTypeToolCall   EventType = "tool-call"
	EventTypeToolResult EventType = "tool-result"

	// coordination events emitted by the driver
	EventTypeSelection EventType = "selection"
	EventTypeHandoff   EventType = "handoff"
	EventTypeCompleted EventType = "completed"

	EventTypeError     EventType = "error"
	EventTypeInterrupt EventType = "interrupt"
	EventTypeLog       EventType = "log"
)

type Event interface {
	Type() EventType
	Metadata() EventMetadata
	Payload() []byte
}

type EventImpl struct {
	Type_     EventType     `json:"type"`
	Metadata_ EventMetadata `json:"meta,omitempty"`

	// store payload if the event was deserialized from JSON (see NewEventFromJson), not further used
	payload []byte
}

func (e *EventImpl) MarshalZerologObject(ev *zerolog.Event) {
	ev.Str("type", string(e.Type_))
	ev.Object("meta", e.Metadata_)
}

func (e *EventImpl) Type() EventType {
	return e.Type_
}

func (e *EventImpl) Metadata() EventMetadata {
	return e.Metadata_
}

func (e *EventImpl) Payload() []byte {
	return e.payload
}

var _ Event = &EventImpl{}

func newImpl(t EventType, metadata EventMetadata) EventImpl {
	return EventImpl{Type_: t, Metadata_: metadata}
}

type EventPartialCompletionStart struct {
	EventImpl
}

func NewStartEvent(metadata EventMetadata) *EventPartialCompletionStart {
	return &EventPartialCompletionStart{EventImpl: newImpl(EventTypeStart, metadata)}
}

type EventPartialCompletion struct {
	EventImpl
	Delta string `json:"delta"`
	// Completion is the text accumulated so far
	Completion string `json:"completion"`
}

func NewPartialCompletionEvent(metadata EventMetadata, delta string, completion string) *EventPartialCompletion {
	return &EventPartialCompletion{
		EventImpl:  newImpl(EventTypePartialCompletion, metadata),
		Delta:      delta,
		Completion: completion,
	}
}

type EventFinal struct {
	EventImpl
	Text string `json:"text"`
}

func NewFinalEvent(metadata EventMetadata, text string) *EventFinal {
	return &EventFinal{EventImpl: newImpl(EventTypeFinal, metadata), Text: text}
}

type ToolCall struct {
	ID    string `json:"id" yaml:"id"`
	Name  string `json:"name" yaml:"name"`
	Input string `json:"input" yaml:"input"`
}

type EventToolCall struct {
	EventImpl
	ToolCall ToolCall `json:"tool_call"`
}

func NewToolCallEvent(metadata EventMetadata, toolCall ToolCall) *EventToolCall {
	return &EventToolCall{EventImpl: newImpl(EventTypeToolCall, metadata), ToolCall: toolCall}
}

type ToolResult struct {
	ID     string `json:"id" yaml:"id"`
	Name   string `json:"name" yaml:"name"`
	Result string `json:"result,omitempty" yaml:"result,omitempty"`
	Error  string `json:"error,omitempty" yaml:"error,omitempty"`
}

type EventToolResult struct {
	EventImpl
	ToolResult ToolResult `json:"tool_result"`
}

func NewToolResultEvent(metadata EventMetadata, toolResult ToolResult) *EventToolResult {
	return &EventToolResult{EventImpl: newImpl(EventTypeToolResult, metadata), ToolResult: toolResult}
}

type EventSelection struct {
	EventImpl
	Agent    string `json:"agent"`
	Fallback bool   `json:"fallback,omitempty"`
	End      bool   `json:"end,omitempty"`
	Raw      string `json:"raw,omitempty"`
}

func NewSelectionEvent(metadata EventMetadata, agent string, fallback bool, end bool, raw string) *EventSelection {
	return &EventSelection{
		EventImpl: newImpl(EventTypeSelection, metadata),
		Agent:     agent,
		Fallback:  fallback,
		End:       end,
		Raw:       raw,
	}
}

type EventHandoff struct {
	EventImpl
	From     string `json:"from"`
	To       string `json:"to"`
	Accepted bool   `json:"accepted"`
	Reason   string `json:"reason,omitempty"`
}

func NewHandoffEvent(metadata EventMetadata, from, to string, accepted bool, reason string) *EventHandoff {
	return &EventHandoff{
		EventImpl: newImpl(EventTypeHandoff, metadata),
		From:      from,
		To:        to,
		Accepted:  accepted,
		Reason:    reason,
	}
}

type EventCompleted struct {
	EventImpl
	Summary string `json:"summary,omitempty"`
}

func NewCompletedEvent(metadata EventMetadata, summary string) *EventCompleted {
	return &EventCompleted{EventImpl: newImpl(EventTypeCompleted, metadata), Summary: summary}
}

type EventError struct {
	EventImpl
	ErrorString string `json:"error_string"`
}

func NewErrorEvent(metadata EventMetadata, err error) *EventError {
	return &EventError{EventImpl: newImpl(EventTypeError, metadata), ErrorString: err.Error()}
}

type EventInterrupt struct {
	EventImpl
	Text string `json:"text"`
}

func NewInterruptEvent(metadata EventMetadata, text string) *EventInterrupt {
	return &EventInterrupt{EventImpl: newImpl(EventTypeInterrupt, metadata), Text: text}
}

type EventLog struct {
	EventImpl
	Level   string                 `json:"level"`
	Message string                 `json:"message"`
	Fields  map[string]interface{} `json:"fields,omitempty"`
}

func NewLogEvent(metadata EventMetadata, level, message string, fields map[string]interface{}) *EventLog {
	return &EventLog{EventImpl: newImpl(EventTypeLog, metadata), Level: level, Message: message, Fields: fields}
}

// NewEventFromJson decodes a serialized event into its typed struct.
func NewEventFromJson(b []byte) (Event, error) {
	var hdr EventImpl
	if err := json.Unmarshal(b, &hdr); err != nil {
		return nil, err
	}

	var ret Event
	switch hdr.Type_ {
	case EventTypeStart:
		ret = &EventPartialCompletionStart{}
	case EventTypePartialCompletion:
		ret = &EventPartialCompletion{}
	case EventTypeFinal:
		ret = &EventFinal{}
	case EventTypeToolCall:
		ret = &EventToolCall{}
	case EventTypeToolResult:
		ret = &EventToolResult{}
	case EventTypeSelection:
		ret = &EventSelection{}
	case EventTypeHandoff:
		ret = &EventHandoff{}
	case EventTypeCompleted:
		ret = &EventCompleted{}
	case EventTypeError:
		ret = &EventError{}
	case EventTypeInterrupt:
		ret = &EventInterrupt{}
	case EventTypeLog:
		ret = &EventLog{}
	default:
		return nil, fmt.Errorf("unknown event type %q", hdr.Type_)
	}
	if err := json.Unmarshal(b, ret); err != nil {
		return nil, err
	}
	if setter, ok := ret.(interface{ setPayload([]byte) }); ok {
		setter.setPayload(b)
	}
	return ret, nil
}

func (e *EventImpl) setPayload(b []byte) {
	e.payload = b
}

// NewMetadata creates metadata with a fresh event ID.
func NewMetadata(sessionID, agent string) EventMetadata {
	return EventMetadata{ID: uuid.New(), SessionID: sessionID, Agent: agent}
}
