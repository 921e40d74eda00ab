package events

import (
	"context"

	"github.com/rs/zerolog/log"
)

// EventSink is a destination for conversation events.
type EventSink interface {
	PublishEvent(event Event) error
}

type ctxKey int

const (
	ctxKeyEventSinks ctxKey = iota
	ctxKeySessionID
)

// WithSessionID records the session events published under ctx belong to.
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, ctxKeySessionID, sessionID)
}

func SessionIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeySessionID).(string); ok {
		return v
	}
	return ""
}

// MetadataFromContext creates metadata for agent in the session of ctx.
func MetadataFromContext(ctx context.Context, agent string) EventMetadata {
	return NewMetadata(SessionIDFromContext(ctx), agent)
}

// WithEventSinks attaches sinks to the context, after any sinks already present.
func WithEventSinks(ctx context.Context, sinks ...EventSink) context.Context {
	if len(sinks) == 0 {
		return ctx
	}
	existing := GetEventSinks(ctx)
	combined := append([]EventSink{}, existing...)
	combined = append(combined, sinks...)
	return context.WithValue(ctx, ctxKeyEventSinks, combined)
}

// WithoutEventSinks detaches all sinks, for calls that are not part of the
// transcript.
func WithoutEventSinks(ctx context.Context) context.Context {
	return context.WithValue(ctx, ctxKeyEventSinks, []EventSink(nil))
}

func GetEventSinks(ctx context.Context) []EventSink {
	if v := ctx.Value(ctxKeyEventSinks); v != nil {
		if sinks, ok := v.([]EventSink); ok {
			return sinks
		}
	}
	return nil
}

// PublishEventToContext publishes event to every sink in ctx. Sink errors are
// logged and otherwise ignored.
func PublishEventToContext(ctx context.Context, event Event) {
	sinks := GetEventSinks(ctx)
	if len(sinks) == 0 {
		return
	}
	for _, sink := range sinks {
		if err := sink.PublishEvent(event); err != nil {
			log.Warn().Err(err).Str("event_type", string(event.Type())).Msg("Failed to publish event")
		}
	}
}

// SinkFunc adapts a function to EventSink.
type SinkFunc func(event Event) error

func (f SinkFunc) PublishEvent(event Event) error {
	return f(event)
}
