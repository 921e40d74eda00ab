package events

import (
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Usage represents token usage reported by a reasoning backend.
type Usage struct {
	InputTokens  int `json:"input_tokens" yaml:"input_tokens" mapstructure:"input_tokens"`
	OutputTokens int `json:"output_tokens" yaml:"output_tokens" mapstructure:"output_tokens"`
	// CachedTokens is reported by OpenAI prompt caching
	CachedTokens int `json:"cached_tokens,omitempty" yaml:"cached_tokens,omitempty" mapstructure:"cached_tokens,omitempty"`
}

// EventMetadata identifies where in a session an event was produced.
type EventMetadata struct {
	ID        uuid.UUID `json:"message_id" yaml:"message_id"`
	SessionID string    `json:"session_id,omitempty" yaml:"session_id,omitempty"`
	Agent     string    `json:"agent,omitempty" yaml:"agent,omitempty"`
	Model     string    `json:"model,omitempty" yaml:"model,omitempty"`
	Usage     *Usage    `json:"usage,omitempty" yaml:"usage,omitempty"`
}

func (em EventMetadata) MarshalZerologObject(e *zerolog.Event) {
	e.Str("message_id", em.ID.String())
	if em.SessionID != "" {
		e.Str("session_id", em.SessionID)
	}
	if em.Agent != "" {
		e.Str("agent", em.Agent)
	}
	if em.Model != "" {
		e.Str("model", em.Model)
	}
	if em.Usage != nil {
		e.Int("input_tokens", em.Usage.InputTokens)
		e.Int("output_tokens", em.Usage.OutputTokens)
	}
}
