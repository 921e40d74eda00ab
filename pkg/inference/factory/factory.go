// Package factory creates the reasoning service configured in the settings.
package factory

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/palaver/pkg/inference"
	"github.com/go-go-golems/palaver/pkg/inference/claude"
	"github.com/go-go-golems/palaver/pkg/inference/openai"
	"github.com/go-go-golems/palaver/pkg/inference/scripted"
	"github.com/go-go-golems/palaver/pkg/settings"
)

// SupportedProviders lists the providers NewService accepts.
func SupportedProviders() []string {
	return []string{
		string(settings.ProviderOpenAI),
		string(settings.ProviderAzure),
		string(settings.ProviderClaude),
		string(settings.ProviderScripted),
	}
}

// NewService creates the backend of s and wraps it with the timeout and
// retry policy of s.
//
// The scripted backend reads s.Script when set and falls back to
// defaultScript, usually the script bundled with the scenario.
func NewService(s *settings.Reasoning, defaultScript *scripted.Script, options ...inference.RetryOption) (inference.Service, error) {
	if s == nil {
		return nil, errors.New("reasoning settings cannot be nil")
	}

	var backend inference.Service
	switch s.Provider {
	case settings.ProviderOpenAI, settings.ProviderAzure:
		e, err := openai.NewEngine(s)
		if err != nil {
			return nil, err
		}
		backend = e

	case settings.ProviderClaude:
		e, err := claude.NewEngine(s)
		if err != nil {
			return nil, err
		}
		backend = e

	case settings.ProviderScripted:
		script := defaultScript
		if s.Script != "" {
			var err error
			script, err = scripted.LoadScript(s.Script)
			if err != nil {
				return nil, err
			}
		}
		if script == nil {
			return nil, errors.New("the scripted provider needs a script")
		}
		backend = scripted.NewEngine(script)

	default:
		return nil, errors.Errorf("unsupported provider %s. Supported providers: %s",
			s.Provider, strings.Join(SupportedProviders(), ", "))
	}

	log.Debug().
		Str("provider", string(s.Provider)).
		Str("model", s.Model).
		Dur("timeout", s.Timeout).
		Int("max_retries", s.MaxRetries).
		Msg("Created reasoning service")

	opts := append([]inference.RetryOption{
		inference.WithTimeout(s.Timeout),
		inference.WithMaxRetries(s.MaxRetries),
	}, options...)
	return inference.WithRetry(backend, opts...), nil
}
