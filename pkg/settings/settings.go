// Package settings holds the configuration of the reasoning backend and of a
// chat session, decoded from viper and validated.
package settings

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

type Provider string

const (
	ProviderOpenAI   Provider = "openai"
	ProviderAzure    Provider = "azure"
	ProviderClaude   Provider = "claude"
	ProviderScripted Provider = "scripted"
)

const (
	DefaultOpenAIModel     = "gpt-4o-mini"
	DefaultClaudeModel     = "claude-3-5-sonnet-latest"
	DefaultAzureAPIVersion = "2024-06-01"
	DefaultTimeout         = 60 * time.Second
	DefaultMaxRetries      = 1
)

// Reasoning configures the backend every agent, the selector and the
// termination evaluator talk to.
type Reasoning struct {
	Provider   Provider `mapstructure:"provider" validate:"required,oneof=openai azure claude scripted"`
	Model      string   `mapstructure:"model"`
	APIKey     string   `mapstructure:"api-key"`
	BaseURL    string   `mapstructure:"base-url" validate:"omitempty,url"`
	APIVersion string   `mapstructure:"api-version"`
	// Script is the rules file of the scripted backend
	Script      string        `mapstructure:"script"`
	Timeout     time.Duration `mapstructure:"timeout" validate:"gte=0"`
	MaxRetries  int           `mapstructure:"max-retries" validate:"gte=0,lte=5"`
	Temperature *float64      `mapstructure:"temperature" validate:"omitempty,gte=0,lte=2"`
	MaxTokens   int           `mapstructure:"max-tokens" validate:"gte=0"`
}

// Chat configures one interactive session.
type Chat struct {
	Scenario       string        `mapstructure:"scenario"`
	Roster         string        `mapstructure:"roster"`
	Store          string        `mapstructure:"store" validate:"oneof=memory redis"`
	RedisAddr      string        `mapstructure:"redis-addr" validate:"required_if=Store redis"`
	RedisPassword  string        `mapstructure:"redis-password"`
	RedisDB        int           `mapstructure:"redis-db" validate:"gte=0"`
	SessionID      string        `mapstructure:"session-id"`
	SessionTTL     time.Duration `mapstructure:"session-ttl" validate:"gte=0"`
	MetricsAddr    string        `mapstructure:"metrics-addr"`
	RenderMarkdown bool          `mapstructure:"render-markdown"`
	ShowRouting    bool          `mapstructure:"show-routing"`
	DumpEvents     bool          `mapstructure:"dump-events"`
}

var validate = validator.New()

// SetDefaults registers the defaults of both settings structs on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("provider", string(ProviderOpenAI))
	v.SetDefault("timeout", DefaultTimeout)
	v.SetDefault("max-retries", DefaultMaxRetries)
	v.SetDefault("scenario", "support")
	v.SetDefault("store", "memory")
	v.SetDefault("redis-addr", "localhost:6379")
}

func ReasoningFromViper(v *viper.Viper) (*Reasoning, error) {
	ret := &Reasoning{}
	if err := v.Unmarshal(ret); err != nil {
		return nil, errors.Wrap(err, "could not decode reasoning settings")
	}
	ret.Provider = Provider(strings.ToLower(string(ret.Provider)))
	ret.applyDefaults()
	if err := ret.Validate(); err != nil {
		return nil, err
	}
	return ret, nil
}

func ChatFromViper(v *viper.Viper) (*Chat, error) {
	ret := &Chat{}
	if err := v.Unmarshal(ret); err != nil {
		return nil, errors.Wrap(err, "could not decode chat settings")
	}
	if err := validate.Struct(ret); err != nil {
		return nil, errors.Wrap(err, "invalid chat settings")
	}
	return ret, nil
}

func (r *Reasoning) applyDefaults() {
	if r.Timeout == 0 {
		r.Timeout = DefaultTimeout
	}
	if r.Model == "" {
		switch r.Provider {
		case ProviderOpenAI:
			r.Model = DefaultOpenAIModel
		case ProviderClaude:
			r.Model = DefaultClaudeModel
		case ProviderAzure, ProviderScripted:
		}
	}
	if r.Provider == ProviderAzure && r.APIVersion == "" {
		r.APIVersion = DefaultAzureAPIVersion
	}
}

// Validate checks field constraints and the per-provider requirements.
func (r *Reasoning) Validate() error {
	if err := validate.Struct(r); err != nil {
		return errors.Wrap(err, "invalid reasoning settings")
	}
	switch r.Provider {
	case ProviderOpenAI, ProviderClaude:
		if r.APIKey == "" {
			return errors.Errorf("provider %s needs an api-key", r.Provider)
		}
	case ProviderAzure:
		if r.APIKey == "" || r.BaseURL == "" || r.Model == "" {
			return errors.New("provider azure needs api-key, base-url and model (the deployment name)")
		}
	case ProviderScripted:
	}
	return nil
}
