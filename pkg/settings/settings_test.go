package settings

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newViper(values map[string]any) *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	for k, val := range values {
		v.Set(k, val)
	}
	return v
}

func TestReasoningFromViper_Defaults(t *testing.T) {
	r, err := ReasoningFromViper(newViper(map[string]any{"api-key": "sk-test"}))
	require.NoError(t, err)
	assert.Equal(t, ProviderOpenAI, r.Provider)
	assert.Equal(t, DefaultOpenAIModel, r.Model)
	assert.Equal(t, DefaultTimeout, r.Timeout)
	assert.Equal(t, 1, r.MaxRetries)
	assert.Nil(t, r.Temperature)
}

func TestReasoningFromViper_ParsesValues(t *testing.T) {
	r, err := ReasoningFromViper(newViper(map[string]any{
		"provider":    "Claude",
		"api-key":     "k",
		"timeout":     "15s",
		"max-retries": 2,
		"temperature": 0.2,
	}))
	require.NoError(t, err)
	assert.Equal(t, ProviderClaude, r.Provider)
	assert.Equal(t, DefaultClaudeModel, r.Model)
	assert.Equal(t, 15*time.Second, r.Timeout)
	assert.Equal(t, 2, r.MaxRetries)
	require.NotNil(t, r.Temperature)
	assert.InDelta(t, 0.2, *r.Temperature, 1e-9)
}

func TestReasoningFromViper_Invalid(t *testing.T) {
	for name, values := range map[string]map[string]any{
		"unknown provider":   {"provider": "ollama"},
		"missing api key":    {"provider": "openai"},
		"azure without url":  {"provider": "azure", "api-key": "k", "model": "gpt4o"},
		"too many retries":   {"provider": "scripted", "max-retries": 9},
		"invalid base url":   {"provider": "scripted", "base-url": "not a url"},
		"temperature bounds": {"provider": "scripted", "temperature": 3.5},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ReasoningFromViper(newViper(values))
			assert.Error(t, err)
		})
	}
}

func TestReasoningFromViper_Azure(t *testing.T) {
	r, err := ReasoningFromViper(newViper(map[string]any{
		"provider": "azure",
		"api-key":  "k",
		"base-url": "https://example.openai.azure.com/",
		"model":    "gpt-4o",
	}))
	require.NoError(t, err)
	assert.Equal(t, DefaultAzureAPIVersion, r.APIVersion)
}

func TestChatFromViper(t *testing.T) {
	c, err := ChatFromViper(newViper(nil))
	require.NoError(t, err)
	assert.Equal(t, "support", c.Scenario)
	assert.Equal(t, "memory", c.Store)

	_, err = ChatFromViper(newViper(map[string]any{"store": "sqlite"}))
	assert.Error(t, err)

	c, err = ChatFromViper(newViper(map[string]any{"store": "redis", "session-ttl": "1h"}))
	require.NoError(t, err)
	assert.Equal(t, time.Hour, c.SessionTTL)
}
