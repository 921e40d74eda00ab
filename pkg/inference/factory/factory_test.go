package factory

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/palaver/pkg/inference"
	"github.com/go-go-golems/palaver/pkg/inference/scripted"
	"github.com/go-go-golems/palaver/pkg/settings"
	"github.com/go-go-golems/palaver/pkg/turns"
)

func TestNewService_Scripted(t *testing.T) {
	script, err := scripted.ParseScript([]byte("default_reply: Hallo"))
	require.NoError(t, err)

	svc, err := NewService(&settings.Reasoning{Provider: settings.ProviderScripted, Timeout: time.Second}, script)
	require.NoError(t, err)
	assert.IsType(t, &inference.Retrying{}, svc)

	resp, err := svc.Complete(context.Background(), inference.Request{
		Agent:   "TriageAgent",
		History: []turns.Turn{turns.NewUserTurn("Hi")},
	})
	require.NoError(t, err)
	assert.Equal(t, "Hallo", resp.Text)
}

func TestNewService_ScriptFileOverridesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "script.yaml")
	require.NoError(t, os.WriteFile(path, []byte("default_reply: from file"), 0o600))

	svc, err := NewService(&settings.Reasoning{Provider: settings.ProviderScripted, Script: path}, nil)
	require.NoError(t, err)
	resp, err := svc.Complete(context.Background(), inference.Request{Agent: "a"})
	require.NoError(t, err)
	assert.Equal(t, "from file", resp.Text)
}

func TestNewService_Errors(t *testing.T) {
	_, err := NewService(nil, nil)
	assert.Error(t, err)

	_, err = NewService(&settings.Reasoning{Provider: settings.ProviderScripted}, nil)
	assert.Error(t, err)

	_, err = NewService(&settings.Reasoning{Provider: "gemini"}, nil)
	assert.ErrorContains(t, err, "unsupported provider gemini")
}

func TestNewService_OpenAIAndClaude(t *testing.T) {
	svc, err := NewService(&settings.Reasoning{Provider: settings.ProviderOpenAI, APIKey: "sk-test", Model: "gpt-4o-mini"}, nil)
	require.NoError(t, err)
	assert.NotNil(t, svc)

	svc, err = NewService(&settings.Reasoning{Provider: settings.ProviderClaude, APIKey: "test", Model: "claude-3-5-sonnet-latest"}, nil)
	require.NoError(t, err)
	assert.NotNil(t, svc)
}
