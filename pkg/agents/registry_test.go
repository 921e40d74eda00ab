package agents

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func triage() Descriptor {
	return Descriptor{Name: "TriageAgent", Instructions: "Analysiere das Ticket."}
}

func TestRegistry_RegisterAndResolve(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(triage()))
	require.NoError(t, r.Register(Descriptor{
		Name:         "ResponseAgent",
		Instructions: "Antworte höflich.",
		Capabilities: []string{"send_email"},
	}))

	d, err := r.Resolve("ResponseAgent")
	require.NoError(t, err)
	assert.True(t, d.Allows("send_email"))
	assert.False(t, d.Allows("lookup_employee"))
	assert.Equal(t, []string{"TriageAgent", "ResponseAgent"}, r.Names())
}

func TestRegistry_DuplicateAgent(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(triage()))

	err := r.Register(triage())
	var dup *DuplicateAgentError
	require.True(t, errors.As(err, &dup))
	assert.Equal(t, "TriageAgent", dup.Name)
}

func TestRegistry_UnknownAgent(t *testing.T) {
	r := NewRegistry()
	_, err := r.Resolve("Nobody")
	require.Error(t, err)
	assert.True(t, IsUnknownAgent(err))
	assert.False(t, r.Has("Nobody"))
}

func TestRegistry_SealRejectsRegistration(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(triage()))
	r.Seal()

	err := r.Register(Descriptor{Name: "Late", Instructions: "x"})
	require.ErrorIs(t, err, ErrRegistrySealed)
	assert.True(t, r.Sealed())
	assert.True(t, r.Has("TriageAgent"))
}

func TestRegistry_ValidatesDescriptors(t *testing.T) {
	r := NewRegistry()
	require.Error(t, r.Register(Descriptor{Name: "", Instructions: "x"}))
	require.Error(t, r.Register(Descriptor{Name: "has space", Instructions: "x"}))
	require.Error(t, r.Register(Descriptor{Name: "NoInstructions"}))
	require.Error(t, r.Register(Descriptor{Name: "EmptyCap", Instructions: "x", Capabilities: []string{""}}))
	assert.Empty(t, r.Names())
}

func TestRegistry_ResolveReturnsCopy(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(Descriptor{Name: "a", Instructions: "x", Capabilities: []string{"c"}}))

	d, err := r.Resolve("a")
	require.NoError(t, err)
	d.Capabilities[0] = "changed"

	d2, err := r.Resolve("a")
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, d2.Capabilities)
}
