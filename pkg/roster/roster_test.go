package roster

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/palaver/pkg/agents"
	"github.com/go-go-golems/palaver/pkg/driver"
	"github.com/go-go-golems/palaver/pkg/inference/scripted"
	"github.com/go-go-golems/palaver/pkg/messagestore"
	"github.com/go-go-golems/palaver/pkg/metrics"
	"github.com/go-go-golems/palaver/pkg/turns"
)

func speakers(ts []turns.Turn) []string {
	var ret []string
	for _, t := range ts {
		ret = append(ret, t.Speaker)
	}
	return ret
}

// newScenarioDriver builds a bundled scenario on its own script.
func newScenarioDriver(t *testing.T, name string) (*Session, *driver.Driver, *bytes.Buffer) {
	r, err := Scenario(name)
	require.NoError(t, err)
	script, err := r.Script()
	require.NoError(t, err)
	require.NotNil(t, script)

	var console bytes.Buffer
	s, err := r.Build(Deps{
		Service: scripted.NewEngine(script),
		Console: &console,
		Metrics: metrics.New(),
	})
	require.NoError(t, err)
	d := driver.New(messagestore.NewMemoryStore(), s.Registry, s.Strategy, s.DriverOptions()...)
	return s, d, &console
}

func TestScenarios_AllParse(t *testing.T) {
	assert.Equal(t, []string{"handoff", "support", "travel"}, Scenarios())
	for _, name := range Scenarios() {
		r, err := Scenario(name)
		require.NoError(t, err, name)
		assert.Equal(t, name, r.Name)
		script, err := r.Script()
		require.NoError(t, err, name)
		assert.NotNil(t, script, name)
	}

	_, err := Scenario("nope")
	assert.ErrorContains(t, err, "available: handoff, support, travel")
}

func TestParse_Defaults(t *testing.T) {
	r, err := Parse([]byte(`
name: mini
mode: selector
agents:
  - name: A
    instructions: a
selection: {}
termination: {}
`))
	require.NoError(t, err)
	assert.Equal(t, SelectionPrompt, r.Selection.Strategy)
	assert.Equal(t, TerminationPrompt, r.Termination.Strategy)

	script, err := r.Script()
	require.NoError(t, err)
	assert.Nil(t, script)
}

func TestParse_Rejects(t *testing.T) {
	cases := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "missing selection",
			yaml: "name: x\nmode: selector\nagents: [{name: A, instructions: a}]\n",
			want: "needs a selection section",
		},
		{
			name: "missing handoff",
			yaml: "name: x\nmode: handoff\nagents: [{name: A, instructions: a}]\n",
			want: "needs a handoff section",
		},
		{
			name: "unknown mode",
			yaml: "name: x\nmode: swarm\nagents: [{name: A, instructions: a}]\n",
			want: "invalid roster",
		},
		{
			name: "no agents",
			yaml: "name: x\nmode: selector\nselection: {}\n",
			want: "invalid roster",
		},
		{
			name: "bad agent name",
			yaml: "name: x\nmode: selector\nagents: [{name: 'A B', instructions: a}]\nselection: {}\n",
			want: "invalid agent descriptor",
		},
		{
			name: "duplicate agent",
			yaml: "name: x\nmode: selector\nagents: [{name: A, instructions: a}, {name: A, instructions: b}]\nselection: {}\n",
			want: "already registered",
		},
		{
			name: "unknown initial agent",
			yaml: "name: x\nmode: selector\nagents: [{name: A, instructions: a}]\nselection: {initial_agent: B}\n",
			want: `initial_agent: unknown agent "B"`,
		},
		{
			name: "sequence without order",
			yaml: "name: x\nmode: selector\nagents: [{name: A, instructions: a}]\nselection: {strategy: sequence}\n",
			want: "invalid roster",
		},
		{
			name: "unknown edge",
			yaml: "name: x\nmode: handoff\nagents: [{name: A, instructions: a}]\nhandoff: {entry: A, edges: [{from: A, to: B}]}\n",
			want: `handoff edge: unknown agent "B"`,
		},
		{
			name: "hook capability not listed",
			yaml: "name: x\nmode: selector\nagents: [{name: A, instructions: a}]\nselection: {}\nhooks: [{after: A, capability: send_email}]\n",
			want: "hook capability send_email is not listed by A",
		},
		{
			name: "turn limit without max",
			yaml: "name: x\nmode: selector\nagents: [{name: A, instructions: a}]\nselection: {}\ntermination: {strategy: turn_limit}\n",
			want: "needs max_agent_turns",
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := Parse([]byte(c.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), c.want)
		})
	}
}

func TestBuild_RejectsUnknownCapability(t *testing.T) {
	r, err := Parse([]byte("name: x\nmode: selector\nagents: [{name: A, instructions: a, capabilities: [teleport]}]\nselection: {}\n"))
	require.NoError(t, err)
	_, err = r.Build(Deps{Service: scripted.NewEngine(nil)})
	assert.ErrorContains(t, err, "agent A lists unknown capability teleport")
}

func TestBuild_HandoffGraphUsesRegistry(t *testing.T) {
	r, err := Scenario("handoff")
	require.NoError(t, err)
	s, err := r.Build(Deps{Service: scripted.NewEngine(nil)})
	require.NoError(t, err)
	require.NotNil(t, s.Router)
	assert.Equal(t, "TriageAgent", s.Router.Active())
	assert.True(t, s.Router.Graph().Adjacent("TriageAgent", "RefundAgent"))
	assert.False(t, s.Router.Graph().Adjacent("RefundAgent", "OrderStatusAgent"))
	assert.True(t, s.Registry.Has("OrderReturnAgent"))
}

func TestSupportScenario(t *testing.T) {
	_, d, console := newScenarioDriver(t, "support")
	ctx := context.Background()

	out, err := d.Submit(ctx, "Mein Drucker druckt seit gestern nicht mehr")
	require.NoError(t, err)
	assert.Equal(t, []string{"TriageAgent", "KnowledgeAgent", "ResponseAgent"}, speakers(out.Turns))
	assert.False(t, out.Completed)
	assert.Contains(t, out.Turns[0].Text(), "Kategorie: Technisch")

	// the hook's email call is recorded in the ResponseAgent turn
	response := out.Turns[2]
	var calls []string
	for _, b := range response.Blocks {
		if b.Kind == turns.BlockKindToolCall {
			calls = append(calls, b.ToolCall.Name)
		}
	}
	assert.Equal(t, []string{"send_email"}, calls)
	assert.Contains(t, console.String(), "--- Mock Email Sending ---")
	assert.Contains(t, console.String(), "To: customer@example.com")
	assert.Contains(t, console.String(), "Subject: Ihre Support Anfrage")

	// the next input goes through the selector, which picks triage for user turns
	out, err = d.Submit(ctx, "Und meine Rechnung fehlt auch")
	require.NoError(t, err)
	assert.Equal(t, []string{"TriageAgent", "KnowledgeAgent", "ResponseAgent"}, speakers(out.Turns))
	assert.Contains(t, out.Turns[0].Text(), "Kategorie: Rechnung")
}

func TestTravelScenario(t *testing.T) {
	_, d, console := newScenarioDriver(t, "travel")
	ctx := context.Background()

	out, err := d.Submit(ctx, "Ich muss Dienstag bis Freitag nach München")
	require.NoError(t, err)
	// the policy check comes before the research
	assert.Equal(t, []string{
		"orchestrierungs_agent",
		"policy_pruefungs_agent",
		"recherche_agent",
		"orchestrierungs_agent",
	}, speakers(out.Turns))
	assert.False(t, out.Completed)
	assert.Contains(t, out.Turns[3].Text(), "Sollen Flug LH 2032")

	out, err = d.Submit(ctx, "Ja, bitte buchen")
	require.NoError(t, err)
	assert.Equal(t, []string{"buchungs_agent"}, speakers(out.Turns))
	assert.True(t, out.Completed)
	assert.Contains(t, out.Turns[0].Text(), "Buchung bestätigt")
	assert.Contains(t, console.String(), "Subject: Buchungsbestätigung")

	// completion ends the input, not the session
	assert.False(t, d.Done())
}

func TestTravelScenario_HRLookup(t *testing.T) {
	_, d, _ := newScenarioDriver(t, "travel")
	ctx := context.Background()

	_, err := d.Submit(ctx, "Ich muss Dienstag bis Freitag nach München")
	require.NoError(t, err)
	out, err := d.Submit(ctx, "Welche Reiseklasse steht mir zu?")
	require.NoError(t, err)
	require.NotEmpty(t, out.Turns)
	assert.Equal(t, "hr_agent", out.Turns[0].Speaker)
	assert.Contains(t, out.Turns[0].Text(), "Max Mustermann")
}

func TestHandoffScenario(t *testing.T) {
	s, d, console := newScenarioDriver(t, "handoff")
	ctx := context.Background()

	out, err := d.Submit(ctx, s.Roster.Opening)
	require.NoError(t, err)
	require.Len(t, out.Turns, 1)
	assert.Equal(t, "Hello! How can I assist you today?", out.Turns[0].Text())

	out, err = d.Submit(ctx, "I'd like to track the status of my order")
	require.NoError(t, err)
	assert.Equal(t, []string{"TriageAgent", "OrderStatusAgent"}, speakers(out.Turns))
	assert.Equal(t, "Could you please provide me with your order ID?", out.Turns[1].Text())
	assert.Equal(t, "OrderStatusAgent", s.Router.Active())

	out, err = d.Submit(ctx, "My order ID is 123")
	require.NoError(t, err)
	require.Len(t, out.Turns, 1)
	assert.Contains(t, out.Turns[0].Text(), "Order 123 is shipped and will arrive in 2-3 days.")

	out, err = d.Submit(ctx, "I want to return another order of mine")
	require.NoError(t, err)
	assert.Equal(t, []string{"OrderStatusAgent", "TriageAgent", "OrderReturnAgent"}, speakers(out.Turns))
	assert.Equal(t, "OrderReturnAgent", s.Router.Active())

	out, err = d.Submit(ctx, "Order ID 321 because of a broken item")
	require.NoError(t, err)
	assert.True(t, out.Completed)
	assert.Equal(t, "Return for order 321 has been processed successfully.", out.Summary)
	assert.Contains(t, console.String(), "Processing return for order 321 due to: a broken item")
	assert.True(t, d.Done())

	_, err = d.Submit(ctx, "hello?")
	assert.ErrorIs(t, err, driver.ErrSessionCompleted)

	require.NoError(t, d.Reset(ctx))
	assert.Equal(t, "TriageAgent", s.Router.Active())
	assert.False(t, d.Done())
}

func TestRoster_Capabilities(t *testing.T) {
	r := &Roster{Agents: []agents.Descriptor{
		{Name: "A", Capabilities: []string{"send_email", "lookup_employee"}},
		{Name: "B", Capabilities: []string{"send_email"}},
	}}
	assert.Equal(t, []string{"send_email", "lookup_employee"}, r.Capabilities())
}
