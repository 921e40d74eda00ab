package driver

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/palaver/pkg/agents"
	"github.com/go-go-golems/palaver/pkg/capabilities"
	"github.com/go-go-golems/palaver/pkg/capabilities/builtin"
	"github.com/go-go-golems/palaver/pkg/handoff"
	"github.com/go-go-golems/palaver/pkg/inference"
	"github.com/go-go-golems/palaver/pkg/inference/scripted"
	"github.com/go-go-golems/palaver/pkg/inference/toolloop"
	"github.com/go-go-golems/palaver/pkg/messagestore"
	"github.com/go-go-golems/palaver/pkg/selection"
	"github.com/go-go-golems/palaver/pkg/termination"
	"github.com/go-go-golems/palaver/pkg/turns"
)

type turnCounter map[string]int

func (c turnCounter) ObserveTurn(speaker string) {
	c[speaker]++
}

func supportRegistry() *agents.Registry {
	return agents.NewRegistry().MustRegister(
		agents.Descriptor{Name: "TriageAgent", Instructions: "Analysiere das Ticket."},
		agents.Descriptor{Name: "KnowledgeAgent", Instructions: "Suche passende FAQ-Einträge."},
		agents.Descriptor{Name: "ResponseAgent", Instructions: "Erstelle eine Antwort.", Capabilities: []string{builtin.SendEmail}},
	)
}

// echoService answers every agent with "<agent> answers <n>".
func echoService() inference.Service {
	n := 0
	return inference.ServiceFunc(func(_ context.Context, req inference.Request) (*inference.Response, error) {
		n++
		return &inference.Response{Text: fmt.Sprintf("%s answers %d", req.Agent, n)}, nil
	})
}

func sequenceDriver(t *testing.T, svc inference.Service, rounds int, opts ...Option) (*Driver, *messagestore.MemoryStore) {
	store := messagestore.NewMemoryStore()
	strategy := &SelectorStrategy{
		Selector: selection.NewSequenceSelector([]string{"TriageAgent", "KnowledgeAgent", "ResponseAgent"}),
		Loop:     toolloop.New(svc, nil),
		Rounds:   rounds,
	}
	return New(store, supportRegistry(), strategy, opts...), store
}

func TestSubmit_Commands(t *testing.T) {
	d, store := sequenceDriver(t, echoService(), 1)
	ctx := context.Background()

	_, err := d.Submit(ctx, "  EXIT ")
	assert.ErrorIs(t, err, ErrExit)

	outcome, err := d.Submit(ctx, "   ")
	require.NoError(t, err)
	assert.Empty(t, outcome.Turns)
	n, _ := store.Len(ctx)
	assert.Equal(t, 0, n)
}

func TestReset_IsIdempotentAndKeepsSeqsIncreasing(t *testing.T) {
	d, store := sequenceDriver(t, echoService(), 1)
	ctx := context.Background()

	outcome, err := d.Submit(ctx, "Mein Drucker druckt nicht.")
	require.NoError(t, err)
	require.Len(t, outcome.Turns, 1)
	assert.Equal(t, uint64(2), outcome.Turns[0].Seq)

	_, err = d.Submit(ctx, "reset")
	require.NoError(t, err)
	_, err = d.Submit(ctx, "Reset")
	require.NoError(t, err)
	n, _ := store.Len(ctx)
	assert.Equal(t, 0, n)

	// the selection starts over at the first agent, seqs are not reused
	outcome, err = d.Submit(ctx, "Neues Ticket")
	require.NoError(t, err)
	require.Len(t, outcome.Turns, 1)
	assert.Equal(t, "TriageAgent", outcome.Turns[0].Speaker)
	assert.Equal(t, uint64(4), outcome.Turns[0].Seq)
}

func TestSelectorStrategy_Rounds(t *testing.T) {
	counter := turnCounter{}
	d, store := sequenceDriver(t, echoService(), 3, WithTurnObserver(counter))
	ctx := context.Background()

	outcome, err := d.Submit(ctx, "Die Rechnung ist falsch.")
	require.NoError(t, err)
	require.Len(t, outcome.Turns, 3)
	assert.Equal(t, "TriageAgent", outcome.Turns[0].Speaker)
	assert.Equal(t, "KnowledgeAgent", outcome.Turns[1].Speaker)
	assert.Equal(t, "ResponseAgent", outcome.Turns[2].Speaker)
	assert.Equal(t, "ResponseAgent answers 3", outcome.Turns[2].Text())

	all, err := messagestore.All(ctx, store)
	require.NoError(t, err)
	assert.Len(t, all, 4)
	assert.Equal(t, turnCounter{"user": 1, "TriageAgent": 1, "KnowledgeAgent": 1, "ResponseAgent": 1}, counter)
}

func TestSelectorStrategy_StopsOnCompletionAndEnd(t *testing.T) {
	store := messagestore.NewMemoryStore()
	strategy := &SelectorStrategy{
		Selector:  selection.NewSequenceSelector([]string{"TriageAgent", "KnowledgeAgent", "ResponseAgent"}),
		Evaluator: termination.AgentTurnLimit{Max: 2},
		Loop:      toolloop.New(echoService(), nil),
		Rounds:    3,
	}
	d := New(store, supportRegistry(), strategy)

	outcome, err := d.Submit(context.Background(), "Ticket")
	require.NoError(t, err)
	assert.Len(t, outcome.Turns, 2)
	assert.True(t, outcome.Completed)
	assert.False(t, d.Done())

	store = messagestore.NewMemoryStore()
	strategy = &SelectorStrategy{
		Selector: selection.NewSequenceSelector([]string{"TriageAgent"}, selection.WithEndAfterLast(true)),
		Loop:     toolloop.New(echoService(), nil),
		Rounds:   3,
	}
	d = New(store, agents.NewRegistry().MustRegister(agents.Descriptor{Name: "TriageAgent", Instructions: "x"}), strategy)
	outcome, err = d.Submit(context.Background(), "Ticket")
	require.NoError(t, err)
	assert.Len(t, outcome.Turns, 1)
	assert.False(t, outcome.Completed)
}

func TestSupportScenario_EmailResultIsPartOfResponseTurn(t *testing.T) {
	var console bytes.Buffer
	table := capabilities.NewTable()
	require.NoError(t, builtin.Register(table, &console))

	hook, err := NewCapabilityHook("ResponseAgent", builtin.SendEmail, map[string]string{
		"to":      "customer@example.com",
		"subject": "Ihre Support Anfrage",
		"body":    "{{ .Text }}",
	}, table)
	require.NoError(t, err)

	selector := inference.ServiceFunc(func(context.Context, inference.Request) (*inference.Response, error) {
		return &inference.Response{Text: "ResponseAgent"}, nil
	})
	responder := inference.ServiceFunc(func(context.Context, inference.Request) (*inference.Response, error) {
		return &inference.Response{Text: "Bitte starten Sie den Drucker neu."}, nil
	})

	store := messagestore.NewMemoryStore()
	registry := supportRegistry()
	strategy := &SelectorStrategy{
		Selector: selection.NewPromptSelector(selector, registry, nil),
		Loop:     toolloop.New(responder, table),
	}
	d := New(store, registry, strategy, WithHooks(hook))

	outcome, err := d.Submit(context.Background(), "Mein Drucker druckt nicht.")
	require.NoError(t, err)
	require.Len(t, outcome.Turns, 1)

	turn := outcome.Turns[0]
	assert.Equal(t, "ResponseAgent", turn.Speaker)
	assert.Equal(t, "Bitte starten Sie den Drucker neu.", turn.Text())
	require.Len(t, turn.ToolCalls(), 1)
	assert.Equal(t, "customer@example.com", turn.ToolCalls()[0].Arguments["to"])
	require.Len(t, turn.ToolUses(), 1)
	assert.Empty(t, turn.ToolUses()[0].Error)
	assert.Contains(t, turn.ToolUses()[0].Result, "customer@example.com")

	// the stored turn carries the result too
	all, err := messagestore.All(context.Background(), store)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Len(t, all[1].ToolUses(), 1)

	assert.Contains(t, console.String(), "--- Mock Email Sending ---")
	assert.Contains(t, console.String(), "Body: Bitte starten Sie den Drucker neu.")
}

func TestSubmit_ReasoningFailureCommitsNothing(t *testing.T) {
	failing := inference.ServiceFunc(func(context.Context, inference.Request) (*inference.Response, error) {
		return nil, &inference.TransportError{Agent: "TriageAgent", Attempts: 2, Err: errors.New("connection refused")}
	})
	d, store := sequenceDriver(t, failing, 1)

	outcome, err := d.Submit(context.Background(), "Hallo")
	require.Error(t, err)
	assert.True(t, inference.IsTransportError(err))
	assert.True(t, outcome.Failed)
	assert.Empty(t, outcome.Turns)

	all, _ := messagestore.All(context.Background(), store)
	require.Len(t, all, 1)
	assert.True(t, all[0].IsUser())
}

const orderScript = `
rules:
  - agent: TriageAgent
    contains: order
    calls:
      - name: transfer_to_OrderStatusAgent
  - agent: OrderStatusAgent
    contains: order id
    calls:
      - name: check_order_status
        arguments:
          order_id: '{{ regexFind "[0-9]+" .LastMessage }}'
  - agent: OrderStatusAgent
    after_tools: true
    reply: "{{ .ToolResult }}"
    calls:
      - name: complete_task
        arguments:
          task_summary: Reported the order status
  - agent: OrderStatusAgent
    reply: Could you please provide me with your order ID?
  - agent: TriageAgent
    reply: Hello! How can I assist you today?
`

func handoffDriver(t *testing.T) (*Driver, *handoff.Router) {
	script, err := scripted.ParseScript([]byte(orderScript))
	require.NoError(t, err)
	d, router, _ := handoffDriverWith(t, scripted.NewEngine(script))
	return d, router
}

func handoffDriverWith(t *testing.T, svc inference.Service, opts ...Option) (*Driver, *handoff.Router, *messagestore.MemoryStore) {
	registry := agents.NewRegistry().MustRegister(
		agents.Descriptor{Name: "TriageAgent", Instructions: "x"},
		agents.Descriptor{Name: "OrderStatusAgent", Instructions: "x", Capabilities: []string{builtin.CheckOrderStatus}},
	)
	graph, err := handoff.NewGraph(registry, "TriageAgent", []handoff.Edge{
		{From: "TriageAgent", To: "OrderStatusAgent"},
		{From: "OrderStatusAgent", To: "TriageAgent"},
	})
	require.NoError(t, err)
	router := handoff.NewRouter(graph)

	table := capabilities.NewTable()
	require.NoError(t, builtin.Register(table, &bytes.Buffer{}))

	strategy := &HandoffStrategy{
		Router:       router,
		Capabilities: table,
		Loop:         toolloop.New(svc, nil),
	}
	store := messagestore.NewMemoryStore()
	return New(store, registry, strategy, opts...), router, store
}

func TestHandoffStrategy_TransferCompleteAndReset(t *testing.T) {
	d, router := handoffDriver(t)
	ctx := context.Background()

	outcome, err := d.Submit(ctx, "I'd like to track the status of my order")
	require.NoError(t, err)
	require.Len(t, outcome.Turns, 2)
	assert.Equal(t, "TriageAgent", outcome.Turns[0].Speaker)
	assert.Equal(t, "transfer_to_OrderStatusAgent", outcome.Turns[0].ToolCalls()[0].Name)
	assert.Equal(t, "OrderStatusAgent", outcome.Turns[1].Speaker)
	assert.Equal(t, "Could you please provide me with your order ID?", outcome.Turns[1].Text())
	assert.Equal(t, "OrderStatusAgent", router.Active())

	outcome, err = d.Submit(ctx, "My order ID is 123")
	require.NoError(t, err)
	require.Len(t, outcome.Turns, 1)
	turn := outcome.Turns[0]
	assert.Equal(t, "Order 123 is shipped and will arrive in 2-3 days.", turn.Text())
	uses := turn.ToolUses()
	require.Len(t, uses, 2)
	assert.Equal(t, builtin.CheckOrderStatus, uses[0].Name)
	assert.Equal(t, handoff.CompleteTask, uses[1].Name)

	assert.True(t, outcome.Completed)
	assert.Equal(t, "Reported the order status", outcome.Summary)
	assert.True(t, d.Done())

	_, err = d.Submit(ctx, "one more thing")
	assert.ErrorIs(t, err, ErrSessionCompleted)

	_, err = d.Submit(ctx, "reset")
	require.NoError(t, err)
	assert.False(t, d.Done())
	assert.Equal(t, "TriageAgent", router.Active())

	outcome, err = d.Submit(ctx, "Hi")
	require.NoError(t, err)
	require.Len(t, outcome.Turns, 1)
	assert.Equal(t, "Hello! How can I assist you today?", outcome.Turns[0].Text())
}

// cancellingService cancels the turn after answering with call.
func cancellingService(cancel context.CancelFunc, call turns.ToolCall) inference.Service {
	return inference.ServiceFunc(func(context.Context, inference.Request) (*inference.Response, error) {
		cancel()
		return &inference.Response{ToolCalls: []turns.ToolCall{call}}, nil
	})
}

type failingHook struct{}

func (failingHook) AfterTurn(context.Context, agents.Descriptor, *turns.Turn) error {
	return errors.New("hook exploded")
}

func TestHandoffStrategy_InterruptedControlCallsAreRolledBack(t *testing.T) {
	calls := map[string]turns.ToolCall{
		"transfer": {ID: "c1", Name: handoff.TransferPrefix + "OrderStatusAgent"},
		"complete": {ID: "c2", Name: handoff.CompleteTask, Arguments: map[string]any{"task_summary": "done"}},
	}
	for name, call := range calls {
		t.Run(name, func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			d, router, store := handoffDriverWith(t, cancellingService(cancel, call))

			_, err := d.Submit(ctx, "Please help")
			require.ErrorIs(t, err, context.Canceled)

			assert.Equal(t, "TriageAgent", router.Active())
			assert.Empty(t, router.Summary())
			assert.False(t, d.Done())
			all, _ := messagestore.All(context.Background(), store)
			require.Len(t, all, 1)
			assert.True(t, all[0].IsUser())
		})
	}
}

func TestHandoffStrategy_FailedCommitIsRolledBack(t *testing.T) {
	svc := inference.ServiceFunc(func(context.Context, inference.Request) (*inference.Response, error) {
		return &inference.Response{ToolCalls: []turns.ToolCall{
			{ID: "c1", Name: handoff.CompleteTask, Arguments: map[string]any{"task_summary": "done"}},
		}}, nil
	})
	d, router, _ := handoffDriverWith(t, svc, WithHooks(failingHook{}))

	_, err := d.Submit(context.Background(), "Please help")
	require.ErrorContains(t, err, "hook exploded")
	assert.Equal(t, "TriageAgent", router.Active())
	assert.False(t, d.Done())

	_, err = d.Submit(context.Background(), "again")
	assert.NotErrorIs(t, err, ErrSessionCompleted)
}

func TestRun_REPL(t *testing.T) {
	d, _ := sequenceDriver(t, echoService(), 1, WithEcho(true), WithBanner("Support Ticket Demo"))

	var out bytes.Buffer
	err := d.Run(context.Background(), strings.NewReader("Hallo\n\nexit\nnot read\n"), &out)
	require.NoError(t, err)

	assert.Equal(t, "Support Ticket Demo\n> TriageAgent: TriageAgent answers 1\n> > ", out.String())
}

func TestRun_ReportsFailuresAndContinues(t *testing.T) {
	calls := 0
	svc := inference.ServiceFunc(func(_ context.Context, req inference.Request) (*inference.Response, error) {
		calls++
		if calls == 1 {
			return nil, errors.New("service unavailable")
		}
		return &inference.Response{Text: "ok"}, nil
	})
	d, _ := sequenceDriver(t, svc, 1, WithEcho(true))

	var out bytes.Buffer
	require.NoError(t, d.Run(context.Background(), strings.NewReader("eins\nzwei\n"), &out))

	assert.Contains(t, out.String(), "[run failed: agent TriageAgent failed: service unavailable]")
	assert.Contains(t, out.String(), "TriageAgent: ok")
	assert.True(t, strings.HasSuffix(out.String(), "> \n"))
}

func TestRun_Opening(t *testing.T) {
	d, _ := handoffDriver(t)
	d.opening = "Greet the customer who is reaching out for support."
	d.echo = true

	var out bytes.Buffer
	require.NoError(t, d.Run(context.Background(), strings.NewReader(""), &out))
	assert.Equal(t, "TriageAgent: Hello! How can I assist you today?\n> \n", out.String())
}
