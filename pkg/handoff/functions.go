package handoff

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-go-golems/palaver/pkg/agents"
	"github.com/go-go-golems/palaver/pkg/capabilities"
	"github.com/go-go-golems/palaver/pkg/inference/toolloop"
	"github.com/go-go-golems/palaver/pkg/turns"
)

const (
	TransferPrefix = "transfer_to_"
	CompleteTask   = "complete_task"
)

type transferArgs struct{}

type completeArgs struct {
	TaskSummary string `json:"task_summary" jsonschema:"description=A short summary of what was done for the user"`
}

// IsControl reports whether name is a handoff control function.
func IsControl(name string) bool {
	return name == CompleteTask || strings.HasPrefix(name, TransferPrefix)
}

// Functions returns the control capabilities of agent: one transfer function
// per outgoing edge and complete_task. Their handlers act on the router on
// behalf of agent.
func (r *Router) Functions(agent string) []capabilities.Definition {
	var ret []capabilities.Definition
	for _, e := range r.graph.Targets(agent) {
		to := e.To
		description := e.Description
		if description == "" {
			description = fmt.Sprintf("Transfer the conversation to %s.", to)
		}
		ret = append(ret, capabilities.New[transferArgs](TransferPrefix+to, description,
			func(context.Context, transferArgs) (any, error) {
				if err := r.Transfer(agent, to); err != nil {
					return nil, err
				}
				return fmt.Sprintf("Transferred to %s.", to), nil
			}))
	}
	ret = append(ret, capabilities.New[completeArgs](CompleteTask,
		"Complete the task when the user's request has been fully handled.",
		func(_ context.Context, in completeArgs) (any, error) {
			if err := r.Complete(agent, in.TaskSummary); err != nil {
				return nil, err
			}
			return "Task completed.", nil
		}))
	return ret
}

// Dispatcher layers the control functions over inner.
func (r *Router) Dispatcher(inner capabilities.Dispatcher) capabilities.Dispatcher {
	return &controlDispatcher{router: r, inner: inner}
}

// StopAfterControl ends an agent invocation once a control function
// succeeded.
var StopAfterControl toolloop.StopFunc = func(call turns.ToolCall, res capabilities.Result) bool {
	return IsControl(call.Name) && !res.Failed()
}

type controlDispatcher struct {
	router *Router
	inner  capabilities.Dispatcher
}

func (d *controlDispatcher) Specs(agent agents.Descriptor) ([]capabilities.Spec, error) {
	var ret []capabilities.Spec
	if d.inner != nil {
		specs, err := d.inner.Specs(agent)
		if err != nil {
			return nil, err
		}
		ret = append(ret, specs...)
	}
	for _, def := range d.router.Functions(agent.Name) {
		ret = append(ret, def.Spec())
	}
	return ret, nil
}

func (d *controlDispatcher) Dispatch(ctx context.Context, agent agents.Descriptor, call turns.ToolCall) (res capabilities.Result) {
	if !IsControl(call.Name) {
		if d.inner == nil {
			return capabilities.Result{
				ID:   call.ID,
				Name: call.Name,
				Err:  capabilities.NewCapabilityError(call.Name, capabilities.ErrorTypeNotFound, "no capability named %q", call.Name),
			}
		}
		return d.inner.Dispatch(ctx, agent, call)
	}

	start := time.Now()
	res = capabilities.Result{ID: call.ID, Name: call.Name}
	defer func() { res.Duration = time.Since(start) }()

	for _, def := range d.router.Functions(agent.Name) {
		if def.Name != call.Name {
			continue
		}
		args := call.Arguments
		if args == nil {
			args = map[string]any{}
		}
		out, err := def.Handler(ctx, args)
		if err != nil {
			typ := capabilities.ErrorTypeValidation
			if IsNotAdjacent(err) {
				typ = capabilities.ErrorTypeRejected
			}
			res.Err = capabilities.NewCapabilityError(call.Name, typ, "%s", err.Error())
			return res
		}
		res.Output = fmt.Sprint(out)
		return res
	}

	// a transfer along an edge that does not exist
	to := strings.TrimPrefix(call.Name, TransferPrefix)
	err := d.router.Transfer(agent.Name, to)
	if err == nil {
		res.Output = fmt.Sprintf("Transferred to %s.", to)
		return res
	}
	res.Err = capabilities.NewCapabilityError(call.Name, capabilities.ErrorTypeRejected, "%s", err.Error())
	return res
}
