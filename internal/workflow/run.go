package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/voyagent-dev/voyagent/internal/conversation"
	iobs "github.com/voyagent-dev/voyagent/internal/observability"
	"github.com/voyagent-dev/voyagent/pkg/observability"
	"github.com/voyagent-dev/voyagent/pkg/session"
)

// Step records one node execution during a run: the node's name and the
// partial update it returned. The turn orchestrator derives the user-visible
// reply and the collected reasoning from these.
type Step struct {
	Node   string
	Update *conversation.Update
}

// Result is the outcome of one run: the final merged state and the ordered
// sequence of executed steps.
type Result struct {
	State *conversation.State
	Steps []Step
}

// Trajectory returns the ordered node names visited during the run.
func (r *Result) Trajectory() []string {
	names := make([]string, len(r.Steps))
	for i, s := range r.Steps {
		names[i] = s.Node
	}
	return names
}

// CompiledGraph is a validated, executable workflow graph.
type CompiledGraph struct {
	graph  *Graph
	store  session.Store
	locker *session.KeyedLocker
}

// CompileOption configures a CompiledGraph.
type CompileOption func(*CompiledGraph)

// WithStore enables per-session persistence: Run loads prior state for the
// session before executing and saves the final state afterwards. Turns for
// the same session are serialized to prevent lost updates.
func WithStore(store session.Store) CompileOption {
	return func(cg *CompiledGraph) {
		cg.store = store
		cg.locker = session.NewKeyedLocker()
	}
}

// Run executes one turn: it loads any persisted state for the session, merges
// the input update into it, steps through nodes from the entry point until
// End, and persists the final state. Routing decisions are made on the
// post-merge state, so for fixed node outputs the trajectory and final state
// are deterministic.
func (cg *CompiledGraph) Run(ctx context.Context, input *conversation.Update, sessionID string) (*Result, error) {
	ctx, span := iobs.StartSpan(ctx, "workflow.run",
		trace.WithAttributes(attribute.String("workflow.session_id", sessionID)),
	)
	defer span.End()

	if cg.store != nil {
		unlock := cg.locker.Lock(sessionID)
		defer unlock()
	}

	state, err := cg.loadState(ctx, sessionID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	state.Apply(input)

	result := &Result{State: state}

	current := cg.graph.entry
	for {
		update, err := cg.step(ctx, current, state)
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("node %q: %w", current, err)
		}
		state.Apply(update)
		result.Steps = append(result.Steps, Step{Node: current, Update: update})

		next, err := cg.next(current, state)
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
		if next == End {
			break
		}
		current = next
	}

	if cg.store != nil {
		if err := cg.store.Save(ctx, sessionID, state); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("save session %q: %w", sessionID, err)
		}
	}

	span.SetAttributes(attribute.Int("workflow.steps", len(result.Steps)))
	return result, nil
}

// loadState fetches persisted state for the session, or returns a fresh
// state for a new session. Store failures other than not-found surface as
// turn-level failures.
func (cg *CompiledGraph) loadState(ctx context.Context, sessionID string) (*conversation.State, error) {
	if cg.store == nil || sessionID == "" {
		return conversation.NewState(), nil
	}
	state, err := cg.store.Load(ctx, sessionID)
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			return conversation.NewState(), nil
		}
		return nil, fmt.Errorf("load session %q: %w", sessionID, err)
	}
	return state, nil
}

// step invokes one node with a snapshot of the current state.
func (cg *CompiledGraph) step(ctx context.Context, name string, state *conversation.State) (*conversation.Update, error) {
	ctx, span := iobs.StartSpan(ctx, "workflow.node."+name)
	defer span.End()

	start := time.Now()
	update, err := cg.graph.nodes[name](ctx, state.Clone())
	status := "ok"
	if err != nil {
		status = "error"
		span.RecordError(err)
	}
	observability.RecordNodeExecution(name, status, time.Since(start))
	return update, err
}

// next resolves the node to execute after the given one, using the
// post-merge state for conditional routing.
func (cg *CompiledGraph) next(current string, state *conversation.State) (string, error) {
	if to, ok := cg.graph.edges[current]; ok {
		return to, nil
	}

	ce := cg.graph.conditional[current]
	outcome := ce.router(state)
	target, ok := ce.targets[outcome]
	if !ok {
		return "", fmt.Errorf("router on node %q returned unmapped outcome %q", current, outcome)
	}
	return target, nil
}
