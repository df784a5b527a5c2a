// Package workflow implements the conversation state machine: a directed
// graph of named nodes executed against a shared conversation state, with
// unconditional and conditional edges, compile-time topology validation, and
// per-session persistence of the final state.
package workflow

import (
	"context"
	"sort"

	"github.com/voyagent-dev/voyagent/internal/conversation"
)

// End is the terminal marker. Edges and router outcomes may target End to
// stop the run.
const End = "__end__"

// NodeFunc transforms a state snapshot into a partial update. Nodes must not
// mutate the snapshot; all mutation happens through the returned update.
type NodeFunc func(ctx context.Context, state *conversation.State) (*conversation.Update, error)

// RouterFunc inspects the post-merge state and returns an outcome key. The
// outcome is mapped to a target node through the path map registered with
// AddConditionalEdges.
type RouterFunc func(state *conversation.State) string

// conditionalEdge pairs a router with its outcome-to-target map.
type conditionalEdge struct {
	router  RouterFunc
	targets map[string]string
}

// Graph is a mutable workflow graph builder. Build the topology with AddNode,
// AddEdge, AddConditionalEdges, and SetEntryPoint, then call Compile to
// validate it and obtain an executable graph.
type Graph struct {
	nodes       map[string]NodeFunc
	edges       map[string]string
	conditional map[string]conditionalEdge
	entry       string
}

// NewGraph creates an empty graph.
func NewGraph() *Graph {
	return &Graph{
		nodes:       make(map[string]NodeFunc),
		edges:       make(map[string]string),
		conditional: make(map[string]conditionalEdge),
	}
}

// AddNode registers a named node.
func (g *Graph) AddNode(name string, fn NodeFunc) *Graph {
	g.nodes[name] = fn
	return g
}

// AddEdge registers an unconditional edge from one node to another node
// or to End.
func (g *Graph) AddEdge(from, to string) *Graph {
	g.edges[from] = to
	return g
}

// AddConditionalEdges registers a router on a node. After the node's update
// is merged, the router is invoked with the post-merge state and its outcome
// is resolved through targets, each of which names a registered node or End.
func (g *Graph) AddConditionalEdges(from string, router RouterFunc, targets map[string]string) *Graph {
	g.conditional[from] = conditionalEdge{router: router, targets: targets}
	return g
}

// SetEntryPoint designates the node every run starts at.
func (g *Graph) SetEntryPoint(name string) *Graph {
	g.entry = name
	return g
}

// Compile validates the topology and returns an executable graph.
// Validation rejects: a missing or unregistered entry point, edges from or to
// unregistered nodes, conditional outcomes mapped to unregistered nodes,
// nodes with no outgoing edge, nodes unreachable from the entry, and cycles
// reachable from the entry. Nodes here are not designed to loop, so any cycle
// is a configuration error.
func (g *Graph) Compile(opts ...CompileOption) (*CompiledGraph, error) {
	if g.entry == "" {
		return nil, configErrorf("no entry point set")
	}
	if _, ok := g.nodes[g.entry]; !ok {
		return nil, configErrorf("entry point %q is not a registered node", g.entry)
	}

	for from, to := range g.edges {
		if _, ok := g.nodes[from]; !ok {
			return nil, configErrorf("edge from unregistered node %q", from)
		}
		if _, ok := g.conditional[from]; ok {
			return nil, configErrorf("node %q has both an edge and conditional edges", from)
		}
		if to != End {
			if _, ok := g.nodes[to]; !ok {
				return nil, configErrorf("edge %q -> %q targets an unregistered node", from, to)
			}
		}
	}

	for from, ce := range g.conditional {
		if _, ok := g.nodes[from]; !ok {
			return nil, configErrorf("conditional edges from unregistered node %q", from)
		}
		if len(ce.targets) == 0 {
			return nil, configErrorf("node %q has conditional edges with no targets", from)
		}
		for outcome, to := range ce.targets {
			if to != End {
				if _, ok := g.nodes[to]; !ok {
					return nil, configErrorf("conditional outcome %q on node %q targets an unregistered node %q", outcome, from, to)
				}
			}
		}
	}

	for name := range g.nodes {
		_, hasEdge := g.edges[name]
		_, hasConditional := g.conditional[name]
		if !hasEdge && !hasConditional {
			return nil, configErrorf("node %q has no outgoing edge", name)
		}
	}

	if err := g.checkReachability(); err != nil {
		return nil, err
	}
	if err := g.checkCycles(); err != nil {
		return nil, err
	}

	cg := &CompiledGraph{graph: g}
	for _, opt := range opts {
		opt(cg)
	}
	return cg, nil
}

// successors returns every possible target of a node, excluding End.
func (g *Graph) successors(name string) []string {
	var out []string
	if to, ok := g.edges[name]; ok && to != End {
		out = append(out, to)
	}
	if ce, ok := g.conditional[name]; ok {
		for _, to := range ce.targets {
			if to != End {
				out = append(out, to)
			}
		}
	}
	// Deterministic traversal order for stable error messages.
	sort.Strings(out)
	return out
}

// checkReachability verifies every registered node is reachable from the
// entry by following edges and all conditional targets.
func (g *Graph) checkReachability() error {
	seen := map[string]bool{g.entry: true}
	queue := []string{g.entry}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, next := range g.successors(current) {
			if !seen[next] {
				seen[next] = true
				queue = append(queue, next)
			}
		}
	}

	var unreachable []string
	for name := range g.nodes {
		if !seen[name] {
			unreachable = append(unreachable, name)
		}
	}
	if len(unreachable) > 0 {
		sort.Strings(unreachable)
		return configErrorf("nodes unreachable from entry %q: %v", g.entry, unreachable)
	}
	return nil
}

// checkCycles detects cycles reachable from the entry using DFS with
// coloring: 0=white (unvisited), 1=gray (visiting), 2=black (visited).
func (g *Graph) checkCycles() error {
	colors := make(map[string]int)
	var stack []string

	var dfs func(name string) error
	dfs = func(name string) error {
		if colors[name] == 1 {
			cycleStart := -1
			for i, n := range stack {
				if n == name {
					cycleStart = i
					break
				}
			}
			return &CycleError{Path: append(append([]string{}, stack[cycleStart:]...), name)}
		}
		if colors[name] == 2 {
			return nil
		}

		colors[name] = 1
		stack = append(stack, name)

		for _, next := range g.successors(name) {
			if err := dfs(next); err != nil {
				return err
			}
		}

		colors[name] = 2
		stack = stack[:len(stack)-1]
		return nil
	}

	return dfs(g.entry)
}
