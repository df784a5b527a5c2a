// Package tools provides the tool registry the agent nodes call into.
// Each tool is a named handler with a small argument schema; execution is
// instrumented so tool latency and failure rates show up in metrics.
package tools

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/voyagent-dev/voyagent/pkg/observability"
)

// Args carries tool call arguments.
type Args map[string]any

// String returns the named argument as a string, or "" if absent.
func (a Args) String(key string) string {
	if v, ok := a[key].(string); ok {
		return v
	}
	return ""
}

// Int returns the named argument as an int, or 0 if absent. JSON-decoded
// numbers arrive as float64 and are accepted.
func (a Args) Int(key string) int {
	switch v := a[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return 0
}

// Handler executes a tool call.
type Handler func(ctx context.Context, args Args) (any, error)

// Tool is a named capability the agent can invoke.
type Tool struct {
	Name        string
	Description string
	Handler     Handler
}

// Registry holds the tools available to the agent.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool. Registering a duplicate name is an error.
func (r *Registry) Register(t Tool) error {
	if t.Name == "" {
		return fmt.Errorf("tool name is required")
	}
	if t.Handler == nil {
		return fmt.Errorf("tool %q has no handler", t.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[t.Name]; exists {
		return fmt.Errorf("tool %q already registered", t.Name)
	}
	r.tools[t.Name] = t
	return nil
}

// Names returns the registered tool names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Execute runs the named tool and records its outcome.
func (r *Registry) Execute(ctx context.Context, name string, args Args) (any, error) {
	r.mu.RLock()
	tool, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown tool %q", name)
	}

	start := time.Now()
	result, err := tool.Handler(ctx, args)
	status := "success"
	if err != nil {
		status = "error"
	}
	observability.RecordToolCall(name, status, time.Since(start))

	if err != nil {
		return nil, fmt.Errorf("tool %q: %w", name, err)
	}
	return result, nil
}
