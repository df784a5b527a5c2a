package workflow

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidGraph is the base error for all compile-time validation failures.
var ErrInvalidGraph = errors.New("invalid workflow graph")

// ErrCycleDetected is returned when a cycle is reachable from the entry node.
var ErrCycleDetected = errors.New("workflow cycle detected")

// ConfigError reports an invalid graph topology found at compile time.
type ConfigError struct {
	Reason string
}

// Error returns a human-readable description of the configuration problem.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid workflow graph: %s", e.Reason)
}

// Unwrap returns the base error for errors.Is compatibility.
func (e *ConfigError) Unwrap() error {
	return ErrInvalidGraph
}

func configErrorf(format string, args ...any) *ConfigError {
	return &ConfigError{Reason: fmt.Sprintf(format, args...)}
}

// CycleError provides the path of a cycle reachable from the entry node.
type CycleError struct {
	Path []string
}

// Error returns a human-readable description of the cycle.
func (e *CycleError) Error() string {
	return fmt.Sprintf("workflow cycle detected: %s", strings.Join(e.Path, " -> "))
}

// Unwrap returns the base error for errors.Is compatibility.
func (e *CycleError) Unwrap() error {
	return ErrCycleDetected
}
