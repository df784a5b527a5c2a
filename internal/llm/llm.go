// Package llm provides structured-output calls against chat completion
// providers. Nodes never talk to a provider directly; they go through the
// Provider interface so tests can substitute scripted results.
package llm

import (
	"context"
	"fmt"

	"github.com/voyagent-dev/voyagent/internal/conversation"
)

// IntentResult is the structured classification of the latest user turn.
type IntentResult struct {
	Intent                conversation.Intent `json:"intent"`
	Confidence            float64             `json:"confidence"`
	Reasoning             string              `json:"reasoning"`
	ClarificationQuestion string              `json:"clarification_question"`
}

// Provider is the model-facing surface the workflow nodes depend on.
type Provider interface {
	// ClassifyIntent returns the intent of the conversation so far.
	// A malformed or out-of-range model response yields a *ValidationError.
	ClassifyIntent(ctx context.Context, systemPrompt string, msgs []conversation.Message) (*IntentResult, error)

	// ExtractPreferences pulls preference fields for the given kind out of
	// the conversation. Missing fields are left empty, never invented.
	ExtractPreferences(ctx context.Context, systemPrompt string, msgs []conversation.Message, kind conversation.PreferenceKind) (conversation.Preferences, error)
}

// ValidationError reports a model response that did not conform to the
// requested schema. Callers decide whether this is recoverable.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("structured output validation failed: field %q: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("structured output validation failed: %s", e.Reason)
}

func validateIntentResult(r *IntentResult) error {
	if !r.Intent.Valid() {
		return &ValidationError{Field: "intent", Reason: fmt.Sprintf("unknown intent %q", string(r.Intent))}
	}
	if r.Confidence < 0 || r.Confidence > 1 {
		return &ValidationError{Field: "confidence", Reason: fmt.Sprintf("out of range: %v", r.Confidence)}
	}
	return nil
}
