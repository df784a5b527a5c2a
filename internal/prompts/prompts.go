// Package prompts holds the system prompts shipped with the binary.
// Templates are embedded so deployments never depend on a prompts
// directory being present next to the executable.
package prompts

import (
	"embed"
	"fmt"
	"strings"

	"github.com/voyagent-dev/voyagent/internal/conversation"
)

//go:embed templates/*.txt
var templates embed.FS

// Get returns the named prompt template, trimmed of surrounding whitespace.
func Get(name string) (string, error) {
	data, err := templates.ReadFile("templates/" + name + ".txt")
	if err != nil {
		return "", fmt.Errorf("prompt %q not found: %w", name, err)
	}
	return strings.TrimSpace(string(data)), nil
}

// ForIntent returns the preference extraction prompt for the given intent.
// Only intents with an extraction flow have one.
func ForIntent(intent conversation.Intent) (string, error) {
	switch intent {
	case conversation.IntentTravelPlanning:
		return Get("travel_planning_extract_preferences")
	case conversation.IntentFlightBooking:
		return Get("flight_booking_extract_preferences")
	default:
		return "", fmt.Errorf("no extraction prompt for intent %q", string(intent))
	}
}

// IntentClassification returns the intent classification system prompt.
func IntentClassification() (string, error) {
	return Get("understand_intent_system")
}
