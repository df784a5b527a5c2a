package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/voyagent-dev/voyagent/internal/conversation"
	"github.com/voyagent-dev/voyagent/internal/llm"
	"github.com/voyagent-dev/voyagent/internal/prompts"
	"github.com/voyagent-dev/voyagent/internal/tools/flights"
)

// Classification acceptance threshold. Routing applies a strict comparison
// against the same value, so a score of exactly 0.6 is accepted by the
// classifier but still routed to graceful_exit.
const confidenceThreshold = 0.6

const (
	clarifyMessage    = "Could you clarify your request?"
	startFreshMessage = "I'm having trouble understanding your request. Let's start fresh — could you describe your needs again?"
)

// returningUserMiddleware flags sessions that already carry history. A fresh
// session holds only this turn's message after the merge.
func (a *Agent) returningUserMiddleware(ctx context.Context, state *conversation.State) (*conversation.Update, error) {
	isReturning := len(state.Messages) > 1
	return &conversation.Update{IsReturningUser: &isReturning}, nil
}

// classifyIntent runs the intent classifier over the full history. The retry
// counter advances on every classification attempt, including accepted ones.
// A malformed structured response is recovered into an unknown intent plus a
// clarification message; any other provider failure fails the turn.
func (a *Agent) classifyIntent(ctx context.Context, state *conversation.State) (*conversation.Update, error) {
	prompt, err := prompts.IntentClassification()
	if err != nil {
		return nil, err
	}

	retry := state.RetryCount + 1
	result, err := a.provider.ClassifyIntent(ctx, prompt, state.Messages)
	if err != nil {
		var vErr *llm.ValidationError
		if !errors.As(err, &vErr) {
			return nil, err
		}
		intent := conversation.IntentUnknown
		confidence := 0.0
		reasoning := "Structured output validation failed"
		clarification := clarifyMessage
		return &conversation.Update{
			Intent:                &intent,
			Confidence:            &confidence,
			Reasoning:             &reasoning,
			ClarificationQuestion: &clarification,
			RetryCount:            &retry,
			Messages:              []conversation.Message{conversation.AssistantMessage(clarifyMessage)},
		}, nil
	}

	if result.Intent != conversation.IntentUnknown && result.Confidence >= confidenceThreshold {
		return &conversation.Update{
			Intent:                &result.Intent,
			Confidence:            &result.Confidence,
			Reasoning:             &result.Reasoning,
			ClarificationQuestion: &result.ClarificationQuestion,
			RetryCount:            &retry,
		}, nil
	}

	intent := conversation.IntentUnknown
	return &conversation.Update{
		Intent:     &intent,
		Confidence: &result.Confidence,
		Reasoning:  &result.Reasoning,
		RetryCount: &retry,
		Messages:   []conversation.Message{conversation.AssistantMessage(startFreshMessage)},
	}, nil
}

// extractItineraryPreferences pulls trip-planning fields from the history.
// Extraction failures are fatal to the turn.
func (a *Agent) extractItineraryPreferences(ctx context.Context, state *conversation.State) (*conversation.Update, error) {
	prompt, err := prompts.ForIntent(state.Intent)
	if err != nil {
		return nil, err
	}

	prefs, err := a.provider.ExtractPreferences(ctx, prompt, state.Messages, conversation.KindItinerary)
	if err != nil {
		return nil, err
	}

	itinerary, ok := prefs.(*conversation.ItineraryPreferences)
	if !ok {
		return nil, fmt.Errorf("extractor returned %T, want itinerary preferences", prefs)
	}

	var msg string
	if itinerary.IsComplete() {
		msg = itinerarySummary(itinerary)
	} else {
		msg = itineraryMissingMessage(itinerary)
	}
	return &conversation.Update{
		Preferences: itinerary,
		Messages:    []conversation.Message{conversation.AssistantMessage(msg)},
	}, nil
}

// extractFlightPreferences pulls flight-booking fields from the history.
// Extraction failures are fatal to the turn.
func (a *Agent) extractFlightPreferences(ctx context.Context, state *conversation.State) (*conversation.Update, error) {
	prompt, err := prompts.ForIntent(state.Intent)
	if err != nil {
		return nil, err
	}

	prefs, err := a.provider.ExtractPreferences(ctx, prompt, state.Messages, conversation.KindFlightBooking)
	if err != nil {
		return nil, err
	}

	flight, ok := prefs.(*conversation.FlightBookingPreferences)
	if !ok {
		return nil, fmt.Errorf("extractor returned %T, want flight booking preferences", prefs)
	}

	var msg string
	if flight.IsComplete() {
		msg = flightSummary(flight)
	} else {
		msg = fmt.Sprintf("I've started capturing your flight details, but I'm still missing:\n\n- %s\n\nCould you provide these details so I can search flights?",
			strings.Join(flight.RequiredFieldsMissing(), ", "))
	}
	return &conversation.Update{
		Preferences: flight,
		Messages:    []conversation.Message{conversation.AssistantMessage(msg)},
	}, nil
}

// searchFlight invokes the flight search tool. Every guard returns an
// explanatory assistant message instead of failing the turn.
func (a *Agent) searchFlight(ctx context.Context, state *conversation.State) (*conversation.Update, error) {
	prefs, ok := state.Preferences.(*conversation.FlightBookingPreferences)
	if !ok {
		return assistantReply("No flight preferences available. Please provide origin, destination, travel dates, and number of travelers."), nil
	}

	if !prefs.IsComplete() {
		missing := strings.Join(prefs.RequiredFieldsMissing(), ", ")
		return assistantReply(fmt.Sprintf("Cannot search flights yet. Missing: %s. Please provide these details.", missing)), nil
	}

	offer, err := a.runFlightSearch(ctx, prefs)
	if err != nil {
		return assistantReply(fmt.Sprintf("Flight search failed: %v. Please try again or check your preferences.", err)), nil
	}
	return assistantReply(flights.FormatOffer(offer)), nil
}

// gracefulExit is a terminal placeholder; it must not mutate state.
func (a *Agent) gracefulExit(ctx context.Context, state *conversation.State) (*conversation.Update, error) {
	return &conversation.Update{}, nil
}

// routeToPlan is a terminal placeholder for future itinerary generation.
func (a *Agent) routeToPlan(ctx context.Context, state *conversation.State) (*conversation.Update, error) {
	return &conversation.Update{}, nil
}

func assistantReply(content string) *conversation.Update {
	return &conversation.Update{
		Messages: []conversation.Message{conversation.AssistantMessage(content)},
	}
}

func itinerarySummary(p *conversation.ItineraryPreferences) string {
	lines := []string{"I've extracted your travel preferences:\n"}
	if p.Destination != "" {
		lines = append(lines, fmt.Sprintf("- **Destination:** %s", p.Destination))
	}
	if p.TravelDates != "" {
		lines = append(lines, fmt.Sprintf("- **Travel dates:** %s", p.TravelDates))
	}
	if p.DurationDays != 0 {
		lines = append(lines, fmt.Sprintf("- **Duration:** %d days", p.DurationDays))
	}
	if p.Origin != "" {
		lines = append(lines, fmt.Sprintf("- **Departure city:** %s", p.Origin))
	}
	if p.NumberOfTravelers != 0 {
		lines = append(lines, fmt.Sprintf("- **Travelers:** %d", p.NumberOfTravelers))
	}
	if p.Budget != "" {
		lines = append(lines, fmt.Sprintf("- **Budget:** %s", p.Budget))
	}
	if p.SpecialRequirements != "" {
		lines = append(lines, fmt.Sprintf("- **Special requirements:** %s", p.SpecialRequirements))
	}
	return strings.Join(lines, "\n")
}

func itineraryMissingMessage(p *conversation.ItineraryPreferences) string {
	var missing []string
	if p.Destination == "" {
		missing = append(missing, "destination")
	}
	if p.TravelDates == "" && p.DurationDays == 0 {
		missing = append(missing, "travel dates or duration")
	}
	if p.Origin == "" {
		missing = append(missing, "departure city")
	}
	if p.NumberOfTravelers == 0 {
		missing = append(missing, "number of travelers")
	}

	if len(missing) == 0 {
		return "I'm having trouble confirming your travel details. Could you please rephrase or provide a bit more clarity?"
	}
	return fmt.Sprintf("I've started capturing your travel plan, but I'm still missing:\n\n- %s\n\nCould you provide these details so I can plan better?",
		strings.Join(missing, ", "))
}

func flightSummary(p *conversation.FlightBookingPreferences) string {
	lines := []string{"I've captured your flight booking details:\n"}
	if p.Destination != "" {
		lines = append(lines, fmt.Sprintf("- **Destination:** %s", p.Destination))
	}
	if p.Origin != "" {
		lines = append(lines, fmt.Sprintf("- **Origin:** %s", p.Origin))
	}
	if p.TravelDates != "" {
		lines = append(lines, fmt.Sprintf("- **Travel dates:** %s", p.TravelDates))
	}
	if p.NumberOfTravelers != "" {
		lines = append(lines, fmt.Sprintf("- **Travelers:** %s", p.NumberOfTravelers))
	}
	return strings.Join(lines, "\n")
}
