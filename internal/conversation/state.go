package conversation

import (
	"encoding/json"
	"fmt"
)

// State is the unit of truth for one session. It is loaded from the session
// store at the start of a turn, mutated by merging node updates, and saved
// back when the turn completes.
type State struct {
	// Messages is the chronological conversation history. Merges append,
	// never replace, reorder, or deduplicate.
	Messages []Message

	// SessionID is the stable session identifier, assigned on the first turn.
	SessionID string

	// IsReturningUser is recomputed each turn from the merged message count.
	IsReturningUser bool

	// Intent is the last classified intent, IntentUnknown until classified.
	Intent Intent

	// Confidence is the score of the last classification attempt. Only
	// meaningful once Intent != IntentUnknown.
	Confidence float64

	// Reasoning and ClarificationQuestion are scratch outputs surfaced by the
	// classifier for observability.
	Reasoning             string
	ClarificationQuestion string

	// RetryCount only increases within a session; capped at 3 by routing.
	RetryCount int

	// Preferences holds the intent-specific variant, replaced wholesale by
	// extractor nodes.
	Preferences Preferences
}

// NewState returns an empty state with intent unknown.
func NewState() *State {
	return &State{Intent: IntentUnknown}
}

// Clone returns a copy of the state with an independent message slice.
// Preference values are replaced wholesale on merge, so sharing the current
// value between snapshots is safe.
func (s *State) Clone() *State {
	c := *s
	c.Messages = make([]Message, len(s.Messages))
	copy(c.Messages, s.Messages)
	return &c
}

// Update is a partial state update returned by a node. Merge policy is
// explicit per field: Messages append to history, Preferences replace the
// current value, and every pointer field overwrites only when non-nil.
type Update struct {
	Messages              []Message
	SessionID             *string
	IsReturningUser       *bool
	Intent                *Intent
	Confidence            *float64
	Reasoning             *string
	ClarificationQuestion *string
	RetryCount            *int
	Preferences           Preferences
}

// Apply merges the update into the state.
func (s *State) Apply(u *Update) {
	if u == nil {
		return
	}
	s.Messages = append(s.Messages, u.Messages...)
	if u.SessionID != nil {
		s.SessionID = *u.SessionID
	}
	if u.IsReturningUser != nil {
		s.IsReturningUser = *u.IsReturningUser
	}
	if u.Intent != nil {
		s.Intent = *u.Intent
	}
	if u.Confidence != nil {
		s.Confidence = *u.Confidence
	}
	if u.Reasoning != nil {
		s.Reasoning = *u.Reasoning
	}
	if u.ClarificationQuestion != nil {
		s.ClarificationQuestion = *u.ClarificationQuestion
	}
	if u.RetryCount != nil {
		s.RetryCount = *u.RetryCount
	}
	if u.Preferences != nil {
		s.Preferences = u.Preferences
	}
}

// LastAssistantMessage returns the content of the most recent assistant
// message, or "" if none exists.
func (s *State) LastAssistantMessage() string {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Role == RoleAssistant {
			return s.Messages[i].Content
		}
	}
	return ""
}

// stateJSON is the wire form of State. The polymorphic preferences are
// encoded as a kind tag plus raw payload so round-trips restore the right
// concrete variant.
type stateJSON struct {
	Messages              []Message       `json:"messages"`
	SessionID             string          `json:"session_id,omitempty"`
	IsReturningUser       bool            `json:"is_returning_user"`
	Intent                Intent          `json:"intent"`
	Confidence            float64         `json:"confidence"`
	Reasoning             string          `json:"reasoning,omitempty"`
	ClarificationQuestion string          `json:"clarification_question,omitempty"`
	RetryCount            int             `json:"retry_count"`
	PreferenceKind        PreferenceKind  `json:"preference_kind,omitempty"`
	Preferences           json.RawMessage `json:"preferences,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (s *State) MarshalJSON() ([]byte, error) {
	w := stateJSON{
		Messages:              s.Messages,
		SessionID:             s.SessionID,
		IsReturningUser:       s.IsReturningUser,
		Intent:                s.Intent,
		Confidence:            s.Confidence,
		Reasoning:             s.Reasoning,
		ClarificationQuestion: s.ClarificationQuestion,
		RetryCount:            s.RetryCount,
	}
	if s.Preferences != nil {
		data, err := json.Marshal(s.Preferences)
		if err != nil {
			return nil, fmt.Errorf("marshal preferences: %w", err)
		}
		w.PreferenceKind = s.Preferences.Kind()
		w.Preferences = data
	}
	return json.Marshal(w)
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *State) UnmarshalJSON(data []byte) error {
	var w stateJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	s.Messages = w.Messages
	s.SessionID = w.SessionID
	s.IsReturningUser = w.IsReturningUser
	s.Intent = w.Intent
	s.Confidence = w.Confidence
	s.Reasoning = w.Reasoning
	s.ClarificationQuestion = w.ClarificationQuestion
	s.RetryCount = w.RetryCount
	s.Preferences = nil

	if len(w.Preferences) == 0 {
		return nil
	}
	switch w.PreferenceKind {
	case KindItinerary:
		var p ItineraryPreferences
		if err := json.Unmarshal(w.Preferences, &p); err != nil {
			return fmt.Errorf("unmarshal itinerary preferences: %w", err)
		}
		s.Preferences = &p
	case KindFlightBooking:
		var p FlightBookingPreferences
		if err := json.Unmarshal(w.Preferences, &p); err != nil {
			return fmt.Errorf("unmarshal flight booking preferences: %w", err)
		}
		s.Preferences = &p
	default:
		return fmt.Errorf("unknown preference kind %q", w.PreferenceKind)
	}
	return nil
}
