// Package conversation defines the state threaded through the travel agent
// workflow: message history, classified intent, extracted preferences, and
// the partial-update contract nodes use to mutate that state.
package conversation

// Intent is the classified category of a user request.
type Intent string

const (
	IntentTravelPlanning Intent = "travel_planning"
	IntentFlightBooking  Intent = "flight_booking"
	IntentHotelBooking   Intent = "hotel_booking"
	IntentRefundRequest  Intent = "refund_request"
	IntentUnknown        Intent = "unknown"
)

// Valid reports whether the intent is one of the known categories.
func (i Intent) Valid() bool {
	switch i {
	case IntentTravelPlanning, IntentFlightBooking, IntentHotelBooking,
		IntentRefundRequest, IntentUnknown:
		return true
	}
	return false
}

// Role identifies the author of a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single (role, content) pair in the conversation history.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// UserMessage builds a user-authored message.
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// AssistantMessage builds an assistant-authored message.
func AssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}
