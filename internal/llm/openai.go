package llm

import (
	"context"
	"encoding/json"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/voyagent-dev/voyagent/internal/conversation"
)

const defaultModel = openai.GPT4oMini

// intentSchema constrains classification output to the known intent set.
var intentSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"intent": {
			"type": "string",
			"enum": ["travel_planning", "flight_booking", "hotel_booking", "refund_request", "unknown"]
		},
		"confidence": {"type": "number"},
		"reasoning": {"type": "string"},
		"clarification_question": {"type": "string"}
	},
	"required": ["intent", "confidence", "reasoning", "clarification_question"],
	"additionalProperties": false
}`)

var itinerarySchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"destination": {"type": "string"},
		"travel_dates": {"type": "string"},
		"duration_days": {"type": "integer"},
		"origin": {"type": "string"},
		"budget": {"type": "string"},
		"number_of_travelers": {"type": "integer"},
		"special_requirements": {"type": "string"}
	},
	"required": ["destination", "travel_dates", "duration_days", "origin", "budget", "number_of_travelers", "special_requirements"],
	"additionalProperties": false
}`)

var flightBookingSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"destination": {"type": "string"},
		"origin": {"type": "string"},
		"travel_dates": {"type": "string"},
		"number_of_travelers": {"type": "string"}
	},
	"required": ["destination", "origin", "travel_dates", "number_of_travelers"],
	"additionalProperties": false
}`)

// OpenAIProvider implements Provider on the OpenAI chat completions API
// with JSON-schema constrained responses.
type OpenAIProvider struct {
	client *openai.Client
	model  string
}

// OpenAIOption configures an OpenAIProvider.
type OpenAIOption func(*OpenAIProvider)

// WithModel overrides the default completion model.
func WithModel(model string) OpenAIOption {
	return func(p *OpenAIProvider) {
		if model != "" {
			p.model = model
		}
	}
}

// NewOpenAIProvider creates a provider backed by the given API key.
func NewOpenAIProvider(apiKey string, opts ...OpenAIOption) (*OpenAIProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai: api key not set")
	}
	p := &OpenAIProvider{
		client: openai.NewClient(apiKey),
		model:  defaultModel,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// NewOpenAIProviderFromClient wraps an existing client. Used by tests that
// point the client at a stub server.
func NewOpenAIProviderFromClient(client *openai.Client, opts ...OpenAIOption) *OpenAIProvider {
	p := &OpenAIProvider{client: client, model: defaultModel}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ClassifyIntent runs the intent classification prompt over the conversation.
func (p *OpenAIProvider) ClassifyIntent(ctx context.Context, systemPrompt string, msgs []conversation.Message) (*IntentResult, error) {
	raw, err := p.createStructured(ctx, systemPrompt, msgs, "intent_classification", intentSchema)
	if err != nil {
		return nil, err
	}

	var result IntentResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, &ValidationError{Reason: err.Error()}
	}
	if err := validateIntentResult(&result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ExtractPreferences runs the extraction prompt for the given preference kind.
func (p *OpenAIProvider) ExtractPreferences(ctx context.Context, systemPrompt string, msgs []conversation.Message, kind conversation.PreferenceKind) (conversation.Preferences, error) {
	var (
		schema json.RawMessage
		name   string
	)
	switch kind {
	case conversation.KindItinerary:
		schema, name = itinerarySchema, "itinerary_preferences"
	case conversation.KindFlightBooking:
		schema, name = flightBookingSchema, "flight_booking_preferences"
	default:
		return nil, fmt.Errorf("unsupported preference kind %q", string(kind))
	}

	raw, err := p.createStructured(ctx, systemPrompt, msgs, name, schema)
	if err != nil {
		return nil, err
	}

	switch kind {
	case conversation.KindItinerary:
		var prefs conversation.ItineraryPreferences
		if err := json.Unmarshal(raw, &prefs); err != nil {
			return nil, &ValidationError{Reason: err.Error()}
		}
		return &prefs, nil
	default:
		var prefs conversation.FlightBookingPreferences
		if err := json.Unmarshal(raw, &prefs); err != nil {
			return nil, &ValidationError{Reason: err.Error()}
		}
		return &prefs, nil
	}
}

func (p *OpenAIProvider) createStructured(ctx context.Context, systemPrompt string, msgs []conversation.Message, schemaName string, schema json.RawMessage) (json.RawMessage, error) {
	chatMsgs := make([]openai.ChatCompletionMessage, 0, len(msgs)+1)
	chatMsgs = append(chatMsgs, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: systemPrompt,
	})
	for _, m := range msgs {
		chatMsgs = append(chatMsgs, openai.ChatCompletionMessage{
			Role:    string(m.Role),
			Content: m.Content,
		})
	}

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    p.model,
		Messages: chatMsgs,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   schemaName,
				Schema: schema,
				Strict: true,
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, &ValidationError{Reason: "no choices in response"}
	}
	return json.RawMessage(resp.Choices[0].Message.Content), nil
}
