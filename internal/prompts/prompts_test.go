package prompts

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voyagent-dev/voyagent/internal/conversation"
)

func TestGet_KnownPrompt(t *testing.T) {
	p, err := Get("understand_intent_system")
	require.NoError(t, err)
	assert.Contains(t, p, "intent")
	assert.Equal(t, strings.TrimSpace(p), p)
}

func TestGet_UnknownPrompt(t *testing.T) {
	_, err := Get("nonexistent")
	assert.Error(t, err)
}

func TestForIntent(t *testing.T) {
	for _, intent := range []conversation.Intent{
		conversation.IntentTravelPlanning,
		conversation.IntentFlightBooking,
	} {
		p, err := ForIntent(intent)
		require.NoError(t, err, intent)
		assert.NotEmpty(t, p)
	}
}

func TestForIntent_NoExtractionFlow(t *testing.T) {
	for _, intent := range []conversation.Intent{
		conversation.IntentHotelBooking,
		conversation.IntentRefundRequest,
		conversation.IntentUnknown,
	} {
		_, err := ForIntent(intent)
		assert.Error(t, err, intent)
	}
}
