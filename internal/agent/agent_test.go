package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voyagent-dev/voyagent/internal/conversation"
	"github.com/voyagent-dev/voyagent/internal/llm"
	"github.com/voyagent-dev/voyagent/internal/tools/flights"
	"github.com/voyagent-dev/voyagent/pkg/session"
)

// fakeProvider scripts classifier and extractor behavior per test.
type fakeProvider struct {
	classify func() (*llm.IntentResult, error)
	extract  func(kind conversation.PreferenceKind) (conversation.Preferences, error)

	classifyCalls int
}

func (f *fakeProvider) ClassifyIntent(ctx context.Context, systemPrompt string, msgs []conversation.Message) (*llm.IntentResult, error) {
	f.classifyCalls++
	if f.classify == nil {
		return nil, fmt.Errorf("unexpected classify call")
	}
	return f.classify()
}

func (f *fakeProvider) ExtractPreferences(ctx context.Context, systemPrompt string, msgs []conversation.Message, kind conversation.PreferenceKind) (conversation.Preferences, error) {
	if f.extract == nil {
		return nil, fmt.Errorf("unexpected extract call")
	}
	return f.extract(kind)
}

func classifyConst(intent conversation.Intent, confidence float64, reasoning string) func() (*llm.IntentResult, error) {
	return func() (*llm.IntentResult, error) {
		return &llm.IntentResult{Intent: intent, Confidence: confidence, Reasoning: reasoning}, nil
	}
}

// flightSearchStub serves a single deterministic flight offer.
func flightSearchStub(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"search_id": "s-1",
			"results": []map[string]any{{
				"id": "f-1", "airline": "Lufthansa", "flight_number": "LH123",
				"origin": "LON", "destination": "BER",
				"departure_time": "2026-03-10T08:00:00Z", "arrival_time": "2026-03-10T10:00:00Z",
				"duration_hours": 2, "cabin_class": "Economy", "price_usd": 240.0, "stops": 0,
			}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestAgent(t *testing.T, provider llm.Provider, opts ...Option) *Agent {
	t.Helper()
	a, err := New(provider, opts...)
	require.NoError(t, err)
	return a
}

func TestInvoke_FlightBookingScenario(t *testing.T) {
	srv := flightSearchStub(t)
	provider := &fakeProvider{
		classify: classifyConst(conversation.IntentFlightBooking, 0.9, "user wants to book a flight"),
		extract: func(kind conversation.PreferenceKind) (conversation.Preferences, error) {
			require.Equal(t, conversation.KindFlightBooking, kind)
			return &conversation.FlightBookingPreferences{
				Destination: "Berlin", Origin: "London", TravelDates: "March 10", NumberOfTravelers: "3",
			}, nil
		},
	}

	a := newTestAgent(t, provider, WithFlightsClient(flights.NewClient(flights.WithBaseURL(srv.URL))))
	res, err := a.Invoke(context.Background(), "Book a flight from London to Berlin on March 10 for 3 travelers.", "")
	require.NoError(t, err)

	assert.Equal(t, []string{
		nodeReturningUserMiddleware,
		nodeUserIntentClassifier,
		nodeExtractFlightPrefs,
		nodeSearchFlight,
	}, res.Trajectory)
	assert.Contains(t, res.Response, "Lufthansa (LH123)")
	assert.Contains(t, res.Response, "proceed with booking")
	assert.Equal(t, "user wants to book a flight", res.Thinking)
}

func TestInvoke_TravelPlanningScenario(t *testing.T) {
	provider := &fakeProvider{
		classify: classifyConst(conversation.IntentTravelPlanning, 0.95, "user is planning a trip"),
		extract: func(kind conversation.PreferenceKind) (conversation.Preferences, error) {
			require.Equal(t, conversation.KindItinerary, kind)
			return &conversation.ItineraryPreferences{
				Destination: "Tokyo", TravelDates: "April", DurationDays: 5, Origin: "London", Budget: "low",
			}, nil
		},
	}

	a := newTestAgent(t, provider)
	res, err := a.Invoke(context.Background(), "I want to plan a 5-day trip to Tokyo in April, low budget.", "")
	require.NoError(t, err)

	assert.Equal(t, []string{
		nodeReturningUserMiddleware,
		nodeUserIntentClassifier,
		nodeExtractItineraryPrefs,
		nodeRouteToPlan,
	}, res.Trajectory)
	assert.Contains(t, res.Response, "**Destination:** Tokyo")
	assert.Contains(t, res.Response, "**Duration:** 5 days")
}

func TestInvoke_UnknownIntentExitsGracefully(t *testing.T) {
	store := session.NewMemoryStore()
	defer store.Close()

	provider := &fakeProvider{
		classify: classifyConst(conversation.IntentUnknown, 0.3, "cannot tell what the user wants"),
	}
	a := newTestAgent(t, provider, WithStore(store))

	ctx := context.Background()
	for turn := 1; turn <= 3; turn++ {
		res, err := a.Invoke(ctx, "asdf qwerty", "sess-unknown")
		require.NoError(t, err)
		assert.Equal(t, nodeGracefulExit, res.Trajectory[len(res.Trajectory)-1], "turn %d", turn)
		assert.Contains(t, res.Response, "trouble understanding")
	}

	saved, err := store.Load(ctx, "sess-unknown")
	require.NoError(t, err)
	assert.Equal(t, 3, saved.RetryCount)

	// The fourth turn still routes to graceful_exit; there is no retry loop.
	res, err := a.Invoke(ctx, "asdf again", "sess-unknown")
	require.NoError(t, err)
	assert.Equal(t, nodeGracefulExit, res.Trajectory[len(res.Trajectory)-1])
}

func TestInvoke_RetryCountMonotonic(t *testing.T) {
	store := session.NewMemoryStore()
	defer store.Close()

	provider := &fakeProvider{
		classify: classifyConst(conversation.IntentUnknown, 0.2, ""),
	}
	a := newTestAgent(t, provider, WithStore(store))

	ctx := context.Background()
	last := 0
	for turn := 0; turn < 4; turn++ {
		_, err := a.Invoke(ctx, "??", "sess-retry")
		require.NoError(t, err)
		saved, err := store.Load(ctx, "sess-retry")
		require.NoError(t, err)
		assert.Greater(t, saved.RetryCount, last)
		last = saved.RetryCount
	}
}

func TestInvoke_RetryCountAdvancesOnAcceptedIntent(t *testing.T) {
	store := session.NewMemoryStore()
	defer store.Close()

	provider := &fakeProvider{
		classify: classifyConst(conversation.IntentTravelPlanning, 0.9, ""),
		extract: func(kind conversation.PreferenceKind) (conversation.Preferences, error) {
			return &conversation.ItineraryPreferences{Destination: "Rome"}, nil
		},
	}
	a := newTestAgent(t, provider, WithStore(store))

	_, err := a.Invoke(context.Background(), "plan a trip to Rome", "sess-accept")
	require.NoError(t, err)

	saved, err := store.Load(context.Background(), "sess-accept")
	require.NoError(t, err)
	assert.Equal(t, 1, saved.RetryCount)
}

func TestInvoke_ReturningUserSkipsClassifier(t *testing.T) {
	srv := flightSearchStub(t)
	store := session.NewMemoryStore()
	defer store.Close()

	provider := &fakeProvider{
		classify: classifyConst(conversation.IntentFlightBooking, 0.9, ""),
		extract: func(kind conversation.PreferenceKind) (conversation.Preferences, error) {
			return &conversation.FlightBookingPreferences{
				Destination: "Berlin", Origin: "London", TravelDates: "March 10", NumberOfTravelers: "2",
			}, nil
		},
	}
	a := newTestAgent(t, provider,
		WithStore(store),
		WithFlightsClient(flights.NewClient(flights.WithBaseURL(srv.URL))))

	ctx := context.Background()
	_, err := a.Invoke(ctx, "Book a flight from London to Berlin", "sess-return")
	require.NoError(t, err)
	require.Equal(t, 1, provider.classifyCalls)

	res, err := a.Invoke(ctx, "Actually make it for 2 people on March 10", "sess-return")
	require.NoError(t, err)

	// Intent is settled, so the second turn bypasses classification.
	assert.Equal(t, 1, provider.classifyCalls)
	assert.Equal(t, []string{
		nodeReturningUserMiddleware,
		nodeExtractFlightPrefs,
		nodeSearchFlight,
	}, res.Trajectory)

	saved, err := store.Load(ctx, "sess-return")
	require.NoError(t, err)
	assert.True(t, saved.IsReturningUser)
}

func TestInvoke_FirstTurnIsNotReturningUser(t *testing.T) {
	store := session.NewMemoryStore()
	defer store.Close()

	provider := &fakeProvider{
		classify: classifyConst(conversation.IntentUnknown, 0.1, ""),
	}
	a := newTestAgent(t, provider, WithStore(store))

	_, err := a.Invoke(context.Background(), "hello", "sess-first")
	require.NoError(t, err)

	saved, err := store.Load(context.Background(), "sess-first")
	require.NoError(t, err)
	assert.False(t, saved.IsReturningUser)
}

func TestInvoke_ClassifierValidationFailureRecovers(t *testing.T) {
	provider := &fakeProvider{
		classify: func() (*llm.IntentResult, error) {
			return nil, &llm.ValidationError{Reason: "bad schema"}
		},
	}
	a := newTestAgent(t, provider)

	res, err := a.Invoke(context.Background(), "garbled", "")
	require.NoError(t, err)
	assert.Equal(t, "Could you clarify your request?", res.Response)
	assert.Equal(t, "Structured output validation failed", res.Thinking)
	assert.Equal(t, nodeGracefulExit, res.Trajectory[len(res.Trajectory)-1])
}

func TestInvoke_ClassifierHardFailureIsFatal(t *testing.T) {
	boom := errors.New("provider down")
	provider := &fakeProvider{
		classify: func() (*llm.IntentResult, error) { return nil, boom },
	}
	a := newTestAgent(t, provider)

	_, err := a.Invoke(context.Background(), "hi", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}

func TestInvoke_ExtractionFailureIsFatal(t *testing.T) {
	provider := &fakeProvider{
		classify: classifyConst(conversation.IntentTravelPlanning, 0.9, ""),
		extract: func(kind conversation.PreferenceKind) (conversation.Preferences, error) {
			return nil, fmt.Errorf("extraction blew up")
		},
	}
	a := newTestAgent(t, provider)

	_, err := a.Invoke(context.Background(), "plan a trip", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "extraction blew up")
}

func TestInvoke_IncompleteFlightPrefsSkipSearch(t *testing.T) {
	provider := &fakeProvider{
		classify: classifyConst(conversation.IntentFlightBooking, 0.9, ""),
		extract: func(kind conversation.PreferenceKind) (conversation.Preferences, error) {
			return &conversation.FlightBookingPreferences{Destination: "Berlin"}, nil
		},
	}
	a := newTestAgent(t, provider)

	res, err := a.Invoke(context.Background(), "book a flight to Berlin", "")
	require.NoError(t, err)
	assert.Contains(t, res.Response, "Cannot search flights yet. Missing: travel_dates, origin, number_of_travelers.")
}

func TestInvoke_FlightSearchFailureIsUserFacing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer srv.Close()

	provider := &fakeProvider{
		classify: classifyConst(conversation.IntentFlightBooking, 0.9, ""),
		extract: func(kind conversation.PreferenceKind) (conversation.Preferences, error) {
			return &conversation.FlightBookingPreferences{
				Destination: "Berlin", Origin: "London", TravelDates: "March 10", NumberOfTravelers: "1",
			}, nil
		},
	}
	a := newTestAgent(t, provider, WithFlightsClient(flights.NewClient(flights.WithBaseURL(srv.URL))))

	res, err := a.Invoke(context.Background(), "book it", "")
	require.NoError(t, err)
	assert.Contains(t, res.Response, "Flight search failed:")
	assert.Contains(t, res.Response, "Please try again or check your preferences.")
}

func TestInvoke_BorderlineConfidenceExits(t *testing.T) {
	// Exactly 0.6 is accepted by the classifier but routing requires a
	// strictly greater score, so the turn still exits.
	provider := &fakeProvider{
		classify: classifyConst(conversation.IntentFlightBooking, 0.6, ""),
	}
	a := newTestAgent(t, provider)

	res, err := a.Invoke(context.Background(), "maybe a flight?", "")
	require.NoError(t, err)
	assert.Equal(t, nodeGracefulExit, res.Trajectory[len(res.Trajectory)-1])
}

func TestInvoke_OtherAcceptedIntentRoutesToItinerary(t *testing.T) {
	provider := &fakeProvider{
		classify: classifyConst(conversation.IntentHotelBooking, 0.9, ""),
	}
	a := newTestAgent(t, provider)

	// Hotel booking routes to the itinerary extractor, which has no prompt
	// for that intent; the turn fails rather than inventing behavior.
	_, err := a.Invoke(context.Background(), "book me a hotel", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no extraction prompt")
}

func TestInvoke_StoreFailureFailsTurn(t *testing.T) {
	store := &failingSaveStore{Store: session.NewMemoryStore()}
	provider := &fakeProvider{
		classify: classifyConst(conversation.IntentUnknown, 0.1, ""),
	}
	a := newTestAgent(t, provider, WithStore(store))

	_, err := a.Invoke(context.Background(), "hi", "sess-store")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "save session")
}

type failingSaveStore struct {
	session.Store
}

func (f *failingSaveStore) Save(ctx context.Context, sessionID string, state *conversation.State) error {
	return fmt.Errorf("store unavailable")
}
