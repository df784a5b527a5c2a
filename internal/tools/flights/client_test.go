package flights

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voyagent-dev/voyagent/internal/conversation"
)

func TestBuildSearchRequest_Normalization(t *testing.T) {
	tests := []struct {
		name    string
		prefs   conversation.FlightBookingPreferences
		want    SearchRequest
		wantErr bool
	}{
		{
			name: "clean iata codes",
			prefs: conversation.FlightBookingPreferences{
				Origin: "JFK", Destination: "LHR", TravelDates: "next week", NumberOfTravelers: "2",
			},
			want: SearchRequest{Origin: "JFK", Destination: "LHR", Passengers: 2},
		},
		{
			name: "lowercase and padded input truncated to three chars",
			prefs: conversation.FlightBookingPreferences{
				Origin: "  berlin ", Destination: "tokyo", NumberOfTravelers: "3",
			},
			want: SearchRequest{Origin: "BER", Destination: "TOK", Passengers: 3},
		},
		{
			name: "non-numeric travelers falls back to one",
			prefs: conversation.FlightBookingPreferences{
				Origin: "SFO", Destination: "DEL", NumberOfTravelers: "two adults",
			},
			want: SearchRequest{Origin: "SFO", Destination: "DEL", Passengers: 1},
		},
		{
			name: "travelers clamped to upper bound",
			prefs: conversation.FlightBookingPreferences{
				Origin: "SFO", Destination: "DEL", NumberOfTravelers: "500",
			},
			want: SearchRequest{Origin: "SFO", Destination: "DEL", Passengers: 99},
		},
		{
			name: "travelers clamped to lower bound",
			prefs: conversation.FlightBookingPreferences{
				Origin: "SFO", Destination: "DEL", NumberOfTravelers: "0",
			},
			want: SearchRequest{Origin: "SFO", Destination: "DEL", Passengers: 1},
		},
		{
			name: "empty travelers defaults to one",
			prefs: conversation.FlightBookingPreferences{
				Origin: "SFO", Destination: "DEL",
			},
			want: SearchRequest{Origin: "SFO", Destination: "DEL", Passengers: 1},
		},
		{
			name:    "short origin rejected",
			prefs:   conversation.FlightBookingPreferences{Origin: "NY", Destination: "LHR"},
			wantErr: true,
		},
		{
			name:    "short destination rejected",
			prefs:   conversation.FlightBookingPreferences{Origin: "JFK", Destination: "LA"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := BuildSearchRequest(&tt.prefs)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSearch_ReturnsFirstResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/flight-search", r.URL.Path)
		assert.Equal(t, "JFK", r.URL.Query().Get("origin"))
		assert.Equal(t, "LHR", r.URL.Query().Get("destination"))
		assert.Equal(t, "2", r.URL.Query().Get("passengers"))

		dep := time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC)
		env := searchEnvelope{
			SearchID: "s-1", Origin: "JFK", Destination: "LHR", Passengers: 2, Currency: "USD",
			Results: []Flight{
				{ID: "f-1", Airline: "Lufthansa", FlightNumber: "LH123", Origin: "JFK", Destination: "LHR",
					DepartureTime: dep, ArrivalTime: dep.Add(7 * time.Hour), DurationHours: 7,
					CabinClass: "Economy", PriceUSD: 640.50, Stops: 0},
				{ID: "f-2", Airline: "Delta Airlines", FlightNumber: "DL456"},
			},
		}
		_ = json.NewEncoder(w).Encode(env)
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL))
	flight, err := c.Search(context.Background(), SearchRequest{Origin: "JFK", Destination: "LHR", Passengers: 2})
	require.NoError(t, err)
	assert.Equal(t, "f-1", flight.ID)
	assert.Equal(t, "LH123", flight.FlightNumber)
}

func TestSearch_NoResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(searchEnvelope{SearchID: "s-2"})
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL))
	_, err := c.Search(context.Background(), SearchRequest{Origin: "JFK", Destination: "LHR", Passengers: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no flights found")
}

func TestSearch_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL))
	_, err := c.Search(context.Background(), SearchRequest{Origin: "JFK", Destination: "LHR", Passengers: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
}

func TestSearch_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
		_ = json.NewEncoder(w).Encode(searchEnvelope{SearchID: "s-3"})
	}))
	defer srv.Close()

	c := NewClient(
		WithBaseURL(srv.URL),
		WithHTTPClient(&http.Client{Timeout: 50 * time.Millisecond}),
	)
	_, err := c.Search(context.Background(), SearchRequest{Origin: "JFK", Destination: "LHR", Passengers: 1})
	require.Error(t, err)
}

func TestFormatOffer(t *testing.T) {
	f := &Flight{
		Airline: "Emirates", FlightNumber: "EK201", Origin: "JFK", Destination: "DXB",
		DurationHours: 12, CabinClass: "Business", PriceUSD: 3200, Stops: 1,
	}
	out := FormatOffer(f)
	assert.Contains(t, out, "Emirates (EK201)")
	assert.Contains(t, out, "JFK → DXB")
	assert.Contains(t, out, "$3200.00 USD")
	assert.Contains(t, out, "Stops:** 1")
	assert.Contains(t, out, "proceed with booking")
}
