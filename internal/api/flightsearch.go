package api

import (
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Reference data for the mock flight inventory.
var (
	airlines     = []string{"Delta Airlines", "Lufthansa", "Emirates", "Qatar Airways", "Air India"}
	airlineCodes = []string{"DL", "LH", "EK", "QR", "AI"}
	cabinClasses = []string{"Economy", "Premium Economy", "Business", "First"}
)

type mockFlight struct {
	ID            string  `json:"id"`
	Airline       string  `json:"airline"`
	FlightNumber  string  `json:"flight_number"`
	Origin        string  `json:"origin"`
	Destination   string  `json:"destination"`
	DepartureTime string  `json:"departure_time"`
	ArrivalTime   string  `json:"arrival_time"`
	DurationHours int     `json:"duration_hours"`
	CabinClass    string  `json:"cabin_class"`
	PriceUSD      float64 `json:"price_usd"`
	Stops         int     `json:"stops"`
}

type flightSearchResponse struct {
	SearchID    string       `json:"search_id"`
	Origin      string       `json:"origin"`
	Destination string       `json:"destination"`
	Passengers  int          `json:"passengers"`
	Currency    string       `json:"currency"`
	Results     []mockFlight `json:"results"`
}

// handleFlightSearch serves randomized flight offers. It stands in for a
// real inventory system during development and testing.
func (s *Server) handleFlightSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	origin := q.Get("origin")
	destination := q.Get("destination")
	if origin == "" || destination == "" {
		writeError(w, http.StatusBadRequest, "origin and destination are required")
		return
	}

	passengers := 1
	if raw := q.Get("passengers"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 10 {
			writeError(w, http.StatusBadRequest, "passengers must be between 1 and 10")
			return
		}
		passengers = n
	}

	count := 3 + rand.Intn(6)
	results := make([]mockFlight, 0, count)
	for i := 0; i < count; i++ {
		results = append(results, randomFlight(origin, destination))
	}

	writeJSON(w, http.StatusOK, flightSearchResponse{
		SearchID:    uuid.NewString(),
		Origin:      origin,
		Destination: destination,
		Passengers:  passengers,
		Currency:    "USD",
		Results:     results,
	})
}

func randomFlight(origin, destination string) mockFlight {
	carrier := rand.Intn(len(airlines))
	departure := time.Now().Add(time.Duration(1+rand.Intn(72)) * time.Hour)
	durationHours := 2 + rand.Intn(14)

	return mockFlight{
		ID:            uuid.NewString(),
		Airline:       airlines[carrier],
		FlightNumber:  airlineCodes[carrier] + strconv.Itoa(100+rand.Intn(900)),
		Origin:        origin,
		Destination:   destination,
		DepartureTime: departure.Format(time.RFC3339),
		ArrivalTime:   departure.Add(time.Duration(durationHours) * time.Hour).Format(time.RFC3339),
		DurationHours: durationHours,
		CabinClass:    cabinClasses[rand.Intn(len(cabinClasses))],
		PriceUSD:      float64(int((150+rand.Float64()*1350)*100)) / 100,
		Stops:         rand.Intn(3),
	}
}
