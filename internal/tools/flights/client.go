// Package flights searches flights against the flight-search API.
package flights

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/voyagent-dev/voyagent/internal/conversation"
)

const (
	defaultBaseURL = "http://localhost:8080"
	defaultTimeout = 10 * time.Second
)

// SearchRequest is a normalized flight search. Origin and Destination are
// three-letter codes; Passengers is clamped to 1..99.
type SearchRequest struct {
	Origin      string
	Destination string
	Passengers  int
}

// Flight is a single flight offer returned by the search API.
type Flight struct {
	ID            string    `json:"id"`
	Airline       string    `json:"airline"`
	FlightNumber  string    `json:"flight_number"`
	Origin        string    `json:"origin"`
	Destination   string    `json:"destination"`
	DepartureTime time.Time `json:"departure_time"`
	ArrivalTime   time.Time `json:"arrival_time"`
	DurationHours int       `json:"duration_hours"`
	CabinClass    string    `json:"cabin_class"`
	PriceUSD      float64   `json:"price_usd"`
	Stops         int       `json:"stops"`
}

type searchEnvelope struct {
	SearchID    string   `json:"search_id"`
	Origin      string   `json:"origin"`
	Destination string   `json:"destination"`
	Passengers  int      `json:"passengers"`
	Currency    string   `json:"currency"`
	Results     []Flight `json:"results"`
}

// Client calls the flight-search API.
type Client struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at a different search API.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if baseURL != "" {
			c.baseURL = strings.TrimRight(baseURL, "/")
		}
	}
}

// WithHTTPClient substitutes the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithRateLimit caps outbound searches per second.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) { c.limiter = rate.NewLimiter(rate.Limit(rps), burst) }
}

// NewClient creates a flight search client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL: defaultBaseURL,
		http:    &http.Client{Timeout: defaultTimeout},
		limiter: rate.NewLimiter(rate.Limit(10), 10),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BuildSearchRequest normalizes booking preferences into a search request.
// Location codes are uppercased and truncated to three characters; the
// traveler count string is coerced to an int and clamped to 1..99.
func BuildSearchRequest(prefs *conversation.FlightBookingPreferences) (SearchRequest, error) {
	travelers := 1
	if raw := strings.TrimSpace(prefs.NumberOfTravelers); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			travelers = n
		}
	}
	if travelers < 1 {
		travelers = 1
	}
	if travelers > 99 {
		travelers = 99
	}

	origin := normalizeCode(prefs.Origin)
	destination := normalizeCode(prefs.Destination)
	if len(origin) < 3 || len(destination) < 3 {
		return SearchRequest{}, fmt.Errorf("origin and destination must be at least 3 characters (e.g. IATA code)")
	}

	return SearchRequest{
		Origin:      origin,
		Destination: destination,
		Passengers:  travelers,
	}, nil
}

func normalizeCode(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	if len(s) > 3 {
		s = s[:3]
	}
	return s
}

// Search runs the flight search and returns the first offer.
func (c *Client) Search(ctx context.Context, req SearchRequest) (*Flight, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("origin", req.Origin)
	q.Set("destination", req.Destination)
	q.Set("passengers", strconv.Itoa(req.Passengers))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/flight-search?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("flight search request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("flight search returned status %d", resp.StatusCode)
	}

	var envelope searchEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("decode flight search response: %w", err)
	}
	if len(envelope.Results) == 0 {
		return nil, fmt.Errorf("no flights found for %s to %s", req.Origin, req.Destination)
	}

	return &envelope.Results[0], nil
}

// FormatOffer renders a flight offer the way the assistant presents it.
func FormatOffer(f *Flight) string {
	lines := []string{
		"Here's a flight that matches your preferences:",
		fmt.Sprintf("- **Airline:** %s (%s)", f.Airline, f.FlightNumber),
		fmt.Sprintf("- **Route:** %s → %s", f.Origin, f.Destination),
		fmt.Sprintf("- **Duration:** %dh", f.DurationHours),
		fmt.Sprintf("- **Cabin:** %s", f.CabinClass),
		fmt.Sprintf("- **Price:** $%.2f USD", f.PriceUSD),
		fmt.Sprintf("- **Stops:** %d", f.Stops),
		"Would you like me to proceed with booking this flight, or would you prefer that I explore more options for you?",
	}
	return strings.Join(lines, "\n")
}
