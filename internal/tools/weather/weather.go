// Package weather resolves a city name to coordinates and fetches the
// current weather via the Open-Meteo APIs.
package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	geocodeBaseURL  = "https://geocoding-api.open-meteo.com/v1/search"
	forecastBaseURL = "https://api.open-meteo.com/v1/forecast"
	defaultTimeout  = 10 * time.Second

	currentFields = "temperature_2m,relative_humidity_2m,weather_code,wind_speed_10m,wind_direction_10m"
)

// Location is a geocoding result.
type Location struct {
	Name        string  `json:"name"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	CountryCode string  `json:"country_code,omitempty"`
	Admin1      string  `json:"admin1,omitempty"`
}

// Current is the current weather at a location.
type Current struct {
	TemperatureC  float64 `json:"temperature_c"`
	WindSpeedKmh  float64 `json:"wind_speed_kmh"`
	WindDirection int     `json:"wind_direction"`
	WeatherCode   int     `json:"weather_code"`
	TimeISO       string  `json:"time_iso"`
}

// Client talks to the Open-Meteo geocoding and forecast APIs.
type Client struct {
	geocodeURL  string
	forecastURL string
	http        *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithGeocodeURL overrides the geocoding endpoint. Used by tests.
func WithGeocodeURL(u string) Option {
	return func(c *Client) { c.geocodeURL = strings.TrimRight(u, "/") }
}

// WithForecastURL overrides the forecast endpoint. Used by tests.
func WithForecastURL(u string) Option {
	return func(c *Client) { c.forecastURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient substitutes the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// NewClient creates a weather client against the public Open-Meteo APIs.
func NewClient(opts ...Option) *Client {
	c := &Client{
		geocodeURL:  geocodeBaseURL,
		forecastURL: forecastBaseURL,
		http:        &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Geocode resolves a city name to candidate locations, best match first.
func (c *Client) Geocode(ctx context.Context, city string) ([]Location, error) {
	city = strings.TrimSpace(city)
	if city == "" {
		return nil, fmt.Errorf("city name is required")
	}

	q := url.Values{}
	q.Set("name", city)
	q.Set("count", "10")

	var raw struct {
		Results []struct {
			Name        string  `json:"name"`
			Latitude    float64 `json:"latitude"`
			Longitude   float64 `json:"longitude"`
			CountryCode string  `json:"country_code"`
			Admin1      string  `json:"admin1"`
		} `json:"results"`
	}
	if err := c.getJSON(ctx, c.geocodeURL+"?"+q.Encode(), &raw); err != nil {
		return nil, fmt.Errorf("geocode %q: %w", city, err)
	}
	if len(raw.Results) == 0 {
		return nil, fmt.Errorf("no results found for %q", city)
	}

	locations := make([]Location, 0, len(raw.Results))
	for _, r := range raw.Results {
		locations = append(locations, Location{
			Name:        r.Name,
			Latitude:    r.Latitude,
			Longitude:   r.Longitude,
			CountryCode: r.CountryCode,
			Admin1:      r.Admin1,
		})
	}
	return locations, nil
}

// Forecast fetches the current weather for the given coordinates.
func (c *Client) Forecast(ctx context.Context, latitude, longitude float64) (*Current, error) {
	if latitude < -90 || latitude > 90 {
		return nil, fmt.Errorf("latitude out of range: %v", latitude)
	}
	if longitude < -180 || longitude > 180 {
		return nil, fmt.Errorf("longitude out of range: %v", longitude)
	}

	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(latitude, 'f', -1, 64))
	q.Set("longitude", strconv.FormatFloat(longitude, 'f', -1, 64))
	q.Set("current", currentFields)

	var raw struct {
		Current struct {
			Temperature2m   float64 `json:"temperature_2m"`
			WindSpeed10m    float64 `json:"wind_speed_10m"`
			WindDirection10 int     `json:"wind_direction_10m"`
			WeatherCode     int     `json:"weather_code"`
			Time            string  `json:"time"`
		} `json:"current"`
	}
	if err := c.getJSON(ctx, c.forecastURL+"?"+q.Encode(), &raw); err != nil {
		return nil, fmt.Errorf("forecast: %w", err)
	}

	return &Current{
		TemperatureC:  raw.Current.Temperature2m,
		WindSpeedKmh:  raw.Current.WindSpeed10m,
		WindDirection: raw.Current.WindDirection10,
		WeatherCode:   raw.Current.WeatherCode,
		TimeISO:       raw.Current.Time,
	}, nil
}

// ByCity resolves a city name and returns a one-line weather summary.
func (c *Client) ByCity(ctx context.Context, city string) (string, error) {
	locations, err := c.Geocode(ctx, city)
	if err != nil {
		return "", err
	}

	best := locations[0]
	label := best.Name
	if label == "" {
		label = city
	}

	current, err := c.Forecast(ctx, best.Latitude, best.Longitude)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("Weather in %s: %g°C, wind %g km/h from %d°, conditions code %d (time: %s).",
		label, current.TemperatureC, current.WindSpeedKmh, current.WindDirection,
		current.WeatherCode, current.TimeISO), nil
}

func (c *Client) getJSON(ctx context.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
