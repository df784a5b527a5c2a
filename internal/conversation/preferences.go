package conversation

// PreferenceKind tags the concrete preference variant for serialization.
type PreferenceKind string

const (
	KindItinerary     PreferenceKind = "itinerary"
	KindFlightBooking PreferenceKind = "flight_booking"
)

// Preferences is the contract both preference variants satisfy. A variant
// knows which of its fields are mandatory and whether it is complete.
// Preference values are owned by the State and replaced wholesale by
// extractor nodes, never mutated in place.
type Preferences interface {
	Kind() PreferenceKind

	// RequiredFieldsMissing returns the names of mandatory fields that are
	// currently unset, in declared field-check order.
	RequiredFieldsMissing() []string

	// IsComplete reports whether every mandatory field is set.
	IsComplete() bool
}

// ItineraryPreferences captures trip-planning details extracted from the
// conversation. Destination, travel dates, duration, and origin are mandatory.
type ItineraryPreferences struct {
	Destination         string `json:"destination,omitempty"`
	TravelDates         string `json:"travel_dates,omitempty"`
	DurationDays        int    `json:"duration_days,omitempty"`
	Origin              string `json:"origin,omitempty"`
	Budget              string `json:"budget,omitempty"`
	NumberOfTravelers   int    `json:"number_of_travelers,omitempty"`
	SpecialRequirements string `json:"special_requirements,omitempty"`
}

// Kind returns the itinerary variant tag.
func (p *ItineraryPreferences) Kind() PreferenceKind { return KindItinerary }

// RequiredFieldsMissing lists unset mandatory fields in field-check order:
// destination, travel_dates, duration_days, origin.
func (p *ItineraryPreferences) RequiredFieldsMissing() []string {
	var missing []string
	if p.Destination == "" {
		missing = append(missing, "destination")
	}
	if p.TravelDates == "" {
		missing = append(missing, "travel_dates")
	}
	if p.DurationDays == 0 {
		missing = append(missing, "duration_days")
	}
	if p.Origin == "" {
		missing = append(missing, "origin")
	}
	return missing
}

// IsComplete reports whether all mandatory itinerary fields are set.
func (p *ItineraryPreferences) IsComplete() bool {
	return len(p.RequiredFieldsMissing()) == 0
}

// FlightBookingPreferences captures flight-booking details extracted from the
// conversation. All four fields are mandatory. NumberOfTravelers is kept as a
// free-form string ("2", "two adults"); the flight tool coerces it.
type FlightBookingPreferences struct {
	Destination       string `json:"destination,omitempty"`
	Origin            string `json:"origin,omitempty"`
	TravelDates       string `json:"travel_dates,omitempty"`
	NumberOfTravelers string `json:"number_of_travelers,omitempty"`
}

// Kind returns the flight-booking variant tag.
func (p *FlightBookingPreferences) Kind() PreferenceKind { return KindFlightBooking }

// RequiredFieldsMissing lists unset mandatory fields in field-check order:
// destination, travel_dates, origin, number_of_travelers.
func (p *FlightBookingPreferences) RequiredFieldsMissing() []string {
	var missing []string
	if p.Destination == "" {
		missing = append(missing, "destination")
	}
	if p.TravelDates == "" {
		missing = append(missing, "travel_dates")
	}
	if p.Origin == "" {
		missing = append(missing, "origin")
	}
	if p.NumberOfTravelers == "" {
		missing = append(missing, "number_of_travelers")
	}
	return missing
}

// IsComplete reports whether all mandatory flight-booking fields are set.
func (p *FlightBookingPreferences) IsComplete() bool {
	return len(p.RequiredFieldsMissing()) == 0
}
