package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// StopStatus classifies a stop on a tour itinerary.
type StopStatus string

const (
	StopConfirmed   StopStatus = "confirmed"
	StopOpen        StopStatus = "open"
	StopRestDay     StopStatus = "rest_day"
	StopInquiry     StopStatus = "inquiry"
	StopRecommended StopStatus = "recommended"
)

var stopStatusLabels = map[StopStatus]string{
	StopConfirmed:   "Confirmed",
	StopOpen:        "Open",
	StopRestDay:     "Rest Day",
	StopInquiry:     "Inquiry",
	StopRecommended: "Recommended",
}

// Valid reports whether s is a known stop status.
func (s StopStatus) Valid() bool {
	_, ok := stopStatusLabels[s]
	return ok
}

// Label returns the human-readable label for the status.
func (s StopStatus) Label() string {
	if l, ok := stopStatusLabels[s]; ok {
		return l
	}
	return string(s)
}

// TourStop is one dated entry on a tour itinerary. BookingID is nil for open
// slots and rest days. A recommended stop points at the booking request it
// was suggested from.
//
// TravelFromPrev and NetRevenue are derived by the scheduler and must not be
// set by callers.
type TourStop struct {
	ID                uuid.UUID
	TourID            uuid.UUID
	BookingID         *uuid.UUID
	Date              time.Time
	City              string
	VenueName         string
	Latitude          *float64
	Longitude         *float64
	SequenceOrder     int
	TravelFromPrev    string
	TravelCost        *decimal.Decimal
	AccommodationCost *decimal.Decimal
	PerformanceFee    *decimal.Decimal
	NetRevenue        *decimal.Decimal
	Status            StopStatus
	Notes             string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// IsShow reports whether the stop is a performance day (anything but a rest day).
func (s TourStop) IsShow() bool {
	return s.Status != StopRestDay
}

// HasLocation reports whether the stop carries enough location data to be
// routed: coordinates or at least a city name.
func (s TourStop) HasLocation() bool {
	return (s.Latitude != nil && s.Longitude != nil) || strings.TrimSpace(s.City) != ""
}

// DeriveNetRevenue returns fee − travel − accommodation, or nil without a fee.
// Missing costs count as zero.
func (s TourStop) DeriveNetRevenue() *decimal.Decimal {
	if s.PerformanceFee == nil {
		return nil
	}
	net := *s.PerformanceFee
	if s.TravelCost != nil {
		net = net.Sub(*s.TravelCost)
	}
	if s.AccommodationCost != nil {
		net = net.Sub(*s.AccommodationCost)
	}
	return &net
}

// StopInput carries the caller-supplied fields of a new stop.
type StopInput struct {
	BookingID         *uuid.UUID
	Date              time.Time
	City              string
	VenueName         string
	Latitude          *float64
	Longitude         *float64
	TravelCost        *decimal.Decimal
	AccommodationCost *decimal.Decimal
	PerformanceFee    *decimal.Decimal
	Status            StopStatus
	Notes             string
}

// validate enforces the per-stop rules that do not depend on the tour.
func (in StopInput) validate() error {
	if in.Date.IsZero() {
		return fmt.Errorf("%w: date is required", ErrValidation)
	}
	if !in.Status.Valid() {
		return fmt.Errorf("%w: unknown stop status %q", ErrValidation, in.Status)
	}
	if in.Status == StopRestDay && in.PerformanceFee != nil {
		return fmt.Errorf("%w: a rest day cannot carry a performance fee", ErrValidation)
	}
	if (in.Latitude == nil) != (in.Longitude == nil) {
		return fmt.Errorf("%w: latitude and longitude must be set together", ErrValidation)
	}
	if in.Latitude != nil && (*in.Latitude < -90 || *in.Latitude > 90 || *in.Longitude < -180 || *in.Longitude > 180) {
		return fmt.Errorf("%w: coordinates out of range", ErrValidation)
	}
	money := []struct {
		name string
		v    *decimal.Decimal
	}{
		{"travel_cost", in.TravelCost},
		{"accommodation_cost", in.AccommodationCost},
		{"performance_fee", in.PerformanceFee},
	}
	for _, m := range money {
		if m.v != nil && m.v.IsNegative() {
			return fmt.Errorf("%w: %s must not be negative", ErrValidation, m.name)
		}
	}
	return nil
}
