// Package geo answers travel distance and duration questions between tour
// stops. Providers are interchangeable: a great-circle estimate, a remote
// routing service behind a circuit breaker, and a Redis cache in front of
// either.
package geo

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/kolamba/backend/internal/domain"
)

// Location is either a pair of coordinates or a free-text city. Coordinates
// win when both are present.
type Location struct {
	City      string
	Latitude  *float64
	Longitude *float64
}

// StopLocation extracts the routable location of a stop.
func StopLocation(s domain.TourStop) Location {
	return Location{City: strings.TrimSpace(s.City), Latitude: s.Latitude, Longitude: s.Longitude}
}

// BookingLocation extracts the venue location of a booking request.
func BookingLocation(b domain.Booking) Location {
	return Location{City: strings.TrimSpace(b.Location), Latitude: b.Latitude, Longitude: b.Longitude}
}

// HasCoordinates reports whether both coordinates are set.
func (l Location) HasCoordinates() bool {
	return l.Latitude != nil && l.Longitude != nil
}

// Key is a stable cache key for the location.
func (l Location) Key() string {
	if l.HasCoordinates() {
		return fmt.Sprintf("%.5f,%.5f", *l.Latitude, *l.Longitude)
	}
	return strings.ToLower(l.City)
}

// Route is the answer to a distance query.
type Route struct {
	DistanceKM float64       `json:"distance_km"`
	Duration   time.Duration `json:"duration"`
}

// Hours returns the duration in fractional hours.
func (r Route) Hours() float64 {
	return r.Duration.Hours()
}

// String renders the route as "4h 30m · 310 km".
func (r Route) String() string {
	mins := int(math.Round(r.Duration.Minutes()))
	return fmt.Sprintf("%dh %02dm · %d km", mins/60, mins%60, int(math.Round(r.DistanceKM)))
}

// Provider computes driving distance and time between two locations.
// Implementations return errors wrapping domain.ErrDistanceUnavailable when
// they cannot answer.
type Provider interface {
	DistanceAndTime(ctx context.Context, origin, destination Location) (Route, error)
}

// unavailable wraps err so callers can match domain.ErrDistanceUnavailable.
func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, domain.ErrDistanceUnavailable, err)
}
