package geo

import (
	"context"
	"errors"
	"math"
	"time"
)

const earthRadiusKM = 6371.0

// roadFactor inflates great-circle distance to approximate road distance.
const roadFactor = 1.25

// HaversineProvider estimates routes from coordinates alone, assuming a
// constant average driving speed. It cannot route free-text cities.
type HaversineProvider struct {
	SpeedKMH float64
}

// NewHaversineProvider returns an estimator driving at speedKMH.
func NewHaversineProvider(speedKMH float64) *HaversineProvider {
	if speedKMH <= 0 {
		speedKMH = 70
	}
	return &HaversineProvider{SpeedKMH: speedKMH}
}

var errNoCoordinates = errors.New("coordinates required")

// DistanceAndTime implements Provider. It is pure computation and ignores ctx,
// so it can answer as the last link of a Chain whose deadline has passed.
func (p *HaversineProvider) DistanceAndTime(_ context.Context, origin, destination Location) (Route, error) {
	if !origin.HasCoordinates() || !destination.HasCoordinates() {
		return Route{}, unavailable("geo.HaversineProvider.DistanceAndTime", errNoCoordinates)
	}
	km, _ := GreatCircleKM(origin, destination)
	km *= roadFactor
	hours := km / p.SpeedKMH
	return Route{
		DistanceKM: km,
		Duration:   time.Duration(hours * float64(time.Hour)).Round(time.Minute),
	}, nil
}

// GreatCircleKM returns the straight-line distance between two geocoded
// locations. ok is false when either lacks coordinates.
func GreatCircleKM(a, b Location) (km float64, ok bool) {
	if !a.HasCoordinates() || !b.HasCoordinates() {
		return 0, false
	}
	return greatCircleKM(*a.Latitude, *a.Longitude, *b.Latitude, *b.Longitude), true
}

func greatCircleKM(lat1, lng1, lat2, lng2 float64) float64 {
	rad := func(d float64) float64 { return d * math.Pi / 180 }
	dLat := rad(lat2 - lat1)
	dLng := rad(lng2 - lng1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rad(lat1))*math.Cos(rad(lat2))*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusKM * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}
