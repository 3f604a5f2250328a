package schedule_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kolamba/backend/internal/domain"
	"github.com/kolamba/backend/internal/schedule"
)

type venue struct {
	city     string
	lat, lng float64
}

var (
	austin     = venue{"Austin", 30.2672, -97.7431}
	houston    = venue{"Houston", 29.7604, -95.3698}
	denver     = venue{"Denver", 39.7392, -104.9903}
	boulder    = venue{"Boulder", 40.0150, -105.2705}
	sanAntonio = venue{"San Antonio", 29.4241, -98.4936}
)

func request(performer uuid.UUID, date time.Time, v venue) domain.Booking {
	return domain.Booking{
		ID:            uuid.New(),
		PerformerID:   performer,
		HostID:        uuid.New(),
		RequestedDate: ptr(date),
		Location:      v.city,
		Latitude:      ptr(v.lat),
		Longitude:     ptr(v.lng),
		Budget:        money("900"),
		Status:        domain.BookingPending,
	}
}

func cities(in []domain.StopInput) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		out = append(out, s.City)
	}
	return out
}

func TestSuggest_LargestNearbyGroup(t *testing.T) {
	tour := newTour(t, domain.Constraints{})
	p := tour.PerformerID

	houstonReq := request(p, march(12), houston)
	austinReq := request(p, march(10), austin)
	austinReq.Status = domain.BookingQuoteSent
	austinReq.QuoteAmount = money("1500")
	candidates := []domain.Booking{
		houstonReq,
		austinReq,
		request(p, march(14), denver), // alone, below the minimum group size
	}

	got := schedule.Suggest(tour, candidates, schedule.SuggestOptions{})

	require.Equal(t, []string{"Austin", "Houston"}, cities(got))
	first := got[0]
	assert.Equal(t, domain.StopRecommended, first.Status)
	require.NotNil(t, first.BookingID)
	assert.Equal(t, austinReq.ID, *first.BookingID)
	assert.Equal(t, march(10), first.Date)
	assert.True(t, first.PerformanceFee.Equal(*austinReq.QuoteAmount), "quote wins over budget")
	assert.True(t, got[1].PerformanceFee.Equal(*houstonReq.Budget))
	assert.Equal(t, austin.lat, *first.Latitude)
}

func TestSuggest_SkipsIneligibleBookings(t *testing.T) {
	tour := newTour(t, domain.Constraints{})
	p := tour.PerformerID

	attached := request(p, march(5), sanAntonio)
	add(t, &tour, domain.StopInput{BookingID: &attached.ID, Date: march(5), City: "San Antonio"})

	declined := request(p, march(11), houston)
	declined.Status = domain.BookingDeclined
	unlocated := request(p, march(11), houston)
	unlocated.Latitude, unlocated.Longitude = nil, nil
	undated := request(p, march(11), houston)
	undated.RequestedDate = nil

	candidates := []domain.Booking{
		request(p, march(10), austin),
		request(p, march(12), houston),
		attached,
		declined,
		unlocated,
		undated,
		request(p, time.Date(2026, time.April, 3, 0, 0, 0, 0, time.UTC), sanAntonio), // outside the window
		request(uuid.New(), march(11), sanAntonio),                                   // another performer
	}

	got := schedule.Suggest(tour, candidates, schedule.SuggestOptions{})

	assert.Equal(t, []string{"Austin", "Houston"}, cities(got))
}

func TestSuggest_AnchorsOnExistingStops(t *testing.T) {
	tour := newTour(t, domain.Constraints{})
	p := tour.PerformerID
	add(t, &tour, domain.StopInput{Date: march(3), City: "Denver", Latitude: ptr(denver.lat), Longitude: ptr(denver.lng)})

	candidates := []domain.Booking{
		request(p, march(10), austin),
		request(p, march(12), houston),
		request(p, march(4), boulder),
	}

	got := schedule.Suggest(tour, candidates, schedule.SuggestOptions{})

	assert.Equal(t, []string{"Boulder"}, cities(got), "only venues reachable from the tour are recommended")
}

func TestSuggest_Options(t *testing.T) {
	tour := newTour(t, domain.Constraints{})
	p := tour.PerformerID
	candidates := []domain.Booking{request(p, march(10), austin), request(p, march(12), houston)}

	tests := []struct {
		name string
		opts schedule.SuggestOptions
		want []string
	}{
		{"defaults", schedule.SuggestOptions{}, []string{"Austin", "Houston"}},
		{"too far apart", schedule.SuggestOptions{MaxDistanceKM: 100}, []string{}},
		{"group too small", schedule.SuggestOptions{MinBookings: 3}, []string{}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, cities(schedule.Suggest(tour, candidates, tc.opts)))
		})
	}
}

func TestSuggest_RecommendedStopsFitTheTour(t *testing.T) {
	tour := newTour(t, domain.Constraints{})
	p := tour.PerformerID
	candidates := []domain.Booking{request(p, march(10), austin), request(p, march(12), houston)}

	for _, in := range schedule.Suggest(tour, candidates, schedule.SuggestOptions{}) {
		stop := add(t, &tour, in)
		assert.Equal(t, domain.StopRecommended, stop.Status)
	}
	newScheduler(nil).Recompute(context.Background(), &tour)

	assert.Len(t, tour.Stops, 2)
	assert.Zero(t, tour.ConfirmedShows)
	assert.Empty(t, schedule.Suggest(tour, candidates, schedule.SuggestOptions{}), "bookings already on the tour are not suggested again")
}
