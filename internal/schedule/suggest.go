package schedule

import (
	"slices"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kolamba/backend/internal/domain"
	"github.com/kolamba/backend/internal/geo"
)

// SuggestOptions tune how bookings are grouped into recommended stops.
type SuggestOptions struct {
	// MaxDistanceKM links two venues whose great-circle distance is at most
	// this far apart. Default 500.
	MaxDistanceKM float64
	// MinBookings is the smallest group worth recommending when the tour has
	// no geocoded stops yet. Default 2.
	MinBookings int
}

// DefaultSuggestOptions match the grouping used for tour planning.
var DefaultSuggestOptions = SuggestOptions{MaxDistanceKM: 500, MinBookings: 2}

func (o SuggestOptions) withDefaults() SuggestOptions {
	if o.MaxDistanceKM <= 0 {
		o.MaxDistanceKM = DefaultSuggestOptions.MaxDistanceKM
	}
	if o.MinBookings <= 0 {
		o.MinBookings = DefaultSuggestOptions.MinBookings
	}
	return o
}

// Suggest proposes recommended stops for t from the performer's open booking
// requests.
//
// Candidates must belong to the tour's performer, still be live, carry a
// requested date inside the tour window and be geocoded. Venues within
// MaxDistanceKM of each other are linked and grouped into connected
// components. When the tour already has geocoded shows, every group touching
// one of them is recommended. Otherwise the largest group with at least
// MinBookings bookings is. The result is ordered by date.
func Suggest(t domain.Tour, candidates []domain.Booking, opts SuggestOptions) []domain.StopInput {
	opts = opts.withDefaults()

	onTour := make(map[uuid.UUID]bool)
	var nodes []geo.Location
	for _, st := range t.Stops {
		if st.BookingID != nil {
			onTour[*st.BookingID] = true
		}
		if st.IsShow() && st.Latitude != nil && st.Longitude != nil {
			nodes = append(nodes, geo.StopLocation(st))
		}
	}
	anchors := len(nodes)

	var picked []domain.Booking
	for _, b := range candidates {
		if !eligible(t, b, onTour) {
			continue
		}
		onTour[b.ID] = true
		picked = append(picked, b)
		nodes = append(nodes, geo.BookingLocation(b))
	}
	if len(picked) == 0 {
		return []domain.StopInput{}
	}

	var chosen []int
	for _, comp := range components(nodes, opts.MaxDistanceKM) {
		bookings := make([]int, 0, len(comp))
		anchored := false
		for _, n := range comp {
			if n < anchors {
				anchored = true
			} else {
				bookings = append(bookings, n-anchors)
			}
		}
		switch {
		case anchors > 0:
			if anchored {
				chosen = append(chosen, bookings...)
			}
		case len(bookings) >= opts.MinBookings && len(bookings) > len(chosen):
			chosen = bookings
		}
	}

	out := make([]domain.StopInput, 0, len(chosen))
	for _, i := range chosen {
		out = append(out, recommend(picked[i]))
	}
	slices.SortStableFunc(out, func(a, b domain.StopInput) int {
		return a.Date.Compare(b.Date)
	})
	return out
}

func eligible(t domain.Tour, b domain.Booking, onTour map[uuid.UUID]bool) bool {
	if b.PerformerID != t.PerformerID || !b.Schedulable() || onTour[b.ID] {
		return false
	}
	if b.RequestedDate == nil || !b.HasCoordinates() {
		return false
	}
	d := domain.Day(*b.RequestedDate)
	if t.StartDate != nil && d.Before(domain.Day(*t.StartDate)) {
		return false
	}
	if t.EndDate != nil && d.After(domain.Day(*t.EndDate)) {
		return false
	}
	return true
}

// components groups node indexes into connected components where an edge
// joins nodes at most maxKM apart. Components come out in order of their
// lowest index.
func components(nodes []geo.Location, maxKM float64) [][]int {
	adj := make([][]int, len(nodes))
	for i := range nodes {
		for j := i + 1; j < len(nodes); j++ {
			if km, ok := geo.GreatCircleKM(nodes[i], nodes[j]); ok && km <= maxKM {
				adj[i] = append(adj[i], j)
				adj[j] = append(adj[j], i)
			}
		}
	}

	visited := make([]bool, len(nodes))
	var out [][]int
	for start := range nodes {
		if visited[start] {
			continue
		}
		visited[start] = true
		comp := []int{}
		queue := []int{start}
		for len(queue) > 0 {
			n := queue[0]
			queue = queue[1:]
			comp = append(comp, n)
			for _, next := range adj[n] {
				if !visited[next] {
					visited[next] = true
					queue = append(queue, next)
				}
			}
		}
		slices.Sort(comp)
		out = append(out, comp)
	}
	return out
}

func recommend(b domain.Booking) domain.StopInput {
	id := b.ID
	in := domain.StopInput{
		BookingID: &id,
		Date:      domain.Day(*b.RequestedDate),
		City:      b.Location,
		Latitude:  b.Latitude,
		Longitude: b.Longitude,
		Status:    domain.StopRecommended,
	}
	switch {
	case b.QuoteAmount != nil:
		in.PerformanceFee = decimalPtr(*b.QuoteAmount)
	case b.Budget != nil:
		in.PerformanceFee = decimalPtr(*b.Budget)
	}
	return in
}

func decimalPtr(d decimal.Decimal) *decimal.Decimal { return &d }
