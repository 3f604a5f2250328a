// Package schedule validates a tour itinerary against the performer's
// constraints and derives the tour's read model: per-stop travel and net
// revenue, advisory warnings, confirmed show count and efficiency score.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/kolamba/backend/internal/domain"
	"github.com/kolamba/backend/internal/geo"
)

// Weights configure the efficiency score. They are relative penalty weights
// and are normalized to sum to 1. The violation weight must be positive.
type Weights struct {
	Confirmed  float64
	Violations float64
	Profit     float64
}

// DefaultWeights is the 40/40/20 composite.
var DefaultWeights = Weights{Confirmed: 0.4, Violations: 0.4, Profit: 0.2}

// Validate reports weights that cannot produce a usable score.
func (w Weights) Validate() error {
	if w.Confirmed < 0 || w.Violations < 0 || w.Profit < 0 {
		return errors.New("score weights must not be negative")
	}
	if w.Violations <= 0 {
		return errors.New("violation weight must be positive")
	}
	return nil
}

func (w Weights) normalized() Weights {
	if w.Validate() != nil {
		return DefaultWeights
	}
	sum := w.Confirmed + w.Violations + w.Profit
	return Weights{Confirmed: w.Confirmed / sum, Violations: w.Violations / sum, Profit: w.Profit / sum}
}

// DefaultBudget caps the time one Recompute spends on distance lookups.
const DefaultBudget = 10 * time.Second

// Scheduler recomputes a tour's derived state in a single pass.
type Scheduler struct {
	geo     geo.Provider
	timeout time.Duration
	budget  time.Duration
	weights Weights
	logger  *slog.Logger
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithBudget caps the total time Recompute spends on distance lookups. Once
// it is spent, the remaining hops see a done context.
func WithBudget(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.budget = d
		}
	}
}

// New returns a Scheduler. timeout bounds each distance lookup.
func New(provider geo.Provider, timeout time.Duration, weights Weights, logger *slog.Logger, opts ...Option) *Scheduler {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	s := &Scheduler{geo: provider, timeout: timeout, budget: DefaultBudget, weights: weights.normalized(), logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Recompute refreshes every derived field of t from its stops and
// constraints. It never fails: an unreachable distance provider degrades
// to distance_unknown notices. Calling it twice with an unchanged tour and
// a deterministic provider gives identical results.
func (s *Scheduler) Recompute(ctx context.Context, t *domain.Tour) {
	slices.SortStableFunc(t.Stops, func(a, b domain.TourStop) int {
		if c := a.Date.Compare(b.Date); c != 0 {
			return c
		}
		return a.SequenceOrder - b.SequenceOrder
	})
	for i := range t.Stops {
		t.Stops[i].NetRevenue = t.Stops[i].DeriveNetRevenue()
		t.Stops[i].TravelFromPrev = ""
	}

	travelCtx, cancel := context.WithTimeout(ctx, s.budget)
	var warnings []domain.Violation
	warnings = append(warnings, s.checkTravel(travelCtx, t)...)
	cancel()
	warnings = append(warnings, checkRestDays(t)...)
	warnings = append(warnings, checkWeeklyLoad(t)...)

	floor := checkProfitFloor(t)
	t.BelowProfitTarget = floor != nil
	if floor != nil {
		warnings = append(warnings, *floor)
	}

	if warnings == nil {
		warnings = []domain.Violation{}
	}
	t.Warnings = warnings
	t.ConfirmedShows = confirmedShows(t)
	t.EfficiencyScore = Score(t, s.weights)
}

// checkTravel walks the chain of stops that carry a location and checks
// each hop against max_travel_hours.
func (s *Scheduler) checkTravel(ctx context.Context, t *domain.Tour) []domain.Violation {
	var out []domain.Violation
	maxHours := t.Constraints.MaxTravelHours
	prev := -1
	for i := range t.Stops {
		cur := &t.Stops[i]
		if !cur.HasLocation() {
			continue
		}
		if prev < 0 {
			prev = i
			continue
		}
		from := t.Stops[prev]
		prev = i

		route, err := s.lookup(ctx, geo.StopLocation(from), geo.StopLocation(*cur))
		if err != nil {
			s.logger.WarnContext(ctx, "distance unknown",
				"tour_id", t.ID, "from", from.City, "to", cur.City, "error", err)
			out = append(out, stopViolation(domain.NoticeDistanceUnknown, cur.ID,
				fmt.Sprintf("travel time from %s to %s could not be determined", label(from), label(*cur))))
			continue
		}
		cur.TravelFromPrev = route.String()

		if maxHours == nil {
			continue
		}
		if route.Hours() > *maxHours {
			out = append(out, stopViolation(domain.ViolationMaxTravelExceeded, cur.ID,
				fmt.Sprintf("%s exceeds the %.1fh travel limit", route, *maxHours)))
		}
		gap := cur.Date.Sub(from.Date)
		if route.Duration > 0 && route.Duration >= gap {
			out = append(out, stopViolation(domain.ViolationInsufficientTravelBuffer, cur.ID,
				fmt.Sprintf("%s of travel leaves no buffer after %s", route, from.Date.Format(time.DateOnly))))
		}
	}
	return out
}

func (s *Scheduler) lookup(ctx context.Context, from, to geo.Location) (geo.Route, error) {
	if s.geo == nil {
		return geo.Route{}, domain.ErrDistanceUnavailable
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.geo.DistanceAndTime(ctx, from, to)
}

func checkRestDays(t *domain.Tour) []domain.Violation {
	var out []domain.Violation
	switch t.Constraints.RestDayRule {
	case domain.RestDayEveryWednesday, domain.RestDayEverySaturday:
		weekday := time.Wednesday
		if t.Constraints.RestDayRule == domain.RestDayEverySaturday {
			weekday = time.Saturday
		}
		for _, st := range t.Stops {
			if st.IsShow() && st.Date.Weekday() == weekday {
				out = append(out, stopViolation(domain.ViolationRestDay, st.ID,
					fmt.Sprintf("%s is a %s; %ss are rest days", st.Date.Format(time.DateOnly), weekday, weekday)))
			}
		}
	case domain.RestDayAfter3Consecutive:
		showDays := make(map[time.Time]bool)
		for _, st := range t.Stops {
			if st.IsShow() {
				showDays[domain.Day(st.Date)] = true
			}
		}
		for _, st := range t.Stops {
			if !st.IsShow() {
				continue
			}
			d := domain.Day(st.Date)
			if showDays[d.AddDate(0, 0, -1)] && showDays[d.AddDate(0, 0, -2)] && showDays[d.AddDate(0, 0, -3)] {
				out = append(out, stopViolation(domain.ViolationRestDay, st.ID,
					fmt.Sprintf("%s follows three consecutive show days", d.Format(time.DateOnly))))
			}
		}
	}
	return out
}

func checkWeeklyLoad(t *domain.Tour) []domain.Violation {
	c := t.Constraints
	if c.MinShowsPerWeek == nil && c.MaxShowsPerWeek == nil {
		return nil
	}
	counts := make(map[string]int)
	var weeks []string
	for _, st := range t.Stops {
		if !st.IsShow() {
			continue
		}
		w := isoWeek(st.Date)
		if counts[w] == 0 {
			weeks = append(weeks, w)
		}
		counts[w]++
	}
	slices.Sort(weeks)

	var out []domain.Violation
	for _, w := range weeks {
		n := counts[w]
		if c.MinShowsPerWeek != nil && n < *c.MinShowsPerWeek {
			out = append(out, domain.Violation{Kind: domain.ViolationWeeklyUnderload, Week: w,
				Message: fmt.Sprintf("%s has %d shows, minimum is %d", w, n, *c.MinShowsPerWeek)})
		}
		if c.MaxShowsPerWeek != nil && n > *c.MaxShowsPerWeek {
			out = append(out, domain.Violation{Kind: domain.ViolationWeeklyOverload, Week: w,
				Message: fmt.Sprintf("%s has %d shows, maximum is %d", w, n, *c.MaxShowsPerWeek)})
		}
	}
	return out
}

func checkProfitFloor(t *domain.Tour) *domain.Violation {
	floor := t.Constraints.MinNetProfit
	if floor == nil {
		return nil
	}
	projected := t.ProjectedNet()
	if !projected.LessThan(*floor) {
		return nil
	}
	return &domain.Violation{
		Kind: domain.ViolationBelowProfitTarget,
		Message: fmt.Sprintf("projected net %s is below the %s target (confirmed %s)",
			domain.FormatMoney(projected), domain.FormatMoney(*floor), domain.FormatMoney(t.ConfirmedNet())),
	}
}

// Score computes the efficiency score for t's current stops and warnings.
//
// A tour starts at 100 and loses points for three kinds of problem: warnings
// that count against the score, shows that are not yet confirmed, and stops
// whose net revenue is negative. Each count n enters as n/(n+1), so every
// additional problem costs points while the total stays within 0..100. A
// confirmed stop that breaks no rule and makes no loss changes nothing.
func Score(t *domain.Tour, w Weights) int {
	w = w.normalized()

	unconfirmed, losing := 0, 0
	for _, st := range t.Stops {
		if st.IsShow() && st.Status != domain.StopConfirmed {
			unconfirmed++
		}
		if st.NetRevenue != nil && st.NetRevenue.IsNegative() {
			losing++
		}
	}
	v := 0
	for _, warn := range t.Warnings {
		if warn.CountsAgainstScore() {
			v++
		}
	}

	penalty := w.Violations*saturate(v) + w.Confirmed*saturate(unconfirmed) + w.Profit*saturate(losing)
	return int(math.Round(clamp(100*(1-penalty), 0, 100)))
}

func saturate(n int) float64 {
	return float64(n) / float64(n+1)
}

func confirmedShows(t *domain.Tour) int {
	n := 0
	for _, st := range t.Stops {
		if st.Status == domain.StopConfirmed {
			n++
		}
	}
	return n
}

func isoWeek(d time.Time) string {
	y, w := d.ISOWeek()
	return fmt.Sprintf("%04d-W%02d", y, w)
}

func stopViolation(kind domain.ViolationKind, stopID uuid.UUID, msg string) domain.Violation {
	id := stopID
	return domain.Violation{Kind: kind, StopID: &id, Message: msg}
}

func label(s domain.TourStop) string {
	if s.City != "" {
		return s.City
	}
	if s.VenueName != "" {
		return s.VenueName
	}
	return s.Date.Format(time.DateOnly)
}

func clamp(x, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, x))
}
