// Package domain contains the core types of the booking and touring system:
// the booking negotiation state machine, the quote policy, and the tour
// aggregate with its ordered stops. It performs no I/O.
package domain

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TourStatus is the lifecycle state of a tour.
type TourStatus string

const (
	TourDraft      TourStatus = "draft"
	TourProposed   TourStatus = "proposed"
	TourConfirmed  TourStatus = "confirmed"
	TourInProgress TourStatus = "in_progress"
	TourCompleted  TourStatus = "completed"
	TourCancelled  TourStatus = "cancelled"
)

// tourTransitions lists the statuses reachable from each tour status.
var tourTransitions = map[TourStatus][]TourStatus{
	TourDraft:      {TourProposed, TourCancelled},
	TourProposed:   {TourConfirmed, TourCancelled},
	TourConfirmed:  {TourInProgress, TourCancelled},
	TourInProgress: {TourCompleted, TourCancelled},
	TourCompleted:  nil,
	TourCancelled:  nil,
}

// Valid reports whether s is a known tour status.
func (s TourStatus) Valid() bool {
	_, ok := tourTransitions[s]
	return ok
}

// CanTransition reports whether the tour may move from s to to.
func (s TourStatus) CanTransition(to TourStatus) bool {
	return slices.Contains(tourTransitions[s], to)
}

// RestDayRule selects how rest days are enforced across a tour.
type RestDayRule string

const (
	RestDayNone              RestDayRule = "none"
	RestDayEveryWednesday    RestDayRule = "every_wednesday"
	RestDayEverySaturday     RestDayRule = "every_saturday"
	RestDayAfter3Consecutive RestDayRule = "after_3_consecutive"
)

// Valid reports whether r is a known rule. The empty rule means none.
func (r RestDayRule) Valid() bool {
	switch r {
	case "", RestDayNone, RestDayEveryWednesday, RestDayEverySaturday, RestDayAfter3Consecutive:
		return true
	}
	return false
}

// VisaStatus tracks work-visa progress for touring abroad.
type VisaStatus string

const (
	VisaNotRequired VisaStatus = "not_required"
	VisaInProcess   VisaStatus = "in_process"
	VisaApproved    VisaStatus = "approved"
)

// Valid reports whether v is a known visa status. Empty means not set.
func (v VisaStatus) Valid() bool {
	switch v {
	case "", VisaNotRequired, VisaInProcess, VisaApproved:
		return true
	}
	return false
}

// PriceTier is the performer's pricing band for the tour.
type PriceTier string

const (
	PriceTierBudget   PriceTier = "budget"
	PriceTierStandard PriceTier = "standard"
	PriceTierPremium  PriceTier = "premium"
)

// Valid reports whether p is a known tier. Empty means not set.
func (p PriceTier) Valid() bool {
	switch p {
	case "", PriceTierBudget, PriceTierStandard, PriceTierPremium:
		return true
	}
	return false
}

// Constraints are the performer's routing rules for a tour. Nil fields are unset.
type Constraints struct {
	MaxTravelHours  *float64
	MinShowsPerWeek *int
	MaxShowsPerWeek *int
	RestDayRule     RestDayRule
	MinNetProfit    *decimal.Decimal
	VisaStatus      VisaStatus
}

// TourDetails are the performer-editable fields of a tour.
type TourDetails struct {
	Name         string
	Region       string
	Description  string
	StartDate    *time.Time
	EndDate      *time.Time
	TotalBudget  *decimal.Decimal
	PricePerShow *decimal.Decimal
	PriceTier    PriceTier
	Constraints  Constraints
}

// Validate enforces the tour-level invariants.
func (d TourDetails) Validate() error {
	if len(strings.TrimSpace(d.Name)) < 2 {
		return fmt.Errorf("%w: name must be at least 2 characters", ErrValidation)
	}
	if d.StartDate != nil && d.EndDate != nil && Day(*d.EndDate).Before(Day(*d.StartDate)) {
		return fmt.Errorf("%w: end_date must not be before start_date", ErrValidation)
	}
	if d.TotalBudget != nil && d.TotalBudget.IsNegative() {
		return fmt.Errorf("%w: total_budget must not be negative", ErrValidation)
	}
	if d.PricePerShow != nil && d.PricePerShow.IsNegative() {
		return fmt.Errorf("%w: price_per_show must not be negative", ErrValidation)
	}
	if !d.PriceTier.Valid() {
		return fmt.Errorf("%w: unknown price tier %q", ErrValidation, d.PriceTier)
	}
	c := d.Constraints
	if c.MaxTravelHours != nil && *c.MaxTravelHours <= 0 {
		return fmt.Errorf("%w: max_travel_hours must be positive", ErrValidation)
	}
	if c.MinShowsPerWeek != nil && *c.MinShowsPerWeek < 0 {
		return fmt.Errorf("%w: min_shows_per_week must not be negative", ErrValidation)
	}
	if c.MaxShowsPerWeek != nil && *c.MaxShowsPerWeek < 0 {
		return fmt.Errorf("%w: max_shows_per_week must not be negative", ErrValidation)
	}
	if c.MinShowsPerWeek != nil && c.MaxShowsPerWeek != nil && *c.MinShowsPerWeek > *c.MaxShowsPerWeek {
		return fmt.Errorf("%w: min_shows_per_week must not exceed max_shows_per_week", ErrValidation)
	}
	if !c.RestDayRule.Valid() {
		return fmt.Errorf("%w: unknown rest day rule %q", ErrValidation, c.RestDayRule)
	}
	if !c.VisaStatus.Valid() {
		return fmt.Errorf("%w: unknown visa status %q", ErrValidation, c.VisaStatus)
	}
	return nil
}

// Tour is a performer's touring window and the aggregate root of its stops.
// Stops are kept sorted by (Date, SequenceOrder) with SequenceOrder numbered
// 1..n. All stop changes go through AddStop, RemoveStop and Reorder; the
// derived fields are refreshed by the scheduler after every change.
type Tour struct {
	ID          uuid.UUID
	PerformerID uuid.UUID
	TourDetails
	Status            TourStatus
	EfficiencyScore   int
	ConfirmedShows    int
	BelowProfitTarget bool
	Stops             []TourStop
	Warnings          []Violation
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// NewTour builds a draft tour after validating its details.
func NewTour(id, performerID uuid.UUID, d TourDetails, now time.Time) (Tour, error) {
	if performerID == uuid.Nil {
		return Tour{}, fmt.Errorf("%w: performer_id is required", ErrValidation)
	}
	if err := d.Validate(); err != nil {
		return Tour{}, err
	}
	d.Name = strings.TrimSpace(d.Name)
	return Tour{
		ID:          id,
		PerformerID: performerID,
		TourDetails: d,
		Status:      TourDraft,
		Stops:       []TourStop{},
		Warnings:    []Violation{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// UpdateDetails replaces the editable fields. A narrowed date window must
// still contain every existing stop.
func (t *Tour) UpdateDetails(d TourDetails, now time.Time) error {
	if err := t.acceptsChanges(); err != nil {
		return err
	}
	if err := d.Validate(); err != nil {
		return err
	}
	for _, s := range t.Stops {
		if !inWindow(s.Date, d.StartDate, d.EndDate) {
			return fmt.Errorf("%w: stop on %s falls outside the new tour window", ErrDateOutOfRange, s.Date.Format(time.DateOnly))
		}
	}
	d.Name = strings.TrimSpace(d.Name)
	t.TourDetails = d
	t.UpdatedAt = now
	return nil
}

// TransitionTo moves the tour along its status table.
func (t *Tour) TransitionTo(to TourStatus, now time.Time) error {
	if !to.Valid() {
		return fmt.Errorf("%w: unknown tour status %q", ErrValidation, to)
	}
	if !t.Status.CanTransition(to) {
		return fmt.Errorf("%w: tour cannot move from %s to %s", ErrInvalidTransition, t.Status, to)
	}
	t.Status = to
	t.UpdatedAt = now
	return nil
}

// Stop returns the stop with the given id.
func (t *Tour) Stop(id uuid.UUID) (TourStop, bool) {
	for _, s := range t.Stops {
		if s.ID == id {
			return s, true
		}
	}
	return TourStop{}, false
}

// AddStop inserts a stop into the itinerary. A stop dated on the same day as
// existing stops is placed after them. The date must lie inside the tour
// window when both ends are set; that is the only hard itinerary rejection.
func (t *Tour) AddStop(in StopInput, id uuid.UUID, now time.Time) (TourStop, error) {
	if err := t.acceptsChanges(); err != nil {
		return TourStop{}, err
	}
	if err := in.validate(); err != nil {
		return TourStop{}, err
	}
	date := Day(in.Date)
	if !inWindow(date, t.StartDate, t.EndDate) {
		return TourStop{}, fmt.Errorf("%w: %s is outside %s..%s", ErrDateOutOfRange,
			date.Format(time.DateOnly), t.StartDate.Format(time.DateOnly), t.EndDate.Format(time.DateOnly))
	}
	if in.BookingID != nil {
		for _, s := range t.Stops {
			if s.BookingID != nil && *s.BookingID == *in.BookingID {
				return TourStop{}, fmt.Errorf("%w: booking %s is already on this tour", ErrValidation, *in.BookingID)
			}
		}
	}

	stop := TourStop{
		ID:                id,
		TourID:            t.ID,
		BookingID:         in.BookingID,
		Date:              date,
		City:              strings.TrimSpace(in.City),
		VenueName:         strings.TrimSpace(in.VenueName),
		Latitude:          in.Latitude,
		Longitude:         in.Longitude,
		SequenceOrder:     len(t.Stops) + 1,
		TravelCost:        in.TravelCost,
		AccommodationCost: in.AccommodationCost,
		PerformanceFee:    in.PerformanceFee,
		Status:            in.Status,
		Notes:             strings.TrimSpace(in.Notes),
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	stop.NetRevenue = stop.DeriveNetRevenue()

	t.Stops = append(t.Stops, stop)
	t.renumber()
	t.UpdatedAt = now

	added, _ := t.Stop(id)
	return added, nil
}

// RemoveStop detaches a stop from the itinerary. The underlying booking, if
// any, is untouched.
func (t *Tour) RemoveStop(id uuid.UUID, now time.Time) (TourStop, error) {
	if err := t.acceptsChanges(); err != nil {
		return TourStop{}, err
	}
	idx := slices.IndexFunc(t.Stops, func(s TourStop) bool { return s.ID == id })
	if idx < 0 {
		return TourStop{}, fmt.Errorf("%w: stop %s is not on tour %s", ErrNotFound, id, t.ID)
	}
	removed := t.Stops[idx]
	t.Stops = slices.Delete(t.Stops, idx, idx+1)
	t.renumber()
	t.UpdatedAt = now
	return removed, nil
}

// Reorder sets the itinerary order explicitly. ids must name every stop
// exactly once, and the resulting order must keep dates non-decreasing, so
// only stops sharing a date can change places.
func (t *Tour) Reorder(ids []uuid.UUID, now time.Time) error {
	if err := t.acceptsChanges(); err != nil {
		return err
	}
	if len(ids) != len(t.Stops) {
		return fmt.Errorf("%w: expected %d stop ids, got %d", ErrValidation, len(t.Stops), len(ids))
	}
	byID := make(map[uuid.UUID]TourStop, len(t.Stops))
	for _, s := range t.Stops {
		byID[s.ID] = s
	}
	ordered := make([]TourStop, 0, len(ids))
	seen := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		s, ok := byID[id]
		if !ok || seen[id] {
			return fmt.Errorf("%w: stop ids must be a permutation of the tour's stops", ErrValidation)
		}
		seen[id] = true
		if n := len(ordered); n > 0 && s.Date.Before(ordered[n-1].Date) {
			return fmt.Errorf("%w: stop %s on %s cannot precede an earlier-dated stop", ErrValidation, s.ID, s.Date.Format(time.DateOnly))
		}
		ordered = append(ordered, s)
	}
	for i := range ordered {
		ordered[i].SequenceOrder = i + 1
	}
	t.Stops = ordered
	t.UpdatedAt = now
	return nil
}

// ShowCount returns the number of non-rest stops.
func (t *Tour) ShowCount() int {
	n := 0
	for _, s := range t.Stops {
		if s.IsShow() {
			n++
		}
	}
	return n
}

// renumber sorts stops by (Date, SequenceOrder) and assigns 1..n.
func (t *Tour) renumber() {
	slices.SortStableFunc(t.Stops, func(a, b TourStop) int {
		if c := a.Date.Compare(b.Date); c != 0 {
			return c
		}
		return a.SequenceOrder - b.SequenceOrder
	})
	for i := range t.Stops {
		t.Stops[i].SequenceOrder = i + 1
	}
}

func (t *Tour) acceptsChanges() error {
	if t.Status == TourCompleted || t.Status == TourCancelled {
		return fmt.Errorf("%w: tour is %s", ErrInvalidTransition, t.Status)
	}
	return nil
}

// inWindow reports whether day lies in [start, end]. The window only applies
// when both ends are set.
func inWindow(day time.Time, start, end *time.Time) bool {
	if start == nil || end == nil {
		return true
	}
	d := Day(day)
	return !d.Before(Day(*start)) && !d.After(Day(*end))
}

// ProjectedNet sums net revenue over every stop with a known fee.
func (t *Tour) ProjectedNet() decimal.Decimal {
	total := decimal.Zero
	for _, s := range t.Stops {
		if s.NetRevenue != nil {
			total = total.Add(*s.NetRevenue)
		}
	}
	return total
}

// ConfirmedNet sums net revenue over confirmed stops only.
func (t *Tour) ConfirmedNet() decimal.Decimal {
	total := decimal.Zero
	for _, s := range t.Stops {
		if s.Status == StopConfirmed && s.NetRevenue != nil {
			total = total.Add(*s.NetRevenue)
		}
	}
	return total
}
