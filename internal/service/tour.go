package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kolamba/backend/internal/domain"
	"github.com/kolamba/backend/internal/events"
	"github.com/kolamba/backend/internal/repo"
	"github.com/kolamba/backend/internal/schedule"
)

// TourService manages the tour aggregate. Every mutation locks the tour,
// applies the change through the aggregate, recomputes the schedule and
// saves the whole itinerary before commit.
type TourService struct {
	store     repo.Store
	scheduler Recomputer
	events    events.Publisher
	logger    *slog.Logger
}

// NewTourService constructs a TourService.
func NewTourService(store repo.Store, scheduler Recomputer, pub events.Publisher, logger *slog.Logger) *TourService {
	return &TourService{store: store, scheduler: scheduler, events: pub, logger: logger}
}

// Create starts a draft tour owned by the acting performer. Admins may
// create on behalf of performerID.
func (s *TourService) Create(ctx context.Context, actor domain.Actor, performerID uuid.UUID, d domain.TourDetails) (domain.Tour, error) {
	if !actor.Can().ManageTours {
		return domain.Tour{}, fmt.Errorf("service.TourService.Create: %w: role %q cannot manage tours", domain.ErrForbidden, actor.Role)
	}
	owner := actor.UserID
	if actor.Can().ViewAll && performerID != uuid.Nil {
		owner = performerID
	}
	now := time.Now().UTC()
	t, err := domain.NewTour(uuid.New(), owner, d, now)
	if err != nil {
		return domain.Tour{}, err
	}
	s.scheduler.Recompute(ctx, &t)

	var created domain.Tour
	err = s.store.InTx(ctx, func(tx repo.Store) error {
		var err error
		created, err = tx.Tours().Create(ctx, t)
		return err
	})
	if err != nil {
		return domain.Tour{}, fmt.Errorf("service.TourService.Create: %w", err)
	}
	publish(ctx, s.events, s.logger, events.TourRecomputed, events.NewTourEvent(created, now))
	return created, nil
}

// Get returns a tour with its stops and warnings. Actors who may not see the
// performer's financials get a redacted view.
func (s *TourService) Get(ctx context.Context, actor domain.Actor, id uuid.UUID) (domain.Tour, error) {
	t, err := s.store.Tours().Get(ctx, id)
	if err != nil {
		return domain.Tour{}, fmt.Errorf("service.TourService.Get: %w", err)
	}
	return viewFor(actor, t), nil
}

// List returns one page of tours. Performers see their own; admins see all.
func (s *TourService) List(ctx context.Context, actor domain.Actor, status domain.TourStatus, p domain.PaginationParams) ([]domain.Tour, int64, error) {
	if status != "" && !status.Valid() {
		return nil, 0, fmt.Errorf("%w: unknown tour status %q", domain.ErrValidation, status)
	}
	f := repo.TourFilter{Status: status}
	if !actor.Can().ViewAll {
		id := actor.UserID
		f.PerformerID = &id
	}
	tours, total, err := s.store.Tours().List(ctx, f, p)
	if err != nil {
		return nil, 0, fmt.Errorf("service.TourService.List: %w", err)
	}
	for i := range tours {
		tours[i] = viewFor(actor, tours[i])
	}
	return tours, total, nil
}

// Update replaces the tour's details and constraints.
func (s *TourService) Update(ctx context.Context, actor domain.Actor, id uuid.UUID, d domain.TourDetails) (domain.Tour, error) {
	return s.mutate(ctx, actor, id, "Update", func(_ repo.Store, t *domain.Tour, now time.Time) error {
		return t.UpdateDetails(d, now)
	})
}

// Transition moves the tour to a new status.
func (s *TourService) Transition(ctx context.Context, actor domain.Actor, id uuid.UUID, to domain.TourStatus) (domain.Tour, error) {
	return s.mutate(ctx, actor, id, "Transition", func(_ repo.Store, t *domain.Tour, now time.Time) error {
		return t.TransitionTo(to, now)
	})
}

// AddStop inserts a stop. A stop referencing a booking requires the booking
// to be approved, to belong to the tour's performer and to be on no other
// stop; its date, city, coordinates, fee and status default from the
// booking. A recommended stop for the same booking on this tour is replaced.
// Other stops default to open.
func (s *TourService) AddStop(ctx context.Context, actor domain.Actor, tourID uuid.UUID, in domain.StopInput) (domain.Tour, domain.TourStop, error) {
	var added domain.TourStop
	t, err := s.mutate(ctx, actor, tourID, "AddStop", func(tx repo.Store, t *domain.Tour, now time.Time) error {
		input := in
		if input.BookingID != nil {
			if err := fromBooking(ctx, tx, t, &input, now); err != nil {
				return err
			}
		}
		if input.Status == "" {
			input.Status = domain.StopOpen
		}
		var err error
		added, err = t.AddStop(input, uuid.New(), now)
		return err
	})
	if err != nil {
		return domain.Tour{}, domain.TourStop{}, err
	}
	stop, _ := t.Stop(added.ID)
	return t, stop, nil
}

// RemoveStop detaches a stop. The linked booking, if any, is untouched.
func (s *TourService) RemoveStop(ctx context.Context, actor domain.Actor, tourID, stopID uuid.UUID) (domain.Tour, error) {
	return s.mutate(ctx, actor, tourID, "RemoveStop", func(_ repo.Store, t *domain.Tour, now time.Time) error {
		_, err := t.RemoveStop(stopID, now)
		return err
	})
}

// Reorder sets the order of same-date stops explicitly.
func (s *TourService) Reorder(ctx context.Context, actor domain.Actor, tourID uuid.UUID, ids []uuid.UUID) (domain.Tour, error) {
	return s.mutate(ctx, actor, tourID, "Reorder", func(_ repo.Store, t *domain.Tour, now time.Time) error {
		return t.Reorder(ids, now)
	})
}

// Suggestions previews the recommended stops ApplySuggestions would add,
// built from the performer's live bookings that sit on no tour.
func (s *TourService) Suggestions(ctx context.Context, actor domain.Actor, tourID uuid.UUID, opts schedule.SuggestOptions) ([]domain.StopInput, error) {
	t, err := s.store.Tours().Get(ctx, tourID)
	if err != nil {
		return nil, fmt.Errorf("service.TourService.Suggestions: %w", err)
	}
	if !actor.Can().ManageTours || !owns(actor, t.PerformerID) {
		return nil, fmt.Errorf("service.TourService.Suggestions: %w: only the tour's performer can plan it", domain.ErrForbidden)
	}
	candidates, err := s.store.Bookings().ListUnscheduled(ctx, t.PerformerID)
	if err != nil {
		return nil, fmt.Errorf("service.TourService.Suggestions: %w", err)
	}
	return schedule.Suggest(t, candidates, opts), nil
}

// ApplySuggestions adds every suggested booking to the tour as a recommended
// stop and returns the stops it added.
func (s *TourService) ApplySuggestions(ctx context.Context, actor domain.Actor, tourID uuid.UUID, opts schedule.SuggestOptions) (domain.Tour, []domain.TourStop, error) {
	var ids []uuid.UUID
	t, err := s.mutate(ctx, actor, tourID, "ApplySuggestions", func(tx repo.Store, t *domain.Tour, now time.Time) error {
		candidates, err := tx.Bookings().ListUnscheduled(ctx, t.PerformerID)
		if err != nil {
			return err
		}
		for _, in := range schedule.Suggest(*t, candidates, opts) {
			added, err := t.AddStop(in, uuid.New(), now)
			if err != nil {
				return err
			}
			ids = append(ids, added.ID)
		}
		return nil
	})
	if err != nil {
		return domain.Tour{}, nil, err
	}
	added := make([]domain.TourStop, 0, len(ids))
	for _, id := range ids {
		if st, ok := t.Stop(id); ok {
			added = append(added, st)
		}
	}
	return t, added, nil
}

// Recompute refreshes derived data without changing the itinerary, e.g.
// after the routing service recovers from an outage.
func (s *TourService) Recompute(ctx context.Context, actor domain.Actor, tourID uuid.UUID) (domain.Tour, error) {
	return s.mutate(ctx, actor, tourID, "Recompute", func(repo.Store, *domain.Tour, time.Time) error {
		return nil
	})
}

// Itinerary flattens the tour into export rows.
func (s *TourService) Itinerary(ctx context.Context, actor domain.Actor, tourID uuid.UUID) ([]domain.ItineraryRow, error) {
	t, err := s.store.Tours().Get(ctx, tourID)
	if err != nil {
		return nil, fmt.Errorf("service.TourService.Itinerary: %w", err)
	}
	return domain.NewItinerary(t, canSeeFinancials(actor, t)), nil
}

func (s *TourService) mutate(
	ctx context.Context,
	actor domain.Actor,
	id uuid.UUID,
	op string,
	fn func(tx repo.Store, t *domain.Tour, now time.Time) error,
) (domain.Tour, error) {
	now := time.Now().UTC()
	var saved domain.Tour
	err := s.store.InTx(ctx, func(tx repo.Store) error {
		t, err := tx.Tours().GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !actor.Can().ManageTours || !owns(actor, t.PerformerID) {
			return fmt.Errorf("%w: only the tour's performer can change it", domain.ErrForbidden)
		}
		if err := fn(tx, &t, now); err != nil {
			return err
		}
		s.scheduler.Recompute(ctx, &t)
		saved, err = tx.Tours().Save(ctx, t)
		return err
	})
	if err != nil {
		return domain.Tour{}, fmt.Errorf("service.TourService.%s: %w", op, err)
	}
	publish(ctx, s.events, s.logger, events.TourRecomputed, events.NewTourEvent(saved, now))
	return saved, nil
}

// fromBooking validates a booking for attachment and fills defaults from it.
// A recommended stop already holding the booking on t gives way to the new stop.
func fromBooking(ctx context.Context, tx repo.Store, t *domain.Tour, in *domain.StopInput, now time.Time) error {
	b, err := tx.Bookings().GetForUpdate(ctx, *in.BookingID)
	if err != nil {
		return err
	}
	if b.PerformerID != t.PerformerID {
		return fmt.Errorf("%w: booking %s belongs to another performer", domain.ErrForbidden, b.ID)
	}
	if b.Status != domain.BookingApproved {
		return fmt.Errorf("%w: booking %s is %s, only approved bookings can join a tour", domain.ErrValidation, b.ID, b.Status)
	}
	existing, err := tx.Tours().StopByBooking(ctx, b.ID)
	switch {
	case err == nil && existing.TourID == t.ID && existing.Status == domain.StopRecommended:
		if _, err := t.RemoveStop(existing.ID, now); err != nil {
			return err
		}
	case err == nil:
		return fmt.Errorf("%w: booking %s is already on a tour", domain.ErrValidation, b.ID)
	case !errors.Is(err, domain.ErrNotFound):
		return err
	}

	if in.Date.IsZero() && b.RequestedDate != nil {
		in.Date = *b.RequestedDate
	}
	if in.City == "" {
		in.City = b.Location
	}
	if in.Latitude == nil && in.Longitude == nil && b.HasCoordinates() {
		in.Latitude, in.Longitude = b.Latitude, b.Longitude
	}
	if in.PerformanceFee == nil && b.QuoteAmount != nil {
		fee := *b.QuoteAmount
		in.PerformanceFee = &fee
	}
	if in.Status == "" {
		in.Status = domain.StopConfirmed
	}
	return nil
}

func canSeeFinancials(actor domain.Actor, t domain.Tour) bool {
	return actor.Can().ViewFinancials && owns(actor, t.PerformerID)
}

// viewFor returns the read model appropriate to the actor. Money fields and
// the profit warning are stripped for actors without financial access.
func viewFor(actor domain.Actor, t domain.Tour) domain.Tour {
	if canSeeFinancials(actor, t) {
		return t
	}
	t.TotalBudget = nil
	t.PricePerShow = nil
	t.Constraints.MinNetProfit = nil
	t.BelowProfitTarget = false

	stops := make([]domain.TourStop, len(t.Stops))
	for i, st := range t.Stops {
		st.TravelCost = nil
		st.AccommodationCost = nil
		st.PerformanceFee = nil
		st.NetRevenue = nil
		stops[i] = st
	}
	t.Stops = stops

	warnings := make([]domain.Violation, 0, len(t.Warnings))
	for _, w := range t.Warnings {
		if w.Kind != domain.ViolationBelowProfitTarget {
			warnings = append(warnings, w)
		}
	}
	t.Warnings = warnings
	return t
}
