package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kolamba/backend/internal/domain"
	"github.com/kolamba/backend/internal/events"
	"github.com/kolamba/backend/internal/repo"
)

// NewBooking is the input for BookingService.Create. HostID is honoured for
// admins only; hosts always book as themselves.
type NewBooking struct {
	PerformerID   uuid.UUID
	HostID        uuid.UUID
	RequestedDate *time.Time
	Location      string
	Latitude      *float64
	Longitude     *float64
	Budget        *decimal.Decimal
	Notes         string
}

// BookingService drives the booking negotiation state machine.
type BookingService struct {
	store  repo.Store
	events events.Publisher
	policy domain.QuotePolicy
	logger *slog.Logger
}

// NewBookingService constructs a BookingService.
func NewBookingService(store repo.Store, pub events.Publisher, policy domain.QuotePolicy, logger *slog.Logger) *BookingService {
	return &BookingService{store: store, events: pub, policy: policy, logger: logger}
}

// Create opens a pending booking and its conversation.
func (s *BookingService) Create(ctx context.Context, actor domain.Actor, in NewBooking) (domain.Booking, error) {
	if !actor.Can().CreateBookings {
		return domain.Booking{}, fmt.Errorf("service.BookingService.Create: %w: role %q cannot create bookings", domain.ErrForbidden, actor.Role)
	}
	host := actor.UserID
	if actor.Can().ViewAll && in.HostID != uuid.Nil {
		host = in.HostID
	}
	now := time.Now().UTC()
	b := domain.Booking{
		ID:          uuid.New(),
		PerformerID: in.PerformerID,
		HostID:      host,
		Location:    strings.TrimSpace(in.Location),
		Latitude:    in.Latitude,
		Longitude:   in.Longitude,
		Budget:      in.Budget,
		Notes:       strings.TrimSpace(in.Notes),
		Status:      domain.BookingPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if in.RequestedDate != nil {
		d := domain.Day(*in.RequestedDate)
		b.RequestedDate = &d
	}
	if err := b.ValidateNew(); err != nil {
		return domain.Booking{}, err
	}

	var created domain.Booking
	err := s.store.InTx(ctx, func(tx repo.Store) error {
		var err error
		if created, err = tx.Bookings().Create(ctx, b); err != nil {
			return err
		}
		_, err = tx.Conversations().Create(ctx, domain.Conversation{ID: uuid.New(), BookingID: created.ID})
		return err
	})
	if err != nil {
		return domain.Booking{}, fmt.Errorf("service.BookingService.Create: %w", err)
	}

	publish(ctx, s.events, s.logger, events.BookingCreated, events.NewBookingEvent(created, now))
	return created, nil
}

// Get returns a booking visible to the actor.
func (s *BookingService) Get(ctx context.Context, actor domain.Actor, id uuid.UUID) (domain.Booking, error) {
	b, err := s.store.Bookings().Get(ctx, id)
	if err != nil {
		return domain.Booking{}, fmt.Errorf("service.BookingService.Get: %w", err)
	}
	if !actor.Can().ViewAll && !b.IsParty(actor.UserID) {
		return domain.Booking{}, fmt.Errorf("service.BookingService.Get: %w", domain.ErrForbidden)
	}
	return b, nil
}

// List returns one page of the actor's bookings. Admins see every booking.
func (s *BookingService) List(ctx context.Context, actor domain.Actor, status domain.BookingStatus, p domain.PaginationParams) ([]domain.Booking, int64, error) {
	if status != "" && !status.Valid() {
		return nil, 0, fmt.Errorf("%w: unknown booking status %q", domain.ErrValidation, status)
	}
	f := repo.BookingFilter{Status: status}
	if !actor.Can().ViewAll {
		id := actor.UserID
		f.PartyID = &id
	}
	bookings, total, err := s.store.Bookings().List(ctx, f, p)
	if err != nil {
		return nil, 0, fmt.Errorf("service.BookingService.List: %w", err)
	}
	return bookings, total, nil
}

// SubmitQuote attaches the performer's quote to a pending booking and posts
// a system message in the same transaction.
func (s *BookingService) SubmitQuote(ctx context.Context, actor domain.Actor, id uuid.UUID, amount decimal.Decimal, notes string) (domain.Booking, error) {
	return s.transition(ctx, "SubmitQuote", id, events.BookingQuoteSubmitted,
		func(b *domain.Booking, now time.Time) (string, error) {
			if !actor.Can().SubmitQuotes || !owns(actor, b.PerformerID) {
				return "", fmt.Errorf("%w: only the booking's performer can quote", domain.ErrForbidden)
			}
			if err := b.SubmitQuote(amount, notes, now, s.policy); err != nil {
				return "", err
			}
			q, _ := b.Quote()
			return domain.QuoteSubmittedText(q), nil
		})
}

// ReviseQuote replaces an outstanding quote.
func (s *BookingService) ReviseQuote(ctx context.Context, actor domain.Actor, id uuid.UUID, amount decimal.Decimal, notes string) (domain.Booking, error) {
	return s.transition(ctx, "ReviseQuote", id, events.BookingQuoteRevised,
		func(b *domain.Booking, now time.Time) (string, error) {
			if !actor.Can().SubmitQuotes || !owns(actor, b.PerformerID) {
				return "", fmt.Errorf("%w: only the booking's performer can revise the quote", domain.ErrForbidden)
			}
			if err := b.ReviseQuote(amount, notes, now, s.policy); err != nil {
				return "", err
			}
			q, _ := b.Quote()
			return domain.QuoteRevisedText(q), nil
		})
}

// Respond applies the host's approve or decline answer.
func (s *BookingService) Respond(ctx context.Context, actor domain.Actor, id uuid.UUID, action domain.QuoteAction, reason string) (domain.Booking, error) {
	key := events.BookingApproved
	if action == domain.QuoteDecline {
		key = events.BookingDeclined
	}
	return s.transition(ctx, "Respond", id, key,
		func(b *domain.Booking, now time.Time) (string, error) {
			if !actor.Can().RespondToQuotes || !owns(actor, b.HostID) {
				return "", fmt.Errorf("%w: only the booking's host can respond", domain.ErrForbidden)
			}
			if err := b.RespondToQuote(action, reason, now); err != nil {
				return "", err
			}
			return domain.ResponseText(action, reason), nil
		})
}

// Cancel withdraws a pending booking. Either party may cancel.
func (s *BookingService) Cancel(ctx context.Context, actor domain.Actor, id uuid.UUID) (domain.Booking, error) {
	return s.transition(ctx, "Cancel", id, events.BookingCancelled,
		func(b *domain.Booking, now time.Time) (string, error) {
			if !actor.Can().ViewAll && !b.IsParty(actor.UserID) {
				return "", fmt.Errorf("%w: only a party to the booking can cancel", domain.ErrForbidden)
			}
			if err := b.Cancel(now); err != nil {
				return "", err
			}
			return domain.CancelledText, nil
		})
}

// CompleteElapsed moves up to limit approved bookings whose date has passed
// to completed. Each booking commits on its own; a booking that changed state
// since it was listed is skipped. Returns how many were completed.
func (s *BookingService) CompleteElapsed(ctx context.Context, now time.Time, limit int) (int, error) {
	ids, err := s.store.Bookings().ListElapsed(ctx, now, limit)
	if err != nil {
		return 0, fmt.Errorf("service.BookingService.CompleteElapsed: %w", err)
	}

	done := 0
	for _, id := range ids {
		var completed domain.Booking
		err := s.store.InTx(ctx, func(tx repo.Store) error {
			b, err := tx.Bookings().GetForUpdate(ctx, id)
			if err != nil {
				return err
			}
			if err := b.Complete(now); err != nil {
				return err
			}
			completed, err = tx.Bookings().Update(ctx, b)
			return err
		})
		if errors.Is(err, domain.ErrInvalidTransition) || errors.Is(err, domain.ErrNotFound) {
			s.logger.InfoContext(ctx, "skipping booking no longer eligible for completion", "booking_id", id)
			continue
		}
		if err != nil {
			return done, fmt.Errorf("service.BookingService.CompleteElapsed: booking %s: %w", id, err)
		}
		done++
		publish(ctx, s.events, s.logger, events.BookingCompleted, events.NewBookingEvent(completed, now))
	}
	return done, nil
}

// transition locks the booking, applies fn, persists the result and appends
// fn's system message, all in one transaction. The event is published after
// commit.
func (s *BookingService) transition(
	ctx context.Context,
	op string,
	id uuid.UUID,
	eventKey string,
	fn func(b *domain.Booking, now time.Time) (string, error),
) (domain.Booking, error) {
	now := time.Now().UTC()
	var updated domain.Booking
	err := s.store.InTx(ctx, func(tx repo.Store) error {
		b, err := tx.Bookings().GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		text, err := fn(&b, now)
		if err != nil {
			return err
		}
		if updated, err = tx.Bookings().Update(ctx, b); err != nil {
			return err
		}
		if text != "" {
			if _, err := tx.Conversations().AppendSystemMessage(ctx, b.ID, text); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return domain.Booking{}, fmt.Errorf("service.BookingService.%s: %w", op, err)
	}

	publish(ctx, s.events, s.logger, eventKey, events.NewBookingEvent(updated, now))
	return updated, nil
}
