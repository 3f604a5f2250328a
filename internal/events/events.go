// Package events publishes booking and tour lifecycle events to a RabbitMQ
// topic exchange. Publishing happens after the database commit and is best
// effort: callers log failures instead of returning them.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/kolamba/backend/internal/domain"
)

// Routing keys on the bookings exchange.
const (
	BookingCreated        = "booking.created"
	BookingQuoteSubmitted = "booking.quote_submitted"
	BookingQuoteRevised   = "booking.quote_revised"
	BookingApproved       = "booking.approved"
	BookingDeclined       = "booking.declined"
	BookingCancelled      = "booking.cancelled"
	BookingCompleted      = "booking.completed"
	TourRecomputed        = "tour.recomputed"
)

// Publisher sends one event.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, payload any) error
}

// Nop discards every event. Used when no broker is configured.
type Nop struct{}

// Publish implements Publisher.
func (Nop) Publish(context.Context, string, any) error { return nil }

// BookingEvent is the payload of every booking.* event.
type BookingEvent struct {
	BookingID   uuid.UUID `json:"booking_id"`
	PerformerID uuid.UUID `json:"performer_id"`
	HostID      uuid.UUID `json:"host_id"`
	Status      string    `json:"status"`
	QuoteAmount string    `json:"quote_amount,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// NewBookingEvent snapshots b.
func NewBookingEvent(b domain.Booking, at time.Time) BookingEvent {
	e := BookingEvent{
		BookingID:   b.ID,
		PerformerID: b.PerformerID,
		HostID:      b.HostID,
		Status:      string(b.Status),
		OccurredAt:  at,
	}
	if b.QuoteAmount != nil {
		e.QuoteAmount = b.QuoteAmount.StringFixed(2)
	}
	return e
}

// TourEvent is the payload of tour.recomputed.
type TourEvent struct {
	TourID            uuid.UUID `json:"tour_id"`
	PerformerID       uuid.UUID `json:"performer_id"`
	Status            string    `json:"status"`
	EfficiencyScore   int       `json:"efficiency_score"`
	ConfirmedShows    int       `json:"confirmed_shows"`
	Warnings          int       `json:"warnings"`
	BelowProfitTarget bool      `json:"below_profit_target"`
	OccurredAt        time.Time `json:"occurred_at"`
}

// NewTourEvent snapshots t's read model.
func NewTourEvent(t domain.Tour, at time.Time) TourEvent {
	return TourEvent{
		TourID:            t.ID,
		PerformerID:       t.PerformerID,
		Status:            string(t.Status),
		EfficiencyScore:   t.EfficiencyScore,
		ConfirmedShows:    t.ConfirmedShows,
		Warnings:          len(t.Warnings),
		BelowProfitTarget: t.BelowProfitTarget,
		OccurredAt:        at,
	}
}
