package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BookingStatus is the lifecycle state of a host → performer booking request.
type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingQuoteSent BookingStatus = "quote_sent"
	BookingApproved  BookingStatus = "approved"
	BookingDeclined  BookingStatus = "declined"
	BookingCancelled BookingStatus = "cancelled"
	BookingCompleted BookingStatus = "completed"
)

// statusInfo is one row of the booking status table.
type statusInfo struct {
	Label string
	Next  []BookingStatus
}

// bookingStatuses is the single source of truth for booking labels and the
// transitions allowed out of each status. Terminal statuses have no Next.
var bookingStatuses = map[BookingStatus]statusInfo{
	BookingPending:   {Label: "Pending", Next: []BookingStatus{BookingQuoteSent, BookingCancelled}},
	BookingQuoteSent: {Label: "Quote Sent", Next: []BookingStatus{BookingApproved, BookingDeclined}},
	BookingApproved:  {Label: "Approved", Next: []BookingStatus{BookingCompleted}},
	BookingDeclined:  {Label: "Declined"},
	BookingCancelled: {Label: "Cancelled"},
	BookingCompleted: {Label: "Completed"},
}

// Valid reports whether s is a known booking status.
func (s BookingStatus) Valid() bool {
	_, ok := bookingStatuses[s]
	return ok
}

// Label returns the human-readable label for the status.
func (s BookingStatus) Label() string {
	if info, ok := bookingStatuses[s]; ok {
		return info.Label
	}
	return string(s)
}

// AllowedNext returns the statuses reachable from s.
func (s BookingStatus) AllowedNext() []BookingStatus {
	return append([]BookingStatus(nil), bookingStatuses[s].Next...)
}

// CanTransition reports whether the table allows from → to.
func (s BookingStatus) CanTransition(to BookingStatus) bool {
	for _, next := range bookingStatuses[s].Next {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transition is possible.
func (s BookingStatus) Terminal() bool {
	return len(bookingStatuses[s].Next) == 0
}

// quoteFrozen reports whether the quote can no longer change.
func (s BookingStatus) quoteFrozen() bool {
	return s == BookingApproved || s == BookingCompleted
}

// QuoteAction is the host's answer to a quote.
type QuoteAction string

const (
	QuoteApprove QuoteAction = "approve"
	QuoteDecline QuoteAction = "decline"
)

// Booking is a request from a host to a performer, negotiated through a quote.
// It is mutated only through its state machine methods; each method checks
// every precondition before touching any field, so a failed call leaves the
// booking exactly as it was.
type Booking struct {
	ID            uuid.UUID
	PerformerID   uuid.UUID
	HostID        uuid.UUID
	RequestedDate *time.Time
	Location      string
	Latitude      *float64
	Longitude     *float64
	Budget        *decimal.Decimal
	Notes         string
	Status        BookingStatus
	QuoteAmount   *decimal.Decimal
	QuoteNotes    string
	QuotedAt      *time.Time
	DeclineReason string
	CancelledAt   *time.Time
	CompletedAt   *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Quote returns the booking's quote, or false when none was issued.
func (b *Booking) Quote() (Quote, bool) {
	if b.QuoteAmount == nil {
		return Quote{}, false
	}
	q := Quote{Amount: *b.QuoteAmount, Notes: b.QuoteNotes}
	if b.QuotedAt != nil {
		q.IssuedAt = *b.QuotedAt
	}
	return q, true
}

// IsParty reports whether userID is the booking's host or performer.
func (b *Booking) IsParty(userID uuid.UUID) bool {
	return b.HostID == userID || b.PerformerID == userID
}

// SubmitQuote attaches the performer's quote and moves pending → quote_sent.
func (b *Booking) SubmitQuote(amount decimal.Decimal, notes string, now time.Time, policy QuotePolicy) error {
	if b.Status.quoteFrozen() {
		return fmt.Errorf("%w: booking is %s", ErrImmutableQuote, b.Status)
	}
	if b.Status != BookingPending {
		return fmt.Errorf("%w: cannot submit a quote while %s", ErrInvalidTransition, b.Status)
	}
	if err := policy.Validate(amount, notes); err != nil {
		return err
	}
	b.setQuote(amount, notes, now)
	b.Status = BookingQuoteSent
	return nil
}

// ReviseQuote replaces an outstanding quote before the host has answered it.
func (b *Booking) ReviseQuote(amount decimal.Decimal, notes string, now time.Time, policy QuotePolicy) error {
	if b.Status.quoteFrozen() {
		return fmt.Errorf("%w: booking is %s", ErrImmutableQuote, b.Status)
	}
	if b.Status != BookingQuoteSent {
		return fmt.Errorf("%w: no outstanding quote while %s", ErrInvalidTransition, b.Status)
	}
	if err := policy.Validate(amount, notes); err != nil {
		return err
	}
	b.setQuote(amount, notes, now)
	return nil
}

func (b *Booking) setQuote(amount decimal.Decimal, notes string, now time.Time) {
	a := amount
	t := now
	b.QuoteAmount = &a
	b.QuoteNotes = strings.TrimSpace(notes)
	b.QuotedAt = &t
	b.UpdatedAt = now
}

// RespondToQuote applies the host's approve/decline answer.
// Approving copies the quote amount into the budget.
func (b *Booking) RespondToQuote(action QuoteAction, declineReason string, now time.Time) error {
	if b.Status != BookingQuoteSent {
		return fmt.Errorf("%w: cannot respond to a quote while %s", ErrInvalidTransition, b.Status)
	}
	switch action {
	case QuoteApprove:
		if b.QuoteAmount == nil {
			return fmt.Errorf("%w: booking %s is quote_sent without a quote amount", ErrInconsistentState, b.ID)
		}
		budget := *b.QuoteAmount
		b.Budget = &budget
		b.Status = BookingApproved
	case QuoteDecline:
		b.Status = BookingDeclined
		b.DeclineReason = strings.TrimSpace(declineReason)
	default:
		return fmt.Errorf("%w: action must be approve or decline", ErrValidation)
	}
	b.UpdatedAt = now
	return nil
}

// Cancel retracts a booking. Only pending bookings can be cancelled: once the
// performer has quoted, the host answers the quote instead.
func (b *Booking) Cancel(now time.Time) error {
	if b.Status != BookingPending {
		return fmt.Errorf("%w: cannot cancel while %s", ErrInvalidTransition, b.Status)
	}
	t := now
	b.Status = BookingCancelled
	b.CancelledAt = &t
	b.UpdatedAt = now
	return nil
}

// Complete marks an approved booking whose date has passed as completed.
// It is driven by the completion sweeper, never by a user request.
func (b *Booking) Complete(now time.Time) error {
	if !b.Status.CanTransition(BookingCompleted) {
		return fmt.Errorf("%w: cannot complete while %s", ErrInvalidTransition, b.Status)
	}
	if !b.Elapsed(now) {
		return fmt.Errorf("%w: booking date has not elapsed", ErrInvalidTransition)
	}
	t := now
	b.Status = BookingCompleted
	b.CompletedAt = &t
	b.UpdatedAt = now
	return nil
}

// Elapsed reports whether the requested date lies before now's calendar day.
// Bookings without a date never elapse.
func (b *Booking) Elapsed(now time.Time) bool {
	if b.RequestedDate == nil {
		return false
	}
	return Day(*b.RequestedDate).Before(Day(now))
}

// ValidateNew enforces the rules for a freshly created booking request.
func (b *Booking) ValidateNew() error {
	if b.PerformerID == uuid.Nil {
		return fmt.Errorf("%w: performer_id is required", ErrValidation)
	}
	if b.HostID == uuid.Nil {
		return fmt.Errorf("%w: host_id is required", ErrValidation)
	}
	if b.PerformerID == b.HostID {
		return fmt.Errorf("%w: host and performer must differ", ErrValidation)
	}
	if b.Budget != nil && b.Budget.IsNegative() {
		return fmt.Errorf("%w: budget must not be negative", ErrValidation)
	}
	if (b.Latitude == nil) != (b.Longitude == nil) {
		return fmt.Errorf("%w: latitude and longitude must be set together", ErrValidation)
	}
	if b.HasCoordinates() && (*b.Latitude < -90 || *b.Latitude > 90 || *b.Longitude < -180 || *b.Longitude > 180) {
		return fmt.Errorf("%w: coordinates out of range", ErrValidation)
	}
	return nil
}

// HasCoordinates reports whether the venue location is geocoded.
func (b *Booking) HasCoordinates() bool {
	return b.Latitude != nil && b.Longitude != nil
}

// Schedulable reports whether the booking is still live and could be placed
// on a tour: pending, quoted or approved.
func (b *Booking) Schedulable() bool {
	switch b.Status {
	case BookingPending, BookingQuoteSent, BookingApproved:
		return true
	}
	return false
}

// Day truncates t to its UTC calendar day.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
