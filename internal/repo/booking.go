package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/kolamba/backend/internal/domain"
)

// BookingFilter narrows List results. Zero values mean no filter.
type BookingFilter struct {
	// PartyID matches bookings where the user is the host or the performer.
	PartyID *uuid.UUID
	Status  domain.BookingStatus
}

// BookingRepo defines the persistence operations for Bookings.
type BookingRepo interface {
	// Create inserts a new booking and returns the persisted record.
	Create(ctx context.Context, b domain.Booking) (domain.Booking, error)

	// Get retrieves a booking by ID. Returns domain.ErrNotFound if absent.
	Get(ctx context.Context, id uuid.UUID) (domain.Booking, error)

	// GetForUpdate is Get with a row lock held until the enclosing
	// transaction ends. Only meaningful inside Store.InTx.
	GetForUpdate(ctx context.Context, id uuid.UUID) (domain.Booking, error)

	// Update writes every mutable column of b.
	Update(ctx context.Context, b domain.Booking) (domain.Booking, error)

	// List returns one page of bookings, newest first, and the total count.
	List(ctx context.Context, f BookingFilter, p domain.PaginationParams) ([]domain.Booking, int64, error)

	// ListElapsed returns up to limit approved bookings whose requested date
	// is before the given day.
	ListElapsed(ctx context.Context, before time.Time, limit int) ([]uuid.UUID, error)

	// ListUnscheduled returns the performer's pending, quoted and approved
	// bookings that are not on any tour, oldest requested date first.
	ListUnscheduled(ctx context.Context, performerID uuid.UUID) ([]domain.Booking, error)
}

const bookingColumns = `
	id, performer_id, host_id, requested_date, location, latitude, longitude, budget, notes, status,
	quote_amount, quote_notes, quoted_at, decline_reason, cancelled_at, completed_at,
	created_at, updated_at`

// pgBookingRepo is the Postgres implementation of BookingRepo.
type pgBookingRepo struct {
	db db
}

// NewBookingRepo constructs a BookingRepo backed by the provided db connection.
func NewBookingRepo(db db) BookingRepo {
	return &pgBookingRepo{db: db}
}

func (r *pgBookingRepo) Create(ctx context.Context, b domain.Booking) (domain.Booking, error) {
	q := `
		INSERT INTO bookings (id, performer_id, host_id, requested_date, location, latitude, longitude,
		                      budget, notes, status)
		VALUES (@id, @performer_id, @host_id, @requested_date, @location, @latitude, @longitude,
		        @budget, @notes, @status)
		RETURNING` + bookingColumns

	args := pgx.NamedArgs{
		"id":             b.ID,
		"performer_id":   b.PerformerID,
		"host_id":        b.HostID,
		"requested_date": b.RequestedDate,
		"location":       b.Location,
		"latitude":       b.Latitude,
		"longitude":      b.Longitude,
		"budget":         b.Budget,
		"notes":          b.Notes,
		"status":         string(b.Status),
	}

	result, err := scanBooking(r.db.QueryRow(ctx, q, args))
	if err != nil {
		return domain.Booking{}, fmt.Errorf("repo.BookingRepo.Create: %w", err)
	}
	return result, nil
}

func (r *pgBookingRepo) Get(ctx context.Context, id uuid.UUID) (domain.Booking, error) {
	q := `SELECT` + bookingColumns + ` FROM bookings WHERE id = @id`

	result, err := scanBooking(r.db.QueryRow(ctx, q, pgx.NamedArgs{"id": id}))
	if err != nil {
		return domain.Booking{}, fmt.Errorf("repo.BookingRepo.Get: %w", err)
	}
	return result, nil
}

func (r *pgBookingRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (domain.Booking, error) {
	q := `SELECT` + bookingColumns + ` FROM bookings WHERE id = @id FOR UPDATE`

	result, err := scanBooking(r.db.QueryRow(ctx, q, pgx.NamedArgs{"id": id}))
	if err != nil {
		return domain.Booking{}, fmt.Errorf("repo.BookingRepo.GetForUpdate: %w", err)
	}
	return result, nil
}

func (r *pgBookingRepo) Update(ctx context.Context, b domain.Booking) (domain.Booking, error) {
	q := `
		UPDATE bookings
		SET requested_date = @requested_date,
		    location       = @location,
		    latitude       = @latitude,
		    longitude      = @longitude,
		    budget         = @budget,
		    notes          = @notes,
		    status         = @status,
		    quote_amount   = @quote_amount,
		    quote_notes    = @quote_notes,
		    quoted_at      = @quoted_at,
		    decline_reason = @decline_reason,
		    cancelled_at   = @cancelled_at,
		    completed_at   = @completed_at,
		    updated_at     = now()
		WHERE id = @id
		RETURNING` + bookingColumns

	args := pgx.NamedArgs{
		"id":             b.ID,
		"requested_date": b.RequestedDate,
		"location":       b.Location,
		"latitude":       b.Latitude,
		"longitude":      b.Longitude,
		"budget":         b.Budget,
		"notes":          b.Notes,
		"status":         string(b.Status),
		"quote_amount":   b.QuoteAmount,
		"quote_notes":    b.QuoteNotes,
		"quoted_at":      b.QuotedAt,
		"decline_reason": b.DeclineReason,
		"cancelled_at":   b.CancelledAt,
		"completed_at":   b.CompletedAt,
	}

	result, err := scanBooking(r.db.QueryRow(ctx, q, args))
	if err != nil {
		return domain.Booking{}, fmt.Errorf("repo.BookingRepo.Update: %w", err)
	}
	return result, nil
}

func (r *pgBookingRepo) List(ctx context.Context, f BookingFilter, p domain.PaginationParams) ([]domain.Booking, int64, error) {
	const where = `
		WHERE (@party::uuid IS NULL OR host_id = @party OR performer_id = @party)
		  AND (@status = '' OR status = @status)`

	args := pgx.NamedArgs{
		"party":  f.PartyID,
		"status": string(f.Status),
		"limit":  p.Limit,
		"offset": p.Offset(),
	}

	var total int64
	if err := r.db.QueryRow(ctx, `SELECT count(*) FROM bookings`+where, args).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("repo.BookingRepo.List: count: %w", err)
	}

	q := `SELECT` + bookingColumns + ` FROM bookings` + where + `
		ORDER BY created_at DESC, id
		LIMIT @limit OFFSET @offset`
	rows, err := r.db.Query(ctx, q, args)
	if err != nil {
		return nil, 0, fmt.Errorf("repo.BookingRepo.List: %w", err)
	}
	defer rows.Close()

	bookings := []domain.Booking{}
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("repo.BookingRepo.List: scan: %w", err)
		}
		bookings = append(bookings, b)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("repo.BookingRepo.List: rows: %w", err)
	}
	return bookings, total, nil
}

func (r *pgBookingRepo) ListElapsed(ctx context.Context, before time.Time, limit int) ([]uuid.UUID, error) {
	const q = `
		SELECT id FROM bookings
		WHERE status = 'approved' AND requested_date < @before
		ORDER BY requested_date, id
		LIMIT @limit`

	rows, err := r.db.Query(ctx, q, pgx.NamedArgs{"before": domain.Day(before), "limit": limit})
	if err != nil {
		return nil, fmt.Errorf("repo.BookingRepo.ListElapsed: %w", err)
	}
	ids, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (uuid.UUID, error) {
		var id pgtype.UUID
		err := row.Scan(&id)
		return uuid.UUID(id.Bytes), err
	})
	if err != nil {
		return nil, fmt.Errorf("repo.BookingRepo.ListElapsed: %w", err)
	}
	return ids, nil
}

func (r *pgBookingRepo) ListUnscheduled(ctx context.Context, performerID uuid.UUID) ([]domain.Booking, error) {
	q := `SELECT` + bookingColumns + ` FROM bookings b
		WHERE performer_id = @performer
		  AND status IN ('pending', 'quote_sent', 'approved')
		  AND NOT EXISTS (SELECT 1 FROM tour_stops s WHERE s.booking_id = b.id)
		ORDER BY requested_date NULLS LAST, id`

	rows, err := r.db.Query(ctx, q, pgx.NamedArgs{"performer": performerID})
	if err != nil {
		return nil, fmt.Errorf("repo.BookingRepo.ListUnscheduled: %w", err)
	}
	defer rows.Close()

	bookings := []domain.Booking{}
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("repo.BookingRepo.ListUnscheduled: scan: %w", err)
		}
		bookings = append(bookings, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repo.BookingRepo.ListUnscheduled: rows: %w", err)
	}
	return bookings, nil
}

// scanBooking maps a single database row into a domain.Booking.
func scanBooking(s scanner) (domain.Booking, error) {
	var (
		b                   domain.Booking
		id, performer, host pgtype.UUID
		requested           pgtype.Date
		lat, lng            pgtype.Float8
		budget, quote       decimal.NullDecimal
		status              string
		quotedAt            pgtype.Timestamptz
		cancelledAt         pgtype.Timestamptz
		completedAt         pgtype.Timestamptz
	)

	err := s.Scan(&id, &performer, &host, &requested, &b.Location, &lat, &lng, &budget, &b.Notes, &status,
		&quote, &b.QuoteNotes, &quotedAt, &b.DeclineReason, &cancelledAt, &completedAt,
		&b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return domain.Booking{}, notFound(err)
	}

	b.ID = uuid.UUID(id.Bytes)
	b.PerformerID = uuid.UUID(performer.Bytes)
	b.HostID = uuid.UUID(host.Bytes)
	b.Status = domain.BookingStatus(status)
	b.Budget = decimalPtr(budget)
	b.QuoteAmount = decimalPtr(quote)
	b.RequestedDate = datePtr(requested)
	if lat.Valid && lng.Valid {
		la, ln := lat.Float64, lng.Float64
		b.Latitude, b.Longitude = &la, &ln
	}
	b.QuotedAt = timePtr(quotedAt)
	b.CancelledAt = timePtr(cancelledAt)
	b.CompletedAt = timePtr(completedAt)
	return b, nil
}

func datePtr(d pgtype.Date) *time.Time {
	if !d.Valid {
		return nil
	}
	t := d.Time
	return &t
}

func timePtr(ts pgtype.Timestamptz) *time.Time {
	if !ts.Valid {
		return nil
	}
	t := ts.Time
	return &t
}
