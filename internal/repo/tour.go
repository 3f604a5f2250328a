package repo

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/kolamba/backend/internal/domain"
)

// TourFilter narrows List results. Zero values mean no filter.
type TourFilter struct {
	PerformerID *uuid.UUID
	Status      domain.TourStatus
}

// TourRepo persists the tour aggregate: the tour row and its ordered stops
// are always read and written together.
type TourRepo interface {
	// Create inserts a tour and its stops.
	Create(ctx context.Context, t domain.Tour) (domain.Tour, error)

	// Get loads a tour with its stops ordered by sequence.
	// Returns domain.ErrNotFound if absent.
	Get(ctx context.Context, id uuid.UUID) (domain.Tour, error)

	// GetForUpdate is Get with the tour row locked until the enclosing
	// transaction ends.
	GetForUpdate(ctx context.Context, id uuid.UUID) (domain.Tour, error)

	// Save writes the tour row and replaces its stop list. Must run inside a
	// transaction so readers never observe a partial itinerary.
	Save(ctx context.Context, t domain.Tour) (domain.Tour, error)

	// List returns one page of tours without their stops, and the total count.
	List(ctx context.Context, f TourFilter, p domain.PaginationParams) ([]domain.Tour, int64, error)

	// StopByBooking returns the stop linked to bookingID on any tour.
	// Returns domain.ErrNotFound when the booking is not on a tour.
	StopByBooking(ctx context.Context, bookingID uuid.UUID) (domain.TourStop, error)
}

const tourColumns = `
	id, performer_id, name, region, description, start_date, end_date, total_budget,
	price_per_show, price_tier, status, max_travel_hours, min_shows_per_week,
	max_shows_per_week, rest_day_rule, min_net_profit, visa_status, efficiency_score,
	confirmed_shows, below_profit_target, warnings, created_at, updated_at`

const stopColumns = `
	id, tour_id, booking_id, date, city, venue_name, latitude, longitude, sequence_order,
	travel_from_prev, travel_cost, accommodation_cost, performance_fee, net_revenue,
	status, notes, created_at, updated_at`

// pgTourRepo is the Postgres implementation of TourRepo.
type pgTourRepo struct {
	db db
}

// NewTourRepo constructs a TourRepo backed by the provided db connection.
func NewTourRepo(db db) TourRepo {
	return &pgTourRepo{db: db}
}

func (r *pgTourRepo) Create(ctx context.Context, t domain.Tour) (domain.Tour, error) {
	args, err := tourArgs(t)
	if err != nil {
		return domain.Tour{}, fmt.Errorf("repo.TourRepo.Create: %w", err)
	}
	q := `
		INSERT INTO tours (id, performer_id, name, region, description, start_date, end_date,
			total_budget, price_per_show, price_tier, status, max_travel_hours, min_shows_per_week,
			max_shows_per_week, rest_day_rule, min_net_profit, visa_status, efficiency_score,
			confirmed_shows, below_profit_target, warnings)
		VALUES (@id, @performer_id, @name, @region, @description, @start_date, @end_date,
			@total_budget, @price_per_show, @price_tier, @status, @max_travel_hours, @min_shows_per_week,
			@max_shows_per_week, @rest_day_rule, @min_net_profit, @visa_status, @efficiency_score,
			@confirmed_shows, @below_profit_target, @warnings)
		RETURNING` + tourColumns

	result, err := scanTour(r.db.QueryRow(ctx, q, args))
	if err != nil {
		return domain.Tour{}, fmt.Errorf("repo.TourRepo.Create: %w", err)
	}
	if err := r.insertStops(ctx, t.ID, t.Stops); err != nil {
		return domain.Tour{}, fmt.Errorf("repo.TourRepo.Create: %w", err)
	}
	return r.withStops(ctx, result, "repo.TourRepo.Create")
}

func (r *pgTourRepo) Get(ctx context.Context, id uuid.UUID) (domain.Tour, error) {
	q := `SELECT` + tourColumns + ` FROM tours WHERE id = @id`
	t, err := scanTour(r.db.QueryRow(ctx, q, pgx.NamedArgs{"id": id}))
	if err != nil {
		return domain.Tour{}, fmt.Errorf("repo.TourRepo.Get: %w", err)
	}
	return r.withStops(ctx, t, "repo.TourRepo.Get")
}

func (r *pgTourRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (domain.Tour, error) {
	q := `SELECT` + tourColumns + ` FROM tours WHERE id = @id FOR UPDATE`
	t, err := scanTour(r.db.QueryRow(ctx, q, pgx.NamedArgs{"id": id}))
	if err != nil {
		return domain.Tour{}, fmt.Errorf("repo.TourRepo.GetForUpdate: %w", err)
	}
	return r.withStops(ctx, t, "repo.TourRepo.GetForUpdate")
}

func (r *pgTourRepo) Save(ctx context.Context, t domain.Tour) (domain.Tour, error) {
	args, err := tourArgs(t)
	if err != nil {
		return domain.Tour{}, fmt.Errorf("repo.TourRepo.Save: %w", err)
	}
	q := `
		UPDATE tours
		SET name                = @name,
		    region              = @region,
		    description         = @description,
		    start_date          = @start_date,
		    end_date            = @end_date,
		    total_budget        = @total_budget,
		    price_per_show      = @price_per_show,
		    price_tier          = @price_tier,
		    status              = @status,
		    max_travel_hours    = @max_travel_hours,
		    min_shows_per_week  = @min_shows_per_week,
		    max_shows_per_week  = @max_shows_per_week,
		    rest_day_rule       = @rest_day_rule,
		    min_net_profit      = @min_net_profit,
		    visa_status         = @visa_status,
		    efficiency_score    = @efficiency_score,
		    confirmed_shows     = @confirmed_shows,
		    below_profit_target = @below_profit_target,
		    warnings            = @warnings,
		    updated_at          = now()
		WHERE id = @id
		RETURNING` + tourColumns

	result, err := scanTour(r.db.QueryRow(ctx, q, args))
	if err != nil {
		return domain.Tour{}, fmt.Errorf("repo.TourRepo.Save: %w", err)
	}
	if _, err := r.db.Exec(ctx, `DELETE FROM tour_stops WHERE tour_id = @tour_id`, pgx.NamedArgs{"tour_id": t.ID}); err != nil {
		return domain.Tour{}, fmt.Errorf("repo.TourRepo.Save: clear stops: %w", err)
	}
	if err := r.insertStops(ctx, t.ID, t.Stops); err != nil {
		return domain.Tour{}, fmt.Errorf("repo.TourRepo.Save: %w", err)
	}
	return r.withStops(ctx, result, "repo.TourRepo.Save")
}

func (r *pgTourRepo) List(ctx context.Context, f TourFilter, p domain.PaginationParams) ([]domain.Tour, int64, error) {
	const where = `
		WHERE (@performer::uuid IS NULL OR performer_id = @performer)
		  AND (@status = '' OR status = @status)`

	args := pgx.NamedArgs{
		"performer": f.PerformerID,
		"status":    string(f.Status),
		"limit":     p.Limit,
		"offset":    p.Offset(),
	}

	var total int64
	if err := r.db.QueryRow(ctx, `SELECT count(*) FROM tours`+where, args).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("repo.TourRepo.List: count: %w", err)
	}

	q := `SELECT` + tourColumns + ` FROM tours` + where + `
		ORDER BY start_date NULLS LAST, created_at, id
		LIMIT @limit OFFSET @offset`
	rows, err := r.db.Query(ctx, q, args)
	if err != nil {
		return nil, 0, fmt.Errorf("repo.TourRepo.List: %w", err)
	}
	defer rows.Close()

	tours := []domain.Tour{}
	for rows.Next() {
		t, err := scanTour(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("repo.TourRepo.List: scan: %w", err)
		}
		tours = append(tours, t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("repo.TourRepo.List: rows: %w", err)
	}
	return tours, total, nil
}

func (r *pgTourRepo) StopByBooking(ctx context.Context, bookingID uuid.UUID) (domain.TourStop, error) {
	q := `SELECT` + stopColumns + ` FROM tour_stops WHERE booking_id = @booking_id`
	s, err := scanStop(r.db.QueryRow(ctx, q, pgx.NamedArgs{"booking_id": bookingID}))
	if err != nil {
		return domain.TourStop{}, fmt.Errorf("repo.TourRepo.StopByBooking: %w", err)
	}
	return s, nil
}

func (r *pgTourRepo) withStops(ctx context.Context, t domain.Tour, op string) (domain.Tour, error) {
	q := `SELECT` + stopColumns + ` FROM tour_stops WHERE tour_id = @tour_id ORDER BY sequence_order`
	rows, err := r.db.Query(ctx, q, pgx.NamedArgs{"tour_id": t.ID})
	if err != nil {
		return domain.Tour{}, fmt.Errorf("%s: stops: %w", op, err)
	}
	defer rows.Close()

	t.Stops = []domain.TourStop{}
	for rows.Next() {
		s, err := scanStop(rows)
		if err != nil {
			return domain.Tour{}, fmt.Errorf("%s: scan stop: %w", op, err)
		}
		t.Stops = append(t.Stops, s)
	}
	if err := rows.Err(); err != nil {
		return domain.Tour{}, fmt.Errorf("%s: stops rows: %w", op, err)
	}
	return t, nil
}

func (r *pgTourRepo) insertStops(ctx context.Context, tourID uuid.UUID, stops []domain.TourStop) error {
	const q = `
		INSERT INTO tour_stops (id, tour_id, booking_id, date, city, venue_name, latitude, longitude,
			sequence_order, travel_from_prev, travel_cost, accommodation_cost, performance_fee,
			net_revenue, status, notes, created_at, updated_at)
		VALUES (@id, @tour_id, @booking_id, @date, @city, @venue_name, @latitude, @longitude,
			@sequence_order, @travel_from_prev, @travel_cost, @accommodation_cost, @performance_fee,
			@net_revenue, @status, @notes, @created_at, @updated_at)`

	for _, s := range stops {
		args := pgx.NamedArgs{
			"id":                 s.ID,
			"tour_id":            tourID,
			"booking_id":         s.BookingID,
			"date":               s.Date,
			"city":               s.City,
			"venue_name":         s.VenueName,
			"latitude":           s.Latitude,
			"longitude":          s.Longitude,
			"sequence_order":     s.SequenceOrder,
			"travel_from_prev":   s.TravelFromPrev,
			"travel_cost":        s.TravelCost,
			"accommodation_cost": s.AccommodationCost,
			"performance_fee":    s.PerformanceFee,
			"net_revenue":        s.NetRevenue,
			"status":             string(s.Status),
			"notes":              s.Notes,
			"created_at":         s.CreatedAt,
			"updated_at":         s.UpdatedAt,
		}
		if _, err := r.db.Exec(ctx, q, args); err != nil {
			if uniqueViolation(err, "tour_stops_booking_id_key") {
				return fmt.Errorf("insert stop: %w: booking is already on a tour", domain.ErrValidation)
			}
			return fmt.Errorf("insert stop: %w", err)
		}
	}
	return nil
}

func tourArgs(t domain.Tour) (pgx.NamedArgs, error) {
	warnings := t.Warnings
	if warnings == nil {
		warnings = []domain.Violation{}
	}
	raw, err := json.Marshal(warnings)
	if err != nil {
		return nil, fmt.Errorf("encode warnings: %w", err)
	}
	c := t.Constraints
	rule := c.RestDayRule
	if rule == "" {
		rule = domain.RestDayNone
	}
	return pgx.NamedArgs{
		"id":                  t.ID,
		"performer_id":        t.PerformerID,
		"name":                t.Name,
		"region":              t.Region,
		"description":         t.Description,
		"start_date":          t.StartDate,
		"end_date":            t.EndDate,
		"total_budget":        t.TotalBudget,
		"price_per_show":      t.PricePerShow,
		"price_tier":          string(t.PriceTier),
		"status":              string(t.Status),
		"max_travel_hours":    c.MaxTravelHours,
		"min_shows_per_week":  c.MinShowsPerWeek,
		"max_shows_per_week":  c.MaxShowsPerWeek,
		"rest_day_rule":       string(rule),
		"min_net_profit":      c.MinNetProfit,
		"visa_status":         string(c.VisaStatus),
		"efficiency_score":    t.EfficiencyScore,
		"confirmed_shows":     t.ConfirmedShows,
		"below_profit_target": t.BelowProfitTarget,
		"warnings":            string(raw),
	}, nil
}

// scanTour maps a tours row into a domain.Tour without stops.
func scanTour(s scanner) (domain.Tour, error) {
	var (
		t                      domain.Tour
		id, performer          pgtype.UUID
		start, end             pgtype.Date
		budget, perShow, floor decimal.NullDecimal
		tier, status           string
		maxTravel              pgtype.Float8
		minWeek, maxWeek       pgtype.Int4
		rule, visa             string
		warnings               []byte
	)

	err := s.Scan(&id, &performer, &t.Name, &t.Region, &t.Description, &start, &end, &budget,
		&perShow, &tier, &status, &maxTravel, &minWeek,
		&maxWeek, &rule, &floor, &visa, &t.EfficiencyScore,
		&t.ConfirmedShows, &t.BelowProfitTarget, &warnings, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return domain.Tour{}, notFound(err)
	}

	t.ID = uuid.UUID(id.Bytes)
	t.PerformerID = uuid.UUID(performer.Bytes)
	t.StartDate = datePtr(start)
	t.EndDate = datePtr(end)
	t.TotalBudget = decimalPtr(budget)
	t.PricePerShow = decimalPtr(perShow)
	t.PriceTier = domain.PriceTier(tier)
	t.Status = domain.TourStatus(status)
	t.Constraints = domain.Constraints{
		RestDayRule:  domain.RestDayRule(rule),
		MinNetProfit: decimalPtr(floor),
		VisaStatus:   domain.VisaStatus(visa),
	}
	if maxTravel.Valid {
		v := maxTravel.Float64
		t.Constraints.MaxTravelHours = &v
	}
	if minWeek.Valid {
		v := int(minWeek.Int32)
		t.Constraints.MinShowsPerWeek = &v
	}
	if maxWeek.Valid {
		v := int(maxWeek.Int32)
		t.Constraints.MaxShowsPerWeek = &v
	}
	t.Warnings = []domain.Violation{}
	if err := json.Unmarshal(warnings, &t.Warnings); err != nil {
		return domain.Tour{}, fmt.Errorf("decode warnings: %w", err)
	}
	t.Stops = []domain.TourStop{}
	return t, nil
}

// scanStop maps a tour_stops row into a domain.TourStop.
func scanStop(s scanner) (domain.TourStop, error) {
	var (
		st                  domain.TourStop
		id, tourID, booking pgtype.UUID
		date                pgtype.Date
		lat, lng            pgtype.Float8
		travel, accomm      decimal.NullDecimal
		fee, net            decimal.NullDecimal
		status              string
	)

	err := s.Scan(&id, &tourID, &booking, &date, &st.City, &st.VenueName, &lat, &lng, &st.SequenceOrder,
		&st.TravelFromPrev, &travel, &accomm, &fee, &net,
		&status, &st.Notes, &st.CreatedAt, &st.UpdatedAt)
	if err != nil {
		return domain.TourStop{}, notFound(err)
	}

	st.ID = uuid.UUID(id.Bytes)
	st.TourID = uuid.UUID(tourID.Bytes)
	if booking.Valid {
		b := uuid.UUID(booking.Bytes)
		st.BookingID = &b
	}
	st.Date = date.Time
	if lat.Valid && lng.Valid {
		la, ln := lat.Float64, lng.Float64
		st.Latitude, st.Longitude = &la, &ln
	}
	st.TravelCost = decimalPtr(travel)
	st.AccommodationCost = decimalPtr(accomm)
	st.PerformanceFee = decimalPtr(fee)
	st.NetRevenue = decimalPtr(net)
	st.Status = domain.StopStatus(status)
	return st, nil
}
