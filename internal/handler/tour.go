package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	openapi_types "github.com/oapi-codegen/runtime/types"
	"github.com/shopspring/decimal"

	"github.com/kolamba/backend/internal/domain"
	"github.com/kolamba/backend/internal/schedule"
)

type constraintsBody struct {
	MaxTravelHours  *float64         `json:"max_travel_hours,omitempty" validate:"omitempty,gt=0"`
	MinShowsPerWeek *int             `json:"min_shows_per_week,omitempty" validate:"omitempty,min=0,max=7"`
	MaxShowsPerWeek *int             `json:"max_shows_per_week,omitempty" validate:"omitempty,min=0,max=7"`
	RestDayRule     string           `json:"rest_day_rule,omitempty"`
	MinNetProfit    *decimal.Decimal `json:"min_net_profit,omitempty"`
	VisaStatus      string           `json:"visa_status,omitempty"`
}

// tourRequest is the body of POST /tours and PUT /tours/{id}. PerformerID
// is honoured for admins only.
type tourRequest struct {
	PerformerID  *uuid.UUID          `json:"performer_id"`
	Name         string              `json:"name" validate:"required,min=2,max=200"`
	Region       string              `json:"region" validate:"max=200"`
	Description  string              `json:"description" validate:"max=5000"`
	StartDate    *openapi_types.Date `json:"start_date"`
	EndDate      *openapi_types.Date `json:"end_date"`
	TotalBudget  *decimal.Decimal    `json:"total_budget"`
	PricePerShow *decimal.Decimal    `json:"price_per_show"`
	PriceTier    string              `json:"price_tier"`
	Constraints  constraintsBody     `json:"constraints"`
}

type statusRequest struct {
	Status string `json:"status" validate:"required"`
}

type stopRequest struct {
	BookingID         *uuid.UUID          `json:"booking_id"`
	Date              *openapi_types.Date `json:"date"`
	City              string              `json:"city" validate:"max=200"`
	VenueName         string              `json:"venue_name" validate:"max=200"`
	Latitude          *float64            `json:"latitude"`
	Longitude         *float64            `json:"longitude"`
	TravelCost        *decimal.Decimal    `json:"travel_cost"`
	AccommodationCost *decimal.Decimal    `json:"accommodation_cost"`
	PerformanceFee    *decimal.Decimal    `json:"performance_fee"`
	Status            string              `json:"status"`
	Notes             string              `json:"notes" validate:"max=5000"`
}

type reorderRequest struct {
	StopIDs []uuid.UUID `json:"stop_ids" validate:"required,min=1"`
}

type stopResponse struct {
	ID                uuid.UUID          `json:"id"`
	BookingID         *uuid.UUID         `json:"booking_id,omitempty"`
	Date              openapi_types.Date `json:"date"`
	City              string             `json:"city,omitempty"`
	VenueName         string             `json:"venue_name,omitempty"`
	Latitude          *float64           `json:"latitude,omitempty"`
	Longitude         *float64           `json:"longitude,omitempty"`
	SequenceOrder     int                `json:"sequence_order"`
	TravelFromPrev    string             `json:"travel_from_prev,omitempty"`
	TravelCost        *decimal.Decimal   `json:"travel_cost,omitempty"`
	AccommodationCost *decimal.Decimal   `json:"accommodation_cost,omitempty"`
	PerformanceFee    *decimal.Decimal   `json:"performance_fee,omitempty"`
	NetRevenue        *decimal.Decimal   `json:"net_revenue,omitempty"`
	Status            string             `json:"status"`
	StatusLabel       string             `json:"status_label"`
	Notes             string             `json:"notes,omitempty"`
}

type tourResponse struct {
	ID                uuid.UUID           `json:"id"`
	PerformerID       uuid.UUID           `json:"performer_id"`
	Name              string              `json:"name"`
	Region            string              `json:"region,omitempty"`
	Description       string              `json:"description,omitempty"`
	StartDate         *openapi_types.Date `json:"start_date,omitempty"`
	EndDate           *openapi_types.Date `json:"end_date,omitempty"`
	TotalBudget       *decimal.Decimal    `json:"total_budget,omitempty"`
	PricePerShow      *decimal.Decimal    `json:"price_per_show,omitempty"`
	PriceTier         string              `json:"price_tier,omitempty"`
	Constraints       constraintsBody     `json:"constraints"`
	Status            string              `json:"status"`
	EfficiencyScore   int                 `json:"efficiency_score"`
	ConfirmedShows    int                 `json:"confirmed_shows"`
	BelowProfitTarget bool                `json:"below_profit_target"`
	Stops             []stopResponse      `json:"stops,omitempty"`
	Warnings          []domain.Violation  `json:"warnings"`
	CreatedAt         time.Time           `json:"created_at"`
	UpdatedAt         time.Time           `json:"updated_at"`
}

type addStopResponse struct {
	Stop stopResponse `json:"stop"`
	Tour tourResponse `json:"tour"`
}

type suggestionResponse struct {
	BookingID      uuid.UUID          `json:"booking_id"`
	Date           openapi_types.Date `json:"date"`
	City           string             `json:"city,omitempty"`
	Latitude       *float64           `json:"latitude,omitempty"`
	Longitude      *float64           `json:"longitude,omitempty"`
	PerformanceFee *decimal.Decimal   `json:"performance_fee,omitempty"`
	Status         string             `json:"status"`
}

type suggestionsResponse struct {
	Data []suggestionResponse `json:"data"`
}

type applySuggestionsResponse struct {
	Stops []stopResponse `json:"stops"`
	Tour  tourResponse   `json:"tour"`
}

// CreateTour handles POST /tours.
func (s *Server) CreateTour(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	var body tourRequest
	if !s.decode(w, r, &body) {
		return
	}
	performer := uuid.Nil
	if body.PerformerID != nil {
		performer = *body.PerformerID
	}
	created, err := s.tours.Create(r.Context(), a, performer, requestToDetails(body))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, tourToResponse(created))
}

// ListTours handles GET /tours.
// Supports ?status=, ?page= and ?limit= query parameters.
func (s *Server) ListTours(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	params, ok := pagination(w, r)
	if !ok {
		return
	}
	status := domain.TourStatus(r.URL.Query().Get("status"))

	tours, total, err := s.tours.List(r.Context(), a, status, params)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	data := make([]tourResponse, len(tours))
	for i, t := range tours {
		data[i] = tourToResponse(t)
	}
	writeJSON(w, http.StatusOK, listResponse[tourResponse]{
		Data:       data,
		Pagination: paginationResponse{Page: params.Page, Limit: params.Limit, Total: int(total)},
	})
}

// GetTour handles GET /tours/{id}.
func (s *Server) GetTour(w http.ResponseWriter, r *http.Request) {
	s.tourAction(w, r, nil, func(a domain.Actor, id uuid.UUID) (domain.Tour, error) {
		return s.tours.Get(r.Context(), a, id)
	})
}

// UpdateTour handles PUT /tours/{id}.
func (s *Server) UpdateTour(w http.ResponseWriter, r *http.Request) {
	var body tourRequest
	s.tourAction(w, r, &body, func(a domain.Actor, id uuid.UUID) (domain.Tour, error) {
		return s.tours.Update(r.Context(), a, id, requestToDetails(body))
	})
}

// TransitionTour handles POST /tours/{id}/status.
func (s *Server) TransitionTour(w http.ResponseWriter, r *http.Request) {
	var body statusRequest
	s.tourAction(w, r, &body, func(a domain.Actor, id uuid.UUID) (domain.Tour, error) {
		return s.tours.Transition(r.Context(), a, id, domain.TourStatus(body.Status))
	})
}

// ReorderStops handles PUT /tours/{id}/stops/order.
func (s *Server) ReorderStops(w http.ResponseWriter, r *http.Request) {
	var body reorderRequest
	s.tourAction(w, r, &body, func(a domain.Actor, id uuid.UUID) (domain.Tour, error) {
		return s.tours.Reorder(r.Context(), a, id, body.StopIDs)
	})
}

// RecomputeTour handles POST /tours/{id}/recompute.
func (s *Server) RecomputeTour(w http.ResponseWriter, r *http.Request) {
	s.tourAction(w, r, nil, func(a domain.Actor, id uuid.UUID) (domain.Tour, error) {
		return s.tours.Recompute(r.Context(), a, id)
	})
}

// RemoveStop handles DELETE /tours/{id}/stops/{stopId}.
func (s *Server) RemoveStop(w http.ResponseWriter, r *http.Request) {
	stopID, ok := pathID(w, r, "stopId")
	if !ok {
		return
	}
	s.tourAction(w, r, nil, func(a domain.Actor, id uuid.UUID) (domain.Tour, error) {
		return s.tours.RemoveStop(r.Context(), a, id, stopID)
	})
}

// AddStop handles POST /tours/{id}/stops.
// Responds with the new stop and the recomputed tour.
func (s *Server) AddStop(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var body stopRequest
	if !s.decode(w, r, &body) {
		return
	}
	in := domain.StopInput{
		BookingID:         body.BookingID,
		City:              body.City,
		VenueName:         body.VenueName,
		Latitude:          body.Latitude,
		Longitude:         body.Longitude,
		TravelCost:        body.TravelCost,
		AccommodationCost: body.AccommodationCost,
		PerformanceFee:    body.PerformanceFee,
		Status:            domain.StopStatus(body.Status),
		Notes:             body.Notes,
	}
	if body.Date != nil {
		in.Date = body.Date.Time
	}

	t, stop, err := s.tours.AddStop(r.Context(), a, id, in)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, addStopResponse{Stop: stopToResponse(stop), Tour: tourToResponse(t)})
}

// ListSuggestions handles GET /tours/{id}/suggestions.
// Supports ?max_distance_km= and ?min_bookings= query parameters.
func (s *Server) ListSuggestions(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	opts, ok := suggestOptions(w, r)
	if !ok {
		return
	}

	suggested, err := s.tours.Suggestions(r.Context(), a, id, opts)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	data := make([]suggestionResponse, 0, len(suggested))
	for _, in := range suggested {
		if in.BookingID == nil {
			continue
		}
		data = append(data, suggestionResponse{
			BookingID:      *in.BookingID,
			Date:           openapi_types.Date{Time: in.Date},
			City:           in.City,
			Latitude:       in.Latitude,
			Longitude:      in.Longitude,
			PerformanceFee: in.PerformanceFee,
			Status:         string(in.Status),
		})
	}
	writeJSON(w, http.StatusOK, suggestionsResponse{Data: data})
}

// ApplySuggestions handles POST /tours/{id}/suggestions.
// Responds with the recommended stops added and the recomputed tour.
func (s *Server) ApplySuggestions(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	opts, ok := suggestOptions(w, r)
	if !ok {
		return
	}

	t, added, err := s.tours.ApplySuggestions(r.Context(), a, id, opts)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	stops := make([]stopResponse, len(added))
	for i, st := range added {
		stops[i] = stopToResponse(st)
	}
	writeJSON(w, http.StatusOK, applySuggestionsResponse{Stops: stops, Tour: tourToResponse(t)})
}

// suggestOptions reads ?max_distance_km= and ?min_bookings=. Absent values
// fall back to the scheduler defaults.
func suggestOptions(w http.ResponseWriter, r *http.Request) (schedule.SuggestOptions, bool) {
	var opts schedule.SuggestOptions
	q := r.URL.Query()
	if raw := q.Get("max_distance_km"); raw != "" {
		km, err := strconv.ParseFloat(raw, 64)
		if err != nil || km <= 0 {
			requestError(w, "max_distance_km must be a positive number")
			return opts, false
		}
		opts.MaxDistanceKM = km
	}
	if raw := q.Get("min_bookings"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			requestError(w, "min_bookings must be a positive integer")
			return opts, false
		}
		opts.MinBookings = n
	}
	return opts, true
}

// tourAction resolves the actor and tour ID, decodes body when non-nil,
// runs fn and writes the tour.
func (s *Server) tourAction(w http.ResponseWriter, r *http.Request, body any, fn func(domain.Actor, uuid.UUID) (domain.Tour, error)) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if body != nil && !s.decode(w, r, body) {
		return
	}
	t, err := fn(a, id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tourToResponse(t))
}

// --- mapping helpers --------------------------------------------------------

func requestToDetails(body tourRequest) domain.TourDetails {
	c := body.Constraints
	return domain.TourDetails{
		Name:         body.Name,
		Region:       body.Region,
		Description:  body.Description,
		StartDate:    fromDate(body.StartDate),
		EndDate:      fromDate(body.EndDate),
		TotalBudget:  body.TotalBudget,
		PricePerShow: body.PricePerShow,
		PriceTier:    domain.PriceTier(body.PriceTier),
		Constraints: domain.Constraints{
			MaxTravelHours:  c.MaxTravelHours,
			MinShowsPerWeek: c.MinShowsPerWeek,
			MaxShowsPerWeek: c.MaxShowsPerWeek,
			RestDayRule:     domain.RestDayRule(c.RestDayRule),
			MinNetProfit:    c.MinNetProfit,
			VisaStatus:      domain.VisaStatus(c.VisaStatus),
		},
	}
}

func tourToResponse(t domain.Tour) tourResponse {
	c := t.Constraints
	resp := tourResponse{
		ID:           t.ID,
		PerformerID:  t.PerformerID,
		Name:         t.Name,
		Region:       t.Region,
		Description:  t.Description,
		StartDate:    toDate(t.StartDate),
		EndDate:      toDate(t.EndDate),
		TotalBudget:  t.TotalBudget,
		PricePerShow: t.PricePerShow,
		PriceTier:    string(t.PriceTier),
		Constraints: constraintsBody{
			MaxTravelHours:  c.MaxTravelHours,
			MinShowsPerWeek: c.MinShowsPerWeek,
			MaxShowsPerWeek: c.MaxShowsPerWeek,
			RestDayRule:     string(c.RestDayRule),
			MinNetProfit:    c.MinNetProfit,
			VisaStatus:      string(c.VisaStatus),
		},
		Status:            string(t.Status),
		EfficiencyScore:   t.EfficiencyScore,
		ConfirmedShows:    t.ConfirmedShows,
		BelowProfitTarget: t.BelowProfitTarget,
		Warnings:          t.Warnings,
		CreatedAt:         t.CreatedAt,
		UpdatedAt:         t.UpdatedAt,
	}
	if resp.Warnings == nil {
		resp.Warnings = []domain.Violation{}
	}
	if len(t.Stops) > 0 {
		resp.Stops = make([]stopResponse, len(t.Stops))
		for i, st := range t.Stops {
			resp.Stops[i] = stopToResponse(st)
		}
	}
	return resp
}

func stopToResponse(st domain.TourStop) stopResponse {
	return stopResponse{
		ID:                st.ID,
		BookingID:         st.BookingID,
		Date:              openapi_types.Date{Time: st.Date},
		City:              st.City,
		VenueName:         st.VenueName,
		Latitude:          st.Latitude,
		Longitude:         st.Longitude,
		SequenceOrder:     st.SequenceOrder,
		TravelFromPrev:    st.TravelFromPrev,
		TravelCost:        st.TravelCost,
		AccommodationCost: st.AccommodationCost,
		PerformanceFee:    st.PerformanceFee,
		NetRevenue:        st.NetRevenue,
		Status:            string(st.Status),
		StatusLabel:       st.Status.Label(),
		Notes:             st.Notes,
	}
}
