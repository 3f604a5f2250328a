package handler

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	openapi_types "github.com/oapi-codegen/runtime/types"
	"github.com/shopspring/decimal"

	"github.com/kolamba/backend/internal/domain"
	"github.com/kolamba/backend/internal/service"
)

type createBookingRequest struct {
	PerformerID   uuid.UUID           `json:"performer_id" validate:"required"`
	HostID        *uuid.UUID          `json:"host_id"`
	RequestedDate *openapi_types.Date `json:"requested_date"`
	Location      string              `json:"location" validate:"max=255"`
	Latitude      *float64            `json:"latitude" validate:"omitempty,min=-90,max=90"`
	Longitude     *float64            `json:"longitude" validate:"omitempty,min=-180,max=180"`
	Budget        *decimal.Decimal    `json:"budget"`
	Notes         string              `json:"notes" validate:"max=5000"`
}

type quoteRequest struct {
	Amount *decimal.Decimal `json:"amount" validate:"required"`
	Notes  string           `json:"notes"`
}

type respondRequest struct {
	Action string `json:"action" validate:"required,oneof=approve decline"`
	Reason string `json:"reason" validate:"max=2000"`
}

type quoteResponse struct {
	Amount   decimal.Decimal `json:"amount"`
	Notes    string          `json:"notes,omitempty"`
	IssuedAt time.Time       `json:"issued_at"`
}

type bookingResponse struct {
	ID            uuid.UUID           `json:"id"`
	PerformerID   uuid.UUID           `json:"performer_id"`
	HostID        uuid.UUID           `json:"host_id"`
	RequestedDate *openapi_types.Date `json:"requested_date,omitempty"`
	Location      string              `json:"location,omitempty"`
	Latitude      *float64            `json:"latitude,omitempty"`
	Longitude     *float64            `json:"longitude,omitempty"`
	Budget        *decimal.Decimal    `json:"budget,omitempty"`
	Notes         string              `json:"notes,omitempty"`
	Status        string              `json:"status"`
	StatusLabel   string              `json:"status_label"`
	AllowedNext   []string            `json:"allowed_next"`
	Quote         *quoteResponse      `json:"quote,omitempty"`
	DeclineReason string              `json:"decline_reason,omitempty"`
	CancelledAt   *time.Time          `json:"cancelled_at,omitempty"`
	CompletedAt   *time.Time          `json:"completed_at,omitempty"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
}

// paginationResponse is the envelope metadata of every list response.
type paginationResponse struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
}

type listResponse[T any] struct {
	Data       []T                `json:"data"`
	Pagination paginationResponse `json:"pagination"`
}

// CreateBooking handles POST /bookings.
func (s *Server) CreateBooking(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	var body createBookingRequest
	if !s.decode(w, r, &body) {
		return
	}
	in := service.NewBooking{
		PerformerID: body.PerformerID,
		Location:    body.Location,
		Latitude:    body.Latitude,
		Longitude:   body.Longitude,
		Budget:      body.Budget,
		Notes:       body.Notes,
	}
	if body.HostID != nil {
		in.HostID = *body.HostID
	}
	in.RequestedDate = fromDate(body.RequestedDate)

	created, err := s.bookings.Create(r.Context(), a, in)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, bookingToResponse(created))
}

// ListBookings handles GET /bookings.
// Supports ?status=, ?page= and ?limit= query parameters.
func (s *Server) ListBookings(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	params, ok := pagination(w, r)
	if !ok {
		return
	}
	status := domain.BookingStatus(r.URL.Query().Get("status"))

	bookings, total, err := s.bookings.List(r.Context(), a, status, params)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	data := make([]bookingResponse, len(bookings))
	for i, b := range bookings {
		data[i] = bookingToResponse(b)
	}
	writeJSON(w, http.StatusOK, listResponse[bookingResponse]{
		Data:       data,
		Pagination: paginationResponse{Page: params.Page, Limit: params.Limit, Total: int(total)},
	})
}

// GetBooking handles GET /bookings/{id}.
func (s *Server) GetBooking(w http.ResponseWriter, r *http.Request) {
	s.bookingAction(w, r, func(a domain.Actor, id uuid.UUID) (domain.Booking, error) {
		return s.bookings.Get(r.Context(), a, id)
	})
}

// SubmitQuote handles POST /bookings/{id}/quote.
func (s *Server) SubmitQuote(w http.ResponseWriter, r *http.Request) {
	var body quoteRequest
	s.bookingActionWithBody(w, r, &body, func(a domain.Actor, id uuid.UUID) (domain.Booking, error) {
		return s.bookings.SubmitQuote(r.Context(), a, id, *body.Amount, body.Notes)
	})
}

// ReviseQuote handles PUT /bookings/{id}/quote.
func (s *Server) ReviseQuote(w http.ResponseWriter, r *http.Request) {
	var body quoteRequest
	s.bookingActionWithBody(w, r, &body, func(a domain.Actor, id uuid.UUID) (domain.Booking, error) {
		return s.bookings.ReviseQuote(r.Context(), a, id, *body.Amount, body.Notes)
	})
}

// RespondToQuote handles POST /bookings/{id}/respond.
func (s *Server) RespondToQuote(w http.ResponseWriter, r *http.Request) {
	var body respondRequest
	s.bookingActionWithBody(w, r, &body, func(a domain.Actor, id uuid.UUID) (domain.Booking, error) {
		return s.bookings.Respond(r.Context(), a, id, domain.QuoteAction(body.Action), body.Reason)
	})
}

// CancelBooking handles POST /bookings/{id}/cancel.
func (s *Server) CancelBooking(w http.ResponseWriter, r *http.Request) {
	s.bookingAction(w, r, func(a domain.Actor, id uuid.UUID) (domain.Booking, error) {
		return s.bookings.Cancel(r.Context(), a, id)
	})
}

// bookingAction resolves the actor and path ID, runs fn and writes the booking.
func (s *Server) bookingAction(w http.ResponseWriter, r *http.Request, fn func(domain.Actor, uuid.UUID) (domain.Booking, error)) {
	s.bookingActionWithBody(w, r, nil, fn)
}

func (s *Server) bookingActionWithBody(w http.ResponseWriter, r *http.Request, body any, fn func(domain.Actor, uuid.UUID) (domain.Booking, error)) {
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
	b, err := fn(a, id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, bookingToResponse(b))
}

// --- mapping helpers --------------------------------------------------------

func bookingToResponse(b domain.Booking) bookingResponse {
	resp := bookingResponse{
		ID:            b.ID,
		PerformerID:   b.PerformerID,
		HostID:        b.HostID,
		Location:      b.Location,
		Latitude:      b.Latitude,
		Longitude:     b.Longitude,
		Budget:        b.Budget,
		Notes:         b.Notes,
		Status:        string(b.Status),
		StatusLabel:   b.Status.Label(),
		AllowedNext:   []string{},
		DeclineReason: b.DeclineReason,
		CancelledAt:   b.CancelledAt,
		CompletedAt:   b.CompletedAt,
		CreatedAt:     b.CreatedAt,
		UpdatedAt:     b.UpdatedAt,
	}
	for _, next := range b.Status.AllowedNext() {
		resp.AllowedNext = append(resp.AllowedNext, string(next))
	}
	resp.RequestedDate = toDate(b.RequestedDate)
	if q, ok := b.Quote(); ok {
		resp.Quote = &quoteResponse{Amount: q.Amount, Notes: q.Notes, IssuedAt: q.IssuedAt}
	}
	return resp
}

// toDate converts an optional time into an openapi_types.Date.
func toDate(t *time.Time) *openapi_types.Date {
	if t == nil {
		return nil
	}
	return &openapi_types.Date{Time: *t}
}

// fromDate converts an optional openapi_types.Date into a time.
func fromDate(d *openapi_types.Date) *time.Time {
	if d == nil {
		return nil
	}
	t := d.Time
	return &t
}
