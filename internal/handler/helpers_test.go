package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/kolamba/backend/internal/domain"
	"github.com/kolamba/backend/internal/handler"
	"github.com/kolamba/backend/internal/middleware"
	"github.com/kolamba/backend/internal/schedule"
	"github.com/kolamba/backend/internal/service"
)

// ---- mocks -----------------------------------------------------------------

// mockBookingServicer is a test double for handler.BookingServicer.
// Set only the method fields your test needs.
type mockBookingServicer struct {
	create      func(ctx context.Context, a domain.Actor, in service.NewBooking) (domain.Booking, error)
	get         func(ctx context.Context, a domain.Actor, id uuid.UUID) (domain.Booking, error)
	list        func(ctx context.Context, a domain.Actor, status domain.BookingStatus, p domain.PaginationParams) ([]domain.Booking, int64, error)
	submitQuote func(ctx context.Context, a domain.Actor, id uuid.UUID, amount decimal.Decimal, notes string) (domain.Booking, error)
	reviseQuote func(ctx context.Context, a domain.Actor, id uuid.UUID, amount decimal.Decimal, notes string) (domain.Booking, error)
	respond     func(ctx context.Context, a domain.Actor, id uuid.UUID, action domain.QuoteAction, reason string) (domain.Booking, error)
	cancel      func(ctx context.Context, a domain.Actor, id uuid.UUID) (domain.Booking, error)
}

func (m *mockBookingServicer) Create(ctx context.Context, a domain.Actor, in service.NewBooking) (domain.Booking, error) {
	return m.create(ctx, a, in)
}
func (m *mockBookingServicer) Get(ctx context.Context, a domain.Actor, id uuid.UUID) (domain.Booking, error) {
	return m.get(ctx, a, id)
}
func (m *mockBookingServicer) List(ctx context.Context, a domain.Actor, status domain.BookingStatus, p domain.PaginationParams) ([]domain.Booking, int64, error) {
	return m.list(ctx, a, status, p)
}
func (m *mockBookingServicer) SubmitQuote(ctx context.Context, a domain.Actor, id uuid.UUID, amount decimal.Decimal, notes string) (domain.Booking, error) {
	return m.submitQuote(ctx, a, id, amount, notes)
}
func (m *mockBookingServicer) ReviseQuote(ctx context.Context, a domain.Actor, id uuid.UUID, amount decimal.Decimal, notes string) (domain.Booking, error) {
	return m.reviseQuote(ctx, a, id, amount, notes)
}
func (m *mockBookingServicer) Respond(ctx context.Context, a domain.Actor, id uuid.UUID, action domain.QuoteAction, reason string) (domain.Booking, error) {
	return m.respond(ctx, a, id, action, reason)
}
func (m *mockBookingServicer) Cancel(ctx context.Context, a domain.Actor, id uuid.UUID) (domain.Booking, error) {
	return m.cancel(ctx, a, id)
}

var _ handler.BookingServicer = (*mockBookingServicer)(nil)

// mockTourServicer is a test double for handler.TourServicer.
type mockTourServicer struct {
	create           func(ctx context.Context, a domain.Actor, performerID uuid.UUID, d domain.TourDetails) (domain.Tour, error)
	get              func(ctx context.Context, a domain.Actor, id uuid.UUID) (domain.Tour, error)
	list             func(ctx context.Context, a domain.Actor, status domain.TourStatus, p domain.PaginationParams) ([]domain.Tour, int64, error)
	update           func(ctx context.Context, a domain.Actor, id uuid.UUID, d domain.TourDetails) (domain.Tour, error)
	transition       func(ctx context.Context, a domain.Actor, id uuid.UUID, to domain.TourStatus) (domain.Tour, error)
	addStop          func(ctx context.Context, a domain.Actor, tourID uuid.UUID, in domain.StopInput) (domain.Tour, domain.TourStop, error)
	removeStop       func(ctx context.Context, a domain.Actor, tourID, stopID uuid.UUID) (domain.Tour, error)
	reorder          func(ctx context.Context, a domain.Actor, tourID uuid.UUID, ids []uuid.UUID) (domain.Tour, error)
	recompute        func(ctx context.Context, a domain.Actor, tourID uuid.UUID) (domain.Tour, error)
	itinerary        func(ctx context.Context, a domain.Actor, tourID uuid.UUID) ([]domain.ItineraryRow, error)
	suggestions      func(ctx context.Context, a domain.Actor, tourID uuid.UUID, opts schedule.SuggestOptions) ([]domain.StopInput, error)
	applySuggestions func(ctx context.Context, a domain.Actor, tourID uuid.UUID, opts schedule.SuggestOptions) (domain.Tour, []domain.TourStop, error)
}

func (m *mockTourServicer) Create(ctx context.Context, a domain.Actor, performerID uuid.UUID, d domain.TourDetails) (domain.Tour, error) {
	return m.create(ctx, a, performerID, d)
}
func (m *mockTourServicer) Get(ctx context.Context, a domain.Actor, id uuid.UUID) (domain.Tour, error) {
	return m.get(ctx, a, id)
}
func (m *mockTourServicer) List(ctx context.Context, a domain.Actor, status domain.TourStatus, p domain.PaginationParams) ([]domain.Tour, int64, error) {
	return m.list(ctx, a, status, p)
}
func (m *mockTourServicer) Update(ctx context.Context, a domain.Actor, id uuid.UUID, d domain.TourDetails) (domain.Tour, error) {
	return m.update(ctx, a, id, d)
}
func (m *mockTourServicer) Transition(ctx context.Context, a domain.Actor, id uuid.UUID, to domain.TourStatus) (domain.Tour, error) {
	return m.transition(ctx, a, id, to)
}
func (m *mockTourServicer) AddStop(ctx context.Context, a domain.Actor, tourID uuid.UUID, in domain.StopInput) (domain.Tour, domain.TourStop, error) {
	return m.addStop(ctx, a, tourID, in)
}
func (m *mockTourServicer) RemoveStop(ctx context.Context, a domain.Actor, tourID, stopID uuid.UUID) (domain.Tour, error) {
	return m.removeStop(ctx, a, tourID, stopID)
}
func (m *mockTourServicer) Reorder(ctx context.Context, a domain.Actor, tourID uuid.UUID, ids []uuid.UUID) (domain.Tour, error) {
	return m.reorder(ctx, a, tourID, ids)
}
func (m *mockTourServicer) Recompute(ctx context.Context, a domain.Actor, tourID uuid.UUID) (domain.Tour, error) {
	return m.recompute(ctx, a, tourID)
}
func (m *mockTourServicer) Itinerary(ctx context.Context, a domain.Actor, tourID uuid.UUID) ([]domain.ItineraryRow, error) {
	return m.itinerary(ctx, a, tourID)
}
func (m *mockTourServicer) Suggestions(ctx context.Context, a domain.Actor, tourID uuid.UUID, opts schedule.SuggestOptions) ([]domain.StopInput, error) {
	return m.suggestions(ctx, a, tourID, opts)
}
func (m *mockTourServicer) ApplySuggestions(ctx context.Context, a domain.Actor, tourID uuid.UUID, opts schedule.SuggestOptions) (domain.Tour, []domain.TourStop, error) {
	return m.applySuggestions(ctx, a, tourID, opts)
}

var _ handler.TourServicer = (*mockTourServicer)(nil)

// mockConversationServicer is a test double for handler.ConversationServicer.
type mockConversationServicer struct {
	get             func(ctx context.Context, a domain.Actor, bookingID uuid.UUID) (domain.Conversation, error)
	postMessage     func(ctx context.Context, a domain.Actor, bookingID uuid.UUID, content string) (domain.Message, error)
	updateVenueInfo func(ctx context.Context, a domain.Actor, bookingID uuid.UUID, v domain.VenueInfo) (domain.Conversation, error)
}

func (m *mockConversationServicer) Get(ctx context.Context, a domain.Actor, bookingID uuid.UUID) (domain.Conversation, error) {
	return m.get(ctx, a, bookingID)
}
func (m *mockConversationServicer) PostMessage(ctx context.Context, a domain.Actor, bookingID uuid.UUID, content string) (domain.Message, error) {
	return m.postMessage(ctx, a, bookingID, content)
}
func (m *mockConversationServicer) UpdateVenueInfo(ctx context.Context, a domain.Actor, bookingID uuid.UUID, v domain.VenueInfo) (domain.Conversation, error) {
	return m.updateVenueInfo(ctx, a, bookingID, v)
}

var _ handler.ConversationServicer = (*mockConversationServicer)(nil)

// ---- helpers ---------------------------------------------------------------

const testSecret = "handler-test-secret"

var (
	hostActor      = domain.Actor{UserID: uuid.MustParse("00000000-0000-0000-0000-0000000000a1"), Role: domain.RoleHost}
	performerActor = domain.Actor{UserID: uuid.MustParse("00000000-0000-0000-0000-0000000000b1"), Role: domain.RolePerformer}
)

// newHTTPHandler wires a Server with the given mocks behind the real auth
// middleware. This mirrors how main.go wires it in production.
func newHTTPHandler(b handler.BookingServicer, t handler.TourServicer, c handler.ConversationServicer) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := handler.NewServer(b, t, c, logger)
	return srv.Routes(middleware.NewAuthHandler(middleware.NewTokenService(testSecret, time.Hour)))
}

// call performs a request as actor. A nil body sends no body; a string body
// is sent verbatim; anything else is JSON-encoded.
func call(t *testing.T, h http.Handler, actor domain.Actor, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	switch v := body.(type) {
	case nil:
	case string:
		r = bytes.NewBufferString(v)
	default:
		b, err := json.Marshal(v)
		require.NoError(t, err)
		r = bytes.NewBuffer(b)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	token, err := middleware.NewTokenService(testSecret, time.Hour).GenerateToken(actor)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// errorBody decodes the standard error response.
type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body
}

func dec(v int64) *decimal.Decimal {
	d := decimal.NewFromInt(v)
	return &d
}
