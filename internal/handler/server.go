// Package handler implements the HTTP handlers for the booking API.
// All handlers are methods on Server. Methods are split into domain-specific
// files (booking.go, tour.go, etc.) but share the same Server struct so they
// can access its dependencies.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kolamba/backend/internal/domain"
	"github.com/kolamba/backend/internal/schedule"
	"github.com/kolamba/backend/internal/service"
)

// BookingServicer defines the booking operations the handlers depend on.
// Defining the interface here (in the consumer package) lets handler tests
// inject a mock without touching the database or service layer.
type BookingServicer interface {
	Create(ctx context.Context, actor domain.Actor, in service.NewBooking) (domain.Booking, error)
	Get(ctx context.Context, actor domain.Actor, id uuid.UUID) (domain.Booking, error)
	List(ctx context.Context, actor domain.Actor, status domain.BookingStatus, p domain.PaginationParams) ([]domain.Booking, int64, error)
	SubmitQuote(ctx context.Context, actor domain.Actor, id uuid.UUID, amount decimal.Decimal, notes string) (domain.Booking, error)
	ReviseQuote(ctx context.Context, actor domain.Actor, id uuid.UUID, amount decimal.Decimal, notes string) (domain.Booking, error)
	Respond(ctx context.Context, actor domain.Actor, id uuid.UUID, action domain.QuoteAction, reason string) (domain.Booking, error)
	Cancel(ctx context.Context, actor domain.Actor, id uuid.UUID) (domain.Booking, error)
}

// TourServicer defines the tour operations the handlers depend on.
type TourServicer interface {
	Create(ctx context.Context, actor domain.Actor, performerID uuid.UUID, d domain.TourDetails) (domain.Tour, error)
	Get(ctx context.Context, actor domain.Actor, id uuid.UUID) (domain.Tour, error)
	List(ctx context.Context, actor domain.Actor, status domain.TourStatus, p domain.PaginationParams) ([]domain.Tour, int64, error)
	Update(ctx context.Context, actor domain.Actor, id uuid.UUID, d domain.TourDetails) (domain.Tour, error)
	Transition(ctx context.Context, actor domain.Actor, id uuid.UUID, to domain.TourStatus) (domain.Tour, error)
	AddStop(ctx context.Context, actor domain.Actor, tourID uuid.UUID, in domain.StopInput) (domain.Tour, domain.TourStop, error)
	RemoveStop(ctx context.Context, actor domain.Actor, tourID, stopID uuid.UUID) (domain.Tour, error)
	Reorder(ctx context.Context, actor domain.Actor, tourID uuid.UUID, ids []uuid.UUID) (domain.Tour, error)
	Recompute(ctx context.Context, actor domain.Actor, tourID uuid.UUID) (domain.Tour, error)
	Itinerary(ctx context.Context, actor domain.Actor, tourID uuid.UUID) ([]domain.ItineraryRow, error)
	Suggestions(ctx context.Context, actor domain.Actor, tourID uuid.UUID, opts schedule.SuggestOptions) ([]domain.StopInput, error)
	ApplySuggestions(ctx context.Context, actor domain.Actor, tourID uuid.UUID, opts schedule.SuggestOptions) (domain.Tour, []domain.TourStop, error)
}

// ConversationServicer defines the conversation operations the handlers depend on.
type ConversationServicer interface {
	Get(ctx context.Context, actor domain.Actor, bookingID uuid.UUID) (domain.Conversation, error)
	PostMessage(ctx context.Context, actor domain.Actor, bookingID uuid.UUID, content string) (domain.Message, error)
	UpdateVenueInfo(ctx context.Context, actor domain.Actor, bookingID uuid.UUID, v domain.VenueInfo) (domain.Conversation, error)
}

// Server holds the dependencies shared by every handler.
type Server struct {
	bookings      BookingServicer
	tours         TourServicer
	conversations ConversationServicer
	validate      *validator.Validate
	logger        *slog.Logger
}

// NewServer constructs the Server with all its dependencies.
func NewServer(bookings BookingServicer, tours TourServicer, conversations ConversationServicer, logger *slog.Logger) *Server {
	validate := validator.New(validator.WithRequiredStructEnabled())
	// Report fields by their JSON names so messages match the request body.
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return &Server{
		bookings:      bookings,
		tours:         tours,
		conversations: conversations,
		validate:      validate,
		logger:        logger,
	}
}

// Routes returns the API router. auth guards every route except the health
// check and the API description.
func (s *Server) Routes(auth func(http.Handler) http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", s.GetHealth)
	r.Get("/openapi.yaml", s.GetOpenAPI)

	r.Group(func(r chi.Router) {
		r.Use(auth)

		r.Route("/bookings", func(r chi.Router) {
			r.Post("/", s.CreateBooking)
			r.Get("/", s.ListBookings)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.GetBooking)
				r.Post("/quote", s.SubmitQuote)
				r.Put("/quote", s.ReviseQuote)
				r.Post("/respond", s.RespondToQuote)
				r.Post("/cancel", s.CancelBooking)
				r.Get("/conversation", s.GetConversation)
				r.Post("/conversation/messages", s.PostMessage)
				r.Put("/conversation/venue-info", s.UpdateVenueInfo)
			})
		})

		r.Route("/tours", func(r chi.Router) {
			r.Post("/", s.CreateTour)
			r.Get("/", s.ListTours)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.GetTour)
				r.Put("/", s.UpdateTour)
				r.Post("/status", s.TransitionTour)
				r.Post("/stops", s.AddStop)
				r.Put("/stops/order", s.ReorderStops)
				r.Delete("/stops/{stopId}", s.RemoveStop)
				r.Post("/recompute", s.RecomputeTour)
				r.Get("/itinerary", s.GetItinerary)
				r.Get("/suggestions", s.ListSuggestions)
				r.Post("/suggestions", s.ApplySuggestions)
			})
		})
	})
	return r
}
