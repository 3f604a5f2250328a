package handler

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/kolamba/backend/internal/domain"
)

type messageRequest struct {
	Content string `json:"content" validate:"required"`
}

type messageResponse struct {
	ID        uuid.UUID  `json:"id"`
	SenderID  *uuid.UUID `json:"sender_id"`
	Kind      string     `json:"kind"`
	Content   string     `json:"content"`
	CreatedAt time.Time  `json:"created_at"`
}

type conversationResponse struct {
	ID        uuid.UUID         `json:"id"`
	BookingID uuid.UUID         `json:"booking_id"`
	VenueInfo domain.VenueInfo  `json:"venue_info"`
	Messages  []messageResponse `json:"messages"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// GetConversation handles GET /bookings/{id}/conversation.
func (s *Server) GetConversation(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	c, err := s.conversations.Get(r.Context(), a, id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, conversationToResponse(c))
}

// PostMessage handles POST /bookings/{id}/conversation/messages.
func (s *Server) PostMessage(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var body messageRequest
	if !s.decode(w, r, &body) {
		return
	}
	m, err := s.conversations.PostMessage(r.Context(), a, id, body.Content)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, messageToResponse(m))
}

// UpdateVenueInfo handles PUT /bookings/{id}/conversation/venue-info.
// The body replaces the whole venue sheet.
func (s *Server) UpdateVenueInfo(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var body domain.VenueInfo
	if !s.decode(w, r, &body) {
		return
	}
	c, err := s.conversations.UpdateVenueInfo(r.Context(), a, id, body)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, conversationToResponse(c))
}

func conversationToResponse(c domain.Conversation) conversationResponse {
	resp := conversationResponse{
		ID:        c.ID,
		BookingID: c.BookingID,
		VenueInfo: c.VenueInfo,
		Messages:  make([]messageResponse, len(c.Messages)),
		UpdatedAt: c.UpdatedAt,
	}
	for i, m := range c.Messages {
		resp.Messages[i] = messageToResponse(m)
	}
	return resp
}

func messageToResponse(m domain.Message) messageResponse {
	return messageResponse{
		ID:        m.ID,
		SenderID:  m.SenderID,
		Kind:      string(m.Kind),
		Content:   m.Content,
		CreatedAt: m.CreatedAt,
	}
}
