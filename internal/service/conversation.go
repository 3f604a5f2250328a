package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kolamba/backend/internal/domain"
	"github.com/kolamba/backend/internal/repo"
)

// ConversationService exposes the per-booking message thread and venue sheet.
type ConversationService struct {
	store  repo.Store
	logger *slog.Logger
}

// NewConversationService constructs a ConversationService.
func NewConversationService(store repo.Store, logger *slog.Logger) *ConversationService {
	return &ConversationService{store: store, logger: logger}
}

// Get returns the booking's conversation, messages oldest first.
func (s *ConversationService) Get(ctx context.Context, actor domain.Actor, bookingID uuid.UUID) (domain.Conversation, error) {
	b, err := s.store.Bookings().Get(ctx, bookingID)
	if err != nil {
		return domain.Conversation{}, fmt.Errorf("service.ConversationService.Get: %w", err)
	}
	if !actor.Can().ViewAll && !b.IsParty(actor.UserID) {
		return domain.Conversation{}, fmt.Errorf("service.ConversationService.Get: %w", domain.ErrForbidden)
	}
	c, err := s.store.Conversations().Get(ctx, bookingID)
	if err != nil {
		return domain.Conversation{}, fmt.Errorf("service.ConversationService.Get: %w", err)
	}
	return c, nil
}

// PostMessage appends a message from one of the booking's parties.
func (s *ConversationService) PostMessage(ctx context.Context, actor domain.Actor, bookingID uuid.UUID, content string) (domain.Message, error) {
	b, err := s.store.Bookings().Get(ctx, bookingID)
	if err != nil {
		return domain.Message{}, fmt.Errorf("service.ConversationService.PostMessage: %w", err)
	}
	if !actor.Can().ViewAll && !b.IsParty(actor.UserID) {
		return domain.Message{}, fmt.Errorf("service.ConversationService.PostMessage: %w", domain.ErrForbidden)
	}
	m, err := domain.NewUserMessage(uuid.New(), bookingID, actor.UserID, content, time.Now().UTC())
	if err != nil {
		return domain.Message{}, err
	}
	saved, err := s.store.Conversations().AppendMessage(ctx, m)
	if err != nil {
		return domain.Message{}, fmt.Errorf("service.ConversationService.PostMessage: %w", err)
	}
	return saved, nil
}

// UpdateVenueInfo replaces the venue sheet. Only the booking's host (or an
// admin) may edit it.
func (s *ConversationService) UpdateVenueInfo(ctx context.Context, actor domain.Actor, bookingID uuid.UUID, v domain.VenueInfo) (domain.Conversation, error) {
	if err := v.Validate(); err != nil {
		return domain.Conversation{}, err
	}
	var updated domain.Conversation
	err := s.store.InTx(ctx, func(tx repo.Store) error {
		b, err := tx.Bookings().GetForUpdate(ctx, bookingID)
		if err != nil {
			return err
		}
		if !owns(actor, b.HostID) {
			return fmt.Errorf("%w: only the booking's host can edit venue info", domain.ErrForbidden)
		}
		updated, err = tx.Conversations().UpdateVenueInfo(ctx, bookingID, v)
		return err
	})
	if err != nil {
		return domain.Conversation{}, fmt.Errorf("service.ConversationService.UpdateVenueInfo: %w", err)
	}
	s.logger.InfoContext(ctx, "venue info updated", "booking_id", bookingID)
	return updated, nil
}
