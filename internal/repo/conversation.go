package repo

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/kolamba/backend/internal/domain"
)

// ConversationRepo persists the per-booking conversation and its messages.
type ConversationRepo interface {
	// Create opens the conversation for a booking.
	Create(ctx context.Context, c domain.Conversation) (domain.Conversation, error)

	// Get returns the booking's conversation with messages oldest first.
	// Returns domain.ErrNotFound if the booking has none.
	Get(ctx context.Context, bookingID uuid.UUID) (domain.Conversation, error)

	// AppendMessage stores a message from one of the booking's parties.
	AppendMessage(ctx context.Context, m domain.Message) (domain.Message, error)

	// AppendSystemMessage stores a message with no sender.
	AppendSystemMessage(ctx context.Context, bookingID uuid.UUID, text string) (domain.Message, error)

	// UpdateVenueInfo replaces the venue sheet.
	UpdateVenueInfo(ctx context.Context, bookingID uuid.UUID, v domain.VenueInfo) (domain.Conversation, error)
}

// pgConversationRepo is the Postgres implementation of ConversationRepo.
type pgConversationRepo struct {
	db db
}

// NewConversationRepo constructs a ConversationRepo backed by the provided db connection.
func NewConversationRepo(db db) ConversationRepo {
	return &pgConversationRepo{db: db}
}

func (r *pgConversationRepo) Create(ctx context.Context, c domain.Conversation) (domain.Conversation, error) {
	raw, err := json.Marshal(c.VenueInfo)
	if err != nil {
		return domain.Conversation{}, fmt.Errorf("repo.ConversationRepo.Create: encode venue info: %w", err)
	}
	const q = `
		INSERT INTO conversations (id, booking_id, venue_info)
		VALUES (@id, @booking_id, @venue_info)
		RETURNING id, booking_id, venue_info, created_at, updated_at`

	result, err := scanConversation(r.db.QueryRow(ctx, q, pgx.NamedArgs{
		"id":         c.ID,
		"booking_id": c.BookingID,
		"venue_info": string(raw),
	}))
	if err != nil {
		return domain.Conversation{}, fmt.Errorf("repo.ConversationRepo.Create: %w", err)
	}
	return result, nil
}

func (r *pgConversationRepo) Get(ctx context.Context, bookingID uuid.UUID) (domain.Conversation, error) {
	const q = `
		SELECT id, booking_id, venue_info, created_at, updated_at
		FROM conversations
		WHERE booking_id = @booking_id`

	c, err := scanConversation(r.db.QueryRow(ctx, q, pgx.NamedArgs{"booking_id": bookingID}))
	if err != nil {
		return domain.Conversation{}, fmt.Errorf("repo.ConversationRepo.Get: %w", err)
	}

	const mq = `
		SELECT id, booking_id, sender_id, kind, content, created_at
		FROM messages
		WHERE booking_id = @booking_id
		ORDER BY created_at, id`

	rows, err := r.db.Query(ctx, mq, pgx.NamedArgs{"booking_id": bookingID})
	if err != nil {
		return domain.Conversation{}, fmt.Errorf("repo.ConversationRepo.Get: messages: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return domain.Conversation{}, fmt.Errorf("repo.ConversationRepo.Get: scan: %w", err)
		}
		c.Messages = append(c.Messages, m)
	}
	if err := rows.Err(); err != nil {
		return domain.Conversation{}, fmt.Errorf("repo.ConversationRepo.Get: rows: %w", err)
	}
	return c, nil
}

func (r *pgConversationRepo) AppendMessage(ctx context.Context, m domain.Message) (domain.Message, error) {
	result, err := r.insertMessage(ctx, m)
	if err != nil {
		return domain.Message{}, fmt.Errorf("repo.ConversationRepo.AppendMessage: %w", err)
	}
	return result, nil
}

func (r *pgConversationRepo) AppendSystemMessage(ctx context.Context, bookingID uuid.UUID, text string) (domain.Message, error) {
	result, err := r.insertMessage(ctx, domain.Message{
		ID:        uuid.New(),
		BookingID: bookingID,
		Kind:      domain.MessageSystem,
		Content:   text,
	})
	if err != nil {
		return domain.Message{}, fmt.Errorf("repo.ConversationRepo.AppendSystemMessage: %w", err)
	}
	return result, nil
}

func (r *pgConversationRepo) insertMessage(ctx context.Context, m domain.Message) (domain.Message, error) {
	const q = `
		INSERT INTO messages (id, booking_id, sender_id, kind, content)
		VALUES (@id, @booking_id, @sender_id, @kind, @content)
		RETURNING id, booking_id, sender_id, kind, content, created_at`

	return scanMessage(r.db.QueryRow(ctx, q, pgx.NamedArgs{
		"id":         m.ID,
		"booking_id": m.BookingID,
		"sender_id":  m.SenderID,
		"kind":       string(m.Kind),
		"content":    m.Content,
	}))
}

func (r *pgConversationRepo) UpdateVenueInfo(ctx context.Context, bookingID uuid.UUID, v domain.VenueInfo) (domain.Conversation, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return domain.Conversation{}, fmt.Errorf("repo.ConversationRepo.UpdateVenueInfo: encode: %w", err)
	}
	const q = `
		UPDATE conversations
		SET venue_info = @venue_info, updated_at = now()
		WHERE booking_id = @booking_id
		RETURNING id, booking_id, venue_info, created_at, updated_at`

	c, err := scanConversation(r.db.QueryRow(ctx, q, pgx.NamedArgs{"booking_id": bookingID, "venue_info": string(raw)}))
	if err != nil {
		return domain.Conversation{}, fmt.Errorf("repo.ConversationRepo.UpdateVenueInfo: %w", err)
	}
	return c, nil
}

func scanConversation(s scanner) (domain.Conversation, error) {
	var (
		c             domain.Conversation
		id, bookingID pgtype.UUID
		venue         []byte
	)
	if err := s.Scan(&id, &bookingID, &venue, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return domain.Conversation{}, notFound(err)
	}
	c.ID = uuid.UUID(id.Bytes)
	c.BookingID = uuid.UUID(bookingID.Bytes)
	if err := json.Unmarshal(venue, &c.VenueInfo); err != nil {
		return domain.Conversation{}, fmt.Errorf("decode venue info: %w", err)
	}
	c.Messages = []domain.Message{}
	return c, nil
}

func scanMessage(s scanner) (domain.Message, error) {
	var (
		m                     domain.Message
		id, bookingID, sender pgtype.UUID
		kind                  string
	)
	if err := s.Scan(&id, &bookingID, &sender, &kind, &m.Content, &m.CreatedAt); err != nil {
		return domain.Message{}, notFound(err)
	}
	m.ID = uuid.UUID(id.Bytes)
	m.BookingID = uuid.UUID(bookingID.Bytes)
	if sender.Valid {
		u := uuid.UUID(sender.Bytes)
		m.SenderID = &u
	}
	m.Kind = domain.MessageKind(kind)
	return m, nil
}
