package domain

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// MaxMessageLength caps user message content, in runes.
const MaxMessageLength = 5000

// MessageKind distinguishes party messages from system-generated ones.
type MessageKind string

const (
	MessageUser   MessageKind = "user"
	MessageSystem MessageKind = "system"
)

// Message is one entry in a booking conversation. SenderID is nil for
// system messages.
type Message struct {
	ID        uuid.UUID
	BookingID uuid.UUID
	SenderID  *uuid.UUID
	Kind      MessageKind
	Content   string
	CreatedAt time.Time
}

// VenueInfo is the free-form venue sheet the host fills in for the performer.
type VenueInfo struct {
	FacilitySize       string `json:"facility_size,omitempty"`
	VenueType          string `json:"venue_type,omitempty"`
	StageDimensions    string `json:"stage_dimensions,omitempty"`
	ExpectedAttendance *int   `json:"expected_attendance,omitempty"`
	AudienceType       string `json:"audience_type,omitempty"`
	SoundSystem        string `json:"sound_system,omitempty"`
	Lighting           string `json:"lighting,omitempty"`
	GreenRoom          string `json:"green_room,omitempty"`
	Catering           string `json:"catering,omitempty"`
	Parking            string `json:"parking,omitempty"`
	Accessibility      string `json:"accessibility,omitempty"`
	LoadInAccess       string `json:"load_in_access,omitempty"`
	AdditionalNotes    string `json:"additional_notes,omitempty"`
}

// Validate rejects impossible venue values.
func (v VenueInfo) Validate() error {
	if v.ExpectedAttendance != nil && *v.ExpectedAttendance < 0 {
		return fmt.Errorf("%w: expected_attendance must not be negative", ErrValidation)
	}
	return nil
}

// Conversation is the per-booking side channel between host and performer.
type Conversation struct {
	ID        uuid.UUID
	BookingID uuid.UUID
	VenueInfo VenueInfo
	Messages  []Message
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewUserMessage builds a message sent by one of the booking's parties.
func NewUserMessage(id, bookingID, senderID uuid.UUID, content string, now time.Time) (Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return Message{}, fmt.Errorf("%w: message content is required", ErrValidation)
	}
	if utf8.RuneCountInString(content) > MaxMessageLength {
		return Message{}, fmt.Errorf("%w: message exceeds %d characters", ErrValidation, MaxMessageLength)
	}
	sender := senderID
	return Message{
		ID:        id,
		BookingID: bookingID,
		SenderID:  &sender,
		Kind:      MessageUser,
		Content:   content,
		CreatedAt: now,
	}, nil
}

// QuoteSubmittedText is the system message posted when a quote is first issued.
func QuoteSubmittedText(q Quote) string { return "Quote submitted: " + FormatMoney(q.Amount) }

// QuoteRevisedText is posted when an outstanding quote is replaced.
func QuoteRevisedText(q Quote) string { return "Quote revised: " + FormatMoney(q.Amount) }

// ResponseText describes the host's answer to a quote.
func ResponseText(action QuoteAction, reason string) string {
	if action == QuoteApprove {
		return "Quote approved"
	}
	if reason = strings.TrimSpace(reason); reason != "" {
		return "Quote declined: " + reason
	}
	return "Quote declined"
}

// CancelledText is posted when a pending booking is withdrawn.
const CancelledText = "Booking cancelled"
