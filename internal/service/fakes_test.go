package service_test

import (
	"context"
	"io"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/kolamba/backend/internal/domain"
	"github.com/kolamba/backend/internal/repo"
)

// memStore is an in-memory repo.Store. InTx snapshots every table and
// restores the snapshot when fn fails, so tests can assert that a failed
// operation left nothing behind.
type memStore struct {
	bookings map[uuid.UUID]domain.Booking
	tours    map[uuid.UUID]domain.Tour
	convs    map[uuid.UUID]domain.Conversation

	// Injected failures.
	failSystemMessage error
	failSave          error
}

func newMemStore() *memStore {
	return &memStore{
		bookings: map[uuid.UUID]domain.Booking{},
		tours:    map[uuid.UUID]domain.Tour{},
		convs:    map[uuid.UUID]domain.Conversation{},
	}
}

var _ repo.Store = (*memStore)(nil)

func (s *memStore) Bookings() repo.BookingRepo           { return memBookings{s} }
func (s *memStore) Tours() repo.TourRepo                 { return memTours{s} }
func (s *memStore) Conversations() repo.ConversationRepo { return memConvs{s} }

func (s *memStore) InTx(_ context.Context, fn func(repo.Store) error) error {
	bookings, tours, convs := s.snapshot()
	if err := fn(s); err != nil {
		s.bookings, s.tours, s.convs = bookings, tours, convs
		return err
	}
	return nil
}

func (s *memStore) snapshot() (map[uuid.UUID]domain.Booking, map[uuid.UUID]domain.Tour, map[uuid.UUID]domain.Conversation) {
	bookings := make(map[uuid.UUID]domain.Booking, len(s.bookings))
	for k, v := range s.bookings {
		bookings[k] = v
	}
	tours := make(map[uuid.UUID]domain.Tour, len(s.tours))
	for k, v := range s.tours {
		tours[k] = cloneTour(v)
	}
	convs := make(map[uuid.UUID]domain.Conversation, len(s.convs))
	for k, v := range s.convs {
		v.Messages = slices.Clone(v.Messages)
		convs[k] = v
	}
	return bookings, tours, convs
}

func cloneTour(t domain.Tour) domain.Tour {
	t.Stops = slices.Clone(t.Stops)
	t.Warnings = slices.Clone(t.Warnings)
	return t
}

// ---- bookings ----------------------------------------------------------------

type memBookings struct{ s *memStore }

func (r memBookings) Create(_ context.Context, b domain.Booking) (domain.Booking, error) {
	r.s.bookings[b.ID] = b
	return b, nil
}

func (r memBookings) Get(_ context.Context, id uuid.UUID) (domain.Booking, error) {
	b, ok := r.s.bookings[id]
	if !ok {
		return domain.Booking{}, domain.ErrNotFound
	}
	return b, nil
}

func (r memBookings) GetForUpdate(ctx context.Context, id uuid.UUID) (domain.Booking, error) {
	return r.Get(ctx, id)
}

func (r memBookings) Update(_ context.Context, b domain.Booking) (domain.Booking, error) {
	if _, ok := r.s.bookings[b.ID]; !ok {
		return domain.Booking{}, domain.ErrNotFound
	}
	r.s.bookings[b.ID] = b
	return b, nil
}

func (r memBookings) List(_ context.Context, f repo.BookingFilter, p domain.PaginationParams) ([]domain.Booking, int64, error) {
	var out []domain.Booking
	for _, b := range r.s.bookings {
		if f.PartyID != nil && !b.IsParty(*f.PartyID) {
			continue
		}
		if f.Status != "" && b.Status != f.Status {
			continue
		}
		out = append(out, b)
	}
	slices.SortFunc(out, func(a, b domain.Booking) int { return b.CreatedAt.Compare(a.CreatedAt) })
	total := int64(len(out))
	lo := min(p.Offset(), len(out))
	hi := min(lo+p.Limit, len(out))
	return out[lo:hi], total, nil
}

func (r memBookings) ListElapsed(_ context.Context, before time.Time, limit int) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	for _, b := range r.s.bookings {
		if b.Status == domain.BookingApproved && b.Elapsed(before) && len(ids) < limit {
			ids = append(ids, b.ID)
		}
	}
	return ids, nil
}

func (r memBookings) ListUnscheduled(_ context.Context, performerID uuid.UUID) ([]domain.Booking, error) {
	scheduled := map[uuid.UUID]bool{}
	for _, t := range r.s.tours {
		for _, st := range t.Stops {
			if st.BookingID != nil {
				scheduled[*st.BookingID] = true
			}
		}
	}
	out := []domain.Booking{}
	for _, b := range r.s.bookings {
		if b.PerformerID == performerID && b.Schedulable() && !scheduled[b.ID] {
			out = append(out, b)
		}
	}
	slices.SortFunc(out, func(a, b domain.Booking) int {
		switch {
		case a.RequestedDate == nil || b.RequestedDate == nil:
			return boolCmp(a.RequestedDate == nil, b.RequestedDate == nil)
		case !a.RequestedDate.Equal(*b.RequestedDate):
			return a.RequestedDate.Compare(*b.RequestedDate)
		}
		return slices.Compare(a.ID[:], b.ID[:])
	})
	return out, nil
}

// boolCmp orders false before true.
func boolCmp(a, b bool) int {
	switch {
	case a == b:
		return 0
	case a:
		return 1
	}
	return -1
}

// ---- tours -------------------------------------------------------------------

type memTours struct{ s *memStore }

func (r memTours) Create(_ context.Context, t domain.Tour) (domain.Tour, error) {
	r.s.tours[t.ID] = cloneTour(t)
	return cloneTour(t), nil
}

func (r memTours) Get(_ context.Context, id uuid.UUID) (domain.Tour, error) {
	t, ok := r.s.tours[id]
	if !ok {
		return domain.Tour{}, domain.ErrNotFound
	}
	return cloneTour(t), nil
}

func (r memTours) GetForUpdate(ctx context.Context, id uuid.UUID) (domain.Tour, error) {
	return r.Get(ctx, id)
}

func (r memTours) Save(_ context.Context, t domain.Tour) (domain.Tour, error) {
	if r.s.failSave != nil {
		return domain.Tour{}, r.s.failSave
	}
	r.s.tours[t.ID] = cloneTour(t)
	return cloneTour(t), nil
}

func (r memTours) List(_ context.Context, f repo.TourFilter, p domain.PaginationParams) ([]domain.Tour, int64, error) {
	var out []domain.Tour
	for _, t := range r.s.tours {
		if f.PerformerID != nil && t.PerformerID != *f.PerformerID {
			continue
		}
		if f.Status != "" && t.Status != f.Status {
			continue
		}
		t = cloneTour(t)
		t.Stops = nil
		out = append(out, t)
	}
	total := int64(len(out))
	lo := min(p.Offset(), len(out))
	hi := min(lo+p.Limit, len(out))
	return out[lo:hi], total, nil
}

func (r memTours) StopByBooking(_ context.Context, bookingID uuid.UUID) (domain.TourStop, error) {
	for _, t := range r.s.tours {
		for _, st := range t.Stops {
			if st.BookingID != nil && *st.BookingID == bookingID {
				return st, nil
			}
		}
	}
	return domain.TourStop{}, domain.ErrNotFound
}

// ---- conversations -----------------------------------------------------------

type memConvs struct{ s *memStore }

func (r memConvs) Create(_ context.Context, c domain.Conversation) (domain.Conversation, error) {
	r.s.convs[c.BookingID] = c
	return c, nil
}

func (r memConvs) Get(_ context.Context, bookingID uuid.UUID) (domain.Conversation, error) {
	c, ok := r.s.convs[bookingID]
	if !ok {
		return domain.Conversation{}, domain.ErrNotFound
	}
	c.Messages = slices.Clone(c.Messages)
	return c, nil
}

func (r memConvs) AppendMessage(_ context.Context, m domain.Message) (domain.Message, error) {
	c, ok := r.s.convs[m.BookingID]
	if !ok {
		return domain.Message{}, domain.ErrNotFound
	}
	c.Messages = append(slices.Clone(c.Messages), m)
	r.s.convs[m.BookingID] = c
	return m, nil
}

func (r memConvs) AppendSystemMessage(ctx context.Context, bookingID uuid.UUID, text string) (domain.Message, error) {
	if r.s.failSystemMessage != nil {
		return domain.Message{}, r.s.failSystemMessage
	}
	return r.AppendMessage(ctx, domain.Message{
		ID:        uuid.New(),
		BookingID: bookingID,
		Kind:      domain.MessageSystem,
		Content:   text,
		CreatedAt: time.Now().UTC(),
	})
}

func (r memConvs) UpdateVenueInfo(_ context.Context, bookingID uuid.UUID, v domain.VenueInfo) (domain.Conversation, error) {
	c, ok := r.s.convs[bookingID]
	if !ok {
		return domain.Conversation{}, domain.ErrNotFound
	}
	c.VenueInfo = v
	r.s.convs[bookingID] = c
	return c, nil
}

// ---- events ------------------------------------------------------------------

// recordingPublisher records routing keys and fails every publish when err is set.
type recordingPublisher struct {
	keys []string
	err  error
}

func (p *recordingPublisher) Publish(_ context.Context, key string, _ any) error {
	if p.err != nil {
		return p.err
	}
	p.keys = append(p.keys, key)
	return nil
}

// ---- actors ------------------------------------------------------------------

var (
	hostID      = uuid.MustParse("00000000-0000-0000-0000-0000000000a1")
	performerID = uuid.MustParse("00000000-0000-0000-0000-0000000000b1")
	strangerID  = uuid.MustParse("00000000-0000-0000-0000-0000000000c1")

	host      = domain.Actor{UserID: hostID, Role: domain.RoleHost}
	performer = domain.Actor{UserID: performerID, Role: domain.RolePerformer}
	stranger  = domain.Actor{UserID: strangerID, Role: domain.RolePerformer}
	admin     = domain.Actor{UserID: uuid.MustParse("00000000-0000-0000-0000-0000000000d1"), Role: domain.RoleAdmin}
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
