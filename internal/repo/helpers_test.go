package repo_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/kolamba/backend/internal/domain"
	"github.com/kolamba/backend/internal/repo"
	"github.com/kolamba/backend/testutil"
)

// newTestStore opens a transaction against the test database and returns a
// Store backed by it. The transaction is rolled back when the test finishes,
// giving per-test isolation; InTx calls nest as savepoints.
func newTestStore(t *testing.T) repo.Store {
	t.Helper()
	pool := testutil.NewPool(t)

	tx, err := pool.Begin(context.Background())
	require.NoError(t, err, "begin transaction")

	t.Cleanup(func() {
		_ = tx.Rollback(context.Background())
	})

	return repo.NewStore(tx)
}

func ptr[T any](v T) *T { return &v }

// bookingFixture returns a pending booking with sensible defaults.
func bookingFixture() domain.Booking {
	date := time.Date(2026, 5, 10, 0, 0, 0, 0, time.UTC)
	return domain.Booking{
		ID:            uuid.New(),
		PerformerID:   uuid.New(),
		HostID:        uuid.New(),
		RequestedDate: &date,
		Location:      "Austin, TX",
		Notes:         "Outdoor stage",
		Status:        domain.BookingPending,
	}
}

func createBooking(t *testing.T, s repo.Store, b domain.Booking) domain.Booking {
	t.Helper()
	got, err := s.Bookings().Create(context.Background(), b)
	require.NoError(t, err)
	_, err = s.Conversations().Create(context.Background(), domain.Conversation{ID: uuid.New(), BookingID: got.ID})
	require.NoError(t, err)
	return got
}
