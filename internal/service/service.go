// Package service contains the business logic for the booking API.
// Services authorize the acting user, run each mutation in a transaction
// that locks the aggregate root, and publish lifecycle events after commit.
// No SQL lives here: services depend on repo interfaces, not implementations.
package service

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/kolamba/backend/internal/domain"
	"github.com/kolamba/backend/internal/events"
)

// Recomputer refreshes a tour's derived fields. *schedule.Scheduler
// satisfies it.
type Recomputer interface {
	Recompute(ctx context.Context, t *domain.Tour)
}

// publish sends an event and logs, rather than returns, any failure: the
// database change it describes has already committed.
func publish(ctx context.Context, pub events.Publisher, logger *slog.Logger, key string, payload any) {
	if err := pub.Publish(ctx, key, payload); err != nil {
		logger.WarnContext(ctx, "event publish failed", "routing_key", key, "error", err)
	}
}

// owns reports whether the actor may act on a record owned by owner.
func owns(actor domain.Actor, owner uuid.UUID) bool {
	return actor.Can().ViewAll || actor.UserID == owner
}
