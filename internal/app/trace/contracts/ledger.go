package contracts

import (
	"context"
	"time"

	"github.com/benomayebu/Farmily-Docs/internal/app/trace/domain"
)

// Ledger stores actions together with their transition events. Create and
// Save write the action row and its outbox rows atomically; Save fails with
// domain.ErrVersionConflict when the row changed since it was loaded.
type Ledger interface {
	Create(ctx context.Context, action *domain.Action) error
	Save(ctx context.Context, action *domain.Action) error
	Get(ctx context.Context, actionID string) (*domain.Action, error)
	List(ctx context.Context, filter ActionFilter) ([]*domain.Action, error)
}

// ActionFilter selects ledger rows. Zero fields match everything.
type ActionFilter struct {
	States     []domain.ActionState
	Kind       domain.ActionKind
	Role       domain.Role
	ProductRef string
	TxHash     string
	Limit      int
}

// List limits.
const (
	DefaultListLimit = 100
	MaxListLimit     = 1000
)

// EffectiveLimit clamps Limit to (0, MaxListLimit].
func (f ActionFilter) EffectiveLimit() int {
	switch {
	case f.Limit <= 0:
		return DefaultListLimit
	case f.Limit > MaxListLimit:
		return MaxListLimit
	}
	return f.Limit
}

// OutboxEvent is a stored transition event.
type OutboxEvent struct {
	EventID    string
	EventType  string
	ActionID   string
	Payload    string // JSON
	Status     string
	RetryCount int64
	CreatedAt  time.Time
}

// Outbox is the relay side of the action event outbox.
type Outbox interface {
	// Pending returns up to limit pending events, oldest first.
	Pending(ctx context.Context, limit int) ([]*OutboxEvent, error)
	MarkCompleted(ctx context.Context, eventID string) error
	// MarkFailed records a delivery failure. The event returns to pending
	// until it has failed maxRetries times.
	MarkFailed(ctx context.Context, eventID string, cause error, maxRetries int64) error
}
