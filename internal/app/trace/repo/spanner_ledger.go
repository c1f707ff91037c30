package repo

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/spanner"

	"github.com/benomayebu/Farmily-Docs/internal/app/trace/contracts"
	"github.com/benomayebu/Farmily-Docs/internal/app/trace/domain"
	"github.com/benomayebu/Farmily-Docs/internal/models/m_action"
	"github.com/benomayebu/Farmily-Docs/internal/pkg/clock"
	"github.com/benomayebu/Farmily-Docs/internal/pkg/committer"
)

// SpannerLedger implements contracts.Ledger on Spanner. Each write is one
// commit plan holding the action mutation and its outbox rows.
type SpannerLedger struct {
	actions   *ActionRepo
	outbox    *OutboxRepo
	committer *committer.Committer
}

// NewSpannerLedger creates the ledger.
func NewSpannerLedger(client *spanner.Client, clk clock.Clock) *SpannerLedger {
	return &SpannerLedger{
		actions:   NewActionRepo(client, clk),
		outbox:    NewOutboxRepo(client),
		committer: committer.NewCommitter(client),
	}
}

// Outbox returns the relay side of the outbox.
func (l *SpannerLedger) Outbox() *OutboxRepo {
	return l.outbox
}

func (l *SpannerLedger) plan(action *domain.Action, mut *spanner.Mutation) (*committer.CommitPlan, error) {
	plan := committer.NewPlan()
	plan.Add(mut)
	for _, event := range action.DomainEvents() {
		outboxEvent, err := EnrichEvent(event)
		if err != nil {
			return nil, err
		}
		plan.Add(l.outbox.InsertMut(outboxEvent))
	}
	return plan, nil
}

// Create inserts a new action and its events.
func (l *SpannerLedger) Create(ctx context.Context, action *domain.Action) error {
	plan, err := l.plan(action, l.actions.InsertMut(action))
	if err != nil {
		return err
	}
	if err := l.committer.Apply(ctx, plan); err != nil {
		return fmt.Errorf("failed to create action: %w", err)
	}
	action.MarkStored()
	return nil
}

// Save writes the changed columns and new events of a stored action.
func (l *SpannerLedger) Save(ctx context.Context, action *domain.Action) error {
	if !action.IsStored() {
		return l.Create(ctx, action)
	}
	plan, err := l.plan(action, l.actions.UpdateMut(action))
	if err != nil {
		return err
	}
	err = l.committer.ApplyWithVersionCheck(ctx, m_action.TableName, action.ID(), action.StoredVersion(), plan)
	if errors.Is(err, committer.ErrVersionConflict) {
		return fmt.Errorf("%w: %v", domain.ErrVersionConflict, err)
	}
	if err != nil {
		return err
	}
	action.MarkStored()
	return nil
}

// Get loads an action.
func (l *SpannerLedger) Get(ctx context.Context, actionID string) (*domain.Action, error) {
	return l.actions.GetByID(ctx, actionID)
}

// List returns actions matching filter, most recently updated first.
func (l *SpannerLedger) List(ctx context.Context, filter contracts.ActionFilter) ([]*domain.Action, error) {
	return l.actions.List(ctx, filter)
}
