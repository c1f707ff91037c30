package repo

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/benomayebu/Farmily-Docs/internal/app/trace/contracts"
	"github.com/benomayebu/Farmily-Docs/internal/app/trace/domain"
	"github.com/benomayebu/Farmily-Docs/internal/models/m_action_event"
	"github.com/benomayebu/Farmily-Docs/internal/pkg/clock"
)

// MemoryLedger keeps the ledger and its outbox in process. It backs the CLI
// and the server when no Spanner database is configured, and the tests.
type MemoryLedger struct {
	clock clock.Clock

	mu         sync.Mutex
	actions    map[string]domain.ActionSnapshot
	events     []*contracts.OutboxEvent
	failWrites error
}

// NewMemoryLedger creates an empty ledger.
func NewMemoryLedger(clk clock.Clock) *MemoryLedger {
	return &MemoryLedger{
		clock:   clk,
		actions: make(map[string]domain.ActionSnapshot),
	}
}

// SetFailWrites makes every Create and Save fail with err until reset
// with nil.
func (l *MemoryLedger) SetFailWrites(err error) {
	l.mu.Lock()
	l.failWrites = err
	l.mu.Unlock()
}

func (l *MemoryLedger) appendEvents(action *domain.Action) error {
	now := l.clock.Now()
	for _, event := range action.DomainEvents() {
		ev, err := EnrichEvent(event)
		if err != nil {
			return err
		}
		ev.CreatedAt = now
		l.events = append(l.events, ev)
	}
	return nil
}

// Create inserts a new action and its events.
func (l *MemoryLedger) Create(_ context.Context, action *domain.Action) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failWrites != nil {
		return l.failWrites
	}
	if _, ok := l.actions[action.ID()]; ok {
		return fmt.Errorf("action %s already exists", action.ID())
	}
	if err := l.appendEvents(action); err != nil {
		return err
	}
	l.actions[action.ID()] = action.Snapshot()
	action.MarkStored()
	return nil
}

// Save writes a stored action after checking its version.
func (l *MemoryLedger) Save(ctx context.Context, action *domain.Action) error {
	if !action.IsStored() {
		return l.Create(ctx, action)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failWrites != nil {
		return l.failWrites
	}
	current, ok := l.actions[action.ID()]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrActionNotFound, action.ID())
	}
	if current.Version != action.StoredVersion() {
		return fmt.Errorf("%w: action %s expected version %d, got %d",
			domain.ErrVersionConflict, action.ID(), action.StoredVersion(), current.Version)
	}
	if err := l.appendEvents(action); err != nil {
		return err
	}
	l.actions[action.ID()] = action.Snapshot()
	action.MarkStored()
	return nil
}

// Get loads an action.
func (l *MemoryLedger) Get(_ context.Context, actionID string) (*domain.Action, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	snap, ok := l.actions[actionID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrActionNotFound, actionID)
	}
	return domain.ReconstructAction(snap, l.clock), nil
}

// List returns actions matching filter, most recently updated first.
func (l *MemoryLedger) List(_ context.Context, filter contracts.ActionFilter) ([]*domain.Action, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var snaps []domain.ActionSnapshot
	for _, s := range l.actions {
		if matches(s, filter) {
			snaps = append(snaps, s)
		}
	}
	sort.Slice(snaps, func(i, j int) bool {
		if !snaps[i].UpdatedAt.Equal(snaps[j].UpdatedAt) {
			return snaps[i].UpdatedAt.After(snaps[j].UpdatedAt)
		}
		return snaps[i].ID < snaps[j].ID
	})
	if limit := filter.EffectiveLimit(); len(snaps) > limit {
		snaps = snaps[:limit]
	}
	out := make([]*domain.Action, len(snaps))
	for i, s := range snaps {
		out[i] = domain.ReconstructAction(s, l.clock)
	}
	return out, nil
}

func matches(s domain.ActionSnapshot, f contracts.ActionFilter) bool {
	if len(f.States) > 0 {
		found := false
		for _, st := range f.States {
			found = found || st == s.State
		}
		if !found {
			return false
		}
	}
	switch {
	case f.Kind != "" && f.Kind != s.Kind:
		return false
	case f.Role != "" && f.Role != s.Role:
		return false
	case f.ProductRef != "" && f.ProductRef != s.ProductRef:
		return false
	case f.TxHash != "" && f.TxHash != s.TxHash:
		return false
	}
	return true
}

// Pending returns up to limit pending events, oldest first.
func (l *MemoryLedger) Pending(_ context.Context, limit int) ([]*contracts.OutboxEvent, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []*contracts.OutboxEvent
	for _, ev := range l.events {
		if ev.Status != m_action_event.StatusPending {
			continue
		}
		cp := *ev
		out = append(out, &cp)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// MarkCompleted records a delivered event.
func (l *MemoryLedger) MarkCompleted(_ context.Context, eventID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	ev, err := l.event(eventID)
	if err != nil {
		return err
	}
	ev.Status = m_action_event.StatusCompleted
	return nil
}

// MarkFailed counts a failed delivery.
func (l *MemoryLedger) MarkFailed(_ context.Context, eventID string, _ error, maxRetries int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	ev, err := l.event(eventID)
	if err != nil {
		return err
	}
	ev.RetryCount++
	if ev.RetryCount >= maxRetries {
		ev.Status = m_action_event.StatusFailed
	}
	return nil
}

func (l *MemoryLedger) event(eventID string) (*contracts.OutboxEvent, error) {
	for _, ev := range l.events {
		if ev.EventID == eventID {
			return ev, nil
		}
	}
	return nil, fmt.Errorf("outbox event %s not found", eventID)
}

// Events returns a copy of every stored event, in insertion order.
func (l *MemoryLedger) Events() []contracts.OutboxEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]contracts.OutboxEvent, len(l.events))
	for i, ev := range l.events {
		out[i] = *ev
	}
	return out
}
