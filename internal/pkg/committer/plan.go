// Package committer applies batches of Spanner mutations atomically.
//
// Repositories never write directly. They return mutations, the caller
// collects them into a CommitPlan together with the matching outbox rows,
// and the plan lands in one transaction:
//
//	plan := committer.NewPlan()
//	plan.Add(actions.UpdateMut(action))
//	for _, ev := range events {
//	    plan.Add(outbox.InsertMut(ev))
//	}
//	err := c.ApplyWithVersionCheck(ctx, m_action.TableName, action.ID(), action.StoredVersion(), plan)
//
// A ledger transition is therefore never visible without its outbox event.
package committer

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/spanner"
)

// ErrVersionConflict is returned when the stored version differs from the
// version the caller loaded.
var ErrVersionConflict = errors.New("optimistic lock conflict")

// versionColumn is the optimistic lock column every versioned table carries.
const versionColumn = "version"

// CommitPlan is an ordered set of mutations applied together.
type CommitPlan struct {
	muts []*spanner.Mutation
}

// NewPlan returns an empty plan.
func NewPlan() *CommitPlan {
	return &CommitPlan{}
}

// Add appends mutations, skipping nil ones so builders may return nil for
// "nothing changed".
func (p *CommitPlan) Add(muts ...*spanner.Mutation) {
	for _, m := range muts {
		if m != nil {
			p.muts = append(p.muts, m)
		}
	}
}

// Mutations returns the collected mutations.
func (p *CommitPlan) Mutations() []*spanner.Mutation { return p.muts }

// Len returns the number of mutations.
func (p *CommitPlan) Len() int { return len(p.muts) }

// Committer applies plans with one client.
type Committer struct {
	client *spanner.Client
}

// NewCommitter returns a Committer on client.
func NewCommitter(client *spanner.Client) *Committer {
	return &Committer{client: client}
}

// Apply writes the plan in a single blind-write transaction.
func (c *Committer) Apply(ctx context.Context, plan *CommitPlan) error {
	if plan.Len() == 0 {
		return nil
	}
	if _, err := c.client.Apply(ctx, plan.muts); err != nil {
		return fmt.Errorf("apply commit plan: %w", err)
	}
	return nil
}

// ApplyWithVersionCheck writes the plan only if the version column of the
// row keyed by id in table still equals expected. Otherwise it returns an
// error wrapping ErrVersionConflict and writes nothing.
func (c *Committer) ApplyWithVersionCheck(ctx context.Context, table, id string, expected int64, plan *CommitPlan) error {
	if plan.Len() == 0 {
		return nil
	}

	_, err := c.client.ReadWriteTransaction(ctx, func(ctx context.Context, txn *spanner.ReadWriteTransaction) error {
		row, err := txn.ReadRow(ctx, table, spanner.Key{id}, []string{versionColumn})
		if err != nil {
			return fmt.Errorf("read %s %s version: %w", table, id, err)
		}
		var current int64
		if err := row.Column(0, &current); err != nil {
			return fmt.Errorf("decode %s %s version: %w", table, id, err)
		}
		if current != expected {
			return fmt.Errorf("%w: %s %s at version %d, caller had %d",
				ErrVersionConflict, table, id, current, expected)
		}
		return txn.BufferWrite(plan.muts)
	})
	switch {
	case err == nil, errors.Is(err, ErrVersionConflict):
		return err
	default:
		return fmt.Errorf("apply versioned commit plan: %w", err)
	}
}
