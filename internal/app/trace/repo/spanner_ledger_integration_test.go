//go:build integration

package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benomayebu/Farmily-Docs/internal/app/trace/contracts"
	"github.com/benomayebu/Farmily-Docs/internal/app/trace/domain"
	"github.com/benomayebu/Farmily-Docs/internal/pkg/clock"
	"github.com/benomayebu/Farmily-Docs/internal/pkg/spannertest"
)

func TestSpannerLedger_CreateSaveGet(t *testing.T) {
	client := spannertest.Setup(t)
	ctx := context.Background()
	clk := clock.NewMockClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	l := NewSpannerLedger(client, clk)

	a := newAction(clk, "a1", domain.KindUpdateStatus)
	require.NoError(t, a.Submit())
	require.NoError(t, l.Create(ctx, a))

	require.NoError(t, a.Submitted("0xfeed", 10, 12))
	require.NoError(t, l.Save(ctx, a))

	got, err := l.Get(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, domain.StateAwaitingReceipt, got.State())
	assert.Equal(t, "0xfeed", got.TxHash())
	assert.Equal(t, int64(2), got.StoredVersion())

	assert.Equal(t, int64(1), spannertest.RowCount(t, client, "chain_actions"))
	assert.Equal(t, int64(2), spannertest.RowCount(t, client, "action_events"))

	_, err = l.Get(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrActionNotFound)
}

func TestSpannerLedger_VersionConflict(t *testing.T) {
	client := spannertest.Setup(t)
	ctx := context.Background()
	clk := clock.NewMockClock(time.Unix(0, 0))
	l := NewSpannerLedger(client, clk)

	require.NoError(t, l.Create(ctx, newAction(clk, "a1", domain.KindAcceptTransfer)))
	first, err := l.Get(ctx, "a1")
	require.NoError(t, err)
	second, err := l.Get(ctx, "a1")
	require.NoError(t, err)

	require.NoError(t, first.Submit())
	require.NoError(t, l.Save(ctx, first))

	require.NoError(t, second.Reject(errors.New("late")))
	assert.ErrorIs(t, l.Save(ctx, second), domain.ErrVersionConflict)
}

func TestSpannerLedger_ListAndOutbox(t *testing.T) {
	client := spannertest.Setup(t)
	ctx := context.Background()
	clk := clock.NewMockClock(time.Unix(1700000000, 0))
	l := NewSpannerLedger(client, clk)

	for i, kind := range []domain.ActionKind{domain.KindUpdateStatus, domain.KindTriggerPayment} {
		clk.Advance(time.Second)
		a := newAction(clk, string(rune('a'+i)), kind)
		require.NoError(t, a.Submit())
		if i == 1 {
			require.NoError(t, a.Reject(errors.New("declined")))
		}
		require.NoError(t, l.Create(ctx, a))
	}

	rejected, err := l.List(ctx, contracts.ActionFilter{States: []domain.ActionState{domain.StateRejected}})
	require.NoError(t, err)
	require.Len(t, rejected, 1)
	assert.Equal(t, "b", rejected[0].ID())

	outbox := l.Outbox()
	pending, err := outbox.Pending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 3)

	require.NoError(t, outbox.MarkCompleted(ctx, pending[0].EventID))
	require.NoError(t, outbox.MarkFailed(ctx, pending[1].EventID, errors.New("nats down"), 1))

	pending, err = outbox.Pending(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}
