package consumer_history_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benomayebu/Farmily-Docs/internal/app/trace/domain"
	"github.com/benomayebu/Farmily-Docs/internal/app/trace/queries/consumer_history"
	"github.com/benomayebu/Farmily-Docs/internal/app/trace/tracetest"
	"github.com/benomayebu/Farmily-Docs/internal/app/trace/usecases/accept_transfer"
)

func TestConsumerHistory(t *testing.T) {
	f := tracetest.New(t)
	ctx := context.Background()
	_, wallet := f.Party("cons-1")

	for _, batch := range []string{"B-C1", "B-C2"} {
		id := f.CreateProduct(t, batch)
		f.StartTransfer(t, id, "cons-1", 1)
		_, err := accept_transfer.NewInteractor(f.Coord, wallet).Execute(ctx,
			&accept_transfer.Request{Role: domain.RoleConsumer, ProductID: id})
		require.NoError(t, err)
	}

	q := consumer_history.NewQuery(f.Env.Contract, wallet)
	entries, err := q.Execute(ctx, &consumer_history.Request{})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "B-C1", entries[0].Product.BatchNumber)
	assert.Equal(t, "B-C2", entries[1].Product.BatchNumber)
	assert.True(t, entries[0].StillOwned)
	assert.Equal(t, f.Env.Wallet.Address().Hex(), entries[0].From)

	entries, err = q.Execute(ctx, &consumer_history.Request{Account: f.Env.Wallet.Address().Hex()})
	require.NoError(t, err)
	assert.Empty(t, entries)
}
