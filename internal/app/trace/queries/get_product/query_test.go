package get_product_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benomayebu/Farmily-Docs/internal/app/trace/domain"
	"github.com/benomayebu/Farmily-Docs/internal/app/trace/queries/get_product"
	"github.com/benomayebu/Farmily-Docs/internal/app/trace/tracetest"
)

func TestGetProduct(t *testing.T) {
	f := tracetest.New(t)
	id := f.CreateProduct(t, "B-001")
	q := get_product.NewQuery(f.Env.Contract)
	ctx := context.Background()

	p, err := q.Execute(ctx, &get_product.Request{ProductID: id})
	require.NoError(t, err)
	assert.Equal(t, id, p.ProductID)
	assert.Equal(t, "B-001", p.BatchNumber)
	assert.Equal(t, "carrot", p.ProductType)
	assert.Equal(t, "100", p.Quantity)
	assert.Equal(t, f.Env.Wallet.Address().Hex(), p.Owner)
	assert.False(t, p.HasPendingTransfer)

	f.Party("retailer-7")
	f.StartTransfer(t, id, "retailer-7", 10)
	p, err = q.Execute(ctx, &get_product.Request{ProductID: id})
	require.NoError(t, err)
	assert.True(t, p.HasPendingTransfer)

	_, err = q.Execute(ctx, &get_product.Request{ProductID: "0x99"})
	assert.ErrorIs(t, err, domain.ErrProductNotFound)
}
