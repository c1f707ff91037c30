package product_journey_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benomayebu/Farmily-Docs/internal/app/trace/domain"
	"github.com/benomayebu/Farmily-Docs/internal/app/trace/queries/product_journey"
	"github.com/benomayebu/Farmily-Docs/internal/app/trace/tracetest"
	"github.com/benomayebu/Farmily-Docs/internal/app/trace/usecases/accept_transfer"
	"github.com/benomayebu/Farmily-Docs/internal/app/trace/usecases/update_status"
	"github.com/benomayebu/Farmily-Docs/internal/chain"
)

func TestProductJourney(t *testing.T) {
	f := tracetest.New(t)
	ctx := context.Background()
	id := f.CreateProduct(t, "B-J")
	_, err := update_status.NewInteractor(f.Coord, f.Wallet(), f.Rest).Execute(ctx,
		&update_status.Request{Role: domain.RoleFarmer, ProductID: "db", BlockchainID: id, Status: "Harvested"})
	require.NoError(t, err)
	_, wallet := f.Party("dist-1")
	f.StartTransfer(t, id, "dist-1", 100)
	_, err = accept_transfer.NewInteractor(f.Coord, wallet).Execute(ctx,
		&accept_transfer.Request{Role: domain.RoleDistributor, ProductID: id})
	require.NoError(t, err)

	steps, err := product_journey.NewQuery(f.Env.Contract).Execute(ctx, &product_journey.Request{ProductID: id})
	require.NoError(t, err)

	var names []string
	for _, s := range steps {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{
		chain.EventProductCreated,
		chain.EventStatusUpdated,
		chain.EventTransferInitiated,
		chain.EventTransferAccepted,
		chain.EventOwnershipTransferred,
	}, names)
	assert.Equal(t, "Registered", steps[1].Fields["oldStatus"])
	assert.Equal(t, "Harvested", steps[1].Fields["newStatus"])
	assert.Equal(t, id, steps[0].Fields["productId"])
	assert.Equal(t, "100", steps[2].Fields["quantity"])

	_, err = product_journey.NewQuery(f.Env.Contract).Execute(ctx, &product_journey.Request{ProductID: "zz"})
	assert.ErrorIs(t, err, chain.ErrInvalidIdentifier)
}
