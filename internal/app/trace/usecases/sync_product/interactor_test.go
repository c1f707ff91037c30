package sync_product_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benomayebu/Farmily-Docs/internal/app/trace/contracts"
	"github.com/benomayebu/Farmily-Docs/internal/app/trace/domain"
	"github.com/benomayebu/Farmily-Docs/internal/app/trace/tracetest"
	"github.com/benomayebu/Farmily-Docs/internal/app/trace/usecases/sync_product"
	"github.com/benomayebu/Farmily-Docs/internal/backend/backendtest"
)

func TestSyncProduct(t *testing.T) {
	f := tracetest.New(t)
	id := f.CreateProduct(t, "B-700")
	f.Rest.Reply(http.MethodGet, "retailer", "/products/db-7", http.StatusOK, `{"_id":"db-7","blockchainId":"`+id+`"}`)
	uc := sync_product.NewInteractor(f.Env.Contract, f.Rest)

	res, err := uc.Execute(context.Background(), &sync_product.Request{
		Role: domain.RoleRetailer, ProductID: "db-7", EthereumAddress: "0xabc",
	})
	require.NoError(t, err)
	assert.Equal(t, id, res.BlockchainID)
	assert.Equal(t, domain.StatusRegistered, res.Status)
	assert.Equal(t, f.Env.Wallet.Address().Hex(), res.Owner)

	req, ok := f.Rest.Last(http.MethodPost, "retailer", "/syncProduct/db-7")
	require.True(t, ok)
	assert.Equal(t, "0xabc", backendtest.BodyMap(req)["ethereumAddress"])

	actions, err := f.Ledger.List(context.Background(), contracts.ActionFilter{})
	require.NoError(t, err)
	assert.Empty(t, actions, "a sync is not an action")
}

func TestSyncProduct_UnknownOnChain(t *testing.T) {
	f := tracetest.New(t)
	uc := sync_product.NewInteractor(f.Env.Contract, f.Rest)

	_, err := uc.Execute(context.Background(), &sync_product.Request{Role: domain.RoleFarmer, ProductID: "db-8", BlockchainID: "0x99"})
	assert.ErrorIs(t, err, domain.ErrProductNotFound)
	assert.Empty(t, f.Rest.Requests())
}
