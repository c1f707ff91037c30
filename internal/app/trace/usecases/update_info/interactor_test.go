package update_info_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benomayebu/Farmily-Docs/internal/app/trace/domain"
	"github.com/benomayebu/Farmily-Docs/internal/app/trace/tracetest"
	"github.com/benomayebu/Farmily-Docs/internal/app/trace/usecases/update_info"
	"github.com/benomayebu/Farmily-Docs/internal/backend/backendtest"
	"github.com/benomayebu/Farmily-Docs/internal/chain"
)

func TestUpdateInfo(t *testing.T) {
	f := tracetest.New(t)
	id := f.CreateProduct(t, "B-500")
	uc := update_info.NewInteractor(f.Coord, f.Wallet(), f.Rest)

	res, err := uc.Execute(context.Background(), &update_info.Request{
		Role:         domain.RoleFarmer,
		ProductID:    "db-5",
		BlockchainID: id,
		Info:         map[string]interface{}{"storageTemp": "4C"},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StateSynced, res.State())

	ev, ok := chain.FindEvent(res.Tx.Events, chain.EventProductInfoUpdated)
	require.True(t, ok)
	assert.JSONEq(t, `{"storageTemp":"4C"}`, ev.Text("details"))

	req, ok := f.Rest.Last(http.MethodPut, "farmer", "/updateProduct/db-5")
	require.True(t, ok)
	body := backendtest.BodyMap(req)
	assert.Equal(t, "4C", body["storageTemp"])
	assert.Equal(t, res.Action.TxHash(), body["blockchainTxHash"])
}

func TestUpdateInfo_Rejections(t *testing.T) {
	f := tracetest.New(t)
	uc := update_info.NewInteractor(f.Coord, f.Wallet(), f.Rest)

	_, err := uc.Execute(context.Background(), &update_info.Request{Role: domain.RoleConsumer, BlockchainID: "0x1", Info: map[string]interface{}{"a": 1}})
	assert.ErrorIs(t, err, domain.ErrRoleNotPermitted)

	_, err = uc.Execute(context.Background(), &update_info.Request{Role: domain.RoleRetailer, BlockchainID: "0x1"})
	assert.ErrorIs(t, err, update_info.ErrNoDetails)
}
