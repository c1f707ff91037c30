package register_product_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benomayebu/Farmily-Docs/internal/app/trace/domain"
	"github.com/benomayebu/Farmily-Docs/internal/app/trace/tracetest"
	"github.com/benomayebu/Farmily-Docs/internal/app/trace/usecases/register_product"
	"github.com/benomayebu/Farmily-Docs/internal/backend/backendtest"
	"github.com/benomayebu/Farmily-Docs/internal/chain"
)

func carrot() *register_product.Request {
	return &register_product.Request{
		BatchNumber:    "B-001",
		ProductType:    "carrot",
		Origin:         "FarmX",
		ProductionDate: "2024-01-01",
		Quantity:       100,
		Price:          "0.5",
	}
}

func TestRegisterProduct_CarrotEndToEnd(t *testing.T) {
	f := tracetest.New(t)
	f.Rest.Reply(http.MethodPost, "farmer", "/registerProduct", http.StatusCreated,
		`{"message":"Product registered","product":{"_id":"65a1f0","batchNumber":"B-001","quantity":100,"price":"0.5"}}`)
	uc := register_product.NewInteractor(f.Coord, f.Wallet(), f.Rest)

	res, err := uc.Execute(context.Background(), carrot())
	require.NoError(t, err)

	assert.Equal(t, "65a1f0", res.ProductID)
	assert.Equal(t, domain.StateSynced, res.State)
	assert.Len(t, res.BlockchainID, chain.IDLength)

	// the product exists on chain with the submitted values
	p, err := f.Env.Contract.GetProduct(context.Background(), res.BlockchainID)
	require.NoError(t, err)
	assert.Equal(t, "B-001", p.BatchNumber)
	assert.Equal(t, "carrot", p.ProductType)
	assert.Equal(t, "FarmX", p.Origin)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).Unix(), p.ProductionDate.Unix())
	assert.Equal(t, int64(100), p.Quantity.Int64())
	assert.Equal(t, "500000000000000000", p.Price.String())
	assert.Equal(t, f.Env.Wallet.Address(), p.Owner)

	// the receipt carried ProductCreated for that id
	events, err := f.Env.Contract.ProductHistory(context.Background(), res.BlockchainID)
	require.NoError(t, err)
	require.NotEmpty(t, events)
	assert.Equal(t, chain.EventProductCreated, events[0].Name)
	assert.Equal(t, res.TxHash, events[0].TxHash.Hex())

	// the backend record keeps its _id and learns the chain id
	posted, ok := f.Rest.Last(http.MethodPost, "farmer", "/registerProduct")
	require.True(t, ok)
	assert.Equal(t, "2024-01-01", backendtest.BodyMap(posted)["productionDate"])

	link, ok := f.Rest.Last(http.MethodPut, "farmer", "/products/65a1f0/blockchain")
	require.True(t, ok)
	body := backendtest.BodyMap(link)
	assert.Equal(t, res.BlockchainID, body["blockchainId"])
	assert.Equal(t, res.TxHash, body["txHash"])
	assert.Len(t, f.Rest.Requests(), 2)
}

func TestRegisterProduct_Validation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(r *register_product.Request)
		wantErr error
	}{
		{"empty batch", func(r *register_product.Request) { r.BatchNumber = "  " }, domain.ErrEmptyBatchNumber},
		{"zero quantity", func(r *register_product.Request) { r.Quantity = 0 }, domain.ErrInvalidQuantity},
		{"bad date", func(r *register_product.Request) { r.ProductionDate = "01/01/2024" }, domain.ErrInvalidDate},
		{"negative price", func(r *register_product.Request) { r.Price = "-1" }, chain.ErrInvalidAmount},
		{"text price", func(r *register_product.Request) { r.Price = "cheap" }, chain.ErrInvalidAmount},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := tracetest.New(t)
			uc := register_product.NewInteractor(f.Coord, f.Wallet(), f.Rest)
			req := carrot()
			tt.mutate(req)

			_, err := uc.Execute(context.Background(), req)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Empty(t, f.Rest.Requests())
			assert.Empty(t, f.Env.Backend.Sent())
		})
	}
}

func TestRegisterProduct_BackendDownSendsNoTransaction(t *testing.T) {
	f := tracetest.New(t)
	f.Rest.Reply(http.MethodPost, "farmer", "/registerProduct", http.StatusUnauthorized, "Token is not valid")
	uc := register_product.NewInteractor(f.Coord, f.Wallet(), f.Rest)

	_, err := uc.Execute(context.Background(), carrot())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Token is not valid")
	assert.Empty(t, f.Env.Backend.Sent())
}

func TestRegisterProduct_SigningDeclined(t *testing.T) {
	f := tracetest.New(t)
	f.Rest.Reply(http.MethodPost, "farmer", "/registerProduct", http.StatusOK, `{"_id":"p-9"}`)
	uc := register_product.NewInteractor(f.Coord, f.Wallet(), f.Rest)
	f.Env.Session()
	f.Env.Wallet.RejectSigning(true)

	res, err := uc.Execute(context.Background(), carrot())
	assert.ErrorIs(t, err, chain.ErrUserRejected)
	assert.Equal(t, domain.StateRejected, res.State)
	assert.Equal(t, 0, f.Rest.Count(http.MethodPut, "farmer", "/products/p-9/blockchain"))
}

func TestRegisterProduct_LinkFailureDrifts(t *testing.T) {
	f := tracetest.New(t)
	f.Rest.Reply(http.MethodPost, "farmer", "/registerProduct", http.StatusOK, `{"_id":"p-7"}`)
	f.Rest.Reply(http.MethodPut, "farmer", "/products/p-7/blockchain", http.StatusInternalServerError, `{"message":"db down"}`)
	uc := register_product.NewInteractor(f.Coord, f.Wallet(), f.Rest)

	res, err := uc.Execute(context.Background(), carrot())
	assert.ErrorIs(t, err, domain.ErrDrifted)
	assert.Equal(t, domain.StateDrifted, res.State)
	assert.NotEmpty(t, res.BlockchainID)

	exists, err := f.Env.Contract.ProductExists(context.Background(), res.BlockchainID)
	require.NoError(t, err)
	assert.True(t, exists, "chain write stands even though the backend failed")
}

func TestParseDate(t *testing.T) {
	d, err := register_product.ParseDate("2024-03-05T10:00:00+02:00")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 5, 8, 0, 0, 0, time.UTC), d)

	_, err = register_product.ParseDate("")
	assert.ErrorIs(t, err, domain.ErrInvalidDate)
}
