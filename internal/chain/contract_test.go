package chain_test

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benomayebu/Farmily-Docs/internal/chain"
	"github.com/benomayebu/Farmily-Docs/internal/chain/chaintest"
)

func createCarrots(t *testing.T, s *chain.Session) *chain.TxResult {
	t.Helper()
	price, err := chain.EtherToWei("0.5")
	require.NoError(t, err)
	res, err := s.Transact(context.Background(), chain.Call{
		Method: chain.MethodCreateProduct,
		Args: []interface{}{
			"B-001", "carrot", "FarmX",
			big.NewInt(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).Unix()),
			big.NewInt(100), price,
		},
	})
	require.NoError(t, err)
	return res
}

func TestTransact_CreateProductEmitsEvent(t *testing.T) {
	env := chaintest.NewEnv()
	s := env.Session()

	res := createCarrots(t, s)

	ev, ok := chain.FindEvent(res.Events, chain.EventProductCreated)
	require.True(t, ok)
	assert.Equal(t, "B-001", ev.Text("batchNumber"))
	assert.Equal(t, s.Account(), ev.Address("owner"))
	assert.Len(t, ev.ProductID(), chain.IDLength)
	assert.Equal(t, env.Backend.ProductIDs()[0], ev.ProductID())
	assert.Equal(t, res.Hash, ev.TxHash)
}

func TestSubmit_AppliesGasPolicy(t *testing.T) {
	tests := []struct {
		name   string
		opts   []chain.ContractOption
		role   string
		method string
		want   uint64
	}{
		{"default round", nil, "", chain.MethodCreateProduct, 120004},
		{"uniform floor", []chain.ContractOption{chain.WithGasPolicies(chain.DefaultGasPolicies().Uniform(chain.MustGasPolicy("1.2", chain.Floor)))}, "", chain.MethodCreateProduct, 120003},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := chaintest.NewEnv(tt.opts...)
			s := env.Session()
			createCarrots(t, s)

			sent := env.Backend.Sent()
			require.Len(t, sent, 1)
			assert.Equal(t, tt.want, sent[0].Gas())
			assert.GreaterOrEqual(t, sent[0].Gas(), env.Backend.GasEstimate)
		})
	}
}

func TestSubmit_RoleSpecificGas(t *testing.T) {
	env := chaintest.NewEnv()
	s := env.Session()
	id := createCarrots(t, s).Events[0].ProductID()

	sub, err := s.Submit(context.Background(), chain.Call{
		Method: chain.MethodUpdateProductInfo,
		Args:   []interface{}{mustID(t, id), `{"storage":"cold"}`},
		Role:   "retailer",
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(100003), sub.GasEstimate)
	assert.Equal(t, uint64(150004), sub.GasLimit) // floor(150004.5)
}

func mustID(t *testing.T, s string) [32]byte {
	t.Helper()
	id, err := chain.ParseID(s)
	require.NoError(t, err)
	return id
}

func TestSubmit_RejectedSignatureSendsNothing(t *testing.T) {
	env := chaintest.NewEnv()
	s := env.Session()
	env.Wallet.RejectSigning(true)

	_, err := s.Submit(context.Background(), chain.Call{
		Method: chain.MethodRegisterUser,
		Args:   []interface{}{"farmer-01"},
	})
	require.ErrorIs(t, err, chain.ErrUserRejected)
	assert.Empty(t, env.Backend.Sent())

	var ce *chain.Error
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "Transaction was rejected by the user.", ce.UserMessage())
}

func TestSubmit_EstimateRevert(t *testing.T) {
	env := chaintest.NewEnv()
	s := env.Session()

	_, err := s.Submit(context.Background(), chain.Call{
		Method: chain.MethodAcceptTransfer,
		Args:   []interface{}{mustID(t, "0x1")},
	})
	require.ErrorIs(t, err, chain.ErrExecutionReverted)
	assert.Equal(t, 0, env.Wallet.Signs())
}

func TestTransact_MinedButReverted(t *testing.T) {
	env := chaintest.NewEnv()
	s := env.Session()
	env.Backend.ForceRevert = true

	res, err := s.Transact(context.Background(), chain.Call{
		Method: chain.MethodRegisterUser,
		Args:   []interface{}{"farmer-01"},
	})
	require.ErrorIs(t, err, chain.ErrReverted)
	require.NotNil(t, res)
	assert.NotEqual(t, common.Hash{}, res.Hash)
	assert.Empty(t, res.Events)
}

func TestWaitReceipt_PollsUntilMined(t *testing.T) {
	env := chaintest.NewEnv()
	env.Backend.ReceiptDelay = 3
	s := env.Session()

	createCarrots(t, s)
	assert.GreaterOrEqual(t, env.Backend.Calls("eth_getTransactionReceipt"), 4)
}

func TestWaitReceipt_Timeout(t *testing.T) {
	env := chaintest.NewEnv(chain.WithReceiptPolling(time.Millisecond, 20*time.Millisecond))
	env.Backend.ReceiptDelay = 1 << 30
	s := env.Session()

	sub, err := s.Submit(context.Background(), chain.Call{Method: chain.MethodRegisterUser, Args: []interface{}{"x"}})
	require.NoError(t, err)

	_, err = env.Contract.WaitReceipt(context.Background(), sub.Hash)
	assert.ErrorIs(t, err, chain.ErrReceiptTimeout)
}

func TestReads(t *testing.T) {
	env := chaintest.NewEnv()
	ctx := context.Background()
	s := env.Session()
	id := createCarrots(t, s).Events[0].ProductID()

	p, err := env.Contract.GetProduct(ctx, id)
	require.NoError(t, err)
	assert.True(t, p.Exists())
	assert.Equal(t, "carrot", p.ProductType)
	assert.Equal(t, "FarmX", p.Origin)
	assert.Equal(t, int64(100), p.Quantity.Int64())
	assert.Equal(t, "0.5", chain.WeiToEther(p.Price))
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), p.ProductionDate)
	assert.Equal(t, s.Account(), p.Owner)

	state, err := env.Contract.GetProductState(ctx, id)
	require.NoError(t, err)
	assert.False(t, state.HasPendingTransfer)

	exists, err := env.Contract.ProductExists(ctx, id)
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = env.Contract.ProductExists(ctx, "0xdead")
	require.NoError(t, err)
	assert.False(t, exists)

	n, err := env.Contract.ProductCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), n)

	first, err := env.Contract.ProductIDByIndex(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, id, first)

	missing, err := env.Contract.GetProduct(ctx, "0x2")
	require.NoError(t, err)
	assert.False(t, missing.Exists())

	_, err = env.Contract.GetProduct(ctx, "not-hex")
	assert.ErrorIs(t, err, chain.ErrInvalidIdentifier)
}

func TestTransferLifecycleAndLogs(t *testing.T) {
	env := chaintest.NewEnv()
	ctx := context.Background()
	farmer := env.Session()
	distWallet := chaintest.NewWallet()
	dist := env.SessionFor(distWallet)
	env.Backend.Register("dist-01", distWallet.Address())

	id := createCarrots(t, farmer).Events[0].ProductID()
	key := mustID(t, id)

	_, err := farmer.Transact(ctx, chain.Call{
		Method: chain.MethodInitiateTransfer,
		Args:   []interface{}{key, "dist-01", big.NewInt(40)},
	})
	require.NoError(t, err)

	pt, err := env.Contract.PendingTransfer(ctx, id)
	require.NoError(t, err)
	assert.True(t, pt.Exists())
	assert.Equal(t, distWallet.Address(), pt.To)
	assert.Equal(t, int64(40), pt.Quantity.Int64())

	initiated, err := env.Contract.TransfersInitiatedTo(ctx, distWallet.Address())
	require.NoError(t, err)
	require.Len(t, initiated, 1)
	assert.Equal(t, id, initiated[0].ProductID())
	assert.Equal(t, farmer.Account(), initiated[0].Address("from"))

	res, err := dist.Transact(ctx, chain.Call{Method: chain.MethodAcceptTransfer, Args: []interface{}{key}})
	require.NoError(t, err)
	_, ok := chain.FindEvent(res.Events, chain.EventOwnershipTransferred)
	assert.True(t, ok)

	pt, err = env.Contract.PendingTransfer(ctx, id)
	require.NoError(t, err)
	assert.False(t, pt.Exists())

	owned, err := env.Contract.OwnershipsTransferredTo(ctx, distWallet.Address())
	require.NoError(t, err)
	assert.Len(t, owned, 1)

	history, err := env.Contract.ProductHistory(ctx, id)
	require.NoError(t, err)
	names := make([]string, len(history))
	for i, ev := range history {
		names[i] = ev.Name
	}
	assert.Equal(t, []string{
		chain.EventProductCreated,
		chain.EventTransferInitiated,
		chain.EventTransferAccepted,
		chain.EventOwnershipTransferred,
	}, names)
}

func TestIdentifierMapping(t *testing.T) {
	env := chaintest.NewEnv()
	ctx := context.Background()
	s := env.Session()

	_, err := s.Transact(ctx, chain.Call{Method: chain.MethodRegisterUser, Args: []interface{}{"farmer-01"}})
	require.NoError(t, err)

	addr, err := env.Contract.IdentifierToAddress(ctx, "farmer-01")
	require.NoError(t, err)
	assert.Equal(t, s.Account(), addr)

	ident, err := env.Contract.AddressToIdentifier(ctx, s.Account())
	require.NoError(t, err)
	assert.Equal(t, "farmer-01", ident)

	addr, err = env.Contract.IdentifierToAddress(ctx, "nobody")
	require.NoError(t, err)
	assert.Equal(t, common.Address{}, addr)
}

func TestBalance(t *testing.T) {
	env := chaintest.NewEnv()
	s := env.Session()
	wei, _ := chain.EtherToWei("1.25")
	env.Backend.Fund(s.Account(), wei)

	bal, err := s.Balance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1.25", chain.WeiToEther(bal))
}
