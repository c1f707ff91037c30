// Package tracetest wires a simulated chain, a recording REST backend and
// an in-memory ledger behind a coordinator for use case tests.
package tracetest

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/benomayebu/Farmily-Docs/internal/app/trace/contracts"
	"github.com/benomayebu/Farmily-Docs/internal/app/trace/coordinator"
	"github.com/benomayebu/Farmily-Docs/internal/app/trace/repo"
	"github.com/benomayebu/Farmily-Docs/internal/backend/backendtest"
	"github.com/benomayebu/Farmily-Docs/internal/chain"
	"github.com/benomayebu/Farmily-Docs/internal/chain/chaintest"
	"github.com/benomayebu/Farmily-Docs/internal/pkg/clock"
)

// Fixture is one isolated world.
type Fixture struct {
	Env    *chaintest.Env
	Rest   *backendtest.Recorder
	Ledger *repo.MemoryLedger
	Clock  *clock.MockClock
	Coord  *coordinator.Coordinator
}

// New builds a Fixture whose default wallet is Env.Wallet.
func New(t *testing.T, opts ...chain.ContractOption) *Fixture {
	t.Helper()
	clk := clock.NewMockClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	env := chaintest.NewEnv(opts...)
	ledger := repo.NewMemoryLedger(clk)
	rest := backendtest.NewRecorder()
	return &Fixture{
		Env:    env,
		Rest:   rest,
		Ledger: ledger,
		Clock:  clk,
		Coord:  coordinator.New(ledger, rest, env.Contract, coordinator.WithClock(clk)),
	}
}

// Wallet returns the default wallet's connector.
func (f *Fixture) Wallet() contracts.Wallet {
	return f.Env.Connector
}

// Party creates another wallet on the same chain, registered under
// identifier when it is not empty.
func (f *Fixture) Party(identifier string) (*chaintest.Wallet, contracts.Wallet) {
	w := chaintest.NewWallet()
	if identifier != "" {
		f.Env.Backend.Register(identifier, w.Address())
	}
	return w, chain.NewConnector(w, f.Env.Contract, chain.WithDebounce(0))
}

// CreateProduct mints a product owned by the default wallet directly on
// chain and returns its id.
func (f *Fixture) CreateProduct(t *testing.T, batch string) string {
	t.Helper()
	res, err := f.Env.Session().Transact(context.Background(), chain.Call{
		Method: chain.MethodCreateProduct,
		Args:   []interface{}{batch, "carrot", "FarmX", big.NewInt(1704067200), big.NewInt(100), big.NewInt(1)},
	})
	require.NoError(t, err)
	ev, ok := chain.FindEvent(res.Events, chain.EventProductCreated)
	require.True(t, ok)
	return ev.ProductID()
}

// StartTransfer opens a transfer of id from the default wallet to identifier.
func (f *Fixture) StartTransfer(t *testing.T, id, identifier string, quantity int64) {
	t.Helper()
	key, err := chain.ParseID(id)
	require.NoError(t, err)
	_, err = f.Env.Session().Transact(context.Background(), chain.Call{
		Method: chain.MethodInitiateTransfer,
		Args:   []interface{}{key, identifier, big.NewInt(quantity)},
	})
	require.NoError(t, err)
}
