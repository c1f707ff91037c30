package chaintest

import (
	"context"
	"time"

	"github.com/benomayebu/Farmily-Docs/internal/chain"
)

// Env wires a simulated node, a wallet and the chain client together.
type Env struct {
	Backend   *Backend
	Wallet    *Wallet
	Contract  *chain.Contract
	Connector *chain.Connector
}

// NewEnv returns an Env with no debounce and millisecond receipt polling.
func NewEnv(opts ...chain.ContractOption) *Env {
	backend := NewBackend()
	wallet := NewWallet()
	opts = append([]chain.ContractOption{chain.WithReceiptPolling(time.Millisecond, 2*time.Second)}, opts...)
	contract, err := chain.NewContract(backend, ContractAddress, opts...)
	if err != nil {
		panic(err)
	}
	return &Env{
		Backend:   backend,
		Wallet:    wallet,
		Contract:  contract,
		Connector: chain.NewConnector(wallet, contract, chain.WithDebounce(0)),
	}
}

// Session connects the env wallet, panicking on failure.
func (e *Env) Session() *chain.Session {
	s, err := e.Connector.Connect(context.Background())
	if err != nil {
		panic(err)
	}
	return s
}

// SessionFor connects another wallet against the same node.
func (e *Env) SessionFor(w *Wallet) *chain.Session {
	s, err := chain.NewConnector(w, e.Contract, chain.WithDebounce(0)).Connect(context.Background())
	if err != nil {
		panic(err)
	}
	return s
}
