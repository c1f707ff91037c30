package chaintest

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"sync"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/benomayebu/Farmily-Docs/internal/chain"
)

// UserRejected is the EIP-1193 error a wallet returns when the user
// dismisses a prompt.
type UserRejected struct{}

func (UserRejected) Error() string  { return "User denied transaction signature" }
func (UserRejected) ErrorCode() int { return 4001 }

// Wallet is a chain.Provider backed by a real key, with knobs to make it
// refuse or return no accounts.
type Wallet struct {
	key     *ecdsa.PrivateKey
	account common.Address

	mu           sync.Mutex
	rejectPrompt bool
	rejectSign   bool
	noAccounts   bool
	accountsErr  error

	requests atomic.Int32
	signs    atomic.Int32
}

// NewWallet generates a fresh key.
func NewWallet() *Wallet {
	key, err := crypto.GenerateKey()
	if err != nil {
		panic(err)
	}
	return &Wallet{key: key, account: crypto.PubkeyToAddress(key.PublicKey)}
}

// Address is the wallet account.
func (w *Wallet) Address() common.Address { return w.account }

// RejectPrompt makes RequestAccounts fail as if the user declined.
func (w *Wallet) RejectPrompt(v bool) { w.mu.Lock(); w.rejectPrompt = v; w.mu.Unlock() }

// RejectSigning makes the signer fail as if the user declined.
func (w *Wallet) RejectSigning(v bool) { w.mu.Lock(); w.rejectSign = v; w.mu.Unlock() }

// NoAccounts makes the wallet expose no accounts.
func (w *Wallet) NoAccounts(v bool) { w.mu.Lock(); w.noAccounts = v; w.mu.Unlock() }

// FailAccounts makes Accounts return err.
func (w *Wallet) FailAccounts(err error) { w.mu.Lock(); w.accountsErr = err; w.mu.Unlock() }

// Requests counts RequestAccounts calls.
func (w *Wallet) Requests() int { return int(w.requests.Load()) }

// Signs counts signing attempts.
func (w *Wallet) Signs() int { return int(w.signs.Load()) }

func (w *Wallet) RequestAccounts(context.Context) ([]common.Address, error) {
	w.requests.Add(1)
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.rejectPrompt {
		return nil, UserRejected{}
	}
	if w.noAccounts {
		return []common.Address{}, nil
	}
	return []common.Address{w.account}, nil
}

func (w *Wallet) Accounts(context.Context) ([]common.Address, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.accountsErr != nil {
		return nil, w.accountsErr
	}
	if w.noAccounts {
		return nil, nil
	}
	return []common.Address{w.account}, nil
}

func (w *Wallet) Signer(account common.Address, chainID *big.Int) (bind.SignerFn, error) {
	inner, err := chain.NewKeyProvider(w.key).Signer(account, chainID)
	if err != nil {
		return nil, err
	}
	return func(from common.Address, tx *types.Transaction) (*types.Transaction, error) {
		w.signs.Add(1)
		w.mu.Lock()
		reject := w.rejectSign
		w.mu.Unlock()
		if reject {
			return nil, UserRejected{}
		}
		return inner(from, tx)
	}, nil
}
