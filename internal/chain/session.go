package chain

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
)

// Session is an established wallet connection: one account, its signer and
// the contract it talks to. It is immutable once created.
type Session struct {
	account  common.Address
	chainID  *big.Int
	signer   bind.SignerFn
	contract *Contract
}

// NewSession assembles a session. Connector.Connect is the usual way to get one.
func NewSession(account common.Address, chainID *big.Int, signer bind.SignerFn, contract *Contract) *Session {
	return &Session{account: account, chainID: chainID, signer: signer, contract: contract}
}

// Account is the connected address.
func (s *Session) Account() common.Address {
	return s.account
}

// ChainID is the chain the signer signs for.
func (s *Session) ChainID() *big.Int {
	return new(big.Int).Set(s.chainID)
}

// Contract returns the contract proxy.
func (s *Session) Contract() *Contract {
	return s.contract
}

// Submit signs and sends call from the session account.
func (s *Session) Submit(ctx context.Context, call Call) (*Submission, error) {
	return s.contract.Submit(ctx, s.account, s.signer, call)
}

// Transact signs, sends and waits for the receipt of call.
func (s *Session) Transact(ctx context.Context, call Call) (*TxResult, error) {
	return s.contract.Transact(ctx, s.account, s.signer, call)
}

// Balance returns the session account balance in wei.
func (s *Session) Balance(ctx context.Context) (*big.Int, error) {
	return s.contract.Balance(ctx, s.account)
}
