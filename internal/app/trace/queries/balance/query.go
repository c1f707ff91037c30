package balance

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/benomayebu/Farmily-Docs/internal/app/trace/contracts"
	"github.com/benomayebu/Farmily-Docs/internal/chain"
)

// Request names the account. Empty means the connected account.
type Request struct {
	Account string
}

// Result is a balance in both units.
type Result struct {
	Account string `json:"account"`
	Wei     string `json:"wei"`
	Ether   string `json:"ether"`
}

// Query reads account balances.
type Query struct {
	contract *chain.Contract
	wallet   contracts.Wallet
}

// NewQuery creates a new balance query.
func NewQuery(contract *chain.Contract, wallet contracts.Wallet) *Query {
	return &Query{contract: contract, wallet: wallet}
}

// Execute reads the balance.
func (q *Query) Execute(ctx context.Context, req *Request) (*Result, error) {
	var account common.Address
	if req.Account != "" {
		addr, err := chain.ParseAddress(req.Account)
		if err != nil {
			return nil, err
		}
		account = addr
	} else {
		session, err := q.wallet.Connect(ctx)
		if err != nil {
			return nil, err
		}
		account = session.Account()
	}
	wei, err := q.contract.Balance(ctx, account)
	if err != nil {
		return nil, err
	}
	return &Result{Account: account.Hex(), Wei: wei.String(), Ether: chain.WeiToEther(wei)}, nil
}
