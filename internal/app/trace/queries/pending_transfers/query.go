package pending_transfers

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/benomayebu/Farmily-Docs/internal/app/trace/contracts"
	"github.com/benomayebu/Farmily-Docs/internal/chain"
)

// Request names the recipient. Empty means the connected account.
type Request struct {
	Account string
}

// Query lists transfers waiting for an account to accept them.
type Query struct {
	contract *chain.Contract
	wallet   contracts.Wallet
}

// NewQuery creates a new pending transfers query.
func NewQuery(contract *chain.Contract, wallet contracts.Wallet) *Query {
	return &Query{contract: contract, wallet: wallet}
}

// Execute scans TransferInitiated logs addressed to the account and keeps
// the ones the contract still holds open for it, newest initiation per
// product.
func (q *Query) Execute(ctx context.Context, req *Request) ([]contracts.TransferDTO, error) {
	account, err := q.account(ctx, req.Account)
	if err != nil {
		return nil, err
	}
	events, err := q.contract.TransfersInitiatedTo(ctx, account)
	if err != nil {
		return nil, err
	}

	latest := make(map[string]chain.Event)
	var order []string
	for _, ev := range events {
		id := ev.ProductID()
		if _, seen := latest[id]; !seen {
			order = append(order, id)
		}
		latest[id] = ev
	}

	out := make([]contracts.TransferDTO, 0, len(order))
	for _, id := range order {
		open, err := q.contract.PendingTransfer(ctx, id)
		if err != nil {
			return nil, err
		}
		if !open.Exists() || open.To != account {
			continue
		}
		ev := latest[id]
		out = append(out, contracts.TransferDTO{
			ProductID:   id,
			From:        open.From.Hex(),
			To:          open.To.Hex(),
			Quantity:    open.Quantity.String(),
			TxHash:      ev.TxHash.Hex(),
			BlockNumber: ev.BlockNumber,
		})
	}
	return out, nil
}

func (q *Query) account(ctx context.Context, given string) (common.Address, error) {
	if given != "" {
		return chain.ParseAddress(given)
	}
	session, err := q.wallet.Connect(ctx)
	if err != nil {
		return common.Address{}, err
	}
	return session.Account(), nil
}
