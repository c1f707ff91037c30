package consumer_history

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

// Entry is one product the account received.
type Entry struct {
	ProductID   string                `json:"productId"`
	From        string                `json:"from"`
	Quantity    string                `json:"quantity"`
	TxHash      string                `json:"txHash"`
	BlockNumber uint64                `json:"blockNumber"`
	StillOwned  bool                  `json:"stillOwned"`
	Product     *contracts.ProductDTO `json:"product,omitempty"`
}

// Query lists the products whose ownership moved to an account.
type Query struct {
	contract *chain.Contract
	wallet   contracts.Wallet
}

// NewQuery creates a new consumer history query.
func NewQuery(contract *chain.Contract, wallet contracts.Wallet) *Query {
	return &Query{contract: contract, wallet: wallet}
}

// Execute reads OwnershipTransferred logs for the account, oldest first,
// with the current product state.
func (q *Query) Execute(ctx context.Context, req *Request) ([]Entry, error) {
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

	events, err := q.contract.OwnershipsTransferredTo(ctx, account)
	if err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(events))
	for _, ev := range events {
		e := Entry{
			ProductID:   ev.ProductID(),
			From:        ev.Address("previousOwner").Hex(),
			Quantity:    ev.Uint("quantity").String(),
			TxHash:      ev.TxHash.Hex(),
			BlockNumber: ev.BlockNumber,
		}
		p, err := q.contract.GetProduct(ctx, e.ProductID)
		if err != nil {
			return nil, err
		}
		if p.Exists() {
			e.Product = contracts.NewProductDTO(p)
			e.StillOwned = p.Owner == account
		}
		out = append(out, e)
	}
	return out, nil
}
