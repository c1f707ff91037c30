package product_journey

import (
	"context"

	"github.com/benomayebu/Farmily-Docs/internal/app/trace/contracts"
	"github.com/benomayebu/Farmily-Docs/internal/chain"
)

// Request contains the on-chain product id.
type Request struct {
	ProductID string
}

// Query reconstructs the history of a product from the contract's logs.
type Query struct {
	contract *chain.Contract
}

// NewQuery creates a new product journey query.
func NewQuery(contract *chain.Contract) *Query {
	return &Query{contract: contract}
}

// Execute returns every event indexed by the product, oldest first.
func (q *Query) Execute(ctx context.Context, req *Request) ([]contracts.EventDTO, error) {
	events, err := q.contract.ProductHistory(ctx, req.ProductID)
	if err != nil {
		return nil, err
	}
	out := make([]contracts.EventDTO, 0, len(events))
	for _, ev := range events {
		out = append(out, contracts.NewEventDTO(ev))
	}
	return out, nil
}
