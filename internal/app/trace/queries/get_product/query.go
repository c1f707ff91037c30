package get_product

import (
	"context"
	"fmt"

	"github.com/benomayebu/Farmily-Docs/internal/app/trace/contracts"
	"github.com/benomayebu/Farmily-Docs/internal/app/trace/domain"
	"github.com/benomayebu/Farmily-Docs/internal/chain"
)

// Request contains the on-chain product id to read.
type Request struct {
	ProductID string
}

// Query handles the get product query.
type Query struct {
	contract *chain.Contract
}

// NewQuery creates a new get product query.
func NewQuery(contract *chain.Contract) *Query {
	return &Query{contract: contract}
}

// Execute reads the product state, including whether a transfer is open.
func (q *Query) Execute(ctx context.Context, req *Request) (*contracts.ProductDTO, error) {
	p, err := q.contract.GetProductState(ctx, req.ProductID)
	if err != nil {
		return nil, err
	}
	if !p.Exists() {
		return nil, fmt.Errorf("%w: %s", domain.ErrProductNotFound, p.ID)
	}
	return contracts.NewProductDTO(p), nil
}
