package sync_product

import (
	"context"
	"fmt"

	"github.com/benomayebu/Farmily-Docs/internal/app/trace/coordinator"
	"github.com/benomayebu/Farmily-Docs/internal/app/trace/domain"
	"github.com/benomayebu/Farmily-Docs/internal/app/trace/lookup"
	"github.com/benomayebu/Farmily-Docs/internal/backend"
	"github.com/benomayebu/Farmily-Docs/internal/chain"
)

// Request names the backend product to refresh from the chain.
type Request struct {
	Role            domain.Role `json:"role"`
	ProductID       string      `json:"productId"`
	BlockchainID    string      `json:"blockchainId,omitempty"`
	EthereumAddress string      `json:"ethereumAddress,omitempty"`
}

// Response is the chain state the backend was asked to adopt.
type Response struct {
	ProductID    string        `json:"productId"`
	BlockchainID string        `json:"blockchainId"`
	Owner        string        `json:"owner"`
	Status       domain.Status `json:"status"`
	HasPending   bool          `json:"hasPendingTransfer"`
}

// Interactor handles the manual sync use case. Nothing is signed, so no
// action is recorded.
type Interactor struct {
	contract *chain.Contract
	rest     coordinator.Backend
}

// NewInteractor creates a sync product interactor.
func NewInteractor(contract *chain.Contract, rest coordinator.Backend) *Interactor {
	return &Interactor{contract: contract, rest: rest}
}

// Execute reads the product state from chain and asks the backend to sync.
func (i *Interactor) Execute(ctx context.Context, req *Request) (*Response, error) {
	if err := req.Role.Require(domain.Roles...); err != nil {
		return nil, err
	}
	id, err := lookup.ChainID(ctx, i.rest, req.Role, req.ProductID, req.BlockchainID)
	if err != nil {
		return nil, err
	}
	state, err := i.contract.GetProductState(ctx, id)
	if err != nil {
		return nil, err
	}
	if !state.Exists() {
		return nil, fmt.Errorf("%w: %s", domain.ErrProductNotFound, id)
	}
	status, err := domain.StatusFromCode(state.Status)
	if err != nil {
		return nil, err
	}
	if _, err := i.rest.Do(ctx, backend.SyncProductRequest(string(req.Role), req.ProductID, req.EthereumAddress)); err != nil {
		return nil, fmt.Errorf("sync product %s: %w", req.ProductID, err)
	}
	return &Response{
		ProductID:    req.ProductID,
		BlockchainID: id,
		Owner:        state.Owner.Hex(),
		Status:       status,
		HasPending:   state.HasPendingTransfer,
	}, nil
}
