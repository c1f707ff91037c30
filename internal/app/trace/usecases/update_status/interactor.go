package update_status

import (
	"context"

	"github.com/benomayebu/Farmily-Docs/internal/app/trace/contracts"
	"github.com/benomayebu/Farmily-Docs/internal/app/trace/coordinator"
	"github.com/benomayebu/Farmily-Docs/internal/app/trace/domain"
	"github.com/benomayebu/Farmily-Docs/internal/app/trace/lookup"
	"github.com/benomayebu/Farmily-Docs/internal/backend"
	"github.com/benomayebu/Farmily-Docs/internal/chain"
)

// Request contains the data needed to move a product to a new status.
type Request struct {
	Role         domain.Role `json:"role"`
	ProductID    string      `json:"productId"`              // backend _id
	BlockchainID string      `json:"blockchainId,omitempty"` // read from the backend when empty
	Status       string      `json:"status"`
}

// payload is what the persister needs later.
type payload struct {
	Status domain.Status `json:"status"`
}

// Interactor handles the update status use case.
type Interactor struct {
	coord  *coordinator.Coordinator
	wallet contracts.Wallet
	rest   coordinator.Backend
}

// NewInteractor creates an update status interactor and registers its
// persister with coord.
func NewInteractor(coord *coordinator.Coordinator, wallet contracts.Wallet, rest coordinator.Backend) *Interactor {
	coord.Register(domain.KindUpdateStatus, Persist)
	return &Interactor{coord: coord, wallet: wallet, rest: rest}
}

// Execute updates the status on chain and then in the backend.
func (i *Interactor) Execute(ctx context.Context, req *Request) (*coordinator.Result, error) {
	if err := req.Role.Require(domain.Roles...); err != nil {
		return nil, err
	}
	status, err := domain.ParseStatus(req.Status)
	if err != nil {
		return nil, err
	}
	session, err := i.wallet.Connect(ctx)
	if err != nil {
		return nil, err
	}
	id, err := lookup.ChainID(ctx, i.rest, req.Role, req.ProductID, req.BlockchainID)
	if err != nil {
		return nil, err
	}
	key, err := chain.ParseID(id)
	if err != nil {
		return nil, err
	}

	return i.coord.Run(ctx, session, coordinator.Plan{
		Kind:       domain.KindUpdateStatus,
		Role:       req.Role,
		ProductRef: req.ProductID,
		ChainID:    id,
		Payload:    payload{Status: status},
		Call: chain.Call{
			Method: chain.MethodUpdateProductStatus,
			Args:   []interface{}{key, status.Code()},
			Role:   string(req.Role),
		},
		Precheck: func(ctx context.Context) error {
			return lookup.ProductOnChain(ctx, session.Contract(), id)
		},
	})
}

// Persist records the new status on the role's status route.
func Persist(action *domain.Action, _ *chain.TxResult) (*backend.Request, error) {
	var p payload
	if err := lookup.Payload(action, &p); err != nil {
		return nil, err
	}
	req := backend.UpdateStatusRequest(string(action.Role()), action.ProductRef(), p.Status.String(), action.TxHash())
	return &req, nil
}
