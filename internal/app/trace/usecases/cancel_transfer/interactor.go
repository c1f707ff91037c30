package cancel_transfer

import (
	"context"
	"fmt"

	"github.com/benomayebu/Farmily-Docs/internal/app/trace/contracts"
	"github.com/benomayebu/Farmily-Docs/internal/app/trace/coordinator"
	"github.com/benomayebu/Farmily-Docs/internal/app/trace/domain"
	"github.com/benomayebu/Farmily-Docs/internal/backend"
	"github.com/benomayebu/Farmily-Docs/internal/chain"
)

// Request names the transfer to withdraw, as for accepting.
type Request struct {
	Role       domain.Role `json:"role"`
	ProductID  string      `json:"productId"`
	TransferID string      `json:"transferId,omitempty"`
}

// Interactor handles the cancel transfer use case.
type Interactor struct {
	coord  *coordinator.Coordinator
	wallet contracts.Wallet
}

// NewInteractor creates a cancel transfer interactor and registers its
// persister with coord.
func NewInteractor(coord *coordinator.Coordinator, wallet contracts.Wallet) *Interactor {
	coord.Register(domain.KindCancelTransfer, Persist)
	return &Interactor{coord: coord, wallet: wallet}
}

// Execute withdraws a transfer the connected account initiated.
func (i *Interactor) Execute(ctx context.Context, req *Request) (*coordinator.Result, error) {
	if err := req.Role.Require(domain.RoleFarmer, domain.RoleDistributor, domain.RoleRetailer); err != nil {
		return nil, err
	}
	id, err := chain.NormalizeID(req.ProductID)
	if err != nil {
		return nil, err
	}
	key, _ := chain.ParseID(id)
	ref := req.TransferID
	if ref == "" {
		ref = id
	}
	session, err := i.wallet.Connect(ctx)
	if err != nil {
		return nil, err
	}

	return i.coord.Run(ctx, session, coordinator.Plan{
		Kind:       domain.KindCancelTransfer,
		Role:       req.Role,
		ProductRef: ref,
		ChainID:    id,
		Call: chain.Call{
			Method: chain.MethodCancelTransfer,
			Args:   []interface{}{key},
			Role:   string(req.Role),
		},
		Precheck: func(ctx context.Context) error {
			open, err := session.Contract().PendingTransfer(ctx, id)
			if err != nil {
				return err
			}
			if !open.Exists() {
				return fmt.Errorf("%w: %s", domain.ErrTransferNotFound, id)
			}
			if open.From != session.Account() {
				return fmt.Errorf("%w: initiated by %s", domain.ErrNotTransferInitiator, open.From.Hex())
			}
			return nil
		},
	})
}

// Persist marks the transfer cancelled in the backend.
func Persist(action *domain.Action, _ *chain.TxResult) (*backend.Request, error) {
	req := backend.CancelTransferRequest(string(action.Role()), action.ProductRef(), action.Account(), action.TxHash())
	return &req, nil
}
