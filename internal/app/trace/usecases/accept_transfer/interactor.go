package accept_transfer

import (
	"context"
	"fmt"

	"github.com/benomayebu/Farmily-Docs/internal/app/trace/contracts"
	"github.com/benomayebu/Farmily-Docs/internal/app/trace/coordinator"
	"github.com/benomayebu/Farmily-Docs/internal/app/trace/domain"
	"github.com/benomayebu/Farmily-Docs/internal/backend"
	"github.com/benomayebu/Farmily-Docs/internal/chain"
)

// Request names the transfer to accept. On chain a transfer is keyed by its
// product id; TransferID is the backend's own id for it and defaults to the
// on-chain one.
type Request struct {
	Role       domain.Role `json:"role"`
	ProductID  string      `json:"productId"`
	TransferID string      `json:"transferId,omitempty"`
}

// Interactor handles the accept transfer use case.
type Interactor struct {
	coord  *coordinator.Coordinator
	wallet contracts.Wallet
}

// NewInteractor creates an accept transfer interactor and registers its
// persister with coord.
func NewInteractor(coord *coordinator.Coordinator, wallet contracts.Wallet) *Interactor {
	coord.Register(domain.KindAcceptTransfer, Persist)
	return &Interactor{coord: coord, wallet: wallet}
}

// Execute accepts the pending transfer addressed to the connected account.
// Nothing is signed, and the backend is not told, unless the transfer is
// open and addressed to this account.
func (i *Interactor) Execute(ctx context.Context, req *Request) (*coordinator.Result, error) {
	if err := req.Role.Require(domain.RoleDistributor, domain.RoleRetailer, domain.RoleConsumer); err != nil {
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
		Kind:       domain.KindAcceptTransfer,
		Role:       req.Role,
		ProductRef: ref,
		ChainID:    id,
		Call: chain.Call{
			Method: chain.MethodAcceptTransfer,
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
			if open.To != session.Account() {
				return fmt.Errorf("%w: addressed to %s", domain.ErrNotTransferRecipient, open.To.Hex())
			}
			return nil
		},
	})
}

// Persist marks the transfer accepted in the backend.
func Persist(action *domain.Action, _ *chain.TxResult) (*backend.Request, error) {
	req := backend.AcceptTransferRequest(string(action.Role()), action.ProductRef(), action.Account(), action.TxHash())
	return &req, nil
}
