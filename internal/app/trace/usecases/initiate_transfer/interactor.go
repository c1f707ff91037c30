package initiate_transfer

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/benomayebu/Farmily-Docs/internal/app/trace/contracts"
	"github.com/benomayebu/Farmily-Docs/internal/app/trace/coordinator"
	"github.com/benomayebu/Farmily-Docs/internal/app/trace/domain"
	"github.com/benomayebu/Farmily-Docs/internal/app/trace/lookup"
	"github.com/benomayebu/Farmily-Docs/internal/backend"
	"github.com/benomayebu/Farmily-Docs/internal/chain"
)

// Request contains the data needed to offer a product to the next party.
// Recipient is the identifier the recipient registered on chain.
type Request struct {
	Role         domain.Role `json:"role"`
	ProductID    string      `json:"productId"`
	BlockchainID string      `json:"blockchainId,omitempty"`
	Recipient    string      `json:"recipient"`
	Quantity     int64       `json:"quantity"`
}

type payload struct {
	Recipient string `json:"recipient"`
	Quantity  int64  `json:"quantity"`
}

// Interactor handles the initiate transfer use case.
type Interactor struct {
	coord  *coordinator.Coordinator
	wallet contracts.Wallet
	rest   coordinator.Backend
}

// NewInteractor creates an initiate transfer interactor and registers its
// persister with coord.
func NewInteractor(coord *coordinator.Coordinator, wallet contracts.Wallet, rest coordinator.Backend) *Interactor {
	coord.Register(domain.KindInitiateTransfer, Persist)
	return &Interactor{coord: coord, wallet: wallet, rest: rest}
}

// Execute opens the transfer on chain and records it in the backend.
// A product can only have one open transfer.
func (i *Interactor) Execute(ctx context.Context, req *Request) (*coordinator.Result, error) {
	if err := req.Role.Require(domain.RoleFarmer, domain.RoleDistributor, domain.RoleRetailer); err != nil {
		return nil, err
	}
	recipient := strings.TrimSpace(req.Recipient)
	if recipient == "" {
		return nil, domain.ErrEmptyIdentifier
	}
	if req.Quantity <= 0 {
		return nil, domain.ErrInvalidQuantity
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
		Kind:       domain.KindInitiateTransfer,
		Role:       req.Role,
		ProductRef: req.ProductID,
		ChainID:    id,
		Payload:    payload{Recipient: recipient, Quantity: req.Quantity},
		Call: chain.Call{
			Method: chain.MethodInitiateTransfer,
			Args:   []interface{}{key, recipient, big.NewInt(req.Quantity)},
			Role:   string(req.Role),
		},
		Precheck: func(ctx context.Context) error {
			contract := session.Contract()
			if err := lookup.ProductOnChain(ctx, contract, id); err != nil {
				return err
			}
			open, err := contract.PendingTransfer(ctx, id)
			if err != nil {
				return err
			}
			if open.Exists() {
				return fmt.Errorf("%w: %s to %s", domain.ErrTransferPending, id, open.To.Hex())
			}
			to, err := contract.IdentifierToAddress(ctx, recipient)
			if err != nil {
				return err
			}
			if to == (common.Address{}) {
				return fmt.Errorf("%w: %q", domain.ErrRecipientUnknown, recipient)
			}
			return nil
		},
	})
}

// Persist records the transfer in the backend.
func Persist(action *domain.Action, _ *chain.TxResult) (*backend.Request, error) {
	var p payload
	if err := lookup.Payload(action, &p); err != nil {
		return nil, err
	}
	req := backend.InitiateTransferRequest(string(action.Role()), action.ProductRef(), p.Recipient, p.Quantity, action.TxHash())
	return &req, nil
}
