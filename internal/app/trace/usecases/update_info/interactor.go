package update_info

import (
	"context"
	"errors"

	jsoniter "github.com/json-iterator/go"

	"github.com/benomayebu/Farmily-Docs/internal/app/trace/contracts"
	"github.com/benomayebu/Farmily-Docs/internal/app/trace/coordinator"
	"github.com/benomayebu/Farmily-Docs/internal/app/trace/domain"
	"github.com/benomayebu/Farmily-Docs/internal/app/trace/lookup"
	"github.com/benomayebu/Farmily-Docs/internal/backend"
	"github.com/benomayebu/Farmily-Docs/internal/chain"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrNoDetails is returned when there is nothing to record.
var ErrNoDetails = errors.New("product details are required")

// Request contains the product details to record. Info is stored on chain
// as a JSON string and merged into the backend record.
type Request struct {
	Role         domain.Role            `json:"role"`
	ProductID    string                 `json:"productId"`
	BlockchainID string                 `json:"blockchainId,omitempty"`
	Info         map[string]interface{} `json:"info"`
}

type payload struct {
	Info map[string]interface{} `json:"info"`
}

// Interactor handles the update info use case.
type Interactor struct {
	coord  *coordinator.Coordinator
	wallet contracts.Wallet
	rest   coordinator.Backend
}

// NewInteractor creates an update info interactor and registers its
// persister with coord.
func NewInteractor(coord *coordinator.Coordinator, wallet contracts.Wallet, rest coordinator.Backend) *Interactor {
	coord.Register(domain.KindUpdateInfo, Persist)
	return &Interactor{coord: coord, wallet: wallet, rest: rest}
}

// Execute records the details on chain and then in the backend.
func (i *Interactor) Execute(ctx context.Context, req *Request) (*coordinator.Result, error) {
	if err := req.Role.Require(domain.RoleFarmer, domain.RoleDistributor, domain.RoleRetailer); err != nil {
		return nil, err
	}
	if len(req.Info) == 0 {
		return nil, ErrNoDetails
	}
	details, err := json.MarshalToString(req.Info)
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
		Kind:       domain.KindUpdateInfo,
		Role:       req.Role,
		ProductRef: req.ProductID,
		ChainID:    id,
		Payload:    payload{Info: req.Info},
		Call: chain.Call{
			Method: chain.MethodUpdateProductInfo,
			Args:   []interface{}{key, details},
			Role:   string(req.Role),
		},
		Precheck: func(ctx context.Context) error {
			return lookup.ProductOnChain(ctx, session.Contract(), id)
		},
	})
}

// Persist writes the details to the backend record.
func Persist(action *domain.Action, _ *chain.TxResult) (*backend.Request, error) {
	var p payload
	if err := lookup.Payload(action, &p); err != nil {
		return nil, err
	}
	req := backend.UpdateProductRequest(string(action.Role()), action.ProductRef(), p.Info, action.TxHash())
	return &req, nil
}
