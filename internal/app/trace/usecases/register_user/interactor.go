package register_user

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/benomayebu/Farmily-Docs/internal/app/trace/contracts"
	"github.com/benomayebu/Farmily-Docs/internal/app/trace/coordinator"
	"github.com/benomayebu/Farmily-Docs/internal/app/trace/domain"
	"github.com/benomayebu/Farmily-Docs/internal/backend"
	"github.com/benomayebu/Farmily-Docs/internal/chain"
)

// Request binds Identifier to the connected account. Other parties address
// transfers to the identifier.
type Request struct {
	Role       domain.Role `json:"role"`
	Identifier string      `json:"identifier"`
}

// Interactor handles the register user use case.
type Interactor struct {
	coord  *coordinator.Coordinator
	wallet contracts.Wallet
}

// NewInteractor creates a register user interactor and registers its
// persister with coord.
func NewInteractor(coord *coordinator.Coordinator, wallet contracts.Wallet) *Interactor {
	coord.Register(domain.KindRegisterUser, Persist)
	return &Interactor{coord: coord, wallet: wallet}
}

// Execute registers the identifier on chain and stores the account address
// on the user's backend profile.
func (i *Interactor) Execute(ctx context.Context, req *Request) (*coordinator.Result, error) {
	if err := req.Role.Require(domain.Roles...); err != nil {
		return nil, err
	}
	ident := strings.TrimSpace(req.Identifier)
	if ident == "" {
		return nil, domain.ErrEmptyIdentifier
	}
	session, err := i.wallet.Connect(ctx)
	if err != nil {
		return nil, err
	}

	return i.coord.Run(ctx, session, coordinator.Plan{
		Kind:    domain.KindRegisterUser,
		Role:    req.Role,
		Payload: req,
		Call: chain.Call{
			Method: chain.MethodRegisterUser,
			Args:   []interface{}{ident},
			Role:   string(req.Role),
		},
		Precheck: func(ctx context.Context) error {
			owner, err := session.Contract().IdentifierToAddress(ctx, ident)
			if err != nil {
				return err
			}
			if owner != (common.Address{}) {
				return fmt.Errorf("%w: %q belongs to %s", domain.ErrIdentifierTaken, ident, owner.Hex())
			}
			return nil
		},
	})
}

// Persist stores the account address on the backend profile.
func Persist(action *domain.Action, _ *chain.TxResult) (*backend.Request, error) {
	req := backend.UpdateEthereumAddressRequest(string(action.Role()), action.Account())
	return &req, nil
}
