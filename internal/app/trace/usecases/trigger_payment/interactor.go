package trigger_payment

import (
	"context"
	"math/big"

	"github.com/benomayebu/Farmily-Docs/internal/app/trace/contracts"
	"github.com/benomayebu/Farmily-Docs/internal/app/trace/coordinator"
	"github.com/benomayebu/Farmily-Docs/internal/app/trace/domain"
	"github.com/benomayebu/Farmily-Docs/internal/app/trace/lookup"
	"github.com/benomayebu/Farmily-Docs/internal/chain"
)

// Request pays the current owner of a product. Amount is in ether.
type Request struct {
	Role      domain.Role `json:"role"`
	ProductID string      `json:"productId"` // on-chain id
	Amount    string      `json:"amount"`
}

// Response is the action result plus the payment as the contract saw it.
type Response struct {
	*coordinator.Result
	Payer    string `json:"payer,omitempty"`
	Receiver string `json:"receiver,omitempty"`
	Wei      string `json:"wei"`
}

// Interactor handles the trigger payment use case. Payments have no
// backend counterpart, so the action syncs as soon as it commits.
type Interactor struct {
	coord  *coordinator.Coordinator
	wallet contracts.Wallet
}

// NewInteractor creates a trigger payment interactor.
func NewInteractor(coord *coordinator.Coordinator, wallet contracts.Wallet) *Interactor {
	return &Interactor{coord: coord, wallet: wallet}
}

// Execute sends Amount with triggerPayment.
func (i *Interactor) Execute(ctx context.Context, req *Request) (*Response, error) {
	if err := req.Role.Require(domain.Roles...); err != nil {
		return nil, err
	}
	id, err := chain.NormalizeID(req.ProductID)
	if err != nil {
		return nil, err
	}
	key, _ := chain.ParseID(id)
	wei, err := chain.EtherToWei(req.Amount)
	if err != nil {
		return nil, err
	}
	if wei.Sign() == 0 {
		return nil, domain.ErrInvalidQuantity
	}
	session, err := i.wallet.Connect(ctx)
	if err != nil {
		return nil, err
	}

	res, err := i.coord.Run(ctx, session, coordinator.Plan{
		Kind:    domain.KindTriggerPayment,
		Role:    req.Role,
		ChainID: id,
		Payload: req,
		Call: chain.Call{
			Method: chain.MethodTriggerPayment,
			Args:   []interface{}{key},
			Value:  new(big.Int).Set(wei),
			Role:   string(req.Role),
		},
		Precheck: func(ctx context.Context) error {
			return lookup.ProductOnChain(ctx, session.Contract(), id)
		},
	})
	out := &Response{Result: res, Wei: wei.String()}
	if res != nil && res.Tx != nil {
		if ev, ok := chain.FindEvent(res.Tx.Events, chain.EventPaymentTriggered); ok {
			out.Payer = ev.Address("payer").Hex()
			out.Receiver = ev.Address("receiver").Hex()
		}
	}
	return out, err
}
