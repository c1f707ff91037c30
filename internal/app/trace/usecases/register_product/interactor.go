package register_product

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/benomayebu/Farmily-Docs/internal/app/trace/contracts"
	"github.com/benomayebu/Farmily-Docs/internal/app/trace/coordinator"
	"github.com/benomayebu/Farmily-Docs/internal/app/trace/domain"
	"github.com/benomayebu/Farmily-Docs/internal/backend"
	"github.com/benomayebu/Farmily-Docs/internal/chain"
)

// Request contains the data needed to register a product batch.
type Request struct {
	BatchNumber    string   `json:"batchNumber"`
	ProductType    string   `json:"type"`
	Origin         string   `json:"origin"`
	ProductionDate string   `json:"productionDate"` // 2006-01-02 or RFC 3339
	Quantity       int64    `json:"quantity"`
	Price          string   `json:"price"` // ether
	Certifications []string `json:"certifications,omitempty"`
}

// Response identifies the registered product in both stores.
type Response struct {
	ProductID    string             `json:"productId"`
	BlockchainID string             `json:"blockchainId"`
	TxHash       string             `json:"txHash"`
	ActionID     string             `json:"actionId"`
	State        domain.ActionState `json:"state"`
}

// Interactor handles the register product use case.
type Interactor struct {
	coord  *coordinator.Coordinator
	wallet contracts.Wallet
	rest   coordinator.Backend
}

// NewInteractor creates a register product interactor and registers its
// persister with coord.
func NewInteractor(coord *coordinator.Coordinator, wallet contracts.Wallet, rest coordinator.Backend) *Interactor {
	coord.Register(domain.KindRegisterProduct, Persist)
	return &Interactor{coord: coord, wallet: wallet, rest: rest}
}

// Execute creates the backend record, then the on-chain product, then links
// the two. The backend record comes first because its _id is what the
// dashboards know the product by.
func (i *Interactor) Execute(ctx context.Context, req *Request) (*Response, error) {
	// 1. Validate request
	date, wei, err := i.validate(req)
	if err != nil {
		return nil, err
	}

	session, err := i.wallet.Connect(ctx)
	if err != nil {
		return nil, err
	}

	// 2. Backend record
	resp, err := i.rest.Do(ctx, backend.RegisterProductRequest(backend.ProductInput{
		BatchNumber:    req.BatchNumber,
		Type:           req.ProductType,
		Origin:         req.Origin,
		ProductionDate: date.Format("2006-01-02"),
		Quantity:       req.Quantity,
		Price:          req.Price,
		Certifications: req.Certifications,
	}))
	if err != nil {
		return nil, fmt.Errorf("register product in backend: %w", err)
	}
	record, err := backend.DecodeProduct(resp)
	if err != nil {
		return nil, fmt.Errorf("register product in backend: %w", err)
	}

	// 3. Chain write and link
	res, err := i.coord.Run(ctx, session, coordinator.Plan{
		Kind:       domain.KindRegisterProduct,
		Role:       domain.RoleFarmer,
		ProductRef: record.ID,
		Payload:    req,
		Call: chain.Call{
			Method: chain.MethodCreateProduct,
			Args: []interface{}{
				req.BatchNumber,
				req.ProductType,
				req.Origin,
				big.NewInt(date.Unix()),
				big.NewInt(req.Quantity),
				wei,
			},
			Role: string(domain.RoleFarmer),
		},
	})
	out := &Response{ProductID: record.ID}
	if res != nil && res.Action != nil {
		out.BlockchainID = res.Action.ChainID()
		out.TxHash = res.Action.TxHash()
		out.ActionID = res.Action.ID()
		out.State = res.Action.State()
	}
	return out, err
}

// Persist stores the on-chain id and creation tx on the backend record.
func Persist(action *domain.Action, _ *chain.TxResult) (*backend.Request, error) {
	if action.ChainID() == "" {
		return nil, errors.New("receipt carried no ProductCreated event")
	}
	req := backend.LinkBlockchainRequest(action.ProductRef(), action.ChainID(), action.TxHash())
	return &req, nil
}

// validate validates the request.
func (i *Interactor) validate(req *Request) (time.Time, *big.Int, error) {
	if strings.TrimSpace(req.BatchNumber) == "" {
		return time.Time{}, nil, domain.ErrEmptyBatchNumber
	}
	if req.Quantity <= 0 {
		return time.Time{}, nil, domain.ErrInvalidQuantity
	}
	date, err := ParseDate(req.ProductionDate)
	if err != nil {
		return time.Time{}, nil, err
	}
	wei, err := chain.EtherToWei(req.Price)
	if err != nil {
		return time.Time{}, nil, err
	}
	return date, wei, nil
}

// ParseDate accepts a calendar date or an RFC 3339 timestamp, in UTC.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("%w: %q", domain.ErrInvalidDate, s)
}
