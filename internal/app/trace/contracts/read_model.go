package contracts

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/benomayebu/Farmily-Docs/internal/app/trace/domain"
	"github.com/benomayebu/Farmily-Docs/internal/chain"
)

// ProductDTO is the chain's view of a product.
type ProductDTO struct {
	ProductID          string        `json:"productId"`
	BatchNumber        string        `json:"batchNumber"`
	ProductType        string        `json:"productType"`
	Origin             string        `json:"origin"`
	ProductionDate     time.Time     `json:"productionDate"`
	Quantity           string        `json:"quantity"`
	Owner              string        `json:"owner"`
	Status             domain.Status `json:"status"`
	StatusCode         uint8         `json:"statusCode"`
	PriceWei           string        `json:"priceWei"`
	Price              string        `json:"price"` // ether
	HasPendingTransfer bool          `json:"hasPendingTransfer"`
}

// NewProductDTO maps a contract read. Out of range status codes are shown
// as registered, with the raw code kept in StatusCode.
func NewProductDTO(p *chain.Product) *ProductDTO {
	status, _ := domain.StatusFromCode(p.Status)
	return &ProductDTO{
		ProductID:          p.ID,
		BatchNumber:        p.BatchNumber,
		ProductType:        p.ProductType,
		Origin:             p.Origin,
		ProductionDate:     p.ProductionDate,
		Quantity:           bigText(p.Quantity),
		Owner:              p.Owner.Hex(),
		Status:             status,
		StatusCode:         p.Status,
		PriceWei:           bigText(p.Price),
		Price:              chain.WeiToEther(p.Price),
		HasPendingTransfer: p.HasPendingTransfer,
	}
}

// TransferDTO is an open transfer.
type TransferDTO struct {
	ProductID   string `json:"productId"`
	From        string `json:"from"`
	To          string `json:"to"`
	Quantity    string `json:"quantity"`
	TxHash      string `json:"txHash,omitempty"`
	BlockNumber uint64 `json:"blockNumber,omitempty"`
}

// EventDTO is one decoded contract event.
type EventDTO struct {
	Name        string                 `json:"name"`
	TxHash      string                 `json:"txHash"`
	BlockNumber uint64                 `json:"blockNumber"`
	LogIndex    uint                   `json:"logIndex"`
	Fields      map[string]interface{} `json:"fields"`
}

// NewEventDTO renders addresses, ids and integers as strings.
func NewEventDTO(ev chain.Event) EventDTO {
	fields := make(map[string]interface{}, len(ev.Fields))
	for k, v := range ev.Fields {
		switch x := v.(type) {
		case [32]byte:
			fields[k] = chain.FormatID(x)
		case common.Address:
			fields[k] = x.Hex()
		case *big.Int:
			fields[k] = bigText(x)
		case uint8:
			if k == "oldStatus" || k == "newStatus" {
				if s, err := domain.StatusFromCode(x); err == nil {
					fields[k] = s.String()
					continue
				}
			}
			fields[k] = x
		default:
			fields[k] = v
		}
	}
	return EventDTO{
		Name:        ev.Name,
		TxHash:      ev.TxHash.Hex(),
		BlockNumber: ev.BlockNumber,
		LogIndex:    ev.LogIndex,
		Fields:      fields,
	}
}

// ActionDTO is a ledger row.
type ActionDTO struct {
	ActionID    string             `json:"actionId"`
	Kind        domain.ActionKind  `json:"kind"`
	Role        domain.Role        `json:"role"`
	Account     string             `json:"account"`
	ProductRef  string             `json:"productRef,omitempty"`
	ChainID     string             `json:"chainId,omitempty"`
	State       domain.ActionState `json:"state"`
	TxHash      string             `json:"txHash,omitempty"`
	GasEstimate uint64             `json:"gasEstimate,omitempty"`
	GasLimit    uint64             `json:"gasLimit,omitempty"`
	BlockNumber uint64             `json:"blockNumber,omitempty"`
	LastError   string             `json:"lastError,omitempty"`
	Attempts    int64              `json:"attempts"`
	Version     int64              `json:"version"`
	CreatedAt   time.Time          `json:"createdAt"`
	UpdatedAt   time.Time          `json:"updatedAt"`
}

// NewActionDTO maps an action.
func NewActionDTO(a *domain.Action) *ActionDTO {
	return &ActionDTO{
		ActionID:    a.ID(),
		Kind:        a.Kind(),
		Role:        a.Role(),
		Account:     a.Account(),
		ProductRef:  a.ProductRef(),
		ChainID:     a.ChainID(),
		State:       a.State(),
		TxHash:      a.TxHash(),
		GasEstimate: a.GasEstimate(),
		GasLimit:    a.GasLimit(),
		BlockNumber: a.BlockNumber(),
		LastError:   a.LastError(),
		Attempts:    a.Attempts(),
		Version:     a.Version(),
		CreatedAt:   a.CreatedAt(),
		UpdatedAt:   a.UpdatedAt(),
	}
}

func bigText(n *big.Int) string {
	if n == nil {
		return "0"
	}
	return n.String()
}
