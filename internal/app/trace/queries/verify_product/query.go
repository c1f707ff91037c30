package verify_product

import (
	"context"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"github.com/benomayebu/Farmily-Docs/internal/app/trace/contracts"
	"github.com/benomayebu/Farmily-Docs/internal/chain"
)

// Request holds what the consumer scanned or typed: a product id, or the
// JSON a product QR code carries ({"productId": "0x..."}).
type Request struct {
	Input string
}

// Result tells whether the id names a product recorded on chain.
type Result struct {
	ProductID string                `json:"productId"`
	Authentic bool                  `json:"authentic"`
	Product   *contracts.ProductDTO `json:"product,omitempty"`
}

// Query handles the verify product query.
type Query struct {
	contract *chain.Contract
}

// NewQuery creates a new verify product query.
func NewQuery(contract *chain.Contract) *Query {
	return &Query{contract: contract}
}

// Execute reads the product. It is authentic when the contract returns a
// record with a batch number; unknown ids are not an error.
func (q *Query) Execute(ctx context.Context, req *Request) (*Result, error) {
	id, err := chain.NormalizeID(ParseInput(req.Input))
	if err != nil {
		return nil, err
	}
	p, err := q.contract.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	res := &Result{ProductID: id, Authentic: p.Exists()}
	if res.Authentic {
		res.Product = contracts.NewProductDTO(p)
	}
	return res, nil
}

// ParseInput extracts the product id from QR JSON, or returns the trimmed
// input unchanged.
func ParseInput(input string) string {
	input = strings.TrimSpace(input)
	if strings.HasPrefix(input, "{") {
		var qr struct {
			ProductID string `json:"productId"`
		}
		if err := jsoniter.UnmarshalFromString(input, &qr); err == nil && qr.ProductID != "" {
			return strings.TrimSpace(qr.ProductID)
		}
	}
	return input
}
