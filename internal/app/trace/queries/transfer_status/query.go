package transfer_status

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/benomayebu/Farmily-Docs/internal/chain"
)

// Status of a submitted transaction.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// ErrInvalidTxHash is returned for anything but 0x followed by 64 hex digits.
var ErrInvalidTxHash = errors.New("invalid transaction hash")

// Request contains the transaction hash to check.
type Request struct {
	TxHash string
}

// Result is the receipt summary.
type Result struct {
	TxHash      string `json:"txHash"`
	Status      Status `json:"status"`
	BlockNumber uint64 `json:"blockNumber,omitempty"`
	GasUsed     uint64 `json:"gasUsed,omitempty"`
}

// Query handles the transfer status query.
type Query struct {
	contract *chain.Contract
}

// NewQuery creates a new transfer status query.
func NewQuery(contract *chain.Contract) *Query {
	return &Query{contract: contract}
}

// Execute looks the receipt up once, without waiting.
func (q *Query) Execute(ctx context.Context, req *Request) (*Result, error) {
	raw, err := hexutil.Decode(req.TxHash)
	if err != nil || len(raw) != common.HashLength {
		return nil, fmt.Errorf("%w %q", ErrInvalidTxHash, req.TxHash)
	}
	hash := common.BytesToHash(raw)
	receipt, err := q.contract.Receipt(ctx, hash)
	if err != nil {
		return nil, err
	}
	res := &Result{TxHash: hash.Hex(), Status: StatusPending}
	if receipt == nil {
		return res, nil
	}
	res.BlockNumber = receipt.BlockNumber.Uint64()
	res.GasUsed = receipt.GasUsed
	if receipt.Status == types.ReceiptStatusSuccessful {
		res.Status = StatusCompleted
	} else {
		res.Status = StatusFailed
	}
	return res, nil
}
