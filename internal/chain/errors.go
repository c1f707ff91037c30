package chain

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/rpc"
)

// Error kinds. Every error leaving this package wraps exactly one of them.
var (
	ErrNoProvider        = errors.New("no wallet provider available")
	ErrUserRejected      = errors.New("request rejected by the user")
	ErrNoAccount         = errors.New("no ethereum account available")
	ErrNotConnected      = errors.New("wallet not connected")
	ErrInvalidIdentifier = errors.New("invalid product identifier")
	ErrInsufficientGas   = errors.New("insufficient gas")
	ErrNonceConflict     = errors.New("nonce conflict")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrExecutionReverted = errors.New("execution reverted")
	ErrReverted          = errors.New("transaction reverted")
	ErrReceiptTimeout    = errors.New("timed out waiting for receipt")
	ErrNodeRPC           = errors.New("ethereum node error")
	ErrInvalidAmount     = errors.New("invalid amount")
)

// JSON-RPC error codes carried by wallets (EIP-1193) and geth.
const (
	codeUserRejected = 4001
	codeUnauthorized = 4100
	codeRevert       = 3
)

var userMessages = map[error]string{
	ErrNoProvider:        "An Ethereum wallet is required to interact with the blockchain.",
	ErrUserRejected:      "Transaction was rejected by the user.",
	ErrNoAccount:         "No Ethereum accounts available.",
	ErrNotConnected:      "Wallet is not connected.",
	ErrInvalidIdentifier: "The product identifier is not valid.",
	ErrInsufficientGas:   "Transaction failed due to insufficient gas. Please try again or increase the gas limit.",
	ErrNonceConflict:     "Transaction nonce is too low. Please refresh and try again.",
	ErrInsufficientFunds: "The account does not have enough ether for this transaction.",
	ErrExecutionReverted: "The contract refused the operation.",
	ErrReverted:          "The transaction was mined but reverted.",
	ErrReceiptTimeout:    "The transaction was sent but is not confirmed yet.",
	ErrNodeRPC:           "Internal blockchain error occurred. Please try again later.",
	ErrInvalidAmount:     "The amount must be a non-negative number.",
}

// Error is a classified chain failure.
type Error struct {
	Kind error  // one of the Err* kinds above
	Op   string // contract method or connector step
	Err  error  // underlying cause, may be nil
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// UserMessage is a short sentence suitable for a dashboard toast.
func (e *Error) UserMessage() string {
	if msg, ok := userMessages[e.Kind]; ok {
		return msg
	}
	return "An unexpected blockchain error occurred."
}

func newError(kind error, op string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Err: cause}
}

// KindOf returns the kind of a classified error or nil.
func KindOf(err error) error {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return nil
}

// KindName returns a short label for metrics.
func KindName(err error) string {
	switch KindOf(err) {
	case ErrNoProvider:
		return "no_provider"
	case ErrUserRejected:
		return "user_rejected"
	case ErrNoAccount:
		return "no_account"
	case ErrNotConnected:
		return "not_connected"
	case ErrInvalidIdentifier:
		return "invalid_identifier"
	case ErrInsufficientGas:
		return "insufficient_gas"
	case ErrNonceConflict:
		return "nonce_conflict"
	case ErrInsufficientFunds:
		return "insufficient_funds"
	case ErrExecutionReverted:
		return "execution_reverted"
	case ErrReverted:
		return "reverted"
	case ErrReceiptTimeout:
		return "receipt_timeout"
	case ErrInvalidAmount:
		return "invalid_amount"
	default:
		return "node_rpc"
	}
}

// Classify maps a raw wallet, node or transport error onto a kind.
// Structured JSON-RPC codes are checked first; message fragments are the
// fallback for nodes that only return -32000 with text.
func Classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var ce *Error
	if errors.As(err, &ce) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return newError(ErrNodeRPC, op, err)
	}

	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		switch rpcErr.ErrorCode() {
		case codeUserRejected:
			return newError(ErrUserRejected, op, err)
		case codeUnauthorized:
			return newError(ErrNoAccount, op, err)
		case codeRevert:
			return newError(ErrExecutionReverted, op, err)
		}
	}

	return newError(kindFromMessage(err.Error()), op, err)
}

func kindFromMessage(msg string) error {
	msg = strings.ToLower(msg)
	switch {
	case strings.Contains(msg, "user denied"), strings.Contains(msg, "user rejected"):
		return ErrUserRejected
	case strings.Contains(msg, "gas required exceeds allowance"),
		strings.Contains(msg, "intrinsic gas too low"),
		strings.Contains(msg, "out of gas"):
		return ErrInsufficientGas
	case strings.Contains(msg, "nonce too low"),
		strings.Contains(msg, "replacement transaction underpriced"),
		strings.Contains(msg, "already known"):
		return ErrNonceConflict
	case strings.Contains(msg, "insufficient funds"):
		return ErrInsufficientFunds
	case strings.Contains(msg, "execution reverted"):
		return ErrExecutionReverted
	default:
		return ErrNodeRPC
	}
}
