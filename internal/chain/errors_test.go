package chain

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

type codedError struct {
	code int
	msg  string
}

func (e codedError) Error() string  { return e.msg }
func (e codedError) ErrorCode() int { return e.code }

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"eip-1193 rejection code", codedError{4001, "whatever the wallet says"}, ErrUserRejected},
		{"unauthorized code", codedError{4100, "unauthorized"}, ErrNoAccount},
		{"revert code", codedError{3, "execution reverted: not owner"}, ErrExecutionReverted},
		{"message rejection", errors.New("MetaMask Tx Signature: User denied transaction signature."), ErrUserRejected},
		{"gas allowance", codedError{-32000, "gas required exceeds allowance (30000000)"}, ErrInsufficientGas},
		{"intrinsic gas", errors.New("intrinsic gas too low"), ErrInsufficientGas},
		{"nonce", errors.New("nonce too low: next nonce 5, tx nonce 4"), ErrNonceConflict},
		{"underpriced", errors.New("replacement transaction underpriced"), ErrNonceConflict},
		{"funds", errors.New("insufficient funds for gas * price + value"), ErrInsufficientFunds},
		{"revert text", errors.New("execution reverted"), ErrExecutionReverted},
		{"internal", codedError{-32603, "Internal JSON-RPC error."}, ErrNodeRPC},
		{"context", context.DeadlineExceeded, ErrNodeRPC},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify("acceptTransfer", tt.err)
			assert.ErrorIs(t, got, tt.want)
			assert.ErrorIs(t, got, tt.err, "cause must stay reachable")
			assert.Equal(t, tt.want, KindOf(got))
		})
	}
}

func TestClassify_Idempotent(t *testing.T) {
	first := Classify("op", errors.New("nonce too low"))
	wrapped := fmt.Errorf("submit: %w", first)
	assert.Same(t, wrapped, Classify("other", wrapped))
	assert.Nil(t, Classify("op", nil))
}

func TestError_Message(t *testing.T) {
	err := newError(ErrReceiptTimeout, "receipt", errors.New("tx 0xabc not mined"))
	assert.Equal(t, "receipt: timed out waiting for receipt: tx 0xabc not mined", err.Error())
	assert.Equal(t, "The transaction was sent but is not confirmed yet.", err.UserMessage())
	assert.Equal(t, "receipt_timeout", KindName(err))

	assert.Equal(t, "connect: no wallet provider available", newError(ErrNoProvider, "connect", nil).Error())
}
