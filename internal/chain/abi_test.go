package chain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestABI_Surface(t *testing.T) {
	parsed, err := ABI()
	require.NoError(t, err)

	for _, m := range []string{
		MethodCreateProduct, MethodUpdateProductStatus, MethodUpdateProductInfo,
		MethodInitiateTransfer, MethodAcceptTransfer, MethodCancelTransfer,
		MethodTriggerPayment, MethodRegisterUser, MethodUpdateProductOwnerAddress,
		MethodGetProduct, MethodGetProductState, MethodProductExists, MethodGetProductCount,
		MethodGetProductIDByIndex, MethodPendingTransfers, MethodIdentifierToAddress,
		MethodAddressToIdentifier,
	} {
		_, ok := parsed.Methods[m]
		assert.True(t, ok, "missing method %s", m)
	}
	for _, e := range []string{
		EventProductCreated, EventProductInfoUpdated, EventStatusUpdated,
		EventTransferInitiated, EventTransferAccepted, EventTransferCancelled,
		EventTransferError, EventOwnershipTransferred, EventPaymentTriggered,
		EventUserRegistered,
	} {
		_, ok := parsed.Events[e]
		assert.True(t, ok, "missing event %s", e)
	}

	assert.True(t, parsed.Methods[MethodTriggerPayment].IsPayable())
	assert.True(t, parsed.Methods[MethodGetProductState].IsConstant())
}

func TestParseAddress(t *testing.T) {
	addr, err := ParseAddress(DefaultContractAddress)
	require.NoError(t, err)
	assert.Equal(t, DefaultContractAddress, strings.ToLower(addr.Hex()))

	_, err = ParseAddress("farmer-01")
	assert.Error(t, err)
}
