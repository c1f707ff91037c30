package chain

import (
	"bytes"
	_ "embed"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// DefaultContractAddress is the deployed traceability contract.
const DefaultContractAddress = "0x09b116fd1414c95a9264035b9c55af074b9ca587"

// Contract methods.
const (
	MethodCreateProduct             = "createProduct"
	MethodUpdateProductStatus       = "updateProductStatus"
	MethodUpdateProductInfo         = "updateProductInfo"
	MethodInitiateTransfer          = "initiateTransfer"
	MethodAcceptTransfer            = "acceptTransfer"
	MethodCancelTransfer            = "cancelTransfer"
	MethodTriggerPayment            = "triggerPayment"
	MethodRegisterUser              = "registerUser"
	MethodUpdateProductOwnerAddress = "updateProductOwnerAddress"

	MethodGetProduct          = "getProduct"
	MethodGetProductState     = "getProductState"
	MethodProductExists       = "productExists"
	MethodGetProductCount     = "getProductCount"
	MethodGetProductIDByIndex = "getProductIdByIndex"
	MethodPendingTransfers    = "pendingTransfers"
	MethodIdentifierToAddress = "identifierToAddress"
	MethodAddressToIdentifier = "addressToIdentifier"
)

// Contract events.
const (
	EventProductCreated       = "ProductCreated"
	EventProductInfoUpdated   = "ProductInfoUpdated"
	EventStatusUpdated        = "StatusUpdated"
	EventTransferInitiated    = "TransferInitiated"
	EventTransferAccepted     = "TransferAccepted"
	EventTransferCancelled    = "TransferCancelled"
	EventTransferError        = "TransferError"
	EventOwnershipTransferred = "OwnershipTransferred"
	EventPaymentTriggered     = "PaymentTriggered"
	EventUserRegistered       = "UserRegistered"
)

//go:embed farmily.abi.json
var farmilyABIJSON []byte

var (
	parsedABI     abi.ABI
	parsedABIErr  error
	parsedABIOnce sync.Once
)

// ABI returns the parsed contract ABI. It is parsed once per process.
func ABI() (abi.ABI, error) {
	parsedABIOnce.Do(func() {
		parsedABI, parsedABIErr = abi.JSON(bytes.NewReader(farmilyABIJSON))
		if parsedABIErr != nil {
			parsedABIErr = fmt.Errorf("parse contract abi: %w", parsedABIErr)
		}
	})
	return parsedABI, parsedABIErr
}

// ParseAddress validates a hex account or contract address.
func ParseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid address %q", s)
	}
	return common.HexToAddress(s), nil
}
