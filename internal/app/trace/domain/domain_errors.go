package domain

import "errors"

// Domain errors as sentinel values
var (
	// Product errors
	ErrUnknownStatus     = errors.New("unknown product status")
	ErrProductNotFound   = errors.New("product not found")
	ErrProductNotOnChain = errors.New("product has no blockchain id")
	ErrEmptyBatchNumber  = errors.New("batch number cannot be empty")
	ErrInvalidQuantity   = errors.New("quantity must be positive")
	ErrInvalidDate       = errors.New("production date must be YYYY-MM-DD or RFC3339")

	// Transfer errors
	ErrTransferNotFound     = errors.New("no pending transfer for product")
	ErrNotTransferRecipient = errors.New("pending transfer is addressed to another account")
	ErrNotTransferInitiator = errors.New("pending transfer was initiated by another account")
	ErrTransferPending      = errors.New("product already has a pending transfer")
	ErrRecipientUnknown     = errors.New("recipient identifier is not registered")

	// User errors
	ErrIdentifierTaken = errors.New("identifier already registered")
	ErrEmptyIdentifier = errors.New("identifier cannot be empty")

	// Role errors
	ErrUnknownRole      = errors.New("unknown role")
	ErrRoleNotPermitted = errors.New("role may not perform this action")

	// Action errors
	ErrActionNotFound    = errors.New("action not found")
	ErrUnknownState      = errors.New("unknown action state")
	ErrInvalidTransition = errors.New("invalid action state transition")
	ErrVersionConflict   = errors.New("action was modified concurrently")
	ErrDrifted           = errors.New("chain updated but backend record was not")
	ErrNothingToReplay   = errors.New("action has no stored backend request")
	ErrActionInFlight    = errors.New("action backend write is still in flight")
)
