package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/benomayebu/Farmily-Docs/internal/app/trace/domain"
	"github.com/benomayebu/Farmily-Docs/internal/app/trace/queries/transfer_status"
	"github.com/benomayebu/Farmily-Docs/internal/app/trace/usecases/update_info"
	"github.com/benomayebu/Farmily-Docs/internal/backend"
	"github.com/benomayebu/Farmily-Docs/internal/chain"
)

// apiError is the JSON body of every failed request.
type apiError struct {
	status  int
	Code    string `json:"error"`
	Message string `json:"message"`
}

type errorMapping struct {
	target error
	status int
	code   string
}

// errorTable is checked in order; the first errors.Is match wins.
var errorTable = []errorMapping{
	// drift first: it wraps the backend failure that caused it
	{domain.ErrDrifted, http.StatusBadGateway, "drifted"},

	{domain.ErrUnknownStatus, http.StatusBadRequest, "unknown_status"},
	{domain.ErrEmptyBatchNumber, http.StatusBadRequest, "empty_batch_number"},
	{domain.ErrInvalidQuantity, http.StatusBadRequest, "invalid_quantity"},
	{domain.ErrInvalidDate, http.StatusBadRequest, "invalid_date"},
	{domain.ErrEmptyIdentifier, http.StatusBadRequest, "empty_identifier"},
	{domain.ErrUnknownRole, http.StatusBadRequest, "unknown_role"},
	{update_info.ErrNoDetails, http.StatusBadRequest, "no_details"},
	{transfer_status.ErrInvalidTxHash, http.StatusBadRequest, "invalid_tx_hash"},
	{chain.ErrInvalidIdentifier, http.StatusBadRequest, "invalid_identifier"},
	{chain.ErrInvalidAmount, http.StatusBadRequest, "invalid_amount"},

	{domain.ErrRoleNotPermitted, http.StatusForbidden, "role_not_permitted"},
	{domain.ErrNotTransferRecipient, http.StatusForbidden, "not_transfer_recipient"},
	{domain.ErrNotTransferInitiator, http.StatusForbidden, "not_transfer_initiator"},

	{domain.ErrProductNotFound, http.StatusNotFound, "product_not_found"},
	{domain.ErrTransferNotFound, http.StatusNotFound, "transfer_not_found"},
	{domain.ErrActionNotFound, http.StatusNotFound, "action_not_found"},

	{domain.ErrProductNotOnChain, http.StatusConflict, "product_not_on_chain"},
	{domain.ErrTransferPending, http.StatusConflict, "transfer_pending"},
	{domain.ErrRecipientUnknown, http.StatusConflict, "recipient_unknown"},
	{domain.ErrIdentifierTaken, http.StatusConflict, "identifier_taken"},
	{domain.ErrInvalidTransition, http.StatusConflict, "invalid_transition"},
	{domain.ErrVersionConflict, http.StatusConflict, "version_conflict"},
	{domain.ErrNothingToReplay, http.StatusConflict, "nothing_to_replay"},
	{domain.ErrActionInFlight, http.StatusConflict, "action_in_flight"},

	{backend.ErrTokenMissing, http.StatusUnauthorized, "token_missing"},
	{backend.ErrTokenExpired, http.StatusUnauthorized, "token_expired"},
	{chain.ErrNotConnected, http.StatusUnauthorized, "wallet_not_connected"},
	{chain.ErrNoAccount, http.StatusUnauthorized, "no_account"},
	{chain.ErrUserRejected, http.StatusForbidden, "user_rejected"},
	{chain.ErrNoProvider, http.StatusServiceUnavailable, "no_provider"},
	{chain.ErrInsufficientFunds, http.StatusPaymentRequired, "insufficient_funds"},
	{chain.ErrInsufficientGas, http.StatusConflict, "insufficient_gas"},
	{chain.ErrNonceConflict, http.StatusConflict, "nonce_conflict"},
	{chain.ErrExecutionReverted, http.StatusUnprocessableEntity, "execution_reverted"},
	{chain.ErrReverted, http.StatusUnprocessableEntity, "reverted"},
	{chain.ErrReceiptTimeout, http.StatusGatewayTimeout, "receipt_timeout"},
	{chain.ErrNodeRPC, http.StatusBadGateway, "node_error"},

	{context.DeadlineExceeded, http.StatusGatewayTimeout, "timeout"},
}

// mapError converts an error from the application layer to a status and a
// public body. Unknown errors become a bare 500.
func mapError(err error) apiError {
	for _, m := range errorTable {
		if errors.Is(err, m.target) {
			return apiError{status: m.status, Code: m.code, Message: message(err)}
		}
	}

	var httpErr *backend.HTTPError
	if errors.As(err, &httpErr) {
		status := http.StatusBadGateway
		if httpErr.Status >= 400 && httpErr.Status < 500 {
			status = httpErr.Status
		}
		return apiError{status: status, Code: "backend_error", Message: httpErr.Message}
	}
	return apiError{status: http.StatusInternalServerError, Code: "internal", Message: "internal server error"}
}

// message prefers the dashboard sentence of a classified chain error.
func message(err error) string {
	var chainErr *chain.Error
	if errors.As(err, &chainErr) {
		return chainErr.UserMessage()
	}
	return err.Error()
}
