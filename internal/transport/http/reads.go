package http

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/benomayebu/Farmily-Docs/internal/app/trace/contracts"
	"github.com/benomayebu/Farmily-Docs/internal/app/trace/domain"
	"github.com/benomayebu/Farmily-Docs/internal/app/trace/queries/balance"
	"github.com/benomayebu/Farmily-Docs/internal/app/trace/queries/consumer_history"
	"github.com/benomayebu/Farmily-Docs/internal/app/trace/queries/get_product"
	"github.com/benomayebu/Farmily-Docs/internal/app/trace/queries/list_actions"
	"github.com/benomayebu/Farmily-Docs/internal/app/trace/queries/pending_transfers"
	"github.com/benomayebu/Farmily-Docs/internal/app/trace/queries/product_journey"
	"github.com/benomayebu/Farmily-Docs/internal/app/trace/queries/transfer_status"
	"github.com/benomayebu/Farmily-Docs/internal/app/trace/queries/verify_product"
	"github.com/benomayebu/Farmily-Docs/internal/app/trace/usecases/reconcile"
)

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.queries.GetProduct.Execute(r.Context(), &get_product.Request{ProductID: chi.URLParam(r, "productID")})
	h.read(w, r, p, err)
}

func (h *Handler) productJourney(w http.ResponseWriter, r *http.Request) {
	events, err := h.queries.ProductJourney.Execute(r.Context(), &product_journey.Request{ProductID: chi.URLParam(r, "productID")})
	h.read(w, r, events, err)
}

// verifyProduct takes ?input= holding a raw id or scanned QR JSON.
func (h *Handler) verifyProduct(w http.ResponseWriter, r *http.Request) {
	res, err := h.queries.VerifyProduct.Execute(r.Context(), &verify_product.Request{Input: r.URL.Query().Get("input")})
	h.read(w, r, res, err)
}

func (h *Handler) pendingTransfers(w http.ResponseWriter, r *http.Request) {
	list, err := h.queries.PendingTransfers.Execute(r.Context(), &pending_transfers.Request{Account: r.URL.Query().Get("account")})
	h.read(w, r, list, err)
}

func (h *Handler) transferStatus(w http.ResponseWriter, r *http.Request) {
	res, err := h.queries.TransferStatus.Execute(r.Context(), &transfer_status.Request{TxHash: chi.URLParam(r, "txHash")})
	h.read(w, r, res, err)
}

func (h *Handler) consumerHistory(w http.ResponseWriter, r *http.Request) {
	list, err := h.queries.ConsumerHistory.Execute(r.Context(), &consumer_history.Request{Account: r.URL.Query().Get("account")})
	h.read(w, r, list, err)
}

func (h *Handler) balance(w http.ResponseWriter, r *http.Request) {
	res, err := h.queries.Balance.Execute(r.Context(), &balance.Request{Account: r.URL.Query().Get("account")})
	h.read(w, r, res, err)
}

// wallet connects the configured wallet and reports its account.
func (h *Handler) wallet(w http.ResponseWriter, r *http.Request) {
	res, err := h.queries.Balance.Execute(r.Context(), &balance.Request{})
	h.read(w, r, res, err)
}

// listActions handles GET /api/v1/actions.
//
// Query parameters: state (repeatable or comma separated), kind, role,
// product, tx, limit.
func (h *Handler) listActions(w http.ResponseWriter, r *http.Request) {
	filter, err := actionFilter(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Code: "bad_filter", Message: err.Error()})
		return
	}
	actions, err := h.queries.ListActions.Execute(r.Context(), &list_actions.Request{Filter: filter})
	if err != nil {
		h.fail(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Actions []*contracts.ActionDTO `json:"actions"`
		Count   int                    `json:"count"`
	}{actions, len(actions)})
}

func actionFilter(r *http.Request) (contracts.ActionFilter, error) {
	query := r.URL.Query()
	var filter contracts.ActionFilter

	for _, raw := range query["state"] {
		for _, s := range strings.Split(raw, ",") {
			state, err := domain.ParseActionState(s)
			if err != nil {
				return filter, err
			}
			filter.States = append(filter.States, state)
		}
	}
	if kind := query.Get("kind"); kind != "" {
		filter.Kind = domain.ActionKind(kind)
	}
	if rl := query.Get("role"); rl != "" {
		parsed, err := domain.ParseRole(rl)
		if err != nil {
			return filter, err
		}
		filter.Role = parsed
	}
	filter.ProductRef = query.Get("product")
	filter.TxHash = query.Get("tx")
	limit, err := positiveLimit(query.Get("limit"))
	if err != nil {
		return filter, err
	}
	filter.Limit = limit
	return filter, nil
}

// positiveLimit parses an optional limit parameter. Empty means zero, the
// caller's default.
func positiveLimit(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(s)
	if err != nil || limit <= 0 {
		return 0, fmt.Errorf("limit must be a positive integer, got %q", s)
	}
	return limit, nil
}

// reconcile handles POST /api/v1/actions/reconcile and
// POST /api/v1/actions/{actionID}/reconcile.
func (h *Handler) reconcile(w http.ResponseWriter, r *http.Request) {
	limit, err := positiveLimit(r.URL.Query().Get("limit"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Code: "bad_request", Message: err.Error()})
		return
	}
	req := reconcile.Request{ActionID: chi.URLParam(r, "actionID"), Limit: limit}
	resp, err := h.commands.Reconcile.Execute(r.Context(), &req)
	if err != nil {
		var action *domain.Action
		if resp != nil {
			action = resp.Action
		}
		h.fail(w, r, err, action)
		return
	}
	if resp.Action != nil {
		writeJSON(w, http.StatusOK, contracts.NewActionDTO(resp.Action))
		return
	}
	writeJSON(w, http.StatusOK, resp.Report)
}

func (h *Handler) read(w http.ResponseWriter, r *http.Request, v interface{}, err error) {
	if err != nil {
		h.fail(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, v)
}
