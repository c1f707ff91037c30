package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/benomayebu/Farmily-Docs/internal/app/trace/contracts"
	"github.com/benomayebu/Farmily-Docs/internal/app/trace/coordinator"
	"github.com/benomayebu/Farmily-Docs/internal/app/trace/domain"
	"github.com/benomayebu/Farmily-Docs/internal/app/trace/usecases/accept_transfer"
	"github.com/benomayebu/Farmily-Docs/internal/app/trace/usecases/cancel_transfer"
	"github.com/benomayebu/Farmily-Docs/internal/app/trace/usecases/initiate_transfer"
	"github.com/benomayebu/Farmily-Docs/internal/app/trace/usecases/register_product"
	"github.com/benomayebu/Farmily-Docs/internal/app/trace/usecases/register_user"
	"github.com/benomayebu/Farmily-Docs/internal/app/trace/usecases/sync_product"
	"github.com/benomayebu/Farmily-Docs/internal/app/trace/usecases/trigger_payment"
	"github.com/benomayebu/Farmily-Docs/internal/app/trace/usecases/update_info"
	"github.com/benomayebu/Farmily-Docs/internal/app/trace/usecases/update_status"
)

// actionResponse is the body of a finished action.
type actionResponse struct {
	Action      *contracts.ActionDTO `json:"action"`
	TxHash      string               `json:"txHash,omitempty"`
	BlockNumber uint64               `json:"blockNumber,omitempty"`
	Events      []contracts.EventDTO `json:"events,omitempty"`
}

func newActionResponse(res *coordinator.Result) *actionResponse {
	out := &actionResponse{Action: contracts.NewActionDTO(res.Action)}
	if res.Tx != nil {
		out.TxHash = res.Tx.Hash.Hex()
		if res.Tx.Receipt != nil {
			out.BlockNumber = res.Tx.Receipt.BlockNumber.Uint64()
		}
		for _, ev := range res.Tx.Events {
			out.Events = append(out.Events, contracts.NewEventDTO(ev))
		}
	}
	return out
}

// respond writes a coordinator result, or the error with the action it
// left behind.
func (h *Handler) respond(w http.ResponseWriter, r *http.Request, res *coordinator.Result, err error) {
	if err != nil {
		var action *domain.Action
		if res != nil {
			action = res.Action
		}
		h.fail(w, r, err, action)
		return
	}
	writeJSON(w, http.StatusOK, newActionResponse(res))
}

func (h *Handler) registerProduct(w http.ResponseWriter, r *http.Request) {
	role, err := role(r)
	if err == nil {
		err = role.Require(domain.RoleFarmer)
	}
	if err != nil {
		h.fail(w, r, err, nil)
		return
	}
	var req register_product.Request
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err, nil)
		return
	}
	resp, err := h.commands.RegisterProduct.Execute(r.Context(), &req)
	if err != nil {
		// the backend record exists once an action was started
		if resp != nil && resp.ActionID != "" {
			e := mapError(err)
			writeJSON(w, e.status, struct {
				*register_product.Response
				Error   string `json:"error"`
				Message string `json:"message"`
			}{resp, e.Code, e.Message})
			return
		}
		h.fail(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (h *Handler) updateStatus(w http.ResponseWriter, r *http.Request) {
	var req update_status.Request
	if !h.bind(w, r, &req, &req.Role, &req.ProductID) {
		return
	}
	res, err := h.commands.UpdateStatus.Execute(r.Context(), &req)
	h.respond(w, r, res, err)
}

func (h *Handler) updateInfo(w http.ResponseWriter, r *http.Request) {
	var req update_info.Request
	if !h.bind(w, r, &req, &req.Role, &req.ProductID) {
		return
	}
	res, err := h.commands.UpdateInfo.Execute(r.Context(), &req)
	h.respond(w, r, res, err)
}

func (h *Handler) initiateTransfer(w http.ResponseWriter, r *http.Request) {
	var req initiate_transfer.Request
	if !h.bind(w, r, &req, &req.Role, nil) {
		return
	}
	res, err := h.commands.InitiateTransfer.Execute(r.Context(), &req)
	h.respond(w, r, res, err)
}

func (h *Handler) acceptTransfer(w http.ResponseWriter, r *http.Request) {
	var req accept_transfer.Request
	if !h.bind(w, r, &req, &req.Role, &req.ProductID) {
		return
	}
	res, err := h.commands.AcceptTransfer.Execute(r.Context(), &req)
	h.respond(w, r, res, err)
}

func (h *Handler) cancelTransfer(w http.ResponseWriter, r *http.Request) {
	var req cancel_transfer.Request
	if !h.bind(w, r, &req, &req.Role, &req.ProductID) {
		return
	}
	res, err := h.commands.CancelTransfer.Execute(r.Context(), &req)
	h.respond(w, r, res, err)
}

func (h *Handler) triggerPayment(w http.ResponseWriter, r *http.Request) {
	var req trigger_payment.Request
	if !h.bind(w, r, &req, &req.Role, nil) {
		return
	}
	resp, err := h.commands.TriggerPayment.Execute(r.Context(), &req)
	var res *coordinator.Result
	if resp != nil {
		res = resp.Result
	}
	if err != nil {
		h.respond(w, r, res, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		*actionResponse
		Payer    string `json:"payer,omitempty"`
		Receiver string `json:"receiver,omitempty"`
		Wei      string `json:"wei"`
	}{newActionResponse(res), resp.Payer, resp.Receiver, resp.Wei})
}

func (h *Handler) registerUser(w http.ResponseWriter, r *http.Request) {
	var req register_user.Request
	if !h.bind(w, r, &req, &req.Role, nil) {
		return
	}
	res, err := h.commands.RegisterUser.Execute(r.Context(), &req)
	h.respond(w, r, res, err)
}

func (h *Handler) syncProduct(w http.ResponseWriter, r *http.Request) {
	var req sync_product.Request
	if !h.bind(w, r, &req, &req.Role, &req.ProductID) {
		return
	}
	resp, err := h.commands.SyncProduct.Execute(r.Context(), &req)
	if err != nil {
		h.fail(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// bind decodes the body into req, then overrides the role and, when
// productID is not nil, the product id with the path values.
func (h *Handler) bind(w http.ResponseWriter, r *http.Request, req interface{}, dst *domain.Role, productID *string) bool {
	rl, err := role(r)
	if err == nil {
		err = decode(r, req)
	}
	if err != nil {
		h.fail(w, r, err, nil)
		return false
	}
	*dst = rl
	if productID != nil {
		*productID = chi.URLParam(r, "productID")
	}
	return true
}
