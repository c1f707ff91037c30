// Package http is the JSON gateway dashboards use to drive the chain
// client.
package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

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
	"github.com/benomayebu/Farmily-Docs/internal/app/trace/usecases/accept_transfer"
	"github.com/benomayebu/Farmily-Docs/internal/app/trace/usecases/cancel_transfer"
	"github.com/benomayebu/Farmily-Docs/internal/app/trace/usecases/initiate_transfer"
	"github.com/benomayebu/Farmily-Docs/internal/app/trace/usecases/reconcile"
	"github.com/benomayebu/Farmily-Docs/internal/app/trace/usecases/register_product"
	"github.com/benomayebu/Farmily-Docs/internal/app/trace/usecases/register_user"
	"github.com/benomayebu/Farmily-Docs/internal/app/trace/usecases/sync_product"
	"github.com/benomayebu/Farmily-Docs/internal/app/trace/usecases/trigger_payment"
	"github.com/benomayebu/Farmily-Docs/internal/app/trace/usecases/update_info"
	"github.com/benomayebu/Farmily-Docs/internal/app/trace/usecases/update_status"
	"github.com/benomayebu/Farmily-Docs/internal/pkg/logging"
	"github.com/benomayebu/Farmily-Docs/internal/pkg/metrics"
)

// Commands groups the write use cases.
type Commands struct {
	RegisterProduct  *register_product.Interactor
	UpdateStatus     *update_status.Interactor
	UpdateInfo       *update_info.Interactor
	InitiateTransfer *initiate_transfer.Interactor
	AcceptTransfer   *accept_transfer.Interactor
	CancelTransfer   *cancel_transfer.Interactor
	TriggerPayment   *trigger_payment.Interactor
	RegisterUser     *register_user.Interactor
	SyncProduct      *sync_product.Interactor
	Reconcile        *reconcile.Interactor
}

// Queries groups the read side.
type Queries struct {
	GetProduct       *get_product.Query
	VerifyProduct    *verify_product.Query
	PendingTransfers *pending_transfers.Query
	TransferStatus   *transfer_status.Query
	ListActions      *list_actions.Query
	ProductJourney   *product_journey.Query
	ConsumerHistory  *consumer_history.Query
	Balance          *balance.Query
}

// Handler serves the gateway routes.
type Handler struct {
	commands Commands
	queries  Queries
	metrics  *metrics.Metrics
	ready    func(ctx context.Context) error
	timeout  time.Duration
	log      zerolog.Logger
}

// Option configures a Handler.
type Option func(*Handler)

func WithMetrics(m *metrics.Metrics) Option {
	return func(h *Handler) { h.metrics = m }
}

func WithLogger(l zerolog.Logger) Option {
	return func(h *Handler) { h.log = l }
}

// WithReadiness sets the /healthz probe. Without one /healthz always
// answers ok.
func WithReadiness(fn func(ctx context.Context) error) Option {
	return func(h *Handler) { h.ready = fn }
}

// WithTimeout bounds every /api request. Actions wait for a receipt, so
// the bound must exceed the receipt timeout.
func WithTimeout(d time.Duration) Option {
	return func(h *Handler) { h.timeout = d }
}

// NewHandler creates the gateway.
func NewHandler(commands Commands, queries Queries, opts ...Option) *Handler {
	h := &Handler{
		commands: commands,
		queries:  queries,
		timeout:  3 * time.Minute,
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.log = logging.Package(h.log, "gateway")
	return h
}

// Routes builds the router:
//
//	/healthz, /metrics
//	/api/v1/{role}/...   actions signed by the connected wallet
//	/api/v1/chain/...    contract reads
//	/api/v1/actions      ledger
//	/api/v1/wallet       connected account
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(accessLog(h.log))

	r.Get("/healthz", h.healthz)
	if h.metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.metrics.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Timeout(h.timeout))
		r.Use(forwardToken)

		r.Get("/wallet", h.wallet)

		r.Route("/chain", func(r chi.Router) {
			r.Get("/products/{productID}", h.getProduct)
			r.Get("/products/{productID}/journey", h.productJourney)
			r.Get("/verify", h.verifyProduct)
			r.Get("/transfers/pending", h.pendingTransfers)
			r.Get("/tx/{txHash}", h.transferStatus)
			r.Get("/history", h.consumerHistory)
			r.Get("/balance", h.balance)
		})

		r.Route("/actions", func(r chi.Router) {
			r.Get("/", h.listActions)
			r.Post("/reconcile", h.reconcile)
			r.Post("/{actionID}/reconcile", h.reconcile)
		})

		r.Route("/{role}", func(r chi.Router) {
			r.Post("/products", h.registerProduct)
			r.Put("/products/{productID}/status", h.updateStatus)
			r.Put("/products/{productID}/info", h.updateInfo)
			r.Post("/products/{productID}/sync", h.syncProduct)
			r.Post("/transfers", h.initiateTransfer)
			r.Post("/transfers/{productID}/accept", h.acceptTransfer)
			r.Post("/transfers/{productID}/cancel", h.cancelTransfer)
			r.Post("/payments", h.triggerPayment)
			r.Post("/users", h.registerUser)
		})
	})
	return r
}

func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	if h.ready != nil {
		if err := h.ready(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// fail writes err. When the action got far enough to have a ledger row, the
// row goes out with the error so the caller can follow up on it.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error, action *domain.Action) {
	if errors.Is(err, errBadBody) {
		writeJSON(w, http.StatusBadRequest, apiError{Code: "bad_request", Message: err.Error()})
		return
	}
	e := mapError(err)
	if e.status >= http.StatusInternalServerError {
		h.log.Warn().Err(err).Str("path", r.URL.Path).Msg("request failed")
	}
	if action == nil {
		writeJSON(w, e.status, e)
		return
	}
	writeJSON(w, e.status, actionError{Code: e.Code, Message: e.Message, Action: contracts.NewActionDTO(action)})
}

type actionError struct {
	Code    string               `json:"error"`
	Message string               `json:"message"`
	Action  *contracts.ActionDTO `json:"action"`
}

// role reads and validates the {role} path segment.
func role(r *http.Request) (domain.Role, error) {
	return domain.ParseRole(chi.URLParam(r, "role"))
}
