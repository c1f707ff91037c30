package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benomayebu/Farmily-Docs/internal/app/trace/domain"
	"github.com/benomayebu/Farmily-Docs/internal/app/trace/queries/balance"
	"github.com/benomayebu/Farmily-Docs/internal/app/trace/queries/consumer_history"
	"github.com/benomayebu/Farmily-Docs/internal/app/trace/queries/get_product"
	"github.com/benomayebu/Farmily-Docs/internal/app/trace/queries/list_actions"
	"github.com/benomayebu/Farmily-Docs/internal/app/trace/queries/pending_transfers"
	"github.com/benomayebu/Farmily-Docs/internal/app/trace/queries/product_journey"
	"github.com/benomayebu/Farmily-Docs/internal/app/trace/queries/transfer_status"
	"github.com/benomayebu/Farmily-Docs/internal/app/trace/queries/verify_product"
	"github.com/benomayebu/Farmily-Docs/internal/app/trace/tracetest"
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
	"github.com/benomayebu/Farmily-Docs/internal/backend"
	"github.com/benomayebu/Farmily-Docs/internal/chain"
	"github.com/benomayebu/Farmily-Docs/internal/pkg/metrics"
)

type gateway struct {
	f   *tracetest.Fixture
	srv *httptest.Server
}

func newGateway(t *testing.T, opts ...Option) *gateway {
	t.Helper()
	f := tracetest.New(t)
	wallet, contract := f.Wallet(), f.Env.Contract
	commands := Commands{
		RegisterProduct:  register_product.NewInteractor(f.Coord, wallet, f.Rest),
		UpdateStatus:     update_status.NewInteractor(f.Coord, wallet, f.Rest),
		UpdateInfo:       update_info.NewInteractor(f.Coord, wallet, f.Rest),
		InitiateTransfer: initiate_transfer.NewInteractor(f.Coord, wallet, f.Rest),
		AcceptTransfer:   accept_transfer.NewInteractor(f.Coord, wallet),
		CancelTransfer:   cancel_transfer.NewInteractor(f.Coord, wallet),
		TriggerPayment:   trigger_payment.NewInteractor(f.Coord, wallet),
		RegisterUser:     register_user.NewInteractor(f.Coord, wallet),
		SyncProduct:      sync_product.NewInteractor(contract, f.Rest),
		Reconcile:        reconcile.NewInteractor(f.Coord),
	}
	queries := Queries{
		GetProduct:       get_product.NewQuery(contract),
		VerifyProduct:    verify_product.NewQuery(contract),
		PendingTransfers: pending_transfers.NewQuery(contract, wallet),
		TransferStatus:   transfer_status.NewQuery(contract),
		ListActions:      list_actions.NewQuery(f.Ledger),
		ProductJourney:   product_journey.NewQuery(contract),
		ConsumerHistory:  consumer_history.NewQuery(contract, wallet),
		Balance:          balance.NewQuery(contract, wallet),
	}
	srv := httptest.NewServer(NewHandler(commands, queries, opts...).Routes())
	t.Cleanup(srv.Close)
	return &gateway{f: f, srv: srv}
}

func (g *gateway) do(t *testing.T, method, path, body string) (int, map[string]interface{}) {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, g.srv.URL+path, rd)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]interface{}{}
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

func TestHealthz(t *testing.T) {
	g := newGateway(t)
	status, body := g.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])

	down := newGateway(t, WithReadiness(func(context.Context) error { return errors.New("ledger unreachable") }))
	status, body = down.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, "ledger unreachable", body["error"])
}

func TestMetricsRoute(t *testing.T) {
	g := newGateway(t, WithMetrics(metrics.New()))
	resp, err := http.Get(g.srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// not mounted without metrics
	plain := newGateway(t)
	resp2, err := http.Get(plain.srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp2.StatusCode)
}

func TestRegisterProductRoute(t *testing.T) {
	g := newGateway(t)
	g.f.Rest.Reply(http.MethodPost, "farmer", "/registerProduct", http.StatusCreated, `{"product":{"_id":"65a1f0"}}`)

	status, body := g.do(t, http.MethodPost, "/api/v1/farmer/products",
		`{"batchNumber":"B-001","type":"carrot","origin":"FarmX","productionDate":"2024-01-01","quantity":100,"price":"0.5"}`)
	require.Equal(t, http.StatusCreated, status, body)
	assert.Equal(t, "65a1f0", body["productId"])
	assert.Equal(t, string(domain.StateSynced), body["state"])
	assert.Len(t, body["blockchainId"], chain.IDLength)

	// only farmers register products
	status, body = g.do(t, http.MethodPost, "/api/v1/retailer/products", `{"batchNumber":"B-002"}`)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "role_not_permitted", body["error"])
}

func TestActionRoute_RejectedCarriesAction(t *testing.T) {
	g := newGateway(t)

	status, body := g.do(t, http.MethodPost, "/api/v1/distributor/transfers/0xab/accept", "")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "transfer_not_found", body["error"])
	action, ok := body["action"].(map[string]interface{})
	require.True(t, ok, "rejected action is returned")
	assert.Equal(t, string(domain.StateRejected), action["state"])
	assert.Equal(t, string(domain.KindAcceptTransfer), action["kind"])
	assert.Empty(t, g.f.Rest.Requests())

	// the rejection is in the ledger
	status, body = g.do(t, http.MethodGet, "/api/v1/actions?state=rejected", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 1.0, body["count"])
}

func TestActionRoute_UpdateStatus(t *testing.T) {
	g := newGateway(t)
	id := g.f.CreateProduct(t, "B-050")
	g.f.Rest.Reply(http.MethodPut, "retailer", "/updateProductStatus/db-9", http.StatusOK, `{}`)

	status, body := g.do(t, http.MethodPut, "/api/v1/retailer/products/db-9/status",
		fmt.Sprintf(`{"blockchainId":%q,"status":"Delivered"}`, id))
	require.Equal(t, http.StatusOK, status, body)
	action := body["action"].(map[string]interface{})
	assert.Equal(t, string(domain.StateSynced), action["state"])
	assert.NotEmpty(t, body["txHash"])
	assert.NotEmpty(t, body["events"])

	status, body = g.do(t, http.MethodPut, "/api/v1/retailer/products/db-9/status",
		fmt.Sprintf(`{"blockchainId":%q,"status":"Teleported"}`, id))
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "unknown_status", body["error"])
}

func TestActionRoute_Drifted(t *testing.T) {
	g := newGateway(t)
	id := g.f.CreateProduct(t, "B-051")
	g.f.Rest.Reply(http.MethodPut, "retailer", "/updateProductStatus/db-9", http.StatusInternalServerError, `{"message":"db down"}`)

	status, body := g.do(t, http.MethodPut, "/api/v1/retailer/products/db-9/status",
		fmt.Sprintf(`{"blockchainId":%q,"status":"InTransit"}`, id))
	assert.Equal(t, http.StatusBadGateway, status)
	assert.Equal(t, "drifted", body["error"])
	action := body["action"].(map[string]interface{})
	assert.Equal(t, string(domain.StateDrifted), action["state"])

	// replay once the backend is back
	g.f.Rest.Reply(http.MethodPut, "retailer", "/updateProductStatus/db-9", http.StatusOK, `{}`)
	status, body = g.do(t, http.MethodPost, "/api/v1/actions/"+action["actionId"].(string)+"/reconcile", "")
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, string(domain.StateSynced), body["state"])
}

func TestReadRoutes(t *testing.T) {
	g := newGateway(t)
	id := g.f.CreateProduct(t, "B-060")

	status, body := g.do(t, http.MethodGet, "/api/v1/chain/products/"+id, "")
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "B-060", body["batchNumber"])

	status, body = g.do(t, http.MethodGet, "/api/v1/chain/verify?input="+id, "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["authentic"])

	status, _ = g.do(t, http.MethodGet, "/api/v1/chain/products/not-hex", "")
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = g.do(t, http.MethodGet, "/api/v1/chain/tx/0x12", "")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "invalid_tx_hash", body["error"])

	status, body = g.do(t, http.MethodGet, "/api/v1/wallet", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, g.f.Env.Wallet.Address().Hex(), body["account"])

	status, body = g.do(t, http.MethodGet, "/api/v1/actions?state=bogus", "")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "bad_filter", body["error"])
}

func TestBadBody(t *testing.T) {
	g := newGateway(t)
	status, body := g.do(t, http.MethodPost, "/api/v1/farmer/transfers", `{"quantity":`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "bad_request", body["error"])

	status, body = g.do(t, http.MethodPost, "/api/v1/wizard/transfers", `{}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "unknown_role", body["error"])
}

func TestBadLimit(t *testing.T) {
	g := newGateway(t)
	for _, limit := range []string{"ten", "0", "-5"} {
		status, body := g.do(t, http.MethodPost, "/api/v1/actions/reconcile?limit="+limit, "")
		assert.Equal(t, http.StatusBadRequest, status, limit)
		assert.Equal(t, "bad_request", body["error"], limit)

		status, body = g.do(t, http.MethodGet, "/api/v1/actions?limit="+limit, "")
		assert.Equal(t, http.StatusBadRequest, status, limit)
		assert.Equal(t, "bad_filter", body["error"], limit)
	}

	status, body := g.do(t, http.MethodPost, "/api/v1/actions/reconcile?limit=10", "")
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "checked")
}

func TestForwardToken(t *testing.T) {
	var got string
	var ok bool
	h := forwardToken(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		got, ok = backend.TokenFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer abc.def")
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.True(t, ok)
	assert.Equal(t, "abc.def", got)

	ok = false
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.False(t, ok)
}

func TestMapError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"wrapped domain", fmt.Errorf("x: %w", domain.ErrTransferPending), http.StatusConflict, "transfer_pending"},
		{"chain kind", &chain.Error{Kind: chain.ErrUserRejected, Op: "createProduct"}, http.StatusForbidden, "user_rejected"},
		{"drift over backend", fmt.Errorf("%w: %w", domain.ErrDrifted, &backend.HTTPError{Status: 500, Message: "boom"}), http.StatusBadGateway, "drifted"},
		{"backend 4xx passes through", &backend.HTTPError{Status: 404, Message: "Product not found"}, http.StatusNotFound, "backend_error"},
		{"backend 5xx", &backend.HTTPError{Status: 503, Message: "down"}, http.StatusBadGateway, "backend_error"},
		{"unknown", errors.New("kaboom"), http.StatusInternalServerError, "internal"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := mapError(tt.err)
			assert.Equal(t, tt.status, e.status)
			assert.Equal(t, tt.code, e.Code)
		})
	}

	e := mapError(&chain.Error{Kind: chain.ErrUserRejected, Op: "createProduct"})
	assert.Equal(t, "Transaction was rejected by the user.", e.Message)
	assert.Equal(t, "internal server error", mapError(errors.New("secret detail")).Message)
}
