package coordinator_test

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benomayebu/Farmily-Docs/internal/app/trace/contracts"
	"github.com/benomayebu/Farmily-Docs/internal/app/trace/coordinator"
	"github.com/benomayebu/Farmily-Docs/internal/app/trace/domain"
	"github.com/benomayebu/Farmily-Docs/internal/app/trace/repo"
	"github.com/benomayebu/Farmily-Docs/internal/backend"
	"github.com/benomayebu/Farmily-Docs/internal/backend/backendtest"
	"github.com/benomayebu/Farmily-Docs/internal/chain"
	"github.com/benomayebu/Farmily-Docs/internal/chain/chaintest"
	"github.com/benomayebu/Farmily-Docs/internal/pkg/clock"
)

type fixture struct {
	env    *chaintest.Env
	rest   *backendtest.Recorder
	ledger *repo.MemoryLedger
	clock  *clock.MockClock
	coord  *coordinator.Coordinator
	ids    int
}

func newFixture(t *testing.T, opts ...chain.ContractOption) *fixture {
	t.Helper()
	f := &fixture{
		env:   chaintest.NewEnv(opts...),
		rest:  backendtest.NewRecorder(),
		clock: clock.NewMockClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)),
	}
	f.ledger = repo.NewMemoryLedger(f.clock)
	f.coord = coordinator.New(f.ledger, f.rest, f.env.Contract,
		coordinator.WithClock(f.clock),
		coordinator.WithIDs(func() string { f.ids++; return fmt.Sprintf("act-%d", f.ids) }),
	)
	f.coord.Register(domain.KindRegisterProduct, linkProduct)
	return f
}

func linkProduct(a *domain.Action, _ *chain.TxResult) (*backend.Request, error) {
	req := backend.LinkBlockchainRequest(a.ProductRef(), a.ChainID(), a.TxHash())
	return &req, nil
}

// another builds a second coordinator over the same chain and ledger, as a
// separate reconciler process would.
func (f *fixture) another(ledger contracts.Ledger, rest coordinator.Backend, opts ...coordinator.Option) *coordinator.Coordinator {
	opts = append([]coordinator.Option{coordinator.WithClock(f.clock)}, opts...)
	c := coordinator.New(ledger, rest, f.env.Contract, opts...)
	c.Register(domain.KindRegisterProduct, linkProduct)
	return c
}

// pinnedLedger serves one action copy loaded earlier, so a reconciler works
// from a stale read.
type pinnedLedger struct {
	*repo.MemoryLedger
	pinned *domain.Action
}

func (l *pinnedLedger) Get(ctx context.Context, actionID string) (*domain.Action, error) {
	if l.pinned != nil && l.pinned.ID() == actionID {
		return l.pinned, nil
	}
	return l.MemoryLedger.Get(ctx, actionID)
}

// backendFunc adapts a function to coordinator.Backend.
type backendFunc func(ctx context.Context, req backend.Request) (*backend.Response, error)

func (fn backendFunc) Do(ctx context.Context, req backend.Request) (*backend.Response, error) {
	return fn(ctx, req)
}

const linkPath = "/products/db-1/blockchain"

func createPlan() coordinator.Plan {
	return coordinator.Plan{
		Kind:       domain.KindRegisterProduct,
		Role:       domain.RoleFarmer,
		ProductRef: "db-1",
		Payload:    map[string]string{"batchNumber": "B-001"},
		Call: chain.Call{
			Method: chain.MethodCreateProduct,
			Args:   []interface{}{"B-001", "carrot", "FarmX", big.NewInt(1704067200), big.NewInt(100), big.NewInt(5)},
		},
	}
}

func TestRun_Synced(t *testing.T) {
	f := newFixture(t)
	res, err := f.coord.Run(context.Background(), f.env.Session(), createPlan())
	require.NoError(t, err)

	assert.Equal(t, domain.StateSynced, res.State())
	require.NotNil(t, res.Tx)
	ev, ok := chain.FindEvent(res.Tx.Events, chain.EventProductCreated)
	require.True(t, ok)
	assert.Equal(t, ev.ProductID(), res.Action.ChainID())

	req, ok := f.rest.Last(http.MethodPut, "farmer", "/products/db-1/blockchain")
	require.True(t, ok)
	body := backendtest.BodyMap(req)
	assert.Equal(t, ev.ProductID(), body["blockchainId"])
	assert.Equal(t, res.Tx.Hash.Hex(), body["txHash"])

	stored, err := f.ledger.Get(context.Background(), res.Action.ID())
	require.NoError(t, err)
	assert.Equal(t, domain.StateSynced, stored.State())

	var types []string
	for _, e := range f.ledger.Events() {
		types = append(types, e.EventType)
	}
	assert.Equal(t, []string{
		"action.submitting", "action.awaiting_receipt", "action.committed", "action.persisting", "action.synced",
	}, types)
}

func TestRun_ChainFailureNeverCallsBackend(t *testing.T) {
	tests := []struct {
		name      string
		setup     func(f *fixture)
		plan      func(p coordinator.Plan) coordinator.Plan
		wantState domain.ActionState
		wantErr   error
	}{
		{
			name:      "signer rejects",
			setup:     func(f *fixture) { f.env.Wallet.RejectSigning(true) },
			wantState: domain.StateRejected,
			wantErr:   chain.ErrUserRejected,
		},
		{
			name:      "estimate reverts",
			plan:      func(p coordinator.Plan) coordinator.Plan { p.Call.Args[0] = ""; return p },
			wantState: domain.StateRejected,
			wantErr:   chain.ErrExecutionReverted,
		},
		{
			name:      "node refuses",
			setup:     func(f *fixture) { f.env.Backend.SendErr = errors.New("nonce too low") },
			wantState: domain.StateRejected,
			wantErr:   chain.ErrNonceConflict,
		},
		{
			name:      "mined with failed status",
			setup:     func(f *fixture) { f.env.Backend.ForceRevert = true },
			wantState: domain.StateReverted,
			wantErr:   chain.ErrReverted,
		},
		{
			name: "precheck fails",
			plan: func(p coordinator.Plan) coordinator.Plan {
				p.Precheck = func(context.Context) error { return domain.ErrTransferNotFound }
				return p
			},
			wantState: domain.StateRejected,
			wantErr:   domain.ErrTransferNotFound,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			session := f.env.Session()
			if tt.setup != nil {
				tt.setup(f)
			}
			plan := createPlan()
			if tt.plan != nil {
				plan = tt.plan(plan)
			}

			res, err := f.coord.Run(context.Background(), session, plan)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, tt.wantState, res.State())
			assert.Empty(t, f.rest.Requests(), "backend must not be called")

			stored, gerr := f.ledger.Get(context.Background(), res.Action.ID())
			require.NoError(t, gerr)
			assert.Equal(t, tt.wantState, stored.State())
			assert.NotEmpty(t, stored.LastError())
		})
	}
}

func TestRun_PrecheckSendsNothing(t *testing.T) {
	f := newFixture(t)
	plan := createPlan()
	plan.Precheck = func(context.Context) error { return domain.ErrTransferPending }

	_, err := f.coord.Run(context.Background(), f.env.Session(), plan)
	assert.ErrorIs(t, err, domain.ErrTransferPending)
	assert.Empty(t, f.env.Backend.Sent())
	assert.Equal(t, 0, f.env.Wallet.Signs())
}

func TestRun_LedgerDownAbortsBeforeSigning(t *testing.T) {
	f := newFixture(t)
	f.ledger.SetFailWrites(errors.New("spanner unavailable"))

	_, err := f.coord.Run(context.Background(), f.env.Session(), createPlan())
	require.Error(t, err)
	assert.Empty(t, f.env.Backend.Sent())
	assert.Empty(t, f.rest.Requests())
}

func TestRun_MissingTokenRejectsBeforeSigning(t *testing.T) {
	f := newFixture(t)
	f.rest.RevokeToken("farmer")

	res, err := f.coord.Run(context.Background(), f.env.Session(), createPlan())
	assert.ErrorIs(t, err, backend.ErrTokenMissing)
	assert.Equal(t, domain.StateRejected, res.State())
	assert.Empty(t, f.env.Backend.Sent())
	assert.Equal(t, 0, f.env.Wallet.Signs())

	stored, err := f.ledger.Get(context.Background(), res.Action.ID())
	require.NoError(t, err)
	assert.Equal(t, domain.StateRejected, stored.State())
}

func TestRun_NoSession(t *testing.T) {
	f := newFixture(t)
	_, err := f.coord.Run(context.Background(), nil, createPlan())
	assert.ErrorIs(t, err, chain.ErrNotConnected)
}

func TestRun_NoPersisterSyncsOnCommit(t *testing.T) {
	f := newFixture(t)
	s := f.env.Session()
	created, err := f.coord.Run(context.Background(), s, createPlan())
	require.NoError(t, err)
	// nothing is mirrored, so no consumer token is needed
	f.rest.RevokeToken("consumer")

	res, err := f.coord.Run(context.Background(), s, coordinator.Plan{
		Kind:    domain.KindTriggerPayment,
		Role:    domain.RoleConsumer,
		ChainID: created.Action.ChainID(),
		Call: chain.Call{
			Method: chain.MethodTriggerPayment,
			Args:   []interface{}{mustID(t, created.Action.ChainID())},
			Value:  big.NewInt(5),
		},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StateSynced, res.State())
	assert.Len(t, f.rest.Requests(), 1)
	_, ok := chain.FindEvent(res.Tx.Events, chain.EventPaymentTriggered)
	assert.True(t, ok)
}

func TestRun_BackendFailureDriftsThenReconciles(t *testing.T) {
	f := newFixture(t)
	f.rest.Reply(http.MethodPut, "farmer", "/products/db-1/blockchain", http.StatusServiceUnavailable, "database offline")

	res, err := f.coord.Run(context.Background(), f.env.Session(), createPlan())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrDrifted)
	var httpErr *backend.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, "database offline", httpErr.Message)
	assert.Equal(t, domain.StateDrifted, res.State())

	stored, err := f.ledger.Get(context.Background(), res.Action.ID())
	require.NoError(t, err)
	assert.Equal(t, domain.StateDrifted, stored.State())
	require.NotNil(t, stored.Persist())
	assert.Equal(t, "/products/db-1/blockchain", stored.Persist().Path)

	// backend recovers
	f.rest.Reply(http.MethodPut, "farmer", "/products/db-1/blockchain", http.StatusOK, `{"ok":true}`)
	report, err := f.coord.Reconcile(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Checked)
	assert.Equal(t, 1, report.Synced)
	assert.Empty(t, report.Errors)

	stored, _ = f.ledger.Get(context.Background(), res.Action.ID())
	assert.Equal(t, domain.StateSynced, stored.State())
	assert.Equal(t, int64(2), stored.Attempts())
	assert.Equal(t, 2, f.rest.Count(http.MethodPut, "farmer", "/products/db-1/blockchain"))

	// the replayed body is the stored one
	req, _ := f.rest.Last(http.MethodPut, "farmer", "/products/db-1/blockchain")
	assert.Equal(t, res.Action.ChainID(), backendtest.BodyMap(req)["blockchainId"])
}

func TestRun_ReceiptTimeoutThenReconcile(t *testing.T) {
	f := newFixture(t, chain.WithReceiptPolling(time.Millisecond, 20*time.Millisecond))
	f.env.Backend.ReceiptDelay = 1_000_000

	res, err := f.coord.Run(context.Background(), f.env.Session(), createPlan())
	assert.ErrorIs(t, err, chain.ErrReceiptTimeout)
	assert.Equal(t, domain.StateAwaitingReceipt, res.State())
	assert.Empty(t, f.rest.Requests())

	// not stale yet
	report, err := f.coord.Reconcile(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Checked)

	f.env.Backend.ReceiptDelay = 0
	f.clock.Advance(coordinator.DefaultStaleAfter)
	report, err = f.coord.Reconcile(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Synced)

	stored, _ := f.ledger.Get(context.Background(), res.Action.ID())
	assert.Equal(t, domain.StateSynced, stored.State())
	assert.Len(t, stored.ChainID(), chain.IDLength)
	assert.Equal(t, 1, f.rest.Count(http.MethodPut, "farmer", "/products/db-1/blockchain"))
}

func TestReconcileAction_RevertedReceipt(t *testing.T) {
	f := newFixture(t, chain.WithReceiptPolling(time.Millisecond, 10*time.Millisecond))
	f.env.Backend.ReceiptDelay = 1_000_000
	f.env.Backend.ForceRevert = true

	res, err := f.coord.Run(context.Background(), f.env.Session(), createPlan())
	assert.ErrorIs(t, err, chain.ErrReceiptTimeout)

	f.env.Backend.ReceiptDelay = 0
	action, err := f.coord.ReconcileAction(context.Background(), res.Action.ID())
	require.NoError(t, err)
	assert.Equal(t, domain.StateReverted, action.State())
	assert.Empty(t, f.rest.Requests())
}

func TestReconcile_RebuildsWhenPersisterFailed(t *testing.T) {
	f := newFixture(t)
	calls := 0
	f.coord.Register(domain.KindRegisterProduct, func(a *domain.Action, tx *chain.TxResult) (*backend.Request, error) {
		calls++
		if calls == 1 {
			return nil, errors.New("payload unreadable")
		}
		req := backend.LinkBlockchainRequest(a.ProductRef(), a.ChainID(), a.TxHash())
		return &req, nil
	})

	res, err := f.coord.Run(context.Background(), f.env.Session(), createPlan())
	assert.ErrorIs(t, err, domain.ErrDrifted)
	assert.Empty(t, f.rest.Requests())

	action, err := f.coord.ReconcileAction(context.Background(), res.Action.ID())
	require.NoError(t, err)
	assert.Equal(t, domain.StateSynced, action.State())
	assert.Equal(t, 1, f.rest.Count(http.MethodPut, "farmer", "/products/db-1/blockchain"))
}

func TestReconcileAction_StaleCopyDoesNotResend(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.rest.Reply(http.MethodPut, "farmer", linkPath, http.StatusServiceUnavailable, "database offline")
	res, err := f.coord.Run(ctx, f.env.Session(), createPlan())
	require.ErrorIs(t, err, domain.ErrDrifted)

	first, err := f.ledger.Get(ctx, res.Action.ID())
	require.NoError(t, err)
	second, err := f.ledger.Get(ctx, res.Action.ID())
	require.NoError(t, err)
	require.Equal(t, domain.StateDrifted, second.State())

	f.rest.Reply(http.MethodPut, "farmer", linkPath, http.StatusOK, `{"ok":true}`)
	action, err := f.another(&pinnedLedger{MemoryLedger: f.ledger, pinned: first}, f.rest).
		ReconcileAction(ctx, res.Action.ID())
	require.NoError(t, err)
	assert.Equal(t, domain.StateSynced, action.State())
	assert.Equal(t, 2, f.rest.Count(http.MethodPut, "farmer", linkPath))

	// the second reconciler still holds the drifted copy
	_, err = f.another(&pinnedLedger{MemoryLedger: f.ledger, pinned: second}, f.rest).
		ReconcileAction(ctx, res.Action.ID())
	assert.ErrorIs(t, err, domain.ErrVersionConflict)
	assert.Equal(t, 2, f.rest.Count(http.MethodPut, "farmer", linkPath), "backend written once per claim")

	stored, err := f.ledger.Get(ctx, res.Action.ID())
	require.NoError(t, err)
	assert.Equal(t, domain.StateSynced, stored.State())
	assert.Equal(t, int64(2), stored.Attempts())
}

func TestReconcile_ClaimNotRecordedSendsNothing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.rest.Reply(http.MethodPut, "farmer", linkPath, http.StatusServiceUnavailable, "database offline")
	res, err := f.coord.Run(ctx, f.env.Session(), createPlan())
	require.ErrorIs(t, err, domain.ErrDrifted)
	f.rest.Reply(http.MethodPut, "farmer", linkPath, http.StatusOK, `{"ok":true}`)

	f.ledger.SetFailWrites(errors.New("spanner unavailable"))
	report, err := f.coord.Reconcile(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Checked)
	assert.Len(t, report.Errors, 1)
	assert.Equal(t, 1, f.rest.Count(http.MethodPut, "farmer", linkPath))

	f.ledger.SetFailWrites(nil)
	stored, err := f.ledger.Get(ctx, res.Action.ID())
	require.NoError(t, err)
	assert.Equal(t, domain.StateDrifted, stored.State())
}

func TestReconcileAction_PersistingInFlight(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	var inFlight error
	var rest coordinator.Backend = f.rest
	f.coord = f.another(f.ledger, backendFunc(func(ctx context.Context, req backend.Request) (*backend.Response, error) {
		// while the first write is outstanding the row sits in persisting
		_, inFlight = f.another(f.ledger, rest).ReconcileAction(ctx, "act-1")
		return rest.Do(ctx, req)
	}), coordinator.WithIDs(func() string { return "act-1" }))

	res, err := f.coord.Run(ctx, f.env.Session(), createPlan())
	require.NoError(t, err)
	assert.Equal(t, domain.StateSynced, res.State())
	assert.ErrorIs(t, inFlight, domain.ErrActionInFlight)
	assert.Equal(t, 1, f.rest.Count(http.MethodPut, "farmer", linkPath))
}

func TestReconcile_TakesOverStalePersisting(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	// the first writer dies after claiming the send
	crashed := f.another(f.ledger, backendFunc(func(context.Context, backend.Request) (*backend.Response, error) {
		panic("process killed")
	}), coordinator.WithIDs(func() string { return "act-1" }))
	require.Panics(t, func() { _, _ = crashed.Run(ctx, f.env.Session(), createPlan()) })

	stored, err := f.ledger.Get(ctx, "act-1")
	require.NoError(t, err)
	require.Equal(t, domain.StatePersisting, stored.State())

	f.clock.Advance(coordinator.DefaultStaleAfter)
	report, err := f.coord.Reconcile(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Synced)

	stored, err = f.ledger.Get(ctx, "act-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StateSynced, stored.State())
	assert.Equal(t, int64(2), stored.Attempts())
	assert.Equal(t, 1, f.rest.Count(http.MethodPut, "farmer", linkPath))
}

func TestRun_BackendWriteOutlivesCaller(t *testing.T) {
	f := newFixture(t)
	ctx, hangUp := context.WithCancel(context.Background())
	defer hangUp()

	var seen error
	c := f.another(f.ledger, backendFunc(func(ctx context.Context, req backend.Request) (*backend.Response, error) {
		hangUp()
		seen = ctx.Err()
		return f.rest.Do(ctx, req)
	}))

	res, err := c.Run(ctx, f.env.Session(), createPlan())
	require.NoError(t, err)
	assert.NoError(t, seen)
	assert.Equal(t, domain.StateSynced, res.State())
	assert.Equal(t, 1, f.rest.Count(http.MethodPut, "farmer", linkPath))
}

func TestRun_BackendWriteBoundedByPersistTimeout(t *testing.T) {
	f := newFixture(t)
	c := f.another(f.ledger, backendFunc(func(ctx context.Context, _ backend.Request) (*backend.Response, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}), coordinator.WithPersistTimeout(20*time.Millisecond))

	res, err := c.Run(context.Background(), f.env.Session(), createPlan())
	assert.ErrorIs(t, err, domain.ErrDrifted)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, domain.StateDrifted, res.State())

	stored, gerr := f.ledger.Get(context.Background(), res.Action.ID())
	require.NoError(t, gerr)
	assert.Equal(t, domain.StateDrifted, stored.State())
}

func mustID(t *testing.T, id string) [32]byte {
	t.Helper()
	b, err := chain.ParseID(id)
	require.NoError(t, err)
	return b
}
