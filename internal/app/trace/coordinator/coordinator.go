// Package coordinator runs the dual write behind every user action: one
// contract transaction, then one backend request mirroring it. Each step is
// recorded in the action ledger, so a chain write the backend never saw
// stays visible as a drifted action and can be replayed by Reconcile.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog"

	"github.com/benomayebu/Farmily-Docs/internal/app/trace/contracts"
	"github.com/benomayebu/Farmily-Docs/internal/app/trace/domain"
	"github.com/benomayebu/Farmily-Docs/internal/backend"
	"github.com/benomayebu/Farmily-Docs/internal/chain"
	"github.com/benomayebu/Farmily-Docs/internal/pkg/clock"
	"github.com/benomayebu/Farmily-Docs/internal/pkg/logging"
	"github.com/benomayebu/Farmily-Docs/internal/pkg/metrics"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Backend sends REST requests. *backend.Client satisfies it.
type Backend interface {
	Do(ctx context.Context, req backend.Request) (*backend.Response, error)
}

// Authorizer is implemented by backends that can tell whether a role has a
// bearer token before anything is signed. *backend.Client satisfies it.
type Authorizer interface {
	Authorize(ctx context.Context, role string) error
}

// Persister turns a committed action into the backend request that mirrors
// it. A nil request means there is nothing to mirror. It must depend only on
// the action and the transaction so Reconcile can rebuild it later.
type Persister func(action *domain.Action, tx *chain.TxResult) (*backend.Request, error)

// Plan describes one action.
type Plan struct {
	Kind       domain.ActionKind
	Role       domain.Role
	ProductRef string      // backend _id, when the action concerns a product
	ChainID    string      // on-chain product id; filled from the receipt when empty
	Payload    interface{} // use case input, stored as JSON
	Call       chain.Call
	// Precheck runs before anything is signed. An error rejects the action.
	Precheck func(ctx context.Context) error
}

// Result is the outcome of Run.
type Result struct {
	Action   *domain.Action
	Tx       *chain.TxResult
	Response *backend.Response
}

// State is the final state of the action.
func (r *Result) State() domain.ActionState {
	if r == nil || r.Action == nil {
		return ""
	}
	return r.Action.State()
}

// Coordinator runs plans against a session and records them in the ledger.
type Coordinator struct {
	ledger     contracts.Ledger
	backend    Backend
	contract   *chain.Contract
	persisters map[domain.ActionKind]Persister
	clock      clock.Clock
	metrics    *metrics.Metrics
	log        zerolog.Logger
	newID      func() string
	staleAfter time.Duration
	persistFor time.Duration
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithClock replaces the real clock.
func WithClock(c clock.Clock) Option {
	return func(co *Coordinator) { co.clock = c }
}

// WithMetrics records transitions and failures.
func WithMetrics(m *metrics.Metrics) Option {
	return func(co *Coordinator) { co.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(co *Coordinator) { co.log = l }
}

// WithIDs replaces the uuid generator.
func WithIDs(fn func() string) Option {
	return func(co *Coordinator) { co.newID = fn }
}

// WithStaleAfter sets how long an in-flight action must be idle before
// Reconcile takes it over. Drifted actions are always eligible.
func WithStaleAfter(d time.Duration) Option {
	return func(co *Coordinator) { co.staleAfter = d }
}

// WithPersistTimeout bounds the backend write that mirrors a committed
// transaction.
func WithPersistTimeout(d time.Duration) Option {
	return func(co *Coordinator) { co.persistFor = d }
}

const (
	// DefaultStaleAfter is the reconcile grace period for in-flight actions.
	DefaultStaleAfter = 5 * time.Minute
	// DefaultPersistTimeout bounds one backend write.
	DefaultPersistTimeout = 30 * time.Second
)

// New creates a Coordinator. contract is used by Reconcile to look up
// receipts of actions whose wait ended early.
func New(ledger contracts.Ledger, rest Backend, contract *chain.Contract, opts ...Option) *Coordinator {
	c := &Coordinator{
		ledger:     ledger,
		backend:    rest,
		contract:   contract,
		persisters: make(map[domain.ActionKind]Persister),
		clock:      clock.NewRealClock(),
		log:        zerolog.Nop(),
		newID:      func() string { return uuid.New().String() },
		staleAfter: DefaultStaleAfter,
		persistFor: DefaultPersistTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Register sets the persister for kind. Kinds without one are synced as
// soon as they commit.
func (c *Coordinator) Register(kind domain.ActionKind, p Persister) {
	c.persisters[kind] = p
}

// Ledger returns the action ledger.
func (c *Coordinator) Ledger() contracts.Ledger {
	return c.ledger
}

// Run executes plan from session:
//
//	precheck -> submit -> wait for receipt -> persist to backend
//
// Nothing reaches the backend unless the receipt reports success. Once it
// does, the backend write no longer follows ctx: it runs under its own
// timeout. A failed backend call after a successful transaction leaves the
// action drifted and returns an error wrapping domain.ErrDrifted and the
// backend error.
func (c *Coordinator) Run(ctx context.Context, session *chain.Session, plan Plan) (*Result, error) {
	if session == nil {
		return nil, chain.ErrNotConnected
	}
	var payload string
	if plan.Payload != nil {
		encoded, err := json.MarshalToString(plan.Payload)
		if err != nil {
			return nil, fmt.Errorf("encode %s payload: %w", plan.Kind, err)
		}
		payload = encoded
	}

	action := domain.NewAction(c.newID(), plan.Kind, plan.Role, session.Account().Hex(),
		plan.ProductRef, plan.ChainID, payload, c.clock)
	res := &Result{Action: action}
	log := c.log.With().Str(logging.ACTION, action.ID()).Str(logging.KIND, string(plan.Kind)).Logger()

	// 1. Precheck: backend credentials first, then the use case's own checks
	for _, check := range []func(context.Context) error{c.authorizer(plan), plan.Precheck} {
		if check == nil {
			continue
		}
		if err := check(ctx); err != nil {
			_ = action.Reject(err)
			c.save(ctx, action, log)
			return res, err
		}
	}

	// 2. Record the intent; a ledger failure here aborts before signing
	if err := action.Submit(); err != nil {
		return res, err
	}
	if err := c.save(ctx, action, log); err != nil {
		return res, fmt.Errorf("record %s: %w", plan.Kind, err)
	}

	// 3. Sign and send
	sub, err := session.Submit(ctx, plan.Call)
	if err != nil {
		_ = action.Reject(err)
		c.save(ctx, action, log)
		return res, err
	}
	res.Tx = &chain.TxResult{Submission: *sub}
	_ = action.Submitted(sub.Hash.Hex(), sub.GasEstimate, sub.GasLimit)
	c.save(ctx, action, log)

	// 4. Wait for the receipt
	receipt, err := session.Contract().WaitReceipt(ctx, sub.Hash)
	c.metrics.ObserveReceiptWait(string(plan.Kind), c.clock.Now().Sub(sub.SubmittedAt).Seconds())
	if receipt != nil {
		res.Tx.Receipt = receipt
		res.Tx.Events = session.Contract().DecodeLogs(receipt.Logs)
	}
	if err != nil {
		if errors.Is(err, chain.ErrReverted) && receipt != nil {
			_ = action.Revert(receipt.BlockNumber.Uint64(), err)
		} else {
			_ = action.ReceiptMissing(err)
		}
		c.save(ctx, action, log)
		return res, err
	}
	_ = action.Commit(receipt.BlockNumber.Uint64(), chainIDFrom(plan.ChainID, res.Tx.Events))
	c.save(ctx, action, log)

	// 5. Mirror to the backend
	resp, err := c.persist(ctx, action, res.Tx, nil, false, log)
	res.Response = resp
	return res, err
}

// persist builds (or replays) the backend request and moves the action to
// synced or drifted. The persisting save is the claim on the send: nothing
// is sent when another writer moved the row first, and during reconcile
// nothing is sent when the claim could not be recorded at all.
func (c *Coordinator) persist(ctx context.Context, action *domain.Action, tx *chain.TxResult, replay *domain.PersistRequest, reconciling bool, log zerolog.Logger) (*backend.Response, error) {
	ctx = context.WithoutCancel(ctx)
	if c.persistFor > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.persistFor)
		defer cancel()
	}

	var req *backend.Request
	if replay != nil {
		req = &backend.Request{
			Role:   string(replay.Role),
			Method: replay.Method,
			Path:   replay.Path,
		}
		if replay.Body != "" {
			req.Body = jsoniter.RawMessage(replay.Body)
		}
	} else {
		built, err := c.build(action, tx)
		if err != nil {
			if action.State() != domain.StatePersisting {
				_ = action.Persisting(domain.PersistRequest{Role: action.Role()})
			}
			_ = action.Drift(err)
			c.save(ctx, action, log)
			return nil, fmt.Errorf("%w: %w", domain.ErrDrifted, err)
		}
		req = built
	}

	if req == nil {
		_ = action.Synced()
		c.save(ctx, action, log)
		return nil, nil
	}

	stored := domain.PersistRequest{Role: domain.Role(req.Role), Method: req.Method, Path: req.Path}
	body, err := req.EncodeBody()
	if err == nil {
		stored.Body = string(body)
	}
	if perr := action.Persisting(stored); perr != nil {
		return nil, perr
	}
	if serr := c.save(ctx, action, log); serr != nil && (reconciling || errors.Is(serr, domain.ErrVersionConflict)) {
		return nil, fmt.Errorf("claim backend write of %s: %w", action.ID(), serr)
	}
	if err != nil {
		_ = action.Drift(err)
		c.save(ctx, action, log)
		return nil, fmt.Errorf("%w: encode %s: %w", domain.ErrDrifted, req, err)
	}

	resp, err := c.backend.Do(ctx, *req)
	if err != nil {
		_ = action.Drift(err)
		c.save(ctx, action, log)
		log.Error().Err(err).Str(logging.TX, action.TxHash()).Str("request", req.String()).
			Msg("chain updated but backend write failed; action drifted")
		return nil, fmt.Errorf("%w: %w", domain.ErrDrifted, err)
	}
	_ = action.Synced()
	c.save(ctx, action, log)
	return resp, nil
}

// authorizer returns the token check for plan, or nil when the kind is not
// mirrored or the backend cannot answer without a request.
func (c *Coordinator) authorizer(plan Plan) func(context.Context) error {
	if _, ok := c.persisters[plan.Kind]; !ok {
		return nil
	}
	auth, ok := c.backend.(Authorizer)
	if !ok {
		return nil
	}
	return func(ctx context.Context) error {
		return auth.Authorize(ctx, string(plan.Role))
	}
}

func (c *Coordinator) build(action *domain.Action, tx *chain.TxResult) (*backend.Request, error) {
	p, ok := c.persisters[action.Kind()]
	if !ok {
		return nil, nil
	}
	return p(action, tx)
}

// save stores the action. Failures are logged and counted; after the
// transaction is signed they never abort the flow because the chain has
// moved on regardless.
func (c *Coordinator) save(ctx context.Context, action *domain.Action, log zerolog.Logger) error {
	state := action.State()
	err := c.ledger.Save(context.WithoutCancel(ctx), action)
	c.metrics.Transition(string(action.Kind()), string(state))
	ev := log.Debug()
	if state == domain.StateDrifted || state == domain.StateReverted || state == domain.StateRejected {
		ev = log.Warn().Str("last_error", action.LastError())
	}
	ev.Str(logging.STATE, string(state)).Str(logging.TX, action.TxHash()).Int64("version", action.Version()).Msg("action transition")
	if err != nil {
		c.metrics.LedgerError()
		log.Error().Err(err).Str(logging.STATE, string(state)).Msg("ledger write failed")
	}
	return err
}

// chainIDFrom returns known, or the product id of the first event that
// carries one.
func chainIDFrom(known string, events []chain.Event) string {
	if known != "" {
		return known
	}
	for _, ev := range events {
		if id := ev.ProductID(); id != "" {
			return id
		}
	}
	return ""
}
