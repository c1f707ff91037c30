package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/benomayebu/Farmily-Docs/internal/pkg/clock"
)

// ActionKind names the user action a ledger row records.
type ActionKind string

const (
	KindRegisterProduct  ActionKind = "register_product"
	KindUpdateStatus     ActionKind = "update_status"
	KindUpdateInfo       ActionKind = "update_info"
	KindInitiateTransfer ActionKind = "initiate_transfer"
	KindAcceptTransfer   ActionKind = "accept_transfer"
	KindCancelTransfer   ActionKind = "cancel_transfer"
	KindTriggerPayment   ActionKind = "trigger_payment"
	KindRegisterUser     ActionKind = "register_user"
)

// Kinds lists every action kind.
var Kinds = []ActionKind{
	KindRegisterProduct, KindUpdateStatus, KindUpdateInfo, KindInitiateTransfer,
	KindAcceptTransfer, KindCancelTransfer, KindTriggerPayment, KindRegisterUser,
}

// ActionState is the position of an action in the dual write.
type ActionState string

const (
	StateIdle            ActionState = "idle"
	StateSubmitting      ActionState = "submitting"
	StateAwaitingReceipt ActionState = "awaiting_receipt"
	StateCommitted       ActionState = "committed"
	StateReverted        ActionState = "reverted"
	StateRejected        ActionState = "rejected"
	StatePersisting      ActionState = "persisting"
	StateSynced          ActionState = "synced"
	StateDrifted         ActionState = "drifted"
)

// States lists every state.
var States = []ActionState{
	StateIdle, StateSubmitting, StateAwaitingReceipt, StateCommitted, StateReverted,
	StateRejected, StatePersisting, StateSynced, StateDrifted,
}

var transitions = map[ActionState][]ActionState{
	StateIdle:            {StateSubmitting, StateRejected},
	StateSubmitting:      {StateAwaitingReceipt, StateRejected},
	StateAwaitingReceipt: {StateAwaitingReceipt, StateCommitted, StateReverted},
	StateCommitted:       {StatePersisting, StateSynced},
	StatePersisting:      {StatePersisting, StateSynced, StateDrifted},
	StateDrifted:         {StatePersisting},
}

// ParseActionState validates a state name.
func ParseActionState(s string) (ActionState, error) {
	state := ActionState(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range States {
		if state == known {
			return state, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownState, s)
}

// CanTransition reports whether from -> to is an edge of the state machine.
func CanTransition(from, to ActionState) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transition is possible.
func (s ActionState) Terminal() bool {
	return len(transitions[s]) == 0
}

// Unfinished lists the states reconcile picks up.
func Unfinished() []ActionState {
	return []ActionState{StateAwaitingReceipt, StateCommitted, StatePersisting, StateDrifted}
}

// Field names for change tracking
const (
	FieldState       = "state"
	FieldTxHash      = "tx_hash"
	FieldGas         = "gas"
	FieldBlockNumber = "block_number"
	FieldChainID     = "chain_id"
	FieldPersist     = "persist"
	FieldLastError   = "last_error"
	FieldAttempts    = "attempts"
)

// PersistRequest is the backend call that mirrors a committed action.
// It is stored so a drifted action can be replayed exactly.
type PersistRequest struct {
	Role   Role   `json:"role"`
	Method string `json:"method"`
	Path   string `json:"path"`
	Body   string `json:"body,omitempty"`
}

// Action is the aggregate root of the dual-write ledger: one user action
// that writes to the chain and then to the backend.
type Action struct {
	id          string
	kind        ActionKind
	role        Role
	account     string
	productRef  string
	chainID     string
	state       ActionState
	txHash      string
	gasEstimate uint64
	gasLimit    uint64
	blockNumber uint64
	payload     string
	persist     *PersistRequest
	lastError   string
	attempts    int64
	version     int64
	createdAt   time.Time
	updatedAt   time.Time

	stored        bool
	storedVersion int64

	clock   clock.Clock
	changes *ChangeTracker
	events  []DomainEvent
}

// NewAction starts an action in the idle state. payload is the JSON of
// the use case input.
func NewAction(id string, kind ActionKind, role Role, account, productRef, chainID, payload string, clk clock.Clock) *Action {
	now := clk.Now()
	return &Action{
		id:         id,
		kind:       kind,
		role:       role,
		account:    account,
		productRef: productRef,
		chainID:    chainID,
		state:      StateIdle,
		payload:    payload,
		createdAt:  now,
		updatedAt:  now,
		clock:      clk,
		changes:    NewChangeTracker(),
	}
}

// ActionSnapshot carries stored fields for ReconstructAction.
type ActionSnapshot struct {
	ID          string
	Kind        ActionKind
	Role        Role
	Account     string
	ProductRef  string
	ChainID     string
	State       ActionState
	TxHash      string
	GasEstimate uint64
	GasLimit    uint64
	BlockNumber uint64
	Payload     string
	Persist     *PersistRequest
	LastError   string
	Attempts    int64
	Version     int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ReconstructAction reconstitutes an action from storage.
func ReconstructAction(s ActionSnapshot, clk clock.Clock) *Action {
	return &Action{
		id:          s.ID,
		kind:        s.Kind,
		role:        s.Role,
		account:     s.Account,
		productRef:  s.ProductRef,
		chainID:     s.ChainID,
		state:       s.State,
		txHash:      s.TxHash,
		gasEstimate: s.GasEstimate,
		gasLimit:    s.GasLimit,
		blockNumber: s.BlockNumber,
		payload:     s.Payload,
		persist:     s.Persist,
		lastError:   s.LastError,
		attempts:    s.Attempts,
		version:     s.Version,
		createdAt:   s.CreatedAt,
		updatedAt:   s.UpdatedAt,

		stored:        true,
		storedVersion: s.Version,

		clock:   clk,
		changes: NewChangeTracker(),
	}
}

// Snapshot returns the stored representation.
func (a *Action) Snapshot() ActionSnapshot {
	return ActionSnapshot{
		ID: a.id, Kind: a.kind, Role: a.role, Account: a.account,
		ProductRef: a.productRef, ChainID: a.chainID, State: a.state,
		TxHash: a.txHash, GasEstimate: a.gasEstimate, GasLimit: a.gasLimit,
		BlockNumber: a.blockNumber, Payload: a.payload, Persist: a.Persist(),
		LastError: a.lastError, Attempts: a.attempts, Version: a.version,
		CreatedAt: a.createdAt, UpdatedAt: a.updatedAt,
	}
}

// Getters
func (a *Action) ID() string                  { return a.id }
func (a *Action) Kind() ActionKind            { return a.kind }
func (a *Action) Role() Role                  { return a.role }
func (a *Action) Account() string             { return a.account }
func (a *Action) ProductRef() string          { return a.productRef }
func (a *Action) ChainID() string             { return a.chainID }
func (a *Action) State() ActionState          { return a.state }
func (a *Action) TxHash() string              { return a.txHash }
func (a *Action) GasEstimate() uint64         { return a.gasEstimate }
func (a *Action) GasLimit() uint64            { return a.gasLimit }
func (a *Action) BlockNumber() uint64         { return a.blockNumber }
func (a *Action) Payload() string             { return a.payload }
func (a *Action) LastError() string           { return a.lastError }
func (a *Action) Attempts() int64             { return a.attempts }
func (a *Action) Version() int64              { return a.version }
func (a *Action) CreatedAt() time.Time        { return a.createdAt }
func (a *Action) UpdatedAt() time.Time        { return a.updatedAt }
func (a *Action) Changes() *ChangeTracker     { return a.changes }
func (a *Action) DomainEvents() []DomainEvent { return a.events }

// Persist returns a copy of the stored backend request, nil if none.
func (a *Action) Persist() *PersistRequest {
	if a.persist == nil {
		return nil
	}
	p := *a.persist
	return &p
}

// Submit moves idle -> submitting, just before the transaction is signed.
func (a *Action) Submit() error {
	return a.transition(StateSubmitting, "")
}

// Reject records that the transaction never reached the chain: the precheck
// failed, the signer declined or the node refused it.
func (a *Action) Reject(cause error) error {
	return a.transition(StateRejected, errText(cause))
}

// Submitted records the accepted transaction.
func (a *Action) Submitted(txHash string, gasEstimate, gasLimit uint64) error {
	if a.state != StateSubmitting {
		return a.invalid(StateAwaitingReceipt)
	}
	a.txHash = txHash
	a.gasEstimate = gasEstimate
	a.gasLimit = gasLimit
	a.changes.MarkDirty(FieldTxHash, FieldGas)
	return a.transition(StateAwaitingReceipt, "")
}

// ReceiptMissing records a receipt wait that ended without a receipt.
// The action stays in awaiting_receipt.
func (a *Action) ReceiptMissing(cause error) error {
	if err := a.transition(StateAwaitingReceipt, errText(cause)); err != nil {
		return err
	}
	a.attempts++
	a.changes.MarkDirty(FieldAttempts)
	return nil
}

// Revert records a mined transaction whose receipt reports failure.
func (a *Action) Revert(blockNumber uint64, cause error) error {
	if a.state != StateAwaitingReceipt {
		return a.invalid(StateReverted)
	}
	a.blockNumber = blockNumber
	a.changes.MarkDirty(FieldBlockNumber)
	return a.transition(StateReverted, errText(cause))
}

// Commit records a successful receipt. chainID is set when the transaction
// created the on-chain id (register_product).
func (a *Action) Commit(blockNumber uint64, chainID string) error {
	if a.state != StateAwaitingReceipt {
		return a.invalid(StateCommitted)
	}
	a.blockNumber = blockNumber
	a.changes.MarkDirty(FieldBlockNumber)
	if chainID != "" && chainID != a.chainID {
		a.chainID = chainID
		a.changes.MarkDirty(FieldChainID)
	}
	return a.transition(StateCommitted, "")
}

// Persisting records the backend request about to be sent. It is valid
// after commit and, for reconcile, after drift or when taking over a stale
// persisting action. Saving it claims the send: a concurrent holder of the
// same version fails its own save with ErrVersionConflict.
func (a *Action) Persisting(req PersistRequest) error {
	if !CanTransition(a.state, StatePersisting) {
		return a.invalid(StatePersisting)
	}
	a.persist = &req
	a.attempts++
	a.changes.MarkDirty(FieldPersist, FieldAttempts)
	return a.transition(StatePersisting, "")
}

// Synced records that the backend mirrors the chain, or that the action has
// nothing to mirror.
func (a *Action) Synced() error {
	return a.transition(StateSynced, "")
}

// Drift records a failed backend write after a successful chain write.
func (a *Action) Drift(cause error) error {
	return a.transition(StateDrifted, errText(cause))
}

func (a *Action) transition(to ActionState, lastError string) error {
	if !CanTransition(a.state, to) {
		return a.invalid(to)
	}
	from := a.state
	a.state = to
	a.lastError = lastError
	a.version++
	a.updatedAt = a.clock.Now()
	a.changes.MarkDirty(FieldState, FieldLastError)

	a.recordEvent(&ActionTransitionedEvent{
		ActionID:   a.id,
		Kind:       a.kind,
		Role:       a.role,
		Account:    a.account,
		ProductRef: a.productRef,
		ChainID:    a.chainID,
		From:       from,
		To:         to,
		TxHash:     a.txHash,
		Error:      lastError,
		Version:    a.version,
		At:         a.updatedAt,
	})
	return nil
}

func (a *Action) invalid(to ActionState) error {
	return fmt.Errorf("%w: %s -> %s (action %s)", ErrInvalidTransition, a.state, to, a.id)
}

func (a *Action) recordEvent(event DomainEvent) {
	a.events = append(a.events, event)
}

// ClearEvents clears all recorded domain events (called after publishing).
func (a *Action) ClearEvents() {
	a.events = nil
}

// MarkStored is called once the action and its events are written. The
// stored version becomes the expected version of the next write.
func (a *Action) MarkStored() {
	a.ClearEvents()
	a.changes.Clear()
	a.stored = true
	a.storedVersion = a.version
}

// IsStored reports whether the action has a ledger row.
func (a *Action) IsStored() bool { return a.stored }

// StoredVersion is the version of the ledger row.
func (a *Action) StoredVersion() int64 { return a.storedVersion }

func errText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
