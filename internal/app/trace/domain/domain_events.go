package domain

import "time"

// DomainEvent is the base interface for all domain events.
type DomainEvent interface {
	EventType() string
	AggregateID() string
}

// ActionTransitionedEvent is recorded on every state change of an action.
// Its type is "action.<new state>".
type ActionTransitionedEvent struct {
	ActionID   string      `json:"action_id"`
	Kind       ActionKind  `json:"kind"`
	Role       Role        `json:"role"`
	Account    string      `json:"account,omitempty"`
	ProductRef string      `json:"product_ref,omitempty"`
	ChainID    string      `json:"chain_id,omitempty"`
	From       ActionState `json:"from"`
	To         ActionState `json:"to"`
	TxHash     string      `json:"tx_hash,omitempty"`
	Error      string      `json:"error,omitempty"`
	Version    int64       `json:"version"`
	At         time.Time   `json:"at"`
}

func (e *ActionTransitionedEvent) EventType() string {
	return "action." + string(e.To)
}

func (e *ActionTransitionedEvent) AggregateID() string {
	return e.ActionID
}
