package m_action

import (
	"time"

	"cloud.google.com/go/spanner"
)

// Data represents the database model for the chain_actions table.
// Spanner has no unsigned integers, gas and block numbers are INT64.
type Data struct {
	ActionID      string             `spanner:"action_id"`
	Kind          string             `spanner:"kind"`
	Role          string             `spanner:"role"`
	Account       spanner.NullString `spanner:"account"`
	ProductRef    spanner.NullString `spanner:"product_ref"`
	ChainID       spanner.NullString `spanner:"chain_id"`
	State         string             `spanner:"state"`
	TxHash        spanner.NullString `spanner:"tx_hash"`
	GasEstimate   int64              `spanner:"gas_estimate"`
	GasLimit      int64              `spanner:"gas_limit"`
	BlockNumber   int64              `spanner:"block_number"`
	Payload       spanner.NullJSON   `spanner:"payload"`
	PersistMethod spanner.NullString `spanner:"persist_method"`
	PersistPath   spanner.NullString `spanner:"persist_path"`
	PersistBody   spanner.NullString `spanner:"persist_body"`
	LastError     spanner.NullString `spanner:"last_error"`
	Attempts      int64              `spanner:"attempts"`
	Version       int64              `spanner:"version"`
	CreatedAt     time.Time          `spanner:"created_at"`
	UpdatedAt     time.Time          `spanner:"updated_at"`
}
