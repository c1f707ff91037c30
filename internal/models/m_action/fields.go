package m_action

// Field name constants for the chain_actions table.
const (
	TableName = "chain_actions"

	ActionID      = "action_id"
	Kind          = "kind"
	Role          = "role"
	Account       = "account"
	ProductRef    = "product_ref"
	ChainID       = "chain_id"
	State         = "state"
	TxHash        = "tx_hash"
	GasEstimate   = "gas_estimate"
	GasLimit      = "gas_limit"
	BlockNumber   = "block_number"
	Payload       = "payload"
	PersistMethod = "persist_method"
	PersistPath   = "persist_path"
	PersistBody   = "persist_body"
	LastError     = "last_error"
	Attempts      = "attempts"
	Version       = "version"
	CreatedAt     = "created_at"
	UpdatedAt     = "updated_at"
)

// Columns lists every column in table order.
var Columns = []string{
	ActionID, Kind, Role, Account, ProductRef, ChainID, State, TxHash,
	GasEstimate, GasLimit, BlockNumber, Payload, PersistMethod, PersistPath,
	PersistBody, LastError, Attempts, Version, CreatedAt, UpdatedAt,
}
