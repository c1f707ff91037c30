package m_action

import (
	"sort"

	"cloud.google.com/go/spanner"
)

// Model builds mutations for the chain_actions table.
type Model struct{}

// NewModel returns the chain_actions model.
func NewModel() *Model {
	return &Model{}
}

// InsertMut inserts a new action row. Both timestamps take the commit time.
func (m *Model) InsertMut(data *Data) *spanner.Mutation {
	d := data
	return spanner.Insert(TableName, Columns, []interface{}{
		d.ActionID, d.Kind, d.Role, d.Account, d.ProductRef, d.ChainID, d.State, d.TxHash,
		d.GasEstimate, d.GasLimit, d.BlockNumber,
		d.Payload, d.PersistMethod, d.PersistPath, d.PersistBody, d.LastError,
		d.Attempts, d.Version,
		spanner.CommitTimestamp, spanner.CommitTimestamp,
	})
}

// UpdateMut writes the changed columns of one action and bumps updated_at.
// The updates map is not modified. Returns nil when nothing changed.
func (m *Model) UpdateMut(actionID string, updates map[string]interface{}) *spanner.Mutation {
	if len(updates) == 0 {
		return nil
	}
	cols := make([]string, 0, len(updates)+1)
	for col := range updates {
		if col != UpdatedAt {
			cols = append(cols, col)
		}
	}
	sort.Strings(cols)

	vals := make([]interface{}, 0, len(cols)+2)
	vals = append(vals, actionID)
	for _, col := range cols {
		vals = append(vals, updates[col])
	}
	vals = append(vals, spanner.CommitTimestamp)

	cols = append(append([]string{ActionID}, cols...), UpdatedAt)
	return spanner.Update(TableName, cols, vals)
}
