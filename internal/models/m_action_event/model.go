package m_action_event

import (
	"sort"

	"cloud.google.com/go/spanner"
)

// Model builds mutations for the action_events table.
type Model struct{}

// NewModel returns the action_events model.
func NewModel() *Model {
	return &Model{}
}

// InsertMut inserts a pending event; created_at is the commit timestamp.
func (m *Model) InsertMut(data *Data) *spanner.Mutation {
	return spanner.Insert(TableName, Columns, []interface{}{
		data.EventID, data.EventType, data.ActionID, data.Payload, data.Status,
		spanner.CommitTimestamp,
		data.ProcessedAt, data.RetryCount, data.ErrorMessage,
	})
}

// UpdateMut sets the given columns of one event. Columns are written in
// name order so equal updates yield equal mutations. Returns nil when there
// is nothing to write.
func (m *Model) UpdateMut(eventID string, updates map[string]interface{}) *spanner.Mutation {
	if len(updates) == 0 {
		return nil
	}
	cols := make([]string, 0, len(updates))
	for col := range updates {
		cols = append(cols, col)
	}
	sort.Strings(cols)

	vals := make([]interface{}, 0, len(cols)+1)
	vals = append(vals, eventID)
	for _, col := range cols {
		vals = append(vals, updates[col])
	}
	return spanner.Update(TableName, append([]string{EventID}, cols...), vals)
}
