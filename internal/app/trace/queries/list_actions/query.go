package list_actions

import (
	"context"

	"github.com/benomayebu/Farmily-Docs/internal/app/trace/contracts"
)

// Request contains the ledger filter.
type Request struct {
	Filter contracts.ActionFilter
}

// Query lists ledger rows, newest first.
type Query struct {
	ledger contracts.Ledger
}

// NewQuery creates a new list actions query.
func NewQuery(ledger contracts.Ledger) *Query {
	return &Query{ledger: ledger}
}

// Execute runs the filter.
func (q *Query) Execute(ctx context.Context, req *Request) ([]*contracts.ActionDTO, error) {
	actions, err := q.ledger.List(ctx, req.Filter)
	if err != nil {
		return nil, err
	}
	out := make([]*contracts.ActionDTO, 0, len(actions))
	for _, a := range actions {
		out = append(out, contracts.NewActionDTO(a))
	}
	return out, nil
}
