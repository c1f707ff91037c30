package reconcile

import (
	"context"

	"github.com/benomayebu/Farmily-Docs/internal/app/trace/coordinator"
	"github.com/benomayebu/Farmily-Docs/internal/app/trace/domain"
)

// Request selects what to reconcile. With ActionID set only that action is
// handled, whatever its age.
type Request struct {
	ActionID string `json:"actionId,omitempty"`
	Limit    int    `json:"limit,omitempty"`
}

// Response carries the pass report, or the single reconciled action.
type Response struct {
	Report *coordinator.Report `json:"report,omitempty"`
	Action *domain.Action      `json:"-"`
}

// Interactor handles the reconcile use case.
type Interactor struct {
	coord *coordinator.Coordinator
}

// NewInteractor creates a reconcile interactor.
func NewInteractor(coord *coordinator.Coordinator) *Interactor {
	return &Interactor{coord: coord}
}

// Execute replays drifted actions and finishes unconfirmed ones.
func (i *Interactor) Execute(ctx context.Context, req *Request) (*Response, error) {
	if req.ActionID != "" {
		action, err := i.coord.ReconcileAction(ctx, req.ActionID)
		return &Response{Action: action}, err
	}
	report, err := i.coord.Reconcile(ctx, req.Limit)
	if err != nil {
		return nil, err
	}
	return &Response{Report: report}, nil
}
