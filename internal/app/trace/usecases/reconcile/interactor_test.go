package reconcile_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benomayebu/Farmily-Docs/internal/app/trace/domain"
	"github.com/benomayebu/Farmily-Docs/internal/app/trace/tracetest"
	"github.com/benomayebu/Farmily-Docs/internal/app/trace/usecases/reconcile"
	"github.com/benomayebu/Farmily-Docs/internal/app/trace/usecases/register_user"
)

func TestReconcile_ReplaysDrifted(t *testing.T) {
	f := tracetest.New(t)
	f.Rest.Reply(http.MethodPut, "consumer", "/updateEthereumAddress", http.StatusBadGateway, "")
	res, err := register_user.NewInteractor(f.Coord, f.Wallet()).Execute(context.Background(),
		&register_user.Request{Role: domain.RoleConsumer, Identifier: "cons-1"})
	require.ErrorIs(t, err, domain.ErrDrifted)

	uc := reconcile.NewInteractor(f.Coord)

	// still failing: the action stays drifted and the error is reported
	out, err := uc.Execute(context.Background(), &reconcile.Request{})
	require.NoError(t, err)
	assert.Equal(t, 1, out.Report.Drifted)
	assert.Len(t, out.Report.Errors, 1)

	f.Rest.Reply(http.MethodPut, "consumer", "/updateEthereumAddress", http.StatusOK, `{}`)
	out, err = uc.Execute(context.Background(), &reconcile.Request{ActionID: res.Action.ID()})
	require.NoError(t, err)
	assert.Equal(t, domain.StateSynced, out.Action.State())
	assert.Equal(t, 3, f.Rest.Count(http.MethodPut, "consumer", "/updateEthereumAddress"))
}

func TestReconcile_UnknownAction(t *testing.T) {
	f := tracetest.New(t)
	_, err := reconcile.NewInteractor(f.Coord).Execute(context.Background(), &reconcile.Request{ActionID: "nope"})
	assert.ErrorIs(t, err, domain.ErrActionNotFound)
}
