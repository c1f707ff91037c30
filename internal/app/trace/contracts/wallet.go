package contracts

import (
	"context"

	"github.com/benomayebu/Farmily-Docs/internal/chain"
)

// Wallet hands out the connected chain session, prompting the user when
// there is none yet. *chain.Connector satisfies it.
type Wallet interface {
	Connect(ctx context.Context) (*chain.Session, error)
}
