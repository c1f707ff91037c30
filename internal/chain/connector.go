package chain

import (
	"context"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/benomayebu/Farmily-Docs/internal/pkg/clock"
	"github.com/benomayebu/Farmily-Docs/internal/pkg/metrics"
)

// DefaultDebounce is how long Connect waits before prompting the wallet so
// that bursts of connect requests collapse into one prompt.
const DefaultDebounce = time.Second

// Connector owns the wallet connection of one process or user.
type Connector struct {
	provider Provider
	contract *Contract
	clock    clock.Clock
	debounce time.Duration
	metrics  *metrics.Metrics
	log      zerolog.Logger
	onChange func(account string)

	group singleflight.Group

	mu      sync.RWMutex
	session *Session
	gen     uint64
}

// ConnectorOption configures a Connector.
type ConnectorOption func(*Connector)

// WithDebounce sets the debounce window.
func WithDebounce(d time.Duration) ConnectorOption {
	return func(c *Connector) { c.debounce = d }
}

// WithConnectorClock replaces the real clock.
func WithConnectorClock(clk clock.Clock) ConnectorOption {
	return func(c *Connector) { c.clock = clk }
}

// WithConnectorMetrics counts wallet prompts.
func WithConnectorMetrics(m *metrics.Metrics) ConnectorOption {
	return func(c *Connector) { c.metrics = m }
}

// WithConnectorLogger sets the logger.
func WithConnectorLogger(l zerolog.Logger) ConnectorOption {
	return func(c *Connector) { c.log = l }
}

// OnAccountChange is called with the new account after connect and with ""
// after disconnect.
func OnAccountChange(fn func(account string)) ConnectorOption {
	return func(c *Connector) { c.onChange = fn }
}

// NewConnector creates a disconnected connector. provider may be nil, in
// which case every Connect fails with ErrNoProvider.
func NewConnector(provider Provider, contract *Contract, opts ...ConnectorOption) *Connector {
	c := &Connector{
		provider: provider,
		contract: contract,
		clock:    clock.NewRealClock(),
		debounce: DefaultDebounce,
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Contract returns the contract proxy, usable for reads without a session.
func (c *Connector) Contract() *Contract {
	return c.contract
}

// Current returns the cached session, if any.
func (c *Connector) Current() (*Session, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session, c.session != nil
}

// Connect returns the cached session or establishes one. Concurrent calls
// share a single attempt, which waits out the debounce window and then
// prompts the wallet once. A caller whose context ends stops waiting
// without aborting the shared attempt.
func (c *Connector) Connect(ctx context.Context) (*Session, error) {
	if s, ok := c.Current(); ok {
		return s, nil
	}
	if c.provider == nil {
		return nil, newError(ErrNoProvider, "connect", nil)
	}

	ch := c.group.DoChan("connect", func() (interface{}, error) {
		return c.connect(context.WithoutCancel(ctx))
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Session), nil
	}
}

func (c *Connector) connect(ctx context.Context) (*Session, error) {
	c.mu.RLock()
	gen := c.gen
	c.mu.RUnlock()

	<-c.clock.After(c.debounce)
	if s, ok := c.Current(); ok {
		return s, nil
	}

	c.metrics.ConnectPrompt()
	accounts, err := c.provider.RequestAccounts(ctx)
	if err != nil {
		return nil, Classify("connect", err)
	}
	if len(accounts) == 0 {
		return nil, newError(ErrNoAccount, "connect", nil)
	}
	account := accounts[0]

	chainID, err := c.contract.Backend().ChainID(ctx)
	if err != nil {
		return nil, Classify("chainId", err)
	}
	signer, err := c.provider.Signer(account, chainID)
	if err != nil {
		return nil, Classify("signer", err)
	}
	session := NewSession(account, chainID, signer, c.contract)

	c.mu.Lock()
	stale := c.gen != gen
	if !stale {
		c.session = session
	}
	c.mu.Unlock()

	if stale {
		c.log.Debug().Str("account", account.Hex()).Msg("disconnected while connecting, session not cached")
		return session, nil
	}
	c.log.Info().Str("account", account.Hex()).Str("chain_id", chainID.String()).Msg("wallet connected")
	if c.onChange != nil {
		c.onChange(account.Hex())
	}
	return session, nil
}

// Disconnect drops the cached session. It makes no network call.
func (c *Connector) Disconnect() {
	c.mu.Lock()
	had := c.session != nil
	c.session = nil
	c.gen++
	c.mu.Unlock()

	if had {
		c.log.Info().Msg("wallet disconnected")
		if c.onChange != nil {
			c.onChange("")
		}
	}
}

// IsConnected asks the wallet whether the session account is still
// exposed. Any failure reads as not connected.
func (c *Connector) IsConnected(ctx context.Context) bool {
	s, ok := c.Current()
	if !ok || c.provider == nil {
		return false
	}
	accounts, err := c.provider.Accounts(ctx)
	if err != nil {
		c.log.Debug().Err(err).Msg("connection check failed")
		return false
	}
	return containsAccount(accounts, s.Account())
}

func containsAccount(accounts []common.Address, want common.Address) bool {
	for _, a := range accounts {
		if a == want {
			return true
		}
	}
	return false
}
