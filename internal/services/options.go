// Package services wires the chain client, the ledger and the transports.
package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"cloud.google.com/go/spanner"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/rs/zerolog"
	"google.golang.org/api/iterator"

	"github.com/benomayebu/Farmily-Docs/internal/app/trace/contracts"
	"github.com/benomayebu/Farmily-Docs/internal/app/trace/coordinator"
	"github.com/benomayebu/Farmily-Docs/internal/app/trace/poller"
	"github.com/benomayebu/Farmily-Docs/internal/app/trace/queries/balance"
	"github.com/benomayebu/Farmily-Docs/internal/app/trace/queries/consumer_history"
	"github.com/benomayebu/Farmily-Docs/internal/app/trace/queries/get_product"
	"github.com/benomayebu/Farmily-Docs/internal/app/trace/queries/list_actions"
	"github.com/benomayebu/Farmily-Docs/internal/app/trace/queries/pending_transfers"
	"github.com/benomayebu/Farmily-Docs/internal/app/trace/queries/product_journey"
	"github.com/benomayebu/Farmily-Docs/internal/app/trace/queries/transfer_status"
	"github.com/benomayebu/Farmily-Docs/internal/app/trace/queries/verify_product"
	"github.com/benomayebu/Farmily-Docs/internal/app/trace/relay"
	"github.com/benomayebu/Farmily-Docs/internal/app/trace/repo"
	"github.com/benomayebu/Farmily-Docs/internal/app/trace/usecases/accept_transfer"
	"github.com/benomayebu/Farmily-Docs/internal/app/trace/usecases/cancel_transfer"
	"github.com/benomayebu/Farmily-Docs/internal/app/trace/usecases/initiate_transfer"
	"github.com/benomayebu/Farmily-Docs/internal/app/trace/usecases/reconcile"
	"github.com/benomayebu/Farmily-Docs/internal/app/trace/usecases/register_product"
	"github.com/benomayebu/Farmily-Docs/internal/app/trace/usecases/register_user"
	"github.com/benomayebu/Farmily-Docs/internal/app/trace/usecases/sync_product"
	"github.com/benomayebu/Farmily-Docs/internal/app/trace/usecases/trigger_payment"
	"github.com/benomayebu/Farmily-Docs/internal/app/trace/usecases/update_info"
	"github.com/benomayebu/Farmily-Docs/internal/app/trace/usecases/update_status"
	"github.com/benomayebu/Farmily-Docs/internal/backend"
	"github.com/benomayebu/Farmily-Docs/internal/chain"
	"github.com/benomayebu/Farmily-Docs/internal/pkg/clock"
	"github.com/benomayebu/Farmily-Docs/internal/pkg/localstore"
	"github.com/benomayebu/Farmily-Docs/internal/pkg/metrics"
	"github.com/benomayebu/Farmily-Docs/internal/pkg/worker"
	"github.com/benomayebu/Farmily-Docs/internal/transport/grpc/health"
	gateway "github.com/benomayebu/Farmily-Docs/internal/transport/http"
	natsbus "github.com/benomayebu/Farmily-Docs/internal/transport/nats"
)

// Wallet kinds.
const (
	WalletRPC = "rpc" // accounts and signing on the node (dev node, Clef, wallet bridge)
	WalletKey = "key" // local private key or keystore file
)

// DefaultRelayInterval applies when Config.RelayInterval is zero.
const DefaultRelayInterval = 5 * time.Second

// Config is everything the process reads from its environment.
type Config struct {
	RPCURL          string
	ContractAddress string
	Wallet          string
	Keystore        string
	Passphrase      string
	PrivateKey      string
	FromBlock       uint64

	BackendURL string
	StorePath  string // empty: tokens only from forwarded headers
	SpannerDB  string // empty: in-memory ledger
	NATSURL    string // empty: relay off

	GasMultiplier  string // empty: per call site defaults
	GasRounding    string
	ReceiptTimeout time.Duration
	Debounce       time.Duration

	PollInterval      time.Duration
	ReconcileInterval time.Duration // zero: no background reconcile
	RelayInterval     time.Duration
	PersistTimeout    time.Duration // bound on one backend write after commit
}

// ServiceOptions holds all dependencies for the application.
type ServiceOptions struct {
	Config  Config
	Clock   clock.Clock
	Metrics *metrics.Metrics
	Log     zerolog.Logger

	RPCClient *rpc.Client
	Contract  *chain.Contract
	Connector *chain.Connector
	Store     *localstore.Store
	Backend   *backend.Client

	SpannerClient *spanner.Client
	Ledger        contracts.Ledger
	Outbox        contracts.Outbox
	Coordinator   *coordinator.Coordinator

	Commands gateway.Commands
	Queries  gateway.Queries

	Poller    *poller.Poller
	Publisher *natsbus.Publisher
	Relay     *relay.Relay
	Health    *health.Server
	workers   []*worker.Periodic
}

// NewServiceOptions creates and wires up all application dependencies.
func NewServiceOptions(ctx context.Context, cfg Config, log zerolog.Logger) (_ *ServiceOptions, err error) {
	if cfg.RelayInterval <= 0 {
		cfg.RelayInterval = DefaultRelayInterval
	}
	s := &ServiceOptions{
		Config:  cfg,
		Clock:   clock.NewRealClock(),
		Metrics: metrics.New(),
		Log:     log,
	}
	defer func() {
		if err != nil {
			s.Close()
		}
	}()

	// 1. Chain
	if err := s.initChain(ctx); err != nil {
		return nil, err
	}

	// 2. Local store and REST backend
	tokens := backend.FirstOf{backend.ContextTokens{}}
	if cfg.StorePath != "" {
		s.Store, err = localstore.Open(cfg.StorePath)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, backend.StoreTokens{Store: s.Store, Clock: s.Clock})
	}
	s.Backend = backend.NewClient(cfg.BackendURL, tokens,
		backend.WithMetrics(s.Metrics), backend.WithLogger(log))

	// 3. Ledger
	if cfg.SpannerDB != "" {
		s.SpannerClient, err = spanner.NewClient(ctx, cfg.SpannerDB)
		if err != nil {
			return nil, fmt.Errorf("failed to create Spanner client: %w", err)
		}
		ledger := repo.NewSpannerLedger(s.SpannerClient, s.Clock)
		s.Ledger, s.Outbox = ledger, ledger.Outbox()
	} else {
		ledger := repo.NewMemoryLedger(s.Clock)
		s.Ledger, s.Outbox = ledger, ledger
		log.Warn().Msg("SPANNER_DATABASE not set, actions are kept in memory")
	}

	// 4. Coordinator, use cases and queries
	s.Coordinator = coordinator.New(s.Ledger, s.Backend, s.Contract,
		coordinator.WithClock(s.Clock), coordinator.WithMetrics(s.Metrics), coordinator.WithLogger(log),
		coordinator.WithPersistTimeout(cfg.PersistTimeout))
	s.initUseCases()

	// 5. Background work
	s.Poller = poller.New(s.Queries.PendingTransfers,
		poller.WithInterval(cfg.PollInterval), poller.WithMetrics(s.Metrics), poller.WithLogger(log))
	if cfg.ReconcileInterval > 0 {
		s.workers = append(s.workers, worker.NewPeriodic("reconcile", cfg.ReconcileInterval,
			func(ctx context.Context) error {
				_, err := s.Coordinator.Reconcile(ctx, 0)
				return err
			}, worker.WithLogger(log)))
	}
	if cfg.NATSURL != "" {
		s.Publisher, err = natsbus.Connect(cfg.NATSURL, "farmily", log)
		if err != nil {
			return nil, err
		}
		s.Relay = relay.New(s.Outbox, s.Publisher, relay.WithMetrics(s.Metrics), relay.WithLogger(log))
		s.workers = append(s.workers, worker.NewPeriodic("relay", cfg.RelayInterval, s.Relay.Task,
			worker.WithLogger(log), worker.Immediately()))
	}

	checks := map[string]health.Check{
		"chain": func(ctx context.Context) error {
			_, err := s.Contract.Backend().ChainID(ctx)
			return err
		},
	}
	if s.SpannerClient != nil {
		checks["ledger"] = s.pingSpanner
	}
	s.Health = health.New(checks, health.WithLogger(log))

	return s, nil
}

func (s *ServiceOptions) initChain(ctx context.Context) error {
	cfg := s.Config
	var err error
	s.RPCClient, err = rpc.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return fmt.Errorf("dial ethereum node %s: %w", cfg.RPCURL, err)
	}

	if !common.IsHexAddress(cfg.ContractAddress) {
		return fmt.Errorf("invalid contract address %q", cfg.ContractAddress)
	}
	opts := []chain.ContractOption{
		chain.WithContractMetrics(s.Metrics),
		chain.WithContractLogger(s.Log),
		chain.WithLogsFromBlock(cfg.FromBlock),
	}
	if cfg.ReceiptTimeout > 0 {
		opts = append(opts, chain.WithReceiptPolling(chain.DefaultReceiptPoll, cfg.ReceiptTimeout))
	}
	if cfg.GasMultiplier != "" {
		rounding, err := chain.ParseRounding(cfg.GasRounding)
		if err != nil {
			return err
		}
		policy, err := chain.NewGasPolicy(cfg.GasMultiplier, rounding)
		if err != nil {
			return err
		}
		opts = append(opts, chain.WithGasPolicies(chain.DefaultGasPolicies().Uniform(policy)))
	}
	s.Contract, err = chain.NewContract(ethclient.NewClient(s.RPCClient), common.HexToAddress(cfg.ContractAddress), opts...)
	if err != nil {
		return err
	}

	provider, err := s.provider()
	if err != nil {
		return err
	}
	s.Connector = chain.NewConnector(provider, s.Contract,
		chain.WithDebounce(cfg.Debounce),
		chain.WithConnectorMetrics(s.Metrics),
		chain.WithConnectorLogger(s.Log),
		chain.OnAccountChange(s.rememberAccount))
	return nil
}

func (s *ServiceOptions) provider() (chain.Provider, error) {
	cfg := s.Config
	switch cfg.Wallet {
	case "", WalletRPC:
		return chain.NewRPCProvider(s.RPCClient), nil
	case WalletKey:
		if cfg.Keystore != "" {
			return chain.NewKeyProviderFromKeystore(cfg.Keystore, cfg.Passphrase)
		}
		if cfg.PrivateKey == "" {
			return nil, errors.New("key wallet needs FARMILY_KEYSTORE or FARMILY_PRIVATE_KEY")
		}
		return chain.NewKeyProviderFromHex(cfg.PrivateKey)
	}
	return nil, fmt.Errorf("unknown wallet kind %q", cfg.Wallet)
}

// rememberAccount keeps the last connected account across restarts.
func (s *ServiceOptions) rememberAccount(account string) {
	if s.Store == nil || account == "" {
		return
	}
	if err := s.Store.SetAccount(account); err != nil {
		s.Log.Warn().Err(err).Msg("failed to store account")
	}
}

func (s *ServiceOptions) initUseCases() {
	wallet, contract, coord, rest := s.Connector, s.Contract, s.Coordinator, s.Backend

	// Commands (each registers its persister with the coordinator)
	s.Commands = gateway.Commands{
		RegisterProduct:  register_product.NewInteractor(coord, wallet, rest),
		UpdateStatus:     update_status.NewInteractor(coord, wallet, rest),
		UpdateInfo:       update_info.NewInteractor(coord, wallet, rest),
		InitiateTransfer: initiate_transfer.NewInteractor(coord, wallet, rest),
		AcceptTransfer:   accept_transfer.NewInteractor(coord, wallet),
		CancelTransfer:   cancel_transfer.NewInteractor(coord, wallet),
		TriggerPayment:   trigger_payment.NewInteractor(coord, wallet),
		RegisterUser:     register_user.NewInteractor(coord, wallet),
		SyncProduct:      sync_product.NewInteractor(contract, rest),
		Reconcile:        reconcile.NewInteractor(coord),
	}

	// Queries
	s.Queries = gateway.Queries{
		GetProduct:       get_product.NewQuery(contract),
		VerifyProduct:    verify_product.NewQuery(contract),
		PendingTransfers: pending_transfers.NewQuery(contract, wallet),
		TransferStatus:   transfer_status.NewQuery(contract),
		ListActions:      list_actions.NewQuery(s.Ledger),
		ProductJourney:   product_journey.NewQuery(contract),
		ConsumerHistory:  consumer_history.NewQuery(contract, wallet),
		Balance:          balance.NewQuery(contract, wallet),
	}
}

func (s *ServiceOptions) pingSpanner(ctx context.Context) error {
	iter := s.SpannerClient.Single().Query(ctx, spanner.Statement{SQL: "SELECT 1"})
	defer iter.Stop()
	_, err := iter.Next()
	if errors.Is(err, iterator.Done) {
		return nil
	}
	return err
}

// Gateway returns the HTTP handler.
func (s *ServiceOptions) Gateway(timeout time.Duration) http.Handler {
	return gateway.NewHandler(s.Commands, s.Queries,
		gateway.WithMetrics(s.Metrics),
		gateway.WithLogger(s.Log),
		gateway.WithReadiness(s.Health.Ready),
		gateway.WithTimeout(timeout),
	).Routes()
}

// Start launches the poller, the health probe and the periodic workers.
func (s *ServiceOptions) Start(ctx context.Context) error {
	if err := s.Health.Start(ctx); err != nil {
		return err
	}
	if err := s.Poller.Start(ctx); err != nil {
		return err
	}
	for _, w := range s.workers {
		if err := w.Start(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Stop stops background work and waits for it.
func (s *ServiceOptions) Stop() {
	for _, w := range s.workers {
		_ = w.Stop()
	}
	if s.Poller != nil {
		_ = s.Poller.Stop()
	}
	if s.Health != nil {
		s.Health.Stop()
	}
}

// Close closes all resources.
func (s *ServiceOptions) Close() {
	if s.Publisher != nil {
		_ = s.Publisher.Close()
	}
	if s.SpannerClient != nil {
		s.SpannerClient.Close()
	}
	if s.Store != nil {
		_ = s.Store.Close()
	}
	if s.RPCClient != nil {
		s.RPCClient.Close()
	}
}
