// Package poller watches for transfers waiting on the connected account.
package poller

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/benomayebu/Farmily-Docs/internal/app/trace/contracts"
	"github.com/benomayebu/Farmily-Docs/internal/app/trace/queries/pending_transfers"
	"github.com/benomayebu/Farmily-Docs/internal/pkg/clock"
	"github.com/benomayebu/Farmily-Docs/internal/pkg/logging"
	"github.com/benomayebu/Farmily-Docs/internal/pkg/metrics"
	"github.com/benomayebu/Farmily-Docs/internal/pkg/worker"
)

// DefaultInterval matches the dashboard refresh of the web client.
const DefaultInterval = 30 * time.Second

// Lister is the pending transfers query.
type Lister interface {
	Execute(ctx context.Context, req *pending_transfers.Request) ([]contracts.TransferDTO, error)
}

// Poller keeps the latest pending transfer list for one account.
type Poller struct {
	lister   Lister
	account  string
	interval time.Duration
	clock    clock.Clock
	metrics  *metrics.Metrics
	log      zerolog.Logger
	onNew    func([]contracts.TransferDTO)

	mu     sync.Mutex
	latest []contracts.TransferDTO
	seen   map[string]string // product id -> initiating tx
	worker *worker.Periodic
}

// Option configures a Poller.
type Option func(*Poller)

// WithInterval overrides DefaultInterval. Non-positive values are ignored.
func WithInterval(d time.Duration) Option {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

func WithClock(c clock.Clock) Option {
	return func(p *Poller) { p.clock = c }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Poller) { p.metrics = m }
}

func WithLogger(l zerolog.Logger) Option {
	return func(p *Poller) { p.log = l }
}

// WithAccount polls for an explicit address instead of the connected one.
func WithAccount(account string) Option {
	return func(p *Poller) { p.account = account }
}

// OnNew is called with the transfers that appeared since the previous poll.
func OnNew(fn func([]contracts.TransferDTO)) Option {
	return func(p *Poller) { p.onNew = fn }
}

// New creates a stopped poller.
func New(lister Lister, opts ...Option) *Poller {
	p := &Poller{
		lister:   lister,
		interval: DefaultInterval,
		clock:    clock.NewRealClock(),
		log:      zerolog.Nop(),
		seen:     make(map[string]string),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.log = logging.Package(p.log, "poller")
	p.worker = worker.NewPeriodic("pending-transfers", p.interval, p.Poll,
		worker.WithClock(p.clock), worker.WithLogger(p.log), worker.Immediately())
	return p
}

// Start begins polling. The first poll runs right away.
func (p *Poller) Start(ctx context.Context) error { return p.worker.Start(ctx) }

// Stop ends polling and waits for an in-flight poll.
func (p *Poller) Stop() error { return p.worker.Stop() }

// Poll runs one query and records its result.
func (p *Poller) Poll(ctx context.Context) error {
	list, err := p.lister.Execute(ctx, &pending_transfers.Request{Account: p.account})
	if err != nil {
		return err
	}

	p.mu.Lock()
	var fresh []contracts.TransferDTO
	next := make(map[string]string, len(list))
	for _, tr := range list {
		next[tr.ProductID] = tr.TxHash
		if p.seen[tr.ProductID] != tr.TxHash {
			fresh = append(fresh, tr)
		}
	}
	p.seen = next
	p.latest = list
	p.mu.Unlock()

	p.metrics.SetPending(len(list))
	if len(fresh) > 0 {
		p.log.Info().Int("new", len(fresh)).Int("pending", len(list)).Msg("pending transfers arrived")
		if p.onNew != nil {
			p.onNew(fresh)
		}
	}
	return nil
}

// Latest returns the list from the most recent successful poll.
func (p *Poller) Latest() []contracts.TransferDTO {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]contracts.TransferDTO, len(p.latest))
	copy(out, p.latest)
	return out
}
