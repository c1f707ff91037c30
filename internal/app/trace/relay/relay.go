// Package relay forwards action transition events from the ledger outbox
// to the message bus.
package relay

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/benomayebu/Farmily-Docs/internal/app/trace/contracts"
	"github.com/benomayebu/Farmily-Docs/internal/pkg/logging"
	"github.com/benomayebu/Farmily-Docs/internal/pkg/metrics"
)

// Defaults.
const (
	SubjectPrefix     = "farmily.actions."
	DefaultBatchSize  = 100
	DefaultMaxRetries = 5
)

// Publisher delivers one message. id is stable across retries.
type Publisher interface {
	Publish(ctx context.Context, subject, id string, data []byte) error
}

// Relay drains pending outbox rows in batches.
type Relay struct {
	outbox     contracts.Outbox
	publisher  Publisher
	batchSize  int
	maxRetries int64
	metrics    *metrics.Metrics
	log        zerolog.Logger
}

// Option configures a Relay.
type Option func(*Relay)

func WithBatchSize(n int) Option {
	return func(r *Relay) { r.batchSize = n }
}

// WithMaxRetries sets how many failed deliveries park an event as failed.
func WithMaxRetries(n int64) Option {
	return func(r *Relay) { r.maxRetries = n }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Relay) { r.metrics = m }
}

func WithLogger(l zerolog.Logger) Option {
	return func(r *Relay) { r.log = l }
}

// New creates a Relay.
func New(outbox contracts.Outbox, publisher Publisher, opts ...Option) *Relay {
	r := &Relay{
		outbox:     outbox,
		publisher:  publisher,
		batchSize:  DefaultBatchSize,
		maxRetries: DefaultMaxRetries,
		log:        zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.log = logging.Package(r.log, "relay")
	return r
}

// Subject maps an event type such as "action.synced" to
// "farmily.actions.synced".
func Subject(eventType string) string {
	return SubjectPrefix + strings.TrimPrefix(eventType, "action.")
}

// RelayOnce publishes one batch and returns how many events were delivered.
// A failed delivery is counted against the event and the batch goes on.
func (r *Relay) RelayOnce(ctx context.Context) (int, error) {
	events, err := r.outbox.Pending(ctx, r.batchSize)
	if err != nil {
		return 0, err
	}

	delivered := 0
	for _, ev := range events {
		if err := ctx.Err(); err != nil {
			return delivered, err
		}
		subject := Subject(ev.EventType)
		if err := r.publisher.Publish(ctx, subject, ev.EventID, []byte(ev.Payload)); err != nil {
			r.metrics.Relayed("failed")
			r.log.Warn().Err(err).
				Str("event_id", ev.EventID).
				Str(logging.ACTION, ev.ActionID).
				Int64("retry", ev.RetryCount+1).
				Msg("publish failed")
			if markErr := r.outbox.MarkFailed(ctx, ev.EventID, err, r.maxRetries); markErr != nil {
				return delivered, markErr
			}
			continue
		}
		if err := r.outbox.MarkCompleted(ctx, ev.EventID); err != nil {
			return delivered, err
		}
		r.metrics.Relayed("published")
		delivered++
	}
	if delivered > 0 {
		r.log.Debug().Int("delivered", delivered).Int("batch", len(events)).Msg("outbox relayed")
	}
	return delivered, nil
}

// Task adapts RelayOnce to a periodic worker.
func (r *Relay) Task(ctx context.Context) error {
	_, err := r.RelayOnce(ctx)
	return err
}
