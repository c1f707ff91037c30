// Package worker runs background loops under a tomb so they can be stopped
// and awaited.
package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/tomb.v2"

	"github.com/benomayebu/Farmily-Docs/internal/pkg/clock"
)

// ErrAlreadyStarted is returned by Start on a running worker.
var ErrAlreadyStarted = errors.New("worker already started")

// Task is one iteration of a periodic job. Errors are logged and the loop
// carries on; the next tick runs the task again.
type Task func(ctx context.Context) error

// Periodic runs a Task every Interval until stopped.
type Periodic struct {
	name      string
	interval  time.Duration
	clock     clock.Clock
	task      Task
	immediate bool
	log       zerolog.Logger

	mu      sync.Mutex
	t       *tomb.Tomb
	lastErr error
}

// Option configures a Periodic.
type Option func(*Periodic)

// WithClock replaces the real clock.
func WithClock(c clock.Clock) Option {
	return func(p *Periodic) { p.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(p *Periodic) { p.log = l }
}

// Immediately runs the task once on start instead of waiting a full interval.
func Immediately() Option {
	return func(p *Periodic) { p.immediate = true }
}

// NewPeriodic creates a stopped worker.
func NewPeriodic(name string, interval time.Duration, task Task, opts ...Option) *Periodic {
	p := &Periodic{
		name:     name,
		interval: interval,
		task:     task,
		clock:    clock.NewRealClock(),
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start launches the loop. The task context is cancelled when Stop is
// called or parent is done.
func (p *Periodic) Start(parent context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.t != nil && p.t.Alive() {
		return ErrAlreadyStarted
	}

	t, ctx := tomb.WithContext(parent)
	p.t = t
	t.Go(func() error {
		ticker := p.clock.NewTicker(p.interval)
		defer ticker.Stop()

		if p.immediate {
			p.runOnce(ctx)
		}
		for {
			select {
			case <-t.Dying():
				return nil
			case <-ticker.C():
				p.runOnce(ctx)
			}
		}
	})
	p.log.Debug().Str("worker", p.name).Dur("interval", p.interval).Msg("worker started")
	return nil
}

func (p *Periodic) runOnce(ctx context.Context) {
	err := p.task(ctx)
	p.mu.Lock()
	p.lastErr = err
	p.mu.Unlock()
	if err != nil && !errors.Is(err, context.Canceled) {
		p.log.Warn().Err(err).Str("worker", p.name).Msg("periodic task failed")
	}
}

// Stop kills the loop and waits for the running iteration to return.
// Stopping a worker that was never started is a no-op.
func (p *Periodic) Stop() error {
	p.mu.Lock()
	t := p.t
	p.mu.Unlock()
	if t == nil {
		return nil
	}
	t.Kill(nil)
	err := t.Wait()
	p.log.Debug().Str("worker", p.name).Msg("worker stopped")
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Alive reports whether the loop is running.
func (p *Periodic) Alive() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.t != nil && p.t.Alive()
}

// LastError returns the error of the most recent iteration.
func (p *Periodic) LastError() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastErr
}
