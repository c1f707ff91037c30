// Package nats publishes action transition events to a NATS server.
package nats

import (
	"context"
	"errors"
	"fmt"
	"time"

	natsio "github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/benomayebu/Farmily-Docs/internal/pkg/logging"
)

// Connection defaults.
const (
	DefaultConnectTimeout = 5 * time.Second
	DefaultReconnectWait  = 2 * time.Second
	DefaultFlushTimeout   = 5 * time.Second
)

// MsgIDHeader lets JetStream streams drop duplicates when the relay
// re-publishes an event after a crash.
const MsgIDHeader = natsio.MsgIdHdr

// ErrClosed is returned by Publish after Close.
var ErrClosed = errors.New("nats publisher closed")

// Conn is the part of *nats.Conn the publisher uses.
type Conn interface {
	PublishMsg(msg *natsio.Msg) error
	FlushWithContext(ctx context.Context) error
	Drain() error
	IsClosed() bool
}

// Publisher sends messages on one connection and waits for the server to
// acknowledge the flush.
type Publisher struct {
	conn Conn
	log  zerolog.Logger
}

// Connect dials url and keeps reconnecting forever.
func Connect(url, name string, log zerolog.Logger) (*Publisher, error) {
	log = logging.Package(log, "nats")
	conn, err := natsio.Connect(url,
		natsio.Name(name),
		natsio.Timeout(DefaultConnectTimeout),
		natsio.ReconnectWait(DefaultReconnectWait),
		natsio.MaxReconnects(-1),
		natsio.DisconnectErrHandler(func(_ *natsio.Conn, err error) {
			log.Warn().Err(err).Msg("disconnected")
		}),
		natsio.ReconnectHandler(func(c *natsio.Conn) {
			log.Info().Str("url", c.ConnectedUrl()).Msg("reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats %s: %w", url, err)
	}
	return NewPublisher(conn, log), nil
}

// NewPublisher wraps an open connection.
func NewPublisher(conn Conn, log zerolog.Logger) *Publisher {
	return &Publisher{conn: conn, log: log}
}

// Publish sends data on subject tagged with id. It returns once the server
// has processed the message or ctx is done.
func (p *Publisher) Publish(ctx context.Context, subject, id string, data []byte) error {
	if p.conn.IsClosed() {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := natsio.NewMsg(subject)
	msg.Data = data
	if id != "" {
		msg.Header.Set(MsgIDHeader, id)
	}
	if err := p.conn.PublishMsg(msg); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	// FlushWithContext refuses contexts without a deadline.
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultFlushTimeout)
		defer cancel()
	}
	if err := p.conn.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("flush %s: %w", subject, err)
	}
	return nil
}

// Close drains pending messages and closes the connection.
func (p *Publisher) Close() error {
	if p.conn.IsClosed() {
		return nil
	}
	return p.conn.Drain()
}
