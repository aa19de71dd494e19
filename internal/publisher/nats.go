package publisher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// Options configures the NATS publisher.
type Options struct {
	// URL is one or more comma-separated NATS server URLs.
	URL string

	// Timeout bounds each publish round-trip.
	Timeout time.Duration

	// JetStream publishes through JetStream so the returned message id
	// carries the broker-assigned stream sequence.
	JetStream bool

	Logger *slog.Logger
}

// NATS publishes messages over a single long-lived NATS connection.
type NATS struct {
	conn    *nats.Conn
	js      jetstream.JetStream
	timeout time.Duration
	logger  *slog.Logger
}

var (
	connectOnce sync.Once
	shared      *NATS
	connectErr  error
)

// Connect establishes the process-wide NATS connection. Subsequent calls
// return the same handle; the connection is never re-created, only the
// client's own reconnect loop maintains it.
func Connect(opts Options) (*NATS, error) {
	connectOnce.Do(func() {
		shared, connectErr = dial(opts)
	})
	return shared, connectErr
}

// dial opens the connection. Split from Connect so tests can construct
// independent instances.
func dial(opts Options) (*NATS, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}

	conn, err := nats.Connect(opts.URL,
		nats.Name("pubsub-webhook"),
		// Keep trying in the background when the broker is down at boot;
		// publishes fail with ErrUnavailable until it comes up.
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.Timeout(5*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("broker disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("broker reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}

	p := &NATS{
		conn:    conn,
		timeout: opts.Timeout,
		logger:  logger,
	}

	if opts.JetStream {
		js, err := jetstream.New(conn)
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("init jetstream: %w", err)
		}
		p.js = js
	}

	return p, nil
}

// Publish sends payload to subject, waiting at most the configured timeout
// for the broker round-trip. Exactly one attempt is made; on timeout the
// call returns and any late broker outcome is ignored.
func (p *NATS) Publish(ctx context.Context, subject string, payload []byte) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	msg := &nats.Msg{
		Subject: subject,
		Data:    payload,
		Header:  nats.Header{},
	}
	// Client-side id, doubles as the JetStream dedupe key.
	msgID := uuid.NewString()
	msg.Header.Set("Nats-Msg-Id", msgID)

	if p.js != nil {
		ack, err := p.js.PublishMsg(ctx, msg)
		if err != nil {
			return "", mapBrokerError(err)
		}
		return fmt.Sprintf("%s:%d", ack.Stream, ack.Sequence), nil
	}

	// Core NATS has no broker ack; flush bounds the round-trip instead.
	if err := p.conn.PublishMsg(msg); err != nil {
		return "", mapBrokerError(err)
	}
	if err := p.conn.FlushWithContext(ctx); err != nil {
		return "", mapBrokerError(err)
	}
	return msgID, nil
}

// Healthy reports whether the broker connection is currently up.
func (p *NATS) Healthy() bool {
	return p.conn != nil && p.conn.IsConnected()
}

// Close drains the connection, waiting briefly for buffered publishes.
func (p *NATS) Close() {
	if p.conn == nil {
		return
	}
	if err := p.conn.Drain(); err != nil {
		p.logger.Warn("broker drain failed", "error", err)
		p.conn.Close()
	}
}

// mapBrokerError folds broker errors into the package's failure categories,
// keeping the underlying cause in the chain for server-side logging.
func mapBrokerError(err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, nats.ErrTimeout):
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	case errors.Is(err, nats.ErrConnectionClosed),
		errors.Is(err, nats.ErrConnectionDraining),
		errors.Is(err, nats.ErrConnectionReconnecting),
		errors.Is(err, nats.ErrNoServers),
		errors.Is(err, nats.ErrNoResponders),
		errors.Is(err, jetstream.ErrNoStreamResponse):
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	case errors.Is(err, nats.ErrMaxPayload),
		errors.Is(err, nats.ErrInvalidMsg),
		errors.Is(err, nats.ErrBadSubject):
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	default:
		return fmt.Errorf("publish failed: %w", err)
	}
}
