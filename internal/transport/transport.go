// Package transport owns the single physical connection to the message
// broker and translates the relay's abstract operations into wire calls.
package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/jcrupi/bree-ai-sub000/pkg/slogx"
)

// Status is a connection-state transition reported by the broker client.
type Status int

const (
	// StatusConnected is emitted once when the connection is first opened.
	StatusConnected Status = iota
	// StatusDisconnected is emitted when the connection drops unexpectedly.
	StatusDisconnected
	// StatusReconnecting is emitted while the client retries the broker.
	StatusReconnecting
	// StatusReconnected is emitted when a dropped connection is restored.
	StatusReconnected
	// StatusClosed is emitted when the connection is closed for good. It is
	// always the final event on the status stream.
	StatusClosed
)

func (s Status) String() string {
	switch s {
	case StatusConnected:
		return "connected"
	case StatusDisconnected:
		return "disconnected"
	case StatusReconnecting:
		return "reconnecting"
	case StatusReconnected:
		return "reconnected"
	case StatusClosed:
		return "closed"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

var (
	// ErrNotConnected is returned when an operation is attempted without an
	// open connection.
	ErrNotConnected = errors.New("transport: not connected")

	// ErrTimeout is returned when no reply arrives within the caller's
	// deadline. It is an expected, non-fatal outcome for probing calls.
	ErrTimeout = errors.New("transport: request timed out")

	// ErrNoResponders is returned when the broker confirms that nobody is
	// subscribed on the subject. Callers treat it like a timeout: "nobody is
	// listening" is not a transport failure.
	ErrNoResponders = errors.New("transport: no responders on subject")
)

const (
	statusBuffer  = 16
	inboundBuffer = 64
)

// Handle wraps exactly one broker connection. It is safe for concurrent use;
// the underlying client multiplexes requests and subscriptions internally.
type Handle struct {
	conn      *nats.Conn
	statusC   chan Status
	closed    chan struct{}
	closeOnce sync.Once
}

// Open establishes the connection to the broker at endpoint. Reconnection
// behavior comes from the supplied options (the relay passes natsx.Options,
// which retries forever with a fixed wait); once Open returns successfully
// the handle never surfaces a terminal failure on its own — only Close ends
// the lifecycle.
func Open(endpoint string, options ...nats.Option) (*Handle, error) {
	h := &Handle{
		statusC: make(chan Status, statusBuffer),
		closed:  make(chan struct{}),
	}
	options = append(options,
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				slog.Warn("broker connection lost", slogx.Error(err))
			}
			h.push(StatusReconnecting)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("broker connection restored", slog.String("server", nc.ConnectedUrl()))
			h.push(StatusReconnected)
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			h.push(StatusClosed)
			close(h.statusC)
			close(h.closed)
		}),
	)

	conn, err := nats.Connect(endpoint, options...)
	if err != nil {
		return nil, fmt.Errorf("transport: open %s: %w", endpoint, err)
	}
	h.conn = conn
	h.push(StatusConnected)
	return h, nil
}

// push delivers a status event without ever blocking the client's callback
// goroutine. The consumer may lag; state transitions are level events, so
// dropping one under pressure is safe.
func (h *Handle) push(s Status) {
	select {
	case h.statusC <- s:
	default:
	}
}

// StatusC returns the stream of connection-state transitions. The channel is
// closed only when the connection is closed for good, which terminates the
// consumer's range loop.
func (h *Handle) StatusC() <-chan Status {
	return h.statusC
}

// IsConnected reports whether the connection is currently established.
func (h *Handle) IsConnected() bool {
	return h.conn.IsConnected()
}

// Publish sends data on subject, fire and forget. While the client is
// reconnecting, publishes buffer in the client's reconnect buffer and flush
// when the connection is restored; only a closed connection fails.
func (h *Handle) Publish(subject string, data []byte) error {
	if h.conn.IsClosed() {
		return ErrNotConnected
	}
	if err := h.conn.Publish(subject, data); err != nil {
		if errors.Is(err, nats.ErrConnectionClosed) {
			return ErrNotConnected
		}
		return fmt.Errorf("transport: publish %s: %w", subject, err)
	}
	return nil
}

// Request sends data on subject and awaits exactly one reply, for at most
// timeout. A missing reply is ErrTimeout; a broker-confirmed absence of
// subscribers is ErrNoResponders. Both are distinguishable from generic
// transport errors via errors.Is.
func (h *Handle) Request(ctx context.Context, subject string, data []byte, timeout time.Duration) ([]byte, error) {
	if h.conn.IsClosed() {
		return nil, ErrNotConnected
	}
	rctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	msg, err := h.conn.RequestWithContext(rctx, subject, data)
	if err != nil {
		switch {
		case errors.Is(err, nats.ErrNoResponders):
			return nil, fmt.Errorf("%w: %s", ErrNoResponders, subject)
		case errors.Is(err, nats.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
			return nil, fmt.Errorf("%w: %s", ErrTimeout, subject)
		case errors.Is(err, nats.ErrConnectionClosed):
			return nil, ErrNotConnected
		default:
			return nil, fmt.Errorf("transport: request %s: %w", subject, err)
		}
	}
	return msg.Data, nil
}

// Subscribe opens a channel-fed subscription on subject. The returned
// Subscription delivers inbound messages on Msgs until Unsubscribe is called.
func (h *Handle) Subscribe(subject string) (*Subscription, error) {
	if h.conn.IsClosed() {
		return nil, ErrNotConnected
	}
	msgs := make(chan *nats.Msg, inboundBuffer)
	sub, err := h.conn.ChanSubscribe(subject, msgs)
	if err != nil {
		if errors.Is(err, nats.ErrConnectionClosed) {
			return nil, ErrNotConnected
		}
		return nil, fmt.Errorf("transport: subscribe %s: %w", subject, err)
	}
	return &Subscription{subject: subject, sub: sub, msgs: msgs}, nil
}

// Close drains in-flight work within the client's drain timeout, then
// releases the connection. Idempotent.
func (h *Handle) Close() {
	h.closeOnce.Do(func() {
		if h.conn.IsClosed() {
			return
		}
		if err := h.conn.Drain(); err != nil {
			h.conn.Close()
			return
		}
		select {
		case <-h.closed:
		case <-time.After(h.conn.Opts.DrainTimeout + time.Second):
			h.conn.Close()
		}
	})
}

// Subscription is a lazy, cancellable stream of inbound raw messages bound
// to a single subject.
type Subscription struct {
	subject string
	sub     *nats.Subscription
	msgs    chan *nats.Msg
	once    sync.Once
}

// Subject returns the subject this subscription is bound to.
func (s *Subscription) Subject() string {
	return s.subject
}

// Msgs returns the inbound message channel. The channel is never closed;
// after Unsubscribe it simply stops receiving.
func (s *Subscription) Msgs() <-chan *nats.Msg {
	return s.msgs
}

// Unsubscribe stops delivery immediately. Messages already buffered are
// dropped by the delivery loop, never handed to a handler. Idempotent.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		err := s.sub.Unsubscribe()
		if err != nil && !errors.Is(err, nats.ErrConnectionClosed) && !errors.Is(err, nats.ErrBadSubscription) {
			slog.Error("failed to unsubscribe", slogx.Error(err), slogx.Subject(s.subject))
		}
	})
}
