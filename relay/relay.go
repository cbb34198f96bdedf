package relay

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fogfish/opts"
	"github.com/tidwall/gjson"

	"github.com/jcrupi/bree-ai-sub000/internal/subscriptions"
	"github.com/jcrupi/bree-ai-sub000/internal/transport"
	"github.com/jcrupi/bree-ai-sub000/pkg/codec"
	"github.com/jcrupi/bree-ai-sub000/pkg/natsx"
)

const (
	defaultRequestTimeout   = 5 * time.Second
	defaultDiscoveryTimeout = 2 * time.Second
)

// Handler receives one decoded inbound message. Payloads that are not valid
// JSON never reach a Handler; they are logged and dropped.
type Handler func(msg gjson.Result)

// Relay is the façade over the broker connection: lifecycle, publish,
// request/reply and subscription management. One Relay owns one connection
// and is safe for concurrent use by all callers in the process.
type Relay struct {
	endpoint         string
	name             string
	username         string
	password         string
	token            string
	requestTimeout   time.Duration
	discoveryTimeout time.Duration

	mu           sync.Mutex
	state        ConnectionState
	handle       *transport.Handle
	reconnecting bool

	subs *subscriptions.Registry
}

// New constructs a disconnected Relay. Endpoint and credentials default from
// the environment (NATS_URL, NATS_USER, NATS_PASSWORD, NATS_TOKEN) and can
// be overridden with options.
func New(options ...opts.Option[Relay]) (*Relay, error) {
	creds := natsx.CredentialsFromEnv()
	r := &Relay{
		endpoint:         natsx.EndpointFromEnv(),
		name:             "agent-relay",
		username:         creds.Username,
		password:         creds.Password,
		token:            creds.Token,
		requestTimeout:   defaultRequestTimeout,
		discoveryTimeout: defaultDiscoveryTimeout,
		state:            Disconnected,
		subs:             subscriptions.New(),
	}
	if err := opts.Apply(r, options); err != nil {
		return nil, err
	}
	return r, nil
}

// Connect opens the broker connection. No-op when already connected or
// connecting. A failure here is surfaced to the caller and not retried —
// it means the endpoint or credentials are wrong. Drops after a successful
// Connect are healed transparently by the transport's own reconnect loop.
func (r *Relay) Connect() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == Connected || r.state == Connecting {
		return nil
	}
	r.state = Connecting

	handle, err := transport.Open(r.endpoint, natsx.Options(r.name, natsx.Credentials{
		Username: r.username,
		Password: r.password,
		Token:    r.token,
	})...)
	if err != nil {
		r.state = Disconnected
		return fmt.Errorf("%w: %s: %v", ErrConnect, r.endpoint, err)
	}

	r.handle = handle
	r.state = Connected
	r.reconnecting = false
	go r.watchStatus(handle)
	return nil
}

// watchStatus consumes the transport's status stream for the lifetime of one
// connection. It is never awaited by a request-path caller and terminates
// only when the stream closes, i.e. on Disconnect.
func (r *Relay) watchStatus(h *transport.Handle) {
	for status := range h.StatusC() {
		switch status {
		case transport.StatusConnected, transport.StatusReconnected:
			r.applyStatus(h, Connected, false)
		case transport.StatusDisconnected, transport.StatusReconnecting:
			r.applyStatus(h, Reconnecting, true)
		case transport.StatusClosed:
			// Deliberate close; Disconnect owns the final state.
		}
	}
}

// applyStatus applies a transition only while h is still the current handle,
// so a stale watcher from a previous connection cannot clobber a fresh one.
func (r *Relay) applyStatus(h *transport.Handle, s ConnectionState, reconnecting bool) {
	r.mu.Lock()
	if r.handle == h {
		r.state = s
		r.reconnecting = reconnecting
	}
	r.mu.Unlock()
}

// Disconnect tears down every subscription, closes the connection and resets
// the state. Safe to call when already disconnected.
func (r *Relay) Disconnect() {
	r.subs.Clear()

	r.mu.Lock()
	handle := r.handle
	r.handle = nil
	r.state = Disconnected
	r.reconnecting = false
	r.mu.Unlock()

	if handle != nil {
		handle.Close()
	}
}

// State returns the current connection state.
func (r *Relay) State() ConnectionState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// IsConnected reports whether the relay is usable right now: connected and
// not in the middle of a silent reconnect.
func (r *Relay) IsConnected() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state == Connected && !r.reconnecting
}

// connection returns the live transport handle or ErrNotConnected.
func (r *Relay) connection() (*transport.Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.handle == nil || r.state == Disconnected {
		return nil, ErrNotConnected
	}
	return r.handle, nil
}

// Publish encodes v and sends it on subject, fire and forget.
func (r *Relay) Publish(subject string, v any) error {
	h, err := r.connection()
	if err != nil {
		return err
	}
	data, err := codec.Encode(v)
	if err != nil {
		return err
	}
	return h.Publish(subject, data)
}

// Request encodes v, sends it on subject and awaits exactly one reply. A
// non-positive timeout uses the relay's default (5s). Broker timeouts and
// no-responder reports both normalize to ErrRequestTimeout: callers must not
// need to distinguish a slow responder from an absent one.
func (r *Relay) Request(ctx context.Context, subject string, v any, timeout time.Duration) ([]byte, error) {
	h, err := r.connection()
	if err != nil {
		return nil, err
	}
	if timeout <= 0 {
		timeout = r.requestTimeout
	}
	data, err := codec.Encode(v)
	if err != nil {
		return nil, err
	}

	reply, err := h.Request(ctx, subject, data, timeout)
	if err != nil {
		if errors.Is(err, transport.ErrTimeout) || errors.Is(err, transport.ErrNoResponders) {
			return nil, fmt.Errorf("%w: no response from %s", ErrRequestTimeout, subject)
		}
		return nil, err
	}
	return reply, nil
}

// Subscribe binds handler to subject. Re-subscribing a subject replaces the
// prior handler; subscriptions are keyed by subject, not by call site. The
// returned func unsubscribes and guarantees no handler invocation after it
// returns.
func (r *Relay) Subscribe(subject string, handler Handler) (func(), error) {
	h, err := r.connection()
	if err != nil {
		return nil, err
	}
	sub, err := h.Subscribe(subject)
	if err != nil {
		return nil, err
	}
	return r.subs.Register(subject, sub, decodeInto(handler)), nil
}

// decodeInto wraps a Handler so the delivery loop decodes before dispatch.
// A malformed payload is reported as ErrDecode, which the registry logs and
// swallows without killing the loop.
func decodeInto(handler Handler) subscriptions.Handler {
	return func(data []byte) error {
		if !gjson.ValidBytes(data) {
			return fmt.Errorf("%w: message is not valid JSON", ErrDecode)
		}
		handler(gjson.ParseBytes(data))
		return nil
	}
}
