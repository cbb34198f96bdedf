// Package subscriptions tracks active subject subscriptions and gives each
// one a single owner and a single cancellation path.
//
// Entries are keyed by subject: re-registering a subject cancels the prior
// entry's delivery loop and replaces it. Every entry runs its own delivery
// loop; loops are concurrent with each other and are never serialized by a
// global lock — only registration, replacement and removal are.
package subscriptions

import (
	"context"
	"log/slog"
	"sync"

	"github.com/alphadose/haxmap"
	"github.com/google/uuid"

	"github.com/jcrupi/bree-ai-sub000/internal/transport"
	"github.com/jcrupi/bree-ai-sub000/pkg/slogx"
)

// Handler consumes one inbound message payload. A returned error is logged
// and that single message dropped; it never terminates the delivery loop.
// Handlers must not call back into the registry for their own subject.
type Handler func(data []byte) error

// Registry is the only shared mutable state besides the transport handle.
// The mutex serializes insert/replace/remove; delivery loops run free.
type Registry struct {
	mu      sync.Mutex
	entries *haxmap.Map[string, *entry]
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{entries: haxmap.New[string, *entry]()}
}

type entry struct {
	id      string
	subject string
	sub     *transport.Subscription
	handler Handler
	cancel  context.CancelFunc
	done    chan struct{}
}

// Register binds handler to subject, taking ownership of sub. If the subject
// already has an active entry, that entry's delivery loop is cancelled and
// replaced before the new loop starts. The returned func unregisters this
// entry; a stale cancel func kept across a re-registration is a no-op for
// the replacement.
func (r *Registry) Register(subject string, sub *transport.Subscription, handler Handler) func() {
	ctx, cancel := context.WithCancel(context.Background())
	e := &entry{
		id:      uuid.Must(uuid.NewV7()).String(),
		subject: subject,
		sub:     sub,
		handler: handler,
		cancel:  cancel,
		done:    make(chan struct{}),
	}

	r.mu.Lock()
	if prev, ok := r.entries.Get(subject); ok {
		prev.stop()
	}
	r.entries.Set(subject, e)
	r.mu.Unlock()

	go e.run(ctx)

	return func() { r.remove(e) }
}

// Unregister cancels the delivery loop for subject and removes the entry.
// No-op when the subject is not registered. On return, no further handler
// invocation for the subject can occur.
func (r *Registry) Unregister(subject string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries.Get(subject); ok {
		e.stop()
		r.entries.Del(subject)
	}
}

// Clear cancels and removes every entry. Used exclusively during disconnect:
// no entry may outlive the connection it was created against.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries.ForEach(func(subject string, e *entry) bool {
		e.stop()
		r.entries.Del(subject)
		return true
	})
}

// Len reports the number of active entries.
func (r *Registry) Len() int {
	return int(r.entries.Len())
}

// remove tears down e only while it is still the active entry for its
// subject, so a cancel func that survived a re-registration cannot kill the
// replacement loop.
func (r *Registry) remove(e *entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.entries.Get(e.subject)
	if ok && cur.id == e.id {
		r.entries.Del(e.subject)
	}
	e.stop()
}

// stop cancels the loop, halts broker delivery and waits for the loop to
// exit. Safe to call more than once.
func (e *entry) stop() {
	e.cancel()
	e.sub.Unsubscribe()
	<-e.done
}

// run is the delivery loop: one goroutine per entry, alive until the entry
// is cancelled.
func (e *entry) run(ctx context.Context) {
	defer close(e.done)
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-e.sub.Msgs():
			if !ok {
				return
			}
			// Re-check after the receive: a message that was already
			// buffered when the entry was cancelled is dropped, not
			// delivered.
			select {
			case <-ctx.Done():
				return
			default:
			}
			if err := e.handler(msg.Data); err != nil {
				slog.Error("subscription handler failed", slogx.Error(err), slogx.Subject(e.subject))
			}
		}
	}
}
