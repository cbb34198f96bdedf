package relay

import (
	"sync"

	"github.com/fogfish/opts"
)

// The process-wide relay. Composition roots that want explicit wiring should
// construct their own Relay with New; Instance and CloseInstance exist as a
// thin convenience over a single shared one.
var (
	globalMu sync.Mutex
	global   *Relay
)

// Instance returns the process-wide relay, lazily constructing and
// connecting it on first call. Concurrent first calls are serialized: only
// one underlying connection is ever opened, and every caller receives the
// same instance. Options are only consulted by the call that performs the
// construction.
func Instance(options ...opts.Option[Relay]) (*Relay, error) {
	globalMu.Lock()
	defer globalMu.Unlock()

	if global != nil {
		return global, nil
	}

	r, err := New(options...)
	if err != nil {
		return nil, err
	}
	if err := r.Connect(); err != nil {
		return nil, err
	}
	global = r
	return global, nil
}

// CloseInstance disconnects and clears the process-wide relay, so a
// subsequent Instance performs a fresh connect. No-op when nothing was
// initialized.
func CloseInstance() {
	globalMu.Lock()
	defer globalMu.Unlock()

	if global == nil {
		return
	}
	global.Disconnect()
	global = nil
}
