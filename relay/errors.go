package relay

import (
	"errors"

	"github.com/jcrupi/bree-ai-sub000/internal/transport"
	"github.com/jcrupi/bree-ai-sub000/pkg/codec"
)

var (
	// ErrNotConnected is returned by every operation other than Connect when
	// the relay has no open connection.
	ErrNotConnected = transport.ErrNotConnected

	// ErrRequestTimeout is the normalized "no response" error for Request
	// and its derivatives. Broker-level timeouts and no-responder reports
	// both collapse into it: callers should not need to care which one the
	// broker chose to report.
	ErrRequestTimeout = errors.New("relay: request timed out")

	// ErrDecode marks a malformed payload, isolated to the single message or
	// call that produced it.
	ErrDecode = codec.ErrDecode

	// ErrConnect is returned when the initial connection cannot be
	// established. Unlike later drops, this is not retried: it usually means
	// the endpoint or credentials are wrong.
	ErrConnect = errors.New("relay: connect failed")
)
