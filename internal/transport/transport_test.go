package transport

import (
	"context"
	"errors"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	natsserver "github.com/nats-io/nats-server/v2/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcrupi/bree-ai-sub000/pkg/natsx"
)

func runServer(t *testing.T) *server.Server {
	t.Helper()
	opts := natsserver.DefaultTestOptions
	opts.Port = -1
	srv := natsserver.RunServer(&opts)
	t.Cleanup(srv.Shutdown)
	return srv
}

func openHandle(t *testing.T, srv *server.Server) *Handle {
	t.Helper()
	h, err := Open(srv.ClientURL(), natsx.Options("transport-test", natsx.Credentials{})...)
	require.NoError(t, err)
	t.Cleanup(h.Close)
	return h
}

func TestOpen(t *testing.T) {
	t.Run("connects and reports connected", func(t *testing.T) {
		srv := runServer(t)
		h := openHandle(t, srv)
		assert.True(t, h.IsConnected())
	})

	t.Run("fails on unreachable endpoint", func(t *testing.T) {
		_, err := Open("nats://127.0.0.1:1")
		require.Error(t, err)
	})

	t.Run("emits connected as the first status event", func(t *testing.T) {
		srv := runServer(t)
		h := openHandle(t, srv)

		select {
		case status := <-h.StatusC():
			assert.Equal(t, StatusConnected, status)
		case <-time.After(time.Second):
			t.Fatal("no status event after connect")
		}
	})
}

func TestPublishSubscribe(t *testing.T) {
	t.Run("delivers published messages", func(t *testing.T) {
		srv := runServer(t)
		h := openHandle(t, srv)

		sub, err := h.Subscribe("relay.test.pubsub")
		require.NoError(t, err)
		defer sub.Unsubscribe()

		require.NoError(t, h.Publish("relay.test.pubsub", []byte(`{"foo":"bar"}`)))

		select {
		case msg := <-sub.Msgs():
			assert.Equal(t, []byte(`{"foo":"bar"}`), msg.Data)
		case <-time.After(2 * time.Second):
			t.Fatal("message was not delivered")
		}
	})

	t.Run("unsubscribe stops delivery", func(t *testing.T) {
		srv := runServer(t)
		h := openHandle(t, srv)

		sub, err := h.Subscribe("relay.test.cancel")
		require.NoError(t, err)
		sub.Unsubscribe()

		require.NoError(t, h.Publish("relay.test.cancel", []byte("late")))

		select {
		case msg := <-sub.Msgs():
			t.Fatalf("received message after unsubscribe: %q", msg.Data)
		case <-time.After(200 * time.Millisecond):
		}
	})

	t.Run("unsubscribe is idempotent", func(t *testing.T) {
		srv := runServer(t)
		h := openHandle(t, srv)

		sub, err := h.Subscribe("relay.test.idempotent")
		require.NoError(t, err)
		sub.Unsubscribe()
		sub.Unsubscribe()
	})

	t.Run("publish after close reports not connected", func(t *testing.T) {
		srv := runServer(t)
		h, err := Open(srv.ClientURL(), natsx.Options("transport-test", natsx.Credentials{})...)
		require.NoError(t, err)
		h.Close()

		err = h.Publish("relay.test.closed", []byte("nope"))
		require.ErrorIs(t, err, ErrNotConnected)
	})
}

func TestRequest(t *testing.T) {
	t.Run("round-trips a reply", func(t *testing.T) {
		srv := runServer(t)
		h := openHandle(t, srv)

		responder := openHandle(t, srv)
		sub, err := responder.Subscribe("relay.test.echo")
		require.NoError(t, err)
		defer sub.Unsubscribe()
		go func() {
			msg := <-sub.Msgs()
			_ = msg.Respond(append([]byte("ack:"), msg.Data...))
		}()

		reply, err := h.Request(context.Background(), "relay.test.echo", []byte("ping"), 2*time.Second)
		require.NoError(t, err)
		assert.Equal(t, []byte("ack:ping"), reply)
	})

	t.Run("distinguishes no responders from generic errors", func(t *testing.T) {
		srv := runServer(t)
		h := openHandle(t, srv)

		start := time.Now()
		_, err := h.Request(context.Background(), "relay.test.nobody", []byte("ping"), time.Second)
		require.Error(t, err)
		assert.True(t, isTimeoutClass(err), "expected timeout or no-responders, got %v", err)
		assert.Less(t, time.Since(start), 1500*time.Millisecond)
	})

	t.Run("times out when the responder never replies", func(t *testing.T) {
		srv := runServer(t)
		h := openHandle(t, srv)

		silent := openHandle(t, srv)
		sub, err := silent.Subscribe("relay.test.silent")
		require.NoError(t, err)
		defer sub.Unsubscribe()

		start := time.Now()
		_, err = h.Request(context.Background(), "relay.test.silent", []byte("ping"), 100*time.Millisecond)
		require.ErrorIs(t, err, ErrTimeout)
		elapsed := time.Since(start)
		assert.GreaterOrEqual(t, elapsed, 100*time.Millisecond)
		assert.Less(t, elapsed, time.Second)
	})

	t.Run("request after close reports not connected", func(t *testing.T) {
		srv := runServer(t)
		h, err := Open(srv.ClientURL(), natsx.Options("transport-test", natsx.Credentials{})...)
		require.NoError(t, err)
		h.Close()

		_, err = h.Request(context.Background(), "relay.test.closed", []byte("ping"), time.Second)
		require.ErrorIs(t, err, ErrNotConnected)
	})
}

func TestStatusStream(t *testing.T) {
	t.Run("reconnect cycle is observable", func(t *testing.T) {
		srv := runServer(t)
		h, err := Open(srv.ClientURL(), natsx.Options("transport-test", natsx.Credentials{})...)
		require.NoError(t, err)
		t.Cleanup(h.Close)

		require.Equal(t, StatusConnected, <-h.StatusC())

		// Bounce the server on the same address to trigger the client's
		// reconnect loop.
		addr := srv.Addr().String()
		srv.Shutdown()

		select {
		case status := <-h.StatusC():
			assert.Equal(t, StatusReconnecting, status)
		case <-time.After(5 * time.Second):
			t.Fatal("no reconnecting event after server shutdown")
		}

		opts := natsserver.DefaultTestOptions
		host, port := splitHostPort(t, addr)
		opts.Host = host
		opts.Port = port
		srv2 := natsserver.RunServer(&opts)
		t.Cleanup(srv2.Shutdown)

		select {
		case status := <-h.StatusC():
			assert.Equal(t, StatusReconnected, status)
		case <-time.After(10 * time.Second):
			t.Fatal("no reconnected event after server restart")
		}
	})

	t.Run("close terminates the stream", func(t *testing.T) {
		srv := runServer(t)
		h, err := Open(srv.ClientURL(), natsx.Options("transport-test", natsx.Credentials{})...)
		require.NoError(t, err)

		require.Equal(t, StatusConnected, <-h.StatusC())
		h.Close()

		deadline := time.After(5 * time.Second)
		for {
			select {
			case status, ok := <-h.StatusC():
				if !ok {
					return // stream closed, as promised
				}
				assert.Contains(t, []Status{StatusReconnecting, StatusClosed}, status)
			case <-deadline:
				t.Fatal("status stream never closed")
			}
		}
	})

	t.Run("close is idempotent", func(t *testing.T) {
		srv := runServer(t)
		h, err := Open(srv.ClientURL(), natsx.Options("transport-test", natsx.Credentials{})...)
		require.NoError(t, err)
		h.Close()
		h.Close()
	})
}

// isTimeoutClass reports whether err is one of the two "nobody answered"
// outcomes a requester treats as expected.
func isTimeoutClass(err error) bool {
	return errors.Is(err, ErrTimeout) || errors.Is(err, ErrNoResponders)
}

func splitHostPort(t *testing.T, addr string) (string, int) {
	t.Helper()
	host, portStr, err := net.SplitHostPort(addr)
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	return host, port
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "connected", StatusConnected.String())
	assert.Equal(t, "disconnected", StatusDisconnected.String())
	assert.Equal(t, "reconnecting", StatusReconnecting.String())
	assert.Equal(t, "reconnected", StatusReconnected.String())
	assert.Equal(t, "closed", StatusClosed.String())
	assert.Equal(t, "status(99)", Status(99).String())
}
