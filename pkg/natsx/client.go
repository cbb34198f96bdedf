// Package natsx assembles NATS connection options for the agent relay.
//
// The relay's reconnect policy lives here: connections never give up on a
// momentarily unreachable broker. The client retries forever with a fixed
// delay between attempts, and only a deliberate Close ends the lifecycle.
package natsx

import (
	"os"
	"time"

	"github.com/nats-io/nats.go"
)

const (
	// ReconnectWait is the fixed delay between reconnect attempts.
	ReconnectWait = 2 * time.Second

	// DrainTimeout bounds the grace period for in-flight work on close.
	DrainTimeout = 5 * time.Second
)

// Credentials carries the optional broker authentication material. A bearer
// token takes precedence over username/password when both are set.
type Credentials struct {
	Username string
	Password string
	Token    string
}

// CredentialsFromEnv reads broker credentials from NATS_USER, NATS_PASSWORD
// and NATS_TOKEN. Unset variables leave the corresponding field empty.
func CredentialsFromEnv() Credentials {
	return Credentials{
		Username: os.Getenv("NATS_USER"),
		Password: os.Getenv("NATS_PASSWORD"),
		Token:    os.Getenv("NATS_TOKEN"),
	}
}

// EndpointFromEnv returns the broker URL from NATS_URL, falling back to the
// default local endpoint (nats://localhost:4222).
func EndpointFromEnv() string {
	if url := os.Getenv("NATS_URL"); url != "" {
		return url
	}
	return nats.DefaultURL
}

// Options builds the nats.Option set for a relay connection: client name,
// compression, unlimited reconnect attempts with a fixed 2s wait, and the
// provided credentials.
func Options(name string, creds Credentials) []nats.Option {
	options := []nats.Option{
		nats.Name(name),
		nats.Compression(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(ReconnectWait),
		nats.DrainTimeout(DrainTimeout),
	}
	switch {
	case creds.Token != "":
		options = append(options, nats.Token(creds.Token))
	case creds.Username != "":
		options = append(options, nats.UserInfo(creds.Username, creds.Password))
	}
	return options
}
