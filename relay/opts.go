package relay

import (
	"time"

	"github.com/fogfish/opts"
)

var (
	// Endpoint sets the broker URL. Defaults to NATS_URL or the local broker.
	Endpoint = opts.ForName[Relay, string]("endpoint")

	// Name sets the client name reported to the broker.
	Name = opts.ForName[Relay, string]("name")

	// Username sets the broker username. Defaults to NATS_USER.
	Username = opts.ForName[Relay, string]("username")

	// Password sets the broker password. Defaults to NATS_PASSWORD.
	Password = opts.ForName[Relay, string]("password")

	// Token sets a bearer token, taking precedence over username/password.
	// Defaults to NATS_TOKEN.
	Token = opts.ForName[Relay, string]("token")

	// RequestTimeout sets the default deadline for Request calls (5s).
	RequestTimeout = opts.ForName[Relay, time.Duration]("requestTimeout")

	// DiscoveryTimeout sets the default deadline for DiscoverAgents and
	// GetAgentStatus calls (2s).
	DiscoveryTimeout = opts.ForName[Relay, time.Duration]("discoveryTimeout")
)
