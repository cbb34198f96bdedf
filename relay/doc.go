/*
Package relay maintains the product's persistent connection to the message
broker and exposes agent messaging on top of it: publish, request/reply with
timeouts, fire-and-forget subscriptions, broadcast agent discovery, per-agent
status probes and per-agent message delivery.

The relay composes three pieces:

  - a transport handle owning the single physical broker connection, with
    unlimited automatic reconnection,
  - a codec translating domain values to UTF-8 JSON wire payloads,
  - a subscription registry giving each subject exactly one delivery loop
    and one cancellation path.

# Basic Usage

	r, err := relay.New(relay.Endpoint("nats://localhost:4222"))
	if err != nil { ... }
	if err := r.Connect(); err != nil { ... }
	defer r.Disconnect()

	agents := r.DiscoverAgents(ctx, 0)
	unsubscribe, err := r.SubscribeToAgent("ai2", func(msg gjson.Result) {
		fmt.Println(msg.Get("content").String())
	})

Processes that want a single shared relay use the accessor instead:

	r, err := relay.Instance()

Probing calls (DiscoverAgents, GetAgentStatus) are advisory and degrade to
empty results instead of failing; publishing calls propagate their errors.
Nothing in this package is durably stored — all state is in-memory and scoped
to the process or to a single request/reply round trip.
*/
package relay
