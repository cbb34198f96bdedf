// Command relay-probe exercises the agent messaging relay from the terminal:
// discover reachable agents, probe one agent's status, send it a message or
// watch its event stream. Broker endpoint and credentials come from the
// environment (NATS_URL, NATS_USER, NATS_PASSWORD, NATS_TOKEN), with .env
// support for local development.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/phsym/zeroslog"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"

	"github.com/jcrupi/bree-ai-sub000/relay"
)

var log zerolog.Logger

func init() {
	output := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Stamp}
	log = zerolog.New(output).With().Timestamp().Logger()
	slog.SetDefault(slog.New(
		zeroslog.NewHandler(log, &zeroslog.HandlerOptions{Level: slog.LevelInfo}),
	))
}

func usage() {
	fmt.Fprintf(os.Stderr, `usage: %[1]s <command> [args]

commands:
  discover              list agents currently answering on the bus
  status <agent>        probe one agent's status
  send <agent> <text>   deliver a message to an agent
  watch <agent>         stream an agent's events until interrupted
`, os.Args[0])
	os.Exit(2)
}

func main() {
	if len(os.Args) < 2 {
		usage()
	}

	r, err := relay.Instance()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to the broker")
	}
	defer relay.CloseInstance()

	ctx := context.Background()
	switch os.Args[1] {
	case "discover":
		discover(ctx, r)
	case "status":
		if len(os.Args) < 3 {
			usage()
		}
		status(ctx, r, os.Args[2])
	case "send":
		if len(os.Args) < 4 {
			usage()
		}
		send(r, os.Args[2], os.Args[3])
	case "watch":
		if len(os.Args) < 3 {
			usage()
		}
		watch(r, os.Args[2])
	default:
		usage()
	}
}

func discover(ctx context.Context, r *relay.Relay) {
	agents := r.DiscoverAgents(ctx, 0)
	if len(agents) == 0 {
		fmt.Println("no agents answered")
		return
	}
	for _, agent := range agents {
		fmt.Printf("%s\t%s\t%s\t%v\n", agent.AgentID, agent.Name, agent.Status.Status, agent.Capabilities)
	}
}

func status(ctx context.Context, r *relay.Relay, agentID string) {
	st := r.GetAgentStatus(ctx, agentID, 0)
	if st == nil {
		fmt.Printf("%s: no status (offline or unreachable)\n", agentID)
		return
	}
	fmt.Printf("%s: %s (last seen %s)\n", st.AgentID, st.Status, st.LastSeen)
}

func send(r *relay.Relay, agentID, content string) {
	if err := r.SendMessageToAgent(agentID, relay.NewAgentMessage(agentID, content)); err != nil {
		log.Fatal().Err(err).Str("agent", agentID).Msg("send failed")
	}
	fmt.Printf("sent to %s\n", agentID)
}

func watch(r *relay.Relay, agentID string) {
	unsubscribe, err := r.SubscribeToAgent(agentID, func(msg gjson.Result) {
		fmt.Println(msg.Raw)
	})
	if err != nil {
		log.Fatal().Err(err).Str("agent", agentID).Msg("subscribe failed")
	}
	defer unsubscribe()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
}
