package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-openapi/strfmt"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/jcrupi/bree-ai-sub000/pkg/codec"
	"github.com/jcrupi/bree-ai-sub000/pkg/slogx"
)

// SubjectDiscovery is the well-known broadcast subject agents answer on.
const SubjectDiscovery = "agents.discovery"

// StatusSubject returns the status-query subject for an agent.
func StatusSubject(agentID string) string {
	return "agents." + agentID + ".status"
}

// MessageSubject returns the inbound-message subject for an agent.
func MessageSubject(agentID string) string {
	return "agents." + agentID + ".messages"
}

// EventSubject returns the outbound-event subject for an agent.
func EventSubject(agentID string) string {
	return "agents." + agentID + ".events"
}

// DiscoverAgents broadcasts a discovery request and awaits one reply within
// timeout (default 2s). The reply may carry a single agent object or an
// array of them; both normalize into a flat list. Discovery is advisory and
// never fails the caller: an unreachable broker, an absent responder or a
// malformed reply all yield an empty list. Failures outside the expected
// timeout class are logged at WARN so a degraded bus stays observable.
func (r *Relay) DiscoverAgents(ctx context.Context, timeout time.Duration) []AgentInfo {
	if timeout <= 0 {
		timeout = r.discoveryTimeout
	}

	reply, err := r.Request(ctx, SubjectDiscovery, discoveryPayload(), timeout)
	if err != nil {
		if errors.Is(err, ErrRequestTimeout) || errors.Is(err, ErrNotConnected) {
			slog.Debug("agent discovery: no replies", slogx.Error(err))
		} else {
			slog.Warn("agent discovery degraded", slogx.Error(err))
		}
		return []AgentInfo{}
	}

	agents, err := normalizeAgentList(reply)
	if err != nil {
		slog.Warn("agent discovery: malformed reply", slogx.Error(err), slogx.ByteString("payload", reply))
		return []AgentInfo{}
	}
	return agents
}

// discoveryPayload builds the broadcast request body.
func discoveryPayload() []byte {
	body, _ := sjson.SetBytes([]byte(`{"type":"discovery"}`), "timestamp",
		strfmt.DateTime(time.Now().UTC()).String())
	return body
}

// normalizeAgentList folds the object-or-array ambiguity of discovery
// replies into a single list type at the boundary, so it never propagates
// past this package.
func normalizeAgentList(data []byte) ([]AgentInfo, error) {
	doc := gjson.ParseBytes(data)
	switch {
	case doc.IsArray():
		var agents []AgentInfo
		if err := codec.Decode(data, &agents); err != nil {
			return nil, err
		}
		return agents, nil
	case doc.IsObject():
		var agent AgentInfo
		if err := codec.Decode(data, &agent); err != nil {
			return nil, err
		}
		return []AgentInfo{agent}, nil
	default:
		return nil, fmt.Errorf("%w: discovery reply is neither object nor array", ErrDecode)
	}
}

// GetAgentStatus probes one agent's status subject and returns its reply,
// or nil on any failure — timeout, decode error or transport error. Status
// queries are best-effort probes and never propagate errors.
func (r *Relay) GetAgentStatus(ctx context.Context, agentID string, timeout time.Duration) *AgentStatus {
	if timeout <= 0 {
		timeout = r.discoveryTimeout
	}

	reply, err := r.Request(ctx, StatusSubject(agentID), statusProbePayload(agentID), timeout)
	if err != nil {
		slog.Debug("agent status probe failed", slogx.Agent(agentID), slogx.Error(err))
		return nil
	}

	var status AgentStatus
	if err := codec.Decode(reply, &status); err != nil {
		slog.Warn("agent status: malformed reply", slogx.Agent(agentID), slogx.Error(err))
		return nil
	}
	return &status
}

func statusProbePayload(agentID string) []byte {
	body, _ := sjson.SetBytes([]byte(`{"type":"status"}`), "agentId", agentID)
	return body
}

// SendMessageToAgent publishes msg on the agent's message subject. Unlike
// the probing calls, a failed send is an error the caller asked for, so it
// propagates.
func (r *Relay) SendMessageToAgent(agentID string, msg AgentMessage) error {
	return r.Publish(MessageSubject(agentID), msg)
}

// SubscribeToAgent binds handler to the agent's event subject.
func (r *Relay) SubscribeToAgent(agentID string, handler Handler) (func(), error) {
	return r.Subscribe(EventSubject(agentID), handler)
}
