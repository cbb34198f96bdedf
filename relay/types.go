package relay

import (
	"fmt"
	"time"

	"github.com/go-openapi/strfmt"
)

// ConnectionState is the relay's view of the broker connection. It is the
// single source of truth for whether operations are permitted.
type ConnectionState int

const (
	// Disconnected means no connection exists; every operation other than
	// Connect fails fast with ErrNotConnected.
	Disconnected ConnectionState = iota
	// Connecting means Connect is establishing the initial session.
	Connecting
	// Connected means the session is established and healthy.
	Connected
	// Reconnecting means the session dropped and the transport is retrying.
	Reconnecting
)

func (s ConnectionState) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Reconnecting:
		return "reconnecting"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// AgentPresence is the availability reported by a remote agent.
type AgentPresence string

const (
	PresenceOnline  AgentPresence = "online"
	PresenceOffline AgentPresence = "offline"
	PresenceBusy    AgentPresence = "busy"
)

// AgentMessage is the value published to an agent's message subject.
// Immutable once constructed; it has no lifecycle beyond a single publish.
type AgentMessage struct {
	AgentID   string          `json:"agentId"`
	Content   string          `json:"content"`
	Timestamp strfmt.DateTime `json:"timestamp"`
	Metadata  map[string]any  `json:"metadata,omitempty"`
}

// NewAgentMessage builds a message for agentID, stamping the issue time.
func NewAgentMessage(agentID, content string) AgentMessage {
	return AgentMessage{
		AgentID:   agentID,
		Content:   content,
		Timestamp: strfmt.DateTime(time.Now().UTC()),
	}
}

// AgentStatus is produced only by remote agents in reply to a status query;
// the relay never constructs or mutates one except as a decode target.
type AgentStatus struct {
	AgentID  string          `json:"agentId"`
	Status   AgentPresence   `json:"status"`
	LastSeen strfmt.DateTime `json:"lastSeen"`
	Metadata map[string]any  `json:"metadata,omitempty"`
}

// AgentInfo is the aggregate a discovery reply carries for one agent.
// Collected transiently per discovery call, never persisted.
type AgentInfo struct {
	AgentID      string      `json:"agentId"`
	Name         string      `json:"name,omitempty"`
	Type         string      `json:"type,omitempty"`
	Capabilities []string    `json:"capabilities,omitempty"`
	Status       AgentStatus `json:"status"`
}
