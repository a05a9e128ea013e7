// Package comm implements direct agent-to-agent messaging: per-agent
// inbox/outbox queues, named conversation threads, task handoffs,
// broadcasts and multi-party collaboration requests.
package comm

import (
	"errors"
	"time"
)

// Message type constants.
const (
	TypeRequest      = "request"
	TypeResponse     = "response"
	TypeBroadcast    = "broadcast"
	TypeHandoff      = "handoff"
	TypeStatusUpdate = "status_update"
	TypeErrorReport  = "error_report"
	TypeCoordination = "coordination"
)

// Message priority constants.
const (
	PriorityLow      = "low"
	PriorityNormal   = "normal"
	PriorityHigh     = "high"
	PriorityCritical = "critical"
)

var (
	// ErrInvalidMessage indicates a message failed structural validation.
	ErrInvalidMessage = errors.New("invalid message")
	// ErrUnknownRecipient indicates the recipient is not a registered agent.
	ErrUnknownRecipient = errors.New("unknown recipient agent")
)

// Message is one inter-agent message. Copies are stored independently in
// the sender's outbox and the recipient's inbox; cross-references between
// entities are by id only.
type Message struct {
	SchemaVersion    int            `json:"schema_version"`
	ID               string         `json:"id"`
	Sender           string         `json:"sender"`
	Recipient        string         `json:"recipient"`
	Type             string         `json:"message_type"`
	Priority         string         `json:"priority"`
	Subject          string         `json:"subject"`
	Content          map[string]any `json:"content"`
	Context          map[string]any `json:"context,omitempty"`
	Timestamp        time.Time      `json:"timestamp"`
	ExpiresAt        *time.Time     `json:"expires_at,omitempty"`
	RequiresResponse bool           `json:"requires_response,omitempty"`
	CorrelationID    string         `json:"correlation_id,omitempty"`
	ThreadID         string         `json:"thread_id,omitempty"`
}

// Expired reports whether the message's TTL has passed at time now.
// Messages without an expiry never expire.
func (m *Message) Expired(now time.Time) bool {
	return m.ExpiresAt != nil && now.After(*m.ExpiresAt)
}

// PriorityRank maps a priority name to its ordering weight, highest last.
// Unrecognized priorities sort as normal.
func PriorityRank(priority string) int {
	switch priority {
	case PriorityLow:
		return 1
	case PriorityHigh:
		return 3
	case PriorityCritical:
		return 4
	default:
		return 2
	}
}

// ValidType reports whether t is one of the defined message types.
func ValidType(t string) bool {
	switch t {
	case TypeRequest, TypeResponse, TypeBroadcast, TypeHandoff,
		TypeStatusUpdate, TypeErrorReport, TypeCoordination:
		return true
	}
	return false
}

// Thread aggregates all messages sharing a thread id, in append order.
type Thread struct {
	SchemaVersion int       `json:"schema_version"`
	ThreadID      string    `json:"thread_id"`
	Participants  []string  `json:"participants"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	Messages      []Message `json:"messages"`
}

// Collaboration tracks one multi-agent collaboration request. Keyed by
// the shared thread id so every collaborator's reply lands in the same
// conversation.
type Collaboration struct {
	SchemaVersion   int            `json:"schema_version"`
	CollaborationID string         `json:"collaboration_id"`
	Requester       string         `json:"requester"`
	Collaborators   []string       `json:"collaborators"`
	Context         map[string]any `json:"context,omitempty"`
	Status          string         `json:"status"`
	CreatedAt       time.Time      `json:"created_at"`
	Progress        map[string]any `json:"progress"`
}

// RoutingInfo describes where a message was delivered.
type RoutingInfo struct {
	Agent        string   `json:"agent"`
	Capabilities []string `json:"capabilities,omitempty"`
	QueuePath    string   `json:"queue_path"`
}

// SendResult is the successful outcome of a send.
type SendResult struct {
	MessageID   string      `json:"message_id"`
	Timestamp   time.Time   `json:"timestamp"`
	RoutingInfo RoutingInfo `json:"routing_info"`
}

// DeliveryResult is one per-recipient outcome of a broadcast or
// collaboration request. Partial failures never abort the other sends.
type DeliveryResult struct {
	Agent     string `json:"agent"`
	Success   bool   `json:"success"`
	MessageID string `json:"message_id,omitempty"`
	Error     string `json:"error,omitempty"`
}

// CollaborationResult is the outcome of a collaboration request.
type CollaborationResult struct {
	CollaborationID string           `json:"collaboration_id"`
	Invitations     []DeliveryResult `json:"invitation_results"`
}
