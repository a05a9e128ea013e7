package comm

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/agenthive/agenthive/internal/config"
	"github.com/agenthive/agenthive/internal/store"
)

const (
	threadsCategory        = "threads"
	collaborationsCategory = "collaborations"
	expiredArchiveCategory = "archive/expired"

	communicationLog = "communication.log"
	eventsLog        = "events.log"
)

// Engine routes messages between registered agents over the record store.
type Engine struct {
	store  *store.Store
	agents map[string]config.AgentConfig
	log    *slog.Logger
	now    func() time.Time
}

// NewEngine creates a communication engine backed by st. The agents map
// is the registry of known recipients.
func NewEngine(st *store.Store, agents map[string]config.AgentConfig) *Engine {
	return &Engine{
		store:  st,
		agents: agents,
		log:    slog.Default(),
		now:    time.Now,
	}
}

func inboxCategory(agent string) string     { return "messages/" + agent + "/inbox" }
func outboxCategory(agent string) string    { return "messages/" + agent + "/outbox" }
func processedCategory(agent string) string { return "messages/" + agent + "/processed" }

// NewMessageID mints a message id in the msg_<timestamp>_<hex> form.
func (e *Engine) NewMessageID() string {
	return fmt.Sprintf("msg_%s_%s", e.now().Format("20060102_150405"), uuid.NewString()[:8])
}

// NewThreadID mints a thread id in the thread_<timestamp>_<hex> form.
func (e *Engine) NewThreadID() string {
	return fmt.Sprintf("thread_%s_%s", e.now().Format("20060102_150405"), uuid.NewString()[:8])
}

func (e *Engine) validate(msg *Message) error {
	if strings.TrimSpace(msg.Sender) == "" || strings.TrimSpace(msg.Recipient) == "" {
		return fmt.Errorf("%w: message must have sender and recipient", ErrInvalidMessage)
	}
	if _, ok := e.agents[msg.Recipient]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownRecipient, msg.Recipient)
	}
	if strings.TrimSpace(msg.Subject) == "" || len(msg.Content) == 0 {
		return fmt.Errorf("%w: message must have subject and content", ErrInvalidMessage)
	}
	if !ValidType(msg.Type) {
		return fmt.Errorf("%w: unknown message type %q", ErrInvalidMessage, msg.Type)
	}
	return nil
}

// Send validates and delivers a message: a copy to the sender's outbox, a
// copy to the recipient's inbox, an append to the (minted if absent)
// conversation thread, and an audit log entry. Validation happens before
// any write, so a failed send leaves no partial state.
func (e *Engine) Send(msg *Message) (*SendResult, error) {
	if msg.ID == "" {
		msg.ID = e.NewMessageID()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = e.now()
	}
	if msg.Priority == "" {
		msg.Priority = PriorityNormal
	}
	msg.SchemaVersion = store.SchemaVersion

	if err := e.validate(msg); err != nil {
		return nil, err
	}
	if msg.ThreadID == "" {
		msg.ThreadID = e.NewThreadID()
	}

	if err := e.store.Put(outboxCategory(msg.Sender), msg.ID, msg); err != nil {
		return nil, fmt.Errorf("store outbox copy: %w", err)
	}
	if err := e.store.Put(inboxCategory(msg.Recipient), msg.ID, msg); err != nil {
		return nil, fmt.Errorf("route to inbox: %w", err)
	}
	if err := e.appendToThread(msg); err != nil {
		return nil, fmt.Errorf("update conversation thread: %w", err)
	}

	if err := e.store.AppendLog(communicationLog, map[string]any{
		"timestamp":    e.now(),
		"action":       "sent",
		"message_id":   msg.ID,
		"sender":       msg.Sender,
		"recipient":    msg.Recipient,
		"message_type": msg.Type,
		"priority":     msg.Priority,
		"subject":      msg.Subject,
	}); err != nil {
		// Audit logs are observability only, never a delivery failure.
		e.log.Warn("comm: audit log append failed", "message_id", msg.ID, "error", err)
	}

	return &SendResult{
		MessageID: msg.ID,
		Timestamp: msg.Timestamp,
		RoutingInfo: RoutingInfo{
			Agent:        msg.Recipient,
			Capabilities: e.agents[msg.Recipient].Capabilities,
			QueuePath:    inboxCategory(msg.Recipient),
		},
	}, nil
}

func (e *Engine) appendToThread(msg *Message) error {
	var thread Thread
	err := e.store.Get(threadsCategory, msg.ThreadID, &thread)
	switch {
	case err == nil:
	case store.IsNotFound(err):
		thread = Thread{
			SchemaVersion: store.SchemaVersion,
			ThreadID:      msg.ThreadID,
			CreatedAt:     e.now(),
		}
	default:
		return err
	}

	for _, name := range []string{msg.Sender, msg.Recipient} {
		seen := false
		for _, p := range thread.Participants {
			if p == name {
				seen = true
				break
			}
		}
		if !seen {
			thread.Participants = append(thread.Participants, name)
		}
	}
	thread.Messages = append(thread.Messages, *msg)
	thread.UpdatedAt = e.now()

	return e.store.Put(threadsCategory, msg.ThreadID, &thread)
}

// Receive lists an agent's inbox, dropping expired messages into the
// expired archive, optionally filtering by message type, and ordering by
// priority (highest first) then timestamp (newest first).
func (e *Engine) Receive(agent, typeFilter string) ([]Message, error) {
	raw, err := e.store.List(inboxCategory(agent))
	if err != nil {
		return nil, err
	}

	now := e.now()
	messages := make([]Message, 0, len(raw))
	for _, data := range raw {
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			e.log.Warn("comm: skipping undecodable inbox message", "agent", agent, "error", err)
			continue
		}
		if typeFilter != "" && msg.Type != typeFilter {
			continue
		}
		if msg.Expired(now) {
			if err := e.store.Move(inboxCategory(agent), expiredArchiveCategory, msg.ID); err != nil {
				e.log.Warn("comm: could not archive expired message", "message_id", msg.ID, "error", err)
			}
			continue
		}
		messages = append(messages, msg)
	}

	sort.SliceStable(messages, func(i, j int) bool {
		pi, pj := PriorityRank(messages[i].Priority), PriorityRank(messages[j].Priority)
		if pi != pj {
			return pi > pj
		}
		return messages[i].Timestamp.After(messages[j].Timestamp)
	})
	return messages, nil
}

// Process moves a message from the agent's inbox to its processed area
// and records the transition in the events log. A second call for the
// same id fails with a not-found error.
func (e *Engine) Process(agent, messageID string) error {
	if err := e.store.Move(inboxCategory(agent), processedCategory(agent), messageID); err != nil {
		return err
	}
	if err := e.store.AppendLog(eventsLog, map[string]any{
		"timestamp":  e.now(),
		"agent":      agent,
		"message_id": messageID,
		"event":      "processed",
	}); err != nil {
		e.log.Warn("comm: events log append failed", "message_id", messageID, "error", err)
	}
	return nil
}

// Handoff constructs and sends a high-priority task-transfer message on a
// fresh thread. Task-context fields flow into the message content, with
// empty-collection defaults for the transfer fields a caller omits.
func (e *Engine) Handoff(fromAgent, toAgent string, taskContext map[string]any) (*SendResult, error) {
	taskName, _ := taskContext["task_name"].(string)
	if taskName == "" {
		taskName = "Unknown Task"
	}
	msg := &Message{
		Sender:    fromAgent,
		Recipient: toAgent,
		Type:      TypeHandoff,
		Priority:  PriorityHigh,
		Subject:   "Task Handoff: " + taskName,
		Content: map[string]any{
			"handoff_type":            "task_transfer",
			"task_context":            taskContext,
			"completion_requirements": fieldOr(taskContext, "completion_requirements", []any{}),
			"expected_outputs":        fieldOr(taskContext, "expected_outputs", map[string]any{}),
			"constraints":             taskContext["constraints"],
			"deadline":                taskContext["deadline"],
			"priority_level":          fieldOr(taskContext, "priority", PriorityNormal),
		},
		Context: map[string]any{
			"handoff_timestamp":    e.now().Format(time.RFC3339),
			"originating_request":  taskContext["original_request"],
			"previous_work":        fieldOr(taskContext, "previous_work", map[string]any{}),
			"quality_requirements": taskContext["quality_requirements"],
		},
		RequiresResponse: true,
		ThreadID:         e.NewThreadID(),
	}
	return e.Send(msg)
}

// Broadcast sends an independent normal-priority message to each target.
// Targets default to every registered agent except the sender. A failed
// delivery to one target never aborts the rest.
func (e *Engine) Broadcast(sender, subject string, content map[string]any, targets []string) []DeliveryResult {
	if len(targets) == 0 {
		for _, name := range sortedAgentNames(e.agents) {
			targets = append(targets, name)
		}
	}

	results := make([]DeliveryResult, 0, len(targets))
	for _, agent := range targets {
		if agent == sender {
			continue
		}
		msg := &Message{
			Sender:    sender,
			Recipient: agent,
			Type:      TypeBroadcast,
			Priority:  PriorityNormal,
			Subject:   subject,
			Content:   content,
			Context: map[string]any{
				"broadcast_group":     targets,
				"broadcast_timestamp": e.now().Format(time.RFC3339),
			},
		}
		res, err := e.Send(msg)
		if err != nil {
			results = append(results, DeliveryResult{Agent: agent, Success: false, Error: err.Error()})
			continue
		}
		results = append(results, DeliveryResult{Agent: agent, Success: true, MessageID: res.MessageID})
	}
	return results
}

// RequestCollaboration invites each collaborator onto one shared thread
// and stores an active collaboration-tracking record keyed by that
// thread id.
func (e *Engine) RequestCollaboration(requester string, collaborators []string, collaborationContext map[string]any) (*CollaborationResult, error) {
	collaborationID := e.NewThreadID()

	objective, _ := collaborationContext["objective"].(string)
	if objective == "" {
		objective = "Multi-Agent Task"
	}

	invitations := make([]DeliveryResult, 0, len(collaborators))
	for _, collaborator := range collaborators {
		msg := &Message{
			Sender:    requester,
			Recipient: collaborator,
			Type:      TypeCoordination,
			Priority:  PriorityHigh,
			Subject:   "Collaboration Request: " + objective,
			Content: map[string]any{
				"collaboration_type": "multi_agent_coordination",
				"objective":          collaborationContext["objective"],
				"role_assignment":    collaborationContext["role_assignment"],
				"coordination_plan":  collaborationContext["coordination_plan"],
				"success_criteria":   collaborationContext["success_criteria"],
				"timeline":           collaborationContext["timeline"],
			},
			Context: map[string]any{
				"collaboration_id":          collaborationID,
				"all_collaborators":         collaborators,
				"coordination_timestamp":    e.now().Format(time.RFC3339),
				"coordination_requirements": collaborationContext["coordination_requirements"],
			},
			RequiresResponse: true,
			ThreadID:         collaborationID,
		}
		res, err := e.Send(msg)
		if err != nil {
			invitations = append(invitations, DeliveryResult{Agent: collaborator, Success: false, Error: err.Error()})
			continue
		}
		invitations = append(invitations, DeliveryResult{Agent: collaborator, Success: true, MessageID: res.MessageID})
	}

	tracking := &Collaboration{
		SchemaVersion:   store.SchemaVersion,
		CollaborationID: collaborationID,
		Requester:       requester,
		Collaborators:   collaborators,
		Context:         collaborationContext,
		Status:          "active",
		CreatedAt:       e.now(),
		Progress:        map[string]any{},
	}
	if err := e.store.Put(collaborationsCategory, collaborationID, tracking); err != nil {
		return nil, fmt.Errorf("store collaboration tracking: %w", err)
	}

	return &CollaborationResult{CollaborationID: collaborationID, Invitations: invitations}, nil
}

// ConversationHistory returns a thread's messages in chronological order,
// independent of the priority-based inbox ordering. A missing thread is
// an empty conversation.
func (e *Engine) ConversationHistory(threadID string) ([]Message, error) {
	var thread Thread
	err := e.store.Get(threadsCategory, threadID, &thread)
	if store.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	messages := thread.Messages
	sort.SliceStable(messages, func(i, j int) bool {
		return messages[i].Timestamp.Before(messages[j].Timestamp)
	})
	return messages, nil
}

// fieldOr returns the field's value, or fallback when it is absent or
// explicitly null.
func fieldOr(m map[string]any, key string, fallback any) any {
	if v, ok := m[key]; ok && v != nil {
		return v
	}
	return fallback
}

func sortedAgentNames(agents map[string]config.AgentConfig) []string {
	names := make([]string, 0, len(agents))
	for name := range agents {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
