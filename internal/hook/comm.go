package hook

import (
	"fmt"

	"github.com/agenthive/agenthive/internal/comm"
	"github.com/agenthive/agenthive/internal/config"
	"github.com/agenthive/agenthive/internal/store"
)

// Communication hook operations.
const (
	OpSendMessage          = "send_message"
	OpReceiveMessages      = "receive_messages"
	OpSendHandoff          = "send_handoff"
	OpBroadcast            = "broadcast"
	OpRequestCollaboration = "request_collaboration"
	OpGetConversation      = "get_conversation"
)

// CommHook exposes the message routing engine over the hook contract.
type CommHook struct {
	engine *comm.Engine
}

// NewCommHook builds the agent-communication hook.
func NewCommHook(st *store.Store, agents map[string]config.AgentConfig) *CommHook {
	return &CommHook{engine: comm.NewEngine(st, agents)}
}

func (h *CommHook) Name() string             { return "agent-communication" }
func (h *CommHook) DefaultOperation() string { return "" }

// Dispatch routes one communication operation.
func (h *CommHook) Dispatch(operation string, data map[string]any) (map[string]any, error) {
	switch operation {
	case OpSendMessage:
		var msg comm.Message
		if err := decode(mapField(data, "message"), &msg); err != nil {
			return nil, fmt.Errorf("%w: %v", comm.ErrInvalidMessage, err)
		}
		res, err := h.engine.Send(&msg)
		if err != nil {
			return nil, err
		}
		fields, err := toMap(res)
		if err != nil {
			return nil, err
		}
		fields["success"] = true
		return fields, nil

	case OpReceiveMessages:
		messages, err := h.engine.Receive(stringField(data, "agent_name"), stringField(data, "message_type"))
		if err != nil {
			return nil, err
		}
		if messages == nil {
			messages = []comm.Message{}
		}
		return map[string]any{
			"success":  true,
			"messages": messages,
			"count":    len(messages),
		}, nil

	case OpSendHandoff:
		res, err := h.engine.Handoff(
			stringField(data, "from_agent"),
			stringField(data, "to_agent"),
			mapField(data, "task_context"),
		)
		if err != nil {
			return nil, err
		}
		fields, err := toMap(res)
		if err != nil {
			return nil, err
		}
		fields["success"] = true
		return fields, nil

	case OpBroadcast:
		results := h.engine.Broadcast(
			stringField(data, "sender"),
			stringField(data, "subject"),
			mapField(data, "content"),
			stringsField(data, "target_agents"),
		)
		return map[string]any{
			"success":           true,
			"broadcast_results": results,
		}, nil

	case OpRequestCollaboration:
		res, err := h.engine.RequestCollaboration(
			stringField(data, "requester"),
			stringsField(data, "collaborators"),
			mapField(data, "collaboration_context"),
		)
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"success":            true,
			"collaboration_id":   res.CollaborationID,
			"invitation_results": res.Invitations,
		}, nil

	case OpGetConversation:
		messages, err := h.engine.ConversationHistory(stringField(data, "thread_id"))
		if err != nil {
			return nil, err
		}
		if messages == nil {
			messages = []comm.Message{}
		}
		return map[string]any{
			"success":       true,
			"conversation":  messages,
			"message_count": len(messages),
		}, nil

	default:
		return nil, ErrUnknownOperation(operation)
	}
}
