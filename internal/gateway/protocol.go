package gateway

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Tkzito/lori-llm-local/internal/agent"
	"github.com/Tkzito/lori-llm-local/internal/domain"
)

// Inbound frame types. A frame with no type is a chat message.
const (
	FrameChat         = ""
	FrameConfirmation = "confirmation_response"
)

// InboundFrame is one client message on /ws/chat. Chat frames carry the user
// message plus an optional history to restore and files to pin; confirmation
// frames answer a pending confirm_required event.
type InboundFrame struct {
	Type         string           `json:"type,omitempty"`
	Message      string           `json:"message,omitempty"`
	History      []HistoryMessage `json:"history,omitempty"`
	ContextFiles []string         `json:"context_files,omitempty"`
	Approved     *bool            `json:"approved,omitempty"`
}

// HistoryMessage is a prior conversation turn supplied by the client.
type HistoryMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ParseInbound decodes and validates one inbound frame.
func ParseInbound(data []byte) (InboundFrame, error) {
	var f InboundFrame
	if err := json.Unmarshal(data, &f); err != nil {
		return InboundFrame{}, fmt.Errorf("malformed frame: %w", err)
	}
	switch f.Type {
	case FrameChat:
		if strings.TrimSpace(f.Message) == "" {
			return InboundFrame{}, fmt.Errorf("message must not be empty")
		}
	case FrameConfirmation:
		if f.Approved == nil {
			return InboundFrame{}, fmt.Errorf("confirmation_response requires approved")
		}
	default:
		return InboundFrame{}, fmt.Errorf("unknown frame type: %s", f.Type)
	}
	return f, nil
}

// DomainHistory converts client history to domain messages. Unknown roles
// are kept as-is; the model treats them as plain context.
func (f InboundFrame) DomainHistory() []domain.Message {
	if len(f.History) == 0 {
		return nil
	}
	msgs := make([]domain.Message, 0, len(f.History))
	for _, h := range f.History {
		msgs = append(msgs, domain.NewMessage(domain.Role(h.Role), h.Content))
	}
	return msgs
}

// OutboundFrame is one server event on /ws/chat, mirroring agent.Event with
// the error message lifted into content for clients that only render text.
type OutboundFrame struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// EncodeEvent renders an agent event as its wire frame.
func EncodeEvent(e agent.Event) OutboundFrame {
	f := OutboundFrame{Type: string(e.Type), Content: e.Content, Data: e.Data}
	if e.Type == agent.EventError {
		if data, ok := e.Data.(agent.ErrorData); ok {
			f.Content = data.Message
		}
	}
	return f
}
