package agent

import "github.com/Tkzito/lori-llm-local/internal/tool"

// EventType enumerates the session events a turn emits, in the order the
// transport must deliver them.
type EventType string

const (
	EventThought         EventType = "thought"
	EventToolCall        EventType = "tool_call"
	EventToolResult      EventType = "tool_result"
	EventConfirmRequired EventType = "confirm_required"
	EventContent         EventType = "content"
	EventError           EventType = "error"
	EventDone            EventType = "done"
)

// Event is a single session event. Content carries text for thought and
// content events; Data carries the structured payload for the rest.
type Event struct {
	Type    EventType `json:"type"`
	Content string    `json:"content,omitempty"`
	Data    any       `json:"data,omitempty"`
}

// EventSink receives events as the turn produces them. Sinks must not block
// for long; the turn is serialized behind them.
type EventSink func(Event)

// ToolCallData is the payload of a tool_call event.
type ToolCallData struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

// ToolResultData is the payload of a tool_result event.
type ToolResultData struct {
	Tool string `json:"tool"`
	OK   bool   `json:"ok"`
	Data any    `json:"data,omitempty"`
}

// ConfirmRequiredData is the payload of a confirm_required event.
type ConfirmRequiredData struct {
	ID     string         `json:"id"`
	Action string         `json:"action"`
	Args   map[string]any `json:"args"`
	Reason string         `json:"reason"`
}

// ErrorData is the payload of an error event.
type ErrorData struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

func newToolCallEvent(call tool.CallRequest) Event {
	return Event{Type: EventToolCall, Data: ToolCallData{Name: call.Name, Args: call.Args}}
}

func newErrorEvent(kind ErrorKind, message string) Event {
	return Event{Type: EventError, Data: ErrorData{Kind: kind, Message: message}}
}
