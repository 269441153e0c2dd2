package domain

import "time"

// Session tracks a conversation between a user and the agent.
type Session struct {
	ID           string        `json:"id"`
	Title        string        `json:"title,omitempty"`
	Model        string        `json:"model,omitempty"`
	CreatedAt    time.Time     `json:"createdAt"`
	UpdatedAt    time.Time     `json:"updatedAt"`
	Messages     []Message     `json:"messages,omitempty"`
	ContextFiles []ContextFile `json:"contextFiles,omitempty"`
}

// Append adds a message to the session and bumps UpdatedAt.
func (s *Session) Append(msg Message) {
	s.Messages = append(s.Messages, msg)
	s.UpdatedAt = msg.Timestamp
}

// ContextFile is a workspace file pinned into the conversation context.
type ContextFile struct {
	Path string `json:"path"`
	Name string `json:"name,omitempty"`
	Size int64  `json:"size,omitempty"`
}
