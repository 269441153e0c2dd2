package agent

import (
	"sync"
	"time"

	"github.com/Tkzito/lori-llm-local/internal/domain"
	"github.com/Tkzito/lori-llm-local/internal/llm"
)

// SessionStore manages conversation sessions.
type SessionStore interface {
	// GetOrCreate finds an existing session by ID or creates a new one.
	GetOrCreate(id string) *domain.Session

	// Get returns a session by ID, or nil if not found.
	Get(id string) *domain.Session

	// Reset replaces a session's message history.
	Reset(id string, msgs []domain.Message)

	// Append adds a message to a session.
	Append(id string, msg domain.Message)

	// SetContextFiles records the files pinned into a session.
	SetContextFiles(id string, files []domain.ContextFile)

	// History returns the message history for a session as LLM messages.
	History(id string) []llm.Message

	// Snapshot returns an independent copy of a session, or nil.
	Snapshot(id string) *domain.Session

	// List returns all session IDs.
	List() []string

	// Delete removes a session.
	Delete(id string)
}

// MemorySessionStore is an in-memory SessionStore implementation.
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*domain.Session
}

// NewMemorySessionStore creates an in-memory session store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: make(map[string]*domain.Session)}
}

func (s *MemorySessionStore) GetOrCreate(id string) *domain.Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.sessions[id]; ok {
		return sess
	}
	sess := &domain.Session{
		ID:        id,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	s.sessions[id] = sess
	return sess
}

func (s *MemorySessionStore) Get(id string) *domain.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessions[id]
}

func (s *MemorySessionStore) Reset(id string, msgs []domain.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[id]; ok {
		sess.Messages = append([]domain.Message(nil), msgs...)
		sess.UpdatedAt = time.Now().UTC()
	}
}

func (s *MemorySessionStore) Append(id string, msg domain.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[id]; ok {
		sess.Messages = append(sess.Messages, msg)
		sess.UpdatedAt = time.Now().UTC()
	}
}

func (s *MemorySessionStore) SetContextFiles(id string, files []domain.ContextFile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[id]; ok {
		sess.ContextFiles = append([]domain.ContextFile(nil), files...)
	}
}

func (s *MemorySessionStore) History(id string) []llm.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil
	}
	msgs := make([]llm.Message, 0, len(sess.Messages))
	for _, m := range sess.Messages {
		msgs = append(msgs, llm.Message{Role: string(m.Role), Content: m.Content})
	}
	return msgs
}

func (s *MemorySessionStore) Snapshot(id string) *domain.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil
	}
	copied := *sess
	copied.Messages = append([]domain.Message(nil), sess.Messages...)
	copied.ContextFiles = append([]domain.ContextFile(nil), sess.ContextFiles...)
	return &copied
}

func (s *MemorySessionStore) List() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	return ids
}

func (s *MemorySessionStore) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}
