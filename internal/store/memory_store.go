package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Tkzito/lori-llm-local/internal/domain"
)

// MemoryArchive keeps conversations in memory. It backs the "memory" session
// store setting and tests; nothing survives a restart.
type MemoryArchive struct {
	mu            sync.RWMutex
	conversations map[string]*domain.Session
}

// NewMemoryArchive creates an empty in-memory archive.
func NewMemoryArchive() *MemoryArchive {
	return &MemoryArchive{conversations: make(map[string]*domain.Session)}
}

func (a *MemoryArchive) SaveSession(_ context.Context, sess *domain.Session) error {
	if sess == nil || sess.ID == "" {
		return ErrNotFound
	}
	copied := *sess
	copied.Title = deriveTitle(sess)
	copied.UpdatedAt = time.Now().UTC()
	if copied.CreatedAt.IsZero() {
		copied.CreatedAt = copied.UpdatedAt
	}
	copied.Messages = append([]domain.Message(nil), sess.Messages...)
	copied.ContextFiles = append([]domain.ContextFile(nil), sess.ContextFiles...)

	a.mu.Lock()
	defer a.mu.Unlock()
	if prev, ok := a.conversations[sess.ID]; ok {
		copied.CreatedAt = prev.CreatedAt
	}
	a.conversations[sess.ID] = &copied
	return nil
}

func (a *MemoryArchive) List(_ context.Context) ([]ConversationSummary, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make([]ConversationSummary, 0, len(a.conversations))
	for _, c := range a.conversations {
		out = append(out, ConversationSummary{
			ID:           c.ID,
			Title:        c.Title,
			Model:        c.Model,
			MessageCount: len(c.Messages),
			CreatedAt:    c.CreatedAt,
			UpdatedAt:    c.UpdatedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (a *MemoryArchive) Get(_ context.Context, id string) (*domain.Session, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	c, ok := a.conversations[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *c
	copied.Messages = append([]domain.Message(nil), c.Messages...)
	copied.ContextFiles = append([]domain.ContextFile(nil), c.ContextFiles...)
	return &copied, nil
}

func (a *MemoryArchive) Delete(_ context.Context, id string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.conversations, id)
	return nil
}

func (a *MemoryArchive) DeleteAll(_ context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.conversations = make(map[string]*domain.Session)
	return nil
}
