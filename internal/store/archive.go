package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Tkzito/lori-llm-local/internal/domain"
)

// ErrNotFound is returned when a conversation does not exist.
var ErrNotFound = errors.New("conversation not found")

// ConversationSummary is one row of the history listing.
type ConversationSummary struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Model        string    `json:"model"`
	MessageCount int       `json:"messageCount"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Archive persists finished conversations for the history endpoints.
type Archive interface {
	// SaveSession upserts a conversation snapshot, replacing its messages.
	SaveSession(ctx context.Context, sess *domain.Session) error

	// List returns conversation summaries, most recently updated first.
	List(ctx context.Context) ([]ConversationSummary, error)

	// Get returns a full conversation, or ErrNotFound.
	Get(ctx context.Context, id string) (*domain.Session, error)

	// Delete removes one conversation. Deleting a missing ID is not an error.
	Delete(ctx context.Context, id string) error

	// DeleteAll removes every conversation.
	DeleteAll(ctx context.Context) error
}

// deriveTitle picks a title from the first user message.
func deriveTitle(sess *domain.Session) string {
	if sess.Title != "" {
		return sess.Title
	}
	for _, m := range sess.Messages {
		if m.Role != domain.RoleUser {
			continue
		}
		line := strings.TrimSpace(m.Content)
		if i := strings.IndexByte(line, '\n'); i >= 0 {
			line = line[:i]
		}
		runes := []rune(line)
		if len(runes) > 80 {
			return string(runes[:77]) + "..."
		}
		return line
	}
	return "Untitled conversation"
}

// SQLiteArchive stores conversations in the application database.
type SQLiteArchive struct {
	db *DB
}

// NewSQLiteArchive creates an archive over an open database.
func NewSQLiteArchive(db *DB) *SQLiteArchive {
	return &SQLiteArchive{db: db}
}

func (a *SQLiteArchive) SaveSession(ctx context.Context, sess *domain.Session) error {
	if sess == nil || sess.ID == "" {
		return errors.New("session must have an id")
	}

	tx, err := a.db.sql.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339)
	created := now
	if !sess.CreatedAt.IsZero() {
		created = sess.CreatedAt.UTC().Format(time.RFC3339)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO conversations (id, title, model, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   title = excluded.title,
		   model = excluded.model,
		   updated_at = excluded.updated_at`,
		sess.ID, deriveTitle(sess), sess.Model, created, now,
	); err != nil {
		return fmt.Errorf("upserting conversation: %w", err)
	}

	// Snapshot semantics: the stored messages mirror the session exactly.
	if _, err := tx.ExecContext(ctx, "DELETE FROM messages WHERE conversation_id = ?", sess.ID); err != nil {
		return fmt.Errorf("clearing messages: %w", err)
	}
	for _, m := range sess.Messages {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO messages (conversation_id, role, content, timestamp) VALUES (?, ?, ?, ?)",
			sess.ID, string(m.Role), m.Content, m.Timestamp.UTC().Format(time.RFC3339),
		); err != nil {
			return fmt.Errorf("inserting message: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM context_files WHERE conversation_id = ?", sess.ID); err != nil {
		return fmt.Errorf("clearing context files: %w", err)
	}
	for _, f := range sess.ContextFiles {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO context_files (conversation_id, path, size) VALUES (?, ?, ?)",
			sess.ID, f.Path, f.Size,
		); err != nil {
			return fmt.Errorf("inserting context file: %w", err)
		}
	}

	return tx.Commit()
}

func (a *SQLiteArchive) List(ctx context.Context) ([]ConversationSummary, error) {
	rows, err := a.db.sql.QueryContext(ctx, `
		SELECT c.id, c.title, c.model, c.created_at, c.updated_at,
		       (SELECT COUNT(*) FROM messages m WHERE m.conversation_id = c.id)
		FROM conversations c
		ORDER BY c.updated_at DESC, c.id`)
	if err != nil {
		return nil, fmt.Errorf("listing conversations: %w", err)
	}
	defer rows.Close()

	var out []ConversationSummary
	for rows.Next() {
		var s ConversationSummary
		var created, updated string
		if err := rows.Scan(&s.ID, &s.Title, &s.Model, &created, &updated, &s.MessageCount); err != nil {
			return nil, fmt.Errorf("scanning conversation: %w", err)
		}
		s.CreatedAt = parseStoredTime(created)
		s.UpdatedAt = parseStoredTime(updated)
		out = append(out, s)
	}
	return out, rows.Err()
}

func (a *SQLiteArchive) Get(ctx context.Context, id string) (*domain.Session, error) {
	sess := &domain.Session{ID: id}
	var created, updated string
	err := a.db.sql.QueryRowContext(ctx,
		"SELECT title, model, created_at, updated_at FROM conversations WHERE id = ?", id,
	).Scan(&sess.Title, &sess.Model, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading conversation: %w", err)
	}
	sess.CreatedAt = parseStoredTime(created)
	sess.UpdatedAt = parseStoredTime(updated)

	rows, err := a.db.sql.QueryContext(ctx,
		"SELECT role, content, timestamp FROM messages WHERE conversation_id = ? ORDER BY id", id)
	if err != nil {
		return nil, fmt.Errorf("loading messages: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var role, content, ts string
		if err := rows.Scan(&role, &content, &ts); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		sess.Messages = append(sess.Messages, domain.Message{
			Role:      domain.Role(role),
			Content:   content,
			Timestamp: parseStoredTime(ts),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	files, err := a.db.sql.QueryContext(ctx,
		"SELECT path, size FROM context_files WHERE conversation_id = ? ORDER BY path", id)
	if err != nil {
		return nil, fmt.Errorf("loading context files: %w", err)
	}
	defer files.Close()
	for files.Next() {
		var f domain.ContextFile
		if err := files.Scan(&f.Path, &f.Size); err != nil {
			return nil, fmt.Errorf("scanning context file: %w", err)
		}
		sess.ContextFiles = append(sess.ContextFiles, f)
	}
	return sess, files.Err()
}

func (a *SQLiteArchive) Delete(ctx context.Context, id string) error {
	_, err := a.db.sql.ExecContext(ctx, "DELETE FROM conversations WHERE id = ?", id)
	return err
}

func (a *SQLiteArchive) DeleteAll(ctx context.Context) error {
	_, err := a.db.sql.ExecContext(ctx, "DELETE FROM conversations")
	return err
}

func parseStoredTime(s string) time.Time {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	// Rows created by SQLite defaults use datetime('now').
	if t, err := time.Parse("2006-01-02 15:04:05", s); err == nil {
		return t.UTC()
	}
	return time.Time{}
}
