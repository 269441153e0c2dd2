package store

// migration represents a single schema migration.
type migration struct {
	Version int
	Name    string
	SQL     string
}

// migrations is the ordered list of all schema migrations.
var migrations = []migration{
	{
		Version: 1,
		Name:    "create conversations and messages",
		SQL: `
			CREATE TABLE conversations (
				id          TEXT PRIMARY KEY,
				title       TEXT NOT NULL DEFAULT '',
				model       TEXT NOT NULL DEFAULT '',
				created_at  TEXT NOT NULL DEFAULT (datetime('now')),
				updated_at  TEXT NOT NULL DEFAULT (datetime('now'))
			);

			CREATE INDEX idx_conversations_updated ON conversations (updated_at);

			CREATE TABLE messages (
				id               INTEGER PRIMARY KEY AUTOINCREMENT,
				conversation_id  TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
				role             TEXT NOT NULL,
				content          TEXT NOT NULL,
				timestamp        TEXT NOT NULL DEFAULT (datetime('now'))
			);

			CREATE INDEX idx_messages_conversation ON messages (conversation_id, id);
		`,
	},
	{
		Version: 2,
		Name:    "create context files",
		SQL: `
			CREATE TABLE context_files (
				conversation_id  TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
				path             TEXT NOT NULL,
				size             INTEGER NOT NULL DEFAULT 0,
				PRIMARY KEY (conversation_id, path)
			);
		`,
	},
}
