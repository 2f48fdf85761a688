package weave

import (
	"database/sql"
	"fmt"
)

// Schema holds capsules and their ordered page members. The partial unique
// index enforces one thread-link capsule per external conversation.
const Schema = `
CREATE TABLE IF NOT EXISTS capsules (
	id           TEXT PRIMARY KEY,
	kind         TEXT NOT NULL,
	external_ref TEXT NOT NULL DEFAULT '',
	created_at   INTEGER NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_capsules_thread
	ON capsules(kind, external_ref) WHERE kind = 'thread-link';

CREATE INDEX IF NOT EXISTS idx_capsules_created_at ON capsules(created_at DESC);

CREATE TABLE IF NOT EXISTS capsule_members (
	capsule_id TEXT NOT NULL REFERENCES capsules(id) ON DELETE CASCADE,
	page_id    TEXT NOT NULL,
	position   INTEGER NOT NULL,
	PRIMARY KEY (capsule_id, position)
);

CREATE INDEX IF NOT EXISTS idx_members_page ON capsule_members(page_id);
`

// ApplySchema creates the capsule tables if absent.
func ApplySchema(db *sql.DB) error {
	if _, err := db.Exec(Schema); err != nil {
		return fmt.Errorf("weave: apply schema: %w", err)
	}
	return nil
}
