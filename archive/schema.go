package archive

import "database/sql"

// Schema is the durable layout of the archive store. Resources are keyed by
// content hash; a page's resource links are the only thing that keeps a
// resource's ref_count above zero.
const Schema = `
-- Archived page snapshots (immutable once written)
CREATE TABLE IF NOT EXISTS pages (
    id             TEXT PRIMARY KEY,
    url            TEXT NOT NULL,
    title          TEXT NOT NULL DEFAULT '',
    captured_at    INTEGER NOT NULL,
    snippet        TEXT NOT NULL DEFAULT '',
    sanitized_html TEXT NOT NULL,
    content_hash   TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_pages_captured_at ON pages(captured_at DESC);
CREATE INDEX IF NOT EXISTS idx_pages_url ON pages(url);

-- Deduplicated embedded resources, keyed by content hash
CREATE TABLE IF NOT EXISTS resources (
    hash      TEXT PRIMARY KEY,
    mime_type TEXT NOT NULL DEFAULT '',
    bytes     BLOB NOT NULL,
    ref_count INTEGER NOT NULL DEFAULT 0
);

-- Page <-> resource edges, created atomically with the page row
CREATE TABLE IF NOT EXISTS page_resource_links (
    page_id       TEXT NOT NULL REFERENCES pages(id) ON DELETE CASCADE,
    resource_hash TEXT NOT NULL REFERENCES resources(hash),
    PRIMARY KEY (page_id, resource_hash)
);
CREATE INDEX IF NOT EXISTS idx_links_resource ON page_resource_links(resource_hash);
`

// ApplySchema creates all archive tables and indexes.
func ApplySchema(db *sql.DB) error {
	_, err := db.Exec(Schema)
	return err
}
