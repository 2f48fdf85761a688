// Package archive is the durable store behind reader-mode archival: page
// snapshots, their content-addressed embedded resources, and the link table
// tying them together.
//
// Pages and resources are immutable once written (ref_count excepted).
// Deleting a page cascades to its links and decrements resource ref_counts;
// zero-ref resources are collected later by the Sweeper, never inline.
package archive

import (
	"database/sql"

	"github.com/ainavigator/continuum/idgen"
)

// Store wraps an opened archive database.
type Store struct {
	db  *sql.DB
	ids idgen.Generator
}

// NewStore creates a Store from an already-opened database connection.
// The caller is responsible for ApplySchema and for closing the db.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db, ids: idgen.Page}
}

// DB exposes the underlying connection for schema application and stats.
func (s *Store) DB() *sql.DB { return s.db }
