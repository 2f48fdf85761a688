// Package weave links archived pages into capsules: ordered bundles of
// context that survive browser sessions and hand continuity to external
// AI conversations.
//
// Members reference pages by id only. A page deleted from the archive leaves
// a dangling member behind; read paths detect, log and skip it.
package weave

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"

	"github.com/ainavigator/continuum/archive"
	"github.com/ainavigator/continuum/idgen"
)

// Capsule kinds.
const (
	// KindRecovery restores a working set after a crash or restart.
	KindRecovery = "recovery"
	// KindThreadLink ties pages to one external conversation. At most one
	// capsule exists per (kind, external_ref).
	KindThreadLink = "thread-link"
	// KindReflection is a user-curated bundle for later review.
	KindReflection = "reflection"
)

func validKind(kind string) bool {
	switch kind {
	case KindRecovery, KindThreadLink, KindReflection:
		return true
	}
	return false
}

// Capsule is a kind-tagged, ordered set of page references.
type Capsule struct {
	ID          string   `json:"id"`
	Kind        string   `json:"kind"`
	ExternalRef string   `json:"external_ref,omitempty"`
	CreatedAt   int64    `json:"created_at"`
	PageIDs     []string `json:"page_ids"`
}

// PageResolver resolves member ids to archived pages. *archive.Store
// satisfies this; a missing page must report archive.ErrNotFound.
type PageResolver interface {
	GetPage(ctx context.Context, id string) (*archive.Page, error)
}

// Store persists capsules.
type Store struct {
	db       *sql.DB
	pages    PageResolver
	ids      idgen.Generator
	log      *slog.Logger
	markdown *converter.Converter
}

// NewStore wires a capsule store over db, resolving members through pages.
func NewStore(db *sql.DB, pages PageResolver, log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{
		db:    db,
		pages: pages,
		ids:   idgen.Capsule,
		log:   log,
		markdown: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(),
			),
		),
	}
}

// CreateCapsule makes a capsule holding pageIDs in the given order. All
// members must resolve at creation time. For a thread-link whose external_ref
// already has a capsule, the existing capsule id is returned unchanged.
func (s *Store) CreateCapsule(ctx context.Context, kind string, pageIDs []string, externalRef string) (string, error) {
	if !validKind(kind) {
		return "", fmt.Errorf("%w: %q", ErrInvalidKind, kind)
	}
	if kind == KindThreadLink && externalRef == "" {
		return "", fmt.Errorf("create capsule: thread-link requires an external ref")
	}
	for _, pid := range pageIDs {
		if _, err := s.pages.GetPage(ctx, pid); err != nil {
			return "", fmt.Errorf("create capsule: member %s: %w", pid, err)
		}
	}

	if kind == KindThreadLink {
		var existing string
		err := s.db.QueryRowContext(ctx,
			`SELECT id FROM capsules WHERE kind = ? AND external_ref = ?`,
			kind, externalRef).Scan(&existing)
		if err == nil {
			return existing, nil
		}
		if err != sql.ErrNoRows {
			return "", fmt.Errorf("create capsule: lookup thread: %w", err)
		}
	}

	id := s.ids()
	now := time.Now().UnixMilli()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("create capsule: begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO capsules (id, kind, external_ref, created_at) VALUES (?, ?, ?, ?)`,
		id, kind, externalRef, now)
	if err != nil {
		return "", fmt.Errorf("create capsule: %w", err)
	}
	for pos, pid := range pageIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO capsule_members (capsule_id, page_id, position) VALUES (?, ?, ?)`,
			id, pid, pos); err != nil {
			return "", fmt.Errorf("create capsule: member %d: %w", pos, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("create capsule: commit: %w", err)
	}
	return id, nil
}

// AppendToCapsule adds a page at the end of a capsule. The append persists
// even if the page does not currently resolve; whether it is dangling is
// decided when the capsule is read.
func (s *Store) AppendToCapsule(ctx context.Context, capsuleID, pageID string) error {
	var kind string
	err := s.db.QueryRowContext(ctx,
		`SELECT kind FROM capsules WHERE id = ?`, capsuleID).Scan(&kind)
	if err == sql.ErrNoRows {
		return fmt.Errorf("capsule %s: %w", capsuleID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("append to capsule: %w", err)
	}

	if _, err := s.pages.GetPage(ctx, pageID); err != nil {
		if errors.Is(err, archive.ErrNotFound) {
			s.log.Warn("appending unresolvable page", "capsule", capsuleID, "page", pageID)
		} else {
			return fmt.Errorf("append to capsule: resolve %s: %w", pageID, err)
		}
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO capsule_members (capsule_id, page_id, position)
		SELECT ?, ?, COALESCE(MAX(position) + 1, 0)
		FROM capsule_members WHERE capsule_id = ?`,
		capsuleID, pageID, capsuleID)
	if err != nil {
		return fmt.Errorf("append to capsule: %w", err)
	}
	return nil
}

// GetCapsule returns a capsule with its members in insertion order.
func (s *Store) GetCapsule(ctx context.Context, id string) (*Capsule, error) {
	var c Capsule
	err := s.db.QueryRowContext(ctx,
		`SELECT id, kind, external_ref, created_at FROM capsules WHERE id = ?`, id).
		Scan(&c.ID, &c.Kind, &c.ExternalRef, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("capsule %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get capsule: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT page_id FROM capsule_members WHERE capsule_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("get capsule: members: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var pid string
		if err := rows.Scan(&pid); err != nil {
			return nil, fmt.Errorf("get capsule: scan member: %w", err)
		}
		c.PageIDs = append(c.PageIDs, pid)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get capsule: %w", err)
	}
	return &c, nil
}

// ListCapsules returns capsules newest-first, members included.
// limit <= 0 means the default of 100.
func (s *Store) ListCapsules(ctx context.Context, limit int) ([]*Capsule, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM capsules ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list capsules: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("list capsules: scan: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list capsules: %w", err)
	}

	out := make([]*Capsule, 0, len(ids))
	for _, id := range ids {
		c, err := s.GetCapsule(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// Recover resolves a capsule's members to pages, in insertion order.
// Dangling members are logged and skipped; recovery of the rest proceeds.
func (s *Store) Recover(ctx context.Context, id string) ([]*archive.Page, error) {
	c, err := s.GetCapsule(ctx, id)
	if err != nil {
		return nil, err
	}

	pages := make([]*archive.Page, 0, len(c.PageIDs))
	for _, pid := range c.PageIDs {
		p, err := s.pages.GetPage(ctx, pid)
		if errors.Is(err, archive.ErrNotFound) {
			s.log.Warn("skipping dangling capsule member",
				"capsule", id, "page", pid, "error", ErrDangling)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("recover capsule %s: %w", id, err)
		}
		pages = append(pages, p)
	}
	return pages, nil
}

// DeleteCapsule removes a capsule and its members. Idempotent; pages are
// untouched.
func (s *Store) DeleteCapsule(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM capsules WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete capsule: %w", err)
	}
	return nil
}
