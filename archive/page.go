package archive

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ainavigator/continuum/contenthash"
)

// InsertPage persists a page and its resource links as one transaction:
// either the full page with all links becomes visible, or nothing does.
//
// resourceHashes must name resources already stored via PutResource, one Put
// per distinct hash — the link rows created here are what those ref_counts
// account for. Duplicates in the slice are collapsed. Returns the assigned
// page id.
func (s *Store) InsertPage(ctx context.Context, url, title, snippet, sanitizedHTML string, resourceHashes []string) (string, error) {
	id := s.ids()
	now := time.Now().UnixMilli()
	hash := contenthash.SumString(sanitizedHTML)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("insert page: begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO pages (id, url, title, captured_at, snippet, sanitized_html, content_hash)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, url, title, now, snippet, sanitizedHTML, hash)
	if err != nil {
		return "", fmt.Errorf("insert page: %w", err)
	}

	seen := make(map[string]bool, len(resourceHashes))
	for _, rh := range resourceHashes {
		if seen[rh] {
			continue
		}
		seen[rh] = true
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO page_resource_links (page_id, resource_hash) VALUES (?, ?)`,
			id, rh); err != nil {
			return "", fmt.Errorf("insert page link %s: %w", contenthash.Short(rh), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("insert page: commit: %w", err)
	}
	return id, nil
}

// GetPage retrieves a full page by id.
func (s *Store) GetPage(ctx context.Context, id string) (*Page, error) {
	var p Page
	err := s.db.QueryRowContext(ctx,
		`SELECT id, url, title, captured_at, snippet, sanitized_html, content_hash
		FROM pages WHERE id = ?`, id).
		Scan(&p.ID, &p.URL, &p.Title, &p.CapturedAt, &p.Snippet, &p.SanitizedHTML, &p.ContentHash)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("page %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get page: %w", err)
	}
	return &p, nil
}

// GetPageByURL returns the most recent capture of a URL, for re-capture
// detection. Served by the url index.
func (s *Store) GetPageByURL(ctx context.Context, url string) (*Page, error) {
	var p Page
	err := s.db.QueryRowContext(ctx,
		`SELECT id, url, title, captured_at, snippet, sanitized_html, content_hash
		FROM pages WHERE url = ? ORDER BY captured_at DESC LIMIT 1`, url).
		Scan(&p.ID, &p.URL, &p.Title, &p.CapturedAt, &p.Snippet, &p.SanitizedHTML, &p.ContentHash)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("page for %s: %w", url, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get page by url: %w", err)
	}
	return &p, nil
}

// ListPages returns summaries newest-first, without HTML bodies.
// limit <= 0 means the default of 200.
func (s *Store) ListPages(ctx context.Context, limit int) ([]PageSummary, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, url, title, captured_at, snippet
		FROM pages ORDER BY captured_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list pages: %w", err)
	}
	defer rows.Close()
	return scanSummaries(rows)
}

// SearchPages filters summaries by a substring over title, url and snippet,
// newest-first.
func (s *Store) SearchPages(ctx context.Context, query string, limit int) ([]PageSummary, error) {
	if limit <= 0 {
		limit = 200
	}
	like := "%" + query + "%"
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, url, title, captured_at, snippet
		FROM pages
		WHERE title LIKE ? OR url LIKE ? OR snippet LIKE ?
		ORDER BY captured_at DESC, id DESC LIMIT ?`, like, like, like, limit)
	if err != nil {
		return nil, fmt.Errorf("search pages: %w", err)
	}
	defer rows.Close()
	return scanSummaries(rows)
}

// DeletePage removes a page, its links, and one reference per linked
// resource, all in one transaction. Idempotent: a missing id is a no-op.
// Resources that reach zero refs stay behind for the sweeper.
func (s *Store) DeletePage(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("delete page: begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`UPDATE resources SET ref_count = ref_count - 1
		WHERE hash IN (SELECT resource_hash FROM page_resource_links WHERE page_id = ?)`, id)
	if err != nil {
		return fmt.Errorf("delete page: release resources: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM page_resource_links WHERE page_id = ?`, id); err != nil {
		return fmt.Errorf("delete page: links: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM pages WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete page: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("delete page: commit: %w", err)
	}
	return nil
}

// PageResources returns the resource hashes a page links to.
func (s *Store) PageResources(ctx context.Context, id string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT resource_hash FROM page_resource_links WHERE page_id = ? ORDER BY resource_hash`, id)
	if err != nil {
		return nil, fmt.Errorf("page resources: %w", err)
	}
	defer rows.Close()

	var hashes []string
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, fmt.Errorf("page resources: scan: %w", err)
		}
		hashes = append(hashes, h)
	}
	return hashes, rows.Err()
}

// Stats returns aggregate row counts.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	var st Stats
	row := s.db.QueryRowContext(ctx, `SELECT
		(SELECT COUNT(*) FROM pages),
		(SELECT COUNT(*) FROM resources),
		(SELECT COUNT(*) FROM page_resource_links),
		(SELECT COUNT(*) FROM resources WHERE ref_count <= 0)`)
	if err := row.Scan(&st.Pages, &st.Resources, &st.ResourceLinks, &st.ZeroRef); err != nil {
		return nil, fmt.Errorf("stats: %w", err)
	}
	return &st, nil
}

func scanSummaries(rows *sql.Rows) ([]PageSummary, error) {
	var out []PageSummary
	for rows.Next() {
		var ps PageSummary
		if err := rows.Scan(&ps.ID, &ps.URL, &ps.Title, &ps.CapturedAt, &ps.Snippet); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		out = append(out, ps)
	}
	return out, rows.Err()
}
