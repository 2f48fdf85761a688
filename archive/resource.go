package archive

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ainavigator/continuum/contenthash"
)

// PutResource stores bytes under their content hash and returns the hash.
// A byte-identical resource is stored exactly once regardless of how many
// pages embed it: if the row already exists, only ref_count is bumped.
// The upsert is a single statement, so two concurrent captures sharing a
// resource never lose an increment.
//
// Every successful Put must be balanced by one page link (via InsertPage) or
// by ReleaseResource — that is what keeps ref_count equal to the number of
// live links.
func (s *Store) PutResource(ctx context.Context, data []byte, mimeType string) (string, error) {
	hash := contenthash.Sum(data)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO resources (hash, mime_type, bytes, ref_count)
		VALUES (?, ?, ?, 1)
		ON CONFLICT(hash) DO UPDATE SET ref_count = ref_count + 1`,
		hash, mimeType, data)
	if err != nil {
		return "", fmt.Errorf("put resource %s: %w", contenthash.Short(hash), err)
	}
	return hash, nil
}

// GetResource returns the stored bytes and mime type for a hash.
// The bytes are re-hashed on the way out; a mismatch means on-disk corruption
// of that one row and surfaces as ErrIntegrity without touching anything else.
func (s *Store) GetResource(ctx context.Context, hash string) (*Resource, error) {
	var r Resource
	err := s.db.QueryRowContext(ctx,
		`SELECT hash, mime_type, bytes, ref_count FROM resources WHERE hash = ?`, hash).
		Scan(&r.Hash, &r.MimeType, &r.Bytes, &r.RefCount)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("resource %s: %w", contenthash.Short(hash), ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get resource: %w", err)
	}
	if contenthash.Sum(r.Bytes) != r.Hash {
		return nil, fmt.Errorf("resource %s: %w", contenthash.Short(hash), ErrIntegrity)
	}
	return &r, nil
}

// ReleaseResource drops one reference. The row is not deleted here even at
// zero — a concurrent reader may still hold the hash — it becomes eligible
// for the deferred sweep instead.
func (s *Store) ReleaseResource(ctx context.Context, hash string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE resources SET ref_count = ref_count - 1 WHERE hash = ?`, hash)
	if err != nil {
		return fmt.Errorf("release resource %s: %w", contenthash.Short(hash), err)
	}
	return nil
}

// SweepResources deletes all zero-ref resources and reports how many went.
// Called by the Sweeper loop; safe to call directly in tests.
func (s *Store) SweepResources(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM resources WHERE ref_count <= 0`)
	if err != nil {
		return 0, fmt.Errorf("sweep resources: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}
