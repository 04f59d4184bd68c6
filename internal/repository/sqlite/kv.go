package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sakif/family-finance/internal/apperror"
	"github.com/sakif/family-finance/internal/repository"
)

// KEY-VALUE DOCUMENTS:
// kv_store holds opaque blobs keyed by (owner_id, key). The store never looks
// inside a value; callers own the encoding. Writes are whole-document upserts,
// so the last writer wins.

var _ repository.KVRepository = (*DB)(nil)

// GetValue returns the stored document, or apperror.ErrNotFound when the
// owner has never written key.
func (db *DB) GetValue(ctx context.Context, ownerID, key string) ([]byte, error) {
	var value []byte
	err := db.conn.QueryRowContext(ctx,
		`SELECT value FROM kv_store WHERE owner_id = ? AND key = ?`, ownerID, key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NotFound("key", key)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: reading %s for %s: %w", key, ownerID, err)
	}
	return value, nil
}

// PutValue replaces the whole document under (ownerID, key).
func (db *DB) PutValue(ctx context.Context, ownerID, key string, value []byte) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO kv_store (owner_id, key, value, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(owner_id, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		ownerID, key, value, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("sqlite: writing %s for %s: %w", key, ownerID, err)
	}
	return nil
}
