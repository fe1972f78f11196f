// Package cursor persists the per-entity sync watermark used by the external
// sync driver for incremental pulls. The watermark is opaque here; the engine
// stores whatever string the remote source handed back.
package cursor

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/serenoapp/syncstore/internal/common"
	"github.com/serenoapp/syncstore/internal/dbx"
	"github.com/serenoapp/syncstore/internal/models"
)

type Repository struct {
	db dbx.DBTX
}

func New(db dbx.DBTX) *Repository {
	return &Repository{db: db}
}

// Get returns the stored watermark for an entity, or common.ErrNotFound if a
// pull has never completed for it.
func (r *Repository) Get(ctx context.Context, entity models.Kind) (string, error) {
	var cur string
	err := r.db.QueryRowContext(ctx,
		`SELECT cursor FROM sync_cursors WHERE entity = ?`, string(entity)).Scan(&cur)
	if errors.Is(err, sql.ErrNoRows) {
		return "", common.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get cursor[%s]: %w", entity, err)
	}
	return cur, nil
}

// Set inserts or updates the watermark for an entity.
func (r *Repository) Set(ctx context.Context, entity models.Kind, cur string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sync_cursors (entity, cursor) VALUES (?, ?)
		ON CONFLICT(entity) DO UPDATE SET cursor = excluded.cursor
	`, string(entity), cur)
	if err != nil {
		return fmt.Errorf("failed to set cursor[%s]: %w", entity, err)
	}
	return nil
}

// All returns every stored watermark keyed by entity.
func (r *Repository) All(ctx context.Context) (map[models.Kind]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT entity, cursor FROM sync_cursors`)
	if err != nil {
		return nil, fmt.Errorf("failed to list cursors: %w", err)
	}
	defer rows.Close()

	result := make(map[models.Kind]string)
	for rows.Next() {
		var entity, cur string
		if err := rows.Scan(&entity, &cur); err != nil {
			return nil, err
		}
		result[models.Kind(entity)] = cur
	}
	return result, rows.Err()
}
