// Package deadletter implements terminal storage for outbox ops that
// exhausted their retry budget. Nothing in the engine retries entries here;
// surfacing them is the job of external tooling (see cmd/syncctl).
package deadletter

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/serenoapp/syncstore/internal/common"
	"github.com/serenoapp/syncstore/internal/dbx"
	"github.com/serenoapp/syncstore/internal/models"
)

type Repository struct {
	db *sql.DB
}

func New(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// MoveFromOutbox copies the op into failed_ops and deletes it from the
// outbox in one transaction, so the op exists in exactly one of the two
// tables at every point in time. A missing source op is common.ErrNotFound.
func (r *Repository) MoveFromOutbox(ctx context.Context, opID string, lastError string) error {
	err := dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		var entity, opKind, localID, payload string
		var queuedAt time.Time
		var tries int
		err := tx.QueryRowContext(ctx, `
			SELECT entity, op_kind, local_id, payload, queued_at, tries
			FROM outbox_ops WHERE id = ?
		`, opID).Scan(&entity, &opKind, &localID, &payload, &queuedAt, &tries)
		if errors.Is(err, sql.ErrNoRows) {
			return common.ErrNotFound
		}
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO failed_ops (id, entity, op_kind, local_id, payload, queued_at, tries, last_error, failed_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, opID, entity, opKind, localID, payload, queuedAt, tries, lastError, time.Now().UTC())
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, `DELETE FROM outbox_ops WHERE id = ?`, opID)
		return err
	})
	if err != nil && !errors.Is(err, common.ErrNotFound) {
		return fmt.Errorf("failed to dead-letter op %s: %w", opID, err)
	}
	return err
}

// PurgeOlderThan deletes entries whose failure timestamp precedes now-ttl
// and returns how many were removed. Keeps storage bounded.
func (r *Repository) PurgeOlderThan(ctx context.Context, ttl time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-ttl)
	res, err := r.db.ExecContext(ctx, `DELETE FROM failed_ops WHERE failed_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge dead letters: %w", err)
	}
	return res.RowsAffected()
}

// List returns up to limit entries, most recently failed first.
func (r *Repository) List(ctx context.Context, limit int) ([]models.FailedOp, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, entity, op_kind, local_id, payload, queued_at, tries, last_error, failed_at
		FROM failed_ops
		ORDER BY failed_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list dead letters: %w", err)
	}
	defer rows.Close()

	var result []models.FailedOp
	for rows.Next() {
		var f models.FailedOp
		var entity, opKind, payload string
		if err := rows.Scan(&f.ID, &entity, &opKind, &f.LocalID, &payload,
			&f.QueuedAt, &f.Tries, &f.LastError, &f.FailedAt); err != nil {
			return nil, err
		}
		f.Entity = models.Kind(entity)
		f.OpKind = models.OpKind(opKind)
		f.Payload = []byte(payload)
		result = append(result, f)
	}
	return result, rows.Err()
}

// Count returns the number of dead-lettered ops.
func (r *Repository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM failed_ops`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count dead letters: %w", err)
	}
	return n, nil
}
