// Package outbox implements the durable queue of not-yet-acknowledged local
// mutations. The queue never talks to the network; an external sync driver
// drains it and decides, per failed attempt, between IncrementTries and
// escalation to the dead-letter store.
package outbox

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/serenoapp/syncstore/internal/common"
	"github.com/serenoapp/syncstore/internal/dbx"
	"github.com/serenoapp/syncstore/internal/models"
)

// Repository exposes queue operations over a tenant database.
type Repository struct {
	db dbx.DBTX
}

func New(db dbx.DBTX) *Repository {
	return &Repository{db: db}
}

// EnqueueTx appends an op on the given handle, normally the same transaction
// that wrote the op's row so the two commit or roll back together. Missing
// ID and QueuedAt are filled in.
func EnqueueTx(ctx context.Context, tx dbx.DBTX, op *models.OutboxOp) error {
	if op.LocalID == "" {
		return common.ErrMissingLocalID
	}
	if !op.Entity.Valid() {
		return fmt.Errorf("%w: %q", common.ErrUnknownEntity, string(op.Entity))
	}
	if op.ID == "" {
		op.ID = uuid.NewString()
	}
	if op.OpKind == "" {
		op.OpKind = models.OpUpsert
	}
	if op.QueuedAt.IsZero() {
		op.QueuedAt = time.Now().UTC()
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO outbox_ops (id, entity, op_kind, local_id, payload, queued_at, tries)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, op.ID, string(op.Entity), string(op.OpKind), op.LocalID, string(op.Payload), op.QueuedAt, op.Tries)
	if err != nil {
		return fmt.Errorf("failed to enqueue outbox op: %w", err)
	}
	return nil
}

// Enqueue appends an op outside any caller-managed transaction.
func (r *Repository) Enqueue(ctx context.Context, op *models.OutboxOp) error {
	return EnqueueTx(ctx, r.db, op)
}

// PeekBatch returns up to limit ops for one entity, oldest first. Ops stay
// queued until acked or dead-lettered, so a crashed drain simply re-reads
// them.
func (r *Repository) PeekBatch(ctx context.Context, entity models.Kind, limit int) ([]models.OutboxOp, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, entity, op_kind, local_id, payload, queued_at, tries
		FROM outbox_ops
		WHERE entity = ?
		ORDER BY queued_at ASC, id ASC
		LIMIT ?
	`, string(entity), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to peek outbox: %w", err)
	}
	defer rows.Close()

	var ops []models.OutboxOp
	for rows.Next() {
		op, err := scanOp(rows)
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}
	return ops, rows.Err()
}

// Ack deletes an op after its row's reconciliation completed. Acking an
// already-deleted op is a no-op, which makes replays after a crash safe.
func (r *Repository) Ack(ctx context.Context, opID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM outbox_ops WHERE id = ?`, opID)
	if err != nil {
		return fmt.Errorf("failed to ack outbox op %s: %w", opID, err)
	}
	return nil
}

// IncrementTries bumps an op's retry counter after a failed delivery.
func (r *Repository) IncrementTries(ctx context.Context, opID string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE outbox_ops SET tries = tries + 1 WHERE id = ?`, opID)
	if err != nil {
		return fmt.Errorf("failed to increment tries for op %s: %w", opID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return common.ErrNotFound
	}
	return nil
}

// Get returns a single op by id.
func (r *Repository) Get(ctx context.Context, opID string) (*models.OutboxOp, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, entity, op_kind, local_id, payload, queued_at, tries
		FROM outbox_ops WHERE id = ?
	`, opID)
	op, err := scanOp(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &op, nil
}

// DeleteForRowTx removes every op that references the given row. The
// reconcile engine calls this inside its merge transaction.
func DeleteForRowTx(ctx context.Context, tx dbx.DBTX, entity models.Kind, localID string) error {
	_, err := tx.ExecContext(ctx,
		`DELETE FROM outbox_ops WHERE entity = ? AND local_id = ?`,
		string(entity), localID)
	if err != nil {
		return fmt.Errorf("failed to delete outbox ops for %s/%s: %w", entity, localID, err)
	}
	return nil
}

// Depth returns the number of queued ops per entity.
func (r *Repository) Depth(ctx context.Context) (map[models.Kind]int, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT entity, COUNT(*) FROM outbox_ops GROUP BY entity`)
	if err != nil {
		return nil, fmt.Errorf("failed to read outbox depth: %w", err)
	}
	defer rows.Close()

	depth := make(map[models.Kind]int)
	for rows.Next() {
		var entity string
		var n int
		if err := rows.Scan(&entity, &n); err != nil {
			return nil, err
		}
		depth[models.Kind(entity)] = n
	}
	return depth, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOp(row rowScanner) (models.OutboxOp, error) {
	var op models.OutboxOp
	var entity, opKind, payload string
	if err := row.Scan(&op.ID, &entity, &opKind, &op.LocalID, &payload, &op.QueuedAt, &op.Tries); err != nil {
		return models.OutboxOp{}, err
	}
	op.Entity = models.Kind(entity)
	op.OpKind = models.OpKind(opKind)
	op.Payload = []byte(payload)
	return op, nil
}
