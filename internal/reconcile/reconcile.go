// Package reconcile merges server-confirmed identifiers into locally-created
// rows. Its single operation resolves the race between "I created this row
// and the ack just arrived" and "an import already pulled the same entity
// from the server", guaranteeing at most one row per server id.
package reconcile

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/serenoapp/syncstore/internal/common"
	"github.com/serenoapp/syncstore/internal/dbx"
	"github.com/serenoapp/syncstore/internal/logging"
	"github.com/serenoapp/syncstore/internal/models"
	"github.com/serenoapp/syncstore/internal/notify"
	"github.com/serenoapp/syncstore/internal/repos/outbox"
)

// Engine applies acknowledgements. Generic over entity tables: every table
// shares the local_id/server_id/updated_at columns, and the table name comes
// from the kind's fixed dispatch map.
type Engine struct {
	db  *sql.DB
	bus *notify.Bus
	log logging.Logger
}

func New(db *sql.DB, bus *notify.Bus, log logging.Logger) *Engine {
	if log == nil {
		log = logging.NopLogger{}
	}
	return &Engine{db: db, bus: bus, log: log}
}

// AckSynced records that the remote service acknowledged the local row
// localID under serverID. All branches run in one transaction:
//
//  1. no row owns serverID, or the acked row already does — patch the acked
//     row's server_id/updated_at in place;
//  2. a different row owns serverID (a concurrent import won the race) —
//     the server-linked row is canonical: touch its updated_at and delete
//     the local duplicate;
//
// and in every branch the row's outbox ops are deleted. A zero updatedAt
// means the server did not report one; the engine stamps now.
func (e *Engine) AckSynced(ctx context.Context, kind models.Kind, localID, serverID string, updatedAt time.Time) error {
	table, err := kind.Table()
	if err != nil {
		return err
	}
	if localID == "" {
		return common.ErrMissingLocalID
	}
	if serverID == "" {
		return common.ErrMissingServerID
	}
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}

	err = dbx.WithTx(ctx, e.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		var owner string
		err := tx.QueryRowContext(ctx,
			`SELECT local_id FROM `+table+` WHERE server_id = ?`, serverID).Scan(&owner)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return err
		}

		switch {
		case owner == "" || owner == localID:
			res, err := tx.ExecContext(ctx,
				`UPDATE `+table+` SET server_id = ?, updated_at = ? WHERE local_id = ?`,
				serverID, updatedAt, localID)
			if err != nil {
				return err
			}
			if n, err := res.RowsAffected(); err == nil && n == 0 {
				// Row hard-deleted while the op was in flight; dropping the
				// orphaned op below is the whole reconciliation.
				e.log.Warn(ctx, "acked row no longer exists", "entity", kind, "local_id", localID)
			}

		default:
			// Duplicate-creation race: the imported row keeps the identity.
			if _, err := tx.ExecContext(ctx,
				`UPDATE `+table+` SET updated_at = ? WHERE local_id = ?`, updatedAt, owner); err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM `+table+` WHERE local_id = ?`, localID); err != nil {
				return err
			}
		}

		return outbox.DeleteForRowTx(ctx, tx, kind, localID)
	})
	if err != nil {
		return fmt.Errorf("failed to reconcile %s/%s: %w", kind, localID, err)
	}

	e.bus.Notify()
	return nil
}
