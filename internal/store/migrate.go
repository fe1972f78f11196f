package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/serenoapp/syncstore/internal/dbx"
)

// Migration is one versioned schema change. Apply must be additive and
// idempotent-safe (CREATE TABLE IF NOT EXISTS and friends) so re-running a
// partially recorded version cannot fail.
type Migration struct {
	Version int
	Apply   func(ctx context.Context, tx dbx.DBTX) error
}

// SchemaVersion reads the database's stored schema version. The version
// lives in the SQLite header (user_version), not in a table row, so it is
// covered by the same journal as the DDL that advanced it.
func SchemaVersion(ctx context.Context, db *sql.DB) (int, error) {
	var v int
	if err := db.QueryRowContext(ctx, `PRAGMA user_version`).Scan(&v); err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return v, nil
}

// Migrate applies every migration with Version greater than the stored
// version, each inside its own transaction together with the version bump.
// A crash mid-migration therefore rolls back both the DDL and the recorded
// version. Any failure is fatal to the caller; there is no partial recovery.
func Migrate(ctx context.Context, db *sql.DB, migrations []Migration) error {
	for i := 1; i < len(migrations); i++ {
		if migrations[i].Version <= migrations[i-1].Version {
			return fmt.Errorf("migrations out of order at version %d", migrations[i].Version)
		}
	}

	current, err := SchemaVersion(ctx, db)
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if m.Version <= current {
			continue
		}
		err := dbx.WithTx(ctx, db, nil, func(ctx context.Context, tx dbx.DBTX) error {
			if err := m.Apply(ctx, tx); err != nil {
				return err
			}
			// PRAGMA does not take bind parameters; Version is our own int.
			_, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", m.Version))
			return err
		})
		if err != nil {
			return fmt.Errorf("migration %d failed: %w", m.Version, err)
		}
		current = m.Version
	}

	return nil
}
