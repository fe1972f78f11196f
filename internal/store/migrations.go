package store

import (
	"context"

	"github.com/serenoapp/syncstore/internal/dbx"
)

// Migrations returns the ordered schema history for a tenant database.
// History is append-only: released versions are never edited.
func Migrations() []Migration {
	return []Migration{
		{Version: 1, Apply: migrateV1},
		{Version: 2, Apply: migrateV2},
		{Version: 3, Apply: migrateV3},
	}
}

func execAll(ctx context.Context, tx dbx.DBTX, stmts []string) error {
	for _, q := range stmts {
		if _, err := tx.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

// migrateV1 creates the core entity tables plus the outbox and cursor
// state that every write path depends on.
func migrateV1(ctx context.Context, tx dbx.DBTX) error {
	return execAll(ctx, tx, []string{
		`CREATE TABLE IF NOT EXISTS mood_entries (
			local_id    TEXT PRIMARY KEY,
			server_id   TEXT,
			user_id     TEXT NOT NULL,
			deleted     INTEGER NOT NULL DEFAULT 0,
			mood        TEXT NOT NULL,
			rating      INTEGER,
			note        TEXT NOT NULL DEFAULT '',
			tags        TEXT NOT NULL DEFAULT '[]',
			time_of_day TEXT NOT NULL DEFAULT '',
			occurred_at TIMESTAMP NOT NULL,
			updated_at  TIMESTAMP NOT NULL
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_mood_entries_server_id
			ON mood_entries(server_id) WHERE server_id IS NOT NULL`,
		`CREATE INDEX IF NOT EXISTS idx_mood_entries_user_occurred
			ON mood_entries(user_id, occurred_at)`,

		`CREATE TABLE IF NOT EXISTS exercise_catalog (
			local_id         TEXT PRIMARY KEY,
			server_id        TEXT,
			user_id          TEXT NOT NULL,
			deleted          INTEGER NOT NULL DEFAULT 0,
			title_en         TEXT NOT NULL,
			title_es         TEXT NOT NULL DEFAULT '',
			description_en   TEXT NOT NULL DEFAULT '',
			description_es   TEXT NOT NULL DEFAULT '',
			category         TEXT NOT NULL,
			difficulty       TEXT NOT NULL,
			duration_minutes INTEGER NOT NULL DEFAULT 0,
			steps_en         TEXT NOT NULL DEFAULT '[]',
			steps_es         TEXT NOT NULL DEFAULT '[]',
			updated_at       TIMESTAMP NOT NULL
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_exercise_catalog_server_id
			ON exercise_catalog(server_id) WHERE server_id IS NOT NULL`,

		`CREATE TABLE IF NOT EXISTS progress_logs (
			local_id         TEXT PRIMARY KEY,
			server_id        TEXT,
			user_id          TEXT NOT NULL,
			deleted          INTEGER NOT NULL DEFAULT 0,
			exercise_id      TEXT NOT NULL,
			duration_seconds INTEGER NOT NULL,
			feedback         TEXT NOT NULL DEFAULT '',
			completed_at     TIMESTAMP NOT NULL,
			updated_at       TIMESTAMP NOT NULL
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_progress_logs_server_id
			ON progress_logs(server_id) WHERE server_id IS NOT NULL`,
		`CREATE INDEX IF NOT EXISTS idx_progress_logs_user_completed
			ON progress_logs(user_id, completed_at)`,
		`CREATE INDEX IF NOT EXISTS idx_progress_logs_exercise
			ON progress_logs(exercise_id)`,

		`CREATE TABLE IF NOT EXISTS outbox_ops (
			id        TEXT PRIMARY KEY,
			entity    TEXT NOT NULL,
			op_kind   TEXT NOT NULL,
			local_id  TEXT NOT NULL,
			payload   TEXT NOT NULL,
			queued_at TIMESTAMP NOT NULL,
			tries     INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_outbox_ops_entity_queued
			ON outbox_ops(entity, queued_at)`,
		`CREATE INDEX IF NOT EXISTS idx_outbox_ops_local_id
			ON outbox_ops(local_id)`,

		`CREATE TABLE IF NOT EXISTS sync_cursors (
			entity TEXT PRIMARY KEY,
			cursor TEXT NOT NULL
		)`,
	})
}

// migrateV2 adds the channel-segmented chat tables. One table pair per
// channel keeps conversations independent and lets the vent channel be
// wiped without touching the others.
func migrateV2(ctx context.Context, tx dbx.DBTX) error {
	var stmts []string
	for _, ch := range []string{"coach", "companion", "vent"} {
		stmts = append(stmts,
			`CREATE TABLE IF NOT EXISTS chat_sessions_`+ch+` (
				local_id         TEXT PRIMARY KEY,
				server_id        TEXT,
				user_id          TEXT NOT NULL,
				deleted          INTEGER NOT NULL DEFAULT 0,
				title            TEXT NOT NULL DEFAULT '',
				started_at       TIMESTAMP NOT NULL,
				last_activity_at TIMESTAMP NOT NULL,
				message_count    INTEGER NOT NULL DEFAULT 0,
				updated_at       TIMESTAMP NOT NULL
			)`,
			`CREATE UNIQUE INDEX IF NOT EXISTS idx_chat_sessions_`+ch+`_server_id
				ON chat_sessions_`+ch+`(server_id) WHERE server_id IS NOT NULL`,
			`CREATE INDEX IF NOT EXISTS idx_chat_sessions_`+ch+`_user_activity
				ON chat_sessions_`+ch+`(user_id, last_activity_at)`,

			`CREATE TABLE IF NOT EXISTS chat_messages_`+ch+` (
				local_id   TEXT PRIMARY KEY,
				server_id  TEXT,
				user_id    TEXT NOT NULL,
				deleted    INTEGER NOT NULL DEFAULT 0,
				session_id TEXT NOT NULL,
				role       TEXT NOT NULL,
				content    TEXT NOT NULL,
				created_at TIMESTAMP NOT NULL,
				updated_at TIMESTAMP NOT NULL
			)`,
			`CREATE UNIQUE INDEX IF NOT EXISTS idx_chat_messages_`+ch+`_server_id
				ON chat_messages_`+ch+`(server_id) WHERE server_id IS NOT NULL`,
			`CREATE INDEX IF NOT EXISTS idx_chat_messages_`+ch+`_session_created
				ON chat_messages_`+ch+`(session_id, created_at)`,
		)
	}
	return execAll(ctx, tx, stmts)
}

// migrateV3 adds the dead-letter table and the (user_id, updated_at) range
// scan indexes used by incremental reads.
func migrateV3(ctx context.Context, tx dbx.DBTX) error {
	return execAll(ctx, tx, []string{
		`CREATE TABLE IF NOT EXISTS failed_ops (
			id         TEXT PRIMARY KEY,
			entity     TEXT NOT NULL,
			op_kind    TEXT NOT NULL,
			local_id   TEXT NOT NULL,
			payload    TEXT NOT NULL,
			queued_at  TIMESTAMP NOT NULL,
			tries      INTEGER NOT NULL DEFAULT 0,
			last_error TEXT NOT NULL DEFAULT '',
			failed_at  TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_failed_ops_failed_at
			ON failed_ops(failed_at)`,

		`CREATE INDEX IF NOT EXISTS idx_mood_entries_user_updated
			ON mood_entries(user_id, updated_at)`,
		`CREATE INDEX IF NOT EXISTS idx_progress_logs_user_updated
			ON progress_logs(user_id, updated_at)`,
	})
}
