package progress

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"

	"github.com/serenoapp/syncstore/internal/logging"
	"github.com/serenoapp/syncstore/internal/models"
	"github.com/serenoapp/syncstore/internal/notify"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`
CREATE TABLE progress_logs (
  local_id         TEXT PRIMARY KEY,
  server_id        TEXT,
  user_id          TEXT NOT NULL,
  deleted          INTEGER NOT NULL DEFAULT 0,
  exercise_id      TEXT NOT NULL,
  duration_seconds INTEGER NOT NULL,
  feedback         TEXT NOT NULL DEFAULT '',
  completed_at     TIMESTAMP NOT NULL,
  updated_at       TIMESTAMP NOT NULL
);
CREATE UNIQUE INDEX idx_progress_logs_server_id
  ON progress_logs(server_id) WHERE server_id IS NOT NULL;
CREATE TABLE outbox_ops (
  id        TEXT PRIMARY KEY,
  entity    TEXT NOT NULL,
  op_kind   TEXT NOT NULL,
  local_id  TEXT NOT NULL,
  payload   TEXT NOT NULL,
  queued_at TIMESTAMP NOT NULL,
  tries     INTEGER NOT NULL DEFAULT 0
);
`)
	require.NoError(t, err)

	return db
}

func newRepo(t *testing.T, db *sql.DB) *SQLiteRepository {
	t.Helper()
	return NewSQLiteRepository(db, "u1", notify.New(logging.NopLogger{}))
}

func TestRecord_RoundTripsMinutes(t *testing.T) {
	db := setupDB(t)
	r := newRepo(t, db)
	ctx := context.Background()

	id, err := r.Record(ctx, "ex_1", 5, "felt calmer")
	require.NoError(t, err)

	got, err := r.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 300, got.DurationSeconds)
	assert.Equal(t, "felt calmer", got.Feedback)
	assert.Equal(t, "u1", got.UserID)

	// The stored unit never leaks through the aggregate either.
	total, err := r.TotalMinutes(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, total)
}

func TestRecord_RequiresExerciseID(t *testing.T) {
	db := setupDB(t)
	r := newRepo(t, db)

	_, err := r.Record(context.Background(), "", 5, "")
	assert.Error(t, err)
}

func TestTotalMinutes_SumsAcrossLogs(t *testing.T) {
	db := setupDB(t)
	r := newRepo(t, db)
	ctx := context.Background()

	for _, minutes := range []int{5, 10, 3} {
		_, err := r.Record(ctx, "ex_1", minutes, "")
		require.NoError(t, err)
	}

	total, err := r.TotalMinutes(ctx)
	require.NoError(t, err)
	assert.Equal(t, 18, total)
}

func TestForExercise_FiltersAndOrders(t *testing.T) {
	db := setupDB(t)
	r := newRepo(t, db)
	ctx := context.Background()

	base := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	for i, ex := range []string{"ex_1", "ex_2", "ex_1"} {
		_, err := r.UpsertLocal(ctx, &models.ProgressLog{
			ExerciseID:      ex,
			DurationSeconds: 60,
			CompletedAt:     base.Add(time.Duration(i) * time.Hour),
		})
		require.NoError(t, err)
	}

	logs, err := r.ForExercise(ctx, "ex_1")
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.True(t, logs[0].CompletedAt.After(logs[1].CompletedAt))
}

func TestImportFromServer_Idempotent(t *testing.T) {
	db := setupDB(t)
	r := newRepo(t, db)
	ctx := context.Background()

	now := time.Now().UTC()
	rows := []models.ProgressLog{{
		ServerID: "srv_p1", ExerciseID: "ex_1",
		DurationSeconds: 120, CompletedAt: now, UpdatedAt: now,
	}}
	require.NoError(t, r.ImportFromServer(ctx, rows))
	require.NoError(t, r.ImportFromServer(ctx, rows))

	recent, err := r.Recent(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, recent, 1)
}

func TestHardDelete_DropsQueuedOps(t *testing.T) {
	db := setupDB(t)
	r := newRepo(t, db)
	ctx := context.Background()

	id, err := r.Record(ctx, "ex_1", 5, "")
	require.NoError(t, err)

	require.NoError(t, r.HardDelete(ctx, id))

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM outbox_ops`).Scan(&n))
	assert.Equal(t, 0, n)
}
