package exercises

import (
	"context"
	"database/sql"
	"testing"

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
CREATE TABLE exercise_catalog (
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
);
CREATE UNIQUE INDEX idx_exercise_catalog_server_id
  ON exercise_catalog(server_id) WHERE server_id IS NOT NULL;
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

func newRepo(t *testing.T, db *sql.DB) (*SQLiteRepository, *int) {
	t.Helper()
	bus := notify.New(logging.NopLogger{})
	notified := 0
	bus.Subscribe(func() { notified++ })
	return NewSQLiteRepository(db, "u1", bus), &notified
}

func outboxCount(t *testing.T, db *sql.DB) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM outbox_ops`).Scan(&n))
	return n
}

func breathing() *models.ExerciseCatalogItem {
	return &models.ExerciseCatalogItem{
		TitleEN:         "Box breathing",
		TitleES:         "Respiración cuadrada",
		Category:        models.CategoryBreathing,
		Difficulty:      models.DifficultyBeginner,
		DurationMinutes: 5,
		StepsEN:         []string{"Inhale for four counts", "Hold for four counts"},
		StepsES:         []string{"Inhala contando hasta cuatro", "Mantén contando hasta cuatro"},
	}
}

func TestUpsertLocal_QueuesOp(t *testing.T) {
	db := setupDB(t)
	r, notified := newRepo(t, db)
	ctx := context.Background()

	id, err := r.UpsertLocal(ctx, breathing())
	require.NoError(t, err)

	got, err := r.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Box breathing", got.TitleEN)
	assert.Equal(t, "Respiración cuadrada", got.TitleES)
	assert.Len(t, got.StepsES, 2)

	assert.Equal(t, 1, outboxCount(t, db))
	assert.Equal(t, 1, *notified)
}

func TestBackfill_SilentSeed(t *testing.T) {
	db := setupDB(t)
	r, notified := newRepo(t, db)
	ctx := context.Background()

	require.NoError(t, r.Backfill(ctx, []models.ExerciseCatalogItem{*breathing(), {
		TitleEN:    "Body scan",
		Category:   models.CategoryMindfulness,
		Difficulty: models.DifficultyBeginner,
	}}))

	n, err := r.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// Seeding is invisible to sync and to listeners.
	assert.Equal(t, 0, outboxCount(t, db))
	assert.Equal(t, 0, *notified)
}

func TestByCategory(t *testing.T) {
	db := setupDB(t)
	r, _ := newRepo(t, db)
	ctx := context.Background()

	require.NoError(t, r.Backfill(ctx, []models.ExerciseCatalogItem{
		*breathing(),
		{TitleEN: "Body scan", Category: models.CategoryMindfulness, Difficulty: models.DifficultyBeginner},
		{TitleEN: "Stretching", Category: models.CategoryMovement, Difficulty: models.DifficultyBeginner},
	}))

	got, err := r.ByCategory(ctx, models.CategoryMindfulness)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Body scan", got[0].TitleEN)
}

func TestImportFromServer_OverridesByServerID(t *testing.T) {
	db := setupDB(t)
	r, _ := newRepo(t, db)
	ctx := context.Background()

	item := *breathing()
	item.ServerID = "srv_ex1"
	require.NoError(t, r.ImportFromServer(ctx, []models.ExerciseCatalogItem{item}))

	item.TitleEN = "Box breathing v2"
	require.NoError(t, r.ImportFromServer(ctx, []models.ExerciseCatalogItem{item}))

	all, err := r.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "Box breathing v2", all[0].TitleEN)
	assert.Equal(t, 0, outboxCount(t, db))
}
