package exercises

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/serenoapp/syncstore/internal/common"
	"github.com/serenoapp/syncstore/internal/dbx"
	"github.com/serenoapp/syncstore/internal/models"
	"github.com/serenoapp/syncstore/internal/notify"
	"github.com/serenoapp/syncstore/internal/repos/outbox"
)

type SQLiteRepository struct {
	db   *sql.DB
	user string
	bus  *notify.Bus
}

func NewSQLiteRepository(db *sql.DB, user string, bus *notify.Bus) *SQLiteRepository {
	return &SQLiteRepository{db: db, user: user, bus: bus}
}

const upsertByLocalID = `
	INSERT INTO exercise_catalog (local_id, server_id, user_id, deleted, title_en, title_es,
		description_en, description_es, category, difficulty, duration_minutes, steps_en, steps_es, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(local_id) DO UPDATE SET
		deleted = excluded.deleted,
		title_en = excluded.title_en,
		title_es = excluded.title_es,
		description_en = excluded.description_en,
		description_es = excluded.description_es,
		category = excluded.category,
		difficulty = excluded.difficulty,
		duration_minutes = excluded.duration_minutes,
		steps_en = excluded.steps_en,
		steps_es = excluded.steps_es,
		updated_at = excluded.updated_at`

func (r *SQLiteRepository) UpsertLocal(ctx context.Context, item *models.ExerciseCatalogItem) (string, error) {
	if item.LocalID == "" {
		item.LocalID = uuid.NewString()
	}
	item.UserID = r.user
	item.UpdatedAt = time.Now().UTC()

	payload, err := json.Marshal(item)
	if err != nil {
		return "", fmt.Errorf("failed to encode exercise payload: %w", err)
	}

	err = dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := tx.ExecContext(ctx, upsertByLocalID, args(item)...); err != nil {
			return err
		}
		return outbox.EnqueueTx(ctx, tx, &models.OutboxOp{
			Entity:  models.KindExercise,
			LocalID: item.LocalID,
			Payload: payload,
		})
	})
	if err != nil {
		return "", fmt.Errorf("failed to upsert exercise: %w", err)
	}

	r.bus.Notify()
	return item.LocalID, nil
}

func (r *SQLiteRepository) ImportFromServer(ctx context.Context, rows []models.ExerciseCatalogItem) error {
	for i := range rows {
		item := rows[i]
		if item.ServerID == "" {
			return common.ErrMissingServerID
		}
		if item.LocalID == "" {
			item.LocalID = uuid.NewString()
		}
		if item.UserID == "" {
			item.UserID = r.user
		}
		_, err := r.db.ExecContext(ctx, `
			INSERT INTO exercise_catalog (local_id, server_id, user_id, deleted, title_en, title_es,
				description_en, description_es, category, difficulty, duration_minutes, steps_en, steps_es, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(server_id) WHERE server_id IS NOT NULL DO UPDATE SET
				deleted = excluded.deleted,
				title_en = excluded.title_en,
				title_es = excluded.title_es,
				description_en = excluded.description_en,
				description_es = excluded.description_es,
				category = excluded.category,
				difficulty = excluded.difficulty,
				duration_minutes = excluded.duration_minutes,
				steps_en = excluded.steps_en,
				steps_es = excluded.steps_es,
				updated_at = excluded.updated_at
		`, item.LocalID, item.ServerID, item.UserID, boolInt(item.Deleted), item.TitleEN, item.TitleES,
			item.DescriptionEN, item.DescriptionES, string(item.Category), string(item.Difficulty),
			item.DurationMinutes, models.EncodeStringList(item.StepsEN), models.EncodeStringList(item.StepsES),
			item.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to import exercise %s: %w", item.ServerID, err)
		}
	}
	return nil
}

func (r *SQLiteRepository) Backfill(ctx context.Context, items []models.ExerciseCatalogItem) error {
	for i := range items {
		item := items[i]
		if item.LocalID == "" {
			item.LocalID = uuid.NewString()
		}
		if item.UserID == "" {
			item.UserID = r.user
		}
		if item.UpdatedAt.IsZero() {
			item.UpdatedAt = time.Now().UTC()
		}
		if _, err := r.db.ExecContext(ctx, upsertByLocalID, args(&item)...); err != nil {
			return fmt.Errorf("failed to backfill exercise %q: %w", item.TitleEN, err)
		}
	}
	return nil
}

func (r *SQLiteRepository) Get(ctx context.Context, localID string) (*models.ExerciseCatalogItem, error) {
	row := r.db.QueryRowContext(ctx, selectCols+` WHERE local_id = ?`, localID)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get exercise: %w", err)
	}
	return item, nil
}

func (r *SQLiteRepository) All(ctx context.Context) ([]models.ExerciseCatalogItem, error) {
	rows, err := r.db.QueryContext(ctx, selectCols+`
		WHERE deleted = 0
		ORDER BY category ASC, title_en ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query catalog: %w", err)
	}
	return collect(rows)
}

func (r *SQLiteRepository) ByCategory(ctx context.Context, cat models.ExerciseCategory) ([]models.ExerciseCatalogItem, error) {
	rows, err := r.db.QueryContext(ctx, selectCols+`
		WHERE deleted = 0 AND category = ?
		ORDER BY title_en ASC
	`, string(cat))
	if err != nil {
		return nil, fmt.Errorf("failed to query catalog by category: %w", err)
	}
	return collect(rows)
}

func (r *SQLiteRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM exercise_catalog WHERE deleted = 0`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count catalog: %w", err)
	}
	return n, nil
}

const selectCols = `
	SELECT local_id, server_id, user_id, deleted, title_en, title_es, description_en, description_es,
		category, difficulty, duration_minutes, steps_en, steps_es, updated_at
	FROM exercise_catalog`

func args(item *models.ExerciseCatalogItem) []any {
	return []any{
		item.LocalID, nullStr(item.ServerID), item.UserID, boolInt(item.Deleted),
		item.TitleEN, item.TitleES, item.DescriptionEN, item.DescriptionES,
		string(item.Category), string(item.Difficulty), item.DurationMinutes,
		models.EncodeStringList(item.StepsEN), models.EncodeStringList(item.StepsES),
		item.UpdatedAt,
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (*models.ExerciseCatalogItem, error) {
	var item models.ExerciseCatalogItem
	var serverID sql.NullString
	var deleted int
	var category, difficulty, stepsEN, stepsES string
	if err := row.Scan(&item.LocalID, &serverID, &item.UserID, &deleted,
		&item.TitleEN, &item.TitleES, &item.DescriptionEN, &item.DescriptionES,
		&category, &difficulty, &item.DurationMinutes, &stepsEN, &stepsES, &item.UpdatedAt); err != nil {
		return nil, err
	}
	item.ServerID = serverID.String
	item.Deleted = deleted == 1
	item.Category = models.ExerciseCategory(category)
	item.Difficulty = models.ExerciseDifficulty(difficulty)
	item.StepsEN = models.DecodeStringList(stepsEN)
	item.StepsES = models.DecodeStringList(stepsES)
	return &item, nil
}

func collect(rows *sql.Rows) ([]models.ExerciseCatalogItem, error) {
	defer rows.Close()
	var result []models.ExerciseCatalogItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *item)
	}
	return result, rows.Err()
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
