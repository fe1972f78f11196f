package progress

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

func (r *SQLiteRepository) Record(ctx context.Context, exerciseID string, durationMinutes int, feedback string) (string, error) {
	return r.UpsertLocal(ctx, &models.ProgressLog{
		ExerciseID:      exerciseID,
		DurationSeconds: models.MinutesToSeconds(durationMinutes),
		Feedback:        feedback,
		CompletedAt:     time.Now().UTC(),
	})
}

func (r *SQLiteRepository) UpsertLocal(ctx context.Context, l *models.ProgressLog) (string, error) {
	if l.ExerciseID == "" {
		return "", errors.New("progress log: missing exercise id")
	}
	if l.LocalID == "" {
		l.LocalID = uuid.NewString()
	}
	l.UserID = r.user
	if l.CompletedAt.IsZero() {
		l.CompletedAt = time.Now().UTC()
	}
	l.UpdatedAt = time.Now().UTC()

	payload, err := json.Marshal(l)
	if err != nil {
		return "", fmt.Errorf("failed to encode progress payload: %w", err)
	}

	err = dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO progress_logs (local_id, server_id, user_id, deleted, exercise_id, duration_seconds, feedback, completed_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(local_id) DO UPDATE SET
				deleted = excluded.deleted,
				exercise_id = excluded.exercise_id,
				duration_seconds = excluded.duration_seconds,
				feedback = excluded.feedback,
				completed_at = excluded.completed_at,
				updated_at = excluded.updated_at
		`, l.LocalID, nullStr(l.ServerID), l.UserID, boolInt(l.Deleted), l.ExerciseID,
			l.DurationSeconds, l.Feedback, l.CompletedAt, l.UpdatedAt)
		if err != nil {
			return err
		}
		return outbox.EnqueueTx(ctx, tx, &models.OutboxOp{
			Entity:  models.KindProgressLog,
			LocalID: l.LocalID,
			Payload: payload,
		})
	})
	if err != nil {
		return "", fmt.Errorf("failed to upsert progress log: %w", err)
	}

	r.bus.Notify()
	return l.LocalID, nil
}

func (r *SQLiteRepository) ImportFromServer(ctx context.Context, rows []models.ProgressLog) error {
	for i := range rows {
		l := rows[i]
		if l.ServerID == "" {
			return common.ErrMissingServerID
		}
		if l.LocalID == "" {
			l.LocalID = uuid.NewString()
		}
		if l.UserID == "" {
			l.UserID = r.user
		}
		_, err := r.db.ExecContext(ctx, `
			INSERT INTO progress_logs (local_id, server_id, user_id, deleted, exercise_id, duration_seconds, feedback, completed_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(server_id) WHERE server_id IS NOT NULL DO UPDATE SET
				deleted = excluded.deleted,
				exercise_id = excluded.exercise_id,
				duration_seconds = excluded.duration_seconds,
				feedback = excluded.feedback,
				completed_at = excluded.completed_at,
				updated_at = excluded.updated_at
		`, l.LocalID, l.ServerID, l.UserID, boolInt(l.Deleted), l.ExerciseID,
			l.DurationSeconds, l.Feedback, l.CompletedAt, l.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to import progress log %s: %w", l.ServerID, err)
		}
	}
	return nil
}

func (r *SQLiteRepository) Get(ctx context.Context, localID string) (*models.ProgressLog, error) {
	row := r.db.QueryRowContext(ctx, selectCols+` WHERE local_id = ?`, localID)
	l, err := scanLog(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get progress log: %w", err)
	}
	return l, nil
}

func (r *SQLiteRepository) ForExercise(ctx context.Context, exerciseID string) ([]models.ProgressLog, error) {
	rows, err := r.db.QueryContext(ctx, selectCols+`
		WHERE user_id = ? AND deleted = 0 AND exercise_id = ?
		ORDER BY completed_at DESC
	`, r.user, exerciseID)
	if err != nil {
		return nil, fmt.Errorf("failed to query progress for exercise: %w", err)
	}
	return collect(rows)
}

func (r *SQLiteRepository) Recent(ctx context.Context, n int) ([]models.ProgressLog, error) {
	rows, err := r.db.QueryContext(ctx, selectCols+`
		WHERE user_id = ? AND deleted = 0
		ORDER BY completed_at DESC
		LIMIT ?
	`, r.user, n)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent progress: %w", err)
	}
	return collect(rows)
}

func (r *SQLiteRepository) TotalMinutes(ctx context.Context) (int, error) {
	var seconds int
	err := r.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(duration_seconds), 0) FROM progress_logs
		WHERE user_id = ? AND deleted = 0
	`, r.user).Scan(&seconds)
	if err != nil {
		return 0, fmt.Errorf("failed to sum progress durations: %w", err)
	}
	return models.SecondsToMinutes(seconds), nil
}

func (r *SQLiteRepository) HardDelete(ctx context.Context, localID string) error {
	err := dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM progress_logs WHERE local_id = ?`, localID); err != nil {
			return err
		}
		return outbox.DeleteForRowTx(ctx, tx, models.KindProgressLog, localID)
	})
	if err != nil {
		return fmt.Errorf("failed to delete progress log: %w", err)
	}
	r.bus.Notify()
	return nil
}

const selectCols = `
	SELECT local_id, server_id, user_id, deleted, exercise_id, duration_seconds, feedback, completed_at, updated_at
	FROM progress_logs`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLog(row rowScanner) (*models.ProgressLog, error) {
	var l models.ProgressLog
	var serverID sql.NullString
	var deleted int
	if err := row.Scan(&l.LocalID, &serverID, &l.UserID, &deleted, &l.ExerciseID,
		&l.DurationSeconds, &l.Feedback, &l.CompletedAt, &l.UpdatedAt); err != nil {
		return nil, err
	}
	l.ServerID = serverID.String
	l.Deleted = deleted == 1
	return &l, nil
}

func collect(rows *sql.Rows) ([]models.ProgressLog, error) {
	defer rows.Close()
	var result []models.ProgressLog
	for rows.Next() {
		l, err := scanLog(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *l)
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
