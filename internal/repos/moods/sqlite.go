package moods

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

// SQLiteRepository implements Repository over a tenant database.
type SQLiteRepository struct {
	db   *sql.DB
	user string
	bus  *notify.Bus
}

// NewSQLiteRepository returns a repository scoped to one tenant's user id.
func NewSQLiteRepository(db *sql.DB, user string, bus *notify.Bus) *SQLiteRepository {
	return &SQLiteRepository{db: db, user: user, bus: bus}
}

func (r *SQLiteRepository) UpsertLocal(ctx context.Context, e *models.MoodEntry) (string, error) {
	if e.LocalID == "" {
		e.LocalID = uuid.NewString()
	}
	e.UserID = r.user
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}
	e.UpdatedAt = time.Now().UTC()

	payload, err := json.Marshal(e)
	if err != nil {
		return "", fmt.Errorf("failed to encode mood payload: %w", err)
	}

	err = dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO mood_entries (local_id, server_id, user_id, deleted, mood, rating, note, tags, time_of_day, occurred_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(local_id) DO UPDATE SET
				deleted = excluded.deleted,
				mood = excluded.mood,
				rating = excluded.rating,
				note = excluded.note,
				tags = excluded.tags,
				time_of_day = excluded.time_of_day,
				occurred_at = excluded.occurred_at,
				updated_at = excluded.updated_at
		`, e.LocalID, nullStr(e.ServerID), e.UserID, boolInt(e.Deleted), e.Mood, nullInt(e.Rating),
			e.Note, models.EncodeStringList(e.Tags), e.TimeOfDay, e.OccurredAt, e.UpdatedAt)
		if err != nil {
			return err
		}
		return outbox.EnqueueTx(ctx, tx, &models.OutboxOp{
			Entity:  models.KindMoodEntry,
			LocalID: e.LocalID,
			Payload: payload,
		})
	})
	if err != nil {
		return "", fmt.Errorf("failed to upsert mood entry: %w", err)
	}

	r.bus.Notify()
	return e.LocalID, nil
}

func (r *SQLiteRepository) ImportFromServer(ctx context.Context, rows []models.MoodEntry) error {
	// Row-level autocommit on purpose: imports of different entities must be
	// free to interleave without waiting on one big batch transaction.
	for i := range rows {
		e := rows[i]
		if e.ServerID == "" {
			return common.ErrMissingServerID
		}
		if e.LocalID == "" {
			e.LocalID = uuid.NewString()
		}
		if e.UserID == "" {
			e.UserID = r.user
		}
		_, err := r.db.ExecContext(ctx, `
			INSERT INTO mood_entries (local_id, server_id, user_id, deleted, mood, rating, note, tags, time_of_day, occurred_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(server_id) WHERE server_id IS NOT NULL DO UPDATE SET
				deleted = excluded.deleted,
				mood = excluded.mood,
				rating = excluded.rating,
				note = excluded.note,
				tags = excluded.tags,
				time_of_day = excluded.time_of_day,
				occurred_at = excluded.occurred_at,
				updated_at = excluded.updated_at
		`, e.LocalID, e.ServerID, e.UserID, boolInt(e.Deleted), e.Mood, nullInt(e.Rating),
			e.Note, models.EncodeStringList(e.Tags), e.TimeOfDay, e.OccurredAt, e.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to import mood entry %s: %w", e.ServerID, err)
		}
	}
	return nil
}

func (r *SQLiteRepository) Get(ctx context.Context, localID string) (*models.MoodEntry, error) {
	row := r.db.QueryRowContext(ctx, selectCols+` WHERE local_id = ?`, localID)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get mood entry: %w", err)
	}
	return e, nil
}

func (r *SQLiteRepository) OnDay(ctx context.Context, day time.Time) ([]models.MoodEntry, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	return r.Range(ctx, start, start.AddDate(0, 0, 1))
}

func (r *SQLiteRepository) Recent(ctx context.Context, n int) ([]models.MoodEntry, error) {
	rows, err := r.db.QueryContext(ctx, selectCols+`
		WHERE user_id = ? AND deleted = 0
		ORDER BY occurred_at DESC
		LIMIT ?
	`, r.user, n)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent moods: %w", err)
	}
	return collect(rows)
}

func (r *SQLiteRepository) Range(ctx context.Context, from, to time.Time) ([]models.MoodEntry, error) {
	rows, err := r.db.QueryContext(ctx, selectCols+`
		WHERE user_id = ? AND deleted = 0 AND occurred_at >= ? AND occurred_at < ?
		ORDER BY occurred_at ASC
	`, r.user, from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query mood range: %w", err)
	}
	return collect(rows)
}

func (r *SQLiteRepository) SoftDelete(ctx context.Context, localID string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE mood_entries SET deleted = 1, updated_at = ? WHERE local_id = ? AND deleted = 0`,
		time.Now().UTC(), localID)
	if err != nil {
		return fmt.Errorf("failed to soft-delete mood entry: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return common.ErrNotFound
	}
	r.bus.Notify()
	return nil
}

func (r *SQLiteRepository) HardDelete(ctx context.Context, localID string) error {
	err := dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM mood_entries WHERE local_id = ?`, localID); err != nil {
			return err
		}
		return outbox.DeleteForRowTx(ctx, tx, models.KindMoodEntry, localID)
	})
	if err != nil {
		return fmt.Errorf("failed to delete mood entry: %w", err)
	}
	r.bus.Notify()
	return nil
}

const selectCols = `
	SELECT local_id, server_id, user_id, deleted, mood, rating, note, tags, time_of_day, occurred_at, updated_at
	FROM mood_entries`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*models.MoodEntry, error) {
	var e models.MoodEntry
	var serverID sql.NullString
	var rating sql.NullInt64
	var deleted int
	var tags string
	if err := row.Scan(&e.LocalID, &serverID, &e.UserID, &deleted, &e.Mood, &rating,
		&e.Note, &tags, &e.TimeOfDay, &e.OccurredAt, &e.UpdatedAt); err != nil {
		return nil, err
	}
	e.ServerID = serverID.String
	e.Deleted = deleted == 1
	if rating.Valid {
		v := int(rating.Int64)
		e.Rating = &v
	}
	e.Tags = models.DecodeStringList(tags)
	return &e, nil
}

func collect(rows *sql.Rows) ([]models.MoodEntry, error) {
	defer rows.Close()
	var result []models.MoodEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *e)
	}
	return result, rows.Err()
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
