// Package progress stores completed-exercise logs. Durations cross the API
// boundary in minutes and are persisted in seconds.
package progress

import (
	"context"

	"github.com/serenoapp/syncstore/internal/models"
)

type Repository interface {
	// Record writes a completion for an exercise. durationMinutes is
	// converted to the storage unit; the returned local id identifies the
	// new log row.
	Record(ctx context.Context, exerciseID string, durationMinutes int, feedback string) (string, error)

	// UpsertLocal writes an already-populated log and enqueues its outbox
	// op in one transaction.
	UpsertLocal(ctx context.Context, l *models.ProgressLog) (string, error)

	// ImportFromServer upserts server-confirmed rows keyed by server id.
	ImportFromServer(ctx context.Context, rows []models.ProgressLog) error

	// Get returns one log by local id.
	Get(ctx context.Context, localID string) (*models.ProgressLog, error)

	// ForExercise returns the logs for one exercise, newest first.
	ForExercise(ctx context.Context, exerciseID string) ([]models.ProgressLog, error)

	// Recent returns the last n logs by completion time, newest first.
	Recent(ctx context.Context, n int) ([]models.ProgressLog, error)

	// TotalMinutes sums all recorded durations, reported in minutes.
	TotalMinutes(ctx context.Context) (int, error)

	// HardDelete removes the row and any outbox ops referencing it.
	HardDelete(ctx context.Context, localID string) error
}
