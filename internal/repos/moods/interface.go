// Package moods stores mood check-ins: instant local writes with a queued
// outbox op, idempotent imports of server-confirmed rows, and the read
// helpers the mood screens use.
package moods

import (
	"context"
	"time"

	"github.com/serenoapp/syncstore/internal/models"
)

// Repository describes the operations available on mood entries.
// Implementations are backed by the tenant's local SQLite database.
type Repository interface {
	// UpsertLocal writes the entry and enqueues its outbox op in one
	// transaction, generating a local id when absent. Returns the local id.
	UpsertLocal(ctx context.Context, e *models.MoodEntry) (string, error)

	// ImportFromServer upserts server-confirmed rows keyed by their server
	// id. Idempotent; never enqueues outbox ops; never touches local-only
	// rows absent from the batch.
	ImportFromServer(ctx context.Context, rows []models.MoodEntry) error

	// Get returns one entry by local id.
	Get(ctx context.Context, localID string) (*models.MoodEntry, error)

	// OnDay returns the entries whose occurrence falls on day, oldest first.
	OnDay(ctx context.Context, day time.Time) ([]models.MoodEntry, error)

	// Recent returns the last n entries by occurrence, newest first.
	Recent(ctx context.Context, n int) ([]models.MoodEntry, error)

	// Range returns entries with from <= occurred_at < to, oldest first.
	Range(ctx context.Context, from, to time.Time) ([]models.MoodEntry, error)

	// SoftDelete tombstones an entry locally.
	SoftDelete(ctx context.Context, localID string) error

	// HardDelete removes the row and any outbox ops referencing it.
	HardDelete(ctx context.Context, localID string) error
}
