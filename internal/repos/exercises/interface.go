// Package exercises stores the guided-exercise catalog. The catalog is
// mostly server-sourced (import) or built-in (backfill); local upserts exist
// for user-authored exercises and follow the same outbox path as any write.
package exercises

import (
	"context"

	"github.com/serenoapp/syncstore/internal/models"
)

type Repository interface {
	// UpsertLocal writes the item and enqueues its outbox op in one
	// transaction, generating a local id when absent.
	UpsertLocal(ctx context.Context, item *models.ExerciseCatalogItem) (string, error)

	// ImportFromServer upserts server-confirmed rows keyed by server id.
	// Idempotent; no outbox ops.
	ImportFromServer(ctx context.Context, rows []models.ExerciseCatalogItem) error

	// Backfill inserts built-in items silently: no outbox ops, no
	// notification. Used once per tenant when the catalog is empty.
	Backfill(ctx context.Context, items []models.ExerciseCatalogItem) error

	// Get returns one item by local id.
	Get(ctx context.Context, localID string) (*models.ExerciseCatalogItem, error)

	// All returns the catalog ordered by category then English title.
	All(ctx context.Context) ([]models.ExerciseCatalogItem, error)

	// ByCategory returns the catalog entries in one category.
	ByCategory(ctx context.Context, cat models.ExerciseCategory) ([]models.ExerciseCatalogItem, error)

	// Count returns the number of non-deleted catalog rows.
	Count(ctx context.Context) (int, error)
}
