// Package syncdriver is the reference driver over the engine's contracts:
// it drains the outbox against a Remote, applies the retry budget, escalates
// exhausted ops to the dead-letter store, and runs incremental pulls guided
// by the per-entity sync cursors. It is the only component that waits on
// anything besides local storage; repositories stay network-free.
package syncdriver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/serenoapp/syncstore/internal/common"
	"github.com/serenoapp/syncstore/internal/logging"
	"github.com/serenoapp/syncstore/internal/models"
	"github.com/serenoapp/syncstore/internal/store"
)

// PullBatch is one page of server-confirmed rows plus the watermark to
// request the next page with. Rows are raw JSON in the entity's wire shape.
type PullBatch struct {
	Rows []json.RawMessage
	Next string
}

// Remote is the engine's entire outward surface. Implementations own the
// transport, auth, and wire format.
type Remote interface {
	// Push delivers one queued mutation and returns the canonical server id
	// and updated-at for the row it references.
	Push(ctx context.Context, op models.OutboxOp) (serverID string, updatedAt time.Time, err error)

	// Pull returns rows changed since the given opaque cursor.
	Pull(ctx context.Context, entity models.Kind, since string, limit int) (*PullBatch, error)
}

// Config bounds the driver's behavior. Zero values get defaults.
type Config struct {
	// BatchSize caps ops per drain and rows per pull request.
	BatchSize int
	// PushAttempts is the in-process retry budget for one delivery attempt
	// cycle (fibonacci backoff between tries).
	PushAttempts uint64
	// BaseBackoff seeds the backoff between in-process retries.
	BaseBackoff time.Duration
	// MaxTries is the durable retry ceiling: an op whose counter reaches it
	// after another failed cycle is dead-lettered.
	MaxTries int
	// IdleInterval / BusyInterval drive the adaptive Run loop.
	IdleInterval time.Duration
	BusyInterval time.Duration
}

func (c *Config) applyDefaults() {
	if c.BatchSize <= 0 {
		c.BatchSize = 50
	}
	if c.PushAttempts == 0 {
		c.PushAttempts = 3
	}
	if c.BaseBackoff <= 0 {
		c.BaseBackoff = 500 * time.Millisecond
	}
	if c.MaxTries <= 0 {
		c.MaxTries = 5
	}
	if c.BusyInterval <= 0 {
		c.BusyInterval = 30 * time.Second
	}
	if c.IdleInterval <= 0 {
		c.IdleInterval = 5 * time.Minute
	}
}

// Driver replays one tenant's outbox and pulls remote changes.
type Driver struct {
	st     *store.Store
	remote Remote
	cfg    Config
	log    logging.Logger

	mu      sync.Mutex
	running bool
	stop    chan struct{}
}

func New(st *store.Store, remote Remote, cfg Config, log logging.Logger) *Driver {
	cfg.applyDefaults()
	if log == nil {
		log = logging.NopLogger{}
	}
	return &Driver{st: st, remote: remote, cfg: cfg, log: log}
}

// DrainOutbox replays queued ops for one entity, oldest first. Returns how
// many ops were acknowledged. Per-op outcome: acked via the reconcile
// engine, retry counter bumped, or dead-lettered once the counter would
// reach the ceiling.
func (d *Driver) DrainOutbox(ctx context.Context, entity models.Kind) (int, error) {
	ops, err := d.st.Outbox.PeekBatch(ctx, entity, d.cfg.BatchSize)
	if err != nil {
		return 0, err
	}

	acked := 0
	for _, op := range ops {
		serverID, updatedAt, pushErr := d.pushWithRetry(ctx, op)
		if pushErr == nil {
			if err := d.st.Reconciler.AckSynced(ctx, entity, op.LocalID, serverID, updatedAt); err != nil {
				return acked, err
			}
			acked++
			continue
		}
		if ctx.Err() != nil {
			return acked, ctx.Err()
		}

		if op.Tries+1 >= d.cfg.MaxTries {
			d.log.Warn(ctx, "op exhausted retries, dead-lettering",
				"entity", entity, "op", op.ID, "tries", op.Tries+1, "error", pushErr)
			if err := d.st.DeadLetters.MoveFromOutbox(ctx, op.ID, pushErr.Error()); err != nil {
				return acked, err
			}
			continue
		}
		if err := d.st.Outbox.IncrementTries(ctx, op.ID); err != nil && !errors.Is(err, common.ErrNotFound) {
			return acked, err
		}
		d.log.Debug(ctx, "op delivery failed, will retry",
			"entity", entity, "op", op.ID, "tries", op.Tries+1, "error", pushErr)
	}
	return acked, nil
}

func (d *Driver) pushWithRetry(ctx context.Context, op models.OutboxOp) (string, time.Time, error) {
	var serverID string
	var updatedAt time.Time

	b := retry.WithMaxRetries(d.cfg.PushAttempts, retry.NewFibonacci(d.cfg.BaseBackoff))
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		var err error
		serverID, updatedAt, err = d.remote.Push(ctx, op)
		if err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	return serverID, updatedAt, err
}

// PullEntity runs one incremental pull for an entity: read the cursor, fetch
// a page of changes, import them, advance the cursor. Returns the number of
// imported rows.
func (d *Driver) PullEntity(ctx context.Context, entity models.Kind) (int, error) {
	since, err := d.st.Cursors.Get(ctx, entity)
	if err != nil && !errors.Is(err, common.ErrNotFound) {
		return 0, err
	}

	batch, err := d.remote.Pull(ctx, entity, since, d.cfg.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("pull %s: %w", entity, err)
	}
	if batch == nil || len(batch.Rows) == 0 {
		return 0, nil
	}

	if err := d.importRows(ctx, entity, batch.Rows); err != nil {
		return 0, err
	}
	if batch.Next != "" {
		if err := d.st.Cursors.Set(ctx, entity, batch.Next); err != nil {
			return 0, err
		}
	}

	// Imports are silent at the repository level; one refresh per batch.
	d.st.Bus().Notify()
	return len(batch.Rows), nil
}

// importRows decodes wire rows into the entity's typed import call. Dispatch
// is by kind enum, resolved here once for the whole engine.
func (d *Driver) importRows(ctx context.Context, entity models.Kind, raw []json.RawMessage) error {
	switch entity {
	case models.KindMoodEntry:
		rows, err := decodeRows[models.MoodEntry](raw)
		if err != nil {
			return err
		}
		return d.st.Moods.ImportFromServer(ctx, rows)

	case models.KindExercise:
		rows, err := decodeRows[models.ExerciseCatalogItem](raw)
		if err != nil {
			return err
		}
		return d.st.Exercises.ImportFromServer(ctx, rows)

	case models.KindProgressLog:
		rows, err := decodeRows[models.ProgressLog](raw)
		if err != nil {
			return err
		}
		return d.st.Progress.ImportFromServer(ctx, rows)

	default:
		for _, ch := range models.Channels() {
			switch entity {
			case ch.MessageKind():
				rows, err := decodeRows[models.ChatMessage](raw)
				if err != nil {
					return err
				}
				return d.st.Chat.ImportMessages(ctx, ch, rows)
			case ch.SessionKind():
				rows, err := decodeRows[models.ChatSession](raw)
				if err != nil {
					return err
				}
				return d.st.Chat.ImportSessions(ctx, ch, rows)
			}
		}
		return fmt.Errorf("%w: %q", common.ErrUnknownEntity, string(entity))
	}
}

func decodeRows[T any](raw []json.RawMessage) ([]T, error) {
	rows := make([]T, 0, len(raw))
	for _, r := range raw {
		var v T
		if err := json.Unmarshal(r, &v); err != nil {
			return nil, fmt.Errorf("failed to decode pulled row: %w", err)
		}
		rows = append(rows, v)
	}
	return rows, nil
}

// RunOnce drains and pulls every known entity. Returns true when any work
// happened, which the Run loop uses for adaptive pacing.
func (d *Driver) RunOnce(ctx context.Context) (bool, error) {
	hadWork := false
	for _, kind := range models.Kinds() {
		acked, err := d.DrainOutbox(ctx, kind)
		if err != nil {
			return hadWork, err
		}
		pulled, err := d.PullEntity(ctx, kind)
		if err != nil {
			return hadWork, err
		}
		if acked > 0 || pulled > 0 {
			hadWork = true
		}
	}
	return hadWork, nil
}

// Run loops RunOnce until ctx is done, backing off to IdleInterval when a
// pass does nothing and snapping back to BusyInterval when work appears.
func (d *Driver) Run(ctx context.Context) {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return
	}
	d.running = true
	d.stop = make(chan struct{})
	d.mu.Unlock()

	interval := d.cfg.BusyInterval
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		hadWork, err := d.RunOnce(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			d.log.Error(ctx, "sync pass failed", "error", err)
		}

		next := d.cfg.IdleInterval
		if hadWork {
			next = d.cfg.BusyInterval
		}
		if next != interval {
			interval = next
			ticker.Reset(interval)
		}

		select {
		case <-ctx.Done():
			return
		case <-d.stop:
			return
		case <-ticker.C:
		}
	}
}

// Stop ends a running Run loop.
func (d *Driver) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running {
		close(d.stop)
		d.running = false
	}
}
