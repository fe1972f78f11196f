package store

import (
	"database/sql"

	"github.com/serenoapp/syncstore/internal/logging"
	"github.com/serenoapp/syncstore/internal/notify"
	"github.com/serenoapp/syncstore/internal/reconcile"
	"github.com/serenoapp/syncstore/internal/repos/chat"
	"github.com/serenoapp/syncstore/internal/repos/cursor"
	"github.com/serenoapp/syncstore/internal/repos/deadletter"
	"github.com/serenoapp/syncstore/internal/repos/exercises"
	"github.com/serenoapp/syncstore/internal/repos/moods"
	"github.com/serenoapp/syncstore/internal/repos/outbox"
	"github.com/serenoapp/syncstore/internal/repos/progress"
)

// Store is the composition root for one tenant: the database handle, the
// change bus, and every repository bound to them. The application layer and
// the sync driver work exclusively through it.
type Store struct {
	db   *sql.DB
	user string
	bus  *notify.Bus
	log  logging.Logger

	Moods       moods.Repository
	Exercises   exercises.Repository
	Progress    progress.Repository
	Chat        chat.Repository
	Outbox      *outbox.Repository
	DeadLetters *deadletter.Repository
	Cursors     *cursor.Repository
	Reconciler  *reconcile.Engine
}

// NewStore wires the repositories over an already-opened, already-migrated
// database. user is the tenant key stamped on every locally-written row.
func NewStore(db *sql.DB, user string, log logging.Logger) *Store {
	if log == nil {
		log = logging.NopLogger{}
	}
	bus := notify.New(log)
	return &Store{
		db:   db,
		user: user,
		bus:  bus,
		log:  log,

		Moods:       moods.NewSQLiteRepository(db, user, bus),
		Exercises:   exercises.NewSQLiteRepository(db, user, bus),
		Progress:    progress.NewSQLiteRepository(db, user, bus),
		Chat:        chat.NewSQLiteRepository(db, user, bus),
		Outbox:      outbox.New(db),
		DeadLetters: deadletter.New(db),
		Cursors:     cursor.New(db),
		Reconciler:  reconcile.New(db, bus, log),
	}
}

// DB exposes the underlying handle, mainly for tests and tooling.
func (s *Store) DB() *sql.DB { return s.db }

// Bus returns the change notification bus for this tenant.
func (s *Store) Bus() *notify.Bus { return s.bus }

// User returns the tenant key the store is scoped to.
func (s *Store) User() string { return s.user }

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }
