package store

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/serenoapp/syncstore/internal/common"
	"github.com/serenoapp/syncstore/internal/logging"
)

// DefaultTenant is the tenant key used for signed-out, device-local state.
const DefaultTenant = "local"

// Registry owns one Store per tenant key, opened lazily and cached for the
// registry's lifetime. It is an explicit object held by the application's
// composition root — switching the active tenant never evicts other tenants'
// handles, so multi-account devices keep their state isolated and warm.
type Registry struct {
	dir string
	log logging.Logger

	mu      sync.Mutex
	handles map[string]*Store
	closed  bool
}

// NewRegistry creates a registry storing tenant databases under dir.
func NewRegistry(dir string, log logging.Logger) *Registry {
	if log == nil {
		log = logging.NopLogger{}
	}
	return &Registry{dir: dir, log: log, handles: make(map[string]*Store)}
}

// Handle returns the Store for tenantKey, opening and migrating the tenant's
// database on first use. An empty key maps to DefaultTenant. Migration
// failure is fatal for the open; the half-opened handle is not cached. The
// first open also seeds the exercise catalog best-effort.
func (r *Registry) Handle(ctx context.Context, tenantKey string) (*Store, error) {
	if tenantKey == "" {
		tenantKey = DefaultTenant
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, common.ErrClosed
	}
	if st, ok := r.handles[tenantKey]; ok {
		return st, nil
	}

	path := filepath.Join(r.dir, fileNameForTenant(tenantKey))
	db, err := OpenDB(path)
	if err != nil {
		return nil, fmt.Errorf("tenant %s: %w", tenantKey, err)
	}

	if err := Migrate(ctx, db, Migrations()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("tenant %s: %w", tenantKey, err)
	}

	st := NewStore(db, tenantKey, r.log.With("tenant", tenantKey))

	// Best-effort: an empty catalog gets the built-in set. Failure is logged
	// and the handle stays usable.
	if err := seedExerciseCatalog(ctx, st); err != nil {
		r.log.Warn(ctx, "exercise catalog seed failed", "tenant", tenantKey, "error", err)
	}

	r.handles[tenantKey] = st
	return st, nil
}

// CloseAll closes every cached handle and marks the registry closed.
func (r *Registry) CloseAll() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var firstErr error
	for key, st := range r.handles {
		if err := st.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing tenant %s: %w", key, err)
		}
		delete(r.handles, key)
	}
	r.closed = true
	return firstErr
}

// fileNameForTenant maps a tenant key to a safe database file name. Keys are
// normally opaque account ids; anything outside [a-zA-Z0-9._-] is replaced.
func fileNameForTenant(key string) string {
	safe := strings.Map(func(c rune) rune {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
			return c
		case c == '-' || c == '_' || c == '.':
			return c
		default:
			return '_'
		}
	}, key)
	return safe + ".db"
}
