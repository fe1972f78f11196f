// Package notify implements the change notification bus: a synchronous
// observer list fired after any committed local mutation so dependent state
// can refresh. Listeners are isolated from one another; a panicking listener
// is logged and the rest still run.
package notify

import (
	"context"
	"sort"
	"sync"

	"github.com/serenoapp/syncstore/internal/logging"
)

// Listener is invoked after a committed mutation. It receives no payload;
// subscribers re-query the repositories they care about.
type Listener func()

// Bus is a post-commit observer list. The zero value is not usable; use New.
type Bus struct {
	mu        sync.Mutex
	nextID    int
	listeners map[int]Listener
	log       logging.Logger
}

func New(log logging.Logger) *Bus {
	if log == nil {
		log = logging.NopLogger{}
	}
	return &Bus{listeners: make(map[int]Listener), log: log}
}

// Subscribe registers fn and returns its unsubscribe func. Unsubscribing
// twice is a no-op, and unsubscribing from inside a notification is safe.
func (b *Bus) Subscribe(fn Listener) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	b.listeners[id] = fn

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.listeners, id)
	}
}

// Notify invokes every current listener synchronously, in subscription order.
// Panics are caught per listener so one bad subscriber cannot block others
// or crash the writer.
func (b *Bus) Notify() {
	b.mu.Lock()
	ids := make([]int, 0, len(b.listeners))
	for id := range b.listeners {
		ids = append(ids, id)
	}
	// map iteration order is random; restore subscription order
	sort.Ints(ids)
	fns := make([]Listener, 0, len(ids))
	for _, id := range ids {
		fns = append(fns, b.listeners[id])
	}
	b.mu.Unlock()

	for _, fn := range fns {
		b.invoke(fn)
	}
}

func (b *Bus) invoke(fn Listener) {
	defer func() {
		if p := recover(); p != nil {
			b.log.Error(context.Background(), "change listener panicked", "panic", p)
		}
	}()
	fn()
}
