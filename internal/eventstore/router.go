package eventstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ignite/mailevents/internal/domain"
	"github.com/ignite/mailevents/internal/pkg/apperr"
	"github.com/ignite/mailevents/internal/pkg/distlock"
	"github.com/ignite/mailevents/internal/pkg/logger"
)

// Backend is the persistence layer behind the router.
type Backend interface {
	// EnsureTable creates the store's table and indexes if missing.
	EnsureTable(ctx context.Context, s Store) error
	// TableExists reports whether the store's table is present.
	TableExists(ctx context.Context, s Store) (bool, error)
	Insert(ctx context.Context, s Store, ev domain.Event) error
	// Range returns events with from <= timestamp <= to, oldest first. For the
	// generic store, eventType filters rows by their original tag.
	Range(ctx context.Context, s Store, eventType string, from, to int64) ([]domain.StoredEvent, error)
}

// Router writes events to the store their type resolves to, creating stores
// on first use.
type Router struct {
	registry *Registry
	backend  Backend
	locks    distlock.Factory
	lockPoll time.Duration

	mu    sync.Mutex
	state map[string]*storeState
}

type storeState struct {
	mu    sync.Mutex
	ready bool
}

// NewRouter creates a router. locks may be nil for single-instance setups.
func NewRouter(registry *Registry, backend Backend, locks distlock.Factory) *Router {
	return &Router{
		registry: registry,
		backend:  backend,
		locks:    locks,
		lockPoll: 50 * time.Millisecond,
		state:    make(map[string]*storeState),
	}
}

// Registry returns the router's registry.
func (r *Router) Registry() *Registry { return r.registry }

// Write persists ev into its store and returns the store used.
func (r *Router) Write(ctx context.Context, ev domain.Event) (Store, error) {
	s := r.registry.Resolve(ev)
	return s, r.WriteTo(ctx, s, ev)
}

// WriteTo persists ev into an explicit store.
func (r *Router) WriteTo(ctx context.Context, s Store, ev domain.Event) error {
	if err := r.ensure(ctx, s); err != nil {
		return err
	}
	if err := r.backend.Insert(ctx, s, ev); err != nil {
		return fmt.Errorf("insert into %s: %w", s.Name, err)
	}
	return nil
}

// Query returns events of eventType with timestamps in [from, to].
func (r *Router) Query(ctx context.Context, eventType string, from, to time.Time) ([]domain.StoredEvent, error) {
	s := r.registry.Lookup(eventType)

	exists, err := r.exists(ctx, s)
	if err != nil {
		return nil, fmt.Errorf("check store %s: %w", s.Name, err)
	}
	if !exists {
		return nil, apperr.New(apperr.KindNotFound, "no event store for type %q", eventType)
	}

	events, err := r.backend.Range(ctx, s, eventType, from.Unix(), to.Unix())
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", s.Name, err)
	}
	return events, nil
}

// ReadyStores counts the registry's stores whose tables exist.
func (r *Router) ReadyStores(ctx context.Context) (ready, total int, err error) {
	for _, s := range r.registry.All() {
		total++
		ok, err := r.exists(ctx, s)
		if err != nil {
			return 0, 0, fmt.Errorf("check store %s: %w", s.Name, err)
		}
		if ok {
			ready++
		}
	}
	return ready, total, nil
}

func (r *Router) stateFor(s Store) *storeState {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.state[s.Table]
	if !ok {
		st = &storeState{}
		r.state[s.Table] = st
	}
	return st
}

func (r *Router) exists(ctx context.Context, s Store) (bool, error) {
	st := r.stateFor(s)
	st.mu.Lock()
	ready := st.ready
	st.mu.Unlock()
	if ready {
		return true, nil
	}
	return r.backend.TableExists(ctx, s)
}

// ensure creates the store once per process. A failed attempt is not cached,
// so the next event for the store retries.
func (r *Router) ensure(ctx context.Context, s Store) error {
	st := r.stateFor(s)
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.ready {
		return nil
	}

	create := func(ctx context.Context) error { return r.backend.EnsureTable(ctx, s) }

	var err error
	if r.locks != nil {
		err = distlock.Run(ctx, r.locks("eventstore:"+s.Table), r.lockPoll, create)
	} else {
		err = create(ctx)
	}
	if err != nil {
		return fmt.Errorf("ensure store %s: %w", s.Name, err)
	}

	st.ready = true
	logger.Info("event store ready", "store", s.Name, "table", s.Table)
	return nil
}
