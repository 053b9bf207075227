package eventstore

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/ignite/mailevents/internal/domain"
	"github.com/ignite/mailevents/internal/pkg/apperr"
	"github.com/ignite/mailevents/internal/pkg/distlock"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memBackend is an in-memory Backend for tests.
type memBackend struct {
	mu         sync.Mutex
	tables     map[string][]domain.StoredEvent
	ensures    map[string]int
	failEnsure map[string]int // remaining failures per table
	failInsert map[string]bool
}

func newMemBackend() *memBackend {
	return &memBackend{
		tables:     make(map[string][]domain.StoredEvent),
		ensures:    make(map[string]int),
		failEnsure: make(map[string]int),
		failInsert: make(map[string]bool),
	}
}

func (m *memBackend) EnsureTable(_ context.Context, s Store) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ensures[s.Table]++
	if m.failEnsure[s.Table] > 0 {
		m.failEnsure[s.Table]--
		return errors.New("permission denied for schema public")
	}
	if _, ok := m.tables[s.Table]; !ok {
		m.tables[s.Table] = nil
	}
	return nil
}

func (m *memBackend) TableExists(_ context.Context, s Store) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.tables[s.Table]
	return ok, nil
}

func (m *memBackend) Insert(_ context.Context, s Store, ev domain.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failInsert[s.Table] {
		return errors.New("insert failed")
	}
	m.tables[s.Table] = append(m.tables[s.Table], domain.StoredEvent{
		ID:        int64(len(m.tables[s.Table]) + 1),
		Type:      ev.Type,
		Subtype:   ev.Subtype,
		Domain:    ev.Domain,
		Email:     ev.Email,
		Timestamp: ev.Timestamp,
	})
	return nil
}

func (m *memBackend) Range(_ context.Context, s Store, eventType string, from, to int64) ([]domain.StoredEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.StoredEvent
	for _, e := range m.tables[s.Table] {
		if s.Generic && e.Type != eventType {
			continue
		}
		if e.Timestamp >= from && e.Timestamp <= to {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memBackend) rows(table string) []domain.StoredEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.StoredEvent(nil), m.tables[table]...)
}

func TestRegistry_Resolve(t *testing.T) {
	reg := MustDefaultRegistry()

	tests := []struct {
		name  string
		event domain.Event
		want  string
	}{
		{"open", domain.Event{Type: "open"}, "sendgrid_events_open"},
		{"blocked bounce", domain.Event{Type: "bounce", Subtype: "blocked"}, "sendgrid_events_blocked"},
		{"plain bounce", domain.Event{Type: "bounce", Subtype: "bounce"}, "sendgrid_events_bounce"},
		{"unknown tag", domain.Event{Type: "machine_opened"}, "sendgrid_events_generic"},
		{"injection attempt", domain.Event{Type: "open; DROP TABLE x"}, "sendgrid_events_generic"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, reg.Resolve(tt.event).Table)
		})
	}
}

func TestNewRegistry_RejectsBadNames(t *testing.T) {
	_, err := NewRegistry("open", "Bad-Name")
	assert.Error(t, err)
	_, err = NewRegistry("generic")
	assert.Error(t, err)
}

func TestRegistry_AllEndsWithGeneric(t *testing.T) {
	reg, err := NewRegistry("open", "click", "open")
	require.NoError(t, err)

	all := reg.All()
	require.Len(t, all, 3)
	assert.Equal(t, "open", all[0].Name)
	assert.Equal(t, "click", all[1].Name)
	assert.True(t, all[2].Generic)
}

func TestRouter_CreatesStoreOncePerProcess(t *testing.T) {
	backend := newMemBackend()
	router := NewRouter(MustDefaultRegistry(), backend, nil)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := router.Write(context.Background(), domain.Event{Type: "open", Timestamp: int64(i)})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, backend.ensures["sendgrid_events_open"])
	assert.Len(t, backend.rows("sendgrid_events_open"), 50)
}

func TestRouter_FailedCreateIsRetried(t *testing.T) {
	backend := newMemBackend()
	backend.failEnsure["sendgrid_events_click"] = 1
	router := NewRouter(MustDefaultRegistry(), backend, nil)

	_, err := router.Write(context.Background(), domain.Event{Type: "click"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ensure store click")

	_, err = router.Write(context.Background(), domain.Event{Type: "click"})
	require.NoError(t, err)
	assert.Equal(t, 2, backend.ensures["sendgrid_events_click"])
}

func TestRouter_UnknownTagsShareGenericStore(t *testing.T) {
	backend := newMemBackend()
	router := NewRouter(MustDefaultRegistry(), backend, nil)
	ctx := context.Background()

	_, err := router.Write(ctx, domain.Event{Type: "machine_opened", Timestamp: 10})
	require.NoError(t, err)
	_, err = router.Write(ctx, domain.Event{Type: "account_status_change", Timestamp: 11})
	require.NoError(t, err)

	assert.Len(t, backend.rows("sendgrid_events_generic"), 2)
	assert.Equal(t, 1, backend.ensures["sendgrid_events_generic"])

	got, err := router.Query(ctx, "machine_opened", time.Unix(0, 0), time.Unix(100, 0))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "machine_opened", got[0].Type)
}

func TestRouter_QueryMissingStore(t *testing.T) {
	router := NewRouter(MustDefaultRegistry(), newMemBackend(), nil)

	_, err := router.Query(context.Background(), "open", time.Unix(0, 0), time.Unix(10, 0))
	assert.ErrorIs(t, err, apperr.NotFound)
}

func TestRouter_QueryInclusiveRange(t *testing.T) {
	backend := newMemBackend()
	router := NewRouter(MustDefaultRegistry(), backend, nil)
	ctx := context.Background()

	for _, ts := range []int64{99, 100, 150, 200, 201} {
		_, err := router.Write(ctx, domain.Event{Type: "open", Timestamp: ts})
		require.NoError(t, err)
	}

	got, err := router.Query(ctx, "open", time.Unix(100, 0), time.Unix(200, 0))
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, int64(100), got[0].Timestamp)
	assert.Equal(t, int64(200), got[2].Timestamp)
}

func TestRouter_UsesDistributedLock(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	backend := newMemBackend()
	locks := distlock.NewFactory(client, nil, time.Minute)

	// Another instance holds the DDL lock briefly.
	other := locks("eventstore:sendgrid_events_open")
	ok, err := other.Acquire(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	go func() {
		time.Sleep(20 * time.Millisecond)
		_ = other.Release(context.Background())
	}()

	router := NewRouter(MustDefaultRegistry(), backend, locks)
	router.lockPoll = 2 * time.Millisecond

	_, err = router.Write(context.Background(), domain.Event{Type: "open"})
	require.NoError(t, err)
	assert.Equal(t, 1, backend.ensures["sendgrid_events_open"])
	assert.False(t, mr.Exists("lock:eventstore:sendgrid_events_open"))
}

func TestRouter_InsertFailureIsolated(t *testing.T) {
	backend := newMemBackend()
	backend.failInsert["sendgrid_events_blocked"] = true
	router := NewRouter(MustDefaultRegistry(), backend, nil)

	_, err := router.Write(context.Background(), domain.Event{Type: "bounce", Subtype: "blocked"})
	require.Error(t, err)

	_, err = router.Write(context.Background(), domain.Event{Type: "open"})
	assert.NoError(t, err)
}

func TestRouter_ReadyStores(t *testing.T) {
	backend := newMemBackend()
	router := NewRouter(MustDefaultRegistry(), backend, nil)
	ctx := context.Background()

	ready, total, err := router.ReadyStores(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, ready)
	assert.Equal(t, len(DefaultStoreNames())+1, total)

	_, err = router.Write(ctx, domain.Event{Type: domain.EventOpen, Timestamp: 1})
	require.NoError(t, err)

	ready, _, err = router.ReadyStores(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, ready)
}
