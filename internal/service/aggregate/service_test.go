package aggregate

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ignite/mailevents/internal/domain"
	"github.com/ignite/mailevents/internal/pkg/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockRepo is an in-memory repository for testing. Its increments hold the
// lock for the whole find-or-create-and-add, like a database upsert.
type mockRepo struct {
	mu          sync.Mutex
	generations map[int]bool
	rows        map[int]map[string]*domain.DomainAggregate
	domains     map[string]time.Time
	touches     int
	failWrites  bool
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		generations: make(map[int]bool),
		rows:        make(map[int]map[string]*domain.DomainAggregate),
		domains:     make(map[string]time.Time),
	}
}

func (m *mockRepo) row(gen int, d string, at time.Time) *domain.DomainAggregate {
	if m.rows[gen] == nil {
		m.rows[gen] = make(map[string]*domain.DomainAggregate)
	}
	r, ok := m.rows[gen][d]
	if !ok {
		r = &domain.DomainAggregate{Generation: gen, Domain: d, BlockedByHost: map[domain.HostCategory]int64{}}
		m.rows[gen][d] = r
	}
	r.LastUpdated = at
	return r
}

func (m *mockRepo) IncrementDelivered(_ context.Context, gen int, d string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWrites {
		return errors.New("connection reset by peer")
	}
	m.generations[gen] = true
	m.row(gen, d, at).DeliveredCount++
	return nil
}

func (m *mockRepo) IncrementBlocked(_ context.Context, gen int, d string, host domain.HostCategory, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWrites {
		return errors.New("connection reset by peer")
	}
	m.generations[gen] = true
	r := m.row(gen, d, at)
	r.BlockedCount++
	r.BlockedByHost[host]++
	return nil
}

func (m *mockRepo) RegisterGeneration(_ context.Context, gen int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.generations[gen] = true
	return nil
}

func (m *mockRepo) GenerationExists(_ context.Context, gen int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.generations[gen], nil
}

func (m *mockRepo) ListByGeneration(_ context.Context, gen int) ([]domain.DomainAggregate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.DomainAggregate
	for _, r := range m.rows[gen] {
		cp := *r
		cp.BlockedByHost = make(map[domain.HostCategory]int64, len(r.BlockedByHost))
		for k, v := range r.BlockedByHost {
			cp.BlockedByHost[k] = v
		}
		out = append(out, cp)
	}
	return out, nil
}

func (m *mockRepo) DeleteDomain(_ context.Context, gen int, d string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[gen][d]; !ok {
		return ErrDomainNotFound
	}
	delete(m.rows[gen], d)
	return nil
}

func (m *mockRepo) TouchDomain(_ context.Context, d string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.touches++
	if _, ok := m.domains[d]; !ok {
		m.domains[d] = at
	}
	return nil
}

func (m *mockRepo) ListDomains(_ context.Context) ([]domain.KnownDomain, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.KnownDomain
	for d, at := range m.domains {
		out = append(out, domain.KnownDomain{Domain: d, FirstSeen: at})
	}
	return out, nil
}

func find(t *testing.T, aggs []domain.DomainAggregate, d string) domain.DomainAggregate {
	t.Helper()
	for _, a := range aggs {
		if a.Domain == d {
			return a
		}
	}
	t.Fatalf("domain %s not found", d)
	return domain.DomainAggregate{}
}

func TestRecord_ConcurrentIncrementsAreNotLost(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo, 2)
	ctx := context.Background()

	const delivered, blocked = 200, 120
	recipients := []string{"a@gmail.com", "b@yahoo.com", "c@proton.me"}

	var wg sync.WaitGroup
	for i := 0; i < delivered; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, svc.RecordDelivered(ctx, "foo.com"))
		}()
	}
	for i := 0; i < blocked; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, svc.RecordBlocked(ctx, "foo.com", recipients[i%len(recipients)]))
		}(i)
	}
	wg.Wait()

	aggs, err := svc.ListByGeneration(ctx, 2)
	require.NoError(t, err)
	got := find(t, aggs, "foo.com")

	assert.Equal(t, int64(delivered), got.DeliveredCount)
	assert.Equal(t, int64(blocked), got.BlockedCount)
	assert.Equal(t, int64(blocked), got.BlockedTotal())
	assert.Equal(t, int64(40), got.BlockedByHost[domain.HostGmail])
	assert.Equal(t, int64(40), got.BlockedByHost[domain.HostYahoo])
	assert.Equal(t, int64(40), got.BlockedByHost[domain.HostOther])
	assert.Len(t, got.BlockedByHost, 6)
}

func TestRecordBlocked_ClassifiesHost(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo, 3)
	ctx := context.Background()

	require.NoError(t, svc.RecordBlocked(ctx, "foo.com", "Someone@ICLOUD.com"))
	require.NoError(t, svc.RecordBlocked(ctx, "foo.com", ""))

	aggs, err := svc.ListByGeneration(ctx, 3)
	require.NoError(t, err)
	got := find(t, aggs, "foo.com")
	assert.Equal(t, int64(1), got.BlockedByHost[domain.HostICloud])
	assert.Equal(t, int64(1), got.BlockedByHost[domain.HostOther])
	assert.Equal(t, int64(0), got.DeliveredCount)
}

func TestRecord_WrapsRepositoryError(t *testing.T) {
	repo := newMockRepo()
	repo.failWrites = true
	svc := NewService(repo, 2)

	err := svc.RecordDelivered(context.Background(), "foo.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "record delivered for foo.com")
}

func TestListByGeneration(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo, 2)
	ctx := context.Background()

	tests := []struct {
		name string
		n    int
		want error
	}{
		{"below minimum", 1, ErrInvalidGeneration},
		{"zero", 0, ErrInvalidGeneration},
		{"unregistered", 7, ErrGenerationNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.ListByGeneration(ctx, tt.n)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	require.NoError(t, svc.EnsureGeneration(ctx))
	aggs, err := svc.ListByGeneration(ctx, 2)
	require.NoError(t, err)
	assert.Empty(t, aggs)
}

func TestDeleteByDomain(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo, 2)
	ctx := context.Background()
	require.NoError(t, svc.RecordDelivered(ctx, "foo.com"))

	assert.ErrorIs(t, svc.DeleteByDomain(ctx, 2, " "), ErrDomainRequired)
	assert.ErrorIs(t, svc.DeleteByDomain(ctx, 9, "foo.com"), ErrGenerationNotFound)
	assert.ErrorIs(t, svc.DeleteByDomain(ctx, 2, "bar.com"), ErrDomainNotFound)

	require.NoError(t, svc.DeleteByDomain(ctx, 2, "foo.com"))
	aggs, err := svc.ListByGeneration(ctx, 2)
	require.NoError(t, err)
	assert.Empty(t, aggs)

	// Taxonomy mapping holds for every not-found path.
	assert.ErrorIs(t, svc.DeleteByDomain(ctx, 2, "foo.com"), apperr.NotFound)
}

func TestEnsureGeneration_RejectsLowGeneration(t *testing.T) {
	svc := NewService(newMockRepo(), 1)
	assert.ErrorIs(t, svc.EnsureGeneration(context.Background()), ErrInvalidGeneration)
}

func TestTouchDomain_OncePerProcess(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo, 2)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, svc.TouchDomain(ctx, "foo.com"))
	}
	require.NoError(t, svc.TouchDomain(ctx, "not found"))
	require.NoError(t, svc.TouchDomain(ctx, ""))

	assert.Equal(t, 1, repo.touches)
	domains, err := svc.ListDomains(ctx)
	require.NoError(t, err)
	require.Len(t, domains, 1)
	assert.Equal(t, "foo.com", domains[0].Domain)
}

func TestService_Generation(t *testing.T) {
	assert.Equal(t, 4, NewService(newMockRepo(), 4).Generation())
}
