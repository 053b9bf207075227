package report

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/mailevents/internal/domain"
	"github.com/ignite/mailevents/internal/pkg/apperr"
)

type queryCall struct {
	eventType string
	from, to  time.Time
}

type mockEvents struct {
	calls  []queryCall
	events []domain.StoredEvent
	err    error
}

func (m *mockEvents) Query(_ context.Context, eventType string, from, to time.Time) ([]domain.StoredEvent, error) {
	m.calls = append(m.calls, queryCall{eventType, from, to})
	if m.err != nil {
		return nil, m.err
	}
	var out []domain.StoredEvent
	for _, e := range m.events {
		if e.Type == eventType && e.Timestamp >= from.Unix() && e.Timestamp <= to.Unix() {
			out = append(out, e)
		}
	}
	return out, nil
}

type mockAggregates struct {
	listed  []int
	deleted map[int]string
	domains []domain.KnownDomain
}

func (m *mockAggregates) ListByGeneration(_ context.Context, n int) ([]domain.DomainAggregate, error) {
	m.listed = append(m.listed, n)
	return []domain.DomainAggregate{{Generation: n, Domain: "a.com"}}, nil
}

func (m *mockAggregates) DeleteByDomain(_ context.Context, n int, d string) error {
	if m.deleted == nil {
		m.deleted = map[int]string{}
	}
	m.deleted[n] = d
	return nil
}

func (m *mockAggregates) ListDomains(context.Context) ([]domain.KnownDomain, error) {
	return m.domains, nil
}

type mockSpam struct{ cleared bool }

func (m *mockSpam) ListAll(context.Context) ([]domain.SpamComplaint, error) {
	return []domain.SpamComplaint{}, nil
}

func (m *mockSpam) ClearAll(context.Context) (int64, error) {
	m.cleared = true
	return 3, nil
}

func TestEventsByTypeAndRange_SingleDayIsInclusive(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).Unix()
	end := time.Date(2024, 1, 1, 23, 59, 59, 0, time.UTC).Unix()
	events := &mockEvents{events: []domain.StoredEvent{
		{ID: 1, Type: "open", Timestamp: start - 1},
		{ID: 2, Type: "open", Timestamp: start},
		{ID: 3, Type: "open", Timestamp: end},
		{ID: 4, Type: "open", Timestamp: end + 1},
		{ID: 5, Type: "click", Timestamp: start + 10},
	}}
	svc := NewService(events, &mockAggregates{}, &mockSpam{})

	got, err := svc.EventsByTypeAndRange(context.Background(), "open", "2024-01-01", "2024-01-01")
	require.NoError(t, err)

	var ids []int64
	for _, e := range got {
		ids = append(ids, e.ID)
	}
	assert.Equal(t, []int64{2, 3}, ids)

	require.Len(t, events.calls, 1)
	assert.Equal(t, time.Date(2024, 1, 1, 23, 59, 59, 999999999, time.UTC), events.calls[0].to)
}

func TestEventsByTypeAndRange_Validation(t *testing.T) {
	svc := NewService(&mockEvents{}, &mockAggregates{}, &mockSpam{})
	ctx := context.Background()

	tests := []struct {
		name                 string
		eventType, from, end string
	}{
		{"missing type", "", "2024-01-01", "2024-01-02"},
		{"missing start", "open", "", "2024-01-02"},
		{"missing end", "open", "2024-01-01", ""},
		{"bad start", "open", "yesterday", "2024-01-02"},
		{"start after end", "open", "2024-02-01", "2024-01-02"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.EventsByTypeAndRange(ctx, tt.eventType, tt.from, tt.end)
			assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
		})
	}
}

func TestEventsByTypeAndRange_AcceptsRFC3339(t *testing.T) {
	events := &mockEvents{}
	svc := NewService(events, &mockAggregates{}, &mockSpam{})

	got, err := svc.EventsByTypeAndRange(context.Background(), "open", "2024-01-01T10:00:00Z", "2024-01-03T01:00:00+02:00")
	require.NoError(t, err)
	assert.NotNil(t, got)
	require.Len(t, events.calls, 1)
	assert.Equal(t, time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC), events.calls[0].from)
	assert.Equal(t, time.Date(2024, 1, 2, 23, 59, 59, 999999999, time.UTC), events.calls[0].to)
}

func TestEventsByTypeAndRange_PropagatesNotFound(t *testing.T) {
	events := &mockEvents{err: apperr.New(apperr.KindNotFound, "no event store")}
	svc := NewService(events, &mockAggregates{}, &mockSpam{})

	_, err := svc.EventsByTypeAndRange(context.Background(), "open", "2024-01-01", "2024-01-01")
	assert.ErrorIs(t, err, apperr.NotFound)
}

func TestParseGeneration(t *testing.T) {
	n, err := ParseGeneration("3")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	for _, raw := range []string{"1", "0", "-2", "two", ""} {
		_, err := ParseGeneration(raw)
		assert.ErrorIs(t, err, apperr.Validation, raw)
	}
}

func TestAggregatesAndDelete(t *testing.T) {
	aggs := &mockAggregates{}
	svc := NewService(&mockEvents{}, aggs, &mockSpam{})

	out, err := svc.Aggregates(context.Background(), "2")
	require.NoError(t, err)
	assert.Len(t, out, 1)
	assert.Equal(t, []int{2}, aggs.listed)

	require.NoError(t, svc.DeleteAggregate(context.Background(), "4", "a.com"))
	assert.Equal(t, "a.com", aggs.deleted[4])

	_, err = svc.Aggregates(context.Background(), "1")
	assert.ErrorIs(t, err, apperr.Validation)
}

func TestSpamAndDomains(t *testing.T) {
	spam := &mockSpam{}
	svc := NewService(&mockEvents{}, &mockAggregates{}, spam)

	n, err := svc.ClearSpamReports(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.True(t, spam.cleared)

	domains, err := svc.Domains(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, domains)
	assert.Empty(t, domains)
}
