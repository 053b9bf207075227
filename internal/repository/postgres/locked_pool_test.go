package postgres

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/mailevents/internal/domain"
	"github.com/ignite/mailevents/internal/eventstore"
	"github.com/ignite/mailevents/internal/pkg/distlock"
	"github.com/ignite/mailevents/internal/service/shortlink"
)

type memRedirects struct {
	mu      sync.Mutex
	targets map[string]string
}

func (m *memRedirects) Put(_ context.Context, code, target string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.targets == nil {
		m.targets = map[string]string{}
	}
	m.targets[code] = target
	return nil
}

func (m *memRedirects) Delete(_ context.Context, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.targets, code)
	return nil
}

// With only advisory locks available, the queries under a short-link lock
// must reuse the lock's connection or a one-connection pool deadlocks.
func TestShortLinkCreate_AdvisoryLockOnSingleConnPool(t *testing.T) {
	db, mock := setupTestDB(t)
	db.SetMaxOpenConns(1)

	mock.ExpectQuery(`SELECT EXISTS`).WithArgs("abc123").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery(`SELECT pg_try_advisory_lock`).
		WillReturnRows(sqlmock.NewRows([]string{"pg_try_advisory_lock"}).AddRow(true))
	mock.ExpectQuery(`SELECT EXISTS`).WithArgs("abc123").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec(`INSERT INTO short_links`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`SELECT pg_advisory_unlock`).WillReturnResult(sqlmock.NewResult(0, 1))

	redirects := &memRedirects{}
	svc := shortlink.NewService(NewShortLinkRepo(db), db, redirects,
		shortlink.Config{CDNDomain: "go.example.net"},
		shortlink.WithLocks(distlock.NewFactory(nil, db, time.Minute)))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	view, err := svc.Create(ctx, shortlink.CreateInput{TargetURL: "https://example.com/x", CustomShortCode: "abc123"})
	require.NoError(t, err)
	assert.Equal(t, "abc123", view.ShortCode)
	assert.Equal(t, "https://example.com/x", redirects.targets["abc123"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRouterEnsure_AdvisoryLockOnSingleConnPool(t *testing.T) {
	db, mock := setupTestDB(t)
	db.SetMaxOpenConns(1)

	mock.ExpectQuery(`SELECT pg_try_advisory_lock`).
		WillReturnRows(sqlmock.NewRows([]string{"pg_try_advisory_lock"}).AddRow(true))
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS "sendgrid_events_open"`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`CREATE INDEX IF NOT EXISTS`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`SELECT pg_advisory_unlock`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO "sendgrid_events_open"`).WillReturnResult(sqlmock.NewResult(1, 1))

	router := eventstore.NewRouter(eventstore.MustDefaultRegistry(), NewEventBackend(db),
		distlock.NewFactory(nil, db, time.Minute))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := router.Write(ctx, domain.Event{Type: domain.EventOpen, Timestamp: 1700000000})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
