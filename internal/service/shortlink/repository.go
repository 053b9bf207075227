package shortlink

import (
	"context"
	"time"

	"github.com/ignite/mailevents/internal/domain"
)

// Repository persists short-link rows.
type Repository interface {
	Exists(ctx context.Context, code string) (bool, error)
	// Get returns ErrNotFound when the code has no row.
	Get(ctx context.Context, code string) (*domain.ShortLink, error)
	// Insert returns ErrCodeTaken on a unique-key violation.
	Insert(ctx context.Context, link *domain.ShortLink) error
	UpdateTarget(ctx context.Context, code, target string, at time.Time) (*domain.ShortLink, error)
	// Delete returns ErrNotFound when no row matched.
	Delete(ctx context.Context, code string) error
	ListNewestFirst(ctx context.Context) ([]domain.ShortLink, error)
	// Probe runs a trivial read against the short-link table.
	Probe(ctx context.Context) error
}

// Pinger checks database reachability. *sql.DB satisfies it.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// RedirectStore writes and removes redirect objects keyed by short code.
type RedirectStore interface {
	Put(ctx context.Context, code, target string) error
	Delete(ctx context.Context, code string) error
}

// Invalidator drops cached redirects at the CDN edge.
type Invalidator interface {
	InvalidateRedirect(ctx context.Context, code string) error
}
