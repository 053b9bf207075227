package aggregate

import (
	"context"
	"time"

	"github.com/ignite/mailevents/internal/domain"
)

// Repository persists domain aggregates. Increment methods must be atomic
// find-or-create-and-add operations in the store itself.
type Repository interface {
	IncrementDelivered(ctx context.Context, generation int, domainName string, at time.Time) error
	IncrementBlocked(ctx context.Context, generation int, domainName string, host domain.HostCategory, at time.Time) error

	RegisterGeneration(ctx context.Context, generation int) error
	GenerationExists(ctx context.Context, generation int) (bool, error)
	ListByGeneration(ctx context.Context, generation int) ([]domain.DomainAggregate, error)
	// DeleteDomain returns ErrDomainNotFound when no row matched.
	DeleteDomain(ctx context.Context, generation int, domainName string) error

	TouchDomain(ctx context.Context, domainName string, at time.Time) error
	ListDomains(ctx context.Context) ([]domain.KnownDomain, error)
}
