package aggregate

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ignite/mailevents/internal/classify"
	"github.com/ignite/mailevents/internal/domain"
)

// Service implements aggregate counter logic. It is safe for concurrent use.
type Service struct {
	repo       Repository
	generation int
	now        func() time.Time
	seen       sync.Map // domain -> struct{}, domains already touched by this process
}

// NewService creates an aggregate service writing to the given generation.
func NewService(repo Repository, generation int) *Service {
	return &Service{repo: repo, generation: generation, now: time.Now}
}

// Generation returns the report generation ingestion writes to.
func (s *Service) Generation() int { return s.generation }

// EnsureGeneration registers the ingestion generation so reads against it
// succeed before the first event arrives.
func (s *Service) EnsureGeneration(ctx context.Context) error {
	if s.generation < domain.MinReportGeneration {
		return ErrInvalidGeneration
	}
	if err := s.repo.RegisterGeneration(ctx, s.generation); err != nil {
		return fmt.Errorf("register generation %d: %w", s.generation, err)
	}
	return nil
}

// RecordDelivered adds one delivered event for domainName.
func (s *Service) RecordDelivered(ctx context.Context, domainName string) error {
	if err := s.repo.IncrementDelivered(ctx, s.generation, domainName, s.now().UTC()); err != nil {
		return fmt.Errorf("record delivered for %s: %w", domainName, err)
	}
	return nil
}

// RecordBlocked adds one blocked bounce for domainName, bucketed by the
// recipient's mailbox provider.
func (s *Service) RecordBlocked(ctx context.Context, domainName, recipientEmail string) error {
	host := classify.ClassifyHost(recipientEmail)
	if err := s.repo.IncrementBlocked(ctx, s.generation, domainName, host, s.now().UTC()); err != nil {
		return fmt.Errorf("record blocked for %s: %w", domainName, err)
	}
	return nil
}

// ListByGeneration returns every aggregate in generation n.
func (s *Service) ListByGeneration(ctx context.Context, n int) ([]domain.DomainAggregate, error) {
	if err := s.requireGeneration(ctx, n); err != nil {
		return nil, err
	}
	aggs, err := s.repo.ListByGeneration(ctx, n)
	if err != nil {
		return nil, fmt.Errorf("list generation %d: %w", n, err)
	}
	for i := range aggs {
		aggs[i].NormalizeHosts()
	}
	return aggs, nil
}

// DeleteByDomain removes one domain's aggregate from generation n.
func (s *Service) DeleteByDomain(ctx context.Context, n int, domainName string) error {
	domainName = strings.TrimSpace(domainName)
	if domainName == "" {
		return ErrDomainRequired
	}
	if err := s.requireGeneration(ctx, n); err != nil {
		return err
	}
	return s.repo.DeleteDomain(ctx, n, domainName)
}

// TouchDomain records domainName in the known-domain list. Each domain is
// written at most once per process; the sentinel is never recorded.
func (s *Service) TouchDomain(ctx context.Context, domainName string) error {
	if domainName == "" || domainName == classify.NotFound {
		return nil
	}
	if _, loaded := s.seen.LoadOrStore(domainName, struct{}{}); loaded {
		return nil
	}
	if err := s.repo.TouchDomain(ctx, domainName, s.now().UTC()); err != nil {
		s.seen.Delete(domainName)
		return fmt.Errorf("touch domain %s: %w", domainName, err)
	}
	return nil
}

// ListDomains returns every known sending domain.
func (s *Service) ListDomains(ctx context.Context) ([]domain.KnownDomain, error) {
	return s.repo.ListDomains(ctx)
}

func (s *Service) requireGeneration(ctx context.Context, n int) error {
	if n < domain.MinReportGeneration {
		return ErrInvalidGeneration
	}
	ok, err := s.repo.GenerationExists(ctx, n)
	if err != nil {
		return fmt.Errorf("check generation %d: %w", n, err)
	}
	if !ok {
		return ErrGenerationNotFound
	}
	return nil
}
