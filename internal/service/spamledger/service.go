package spamledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ignite/mailevents/internal/domain"
)

// Service implements the spam ledger. It is safe for concurrent use.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService creates a spam ledger backed by the given repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Record appends a complaint for email. An empty address is a no-op.
func (s *Service) Record(ctx context.Context, email, domainName string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil
	}
	c := &domain.SpamComplaint{
		Email:      email,
		Domain:     domainName,
		ReportedAt: s.now().UTC(),
	}
	if err := s.repo.Insert(ctx, c); err != nil {
		return fmt.Errorf("record spam complaint: %w", err)
	}
	return nil
}

// ListAll returns every complaint, most recent first.
func (s *Service) ListAll(ctx context.Context) ([]domain.SpamComplaint, error) {
	out, err := s.repo.ListNewestFirst(ctx)
	if err != nil {
		return nil, fmt.Errorf("list spam complaints: %w", err)
	}
	if out == nil {
		out = []domain.SpamComplaint{}
	}
	return out, nil
}

// ClearAll deletes every complaint and returns how many were removed.
func (s *Service) ClearAll(ctx context.Context) (int64, error) {
	n, err := s.repo.DeleteAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("clear spam complaints: %w", err)
	}
	return n, nil
}
