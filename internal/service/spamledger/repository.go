package spamledger

import (
	"context"

	"github.com/ignite/mailevents/internal/domain"
)

// Repository persists spam complaints.
type Repository interface {
	Insert(ctx context.Context, c *domain.SpamComplaint) error
	// ListNewestFirst returns all complaints ordered by ReportedAt descending.
	ListNewestFirst(ctx context.Context) ([]domain.SpamComplaint, error)
	DeleteAll(ctx context.Context) (int64, error)
}
