package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/ignite/mailevents/internal/domain"
	"github.com/ignite/mailevents/internal/service/spamledger"
)

// SpamRepo implements spamledger.Repository against PostgreSQL.
type SpamRepo struct{ db *sql.DB }

// NewSpamRepo creates a Postgres-backed spam ledger repository.
func NewSpamRepo(db *sql.DB) *SpamRepo { return &SpamRepo{db: db} }

var _ spamledger.Repository = (*SpamRepo)(nil)

func (r *SpamRepo) Insert(ctx context.Context, c *domain.SpamComplaint) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO spam_complaints (id, email, domain, reported_at)
		VALUES ($1, $2, $3, $4)
	`, c.ID, c.Email, c.Domain, c.ReportedAt)
	if err != nil {
		return fmt.Errorf("insert spam complaint: %w", err)
	}
	return nil
}

func (r *SpamRepo) ListNewestFirst(ctx context.Context) ([]domain.SpamComplaint, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, email, domain, reported_at
		FROM spam_complaints
		ORDER BY reported_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list spam complaints: %w", err)
	}
	defer rows.Close()

	out := []domain.SpamComplaint{}
	for rows.Next() {
		var c domain.SpamComplaint
		if err := rows.Scan(&c.ID, &c.Email, &c.Domain, &c.ReportedAt); err != nil {
			return nil, fmt.Errorf("scan spam complaint: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *SpamRepo) DeleteAll(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM spam_complaints`)
	if err != nil {
		return 0, fmt.Errorf("clear spam complaints: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
