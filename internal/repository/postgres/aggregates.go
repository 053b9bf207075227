package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ignite/mailevents/internal/domain"
	"github.com/ignite/mailevents/internal/service/aggregate"
)

// hostColumns maps each host category to its counter column.
var hostColumns = map[domain.HostCategory]string{
	domain.HostGmail:   "blocked_gmail",
	domain.HostOutlook: "blocked_outlook",
	domain.HostYahoo:   "blocked_yahoo",
	domain.HostHotmail: "blocked_hotmail",
	domain.HostICloud:  "blocked_icloud",
	domain.HostOther:   "blocked_other",
}

// AggregateRepo implements aggregate.Repository against PostgreSQL. Counters
// are bumped with INSERT ... ON CONFLICT so concurrent writers never lose an
// increment.
type AggregateRepo struct{ db *sql.DB }

// NewAggregateRepo creates a Postgres-backed aggregate repository.
func NewAggregateRepo(db *sql.DB) *AggregateRepo { return &AggregateRepo{db: db} }

var _ aggregate.Repository = (*AggregateRepo)(nil)

func (r *AggregateRepo) IncrementDelivered(ctx context.Context, generation int, domainName string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO domain_aggregates (generation, domain, delivered_count, last_updated)
		VALUES ($1, $2, 1, $3)
		ON CONFLICT (generation, domain) DO UPDATE
		SET delivered_count = domain_aggregates.delivered_count + 1,
		    last_updated = EXCLUDED.last_updated
	`, generation, domainName, at)
	if err != nil {
		return fmt.Errorf("increment delivered: %w", err)
	}
	return nil
}

func (r *AggregateRepo) IncrementBlocked(ctx context.Context, generation int, domainName string, host domain.HostCategory, at time.Time) error {
	col, ok := hostColumns[host]
	if !ok {
		col = hostColumns[domain.HostOther]
	}
	_, err := r.db.ExecContext(ctx, fmt.Sprintf(`
		INSERT INTO domain_aggregates (generation, domain, blocked_count, %[1]s, last_updated)
		VALUES ($1, $2, 1, 1, $3)
		ON CONFLICT (generation, domain) DO UPDATE
		SET blocked_count = domain_aggregates.blocked_count + 1,
		    %[1]s = domain_aggregates.%[1]s + 1,
		    last_updated = EXCLUDED.last_updated
	`, col), generation, domainName, at)
	if err != nil {
		return fmt.Errorf("increment blocked: %w", err)
	}
	return nil
}

func (r *AggregateRepo) RegisterGeneration(ctx context.Context, generation int) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO report_generations (generation, created_at)
		VALUES ($1, NOW())
		ON CONFLICT (generation) DO NOTHING
	`, generation)
	if err != nil {
		return fmt.Errorf("register generation: %w", err)
	}
	return nil
}

func (r *AggregateRepo) GenerationExists(ctx context.Context, generation int) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM report_generations WHERE generation = $1)`,
		generation,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check generation: %w", err)
	}
	return exists, nil
}

func (r *AggregateRepo) ListByGeneration(ctx context.Context, generation int) ([]domain.DomainAggregate, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT domain, delivered_count, blocked_count,
		       blocked_gmail, blocked_outlook, blocked_yahoo,
		       blocked_hotmail, blocked_icloud, blocked_other, last_updated
		FROM domain_aggregates
		WHERE generation = $1
		ORDER BY domain
	`, generation)
	if err != nil {
		return nil, fmt.Errorf("list aggregates: %w", err)
	}
	defer rows.Close()

	out := []domain.DomainAggregate{}
	for rows.Next() {
		a := domain.DomainAggregate{Generation: generation}
		var gmail, outlook, yahoo, hotmail, icloud, other int64
		if err := rows.Scan(&a.Domain, &a.DeliveredCount, &a.BlockedCount,
			&gmail, &outlook, &yahoo, &hotmail, &icloud, &other, &a.LastUpdated); err != nil {
			return nil, fmt.Errorf("scan aggregate: %w", err)
		}
		a.BlockedByHost = map[domain.HostCategory]int64{
			domain.HostGmail:   gmail,
			domain.HostOutlook: outlook,
			domain.HostYahoo:   yahoo,
			domain.HostHotmail: hotmail,
			domain.HostICloud:  icloud,
			domain.HostOther:   other,
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *AggregateRepo) DeleteDomain(ctx context.Context, generation int, domainName string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM domain_aggregates WHERE generation = $1 AND domain = $2`,
		generation, domainName,
	)
	if err != nil {
		return fmt.Errorf("delete aggregate: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return aggregate.ErrDomainNotFound
	}
	return nil
}

func (r *AggregateRepo) TouchDomain(ctx context.Context, domainName string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO known_domains (domain, first_seen)
		VALUES ($1, $2)
		ON CONFLICT (domain) DO NOTHING
	`, domainName, at)
	if err != nil {
		return fmt.Errorf("touch domain: %w", err)
	}
	return nil
}

func (r *AggregateRepo) ListDomains(ctx context.Context) ([]domain.KnownDomain, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT domain, first_seen FROM known_domains ORDER BY domain`,
	)
	if err != nil {
		return nil, fmt.Errorf("list domains: %w", err)
	}
	defer rows.Close()

	out := []domain.KnownDomain{}
	for rows.Next() {
		var d domain.KnownDomain
		if err := rows.Scan(&d.Domain, &d.FirstSeen); err != nil {
			return nil, fmt.Errorf("scan domain: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
