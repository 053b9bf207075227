package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/ignite/mailevents/internal/domain"
	"github.com/ignite/mailevents/internal/service/shortlink"
)

const uniqueViolation = "23505"

// ShortLinkRepo implements shortlink.Repository against PostgreSQL.
type ShortLinkRepo struct{ db *sql.DB }

// NewShortLinkRepo creates a Postgres-backed short-link repository.
func NewShortLinkRepo(db *sql.DB) *ShortLinkRepo { return &ShortLinkRepo{db: db} }

var _ shortlink.Repository = (*ShortLinkRepo)(nil)

const shortLinkColumns = `id, short_code, target_url, COALESCE(title,''), COALESCE(description,''),
		       click_count, created_at, updated_at`

func (r *ShortLinkRepo) Exists(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := dbFor(ctx, r.db).QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM short_links WHERE short_code = $1)`, code,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check short code: %w", err)
	}
	return exists, nil
}

func (r *ShortLinkRepo) Get(ctx context.Context, code string) (*domain.ShortLink, error) {
	row := dbFor(ctx, r.db).QueryRowContext(ctx, `
		SELECT `+shortLinkColumns+`
		FROM short_links
		WHERE short_code = $1
	`, code)
	l, err := scanShortLink(row)
	if err == sql.ErrNoRows {
		return nil, shortlink.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get short link: %w", err)
	}
	return l, nil
}

func (r *ShortLinkRepo) Insert(ctx context.Context, l *domain.ShortLink) error {
	if l.ID == "" {
		l.ID = uuid.New().String()
	}
	_, err := dbFor(ctx, r.db).ExecContext(ctx, `
		INSERT INTO short_links
			(id, short_code, target_url, title, description, click_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, l.ID, l.ShortCode, l.TargetURL, l.Title, l.Description, l.ClickCount, l.CreatedAt, l.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return shortlink.ErrCodeTaken
		}
		return fmt.Errorf("insert short link: %w", err)
	}
	return nil
}

func (r *ShortLinkRepo) UpdateTarget(ctx context.Context, code, target string, at time.Time) (*domain.ShortLink, error) {
	row := dbFor(ctx, r.db).QueryRowContext(ctx, `
		UPDATE short_links SET target_url = $2, updated_at = $3
		WHERE short_code = $1
		RETURNING `+shortLinkColumns,
		code, target, at)
	l, err := scanShortLink(row)
	if err == sql.ErrNoRows {
		return nil, shortlink.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update short link: %w", err)
	}
	return l, nil
}

func (r *ShortLinkRepo) Delete(ctx context.Context, code string) error {
	res, err := dbFor(ctx, r.db).ExecContext(ctx, `DELETE FROM short_links WHERE short_code = $1`, code)
	if err != nil {
		return fmt.Errorf("delete short link: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return shortlink.ErrNotFound
	}
	return nil
}

func (r *ShortLinkRepo) ListNewestFirst(ctx context.Context) ([]domain.ShortLink, error) {
	rows, err := dbFor(ctx, r.db).QueryContext(ctx, `
		SELECT `+shortLinkColumns+`
		FROM short_links
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list short links: %w", err)
	}
	defer rows.Close()

	out := []domain.ShortLink{}
	for rows.Next() {
		l, err := scanShortLink(rows)
		if err != nil {
			return nil, fmt.Errorf("scan short link: %w", err)
		}
		out = append(out, *l)
	}
	return out, rows.Err()
}

func (r *ShortLinkRepo) Probe(ctx context.Context) error {
	var n int
	if err := dbFor(ctx, r.db).QueryRowContext(ctx, `SELECT COUNT(*) FROM short_links`).Scan(&n); err != nil {
		return fmt.Errorf("probe short links: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanShortLink(row rowScanner) (*domain.ShortLink, error) {
	l := &domain.ShortLink{}
	err := row.Scan(&l.ID, &l.ShortCode, &l.TargetURL, &l.Title, &l.Description,
		&l.ClickCount, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return l, nil
}
