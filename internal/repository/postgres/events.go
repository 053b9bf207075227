package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/ignite/mailevents/internal/domain"
	"github.com/ignite/mailevents/internal/eventstore"
)

// EventBackend implements eventstore.Backend with one table per store.
type EventBackend struct{ db *sql.DB }

// NewEventBackend creates a Postgres-backed event store backend.
func NewEventBackend(db *sql.DB) *EventBackend { return &EventBackend{db: db} }

var _ eventstore.Backend = (*EventBackend)(nil)

func (b *EventBackend) EnsureTable(ctx context.Context, s eventstore.Store) error {
	table := pq.QuoteIdentifier(s.Table)
	ddl := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id              BIGSERIAL PRIMARY KEY,
			event_type      TEXT NOT NULL,
			event_subtype   TEXT NOT NULL DEFAULT '',
			domain          TEXT NOT NULL DEFAULT '',
			email           TEXT NOT NULL DEFAULT '',
			smtp_id         TEXT NOT NULL DEFAULT '',
			sg_event_id     TEXT NOT NULL DEFAULT '',
			sg_message_id   TEXT NOT NULL DEFAULT '',
			event_timestamp BIGINT NOT NULL,
			payload         JSONB NOT NULL,
			received_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`, table)
	if _, err := dbFor(ctx, b.db).ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create %s: %w", s.Table, err)
	}

	idxCols := "event_timestamp"
	if s.Generic {
		idxCols = "event_type, event_timestamp"
	}
	idx := fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (%s)`,
		pq.QuoteIdentifier("idx_"+s.Table+"_ts"), table, idxCols)
	if _, err := dbFor(ctx, b.db).ExecContext(ctx, idx); err != nil {
		return fmt.Errorf("index %s: %w", s.Table, err)
	}
	return nil
}

func (b *EventBackend) TableExists(ctx context.Context, s eventstore.Store) (bool, error) {
	var exists bool
	err := dbFor(ctx, b.db).QueryRowContext(ctx,
		`SELECT to_regclass($1) IS NOT NULL`, "public."+s.Table,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check table %s: %w", s.Table, err)
	}
	return exists, nil
}

func (b *EventBackend) Insert(ctx context.Context, s eventstore.Store, ev domain.Event) error {
	payload, err := ev.Payload()
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	_, err = dbFor(ctx, b.db).ExecContext(ctx, fmt.Sprintf(`
		INSERT INTO %s
			(event_type, event_subtype, domain, email, smtp_id,
			 sg_event_id, sg_message_id, event_timestamp, payload)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, pq.QuoteIdentifier(s.Table)),
		ev.Type, ev.Subtype, ev.Domain, ev.Email, ev.SMTPID,
		ev.SGEventID, ev.SGMessageID, ev.Timestamp, []byte(payload))
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

func (b *EventBackend) Range(ctx context.Context, s eventstore.Store, eventType string, from, to int64) ([]domain.StoredEvent, error) {
	q := fmt.Sprintf(`
		SELECT id, event_type, event_subtype, domain, email,
		       event_timestamp, payload, received_at
		FROM %s
		WHERE event_timestamp >= $1 AND event_timestamp <= $2`, pq.QuoteIdentifier(s.Table))
	args := []interface{}{from, to}
	if s.Generic {
		q += ` AND event_type = $3`
		args = append(args, eventType)
	}
	q += ` ORDER BY event_timestamp, id`

	rows, err := dbFor(ctx, b.db).QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("range events: %w", err)
	}
	defer rows.Close()

	out := []domain.StoredEvent{}
	for rows.Next() {
		var e domain.StoredEvent
		var payload []byte
		if err := rows.Scan(&e.ID, &e.Type, &e.Subtype, &e.Domain, &e.Email,
			&e.Timestamp, &payload, &e.ReceivedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.Payload = payload
		out = append(out, e)
	}
	return out, rows.Err()
}
