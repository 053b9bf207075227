package worker

import (
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/ignite/mailevents/internal/domain"
	"github.com/ignite/mailevents/internal/pkg/apperr"
	"github.com/ignite/mailevents/internal/pkg/httputil"
	"github.com/ignite/mailevents/internal/pkg/logger"
)

// WebhookReceiver archives raw SendGrid webhook batches verbatim. It runs
// alongside the ingestion pipeline and never touches aggregates or stores.
type WebhookReceiver struct {
	db         *sql.DB
	insertStmt *sql.Stmt
	maxBody    int64

	eventsReceived atomic.Int64
	errors         atomic.Int64
}

// NewWebhookReceiver prepares the archive insert statement.
func NewWebhookReceiver(ctx context.Context, db *sql.DB, maxBody int64) (*WebhookReceiver, error) {
	stmt, err := db.PrepareContext(ctx, `
		INSERT INTO sendgrid_webhook_archive
		(event_type, sg_event_id, sg_message_id, payload, event_timestamp)
		VALUES ($1, $2, $3, $4, $5)
	`)
	if err != nil {
		return nil, err
	}
	if maxBody <= 0 {
		maxBody = 10 << 20
	}
	return &WebhookReceiver{db: db, insertStmt: stmt, maxBody: maxBody}, nil
}

// HandleSendGridWebhook stores every record of a JSON array body. Records
// that fail to insert are counted and logged; the batch still returns 200 so
// SendGrid does not redeliver records that were stored.
func (w *WebhookReceiver) HandleSendGridWebhook(rw http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(rw, r.Body, w.maxBody))
	if err != nil {
		httputil.BadRequest(rw, "Failed to read body")
		return
	}

	var records []json.RawMessage
	if err := json.Unmarshal(body, &records); err != nil {
		httputil.BadRequest(rw, "Expected an array of event logs")
		return
	}

	var stored, failed int
	for _, raw := range records {
		var ev domain.Event
		if err := json.Unmarshal(raw, &ev); err != nil {
			w.errors.Add(1)
			failed++
			continue
		}

		_, err := w.insertStmt.ExecContext(r.Context(),
			ev.Type, ev.SGEventID, ev.SGMessageID, []byte(raw), time.Unix(ev.Timestamp, 0).UTC())
		if err != nil {
			w.errors.Add(1)
			failed++
			logger.Error("webhook archive insert failed", "event_type", ev.Type, "error", err)
			continue
		}
		w.eventsReceived.Add(1)
		stored++
	}

	if failed > 0 && stored == 0 && len(records) > 0 {
		httputil.Fail(rw, apperr.New(apperr.KindInternal, "failed to archive %d event logs", failed))
		return
	}
	httputil.OK(rw, "Event logs archived", map[string]int{"stored": stored, "failed": failed})
}

// Stats returns current statistics.
func (w *WebhookReceiver) Stats() map[string]int64 {
	return map[string]int64{
		"events_received": w.eventsReceived.Load(),
		"errors":          w.errors.Load(),
	}
}

// Close closes prepared statements.
func (w *WebhookReceiver) Close() error {
	return w.insertStmt.Close()
}
