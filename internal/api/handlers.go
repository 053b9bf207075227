package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/mailevents/internal/domain"
	"github.com/ignite/mailevents/internal/pkg/apperr"
	"github.com/ignite/mailevents/internal/pkg/httputil"
	"github.com/ignite/mailevents/internal/service/ingest"
	"github.com/ignite/mailevents/internal/service/shortlink"
)

// Ingester processes webhook event batches.
type Ingester interface {
	Ingest(ctx context.Context, events []domain.Event) ingest.Result
}

// Reporter answers report queries.
type Reporter interface {
	EventsByTypeAndRange(ctx context.Context, eventType, startDate, endDate string) ([]domain.StoredEvent, error)
	Aggregates(ctx context.Context, generation string) ([]domain.DomainAggregate, error)
	DeleteAggregate(ctx context.Context, generation, domainName string) error
	SpamReports(ctx context.Context) ([]domain.SpamComplaint, error)
	ClearSpamReports(ctx context.Context) (int64, error)
	Domains(ctx context.Context) ([]domain.KnownDomain, error)
}

// ShortLinker manages short links.
type ShortLinker interface {
	Create(ctx context.Context, in shortlink.CreateInput) (*shortlink.LinkView, error)
	List(ctx context.Context) ([]shortlink.LinkView, error)
	Update(ctx context.Context, code, newTarget string) (*shortlink.LinkView, error)
	Delete(ctx context.Context, code string) error
	Health(ctx context.Context) shortlink.Health
}

// Handlers contains the HTTP handlers for the API.
type Handlers struct {
	ingest  Ingester
	reports Reporter
	links   ShortLinker
	maxBody int64
}

// NewHandlers creates the API handlers. maxBody caps webhook request bodies.
func NewHandlers(ing Ingester, reports Reporter, links ShortLinker, maxBody int64) *Handlers {
	if maxBody <= 0 {
		maxBody = 10 << 20
	}
	return &Handlers{ingest: ing, reports: reports, links: links, maxBody: maxBody}
}

// IngestEvents accepts a single SendGrid event or an array of them. A fully
// processed batch answers with the bare success envelope; per-event results
// are only returned when something failed.
//
//	POST /sendgrid-event
func (h *Handlers) IngestEvents(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBody))
	if err != nil {
		httputil.Fail(w, apperr.Wrap(apperr.KindValidation, err, "failed to read request body"))
		return
	}
	events, err := domain.ParseEvents(body)
	if err != nil {
		httputil.Fail(w, apperr.Wrap(apperr.KindValidation, err, "Invalid JSON payload"))
		return
	}

	res := h.ingest.Ingest(r.Context(), events)
	if err := res.Err(); err != nil {
		httputil.FailWith(w, err, res)
		return
	}
	httputil.OK(w, "Events processed", nil)
}

// GetEvents returns stored events of one type within a date range.
//
//	GET /events?eventType=open&startDate=2024-01-01&endDate=2024-01-31
func (h *Handlers) GetEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	events, err := h.reports.EventsByTypeAndRange(r.Context(),
		q.Get("eventType"), q.Get("startDate"), q.Get("endDate"))
	if err != nil {
		httputil.Fail(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, events)
}

// GetAggregates returns the domain aggregates of one report generation.
//
//	GET /sg-reports/{number}
func (h *Handlers) GetAggregates(w http.ResponseWriter, r *http.Request) {
	aggs, err := h.reports.Aggregates(r.Context(), chi.URLParam(r, "number"))
	if err != nil {
		httputil.Fail(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, aggs)
}

// DeleteAggregate removes one domain from a report generation.
//
//	DELETE /sg-reports/{number}?domain=example.com
func (h *Handlers) DeleteAggregate(w http.ResponseWriter, r *http.Request) {
	domainName := r.URL.Query().Get("domain")
	if err := h.reports.DeleteAggregate(r.Context(), chi.URLParam(r, "number"), domainName); err != nil {
		httputil.Fail(w, err)
		return
	}
	httputil.OK(w, "Domain report deleted", map[string]string{"domain": domainName})
}

// GetSpamReports lists spam complaints, newest first.
//
//	GET /spam-reports
func (h *Handlers) GetSpamReports(w http.ResponseWriter, r *http.Request) {
	reports, err := h.reports.SpamReports(r.Context())
	if err != nil {
		httputil.Fail(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, reports)
}

// ClearSpamReports deletes every spam complaint.
//
//	DELETE /spam-reports
func (h *Handlers) ClearSpamReports(w http.ResponseWriter, r *http.Request) {
	n, err := h.reports.ClearSpamReports(r.Context())
	if err != nil {
		httputil.Fail(w, err)
		return
	}
	httputil.OK(w, "Spam reports cleared", map[string]int64{"deleted": n})
}

// GetDomains lists every sending domain seen in ingested events.
//
//	GET /domains
func (h *Handlers) GetDomains(w http.ResponseWriter, r *http.Request) {
	domains, err := h.reports.Domains(r.Context())
	if err != nil {
		httputil.Fail(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, domains)
}

type createShortLinkRequest struct {
	TargetURL       string `json:"targetURL"`
	CustomShortCode string `json:"customShortCode"`
	Title           string `json:"title"`
	Description     string `json:"description"`
}

type updateShortLinkRequest struct {
	NewTargetURL string `json:"newTargetURL"`
}

// CreateShortLink creates a short link.
//
//	POST /api/shortlinks
func (h *Handlers) CreateShortLink(w http.ResponseWriter, r *http.Request) {
	var req createShortLinkRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	view, err := h.links.Create(r.Context(), shortlink.CreateInput{
		TargetURL:       req.TargetURL,
		CustomShortCode: strings.TrimSpace(req.CustomShortCode),
		Title:           req.Title,
		Description:     req.Description,
	})
	if err != nil {
		httputil.Fail(w, err)
		return
	}
	httputil.Created(w, "Short link created successfully", view)
}

// ListShortLinks lists all short links, newest first.
//
//	GET /api/shortlinks
func (h *Handlers) ListShortLinks(w http.ResponseWriter, r *http.Request) {
	views, err := h.links.List(r.Context())
	if err != nil {
		httputil.Fail(w, err)
		return
	}
	httputil.OK(w, "Short links retrieved successfully", map[string]interface{}{
		"shortLinks": views,
		"count":      len(views),
	})
}

// UpdateShortLink changes the target of an existing short link.
//
//	PUT /api/shortlinks/{shortCode}
func (h *Handlers) UpdateShortLink(w http.ResponseWriter, r *http.Request) {
	var req updateShortLinkRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	view, err := h.links.Update(r.Context(), chi.URLParam(r, "shortCode"), req.NewTargetURL)
	if err != nil {
		httputil.Fail(w, err)
		return
	}
	httputil.OK(w, "Short link updated successfully", view)
}

// DeleteShortLink removes a short link.
//
//	DELETE /api/shortlinks/{shortCode}
func (h *Handlers) DeleteShortLink(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "shortCode")
	if err := h.links.Delete(r.Context(), code); err != nil {
		httputil.Fail(w, err)
		return
	}
	httputil.OK(w, "Short link deleted successfully", map[string]string{"deletedShortCode": code})
}

// ShortLinkHealth reports database health for the short-link service.
//
//	GET /api/shortlinks/health
func (h *Handlers) ShortLinkHealth(w http.ResponseWriter, r *http.Request) {
	health := h.links.Health(r.Context())
	status := http.StatusOK
	if health.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}
	respondJSON(w, status, map[string]interface{}{
		"status":    health.Status,
		"timestamp": health.Timestamp,
		"services":  map[string]interface{}{"database": health.Database},
	})
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
