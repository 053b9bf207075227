package shortlink

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ignite/mailevents/internal/domain"
	"github.com/ignite/mailevents/internal/metrics"
	"github.com/ignite/mailevents/internal/pkg/apperr"
	"github.com/ignite/mailevents/internal/pkg/distlock"
	"github.com/ignite/mailevents/internal/pkg/logger"
)

// Config holds short-link settings.
type Config struct {
	CDNDomain   string // public host serving redirect objects
	CodeLength  int
	MaxAttempts int
}

// CreateInput is the request to create a short link.
type CreateInput struct {
	TargetURL       string
	CustomShortCode string
	Title           string
	Description     string
}

// LinkView is a short link plus its public URL.
type LinkView struct {
	domain.ShortLink
	ShortLinkURL string `json:"shortLinkURL"`
}

// Health reports database reachability for monitoring.
type Health struct {
	Status    string         `json:"status"` // healthy or degraded
	Timestamp time.Time      `json:"timestamp"`
	Database  DatabaseHealth `json:"database"`
}

// DatabaseHealth is the database part of Health.
type DatabaseHealth struct {
	Connected   bool   `json:"connected"`
	Operational bool   `json:"operational"`
	Error       string `json:"error,omitempty"`
}

// Option customises a Service.
type Option func(*Service)

// WithInvalidator enables CDN invalidation after updates and deletes.
func WithInvalidator(inv Invalidator) Option { return func(s *Service) { s.invalidator = inv } }

// WithLocks serialises writes to the same short code across instances.
func WithLocks(f distlock.Factory) Option { return func(s *Service) { s.locks = f } }

// WithMetrics records operation outcomes.
func WithMetrics(m *metrics.Metrics) Option { return func(s *Service) { s.metrics = m } }

// WithCodeGenerator replaces the random code source.
func WithCodeGenerator(g CodeGenerator) Option { return func(s *Service) { s.genCode = g } }

// Service implements the short-link lifecycle. It is safe for concurrent use.
type Service struct {
	repo        Repository
	db          Pinger
	redirects   RedirectStore
	invalidator Invalidator
	locks       distlock.Factory
	metrics     *metrics.Metrics
	cfg         Config
	genCode     CodeGenerator
	now         func() time.Time
}

// NewService creates a short-link service.
func NewService(repo Repository, db Pinger, redirects RedirectStore, cfg Config, opts ...Option) *Service {
	if cfg.CodeLength <= 0 {
		cfg.CodeLength = 6
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 10
	}
	s := &Service{
		repo:      repo,
		db:        db,
		redirects: redirects,
		cfg:       cfg,
		genCode:   RandomCode,
		now:       time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = metrics.NewNop()
	}
	return s
}

// URLFor returns the public redirect URL of a short code.
func (s *Service) URLFor(code string) string {
	return "https://" + s.cfg.CDNDomain + "/" + domain.RedirectObjectKey(code)
}

// Create writes the redirect object and then the row. If the row cannot be
// written the object is deleted again before the error is returned.
func (s *Service) Create(ctx context.Context, in CreateInput) (view *LinkView, err error) {
	defer func() { s.observe("create", err) }()

	if err := s.requireDB(ctx); err != nil {
		return nil, err
	}
	target, err := validTarget(in.TargetURL)
	if err != nil {
		return nil, err
	}

	code, err := s.pickCode(ctx, strings.TrimSpace(in.CustomShortCode))
	if err != nil {
		return nil, err
	}

	link := &domain.ShortLink{
		ShortCode:   code,
		TargetURL:   target,
		Title:       in.Title,
		Description: in.Description,
		CreatedAt:   s.now().UTC(),
	}
	link.UpdatedAt = link.CreatedAt

	err = s.withCodeLock(ctx, code, func(ctx context.Context) error {
		// Re-check under the lock; another writer may have claimed the code.
		taken, err := s.repo.Exists(ctx, code)
		if err != nil {
			return s.dbError(err, "failed to check short code")
		}
		if taken {
			return ErrCodeTaken
		}

		if err := s.redirects.Put(ctx, code, target); err != nil {
			return apperr.Wrap(apperr.KindUpstreamWrite, err, "failed to upload redirect object")
		}

		if err := s.repo.Insert(ctx, link); err != nil {
			s.compensateCreate(ctx, code, err)
			if errors.Is(err, ErrCodeTaken) {
				return err
			}
			return s.dbError(err, "failed to save link to database")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info("short link created", "short_code", code)
	return &LinkView{ShortLink: *link, ShortLinkURL: s.URLFor(code)}, nil
}

// List returns every link, newest first.
func (s *Service) List(ctx context.Context) ([]LinkView, error) {
	if err := s.requireDB(ctx); err != nil {
		return nil, err
	}
	links, err := s.repo.ListNewestFirst(ctx)
	if err != nil {
		return nil, s.dbError(err, "failed to list short links")
	}
	out := make([]LinkView, 0, len(links))
	for _, l := range links {
		out = append(out, LinkView{ShortLink: l, ShortLinkURL: s.URLFor(l.ShortCode)})
	}
	return out, nil
}

// Update points an existing code at a new target. The redirect object is
// rewritten first; a failed row update afterwards leaves the stores diverged
// and is reported, not compensated.
func (s *Service) Update(ctx context.Context, code, newTarget string) (view *LinkView, err error) {
	defer func() { s.observe("update", err) }()

	if err := s.requireDB(ctx); err != nil {
		return nil, err
	}
	if _, err := s.repo.Get(ctx, code); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, s.dbError(err, "failed to look up short link")
	}
	target, err := validTarget(newTarget)
	if err != nil {
		return nil, err
	}

	var updated *domain.ShortLink
	err = s.withCodeLock(ctx, code, func(ctx context.Context) error {
		if err := s.redirects.Put(ctx, code, target); err != nil {
			return apperr.Wrap(apperr.KindUpstreamWrite, err, "failed to update redirect object")
		}
		l, err := s.repo.UpdateTarget(ctx, code, target, s.now().UTC())
		if err != nil {
			logger.Error("redirect object updated but database row was not",
				"short_code", code, "error", err)
			if errors.Is(err, ErrNotFound) {
				return ErrNotFound
			}
			return s.dbError(err, "failed to update link in database")
		}
		updated = l
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, code)
	logger.Info("short link updated", "short_code", code)
	return &LinkView{ShortLink: *updated, ShortLinkURL: s.URLFor(code)}, nil
}

// Delete removes the row and then the redirect object. A failed object
// delete is logged and does not fail the call.
func (s *Service) Delete(ctx context.Context, code string) (err error) {
	defer func() { s.observe("delete", err) }()

	if err := s.requireDB(ctx); err != nil {
		return err
	}
	if _, err := s.repo.Get(ctx, code); err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return s.dbError(err, "failed to look up short link")
	}

	err = s.withCodeLock(ctx, code, func(ctx context.Context) error {
		if err := s.repo.Delete(ctx, code); err != nil {
			if errors.Is(err, ErrNotFound) {
				return ErrNotFound
			}
			return s.dbError(err, "failed to delete link from database")
		}
		if err := s.redirects.Delete(ctx, code); err != nil {
			logger.Warn("redirect object delete failed after row delete",
				"short_code", code, "error", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.invalidate(ctx, code)
	logger.Info("short link deleted", "short_code", code)
	return nil
}

// Health pings the database and runs a live query. Object storage is not
// checked.
func (s *Service) Health(ctx context.Context) Health {
	h := Health{Status: "degraded", Timestamp: s.now().UTC()}
	if err := s.db.PingContext(ctx); err != nil {
		h.Database.Error = err.Error()
		return h
	}
	h.Database.Connected = true
	if err := s.repo.Probe(ctx); err != nil {
		h.Database.Error = err.Error()
		return h
	}
	h.Database.Operational = true
	h.Status = "healthy"
	return h
}

func (s *Service) requireDB(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrDBUnavailable, err)
	}
	return nil
}

func (s *Service) pickCode(ctx context.Context, custom string) (string, error) {
	if custom != "" {
		if !domain.ValidShortCode(custom) {
			return "", ErrInvalidShortCode
		}
		taken, err := s.repo.Exists(ctx, custom)
		if err != nil {
			return "", s.dbError(err, "failed to check short code")
		}
		if taken {
			return "", ErrCodeTaken
		}
		return custom, nil
	}

	for attempt := 0; attempt < s.cfg.MaxAttempts; attempt++ {
		code, err := s.genCode(s.cfg.CodeLength)
		if err != nil {
			return "", fmt.Errorf("generate short code: %w", err)
		}
		taken, err := s.repo.Exists(ctx, code)
		if err != nil {
			return "", s.dbError(err, "failed to check short code")
		}
		if !taken {
			return code, nil
		}
	}
	return "", ErrCodesExhausted
}

// compensateCreate deletes the redirect object written for a row that could
// not be inserted. It runs once; failure is logged only.
func (s *Service) compensateCreate(ctx context.Context, code string, cause error) {
	logger.Warn("short link row insert failed, removing redirect object",
		"short_code", code, "error", cause)

	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := s.redirects.Delete(cctx, code); err != nil {
		s.metrics.Compensations.WithLabelValues(metrics.OutcomeFailed).Inc()
		logger.Error("compensating redirect object delete failed, object orphaned",
			"short_code", code, "key", domain.RedirectObjectKey(code), "error", err)
		return
	}
	s.metrics.Compensations.WithLabelValues(metrics.OutcomeOK).Inc()
}

func (s *Service) invalidate(ctx context.Context, code string) {
	if s.invalidator == nil {
		return
	}
	if err := s.invalidator.InvalidateRedirect(ctx, code); err != nil {
		logger.Warn("CDN invalidation failed", "short_code", code, "error", err)
	}
}

func (s *Service) withCodeLock(ctx context.Context, code string, fn func(context.Context) error) error {
	if s.locks == nil {
		return fn(ctx)
	}
	return distlock.Run(ctx, s.locks("shortlink:"+code), 25*time.Millisecond, fn)
}

// dbError classifies a repository failure as unavailable or internal.
func (s *Service) dbError(err error, msg string) error {
	if apperr.IsConnectionFailure(err) {
		return fmt.Errorf("%w: %v", ErrDBUnavailable, err)
	}
	return apperr.Wrap(apperr.KindInternal, err, "%s", msg)
}

func (s *Service) observe(op string, err error) {
	outcome := metrics.OutcomeOK
	if err != nil {
		outcome = metrics.OutcomeFailed
	}
	s.metrics.ShortLinkOps.WithLabelValues(op, outcome).Inc()
}

func validTarget(raw string) (string, error) {
	target := strings.TrimSpace(raw)
	if target == "" {
		return "", ErrTargetRequired
	}
	if !domain.ValidTargetURL(target) {
		return "", ErrInvalidTarget
	}
	return target, nil
}
