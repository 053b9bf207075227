package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ignite/mailevents/internal/classify"
	"github.com/ignite/mailevents/internal/domain"
	"github.com/ignite/mailevents/internal/eventstore"
	"github.com/ignite/mailevents/internal/metrics"
	"github.com/ignite/mailevents/internal/pkg/apperr"
	"github.com/ignite/mailevents/internal/pkg/logger"
)

// SpamRecorder appends spam complaints.
type SpamRecorder interface {
	Record(ctx context.Context, email, domainName string) error
}

// AggregateRecorder bumps per-domain counters.
type AggregateRecorder interface {
	RecordDelivered(ctx context.Context, domainName string) error
	RecordBlocked(ctx context.Context, domainName, recipientEmail string) error
	TouchDomain(ctx context.Context, domainName string) error
}

// EventWriter persists an event into the store its type resolves to.
type EventWriter interface {
	Write(ctx context.Context, ev domain.Event) (eventstore.Store, error)
}

// EventFailure describes one event that could not be processed.
type EventFailure struct {
	Index   int    `json:"index"`
	Type    string `json:"event"`
	Message string `json:"error"`
	Err     error  `json:"-"`
}

// Result summarizes a batch after every event has settled.
type Result struct {
	Total      int            `json:"total"`
	Succeeded  int            `json:"succeeded"`
	Failed     int            `json:"failed"`
	Skipped    int            `json:"skipped"`
	Duplicates int            `json:"duplicates"`
	Failures   []EventFailure `json:"failures,omitempty"`
}

// Err returns a *PartialBatchError when any event failed.
func (r Result) Err() error {
	if r.Failed == 0 {
		return nil
	}
	return &PartialBatchError{Result: r}
}

// PartialBatchError reports the failed events of a batch. It matches
// apperr.PartialBatch, or apperr.Internal kind when nothing succeeded.
type PartialBatchError struct {
	Result Result
}

func (e *PartialBatchError) Error() string {
	msg := fmt.Sprintf("%d of %d events failed", e.Result.Failed, e.Result.Total)
	if len(e.Result.Failures) > 0 {
		msg += ": " + e.Result.Failures[0].Message
	}
	return msg
}

// AllFailed reports whether no event in the batch was processed.
func (e *PartialBatchError) AllFailed() bool {
	return e.Result.Failed == e.Result.Total
}

func (e *PartialBatchError) Unwrap() []error {
	kind := apperr.KindPartialBatch
	if e.AllFailed() {
		kind = apperr.KindInternal
	}
	errs := []error{&apperr.Error{Kind: kind, Message: fmt.Sprintf("%d of %d events failed", e.Result.Failed, e.Result.Total)}}
	for _, f := range e.Result.Failures {
		errs = append(errs, f.Err)
	}
	return errs
}

type outcome int

const (
	outcomeOK outcome = iota
	outcomeSkipped
	outcomeDuplicate
	outcomeFailed
)

// Service is the ingestion orchestrator. It is safe for concurrent use.
type Service struct {
	spam       SpamRecorder
	aggregates AggregateRecorder
	events     EventWriter
	dedupe     Deduper
	metrics    *metrics.Metrics
	limit      int
}

// Option configures a Service.
type Option func(*Service)

// WithDeduper drops events whose sg_event_id was already processed.
func WithDeduper(d Deduper) Option { return func(s *Service) { s.dedupe = d } }

// WithMetrics records per-event outcomes.
func WithMetrics(m *metrics.Metrics) Option { return func(s *Service) { s.metrics = m } }

// WithMaxConcurrency bounds how many events of one batch run at once.
// Zero or less means unbounded.
func WithMaxConcurrency(n int) Option { return func(s *Service) { s.limit = n } }

// NewService creates an ingestion orchestrator.
func NewService(spam SpamRecorder, aggregates AggregateRecorder, events EventWriter, opts ...Option) *Service {
	s := &Service{spam: spam, aggregates: aggregates, events: events}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = metrics.NewNop()
	}
	return s
}

// Ingest processes every event concurrently and returns once all settle.
// Processing is detached from ctx cancellation so a disconnecting client
// does not abort events already in flight.
func (s *Service) Ingest(ctx context.Context, events []domain.Event) Result {
	start := time.Now()
	ctx = context.WithoutCancel(ctx)

	outcomes := make([]outcome, len(events))
	errs := make([]error, len(events))

	var g errgroup.Group
	if s.limit > 0 {
		g.SetLimit(s.limit)
	}
	for i := range events {
		g.Go(func() error {
			outcomes[i], errs[i] = s.processSafe(ctx, events[i])
			return nil
		})
	}
	_ = g.Wait()

	res := Result{Total: len(events)}
	for i, o := range outcomes {
		label := metrics.OutcomeOK
		switch o {
		case outcomeOK:
			res.Succeeded++
		case outcomeSkipped:
			res.Skipped++
			label = metrics.OutcomeSkipped
		case outcomeDuplicate:
			res.Duplicates++
			label = metrics.OutcomeDuplicate
		case outcomeFailed:
			res.Failed++
			label = metrics.OutcomeFailed
			res.Failures = append(res.Failures, EventFailure{
				Index:   i,
				Type:    events[i].Type,
				Message: errs[i].Error(),
				Err:     errs[i],
			})
			logger.Error("event ingestion failed",
				"index", i, "event_type", events[i].Type, "error", errs[i])
		}
		s.metrics.EventsProcessed.WithLabelValues(eventLabel(events[i]), label).Inc()
	}

	s.metrics.BatchSize.Observe(float64(len(events)))
	s.metrics.BatchDuration.Observe(time.Since(start).Seconds())
	return res
}

// processSafe runs process and turns a panic into a per-event failure.
func (s *Service) processSafe(ctx context.Context, ev domain.Event) (o outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			o, err = outcomeFailed, fmt.Errorf("panic processing %s event: %v", ev.Type, r)
		}
	}()

	if ev.DecodeErr != nil {
		return outcomeFailed, fmt.Errorf("decode event: %w", ev.DecodeErr)
	}

	var counted bool
	if s.dedupe != nil && ev.SGEventID != "" {
		claimed, derr := s.dedupe.Claim(ctx, ev.SGEventID)
		switch {
		case derr != nil:
			logger.Warn("dedupe claim failed, processing anyway", "sg_event_id", ev.SGEventID, "error", derr)
		case !claimed:
			return outcomeDuplicate, nil
		}
		// A retry after a counter was bumped would count it twice, so the
		// claim is kept once any counter write has landed.
		defer func() {
			if err == nil || counted {
				return
			}
			if rerr := s.dedupe.Release(ctx, ev.SGEventID); rerr != nil {
				logger.Warn("dedupe release failed", "sg_event_id", ev.SGEventID, "error", rerr)
			}
		}()
	}

	o, counted, err = s.process(ctx, ev)
	if err != nil {
		if counted {
			logger.Warn("event counted but not fully stored; retries will be dropped",
				"sg_event_id", ev.SGEventID, "event_type", ev.Type, "error", err)
		}
		return outcomeFailed, err
	}
	return o, nil
}

// process dispatches one event. counted reports whether an aggregate counter
// was incremented, even when a later step failed.
func (s *Service) process(ctx context.Context, ev domain.Event) (o outcome, counted bool, err error) {
	if ev.Type == domain.EventSpamReport {
		if ev.Email == "" {
			return outcomeSkipped, false, nil
		}
		d := classify.ExtractDomain(ev.SMTPID)
		if d == classify.NotFound {
			d = ""
		}
		return outcomeOK, false, s.spam.Record(ctx, ev.Email, d)
	}

	ev.Domain = classify.ExtractDomain(ev.SMTPID)
	if ev.Domain == classify.NotFound {
		logger.Debug("no domain in message id", "event_type", ev.Type, "smtp_id", ev.SMTPID)
	} else if err := s.aggregates.TouchDomain(ctx, ev.Domain); err != nil {
		logger.Warn("record known domain failed", "domain", ev.Domain, "error", err)
	}

	switch {
	case ev.Type == domain.EventDelivered:
		err := s.aggregates.RecordDelivered(ctx, ev.Domain)
		return outcomeOK, err == nil, err

	case ev.IsBlockedBounce():
		aggErr := s.aggregates.RecordBlocked(ctx, ev.Domain, ev.Email)
		_, storeErr := s.events.Write(ctx, ev)
		return outcomeOK, aggErr == nil, errors.Join(aggErr, storeErr)

	default:
		_, err := s.events.Write(ctx, ev)
		return outcomeOK, false, err
	}
}

// eventLabel bounds metric label cardinality to known tags.
func eventLabel(ev domain.Event) string {
	if ev.IsBlockedBounce() {
		return domain.EventBlocked
	}
	switch ev.Type {
	case domain.EventProcessed, domain.EventDropped, domain.EventDelivered,
		domain.EventDeferred, domain.EventBounce, domain.EventOpen, domain.EventClick,
		domain.EventSpamReport, domain.EventUnsubscribe, domain.EventGroupUnsubscribe,
		domain.EventGroupResubscribe:
		return ev.Type
	}
	return "other"
}
