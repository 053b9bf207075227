// Package report serves read and maintenance queries over the event stores,
// aggregates, spam ledger and known domains.
package report

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/ignite/mailevents/internal/domain"
	"github.com/ignite/mailevents/internal/pkg/apperr"
)

const dateLayout = "2006-01-02"

// EventQuerier reads events from the store for a type.
type EventQuerier interface {
	Query(ctx context.Context, eventType string, from, to time.Time) ([]domain.StoredEvent, error)
}

// AggregateReader reads and prunes domain aggregates.
type AggregateReader interface {
	ListByGeneration(ctx context.Context, n int) ([]domain.DomainAggregate, error)
	DeleteByDomain(ctx context.Context, n int, domainName string) error
	ListDomains(ctx context.Context) ([]domain.KnownDomain, error)
}

// SpamLedger lists and clears spam complaints.
type SpamLedger interface {
	ListAll(ctx context.Context) ([]domain.SpamComplaint, error)
	ClearAll(ctx context.Context) (int64, error)
}

// Service implements the report queries.
type Service struct {
	events     EventQuerier
	aggregates AggregateReader
	spam       SpamLedger
}

// NewService creates a report service.
func NewService(events EventQuerier, aggregates AggregateReader, spam SpamLedger) *Service {
	return &Service{events: events, aggregates: aggregates, spam: spam}
}

// EventsByTypeAndRange returns events of eventType whose timestamp falls in
// [startDate 00:00:00, endDate 23:59:59.999999999] UTC, oldest first.
func (s *Service) EventsByTypeAndRange(ctx context.Context, eventType, startDate, endDate string) ([]domain.StoredEvent, error) {
	eventType = strings.TrimSpace(eventType)
	if eventType == "" || strings.TrimSpace(startDate) == "" || strings.TrimSpace(endDate) == "" {
		return nil, apperr.New(apperr.KindValidation, "eventType, startDate and endDate are required")
	}

	from, err := parseDate(startDate)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindValidation, err, "invalid startDate %q", startDate)
	}
	to, err := parseDate(endDate)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindValidation, err, "invalid endDate %q", endDate)
	}
	to = EndOfDay(to)
	if from.After(to) {
		return nil, apperr.New(apperr.KindValidation, "startDate must not be after endDate")
	}

	events, err := s.events.Query(ctx, eventType, from, to)
	if err != nil {
		return nil, err
	}
	if events == nil {
		events = []domain.StoredEvent{}
	}
	return events, nil
}

// Aggregates returns every domain aggregate of report generation raw.
func (s *Service) Aggregates(ctx context.Context, raw string) ([]domain.DomainAggregate, error) {
	n, err := ParseGeneration(raw)
	if err != nil {
		return nil, err
	}
	return s.aggregates.ListByGeneration(ctx, n)
}

// DeleteAggregate removes domainName from report generation raw.
func (s *Service) DeleteAggregate(ctx context.Context, raw, domainName string) error {
	n, err := ParseGeneration(raw)
	if err != nil {
		return err
	}
	return s.aggregates.DeleteByDomain(ctx, n, domainName)
}

// SpamReports lists spam complaints newest first.
func (s *Service) SpamReports(ctx context.Context) ([]domain.SpamComplaint, error) {
	return s.spam.ListAll(ctx)
}

// ClearSpamReports empties the spam ledger.
func (s *Service) ClearSpamReports(ctx context.Context) (int64, error) {
	return s.spam.ClearAll(ctx)
}

// Domains lists every sending domain seen in ingested events.
func (s *Service) Domains(ctx context.Context) ([]domain.KnownDomain, error) {
	out, err := s.aggregates.ListDomains(ctx)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []domain.KnownDomain{}
	}
	return out, nil
}

// ParseGeneration reads a report generation number, which must be >= 2.
func ParseGeneration(raw string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < domain.MinReportGeneration {
		return 0, apperr.New(apperr.KindValidation,
			"report generation must be an integer >= %d, got %q", domain.MinReportGeneration, raw)
	}
	return n, nil
}

// EndOfDay returns the last representable instant of t's UTC calendar day.
func EndOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 23, 59, 59, int(time.Second-time.Nanosecond), time.UTC)
}

func parseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(dateLayout, raw); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
