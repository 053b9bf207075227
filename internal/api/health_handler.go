package api

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

// HealthStatus is the body of GET /health.
type HealthStatus struct {
	Status  string                    `json:"status"` // "healthy", "degraded", "unhealthy"
	Version string                    `json:"version"`
	Uptime  string                    `json:"uptime"`
	Checks  map[string]ComponentCheck `json:"checks"`
}

// ComponentCheck is the result of one dependency check.
type ComponentCheck struct {
	Status  string `json:"status"` // "up", "down", "degraded"
	Latency string `json:"latency,omitempty"`
	Message string `json:"message,omitempty"`
}

// BucketPinger checks that the redirect bucket is reachable.
type BucketPinger interface {
	Ping(ctx context.Context) error
}

// StoreLister reports which event stores exist.
type StoreLister interface {
	ReadyStores(ctx context.Context) (ready, total int, err error)
}

const (
	healthVersion = "1.0.0"
	notConfigured = "not configured"
)

// depCheck is one named dependency check. A nil run means the dependency is
// not configured.
type depCheck struct {
	name    string
	timeout time.Duration
	slow    time.Duration // latency above which an "up" result is degraded; 0 disables
	onFail  string        // status reported when run fails
	run     func(ctx context.Context) (string, error)
}

// HealthChecker reports on the database, Redis, the redirect bucket and the
// event stores. Any dependency may be nil.
type HealthChecker struct {
	checks    []depCheck
	startTime time.Time
}

// NewHealthChecker creates a HealthChecker.
func NewHealthChecker(db *sql.DB, redisClient *redis.Client, bucket BucketPinger, stores StoreLister) *HealthChecker {
	hc := &HealthChecker{startTime: time.Now()}

	dbCheck := depCheck{name: "database", timeout: 3 * time.Second, slow: time.Second, onFail: "down"}
	if db != nil {
		dbCheck.run = func(ctx context.Context) (string, error) {
			return "connected", db.PingContext(ctx)
		}
	}
	redisCheck := depCheck{name: "redis", timeout: 2 * time.Second, slow: 500 * time.Millisecond, onFail: "down"}
	if redisClient != nil {
		redisCheck.run = func(ctx context.Context) (string, error) {
			return "connected", redisClient.Ping(ctx).Err()
		}
	}
	s3Check := depCheck{name: "s3", timeout: 3 * time.Second, onFail: "down"}
	if bucket != nil {
		s3Check.run = func(ctx context.Context) (string, error) {
			return "bucket accessible", bucket.Ping(ctx)
		}
	}
	// Missing tables are normal before the first event of a type, so only a
	// failed lookup counts against health.
	storeCheck := depCheck{name: "event_stores", timeout: 3 * time.Second, onFail: "degraded"}
	if stores != nil {
		storeCheck.run = func(ctx context.Context) (string, error) {
			ready, total, err := stores.ReadyStores(ctx)
			return fmt.Sprintf("%d of %d event stores created", ready, total), err
		}
	}

	hc.checks = []depCheck{dbCheck, redisCheck, s3Check, storeCheck}
	return hc
}

// HandleHealth always answers 200; the body carries the status. Callers that
// need a 503 use /health/ready.
//
//	GET /health
func (hc *HealthChecker) HandleHealth(w http.ResponseWriter, r *http.Request) {
	checks := hc.runAllChecks(r.Context())
	respondJSON(w, http.StatusOK, HealthStatus{
		Status:  determineOverallStatus(checks),
		Version: healthVersion,
		Uptime:  hc.uptime(),
		Checks:  checks,
	})
}

// HandleLiveness answers 200 while the process is up.
//
//	GET /health/live
func (hc *HealthChecker) HandleLiveness(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status": "alive",
		"uptime": hc.uptime(),
	})
}

// HandleReadiness answers 503 when the database is down.
//
//	GET /health/ready
func (hc *HealthChecker) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	checks := hc.runAllChecks(r.Context())
	overall := determineOverallStatus(checks)

	ready := overall != "unhealthy"
	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}
	respondJSON(w, status, map[string]interface{}{
		"ready":  ready,
		"status": overall,
		"checks": checks,
	})
}

func (hc *HealthChecker) uptime() string {
	return time.Since(hc.startTime).Round(time.Second).String()
}

func (hc *HealthChecker) runAllChecks(ctx context.Context) map[string]ComponentCheck {
	var (
		mu     sync.Mutex
		checks = make(map[string]ComponentCheck, len(hc.checks))
		g      errgroup.Group
	)
	for _, p := range hc.checks {
		g.Go(func() error {
			c := p.check(ctx)
			mu.Lock()
			checks[p.name] = c
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return checks
}

func (p depCheck) check(ctx context.Context) ComponentCheck {
	if p.run == nil {
		return ComponentCheck{Status: "down", Message: notConfigured}
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	msg, err := p.run(ctx)
	latency := time.Since(start)

	switch {
	case err != nil:
		return ComponentCheck{Status: p.onFail, Latency: latency.String(), Message: fmt.Sprintf("check failed: %v", err)}
	case p.slow > 0 && latency > p.slow:
		return ComponentCheck{Status: "degraded", Latency: latency.String(), Message: fmt.Sprintf("slow response (%s)", latency)}
	}
	return ComponentCheck{Status: "up", Latency: latency.String(), Message: msg}
}

// determineOverallStatus is "unhealthy" when a configured database is down,
// "degraded" when any other configured check is not up, else "healthy".
func determineOverallStatus(checks map[string]ComponentCheck) string {
	if db, ok := checks["database"]; ok && db.Status == "down" && db.Message != notConfigured {
		return "unhealthy"
	}
	for _, c := range checks {
		if c.Status == "degraded" || (c.Status == "down" && c.Message != notConfigured) {
			return "degraded"
		}
	}
	return "healthy"
}
