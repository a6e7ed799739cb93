// Package health probes the service's dependencies.
package health

import (
	"context"
	"fmt"
	"time"

	"github.com/josh-vincent/roast-me-characters-sub001/cache"
	"github.com/josh-vincent/roast-me-characters-sub001/database"
	"github.com/josh-vincent/roast-me-characters-sub001/storage"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"

	DefaultTimeout = 3 * time.Second
)

// Check is one dependency probe. Only required checks can make the service
// unhealthy.
type Check struct {
	Name     string
	Required bool
	Run      func(ctx context.Context) error
}

type Result struct {
	Status    string `json:"status"`
	Required  bool   `json:"required"`
	LatencyMS int64  `json:"latency_ms"`
	Error     string `json:"error,omitempty"`
}

type Report struct {
	Status      string            `json:"status"`
	Timestamp   time.Time         `json:"timestamp"`
	Uptime      string            `json:"uptime"`
	Environment string            `json:"environment"`
	Checks      map[string]Result `json:"checks"`
}

// Healthy reports whether every required check passed.
func (r Report) Healthy() bool {
	return r.Status != StatusUnhealthy
}

type Checker struct {
	environment string
	timeout     time.Duration
	started     time.Time
	checks      []Check
	now         func() time.Time
}

func NewChecker(environment string, timeout time.Duration, checks ...Check) *Checker {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Checker{
		environment: environment,
		timeout:     timeout,
		started:     time.Now(),
		checks:      checks,
		now:         time.Now,
	}
}

// Run executes all checks concurrently, each under its own timeout.
func (c *Checker) Run(ctx context.Context) Report {
	results := make([]Result, len(c.checks))

	g, gctx := errgroup.WithContext(ctx)
	for i, check := range c.checks {
		g.Go(func() error {
			results[i] = c.run(gctx, check)
			return nil
		})
	}
	_ = g.Wait()

	report := Report{
		Status:      StatusHealthy,
		Timestamp:   c.now().UTC(),
		Uptime:      c.now().Sub(c.started).Round(time.Second).String(),
		Environment: c.environment,
		Checks:      make(map[string]Result, len(results)),
	}
	for i, result := range results {
		report.Checks[c.checks[i].Name] = result
		if result.Status == StatusHealthy {
			continue
		}
		if result.Required {
			report.Status = StatusUnhealthy
		} else if report.Status == StatusHealthy {
			report.Status = StatusDegraded
		}
	}
	return report
}

func (c *Checker) run(ctx context.Context, check Check) (result Result) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	result = Result{Status: StatusHealthy, Required: check.Required}
	defer func() {
		if r := recover(); r != nil {
			result.Status = StatusUnhealthy
			result.Error = fmt.Sprint(r)
		}
		result.LatencyMS = time.Since(start).Milliseconds()
	}()

	if err := check.Run(ctx); err != nil {
		result.Status = StatusUnhealthy
		result.Error = err.Error()
	}
	return result
}

func DatabaseCheck(db *gorm.DB) Check {
	return Check{
		Name:     "database",
		Required: true,
		Run: func(ctx context.Context) error {
			return database.Ping(ctx, db)
		},
	}
}

// StorageCheck lists buckets to prove the object store credentials work.
func StorageCheck(store storage.Storage) Check {
	return Check{
		Name:     "storage",
		Required: true,
		Run: func(ctx context.Context) error {
			_, err := store.ListBuckets(ctx)
			return err
		},
	}
}

func CacheCheck(store cache.Store) Check {
	return Check{
		Name: "cache",
		Run:  store.Ping,
	}
}
