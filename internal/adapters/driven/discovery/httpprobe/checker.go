// Package httpprobe implements driven.HealthChecker with rate-limited HTTP GETs.
package httpprobe

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/graphloom/internal/core/domain"
	"github.com/custodia-labs/graphloom/internal/core/ports/driven"
)

// Ensure Checker implements the interface.
var _ driven.HealthChecker = (*Checker)(nil)

// Defaults for probing.
const (
	DefaultHealthPath        = "/health"
	DefaultRequestsPerSecond = 10.0
	DefaultBurstSize         = 4
	defaultRetryAfter        = 5 * time.Second
)

// Config tunes the checker.
type Config struct {
	// HealthPath is appended to each base URL (default "/health").
	HealthPath string

	// RequestsPerSecond is the sustained probe rate.
	RequestsPerSecond float64

	// BurstSize is the maximum probe burst.
	BurstSize int

	// Client overrides the HTTP client.
	Client *http.Client
}

// Checker probes gateway health endpoints. Probes share one token bucket,
// and a 429 from any gateway pauses all probes for its Retry-After.
type Checker struct {
	client  *http.Client
	path    string
	limiter *rate.Limiter

	mu      sync.Mutex
	retryAt time.Time
}

// NewChecker creates a checker, filling unset config with defaults.
func NewChecker(cfg Config) *Checker {
	if cfg.HealthPath == "" {
		cfg.HealthPath = DefaultHealthPath
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = DefaultRequestsPerSecond
	}
	if cfg.BurstSize <= 0 {
		cfg.BurstSize = DefaultBurstSize
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{}
	}
	return &Checker{
		client:  cfg.Client,
		path:    cfg.HealthPath,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.BurstSize),
	}
}

// Check issues GET <baseURL><path> and succeeds on any 2xx.
// The caller bounds the probe with ctx.
func (c *Checker) Check(ctx context.Context, baseURL string) error {
	if err := c.wait(ctx); err != nil {
		return domain.ClassifyError(domain.BackendGateway, "health", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+c.path, nil)
	if err != nil {
		return domain.NewBackendError(domain.ErrConnection, domain.BackendGateway, "health", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return domain.ClassifyError(domain.BackendGateway, "health", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode == http.StatusTooManyRequests {
		c.backoff(resp.Header.Get("Retry-After"))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return domain.NewBackendError(domain.ErrUnavailable, domain.BackendGateway, "health",
			fmt.Errorf("status %d", resp.StatusCode)).WithCode(strconv.Itoa(resp.StatusCode))
	}
	return nil
}

// wait blocks for any backoff period, then for the token bucket.
func (c *Checker) wait(ctx context.Context) error {
	c.mu.Lock()
	retryAt := c.retryAt
	c.mu.Unlock()

	if time.Now().Before(retryAt) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Until(retryAt)):
		}
	}
	return c.limiter.Wait(ctx)
}

func (c *Checker) backoff(retryAfter string) {
	delay := defaultRetryAfter
	if secs, err := strconv.Atoi(retryAfter); err == nil && secs > 0 {
		delay = time.Duration(secs) * time.Second
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.retryAt = time.Now().Add(delay)
}
