package services

import (
	"context"
	"time"

	"github.com/custodia-labs/graphloom/internal/core/domain"
	"github.com/custodia-labs/graphloom/internal/core/ports/driven"
	"github.com/custodia-labs/graphloom/internal/core/ports/driving"
	"github.com/custodia-labs/graphloom/internal/logger"
)

// Ensure Discovery implements the interface.
var _ driving.DiscoveryService = (*Discovery)(nil)

// DefaultHealthTimeout bounds each gateway health probe.
const DefaultHealthTimeout = 2 * time.Second

// DefaultLocalGateways are the conventional local gateway addresses probed last.
func DefaultLocalGateways() []string {
	return []string{
		"http://localhost:8080",
		"http://127.0.0.1:8080",
		"http://localhost:3000",
	}
}

// Discovery probes candidate aggregation-gateway URLs in order.
type Discovery struct {
	checker   driven.HealthChecker
	telemetry driven.Telemetry
	timeout   time.Duration
	locals    []string
}

// NewDiscovery creates a discovery service.
// checker and telemetry may be nil; with no checker nothing is ever found.
func NewDiscovery(checker driven.HealthChecker, telemetry driven.Telemetry) *Discovery {
	return &Discovery{
		checker:   checker,
		telemetry: telemetry,
		timeout:   DefaultHealthTimeout,
		locals:    DefaultLocalGateways(),
	}
}

// Candidates returns the configured gateway, the environment default,
// then the local conventions, sanitized and de-duplicated.
func (d *Discovery) Candidates(snap domain.SettingsSnapshot) []string {
	ordered := append([]string{snap.GatewayBaseURL, snap.Env[EnvGatewayURL]}, d.locals...)

	seen := make(map[string]bool, len(ordered))
	out := make([]string, 0, len(ordered))
	for _, raw := range ordered {
		u := SanitizeURL(raw)
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true
		out = append(out, u)
	}
	return out
}

// Discover returns the first candidate that passes its health check.
// It never fails; ok is false when every candidate is unreachable.
func (d *Discovery) Discover(ctx context.Context, snap domain.SettingsSnapshot) (string, bool) {
	candidates := d.Candidates(snap)
	logger.Debug("Discovery: probing %d candidates", len(candidates))

	if d.checker == nil {
		d.emit(domain.LevelWarn, "no health checker configured", nil)
		return "", false
	}

	for _, candidate := range candidates {
		if ctx.Err() != nil {
			break
		}

		probeCtx, cancel := context.WithTimeout(ctx, d.timeout)
		err := d.checker.Check(probeCtx, candidate)
		cancel()

		if err == nil {
			logger.Info("Discovery: gateway %s is reachable", candidate)
			d.emit(domain.LevelInfo, "gateway reachable", map[string]any{"endpoint": candidate})
			return candidate, true
		}
		logger.Debug("Discovery: %s unreachable: %v", candidate, err)
		d.emit(domain.LevelDebug, "gateway candidate unreachable", map[string]any{
			"endpoint": candidate,
			"error":    err.Error(),
		})
	}

	d.emit(domain.LevelWarn, "no gateway found", map[string]any{
		"kind":       domain.ErrUnavailable.Error(),
		"candidates": candidates,
	})
	return "", false
}

func (d *Discovery) emit(level domain.Level, msg string, detail map[string]any) {
	if d.telemetry != nil {
		d.telemetry.Emit(domain.NewEvent(level, "discovery", msg, detail))
	}
}
