package services

import (
	"net/url"
	"strings"

	"github.com/custodia-labs/graphloom/internal/core/domain"
)

// Environment variables consulted between configured values and built-in defaults.
const (
	EnvGraphURL      = "GRAPHLOOM_GRAPH_URL"
	EnvGraphUser     = "GRAPHLOOM_GRAPH_USER"
	EnvGraphPassword = "GRAPHLOOM_GRAPH_PASSWORD" //nolint:gosec // G101: env var name, not a credential.
	EnvVectorURL     = "GRAPHLOOM_VECTOR_URL"
	EnvVectorAPIKey  = "GRAPHLOOM_VECTOR_API_KEY" //nolint:gosec // G101: env var name, not a credential.
	EnvAuditURL      = "GRAPHLOOM_AUDIT_URL"
	EnvGatewayURL    = "GRAPHLOOM_GATEWAY_URL"
)

// EnvKeys lists every environment variable a snapshot should capture.
func EnvKeys() []string {
	return []string{
		EnvGraphURL, EnvGraphUser, EnvGraphPassword,
		EnvVectorURL, EnvVectorAPIKey,
		EnvAuditURL, EnvGatewayURL,
	}
}

// Built-in backend defaults.
const (
	DefaultGraphURL       = "bolt://localhost:7687"
	DefaultGraphUser      = "neo4j"
	DefaultGraphDatabase  = "neo4j"
	DefaultVectorURL      = "http://localhost:6333"
	DefaultCollection     = "knowledge_graph"
	DefaultVectorName     = "text"
	DefaultEmbeddingModel = "nomic-embed-text"
	DefaultDimension      = 768
	DefaultAuditURL       = "http://localhost:8787/api/audit"

	graphBoltPort   = "7687"
	vectorRESTPort  = "6333"
	auditGatewayAPI = "/api/audit"
)

// ResolveEndpoint turns the snapshot's settings for one backend into a
// sanitized, fully-populated EndpointConfig. It performs no I/O and
// always returns a usable config.
//
// Base URL precedence: in unified mode with a gateway, the gateway-derived
// address; otherwise the configured value, then the environment default,
// then the built-in default.
func ResolveEndpoint(backend domain.Backend, snap domain.SettingsSnapshot) domain.EndpointConfig {
	cfg := sanitizeConfig(snap.ServiceConfig(backend))
	env := func(key string) string {
		return strings.TrimSpace(snap.Env[key])
	}

	if snap.Mode == domain.ConnectionModeUnified {
		if gw := SanitizeURL(snap.GatewayBaseURL); gw != "" {
			if routed := gatewayRoute(backend, gw); routed != "" {
				cfg.BaseURL = routed
			}
		}
	}

	switch backend {
	case domain.BackendGraph:
		cfg.BaseURL = firstNonEmpty(cfg.BaseURL, SanitizeURL(env(EnvGraphURL)), DefaultGraphURL)
		cfg.Username = firstNonEmpty(cfg.Username, env(EnvGraphUser), DefaultGraphUser)
		cfg.Password = firstNonEmpty(cfg.Password, env(EnvGraphPassword))
		cfg.Database = firstNonEmpty(cfg.Database, DefaultGraphDatabase)

	case domain.BackendVector:
		cfg.BaseURL = firstNonEmpty(cfg.BaseURL, SanitizeURL(env(EnvVectorURL)), DefaultVectorURL)
		cfg.APIKey = firstNonEmpty(cfg.APIKey, env(EnvVectorAPIKey))
		cfg.Collection = firstNonEmpty(cfg.Collection, DefaultCollection)
		cfg.VectorName = firstNonEmpty(cfg.VectorName, DefaultVectorName)
		cfg.EmbeddingModel = firstNonEmpty(
			cfg.EmbeddingModel,
			strings.TrimSpace(snap.Embedding.Model),
			DefaultEmbeddingModel,
		)
		if cfg.Dimension <= 0 {
			cfg.Dimension = defaultDimension(cfg.EmbeddingModel)
		}

	case domain.BackendAudit:
		cfg.BaseURL = firstNonEmpty(cfg.BaseURL, SanitizeURL(env(EnvAuditURL)), DefaultAuditURL)
	}

	return cfg
}

// ResolveAll resolves every backend.
func ResolveAll(snap domain.SettingsSnapshot) map[domain.Backend]domain.EndpointConfig {
	out := make(map[domain.Backend]domain.EndpointConfig, 3)
	for _, b := range domain.Backends() {
		out[b] = ResolveEndpoint(b, snap)
	}
	return out
}

// SanitizeURL trims whitespace and strips trailing slashes.
func SanitizeURL(raw string) string {
	return strings.TrimRight(strings.TrimSpace(raw), "/")
}

func sanitizeConfig(cfg domain.EndpointConfig) domain.EndpointConfig {
	cfg.BaseURL = SanitizeURL(cfg.BaseURL)
	cfg.Username = strings.TrimSpace(cfg.Username)
	cfg.Password = strings.TrimSpace(cfg.Password)
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.Model = strings.TrimSpace(cfg.Model)
	cfg.Database = strings.TrimSpace(cfg.Database)
	cfg.Collection = strings.TrimSpace(cfg.Collection)
	cfg.VectorName = strings.TrimSpace(cfg.VectorName)
	cfg.EmbeddingModel = strings.TrimSpace(cfg.EmbeddingModel)
	return cfg
}

// gatewayRoute derives a backend address from the gateway.
// HTTP backends are reached beneath the gateway; the graph and vector
// protocols run on their conventional ports on the gateway host.
func gatewayRoute(backend domain.Backend, gateway string) string {
	if backend == domain.BackendAudit {
		return gateway + auditGatewayAPI
	}

	u, err := url.Parse(gateway)
	if err != nil || u.Hostname() == "" {
		return ""
	}

	switch backend {
	case domain.BackendGraph:
		return "bolt://" + u.Hostname() + ":" + graphBoltPort
	case domain.BackendVector:
		scheme := u.Scheme
		if scheme == "" {
			scheme = "http"
		}
		return scheme + "://" + u.Hostname() + ":" + vectorRESTPort
	default:
		return ""
	}
}

func defaultDimension(model string) int {
	if dims, ok := domain.EmbeddingDimensions()[model]; ok {
		return dims
	}
	return DefaultDimension
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
