package driving

import (
	"context"

	"github.com/custodia-labs/graphloom/internal/core/domain"
)

// SettingsService manages connection settings.
type SettingsService interface {
	// Snapshot reads the current settings.
	Snapshot(ctx context.Context) (domain.SettingsSnapshot, error)

	// Resolved returns the sanitized endpoint for every backend.
	Resolved(ctx context.Context) (map[domain.Backend]domain.EndpointConfig, error)

	// Set validates and persists one setting from its string form.
	Set(key, value string) error

	// Override sets a value for this process only; nothing is persisted.
	Override(key, value string) error

	// Keys lists the settable keys in display order.
	Keys() []string

	// IsSecret reports whether a key holds a credential.
	IsSecret(key string) bool

	// ValidateEmbeddingConfig pings the configured embedding provider.
	ValidateEmbeddingConfig(ctx context.Context) error
}
