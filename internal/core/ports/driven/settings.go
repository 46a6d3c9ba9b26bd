package driven

import (
	"context"

	"github.com/custodia-labs/graphloom/internal/core/domain"
)

// SettingsProvider supplies connection settings.
// Each call returns a fresh snapshot so configuration changes take effect
// on the next operation without restart. Pure read, no network I/O.
type SettingsProvider interface {
	// Snapshot reads the current settings.
	Snapshot(ctx context.Context) (domain.SettingsSnapshot, error)
}
