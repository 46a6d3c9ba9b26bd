package mcp

import (
	"github.com/custodia-labs/graphloom/internal/core/ports/driving"
)

// Ports aggregates the driving ports the MCP server calls.
type Ports struct {
	// Loader answers every graph tool.
	Loader driving.LoaderService

	// Settings backs the settings resource. Optional.
	Settings driving.SettingsService
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p.Loader == nil {
		return ErrMissingLoaderService
	}
	return nil
}
