// Package mcp exposes the graph loader as a Model Context Protocol server,
// so AI assistants can query the knowledge graph as tools.
package mcp

import "errors"

// ErrMissingLoaderService is returned when the loader service is not provided.
var ErrMissingLoaderService = errors.New("mcp: loader service is required")
