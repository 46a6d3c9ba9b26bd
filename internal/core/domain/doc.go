// Package domain defines the core value types for graphloom.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Entity, Relationship: the canonical knowledge-graph elements
//   - KnowledgeGraphResult: the envelope every backend is normalized into
//   - EndpointConfig, SettingsSnapshot: per-operation connection configuration
//   - RawResult: an adapter's untouched payload, tagged by backend variant
//   - Event: a telemetry record emitted at adapter lifecycle milestones
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
