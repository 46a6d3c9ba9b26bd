// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for the application to function:
//
//   - SettingsProvider: Per-operation connection settings snapshots
//   - GraphStore: Session-scoped graph queries (Neo4j)
//   - ConfigStore: Application configuration persistence
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - VectorStore: Nearest-neighbour search (Qdrant). Without it, vector loads and shards return no result.
//   - AuditStore: Audit-log queries through the HTTP proxy. Without it, audit loads and shards return no result.
//   - EmbeddingFactory: Query embeddings for the vector RPC path. Without it, vector search uses REST scroll.
//   - HealthChecker: Gateway probing. Without it, discovery finds nothing.
//   - Telemetry: Structured lifecycle events. Without it, events are dropped.
//   - MetricsRecorder: Operation timings. Without it, nothing is recorded.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter package
package driven
