package driven

import (
	"context"

	"github.com/custodia-labs/graphloom/internal/core/domain"
)

// GraphStore executes filtered, paginated queries against the graph database.
//
// Every call opens and closes its own connection and session.
// Expected failures (connection, authentication, verification timeout,
// query errors) return a nil result and a *domain.BackendError; callers
// treat that as "no result".
type GraphStore interface {
	// Query retrieves a page of nodes and the relationships strictly between them.
	Query(ctx context.Context, cfg domain.EndpointConfig, q domain.GraphQuery) (*domain.RawResult, error)

	// Initialize prepares the graph client library. Idempotent.
	Initialize() error

	// IsReady reports whether Initialize has completed successfully.
	IsReady() bool
}

// VectorStore runs nearest-neighbour or scroll searches over one collection.
// Data in the returned result is []domain.VectorPoint.
type VectorStore interface {
	// Search tries the RPC transport first and falls back to REST scroll.
	Search(ctx context.Context, cfg domain.EndpointConfig, q domain.VectorQuery) (*domain.RawResult, error)
}

// AuditStore queries the relational audit log through its HTTP proxy.
// Data in the returned result is []map[string]any.
type AuditStore interface {
	// Query issues a single POST; it never retries.
	Query(ctx context.Context, cfg domain.EndpointConfig, q domain.AuditQuery) (*domain.RawResult, error)
}

// HealthChecker probes a gateway base URL.
type HealthChecker interface {
	// Check returns nil if the gateway answered its health endpoint with 2xx.
	Check(ctx context.Context, baseURL string) error
}

// AuditLog persists audit rows served by the audit proxy.
type AuditLog interface {
	// Append stores a row, assigning ID and CreatedAt when unset.
	Append(ctx context.Context, rec domain.AuditRecord) (domain.AuditRecord, error)

	// Recent returns rows created at or after q.StartDate, newest first,
	// optionally filtered by a case-insensitive substring of Content.
	Recent(ctx context.Context, q domain.AuditQuery) ([]domain.AuditRecord, error)

	// Close releases the database handle.
	Close() error
}
