package domain

import (
	"strings"
	"time"
)

// Graph query defaults.
const (
	DefaultGraphLimit        = 200
	DefaultSubgraphDepth     = 2
	MinGraphConnections      = 100
	ConnectionsPerNodeFactor = 4
)

// GraphQuery filters a page of graph nodes. All fields are optional.
type GraphQuery struct {
	Limit        int
	Offset       int
	EntityTypes  []EntityType
	SearchQuery  string
	CenterEntity string

	// Depth bounds the hop distance from CenterEntity (default 2).
	Depth int

	// MaxConnections caps relationship retrieval; derived from node count when 0.
	MaxConnections int

	// Identifiers switches to coordination mode: nodes whose name matches
	// SearchQuery or whose identifier is listed, plus one hop of neighbours.
	Identifiers []string
}

// WithDefaults fills unset paging fields.
func (q GraphQuery) WithDefaults() GraphQuery {
	if q.Limit <= 0 {
		q.Limit = DefaultGraphLimit
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	if q.CenterEntity != "" && q.Depth <= 0 {
		q.Depth = DefaultSubgraphDepth
	}
	return q
}

// ConnectionLimit returns MaxConnections, or max(4 x nodes, 100) when unset.
func (q GraphQuery) ConnectionLimit(nodes int) int {
	if q.MaxConnections > 0 {
		return q.MaxConnections
	}
	return max(ConnectionsPerNodeFactor*nodes, MinGraphConnections)
}

// VectorQuery is a nearest-neighbour search over one named vector field.
type VectorQuery struct {
	Text       string
	Collection string
	VectorName string
	Dimension  int
	Limit      int

	// Embedding configures query text embedding for the RPC path.
	Embedding EmbeddingSettings
}

// HasText reports whether the query carries non-blank text.
func (q VectorQuery) HasText() bool {
	return strings.TrimSpace(q.Text) != ""
}

// AuditQuery selects recent audit-log rows.
// It is also the audit proxy's request body.
type AuditQuery struct {
	Action    string    `json:"action"`
	Content   string    `json:"content,omitempty"`
	Limit     int       `json:"limit"`
	StartDate time.Time `json:"startDate"`
}

// Audit actions understood by the audit proxy.
const (
	AuditActionQuery  = "query"
	AuditActionRecord = "record"
)

// LoadSource selects which backend load-by-source reads from.
type LoadSource string

// Load sources.
const (
	LoadSourceAuto   LoadSource = "auto"
	LoadSourceGraph  LoadSource = "graph"
	LoadSourceVector LoadSource = "vector"
	LoadSourceAudit  LoadSource = "audit"
)

// IsValid returns true if the load source is recognised.
func (s LoadSource) IsValid() bool {
	switch s {
	case LoadSourceAuto, LoadSourceGraph, LoadSourceVector, LoadSourceAudit:
		return true
	default:
		return false
	}
}

// LoadOptions tunes load-by-source.
type LoadOptions struct {
	Limit       int
	Query       string
	EntityTypes []EntityType
	ViewType    string
}

// ShardedSearchOptions tunes sharded topic search.
type ShardedSearchOptions struct {
	UseVector   bool
	UseAudit    bool
	VectorLimit int
	AuditLimit  int
	MaxNodes    int
	ViewType    string

	// WideningFloor overrides the fallback widening threshold when > 0.
	WideningFloor int
}

// DefaultShardedSearchOptions enables both shards with conventional limits.
func DefaultShardedSearchOptions() ShardedSearchOptions {
	return ShardedSearchOptions{
		UseVector:   true,
		UseAudit:    true,
		VectorLimit: 20,
		AuditLimit:  50,
		MaxNodes:    DefaultGraphLimit,
		ViewType:    "topic",
	}
}
