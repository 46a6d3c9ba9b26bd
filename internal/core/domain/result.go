package domain

// Metadata keys set on every normalized result.
const (
	MetaSource            = "source"
	MetaTimestamp         = "timestamp"
	MetaConnectionMode    = "connectionMode"
	MetaEndpoint          = "endpoint"
	MetaEntityCount       = "entityCount"
	MetaRelationshipCount = "relationshipCount"
)

// Optional diagnostic metadata keys.
const (
	MetaViewType          = "viewType"
	MetaQuery             = "query"
	MetaTransport         = "transport"
	MetaInsecureTransport = "insecureTransport"
	MetaVectorName        = "vectorName"
	MetaVectorDimension   = "vectorDimension"
	MetaVectorHits        = "vectorHits"
	MetaAuditHits         = "auditHits"
	MetaFallback          = "fallback"
)

// SourceShardedSearch is the metadata source for coordinated topic search results.
const SourceShardedSearch = "sharded_search"

// Metadata is an open key/value map attached to a result.
type Metadata map[string]any

// Clone returns a shallow copy of m. A nil map clones to an empty one.
func (m Metadata) Clone() Metadata {
	out := make(Metadata, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// String returns the value at key if it is a string.
func (m Metadata) String(key string) string {
	s, _ := m[key].(string)
	return s
}

// KnowledgeGraphResult is the canonical envelope all backends normalize into.
// A nil *KnowledgeGraphResult is the "no result" sentinel.
type KnowledgeGraphResult struct {
	Entities      []Entity       `json:"entities"`
	Relationships []Relationship `json:"relationships"`
	Metadata      Metadata       `json:"metadata"`
}

// IsEmpty reports whether r is nil or carries no entities.
func (r *KnowledgeGraphResult) IsEmpty() bool {
	return r == nil || len(r.Entities) == 0
}

// RecomputeCounts sets the count metadata from the actual list lengths.
func (r *KnowledgeGraphResult) RecomputeCounts() {
	if r.Metadata == nil {
		r.Metadata = Metadata{}
	}
	r.Metadata[MetaEntityCount] = len(r.Entities)
	r.Metadata[MetaRelationshipCount] = len(r.Relationships)
}

// EntityNames returns the names of all entities in order.
func (r *KnowledgeGraphResult) EntityNames() []string {
	if r == nil {
		return nil
	}
	names := make([]string, len(r.Entities))
	for i := range r.Entities {
		names[i] = r.Entities[i].Name
	}
	return names
}
