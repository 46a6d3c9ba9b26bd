package domain

import "time"

// Variant identifies which backend produced a raw payload.
type Variant string

// Raw payload variants, one per backend.
const (
	VariantGraph  Variant = "graph"
	VariantVector Variant = "vector"
	VariantAudit  Variant = "audit"
)

// RawResult is an adapter's payload before normalization.
//
// Data holds the backend-specific shape:
//   - VariantGraph:  *GraphPayload
//   - VariantVector: []VectorPoint
//   - VariantAudit:  []map[string]any (decoded log rows)
//
// Any variant may instead carry a decoded JSON object already in the
// enveloped {knowledgeGraph, metadata} shape.
type RawResult struct {
	Variant  Variant
	Data     any
	Metadata Metadata
}

// GraphNode is a node as read from the graph database.
type GraphNode struct {
	ElementID  string
	Labels     []string
	Properties map[string]any
}

// GraphEdge is a relationship between two retrieved nodes, keyed by node name.
type GraphEdge struct {
	Source     string
	Target     string
	Type       string
	Properties map[string]any
}

// GraphPayload is the graph adapter's raw output.
type GraphPayload struct {
	Nodes []GraphNode
	Edges []GraphEdge
}

// VectorPoint is a scored or scrolled point from the vector store.
type VectorPoint struct {
	ID         string
	Score      float32
	Identifier string
	Payload    map[string]any
}

// AuditRecord is one audit-log row as served by the audit proxy.
// Entities and Relationships hold the graph snapshot recorded with the action.
type AuditRecord struct {
	ID            string           `json:"id"`
	Action        string           `json:"action"`
	Content       string           `json:"content,omitempty"`
	Identifier    string           `json:"identifier,omitempty"`
	CreatedAt     time.Time        `json:"createdAt"`
	Entities      []map[string]any `json:"entities,omitempty"`
	Relationships []map[string]any `json:"relationships,omitempty"`
}
