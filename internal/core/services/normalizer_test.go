package services

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/graphloom/internal/core/domain"
)

func newTestNormalizer(tel *captureTelemetry) *Normalizer {
	n := NewNormalizer(tel)
	n.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return n
}

func decodeJSON(t *testing.T, s string) any {
	t.Helper()
	var v any
	require.NoError(t, json.Unmarshal([]byte(s), &v))
	return v
}

func TestNormalizer_NilIsNoResult(t *testing.T) {
	n := newTestNormalizer(nil)
	assert.Nil(t, n.Normalize(nil, domain.Metadata{"source": "graph"}))
	assert.Nil(t, n.NormalizeResult(nil))
}

func TestNormalizer_Envelope(t *testing.T) {
	n := newTestNormalizer(nil)
	data := decodeJSON(t, `{
		"knowledgeGraph": {
			"entities": [
				{"name": "Ada Lovelace", "entityType": "person", "observations": ["mathematician", "wrote notes"]},
				{"title": "Analytical Engine", "type": "CONCEPT", "description": "a machine"}
			],
			"relationships": [
				{"from": "Ada Lovelace", "to": "Analytical Engine", "relationType": "DESCRIBED"}
			]
		},
		"metadata": {"source": "gateway", "entityCount": 40, "viewType": "upstream"}
	}`)

	result := n.Normalize(&domain.RawResult{Variant: domain.VariantAudit, Data: data},
		domain.Metadata{"source": "audit", "viewType": "base", "endpoint": "http://audit"})

	require.NotNil(t, result)
	require.Len(t, result.Entities, 2)
	assert.Equal(t, domain.Entity{
		Name:        "Ada Lovelace",
		Type:        domain.EntityTypePerson,
		Description: "mathematician; wrote notes",
	}, result.Entities[0])
	assert.Equal(t, "Analytical Engine", result.Entities[1].Name)
	assert.Equal(t, "a machine", result.Entities[1].Description)

	require.Len(t, result.Relationships, 1)
	assert.Equal(t, domain.Relationship{
		Source: "Ada Lovelace", Target: "Analytical Engine", Label: "DESCRIBED",
	}, result.Relationships[0])

	assert.Equal(t, "gateway", result.Metadata[domain.MetaSource], "upstream metadata wins")
	assert.Equal(t, "upstream", result.Metadata[domain.MetaViewType])
	assert.Equal(t, "http://audit", result.Metadata[domain.MetaEndpoint], "base fills gaps")
	assert.Equal(t, 2, result.Metadata[domain.MetaEntityCount], "counts recomputed")
	assert.Equal(t, 1, result.Metadata[domain.MetaRelationshipCount])
	assert.Equal(t, "2026-03-01T12:00:00Z", result.Metadata[domain.MetaTimestamp])
	assert.Contains(t, result.Metadata, domain.MetaConnectionMode)
}

func TestNormalizer_TypeDefaulting(t *testing.T) {
	n := newTestNormalizer(nil)
	data := decodeJSON(t, `{"knowledgeGraph": {"entities": [
		{"name": "absent"},
		{"name": "null", "type": null},
		{"name": "number", "type": 7},
		{"name": "unknown", "type": "ANIMAL"},
		{"name": "blank", "entityType": "  "},
		{"name": "mixed", "entityType": "LoCaTiOn"}
	]}}`)

	result := n.Normalize(&domain.RawResult{Data: data}, nil)

	require.Len(t, result.Entities, 6)
	for _, e := range result.Entities[:5] {
		assert.Equal(t, domain.EntityTypeOther, e.Type, e.Name)
	}
	assert.Equal(t, domain.EntityTypeLocation, result.Entities[5].Type)
}

func TestNormalizer_RelationshipDualNaming(t *testing.T) {
	n := newTestNormalizer(nil)
	sourceTarget := n.Normalize(&domain.RawResult{Data: decodeJSON(t,
		`{"knowledgeGraph": {"entities": [], "relationships": [{"source": "A", "target": "B"}]}}`)}, nil)
	fromTo := n.Normalize(&domain.RawResult{Data: decodeJSON(t,
		`{"knowledgeGraph": {"entities": [], "relationships": [{"from": "A", "to": "B"}]}}`)}, nil)

	require.Len(t, sourceTarget.Relationships, 1)
	assert.Equal(t, sourceTarget.Relationships, fromTo.Relationships)
	assert.Equal(t, domain.Relationship{Source: "A", Target: "B", Label: "RELATED_TO"}, fromTo.Relationships[0])
}

func TestNormalizer_RelationshipLabelPrecedence(t *testing.T) {
	n := newTestNormalizer(nil)
	result := n.Normalize(&domain.RawResult{Data: decodeJSON(t, `{"knowledgeGraph": {"relationships": [
		{"source": "A", "target": "B", "relationship": "R1", "type": "T"},
		{"source": "A", "target": "B", "relationType": "R2", "label": "L"},
		{"source": "A", "target": "B", "type": "R3"},
		{"source": "A", "target": "B", "label": "R4"}
	]}}`)}, nil)

	labels := make([]string, len(result.Relationships))
	for i, r := range result.Relationships {
		labels[i] = r.Label
	}
	assert.Equal(t, []string{"R1", "R2", "R3", "R4"}, labels)
}

func TestNormalizer_DropsInvalidRelationships(t *testing.T) {
	n := newTestNormalizer(nil)
	result := n.Normalize(&domain.RawResult{Data: decodeJSON(t, `{"knowledgeGraph": {"relationships": [
		{"source": "A"},
		{"to": "B"},
		{"from": "", "to": "B"},
		{"source": "A", "target": 3},
		"not an object",
		{"source": "A", "target": "B"}
	]}}`)}, nil)

	require.NotNil(t, result)
	require.Len(t, result.Relationships, 1)
	assert.Equal(t, 1, result.Metadata[domain.MetaRelationshipCount])
}

func TestNormalizer_CountInvariant(t *testing.T) {
	n := newTestNormalizer(nil)
	result := n.Normalize(&domain.RawResult{Data: decodeJSON(t, `{
		"knowledgeGraph": {"entities": [{"name": "A"}, {"name": "A"}, {"type": "PERSON"}]},
		"metadata": {"entityCount": 1000, "relationshipCount": 12}
	}`)}, domain.Metadata{domain.MetaEntityCount: 5})

	assert.Len(t, result.Entities, 1, "duplicates by name and nameless entities are dropped")
	assert.Equal(t, len(result.Entities), result.Metadata[domain.MetaEntityCount])
	assert.Equal(t, len(result.Relationships), result.Metadata[domain.MetaRelationshipCount])
}

func TestNormalizer_Idempotent(t *testing.T) {
	n := newTestNormalizer(nil)
	first := n.Normalize(&domain.RawResult{Variant: domain.VariantGraph, Data: &domain.GraphPayload{
		Nodes: []domain.GraphNode{
			{Labels: []string{"Person"}, Properties: map[string]any{"name": "Grace", "identifier": "u-1"}},
			{Labels: []string{"Thing"}, Properties: map[string]any{
				"name": "COBOL", "observations": []any{"language"}, "provenance": "connected",
				"vectorMatch": true, "spatialMedia": map[string]any{"x": 1.5},
			}},
		},
		Edges: []domain.GraphEdge{{Source: "Grace", Target: "COBOL", Type: "CREATED"}},
	}}, domain.Metadata{"source": "graph", "endpoint": "bolt://x"})

	second := n.NormalizeResult(first)

	assert.Equal(t, first.Entities, second.Entities)
	assert.Equal(t, first.Relationships, second.Relationships)
	assert.Equal(t, first.Metadata[domain.MetaEntityCount], second.Metadata[domain.MetaEntityCount])
	assert.Equal(t, first.Metadata[domain.MetaRelationshipCount], second.Metadata[domain.MetaRelationshipCount])
	assert.Equal(t, first.Metadata[domain.MetaTimestamp], second.Metadata[domain.MetaTimestamp])

	firstJSON, err := json.Marshal(first.Entities)
	require.NoError(t, err)
	secondJSON, err := json.Marshal(second.Entities)
	require.NoError(t, err)
	assert.Equal(t, firstJSON, secondJSON)
}

func TestNormalizer_GraphVariant(t *testing.T) {
	n := newTestNormalizer(nil)
	result := n.Normalize(&domain.RawResult{Variant: domain.VariantGraph, Data: &domain.GraphPayload{
		Nodes: []domain.GraphNode{
			{Labels: []string{"Entity", "Organization"}, Properties: map[string]any{"name": "ACME"}},
			{Labels: []string{"Widget"}, Properties: map[string]any{"name": "Sprocket"}},
			{Labels: []string{"Person"}, Properties: map[string]any{"name": "Bob", "entityType": "EVENT"}},
		},
		Edges: []domain.GraphEdge{
			{Source: "Bob", Target: "ACME", Type: "WORKS_AT", Properties: map[string]any{"identifier": "r-1"}},
			{Source: "Bob", Target: "", Type: "BROKEN"},
		},
	}}, nil)

	require.Len(t, result.Entities, 3)
	assert.Equal(t, domain.EntityTypeOrganization, result.Entities[0].Type)
	assert.Equal(t, domain.EntityTypeOther, result.Entities[1].Type)
	assert.Equal(t, domain.EntityTypeEvent, result.Entities[2].Type, "property beats label")
	require.Len(t, result.Relationships, 1)
	assert.Equal(t, "r-1", result.Relationships[0].Identifier)
	assert.Equal(t, "graph", result.Metadata[domain.MetaSource], "variant fills missing source")
}

func TestNormalizer_VectorVariant(t *testing.T) {
	n := newTestNormalizer(nil)
	result := n.Normalize(&domain.RawResult{Variant: domain.VariantVector, Data: []domain.VectorPoint{
		{ID: "p1", Identifier: "uuid-1", Payload: map[string]any{"name": "Qubit", "type": "concept"}},
		{ID: "p2", Identifier: "uuid-2", Payload: map[string]any{
			"entities":      []any{map[string]any{"name": "Alice"}, map[string]any{"name": "Bob", "identifier": "own"}},
			"relationships": []any{map[string]any{"source": "Alice", "target": "Bob"}},
		}},
		{ID: "p3", Payload: map[string]any{"content": "no name here"}},
	}}, nil)

	require.Len(t, result.Entities, 3)
	assert.Equal(t, "uuid-1", result.Entities[0].Identifier)
	assert.Equal(t, domain.EntityTypeConcept, result.Entities[0].Type)
	assert.Equal(t, "uuid-2", result.Entities[1].Identifier, "embedded entity inherits point identifier")
	assert.Equal(t, "own", result.Entities[2].Identifier)
	assert.Len(t, result.Relationships, 1)
}

func TestNormalizer_AuditVariant(t *testing.T) {
	n := newTestNormalizer(nil)
	rows := []map[string]any{
		{"identifier": "row-1", "entities": []any{map[string]any{"name": "Deploy", "type": "EVENT"}}},
		{"identifier": "row-2", "data": `{"entities":[{"name":"Cluster"}],"relationships":[{"from":"Deploy","to":"Cluster"}]}`},
		{"identifier": "row-3", "knowledgeGraph": map[string]any{"entities": []any{map[string]any{"title": "Rollback"}}}},
		{"identifier": "row-4", "content": "plain text activity"},
		{"identifier": "row-5", "data": "{not json"},
	}

	result := n.Normalize(&domain.RawResult{Variant: domain.VariantAudit, Data: rows}, nil)

	require.Len(t, result.Entities, 3)
	assert.Equal(t, []string{"Deploy", "Cluster", "Rollback"}, result.EntityNames())
	assert.Equal(t, "row-1", result.Entities[0].Identifier)
	assert.Equal(t, "row-2", result.Entities[1].Identifier)
	assert.Equal(t, "row-3", result.Entities[2].Identifier)
	require.Len(t, result.Relationships, 1)
}

func TestNormalizer_AuditVariantFromDecodedArray(t *testing.T) {
	n := newTestNormalizer(nil)
	data := decodeJSON(t, `[{"identifier": "x", "entities": [{"name": "Node"}]}, 42]`)

	result := n.Normalize(&domain.RawResult{Variant: domain.VariantAudit, Data: data}, nil)

	require.Len(t, result.Entities, 1)
	assert.Equal(t, "x", result.Entities[0].Identifier)
}

func TestNormalizer_MalformedDegradesToEmpty(t *testing.T) {
	tel := &captureTelemetry{}
	n := newTestNormalizer(tel)

	tests := []struct {
		name string
		raw  *domain.RawResult
	}{
		{"graph with wrong type", &domain.RawResult{Variant: domain.VariantGraph, Data: "oops"}},
		{"vector with wrong type", &domain.RawResult{Variant: domain.VariantVector, Data: 12}},
		{"audit with object", &domain.RawResult{Variant: domain.VariantAudit, Data: map[string]any{"rows": 1}}},
		{"unknown variant", &domain.RawResult{Variant: "mirror", Data: nil}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := n.Normalize(tt.raw, domain.Metadata{"source": "x"})
			require.NotNil(t, result)
			assert.Empty(t, result.Entities)
			assert.Empty(t, result.Relationships)
			assert.Equal(t, 0, result.Metadata[domain.MetaEntityCount])
		})
	}

	assert.Len(t, tel.atLevel(domain.LevelWarn), len(tests))
}
