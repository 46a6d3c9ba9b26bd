package domain

import "strings"

// EntityType classifies a knowledge-graph entity.
type EntityType string

// Recognised entity types. Anything else is coerced to EntityTypeOther.
const (
	EntityTypeConcept      EntityType = "CONCEPT"
	EntityTypePerson       EntityType = "PERSON"
	EntityTypeOrganization EntityType = "ORGANIZATION"
	EntityTypeLocation     EntityType = "LOCATION"
	EntityTypeEvent        EntityType = "EVENT"
	EntityTypeOther        EntityType = "OTHER"
)

// EntityTypes lists every recognised entity type in display order.
func EntityTypes() []EntityType {
	return []EntityType{
		EntityTypeConcept,
		EntityTypePerson,
		EntityTypeOrganization,
		EntityTypeLocation,
		EntityTypeEvent,
		EntityTypeOther,
	}
}

// IsValid returns true if the entity type is recognised.
func (t EntityType) IsValid() bool {
	switch t {
	case EntityTypeConcept, EntityTypePerson, EntityTypeOrganization,
		EntityTypeLocation, EntityTypeEvent, EntityTypeOther:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (t EntityType) String() string {
	return string(t)
}

// ParseEntityType matches s case-insensitively against the recognised types.
// Empty or unrecognised input yields EntityTypeOther.
func ParseEntityType(s string) EntityType {
	t := EntityType(strings.ToUpper(strings.TrimSpace(s)))
	if t.IsValid() {
		return t
	}
	return EntityTypeOther
}

// Provenance records which stage or backend surfaced an entity.
type Provenance string

// Provenance tags assigned during sharded search.
const (
	ProvenanceUUIDCoordinated Provenance = "uuid_coordinated"
	ProvenanceVectorSemantic  Provenance = "vector_semantic"
	ProvenanceAuditActivity   Provenance = "audit_activity"
	ProvenanceTextSearch      Provenance = "text_search"
	ProvenanceConnected       Provenance = "connected"
)

// IsValid returns true if the provenance tag is recognised.
func (p Provenance) IsValid() bool {
	switch p {
	case ProvenanceUUIDCoordinated, ProvenanceVectorSemantic, ProvenanceAuditActivity,
		ProvenanceTextSearch, ProvenanceConnected:
		return true
	default:
		return false
	}
}

// Entity is a node in the canonical knowledge graph.
// Name is the de-duplication key within one result.
type Entity struct {
	Name         string     `json:"name"`
	Type         EntityType `json:"type"`
	Description  string     `json:"description,omitempty"`
	Identifier   string     `json:"identifier,omitempty"`
	Provenance   Provenance `json:"provenance,omitempty"`
	VectorMatch  bool       `json:"vectorMatch,omitempty"`
	AuditMatch   bool       `json:"auditMatch,omitempty"`
	SpatialMedia any        `json:"spatialMedia,omitempty"`
}

// DefaultRelationshipLabel is used when upstream supplies no label.
const DefaultRelationshipLabel = "RELATED_TO"

// Relationship is a directed, labelled edge between two entity names.
type Relationship struct {
	Source     string `json:"source"`
	Target     string `json:"target"`
	Label      string `json:"label"`
	Identifier string `json:"identifier,omitempty"`
}
