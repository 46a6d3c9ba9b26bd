package services

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/custodia-labs/graphloom/internal/core/domain"
	"github.com/custodia-labs/graphloom/internal/core/ports/driven"
)

// record is one loosely-typed entity or relationship before coercion.
type record = map[string]any

// parsed is the common output of every variant parser.
type parsed struct {
	entities      []record
	relationships []record
	metadata      domain.Metadata
}

// variantParser maps one backend's raw payload into records.
type variantParser func(data any) (parsed, error)

// Normalizer canonicalizes every adapter payload into a KnowledgeGraphResult.
// It performs no I/O and never fails: malformed input yields empty lists.
type Normalizer struct {
	telemetry driven.Telemetry
	parsers   map[domain.Variant]variantParser
	now       func() time.Time
}

// NewNormalizer creates a normalizer. telemetry may be nil.
func NewNormalizer(telemetry driven.Telemetry) *Normalizer {
	return &Normalizer{
		telemetry: telemetry,
		parsers: map[domain.Variant]variantParser{
			domain.VariantGraph:  parseGraphPayload,
			domain.VariantVector: parseVectorPoints,
			domain.VariantAudit:  parseAuditRows,
		},
		now: time.Now,
	}
}

// Normalize canonicalizes raw, layering base metadata beneath any metadata
// the payload carries. A nil raw yields nil ("no result").
func (n *Normalizer) Normalize(raw *domain.RawResult, base domain.Metadata) *domain.KnowledgeGraphResult {
	if raw == nil {
		return nil
	}

	p, ok := parseEnvelope(raw.Data)
	if !ok {
		parser, known := n.parsers[raw.Variant]
		if !known {
			n.malformed(raw.Variant, fmt.Errorf("unknown variant %q", raw.Variant))
			return n.canonicalize(parsed{}, base, raw.Metadata, raw.Variant)
		}

		var err error
		p, err = parser(raw.Data)
		if err != nil {
			n.malformed(raw.Variant, err)
			return n.canonicalize(parsed{}, base, raw.Metadata, raw.Variant)
		}
	}

	return n.canonicalize(p, base, raw.Metadata, raw.Variant)
}

// NormalizeResult re-canonicalizes an existing result, recomputing counts.
func (n *Normalizer) NormalizeResult(r *domain.KnowledgeGraphResult) *domain.KnowledgeGraphResult {
	if r == nil {
		return nil
	}
	return n.Normalize(&domain.RawResult{Data: r}, nil)
}

func (n *Normalizer) malformed(variant domain.Variant, err error) {
	if n.telemetry == nil {
		return
	}
	n.telemetry.Emit(domain.NewEvent(domain.LevelWarn, "normalizer",
		"payload could not be coerced, returning empty result",
		map[string]any{
			"variant": string(variant),
			"kind":    domain.ErrMalformedResponse.Error(),
			"error":   err.Error(),
		}))
}

// canonicalize coerces records and assembles metadata. Metadata precedence,
// lowest first: base, adapter metadata, payload metadata.
func (n *Normalizer) canonicalize(
	p parsed, base, adapterMeta domain.Metadata, variant domain.Variant,
) *domain.KnowledgeGraphResult {
	result := &domain.KnowledgeGraphResult{
		Entities:      make([]domain.Entity, 0, len(p.entities)),
		Relationships: make([]domain.Relationship, 0, len(p.relationships)),
		Metadata:      base.Clone(),
	}

	seen := make(map[string]bool, len(p.entities))
	for _, rec := range p.entities {
		e, ok := coerceEntity(rec)
		if !ok || seen[e.Name] {
			continue
		}
		seen[e.Name] = true
		result.Entities = append(result.Entities, e)
	}

	for _, rec := range p.relationships {
		if r, ok := coerceRelationship(rec); ok {
			result.Relationships = append(result.Relationships, r)
		}
	}

	for k, v := range adapterMeta {
		result.Metadata[k] = v
	}
	for k, v := range p.metadata {
		result.Metadata[k] = v
	}

	if result.Metadata.String(domain.MetaSource) == "" && variant != "" {
		result.Metadata[domain.MetaSource] = string(variant)
	}
	if _, ok := result.Metadata[domain.MetaTimestamp]; !ok {
		result.Metadata[domain.MetaTimestamp] = n.now().UTC().Format(time.RFC3339)
	}
	for _, key := range []string{domain.MetaSource, domain.MetaConnectionMode, domain.MetaEndpoint} {
		if _, ok := result.Metadata[key]; !ok {
			result.Metadata[key] = ""
		}
	}

	result.RecomputeCounts()
	return result
}

// parseEnvelope recognises {knowledgeGraph: {entities, relationships}, metadata}
// as a decoded JSON object, and already-canonical results.
func parseEnvelope(data any) (parsed, bool) {
	switch v := data.(type) {
	case *domain.KnowledgeGraphResult:
		if v == nil {
			return parsed{}, false
		}
		return fromCanonical(v), true
	case domain.KnowledgeGraphResult:
		return fromCanonical(&v), true
	case map[string]any:
		kg, ok := v["knowledgeGraph"].(map[string]any)
		if !ok {
			return parsed{}, false
		}
		p := parsed{
			entities:      records(kg["entities"]),
			relationships: records(kg["relationships"]),
		}
		if meta, ok := v["metadata"].(map[string]any); ok {
			p.metadata = domain.Metadata(meta)
		}
		return p, true
	default:
		return parsed{}, false
	}
}

func fromCanonical(r *domain.KnowledgeGraphResult) parsed {
	p := parsed{
		entities:      make([]record, len(r.Entities)),
		relationships: make([]record, len(r.Relationships)),
		metadata:      r.Metadata,
	}
	for i, e := range r.Entities {
		p.entities[i] = entityRecord(e)
	}
	for i, rel := range r.Relationships {
		p.relationships[i] = record{
			"source":     rel.Source,
			"target":     rel.Target,
			"label":      rel.Label,
			"identifier": rel.Identifier,
		}
	}
	return p
}

func entityRecord(e domain.Entity) record {
	rec := record{
		"name":        e.Name,
		"type":        string(e.Type),
		"description": e.Description,
		"identifier":  e.Identifier,
		"provenance":  string(e.Provenance),
		"vectorMatch": e.VectorMatch,
		"auditMatch":  e.AuditMatch,
	}
	if e.SpatialMedia != nil {
		rec["spatialMedia"] = e.SpatialMedia
	}
	return rec
}

// parseGraphPayload maps nodes and edges read from the graph database.
func parseGraphPayload(data any) (parsed, error) {
	payload, ok := data.(*domain.GraphPayload)
	if !ok || payload == nil {
		return parsed{}, fmt.Errorf("graph payload: unexpected %T", data)
	}

	p := parsed{
		entities:      make([]record, 0, len(payload.Nodes)),
		relationships: make([]record, 0, len(payload.Edges)),
	}
	for _, node := range payload.Nodes {
		rec := make(record, len(node.Properties)+1)
		for k, v := range node.Properties {
			rec[k] = v
		}
		if _, hasType := rec["type"]; !hasType {
			if _, hasEntityType := rec["entityType"]; !hasEntityType {
				rec["type"] = labelType(node.Labels)
			}
		}
		p.entities = append(p.entities, rec)
	}
	for _, edge := range payload.Edges {
		rec := record{
			"source": edge.Source,
			"target": edge.Target,
			"type":   edge.Type,
		}
		if id, ok := edge.Properties["identifier"]; ok {
			rec["identifier"] = id
		}
		p.relationships = append(p.relationships, rec)
	}
	return p, nil
}

// labelType picks the first recognised label, else the first label.
func labelType(labels []string) string {
	for _, l := range labels {
		if t := domain.ParseEntityType(l); t != domain.EntityTypeOther {
			return string(t)
		}
	}
	if len(labels) > 0 {
		return labels[0]
	}
	return ""
}

// parseVectorPoints maps scored or scrolled points. A point payload is either
// an entity itself or an embedded graph snapshot with entities/relationships.
func parseVectorPoints(data any) (parsed, error) {
	points, ok := data.([]domain.VectorPoint)
	if !ok {
		return parsed{}, fmt.Errorf("vector payload: unexpected %T", data)
	}

	var p parsed
	for _, pt := range points {
		if embedded, ok := extractGraph(pt.Payload); ok {
			appendWithIdentifier(&p, embedded, pt.Identifier)
			continue
		}
		rec := make(record, len(pt.Payload)+1)
		for k, v := range pt.Payload {
			rec[k] = v
		}
		if stringField(rec, "identifier", "uuid") == "" && pt.Identifier != "" {
			rec["identifier"] = pt.Identifier
		}
		p.entities = append(p.entities, rec)
	}
	return p, nil
}

// parseAuditRows extracts graph snapshots embedded in audit-log rows.
// Rows without graph data are skipped.
func parseAuditRows(data any) (parsed, error) {
	var rows []map[string]any
	switch v := data.(type) {
	case []map[string]any:
		rows = v
	case []any:
		rows = make([]map[string]any, 0, len(v))
		for _, item := range v {
			if m, ok := item.(map[string]any); ok {
				rows = append(rows, m)
			}
		}
	default:
		return parsed{}, fmt.Errorf("audit payload: unexpected %T", data)
	}

	var p parsed
	for _, row := range rows {
		embedded, ok := extractGraph(row)
		if !ok {
			continue
		}
		appendWithIdentifier(&p, embedded, stringField(row, "identifier", "uuid"))
	}
	return p, nil
}

// extractGraph finds entities/relationships at the top level, under
// knowledgeGraph, or inside a data/content field holding JSON text or an object.
func extractGraph(row map[string]any) (parsed, bool) {
	if row == nil {
		return parsed{}, false
	}
	if _, ok := row["entities"]; ok {
		return parsed{entities: records(row["entities"]), relationships: records(row["relationships"])}, true
	}
	if kg, ok := row["knowledgeGraph"].(map[string]any); ok {
		return extractGraph(kg)
	}
	for _, key := range []string{"data", "content"} {
		switch v := row[key].(type) {
		case map[string]any:
			if p, ok := extractGraph(v); ok {
				return p, true
			}
		case string:
			var decoded map[string]any
			if strings.HasPrefix(strings.TrimSpace(v), "{") && json.Unmarshal([]byte(v), &decoded) == nil {
				if p, ok := extractGraph(decoded); ok {
					return p, true
				}
			}
		}
	}
	return parsed{}, false
}

func appendWithIdentifier(dst *parsed, src parsed, identifier string) {
	for _, rec := range src.entities {
		if identifier != "" && stringField(rec, "identifier", "uuid") == "" {
			withID := make(record, len(rec)+1)
			for k, v := range rec {
				withID[k] = v
			}
			withID["identifier"] = identifier
			rec = withID
		}
		dst.entities = append(dst.entities, rec)
	}
	dst.relationships = append(dst.relationships, src.relationships...)
}

// coerceEntity applies the entity naming rules. Records without a name are dropped.
func coerceEntity(rec record) (domain.Entity, bool) {
	name := stringField(rec, "name", "title")
	if name == "" {
		return domain.Entity{}, false
	}

	e := domain.Entity{
		Name:        name,
		Type:        domain.ParseEntityType(stringField(rec, "type", "entityType")),
		Description: stringField(rec, "description"),
		Identifier:  stringField(rec, "identifier", "uuid"),
	}
	if e.Description == "" {
		e.Description = joinObservations(rec["observations"])
	}
	if p, ok := rec["provenance"].(string); ok && domain.Provenance(p).IsValid() {
		e.Provenance = domain.Provenance(p)
	}
	if b, ok := rec["vectorMatch"].(bool); ok {
		e.VectorMatch = b
	}
	if b, ok := rec["auditMatch"].(bool); ok {
		e.AuditMatch = b
	}
	if media, ok := rec["spatialMedia"]; ok && media != nil {
		e.SpatialMedia = media
	}
	return e, true
}

// coerceRelationship accepts source/target or from/to naming.
func coerceRelationship(rec record) (domain.Relationship, bool) {
	r := domain.Relationship{
		Source:     stringField(rec, "source", "from"),
		Target:     stringField(rec, "target", "to"),
		Label:      stringField(rec, "relationship", "relationType", "type", "label"),
		Identifier: stringField(rec, "identifier"),
	}
	if r.Source == "" || r.Target == "" {
		return domain.Relationship{}, false
	}
	if r.Label == "" {
		r.Label = domain.DefaultRelationshipLabel
	}
	return r, true
}

func joinObservations(v any) string {
	var parts []string
	switch obs := v.(type) {
	case []string:
		parts = obs
	case []any:
		for _, o := range obs {
			if s, ok := o.(string); ok && strings.TrimSpace(s) != "" {
				parts = append(parts, strings.TrimSpace(s))
			}
		}
	case string:
		return strings.TrimSpace(obs)
	}
	return strings.Join(parts, "; ")
}

// stringField returns the first non-blank string value among keys.
func stringField(rec record, keys ...string) string {
	for _, k := range keys {
		if s, ok := rec[k].(string); ok {
			if s = strings.TrimSpace(s); s != "" {
				return s
			}
		}
	}
	return ""
}

// records converts a decoded JSON array (or typed slice) into records,
// skipping non-object items.
func records(v any) []record {
	switch items := v.(type) {
	case []map[string]any:
		return items
	case []any:
		out := make([]record, 0, len(items))
		for _, item := range items {
			if m, ok := item.(map[string]any); ok {
				out = append(out, m)
			}
		}
		return out
	default:
		return nil
	}
}
