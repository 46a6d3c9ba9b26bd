package neo4j

import (
	"fmt"
	"strings"

	"github.com/custodia-labs/graphloom/internal/core/domain"
)

// maxDepth bounds variable-length traversal from a center entity.
const maxDepth = 6

// nodeFilter matches type membership (label or type property) and a
// case-insensitive name substring. Empty parameters match everything.
const nodeFilter = `($types = [] OR any(l IN labels(n) WHERE toUpper(l) IN $types)
       OR toUpper(coalesce(n.type, n.entityType, '')) IN $types)
  AND ($search = '' OR toLower(coalesce(n.name, '')) CONTAINS toLower($search))`

// BuildNodeQuery returns the Cypher and parameters selecting nodes for q.
// q must already have defaults applied. Every value is passed as a parameter;
// only the validated traversal depth is formatted into the text.
func BuildNodeQuery(q domain.GraphQuery) (string, map[string]any) {
	types := make([]string, 0, len(q.EntityTypes))
	for _, t := range q.EntityTypes {
		types = append(types, strings.ToUpper(string(t)))
	}
	params := map[string]any{
		"types":  types,
		"search": strings.TrimSpace(q.SearchQuery),
		"offset": q.Offset,
		"limit":  q.Limit,
	}

	switch {
	case len(q.Identifiers) > 0:
		params["ids"] = q.Identifiers
		return `MATCH (m)
WHERE ($search <> '' AND toLower(coalesce(m.name, '')) CONTAINS toLower($search))
   OR m.identifier IN $ids OR m.uuid IN $ids
OPTIONAL MATCH (m)--(nb)
WITH collect(DISTINCT m) + collect(DISTINCT nb) AS found
UNWIND found AS n
WITH DISTINCT n
WHERE n IS NOT NULL
RETURN n
LIMIT $limit`, params

	case q.CenterEntity != "":
		params["center"] = strings.TrimSpace(q.CenterEntity)
		depth := min(max(q.Depth, 1), maxDepth)
		return fmt.Sprintf(`MATCH (c)
WHERE toLower(c.name) = toLower($center)
MATCH (c)-[*0..%d]-(n)
WITH DISTINCT n
WHERE %s
RETURN n
SKIP $offset LIMIT $limit`, depth, nodeFilter), params

	default:
		return fmt.Sprintf(`MATCH (n)
WHERE %s
RETURN n
SKIP $offset LIMIT $limit`, nodeFilter), params
	}
}

// BuildRelationshipQuery returns Cypher selecting relationships strictly
// between the given nodes.
func BuildRelationshipQuery(elementIDs []string, limit int) (string, map[string]any) {
	return `MATCH (a)-[r]->(b)
WHERE elementId(a) IN $ids AND elementId(b) IN $ids
RETURN a.name AS source, b.name AS target, type(r) AS type, properties(r) AS props
LIMIT $limit`, map[string]any{
			"ids":   elementIDs,
			"limit": limit,
		}
}
