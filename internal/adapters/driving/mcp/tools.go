package mcp

import (
	"context"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/graphloom/internal/core/domain"
)

// GraphOutput is the output schema shared by every graph tool.
type GraphOutput struct {
	Found         bool                  `json:"found" jsonschema:"false when every backend failed or returned nothing"`
	Entities      []domain.Entity       `json:"entities"`
	Relationships []domain.Relationship `json:"relationships"`
	Metadata      map[string]any        `json:"metadata,omitempty"`
}

// LoadGraphInput is the input schema for the load_graph tool.
type LoadGraphInput struct {
	Source      string   `json:"source,omitempty" jsonschema:"auto, graph, vector or audit (default auto)"`
	Limit       int      `json:"limit,omitempty" jsonschema:"maximum number of entities (default 200)"`
	Query       string   `json:"query,omitempty" jsonschema:"optional text filter"`
	EntityTypes []string `json:"entity_types,omitempty" jsonschema:"entity types to restrict graph results to"`
	ViewType    string   `json:"view_type,omitempty" jsonschema:"view label recorded in result metadata"`
}

// LoadByTypeInput is the input schema for the load_by_type tool.
type LoadByTypeInput struct {
	EntityTypes []string `json:"entity_types" jsonschema:"one or more of CONCEPT, PERSON, ORGANIZATION, LOCATION, EVENT, OTHER"`
	Limit       int      `json:"limit,omitempty" jsonschema:"maximum number of entities (default 200)"`
}

// SearchGraphInput is the input schema for the search_graph tool.
type SearchGraphInput struct {
	Query string `json:"query" jsonschema:"substring to match against entity names"`
	Limit int    `json:"limit,omitempty" jsonschema:"maximum number of entities (default 200)"`
}

// SubgraphInput is the input schema for the load_subgraph tool.
type SubgraphInput struct {
	Center   string `json:"center" jsonschema:"name of the center entity"`
	Depth    int    `json:"depth,omitempty" jsonschema:"maximum hops from the center (default 2)"`
	MaxNodes int    `json:"max_nodes,omitempty" jsonschema:"maximum number of entities (default 200)"`
}

// ShardedSearchInput is the input schema for the sharded_search tool.
type ShardedSearchInput struct {
	Topic       string `json:"topic" jsonschema:"topic to search for"`
	SkipVector  bool   `json:"skip_vector,omitempty" jsonschema:"do not query the vector store"`
	SkipAudit   bool   `json:"skip_audit,omitempty" jsonschema:"do not query the audit log"`
	VectorLimit int    `json:"vector_limit,omitempty" jsonschema:"vector shard size (default 20)"`
	AuditLimit  int    `json:"audit_limit,omitempty" jsonschema:"audit shard size (default 50)"`
	MaxNodes    int    `json:"max_nodes,omitempty" jsonschema:"maximum number of entities (default 200)"`
	ViewType    string `json:"view_type,omitempty" jsonschema:"view label recorded in result metadata"`

	WideningFloor int `json:"widening_floor,omitempty" jsonschema:"coordinated entity count below which the text search widens (default from settings, else 10)"`
}

// InitializeInput is the input schema for the initialize_graph tool.
type InitializeInput struct {
	PreferredTypes  []string `json:"preferred_types,omitempty" jsonschema:"entity types to load first"`
	MaxInitialNodes int      `json:"max_initial_nodes,omitempty" jsonschema:"maximum number of entities (default 200)"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "load_graph",
		Description: "Load entities and relationships from the graph, vector or audit backend",
	}, s.handleLoadGraph)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "load_by_type",
		Description: "Load graph entities of the given types",
	}, s.handleLoadByType)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "search_graph",
		Description: "Search graph entities by name, falling back to the vector store",
	}, s.handleSearchGraph)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "load_subgraph",
		Description: "Load the neighbourhood of one entity",
	}, s.handleSubgraph)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "sharded_search",
		Description: "Search a topic across vector store and audit log, reconciled against the graph",
	}, s.handleShardedSearch)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "initialize_graph",
		Description: "Connect to the graph database and load a starting view",
	}, s.handleInitialize)
}

func (s *Server) handleLoadGraph(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input LoadGraphInput,
) (*mcp.CallToolResult, GraphOutput, error) {
	source := domain.LoadSource(strings.ToLower(input.Source))
	if source == "" {
		source = domain.LoadSourceAuto
	}
	opts := domain.LoadOptions{
		Limit:       orDefault(input.Limit, domain.DefaultGraphLimit),
		Query:       input.Query,
		EntityTypes: entityTypes(input.EntityTypes),
		ViewType:    input.ViewType,
	}
	res, err := s.ports.Loader.LoadBySource(ctx, source, opts)
	return nil, toOutput(res), err
}

func (s *Server) handleLoadByType(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input LoadByTypeInput,
) (*mcp.CallToolResult, GraphOutput, error) {
	res, err := s.ports.Loader.LoadByEntityType(ctx, entityTypes(input.EntityTypes),
		orDefault(input.Limit, domain.DefaultGraphLimit))
	return nil, toOutput(res), err
}

func (s *Server) handleSearchGraph(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SearchGraphInput,
) (*mcp.CallToolResult, GraphOutput, error) {
	res, err := s.ports.Loader.LoadBySearch(ctx, input.Query, orDefault(input.Limit, domain.DefaultGraphLimit))
	return nil, toOutput(res), err
}

func (s *Server) handleSubgraph(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SubgraphInput,
) (*mcp.CallToolResult, GraphOutput, error) {
	res, err := s.ports.Loader.LoadCenteredSubgraph(ctx, input.Center,
		orDefault(input.Depth, domain.DefaultSubgraphDepth),
		orDefault(input.MaxNodes, domain.DefaultGraphLimit))
	return nil, toOutput(res), err
}

func (s *Server) handleShardedSearch(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ShardedSearchInput,
) (*mcp.CallToolResult, GraphOutput, error) {
	opts := domain.DefaultShardedSearchOptions()
	opts.UseVector = !input.SkipVector
	opts.UseAudit = !input.SkipAudit
	opts.VectorLimit = orDefault(input.VectorLimit, opts.VectorLimit)
	opts.AuditLimit = orDefault(input.AuditLimit, opts.AuditLimit)
	opts.MaxNodes = orDefault(input.MaxNodes, opts.MaxNodes)
	opts.WideningFloor = orDefault(input.WideningFloor, opts.WideningFloor)
	if input.ViewType != "" {
		opts.ViewType = input.ViewType
	}
	res, err := s.ports.Loader.ShardedSearch(ctx, input.Topic, opts)
	return nil, toOutput(res), err
}

func (s *Server) handleInitialize(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input InitializeInput,
) (*mcp.CallToolResult, GraphOutput, error) {
	res, err := s.ports.Loader.Initialize(ctx, entityTypes(input.PreferredTypes),
		orDefault(input.MaxInitialNodes, domain.DefaultGraphLimit))
	return nil, toOutput(res), err
}

// toOutput converts a loader result; nil becomes found=false with empty lists.
func toOutput(res *domain.KnowledgeGraphResult) GraphOutput {
	out := GraphOutput{
		Entities:      []domain.Entity{},
		Relationships: []domain.Relationship{},
	}
	if res == nil {
		return out
	}
	out.Found = true
	if res.Entities != nil {
		out.Entities = res.Entities
	}
	if res.Relationships != nil {
		out.Relationships = res.Relationships
	}
	out.Metadata = res.Metadata
	return out
}

func entityTypes(names []string) []domain.EntityType {
	if len(names) == 0 {
		return nil
	}
	types := make([]domain.EntityType, 0, len(names))
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			types = append(types, domain.EntityType(strings.ToUpper(n)))
		}
	}
	return types
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
