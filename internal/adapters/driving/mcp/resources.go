package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/graphloom/internal/core/domain"
)

const uriScheme = "graphloom://"

// registerResources registers all resource handlers with the MCP server.
func (s *Server) registerResources() {
	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "endpoints",
		Name:        "endpoints",
		Description: "Resolved backend endpoints with credentials masked",
		MIMEType:    "application/json",
	}, s.handleEndpointsResource)

	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "entities/{entityType}",
		Name:        "entities-by-type",
		Description: "Graph entities of one type",
		MIMEType:    "application/json",
	}, s.handleEntitiesResource)
}

// handleEndpointsResource returns the endpoint every backend resolves to.
func (s *Server) handleEndpointsResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	if s.ports.Settings == nil {
		return jsonResource(req.Params.URI, map[string]any{})
	}

	resolved, err := s.ports.Settings.Resolved(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolving endpoints: %w", err)
	}
	for b, cfg := range resolved {
		if cfg.Password != "" {
			cfg.Password = "****"
		}
		if cfg.APIKey != "" {
			cfg.APIKey = "****"
		}
		resolved[b] = cfg
	}
	return jsonResource(req.Params.URI, resolved)
}

// handleEntitiesResource loads graph entities of the type named in the URI.
func (s *Server) handleEntitiesResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	t := extractEntityType(req.Params.URI)
	if !t.IsValid() {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	res, err := s.ports.Loader.LoadByEntityType(ctx, []domain.EntityType{t}, domain.DefaultGraphLimit)
	if err != nil {
		return nil, fmt.Errorf("loading entities: %w", err)
	}
	return jsonResource(req.Params.URI, toOutput(res))
}

func jsonResource(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling resource: %w", err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}

// extractEntityType extracts the type from a URI like graphloom://entities/{entityType}.
func extractEntityType(uri string) domain.EntityType {
	const prefix = uriScheme + "entities/"

	if !strings.HasPrefix(uri, prefix) {
		return ""
	}
	return domain.EntityType(strings.ToUpper(strings.TrimPrefix(uri, prefix)))
}
