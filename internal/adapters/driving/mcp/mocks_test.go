package mcp

import (
	"context"

	"github.com/custodia-labs/graphloom/internal/core/domain"
)

// mockLoaderService is a mock implementation of driving.LoaderService.
// It records the arguments of the last call.
type mockLoaderService struct {
	result *domain.KnowledgeGraphResult
	err    error

	source    domain.LoadSource
	opts      domain.LoadOptions
	types     []domain.EntityType
	query     string
	limit     int
	depth     int
	shardOpts domain.ShardedSearchOptions
}

func (m *mockLoaderService) LoadBySource(
	_ context.Context,
	source domain.LoadSource,
	opts domain.LoadOptions,
) (*domain.KnowledgeGraphResult, error) {
	m.source, m.opts = source, opts
	return m.result, m.err
}

func (m *mockLoaderService) LoadByEntityType(
	_ context.Context,
	types []domain.EntityType,
	limit int,
) (*domain.KnowledgeGraphResult, error) {
	m.types, m.limit = types, limit
	return m.result, m.err
}

func (m *mockLoaderService) LoadBySearch(_ context.Context, query string, limit int) (*domain.KnowledgeGraphResult, error) {
	m.query, m.limit = query, limit
	return m.result, m.err
}

func (m *mockLoaderService) LoadCenteredSubgraph(
	_ context.Context,
	center string,
	depth, maxNodes int,
) (*domain.KnowledgeGraphResult, error) {
	m.query, m.depth, m.limit = center, depth, maxNodes
	return m.result, m.err
}

func (m *mockLoaderService) ShardedSearch(
	_ context.Context,
	topic string,
	opts domain.ShardedSearchOptions,
) (*domain.KnowledgeGraphResult, error) {
	m.query, m.shardOpts = topic, opts
	return m.result, m.err
}

func (m *mockLoaderService) Initialize(
	_ context.Context,
	preferred []domain.EntityType,
	maxNodes int,
) (*domain.KnowledgeGraphResult, error) {
	m.types, m.limit = preferred, maxNodes
	return m.result, m.err
}

// mockSettingsService is a mock implementation of driving.SettingsService.
type mockSettingsService struct {
	resolved map[domain.Backend]domain.EndpointConfig
	err      error
}

func (m *mockSettingsService) Snapshot(_ context.Context) (domain.SettingsSnapshot, error) {
	return domain.SettingsSnapshot{}, m.err
}

func (m *mockSettingsService) Resolved(_ context.Context) (map[domain.Backend]domain.EndpointConfig, error) {
	return m.resolved, m.err
}

func (m *mockSettingsService) Set(_, _ string) error { return m.err }

func (m *mockSettingsService) Override(_, _ string) error { return m.err }

func (m *mockSettingsService) Keys() []string { return nil }

func (m *mockSettingsService) IsSecret(_ string) bool { return false }

func (m *mockSettingsService) ValidateEmbeddingConfig(_ context.Context) error { return m.err }

func sampleResult() *domain.KnowledgeGraphResult {
	return &domain.KnowledgeGraphResult{
		Entities: []domain.Entity{
			{Name: "Alice", Type: domain.EntityTypePerson},
			{Name: "Acme", Type: domain.EntityTypeOrganization},
		},
		Relationships: []domain.Relationship{
			{Source: "Alice", Target: "Acme", Label: "WORKS_AT"},
		},
		Metadata: domain.Metadata{domain.MetaSource: "graph"},
	}
}
