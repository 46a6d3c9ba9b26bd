package cli

import (
	"bytes"
	"context"
	"testing"

	"github.com/custodia-labs/graphloom/internal/core/domain"
)

// mockLoaderService records the last call and returns a canned result.
type mockLoaderService struct {
	result *domain.KnowledgeGraphResult
	err    error

	calls     []string
	source    domain.LoadSource
	opts      domain.LoadOptions
	types     []domain.EntityType
	query     string
	depth     int
	limit     int
	shardOpts domain.ShardedSearchOptions
}

func (m *mockLoaderService) LoadBySource(
	_ context.Context,
	source domain.LoadSource,
	opts domain.LoadOptions,
) (*domain.KnowledgeGraphResult, error) {
	m.calls = append(m.calls, "LoadBySource")
	m.source, m.opts = source, opts
	return m.result, m.err
}

func (m *mockLoaderService) LoadByEntityType(
	_ context.Context,
	types []domain.EntityType,
	limit int,
) (*domain.KnowledgeGraphResult, error) {
	m.calls = append(m.calls, "LoadByEntityType")
	m.types, m.limit = types, limit
	return m.result, m.err
}

func (m *mockLoaderService) LoadBySearch(_ context.Context, query string, limit int) (*domain.KnowledgeGraphResult, error) {
	m.calls = append(m.calls, "LoadBySearch")
	m.query, m.limit = query, limit
	return m.result, m.err
}

func (m *mockLoaderService) LoadCenteredSubgraph(
	_ context.Context,
	center string,
	depth, maxNodes int,
) (*domain.KnowledgeGraphResult, error) {
	m.calls = append(m.calls, "LoadCenteredSubgraph")
	m.query, m.depth, m.limit = center, depth, maxNodes
	return m.result, m.err
}

func (m *mockLoaderService) ShardedSearch(
	_ context.Context,
	topic string,
	opts domain.ShardedSearchOptions,
) (*domain.KnowledgeGraphResult, error) {
	m.calls = append(m.calls, "ShardedSearch")
	m.query, m.shardOpts = topic, opts
	return m.result, m.err
}

func (m *mockLoaderService) Initialize(
	_ context.Context,
	preferred []domain.EntityType,
	maxNodes int,
) (*domain.KnowledgeGraphResult, error) {
	m.calls = append(m.calls, "Initialize")
	m.types, m.limit = preferred, maxNodes
	return m.result, m.err
}

// mockSettingsService serves a fixed snapshot and records Set calls.
type mockSettingsService struct {
	snapshot    domain.SettingsSnapshot
	resolved    map[domain.Backend]domain.EndpointConfig
	keys        []string
	secrets     map[string]bool
	validateErr error
	err         error

	set       map[string]string
	overrides map[string]string
}

func (m *mockSettingsService) Snapshot(_ context.Context) (domain.SettingsSnapshot, error) {
	return m.snapshot, m.err
}

func (m *mockSettingsService) Resolved(_ context.Context) (map[domain.Backend]domain.EndpointConfig, error) {
	out := make(map[domain.Backend]domain.EndpointConfig, len(m.resolved))
	for k, v := range m.resolved {
		out[k] = v
	}
	return out, m.err
}

func (m *mockSettingsService) Set(key, value string) error {
	if m.err != nil {
		return m.err
	}
	if m.set == nil {
		m.set = map[string]string{}
	}
	m.set[key] = value
	return nil
}

func (m *mockSettingsService) Override(key, value string) error {
	if m.overrides == nil {
		m.overrides = map[string]string{}
	}
	m.overrides[key] = value
	return m.err
}

func (m *mockSettingsService) Keys() []string { return m.keys }

func (m *mockSettingsService) IsSecret(key string) bool { return m.secrets[key] }

func (m *mockSettingsService) ValidateEmbeddingConfig(_ context.Context) error { return m.validateErr }

// mockDiscoveryService returns a fixed probe outcome.
type mockDiscoveryService struct {
	candidates []string
	found      string
}

func (m *mockDiscoveryService) Discover(_ context.Context, _ domain.SettingsSnapshot) (string, bool) {
	return m.found, m.found != ""
}

func (m *mockDiscoveryService) Candidates(_ domain.SettingsSnapshot) []string {
	return m.candidates
}

// execute runs the root command with args and returns everything it printed.
// Services and flag state are reset when the test ends.
func execute(t *testing.T, s Services, args ...string) (string, error) {
	t.Helper()
	SetServices(s)

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		SetServices(Services{})
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
		resetFlags()
	})

	err := rootCmd.Execute()
	return buf.String(), err
}

func resetFlags() {
	verbose, jsonOutput, metricsAddr, insecureVector = false, false, "", false
	loadSource, loadLimit, loadQuery, loadTypes, loadView = string(domain.LoadSourceAuto), domain.DefaultGraphLimit, "", nil, ""
	typesLimit, searchLimit = domain.DefaultGraphLimit, domain.DefaultGraphLimit
	subgraphDepth, subgraphMaxNodes = domain.DefaultSubgraphDepth, domain.DefaultGraphLimit

	defaults := domain.DefaultShardedSearchOptions()
	shardNoVector, shardNoAudit = false, false
	shardVectorLimit, shardAuditLimit, shardMaxNodes = defaults.VectorLimit, defaults.AuditLimit, defaults.MaxNodes
	shardFloor, shardView = 0, defaults.ViewType
	initTypes, initMaxNodes = nil, domain.DefaultGraphLimit
}

func sampleResult() *domain.KnowledgeGraphResult {
	return &domain.KnowledgeGraphResult{
		Entities: []domain.Entity{
			{Name: "Alice", Type: domain.EntityTypePerson, Provenance: domain.ProvenanceUUIDCoordinated},
			{Name: "Acme", Type: domain.EntityTypeOrganization, Description: "A company"},
		},
		Relationships: []domain.Relationship{
			{Source: "Alice", Target: "Acme", Label: "WORKS_AT"},
		},
		Metadata: domain.Metadata{domain.MetaSource: "graph"},
	}
}
