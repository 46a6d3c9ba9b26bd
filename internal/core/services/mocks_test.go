package services

import (
	"context"
	"sync"

	"github.com/custodia-labs/graphloom/internal/core/domain"
	"github.com/custodia-labs/graphloom/internal/core/ports/driven"
)

// --- Mock implementations ---

// captureTelemetry implements driven.Telemetry and records every event.
type captureTelemetry struct {
	mu     sync.Mutex
	events []domain.Event
}

func (c *captureTelemetry) Emit(event domain.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
}

func (c *captureTelemetry) atLevel(level domain.Level) []domain.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []domain.Event
	for _, e := range c.events {
		if e.Level == level {
			out = append(out, e)
		}
	}
	return out
}

// warnings returns the messages of every warn-level event.
func (c *captureTelemetry) warnings() []string {
	var out []string
	for _, e := range c.atLevel(domain.LevelWarn) {
		out = append(out, e.Message)
	}
	return out
}

// mockGraphStore implements driven.GraphStore for testing.
// Responses are served in order; the last one repeats.
type mockGraphStore struct {
	mu        sync.Mutex
	responses []*domain.RawResult
	err       error
	queries   []domain.GraphQuery
	configs   []domain.EndpointConfig
	ready     bool
	initErr   error
}

func (m *mockGraphStore) Query(
	_ context.Context, cfg domain.EndpointConfig, q domain.GraphQuery,
) (*domain.RawResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queries = append(m.queries, q)
	m.configs = append(m.configs, cfg)
	if m.err != nil {
		return nil, m.err
	}
	if len(m.responses) == 0 {
		return nil, nil
	}
	idx := len(m.queries) - 1
	if idx >= len(m.responses) {
		idx = len(m.responses) - 1
	}
	return m.responses[idx], nil
}

func (m *mockGraphStore) Initialize() error {
	if m.initErr != nil {
		return m.initErr
	}
	m.ready = true
	return nil
}

func (m *mockGraphStore) IsReady() bool {
	return m.ready
}

func (m *mockGraphStore) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queries)
}

// mockVectorStore implements driven.VectorStore for testing.
type mockVectorStore struct {
	mu      sync.Mutex
	result  *domain.RawResult
	err     error
	block   bool
	queries []domain.VectorQuery
	configs []domain.EndpointConfig
}

func (m *mockVectorStore) Search(
	ctx context.Context, cfg domain.EndpointConfig, q domain.VectorQuery,
) (*domain.RawResult, error) {
	m.mu.Lock()
	m.queries = append(m.queries, q)
	m.configs = append(m.configs, cfg)
	m.mu.Unlock()
	if m.block {
		<-ctx.Done()
		return nil, domain.NewBackendError(domain.ErrTimeout, domain.BackendVector, "query", ctx.Err())
	}
	return m.result, m.err
}

func (m *mockVectorStore) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queries)
}

// mockAuditStore implements driven.AuditStore for testing.
type mockAuditStore struct {
	mu      sync.Mutex
	result  *domain.RawResult
	err     error
	queries []domain.AuditQuery
	configs []domain.EndpointConfig
}

func (m *mockAuditStore) Query(
	_ context.Context, cfg domain.EndpointConfig, q domain.AuditQuery,
) (*domain.RawResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queries = append(m.queries, q)
	m.configs = append(m.configs, cfg)
	return m.result, m.err
}

func (m *mockAuditStore) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queries)
}

// mockHealthChecker implements driven.HealthChecker for testing.
type mockHealthChecker struct {
	mu      sync.Mutex
	healthy map[string]bool
	probed  []string
}

func (m *mockHealthChecker) Check(_ context.Context, baseURL string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.probed = append(m.probed, baseURL)
	if m.healthy[baseURL] {
		return nil
	}
	return domain.NewBackendError(domain.ErrConnection, "gateway", "health", nil)
}

// mockSettingsProvider implements driven.SettingsProvider for testing.
type mockSettingsProvider struct {
	snap  domain.SettingsSnapshot
	err   error
	reads int
}

func (m *mockSettingsProvider) Snapshot(_ context.Context) (domain.SettingsSnapshot, error) {
	m.reads++
	return m.snap, m.err
}

// mockRecorder implements driven.MetricsRecorder for testing.
type mockRecorder struct {
	mu     sync.Mutex
	ops    map[string]int
	shards map[string]int
}

func newMockRecorder() *mockRecorder {
	return &mockRecorder{ops: map[string]int{}, shards: map[string]int{}}
}

func (m *mockRecorder) ObserveOperation(op string, _ bool, _ float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ops[op]++
}

func (m *mockRecorder) IncShard(shard, outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shards[shard+"/"+outcome]++
}

// mockEmbeddingService implements driven.EmbeddingService for testing.
type mockEmbeddingService struct {
	pingErr error
	closed  bool
}

func (m *mockEmbeddingService) Embed(_ context.Context, _ string) ([]float32, error) {
	return []float32{0.1, 0.2}, nil
}

func (m *mockEmbeddingService) Dimensions() int   { return 2 }
func (m *mockEmbeddingService) ModelName() string { return "mock-embed" }

func (m *mockEmbeddingService) Ping(_ context.Context) error {
	return m.pingErr
}

func (m *mockEmbeddingService) Close() error {
	m.closed = true
	return nil
}

// mockEmbeddingFactory implements driven.EmbeddingFactory for testing.
type mockEmbeddingFactory struct {
	service driven.EmbeddingService
	err     error
}

func (m *mockEmbeddingFactory) Create(_ domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	return m.service, m.err
}

// graphResult builds a raw graph payload from entity names.
func graphResult(nodes ...domain.GraphNode) *domain.RawResult {
	return &domain.RawResult{
		Variant: domain.VariantGraph,
		Data:    &domain.GraphPayload{Nodes: nodes},
	}
}

func node(name, identifier string) domain.GraphNode {
	props := map[string]any{"name": name, "type": "CONCEPT"}
	if identifier != "" {
		props["identifier"] = identifier
	}
	return domain.GraphNode{Labels: []string{"Entity"}, Properties: props}
}
