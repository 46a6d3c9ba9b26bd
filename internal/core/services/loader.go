package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/custodia-labs/graphloom/internal/core/domain"
	"github.com/custodia-labs/graphloom/internal/core/ports/driven"
	"github.com/custodia-labs/graphloom/internal/core/ports/driving"
	"github.com/custodia-labs/graphloom/internal/logger"
)

// Ensure LoaderService implements the interface.
var _ driving.LoaderService = (*LoaderService)(nil)

// Default result sizes for the non-graph backends.
const (
	DefaultVectorLimit = 20
	DefaultAuditLimit  = 50
)

// Operation names reported to the metrics recorder.
const (
	opLoadBySource   = "load_by_source"
	opLoadByType     = "load_by_type"
	opLoadBySearch   = "load_by_search"
	opLoadSubgraph   = "load_subgraph"
	opShardedSearch  = "sharded_search"
	opInitializeView = "initialize"
)

// LoaderService answers graph queries across the graph, vector and audit backends.
type LoaderService struct {
	settings    driven.SettingsProvider
	graph       driven.GraphStore
	vector      driven.VectorStore
	audit       driven.AuditStore
	discovery   driving.DiscoveryService
	normalizer  *Normalizer
	coordinator *Coordinator
	telemetry   driven.Telemetry
	metrics     driven.MetricsRecorder
	now         func() time.Time
}

// NewLoaderService creates a loader.
// vector, audit, discovery and telemetry may be nil.
func NewLoaderService(
	settings driven.SettingsProvider,
	graph driven.GraphStore,
	vector driven.VectorStore,
	audit driven.AuditStore,
	discovery driving.DiscoveryService,
	telemetry driven.Telemetry,
) *LoaderService {
	normalizer := NewNormalizer(telemetry)
	return &LoaderService{
		settings:    settings,
		graph:       graph,
		vector:      vector,
		audit:       audit,
		discovery:   discovery,
		normalizer:  normalizer,
		coordinator: NewCoordinator(graph, vector, audit, discovery, normalizer, telemetry),
		telemetry:   telemetry,
		now:         time.Now,
	}
}

// SetMetrics sets the recorder for operation timings and shard outcomes.
func (s *LoaderService) SetMetrics(m driven.MetricsRecorder) {
	s.metrics = m
	s.coordinator.SetMetrics(m)
}

// LoadBySource reads from one backend, or tries graph, vector and audit
// in order for LoadSourceAuto, stopping at the first non-empty result.
func (s *LoaderService) LoadBySource(
	ctx context.Context, source domain.LoadSource, opts domain.LoadOptions,
) (result *domain.KnowledgeGraphResult, err error) {
	if source == "" {
		source = domain.LoadSourceAuto
	}
	if !source.IsValid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnsupportedSource, source)
	}
	done := s.timeOp(opLoadBySource)
	defer func() { done(err == nil && result != nil) }()

	snap, reachable, err := s.prepare(ctx)
	if err != nil {
		return nil, err
	}
	logger.Debug("Load by source: %s (mode=%s)", source, snap.Mode)

	load := func(b domain.Backend) *domain.KnowledgeGraphResult {
		switch b {
		case domain.BackendGraph:
			return s.loadGraph(ctx, snap, domain.GraphQuery{
				Limit:       opts.Limit,
				EntityTypes: opts.EntityTypes,
				SearchQuery: opts.Query,
			})
		case domain.BackendVector:
			return s.loadVector(ctx, snap, opts.Query, opts.Limit)
		default:
			return s.loadAudit(ctx, snap, reachable, opts.Query, opts.Limit)
		}
	}

	if source != domain.LoadSourceAuto {
		result = load(domain.Backend(source))
	} else {
		for _, b := range domain.Backends() {
			result = load(b)
			if !result.IsEmpty() {
				break
			}
			s.emit(domain.LevelInfo, "auto load: backend empty, trying next", map[string]any{"backend": string(b)})
		}
	}

	return withViewType(result, opts.ViewType), nil
}

// LoadByEntityType loads graph nodes of the given types; no types means all.
func (s *LoaderService) LoadByEntityType(
	ctx context.Context, types []domain.EntityType, limit int,
) (result *domain.KnowledgeGraphResult, err error) {
	for _, t := range types {
		if !t.IsValid() {
			return nil, fmt.Errorf("%w: unknown entity type %q", domain.ErrInvalidInput, t)
		}
	}
	done := s.timeOp(opLoadByType)
	defer func() { done(err == nil && result != nil) }()

	snap, _, err := s.prepare(ctx)
	if err != nil {
		return nil, err
	}
	return s.loadGraph(ctx, snap, domain.GraphQuery{Limit: limit, EntityTypes: types}), nil
}

// LoadBySearch loads graph nodes whose names contain query, falling back
// to vector search when the graph returns nothing.
func (s *LoaderService) LoadBySearch(
	ctx context.Context, query string, limit int,
) (result *domain.KnowledgeGraphResult, err error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: empty search query", domain.ErrInvalidInput)
	}
	done := s.timeOp(opLoadBySearch)
	defer func() { done(err == nil && result != nil) }()

	snap, _, err := s.prepare(ctx)
	if err != nil {
		return nil, err
	}

	result = s.loadGraph(ctx, snap, domain.GraphQuery{Limit: limit, SearchQuery: query})
	if !result.IsEmpty() {
		return result, nil
	}

	s.emit(domain.LevelInfo, "graph search empty, falling back to vector", map[string]any{"query": query})
	if fallback := s.loadVector(ctx, snap, query, limit); fallback != nil {
		fallback.Metadata[domain.MetaFallback] = string(domain.BackendVector)
		return fallback, nil
	}
	return result, nil
}

// LoadCenteredSubgraph loads nodes within depth hops of center.
func (s *LoaderService) LoadCenteredSubgraph(
	ctx context.Context, center string, depth, maxNodes int,
) (result *domain.KnowledgeGraphResult, err error) {
	center = strings.TrimSpace(center)
	if center == "" {
		return nil, fmt.Errorf("%w: empty center entity", domain.ErrInvalidInput)
	}
	done := s.timeOp(opLoadSubgraph)
	defer func() { done(err == nil && result != nil) }()

	snap, _, err := s.prepare(ctx)
	if err != nil {
		return nil, err
	}
	return s.loadGraph(ctx, snap, domain.GraphQuery{
		Limit:        maxNodes,
		CenterEntity: center,
		Depth:        depth,
	}), nil
}

// ShardedSearch runs the coordinated vector, audit and graph topic search.
// The result is never nil; failing shards contribute nothing.
func (s *LoaderService) ShardedSearch(
	ctx context.Context, topic string, opts domain.ShardedSearchOptions,
) (result *domain.KnowledgeGraphResult, err error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, fmt.Errorf("%w: empty topic", domain.ErrInvalidInput)
	}
	done := s.timeOp(opShardedSearch)
	defer func() { done(err == nil && result != nil) }()

	snap, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	if opts.VectorLimit <= 0 {
		opts.VectorLimit = DefaultVectorLimit
	}
	if opts.AuditLimit <= 0 {
		opts.AuditLimit = DefaultAuditLimit
	}
	if opts.MaxNodes <= 0 {
		opts.MaxNodes = domain.DefaultGraphLimit
	}
	return s.coordinator.Search(ctx, snap, topic, opts), nil
}

// Initialize prepares the graph driver and loads an initial view of the
// preferred entity types, falling back to an auto load when they match nothing.
func (s *LoaderService) Initialize(
	ctx context.Context, preferredTypes []domain.EntityType, maxInitialNodes int,
) (result *domain.KnowledgeGraphResult, err error) {
	done := s.timeOp(opInitializeView)
	defer func() { done(err == nil && result != nil) }()

	if initErr := s.graph.Initialize(); initErr != nil {
		logger.Warn("Graph driver initialization failed: %v", initErr)
		s.emit(domain.LevelWarn, "graph driver initialization failed", errorDetail(initErr))
	}

	if len(preferredTypes) > 0 {
		result, err = s.LoadByEntityType(ctx, preferredTypes, maxInitialNodes)
		if err != nil {
			return nil, err
		}
		if !result.IsEmpty() {
			return result, nil
		}
	}

	return s.LoadBySource(ctx, domain.LoadSourceAuto, domain.LoadOptions{Limit: maxInitialNodes})
}

// snapshot reads settings once for the current operation.
func (s *LoaderService) snapshot(ctx context.Context) (domain.SettingsSnapshot, error) {
	snap, err := s.settings.Snapshot(ctx)
	if err != nil {
		return domain.SettingsSnapshot{}, fmt.Errorf("read settings: %w", err)
	}
	return snap, nil
}

// prepare reads settings and, in unified mode, discovers the gateway.
// reachable reports whether a gateway answered; it is always true in per-service mode.
func (s *LoaderService) prepare(ctx context.Context) (domain.SettingsSnapshot, bool, error) {
	snap, err := s.snapshot(ctx)
	if err != nil {
		return snap, false, err
	}
	if snap.Mode != domain.ConnectionModeUnified {
		return snap, true, nil
	}
	if s.discovery == nil {
		return snap, false, nil
	}
	gateway, ok := s.discovery.Discover(ctx, snap)
	if !ok {
		return snap, false, nil
	}
	return snap.WithGateway(gateway), true, nil
}

func (s *LoaderService) loadGraph(
	ctx context.Context, snap domain.SettingsSnapshot, q domain.GraphQuery,
) *domain.KnowledgeGraphResult {
	cfg := ResolveEndpoint(domain.BackendGraph, snap)
	q = q.WithDefaults()
	s.emit(domain.LevelDebug, "graph query issued", map[string]any{
		"endpoint": cfg.BaseURL,
		"limit":    q.Limit,
	})

	raw, err := s.graph.Query(ctx, cfg, q)
	if err != nil {
		s.backendFailed(domain.BackendGraph, err)
		return nil
	}
	result := s.normalizer.Normalize(raw, baseMetadata(domain.BackendGraph, snap, cfg))
	s.logResult(domain.BackendGraph, result)
	return result
}

func (s *LoaderService) loadVector(
	ctx context.Context, snap domain.SettingsSnapshot, text string, limit int,
) *domain.KnowledgeGraphResult {
	if s.vector == nil {
		return nil
	}
	if limit <= 0 {
		limit = DefaultVectorLimit
	}
	cfg := ResolveEndpoint(domain.BackendVector, snap)

	raw, err := s.vector.Search(ctx, cfg, vectorQuery(snap, cfg, text, limit))
	if err != nil {
		s.backendFailed(domain.BackendVector, err)
		return nil
	}
	result := s.normalizer.Normalize(raw, baseMetadata(domain.BackendVector, snap, cfg))
	s.logResult(domain.BackendVector, result)
	return result
}

func (s *LoaderService) loadAudit(
	ctx context.Context, snap domain.SettingsSnapshot, reachable bool, content string, limit int,
) *domain.KnowledgeGraphResult {
	if s.audit == nil {
		return nil
	}
	if !reachable {
		s.emit(domain.LevelWarn, "audit load skipped: no gateway in unified mode", map[string]any{
			"kind": domain.ErrUnavailable.Error(),
		})
		return nil
	}
	if limit <= 0 {
		limit = DefaultAuditLimit
	}
	cfg := ResolveEndpoint(domain.BackendAudit, snap)

	raw, err := s.audit.Query(ctx, cfg, domain.AuditQuery{
		Action:    domain.AuditActionQuery,
		Content:   strings.TrimSpace(content),
		Limit:     limit,
		StartDate: s.now().Add(-AuditHistoryWindow),
	})
	if err != nil {
		s.backendFailed(domain.BackendAudit, err)
		return nil
	}
	result := s.normalizer.Normalize(raw, baseMetadata(domain.BackendAudit, snap, cfg))
	s.logResult(domain.BackendAudit, result)
	return result
}

func (s *LoaderService) backendFailed(b domain.Backend, err error) {
	logger.Warn("%s backend failed: %v", b, err)
	s.emit(domain.LevelWarn, string(b)+" backend returned no result", errorDetail(err))
}

func (s *LoaderService) logResult(b domain.Backend, r *domain.KnowledgeGraphResult) {
	if r == nil {
		logger.Debug("%s: no result", b)
		return
	}
	logger.Debug("%s: %d entities, %d relationships", b, len(r.Entities), len(r.Relationships))
	s.emit(domain.LevelInfo, "query result", map[string]any{
		"backend":       string(b),
		"entities":      len(r.Entities),
		"relationships": len(r.Relationships),
	})
}

// timeOp starts timing an operation; call the returned func with the outcome.
func (s *LoaderService) timeOp(op string) func(success bool) {
	start := time.Now()
	return func(success bool) {
		if s.metrics != nil {
			s.metrics.ObserveOperation(op, success, time.Since(start).Seconds())
		}
	}
}

func (s *LoaderService) emit(level domain.Level, msg string, detail map[string]any) {
	if s.telemetry != nil {
		s.telemetry.Emit(domain.NewEvent(level, "loader", msg, detail))
	}
}

func vectorQuery(snap domain.SettingsSnapshot, cfg domain.EndpointConfig, text string, limit int) domain.VectorQuery {
	embedding := snap.Embedding
	if embedding.Model == "" {
		embedding.Model = cfg.EmbeddingModel
	}
	return domain.VectorQuery{
		Text:       strings.TrimSpace(text),
		Collection: cfg.Collection,
		VectorName: cfg.VectorName,
		Dimension:  cfg.Dimension,
		Limit:      limit,
		Embedding:  embedding,
	}
}

func baseMetadata(b domain.Backend, snap domain.SettingsSnapshot, cfg domain.EndpointConfig) domain.Metadata {
	return domain.Metadata{
		domain.MetaSource:         string(b),
		domain.MetaConnectionMode: string(snap.Mode),
		domain.MetaEndpoint:       cfg.BaseURL,
	}
}

func errorDetail(err error) map[string]any {
	var be *domain.BackendError
	if errors.As(err, &be) {
		return be.Detail()
	}
	return map[string]any{"error": err.Error()}
}

func withViewType(r *domain.KnowledgeGraphResult, viewType string) *domain.KnowledgeGraphResult {
	if r != nil && viewType != "" {
		r.Metadata[domain.MetaViewType] = viewType
	}
	return r
}
