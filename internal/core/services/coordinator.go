package services

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/custodia-labs/graphloom/internal/core/domain"
	"github.com/custodia-labs/graphloom/internal/core/ports/driven"
	"github.com/custodia-labs/graphloom/internal/core/ports/driving"
	"github.com/custodia-labs/graphloom/internal/logger"
)

// DefaultWideningFloor is the coordinated entity count below which sharded
// search issues one extra full-text graph search. Empirical, not a domain rule;
// override per call or with the search.widening_floor setting.
const DefaultWideningFloor = 10

// Sharded search time bounds.
const (
	DefaultShardTimeout = 5 * time.Second
	AuditHistoryWindow  = 30 * 24 * time.Hour
)

// Shard outcomes reported to the metrics recorder.
const (
	shardHit     = "hit"
	shardEmpty   = "empty"
	shardFailed  = "failed"
	shardSkipped = "skipped"
)

// Coordinator answers topic queries by combining vector, audit and graph signal.
type Coordinator struct {
	graph      driven.GraphStore
	vector     driven.VectorStore
	audit      driven.AuditStore
	discovery  driving.DiscoveryService
	normalizer *Normalizer
	telemetry  driven.Telemetry
	metrics    driven.MetricsRecorder

	shardTimeout time.Duration
	now          func() time.Time
}

// NewCoordinator creates a sharded search coordinator.
// vector, audit, discovery, telemetry may be nil; missing shards contribute nothing.
func NewCoordinator(
	graph driven.GraphStore,
	vector driven.VectorStore,
	audit driven.AuditStore,
	discovery driving.DiscoveryService,
	normalizer *Normalizer,
	telemetry driven.Telemetry,
) *Coordinator {
	if normalizer == nil {
		normalizer = NewNormalizer(telemetry)
	}
	return &Coordinator{
		graph:        graph,
		vector:       vector,
		audit:        audit,
		discovery:    discovery,
		normalizer:   normalizer,
		telemetry:    telemetry,
		shardTimeout: DefaultShardTimeout,
		now:          time.Now,
	}
}

// SetMetrics sets the recorder for shard outcomes.
func (c *Coordinator) SetMetrics(m driven.MetricsRecorder) {
	c.metrics = m
}

// shardResult is one shard's normalized contribution.
type shardResult struct {
	result *domain.KnowledgeGraphResult
	ids    map[string]bool
}

// Search runs the staged protocol:
//  1. vector shard and 2. audit shard, concurrently, each time-boxed;
//  3. coordination against the graph by topic or collected identifiers;
//  4. one full-text widening search when coordination yields too few entities.
//
// Stages 3-4 run only when a gateway is reachable. Shard failures are
// logged and contribute nothing; the search itself never fails.
func (c *Coordinator) Search(
	ctx context.Context, snap domain.SettingsSnapshot, topic string, opts domain.ShardedSearchOptions,
) *domain.KnowledgeGraphResult {
	logger.Section("Sharded Search")
	topic = strings.TrimSpace(topic)
	floor := c.wideningFloor(snap, opts)
	logger.Debug("Topic: %q, vector=%t, audit=%t, floor=%d", topic, opts.UseVector, opts.UseAudit, floor)

	var (
		wg         sync.WaitGroup
		gateway    string
		reachable  bool
		discovered = make(chan struct{})
		vectorPart shardResult
		auditPart  shardResult
	)

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(discovered)
		if c.discovery != nil {
			gateway, reachable = c.discovery.Discover(ctx, snap)
		}
	}()

	if opts.UseVector {
		wg.Add(1)
		go func() {
			defer wg.Done()
			vectorSnap, ok := c.shardSnapshot(snap, "vector", discovered, &gateway, &reachable)
			if !ok {
				return
			}
			vectorPart = c.vectorShard(ctx, vectorSnap, topic, opts)
		}()
	} else {
		c.recordShard("vector", shardSkipped)
	}

	if opts.UseAudit {
		wg.Add(1)
		go func() {
			defer wg.Done()
			auditSnap, ok := c.shardSnapshot(snap, "audit", discovered, &gateway, &reachable)
			if !ok {
				return
			}
			auditPart = c.auditShard(ctx, auditSnap, topic, opts)
		}()
	} else {
		c.recordShard("audit", shardSkipped)
	}

	wg.Wait()

	merged := newResultMerger()
	coordinatedSnap := snap
	if reachable {
		coordinatedSnap = snap.WithGateway(gateway)
	}

	widened := false
	if reachable {
		union := unionIDs(vectorPart.ids, auditPart.ids)

		coordinatedCount := 0
		if len(union) > 0 {
			coordinated := c.coordinate(ctx, coordinatedSnap, topic, union, vectorPart.ids, auditPart.ids, opts)
			coordinatedCount = merged.add(coordinated)
		}
		logger.Debug("Coordination: %d identifiers, %d entities", len(union), coordinatedCount)

		if coordinatedCount < floor {
			widened = true
			c.emit(domain.LevelInfo, "fallback widening triggered", map[string]any{
				"coordinated": coordinatedCount,
				"floor":       floor,
			})
			merged.addNewIdentifiers(c.widen(ctx, coordinatedSnap, topic, opts))
		}
	} else {
		logger.Warn("Sharded search: no reachable gateway, skipping coordination")
		c.emit(domain.LevelWarn, "coordination skipped: no reachable gateway", nil)
	}

	merged.add(vectorPart.result)
	merged.add(auditPart.result)

	result := merged.result()
	result.Metadata = domain.Metadata{
		domain.MetaSource:         domain.SourceShardedSearch,
		domain.MetaTimestamp:      c.now().UTC().Format(time.RFC3339),
		domain.MetaConnectionMode: string(snap.Mode),
		domain.MetaEndpoint:       gateway,
		domain.MetaQuery:          topic,
		domain.MetaViewType:       opts.ViewType,
		domain.MetaVectorHits:     entityCount(vectorPart.result),
		domain.MetaAuditHits:      entityCount(auditPart.result),
		"coordinated":             reachable,
		"widened":                 widened,
	}
	result.RecomputeCounts()

	logger.Info("Sharded search: %d entities, %d relationships", len(result.Entities), len(result.Relationships))
	return result
}

// shardSnapshot returns the snapshot a shard should resolve against. In
// unified mode it blocks until discovery finishes and routes the shard
// through the gateway; ok is false when no gateway answered.
func (c *Coordinator) shardSnapshot(
	snap domain.SettingsSnapshot, shard string, discovered <-chan struct{}, gateway *string, reachable *bool,
) (domain.SettingsSnapshot, bool) {
	if snap.Mode != domain.ConnectionModeUnified {
		return snap, true
	}
	<-discovered
	if !*reachable {
		c.emit(domain.LevelWarn, shard+" shard skipped: no gateway in unified mode", map[string]any{
			"kind": domain.ErrUnavailable.Error(),
		})
		c.recordShard(shard, shardSkipped)
		return snap, false
	}
	return snap.WithGateway(*gateway), true
}

func (c *Coordinator) wideningFloor(snap domain.SettingsSnapshot, opts domain.ShardedSearchOptions) int {
	if opts.WideningFloor > 0 {
		return opts.WideningFloor
	}
	if snap.WideningFloor > 0 {
		return snap.WideningFloor
	}
	return DefaultWideningFloor
}

func (c *Coordinator) vectorShard(
	ctx context.Context, snap domain.SettingsSnapshot, topic string, opts domain.ShardedSearchOptions,
) shardResult {
	if c.vector == nil {
		c.recordShard("vector", shardSkipped)
		return shardResult{}
	}

	cfg := ResolveEndpoint(domain.BackendVector, snap)
	shardCtx, cancel := context.WithTimeout(ctx, c.shardTimeout)
	defer cancel()

	raw, err := c.vector.Search(shardCtx, cfg, vectorQuery(snap, cfg, topic, opts.VectorLimit))
	if err != nil {
		c.shardFailed("vector", err)
		return shardResult{}
	}

	res := c.normalizer.Normalize(raw, baseMetadata(domain.BackendVector, snap, cfg))
	return c.tagShard("vector", res, domain.ProvenanceVectorSemantic, true, false)
}

func (c *Coordinator) auditShard(
	ctx context.Context, snap domain.SettingsSnapshot, topic string, opts domain.ShardedSearchOptions,
) shardResult {
	if c.audit == nil {
		c.recordShard("audit", shardSkipped)
		return shardResult{}
	}

	cfg := ResolveEndpoint(domain.BackendAudit, snap)
	shardCtx, cancel := context.WithTimeout(ctx, c.shardTimeout)
	defer cancel()

	raw, err := c.audit.Query(shardCtx, cfg, domain.AuditQuery{
		Action:    domain.AuditActionQuery,
		Content:   topic,
		Limit:     opts.AuditLimit,
		StartDate: c.now().Add(-AuditHistoryWindow),
	})
	if err != nil {
		c.shardFailed("audit", err)
		return shardResult{}
	}

	res := c.normalizer.Normalize(raw, baseMetadata(domain.BackendAudit, snap, cfg))
	return c.tagShard("audit", res, domain.ProvenanceAuditActivity, false, true)
}

func (c *Coordinator) tagShard(
	shard string, res *domain.KnowledgeGraphResult, prov domain.Provenance, vectorMatch, auditMatch bool,
) shardResult {
	if res.IsEmpty() {
		c.recordShard(shard, shardEmpty)
		return shardResult{result: res}
	}

	ids := make(map[string]bool)
	for i := range res.Entities {
		e := &res.Entities[i]
		e.Provenance = prov
		e.VectorMatch = e.VectorMatch || vectorMatch
		e.AuditMatch = e.AuditMatch || auditMatch
		if e.Identifier != "" {
			ids[e.Identifier] = true
		}
	}

	logger.Debug("%s shard: %d entities, %d identifiers", shard, len(res.Entities), len(ids))
	c.recordShard(shard, shardHit)
	return shardResult{result: res, ids: ids}
}

// coordinate queries the graph for the topic or any collected identifier plus one hop.
func (c *Coordinator) coordinate(
	ctx context.Context,
	snap domain.SettingsSnapshot,
	topic string,
	union, vectorIDs, auditIDs map[string]bool,
	opts domain.ShardedSearchOptions,
) *domain.KnowledgeGraphResult {
	cfg := ResolveEndpoint(domain.BackendGraph, snap)
	stageCtx, cancel := context.WithTimeout(ctx, c.shardTimeout)
	defer cancel()

	raw, err := c.graph.Query(stageCtx, cfg, domain.GraphQuery{
		SearchQuery: topic,
		Identifiers: sortedKeys(union),
		Limit:       opts.MaxNodes,
	})
	if err != nil {
		c.shardFailed("graph", err)
		return nil
	}

	res := c.normalizer.Normalize(raw, baseMetadata(domain.BackendGraph, snap, cfg))
	if res == nil {
		return nil
	}
	for i := range res.Entities {
		e := &res.Entities[i]
		if e.Identifier != "" && union[e.Identifier] {
			e.Provenance = domain.ProvenanceUUIDCoordinated
		} else {
			e.Provenance = domain.ProvenanceConnected
		}
		e.VectorMatch = vectorIDs[e.Identifier]
		e.AuditMatch = auditIDs[e.Identifier]
	}
	return res
}

// widen runs one unfiltered full-text graph search on the topic.
func (c *Coordinator) widen(
	ctx context.Context, snap domain.SettingsSnapshot, topic string, opts domain.ShardedSearchOptions,
) *domain.KnowledgeGraphResult {
	cfg := ResolveEndpoint(domain.BackendGraph, snap)
	stageCtx, cancel := context.WithTimeout(ctx, c.shardTimeout)
	defer cancel()

	raw, err := c.graph.Query(stageCtx, cfg, domain.GraphQuery{
		SearchQuery: topic,
		Limit:       opts.MaxNodes,
	})
	if err != nil {
		c.shardFailed("graph", err)
		return nil
	}

	res := c.normalizer.Normalize(raw, baseMetadata(domain.BackendGraph, snap, cfg))
	if res == nil {
		return nil
	}
	for i := range res.Entities {
		res.Entities[i].Provenance = domain.ProvenanceTextSearch
	}
	return res
}

func (c *Coordinator) shardFailed(shard string, err error) {
	logger.Warn("%s shard failed: %v", shard, err)
	c.emit(domain.LevelWarn, shard+" shard failed, continuing without it", errorDetail(err))
	c.recordShard(shard, shardFailed)
}

func (c *Coordinator) recordShard(shard, outcome string) {
	if c.metrics != nil {
		c.metrics.IncShard(shard, outcome)
	}
}

func (c *Coordinator) emit(level domain.Level, msg string, detail map[string]any) {
	if c.telemetry != nil {
		c.telemetry.Emit(domain.NewEvent(level, "sharded-search", msg, detail))
	}
}

// resultMerger accumulates entities de-duplicated by name and
// relationships de-duplicated by (source, target, label).
type resultMerger struct {
	entities      []domain.Entity
	relationships []domain.Relationship
	names         map[string]bool
	identifiers   map[string]bool
	edges         map[domain.Relationship]bool
}

func newResultMerger() *resultMerger {
	return &resultMerger{
		names:       make(map[string]bool),
		identifiers: make(map[string]bool),
		edges:       make(map[domain.Relationship]bool),
	}
}

// add merges every entity whose name is new and returns how many were added.
func (m *resultMerger) add(r *domain.KnowledgeGraphResult) int {
	if r == nil {
		return 0
	}
	added := 0
	for _, e := range r.Entities {
		if m.addEntity(e) {
			added++
		}
	}
	m.addRelationships(r.Relationships)
	return added
}

// addNewIdentifiers merges entities whose identifier (or name, when they
// have none) has not been seen yet. Relationships are kept only when both
// endpoints are merged entities.
func (m *resultMerger) addNewIdentifiers(r *domain.KnowledgeGraphResult) {
	if r == nil {
		return
	}
	for _, e := range r.Entities {
		if e.Identifier != "" && m.identifiers[e.Identifier] {
			continue
		}
		m.addEntity(e)
	}
	rels := make([]domain.Relationship, 0, len(r.Relationships))
	for _, rel := range r.Relationships {
		if m.names[rel.Source] && m.names[rel.Target] {
			rels = append(rels, rel)
		}
	}
	m.addRelationships(rels)
}

func (m *resultMerger) addEntity(e domain.Entity) bool {
	if m.names[e.Name] {
		return false
	}
	m.names[e.Name] = true
	if e.Identifier != "" {
		m.identifiers[e.Identifier] = true
	}
	m.entities = append(m.entities, e)
	return true
}

func (m *resultMerger) addRelationships(rels []domain.Relationship) {
	for _, r := range rels {
		key := domain.Relationship{Source: r.Source, Target: r.Target, Label: r.Label}
		if m.edges[key] {
			continue
		}
		m.edges[key] = true
		m.relationships = append(m.relationships, r)
	}
}

func (m *resultMerger) result() *domain.KnowledgeGraphResult {
	return &domain.KnowledgeGraphResult{
		Entities:      append([]domain.Entity{}, m.entities...),
		Relationships: append([]domain.Relationship{}, m.relationships...),
	}
}

func unionIDs(sets ...map[string]bool) map[string]bool {
	out := make(map[string]bool)
	for _, s := range sets {
		for id := range s {
			out[id] = true
		}
	}
	return out
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func entityCount(r *domain.KnowledgeGraphResult) int {
	if r == nil {
		return 0
	}
	return len(r.Entities)
}
