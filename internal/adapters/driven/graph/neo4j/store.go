package neo4j

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/custodia-labs/graphloom/internal/core/domain"
	"github.com/custodia-labs/graphloom/internal/core/ports/driven"
	"github.com/custodia-labs/graphloom/internal/logger"
)

// Ensure Store implements the interface.
var _ driven.GraphStore = (*Store)(nil)

// Timeouts and ports.
const (
	DefaultVerifyTimeout = 5 * time.Second
	diagnosticTimeout    = 2 * time.Second
	httpPort             = "7474"
)

// Store runs read queries in a fresh session per call.
type Store struct {
	provider      *DriverProvider
	telemetry     driven.Telemetry
	verifyTimeout time.Duration

	// ping probes the HTTP port after a connection failure; result discarded.
	ping func(ctx context.Context, host string)
}

// NewStore creates a graph store. telemetry may be nil.
func NewStore(provider *DriverProvider, telemetry driven.Telemetry) *Store {
	if provider == nil {
		provider = NewDriverProvider()
	}
	return &Store{
		provider:      provider,
		telemetry:     telemetry,
		verifyTimeout: DefaultVerifyTimeout,
		ping:          pingHTTP,
	}
}

// Initialize prepares the driver provider.
func (s *Store) Initialize() error {
	return s.provider.Initialize()
}

// IsReady reports whether the driver provider is initialized.
func (s *Store) IsReady() bool {
	return s.provider.IsReady()
}

// Close releases the memoized driver.
func (s *Store) Close(ctx context.Context) error {
	return s.provider.Close(ctx)
}

// Query verifies connectivity, then reads nodes and the relationships
// between them. Any failure discards partial data.
func (s *Store) Query(ctx context.Context, cfg domain.EndpointConfig, q domain.GraphQuery) (*domain.RawResult, error) {
	q = q.WithDefaults()
	s.emit(domain.LevelDebug, "connect attempt", map[string]any{"endpoint": cfg.BaseURL})

	driver, err := s.provider.Driver(cfg)
	if err != nil {
		return nil, s.fail(cfg, domain.NewBackendError(domain.ErrConnection, domain.BackendGraph, "connect", err))
	}

	verifyCtx, cancel := context.WithTimeout(ctx, s.verifyTimeout)
	err = driver.VerifyConnectivity(verifyCtx)
	cancel()
	if err != nil {
		return nil, s.fail(cfg, classify("verify", err))
	}
	s.emit(domain.LevelDebug, "connect success", map[string]any{"endpoint": cfg.BaseURL})

	session := driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeRead,
		DatabaseName: cfg.Database,
	})
	defer session.Close(ctx)

	nodeCypher, nodeParams := BuildNodeQuery(q)
	logger.Debug("Graph: node query limit=%d types=%v search=%q center=%q ids=%d",
		q.Limit, q.EntityTypes, q.SearchQuery, q.CenterEntity, len(q.Identifiers))
	s.emit(domain.LevelDebug, "query issued", map[string]any{"endpoint": cfg.BaseURL, "limit": q.Limit})

	nodes, err := readNodes(ctx, session, nodeCypher, nodeParams)
	if err != nil {
		return nil, s.fail(cfg, classify("query", err))
	}

	payload := &domain.GraphPayload{Nodes: nodes}
	if len(nodes) > 0 {
		ids := make([]string, len(nodes))
		for i, n := range nodes {
			ids[i] = n.ElementID
		}
		relCypher, relParams := BuildRelationshipQuery(ids, q.ConnectionLimit(len(nodes)))
		payload.Edges, err = readEdges(ctx, session, relCypher, relParams)
		if err != nil {
			return nil, s.fail(cfg, classify("relationships", err))
		}
	}

	logger.Debug("Graph: %d nodes, %d edges", len(payload.Nodes), len(payload.Edges))
	s.emit(domain.LevelInfo, "query result", map[string]any{
		"nodes": len(payload.Nodes),
		"edges": len(payload.Edges),
	})

	return &domain.RawResult{
		Variant: domain.VariantGraph,
		Data:    payload,
		Metadata: domain.Metadata{
			domain.MetaTransport: "bolt",
			domain.MetaEndpoint:  cfg.BaseURL,
		},
	}, nil
}

func readNodes(ctx context.Context, session neo4j.SessionWithContext, cypher string, params map[string]any) ([]domain.GraphNode, error) {
	result, err := session.Run(ctx, cypher, params)
	if err != nil {
		return nil, err
	}
	var nodes []domain.GraphNode
	for result.Next(ctx) {
		if n, ok := nodeFromRecord(result.Record()); ok {
			nodes = append(nodes, n)
		}
	}
	return nodes, result.Err()
}

func readEdges(ctx context.Context, session neo4j.SessionWithContext, cypher string, params map[string]any) ([]domain.GraphEdge, error) {
	result, err := session.Run(ctx, cypher, params)
	if err != nil {
		return nil, err
	}
	var edges []domain.GraphEdge
	for result.Next(ctx) {
		if e, ok := edgeFromRecord(result.Record()); ok {
			edges = append(edges, e)
		}
	}
	return edges, result.Err()
}

// nodeFromRecord reads the "n" column.
func nodeFromRecord(rec *neo4j.Record) (domain.GraphNode, bool) {
	if rec == nil {
		return domain.GraphNode{}, false
	}
	v, ok := rec.Get("n")
	if !ok {
		return domain.GraphNode{}, false
	}
	node, ok := v.(neo4j.Node)
	if !ok {
		return domain.GraphNode{}, false
	}
	return domain.GraphNode{
		ElementID:  node.ElementId,
		Labels:     node.Labels,
		Properties: node.Props,
	}, true
}

// edgeFromRecord reads the source, target, type and props columns.
func edgeFromRecord(rec *neo4j.Record) (domain.GraphEdge, bool) {
	if rec == nil {
		return domain.GraphEdge{}, false
	}
	m := rec.AsMap()
	source, _ := m["source"].(string)
	target, _ := m["target"].(string)
	relType, _ := m["type"].(string)
	props, _ := m["props"].(map[string]any)
	if source == "" || target == "" {
		return domain.GraphEdge{}, false
	}
	return domain.GraphEdge{Source: source, Target: target, Type: relType, Properties: props}, true
}

// classify maps a driver error to a BackendError, carrying the server code.
func classify(op string, err error) *domain.BackendError {
	be := domain.ClassifyError(domain.BackendGraph, op, err)
	var neoErr *neo4j.Neo4jError
	if errors.As(err, &neoErr) {
		be.Code = neoErr.Code
	}
	return be
}

func (s *Store) fail(cfg domain.EndpointConfig, err *domain.BackendError) error {
	logger.Warn("Graph: %v", err)
	s.emit(domain.LevelWarn, "graph query failed", err.Detail())

	if err.Op == "connect" || err.Op == "verify" {
		if host := hostOf(cfg.BaseURL); host != "" && s.ping != nil {
			ctx, cancel := context.WithTimeout(context.Background(), diagnosticTimeout)
			s.ping(ctx, host)
			cancel()
		}
	}
	return err
}

func (s *Store) emit(level domain.Level, msg string, detail map[string]any) {
	if s.telemetry != nil {
		s.telemetry.Emit(domain.NewEvent(level, "graph", msg, detail))
	}
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

// pingHTTP checks whether the database's HTTP port answers, to tell
// "database down" from "Bolt blocked" in verbose output.
func pingHTTP(ctx context.Context, host string) {
	target := fmt.Sprintf("http://%s/", net.JoinHostPort(host, httpPort))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		logger.Debug("Graph: diagnostic ping %s failed: %v", target, err)
		return
	}
	_ = resp.Body.Close()
	logger.Debug("Graph: diagnostic ping %s returned %d", target, resp.StatusCode)
}
