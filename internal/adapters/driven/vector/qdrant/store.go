package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/qdrant/go-client/qdrant"

	"github.com/custodia-labs/graphloom/internal/core/domain"
	"github.com/custodia-labs/graphloom/internal/core/ports/driven"
	"github.com/custodia-labs/graphloom/internal/logger"
)

// Ensure Store implements the interface.
var _ driven.VectorStore = (*Store)(nil)

const (
	// DefaultLimit applies when the query carries no limit.
	DefaultLimit = 20

	// minScrollFetch is the smallest page scrolled when a text filter applies.
	minScrollFetch = 100

	// scrollOverfetch multiplies the limit when a text filter applies.
	scrollOverfetch = 5

	maxResponseBytes = 16 << 20
)

// Store searches one Qdrant collection per call.
type Store struct {
	embeddings driven.EmbeddingFactory
	httpClient *http.Client
	telemetry  driven.Telemetry
	newClient  clientFactory
}

// NewStore creates a vector store. All arguments may be nil; without an
// embedding factory every search uses REST scroll.
func NewStore(embeddings driven.EmbeddingFactory, httpClient *http.Client, telemetry driven.Telemetry) *Store {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Store{
		embeddings: embeddings,
		httpClient: httpClient,
		telemetry:  telemetry,
		newClient:  newGRPCClient,
	}
}

// Search runs a similarity query over gRPC when the query has text and
// falls back to REST scroll on any gRPC failure.
func (s *Store) Search(ctx context.Context, cfg domain.EndpointConfig, q domain.VectorQuery) (*domain.RawResult, error) {
	if q.Limit <= 0 {
		q.Limit = DefaultLimit
	}
	if cfg.APIKey == "" {
		s.emit(domain.LevelWarn, "no API key configured, connecting unauthenticated",
			map[string]any{"endpoint": cfg.BaseURL})
	}

	if q.HasText() {
		points, meta, err := s.searchRPC(ctx, cfg, q)
		if err == nil {
			return s.result(cfg, q, points, meta), nil
		}
		logger.Debug("Vector: gRPC search failed: %v", err)
		detail := map[string]any{"endpoint": cfg.BaseURL}
		var be *domain.BackendError
		if errors.As(err, &be) {
			detail = be.Detail()
		}
		s.emit(domain.LevelWarn, "fallback triggered", detail)
	}

	points, err := s.scroll(ctx, cfg, q)
	if err != nil {
		var be *domain.BackendError
		if !errors.As(err, &be) {
			be = domain.ClassifyError(domain.BackendVector, "scroll", err)
		}
		s.emit(domain.LevelWarn, "vector search failed", be.Detail())
		return nil, be
	}
	return s.result(cfg, q, points, domain.Metadata{domain.MetaTransport: "rest"}), nil
}

// searchRPC embeds the query text and runs a nearest-neighbour query.
func (s *Store) searchRPC(
	ctx context.Context, cfg domain.EndpointConfig, q domain.VectorQuery,
) ([]domain.VectorPoint, domain.Metadata, error) {
	vec, err := s.embed(ctx, q)
	if err != nil {
		return nil, nil, err
	}

	grpcCfg, err := grpcConfig(cfg.BaseURL, cfg.APIKey, cfg.Insecure)
	if err != nil {
		return nil, nil, domain.NewBackendError(domain.ErrConnection, domain.BackendVector, "connect", err)
	}

	s.emit(domain.LevelDebug, "connect attempt", map[string]any{
		"host": grpcCfg.Host, "port": grpcCfg.Port, "tls": grpcCfg.UseTLS,
	})
	client, err := s.newClient(grpcCfg)
	if err != nil {
		return nil, nil, domain.NewBackendError(domain.ErrConnection, domain.BackendVector, "connect", err)
	}
	defer client.Close()

	info, err := client.GetCollectionInfo(ctx, q.Collection)
	if err != nil {
		return nil, nil, domain.ClassifyError(domain.BackendVector, "schema", err)
	}
	s.emit(domain.LevelDebug, "connect success", map[string]any{"collection": q.Collection})

	size, vectorName, found := vectorSize(info, q.VectorName)
	if !found || (q.Dimension > 0 && int(size) != q.Dimension) {
		mismatch := domain.NewBackendError(domain.ErrSchemaMismatch, domain.BackendVector, "schema",
			fmt.Errorf("collection %q vector %q: size %d, expected %d", q.Collection, q.VectorName, size, q.Dimension))
		s.emit(domain.LevelWarn, "vector schema mismatch", mismatch.Detail())
	}

	req := &qdrant.QueryPoints{
		CollectionName: q.Collection,
		Query:          qdrant.NewQuery(vec...),
		Limit:          qdrant.PtrOf(uint64(q.Limit)),
		WithPayload:    qdrant.NewWithPayload(true),
	}
	if vectorName != "" {
		req.Using = qdrant.PtrOf(vectorName)
	}

	s.emit(domain.LevelDebug, "query issued", map[string]any{"collection": q.Collection, "limit": q.Limit})
	scored, err := client.Query(ctx, req)
	if err != nil {
		return nil, nil, domain.ClassifyError(domain.BackendVector, "query", err)
	}

	points := make([]domain.VectorPoint, 0, len(scored))
	for _, sp := range scored {
		points = append(points, newPoint(pointID(sp.GetId()), sp.GetScore(), payloadMap(sp.GetPayload())))
	}

	return points, domain.Metadata{
		domain.MetaTransport:         "grpc",
		domain.MetaInsecureTransport: cfg.Insecure,
		domain.MetaVectorName:        vectorName,
		domain.MetaVectorDimension:   int(size),
	}, nil
}

// embed turns the query text into a vector. A missing embedding
// configuration counts as an RPC failure.
func (s *Store) embed(ctx context.Context, q domain.VectorQuery) ([]float32, error) {
	if s.embeddings == nil {
		return nil, domain.NewBackendError(domain.ErrConnection, domain.BackendVector, "embed", domain.ErrEmbeddingUnavailable)
	}
	svc, err := s.embeddings.Create(q.Embedding)
	if err != nil {
		return nil, domain.NewBackendError(domain.ErrConnection, domain.BackendVector, "embed", err)
	}
	if svc == nil {
		return nil, domain.NewBackendError(domain.ErrConnection, domain.BackendVector, "embed", domain.ErrEmbeddingUnavailable)
	}
	defer svc.Close()

	vec, err := svc.Embed(ctx, q.Text)
	if err != nil {
		return nil, domain.ClassifyError(domain.BackendVector, "embed", err)
	}
	return vec, nil
}

type scrollRequest struct {
	Limit       int  `json:"limit"`
	WithPayload bool `json:"with_payload"`
}

type scrollResponse struct {
	Result struct {
		Points []struct {
			ID      json.RawMessage `json:"id"`
			Payload map[string]any  `json:"payload"`
		} `json:"points"`
	} `json:"result"`
}

// scroll pages the collection over REST and filters by text client-side.
func (s *Store) scroll(ctx context.Context, cfg domain.EndpointConfig, q domain.VectorQuery) ([]domain.VectorPoint, error) {
	fetch := q.Limit
	if q.HasText() {
		fetch = max(q.Limit*scrollOverfetch, minScrollFetch)
	}
	body, err := json.Marshal(scrollRequest{Limit: fetch, WithPayload: true})
	if err != nil {
		return nil, domain.NewBackendError(domain.ErrMalformedResponse, domain.BackendVector, "scroll", err)
	}

	endpoint := strings.TrimRight(cfg.BaseURL, "/") + "/collections/" + url.PathEscape(q.Collection) + "/points/scroll"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, domain.NewBackendError(domain.ErrConnection, domain.BackendVector, "scroll", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if cfg.APIKey != "" {
		req.Header.Set("api-key", cfg.APIKey)
	}

	logger.Debug("Vector: POST %s limit=%d", endpoint, fetch)
	s.emit(domain.LevelDebug, "query issued", map[string]any{"endpoint": endpoint, "limit": fetch})

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, domain.ClassifyError(domain.BackendVector, "scroll", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, domain.ClassifyError(domain.BackendVector, "scroll", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, domain.NewBackendError(domain.ErrConnection, domain.BackendVector, "scroll",
			fmt.Errorf("status %d", resp.StatusCode)).WithCode(strconv.Itoa(resp.StatusCode))
	}

	var decoded scrollResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, domain.NewBackendError(domain.ErrMalformedResponse, domain.BackendVector, "scroll", err)
	}

	needle := strings.ToLower(strings.TrimSpace(q.Text))
	points := make([]domain.VectorPoint, 0, len(decoded.Result.Points))
	for _, p := range decoded.Result.Points {
		if needle != "" && !payloadContains(p.Payload, needle) {
			continue
		}
		points = append(points, newPoint(rawID(p.ID), 0, p.Payload))
		if len(points) == q.Limit {
			break
		}
	}
	return points, nil
}

func (s *Store) result(cfg domain.EndpointConfig, q domain.VectorQuery, points []domain.VectorPoint, meta domain.Metadata) *domain.RawResult {
	meta[domain.MetaEndpoint] = cfg.BaseURL
	if _, ok := meta[domain.MetaVectorName]; !ok {
		meta[domain.MetaVectorName] = q.VectorName
	}
	if _, ok := meta[domain.MetaVectorDimension]; !ok {
		meta[domain.MetaVectorDimension] = q.Dimension
	}
	s.emit(domain.LevelInfo, "query result", map[string]any{
		"points":    len(points),
		"transport": meta[domain.MetaTransport],
	})
	return &domain.RawResult{Variant: domain.VariantVector, Data: points, Metadata: meta}
}

func (s *Store) emit(level domain.Level, msg string, detail map[string]any) {
	if s.telemetry != nil {
		s.telemetry.Emit(domain.NewEvent(level, "vector", msg, detail))
	}
}

// newPoint picks the identifier from identifier, uuid or id payload
// fields, falling back to the point id.
func newPoint(id string, score float32, payload map[string]any) domain.VectorPoint {
	identifier := id
	for _, key := range []string{"identifier", "uuid", "id"} {
		if v, ok := payload[key].(string); ok && v != "" {
			identifier = v
			break
		}
	}
	return domain.VectorPoint{ID: id, Score: score, Identifier: identifier, Payload: payload}
}

// payloadContains reports whether any string value, at any depth,
// contains needle case-insensitively. needle must be lower-cased.
func payloadContains(v any, needle string) bool {
	switch val := v.(type) {
	case string:
		return strings.Contains(strings.ToLower(val), needle)
	case map[string]any:
		for _, item := range val {
			if payloadContains(item, needle) {
				return true
			}
		}
	case []any:
		for _, item := range val {
			if payloadContains(item, needle) {
				return true
			}
		}
	}
	return false
}

// rawID renders a REST point id, which is either a UUID string or an integer.
func rawID(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return string(raw)
}
