// Package httpproxy implements driven.AuditStore against the audit-log HTTP proxy.
package httpproxy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/custodia-labs/graphloom/internal/core/domain"
	"github.com/custodia-labs/graphloom/internal/core/ports/driven"
	"github.com/custodia-labs/graphloom/internal/logger"
)

// Ensure Store implements the interface.
var _ driven.AuditStore = (*Store)(nil)

// maxResponseBytes caps how much of a proxy response is read.
const maxResponseBytes = 16 << 20

// Store posts audit queries to the proxy. It never retries.
type Store struct {
	client    *http.Client
	telemetry driven.Telemetry
}

// NewStore creates an audit store. client and telemetry may be nil.
func NewStore(client *http.Client, telemetry driven.Telemetry) *Store {
	if client == nil {
		client = &http.Client{}
	}
	return &Store{client: client, telemetry: telemetry}
}

// Query sends one POST with the query as JSON and returns the decoded rows.
func (s *Store) Query(ctx context.Context, cfg domain.EndpointConfig, q domain.AuditQuery) (*domain.RawResult, error) {
	body, err := json.Marshal(q)
	if err != nil {
		return nil, s.fail(domain.NewBackendError(domain.ErrMalformedResponse, domain.BackendAudit, "encode", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.BaseURL, bytes.NewReader(body))
	if err != nil {
		return nil, s.fail(domain.NewBackendError(domain.ErrConnection, domain.BackendAudit, "post", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	logger.Debug("Audit: POST %s action=%s limit=%d", cfg.BaseURL, q.Action, q.Limit)
	s.emit(domain.LevelDebug, "query issued", map[string]any{"endpoint": cfg.BaseURL, "action": q.Action})

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, s.fail(domain.ClassifyError(domain.BackendAudit, "post", err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, s.fail(domain.ClassifyError(domain.BackendAudit, "read", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, s.fail(domain.NewBackendError(domain.ErrConnection, domain.BackendAudit, "post",
			fmt.Errorf("status %d: %s", resp.StatusCode, snippet(raw))).WithCode(strconv.Itoa(resp.StatusCode)))
	}

	rows, err := decodeRows(raw)
	if err != nil {
		return nil, s.fail(domain.NewBackendError(domain.ErrMalformedResponse, domain.BackendAudit, "decode", err))
	}

	s.emit(domain.LevelInfo, "query result", map[string]any{"endpoint": cfg.BaseURL, "rows": len(rows)})
	return &domain.RawResult{
		Variant: domain.VariantAudit,
		Data:    rows,
		Metadata: domain.Metadata{
			domain.MetaTransport: "http",
			domain.MetaQuery:     q.Content,
		},
	}, nil
}

// decodeRows accepts a bare JSON array or an object wrapping one under "rows" or "data".
func decodeRows(raw []byte) ([]any, error) {
	var rows []any
	if err := json.Unmarshal(raw, &rows); err == nil {
		return rows, nil
	}

	var wrapped struct {
		Rows []any `json:"rows"`
		Data []any `json:"data"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, fmt.Errorf("expected JSON array: %w", err)
	}
	if wrapped.Rows != nil {
		return wrapped.Rows, nil
	}
	if wrapped.Data != nil {
		return wrapped.Data, nil
	}
	return nil, fmt.Errorf("expected JSON array, got object without rows")
}

func snippet(b []byte) string {
	const limit = 200
	if len(b) > limit {
		return string(b[:limit]) + "..."
	}
	return string(b)
}

func (s *Store) fail(err *domain.BackendError) error {
	logger.Warn("Audit: %v", err)
	s.emit(domain.LevelWarn, "audit query failed", err.Detail())
	return err
}

func (s *Store) emit(level domain.Level, msg string, detail map[string]any) {
	if s.telemetry != nil {
		s.telemetry.Emit(domain.NewEvent(level, "audit", msg, detail))
	}
}
