// Package auditproxy serves the audit log over HTTP for the audit store adapter.
//
// Routes:
//
//	POST /api/audit  {action, content?, limit, startDate} -> JSON array of rows
//	                 {action: "record", content, identifier?, entities?, relationships?} -> stored row
//	GET  /health     -> 200 {"status":"ok"}
package auditproxy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/custodia-labs/graphloom/internal/core/domain"
	"github.com/custodia-labs/graphloom/internal/core/ports/driven"
	"github.com/custodia-labs/graphloom/internal/logger"
)

// Defaults.
const (
	DefaultAddr     = "127.0.0.1:8787"
	DefaultWindow   = 30 * 24 * time.Hour
	maxRequestBytes = 4 << 20
)

// request is the POST body. Query fields come from domain.AuditQuery;
// the rest apply to "record".
type request struct {
	domain.AuditQuery
	Identifier    string           `json:"identifier,omitempty"`
	Entities      []map[string]any `json:"entities,omitempty"`
	Relationships []map[string]any `json:"relationships,omitempty"`
}

type errorBody struct {
	Error string `json:"error"`
}

// Server exposes an AuditLog over HTTP.
type Server struct {
	mu       sync.Mutex
	log      driven.AuditLog
	now      func() time.Time
	server   *http.Server
	listener net.Listener
}

// NewServer creates an audit proxy over log.
func NewServer(log driven.AuditLog) *Server {
	return &Server{log: log, now: time.Now}
}

// Handler returns the route mux.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/audit", s.handleAudit)
	mux.HandleFunc("GET /health", s.handleHealth)
	return mux
}

// Start listens on addr and serves in the background.
func (s *Server) Start(addr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if addr == "" {
		addr = DefaultAddr
	}
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.listener = listener
	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("audit proxy stopped: %v", err)
		}
	}()
	logger.Info("audit proxy listening on %s", listener.Addr())
	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.server
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	var req request
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid JSON body: " + err.Error()})
		return
	}

	switch req.Action {
	case domain.AuditActionQuery:
		s.query(w, r, req)
	case domain.AuditActionRecord:
		s.record(w, r, req)
	default:
		writeJSON(w, http.StatusBadRequest, errorBody{Error: fmt.Sprintf("unknown action %q", req.Action)})
	}
}

func (s *Server) query(w http.ResponseWriter, r *http.Request, req request) {
	q := req.AuditQuery
	if q.StartDate.IsZero() {
		q.StartDate = s.now().Add(-DefaultWindow)
	}

	rows, err := s.log.Recent(r.Context(), q)
	if err != nil {
		logger.Warn("audit query failed: %v", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "query failed"})
		return
	}
	if rows == nil {
		rows = []domain.AuditRecord{}
	}
	logger.Debug("audit query content=%q since=%s -> %d rows", q.Content, q.StartDate.Format(time.RFC3339), len(rows))
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) record(w http.ResponseWriter, r *http.Request, req request) {
	rec, err := s.log.Append(r.Context(), domain.AuditRecord{
		Action:        domain.AuditActionRecord,
		Content:       req.Content,
		Identifier:    req.Identifier,
		Entities:      req.Entities,
		Relationships: req.Relationships,
	})
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, domain.ErrInvalidInput) {
			status = http.StatusBadRequest
		}
		writeJSON(w, status, errorBody{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Debug("audit proxy: write response: %v", err)
	}
}
