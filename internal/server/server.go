// Package server is the thin HTTP surface over the pipeline. It translates
// request bodies in and pipeline responses out; pipeline failures still
// travel as 200s because the failed response IS the product, not a transport
// problem.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"nlq/internal/catalog"
	"nlq/internal/pipeline"
)

// Pipeline is the orchestrator surface the server needs.
type Pipeline interface {
	Run(ctx context.Context, query string) *pipeline.Response
	Resume(ctx context.Context, requestID string, answers map[string]any) *pipeline.Response
}

// Server wires HTTP routes to the pipeline and the catalog.
type Server struct {
	pipeline Pipeline
	catalog  *catalog.Catalog
	logger   *zap.Logger
	mux      *http.ServeMux
}

// New creates a Server. A nil logger disables logging.
func New(p Pipeline, c *catalog.Catalog, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{pipeline: p, catalog: c, logger: logger, mux: http.NewServeMux()}
	s.mux.HandleFunc("POST /api/query", s.handleQuery)
	s.mux.HandleFunc("POST /api/query/resume", s.handleResume)
	s.mux.HandleFunc("GET /api/catalog", s.handleCatalog)
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	return s
}

// Handler returns the root handler with request logging attached.
func (s *Server) Handler() http.Handler {
	return s.logRequests(s.mux)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("elapsed", time.Since(start)))
	})
}

type queryRequest struct {
	Query string `json:"query"`
}

type resumeRequest struct {
	RequestID string         `json:"request_id"`
	Answers   map[string]any `json:"answers"`
}

type errorBody struct {
	Error string `json:"error"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid JSON body"})
		return
	}
	if req.Query == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "query is required"})
		return
	}
	writeJSON(w, http.StatusOK, s.pipeline.Run(r.Context(), req.Query))
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	var req resumeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid JSON body"})
		return
	}
	if req.RequestID == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "request_id is required"})
		return
	}
	writeJSON(w, http.StatusOK, s.pipeline.Resume(r.Context(), req.RequestID, req.Answers))
}

func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	vocabulary := make(map[string][]catalog.Item, len(catalog.Categories))
	for _, cat := range catalog.Categories {
		vocabulary[string(cat)] = s.catalog.Items(cat)
	}
	writeJSON(w, http.StatusOK, vocabulary)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
