// Package server exposes validation runs and results over a small
// JSON API. All read endpoints are backed by the run store; the
// validate endpoint kicks off a batch in the background.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/invoice-audit/internal/model"
	"github.com/sells-group/invoice-audit/internal/pipeline"
	"github.com/sells-group/invoice-audit/internal/store"
)

// Server serves the results API.
type Server struct {
	store   store.Store
	proc    *pipeline.Processor
	dataDir string
}

// New creates a Server. proc may be nil, which disables POST
// /api/validate. dataDir is the default reference-data directory for
// triggered batches.
func New(st store.Store, proc *pipeline.Processor, dataDir string) *Server {
	return &Server{store: st, proc: proc, dataDir: dataDir}
}

// Router builds the HTTP handler.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Get("/runs", s.handleListRuns)
		r.Get("/runs/{runID}", s.handleGetRun)
		r.Get("/results/{invoiceID}", s.handleGetResult)
		r.Post("/validate", s.handleValidate)
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.RunFilter{
		Status:    model.RunStatus(q.Get("status")),
		InvoiceID: q.Get("invoice_id"),
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		filter.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid offset")
			return
		}
		filter.Offset = n
	}

	runs, err := s.store.ListRuns(r.Context(), filter)
	if err != nil {
		zap.L().Error("server: list runs", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "list runs failed")
		return
	}
	if runs == nil {
		runs = []model.Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.store.GetRun(r.Context(), chi.URLParam(r, "runID"))
	if err != nil {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// handleGetResult returns the most recent completed result for an
// invoice.
func (s *Server) handleGetResult(w http.ResponseWriter, r *http.Request) {
	invoiceID := chi.URLParam(r, "invoiceID")
	runs, err := s.store.ListRuns(r.Context(), store.RunFilter{
		InvoiceID: invoiceID,
		Status:    model.RunStatusCompleted,
		Limit:     1,
	})
	if err != nil {
		zap.L().Error("server: list runs for result", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "lookup failed")
		return
	}
	if len(runs) == 0 || runs[0].Result == nil {
		writeError(w, http.StatusNotFound, "no completed result for invoice")
		return
	}
	writeJSON(w, http.StatusOK, runs[0].Result)
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	if s.proc == nil {
		writeError(w, http.StatusServiceUnavailable, "validation not configured")
		return
	}

	var req struct {
		DataDir string `json:"data_dir"`
	}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	dir := req.DataDir
	if dir == "" {
		dir = s.dataDir
	}
	if dir == "" {
		writeError(w, http.StatusBadRequest, "data_dir is required")
		return
	}

	// Validation runs detached from the request lifecycle.
	ctx := context.WithoutCancel(r.Context())
	go func() {
		results, err := s.proc.Run(ctx, dir)
		if err != nil {
			zap.L().Error("server: triggered validation failed",
				zap.String("data_dir", dir),
				zap.Error(err),
			)
			return
		}
		summary := pipeline.Summarize(results)
		zap.L().Info("server: triggered validation complete",
			zap.String("data_dir", dir),
			zap.Int("total", summary.Total),
			zap.Int("approved", summary.Approved),
		)
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{
		"status":   "accepted",
		"data_dir": dir,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("server: encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
