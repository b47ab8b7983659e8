// Package server exposes the auction list generator over HTTP. A GET on the
// auction list route runs the whole pipeline and answers with its summary.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/dharsanguruparan/auctionlist/internal/config"
	"github.com/dharsanguruparan/auctionlist/internal/history"
	"github.com/dharsanguruparan/auctionlist/internal/model"
	"github.com/dharsanguruparan/auctionlist/internal/pipeline"
)

// AuctionListPath is the route that triggers a run.
const AuctionListPath = "/api/salvato_auction_list"

// Runner performs one pipeline run.
type Runner interface {
	Run(ctx context.Context) (pipeline.Summary, error)
}

// Server hosts the HTTP handlers.
type Server struct {
	address string
	runner  Runner
	runs    history.Recorder
	log     *zap.SugaredLogger
}

// New creates a Server. runs may be nil when history is not kept.
func New(address string, runner Runner, runs history.Recorder, log *zap.SugaredLogger) *Server {
	return &Server{address: address, runner: runner, runs: runs, log: log}
}

// Serve launches the HTTP server until the context is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              s.address,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()
	s.log.Infow("listening", "address", s.address)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Handler returns the routed handler with logging and panic recovery.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc(AuctionListPath, s.handleAuctionList).Methods(http.MethodGet)
	r.HandleFunc("/api/runs", s.handleRuns).Methods(http.MethodGet)
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.MethodNotAllowedHandler = http.HandlerFunc(methodNotAllowed)
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusNotFound, map[string]string{"error": "Not found"})
	})
	return s.recoverMiddleware(s.loggingMiddleware(r))
}

type pdfResponse struct {
	Success  bool                 `json:"success"`
	PDFCount int                  `json:"pdfCount"`
	PDFs     []model.UploadResult `json:"pdfs"`
}

type workflowResponse struct {
	Success bool              `json:"success"`
	Data    []json.RawMessage `json:"data"`
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func (s *Server) handleAuctionList(w http.ResponseWriter, r *http.Request) {
	summary, err := s.runner.Run(r.Context())
	if err != nil {
		respondJSON(w, http.StatusInternalServerError, errorResponse{Success: false, Error: err.Error()})
		return
	}
	if summary.Strategy == config.DeliveryWorkflow {
		data := summary.Responses
		if data == nil {
			data = []json.RawMessage{}
		}
		respondJSON(w, http.StatusOK, workflowResponse{Success: true, Data: data})
		return
	}
	pdfs := summary.Uploads
	if pdfs == nil {
		pdfs = []model.UploadResult{}
	}
	respondJSON(w, http.StatusOK, pdfResponse{Success: true, PDFCount: len(pdfs), PDFs: pdfs})
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		respondJSON(w, http.StatusOK, []history.Run{})
		return
	}
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 200 {
			respondJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be between 1 and 200"})
			return
		}
		limit = n
	}
	runs, err := s.runs.Recent(r.Context(), limit)
	if err != nil {
		s.log.Errorw("list runs", "error", err)
		respondJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to list runs"})
		return
	}
	if runs == nil {
		runs = []history.Run{}
	}
	respondJSON(w, http.StatusOK, runs)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func methodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Allow", http.MethodGet)
	respondJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "Method not allowed"})
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.Infow("request", "method", r.Method, "path", r.URL.Path, "status", rec.status, "duration", time.Since(start))
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				s.log.Errorw("handler panic", "panic", v, "path", r.URL.Path)
				respondJSON(w, http.StatusInternalServerError, errorResponse{Error: fmt.Sprint(v)})
			}
		}()
		next.ServeHTTP(w, r)
	})
}
