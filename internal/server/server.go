// Package server exposes generation over HTTP and WebSocket.
package server

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"chunkchain/internal/corpus"
	"chunkchain/internal/logger"
	"chunkchain/internal/ngram"
	"chunkchain/internal/registry"
	"chunkchain/internal/samples"
	"chunkchain/internal/version"
)

// Service is the part of corpus.Service the server calls.
type Service interface {
	Generate(ctx context.Context, req corpus.Request) (*corpus.Result, error)
	AnalyseID(ctx context.Context, sampleID string) (*corpus.Analysis, error)
}

// Config holds the listener settings.
type Config struct {
	ListenAddr      string
	ShutdownTimeout time.Duration
}

// Server serves the JSON API.
type Server struct {
	config   Config
	service  Service
	logger   logger.Logger
	upgrader websocket.Upgrader
	started  time.Time

	// ctx outlives individual requests so WebSocket sessions end on shutdown.
	ctx context.Context
}

// New creates a server. A nil log discards output.
func New(config Config, service Service, log logger.Logger) *Server {
	if log == nil {
		log = logger.Nop()
	}
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = 10 * time.Second
	}
	return &Server{
		config:  config,
		service: service,
		logger:  log.With("component", "server"),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		started: time.Now(),
		ctx:     context.Background(),
	}
}

// Handler returns the routed API.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /version", s.handleVersion)
	mux.HandleFunc("GET /samples/{id}/generate", s.handleGenerate)
	mux.HandleFunc("POST /samples/{id}/analyse", s.handleAnalyse)
	mux.HandleFunc("GET /ws", s.handleWebSocket)
	return s.logRequests(mux)
}

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-ID"

// logRequests tags every request with an id, reusing the caller's when sent,
// and puts a logger carrying it into the request context.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)

		log := s.logger.With("request_id", id)
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r.WithContext(logger.ContextWithLogger(r.Context(), log)))
		log.Debug("request", "method", r.Method, "path", r.URL.Path,
			"status", rec.status, "duration", time.Since(start))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Hijack lets the WebSocket upgrade take over the connection.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.ctx = ctx

	server := &http.Server{
		Addr:              s.config.ListenAddr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	s.logger.Info("server started", "addr", s.config.ListenAddr)

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
	Uptime    string    `json:"uptime"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "ok",
		Timestamp: time.Now(),
		Version:   version.Info(),
		Uptime:    time.Since(s.started).Round(time.Second).String(),
	})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, version.GetBuildInfo())
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	req := corpus.Request{
		SampleID:  r.PathValue("id"),
		ChunkSize: r.URL.Query().Get("chunk_size"),
	}
	// A non-numeric output_size leaves the length at its default.
	if n, err := strconv.Atoi(r.URL.Query().Get("output_size")); err == nil {
		req.OutputLength = n
	}

	result, err := s.service.Generate(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err, "sample", req.SampleID)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleAnalyse(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	analysis, err := s.service.AnalyseID(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err, "sample", id)
		return
	}
	writeJSON(w, http.StatusOK, analysis)
}

// statusFor maps service errors onto HTTP statuses and error codes.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, samples.ErrSampleNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, ngram.ErrInvalidSize):
		return http.StatusBadRequest, "invalid_request"
	case errors.Is(err, registry.ErrUnknownToken):
		return http.StatusUnprocessableEntity, "unknown_token"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "cancelled"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error, keyvals ...any) {
	status, code := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		logger.FromContext(r.Context()).Error("request failed", append(keyvals, "error", err)...)
		msg = "internal error"
	}
	writeJSON(w, status, ErrorResponse{Error: msg, Code: code})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
