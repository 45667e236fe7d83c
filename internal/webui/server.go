// Package webui serves the viewer protocol over a websocket, plus the load
// history, upload and metrics endpoints.
package webui

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/size-analysis/internal/parser/ndjson"
	"github.com/size-analysis/internal/repository"
	"github.com/size-analysis/internal/worker"
	apperrors "github.com/size-analysis/pkg/errors"
	"github.com/size-analysis/pkg/utils"
)

// Defaults for Options.
const (
	DefaultReadTimeout   = 30 * time.Second
	DefaultWriteTimeout  = 30 * time.Second
	DefaultRatePerSec    = 20
	DefaultMaxUploadSize = 256 << 20
)

// Options configures a Server.
type Options struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// RatePerSec limits inbound websocket requests per connection.
	RatePerSec    float64
	MaxUploadSize int64

	// Worker is the template for each connection's dispatcher.
	Worker worker.Config
	// Loads serves /api/loads. Optional.
	Loads repository.LoadRepository
	// Health is probed by /healthz. Optional.
	Health func(ctx context.Context) error

	Logger utils.Logger
}

// Server represents the web UI server.
type Server struct {
	opts     Options
	logger   utils.Logger
	upgrader websocket.Upgrader
	server   *http.Server
}

// NewServer creates a server; Start serves it.
func NewServer(opts Options) *Server {
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = DefaultReadTimeout
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = DefaultWriteTimeout
	}
	if opts.RatePerSec <= 0 {
		opts.RatePerSec = DefaultRatePerSec
	}
	if opts.MaxUploadSize <= 0 {
		opts.MaxUploadSize = DefaultMaxUploadSize
	}
	logger := utils.OrNull(opts.Logger)
	opts.Worker.Logger = logger

	s := &Server{
		opts:   opts,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 << 10,
			WriteBufferSize: 64 << 10,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
	s.server = &http.Server{
		Addr:        opts.Addr,
		Handler:     s.Handler(),
		ReadTimeout: opts.ReadTimeout,
		// Websocket writes carry their own deadlines.
		WriteTimeout: 0,
	}
	return s
}

// Handler returns the server's routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws", s.handleSocket)
	mux.HandleFunc("GET /api/loads", s.handleListLoads)
	mux.HandleFunc("GET /api/loads/{id}", s.handleGetLoad)
	mux.HandleFunc("POST /api/upload", s.handleUpload)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())
	return mux
}

// Start serves until Shutdown. It returns nil after a clean shutdown.
func (s *Server) Start() error {
	s.logger.Info("Starting size viewer at %s", s.opts.Addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleListLoads(w http.ResponseWriter, r *http.Request) {
	if s.opts.Loads == nil {
		writeError(w, http.StatusServiceUnavailable, apperrors.New(apperrors.CodeConfigError, "load history is disabled"))
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, apperrors.New(apperrors.CodeInvalidInput, "invalid limit "+v))
			return
		}
		limit = n
	}

	records, err := s.opts.Loads.ListLoads(r.Context(), r.URL.Query().Get("session"), limit)
	if err != nil {
		s.logger.Error("Failed to list loads: %v", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleGetLoad(w http.ResponseWriter, r *http.Request) {
	if s.opts.Loads == nil {
		writeError(w, http.StatusServiceUnavailable, apperrors.New(apperrors.CodeConfigError, "load history is disabled"))
		return
	}
	record, err := s.opts.Loads.GetLoad(r.Context(), r.PathValue("id"))
	if err != nil {
		status := http.StatusInternalServerError
		if apperrors.IsNotFound(err) {
			status = http.StatusNotFound
		}
		writeError(w, status, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

// uploadResponse tells the client how to load what it uploaded.
type uploadResponse struct {
	Input       string `json:"input"`
	Fingerprint string `json:"fingerprint"`
	Size        int    `json:"size"`
}

// handleUpload keeps the request body in object storage under its
// fingerprint and returns the storage input that loads it.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if s.opts.Worker.Store == nil {
		writeError(w, http.StatusServiceUnavailable, apperrors.New(apperrors.CodeConfigError, "no object storage configured"))
		return
	}
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.opts.MaxUploadSize))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, apperrors.Wrap(apperrors.CodeInvalidInput, "failed to read upload", err))
		return
	}
	if len(data) == 0 {
		writeError(w, http.StatusBadRequest, apperrors.New(apperrors.CodeInvalidInput, "empty upload"))
		return
	}

	fp := ndjson.Fingerprint(data)
	key := fmt.Sprintf("uploads/%s.ndjson", fp)
	if err := s.opts.Worker.Store.Upload(r.Context(), key, bytes.NewReader(data)); err != nil {
		s.logger.Error("Failed to store upload %s: %v", key, err)
		writeError(w, http.StatusBadGateway, err)
		return
	}
	s.logger.Info("Stored upload %s (%d bytes)", key, len(data))
	writeJSON(w, http.StatusCreated, uploadResponse{Input: "storage://" + key, Fingerprint: fp, Size: len(data)})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.opts.Health != nil {
		if err := s.opts.Health(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// errorResponse is the body of failed API calls.
type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error(), Code: apperrors.GetErrorCode(err)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
