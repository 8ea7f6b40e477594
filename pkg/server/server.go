// Package server exposes the generation gateway over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/pario-ai/llmstxt/pkg/gateway"
	"github.com/pario-ai/llmstxt/pkg/models"
)

// maxBodyBytes caps the request body. 1000 long URLs fit comfortably.
const maxBodyBytes = 4 << 20

// statusClientClosedRequest is written, for the access log only, when the
// client disconnects before generation finishes.
const statusClientClosedRequest = 499

// Generator produces documents for a request.
type Generator interface {
	Generate(ctx context.Context, req models.GenerateRequest) (*models.GenerateResult, error)
}

// Server is the llmstxt HTTP front end.
type Server struct {
	listen string
	gen    Generator
	logger *slog.Logger
	mux    *http.ServeMux
}

// New creates a Server that serves gen on listen.
func New(listen string, gen Generator, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		listen: listen,
		gen:    gen,
		logger: logger,
		mux:    http.NewServeMux(),
	}
	s.mux.HandleFunc("/api/service", s.handleService)
	s.mux.HandleFunc("/healthz", s.handleHealth)
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// ListenAndServe starts the server with graceful shutdown support.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.listen,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("llmstxt listening", "addr", s.listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) handleService(w http.ResponseWriter, r *http.Request) {
	setCORS(w)
	if r.Method == http.MethodOptions {
		if h := r.Header.Get("Access-Control-Request-Headers"); h != "" {
			w.Header().Set("Access-Control-Allow-Headers", h)
		}
		w.Header().Set("Access-Control-Max-Age", "86400")
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	requestID := r.Header.Get("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	w.Header().Set("X-Request-ID", requestID)
	logger := s.logger.With("request_id", requestID)

	var req models.GenerateRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		logger.Debug("bad request body", "error", err)
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	start := time.Now()
	res, err := s.gen.Generate(gateway.ContextWithLogger(r.Context(), logger), req)
	if errors.Is(err, context.Canceled) && r.Context().Err() != nil {
		logger.Info("client closed request", "duration", time.Since(start))
		w.WriteHeader(statusClientClosedRequest)
		return
	}
	if err != nil {
		code := statusFor(err)
		logger.Error("generation failed", "kind", gateway.KindOf(err).String(), "status", code, "error", err)
		writeJSONError(w, code, err.Error())
		return
	}

	cacheState := "miss"
	if res.CacheHit {
		cacheState = "hit"
	}
	logger.Info("request served", "cache", cacheState, "duration", time.Since(start))

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Llmstxt-Cache", cacheState)
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(res.Documents); err != nil {
		logger.Warn("write response", "error", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, `{"status":"ok"}`)
}

// statusFor maps a gateway failure to an HTTP status.
func statusFor(err error) int {
	switch gateway.KindOf(err) {
	case gateway.KindInput:
		return http.StatusBadRequest
	case gateway.KindConfiguration:
		return http.StatusServiceUnavailable
	case gateway.KindScrape, gateway.KindSummarization:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func setCORS(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Request-ID")
}

func writeJSONError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg, _ := json.Marshal(message)
	fmt.Fprintf(w, `{"error":{"message":%s,"type":"llmstxt_error","code":%d}}`, msg, code)
}
