// Package api provides the HTTP REST API server for optionscope.
//
// It exposes the options-chain endpoint plus health and Prometheus
// metrics endpoints.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"

	"optionscope/internal/analysis/options"
	"optionscope/internal/config"
	"optionscope/internal/metrics"
	"optionscope/internal/provider"
	"optionscope/internal/providers/polygon"
	"optionscope/pkg/models"
	"optionscope/pkg/utils"
)

// Server is the HTTP API server.
type Server struct {
	router  chi.Router
	cfg     *config.Config
	log     *logrus.Logger
	metrics *metrics.Metrics
	pipe    *options.Pipeline
}

// NewServer creates a configured API server with all routes and middleware.
func NewServer(cfg *config.Config, log *logrus.Logger) (*Server, error) {
	m := metrics.New()

	reg := provider.NewRegistry()
	p := polygon.New(polygon.Config{
		BaseURL:    cfg.Polygon.BaseURL,
		PageSize:   cfg.Chain.PageSize,
		MaxPages:   cfg.Chain.MaxPages,
		RatePerSec: cfg.Polygon.RatePerSec,
		APIKey:     cfg.Polygon.APIKey,
		Log:        log,
	})
	if err := reg.Register(p); err != nil {
		return nil, fmt.Errorf("register provider: %w", err)
	}

	srv := &Server{
		cfg:     cfg,
		log:     log,
		metrics: m,
		pipe: &options.Pipeline{
			Registry:       reg,
			Log:            log,
			Metrics:        m,
			MaxExpirations: cfg.Chain.MaxExpirations,
		},
	}
	srv.router = srv.buildRouter()
	return srv, nil
}

// Router returns the chi router for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// ListenAndServe starts the HTTP server with graceful shutdown.
//
// The server deliberately sets no per-request write deadline beyond the
// generous WriteTimeout below: a full chain walk is many upstream round
// trips and runs to completion rather than being cut off mid-flight.
func (s *Server) ListenAndServe(addr string) error {
	httpSrv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 300 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-done:
	}
	s.log.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return httpSrv.Shutdown(ctx)
}

// buildRouter configures all routes and middleware.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.instrument)

	origins := []string{"*"}
	if len(s.cfg.API.CORSOrigins) > 0 {
		origins = s.cfg.API.CORSOrigins
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	r.Get("/options", s.handleOptions)

	// Versioned aliases.
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/options", s.handleOptions)
	})

	return r
}

// instrument records request count and latency per route.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		elapsed := time.Since(start)

		s.metrics.ObserveRequest(r.Method, r.URL.Path, ww.Status(), elapsed)
		s.log.WithFields(logrus.Fields{
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     ww.Status(),
			"duration":   elapsed.String(),
			"request_id": middleware.GetReqID(r.Context()),
		}).Info("request")
	})
}

// chainResponse is the body for GET /options. UnderlyingSpot duplicates
// UnderlyingPrice under the name older clients read; both are nil when no
// spot price could be resolved.
type chainResponse struct {
	Ticker          string                  `json:"ticker"`
	UnderlyingPrice *float64                `json:"underlyingPrice"`
	UnderlyingSpot  *float64                `json:"underlyingSpot"`
	Expirations     []string                `json:"expirations"`
	Options         []models.ValuedContract `json:"options"`
}

// errorResponse is the body for any non-2xx answer.
type errorResponse struct {
	Message    string `json:"message"`
	StatusCode int    `json:"statusCode,omitempty"`
	Details    string `json:"details,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(s.log, w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "optionscope",
	})
}

func (s *Server) handleOptions(w http.ResponseWriter, r *http.Request) {
	ticker := utils.NormalizeTicker(r.URL.Query().Get("ticker"))
	if ticker == "" {
		writeError(s.log, w, http.StatusBadRequest, errorResponse{
			Message: "ticker query parameter is required",
		})
		return
	}

	result, err := s.pipe.BuildChain(r.Context(), ticker)
	if err != nil {
		s.writeChainError(w, ticker, err)
		return
	}

	resp := chainResponse{
		Ticker:          result.Ticker,
		UnderlyingPrice: result.UnderlyingPrice,
		UnderlyingSpot:  result.UnderlyingPrice,
		Expirations:     result.Expirations,
		Options:         result.Options,
	}
	if resp.Expirations == nil {
		resp.Expirations = []string{}
	}
	if resp.Options == nil {
		resp.Options = []models.ValuedContract{}
	}
	writeJSON(s.log, w, http.StatusOK, resp)
}

// writeChainError maps pipeline failures to HTTP statuses: bad input 400,
// operator misconfiguration 500, upstream refusal 502 with the upstream
// status and body attached.
func (s *Server) writeChainError(w http.ResponseWriter, ticker string, err error) {
	log := s.log.WithField("ticker", ticker)

	var up *provider.ErrUpstream
	if errors.As(err, &up) {
		log.WithFields(logrus.Fields{
			"upstream_status": up.Status,
			"provider":        up.Provider,
		}).Error("upstream request failed")
		writeError(s.log, w, http.StatusBadGateway, errorResponse{
			Message:    fmt.Sprintf("upstream provider returned HTTP %d", up.Status),
			StatusCode: up.Status,
			Details:    up.Body,
		})
		return
	}

	var creds *provider.ErrInvalidCredentials
	if errors.As(err, &creds) {
		log.Error("provider credential not configured")
		writeError(s.log, w, http.StatusInternalServerError, errorResponse{
			Message: "upstream provider credential is not configured",
		})
		return
	}

	var missing *provider.ErrMissingParam
	if errors.As(err, &missing) {
		writeError(s.log, w, http.StatusBadRequest, errorResponse{
			Message: err.Error(),
		})
		return
	}

	log.WithError(err).Error("chain build failed")
	writeError(s.log, w, http.StatusInternalServerError, errorResponse{
		Message: "internal error building options chain",
	})
}

func writeJSON(log *logrus.Logger, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Error("failed to write JSON response")
	}
}

func writeError(log *logrus.Logger, w http.ResponseWriter, status int, resp errorResponse) {
	writeJSON(log, w, status, resp)
}
