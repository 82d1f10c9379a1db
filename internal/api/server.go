// internal/api/server.go
package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/mfcastro/ativo/internal/api/middleware"
	"github.com/mfcastro/ativo/internal/api/response"
	"github.com/mfcastro/ativo/internal/core"
	"github.com/mfcastro/ativo/internal/indicator"
	"github.com/mfcastro/ativo/internal/metrics"
	"github.com/mfcastro/ativo/internal/resolver"
)

var errBadRequest = &core.Error{Code: "BAD_REQUEST", Message: "invalid request parameter"}

// Server exposes the resolution engine over HTTP.
type Server struct {
	httpServer *http.Server
	logger     *zap.Logger
	resolver   *resolver.Service
}

// Config holds server configuration
type Config struct {
	Host        string
	Port        int
	APIKey      string
	MetricsPath string
	Metrics     *metrics.Registry
}

// NewServer creates a new HTTP server. The metrics endpoint stays
// outside API-key auth so scrapers do not need credentials.
func NewServer(cfg Config, svc *resolver.Service, logger *zap.Logger) *Server {
	s := &Server{
		logger:   logger,
		resolver: svc,
	}

	apiMux := http.NewServeMux()
	apiMux.HandleFunc("/api/quote", s.handleQuote)
	apiMux.HandleFunc("/api/historical/price", s.handleHistoricalPrice)
	apiMux.HandleFunc("/api/historical/series", s.handleHistoricalSeries)
	apiMux.HandleFunc("/api/indicators", s.handleIndicators)
	apiMux.HandleFunc("/api/search", s.handleSearch)
	apiMux.HandleFunc("/api/health", s.handleHealth)

	var apiHandler http.Handler = apiMux
	apiHandler = middleware.APIKeyAuth(cfg.APIKey)(apiHandler)
	if cfg.Metrics != nil {
		apiHandler = metrics.HTTPMiddleware(cfg.Metrics)(apiHandler)
	}
	apiHandler = middleware.RequestID()(apiHandler)

	root := http.NewServeMux()
	root.Handle("/", apiHandler)
	if cfg.Metrics != nil {
		path := cfg.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		root.Handle(path, promhttp.HandlerFor(cfg.Metrics.Registry, promhttp.HandlerOpts{}))
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      root,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler returns the root handler, used by tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	symbol := r.URL.Query().Get("symbol")
	if symbol == "" {
		response.Error(w, http.StatusBadRequest,
			core.WrapError(errBadRequest, fmt.Errorf("symbol is required")))
		return
	}

	assetType := core.AssetType(r.URL.Query().Get("type"))
	cur := core.Currency(strings.ToUpper(r.URL.Query().Get("currency")))

	q, err := s.resolver.GetQuote(r.Context(), symbol, assetType, cur)
	if err != nil {
		response.Error(w, response.StatusFor(err), err)
		return
	}
	response.JSON(w, http.StatusOK, q)
}

func (s *Server) handleHistoricalPrice(w http.ResponseWriter, r *http.Request) {
	symbol := r.URL.Query().Get("symbol")
	if symbol == "" {
		response.Error(w, http.StatusBadRequest,
			core.WrapError(errBadRequest, fmt.Errorf("symbol is required")))
		return
	}

	date, err := time.Parse("2006-01-02", r.URL.Query().Get("date"))
	if err != nil {
		response.Error(w, http.StatusBadRequest,
			core.WrapError(errBadRequest, fmt.Errorf("date must be YYYY-MM-DD: %w", err)))
		return
	}

	assetType := core.AssetType(r.URL.Query().Get("type"))
	cur := core.Currency(strings.ToUpper(r.URL.Query().Get("currency")))

	hp, err := s.resolver.GetHistoricalPrice(r.Context(), symbol, date, assetType, cur)
	if err != nil {
		response.Error(w, response.StatusFor(err), err)
		return
	}
	response.JSON(w, http.StatusOK, hp)
}

func (s *Server) handleHistoricalSeries(w http.ResponseWriter, r *http.Request) {
	symbol := r.URL.Query().Get("symbol")
	if symbol == "" {
		response.Error(w, http.StatusBadRequest,
			core.WrapError(errBadRequest, fmt.Errorf("symbol is required")))
		return
	}

	rng := r.URL.Query().Get("range")
	if rng == "" {
		rng = "1y"
	}

	series, err := s.resolver.GetHistoricalSeries(r.Context(), symbol, rng)
	if err != nil {
		response.Error(w, response.StatusFor(err), err)
		return
	}
	response.JSON(w, http.StatusOK, series)
}

func (s *Server) handleIndicators(w http.ResponseWriter, r *http.Request) {
	symbol := r.URL.Query().Get("symbol")
	if symbol == "" {
		response.Error(w, http.StatusBadRequest,
			core.WrapError(errBadRequest, fmt.Errorf("symbol is required")))
		return
	}

	rng := r.URL.Query().Get("range")
	if rng == "" {
		rng = "1y"
	}

	series, err := s.resolver.GetHistoricalSeries(r.Context(), symbol, rng)
	if err != nil {
		response.Error(w, response.StatusFor(err), err)
		return
	}
	if len(series) < 2 {
		response.Error(w, response.StatusFor(core.ErrInsufficientData), core.ErrInsufficientData)
		return
	}

	type indicatorsPayload struct {
		Symbol     string               `json:"symbol"`
		Range      string               `json:"range"`
		Points     int                  `json:"points"`
		Indicators indicator.Indicators `json:"indicators"`
	}
	response.JSON(w, http.StatusOK, indicatorsPayload{
		Symbol:     symbol,
		Range:      rng,
		Points:     len(series),
		Indicators: indicator.Calculate(series),
	})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		response.Error(w, http.StatusBadRequest,
			core.WrapError(errBadRequest, fmt.Errorf("q is required")))
		return
	}

	matches, err := s.resolver.SearchSymbols(r.Context(), query, core.AssetType(r.URL.Query().Get("type")))
	if err != nil {
		response.Error(w, response.StatusFor(err), err)
		return
	}
	response.JSON(w, http.StatusOK, matches)
}
