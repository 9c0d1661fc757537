package http

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/couchcryptid/covid-br-etl/internal/domain"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Loader runs the fetch-and-shape operations behind the data routes.
type Loader interface {
	sharedobs.ReadinessChecker
	LoadStates(ctx context.Context, minConfirmed int64, store bool) ([]domain.StateRecord, error)
	LoadCities(ctx context.Context, state string, store bool) ([]domain.CityRecord, error)
}

// Server exposes the series as JSON plus health, readiness, and metrics endpoints.
type Server struct {
	httpServer   *http.Server
	loader       Loader
	minConfirmed int64
	logger       *slog.Logger
}

// NewServer creates an HTTP server. minConfirmed is the threshold used when a
// request does not pass ?min_confirmed.
func NewServer(addr string, loader Loader, minConfirmed int64, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
			// The upstream city feed is large; a request re-downloads it.
			WriteTimeout: 5 * time.Minute,
			IdleTimeout:  60 * time.Second,
		},
		loader:       loader,
		minConfirmed: minConfirmed,
		logger:       logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(loader))
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /v1/states", s.handleStates)
	mux.HandleFunc("GET /v1/states/{state}", s.handleState)
	mux.HandleFunc("GET /v1/states/{state}/cities", s.handleCities)
	// City names carry a "/UF" suffix, so the wildcard takes the rest of the path.
	mux.HandleFunc("GET /v1/states/{state}/cities/{city...}", s.handleCity)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleStates(w http.ResponseWriter, r *http.Request) {
	table, ok := s.loadStates(w, r)
	if !ok {
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, table)
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	table, ok := s.loadStates(w, r)
	if !ok {
		return
	}
	state := r.PathValue("state")
	slice := domain.SliceState(table, state)
	if len(slice) == 0 {
		s.logger.Warn("state slice is empty", "state", state)
	}
	sharedobs.WriteJSON(w, http.StatusOK, slice)
}

func (s *Server) handleCities(w http.ResponseWriter, r *http.Request) {
	state := r.PathValue("state")
	table, err := s.loader.LoadCities(r.Context(), state, false)
	if err != nil {
		s.upstreamError(w, "cities", err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, table)
}

func (s *Server) handleCity(w http.ResponseWriter, r *http.Request) {
	state, city := r.PathValue("state"), r.PathValue("city")
	table, err := s.loader.LoadCities(r.Context(), state, false)
	if err != nil {
		s.upstreamError(w, "cities", err)
		return
	}
	slice := domain.SliceCity(table, city)
	if len(slice) == 0 {
		s.logger.Warn("city slice is empty", "state", state, "city", city)
	}
	sharedobs.WriteJSON(w, http.StatusOK, slice)
}

func (s *Server) loadStates(w http.ResponseWriter, r *http.Request) ([]domain.StateRecord, bool) {
	minConfirmed := s.minConfirmed
	if v := r.URL.Query().Get("min_confirmed"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 0 {
			sharedobs.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid min_confirmed"})
			return nil, false
		}
		minConfirmed = n
	}

	table, err := s.loader.LoadStates(r.Context(), minConfirmed, false)
	if err != nil {
		s.upstreamError(w, "states", err)
		return nil, false
	}
	return table, true
}

func (s *Server) upstreamError(w http.ResponseWriter, feed string, err error) {
	s.logger.Error("load failed", "feed", feed, "error", err)
	sharedobs.WriteJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
}
