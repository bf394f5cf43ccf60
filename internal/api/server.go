package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/smazurov/ptzbridge/internal/api/models"
	"github.com/smazurov/ptzbridge/internal/bridge"
	"github.com/smazurov/ptzbridge/internal/discovery"
	"github.com/smazurov/ptzbridge/internal/events"
	"github.com/smazurov/ptzbridge/internal/logging"
	"github.com/smazurov/ptzbridge/internal/ptz"
	"github.com/smazurov/ptzbridge/internal/streaming"
	"github.com/smazurov/ptzbridge/internal/version"
	"github.com/smazurov/ptzbridge/ui"
)

// SessionInfo exposes the connected source.
type SessionInfo interface {
	Source() discovery.Source
	Target() string
	Fallback() bool
	Clock() *bridge.Clock
}

// LoopStats reports bridge loop counters.
type LoopStats interface {
	Stats() bridge.Stats
}

// CommandDispatcher runs one PTZ request.
type CommandDispatcher interface {
	Dispatch(ctx context.Context, req ptz.Request) ptz.Result
}

// Options wires the server to the running bridge. Nil fields disable the
// routes that need them.
type Options struct {
	Session           SessionInfo
	Loop              LoopStats
	Cache             *bridge.Cache
	Finder            discovery.Finder
	Dispatcher        CommandDispatcher
	WebRTC            *streaming.WebRTCManager
	EventBus          *events.Bus
	PrometheusHandler http.Handler // Optional Prometheus metrics handler
}

// Server is the HTTP surface: signaling, PTZ control, status and SSE.
type Server struct {
	api        huma.API
	mux        *http.ServeMux
	httpServer *http.Server
	options    *Options
	eventBus   *events.Bus
	logger     *slog.Logger
}

// NewServer creates a new API server with Huma v2 using Go 1.22+ native routing
func NewServer(opts *Options) *Server {
	mux := http.NewServeMux()

	corsConfig := DefaultCORSConfig()
	AddCORSHandler(mux, corsConfig)

	config := huma.DefaultConfig("ptzbridge API", version.Get().Version)
	config.Info.Description = "Camera to WebRTC bridge with PTZ control"
	// Empty servers list will make OpenAPI use relative paths, working with any host
	config.Servers = []*huma.Server{}

	api := humago.New(mux, config)

	if opts.EventBus == nil {
		opts.EventBus = events.New()
	}

	server := &Server{
		api:      api,
		mux:      mux,
		options:  opts,
		eventBus: opts.EventBus,
		logger:   logging.GetLogger("api"),
	}

	api.UseMiddleware(NewCORSMiddleware(corsConfig))
	api.UseMiddleware(HTTPLoggingMiddleware)

	if opts.PrometheusHandler != nil {
		mux.Handle("GET /metrics", opts.PrometheusHandler)
	}

	server.registerRoutes()

	if frontendHandler, err := ui.Handler(); err == nil {
		mux.HandleFunc("GET /", func(w http.ResponseWriter, r *http.Request) {
			if strings.HasPrefix(r.URL.Path, "/api") {
				http.NotFound(w, r)
				return
			}
			frontendHandler.ServeHTTP(w, r)
		})
	}

	return server
}

// GetMux returns the underlying HTTP ServeMux for additional setup
func (s *Server) GetMux() *http.ServeMux {
	return s.mux
}

// GetAPI returns the Huma API instance
func (s *Server) GetAPI() huma.API {
	return s.api
}

// Start listens on addr until Shutdown is called.
func (s *Server) Start(addr string) error {
	s.logger.Info("Starting ptzbridge API server", "addr", addr)
	s.logger.Info("OpenAPI documentation available", "url", "http://"+addr+"/docs")

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests. SSE and WebSocket clients are
// dropped once ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Stopping API server")
	if s.httpServer == nil {
		return nil
	}
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return s.httpServer.Close()
	}
	return nil
}

// registerRoutes sets up all API endpoints
func (s *Server) registerRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "health-check",
		Method:      http.MethodGet,
		Path:        "/api/health",
		Summary:     "Health",
		Description: "Check API health status",
		Tags:        []string{"health"},
	}, func(ctx context.Context, input *struct{}) (*models.HealthResponse, error) {
		return &models.HealthResponse{
			Body: models.HealthData{
				Status:  "ok",
				Message: "API is healthy",
			},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-version",
		Method:      http.MethodGet,
		Path:        "/api/version",
		Summary:     "Version",
		Description: "Get application version information",
		Tags:        []string{"system"},
	}, func(ctx context.Context, input *struct{}) (*models.VersionResponse, error) {
		info := version.Get()
		return &models.VersionResponse{
			Body: models.VersionData{
				Version:   info.Version,
				GitCommit: info.GitCommit,
				BuildDate: info.BuildDate,
				GoVersion: info.GoVersion,
				Platform:  info.Platform,
			},
		}, nil
	})

	s.registerStatusRoutes()
	s.registerPTZRoutes()

	if s.options.WebRTC != nil {
		streaming.RegisterWebRTCAPI(s.api, s.options.WebRTC)
	}

	s.registerSSERoutes()
	s.registerLogRoutes()
}
