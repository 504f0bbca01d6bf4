package api

import (
	"context"
	"encoding/base64"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"

	"github.com/smazurov/camwatch/internal/api/models"
	"github.com/smazurov/camwatch/internal/capture"
	"github.com/smazurov/camwatch/internal/display"
	"github.com/smazurov/camwatch/internal/events"
	"github.com/smazurov/camwatch/internal/logging"
	"github.com/smazurov/camwatch/internal/version"
)

// SourceProvider reports the status of every source.
type SourceProvider interface {
	States() []capture.Status
}

// CompositeProvider serves the latest composite as JPEG.
type CompositeProvider interface {
	JPEG() ([]byte, time.Time, error)
}

// BroadcastProvider reports broker and publisher counters.
type BroadcastProvider interface {
	NumClients() int
	NumSubscriptions() int
	Published() uint64
	Dropped() uint64
}

// Options configures the API server.
type Options struct {
	AuthUsername      string
	AuthPassword      string
	Sources           SourceProvider
	Composite         CompositeProvider
	Broadcast         BroadcastProvider
	EventBus          *events.Bus
	PrometheusHandler http.Handler // Optional Prometheus metrics handler
}

// Server is the huma v2 API server.
type Server struct {
	api        huma.API
	mux        *http.ServeMux
	httpServer *http.Server
	options    *Options
	eventBus   *events.Bus
	logger     *slog.Logger
}

// NewServer creates a new API server using Go 1.22+ native routing.
func NewServer(opts *Options) *Server {
	mux := http.NewServeMux()

	corsConfig := DefaultCORSConfig()
	AddCORSHandler(mux, corsConfig)

	config := huma.DefaultConfig("camwatch API", version.Version)
	config.Info.Description = "Status, composite preview and live events of the camwatch acquisition service"
	// Empty servers list makes OpenAPI use relative paths.
	config.Servers = []*huma.Server{}
	config.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"basicAuth": {
			Type:   "http",
			Scheme: "basic",
		},
	}

	api := humago.New(mux, config)

	bus := opts.EventBus
	if bus == nil {
		bus = events.New()
	}

	server := &Server{
		api:      api,
		mux:      mux,
		options:  opts,
		eventBus: bus,
		logger:   logging.GetLogger("api"),
	}

	api.UseMiddleware(NewCORSMiddleware(corsConfig))
	api.UseMiddleware(HTTPLoggingMiddleware)
	if opts.AuthUsername != "" && opts.AuthPassword != "" {
		api.UseMiddleware(server.basicAuthMiddleware(opts.AuthUsername, opts.AuthPassword))
	}

	if opts.PrometheusHandler != nil {
		mux.Handle("GET /metrics", opts.PrometheusHandler)
	}

	server.registerRoutes()
	return server
}

// GetMux returns the underlying HTTP ServeMux for additional setup.
func (s *Server) GetMux() *http.ServeMux {
	return s.mux
}

// GetAPI returns the huma API instance.
func (s *Server) GetAPI() huma.API {
	return s.api
}

// Start serves HTTP on addr until Stop is called.
func (s *Server) Start(addr string) error {
	s.logger.Info("Starting API server", "addr", addr)
	s.logger.Info("OpenAPI documentation available", "url", "http://"+addr+"/docs")

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s.httpServer.ListenAndServe()
}

// Stop closes the server immediately. SSE streams are long-lived and would
// hold a graceful shutdown open.
func (s *Server) Stop() error {
	s.logger.Info("Stopping API server")
	if s.httpServer != nil {
		return s.httpServer.Close()
	}
	return nil
}

func (s *Server) registerRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "health-check",
		Method:      http.MethodGet,
		Path:        "/api/health",
		Summary:     "Health",
		Description: "Check API health and how many sources are online",
		Tags:        []string{"health"},
		Security:    []map[string][]string{}, // Empty security = no auth required
	}, func(_ context.Context, _ *struct{}) (*models.HealthResponse, error) {
		resp := &models.HealthResponse{Body: models.HealthData{Status: "ok", Message: "API is healthy"}}
		if s.options.Sources != nil {
			for _, st := range s.options.Sources.States() {
				resp.Body.Sources++
				if st.State == capture.StateOnline {
					resp.Body.Online++
				}
			}
		}
		if b := s.options.Broadcast; b != nil {
			resp.Body.Broadcast = &models.BroadcastData{
				Clients:       b.NumClients(),
				Subscriptions: b.NumSubscriptions(),
				Published:     b.Published(),
				Dropped:       b.Dropped(),
			}
		}
		return resp, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-version",
		Method:      http.MethodGet,
		Path:        "/api/version",
		Summary:     "Version",
		Description: "Get application version information",
		Tags:        []string{"system"},
		Security:    []map[string][]string{},
	}, func(_ context.Context, _ *struct{}) (*models.VersionResponse, error) {
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

	s.registerSourceRoutes()
	s.registerOptionsRoutes()
	s.registerSSERoutes()
	s.registerMetricsRoutes()
}

func (s *Server) registerSourceRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "list-sources",
		Method:      http.MethodGet,
		Path:        "/api/sources",
		Summary:     "List Sources",
		Description: "Connection state of every configured source, in cycle order",
		Tags:        []string{"sources"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, _ *struct{}) (*models.SourcesResponse, error) {
		data := models.SourcesData{Sources: []models.SourceInfo{}}
		if s.options.Sources != nil {
			for _, st := range s.options.Sources.States() {
				data.Sources = append(data.Sources, toSourceInfo(st))
				if st.State == capture.StateOnline {
					data.Online++
				}
			}
		}
		data.Count = len(data.Sources)
		return &models.SourcesResponse{Body: data}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-composite",
		Method:      http.MethodGet,
		Path:        "/api/composite",
		Summary:     "Composite Frame",
		Description: "Latest grid composite of all sources as JPEG",
		Tags:        []string{"sources"},
		Security:    withAuth(),
		Errors:      []int{401, 503},
	}, func(_ context.Context, _ *struct{}) (*models.CompositeResponse, error) {
		if s.options.Composite == nil {
			return nil, huma.Error503ServiceUnavailable("composite preview is disabled")
		}
		data, at, err := s.options.Composite.JPEG()
		if errors.Is(err, display.ErrNoFrame) {
			return nil, huma.Error503ServiceUnavailable("no composite frame yet")
		}
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to encode composite", err)
		}
		return &models.CompositeResponse{
			ContentType:  "image/jpeg",
			CacheControl: "no-store",
			LastModified: at.UTC().Format(http.TimeFormat),
			Body:         data,
		}, nil
	})
}

func toSourceInfo(st capture.Status) models.SourceInfo {
	info := models.SourceInfo{
		ID:         st.ID,
		Name:       st.Name,
		Type:       st.Type,
		State:      string(st.State),
		Reconnects: st.Reconnects,
		LastError:  st.LastError,
	}
	if !st.LastAttempt.IsZero() {
		at := st.LastAttempt
		info.LastAttempt = &at
	}
	return info
}

// basicAuthMiddleware checks HTTP basic credentials. SSE clients that cannot
// set headers may pass base64 "user:pass" in the auth query parameter.
func (s *Server) basicAuthMiddleware(username, password string) func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		op := ctx.Operation()
		if op != nil && len(op.Security) == 0 {
			next(ctx)
			return
		}

		encoded, ok := strings.CutPrefix(ctx.Header("Authorization"), "Basic ")
		if !ok {
			encoded = ctx.Query("auth")
		}
		decoded, err := base64.StdEncoding.DecodeString(encoded)
		user, pass, found := strings.Cut(string(decoded), ":")
		if encoded == "" || err != nil || !found || user != username || pass != password {
			ctx.SetHeader("WWW-Authenticate", `Basic realm="camwatch"`)
			huma.WriteErr(s.api, ctx, http.StatusUnauthorized, "Authentication required")
			return
		}
		next(ctx)
	}
}

// withAuth returns security requirement for basic auth.
func withAuth() []map[string][]string {
	return []map[string][]string{
		{"basicAuth": {}},
	}
}
