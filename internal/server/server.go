// Package server implements the thin HTTP surface that makes zonewarden's
// authenticator and zone model runnable end to end: zone CRUD, health, and
// metrics.
package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/zonewarden/zonewarden/internal/auth"
	"github.com/zonewarden/zonewarden/internal/config"
	"github.com/zonewarden/zonewarden/internal/crypto"
	"github.com/zonewarden/zonewarden/internal/store"
)

// Server is the zonewarden HTTP server. It wires the authenticator and the
// zone repository into a small chi + huma router; it does not speak the
// DNS wire protocol or dispatch to backend nameservers.
type Server struct {
	cfg        *config.Config
	router     chi.Router
	api        huma.API
	zones      store.ZoneRepository
	principals store.PrincipalStore
	algebra    crypto.Algebra
	httpServer *http.Server
}

// HealthBody is the JSON body returned by the health check endpoint.
type HealthBody struct {
	Status string `json:"status" example:"ok" doc:"Health status"`
}

// HealthOutput is the Huma output struct for the health check endpoint.
type HealthOutput struct {
	Body HealthBody
}

// New creates a Server wired to the given zone repository, principal
// store, and crypto algebra, and registers every route.
func New(cfg *config.Config, zones store.ZoneRepository, principals store.PrincipalStore, algebra crypto.Algebra) *Server {
	router := chi.NewMux()

	humaConfig := huma.DefaultConfig("zonewarden API", "1.0.0")
	humaConfig.DocsPath = "/docs"
	humaConfig.OpenAPIPath = "/openapi"
	api := humachi.New(router, humaConfig)

	s := &Server{
		cfg:        cfg,
		router:     router,
		api:        api,
		zones:      zones,
		principals: principals,
		algebra:    algebra,
	}

	s.registerRoutes()
	return s
}

// ListenAndServe starts the HTTP server on addr. Middleware chain:
// metricsMiddleware -> commonHeaders -> authMiddleware -> router, innermost
// last.
func (s *Server) ListenAndServe(addr string) error {
	var handler http.Handler = s.router
	handler = authMiddleware(s.principals, s.algebra, s.cfg.Auth)(handler)
	handler = commonHeaders(handler)
	handler = metricsMiddleware(handler)

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: handler,
	}
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server, waiting for in-flight
// requests to complete within ctx's deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// registerRoutes wires health, metrics, and zone CRUD. Health and metrics
// sit outside authMiddleware's protected surface (see skipAuth).
func (s *Server) registerRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
		Description: "Returns the health status of the zonewarden server.",
		Tags:        []string{"System"},
	}, func(ctx context.Context, input *struct{}) (*HealthOutput, error) {
		return &HealthOutput{Body: HealthBody{Status: "ok"}}, nil
	})

	s.router.Handle("/metrics", promhttp.Handler())

	s.registerZoneRoutes()
}

// skipAuth reports whether path is exempt from request authentication:
// health, docs, and metrics must be reachable without SigV4 credentials.
func skipAuth(path string) bool {
	switch {
	case path == "/health" || path == "/metrics":
		return true
	case len(path) >= 5 && path[:5] == "/docs":
		return true
	case path == "/openapi.json" || path == "/openapi":
		return true
	}
	return false
}

// principalContextKey is the context key authMiddleware stores the
// authenticated auth.Principal under for downstream handlers.
type principalContextKey struct{}

func principalFromContext(ctx context.Context) *auth.Principal {
	p, _ := ctx.Value(principalContextKey{}).(*auth.Principal)
	return p
}
