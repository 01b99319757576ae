// Package api serves the scoreline REST API for producers and readers, and
// mounts the WebSocket gateway on the same listener.
package api

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"scoreline/admission"
	"scoreline/config"
	"scoreline/core"
	"scoreline/service"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// MatchService is the match surface the handlers depend on.
type MatchService interface {
	Create(ctx context.Context, in service.CreateMatchInput) (*core.Match, error)
	Get(ctx context.Context, id int64) (*core.Match, error)
	List(ctx context.Context, limit, offset int) ([]*core.Match, int64, error)
	UpdateScore(ctx context.Context, id int64, in service.UpdateScoreInput) (*core.Match, error)
}

// CommentaryService is the commentary surface the handlers depend on.
type CommentaryService interface {
	Create(ctx context.Context, matchID int64, in service.CreateCommentaryInput) (*core.Commentary, error)
	List(ctx context.Context, matchID int64, limit, offset int) ([]*core.Commentary, int64, error)
}

// HealthChecker reports whether a backing store can serve requests.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Dependencies are the collaborators wired into the API. Health, Gateway and
// Admission may be nil.
type Dependencies struct {
	Matches    MatchService
	Commentary CommentaryService
	Health     HealthChecker
	// Gateway is mounted at WSPath and bypasses HTTP admission; it runs its
	// own admission after the upgrade.
	Gateway   http.Handler
	WSPath    string
	Admission admission.Evaluator
}

// API holds the API server
type API struct {
	router     *mux.Router
	handler    http.Handler
	serverMu   sync.Mutex
	server     *http.Server
	stopped    bool
	matches    MatchService
	commentary CommentaryService
	health     HealthChecker
	gateway    http.Handler
	wsPath     string
	admission  admission.Evaluator
	config     *config.Config
	logger     *zap.SugaredLogger
}

// NewAPI creates a new API server
func NewAPI(deps Dependencies, cfg *config.Config, logger *zap.SugaredLogger) *API {
	if deps.Matches == nil || deps.Commentary == nil {
		panic("match and commentary services are required")
	}
	a := &API{
		router:     mux.NewRouter(),
		matches:    deps.Matches,
		commentary: deps.Commentary,
		health:     deps.Health,
		gateway:    deps.Gateway,
		wsPath:     deps.WSPath,
		admission:  deps.Admission,
		config:     cfg,
		logger:     logger,
	}
	if a.wsPath == "" {
		a.wsPath = cfg.Server.WSPath
	}
	a.setupRoutes()
	// CORS and request ids wrap the router so that preflights and 404s get them too.
	a.handler = a.requestIDMiddleware(a.corsMiddleware(a.router))
	return a
}

// setupRoutes sets up the API routes
func (a *API) setupRoutes() {
	a.router.Use(a.metricsMiddleware)

	a.router.HandleFunc("/health", a.healthCheck).Methods("GET")
	a.router.Handle("/metrics", promhttp.Handler()).Methods("GET")
	if a.gateway != nil {
		a.router.Handle(a.wsPath, a.gateway)
	}

	r := a.router.PathPrefix("/api").Subrouter()
	r.Use(a.admissionMiddleware)
	r.HandleFunc("/matches", a.listMatches).Methods("GET")
	r.Handle("/matches", a.requireAuth(http.HandlerFunc(a.createMatch))).Methods("POST")
	r.HandleFunc("/matches/{id}", a.getMatch).Methods("GET")
	r.Handle("/matches/{id}/score", a.requireAuth(http.HandlerFunc(a.updateScore))).Methods("PATCH")
	r.HandleFunc("/matches/{id}/commentary", a.listCommentary).Methods("GET")
	r.Handle("/matches/{id}/commentary", a.requireAuth(http.HandlerFunc(a.createCommentary))).Methods("POST")

	a.router.NotFoundHandler = http.HandlerFunc(a.notFound)
	a.router.MethodNotAllowedHandler = http.HandlerFunc(a.methodNotAllowed)
}

// Handler returns the fully wrapped HTTP handler.
func (a *API) Handler() http.Handler {
	return a.handler
}

// Start starts the API server and blocks until it stops. A server closed by
// Stop returns nil.
func (a *API) Start(addr string) error {
	a.serverMu.Lock()
	if a.stopped {
		a.serverMu.Unlock()
		return nil
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	a.server = srv
	a.serverMu.Unlock()

	a.logger.Infow("HTTP server listening", "addr", addr, "ws_path", a.wsPath)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop stops the API server
func (a *API) Stop(ctx context.Context) error {
	a.serverMu.Lock()
	a.stopped = true
	srv := a.server
	a.serverMu.Unlock()
	if srv != nil {
		return srv.Shutdown(ctx)
	}
	return nil
}
