// Package server exposes the feed orchestrator's operations over a small
// REST API. It is a thin collaborator: all state lives in the store.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-pkgz/lgr"
	"github.com/go-pkgz/rest"
	"github.com/go-pkgz/rest/logger"
	"github.com/go-pkgz/routegroup"

	"github.com/jobradar/jobradar/pkg/domain"
	"github.com/jobradar/jobradar/pkg/store"
)

// Store is the orchestrator surface the server drives
type Store interface {
	Config() domain.FeedConfig
	SetConfig(cfg domain.FeedConfig)
	SetFeedURL(url string)
	Status() domain.FeedStatus
	LoadError() string
	IsLoading() bool
	IsAnalyzing() bool
	LoadArticles(ctx context.Context) error
	Articles() []domain.Article
	FilteredArticles() []domain.Article
	ToggleSelection(id string)
	SelectAll(selected bool)
	ClearSelection()
	Selected() []string
	AnalyzeSelected(ctx context.Context) (store.BatchReport, error)
	Results() map[string]domain.AnalysisResult
	AnalysisError() string
	SetShowRelevantOnly(v bool)
	ShowRelevantOnly() bool
	SetSortBy(mode domain.SortMode) error
	SortBy() domain.SortMode
	ToSnapshot() domain.Snapshot
}

// Validator probes candidate feed URLs before they are committed
type Validator interface {
	Validate(ctx context.Context, url string) bool
}

// Saver persists store snapshots
type Saver interface {
	Save(ctx context.Context, snap domain.Snapshot) error
}

// ConfigProvider provides server configuration
type ConfigProvider interface {
	GetServerConfig() (listen string, timeout time.Duration)
}

// Server represents HTTP server instance
type Server struct {
	config    ConfigProvider
	store     Store
	validator Validator
	saver     Saver
	version   string
	debug     bool

	lock       sync.Mutex
	httpServer *http.Server
	router     *routegroup.Bundle
}

// New initializes a new server instance
func New(cfg ConfigProvider, st Store, validator Validator, saver Saver, version string, debug bool) *Server {
	s := &Server{
		config:    cfg,
		store:     st,
		validator: validator,
		saver:     saver,
		version:   version,
		debug:     debug,
		router:    routegroup.New(http.NewServeMux()),
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// Run starts the HTTP server and handles graceful shutdown
func (s *Server) Run(ctx context.Context) error {
	listen, timeout := s.config.GetServerConfig()
	lgr.Printf("[INFO] starting server on %s", listen)

	s.lock.Lock()
	s.httpServer = &http.Server{
		Addr:         listen,
		Handler:      s.router,
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
	}
	s.lock.Unlock()

	go func() {
		<-ctx.Done()
		lgr.Printf("[INFO] shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			lgr.Printf("[WARN] server shutdown error: %v", err)
		}
	}()

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server error: %w", err)
	}

	return nil
}

// setupMiddleware configures standard middleware for the server
func (s *Server) setupMiddleware() {
	s.router.Use(rest.AppInfo("jobradar", "jobradar", s.version))
	s.router.Use(rest.Ping)

	if s.debug {
		s.router.Use(logger.New(logger.Log(lgr.Default()), logger.Prefix("[DEBUG]")).Handler)
	}

	s.router.Use(rest.Recoverer(lgr.Default()))
	s.router.Use(rest.Throttle(100))
	s.router.Use(rest.SizeLimit(1024 * 1024)) // 1MB
}

// setupRoutes configures application routes
func (s *Server) setupRoutes() {
	s.router.Mount("/api/v1").Route(func(r *routegroup.Bundle) {
		r.HandleFunc("GET /status", s.statusHandler)
		r.HandleFunc("GET /articles", s.articlesHandler)
		r.HandleFunc("POST /refresh", s.refreshHandler)
		r.HandleFunc("POST /feed/url", s.feedURLHandler)
		r.HandleFunc("PUT /config", s.configHandler)
		r.HandleFunc("PUT /view", s.viewHandler)
		r.HandleFunc("POST /selection/toggle", s.toggleSelectionHandler)
		r.HandleFunc("POST /selection/all", s.selectAllHandler)
		r.HandleFunc("DELETE /selection", s.clearSelectionHandler)
		r.HandleFunc("POST /analyze", s.analyzeHandler)
		r.HandleFunc("GET /analysis", s.analysisHandler)
	})
}

// persist saves the store snapshot, persistence failures are logged and
// never fail the originating request
func (s *Server) persist(ctx context.Context) {
	if s.saver == nil {
		return
	}
	if err := s.saver.Save(ctx, s.store.ToSnapshot()); err != nil {
		lgr.Printf("[WARN] failed to persist snapshot: %v", err)
	}
}

// RenderJSON sends JSON response
func RenderJSON(w http.ResponseWriter, _ *http.Request, code int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			lgr.Printf("[ERROR] can't encode response to JSON: %v", err)
		}
	}
}

// RenderError sends error response as JSON
func RenderError(w http.ResponseWriter, r *http.Request, err error, code int) {
	errMsg := "unknown error"
	if err != nil {
		errMsg = err.Error()
	}
	RenderJSON(w, r, code, map[string]string{"error": errMsg})
}
