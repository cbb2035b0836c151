// Package server exposes the job board over HTTP and pushes listing
// lifecycle events to WebSocket subscribers.
package server

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/vacancy/account"
	"github.com/teranos/vacancy/admission"
	"github.com/teranos/vacancy/am"
	"github.com/teranos/vacancy/application"
	"github.com/teranos/vacancy/listing"
	"github.com/teranos/vacancy/pulse/schedule"
	"github.com/teranos/vacancy/search"
)

// Deps are the services the HTTP layer delegates to
type Deps struct {
	Accounts     *account.Service
	Listings     *listing.Service
	Applications *application.Service
	Searcher     *search.Searcher
	Admission    *admission.Enforcer
	Hub          *Hub
	Ticker       *schedule.Ticker // Optional; reported by /health
}

// VacancyServer serves the job board API
type VacancyServer struct {
	deps            Deps
	allowedOrigins  []string
	shutdownTimeout time.Duration
	mux             *http.ServeMux
	handler         http.Handler
	httpServer      *http.Server
	state           atomic.Int32
	ctx             context.Context
	cancel          context.CancelFunc
	wg              sync.WaitGroup
	logger          *zap.SugaredLogger
}

// New builds the server and its routes. The hub is started by Start.
func New(cfg am.ServerConfig, deps Deps, log *zap.SugaredLogger) *VacancyServer {
	if deps.Hub == nil {
		deps.Hub = NewHub(log)
	}
	timeout := ShutdownTimeout
	if cfg.ShutdownTimeoutSeconds > 0 {
		timeout = time.Duration(cfg.ShutdownTimeoutSeconds) * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &VacancyServer{
		deps:            deps,
		allowedOrigins:  cfg.AllowedOrigins,
		shutdownTimeout: timeout,
		mux:             http.NewServeMux(),
		ctx:             ctx,
		cancel:          cancel,
		logger:          log.With("component", "server"),
	}
	s.setupHTTPRoutes()
	s.handler = s.requestMiddleware(s.corsMiddleware(s.mux))
	return s
}

// Handler returns the root handler with middleware applied
func (s *VacancyServer) Handler() http.Handler {
	return s.handler
}

// Hub returns the event hub
func (s *VacancyServer) Hub() *Hub {
	return s.deps.Hub
}
