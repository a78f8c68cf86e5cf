package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/quells/managedmodel/internal/audit"
	"github.com/quells/managedmodel/internal/infrastructure/config"
	"github.com/quells/managedmodel/internal/infrastructure/database"
	"github.com/quells/managedmodel/internal/infrastructure/logging"
	"github.com/quells/managedmodel/internal/model"
	"github.com/quells/managedmodel/internal/value"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Database is the part of the database the API reports on.
// *database.DB satisfies it.
type Database interface {
	HealthCheck(ctx context.Context) error
	SchemaVersion(ctx context.Context) (int, error)
	Stats() database.Stats
}

// Catalog exposes the registered entity tables.
// *controller.Controller satisfies it.
type Catalog interface {
	Tables() []string
	Fields(table string) ([]model.FieldDescriptor, error)
	CountTable(ctx context.Context, table string) (int, error)
	RowsOf(ctx context.Context, table, whereField string, equals any) ([]value.Row, error)
}

// ChangeLog lists recorded entity changes.
// *audit.Repository satisfies it.
type ChangeLog interface {
	List(ctx context.Context, filter audit.Filter) (*audit.ListResult, error)
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config  config.APIConfig
	WS      config.WebSocketConfig
	Logger  *logging.Logger
	DB      Database
	Catalog Catalog
	Changes ChangeLog // optional; enables /changes
	Hub     *Hub      // if nil, the server creates its own
	Version string
}

// Server serves the read-only catalog API and the change stream.
type Server struct {
	cfg     config.APIConfig
	logger  *logging.Logger
	db      Database
	catalog Catalog
	changes ChangeLog
	version string
	hub     *Hub

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
	cancel   context.CancelFunc // stops the hub on Close()
}

// New validates deps and builds an unstarted server. Without deps.Hub it
// creates a hub from deps.WS.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.DB == nil {
		return nil, fmt.Errorf("database is required")
	}
	if deps.Catalog == nil {
		return nil, fmt.Errorf("catalog is required")
	}

	hub := deps.Hub
	if hub == nil {
		hub = NewHub(deps.WS, deps.Logger)
	}

	return &Server{
		cfg:     deps.Config,
		logger:  deps.Logger,
		db:      deps.DB,
		catalog: deps.Catalog,
		changes: deps.Changes,
		version: deps.Version,
		hub:     hub,
	}, nil
}

// Hub returns the server's WebSocket hub, for registration as a change
// publisher.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Start binds the listener, then serves and runs the hub in the
// background until Close or ctx ends.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server != nil {
		return fmt.Errorf("api server already started")
	}

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}

	var hubCtx context.Context
	hubCtx, s.cancel = context.WithCancel(ctx)
	go s.hub.Run(hubCtx)

	s.listener = ln
	s.server = &http.Server{
		Handler:           s.buildRouter(),
		ReadTimeout:       s.cfg.Timeouts.ReadTimeout(),
		ReadHeaderTimeout: s.cfg.Timeouts.ReadTimeout(),
		WriteTimeout:      s.cfg.Timeouts.WriteTimeout(),
		IdleTimeout:       s.cfg.Timeouts.IdleTimeout(),
	}

	s.logger.Info("API server starting", "address", ln.Addr().String())
	go func(srv *http.Server) {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}(s.server)

	return nil
}

// Addr returns the bound listen address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	s.mu.Lock()
	srv, cancel := s.server, s.cancel
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	if cancel != nil {
		cancel()
	}

	ctx, done := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer done()

	s.logger.Info("API server shutting down")
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.server == nil {
		return fmt.Errorf("api server not started")
	}
	return nil
}
