// Package server exposes the thermal analysis engine over HTTP, WebSocket
// and the gRPC health protocol.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kubilitics/kubilitics-thermal/internal/config"
	"github.com/kubilitics/kubilitics-thermal/internal/heatmap"
	"github.com/kubilitics/kubilitics-thermal/internal/pipeline"
)

// Server represents the thermal analysis service
type Server struct {
	cfg      *config.Config
	pipeline *pipeline.Pipeline
	renderer *heatmap.Renderer
	hub      *Hub
	grpc     *GRPCServer
	upgrader *websocket.Upgrader
	logger   *zap.Logger

	httpServer *http.Server
	startedAt  time.Time

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.RWMutex
	running bool
}

// NewServer wires the HTTP surface around p. The report hub starts
// immediately and is registered as a pipeline sink.
func NewServer(cfg *config.Config, p *pipeline.Pipeline, logger *zap.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if p == nil {
		return nil, fmt.Errorf("pipeline cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		cfg:      cfg,
		pipeline: p,
		renderer: heatmap.NewRenderer(heatmap.Options{
			Columns:      cfg.Heatmap.Columns,
			Rows:         cfg.Heatmap.Rows,
			CellSize:     cfg.Heatmap.CellSize,
			MarkerRadius: cfg.Heatmap.MarkerRadius,
		}),
		upgrader:  newUpgrader(cfg.Server.AllowedOrigins),
		logger:    logger,
		startedAt: time.Now(),
		ctx:       ctx,
		cancel:    cancel,
	}
	s.hub = NewHub(ctx, logger.Named("hub"))
	p.AddSink(s.hub)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.hub.Run()
	}()

	if cfg.GRPC.Enabled {
		s.grpc = NewGRPCServer(cfg.GRPC.Port, logger.Named("grpc"))
	}
	return s, nil
}

// Hub returns the report broadcaster.
func (s *Server) Hub() *Hub { return s.hub }

// Handler builds the router with CORS, recovery and metrics middleware.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(instrument)
	r.Use(maxBodySize(s.cfg.Server.MaxBodyBytes))

	// Dashboard contract
	r.HandleFunc("/analyze", s.handleAnalyze).Methods(http.MethodPost)
	r.HandleFunc("/thermal-image", s.handleThermalImage).Methods(http.MethodPost)

	api := r.PathPrefix("/api/v1/thermal").Subrouter()
	api.HandleFunc("/analyze", s.handleAnalyzeResult).Methods(http.MethodPost)
	api.HandleFunc("/history", s.handleHistory).Methods(http.MethodGet)
	api.HandleFunc("/history/{id}", s.handleHistoryItem).Methods(http.MethodGet)
	api.HandleFunc("/summary", s.handleSummary).Methods(http.MethodGet)

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/ready", s.handleReady).Methods(http.MethodGet)
	r.HandleFunc("/info", s.handleInfo).Methods(http.MethodGet)
	r.HandleFunc("/ws/reports", s.serveReports)

	if s.cfg.Metrics.Enabled {
		r.Handle(s.cfg.Metrics.Path, promhttp.Handler()).Methods(http.MethodGet)
	}

	allowed := s.cfg.Server.AllowedOrigins
	if len(allowed) == 0 {
		allowed = defaultOrigins
	}
	cors := handlers.CORS(
		handlers.AllowedOrigins(allowed),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
	)
	recovery := handlers.RecoveryHandler(
		handlers.RecoveryLogger(zap.NewStdLog(s.logger)),
		handlers.PrintRecoveryStack(true),
	)
	return recovery(cors(r))
}

// Start begins serving HTTP on the configured port and gRPC when enabled.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.cfg.Server.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(listener)
}

// Serve begins serving HTTP on listener.
func (s *Server) Serve(listener net.Listener) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}
	s.running = true
	s.mu.Unlock()

	s.httpServer = &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  time.Duration(s.cfg.Server.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(s.cfg.Server.WriteTimeoutSeconds) * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	if s.grpc != nil {
		if err := s.grpc.Start(); err != nil {
			return err
		}
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.logger.Info("HTTP server starting", zap.String("address", listener.Addr().String()))
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server error", zap.Error(err))
		}
	}()
	return nil
}

// Stop gracefully stops the server. It is safe to call on a server that
// was never started.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	wasRunning := s.running
	s.running = false
	s.mu.Unlock()

	var err error
	if wasRunning && s.httpServer != nil {
		if shutdownErr := s.httpServer.Shutdown(ctx); shutdownErr != nil {
			err = fmt.Errorf("shutdown HTTP server: %w", shutdownErr)
		}
	}
	if wasRunning && s.grpc != nil {
		s.grpc.Stop()
	}

	s.hub.Stop()
	s.cancel()
	s.wg.Wait()
	s.logger.Info("Server stopped")
	return err
}

// IsRunning returns whether the server is running
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}
