// Package server exposes the detection pipeline, fault diagnosis and
// knowledge base over HTTP and WebSocket.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/gridsight/gridsight-ai/internal/config"
	"github.com/gridsight/gridsight-ai/internal/detection"
	"github.com/gridsight/gridsight-ai/internal/diagnose"
	"github.com/gridsight/gridsight-ai/internal/kb"
	"github.com/gridsight/gridsight-ai/internal/llm"
	"github.com/gridsight/gridsight-ai/internal/logging"
	"github.com/gridsight/gridsight-ai/internal/middleware"
	"github.com/gridsight/gridsight-ai/internal/ml"
	"github.com/gridsight/gridsight-ai/internal/store"
)

// apiRateLimitPerMin caps API requests per client per minute. Health,
// metrics and WebSocket endpoints are exempt.
const apiRateLimitPerMin = 240

// Server wires the store, model, knowledge base and diagnosis coordinator
// behind the HTTP API.
type Server struct {
	config *config.Config
	logger logging.Logger

	// Core components
	store       store.Store
	models      *ml.Handle
	kbIndex     *kb.Index
	kbWatcher   *kb.Watcher
	llmClient   llm.Client
	detector    *detection.Service
	coordinator *diagnose.Coordinator
	hub         *wsHub
	limiter     *middleware.RateLimiter

	// HTTP server
	httpServer *http.Server

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// State
	mu      sync.RWMutex
	running bool
}

// NewServer creates the server and initializes all components.
func NewServer(cfg *config.Config, logger logging.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	ctx, cancel := context.WithCancel(context.Background())

	srv := &Server{
		config: cfg,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}

	if err := srv.initializeComponents(); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to initialize components: %w", err)
	}

	return srv, nil
}

// initializeComponents initializes all server components in dependency order.
func (s *Server) initializeComponents() error {
	app := s.logger.App()

	// 1. Signal database
	st, err := store.NewSQLiteStore(s.config.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to open signal store: %w", err)
	}
	s.store = st

	// 2. Model handle. The artifact is loaded lazily on the first detection
	// so a fresh install can ingest and train before detecting.
	s.models = ml.NewHandle(s.config.Model.Path)

	// 3. Knowledge base
	s.kbIndex = kb.NewIndex()
	docs, err := kb.LoadDocuments(s.config.KB.Dir, app)
	if err != nil {
		app.Warn("knowledge base unavailable, diagnosis will run without citations",
			zap.String("dir", s.config.KB.Dir),
			zap.Error(err),
		)
	} else {
		s.kbIndex.Replace(docs)
		app.Info("knowledge base loaded",
			zap.String("dir", s.config.KB.Dir),
			zap.Int("documents", len(docs)),
		)
	}
	if s.config.KB.Watch {
		watcher, err := kb.NewWatcher(s.config.KB.Dir, s.kbIndex, app)
		if err != nil {
			app.Warn("knowledge base watcher disabled", zap.Error(err))
		} else {
			s.kbWatcher = watcher
		}
	}

	// 4. LLM client, when a provider is configured. Provider "none" leaves
	// the client nil and the coordinator falls back to local narratives.
	if s.config.LLM.Provider != "none" {
		client, err := llm.NewClient(llm.Config{
			APIKey:  s.config.LLM.APIKey,
			Model:   s.config.LLM.Model,
			BaseURL: s.config.LLM.BaseURL,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize LLM client: %w", err)
		}
		s.llmClient = client
	}

	// 5. Detection service and diagnosis coordinator
	s.detector = detection.NewService(store.SignalSource{Store: s.store}, s.models, app)
	s.coordinator = diagnose.NewCoordinator(s.detector, s.kbIndex, s.llmClient, app)

	// 6. WebSocket hub and rate limiter
	s.hub = newWSHub(app)
	s.limiter = middleware.NewRateLimiter(apiRateLimitPerMin)

	return nil
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}
	s.running = true
	s.mu.Unlock()

	mux := http.NewServeMux()
	s.registerHandlers(mux)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port),
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.logger.App().Info("HTTP server listening",
			zap.String("addr", s.httpServer.Addr),
		)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.App().Error("HTTP server error", zap.Error(err))
		}
	}()

	s.logger.Log(s.ctx, logging.NewEvent(logging.EventServerStarted).
		WithResult(logging.ResultSuccess).
		WithDescription(fmt.Sprintf("Server listening on %s", s.httpServer.Addr)))

	return nil
}

// Stop gracefully stops the server and releases all components.
func (s *Server) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return fmt.Errorf("server is not running")
	}
	s.running = false
	s.mu.Unlock()

	s.logger.App().Info("stopping server")

	if s.httpServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.App().Error("error shutting down HTTP server", zap.Error(err))
		}
	}

	s.hub.closeAll()
	s.limiter.Stop()

	if s.kbWatcher != nil {
		if err := s.kbWatcher.Close(); err != nil {
			s.logger.App().Warn("error closing knowledge base watcher", zap.Error(err))
		}
	}

	if err := s.store.Close(); err != nil {
		s.logger.App().Warn("error closing store", zap.Error(err))
	}

	s.cancel()
	s.wg.Wait()

	s.logger.Log(context.Background(), logging.NewEvent(logging.EventServerShutdown).
		WithResult(logging.ResultSuccess).
		WithDescription("Server stopped"))

	return nil
}

// Wait blocks until the server is stopped.
func (s *Server) Wait() {
	<-s.ctx.Done()
}

// IsRunning returns whether the server is running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// registerHandlers registers HTTP handlers.
func (s *Server) registerHandlers(mux *http.ServeMux) {
	// Health and info
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/ready", s.handleReady)
	mux.HandleFunc("/info", s.handleInfo)

	limited := s.limiter.Middleware

	// Detection and model
	mux.HandleFunc("/api/v1/detect", limited(s.handleDetect))
	mux.HandleFunc("/api/v1/model/train", limited(s.handleModelTrain))

	// Signal data
	mux.HandleFunc("/api/v1/signals/ingest", limited(s.handleSignalsIngest))
	mux.HandleFunc("/api/v1/signals/seed", limited(s.handleSignalsSeed))
	mux.HandleFunc("/api/v1/scenarios", limited(s.handleScenarios))

	// Fault diagnosis
	mux.HandleFunc("/api/v1/faults/diagnose", limited(s.handleDiagnose))
	mux.HandleFunc("/api/v1/tickets", limited(s.handleTickets))
	mux.HandleFunc("/api/v1/tickets/", limited(s.handleTicketByID))

	// Knowledge base
	mux.HandleFunc("/api/v1/kb/search", limited(s.handleKBSearch))

	// Operational surfaces
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/ws", s.handleWS)
}
