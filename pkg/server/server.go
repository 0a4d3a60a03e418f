package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"mercator-hq/warden/pkg/config"
	"mercator-hq/warden/pkg/evidence"
	"mercator-hq/warden/pkg/evidence/recorder"
	"mercator-hq/warden/pkg/policy/bundle"
	"mercator-hq/warden/pkg/policy/engine"
	"mercator-hq/warden/pkg/policy/rules"
	"mercator-hq/warden/pkg/security/tenant"
	wtls "mercator-hq/warden/pkg/security/tls"
	"mercator-hq/warden/pkg/telemetry/health"
	"mercator-hq/warden/pkg/telemetry/metrics"
	"mercator-hq/warden/pkg/telemetry/tracing"
)

// Evaluator decides policy check requests.
type Evaluator interface {
	Check(ctx context.Context, req *engine.Request) (*engine.Result, error)
}

// Deps are the components the HTTP surface serves. Engine, Bundles, Rules,
// Evidence, Escalations and Gateway are required.
type Deps struct {
	Engine      Evaluator
	Bundles     *bundle.Registry
	Rules       rules.Store
	Evidence    evidence.Storage
	Escalations *recorder.EscalationManager
	Gateway     *tenant.Gateway
	Health      *health.Checker
	Metrics     *metrics.Collector
	Tracer      *tracing.Tracer

	// Federation holds each source tenant's federation policy.
	Federation map[string]config.FederationConfig
}

func (d *Deps) validate() error {
	switch {
	case d.Engine == nil:
		return errors.New("engine is required")
	case d.Bundles == nil:
		return errors.New("bundle registry is required")
	case d.Rules == nil:
		return errors.New("rule store is required")
	case d.Evidence == nil:
		return errors.New("evidence storage is required")
	case d.Escalations == nil:
		return errors.New("escalation manager is required")
	case d.Gateway == nil:
		return errors.New("tenant gateway is required")
	}
	return nil
}

// Server is the warden HTTP server.
type Server struct {
	config     *config.ServerConfig
	metricsCfg *config.MetricsConfig
	deps       Deps
	handler    http.Handler
	httpServer *http.Server
	logger     *slog.Logger

	shutdownOnce sync.Once
	mu           sync.RWMutex
	isRunning    bool
}

// New creates a Server. metricsCfg may be nil to disable /metrics.
func New(cfg *config.ServerConfig, metricsCfg *config.MetricsConfig, deps Deps) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("server config cannot be nil")
	}
	if err := deps.validate(); err != nil {
		return nil, err
	}
	if deps.Health == nil {
		deps.Health = health.New(0)
	}
	s := &Server{
		config:     cfg,
		metricsCfg: metricsCfg,
		deps:       deps,
		logger:     slog.Default().With("component", "server"),
	}
	s.handler = s.routes()
	return s, nil
}

// Handler returns the configured HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start serves until ctx is cancelled or the listener fails, then shuts
// down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}
	s.httpServer = &http.Server{
		Addr:           s.config.ListenAddress,
		Handler:        s.handler,
		ReadTimeout:    s.config.ReadTimeout,
		WriteTimeout:   s.config.WriteTimeout,
		IdleTimeout:    s.config.IdleTimeout,
		MaxHeaderBytes: s.config.MaxHeaderBytes,
	}
	tlsEnabled := s.config.TLS.Enabled
	if tlsEnabled {
		reloader := wtls.NewReloader(s.config.TLS.CertFile, s.config.TLS.KeyFile, s.config.TLS.ReloadInterval)
		if err := reloader.Start(ctx); err != nil {
			s.mu.Unlock()
			return fmt.Errorf("load server certificate: %w", err)
		}
		tlsCfg, err := wtls.ServerConfig(&s.config.TLS, reloader)
		if err != nil {
			s.mu.Unlock()
			return fmt.Errorf("configure TLS: %w", err)
		}
		s.httpServer.TLSConfig = tlsCfg
	}
	s.isRunning = true
	s.mu.Unlock()

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("starting warden server", "addr", s.config.ListenAddress, "tls", tlsEnabled)
		var err error
		if tlsEnabled {
			err = s.httpServer.ListenAndServeTLS("", "")
		} else {
			err = s.httpServer.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("context cancelled, initiating shutdown")
		return s.Shutdown(context.Background())
	case err := <-errChan:
		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()
		return err
	}
}

// Shutdown gracefully stops the server within the configured timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.mu.Lock()
		running := s.isRunning
		s.mu.Unlock()
		if !running {
			return
		}

		s.logger.Info("initiating graceful shutdown", "timeout", s.config.ShutdownTimeout.String())
		shutdownCtx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
		defer cancel()

		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("error during server shutdown", "error", err)
			shutdownErr = fmt.Errorf("server shutdown error: %w", err)
		}

		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()
		s.logger.Info("warden server stopped")
	})
	return shutdownErr
}

// IsRunning reports whether Start is serving.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}
