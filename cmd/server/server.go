package main

import (
	"time"

	"github.com/JaimeStill/receipts/internal/config"
	"github.com/JaimeStill/receipts/internal/infrastructure"
)

// Server owns the process-wide infrastructure, the mounted modules, and
// the HTTP listener that fronts them.
type Server struct {
	infra   *infrastructure.Infrastructure
	modules *Modules
	http    *httpServer
}

func NewServer(cfg *config.Config) (*Server, error) {
	infra, err := infrastructure.New(cfg)
	if err != nil {
		return nil, err
	}

	modules, err := NewModules(infra, cfg)
	if err != nil {
		return nil, err
	}

	router := buildRouter(infra, cfg.Version)
	if err := modules.Mount(router); err != nil {
		return nil, err
	}

	infra.Logger.Info(
		"server initialized",
		"addr", cfg.Server.Addr(),
		"version", cfg.Version,
		"dispatch", cfg.Dispatch.Mode,
		"inference", cfg.Inference.Provider,
		"ledger", cfg.Ledger.Provider,
	)

	return &Server{
		infra:   infra,
		modules: modules,
		http:    newHTTPServer(&cfg.Server, router, infra.Logger),
	}, nil
}

// Start opens the listener after infrastructure startup hooks are
// registered. Readiness stays false until every hook has completed.
func (s *Server) Start() error {
	if err := s.infra.Start(); err != nil {
		return err
	}

	if err := s.http.Start(s.infra.Lifecycle); err != nil {
		return err
	}

	go func() {
		s.infra.Lifecycle.WaitForStartup()
		report := s.infra.Lifecycle.Status()
		s.infra.Logger.Info("startup complete", "ready", report.Ready, "checks", report.Checks)
	}()

	return nil
}

func (s *Server) Shutdown(timeout time.Duration) error {
	s.infra.Logger.Info("initiating shutdown", "timeout", timeout)
	return s.infra.Lifecycle.Shutdown(timeout)
}
