// Package api assembles the API module with all domain systems, the
// workflow engine, and route registration.
package api

import (
	"fmt"
	"net/http"

	"github.com/JaimeStill/receipts/internal/config"
	"github.com/JaimeStill/receipts/internal/infrastructure"
	"github.com/JaimeStill/receipts/pkg/auth"
	"github.com/JaimeStill/receipts/pkg/middleware"
	"github.com/JaimeStill/receipts/pkg/module"
)

// NewModule creates the API module with all domain handlers and middleware.
func NewModule(cfg *config.Config, infra *infrastructure.Infrastructure) (*module.Module, error) {
	runtime := NewRuntime(cfg, infra)
	domain := NewDomain(cfg, runtime)

	engine, err := NewEngine(cfg, runtime, domain)
	if err != nil {
		return nil, err
	}

	dispatcher, err := NewDispatcher(cfg, runtime, engine)
	if err != nil {
		return nil, err
	}

	verifier, err := cfg.Auth.NewVerifier(infra.Lifecycle.Context())
	if err != nil {
		return nil, fmt.Errorf("auth init failed: %w", err)
	}

	mux := http.NewServeMux()
	registerRoutes(mux, domain, cfg, runtime, dispatcher, verifier == nil)

	m, err := module.New(cfg.API.BasePath, mux)
	if err != nil {
		return nil, fmt.Errorf("api module: %w", err)
	}
	m.Use(middleware.RequestID())
	m.Use(middleware.Recovery(runtime.Logger))
	m.Use(middleware.CORS(&cfg.API.CORS))
	m.Use(middleware.Logger(runtime.Logger))
	m.Use(auth.Middleware(verifier, cfg.Auth.Anonymous, runtime.Logger))

	return m, nil
}
