package main

import (
	"net/http"

	"github.com/JaimeStill/receipts/internal/api"
	"github.com/JaimeStill/receipts/internal/config"
	"github.com/JaimeStill/receipts/internal/infrastructure"
	"github.com/JaimeStill/receipts/pkg/handlers"
	"github.com/JaimeStill/receipts/pkg/module"
)

type Modules struct {
	API *module.Module
}

func NewModules(infra *infrastructure.Infrastructure, cfg *config.Config) (*Modules, error) {
	apiModule, err := api.NewModule(cfg, infra)
	if err != nil {
		return nil, err
	}
	return &Modules{API: apiModule}, nil
}

func (m *Modules) Mount(router *module.Router) error {
	return router.Mount(m.API)
}

// buildRouter serves liveness and readiness outside the api module so
// probes skip authentication and request logging.
func buildRouter(infra *infrastructure.Infrastructure, version string) *module.Router {
	router := module.NewRouter()

	router.HandleNative("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		handlers.RespondJSON(w, http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})

	router.HandleNative("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		report := infra.Lifecycle.Status()
		status := http.StatusOK
		if !report.Ready {
			status = http.StatusServiceUnavailable
		}
		handlers.RespondJSON(w, status, report)
	})

	return router
}
