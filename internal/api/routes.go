package api

import (
	"net/http"

	"github.com/JaimeStill/receipts/internal/config"
	"github.com/JaimeStill/receipts/internal/dispatch"
	"github.com/JaimeStill/receipts/pkg/routes"
)

func registerRoutes(
	mux *http.ServeMux,
	domain *Domain,
	cfg *config.Config,
	runtime *Runtime,
	dispatcher dispatch.Dispatcher,
	anonymous bool,
) {
	events := newEventsHandler(dispatcher, runtime.Logger, anonymous)

	patterns := routes.Register(
		mux,
		domain.Receipts.Handler(cfg.API.MaxUploadSizeBytes(), dispatcher).Routes(),
		domain.Prompts.Handler().Routes(),
		events.routes(),
	)

	if domain.Runs != nil {
		h := domain.Runs.Handler()
		patterns = append(patterns, routes.Register(mux, h.Routes(), h.ReceiptRoutes())...)
	}

	runtime.Logger.Debug("routes registered", "count", len(patterns), "patterns", patterns)
}
