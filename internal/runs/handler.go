package runs

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/JaimeStill/receipts/pkg/auth"
	"github.com/JaimeStill/receipts/pkg/handlers"
	"github.com/JaimeStill/receipts/pkg/pagination"
	"github.com/JaimeStill/receipts/pkg/routes"
)

// Handler provides HTTP endpoints for run history.
type Handler struct {
	sys        System
	logger     *slog.Logger
	pagination pagination.Config
}

// NewHandler creates a Handler with the given system, logger, and pagination config.
func NewHandler(sys System, logger *slog.Logger, pagination pagination.Config) *Handler {
	return &Handler{
		sys:        sys,
		logger:     logger.With("handler", "runs"),
		pagination: pagination,
	}
}

// Routes returns the route group definition for run endpoints.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix: "/runs",
		Routes: []routes.Route{
			{Method: "GET", Pattern: "", Handler: h.List},
			{Method: "GET", Pattern: "/{id}", Handler: h.Find},
			{Method: "GET", Pattern: "/{id}/ledger", Handler: h.Ledger},
		},
	}
}

// ReceiptRoutes returns the run history route nested under receipts.
func (h *Handler) ReceiptRoutes() routes.Group {
	return routes.Group{
		Prefix: "/receipts",
		Routes: []routes.Route{
			{Method: "GET", Pattern: "/{id}/runs", Handler: h.ListByReceipt},
		},
	}
}

// List returns the caller's runs, newest first unless sorted otherwise.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}

	page, err := pagination.PageRequestFromQuery(r.URL.Query(), h.pagination)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}
	filters := FiltersFromQuery(r.URL.Query())

	result, err := h.sys.List(r.Context(), owner, page, filters)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusInternalServerError, err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, result)
}

// ListByReceipt returns the runs of the receipt in the id path parameter.
func (h *Handler) ListByReceipt(w http.ResponseWriter, r *http.Request) {
	owner, id, ok := h.target(w, r)
	if !ok {
		return
	}

	page, err := pagination.PageRequestFromQuery(r.URL.Query(), h.pagination)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}
	filters := FiltersFromQuery(r.URL.Query())
	filters.ReceiptID = &id

	result, err := h.sys.List(r.Context(), owner, page, filters)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusInternalServerError, err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, result)
}

// Find returns a single run by its UUID path parameter.
func (h *Handler) Find(w http.ResponseWriter, r *http.Request) {
	owner, id, ok := h.target(w, r)
	if !ok {
		return
	}

	run, err := h.sys.Find(r.Context(), owner, id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, run)
}

// Ledger returns the ledger entries of a run.
func (h *Handler) Ledger(w http.ResponseWriter, r *http.Request) {
	owner, id, ok := h.target(w, r)
	if !ok {
		return
	}

	entries, err := h.sys.Entries(r.Context(), owner, id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, entries)
}

func (h *Handler) owner(w http.ResponseWriter, r *http.Request) (string, bool) {
	owner := auth.Subject(r.Context())
	if owner == "" {
		handlers.RespondError(w, h.logger, http.StatusUnauthorized, auth.ErrUnauthenticated)
		return "", false
	}
	return owner, true
}

func (h *Handler) target(w http.ResponseWriter, r *http.Request) (string, uuid.UUID, bool) {
	owner, ok := h.owner(w, r)
	if !ok {
		return "", uuid.Nil, false
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, ErrNotFound)
		return "", uuid.Nil, false
	}
	return owner, id, true
}
