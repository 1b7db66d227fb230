package prompts

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/JaimeStill/receipts/pkg/handlers"
	"github.com/JaimeStill/receipts/pkg/pagination"
	"github.com/JaimeStill/receipts/pkg/routes"
)

// Handler serves the prompt management endpoints.
type Handler struct {
	sys        System
	logger     *slog.Logger
	pagination pagination.Config
}

// SearchRequest is the body of POST /prompts/search.
type SearchRequest struct {
	pagination.PageRequest
	Filters
}

// StageContent carries the instructions or spec text of one stage.
type StageContent struct {
	Stage   Stage  `json:"stage"`
	Content string `json:"content"`
}

func NewHandler(sys System, logger *slog.Logger, pagination pagination.Config) *Handler {
	return &Handler{
		sys:        sys,
		logger:     logger.With("handler", "prompts"),
		pagination: pagination,
	}
}

func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix: "/prompts",
		Routes: []routes.Route{
			{Method: "GET", Pattern: "", Handler: h.List},
			{Method: "POST", Pattern: "", Handler: h.Create},
			{Method: "POST", Pattern: "/search", Handler: h.Search},
			{Method: "GET", Pattern: "/stages", Handler: h.Stages},
			{Method: "GET", Pattern: "/{stage}/instructions", Handler: h.Instructions},
			{Method: "GET", Pattern: "/{stage}/spec", Handler: h.Spec},
			{Method: "GET", Pattern: "/{id}", Handler: h.Find},
			{Method: "PUT", Pattern: "/{id}", Handler: h.Update},
			{Method: "DELETE", Pattern: "/{id}", Handler: h.Delete},
			{Method: "POST", Pattern: "/{id}/activate", Handler: h.Activate},
			{Method: "POST", Pattern: "/{id}/deactivate", Handler: h.Deactivate},
		},
	}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page, err := pagination.PageRequestFromQuery(r.URL.Query(), h.pagination)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}
	filters, err := FiltersFromQuery(r.URL.Query())
	if err != nil {
		h.fail(w, err)
		return
	}

	result, err := h.sys.List(r.Context(), page, filters)
	h.respond(w, http.StatusOK, result, err)
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := handlers.DecodeJSON(r, &req); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}
	req.PageRequest.Normalize(h.pagination)

	result, err := h.sys.List(r.Context(), req.PageRequest, req.Filters)
	h.respond(w, http.StatusOK, result, err)
}

func (h *Handler) Stages(w http.ResponseWriter, _ *http.Request) {
	handlers.RespondJSON(w, http.StatusOK, Stages())
}

// Instructions reports the effective instructions for a stage: the
// active override when there is one, otherwise the built-in text.
func (h *Handler) Instructions(w http.ResponseWriter, r *http.Request) {
	h.stageContent(w, r, h.sys.Instructions)
}

func (h *Handler) Spec(w http.ResponseWriter, r *http.Request) {
	h.stageContent(w, r, h.sys.Spec)
}

func (h *Handler) Find(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	p, err := h.sys.Find(r.Context(), id)
	h.respond(w, http.StatusOK, p, err)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	cmd, ok := h.command(w, r)
	if !ok {
		return
	}
	p, err := h.sys.Create(r.Context(), cmd)
	h.respond(w, http.StatusCreated, p, err)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	cmd, ok := h.command(w, r)
	if !ok {
		return
	}
	p, err := h.sys.Update(r.Context(), id, cmd)
	h.respond(w, http.StatusOK, p, err)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if err := h.sys.Delete(r.Context(), id); err != nil {
		h.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Activate(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	p, err := h.sys.Activate(r.Context(), id)
	h.respond(w, http.StatusOK, p, err)
}

// Deactivate clears the override so the stage falls back to its
// built-in instructions.
func (h *Handler) Deactivate(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	p, err := h.sys.Deactivate(r.Context(), id)
	h.respond(w, http.StatusOK, p, err)
}

func (h *Handler) stageContent(w http.ResponseWriter, r *http.Request, get func(context.Context, Stage) (string, error)) {
	stage, err := ParseStage(r.PathValue("stage"))
	if err != nil {
		h.fail(w, err)
		return
	}
	text, err := get(r.Context(), stage)
	h.respond(w, http.StatusOK, StageContent{Stage: stage, Content: text}, err)
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, ErrNotFound)
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) command(w http.ResponseWriter, r *http.Request) (Command, bool) {
	var cmd Command
	if err := handlers.DecodeJSON(r, &cmd); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return Command{}, false
	}
	if err := cmd.Validate(); err != nil {
		h.fail(w, err)
		return Command{}, false
	}
	return cmd, true
}

func (h *Handler) respond(w http.ResponseWriter, status int, v any, err error) {
	if err != nil {
		h.fail(w, err)
		return
	}
	handlers.RespondJSON(w, status, v)
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
}
