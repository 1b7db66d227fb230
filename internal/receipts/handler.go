package receipts

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/JaimeStill/receipts/pkg/auth"
	"github.com/JaimeStill/receipts/pkg/formatting"
	"github.com/JaimeStill/receipts/pkg/handlers"
	"github.com/JaimeStill/receipts/pkg/pagination"
	"github.com/JaimeStill/receipts/pkg/routes"
)

const pdfContentType = "application/pdf"

// Handler provides HTTP endpoints for receipt operations. Every route
// expects an identity placed in the request context by auth.Middleware.
type Handler struct {
	sys           System
	dispatcher    Dispatcher
	logger        *slog.Logger
	pagination    pagination.Config
	maxUploadSize int64
}

// SubmitResponse reports a receipt whose trigger was handed to the dispatcher.
type SubmitResponse struct {
	Receipt    *Receipt `json:"receipt"`
	DeliveryID string   `json:"delivery_id"`
}

// NewHandler creates a Handler with the given system, dispatcher, logger,
// pagination config, and upload size limit.
func NewHandler(
	sys System,
	dispatcher Dispatcher,
	logger *slog.Logger,
	pagination pagination.Config,
	maxUploadSize int64,
) *Handler {
	return &Handler{
		sys:           sys,
		dispatcher:    dispatcher,
		logger:        logger.With("handler", "receipts"),
		pagination:    pagination,
		maxUploadSize: maxUploadSize,
	}
}

// Routes returns the route group definition for receipt endpoints.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix: "/receipts",
		Routes: []routes.Route{
			{Method: "GET", Pattern: "", Handler: h.List},
			{Method: "GET", Pattern: "/{id}", Handler: h.Find},
			{Method: "POST", Pattern: "", Handler: h.Upload},
			{Method: "POST", Pattern: "/upload-url", Handler: h.Reserve},
			{Method: "POST", Pattern: "/{id}/process", Handler: h.Process},
			{Method: "GET", Pattern: "/{id}/download", Handler: h.Download},
			{Method: "DELETE", Pattern: "/{id}", Handler: h.Delete},
		},
	}
}

// List returns the caller's receipts, newest first unless sorted otherwise.
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

// Find returns a single receipt by its UUID path parameter.
func (h *Handler) Find(w http.ResponseWriter, r *http.Request) {
	owner, id, ok := h.target(w, r)
	if !ok {
		return
	}

	rec, err := h.sys.Find(r.Context(), owner, id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, rec)
}

// Upload stores a multipart PDF upload as a pending receipt and
// dispatches its processing trigger.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)
	if err := r.ParseMultipartForm(h.maxUploadSize); err != nil {
		handlers.RespondError(w, h.logger, http.StatusRequestEntityTooLarge, h.tooLarge())
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, ErrInvalidFile)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, ErrInvalidFile)
		return
	}

	pageCount, err := validatePDF(header.Header.Get("Content-Type"), data)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	cmd := CreateCommand{
		Data:        data,
		Filename:    header.Filename,
		DisplayName: r.FormValue("display_name"),
		ContentType: pdfContentType,
		PageCount:   &pageCount,
	}

	rec, err := h.sys.Create(r.Context(), owner, cmd)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	h.submit(w, r, owner, rec, http.StatusCreated)
}

func (h *Handler) tooLarge() error {
	return fmt.Errorf("%w of %s", ErrFileTooLarge, formatting.FormatBytes(h.maxUploadSize, 0))
}

// Reserve registers a pending receipt and returns a signed URL the
// client uploads the PDF to. Processing starts with Process.
func (h *Handler) Reserve(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}

	var cmd ReserveCommand
	if err := handlers.DecodeJSON(r, &cmd); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, ErrInvalidFile)
		return
	}
	if cmd.SizeBytes > h.maxUploadSize {
		handlers.RespondError(w, h.logger, http.StatusRequestEntityTooLarge, h.tooLarge())
		return
	}

	res, err := h.sys.Reserve(r.Context(), owner, cmd)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusCreated, res)
}

// Process dispatches the trigger for a pending or failed receipt.
func (h *Handler) Process(w http.ResponseWriter, r *http.Request) {
	owner, id, ok := h.target(w, r)
	if !ok {
		return
	}

	rec, err := h.sys.Find(r.Context(), owner, id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	h.submit(w, r, owner, rec, http.StatusAccepted)
}

// Download returns a signed URL for the receipt's PDF.
func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	owner, id, ok := h.target(w, r)
	if !ok {
		return
	}

	signed, err := h.sys.DownloadURL(r.Context(), owner, id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, signed)
}

// Delete removes a receipt and its blob.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	owner, id, ok := h.target(w, r)
	if !ok {
		return
	}

	if err := h.sys.Delete(r.Context(), owner, id); err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request, owner string, rec *Receipt, status int) {
	trigger, err := h.sys.Submit(r.Context(), owner, rec.ID)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	if err := h.dispatcher.Dispatch(r.Context(), *trigger); err != nil {
		handlers.RespondError(w, h.logger, http.StatusServiceUnavailable, err)
		return
	}

	rec.Status = StatusPending
	handlers.RespondJSON(w, status, SubmitResponse{Receipt: rec, DeliveryID: trigger.DeliveryID})
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

// validatePDF accepts only PDF content and returns its page count.
func validatePDF(header string, data []byte) (int, error) {
	header = strings.TrimSpace(header)
	if header != "" && header != "application/octet-stream" && header != pdfContentType {
		return 0, ErrInvalidFile
	}
	if http.DetectContentType(data) != pdfContentType {
		return 0, ErrInvalidFile
	}

	count, err := api.PageCount(bytes.NewReader(data), nil)
	if err != nil || count < 1 {
		return 0, ErrInvalidFile
	}
	return count, nil
}
