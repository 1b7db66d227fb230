package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	cehttp "github.com/cloudevents/sdk-go/v2/protocol/http"

	"github.com/JaimeStill/receipts/internal/dispatch"
	"github.com/JaimeStill/receipts/pkg/auth"
	"github.com/JaimeStill/receipts/pkg/handlers"
	"github.com/JaimeStill/receipts/pkg/routes"
	"github.com/JaimeStill/receipts/workflow"
)

// ErrOwnerMismatch is returned when an event's trigger names an owner
// other than the authenticated caller.
var ErrOwnerMismatch = errors.New("trigger owner does not match caller")

// maxEventSize bounds a structured-mode event body. Triggers carry a
// handful of short fields, never the document itself.
const maxEventSize = 64 << 10

type eventsHandler struct {
	dispatcher dispatch.Dispatcher
	logger     *slog.Logger
	anonymous  bool
}

func newEventsHandler(dispatcher dispatch.Dispatcher, logger *slog.Logger, anonymous bool) *eventsHandler {
	return &eventsHandler{
		dispatcher: dispatcher,
		logger:     logger.With("handler", "events"),
		anonymous:  anonymous,
	}
}

func (h *eventsHandler) routes() routes.Group {
	return routes.Group{
		Prefix:     "/events",
		Middleware: []func(http.Handler) http.Handler{routes.LimitBody(maxEventSize)},
		Routes: []routes.Route{
			{Method: "POST", Pattern: "", Handler: h.receive},
		},
	}
}

// receive accepts a receipt upload CloudEvent in binary or structured
// mode and queues its trigger. With authentication enabled the caller
// may only submit triggers it owns.
func (h *eventsHandler) receive(w http.ResponseWriter, r *http.Request) {
	event, err := cehttp.NewEventFromHTTPRequest(r)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, fmt.Errorf("decode event: %w", err))
		return
	}

	trigger, err := workflow.FromEvent(*event)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	if !h.anonymous && trigger.Owner != auth.Subject(r.Context()) {
		handlers.RespondError(w, h.logger, http.StatusForbidden, ErrOwnerMismatch)
		return
	}

	if err := h.dispatcher.Dispatch(r.Context(), trigger); err != nil {
		status := http.StatusServiceUnavailable
		if errors.Is(err, workflow.ErrInvalidTrigger) {
			status = http.StatusBadRequest
		}
		handlers.RespondError(w, h.logger, status, err)
		return
	}

	h.logger.InfoContext(r.Context(), "event accepted",
		"event_id", event.ID(),
		"receipt_id", trigger.ReceiptID,
	)
	w.WriteHeader(http.StatusAccepted)
}
