package runs

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/JaimeStill/muse/pkg/handlers"
	"github.com/JaimeStill/muse/pkg/pagination"
	"github.com/JaimeStill/muse/pkg/routes"
)

// Handler provides HTTP endpoints for run history and manual runs.
type Handler struct {
	sys        System
	runCtx     func() context.Context
	logger     *slog.Logger
	pagination pagination.Config
}

// NewHandler creates a Handler. runCtx supplies the context that manual runs
// execute under, so they outlive the request that started them.
func NewHandler(sys System, runCtx func() context.Context, logger *slog.Logger, pagination pagination.Config) *Handler {
	return &Handler{
		sys:        sys,
		runCtx:     runCtx,
		logger:     logger.With("handler", "runs"),
		pagination: pagination,
	}
}

// Routes returns the run endpoints. triggerAuth wraps only the manual trigger.
func (h *Handler) Routes(triggerAuth ...func(http.Handler) http.Handler) routes.Group {
	return routes.Group{
		Prefix: "/runs",
		Routes: []routes.Route{
			{Method: "GET", Pattern: "", Handler: h.List},
			{Method: "GET", Pattern: "/{id}", Handler: h.Find},
			{Method: "POST", Pattern: "", Handler: h.Trigger, Middleware: triggerAuth},
		},
	}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page := pagination.PageRequestFromQuery(r.URL.Query(), h.pagination)
	filters := FiltersFromQuery(r.URL.Query())

	result, err := h.sys.List(r.Context(), page, filters)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusInternalServerError, err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, result)
}

func (h *Handler) Find(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, ErrInvalidID)
		return
	}

	run, err := h.sys.Find(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, run)
}

// Trigger starts a manual run and responds 202 with the running record.
func (h *Handler) Trigger(w http.ResponseWriter, r *http.Request) {
	run, err := h.sys.Launch(h.runCtx(), TriggerManual)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusAccepted, run)
}
