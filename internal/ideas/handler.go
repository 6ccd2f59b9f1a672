package ideas

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strconv"

	"github.com/google/uuid"

	"github.com/JaimeStill/muse/pkg/handlers"
	"github.com/JaimeStill/muse/pkg/images"
	"github.com/JaimeStill/muse/pkg/middleware"
	"github.com/JaimeStill/muse/pkg/pagination"
	"github.com/JaimeStill/muse/pkg/routes"
	"github.com/JaimeStill/muse/pkg/storage"
)

// Handler provides HTTP endpoints for ideas and their reviews.
type Handler struct {
	sys         System
	store       storage.System
	logger      *slog.Logger
	pagination  pagination.Config
	maxBodySize int64
}

// NewHandler creates a Handler. store serves the image download endpoint.
func NewHandler(
	sys System,
	store storage.System,
	logger *slog.Logger,
	pagination pagination.Config,
	maxBodySize int64,
) *Handler {
	return &Handler{
		sys:         sys,
		store:       store,
		logger:      logger.With("handler", "ideas"),
		pagination:  pagination,
		maxBodySize: maxBodySize,
	}
}

// Routes returns the idea endpoints. reviewAuth wraps only review submission.
func (h *Handler) Routes(reviewAuth ...func(http.Handler) http.Handler) routes.Group {
	return routes.Group{
		Prefix: "/ideas",
		Routes: []routes.Route{
			{Method: "GET", Pattern: "", Handler: h.List},
			{Method: "GET", Pattern: "/{id}", Handler: h.Find},
			{Method: "GET", Pattern: "/{id}/image", Handler: h.Image},
			{Method: "GET", Pattern: "/{id}/reviews", Handler: h.Reviews},
			{Method: "POST", Pattern: "/{id}/reviews", Handler: h.SubmitReview, Middleware: reviewAuth},
		},
	}
}

// List returns a page of ideas filtered by query parameters.
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

// Find returns one idea.
func (h *Handler) Find(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	idea, err := h.sys.Find(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, idea)
}

// SubmitReview records an Approved or Rejected decision. It is applied at
// the start of the next run, so the response is 202.
func (h *Handler) SubmitReview(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	var cmd ReviewCommand
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, h.maxBodySize)).Decode(&cmd); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, fmt.Errorf("%w: %w", ErrInvalidReview, err))
		return
	}

	if caller, ok := middleware.IdentityFrom(r.Context()); ok {
		cmd.Reviewer = caller.Name()
	}

	review, err := h.sys.SubmitReview(r.Context(), id, cmd)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusAccepted, review)
}

// Reviews returns the review history of one idea.
func (h *Handler) Reviews(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	reviews, err := h.sys.Reviews(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, reviews)
}

// Image streams the uploaded image of an idea from storage.
func (h *Handler) Image(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	idea, err := h.sys.Find(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	key, err := h.imageKey(idea)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	blob, err := h.store.Download(r.Context(), key)
	if err != nil {
		status := storage.MapHTTPStatus(err)
		if errors.Is(err, storage.ErrNotFound) {
			err = fmt.Errorf("%w: %w", ErrNoImage, err)
		}
		handlers.RespondError(w, h.logger, status, err)
		return
	}
	defer blob.Body.Close()

	w.Header().Set("Content-Type", blob.ContentType)
	if blob.ContentLength > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(blob.ContentLength, 10))
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", filename(key, blob.ContentType)))
	w.WriteHeader(http.StatusOK)
	io.Copy(w, blob.Body)
}

// filename names a download after the key, taking the extension from the
// blob's content type. Keys written before extensionless keys keep theirs.
func filename(key, contentType string) string {
	base := path.Base(key)
	if path.Ext(base) != "" {
		return base
	}
	return base + images.Extension(contentType)
}

// imageKey prefers the stored key and falls back to resolving the link.
func (h *Handler) imageKey(idea *Idea) (string, error) {
	if idea.ImageKey != nil && *idea.ImageKey != "" {
		return *idea.ImageKey, nil
	}
	if !idea.HasImage() {
		return "", ErrNoImage
	}
	key, err := h.store.KeyFromURL(*idea.ImageLink)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrNoImage, err)
	}
	return key, nil
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, ErrInvalidID)
		return uuid.Nil, false
	}
	return id, true
}
