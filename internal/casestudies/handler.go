package casestudies

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"casehub-backend/internal/middleware"
	"casehub-backend/internal/transport"
	"github.com/go-chi/chi/v5"
)

const (
	publicTimeout      = 5 * time.Second
	publicCacheControl = "public, max-age=60"
)

// Handler serves published case studies to the site.
type Handler struct {
	service *Service
	log     *slog.Logger
}

func NewHandler(service *Service, log *slog.Logger) *Handler {
	return &Handler{service: service, log: log}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.PublicList)
	r.Get("/{slug}", h.PublicGetBySlug)
}

type PublicListResponse struct {
	Items []CaseRecord `json:"items"`
	Total int          `json:"total"`
}

func (h *Handler) PublicList(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	query := r.URL.Query()
	filter := PublicListFilter{
		Category: strings.TrimSpace(query.Get("category")),
		Industry: strings.TrimSpace(query.Get("industry")),
	}
	if details := filterDetails(filter); len(details) > 0 {
		log.Warn("case studies public list: bad filter", slog.Any("details", details))
		transport.WriteError(w, http.StatusBadRequest, "invalid filter", details)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), publicTimeout)
	defer cancel()

	items, err := h.service.ListPublic(ctx, filter)
	if err != nil {
		log.Error("case studies public list: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}
	if items == nil {
		items = []CaseRecord{}
	}

	log.Info("case studies public list: ok",
		slog.String("category", filter.Category),
		slog.String("industry", filter.Industry),
		slog.Int("count", len(items)),
	)
	w.Header().Set("Cache-Control", publicCacheControl)
	transport.WriteJSON(w, http.StatusOK, PublicListResponse{Items: items, Total: len(items)})
}

func (h *Handler) PublicGetBySlug(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	slug := strings.ToLower(strings.TrimSpace(chi.URLParam(r, "slug")))

	ctx, cancel := context.WithTimeout(r.Context(), publicTimeout)
	defer cancel()

	item, err := h.service.GetPublishedBySlug(ctx, slug)
	switch {
	case errors.Is(err, ErrNotFound):
		log.Warn("case studies public get: not found", slog.String("slug", slug))
		transport.WriteError(w, http.StatusNotFound, "case study not found", nil)
		return
	case err != nil:
		log.Error("case studies public get: database error", slog.String("slug", slug), slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}

	log.Info("case studies public get: ok", slog.String("slug", slug))
	w.Header().Set("Cache-Control", publicCacheControl)
	transport.WriteJSON(w, http.StatusOK, item)
}

// filterDetails rejects taxonomy values the site never shows, so typos do not
// silently produce empty pages.
func filterDetails(f PublicListFilter) map[string]string {
	details := map[string]string{}
	if f.Category != "" && !slices.Contains(Categories, f.Category) {
		details["category"] = fmt.Sprintf("must be one of %s", strings.Join(Categories, ", "))
	}
	if f.Industry != "" && !slices.Contains(Industries, f.Industry) {
		details["industry"] = fmt.Sprintf("must be one of %s", strings.Join(Industries, ", "))
	}
	return details
}

func (h *Handler) logWithRequest(r *http.Request) *slog.Logger {
	if id := middleware.RequestIDFromContext(r.Context()); id != "" {
		return h.log.With(slog.String("request_id", id))
	}
	return h.log
}
