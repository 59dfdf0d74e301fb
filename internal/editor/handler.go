package editor

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"casehub-backend/internal/casestudies"
	"casehub-backend/internal/history"
	"casehub-backend/internal/httpx"
	"casehub-backend/internal/metrics"
	"casehub-backend/internal/middleware"
	"casehub-backend/internal/transport"
	"casehub-backend/internal/validation"
	"casehub-backend/internal/workflow"
	"github.com/go-chi/chi/v5"
)

const (
	SessionCookie = "cms_session"
	SessionHeader = "X-CMS-Session"

	maxImportBytes = 8 << 20
)

// Store is the site database the editor loads from and saves to.
type Store interface {
	Loader
	SaveAll(ctx context.Context, items []casestudies.CaseRecord) error
}

type ReviewNotifier interface {
	SendReviewRequest(ctx context.Context, rec casestudies.CaseRecord) ([]string, error)
}

type HandlerOptions struct {
	Notifier     ReviewNotifier
	CookieSecure bool
	SessionTTL   time.Duration
}

type Handler struct {
	sessions *Manager
	store    Store
	val      *validation.Validator
	log      *slog.Logger
	opts     HandlerOptions
}

func NewHandler(sessions *Manager, store Store, val *validation.Validator, log *slog.Logger, opts HandlerOptions) *Handler {
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 8 * time.Hour
	}
	return &Handler{
		sessions: sessions,
		store:    store,
		val:      val,
		log:      log,
		opts:     opts,
	}
}

// Routes mounts the CMS endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/session", h.GetSession)
	r.Put("/session/role", h.SetRole)

	r.Get("/cases", h.ListCases)
	r.Post("/cases", h.CreateCase)
	r.Post("/cases/bulk-delete", h.BulkDelete)
	r.Post("/cases/bulk-edit", h.BulkEdit)
	r.Post("/cases/bulk-transition", h.BulkTransition)
	r.Get("/cases/{slug}", h.GetCase)
	r.Put("/cases/{slug}", h.UpdateCase)
	r.Delete("/cases/{slug}", h.DeleteCase)
	r.Get("/cases/{slug}/validation", h.ValidateCase)
	r.Post("/cases/{slug}/transitions/{action}", h.Transition)

	r.Get("/export", h.Export)
	r.Post("/import", h.Import)

	r.Get("/history", h.History)
	r.Post("/history/undo", h.Undo)
	r.Post("/history/redo", h.Redo)
	r.Post("/history/restore/{index}", h.Restore)
	r.Get("/history/export", h.ExportHistory)
	r.Post("/history/import", h.ImportHistory)

	r.Post("/save", h.Save)
	r.Post("/reload", h.Reload)
}

type SetRoleRequest struct {
	Role string `json:"role" validate:"required,role"`
}

type SlugsRequest struct {
	Slugs []string `json:"slugs" validate:"required,min=1,dive,required"`
}

type BulkEditRequest struct {
	Slugs    []string `json:"slugs" validate:"required,min=1,dive,required"`
	Category *string  `json:"category" validate:"omitempty,category"`
	Industry *string  `json:"industry" validate:"omitempty,industry"`
	Owner    *string  `json:"owner" validate:"omitempty,max=120"`
	AddTech  []string `json:"addTech" validate:"omitempty,dive,max=60"`
}

type BulkTransitionRequest struct {
	Slugs  []string `json:"slugs" validate:"required,min=1,dive,required"`
	Action string   `json:"action" validate:"required,action"`
}

type SessionResponse struct {
	ID             string            `json:"id"`
	Role           workflow.Role     `json:"role"`
	Roles          []workflow.Role   `json:"roles"`
	AllowedActions []workflow.Action `json:"allowedActions"`
	Cases          int               `json:"cases"`
	CanUndo        bool              `json:"canUndo"`
	CanRedo        bool              `json:"canRedo"`
}

type TransitionResponse struct {
	Item   casestudies.CaseRecord `json:"item"`
	Notice string                 `json:"notice"`
}

type ValidationResponse struct {
	Slug    string   `json:"slug"`
	Valid   bool     `json:"valid"`
	Reasons []string `json:"reasons"`
}

type CollectionResponse struct {
	Items   []casestudies.CaseRecord `json:"items"`
	Changed bool                     `json:"changed"`
}

func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	transport.WriteJSON(w, http.StatusOK, h.sessionView(s))
}

func (h *Handler) SetRole(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req SetRoleRequest
	if !h.decode(w, r, log, "cms role", &req) {
		return
	}
	role, _ := workflow.ParseRole(req.Role)
	s.SetRole(role)
	log.Info("cms role: ok", slog.String("session", s.ID), slog.String("role", string(role)))
	transport.WriteJSON(w, http.StatusOK, h.sessionView(s))
}

func (h *Handler) ListCases(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	values := r.URL.Query()
	q := Query{
		Category: strings.TrimSpace(values.Get("category")),
		Industry: strings.TrimSpace(values.Get("industry")),
		Search:   values.Get("q"),
		SortBy:   strings.TrimSpace(values.Get("sort")),
		Desc:     strings.EqualFold(values.Get("order"), "desc"),
	}
	if raw := strings.TrimSpace(values.Get("status")); raw != "" {
		q.Status = workflow.Status(raw)
		if !workflow.IsValidStatus(q.Status) {
			transport.WriteError(w, http.StatusBadRequest, "invalid status", nil)
			return
		}
	}
	if !IsSortField(q.SortBy) {
		transport.WriteError(w, http.StatusBadRequest, "invalid sort", nil)
		return
	}
	limit, offset, err := httpx.ParseLimitOffset(values, 100, 500)
	if err != nil {
		transport.WriteError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	items := s.List(q)
	total := len(items)
	items = items[min(offset, total):min(offset+limit, total)]
	log.Info("cms list: ok", slog.Int("count", len(items)), slog.Int("total", total))
	transport.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"items": items,
		"total": total,
	})
}

func (h *Handler) GetCase(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	item, err := s.Get(chi.URLParam(r, "slug"))
	if err != nil {
		h.fail(w, log, "cms get", err)
		return
	}
	transport.WriteJSON(w, http.StatusOK, item)
}

func (h *Handler) CreateCase(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req casestudies.CaseRecord
	if !h.decode(w, r, log, "cms create", &req) {
		return
	}
	item, err := s.Create(req)
	if err != nil {
		h.fail(w, log, "cms create", err)
		return
	}
	log.Info("cms create: ok", slog.String("slug", item.Slug))
	transport.WriteJSON(w, http.StatusCreated, item)
}

func (h *Handler) UpdateCase(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req casestudies.CaseRecord
	if !h.decode(w, r, log, "cms update", &req) {
		return
	}
	slug := chi.URLParam(r, "slug")
	item, err := s.Update(slug, req)
	if err != nil {
		h.fail(w, log, "cms update", err)
		return
	}
	log.Info("cms update: ok", slog.String("slug", slug), slog.String("new_slug", item.Slug))
	transport.WriteJSON(w, http.StatusOK, item)
}

func (h *Handler) DeleteCase(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	slug := chi.URLParam(r, "slug")
	if err := s.Delete(slug); err != nil {
		h.fail(w, log, "cms delete", err)
		return
	}
	log.Info("cms delete: ok", slog.String("slug", slug))
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) BulkDelete(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req SlugsRequest
	if !h.decode(w, r, log, "cms bulk delete", &req) {
		return
	}
	n := s.BulkDelete(req.Slugs)
	log.Info("cms bulk delete: ok", slog.Int("deleted", n))
	transport.WriteJSON(w, http.StatusOK, map[string]int{"deleted": n})
}

func (h *Handler) BulkEdit(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req BulkEditRequest
	if !h.decode(w, r, log, "cms bulk edit", &req) {
		return
	}
	n, err := s.BulkEdit(req.Slugs, BulkEdit{
		Category: req.Category,
		Industry: req.Industry,
		Owner:    req.Owner,
		AddTech:  req.AddTech,
	})
	if err != nil {
		h.fail(w, log, "cms bulk edit", err)
		return
	}
	log.Info("cms bulk edit: ok", slog.Int("updated", n))
	transport.WriteJSON(w, http.StatusOK, map[string]int{"updated": n})
}

func (h *Handler) BulkTransition(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req BulkTransitionRequest
	if !h.decode(w, r, log, "cms bulk transition", &req) {
		return
	}
	action, _ := workflow.ParseAction(req.Action)
	res, err := s.BulkTransition(req.Slugs, action)
	if err != nil {
		metrics.RecordTransition(string(action), "denied")
		h.fail(w, log, "cms bulk transition", err)
		return
	}
	for _, slug := range res.Applied {
		metrics.RecordTransition(string(action), "ok")
		if action == workflow.ActionSubmit {
			h.notifyReviewers(log, s, slug)
		}
	}
	log.Info("cms bulk transition: ok",
		slog.String("action", string(action)),
		slog.Int("applied", len(res.Applied)),
		slog.Int("skipped", len(res.Skipped)),
	)
	transport.WriteJSON(w, http.StatusOK, res)
}

func (h *Handler) Transition(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	action, err := workflow.ParseAction(chi.URLParam(r, "action"))
	if err != nil {
		transport.WriteError(w, http.StatusBadRequest, "unknown action", nil)
		return
	}
	slug := chi.URLParam(r, "slug")
	item, err := s.Transition(slug, action)
	if err != nil {
		metrics.RecordTransition(string(action), transitionResult(err))
		h.fail(w, log, "cms transition", err)
		return
	}
	metrics.RecordTransition(string(action), "ok")
	if action == workflow.ActionSubmit {
		h.notifyReviewers(log, s, slug)
	}
	log.Info("cms transition: ok",
		slog.String("slug", slug),
		slog.String("action", string(action)),
		slog.String("status", string(item.Status)),
	)
	transport.WriteJSON(w, http.StatusOK, TransitionResponse{
		Item:   item,
		Notice: workflow.Notice(action, item.Slug),
	})
}

func (h *Handler) ValidateCase(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	item, err := s.Get(chi.URLParam(r, "slug"))
	if err != nil {
		h.fail(w, log, "cms validate", err)
		return
	}
	reasons := casestudies.Validate(item)
	if reasons == nil {
		reasons = []string{}
	}
	transport.WriteJSON(w, http.StatusOK, ValidationResponse{
		Slug:    item.Slug,
		Valid:   len(reasons) == 0,
		Reasons: reasons,
	})
}

func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	data, err := s.Export()
	if err != nil {
		h.fail(w, log, "cms export", err)
		return
	}
	log.Info("cms export: ok", slog.Int("bytes", len(data)))
	transport.WriteAttachment(w, "cases.json", data)
}

func (h *Handler) Import(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	data, err := httpx.ReadBody(r, maxImportBytes)
	if err != nil {
		h.bodyError(w, log, err)
		return
	}
	n, err := s.Import(data, httpx.Confirmed(r))
	if err != nil {
		metrics.RecordImport("cases", importResult(err))
		h.fail(w, log, "cms import", err)
		return
	}
	metrics.RecordImport("cases", "ok")
	log.Info("cms import: ok", slog.Int("count", n))
	transport.WriteJSON(w, http.StatusOK, map[string]int{"imported": n})
}

func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	transport.WriteJSON(w, http.StatusOK, s.History())
}

func (h *Handler) Undo(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	items, changed := s.Undo()
	log.Info("cms undo: ok", slog.Bool("changed", changed))
	transport.WriteJSON(w, http.StatusOK, CollectionResponse{Items: items, Changed: changed})
}

func (h *Handler) Redo(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	items, changed := s.Redo()
	log.Info("cms redo: ok", slog.Bool("changed", changed))
	transport.WriteJSON(w, http.StatusOK, CollectionResponse{Items: items, Changed: changed})
}

func (h *Handler) Restore(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		transport.WriteError(w, http.StatusBadRequest, "invalid index", nil)
		return
	}
	items, err := s.Restore(index, httpx.Confirmed(r))
	if err != nil {
		h.fail(w, log, "cms restore", err)
		return
	}
	log.Info("cms restore: ok", slog.Int("index", index))
	transport.WriteJSON(w, http.StatusOK, CollectionResponse{Items: items, Changed: true})
}

func (h *Handler) ExportHistory(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	data, err := s.ExportHistory()
	if err != nil {
		h.fail(w, log, "cms history export", err)
		return
	}
	transport.WriteAttachment(w, "cases-history.json", data)
}

func (h *Handler) ImportHistory(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	data, err := httpx.ReadBody(r, maxImportBytes)
	if err != nil {
		h.bodyError(w, log, err)
		return
	}
	if err := s.ImportHistory(data, httpx.Confirmed(r)); err != nil {
		metrics.RecordImport("history", importResult(err))
		h.fail(w, log, "cms history import", err)
		return
	}
	metrics.RecordImport("history", "ok")
	log.Info("cms history import: ok")
	transport.WriteJSON(w, http.StatusOK, s.History())
}

// Save publishes the session collection to the site database.
func (h *Handler) Save(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	items := s.Items()
	if err := h.store.SaveAll(ctx, items); err != nil {
		metrics.RecordSave("error")
		h.fail(w, log, "cms save", err)
		return
	}
	metrics.RecordSave("ok")
	log.Info("cms save: ok", slog.Int("count", len(items)))
	transport.WriteJSON(w, http.StatusOK, map[string]int{"saved": len(items)})
}

// Reload discards the session collection and history and starts over from
// the site database.
func (h *Handler) Reload(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	items, err := h.store.LoadAll(ctx)
	if err != nil {
		log.Error("cms reload: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}
	if err := s.Reload(items, httpx.Confirmed(r)); err != nil {
		h.fail(w, log, "cms reload", err)
		return
	}
	log.Info("cms reload: ok", slog.Int("count", len(items)))
	transport.WriteJSON(w, http.StatusOK, CollectionResponse{Items: s.Items(), Changed: true})
}

// session resolves the caller's editor session from the header or cookie and
// starts a new one when neither carries a usable id.
func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*Session, bool) {
	id := strings.TrimSpace(r.Header.Get(SessionHeader))
	if id == "" {
		if c, err := r.Cookie(SessionCookie); err == nil {
			id = c.Value
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	s, err := h.sessions.Get(ctx, id)
	if errors.Is(err, ErrInvalidSessionID) {
		id = NewSessionID()
		s, err = h.sessions.Get(ctx, id)
	}
	if err != nil {
		h.logWithRequest(r).Error("cms session: load error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return nil, false
	}

	w.Header().Set(SessionHeader, s.ID)
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    s.ID,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.opts.CookieSecure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(h.opts.SessionTTL.Seconds()),
	})
	return s, true
}

func (h *Handler) sessionView(s *Session) SessionResponse {
	role := s.Role()
	state := s.History()
	return SessionResponse{
		ID:             s.ID,
		Role:           role,
		Roles:          workflow.Roles,
		AllowedActions: workflow.Allowed(role),
		Cases:          len(s.Items()),
		CanUndo:        state.CanUndo,
		CanRedo:        state.CanRedo,
	}
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, log *slog.Logger, op string, dst interface{}) bool {
	if err := httpx.DecodeJSON(r.Body, dst); err != nil {
		log.Warn(op + ": invalid json")
		transport.WriteError(w, http.StatusBadRequest, "invalid json", nil)
		return false
	}
	if _, isRecord := dst.(*casestudies.CaseRecord); isRecord {
		return true
	}
	if err := h.val.Struct(dst); err != nil {
		log.Warn(op + ": validation error")
		transport.WriteError(w, http.StatusBadRequest, "validation error", httpx.ValidationDetails(h.val.ValidationErrors(err)))
		return false
	}
	return true
}

// fail maps domain errors to HTTP statuses.
func (h *Handler) fail(w http.ResponseWriter, log *slog.Logger, op string, err error) {
	var verr *casestudies.ValidationError
	switch {
	case errors.As(err, &verr):
		log.Warn(op+": validation error", slog.String("slug", verr.Slug))
		transport.WriteReasons(w, http.StatusBadRequest, "validation error", verr.Reasons)
	case errors.Is(err, casestudies.ErrNotFound):
		log.Warn(op + ": not found")
		transport.WriteError(w, http.StatusNotFound, "case study not found", nil)
	case errors.Is(err, casestudies.ErrSlugExists):
		log.Warn(op+": slug exists", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusConflict, "slug already exists", nil)
	case errors.Is(err, workflow.ErrPermissionDenied):
		log.Warn(op+": permission denied", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusForbidden, "permission denied", nil)
	case errors.Is(err, workflow.ErrInvalidTransition):
		log.Warn(op+": invalid transition", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusConflict, "invalid transition", nil)
	case errors.Is(err, casestudies.ErrMalformedImport):
		log.Warn(op+": malformed import", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusBadRequest, err.Error(), nil)
	case errors.Is(err, ErrConfirmationRequired):
		log.Warn(op + ": confirmation required")
		transport.WriteError(w, http.StatusConflict, "confirmation required", nil)
	case errors.Is(err, ErrInvalidBulkEdit):
		log.Warn(op + ": nothing to change")
		transport.WriteError(w, http.StatusBadRequest, err.Error(), nil)
	case errors.Is(err, history.ErrIndexOutOfRange):
		log.Warn(op+": index out of range", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusNotFound, "history index out of range", nil)
	default:
		log.Error(op+": error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "internal error", nil)
	}
}

func (h *Handler) notifyReviewers(log *slog.Logger, s *Session, slug string) {
	if h.opts.Notifier == nil {
		return
	}
	rec, err := s.Get(slug)
	if err != nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 8*time.Second)
		defer cancel()

		ids, err := h.opts.Notifier.SendReviewRequest(ctx, rec)
		if err != nil {
			log.Warn("cms review email: send failed", slog.String("slug", rec.Slug), slog.String("error", err.Error()))
			return
		}
		log.Info("cms review email: sent", slog.String("slug", rec.Slug), slog.Int("messages", len(ids)))
	}()
}

func (h *Handler) bodyError(w http.ResponseWriter, log *slog.Logger, err error) {
	if errors.Is(err, httpx.ErrBodyTooLarge) {
		log.Warn("cms import: payload too large")
		transport.WriteError(w, http.StatusRequestEntityTooLarge, "payload too large", nil)
		return
	}
	log.Warn("cms import: unreadable body", slog.String("error", err.Error()))
	transport.WriteError(w, http.StatusBadRequest, "unreadable body", nil)
}

func (h *Handler) logWithRequest(r *http.Request) *slog.Logger {
	log := h.log
	if id := middleware.RequestIDFromContext(r.Context()); id != "" {
		log = log.With(slog.String("request_id", id))
	}
	if admin := middleware.AdminFromContext(r.Context()); admin != "" {
		log = log.With(slog.String("admin", admin))
	}
	return log
}

func transitionResult(err error) string {
	switch {
	case errors.Is(err, workflow.ErrPermissionDenied):
		return "denied"
	case errors.Is(err, workflow.ErrInvalidTransition):
		return "invalid"
	default:
		return "error"
	}
}

func importResult(err error) string {
	if errors.Is(err, ErrConfirmationRequired) {
		return "unconfirmed"
	}
	return "rejected"
}
