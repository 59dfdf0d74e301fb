package content

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"casehub-backend/internal/middleware"
	"casehub-backend/internal/transport"
	"github.com/go-chi/chi/v5"
	"golang.org/x/text/language"
)

var (
	supported = []language.Tag{language.German, language.English}
	matcher   = language.NewMatcher(supported)
)

type Handler struct {
	repo *Repository
	log  *slog.Logger
}

func NewHandler(repo *Repository, log *slog.Logger) *Handler {
	return &Handler{repo: repo, log: log}
}

func (h *Handler) ListSections(w http.ResponseWriter, r *http.Request) {
	transport.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"sections": h.repo.Sections(),
	})
}

func (h *Handler) GetSection(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	section := strings.TrimSpace(chi.URLParam(r, "section"))
	lang := Negotiate(r.URL.Query().Get("lang"), r.Header.Get("Accept-Language"))

	body, err := h.repo.GetContent(section, lang)
	if err != nil {
		if errors.Is(err, ErrSectionNotFound) {
			log.Warn("content get: not found", slog.String("section", section), slog.String("lang", lang))
			transport.WriteError(w, http.StatusNotFound, "content not found", nil)
			return
		}
		log.Error("content get: encode error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "internal error", nil)
		return
	}

	w.Header().Set("Content-Language", lang)
	w.Header().Add("Vary", "Accept-Language")
	transport.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"section": section,
		"lang":    lang,
		"content": body,
	})
}

// Negotiate picks de or en. An explicit lang parameter wins over the
// Accept-Language header; anything unmatched is German.
func Negotiate(param, acceptLanguage string) string {
	if p := strings.TrimSpace(param); p != "" {
		if tag, err := language.Parse(p); err == nil {
			return baseOf(tag)
		}
	}
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return LangDE
	}
	_, idx, conf := matcher.Match(tags...)
	if conf == language.No {
		return LangDE
	}
	return baseOf(supported[idx])
}

func baseOf(tag language.Tag) string {
	base, _ := tag.Base()
	if base.String() == LangEN {
		return LangEN
	}
	return LangDE
}

func (h *Handler) logWithRequest(r *http.Request) *slog.Logger {
	if id := middleware.RequestIDFromContext(r.Context()); id != "" {
		return h.log.With(slog.String("request_id", id))
	}
	return h.log
}
