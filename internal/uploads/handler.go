// Package uploads stores hero images and videos for case studies and
// returns the public path the editor puts into the record.
package uploads

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"casehub-backend/internal/casestudies"
	"casehub-backend/internal/middleware"
	"casehub-backend/internal/transport"
	"github.com/google/uuid"
)

var dirPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*(/[a-z0-9][a-z0-9_-]*)*$`)

var errInvalidDir = errors.New("invalid target directory")

type Handler struct {
	root     string
	prefix   string
	maxBytes int64
	log      *slog.Logger
}

type Response struct {
	Path string `json:"path"`
	Kind string `json:"kind"`
	Size int64  `json:"size"`
}

// NewHandler stores files below root and reports them under the public
// prefix, e.g. root "./public/media" served as "/media".
func NewHandler(root, publicPrefix string, maxBytes int64, log *slog.Logger) *Handler {
	prefix := "/" + strings.Trim(publicPrefix, "/")
	return &Handler{root: root, prefix: prefix, maxBytes: maxBytes, log: log}
}

// Files serves the uploaded assets; mount it with http.StripPrefix.
func (h *Handler) Files() http.Handler {
	return http.FileServer(http.Dir(h.root))
}

func (h *Handler) Prefix() string {
	return h.prefix
}

func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes+1<<20)

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			log.Warn("uploads create: too large")
			transport.WriteError(w, http.StatusRequestEntityTooLarge, "file is too large", nil)
			return
		}
		log.Warn("uploads create: missing file", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusBadRequest, "file is required", nil)
		return
	}
	defer file.Close()

	if header.Size == 0 {
		transport.WriteError(w, http.StatusBadRequest, "file is empty", nil)
		return
	}
	if header.Size > h.maxBytes {
		log.Warn("uploads create: too large", slog.Int64("size", header.Size))
		transport.WriteError(w, http.StatusRequestEntityTooLarge, "file is too large", nil)
		return
	}

	dir, err := cleanDir(r.FormValue("dir"))
	if err != nil {
		transport.WriteError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	name := uuid.NewString() + strings.ToLower(filepath.Ext(header.Filename))
	public := path.Join(h.prefix, dir, name)
	kind := assetKind(public)
	if kind == "" {
		log.Warn("uploads create: unsupported type", slog.String("filename", header.Filename))
		transport.WriteError(w, http.StatusBadRequest, "unsupported file type", map[string]string{
			"file": "jpg, jpeg, png, webp, mp4 or webm",
		})
		return
	}

	target := filepath.Join(h.root, filepath.FromSlash(dir), name)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		log.Error("uploads create: storage error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "failed to prepare storage", nil)
		return
	}
	written, err := writeFile(target, file)
	if err != nil {
		log.Error("uploads create: write error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "failed to save file", nil)
		return
	}

	log.Info("uploads create: ok", slog.String("path", public), slog.Int64("size", written))
	transport.WriteJSON(w, http.StatusCreated, Response{Path: public, Kind: kind, Size: written})
}

func cleanDir(raw string) (string, error) {
	dir := strings.Trim(strings.TrimSpace(raw), "/")
	if dir == "" {
		return "", nil
	}
	if !dirPattern.MatchString(dir) {
		return "", errInvalidDir
	}
	return dir, nil
}

func assetKind(p string) string {
	switch {
	case casestudies.IsImagePath(p):
		return "image"
	case casestudies.IsVideoPath(p):
		return "video"
	default:
		return ""
	}
}

func writeFile(target string, src io.Reader) (int64, error) {
	out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(out, src)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(target)
		return 0, fmt.Errorf("write %s: %w", filepath.Base(target), err)
	}
	return n, nil
}

func (h *Handler) logWithRequest(r *http.Request) *slog.Logger {
	if id := middleware.RequestIDFromContext(r.Context()); id != "" {
		return h.log.With(slog.String("request_id", id))
	}
	return h.log
}
