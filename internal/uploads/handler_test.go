package uploads

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func multipartRequest(t *testing.T, filename string, content []byte, dir string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if filename != "" {
		part, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	if dir != "" {
		require.NoError(t, mw.WriteField("dir", dir))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/admin/uploads", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func newHandler(t *testing.T, maxBytes int64) (*Handler, string) {
	root := t.TempDir()
	return NewHandler(root, "media/", maxBytes, slog.New(slog.NewTextHandler(io.Discard, nil))), root
}

func TestUploadStoresImage(t *testing.T) {
	h, root := newHandler(t, 1024)

	rec := httptest.NewRecorder()
	h.Upload(rec, multipartRequest(t, "Hero.JPG", []byte("jpeg-bytes"), "images/cases"))

	require.Equal(t, http.StatusCreated, rec.Code)
	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "image", resp.Kind)
	assert.Equal(t, int64(10), resp.Size)
	assert.True(t, strings.HasPrefix(resp.Path, "/media/images/cases/"))
	assert.True(t, strings.HasSuffix(resp.Path, ".jpg"))

	stored, err := os.ReadFile(filepath.Join(root, "images", "cases", filepath.Base(resp.Path)))
	require.NoError(t, err)
	assert.Equal(t, "jpeg-bytes", string(stored))
}

func TestUploadVideo(t *testing.T) {
	h, _ := newHandler(t, 1024)
	rec := httptest.NewRecorder()
	h.Upload(rec, multipartRequest(t, "intro.webm", []byte("webm"), ""))

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"kind":"video"`)
}

func TestUploadRejects(t *testing.T) {
	h, _ := newHandler(t, 8)

	cases := []struct {
		name     string
		filename string
		content  []byte
		dir      string
		status   int
	}{
		{"missing file", "", nil, "", http.StatusBadRequest},
		{"empty file", "a.png", []byte{}, "", http.StatusBadRequest},
		{"unsupported type", "a.gif", []byte("gif"), "", http.StatusBadRequest},
		{"too large", "a.png", []byte("0123456789"), "", http.StatusRequestEntityTooLarge},
		{"path traversal", "a.png", []byte("png"), "../etc", http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.Upload(rec, multipartRequest(t, tc.filename, tc.content, tc.dir))
			assert.Equal(t, tc.status, rec.Code)
		})
	}
}

func TestFilesServesUploads(t *testing.T) {
	h, root := newHandler(t, 1024)
	require.NoError(t, os.WriteFile(filepath.Join(root, "x.png"), []byte("png"), 0o644))

	rec := httptest.NewRecorder()
	http.StripPrefix(h.Prefix(), h.Files()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/media/x.png", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "png", rec.Body.String())
}
