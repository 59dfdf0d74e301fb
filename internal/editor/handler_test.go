package editor

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"casehub-backend/internal/casestudies"
	"casehub-backend/internal/validation"
	"casehub-backend/internal/workflow"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryStore struct {
	mu    sync.Mutex
	items []casestudies.CaseRecord
	saved [][]casestudies.CaseRecord
}

func (m *memoryStore) LoadAll(ctx context.Context) ([]casestudies.CaseRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return casestudies.CloneAll(m.items), nil
}

func (m *memoryStore) SaveAll(ctx context.Context, items []casestudies.CaseRecord) error {
	for _, rec := range items {
		if err := casestudies.Check(rec); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = casestudies.CloneAll(items)
	m.saved = append(m.saved, casestudies.CloneAll(items))
	return nil
}

type recordingNotifier struct {
	sent chan casestudies.CaseRecord
}

func (n *recordingNotifier) SendReviewRequest(ctx context.Context, rec casestudies.CaseRecord) ([]string, error) {
	n.sent <- rec
	return []string{"msg-1"}, nil
}

type testClient struct {
	t       *testing.T
	router  http.Handler
	session string
}

func newTestClient(t *testing.T, store *memoryStore, notifier ReviewNotifier) *testClient {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	manager := NewManager(store, ManagerOptions{Debounce: 10 * time.Millisecond, Log: log})
	t.Cleanup(manager.Close)

	h := NewHandler(manager, store, validation.New(), log, HandlerOptions{Notifier: notifier})
	r := chi.NewRouter()
	r.Route("/cms", h.Routes)
	return &testClient{t: t, router: r}
}

func (c *testClient) do(method, path string, body interface{}) *httptest.ResponseRecorder {
	c.t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case []byte:
		reader = bytes.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(c.t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if c.session != "" {
		req.Header.Set(SessionHeader, c.session)
	}
	rec := httptest.NewRecorder()
	c.router.ServeHTTP(rec, req)
	if id := rec.Header().Get(SessionHeader); id != "" {
		c.session = id
	}
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v))
}

func TestSessionIsCreatedAndReused(t *testing.T) {
	c := newTestClient(t, &memoryStore{items: sampleCases()}, nil)

	rec := c.do(http.MethodGet, "/cms/session", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	first := c.session
	require.NotEmpty(t, first)
	assert.Contains(t, rec.Header().Get("Set-Cookie"), SessionCookie+"="+first)

	var view SessionResponse
	decodeBody(t, rec, &view)
	assert.Equal(t, workflow.RoleAdmin, view.Role)
	assert.Equal(t, 3, view.Cases)
	assert.Len(t, view.AllowedActions, len(workflow.Actions))

	c.do(http.MethodGet, "/cms/session", nil)
	assert.Equal(t, first, c.session)
}

func TestSetRoleChangesAllowedActions(t *testing.T) {
	c := newTestClient(t, &memoryStore{items: sampleCases()}, nil)

	rec := c.do(http.MethodPut, "/cms/session/role", map[string]string{"role": "viewer"})
	require.Equal(t, http.StatusOK, rec.Code)
	var view SessionResponse
	decodeBody(t, rec, &view)
	assert.Equal(t, workflow.RoleViewer, view.Role)
	assert.Empty(t, view.AllowedActions)

	rec = c.do(http.MethodPut, "/cms/session/role", map[string]string{"role": "Owner"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateUpdateDeleteCase(t *testing.T) {
	c := newTestClient(t, &memoryStore{}, nil)

	rec := c.do(http.MethodPost, "/cms/cases", map[string]string{"titleEn": "Edge Analytics", "category": "Data"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var created casestudies.CaseRecord
	decodeBody(t, rec, &created)
	assert.Equal(t, "edge-analytics", created.Slug)
	assert.Equal(t, workflow.StatusDraft, created.Status)

	rec = c.do(http.MethodPost, "/cms/cases", map[string]string{"titleEn": "Edge Analytics"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = c.do(http.MethodPost, "/cms/cases", map[string]string{"titleEn": "Bad", "heroImage": "img.gif"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	var errBody struct {
		Error   string   `json:"error"`
		Reasons []string `json:"reasons"`
	}
	decodeBody(t, rec, &errBody)
	assert.Equal(t, "validation error", errBody.Error)
	assert.Len(t, errBody.Reasons, 1)

	rec = c.do(http.MethodPut, "/cms/cases/edge-analytics", map[string]string{"slug": "edge-analytics", "titleEn": "Edge Analytics", "industry": "Retail"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = c.do(http.MethodGet, "/cms/cases/edge-analytics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got casestudies.CaseRecord
	decodeBody(t, rec, &got)
	assert.Equal(t, "Retail", got.Industry)

	assert.Equal(t, http.StatusNoContent, c.do(http.MethodDelete, "/cms/cases/edge-analytics", nil).Code)
	assert.Equal(t, http.StatusNotFound, c.do(http.MethodGet, "/cms/cases/edge-analytics", nil).Code)
}

func TestListCasesQuery(t *testing.T) {
	c := newTestClient(t, &memoryStore{items: sampleCases()}, nil)

	rec := c.do(http.MethodGet, "/cms/cases?sort=slug&order=desc&limit=2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Items []casestudies.CaseRecord `json:"items"`
		Total int                      `json:"total"`
	}
	decodeBody(t, rec, &body)
	assert.Equal(t, 3, body.Total)
	require.Len(t, body.Items, 2)
	assert.Equal(t, "gxp-validation", body.Items[0].Slug)

	rec = c.do(http.MethodGet, "/cms/cases?status=published", nil)
	decodeBody(t, rec, &body)
	assert.Equal(t, 1, body.Total)

	assert.Equal(t, http.StatusBadRequest, c.do(http.MethodGet, "/cms/cases?status=archived", nil).Code)
	assert.Equal(t, http.StatusBadRequest, c.do(http.MethodGet, "/cms/cases?sort=owner", nil).Code)
	assert.Equal(t, http.StatusBadRequest, c.do(http.MethodGet, "/cms/cases?limit=-1", nil).Code)
}

func TestTransitionEndpoint(t *testing.T) {
	notifier := &recordingNotifier{sent: make(chan casestudies.CaseRecord, 1)}
	c := newTestClient(t, &memoryStore{items: sampleCases()}, notifier)

	rec := c.do(http.MethodPost, "/cms/cases/gxp-validation/transitions/submit", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var body TransitionResponse
	decodeBody(t, rec, &body)
	assert.Equal(t, workflow.StatusInReview, body.Item.Status)
	assert.Equal(t, workflow.Notice(workflow.ActionSubmit, "gxp-validation"), body.Notice)

	select {
	case sent := <-notifier.sent:
		assert.Equal(t, "gxp-validation", sent.Slug)
	case <-time.After(time.Second):
		t.Fatal("review notification not sent")
	}

	rec = c.do(http.MethodPost, "/cms/cases/gxp-validation/transitions/publish", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	c.do(http.MethodPut, "/cms/session/role", map[string]string{"role": "Editor"})
	rec = c.do(http.MethodPost, "/cms/cases/gxp-validation/transitions/approve", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	assert.Equal(t, http.StatusBadRequest, c.do(http.MethodPost, "/cms/cases/gxp-validation/transitions/archive", nil).Code)
	assert.Equal(t, http.StatusNotFound, c.do(http.MethodPost, "/cms/cases/nope/transitions/submit", nil).Code)
}

func TestBulkEndpoints(t *testing.T) {
	c := newTestClient(t, &memoryStore{items: sampleCases()}, nil)

	rec := c.do(http.MethodPost, "/cms/cases/bulk-edit", map[string]interface{}{
		"slugs":   []string{"gxp-validation", "data-mesh"},
		"addTech": []string{"Go", "go"},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = c.do(http.MethodPost, "/cms/cases/bulk-edit", map[string]interface{}{
		"slugs":    []string{"gxp-validation"},
		"category": "Astrology",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = c.do(http.MethodPost, "/cms/cases/bulk-transition", map[string]interface{}{
		"slugs":  []string{"cloud-landing-zone", "gxp-validation"},
		"action": "unpublish",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var res BulkTransitionResult
	decodeBody(t, rec, &res)
	assert.Equal(t, []string{"cloud-landing-zone"}, res.Applied)
	assert.Contains(t, res.Skipped, "gxp-validation")

	c.do(http.MethodPut, "/cms/session/role", map[string]string{"role": "Viewer"})
	rec = c.do(http.MethodPost, "/cms/cases/bulk-transition", map[string]interface{}{
		"slugs":  []string{"gxp-validation"},
		"action": "submit",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = c.do(http.MethodPost, "/cms/cases/bulk-delete", map[string]interface{}{"slugs": []string{"gxp-validation", "data-mesh"}})
	require.Equal(t, http.StatusOK, rec.Code)
	var deleted map[string]int
	decodeBody(t, rec, &deleted)
	assert.Equal(t, 2, deleted["deleted"])

	assert.Equal(t, http.StatusBadRequest, c.do(http.MethodPost, "/cms/cases/bulk-delete", map[string]interface{}{"slugs": []string{}}).Code)
}

func TestValidationEndpoint(t *testing.T) {
	items := sampleCases()
	items[0].HeroMedia = "/video/intro.mov"
	c := newTestClient(t, &memoryStore{items: items}, nil)

	rec := c.do(http.MethodGet, "/cms/cases/gxp-validation/validation", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var body ValidationResponse
	decodeBody(t, rec, &body)
	assert.False(t, body.Valid)
	assert.Len(t, body.Reasons, 1)
}

func TestExportImportEndpoints(t *testing.T) {
	c := newTestClient(t, &memoryStore{items: sampleCases()}, nil)

	rec := c.do(http.MethodGet, "/cms/export", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "cases.json")
	exported := rec.Body.Bytes()

	rec = c.do(http.MethodPost, "/cms/import", []byte(`{"slug":"x"}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = c.do(http.MethodPost, "/cms/import", []byte(`[{"slug":"only","titleEn":"Only"}]`))
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = c.do(http.MethodPost, "/cms/import?confirm=true", []byte(`[{"slug":"only","titleEn":"Only"}]`))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = c.do(http.MethodGet, "/cms/session", nil)
	var view SessionResponse
	decodeBody(t, rec, &view)
	assert.Equal(t, 1, view.Cases)

	rec = c.do(http.MethodPost, "/cms/import?confirm=1", exported)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestHistoryEndpoints(t *testing.T) {
	c := newTestClient(t, &memoryStore{items: sampleCases()}, nil)

	require.Equal(t, http.StatusNoContent, c.do(http.MethodDelete, "/cms/cases/data-mesh", nil).Code)

	rec := c.do(http.MethodPost, "/cms/history/undo", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var undo CollectionResponse
	decodeBody(t, rec, &undo)
	assert.True(t, undo.Changed)
	assert.Len(t, undo.Items, 3)

	rec = c.do(http.MethodPost, "/cms/history/redo", nil)
	var redo CollectionResponse
	decodeBody(t, rec, &redo)
	assert.True(t, redo.Changed)
	assert.Len(t, redo.Items, 2)

	rec = c.do(http.MethodGet, "/cms/history", nil)
	var state HistoryState
	decodeBody(t, rec, &state)
	assert.Len(t, state.Snapshots, 2)
	assert.True(t, state.CanUndo)

	assert.Equal(t, http.StatusConflict, c.do(http.MethodPost, "/cms/history/restore/0", nil).Code)
	assert.Equal(t, http.StatusNotFound, c.do(http.MethodPost, "/cms/history/restore/9?confirm=true", nil).Code)
	assert.Equal(t, http.StatusBadRequest, c.do(http.MethodPost, "/cms/history/restore/x?confirm=true", nil).Code)

	rec = c.do(http.MethodPost, "/cms/history/restore/0?confirm=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var restored CollectionResponse
	decodeBody(t, rec, &restored)
	assert.Len(t, restored.Items, 3)

	rec = c.do(http.MethodGet, "/cms/history/export", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	exported := rec.Body.Bytes()

	assert.Equal(t, http.StatusBadRequest, c.do(http.MethodPost, "/cms/history/import?confirm=true", []byte(`{}`)).Code)
	assert.Equal(t, http.StatusConflict, c.do(http.MethodPost, "/cms/history/import", exported).Code)
	assert.Equal(t, http.StatusOK, c.do(http.MethodPost, "/cms/history/import?confirm=true", exported).Code)
}

func TestSaveAndReload(t *testing.T) {
	store := &memoryStore{items: sampleCases()}
	c := newTestClient(t, store, nil)

	require.Equal(t, http.StatusNoContent, c.do(http.MethodDelete, "/cms/cases/data-mesh", nil).Code)
	rec := c.do(http.MethodPost, "/cms/save", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, store.saved, 1)
	assert.Len(t, store.saved[0], 2)

	store.mu.Lock()
	store.items = sampleCases()
	store.mu.Unlock()

	assert.Equal(t, http.StatusConflict, c.do(http.MethodPost, "/cms/reload", nil).Code)
	rec = c.do(http.MethodPost, "/cms/reload?confirm=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var body CollectionResponse
	decodeBody(t, rec, &body)
	assert.Len(t, body.Items, 3)
}

func TestSaveRejectsInvalidCollection(t *testing.T) {
	items := sampleCases()
	items[1].HeroImage = "relative.png"
	store := &memoryStore{items: items}
	c := newTestClient(t, store, nil)

	rec := c.do(http.MethodPost, "/cms/save", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, store.saved)
}
