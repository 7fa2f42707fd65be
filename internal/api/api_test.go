package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/crv/internal/history"
	"github.com/joescharf/crv/internal/models"
	"github.com/joescharf/crv/internal/service/servicetest"
	"github.com/joescharf/crv/internal/session"
	"github.com/joescharf/crv/internal/settings"
	"github.com/joescharf/crv/internal/store"
)

type testEnv struct {
	srv      *Server
	router   http.Handler
	fake     *servicetest.Fake
	settings *settings.Store
	history  *history.Manager
}

func setupTestServer(t *testing.T, reviews ...models.Review) *testEnv {
	t.Helper()
	kv, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, kv.Migrate(context.Background()))
	t.Cleanup(func() { kv.Close() })

	fake := servicetest.New(reviews...)
	st := settings.NewStore(kv, nil)
	hist := history.NewManager(fake, nil)
	ctrl := session.New(fake, hist, st.Load(context.Background()),
		session.WithClock(func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }))
	srv := NewServer(st, ctrl, hist, nil)

	return &testEnv{srv: srv, router: srv.Router(), fake: fake, settings: st, history: hist}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	return v
}

func sampleReviews() []models.Review {
	return []models.Review{
		{ID: "2", AIProvider: "Google Gemini", FileName: "util.py", Summary: "Looks fine", Success: true},
		{ID: "1", AIProvider: "OpenAI GPT-4", FileName: "Foo.java", Summary: "Null check", Errors: []string{"NPE"}, TotalIssues: 1, Success: true},
	}
}

func TestSettings_API(t *testing.T) {
	env := setupTestServer(t)

	w := env.do(t, "GET", "/api/v1/settings", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.DefaultSettings(), decode[models.Settings](t, w))

	body := `{"apiKey":"sk-123","defaultProvider":"Google Gemini","autoSave":false,"theme":"dark","demoModeEnabled":false}`
	w = env.do(t, "PUT", "/api/v1/settings", body)
	assert.Equal(t, http.StatusOK, w.Code)
	saved := decode[models.Settings](t, w)
	assert.Equal(t, models.RedactedKey, saved.APIKey)
	assert.Equal(t, "dark", saved.Theme)
	assert.Equal(t, "sk-123", env.settings.Load(context.Background()).APIKey)

	// Sending the mask back keeps the stored key.
	body = `{"apiKey":"********","defaultProvider":"Google Gemini","autoSave":false,"theme":"light","demoModeEnabled":false}`
	w = env.do(t, "PUT", "/api/v1/settings", body)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "sk-123", env.settings.Load(context.Background()).APIKey)

	w = env.do(t, "DELETE", "/api/v1/settings", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.DefaultSettings(), decode[models.Settings](t, w))
	assert.Equal(t, models.DefaultSettings(), env.settings.Load(context.Background()))
}

func TestSettings_API_Invalid(t *testing.T) {
	env := setupTestServer(t)

	w := env.do(t, "PUT", "/api/v1/settings", `{"defaultProvider":"x","theme":"neon"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, "PUT", "/api/v1/settings", `not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSettings_API_NotifiesListener(t *testing.T) {
	env := setupTestServer(t)
	var got []models.Settings
	env.srv.OnSettingsChange(func(st models.Settings) { got = append(got, st) })

	w := env.do(t, "PUT", "/api/v1/settings", `{"apiKey":"k","defaultProvider":"OpenAI GPT-4","autoSave":true,"theme":"auto","demoModeEnabled":false}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, got, 1)
	assert.True(t, got[0].DirectProviderEnabled())
}

func TestProviders_API(t *testing.T) {
	env := setupTestServer(t)
	env.fake.Providers = []string{"OpenAI GPT-4", "Google Gemini"}

	w := env.do(t, "GET", "/api/v1/providers", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"OpenAI GPT-4", "Google Gemini"}, decode[[]string](t, w))
}

func TestSessionLifecycle_API(t *testing.T) {
	env := setupTestServer(t)

	w := env.do(t, "GET", "/api/v1/session", "")
	assert.Equal(t, http.StatusOK, w.Code)
	snap := decode[session.Snapshot](t, w)
	assert.Equal(t, session.StateIdle, snap.State)
	assert.Equal(t, models.DefaultProvider, snap.Provider)

	// Blank code is rejected locally.
	w = env.do(t, "POST", "/api/v1/session/submit", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 0, env.fake.Submits())

	w = env.do(t, "PUT", "/api/v1/session/draft", `{"code":"class Foo {}","fileName":"Foo.java"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	snap = decode[session.Snapshot](t, w)
	assert.Equal(t, "class Foo {}", snap.Code)
	assert.Equal(t, "Foo.java", snap.FileName)

	w = env.do(t, "GET", "/api/v1/session/export", "")
	assert.Equal(t, http.StatusConflict, w.Code)

	w = env.do(t, "POST", "/api/v1/session/submit", "")
	require.Equal(t, http.StatusOK, w.Code)
	rev := decode[models.Review](t, w)
	assert.True(t, rev.Success)
	assert.Len(t, env.history.All(), 1)

	w = env.do(t, "GET", "/api/v1/session/export", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/plain; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "code-review-"+rev.ID+".txt")
	assert.Contains(t, w.Body.String(), "class Foo {}")

	w = env.do(t, "POST", "/api/v1/session/clear", "")
	assert.Equal(t, http.StatusOK, w.Code)
	snap = decode[session.Snapshot](t, w)
	assert.Equal(t, session.StateIdle, snap.State)
	assert.Empty(t, snap.Code)
}

func TestSessionSubmit_ServiceFailure(t *testing.T) {
	env := setupTestServer(t)
	env.fake.SubmitErr = errors.New("connection refused")

	env.do(t, "PUT", "/api/v1/session/draft", `{"code":"x"}`)
	w := env.do(t, "POST", "/api/v1/session/submit", "")
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, models.GenericFailureMessage, decode[map[string]string](t, w)["error"])

	w = env.do(t, "GET", "/api/v1/session", "")
	snap := decode[session.Snapshot](t, w)
	assert.Equal(t, session.StateFailed, snap.State)
}

func TestHistory_API(t *testing.T) {
	env := setupTestServer(t, sampleReviews()...)

	w := env.do(t, "POST", "/api/v1/history/load", "")
	assert.Equal(t, http.StatusOK, w.Code)
	resp := decode[historyResponse](t, w)
	assert.Len(t, resp.Reviews, 2)
	assert.Equal(t, []string{"Google Gemini", "OpenAI GPT-4"}, resp.Providers)

	w = env.do(t, "GET", "/api/v1/history?search=NULL", "")
	resp = decode[historyResponse](t, w)
	require.Len(t, resp.Reviews, 1)
	assert.Equal(t, "1", resp.Reviews[0].ID)
	assert.Equal(t, history.AllProviders, resp.Filter.Provider)

	w = env.do(t, "GET", "/api/v1/history?provider=Google+Gemini", "")
	resp = decode[historyResponse](t, w)
	require.Len(t, resp.Reviews, 1)
	assert.Equal(t, "2", resp.Reviews[0].ID)

	w = env.do(t, "GET", "/api/v1/history/stats", "")
	stats := decode[models.Statistics](t, w)
	assert.Equal(t, 2, stats.TotalReviews)
	assert.Equal(t, 1, stats.Errors)

	w = env.do(t, "GET", "/api/v1/history/1", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Foo.java", decode[models.Review](t, w).FileName)

	w = env.do(t, "GET", "/api/v1/history/1/export", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ERRORS")
	assert.NotContains(t, w.Body.String(), "ORIGINAL CODE")

	w = env.do(t, "GET", "/api/v1/history/404", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, "DELETE", "/api/v1/history/1", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Len(t, env.history.All(), 1)
}

func TestHistoryExport_QuotedIDInFileName(t *testing.T) {
	env := setupTestServer(t, models.Review{ID: `a"b`, AIProvider: "OpenAI GPT-4", Summary: "quoted", Success: true})

	w := env.do(t, "GET", "/api/v1/history/a%22b/export", "")
	require.Equal(t, http.StatusOK, w.Code)

	disposition, params, err := mime.ParseMediaType(w.Header().Get("Content-Disposition"))
	require.NoError(t, err)
	assert.Equal(t, "attachment", disposition)
	assert.Equal(t, `code-review-a"b.txt`, params["filename"])
}

func TestHistoryDelete_ServiceFailureKeepsEntry(t *testing.T) {
	env := setupTestServer(t, sampleReviews()...)
	env.do(t, "POST", "/api/v1/history/load", "")
	env.fake.DeleteErr = models.NewServiceFailure("delete review", "", "Failed to delete review", errors.New("503"))

	w := env.do(t, "DELETE", "/api/v1/history/1", "")
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Len(t, env.history.All(), 2)
}

func TestHistoryLoad_FailureIsEmpty(t *testing.T) {
	env := setupTestServer(t, sampleReviews()...)
	env.fake.ListErr = errors.New("down")

	w := env.do(t, "POST", "/api/v1/history/load", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[historyResponse](t, w).Reviews)
}

func TestCORS(t *testing.T) {
	env := setupTestServer(t)

	w := env.do(t, "OPTIONS", "/api/v1/settings", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
