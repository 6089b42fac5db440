package web

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"camelwiki/internal/auth"
	"camelwiki/internal/cache"
	"camelwiki/internal/database"
	"camelwiki/internal/models"
	"camelwiki/internal/page"
	"camelwiki/internal/render"
	"camelwiki/internal/revision"
	"camelwiki/internal/wiki"
)

const testSessionKey = "0123456789abcdef0123456789abcdef"

type testEnv struct {
	server *Server
	auth   *auth.Service
}

func newTestEnv(t *testing.T, variant string) *testEnv {
	t.Helper()
	db, err := database.New(database.SQLite, filepath.Join(t.TempDir(), "wiki.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.Migrate(context.Background(), db))

	authRepo := auth.NewRepository(db)
	authService, err := auth.NewService(authRepo, testSessionKey, false)
	require.NoError(t, err)

	r, err := render.New(render.Markdown)
	require.NoError(t, err)
	renderer := render.NewCached(r, cache.NewMemory(16), time.Minute, zerolog.Nop())

	var svc wiki.Service
	if variant == wiki.VariantSimple {
		svc = wiki.NewSimpleService(page.NewSimpleRepository(db), authRepo, renderer, zerolog.Nop())
	} else {
		manager := revision.NewManager(page.NewRepository(db), 0, zerolog.Nop())
		svc = wiki.NewVersionedService(manager, authRepo, renderer, zerolog.Nop())
	}

	server, err := NewServer(Config{
		DB:          db,
		AuthService: authService,
		Wiki:        svc,
		Renderer:    renderer,
		StartPage:   "StartPage",
		MetricsPath: "/metrics",
		Logger:      zerolog.Nop(),
	})
	require.NoError(t, err)
	return &testEnv{server: server, auth: authService}
}

func (e *testEnv) do(t *testing.T, req *http.Request, cookies []*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	e.server.ServeHTTP(rec, req)
	return rec
}

func postForm(target string, form url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func (e *testEnv) login(t *testing.T, username string) []*http.Cookie {
	t.Helper()
	_, err := e.auth.RegisterUser(context.Background(), auth.Registration{Username: username, Password: "correct horse"})
	require.NoError(t, err)

	rec := e.do(t, postForm("/login", url.Values{"username": {username}, "password": {"correct horse"}, "return": {"/edit/StartPage"}}), nil)
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/edit/StartPage", rec.Header().Get("Location"))
	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)
	return cookies
}

func TestHomeRedirectsToStartPage(t *testing.T) {
	env := newTestEnv(t, wiki.VariantVersioned)
	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/", nil), nil)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/view/StartPage", rec.Header().Get("Location"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestViewMissingPageOffersCreation(t *testing.T) {
	env := newTestEnv(t, wiki.VariantVersioned)
	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/view/NewPage", nil), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "does not exist yet")
	assert.Contains(t, body, `href="/edit/NewPage"`)
	assert.Contains(t, body, `href="/login?return=%2Fview%2FNewPage"`)
}

func TestEditRequiresLogin(t *testing.T) {
	env := newTestEnv(t, wiki.VariantVersioned)
	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/edit/StartPage", nil), nil)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login?return=%2Fedit%2FStartPage", rec.Header().Get("Location"))
}

func TestSaveRequiresLogin(t *testing.T) {
	env := newTestEnv(t, wiki.VariantVersioned)
	rec := env.do(t, postForm("/save/StartPage", url.Values{"body": {"hello"}}), nil)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login?return=%2Fedit%2FStartPage", rec.Header().Get("Location"))

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/view/StartPage", nil), nil)
	assert.Contains(t, rec.Body.String(), "does not exist yet")
}

func TestEditSaveViewFlow(t *testing.T) {
	for _, variant := range []string{wiki.VariantVersioned, wiki.VariantSimple} {
		t.Run(variant, func(t *testing.T) {
			env := newTestEnv(t, variant)
			cookies := env.login(t, "alice")

			rec := env.do(t, httptest.NewRequest(http.MethodGet, "/edit/StartPage", nil), cookies)
			require.Equal(t, http.StatusOK, rec.Code)
			assert.Contains(t, rec.Body.String(), `action="/save/StartPage"`)
			assert.Contains(t, rec.Body.String(), "Log out")

			rec = env.do(t, postForm("/save/StartPage", url.Values{"body": {"Welcome to OtherPage & friends"}}), cookies)
			require.Equal(t, http.StatusFound, rec.Code)
			assert.Equal(t, "/view/StartPage", rec.Header().Get("Location"))

			rec = env.do(t, httptest.NewRequest(http.MethodGet, "/view/StartPage", nil), cookies)
			require.Equal(t, http.StatusOK, rec.Code)
			body := rec.Body.String()
			assert.Contains(t, body, `<a href="/view/OtherPage">OtherPage</a>`)
			assert.Contains(t, body, "&amp; friends")
			assert.Contains(t, body, "alice")
			assert.Contains(t, body, `/logout?return=%2Fview%2FStartPage`)

			rec = env.do(t, httptest.NewRequest(http.MethodGet, "/edit/StartPage", nil), cookies)
			assert.Contains(t, rec.Body.String(), "Welcome to OtherPage &amp; friends")
		})
	}
}

func TestSaveTitleWithReservedCharacters(t *testing.T) {
	for _, variant := range []string{wiki.VariantVersioned, wiki.VariantSimple} {
		t.Run(variant, func(t *testing.T) {
			env := newTestEnv(t, variant)
			cookies := env.login(t, "alice")

			rec := env.do(t, postForm("/save/Q", url.Values{"body": {"about Q"}}), cookies)
			require.Equal(t, http.StatusFound, rec.Code)

			rec = env.do(t, httptest.NewRequest(http.MethodGet, "/edit/Q%3FA", nil), cookies)
			require.Equal(t, http.StatusOK, rec.Code)
			assert.Contains(t, rec.Body.String(), `action="/save/Q%3FA"`)
			assert.NotContains(t, rec.Body.String(), `action="/save/Q?A"`)

			rec = env.do(t, postForm("/save/Q%3FA", url.Values{"body": {"meant for QandA"}}), cookies)
			require.Equal(t, http.StatusFound, rec.Code)
			assert.Equal(t, "/view/Q%3FA", rec.Header().Get("Location"))

			rec = env.do(t, httptest.NewRequest(http.MethodGet, "/view/Q%3FA", nil), nil)
			require.Equal(t, http.StatusOK, rec.Code)
			body := rec.Body.String()
			assert.Contains(t, body, "meant for QandA")
			assert.Contains(t, body, `href="/edit/Q%3FA"`)

			rec = env.do(t, httptest.NewRequest(http.MethodGet, "/view/Q", nil), nil)
			body = rec.Body.String()
			assert.Contains(t, body, "about Q")
			assert.NotContains(t, body, "meant for QandA")

			rec = env.do(t, httptest.NewRequest(http.MethodGet, "/view/100%25", nil), nil)
			assert.Contains(t, rec.Body.String(), `href="/edit/100%25"`)
		})
	}
}

func TestHistoryAndDiff(t *testing.T) {
	env := newTestEnv(t, wiki.VariantVersioned)
	cookies := env.login(t, "alice")

	for _, body := range []string{"first draft", "second draft"} {
		rec := env.do(t, postForm("/save/StartPage", url.Values{"body": {body}, "comment": {"edit " + body}}), cookies)
		require.Equal(t, http.StatusFound, rec.Code)
	}

	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/history/StartPage", nil), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "edit second draft")
	assert.Contains(t, body, `/diff/StartPage?from=1&amp;to=2`)

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/diff/StartPage?from=1&to=2", nil), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<del>")
	assert.Contains(t, rec.Body.String(), "<ins>")

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/diff/StartPage?from=1&to=9", nil), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/diff/StartPage?from=x&to=2", nil), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/history/NoSuchPage", nil), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSimpleVariantHasNoHistory(t *testing.T) {
	env := newTestEnv(t, wiki.VariantSimple)
	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/history/StartPage", nil), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPreview(t *testing.T) {
	env := newTestEnv(t, wiki.VariantVersioned)
	rec := env.do(t, httptest.NewRequest(http.MethodPost, "/_preview", strings.NewReader("*hi* FooBar")), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<em>hi</em>")
	assert.Contains(t, rec.Body.String(), `<a href="/view/FooBar">FooBar</a>`)
}

func TestHealthzAndMetrics(t *testing.T) {
	env := newTestEnv(t, wiki.VariantVersioned)
	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/healthz", nil), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok\n", rec.Body.String())

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/metrics", nil), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "camelwiki_http_requests_total")
}

func TestStaticAssets(t *testing.T) {
	env := newTestEnv(t, wiki.VariantVersioned)
	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/static/wiki.css", nil), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), ".topbar")
}

func TestLoginRejectsBadPassword(t *testing.T) {
	env := newTestEnv(t, wiki.VariantVersioned)
	env.login(t, "alice")

	rec := env.do(t, postForm("/login", url.Values{"username": {"alice"}, "password": {"wrong"}}), nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid username or password.")
}

func TestRegister(t *testing.T) {
	env := newTestEnv(t, wiki.VariantVersioned)

	rec := env.do(t, postForm("/register", url.Values{"username": {"bob"}, "password": {"longenough"}, "return": {"/view/StartPage"}}), nil)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login?return=%2Fview%2FStartPage", rec.Header().Get("Location"))

	rec = env.do(t, postForm("/register", url.Values{"username": {"bob"}, "password": {"longenough"}}), nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(t, postForm("/register", url.Values{"username": {"carol"}, "password": {"short"}}), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLogout(t *testing.T) {
	env := newTestEnv(t, wiki.VariantVersioned)
	cookies := env.login(t, "alice")

	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/logout?return=%2Fview%2FStartPage", nil), cookies)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/view/StartPage", rec.Header().Get("Location"))

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/edit/StartPage", nil), rec.Result().Cookies())
	assert.Equal(t, http.StatusFound, rec.Code)
}

// stubService fails every save with the given error.
type stubService struct {
	wiki.Service
	err error
}

func (s stubService) Save(context.Context, wiki.SaveInput, *models.Identity) error { return s.err }

func TestSaveErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"conflict", revision.ErrConflict, http.StatusServiceUnavailable},
		{"invalid title", wiki.ErrInvalidTitle, http.StatusBadRequest},
		{"store down", wiki.ErrStoreUnavailable, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, wiki.VariantVersioned)
			cookies := env.login(t, "alice")
			env.server.cfg.Wiki = stubService{Service: env.server.cfg.Wiki, err: tt.err}
			env.server.handler = env.server.routes()

			rec := env.do(t, postForm("/save/StartPage", url.Values{"body": {"x"}}), cookies)
			assert.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusServiceUnavailable {
				assert.Equal(t, "1", rec.Header().Get("Retry-After"))
			}
		})
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	env := newTestEnv(t, wiki.VariantVersioned)
	env.server.cfg.Renderer = panicRenderer{}
	env.server.handler = env.server.routes()

	rec := env.do(t, httptest.NewRequest(http.MethodPost, "/_preview", strings.NewReader("x")), nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body, _ := io.ReadAll(rec.Body)
	assert.Contains(t, string(body), "Internal Server Error")
}

type panicRenderer struct{}

func (panicRenderer) Render(context.Context, string) (string, error) { panic("boom") }
