package app

import (
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roleboard/roleboard/internal/auth"
	"github.com/roleboard/roleboard/internal/dashboard"
	"github.com/roleboard/roleboard/internal/observability"
	"github.com/roleboard/roleboard/internal/permissions"
	"github.com/roleboard/roleboard/internal/rbac"
	"github.com/roleboard/roleboard/internal/roles"
	"github.com/roleboard/roleboard/internal/settings"
	"github.com/roleboard/roleboard/internal/shared"
	"github.com/roleboard/roleboard/internal/upstream"
	"github.com/roleboard/roleboard/internal/users"
	"github.com/roleboard/roleboard/internal/view"
	_ "github.com/roleboard/roleboard/testing"
)

const loginReply = `{"data":{"token":"tok-1","user":{"id":1,"name":"Ada","email":"ada@example.com","role":{"name":"admin","permissions":[{"permission_name":"users","permission_type":"get"}]}},"permissions":["dashboard","users"]}}`

func newTestServer(t *testing.T) (*httptest.Server, *observability.Metrics) {
	t.Helper()
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/login":
			_, _ = io.WriteString(w, loginReply)
		case "/logout":
			_, _ = io.WriteString(w, `{"message":"bye"}`)
		default:
			_, _ = io.WriteString(w, `{"data":[],"meta":{"total":0}}`)
		}
	}))
	t.Cleanup(api.Close)

	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cfg := &Config{AppEnv: "development", AppRequestTimeout: 5 * time.Second, RateLimitPerMinute: 1000}
	logger := NewLogger(cfg)
	metrics := observability.NewMetrics()

	client, err := upstream.NewClient(upstream.Options{BaseURL: api.URL, Logger: logger, Observer: metrics})
	require.NoError(t, err)
	templates, err := view.NewEngine()
	require.NoError(t, err)

	sessions := shared.NewSessionManager(redisClient, "test_session", "secret", time.Hour, false)
	csrf := shared.NewCSRFManager("csrfsecret")
	store := shared.NewCookieStore(false)

	router := NewRouter(RouterParams{
		Logger:             logger,
		Config:             cfg,
		SessionManager:     sessions,
		CSRFManager:        csrf,
		Gate:               rbac.Middleware{Store: store, Logger: logger, Recorder: metrics},
		AuthHandler:        auth.NewHandler(logger, auth.NewService(client, store, sessions, csrf, nil, logger), templates, csrf),
		DashboardHandler:   dashboard.NewHandler(logger, client, templates, csrf),
		UsersHandler:       users.NewHandler(logger, users.NewService(client, nil), templates, csrf),
		RolesHandler:       roles.NewHandler(logger, roles.NewService(client, nil), templates, csrf),
		SettingsHandler:    settings.NewHandler(logger, settings.NewService(client, nil), templates, csrf),
		PermissionsHandler: permissions.NewHandler(logger, client, templates, csrf),
		Metrics:            metrics,
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv, metrics
}

func noRedirectClient(t *testing.T) *http.Client {
	t.Helper()
	return &http.Client{CheckRedirect: func(req *http.Request, via []*http.Request) error {
		return http.ErrUseLastResponse
	}}
}

func TestGateRedirectsThroughRouter(t *testing.T) {
	srv, _ := newTestServer(t)
	client := noRedirectClient(t)

	cases := map[string]string{
		"/":              rbac.PathAdmin,
		"/admin":         rbac.PathAdminLogin,
		"/admin/roles":   rbac.PathAdminLogin,
		"/admin/users/7": rbac.PathAdminLogin,
		"/admin/unknown": rbac.PathAdminLogin,
	}
	for path, target := range cases {
		resp, err := client.Get(srv.URL + path)
		require.NoError(t, err, path)
		_ = resp.Body.Close()
		assert.Equal(t, http.StatusTemporaryRedirect, resp.StatusCode, path)
		assert.Equal(t, target, resp.Header.Get("Location"), path)
	}
}

func TestUnclassifiedRoutesAreServed(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// Anonymous visitors reach /home; only admin paths are gated.
	home, err := noRedirectClient(t).Get(srv.URL + rbac.PathHome)
	require.NoError(t, err)
	defer home.Body.Close()
	assert.Equal(t, http.StatusOK, home.StatusCode)

	css, err := http.Get(srv.URL + "/static/css/app.css")
	require.NoError(t, err)
	defer css.Body.Close()
	assert.Equal(t, http.StatusOK, css.StatusCode)
	assert.Equal(t, "public, max-age=3600", css.Header.Get("Cache-Control"))
}

func TestFormPostRequiresCSRFToken(t *testing.T) {
	srv, _ := newTestServer(t)
	client := noRedirectClient(t)

	form := url.Values{"email": {"ada@example.com"}, "password": {"secret1"}}
	resp, err := client.PostForm(srv.URL+"/admin/login", form)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

var csrfPattern = regexp.MustCompile(`name="csrf_token" value="([^"]+)"`)

func TestFormLoginFlow(t *testing.T) {
	srv, metrics := newTestServer(t)
	client := noRedirectClient(t)

	page, err := client.Get(srv.URL + "/admin/login")
	require.NoError(t, err)
	body, _ := io.ReadAll(page.Body)
	_ = page.Body.Close()
	require.Equal(t, http.StatusOK, page.StatusCode)
	match := csrfPattern.FindSubmatch(body)
	require.NotNil(t, match, "login page carries a csrf token")

	form := url.Values{"email": {"ada@example.com"}, "password": {"secret1"}, "csrf_token": {string(match[1])}}
	req, err := http.NewRequest(http.MethodPost, srv.URL+"/admin/login", strings.NewReader(form.Encode()))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for _, c := range page.Cookies() {
		req.AddCookie(c)
	}
	resp, err := client.Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, rbac.PathAdminHome, resp.Header.Get("Location"))

	cookies := map[string]*http.Cookie{}
	for _, c := range append(page.Cookies(), resp.Cookies()...) {
		cookies[c.Name] = c
	}
	require.Contains(t, cookies, shared.TokenCookie)

	dash, err := http.NewRequest(http.MethodGet, srv.URL+rbac.PathAdminHome, nil)
	require.NoError(t, err)
	for _, c := range cookies {
		dash.AddCookie(c)
	}
	dashResp, err := client.Do(dash)
	require.NoError(t, err)
	dashBody, _ := io.ReadAll(dashResp.Body)
	_ = dashResp.Body.Close()
	assert.Equal(t, http.StatusOK, dashResp.StatusCode)
	assert.Contains(t, string(dashBody), "Ada")

	// Signed-in admins are bounced off the public login page.
	loginAgain, err := http.NewRequest(http.MethodGet, srv.URL+rbac.PathLogin, nil)
	require.NoError(t, err)
	for _, c := range cookies {
		loginAgain.AddCookie(c)
	}
	loginResp, err := client.Do(loginAgain)
	require.NoError(t, err)
	_ = loginResp.Body.Close()
	assert.Equal(t, http.StatusTemporaryRedirect, loginResp.StatusCode)
	assert.Equal(t, rbac.PathAdminHome, loginResp.Header.Get("Location"))

	// Settings is not in the granted set.
	settingsReq, err := http.NewRequest(http.MethodGet, srv.URL+"/admin/settings", nil)
	require.NoError(t, err)
	for _, c := range cookies {
		settingsReq.AddCookie(c)
	}
	settingsResp, err := client.Do(settingsReq)
	require.NoError(t, err)
	_ = settingsResp.Body.Close()
	assert.Equal(t, http.StatusTemporaryRedirect, settingsResp.StatusCode)
	assert.Equal(t, rbac.PathAdminDenied, settingsResp.Header.Get("Location"))

	// User form posts need the session's token and then the create grant.
	adminToken := csrfPattern.FindSubmatch(dashBody)
	require.NotNil(t, adminToken, "admin layout carries a csrf token")
	postUser := func(values url.Values) *http.Response {
		req, err := http.NewRequest(http.MethodPost, srv.URL+"/admin/users", strings.NewReader(values.Encode()))
		require.NoError(t, err)
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		for _, c := range cookies {
			req.AddCookie(c)
		}
		resp, err := client.Do(req)
		require.NoError(t, err)
		_ = resp.Body.Close()
		return resp
	}
	newUser := url.Values{"name": {"Grace"}, "email": {"grace@example.com"}, "role_id": {"2"}}
	assert.Equal(t, http.StatusForbidden, postUser(newUser).StatusCode)
	newUser.Set("csrf_token", string(adminToken[1]))
	created := postUser(newUser)
	assert.Equal(t, http.StatusSeeOther, created.StatusCode)
	assert.Equal(t, rbac.PathAdminDenied, created.Header.Get("Location"))

	scrape := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(scrape, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, scrape.Body.String(), `roleboard_gate_decisions_total{category="admin_protected",outcome="redirect"} 1`)
	assert.Contains(t, scrape.Body.String(), `operation="login"`)
}

func TestAPIIsExemptFromCSRF(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Post(srv.URL+"/api/auth/login", "application/json", strings.NewReader(`{"email":"ada@example.com","password":"secret1"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
