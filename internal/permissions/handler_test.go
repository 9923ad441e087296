package permissions_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roleboard/roleboard/internal/permissions"
	"github.com/roleboard/roleboard/internal/rbac"
	"github.com/roleboard/roleboard/internal/shared"
	"github.com/roleboard/roleboard/internal/upstream"
	"github.com/roleboard/roleboard/internal/view"
	_ "github.com/roleboard/roleboard/testing"
)

func newRouter(t *testing.T, hits *atomic.Int32) chi.Router {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = io.WriteString(w, `{"data":{"users":{"get":[{"id":1}]}}}`)
	}))
	t.Cleanup(srv.Close)
	client, err := upstream.NewClient(upstream.Options{BaseURL: srv.URL, CatalogTTL: time.Minute})
	require.NoError(t, err)
	templates, err := view.NewEngine()
	require.NoError(t, err)

	h := permissions.NewHandler(nil, client, templates, shared.NewCSRFManager("csrfsecret"))
	r := chi.NewRouter()
	r.Route("/api/permissions", h.MountAPI)
	r.Route("/admin/permissions", h.MountRoutes)
	return r
}

func TestCatalogIsCachedPerToken(t *testing.T) {
	var hits atomic.Int32
	router := newRouter(t, &hits)

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/permissions", nil)
		req.Header.Set("Authorization", "Bearer tok-1")
		res := httptest.NewRecorder()
		router.ServeHTTP(res, req)
		require.Equal(t, http.StatusOK, res.Code)
		assert.JSONEq(t, `{"data":{"users":{"get":[{"id":1}]}}}`, res.Body.String())
	}
	assert.Equal(t, int32(1), hits.Load())

	req := httptest.NewRequest(http.MethodGet, "/api/permissions", nil)
	req.Header.Set("Authorization", "Bearer tok-2")
	router.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, int32(2), hits.Load())
}

func TestPageShowsPivot(t *testing.T) {
	var hits atomic.Int32
	router := newRouter(t, &hits)

	mr := miniredis.RunT(t)
	sessions := shared.NewSessionManager(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "test_session", "secret", time.Hour, false)
	req := httptest.NewRequest(http.MethodGet, "/admin/permissions", nil)
	sess, err := sessions.Load(context.Background(), req)
	require.NoError(t, err)
	sess.SetProfile(shared.Profile{Permissions: rbac.PermissionRecords{
		{Name: "user_management", Type: rbac.PermissionGet},
		{Name: "user_management", Type: rbac.PermissionDelete},
	}})
	req = req.WithContext(shared.ContextWithSession(req.Context(), sess))

	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)

	require.Equal(t, http.StatusOK, res.Code)
	body := res.Body.String()
	assert.Contains(t, body, "User Management")
	assert.Contains(t, body, "<td>1</td>")
	assert.Zero(t, hits.Load())
}

func TestPageWithoutProfileIsEmpty(t *testing.T) {
	var hits atomic.Int32
	router := newRouter(t, &hits)

	res := httptest.NewRecorder()
	router.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/admin/permissions", nil))

	require.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.Body.String(), "No permissions found")
}
