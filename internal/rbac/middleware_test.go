package rbac

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeStore struct {
	principal Principal
	err       error
}

func (f fakeStore) Read(r *http.Request) (Principal, error) { return f.principal, f.err }
func (f fakeStore) Write(w http.ResponseWriter, p Principal) error { return nil }
func (f fakeStore) Clear(w http.ResponseWriter) {}

type decisionLog []string

func (d *decisionLog) RecordGateDecision(category, outcome string) {
	*d = append(*d, category+"/"+outcome)
}

func gateHandler(store SessionStore, rec DecisionRecorder, seen *Principal) http.Handler {
	m := Middleware{Store: store, Logger: slog.New(slog.NewTextHandler(io.Discard, nil)), Recorder: rec}
	return m.Gate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*seen = PrincipalFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))
}

func TestGateRedirectsWithTemporaryRedirect(t *testing.T) {
	var seen Principal
	var log decisionLog
	h := gateHandler(fakeStore{}, &log, &seen)

	res := httptest.NewRecorder()
	h.ServeHTTP(res, httptest.NewRequest(http.MethodPost, "/admin/users", nil))

	assert.Equal(t, http.StatusTemporaryRedirect, res.Code)
	assert.Equal(t, PathAdminLogin, res.Header().Get("Location"))
	assert.Equal(t, decisionLog{"admin_protected/redirect"}, log)
	assert.False(t, seen.Authenticated(), "next handler must not run")
}

func TestGateForwardsWithPrincipal(t *testing.T) {
	var seen Principal
	var log decisionLog
	p := Principal{Token: "t", Role: RoleAdmin, Permissions: NewPermissionSet("users")}
	h := gateHandler(fakeStore{principal: p}, &log, &seen)

	res := httptest.NewRecorder()
	h.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/admin/users?page=2", nil))

	assert.Equal(t, http.StatusNoContent, res.Code)
	assert.Equal(t, "t", seen.Token)
	assert.True(t, seen.Permissions.Has("users"))
	assert.Equal(t, decisionLog{"admin_protected/allow"}, log)
}

func TestGateTreatsMalformedPermissionsAsEmpty(t *testing.T) {
	var seen Principal
	p := Principal{Token: "t", Role: RoleAdmin, Permissions: NewPermissionSet()}
	store := fakeStore{principal: p, err: fmt.Errorf("%w: bad json", ErrMalformedPermissions)}
	h := gateHandler(store, nil, &seen)

	res := httptest.NewRecorder()
	h.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/admin/settings", nil))
	assert.Equal(t, http.StatusTemporaryRedirect, res.Code)
	assert.Equal(t, PathAdminDenied, res.Header().Get("Location"))

	res = httptest.NewRecorder()
	h.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/home", nil))
	assert.Equal(t, http.StatusNoContent, res.Code)
}

func TestGateFailsOnStoreError(t *testing.T) {
	var seen Principal
	h := gateHandler(fakeStore{err: errors.New("boom")}, nil, &seen)

	res := httptest.NewRecorder()
	h.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/home", nil))
	assert.Equal(t, http.StatusInternalServerError, res.Code)
}

func TestPrincipalFromEmptyContext(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Equal(t, Principal{}, PrincipalFromContext(req.Context()))
}
