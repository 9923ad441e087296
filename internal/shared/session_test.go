package shared

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roleboard/roleboard/internal/rbac"
)

func newTestSessions(t *testing.T) (*SessionManager, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewSessionManager(client, "sid", "secret", time.Hour, false), mr
}

func commitAndCookie(t *testing.T, sm *SessionManager, sess *Session) *http.Cookie {
	t.Helper()
	res := httptest.NewRecorder()
	require.NoError(t, sm.Commit(context.Background(), res, httptest.NewRequest(http.MethodGet, "/", nil), sess))
	for _, c := range res.Result().Cookies() {
		if c.Name == sm.CookieName() {
			return c
		}
	}
	t.Fatalf("no %s cookie written", sm.CookieName())
	return nil
}

func TestSessionRoundTrip(t *testing.T) {
	sm, mr := newTestSessions(t)
	ctx := context.Background()

	sess, err := sm.Load(ctx, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	sess.Set("k", "v")
	sess.SetProfile(Profile{Name: "Ada", Email: "ada@example.com", Permissions: rbac.PermissionRecords{{Name: "users", Type: rbac.PermissionGet}}})
	sess.AddFlash(FlashMessage{Kind: "success", Message: "saved"})
	cookie := commitAndCookie(t, sm, sess)
	assert.True(t, mr.Exists("roleboard:session:"+sess.ID))
	assert.True(t, cookie.HttpOnly)
	assert.True(t, strings.HasPrefix(cookie.Value, sess.ID+"."))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)
	loaded, err := sm.Load(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, sess.ID, loaded.ID)
	assert.Equal(t, "v", loaded.Get("k"))
	profile, ok := loaded.Profile()
	require.True(t, ok)
	assert.Equal(t, "Ada", profile.Name)
	assert.True(t, profile.Permissions.Can("users", rbac.PermissionGet))
	flash := loaded.PopFlash()
	require.NotNil(t, flash)
	assert.Equal(t, "saved", flash.Message)
	assert.Nil(t, loaded.PopFlash())
}

func TestSessionUnknownIDIsReplaced(t *testing.T) {
	sm, _ := newTestSessions(t)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "sid", Value: "forged"})

	sess, err := sm.Load(context.Background(), req)
	require.NoError(t, err)
	assert.NotEqual(t, "forged", sess.ID)
}

func TestSessionTamperedCookieIsIgnored(t *testing.T) {
	sm, mr := newTestSessions(t)
	ctx := context.Background()
	sess, err := sm.Load(ctx, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	sess.SetProfile(Profile{Name: "Ada"})
	commitAndCookie(t, sm, sess)
	require.True(t, mr.Exists("roleboard:session:"+sess.ID))

	// A valid ID with a signature made under another secret.
	other := NewSessionManager(nil, "sid", "other", time.Hour, false)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "sid", Value: other.sign(sess.ID)})

	loaded, err := sm.Load(ctx, req)
	require.NoError(t, err)
	assert.NotEqual(t, sess.ID, loaded.ID)
	_, ok := loaded.Profile()
	assert.False(t, ok)
}

func TestSessionCommitExtendsTTL(t *testing.T) {
	sm, mr := newTestSessions(t)
	ctx := context.Background()
	sess, err := sm.Load(ctx, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	cookie := commitAndCookie(t, sm, sess)

	mr.FastForward(30 * time.Minute)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)
	loaded, err := sm.Load(ctx, req)
	require.NoError(t, err)
	require.Equal(t, sess.ID, loaded.ID)
	commitAndCookie(t, sm, loaded)
	assert.Equal(t, time.Hour, mr.TTL("roleboard:session:"+sess.ID))
}

func TestSessionDestroyRemovesData(t *testing.T) {
	sm, mr := newTestSessions(t)
	ctx := context.Background()
	sess, err := sm.Load(ctx, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	sess.SetProfile(Profile{Name: "Ada"})
	commitAndCookie(t, sm, sess)
	id := sess.ID

	sm.Destroy(sess)
	assert.True(t, sess.Destroyed())
	_, ok := sess.Profile()
	assert.False(t, ok)
	expired := commitAndCookie(t, sm, sess)
	assert.Less(t, expired.MaxAge, 0)
	assert.False(t, mr.Exists("roleboard:session:"+id))
}

func TestSessionRenewSwapsID(t *testing.T) {
	sm, mr := newTestSessions(t)
	ctx := context.Background()
	sess, err := sm.Load(ctx, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	sess.Set("k", "v")
	cookie := commitAndCookie(t, sm, sess)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)
	loaded, err := sm.Load(ctx, req)
	require.NoError(t, err)
	oldID := loaded.ID
	require.NoError(t, sm.Renew(ctx, loaded))
	assert.NotEqual(t, oldID, loaded.ID)
	assert.False(t, mr.Exists("roleboard:session:"+oldID))

	renewed := commitAndCookie(t, sm, loaded)
	assert.Equal(t, sm.sign(loaded.ID), renewed.Value)
	assert.Equal(t, "v", loaded.Get("k"))
	assert.True(t, mr.Exists("roleboard:session:"+loaded.ID))
}

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	assert.Nil(t, SessionFromContext(ctx))
	assert.Empty(t, ActorFromContext(ctx))

	sm, _ := newTestSessions(t)
	sess, err := sm.Load(ctx, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	sess.SetProfile(Profile{Email: "ada@example.com"})
	ctx = ContextWithSession(ctx, sess)

	assert.Same(t, sess, SessionFromContext(ctx))
	assert.Equal(t, "ada@example.com", ActorFromContext(ctx))
}
