package shared

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/roleboard/roleboard/internal/rbac"
)

// Cookie names carrying the principal.
const (
	TokenCookie       = "token"
	RoleCookie        = "role"
	PermissionsCookie = "permissions"
)

// CookieStore implements rbac.SessionStore over three request cookies.
type CookieStore struct {
	secure bool
}

// NewCookieStore builds a CookieStore. secure should be true in production.
func NewCookieStore(secure bool) *CookieStore {
	return &CookieStore{secure: secure}
}

// Read reconstructs the principal. A malformed permissions cookie yields a
// principal with an empty permission set and an error wrapping
// rbac.ErrMalformedPermissions.
func (s *CookieStore) Read(r *http.Request) (rbac.Principal, error) {
	principal := rbac.Principal{
		Token: cookieValue(r, TokenCookie),
		Role:  rbac.ParseRole(cookieValue(r, RoleCookie)),
	}
	raw := cookieValue(r, PermissionsCookie)
	decoded, err := url.QueryUnescape(raw)
	if err != nil {
		principal.Permissions = rbac.NewPermissionSet()
		return principal, fmt.Errorf("%w: %v", rbac.ErrMalformedPermissions, err)
	}
	perms, err := rbac.DecodePermissions(decoded)
	principal.Permissions = perms
	return principal, err
}

// Write sets all three cookies. The permissions cookie stays readable by scripts.
func (s *CookieStore) Write(w http.ResponseWriter, p rbac.Principal) error {
	if p.Token == "" {
		return errors.New("shared: refusing to write principal without token")
	}
	http.SetCookie(w, s.cookie(TokenCookie, p.Token, true))
	http.SetCookie(w, s.cookie(RoleCookie, p.Role.String(), true))
	http.SetCookie(w, s.cookie(PermissionsCookie, url.QueryEscape(rbac.EncodePermissions(p.Permissions)), false))
	return nil
}

// Clear expires all three cookies.
func (s *CookieStore) Clear(w http.ResponseWriter) {
	for _, name := range []string{TokenCookie, RoleCookie, PermissionsCookie} {
		c := s.cookie(name, "", name != PermissionsCookie)
		c.MaxAge = -1
		http.SetCookie(w, c)
	}
}

func (s *CookieStore) cookie(name, value string, httpOnly bool) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: httpOnly,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	}
}

func cookieValue(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}

var _ rbac.SessionStore = (*CookieStore)(nil)

// BearerFromRequest returns the caller's credential: the Authorization header
// when set, otherwise the token cookie.
func BearerFromRequest(r *http.Request) string {
	if auth := strings.TrimSpace(r.Header.Get("Authorization")); auth != "" {
		return auth
	}
	return cookieValue(r, TokenCookie)
}
