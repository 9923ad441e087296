package shared

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/roleboard/roleboard/internal/rbac"
)

const sessionKeyPrefix = "roleboard:session:"

// FlashMessage is a one-shot notice shown on the next rendered page.
type FlashMessage struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Profile is the signed-in user's display data and canonical permission list.
type Profile struct {
	ID          int64                  `json:"id"`
	Name        string                 `json:"name"`
	Email       string                 `json:"email"`
	Role        string                 `json:"role"`
	Permissions rbac.PermissionRecords `json:"permissions"`
}

// SessionManager keeps server-side sessions in Redis. The browser only holds
// "<id>.<mac>"; a cookie whose MAC does not verify is never looked up.
type SessionManager struct {
	client     *redis.Client
	cookieName string
	ttl        time.Duration
	secure     bool
	secret     []byte
}

// Session is the per-request view of one stored session.
type Session struct {
	ID string

	data      sessionData
	stored    bool
	changed   bool
	destroyed bool
}

type sessionData struct {
	Values  map[string]string `json:"values,omitempty"`
	Profile *Profile          `json:"profile,omitempty"`
	Flashes []FlashMessage    `json:"flashes,omitempty"`
}

func NewSessionManager(client *redis.Client, cookieName string, secret string, ttl time.Duration, secure bool) *SessionManager {
	return &SessionManager{
		client:     client,
		cookieName: cookieName,
		ttl:        ttl,
		secure:     secure,
		secret:     []byte(secret),
	}
}

// Load returns the session named by the request cookie, or a fresh one when
// the cookie is missing, tampered with, or points at an expired entry.
func (sm *SessionManager) Load(ctx context.Context, r *http.Request) (*Session, error) {
	id, ok := sm.readCookie(r)
	if !ok {
		return sm.fresh(), nil
	}

	raw, err := sm.client.Get(ctx, sessionKeyPrefix+id).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return sm.fresh(), nil
	case err != nil:
		return nil, fmt.Errorf("shared: load session: %w", err)
	}

	sess := &Session{ID: id, stored: true}
	if err := json.Unmarshal(raw, &sess.data); err != nil {
		return nil, fmt.Errorf("shared: decode session: %w", err)
	}
	return sess, nil
}

// Commit writes pending changes to Redis and refreshes the cookie. Untouched
// sessions only have their TTL extended.
func (sm *SessionManager) Commit(ctx context.Context, w http.ResponseWriter, r *http.Request, sess *Session) error {
	if sess == nil {
		return nil
	}
	key := sessionKeyPrefix + sess.ID

	if sess.destroyed {
		if err := sm.client.Del(ctx, key).Err(); err != nil {
			return fmt.Errorf("shared: delete session: %w", err)
		}
		http.SetCookie(w, sm.cookie("", -1))
		return nil
	}

	if sess.changed || !sess.stored {
		raw, err := json.Marshal(sess.data)
		if err != nil {
			return fmt.Errorf("shared: encode session: %w", err)
		}
		if err := sm.client.Set(ctx, key, raw, sm.ttl).Err(); err != nil {
			return fmt.Errorf("shared: save session: %w", err)
		}
		sess.stored, sess.changed = true, false
	} else if err := sm.client.Expire(ctx, key, sm.ttl).Err(); err != nil {
		return fmt.Errorf("shared: touch session: %w", err)
	}

	http.SetCookie(w, sm.cookie(sm.sign(sess.ID), 0))
	return nil
}

// Destroy schedules the session for deletion on the next Commit.
func (sm *SessionManager) Destroy(sess *Session) {
	if sess == nil {
		return
	}
	sess.destroyed = true
	sess.data = sessionData{}
}

// Renew moves the session data under a new ID. Login calls it so an
// identifier issued before authentication is never promoted.
func (sm *SessionManager) Renew(ctx context.Context, sess *Session) error {
	if sess == nil {
		return nil
	}
	if sess.stored {
		if err := sm.client.Del(ctx, sessionKeyPrefix+sess.ID).Err(); err != nil {
			return fmt.Errorf("shared: renew session: %w", err)
		}
	}
	sess.ID = uuid.NewString()
	sess.stored = false
	sess.changed = true
	return nil
}

func (sm *SessionManager) TTL() time.Duration { return sm.ttl }

func (sm *SessionManager) CookieName() string { return sm.cookieName }

func (sm *SessionManager) fresh() *Session {
	return &Session{ID: uuid.NewString()}
}

func (sm *SessionManager) mac(id string) string {
	h := hmac.New(sha256.New, sm.secret)
	h.Write([]byte(id))
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}

func (sm *SessionManager) sign(id string) string {
	return id + "." + sm.mac(id)
}

func (sm *SessionManager) readCookie(r *http.Request) (string, bool) {
	c, err := r.Cookie(sm.cookieName)
	if err != nil {
		return "", false
	}
	id, sig, found := strings.Cut(c.Value, ".")
	if !found || id == "" {
		return "", false
	}
	if !hmac.Equal([]byte(sig), []byte(sm.mac(id))) {
		return "", false
	}
	return id, true
}

func (sm *SessionManager) cookie(value string, maxAge int) *http.Cookie {
	c := &http.Cookie{
		Name:     sm.cookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   sm.secure,
		SameSite: http.SameSiteLaxMode,
	}
	if maxAge == 0 {
		c.Expires = time.Now().Add(sm.ttl)
	}
	return c
}

func (s *Session) Set(key, value string) {
	if s.data.Values == nil {
		s.data.Values = make(map[string]string)
	}
	s.data.Values[key] = value
	s.changed = true
}

func (s *Session) Get(key string) string {
	return s.data.Values[key]
}

func (s *Session) Delete(key string) {
	if _, ok := s.data.Values[key]; !ok {
		return
	}
	delete(s.data.Values, key)
	s.changed = true
}

// SetProfile replaces the stored profile as a whole.
func (s *Session) SetProfile(p Profile) {
	s.data.Profile = &p
	s.changed = true
}

func (s *Session) Profile() (Profile, bool) {
	if s == nil || s.data.Profile == nil {
		return Profile{}, false
	}
	return *s.data.Profile, true
}

func (s *Session) Destroyed() bool { return s.destroyed }

func (s *Session) AddFlash(msg FlashMessage) {
	s.data.Flashes = append(s.data.Flashes, msg)
	s.changed = true
}

// PopFlash removes and returns the oldest queued flash, or nil.
func (s *Session) PopFlash() *FlashMessage {
	if len(s.data.Flashes) == 0 {
		return nil
	}
	msg := s.data.Flashes[0]
	s.data.Flashes = s.data.Flashes[1:]
	s.changed = true
	return &msg
}
