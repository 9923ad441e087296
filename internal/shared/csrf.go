package shared

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"strings"
)

const (
	CSRFSessionKey = "csrf_token"
	CSRFFormField  = "csrf_token"
	// CSRFHeader lets scripted form posts send the token without a body field.
	CSRFHeader = "X-CSRF-Token"
)

const csrfNonceSize = 18

// CSRFManager issues tokens of the form "<nonce>.<mac>", where the MAC covers
// the owning session ID. A token is accepted only when it equals the one kept
// in the session and its MAC still matches that session.
type CSRFManager struct {
	secret []byte
}

func NewCSRFManager(secret string) *CSRFManager {
	return &CSRFManager{secret: []byte(secret)}
}

// EnsureToken returns the session's token, minting one on first use.
func (m *CSRFManager) EnsureToken(sess *Session) (string, error) {
	if sess == nil {
		return "", ErrSessionMissing
	}
	if token := sess.Get(CSRFSessionKey); token != "" {
		return token, nil
	}
	return m.issue(sess)
}

// Rotate replaces the token. Login calls it after the session ID changes.
func (m *CSRFManager) Rotate(sess *Session) string {
	if sess == nil {
		return ""
	}
	token, err := m.issue(sess)
	if err != nil {
		sess.Delete(CSRFSessionKey)
		return ""
	}
	return token
}

func (m *CSRFManager) VerifyToken(sess *Session, token string) error {
	if sess == nil || token == "" {
		return ErrCSRFTokenMissing
	}
	stored := sess.Get(CSRFSessionKey)
	if stored == "" {
		return ErrCSRFTokenMissing
	}
	if !hmac.Equal([]byte(stored), []byte(token)) {
		return ErrCSRFTokenMismatch
	}
	nonce, sig, ok := strings.Cut(token, ".")
	if !ok || !hmac.Equal([]byte(sig), []byte(m.mac(sess.ID, nonce))) {
		return ErrCSRFTokenMismatch
	}
	return nil
}

// RequestToken reads the submitted token, preferring the form field.
func RequestToken(r *http.Request) string {
	if token := r.PostFormValue(CSRFFormField); token != "" {
		return token
	}
	return r.Header.Get(CSRFHeader)
}

func (m *CSRFManager) issue(sess *Session) (string, error) {
	buf := make([]byte, csrfNonceSize)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	nonce := base64.RawURLEncoding.EncodeToString(buf)
	token := nonce + "." + m.mac(sess.ID, nonce)
	sess.Set(CSRFSessionKey, token)
	return token, nil
}

func (m *CSRFManager) mac(sessionID, nonce string) string {
	h := hmac.New(sha256.New, m.secret)
	h.Write([]byte(sessionID))
	h.Write([]byte{'|'})
	h.Write([]byte(nonce))
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}
