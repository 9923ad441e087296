// Package httpx provides JSON response helpers for the /api proxy routes.
package httpx

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/roleboard/roleboard/internal/upstream"
)

// MaxBodyBytes caps request bodies accepted by DecodeJSON.
const MaxBodyBytes = 1 << 20

// MessageBody is the error body shape relayed to API callers.
type MessageBody struct {
	Message string            `json:"message"`
	Errors  map[string]string `json:"errors,omitempty"`
}

// JSON sends a JSON response with the given status code. Messages are not
// HTML-escaped; "&" reaches API callers as "&".
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(data)
}

// Raw relays an already-encoded JSON body.
func Raw(w http.ResponseWriter, status int, body []byte) {
	if len(body) == 0 {
		w.WriteHeader(status)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// Message sends {"message": msg}.
func Message(w http.ResponseWriter, status int, msg string) {
	JSON(w, status, MessageBody{Message: msg})
}

// ValidationFailed sends 422 with per-field messages.
func ValidationFailed(w http.ResponseWriter, fields map[string]string) {
	JSON(w, http.StatusUnprocessableEntity, MessageBody{Message: "validation failed", Errors: fields})
}

// DecodeJSON decodes JSON request body into the target struct. An empty body
// is ErrValidation.
func DecodeJSON(r *http.Request, target any) error {
	if r.Body == nil {
		return ErrValidation
	}
	dec := json.NewDecoder(io.LimitReader(r.Body, MaxBodyBytes))
	if err := dec.Decode(target); err != nil {
		if errors.Is(err, io.EOF) {
			return ErrValidation
		}
		return errors.Join(ErrValidation, err)
	}
	return nil
}

// Relay writes an upstream reply as-is, or the error through RespondError.
func Relay(w http.ResponseWriter, resp *upstream.Response, err error, fallback string) {
	if err != nil {
		RespondError(w, err, fallback)
		return
	}
	if resp == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	Raw(w, resp.Status, resp.Body)
}
