package httpx

import (
	"errors"
	"net/http"
)

// Sentinel errors for the handler layer.
var (
	ErrValidation   = errors.New("validation failed")
	ErrUnauthorized = errors.New("unauthorized")
)

// StatusError is implemented by errors that carry their own relay status.
type StatusError interface {
	error
	StatusCode() int
	PublicMessage() string
}

// RespondError writes err as a {"message"} body. Errors carrying a status
// relay it; anything else is a 500 with fallback as the message.
func RespondError(w http.ResponseWriter, err error, fallback string) {
	var statusErr StatusError
	switch {
	case errors.As(err, &statusErr):
		status := statusErr.StatusCode()
		if status == 0 {
			status = http.StatusInternalServerError
		}
		msg := statusErr.PublicMessage()
		if msg == "" {
			msg = fallback
		}
		Message(w, status, msg)
	case errors.Is(err, ErrValidation):
		Message(w, http.StatusBadRequest, "invalid request body")
	case errors.Is(err, ErrUnauthorized):
		Message(w, http.StatusUnauthorized, "Unauthorized")
	default:
		Message(w, http.StatusInternalServerError, fallback)
	}
}
