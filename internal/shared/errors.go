package shared

import "errors"

// Errors returned by the session-bound CSRF checks.
var (
	ErrSessionMissing    = errors.New("shared: no session on request")
	ErrCSRFTokenMissing  = errors.New("shared: csrf token not supplied")
	ErrCSRFTokenMismatch = errors.New("shared: csrf token invalid")
)
