package rbac

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
)

// SessionStore reads and writes the three principal cookies. Write and Clear
// always touch token, role and permissions together.
type SessionStore interface {
	Read(r *http.Request) (Principal, error)
	Write(w http.ResponseWriter, p Principal) error
	Clear(w http.ResponseWriter)
}

// DecisionRecorder receives one call per gate decision.
type DecisionRecorder interface {
	RecordGateDecision(category, outcome string)
}

type principalContextKey struct{}

// ContextWithPrincipal stores the principal in context.
func ContextWithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// PrincipalFromContext extracts the principal; the zero Principal when absent.
func PrincipalFromContext(ctx context.Context) Principal {
	p, _ := ctx.Value(principalContextKey{}).(Principal)
	return p
}

// Middleware wires the access gate into the HTTP stack.
type Middleware struct {
	Store      SessionStore
	Classifier *Classifier
	Logger     *slog.Logger
	Recorder   DecisionRecorder
}

// Gate classifies every request, decides from the session cookies, and either
// redirects or forwards the request with the principal attached to its context.
func (m Middleware) Gate(next http.Handler) http.Handler {
	classifier := m.Classifier
	if classifier == nil {
		classifier = DefaultClassifier()
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, err := m.Store.Read(r)
		if err != nil {
			if !errors.Is(err, ErrMalformedPermissions) {
				m.logError("read session cookies", err)
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}
			if m.Logger != nil {
				m.Logger.Warn("permissions cookie rejected, treating as empty", slog.String("path", r.URL.Path), slog.Any("error", err))
			}
		}

		classification := classifier.Classify(r.URL.Path)
		decision := Decide(classification, principal)
		if m.Recorder != nil {
			m.Recorder.RecordGateDecision(classification.Category.String(), decision.Outcome())
		}
		if decision.Redirect {
			if m.Logger != nil {
				m.Logger.Debug("gate redirect",
					slog.String("path", r.URL.Path),
					slog.String("category", classification.Category.String()),
					slog.String("target", decision.Target),
				)
			}
			http.Redirect(w, r, decision.Target, http.StatusTemporaryRedirect)
			return
		}
		next.ServeHTTP(w, r.WithContext(ContextWithPrincipal(r.Context(), principal)))
	})
}

func (m Middleware) logError(msg string, err error) {
	if m.Logger != nil {
		m.Logger.Error(msg, slog.Any("error", err))
	}
}
