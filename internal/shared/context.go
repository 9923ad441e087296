package shared

import "context"

type sessionContextKey struct{}

// ContextWithSession stores the session in context.
func ContextWithSession(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, sess)
}

// SessionFromContext extracts the session from context.
func SessionFromContext(ctx context.Context) *Session {
	sess, _ := ctx.Value(sessionContextKey{}).(*Session)
	return sess
}

// ProfileFromContext returns the signed-in profile held by the request session.
func ProfileFromContext(ctx context.Context) (Profile, bool) {
	return SessionFromContext(ctx).Profile()
}

// ActorFromContext names the signed-in user for audit records.
func ActorFromContext(ctx context.Context) string {
	if profile, ok := ProfileFromContext(ctx); ok {
		return profile.Email
	}
	return ""
}
