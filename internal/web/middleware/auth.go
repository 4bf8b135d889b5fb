package middleware

import (
	"context"
	"net/http"

	"github.com/kozaktomas/add-me-in/internal/studio"
)

type contextKey string

const sessionContextKey contextKey = "session"

// WithSession is middleware that attaches the visitor's session to the
// request context, starting a new one (and setting its cookie) when the
// request carries no valid session.
func WithSession(sm *SessionManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session := sm.GetSessionFromRequest(r)
			if session == nil {
				session = sm.CreateSession()
				sm.SetSessionCookie(w, r, session)
			}

			ctx := context.WithValue(r.Context(), sessionContextKey, session)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetSessionFromContext retrieves the session from the request context
func GetSessionFromContext(ctx context.Context) *Session {
	session, ok := ctx.Value(sessionContextKey).(*Session)
	if !ok {
		return nil
	}
	return session
}

// SetSessionInContext adds a session to the context.
// This is primarily for testing - use WithSession middleware in production.
func SetSessionInContext(ctx context.Context, session *Session) context.Context {
	return context.WithValue(ctx, sessionContextKey, session)
}

// MustGetStudio retrieves the session's studio from context.
// If not available, writes an error response and returns nil.
// Handlers should return immediately after receiving nil.
func MustGetStudio(ctx context.Context, w http.ResponseWriter) *studio.Controller {
	session := GetSessionFromContext(ctx)
	if session == nil || session.Studio == nil {
		http.Error(w, `{"error": "session not available"}`, http.StatusInternalServerError)
		return nil
	}
	return session.Studio
}
