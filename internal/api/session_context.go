package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/pagevoice/pagevoice-server/internal/errors"
	"github.com/pagevoice/pagevoice-server/internal/session"
)

// ctxKey is the type for context keys to avoid collisions.
type ctxKey string

// sessionIDKey is the context key for the caller's session id.
const sessionIDKey ctxKey = "sessionID"

// sessionIDFromRequest extracts the session id from the request. Clients may
// send it as a Bearer token, an X-Session-ID header, or a session query
// parameter; the three are equivalent.
func sessionIDFromRequest(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	if id := r.Header.Get("X-Session-ID"); id != "" {
		return id
	}
	return r.URL.Query().Get("session")
}

// sessionMiddleware stores the presented session id in the request context.
// Validation is deferred to the handlers so expired sessions surface as
// SESSION_EXPIRED rather than a generic 401.
func sessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := sessionIDFromRequest(r); id != "" {
			r = r.WithContext(context.WithValue(r.Context(), sessionIDKey, id))
		}
		next.ServeHTTP(w, r)
	})
}

// contextSessionID returns the session id stored by sessionMiddleware.
func contextSessionID(ctx context.Context) string {
	if id, ok := ctx.Value(sessionIDKey).(string); ok {
		return id
	}
	return ""
}

// requireSession resolves the caller's session, refreshing its idle timer.
func (s *Server) requireSession(ctx context.Context) (*session.Session, error) {
	id := contextSessionID(ctx)
	if id == "" {
		return nil, errors.Unauthorized("session id required")
	}
	return s.services.Sessions.Get(id)
}
