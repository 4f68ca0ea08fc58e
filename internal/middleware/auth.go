package middleware

import (
	"context"
	"net/http"

	"eum-chat/internal/domain"
)

type contextKey string

const (
	MemberIDKey contextKey = "member_id"
	SessionKey  contextKey = "session"
)

// Auth resolves the session cookie to a member id once per request and
// stores it in the request context. Every entry point behind it treats a
// missing identity as Unauthenticated.
func Auth(sessionRepo domain.SessionRepository) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie("session_id")
			if err != nil {
				http.Error(w, `{"error":"Not authenticated"}`, http.StatusUnauthorized)
				return
			}

			session, err := sessionRepo.GetByToken(r.Context(), cookie.Value)
			if err != nil {
				http.Error(w, `{"error":"Invalid or expired session"}`, http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), MemberIDKey, session.MemberID)
			ctx = context.WithValue(ctx, SessionKey, session)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetMemberID returns the authenticated caller's id from the context.
func GetMemberID(ctx context.Context) (int64, bool) {
	memberID, ok := ctx.Value(MemberIDKey).(int64)
	return memberID, ok
}

// GetSession returns the caller's session from the context.
func GetSession(ctx context.Context) (*domain.Session, bool) {
	session, ok := ctx.Value(SessionKey).(*domain.Session)
	return session, ok
}

// WithMemberID attaches a member id to the context, used by tests and
// the websocket handshake.
func WithMemberID(ctx context.Context, memberID int64) context.Context {
	return context.WithValue(ctx, MemberIDKey, memberID)
}
