package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ItsHarshjsin/riseup-sub000/internal/services"
)

type contextKey string

const SessionContextKey contextKey = "session"

type sessionReader interface {
	GetCurrentSession(r *http.Request) (services.Session, error)
}

// RequireAuth rejects requests without a valid session cookie and records a
// presence heartbeat for the ones it lets through.
func RequireAuth(auth sessionReader, presence services.PresenceStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session, err := auth.GetCurrentSession(r)
			if err != nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"error":"not signed in","variant":"unauthenticated","style":"default"}` + "\n"))
				return
			}

			if presence != nil {
				if err := presence.Touch(r.Context(), session.UserID, time.Now()); err != nil {
					slog.Warn("recording presence", "user_id", session.UserID, "error", err)
				}
			}

			ctx := context.WithValue(r.Context(), SessionContextKey, session)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// WithSession attaches the session cookie's session when there is one, and
// the signed-out session otherwise.
func WithSession(auth sessionReader) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session, err := auth.GetCurrentSession(r)
			if err != nil {
				session = services.Session{}
			}
			ctx := context.WithValue(r.Context(), SessionContextKey, session)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin lets through only sessions whose email is in adminEmails. It
// must run after RequireAuth. An empty list rejects everyone.
func RequireAdmin(adminEmails []string) func(http.Handler) http.Handler {
	admins := make(map[string]bool, len(adminEmails))
	for _, email := range adminEmails {
		admins[strings.ToLower(strings.TrimSpace(email))] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session := GetSession(r.Context())
			if session.Email == "" || !admins[strings.ToLower(session.Email)] {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusForbidden)
				w.Write([]byte(`{"error":"admin only","variant":"forbidden","style":"default"}` + "\n"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func GetSession(ctx context.Context) services.Session {
	session, _ := ctx.Value(SessionContextKey).(services.Session)
	return session
}
