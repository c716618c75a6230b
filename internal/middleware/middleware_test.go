package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ItsHarshjsin/riseup-sub000/internal/services"
)

type fakeAuth struct {
	session services.Session
	err     error
}

func (auth fakeAuth) GetCurrentSession(r *http.Request) (services.Session, error) {
	return auth.session, auth.err
}

type recordingPresence struct {
	touched []string
}

func (presence *recordingPresence) Touch(ctx context.Context, userID string, at time.Time) error {
	presence.touched = append(presence.touched, userID)
	return nil
}

func (presence *recordingPresence) Online(ctx context.Context, since time.Time) ([]string, error) {
	return presence.touched, nil
}

func TestRequireAuth_RejectsSignedOut(t *testing.T) {
	handler := RequireAuth(fakeAuth{err: services.ErrUnauthenticated}, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not run")
	}))

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/api/tasks", nil))

	if recorder.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", recorder.Code)
	}
}

func TestRequireAuth_AttachesSessionAndTouchesPresence(t *testing.T) {
	presence := &recordingPresence{}
	want := services.Session{UserID: "user-1", Email: "ada@example.com"}

	var got services.Session
	handler := RequireAuth(fakeAuth{session: want}, presence)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = GetSession(r.Context())
	}))

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/api/tasks", nil))

	if got != want {
		t.Errorf("expected session %+v, got %+v", want, got)
	}
	if len(presence.touched) != 1 || presence.touched[0] != "user-1" {
		t.Errorf("expected one heartbeat for user-1, got %v", presence.touched)
	}
}

func TestWithSession_SignedOutIsZero(t *testing.T) {
	var got services.Session
	handler := WithSession(fakeAuth{err: errors.New("no cookie")})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = GetSession(r.Context())
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if got.Authenticated() {
		t.Errorf("expected signed-out session, got %+v", got)
	}
}

func TestRequireAdmin(t *testing.T) {
	tests := []struct {
		name    string
		session services.Session
		want    int
	}{
		{"admin", services.Session{UserID: "user-1", Email: "ada@example.com"}, http.StatusOK},
		{"admin with different case", services.Session{UserID: "user-1", Email: "Ada@Example.com"}, http.StatusOK},
		{"signed in but not admin", services.Session{UserID: "user-2", Email: "bob@example.com"}, http.StatusForbidden},
		{"no email", services.Session{UserID: "user-3"}, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := RequireAuth(fakeAuth{session: tt.session}, nil)(
				RequireAdmin([]string{"ADA@example.com"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					w.WriteHeader(http.StatusOK)
				})),
			)

			recorder := httptest.NewRecorder()
			handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodPost, "/api/system/repair", nil))

			if recorder.Code != tt.want {
				t.Errorf("expected %d, got %d", tt.want, recorder.Code)
			}
		})
	}
}

func TestRequireAdmin_EmptyListRejectsEveryone(t *testing.T) {
	handler := RequireAuth(fakeAuth{session: services.Session{UserID: "user-1", Email: "ada@example.com"}}, nil)(
		RequireAdmin(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Error("handler should not run")
		})),
	)

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodPost, "/api/system/repair", nil))

	if recorder.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", recorder.Code)
	}
}

func TestRateLimiter_BlocksAfterBurst(t *testing.T) {
	limiter := NewRateLimiter(4)
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }

	handler := limiter.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	serve := func(remoteAddr string) int {
		request := httptest.NewRequest(http.MethodGet, "/", nil)
		request.RemoteAddr = remoteAddr
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, request)
		return recorder.Code
	}

	for i := 0; i < 2; i++ {
		if code := serve("10.0.0.1:1234"); code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, code)
		}
	}
	if code := serve("10.0.0.1:5678"); code != http.StatusTooManyRequests {
		t.Errorf("expected 429 after burst, got %d", code)
	}
	if code := serve("10.0.0.2:1234"); code != http.StatusOK {
		t.Errorf("expected other client unaffected, got %d", code)
	}

	now = now.Add(15 * time.Second)
	if code := serve("10.0.0.1:1234"); code != http.StatusOK {
		t.Errorf("expected a token after refill, got %d", code)
	}
}

func TestRateLimiter_DropsIdleClients(t *testing.T) {
	limiter := NewRateLimiter(60)
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }

	limiter.allow("ip:10.0.0.1")
	now = now.Add(limiterIdle + time.Second)
	limiter.allow("ip:10.0.0.2")

	if _, ok := limiter.clients["ip:10.0.0.1"]; ok {
		t.Error("expected idle client dropped")
	}
}
