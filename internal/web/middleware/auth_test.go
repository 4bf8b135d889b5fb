package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kozaktomas/add-me-in/internal/studio"
)

func TestNewSessionManager(t *testing.T) {
	sm := NewSessionManager("test-secret", nil)
	defer sm.Stop()
	if sm == nil {
		t.Fatal("NewSessionManager returned nil")
		return
	}
	if sm.sessions == nil {
		t.Error("sessions map is nil")
	}
}

func TestNewSessionManager_RandomSecret(t *testing.T) {
	sm := NewSessionManager("", nil)
	defer sm.Stop()
	if len(sm.secret) != 32 {
		t.Errorf("secret length = %d, want 32", len(sm.secret))
	}
}

func TestSessionManager_CreateSession(t *testing.T) {
	built := 0
	sm := NewSessionManager("test-secret", func() *studio.Controller {
		built++
		return studio.NewController(nil)
	})
	defer sm.Stop()

	session := sm.CreateSession()

	if session.ID == "" {
		t.Error("session ID is empty")
	}
	if session.Studio == nil {
		t.Error("session has no studio")
	}
	if built != 1 {
		t.Errorf("controller factory called %d times, want 1", built)
	}
	if session.ExpiresAt.Before(time.Now()) {
		t.Error("session expires in the past")
	}
	if got := session.Studio.Snapshot().Phase; got != studio.PhaseIdle {
		t.Errorf("new studio phase = %s, want %s", got, studio.PhaseIdle)
	}
}

func TestSessionManager_CreateSession_UniqueIDs(t *testing.T) {
	sm := NewSessionManager("test-secret", nil)
	defer sm.Stop()

	first := sm.CreateSession()
	second := sm.CreateSession()

	if first.ID == second.ID {
		t.Error("session IDs should be unique")
	}
	if first.Studio == second.Studio {
		t.Error("sessions should not share a studio")
	}
	if sm.Count() != 2 {
		t.Errorf("Count() = %d, want 2", sm.Count())
	}
}

func TestSessionManager_GetSession(t *testing.T) {
	sm := NewSessionManager("test-secret", nil)
	defer sm.Stop()

	session := sm.CreateSession()

	// Get existing session.
	retrieved := sm.GetSession(session.ID)
	if retrieved == nil {
		t.Fatal("GetSession() returned nil for existing session")
		return
	}
	if retrieved.Studio != session.Studio {
		t.Error("GetSession() returned a different studio")
	}

	// Get non-existing session.
	notFound := sm.GetSession("nonexistent-id")
	if notFound != nil {
		t.Error("GetSession() should return nil for non-existing session")
	}
}

func TestSessionManager_GetSession_Expired(t *testing.T) {
	sm := NewSessionManager("test-secret", nil)
	defer sm.Stop()

	session := sm.CreateSession()
	session.ExpiresAt = time.Now().Add(-time.Minute)

	if sm.GetSession(session.ID) != nil {
		t.Error("GetSession() should return nil for expired session")
	}
	if sm.Count() != 0 {
		t.Errorf("expired session should be removed, Count() = %d", sm.Count())
	}
}

func TestSessionManager_DeleteSession(t *testing.T) {
	sm := NewSessionManager("test-secret", nil)
	defer sm.Stop()

	session := sm.CreateSession()

	// Delete the session.
	sm.DeleteSession(session.ID)

	// Verify it's gone.
	retrieved := sm.GetSession(session.ID)
	if retrieved != nil {
		t.Error("GetSession() should return nil after deletion")
	}
}

func TestSessionManager_RemoveExpired(t *testing.T) {
	sm := NewSessionManager("test-secret", nil)
	defer sm.Stop()

	live := sm.CreateSession()
	stale := sm.CreateSession()
	stale.ExpiresAt = time.Now().Add(-time.Hour)

	removed := sm.removeExpired(time.Now())

	if removed != 1 {
		t.Errorf("removeExpired() = %d, want 1", removed)
	}
	if sm.GetSession(live.ID) == nil {
		t.Error("live session should survive cleanup")
	}
}

func TestSessionManager_StopTwice(t *testing.T) {
	sm := NewSessionManager("test-secret", nil)
	sm.Stop()
	sm.Stop()
}

func TestSessionManager_SetAndGetSessionCookie(t *testing.T) {
	sm := NewSessionManager("test-secret", nil)
	defer sm.Stop()
	session := sm.CreateSession()

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	sm.SetSessionCookie(w, r, session)

	cookies := w.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("expected 1 cookie, got %d", len(cookies))
	}
	cookie := cookies[0]
	if cookie.Name != sessionCookieName {
		t.Errorf("cookie name = %s, want %s", cookie.Name, sessionCookieName)
	}
	if !cookie.HttpOnly {
		t.Error("cookie should be HttpOnly")
	}
	if cookie.Secure {
		t.Error("cookie should not be Secure on plain HTTP")
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)

	retrieved := sm.GetSessionFromRequest(req)
	if retrieved == nil {
		t.Fatal("GetSessionFromRequest() returned nil")
		return
	}
	if retrieved.ID != session.ID {
		t.Errorf("session ID = %s, want %s", retrieved.ID, session.ID)
	}
}

func TestSessionManager_SetSessionCookie_ForwardedHTTPS(t *testing.T) {
	sm := NewSessionManager("test-secret", nil)
	defer sm.Stop()

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("X-Forwarded-Proto", "https")
	sm.SetSessionCookie(w, r, sm.CreateSession())

	if !w.Result().Cookies()[0].Secure {
		t.Error("cookie should be Secure behind an HTTPS proxy")
	}
}

func TestSessionManager_GetSessionFromRequest_InvalidCookie(t *testing.T) {
	sm := NewSessionManager("test-secret", nil)
	defer sm.Stop()
	session := sm.CreateSession()

	tests := []struct {
		name  string
		value string
	}{
		{"no signature", session.ID},
		{"bad signature", session.ID + ".invalid"},
		{"unknown session", "unknown." + sm.signData("unknown")},
		{"empty", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: tt.value})

			if sm.GetSessionFromRequest(req) != nil {
				t.Error("GetSessionFromRequest() should return nil")
			}
		})
	}
}

func TestSessionManager_GetSessionFromRequest_OtherSecret(t *testing.T) {
	issuer := NewSessionManager("secret-a", nil)
	defer issuer.Stop()
	verifier := NewSessionManager("secret-b", nil)
	defer verifier.Stop()

	session := issuer.CreateSession()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: session.ID + "." + issuer.signData(session.ID)})

	if verifier.GetSessionFromRequest(req) != nil {
		t.Error("cookie signed with another secret should be rejected")
	}
}

func TestWithSession_CreatesSession(t *testing.T) {
	sm := NewSessionManager("test-secret", nil)
	defer sm.Stop()

	var seen *Session
	handler := WithSession(sm)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetSessionFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if seen == nil {
		t.Fatal("session not set in context")
		return
	}
	if sm.Count() != 1 {
		t.Errorf("Count() = %d, want 1", sm.Count())
	}
	cookies := w.Result().Cookies()
	if len(cookies) != 1 || !strings.HasPrefix(cookies[0].Value, seen.ID+".") {
		t.Errorf("expected signed cookie for %s, got %v", seen.ID, cookies)
	}
}

func TestWithSession_ReusesSession(t *testing.T) {
	sm := NewSessionManager("test-secret", nil)
	defer sm.Stop()
	session := sm.CreateSession()

	var seen *Session
	handler := WithSession(sm)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetSessionFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: session.ID + "." + sm.signData(session.ID)})
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if seen != session {
		t.Error("expected the existing session to be reused")
	}
	if len(w.Result().Cookies()) != 0 {
		t.Error("no cookie should be set for an existing session")
	}
	if sm.Count() != 1 {
		t.Errorf("Count() = %d, want 1", sm.Count())
	}
}

func TestGetSessionFromContext(t *testing.T) {
	// No session in context.
	if GetSessionFromContext(context.Background()) != nil {
		t.Error("GetSessionFromContext() should return nil for empty context")
	}

	session := &Session{ID: "test123"}
	ctx := SetSessionInContext(context.Background(), session)

	retrieved := GetSessionFromContext(ctx)
	if retrieved == nil {
		t.Fatal("GetSessionFromContext() returned nil")
		return
	}
	if retrieved.ID != "test123" {
		t.Errorf("session ID = %s, want test123", retrieved.ID)
	}
}

func TestMustGetStudio(t *testing.T) {
	w := httptest.NewRecorder()
	if MustGetStudio(context.Background(), w) != nil {
		t.Error("MustGetStudio() should return nil without a session")
	}
	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}

	controller := studio.NewController(nil)
	ctx := SetSessionInContext(context.Background(), &Session{ID: "s", Studio: controller})
	if MustGetStudio(ctx, httptest.NewRecorder()) != controller {
		t.Error("MustGetStudio() returned the wrong studio")
	}
}
