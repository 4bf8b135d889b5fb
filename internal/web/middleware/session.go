package middleware

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kozaktomas/add-me-in/internal/studio"
)

const (
	sessionCookieName = "add_me_in_session"
	sessionDuration   = 24 * time.Hour
	cleanupInterval   = 10 * time.Minute
)

// Session is one visitor's editing session.
type Session struct {
	ID        string             `json:"id"`
	Studio    *studio.Controller `json:"-"`
	CreatedAt time.Time          `json:"created_at"`
	ExpiresAt time.Time          `json:"expires_at"`
}

// SessionManager creates sessions, signs their cookies and expires them.
type SessionManager struct {
	secret        []byte
	newController func() *studio.Controller
	sessions      map[string]*Session
	mu            sync.RWMutex
	stop          chan struct{}
	stopOnce      sync.Once
}

// NewSessionManager creates a new session manager. newController builds the
// studio for each new session. A random secret is generated when none is provided.
func NewSessionManager(secret string, newController func() *studio.Controller) *SessionManager {
	secretBytes := []byte(secret)
	if secret == "" {
		secretBytes = make([]byte, 32)
		if _, err := rand.Read(secretBytes); err != nil {
			panic("failed to generate session secret: " + err.Error())
		}
		slog.Warn("WEB_SESSION_SECRET not set, sessions will not survive a restart")
	}
	if newController == nil {
		newController = func() *studio.Controller { return studio.NewController(nil) }
	}

	sm := &SessionManager{
		secret:        secretBytes,
		newController: newController,
		sessions:      make(map[string]*Session),
		stop:          make(chan struct{}),
	}
	go sm.cleanupLoop()
	return sm
}

// CreateSession creates a new session with a fresh studio.
func (sm *SessionManager) CreateSession() *Session {
	now := time.Now()
	session := &Session{
		ID:        uuid.New().String(),
		Studio:    sm.newController(),
		CreatedAt: now,
		ExpiresAt: now.Add(sessionDuration),
	}

	sm.mu.Lock()
	sm.sessions[session.ID] = session
	sm.mu.Unlock()

	return session
}

// GetSession retrieves a session by ID
func (sm *SessionManager) GetSession(sessionID string) *Session {
	sm.mu.RLock()
	session, ok := sm.sessions[sessionID]
	sm.mu.RUnlock()
	if !ok {
		return nil
	}

	// Check if session has expired
	if time.Now().After(session.ExpiresAt) {
		sm.DeleteSession(sessionID)
		return nil
	}

	return session
}

// DeleteSession removes a session
func (sm *SessionManager) DeleteSession(sessionID string) {
	sm.mu.Lock()
	delete(sm.sessions, sessionID)
	sm.mu.Unlock()
}

// Count returns the number of live sessions.
func (sm *SessionManager) Count() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.sessions)
}

// SetSessionCookie sets the session cookie on the response
func (sm *SessionManager) SetSessionCookie(w http.ResponseWriter, r *http.Request, session *Session) {
	// Sign the session ID
	signature := sm.signData(session.ID)
	cookieValue := session.ID + "." + signature

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    cookieValue,
		Path:     "/",
		HttpOnly: true,
		Secure:   r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https",
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(sessionDuration.Seconds()),
	})
}

// GetSessionFromRequest extracts the session from a request
func (sm *SessionManager) GetSessionFromRequest(r *http.Request) *Session {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil {
		return nil
	}

	sessionID, signature, ok := strings.Cut(cookie.Value, ".")
	if !ok || !sm.verifySignature(sessionID, signature) {
		return nil
	}
	return sm.GetSession(sessionID)
}

// Stop ends the background cleanup goroutine.
func (sm *SessionManager) Stop() {
	sm.stopOnce.Do(func() { close(sm.stop) })
}

func (sm *SessionManager) cleanupLoop() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-sm.stop:
			return
		case now := <-ticker.C:
			if removed := sm.removeExpired(now); removed > 0 {
				slog.Debug("Removed expired sessions", "count", removed)
			}
		}
	}
}

func (sm *SessionManager) removeExpired(now time.Time) int {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	removed := 0
	for id, session := range sm.sessions {
		if now.After(session.ExpiresAt) {
			delete(sm.sessions, id)
			removed++
		}
	}
	return removed
}

// signData creates an HMAC signature for data
func (sm *SessionManager) signData(data string) string {
	h := hmac.New(sha256.New, sm.secret)
	h.Write([]byte(data))
	return base64.URLEncoding.EncodeToString(h.Sum(nil))
}

// verifySignature verifies an HMAC signature
func (sm *SessionManager) verifySignature(data, signature string) bool {
	expected := sm.signData(data)
	return hmac.Equal([]byte(signature), []byte(expected))
}
