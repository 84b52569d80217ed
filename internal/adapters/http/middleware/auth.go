package middleware

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"crmpilates/internal/application/store"
)

// contextKey is an unexported type for context keys in this package.
type contextKey string

const sessionContextKey contextKey = "session"

// DefaultSessionTTL is how long a login session lives.
const DefaultSessionTTL = 24 * time.Hour

// Session is one browser login session and its application state.
type Session struct {
	ID        string
	Username  string
	CreatedAt time.Time
	State     *store.Store
}

// StateFactory builds the application state container of a session id.
type StateFactory func(id string) *store.Store

// SessionStore is an in-memory registry of login sessions.
// Sessions missing from memory (after a restart) are rebuilt by the
// factory and kept only if their persisted token is still valid.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]Session
	newState StateFactory
	ttl      time.Duration
	now      func() time.Time
}

// NewSessionStore creates a session registry.
// PRE: newState is non-nil
// POST: a non-positive ttl falls back to DefaultSessionTTL
func NewSessionStore(newState StateFactory, ttl time.Duration) *SessionStore {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionStore{
		sessions: make(map[string]Session),
		newState: newState,
		ttl:      ttl,
		now:      time.Now,
	}
}

// TTL returns the lifetime of a session.
func (ss *SessionStore) TTL() time.Duration {
	return ss.ttl
}

// Begin starts a new, not yet authenticated session.
// POST: returns the session id and its fresh state container
func (ss *SessionStore) Begin() (Session, error) {
	id, err := generateID()
	if err != nil {
		return Session{}, err
	}
	return Session{ID: id, CreatedAt: ss.now(), State: ss.newState(id)}, nil
}

// Save registers sess under its id.
// PRE: sess.ID is non-empty
func (ss *SessionStore) Save(sess Session) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	ss.sessions[sess.ID] = sess
}

// Get retrieves a session by id, rehydrating it from persistence if needed.
// PRE: id is non-empty
// POST: Returns the session if known or restorable and not expired
func (ss *SessionStore) Get(ctx context.Context, id string) (Session, bool) {
	ss.mu.RLock()
	sess, ok := ss.sessions[id]
	ss.mu.RUnlock()

	if ok {
		if ss.now().Sub(sess.CreatedAt) > ss.ttl {
			ss.Delete(id)
			ss.signOut(ctx, sess)
			return Session{}, false
		}
		return sess, true
	}

	state := ss.newState(id)
	if state.CurrentToken(ctx).IsEmpty() {
		return Session{}, false
	}
	sess = Session{ID: id, CreatedAt: ss.now(), State: state}
	ss.Save(sess)
	slog.Info("auth_event", "event", "session_rehydrated")
	return sess, true
}

// Delete removes a session by id.
// POST: Session with given id is removed
func (ss *SessionStore) Delete(id string) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	delete(ss.sessions, id)
}

// Prune removes every expired session and its persisted token, and returns
// how many were dropped.
func (ss *SessionStore) Prune(ctx context.Context) int {
	ss.mu.Lock()
	now := ss.now()
	var expired []Session
	for id, sess := range ss.sessions {
		if now.Sub(sess.CreatedAt) > ss.ttl {
			delete(ss.sessions, id)
			expired = append(expired, sess)
		}
	}
	ss.mu.Unlock()

	for _, sess := range expired {
		ss.signOut(ctx, sess)
	}
	return len(expired)
}

// signOut clears the persisted token so an expired id cannot be rehydrated.
func (ss *SessionStore) signOut(ctx context.Context, sess Session) {
	if sess.State != nil {
		sess.State.Logout(ctx)
	}
}

const sessionCookieName = "crm_session"

// Auth returns middleware that resolves the session cookie and puts the
// session in the request context. It never blocks; RequireToken does.
func Auth(sessions *SessionStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(sessionCookieName)
			if err == nil && cookie.Value != "" {
				if sess, ok := sessions.Get(r.Context(), cookie.Value); ok {
					r = r.WithContext(ContextWithSession(r.Context(), sess))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireToken renders next only when the session holds a token that is
// still valid; anything else is redirected to /login.
func RequireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, ok := GetSessionFromContext(r.Context())
		if !ok || sess.State == nil || sess.State.CurrentToken(r.Context()).IsEmpty() {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetSessionFromContext extracts the session from the request context.
func GetSessionFromContext(ctx context.Context) (Session, bool) {
	sess, ok := ctx.Value(sessionContextKey).(Session)
	return sess, ok
}

// ContextWithSession returns a context with the given session set.
func ContextWithSession(ctx context.Context, sess Session) context.Context {
	return context.WithValue(ctx, sessionContextKey, sess)
}

// SetSessionCookie sets the session cookie on the response.
func SetSessionCookie(w http.ResponseWriter, id string, ttl time.Duration, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    id,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
	})
}

// ClearSessionCookie removes the session cookie.
func ClearSessionCookie(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
		Path:     "/",
		MaxAge:   -1,
	})
}

func generateID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
