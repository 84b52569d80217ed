// Package web is the staff-facing HTML front of the studio CRM.
//
// Every login session owns a store.Store; handlers dispatch its async actions
// and render the resulting state with html/template. Mutations are form posts
// that redirect back to a page (post/redirect/get), with outcomes carried to
// the next page as one-shot flash messages.
package web

import (
	"context"
	"fmt"
	"html/template"
	"net/http"
	"time"

	gsessions "github.com/gorilla/sessions"

	"crmpilates/internal/adapters/email"
	"crmpilates/internal/adapters/http/middleware"
	"crmpilates/internal/adapters/http/perf"
	"crmpilates/internal/application/store"
)

// DefaultRateLimitPerSecond is the per-IP request budget.
const DefaultRateLimitPerSecond = 10

// Pinger reports whether the backing database is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps holds everything the web front needs. It is built once in main.
type Deps struct {
	Gateway store.Gateway
	// Persistence returns the key/value view of one login session.
	Persistence func(sessionID string) store.Persistence
	DB          Pinger // optional, for /healthz

	Notifier           email.Sender // optional; no credit alerts when nil
	AlertTo            []string
	LowCreditThreshold int

	Collector *perf.Collector
	Location  *time.Location
	Now       func() time.Time

	CSRFKey        []byte // 32 bytes
	SessionKey     []byte // 32 bytes, signs the flash cookie
	Secure         bool   // HTTPS-only cookies
	TrustedOrigins []string

	SessionTTL         time.Duration
	SlowRequest        time.Duration
	RateLimitPerSecond int
}

// Server serves the HTML front.
type Server struct {
	deps      Deps
	sessions  *middleware.SessionStore
	flashes   *gsessions.CookieStore
	templates map[string]*template.Template
}

// NewServer parses the templates and builds the session registry.
// PRE: deps.Gateway and deps.Persistence are non-nil; keys are 32 bytes
func NewServer(deps Deps) (*Server, error) {
	if len(deps.CSRFKey) != 32 || len(deps.SessionKey) != 32 {
		return nil, fmt.Errorf("web: csrf and session keys must be 32 bytes")
	}
	if deps.Location == nil {
		deps.Location = time.UTC
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.RateLimitPerSecond <= 0 {
		deps.RateLimitPerSecond = DefaultRateLimitPerSecond
	}

	templates, err := parseTemplates()
	if err != nil {
		return nil, err
	}

	s := &Server{
		deps:      deps,
		flashes:   newFlashStore(deps.SessionKey, deps.Secure),
		templates: templates,
	}
	s.sessions = middleware.NewSessionStore(s.newState, deps.SessionTTL)
	return s, nil
}

// Sessions exposes the session registry to background jobs.
func (s *Server) Sessions() *middleware.SessionStore {
	return s.sessions
}

func (s *Server) newState(id string) *store.Store {
	return store.New(store.Deps{
		Gateway:     s.deps.Gateway,
		Persistence: s.deps.Persistence(id),
		Now:         s.deps.Now,
	})
}

// Handler returns the routed handler wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.registerRoutes(mux)

	limiter := middleware.NewRateLimiter(s.deps.RateLimitPerSecond, time.Second)

	// Timing -> RateLimit -> Auth -> CSRF -> SecurityHeaders -> mux
	return middleware.Chain(mux,
		middleware.SecurityHeaders,
		middleware.CSRF(s.deps.CSRFKey, middleware.CSRFOptions{
			Secure:         s.deps.Secure,
			TrustedOrigins: s.deps.TrustedOrigins,
		}),
		middleware.Auth(s.sessions),
		middleware.RateLimit(limiter),
		middleware.Timing(s.deps.Collector, s.deps.SlowRequest),
	)
}

func (s *Server) registerRoutes(mux *http.ServeMux) {
	guard := func(h http.HandlerFunc) http.Handler {
		return middleware.RequireToken(h)
	}

	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/login", s.handleLogin)
	mux.HandleFunc("/logout", s.handleLogout)

	mux.Handle("/{$}", guard(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/calendar", http.StatusSeeOther)
	}))
	mux.Handle("/calendar", guard(s.handleCalendar))
	mux.Handle("/sessions/checkin", guard(s.handleCheckin))
	mux.Handle("/sessions/checkout", guard(s.handleCheckout))
	mux.Handle("/sessions/cancel", guard(s.handleCancel))
	mux.Handle("/sessions/attendees", guard(s.handleAddAttendee))
	mux.Handle("/classrooms/new", guard(s.handleNewClassroom))
	mux.Handle("/clients", guard(s.handleClients))
	mux.Handle("/clients/credits", guard(s.handleAddCredits))
	mux.Handle("/admin/perf", guard(s.handleAdminPerf))
}
