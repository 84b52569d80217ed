package web

import (
	"net/http"

	"crmpilates/internal/adapters/http/middleware"
	"crmpilates/internal/application/store"
)

type loginView struct {
	Username string
	Errors   []store.ErrorMessage
}

// handleLogin handles GET (form) and POST (authenticate) for /login
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if sess, ok := middleware.GetSessionFromContext(r.Context()); ok && !sess.State.CurrentToken(r.Context()).IsEmpty() {
			http.Redirect(w, r, "/calendar", http.StatusSeeOther)
			return
		}
		s.render(w, r, http.StatusOK, "login.html", "Sign in", loginView{})

	case http.MethodPost:
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form submission", http.StatusBadRequest)
			return
		}
		input := store.LoginInput{
			Username: r.PostFormValue("username"),
			Password: r.PostFormValue("password"),
		}

		// A login always starts a fresh session id; the previous one is
		// signed out whatever the outcome.
		if old, ok := middleware.GetSessionFromContext(r.Context()); ok {
			old.State.Logout(r.Context())
			s.sessions.Delete(old.ID)
		}
		sess, err := s.sessions.Begin()
		if err != nil {
			internalError(w, err)
			return
		}
		if aerr := sess.State.Login(r.Context(), input); aerr != nil {
			middleware.ClearSessionCookie(w, s.deps.Secure)
			s.render(w, r, http.StatusUnauthorized, "login.html", "Sign in", loginView{
				Username: input.Username,
				Errors:   aerr.Messages,
			})
			return
		}

		sess.Username = input.Username
		s.sessions.Save(sess)
		middleware.SetSessionCookie(w, sess.ID, s.sessions.TTL(), s.deps.Secure)
		http.Redirect(w, r, "/calendar", http.StatusSeeOther)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// handleLogout handles POST /logout
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if sess, ok := middleware.GetSessionFromContext(r.Context()); ok {
		sess.State.Logout(r.Context())
		s.sessions.Delete(sess.ID)
	}
	middleware.ClearSessionCookie(w, s.deps.Secure)
	s.flash(w, r, FlashSuccess, "Signed out")
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}
