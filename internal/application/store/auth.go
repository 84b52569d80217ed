package store

import (
	"context"
	"encoding/json"
	"log/slog"

	"crmpilates/internal/adapters/api"
	"crmpilates/internal/domain/token"
)

// TokenKey is the persistence key of the access token.
const TokenKey = "token"

// AuthStatus is the status of the auth slice.
type AuthStatus string

const (
	AuthIdle      AuthStatus = "idle"
	AuthLoading   AuthStatus = "loading"
	AuthSucceeded AuthStatus = "succeeded"
	AuthFailed    AuthStatus = "failed"
)

// AuthState holds the access token of the logged in user.
type AuthState struct {
	Status AuthStatus
	Error  []ErrorMessage
	Token  token.Token
}

// Auth slice actions.
type (
	LoginPending   struct{}
	LoginFulfilled struct{ Token token.Token }
	LoginRejected  struct{ Errors []ErrorMessage }
	TokenRestored  struct{ Token token.Token }
	TokenCleared   struct{}
)

func (LoginPending) action()   {}
func (LoginFulfilled) action() {}
func (LoginRejected) action()  {}
func (TokenRestored) action()  {}
func (TokenCleared) action()   {}

func reduceAuth(st AuthState, a Action) AuthState {
	switch a := a.(type) {
	case LoginPending:
		st.Status = AuthLoading
		st.Error = nil
	case LoginFulfilled:
		st.Status = AuthSucceeded
		st.Token = a.Token
	case LoginRejected:
		st.Status = AuthFailed
		st.Error = a.Errors
		st.Token = token.Empty()
	case TokenRestored:
		st.Token = a.Token
	case TokenCleared:
		st.Status = AuthIdle
		st.Token = token.Empty()
	}
	return st
}

// LoginInput is the login form.
type LoginInput struct {
	Username string `validate:"required"`
	Password string `validate:"required"`
}

// Login exchanges credentials for a token and persists it.
// A failed login clears the persisted entry.
func (s *Store) Login(ctx context.Context, in LoginInput) *ActionError {
	const origin = "login"
	s.Dispatch(LoginPending{})
	rejected := func(m []ErrorMessage) Action { return LoginRejected{Errors: m} }

	if err := api.Validator().Struct(in); err != nil {
		s.forget(ctx)
		return s.reject(origin, err, rejected)
	}
	t, err := s.deps.Gateway.Login(ctx, in.Username, in.Password)
	if err != nil {
		s.forget(ctx)
		return s.reject(origin, err, rejected)
	}

	s.Dispatch(LoginFulfilled{Token: t})
	s.persist(ctx, t)
	slog.Info("auth_event", "event", "login", "username", in.Username)
	return nil
}

// Logout drops the token from state and persistence.
func (s *Store) Logout(ctx context.Context) {
	s.Dispatch(TokenCleared{})
	s.forget(ctx)
	slog.Info("auth_event", "event", "logout")
}

// CurrentToken returns the token re-validated at the current time.
// State is consulted first, then persistence. An expired token is cleared
// from both and reported as token.Empty().
// POST: result is token.Empty() or a token that has not expired
func (s *Store) CurrentToken(ctx context.Context) token.Token {
	now := s.deps.Now()

	s.mu.Lock()
	held := s.state.Auth.Token
	s.mu.Unlock()

	if !held.IsEmpty() {
		if t := token.Current(held, now); !t.IsEmpty() {
			return t
		}
		slog.Info("auth_event", "event", "token_expired")
		s.Dispatch(TokenCleared{})
		s.forget(ctx)
		return token.Empty()
	}

	raw, ok, err := s.deps.Persistence.Get(ctx, TokenKey)
	if err != nil {
		slog.Warn("token_read_failed", "error", err)
		return token.Empty()
	}
	if !ok {
		return token.Empty()
	}
	var stored token.Token
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		slog.Warn("token_decode_failed", "error", err)
		s.forget(ctx)
		return token.Empty()
	}
	t := token.Current(stored, now)
	if t.IsEmpty() {
		s.forget(ctx)
		return t
	}
	s.Dispatch(TokenRestored{Token: t})
	return t
}

func (s *Store) persist(ctx context.Context, t token.Token) {
	b, err := json.Marshal(t)
	if err != nil {
		slog.Error("token_encode_failed", "error", err)
		return
	}
	if err := s.deps.Persistence.Set(ctx, TokenKey, string(b)); err != nil {
		slog.Error("token_persist_failed", "error", err)
	}
}

func (s *Store) forget(ctx context.Context) {
	if err := s.deps.Persistence.Delete(ctx, TokenKey); err != nil {
		slog.Warn("token_delete_failed", "error", err)
	}
}
