// Package store is the per-login application state container.
//
// A Store owns one State tree split into slices (sessions, clients,
// classrooms, auth). State changes only through Dispatch, which applies the
// pure slice reducers in dispatch order. Async actions are Store methods that
// call the Gateway and dispatch pending, fulfilled and rejected actions.
package store

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"crmpilates/internal/adapters/api"
	"crmpilates/internal/domain/classroom"
	"crmpilates/internal/domain/client"
	"crmpilates/internal/domain/session"
	"crmpilates/internal/domain/token"
)

// Gateway is the subset of the studio API the store calls.
type Gateway interface {
	Login(ctx context.Context, username, password string) (token.Token, error)
	FetchClients(ctx context.Context) ([]client.Client, error)
	CreateClient(ctx context.Context, in client.Client) (client.Client, error)
	AddCredits(ctx context.Context, clientID string, value int, subject client.Subject) error
	FetchSessions(ctx context.Context, link string) (api.SessionsPage, error)
	Checkin(ctx context.Context, classroomID string, start time.Time, attendeeID string) (session.Session, error)
	Checkout(ctx context.Context, sessionID, attendeeID string) (session.Session, error)
	Cancel(ctx context.Context, classroomID string, start time.Time, attendeeID string) (session.Session, error)
	CreateClassroom(ctx context.Context, in classroom.Classroom) (classroom.Classroom, error)
}

// Persistence is a key/value store scoped to one browser session.
type Persistence interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// Deps holds the collaborators of a Store.
type Deps struct {
	Gateway     Gateway
	Persistence Persistence
	Now         func() time.Time
}

// State is the whole application state tree.
type State struct {
	Sessions   SessionsState
	Clients    ClientsState
	Classrooms ClassroomsState
	Auth       AuthState
}

// Action is anything Dispatch accepts.
type Action interface {
	action()
}

// Store is the application state container of one login session.
// It is safe for concurrent use; actions are applied one at a time.
type Store struct {
	mu    sync.Mutex
	state State
	deps  Deps
}

// New creates a store with the initial state of every slice.
// PRE: deps.Gateway and deps.Persistence are non-nil
// POST: every slice is idle; auth holds the empty token
func New(deps Deps) *Store {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Store{
		deps: deps,
		state: State{
			Sessions:   SessionsState{Status: SessionsIdle},
			Clients:    ClientsState{Status: ClientsIdle},
			Classrooms: ClassroomsState{Status: ClassroomsIdle},
			Auth:       AuthState{Status: AuthIdle, Token: token.Empty()},
		},
	}
}

// Dispatch applies a to the state tree.
// INVARIANT: reducers run under the store lock, in call order
func (s *Store) Dispatch(a Action) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = reduce(s.state, a)
}

// State returns a deep copy of the current state.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

func reduce(st State, a Action) State {
	st.Sessions = reduceSessions(st.Sessions, a)
	st.Clients = reduceClients(st.Clients, a)
	st.Classrooms = reduceClassrooms(st.Classrooms, a)
	st.Auth = reduceAuth(st.Auth, a)
	return st
}

func (st State) clone() State {
	out := st
	out.Sessions.Error = cloneMessages(st.Sessions.Error)
	if st.Sessions.Sessions != nil {
		out.Sessions.Sessions = make([]session.Session, len(st.Sessions.Sessions))
		for i, se := range st.Sessions.Sessions {
			out.Sessions.Sessions[i] = se.Clone()
		}
	}
	if st.Sessions.Link != nil {
		link := *st.Sessions.Link
		out.Sessions.Link = &link
	}
	out.Clients.Error = cloneMessages(st.Clients.Error)
	if st.Clients.Clients != nil {
		out.Clients.Clients = make([]client.Client, len(st.Clients.Clients))
		for i, c := range st.Clients.Clients {
			out.Clients.Clients[i] = c.Clone()
		}
	}
	out.Classrooms.Error = cloneMessages(st.Classrooms.Error)
	if st.Classrooms.Classrooms != nil {
		out.Classrooms.Classrooms = make([]classroom.Classroom, len(st.Classrooms.Classrooms))
		for i, c := range st.Classrooms.Classrooms {
			c.Attendees = append([]string(nil), c.Attendees...)
			out.Classrooms.Classrooms[i] = c
		}
	}
	out.Auth.Error = cloneMessages(st.Auth.Error)
	return out
}

func cloneMessages(in []ErrorMessage) []ErrorMessage {
	if in == nil {
		return nil
	}
	return append([]ErrorMessage(nil), in...)
}

// authorized attaches the current token to ctx for gateway calls.
func (s *Store) authorized(ctx context.Context) context.Context {
	return api.ContextWithToken(ctx, s.CurrentToken(ctx))
}

// reject maps err, stores it through the slice's rejected action and
// returns it to the caller.
func (s *Store) reject(origin string, err error, rejected func([]ErrorMessage) Action) *ActionError {
	msgs := MapActionError(err, origin)
	slog.Warn("action_rejected", "origin", origin, "error", err)
	s.Dispatch(rejected(msgs))
	return &ActionError{Origin: origin, Messages: msgs, Err: err}
}
