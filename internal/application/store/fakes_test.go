package store

import (
	"context"
	"sync"
	"time"

	"crmpilates/internal/adapters/api"
	"crmpilates/internal/domain/classroom"
	"crmpilates/internal/domain/client"
	"crmpilates/internal/domain/session"
	"crmpilates/internal/domain/token"
)

// fakeGateway answers every call from its fields and records the tokens it saw.
type fakeGateway struct {
	mu sync.Mutex

	loginToken token.Token
	loginErr   error

	clients    []client.Client
	clientsErr error
	created    client.Client
	createErr  error
	creditsErr error

	page       api.SessionsPage
	sessionErr error
	roster     session.Session
	rosterErr  error

	classroom    classroom.Classroom
	classroomErr error

	calls      []string
	seenTokens []string
}

func (g *fakeGateway) note(ctx context.Context, call string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, call)
	t, _ := api.TokenFromContext(ctx)
	g.seenTokens = append(g.seenTokens, t.Token)
}

func (g *fakeGateway) Login(ctx context.Context, _, _ string) (token.Token, error) {
	g.note(ctx, "login")
	return g.loginToken, g.loginErr
}

func (g *fakeGateway) FetchClients(ctx context.Context) ([]client.Client, error) {
	g.note(ctx, "fetchClients")
	return g.clients, g.clientsErr
}

func (g *fakeGateway) CreateClient(ctx context.Context, _ client.Client) (client.Client, error) {
	g.note(ctx, "createClient")
	return g.created, g.createErr
}

func (g *fakeGateway) AddCredits(ctx context.Context, _ string, _ int, _ client.Subject) error {
	g.note(ctx, "addCredits")
	return g.creditsErr
}

func (g *fakeGateway) FetchSessions(ctx context.Context, link string) (api.SessionsPage, error) {
	g.note(ctx, "fetchSessions "+link)
	return g.page, g.sessionErr
}

func (g *fakeGateway) Checkin(ctx context.Context, _ string, _ time.Time, _ string) (session.Session, error) {
	g.note(ctx, "checkin")
	return g.roster, g.rosterErr
}

func (g *fakeGateway) Checkout(ctx context.Context, _, _ string) (session.Session, error) {
	g.note(ctx, "checkout")
	return g.roster, g.rosterErr
}

func (g *fakeGateway) Cancel(ctx context.Context, _ string, _ time.Time, _ string) (session.Session, error) {
	g.note(ctx, "cancel")
	return g.roster, g.rosterErr
}

func (g *fakeGateway) CreateClassroom(ctx context.Context, _ classroom.Classroom) (classroom.Classroom, error) {
	g.note(ctx, "createClassroom")
	return g.classroom, g.classroomErr
}

// memPersistence is an in-memory Persistence.
type memPersistence struct {
	mu     sync.Mutex
	values map[string]string
}

func newMemPersistence() *memPersistence {
	return &memPersistence{values: map[string]string{}}
}

func (m *memPersistence) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *memPersistence) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *memPersistence) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

func newTestStore(g *fakeGateway, p *memPersistence, now time.Time) *Store {
	return New(Deps{Gateway: g, Persistence: p, Now: func() time.Time { return now }})
}
