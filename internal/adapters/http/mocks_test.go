package web

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"crmpilates/internal/adapters/api"
	"crmpilates/internal/adapters/email"
	"crmpilates/internal/adapters/http/perf"
	"crmpilates/internal/application/store"
	"crmpilates/internal/domain/classroom"
	"crmpilates/internal/domain/client"
	"crmpilates/internal/domain/session"
	"crmpilates/internal/domain/token"
)


var testStart = time.Date(2022, 9, 5, 8, 0, 0, 0, time.UTC)

func intPtr(v int) *int { return &v }

// mockGateway is an in-memory studio API.
type mockGateway struct {
	mu sync.Mutex

	password string
	sessions []session.Session
	clients  []client.Client
	nextID   int
	calls    []string
}

func newMockGateway() *mockGateway {
	return &mockGateway{
		password: "secret",
		sessions: []session.Session{{
			ClassroomID: "c-1",
			Name:        "Morning mat",
			Subject:     "MAT",
			Position:    2,
			Schedule:    session.Schedule{Start: testStart, Stop: testStart.Add(time.Hour)},
			Attendees: []session.Attendee{{
				ID: "a-1", Firstname: "Lea", Lastname: "Martin",
				Attendance: session.AttendanceRegistered,
				Credits:    &session.AttendeeCredits{Amount: intPtr(2)},
			}},
		}},
		clients: []client.Client{
			{ID: "a-1", Firstname: "Lea", Lastname: "Martin", Credits: []client.Credits{{Value: 2, Subject: client.SubjectMat}}},
			{ID: "a-2", Firstname: "Tom", Lastname: "Durand"},
		},
	}
}

func (g *mockGateway) note(call string) {
	g.calls = append(g.calls, call)
}

// Calls returns the calls received so far.
func (g *mockGateway) Calls() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.calls...)
}

// Login implements the gateway for testing.
// POST: returns a token valid for one hour when the password matches
func (g *mockGateway) Login(_ context.Context, username, password string) (token.Token, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.note("login " + username)
	if password != g.password {
		return token.Token{}, &api.Error{Kind: api.KindUnstructured, Status: http.StatusUnauthorized, Message: "Incorrect username or password"}
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": username,
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("test"))
	if err != nil {
		return token.Token{}, err
	}
	return token.Token{Token: raw, Type: token.TypeBearer}, nil
}

// FetchClients implements the gateway for testing.
func (g *mockGateway) FetchClients(context.Context) ([]client.Client, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.note("fetchClients")
	out := make([]client.Client, len(g.clients))
	for i, c := range g.clients {
		out[i] = c.Clone()
	}
	return out, nil
}

// CreateClient implements the gateway for testing.
func (g *mockGateway) CreateClient(_ context.Context, in client.Client) (client.Client, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.note("createClient " + in.FullName())
	g.nextID++
	in.ID = "new-" + string(rune('0'+g.nextID))
	g.clients = append(g.clients, in.Clone())
	return in, nil
}

// AddCredits implements the gateway for testing.
func (g *mockGateway) AddCredits(_ context.Context, clientID string, value int, subject client.Subject) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.note("addCredits " + clientID)
	for i := range g.clients {
		if g.clients[i].ID == clientID {
			g.clients[i].AddCredits(value, subject)
		}
	}
	return nil
}

// FetchSessions implements the gateway for testing.
func (g *mockGateway) FetchSessions(_ context.Context, link string) (api.SessionsPage, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.note("fetchSessions " + link)
	out := make([]session.Session, len(g.sessions))
	for i, s := range g.sessions {
		out[i] = s.Clone()
	}
	return api.SessionsPage{Sessions: out, LinkHeader: linkHeaderFor(link)}, nil
}

// linkHeaderFor answers the month asked for in link, September 2022 by default.
func linkHeaderFor(link string) string {
	month := time.Date(2022, 9, 1, 0, 0, 0, 0, time.UTC)
	if u, err := url.Parse(link); err == nil {
		if m, err := time.Parse("2006-01", u.Query().Get("month")); err == nil {
			month = m
		}
	}
	rel := func(m time.Time, name string) string {
		return fmt.Sprintf(`</sessions?month=%s>; rel="%s"`, m.Format("2006-01"), name)
	}
	return strings.Join([]string{
		rel(month.AddDate(0, -1, 0), "previous"),
		rel(month, "current"),
		rel(month.AddDate(0, 1, 0), "next"),
	}, ", ")
}

func (g *mockGateway) find(classroomID string, start time.Time) *session.Session {
	for i := range g.sessions {
		if g.sessions[i].SameSlot(classroomID, start) {
			return &g.sessions[i]
		}
	}
	return nil
}

// Checkin implements the gateway for testing.
// POST: the session gets an id; the attendee is checked in and spends one credit
func (g *mockGateway) Checkin(_ context.Context, classroomID string, start time.Time, attendeeID string) (session.Session, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.note("checkin " + attendeeID)
	s := g.find(classroomID, start)
	if s == nil {
		return session.Session{}, &api.Error{Kind: api.KindUnstructured, Status: http.StatusNotFound, Message: "Session not found"}
	}
	s.ID = "s-1"
	for i := range s.Attendees {
		if s.Attendees[i].ID == attendeeID {
			s.Attendees[i].Attendance = session.AttendanceCheckedIn
			if s.Attendees[i].Credits != nil && s.Attendees[i].Credits.Amount != nil {
				*s.Attendees[i].Credits.Amount--
			}
			return s.Clone(), nil
		}
	}
	for _, c := range g.clients {
		if c.ID == attendeeID {
			s.Attendees = append(s.Attendees, session.Attendee{
				ID: c.ID, Firstname: c.Firstname, Lastname: c.Lastname,
				Attendance: session.AttendanceCheckedIn,
			})
		}
	}
	return s.Clone(), nil
}

// Checkout implements the gateway for testing.
func (g *mockGateway) Checkout(_ context.Context, sessionID, attendeeID string) (session.Session, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.note("checkout " + attendeeID)
	for i := range g.sessions {
		s := &g.sessions[i]
		if s.ID != sessionID {
			continue
		}
		for j := range s.Attendees {
			if s.Attendees[j].ID == attendeeID {
				s.Attendees[j].Attendance = session.AttendanceRegistered
			}
		}
		return s.Clone(), nil
	}
	return session.Session{}, &api.Error{Kind: api.KindUnstructured, Status: http.StatusNotFound, Message: "Session not found"}
}

// Cancel implements the gateway for testing.
func (g *mockGateway) Cancel(_ context.Context, classroomID string, start time.Time, attendeeID string) (session.Session, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.note("cancel " + attendeeID)
	s := g.find(classroomID, start)
	if s == nil {
		return session.Session{}, &api.Error{Kind: api.KindUnstructured, Status: http.StatusNotFound, Message: "Session not found"}
	}
	kept := s.Attendees[:0]
	for _, a := range s.Attendees {
		if a.ID != attendeeID {
			kept = append(kept, a)
		}
	}
	s.Attendees = kept
	return s.Clone(), nil
}

// CreateClassroom implements the gateway for testing.
func (g *mockGateway) CreateClassroom(_ context.Context, in classroom.Classroom) (classroom.Classroom, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.note("createClassroom " + in.Name)
	in.ID = "c-2"
	return in, nil
}

// memPersistence is the key/value store of every login session, by scope.
type memPersistence struct {
	mu     sync.Mutex
	values map[string]string
}

type memScope struct {
	m     *memPersistence
	scope string
}

func (s memScope) Get(_ context.Context, key string) (string, bool, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	v, ok := s.m.values[s.scope+"/"+key]
	return v, ok, nil
}

func (s memScope) Set(_ context.Context, key, value string) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	s.m.values[s.scope+"/"+key] = value
	return nil
}

func (s memScope) Delete(_ context.Context, key string) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	delete(s.m.values, s.scope+"/"+key)
	return nil
}

// testEnv is a running server with a cookie-keeping client.
type testEnv struct {
	t         *testing.T
	gateway   *mockGateway
	notifier  *email.NoopSender
	collector *perf.Collector
	server    *httptest.Server
	client    *http.Client
	mem       *memPersistence
	csrf      string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		t:         t,
		gateway:   newMockGateway(),
		notifier:  email.NewNoopSender(),
		collector: perf.NewCollector(100),
	}
	mem := &memPersistence{values: map[string]string{}}
	env.mem = mem
	srv, err := NewServer(Deps{
		Gateway:            env.gateway,
		Persistence:        func(id string) store.Persistence { return memScope{m: mem, scope: id} },
		Notifier:           env.notifier,
		AlertTo:            []string{"staff@studio.test"},
		LowCreditThreshold: 1,
		Collector:          env.collector,
		Location:           time.UTC,
		CSRFKey:            []byte(strings.Repeat("c", 32)),
		SessionKey:         []byte(strings.Repeat("s", 32)),
		RateLimitPerSecond: 10000,
	})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	env.server = httptest.NewServer(srv.Handler())
	t.Cleanup(env.server.Close)

	jar, _ := cookiejar.New(nil)
	env.client = &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	return env
}

var csrfFieldRe = regexp.MustCompile(`name="gorilla.csrf.Token" value="([^"]+)"`)

// get fetches path and remembers the CSRF token of the page.
func (e *testEnv) get(path string) (int, string, http.Header) {
	e.t.Helper()
	resp, err := e.client.Get(e.server.URL + path)
	if err != nil {
		e.t.Fatalf("GET %s: %v", path, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		e.t.Fatalf("read %s: %v", path, err)
	}
	body := string(raw)
	if m := csrfFieldRe.FindStringSubmatch(body); m != nil {
		e.csrf = m[1]
	}
	return resp.StatusCode, body, resp.Header
}

// post submits a form with the last seen CSRF token.
func (e *testEnv) post(path string, form url.Values) (int, string, http.Header) {
	e.t.Helper()
	if form == nil {
		form = url.Values{}
	}
	if e.csrf != "" {
		form.Set("gorilla.csrf.Token", e.csrf)
	}
	resp, err := e.client.PostForm(e.server.URL+path, form)
	if err != nil {
		e.t.Fatalf("POST %s: %v", path, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		e.t.Fatalf("read %s: %v", path, err)
	}
	return resp.StatusCode, string(raw), resp.Header
}

// cookie returns the value of the named cookie held by the client.
func (e *testEnv) cookie(name string) string {
	u, _ := url.Parse(e.server.URL)
	for _, c := range e.client.Jar.Cookies(u) {
		if c.Name == name {
			return c.Value
		}
	}
	return ""
}

// login signs in as staff and loads the calendar.
func (e *testEnv) login() {
	e.t.Helper()
	e.get("/login")
	status, _, header := e.post("/login", url.Values{"username": {"staff"}, "password": {"secret"}})
	if status != http.StatusSeeOther || header.Get("Location") != "/calendar" {
		e.t.Fatalf("login: status %d, location %q", status, header.Get("Location"))
	}
	e.get("/calendar")
}
