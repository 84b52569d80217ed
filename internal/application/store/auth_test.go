package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"crmpilates/internal/adapters/api"
	"crmpilates/internal/domain/token"
)

func jwtExpiring(t *testing.T, exp time.Time) string {
	t.Helper()
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "staff", "exp": exp.Unix()}).
		SignedString([]byte("backend-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return raw
}

// TestLogin_PersistsToken stores the token in state and persistence.
func TestLogin_PersistsToken(t *testing.T) {
	now := time.Date(2022, 9, 9, 10, 0, 0, 0, time.UTC)
	tok := token.Token{Token: jwtExpiring(t, now.Add(time.Hour)), Type: "bearer"}
	g := &fakeGateway{loginToken: tok}
	p := newMemPersistence()
	st := newTestStore(g, p, now)

	if err := st.Login(context.Background(), LoginInput{Username: "staff", Password: "secret"}); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if got := st.CurrentToken(context.Background()); got != tok {
		t.Errorf("CurrentToken() = %+v", got)
	}
	raw, ok, _ := p.Get(context.Background(), TokenKey)
	var stored token.Token
	if !ok || json.Unmarshal([]byte(raw), &stored) != nil || stored != tok {
		t.Errorf("persisted %q", raw)
	}
}

// TestLogin_FailureClearsPersisted drops a stale entry on a failed login.
func TestLogin_FailureClearsPersisted(t *testing.T) {
	g := &fakeGateway{loginErr: &api.Error{Kind: api.KindUnstructured, Status: 401, Message: "Incorrect username or password"}}
	p := newMemPersistence()
	p.Set(context.Background(), TokenKey, `{"token":"old","type":"bearer"}`)
	st := newTestStore(g, p, time.Now())

	aerr := st.Login(context.Background(), LoginInput{Username: "staff", Password: "wrong"})
	if aerr == nil {
		t.Fatal("expected error")
	}
	if aerr.Messages[0].Message != "Incorrect username or password" {
		t.Errorf("Messages = %+v", aerr.Messages)
	}
	if _, ok, _ := p.Get(context.Background(), TokenKey); ok {
		t.Error("persisted token not cleared")
	}
	if st.State().Auth.Status != AuthFailed {
		t.Errorf("Status = %s", st.State().Auth.Status)
	}
}

// TestCurrentToken_ExpiredIsEmpty ignores the raw value of an expired token.
func TestCurrentToken_ExpiredIsEmpty(t *testing.T) {
	now := time.Date(2022, 9, 9, 10, 0, 0, 0, time.UTC)
	expired := token.Token{Token: jwtExpiring(t, now.Add(-time.Second)), Type: "bearer"}

	tests := []struct {
		name  string
		setup func(*Store, *memPersistence)
	}{
		{name: "in state", setup: func(s *Store, _ *memPersistence) { s.Dispatch(LoginFulfilled{Token: expired}) }},
		{name: "persisted", setup: func(_ *Store, p *memPersistence) {
			b, _ := json.Marshal(expired)
			p.Set(context.Background(), TokenKey, string(b))
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newMemPersistence()
			st := newTestStore(&fakeGateway{}, p, now)
			tt.setup(st, p)

			if got := st.CurrentToken(context.Background()); got != token.Empty() {
				t.Errorf("CurrentToken() = %+v, want empty", got)
			}
			if _, ok, _ := p.Get(context.Background(), TokenKey); ok {
				t.Error("expired token still persisted")
			}
		})
	}
}

// TestCurrentToken_RestoresFromPersistence rehydrates a fresh store.
func TestCurrentToken_RestoresFromPersistence(t *testing.T) {
	now := time.Date(2022, 9, 9, 10, 0, 0, 0, time.UTC)
	valid := token.Token{Token: jwtExpiring(t, now.Add(time.Hour)), Type: "bearer"}
	p := newMemPersistence()
	b, _ := json.Marshal(valid)
	p.Set(context.Background(), TokenKey, string(b))
	g := &fakeGateway{}
	st := newTestStore(g, p, now)

	if got := st.CurrentToken(context.Background()); got != valid {
		t.Fatalf("CurrentToken() = %+v", got)
	}
	if st.State().Auth.Token != valid {
		t.Error("token not restored into state")
	}

	st.FetchClients(context.Background())
	if g.seenTokens[0] != valid.Token {
		t.Errorf("gateway saw token %q", g.seenTokens[0])
	}
}

// TestLogout clears state and persistence.
func TestLogout(t *testing.T) {
	now := time.Now()
	g := &fakeGateway{loginToken: token.Token{Token: jwtExpiring(t, now.Add(time.Hour)), Type: "bearer"}}
	p := newMemPersistence()
	st := newTestStore(g, p, now)
	st.Login(context.Background(), LoginInput{Username: "staff", Password: "secret"})

	st.Logout(context.Background())

	if !st.CurrentToken(context.Background()).IsEmpty() {
		t.Error("token survived logout")
	}
}
