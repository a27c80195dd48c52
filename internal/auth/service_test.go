package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeSessions struct {
	mu      sync.Mutex
	data    map[string]Principal
	failGet error
	gets    int
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{data: make(map[string]Principal)}
}

func (f *fakeSessions) Get(_ context.Context, id string) (Principal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets++
	if f.failGet != nil {
		return Principal{}, f.failGet
	}
	p, ok := f.data[id]
	if !ok {
		return Principal{}, ErrSessionNotFound
	}
	return p.Clone(), nil
}

func (f *fakeSessions) Put(_ context.Context, p Principal) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[p.ID] = p.Clone()
	return nil
}

func (f *fakeSessions) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.data, id)
	return nil
}

type serviceFixture struct {
	svc      *Service
	users    *MemoryUserStore
	sessions *fakeSessions
	now      *time.Time
}

func newServiceFixture(t *testing.T) serviceFixture {
	t.Helper()
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	tokens := newTestTokens(t, &now)
	users := NewMemoryUserStore()
	sessions := newFakeSessions()
	svc, err := NewService(users, sessions, tokens, WithStoreTimeout(time.Second))
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return serviceFixture{svc: svc, users: users, sessions: sessions, now: &now}
}

func (f serviceFixture) register(t *testing.T, email string) *User {
	t.Helper()
	u, err := f.svc.Register(context.Background(), RegisterInput{Name: "Ada", Email: email, Password: "secret-pass"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	return u
}

func TestLoginAndAuthenticate(t *testing.T) {
	f := newServiceFixture(t)
	u := f.register(t, "Ada@Example.com")
	if u.Role != RoleUser {
		t.Fatalf("expected default role, got %q", u.Role)
	}

	pair, err := f.svc.Login(context.Background(), "ada@example.com", "secret-pass")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	p, err := f.svc.Authenticate(context.Background(), pair.AccessToken)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if p.ID != u.ID || p.Email != "ada@example.com" {
		t.Fatalf("unexpected principal: %+v", p)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	f := newServiceFixture(t)
	f.register(t, "ada@example.com")

	if _, err := f.svc.Login(context.Background(), "ada@example.com", "wrong-pass"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
	if _, err := f.svc.Login(context.Background(), "nobody@example.com", "secret-pass"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials for unknown email, got %v", err)
	}
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	f := newServiceFixture(t)
	f.register(t, "ada@example.com")
	_, err := f.svc.Register(context.Background(), RegisterInput{Name: "Other", Email: "ADA@example.com", Password: "secret-pass"})
	if !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("expected already exists, got %v", err)
	}
	_, err = f.svc.Register(context.Background(), RegisterInput{Name: "Short", Email: "s@example.com", Password: "abc"})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected invalid input for short password, got %v", err)
	}
}

func TestAuthenticateFailures(t *testing.T) {
	f := newServiceFixture(t)
	u := f.register(t, "ada@example.com")
	pair, err := f.svc.Login(context.Background(), "ada@example.com", "secret-pass")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	cases := []struct {
		name   string
		token  string
		reason string
		cause  error
	}{
		{name: "missing", token: "", reason: ReasonMissingCredential},
		{name: "malformed", token: "junk", reason: ReasonInvalidCredential, cause: ErrTokenMalformed},
		{name: "refresh token", token: pair.RefreshToken, reason: ReasonInvalidCredential, cause: ErrTokenInvalid},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Authenticate(context.Background(), tc.token)
			if !errors.Is(err, ErrUnauthenticated) {
				t.Fatalf("expected unauthenticated, got %v", err)
			}
			var ue *UnauthenticatedError
			if !errors.As(err, &ue) || ue.Reason != tc.reason {
				t.Fatalf("unexpected reason: %v", err)
			}
			if tc.cause != nil && !errors.Is(err, tc.cause) {
				t.Fatalf("expected cause %v, got %v", tc.cause, err)
			}
		})
	}

	if err := f.svc.Logout(context.Background(), u.ID); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	_, err = f.svc.Authenticate(context.Background(), pair.AccessToken)
	if !errors.Is(err, ErrUnauthenticated) || !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("revoked session must not authenticate, got %v", err)
	}
}

func TestAuthenticateExpiredTokenSkipsSessionStore(t *testing.T) {
	f := newServiceFixture(t)
	f.register(t, "ada@example.com")
	pair, err := f.svc.Login(context.Background(), "ada@example.com", "secret-pass")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	before := f.sessions.gets
	*f.now = f.now.Add(10 * time.Minute)

	_, err = f.svc.Authenticate(context.Background(), pair.AccessToken)
	if !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected expired token, got %v", err)
	}
	if f.sessions.gets != before {
		t.Fatal("session store consulted for an expired token")
	}
}

func TestAuthenticateStoreFailureIsNotUnauthenticated(t *testing.T) {
	f := newServiceFixture(t)
	f.register(t, "ada@example.com")
	pair, err := f.svc.Login(context.Background(), "ada@example.com", "secret-pass")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	f.sessions.failGet = errors.New("connection refused")

	_, err = f.svc.Authenticate(context.Background(), pair.AccessToken)
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected store unavailable, got %v", err)
	}
	if errors.Is(err, ErrUnauthenticated) {
		t.Fatal("store failure must not look like a rejected credential")
	}
}

func TestRefreshRotatesTokens(t *testing.T) {
	f := newServiceFixture(t)
	u := f.register(t, "ada@example.com")
	pair, err := f.svc.Login(context.Background(), "ada@example.com", "secret-pass")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	*f.now = f.now.Add(10 * time.Minute)

	rotated, err := f.svc.Refresh(context.Background(), pair.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if rotated.AccessToken == pair.AccessToken {
		t.Fatal("expected a new access token")
	}
	if _, err := f.svc.Authenticate(context.Background(), rotated.AccessToken); err != nil {
		t.Fatalf("Authenticate rotated token: %v", err)
	}

	if err := f.svc.Logout(context.Background(), u.ID); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if _, err := f.svc.Refresh(context.Background(), rotated.RefreshToken); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("refresh after logout must fail, got %v", err)
	}
	if _, err := f.svc.Refresh(context.Background(), rotated.AccessToken); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("access token must not refresh, got %v", err)
	}
}

func TestEnrollUpdatesLiveSession(t *testing.T) {
	f := newServiceFixture(t)
	u := f.register(t, "ada@example.com")
	pair, err := f.svc.Login(context.Background(), "ada@example.com", "secret-pass")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	p, err := f.svc.Enroll(context.Background(), u.ID, "course-1")
	if err != nil {
		t.Fatalf("Enroll: %v", err)
	}
	if !p.IsEnrolled("course-1") {
		t.Fatalf("expected enrollment, got %+v", p)
	}
	live, err := f.svc.Authenticate(context.Background(), pair.AccessToken)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if !live.IsEnrolled("course-1") {
		t.Fatalf("session not refreshed: %+v", live)
	}

	if _, err := f.svc.Enroll(context.Background(), "missing", "course-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestEnrollWithoutSessionDoesNotCreateOne(t *testing.T) {
	f := newServiceFixture(t)
	u := f.register(t, "ada@example.com")

	if _, err := f.svc.Enroll(context.Background(), u.ID, "course-1"); err != nil {
		t.Fatalf("Enroll: %v", err)
	}
	if _, err := f.sessions.Get(context.Background(), u.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("enroll must not open a session, got %v", err)
	}
}

func TestEnsureAdminCreatesOnce(t *testing.T) {
	f := newServiceFixture(t)
	in := RegisterInput{Name: "Root", Email: "Root@Example.com", Password: "admin-pass"}

	u, created, err := f.svc.EnsureAdmin(context.Background(), in)
	if err != nil || !created {
		t.Fatalf("EnsureAdmin: created=%v err=%v", created, err)
	}
	if u.Role != RoleAdmin || u.Email != "root@example.com" {
		t.Fatalf("unexpected admin: %+v", u)
	}

	again, created, err := f.svc.EnsureAdmin(context.Background(), in)
	if err != nil || created {
		t.Fatalf("second EnsureAdmin: created=%v err=%v", created, err)
	}
	if again.ID != u.ID {
		t.Fatalf("expected the existing admin, got %s", again.ID)
	}

	pair, err := f.svc.Login(context.Background(), "root@example.com", "admin-pass")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if !pair.Principal.HasRole(RoleAdmin) {
		t.Fatalf("expected admin principal, got %+v", pair.Principal)
	}
}

func TestEnsureAdminKeepsExistingUser(t *testing.T) {
	f := newServiceFixture(t)
	f.register(t, "ada@example.com")

	_, _, err := f.svc.EnsureAdmin(context.Background(), RegisterInput{Name: "Ada", Email: "ada@example.com", Password: "admin-pass"})
	if !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("expected already exists, got %v", err)
	}
	u, err := f.users.FindByEmail(context.Background(), "ada@example.com")
	if err != nil {
		t.Fatalf("FindByEmail: %v", err)
	}
	if u.Role != RoleUser {
		t.Fatalf("existing user must keep its role, got %q", u.Role)
	}
}
