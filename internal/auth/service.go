package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

const defaultStoreTimeout = 3 * time.Second

// TokenPair is the credential set handed to a client after login or refresh.
type TokenPair struct {
	Principal        Principal
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// RegisterInput carries the fields of a new account.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

// Service authenticates requests against the session store and runs the
// account flows that create, rotate and revoke sessions.
type Service struct {
	users        UserStore
	sessions     SessionStore
	tokens       *TokenService
	storeTimeout time.Duration
	logger       *zap.Logger
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service)

// WithStoreTimeout bounds every user and session store call.
func WithStoreTimeout(d time.Duration) ServiceOption {
	return func(s *Service) {
		if d > 0 {
			s.storeTimeout = d
		}
	}
}

// WithLogger sets the logger used for store failures.
func WithLogger(l *zap.Logger) ServiceOption {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewService wires the account service.
func NewService(users UserStore, sessions SessionStore, tokens *TokenService, opts ...ServiceOption) (*Service, error) {
	if users == nil || sessions == nil || tokens == nil {
		return nil, errors.New("auth: users, sessions and tokens are required")
	}
	s := &Service{
		users:        users,
		sessions:     sessions,
		tokens:       tokens,
		storeTimeout: defaultStoreTimeout,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Tokens exposes the token service for transports that set cookie lifetimes.
func (s *Service) Tokens() *TokenService { return s.tokens }

// Authenticate resolves an access token to the live principal. A token that
// verifies but has no session is rejected, which makes logout immediate.
func (s *Service) Authenticate(ctx context.Context, token string) (Principal, error) {
	if strings.TrimSpace(token) == "" {
		return Principal{}, unauthenticated(ReasonMissingCredential, nil)
	}
	verified, err := s.tokens.Verify(token, AccessToken)
	if err != nil {
		return Principal{}, unauthenticated(ReasonInvalidCredential, err)
	}
	return s.liveSession(ctx, verified.PrincipalID)
}

func (s *Service) liveSession(ctx context.Context, principalID string) (Principal, error) {
	sctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()
	p, err := s.sessions.Get(sctx, principalID)
	switch {
	case err == nil:
		return p, nil
	case errors.Is(err, ErrSessionNotFound):
		return Principal{}, unauthenticated(ReasonSessionNotFound, err)
	default:
		s.logger.Error("session lookup failed", zap.String("principal_id", principalID), zap.Error(err))
		return Principal{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
}

// Register creates an account with the default role.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*User, error) {
	name := strings.TrimSpace(in.Name)
	email := NormalizeEmail(in.Email)
	if name == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: name and a valid email are required", ErrInvalidInput)
	}
	hash, err := HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	u := &User{Name: name, Email: email, PasswordHash: hash, Role: RoleUser}

	sctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()
	if err := s.users.Create(sctx, u); err != nil {
		if errors.Is(err, ErrAlreadyExists) || errors.Is(err, ErrInvalidInput) {
			return nil, err
		}
		return nil, s.storeFailure("create user", err)
	}
	return u, nil
}

// EnsureAdmin creates an admin account unless one with email already exists.
// An existing account with another role is reported as ErrAlreadyExists and
// left untouched. It reports whether the account was created.
func (s *Service) EnsureAdmin(ctx context.Context, in RegisterInput) (*User, bool, error) {
	name := strings.TrimSpace(in.Name)
	email := NormalizeEmail(in.Email)
	if name == "" || !strings.Contains(email, "@") {
		return nil, false, fmt.Errorf("%w: admin name and a valid email are required", ErrInvalidInput)
	}
	sctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	existing, err := s.users.FindByEmail(sctx, email)
	switch {
	case err == nil:
		if existing.Role != RoleAdmin {
			return nil, false, fmt.Errorf("%w: %s exists with role %q", ErrAlreadyExists, email, existing.Role)
		}
		return existing, false, nil
	case !errors.Is(err, ErrNotFound):
		return nil, false, s.storeFailure("find admin", err)
	}

	hash, err := HashPassword(in.Password)
	if err != nil {
		return nil, false, err
	}
	u := &User{Name: name, Email: email, PasswordHash: hash, Role: RoleAdmin}
	if err := s.users.Create(sctx, u); err != nil {
		if errors.Is(err, ErrAlreadyExists) {
			return nil, false, err
		}
		return nil, false, s.storeFailure("create admin", err)
	}
	s.logger.Info("admin account created", zap.String("user_id", u.ID), zap.String("email", email))
	return u, true, nil
}

// Login checks the password, stores a fresh session and issues both tokens.
func (s *Service) Login(ctx context.Context, email, password string) (TokenPair, error) {
	sctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()
	u, err := s.users.FindByEmail(sctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return TokenPair{}, ErrInvalidCredentials
		}
		return TokenPair{}, s.storeFailure("find user", err)
	}
	if err := VerifyPassword(u.PasswordHash, password); err != nil {
		return TokenPair{}, ErrInvalidCredentials
	}
	return s.openSession(ctx, u.Principal())
}

// Refresh rotates both tokens for a holder of a valid refresh token whose
// session is still live. The session snapshot is rebuilt from the user record.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return TokenPair{}, unauthenticated(ReasonMissingCredential, nil)
	}
	verified, err := s.tokens.Verify(refreshToken, RefreshToken)
	if err != nil {
		return TokenPair{}, unauthenticated(ReasonInvalidCredential, err)
	}
	if _, err := s.liveSession(ctx, verified.PrincipalID); err != nil {
		return TokenPair{}, err
	}

	sctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()
	u, err := s.users.Find(sctx, verified.PrincipalID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return TokenPair{}, unauthenticated(ReasonSessionNotFound, err)
		}
		return TokenPair{}, s.storeFailure("find user", err)
	}
	return s.openSession(ctx, u.Principal())
}

// Logout deletes the session so outstanding tokens stop authenticating.
func (s *Service) Logout(ctx context.Context, principalID string) error {
	sctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()
	if err := s.sessions.Delete(sctx, principalID); err != nil {
		return s.storeFailure("delete session", err)
	}
	return nil
}

// Enroll adds courseID to the user's enrollments and refreshes a live session
// so the change is visible on the user's next request.
func (s *Service) Enroll(ctx context.Context, userID, courseID string) (Principal, error) {
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(courseID) == "" {
		return Principal{}, ErrInvalidInput
	}
	sctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()
	u, err := s.users.AddCourse(sctx, userID, courseID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Principal{}, err
		}
		return Principal{}, s.storeFailure("add course", err)
	}
	p := u.Principal()

	if _, err := s.sessions.Get(sctx, userID); err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return p, nil
		}
		return Principal{}, s.storeFailure("get session", err)
	}
	if err := s.sessions.Put(sctx, p); err != nil {
		return Principal{}, s.storeFailure("put session", err)
	}
	return p, nil
}

func (s *Service) openSession(ctx context.Context, p Principal) (TokenPair, error) {
	sctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()
	if err := s.sessions.Put(sctx, p); err != nil {
		return TokenPair{}, s.storeFailure("put session", err)
	}
	access, accessExp, err := s.tokens.IssueAccessToken(p.ID)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, refreshExp, err := s.tokens.IssueRefreshToken(p.ID)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		Principal:        p,
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refresh,
		RefreshExpiresAt: refreshExp,
	}, nil
}

func (s *Service) storeFailure(op string, err error) error {
	s.logger.Error("auth store failure", zap.String("op", op), zap.Error(err))
	return fmt.Errorf("%w: %s: %v", ErrStoreUnavailable, op, err)
}
