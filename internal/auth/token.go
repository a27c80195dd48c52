package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	defaultIssuer     = "coursehub"
	defaultAccessTTL  = 5 * time.Minute
	defaultRefreshTTL = 72 * time.Hour
)

// TokenKind distinguishes access tokens from refresh tokens.
type TokenKind string

const (
	AccessToken  TokenKind = "access"
	RefreshToken TokenKind = "refresh"
)

type tokenClaims struct {
	Kind TokenKind `json:"kind"`
	jwt.RegisteredClaims
}

// Verified holds the claims of a token that passed signature and expiry checks.
type Verified struct {
	PrincipalID string
	Kind        TokenKind
	IssuedAt    time.Time
	ExpiresAt   time.Time
}

// TokenService signs and verifies HS256 tokens. Access and refresh tokens use
// separate secrets so one kind can never be replayed as the other.
type TokenService struct {
	accessSecret  []byte
	refreshSecret []byte
	issuer        string
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

// TokenOption configures a TokenService.
type TokenOption func(*TokenService)

// WithIssuer overrides the token issuer claim.
func WithIssuer(issuer string) TokenOption {
	return func(s *TokenService) {
		if issuer = strings.TrimSpace(issuer); issuer != "" {
			s.issuer = issuer
		}
	}
}

// WithAccessTTL configures access token lifetime.
func WithAccessTTL(ttl time.Duration) TokenOption {
	return func(s *TokenService) {
		if ttl > 0 {
			s.accessTTL = ttl
		}
	}
}

// WithRefreshTTL configures refresh token lifetime.
func WithRefreshTTL(ttl time.Duration) TokenOption {
	return func(s *TokenService) {
		if ttl > 0 {
			s.refreshTTL = ttl
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) TokenOption {
	return func(s *TokenService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewTokenService builds a token service from the two signing secrets.
func NewTokenService(accessSecret, refreshSecret string, opts ...TokenOption) (*TokenService, error) {
	if strings.TrimSpace(accessSecret) == "" || strings.TrimSpace(refreshSecret) == "" {
		return nil, errors.New("auth: access and refresh secrets are required")
	}
	s := &TokenService{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		issuer:        defaultIssuer,
		accessTTL:     defaultAccessTTL,
		refreshTTL:    defaultRefreshTTL,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// AccessTTL reports the configured access token lifetime.
func (s *TokenService) AccessTTL() time.Duration { return s.accessTTL }

// RefreshTTL reports the configured refresh token lifetime.
func (s *TokenService) RefreshTTL() time.Duration { return s.refreshTTL }

// IssueAccessToken signs a short-lived access token for principalID.
func (s *TokenService) IssueAccessToken(principalID string) (string, time.Time, error) {
	return s.issue(AccessToken, principalID)
}

// IssueRefreshToken signs a long-lived refresh token for principalID.
func (s *TokenService) IssueRefreshToken(principalID string) (string, time.Time, error) {
	return s.issue(RefreshToken, principalID)
}

func (s *TokenService) issue(kind TokenKind, principalID string) (string, time.Time, error) {
	principalID = strings.TrimSpace(principalID)
	if principalID == "" {
		return "", time.Time{}, fmt.Errorf("%w: principal id is required", ErrInvalidInput)
	}
	secret, ttl, err := s.params(kind)
	if err != nil {
		return "", time.Time{}, err
	}
	now := s.now().UTC().Truncate(time.Second)
	expiresAt := now.Add(ttl)
	claims := tokenClaims{
		Kind: kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   principalID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Verify checks signature, issuer, expiry and kind. The returned error is one
// of ErrTokenMalformed, ErrTokenExpired or ErrTokenInvalid.
func (s *TokenService) Verify(token string, kind TokenKind) (Verified, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Verified{}, ErrTokenMalformed
	}
	secret, _, err := s.params(kind)
	if err != nil {
		return Verified{}, ErrTokenInvalid
	}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(s.now),
	)
	var claims tokenClaims
	if _, err := parser.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return secret, nil
	}); err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenMalformed):
			return Verified{}, ErrTokenMalformed
		case errors.Is(err, jwt.ErrTokenExpired):
			return Verified{}, ErrTokenExpired
		default:
			return Verified{}, ErrTokenInvalid
		}
	}
	if claims.Kind != kind || strings.TrimSpace(claims.Subject) == "" || claims.IssuedAt == nil {
		return Verified{}, ErrTokenInvalid
	}
	return Verified{
		PrincipalID: claims.Subject,
		Kind:        claims.Kind,
		IssuedAt:    claims.IssuedAt.Time,
		ExpiresAt:   claims.ExpiresAt.Time,
	}, nil
}

func (s *TokenService) params(kind TokenKind) ([]byte, time.Duration, error) {
	switch kind {
	case AccessToken:
		return s.accessSecret, s.accessTTL, nil
	case RefreshToken:
		return s.refreshSecret, s.refreshTTL, nil
	default:
		return nil, 0, fmt.Errorf("auth: unknown token kind %q", kind)
	}
}
