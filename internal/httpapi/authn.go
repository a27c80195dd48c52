package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"coursehub.org/internal/auth"
	"coursehub.org/internal/obs"
)

const (
	authHeader         = "Authorization"
	bearer             = "Bearer "
	accessTokenCookie  = "access_token"
	refreshTokenCookie = "refresh_token"
)

// authenticate resolves the access token to a live principal and stores it in
// the request context. Requests without a live session stop here with a 401.
func (a *API) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := accessToken(r)
		principal, err := a.auth.Authenticate(r.Context(), token)
		if err != nil {
			var ue *auth.UnauthenticatedError
			if errors.As(err, &ue) {
				obs.Logger().Debug("request not authenticated",
					zap.String("request_id", RequestIDFromContext(r.Context())),
					zap.String("reason", ue.Reason),
				)
				writeError(w, r, http.StatusUnauthorized, "please login to access this resource")
				return
			}
			a.internalError(w, r, err)
			return
		}
		ctx := auth.ContextWithPrincipal(r.Context(), principal)
		ctx = auth.ContextWithToken(ctx, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireRoles admits only principals whose role is in roles. It must run
// after authenticate.
func (a *API) requireRoles(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := auth.PrincipalFromContext(r.Context())
			if !ok {
				writeError(w, r, http.StatusUnauthorized, "please login to access this resource")
				return
			}
			if err := auth.Require(principal, roles...); err != nil {
				obs.Logger().Info("access denied",
					zap.String("request_id", RequestIDFromContext(r.Context())),
					zap.String("user_id", principal.ID),
					zap.String("role", principal.Role),
					zap.Strings("allowed", roles),
					zap.String("path", r.URL.Path),
				)
				writeError(w, r, http.StatusForbidden, "forbidden")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func accessToken(r *http.Request) string {
	if c, err := r.Cookie(accessTokenCookie); err == nil && strings.TrimSpace(c.Value) != "" {
		return c.Value
	}
	token, err := extractBearerToken(r.Header.Get(authHeader))
	if err != nil {
		return ""
	}
	return token
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.New("missing bearer token")
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
		return "", errors.New("invalid authorization scheme")
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}

func (a *API) setTokenCookies(w http.ResponseWriter, pair auth.TokenPair) {
	now := time.Now()
	http.SetCookie(w, a.cookie(accessTokenCookie, pair.AccessToken, pair.AccessExpiresAt.Sub(now)))
	http.SetCookie(w, a.cookie(refreshTokenCookie, pair.RefreshToken, pair.RefreshExpiresAt.Sub(now)))
}

func (a *API) clearTokenCookies(w http.ResponseWriter) {
	http.SetCookie(w, a.cookie(accessTokenCookie, "", -1))
	http.SetCookie(w, a.cookie(refreshTokenCookie, "", -1))
}

func (a *API) cookie(name, value string, maxAge time.Duration) *http.Cookie {
	age := int(maxAge.Seconds())
	if maxAge < 0 {
		age = -1
	}
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   age,
		HttpOnly: true,
		Secure:   a.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
}
