// Package httpapi exposes the course platform over HTTP (chi) and reports
// service health over gRPC.
package httpapi

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"coursehub.org/internal/auth"
	"coursehub.org/internal/course"
	"coursehub.org/internal/kv"
	"coursehub.org/internal/obs"
)

const (
	defaultRateBurst     = 20
	defaultRatePerSecond = 10
	defaultMaxBody       = 4 << 20
	readyTimeout         = 2 * time.Second
)

// ReadyProbe checks the backing stores. Nil members are skipped.
type ReadyProbe struct {
	DB *sql.DB
	KV kv.Store
}

// Check pings every configured store.
func (p ReadyProbe) Check(ctx context.Context) error {
	if p.DB != nil {
		if err := p.DB.PingContext(ctx); err != nil {
			return errors.New("postgres: " + err.Error())
		}
	}
	if p.KV != nil {
		if err := p.KV.Ping(ctx); err != nil {
			return errors.New("kv: " + err.Error())
		}
	}
	return nil
}

type readinessChecker interface {
	Check(ctx context.Context) error
}

// Deps carries everything the HTTP layer needs.
type Deps struct {
	Auth              *auth.Service
	Engine            *course.Engine
	Catalog           *course.Catalog
	Ready             readinessChecker
	Version           string
	Origins           []string
	AllowLocalOrigins bool
	CookieSecure      bool
	RateBurst         int
	RatePerSecond     int
}

// API is the HTTP surface.
type API struct {
	auth         *auth.Service
	engine       *course.Engine
	catalog      *course.Catalog
	ready        readinessChecker
	version      string
	cookieSecure bool
	router       chi.Router
}

// New builds the API and its router.
func New(d Deps) *API {
	a := &API{
		auth:         d.Auth,
		engine:       d.Engine,
		catalog:      d.Catalog,
		ready:        d.Ready,
		version:      d.Version,
		cookieSecure: d.CookieSecure,
	}
	if a.ready == nil {
		a.ready = ReadyProbe{}
	}
	burst, perSecond := d.RateBurst, d.RatePerSecond
	if burst <= 0 {
		burst = defaultRateBurst
	}
	if perSecond <= 0 {
		perSecond = defaultRatePerSecond
	}

	r := chi.NewRouter()
	r.Use(RequestID, Recover, obs.Instrument, LoggingJSON, SecurityHeaders, CORS(d.Origins, d.AllowLocalOrigins))
	r.Use(func(next http.Handler) http.Handler { return RateLimit(next, burst, perSecond) })
	r.Use(func(next http.Handler) http.Handler { return MaxBodyBytes(next, defaultMaxBody) })
	r.NotFound(notFound)
	r.MethodNotAllowed(methodNotAllowed)

	r.Get("/healthz", a.handleHealthz)
	r.Get("/readyz", a.handleReadyz)
	r.Method(http.MethodGet, "/metrics", obs.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", a.handleRegister)
			r.Post("/login", a.handleLogin)
			r.Post("/refresh", a.handleRefresh)
			r.Group(func(r chi.Router) {
				r.Use(a.authenticate)
				r.Post("/logout", a.handleLogout)
				r.Get("/me", a.handleMe)
			})
		})

		r.With(a.authenticate, a.requireRoles(auth.RoleAdmin)).
			Post("/admin/users/{userID}/courses", a.handleEnroll)

		r.Route("/courses", func(r chi.Router) {
			r.Get("/", a.handleListCourses)
			r.With(a.authenticate, a.requireRoles(auth.RoleAdmin)).Post("/", a.handleCreateCourse)

			r.Route("/{courseID}", func(r chi.Router) {
				r.Use(validCourseID)
				r.Get("/", a.handleGetCourse)
				r.Group(func(r chi.Router) {
					r.Use(a.authenticate)
					r.Get("/content", a.handleContent)
					r.Post("/content/{contentID}/questions", a.handlePostQuestion)
					r.Post("/content/{contentID}/questions/{questionID}/answers", a.handlePostAnswer)
					r.Post("/reviews", a.handlePostReview)

					r.Group(func(r chi.Router) {
						r.Use(a.requireRoles(auth.RoleAdmin))
						r.Put("/", a.handleUpdateCourse)
						r.Post("/reviews/{reviewID}/replies", a.handleReplyToReview)
					})
				})
			})
		})
	})

	a.router = r
	return a
}

// Handler returns the root handler.
func (a *API) Handler() http.Handler { return a.router }

func (a *API) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": a.version,
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()
	if err := a.ready.Check(ctx); err != nil {
		obs.SetReady(false)
		obs.Logger().Warn("readiness check failed",
			zap.String("request_id", RequestIDFromContext(r.Context())),
			zap.Error(err),
		)
		writeError(w, r, http.StatusServiceUnavailable, "not ready")
		return
	}
	obs.SetReady(true)
	writeSuccess(w, http.StatusOK, map[string]any{"status": "ready"})
}

// respondError maps service errors onto HTTP statuses and envelope messages.
func (a *API) respondError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		entity *course.EntityNotFoundError
		unauth *auth.UnauthenticatedError
		deny   *auth.DenyError
	)
	switch {
	case errors.Is(err, course.ErrAggregateNotFound):
		writeError(w, r, http.StatusNotFound, "course not found")
	case errors.As(err, &entity):
		writeError(w, r, http.StatusBadRequest, entity.Error())
	case errors.Is(err, course.ErrNotEnrolled):
		writeError(w, r, http.StatusBadRequest, "you are not eligible to access this course")
	case errors.Is(err, course.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, detail(err, course.ErrInvalidInput, "invalid input"))
	case errors.Is(err, auth.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, detail(err, auth.ErrInvalidInput, "invalid input"))
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeError(w, r, http.StatusBadRequest, "invalid email or password")
	case errors.Is(err, auth.ErrAlreadyExists):
		writeError(w, r, http.StatusBadRequest, "email already exists")
	case errors.Is(err, auth.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "user not found")
	case errors.As(err, &unauth):
		writeError(w, r, http.StatusUnauthorized, "please login to access this resource")
	case errors.As(err, &deny):
		obs.Logger().Info("access denied",
			zap.String("request_id", RequestIDFromContext(r.Context())),
			zap.String("role", deny.Role),
		)
		writeError(w, r, http.StatusForbidden, "forbidden")
	case errors.Is(err, course.ErrNotificationFailed):
		obs.Logger().Error("notification failed",
			zap.String("request_id", RequestIDFromContext(r.Context())),
			zap.Error(err),
		)
		writeError(w, r, http.StatusInternalServerError, "reply saved but the notification could not be delivered")
	default:
		a.internalError(w, r, err)
	}
}

func (a *API) internalError(w http.ResponseWriter, r *http.Request, err error) {
	obs.Logger().Error("request failed",
		zap.String("request_id", RequestIDFromContext(r.Context())),
		zap.String("path", r.URL.Path),
		zap.Error(err),
	)
	writeError(w, r, http.StatusInternalServerError, "internal error")
}

func (a *API) principal(w http.ResponseWriter, r *http.Request) (auth.Principal, bool) {
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "please login to access this resource")
	}
	return p, ok
}
