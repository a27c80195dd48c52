package httpapi

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"coursehub.org/internal/audit"
	"coursehub.org/internal/auth"
	"coursehub.org/internal/ids"
)

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type enrollRequest struct {
	CourseID string `json:"course_id"`
}

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	u, err := a.auth.Register(r.Context(), auth.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "auth.register", map[string]string{"user_id": u.ID})
	writeSuccess(w, http.StatusCreated, map[string]any{"user": u.Principal()})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		writeError(w, r, http.StatusBadRequest, "please enter email and password")
		return
	}
	pair, err := a.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	a.setTokenCookies(w, pair)
	ctx := auth.ContextWithPrincipal(r.Context(), pair.Principal)
	_ = audit.LogEvent(ctx, "auth.login", nil)
	writeSuccess(w, http.StatusOK, map[string]any{
		"user":         pair.Principal,
		"access_token": pair.AccessToken,
	})
}

func (a *API) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var token string
	if c, err := r.Cookie(refreshTokenCookie); err == nil {
		token = c.Value
	}
	pair, err := a.auth.Refresh(r.Context(), token)
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	a.setTokenCookies(w, pair)
	writeSuccess(w, http.StatusOK, map[string]any{"access_token": pair.AccessToken})
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	p, ok := a.principal(w, r)
	if !ok {
		return
	}
	if err := a.auth.Logout(r.Context(), p.ID); err != nil {
		a.respondError(w, r, err)
		return
	}
	a.clearTokenCookies(w)
	_ = audit.LogEvent(r.Context(), "auth.logout", nil)
	writeSuccess(w, http.StatusOK, map[string]any{"message": "logged out successfully"})
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	p, ok := a.principal(w, r)
	if !ok {
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{"user": p})
}

func (a *API) handleEnroll(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	var req enrollRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if !ids.Valid(req.CourseID) {
		writeError(w, r, http.StatusNotFound, "course not found")
		return
	}
	if _, err := a.catalog.Get(r.Context(), req.CourseID); err != nil {
		a.respondError(w, r, err)
		return
	}
	p, err := a.auth.Enroll(r.Context(), userID, req.CourseID)
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "auth.enroll", map[string]string{
		"target_user_id": userID,
		"course_id":      req.CourseID,
	})
	writeSuccess(w, http.StatusOK, map[string]any{"user": p})
}
