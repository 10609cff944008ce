package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/juandiegombr/daw.pi.iiava/backend/services/monitor-service/internal/service"
)

// CookieOptions describes the session cookie.
type CookieOptions struct {
	Name   string
	Secure bool
}

// AuthHandlers serves register, login, me and logout.
type AuthHandlers struct {
	auth   *service.AuthService
	cookie CookieOptions
	logger *zap.Logger
}

// NewAuthHandlers builds handler set.
func NewAuthHandlers(auth *service.AuthService, cookie CookieOptions, logger *zap.Logger) *AuthHandlers {
	if cookie.Name == "" {
		cookie.Name = "token"
	}
	return &AuthHandlers{auth: auth, cookie: cookie, logger: logger}
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Register handles POST /auth/register.
func (h *AuthHandlers) Register(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	token, user, err := h.auth.Register(r.Context(), req.Username, req.Password)
	switch {
	case err == nil:
	case service.IsValidation(err):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, service.ErrUsernameTaken):
		writeError(w, http.StatusBadRequest, "Username already exists")
		return
	default:
		h.logger.Error("register failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to register")
		return
	}

	h.setCookie(w, token, h.auth.TokenTTL())
	writeData(w, http.StatusCreated, map[string]interface{}{"user": user})
}

// Login handles POST /auth/login.
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	token, user, err := h.auth.Login(r.Context(), req.Username, req.Password)
	switch {
	case err == nil:
	case service.IsValidation(err):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, service.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	default:
		h.logger.Error("login failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to login")
		return
	}

	h.setCookie(w, token, h.auth.TokenTTL())
	writeData(w, http.StatusOK, map[string]interface{}{"user": user})
}

// Me handles GET /auth/me.
func (h *AuthHandlers) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.auth.Me(r.Context(), TokenFromRequest(r, h.cookie.Name))
	if err != nil {
		if errors.Is(err, service.ErrUnauthenticated) {
			writeError(w, http.StatusUnauthorized, "Not authenticated")
			return
		}
		h.logger.Error("me failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load user")
		return
	}
	writeData(w, http.StatusOK, map[string]interface{}{"user": user})
}

// Logout handles POST /auth/logout.
func (h *AuthHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.auth.Logout(r.Context(), TokenFromRequest(r, h.cookie.Name)); err != nil {
		h.logger.Warn("failed to revoke token", zap.Error(err))
	}
	h.setCookie(w, "", -1)
	writeSuccess(w)
}

func (h *AuthHandlers) setCookie(w http.ResponseWriter, value string, ttl time.Duration) {
	c := &http.Cookie{
		Name:     h.cookie.Name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	}
	if ttl < 0 {
		c.MaxAge = -1
	} else {
		c.MaxAge = int(ttl.Seconds())
		c.Expires = time.Now().Add(ttl)
	}
	http.SetCookie(w, c)
}

// TokenFromRequest returns the session token from the cookie or, failing
// that, from an "Authorization: Bearer" header.
func TokenFromRequest(r *http.Request, cookieName string) string {
	if c, err := r.Cookie(cookieName); err == nil && c.Value != "" {
		return c.Value
	}
	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}
