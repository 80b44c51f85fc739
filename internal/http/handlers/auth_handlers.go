package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/LukaszDygon/sbcw-kiro-sub000/domain"
	"github.com/LukaszDygon/sbcw-kiro-sub000/internal/services"
)

// AuthHandler exposes the auth controller over HTTP for the front end.
type AuthHandler struct {
	auth    domain.AuthService
	monitor *services.IdleMonitor
	log     *slog.Logger
}

func NewAuthHandler(auth domain.AuthService, monitor *services.IdleMonitor, log *slog.Logger) *AuthHandler {
	if log == nil {
		log = slog.Default()
	}
	return &AuthHandler{auth: auth, monitor: monitor, log: log}
}

type loginRequest struct {
	IDToken string `json:"id_token" binding:"required"`
}

type callbackRequest struct {
	Code        string `json:"code" binding:"required"`
	RedirectURI string `json:"redirect_uri" binding:"required"`
	State       string `json:"state"`
}

// LoginURL handles GET /auth/login-url.
func (h *AuthHandler) LoginURL(c *gin.Context) {
	redirectURI := c.Query("redirect_uri")
	if redirectURI == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "redirect_uri is required"})
		return
	}

	target, err := h.auth.LoginURL(c.Request.Context(), redirectURI)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, target)
}

// Login handles POST /auth/login: exchanges a Microsoft ID token for a
// session.
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id_token is required"})
		return
	}

	res, err := h.auth.LoginWithMicrosoft(c.Request.Context(), req.IDToken)
	if err != nil {
		h.log.Warn("login failed", "error", err)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "login failed"})
		return
	}
	c.JSON(http.StatusOK, res)
}

// Callback handles POST /auth/callback: completes the OAuth code flow.
func (h *AuthHandler) Callback(c *gin.Context) {
	var req callbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "code and redirect_uri are required"})
		return
	}

	res, err := h.auth.CompleteOAuthCallback(c.Request.Context(), req.Code, req.RedirectURI, req.State)
	if err != nil {
		h.log.Warn("oauth callback failed", "error", err)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "login failed"})
		return
	}
	c.JSON(http.StatusOK, res)
}

// Me handles GET /auth/me: the current state snapshot.
func (h *AuthHandler) Me(c *gin.Context) {
	snap := h.auth.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"status":        snap.Status.String(),
		"authenticated": snap.IsAuthenticated(),
		"user":          snap.User,
		"permissions":   snap.Permissions,
		"session":       snap.Session,
	})
}

// RefreshUser handles POST /auth/me/refresh: refetches the user record.
func (h *AuthHandler) RefreshUser(c *gin.Context) {
	user, err := h.auth.RefreshUser(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// Refresh handles POST /auth/refresh: forces a token rotation.
func (h *AuthHandler) Refresh(c *gin.Context) {
	res, err := h.auth.ForceRefreshToken(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"expires_in": res.ExpiresIn})
}

// Session handles GET /auth/session: a live server-side session check.
func (h *AuthHandler) Session(c *gin.Context) {
	valid := h.auth.CheckSession(c.Request.Context())
	snap := h.auth.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"valid":          valid,
		"session":        snap.Session,
		"time_to_expiry": h.auth.TimeToExpiry().Seconds(),
	})
}

// Extend handles POST /auth/extend: the "stay signed in" action.
func (h *AuthHandler) Extend(c *gin.Context) {
	if err := h.monitor.ExtendSession(c.Request.Context()); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"extended": true, "time_to_expiry": h.auth.TimeToExpiry().Seconds()})
}

// Logout handles POST /auth/logout.
func (h *AuthHandler) Logout(c *gin.Context) {
	if err := h.auth.Logout(c.Request.Context()); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"logged_out": true})
}

// Permissions handles POST /auth/permissions/refresh.
func (h *AuthHandler) Permissions(c *gin.Context) {
	permissions, err := h.auth.UpdatePermissions(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"permissions": permissions})
}

// SearchUsers handles GET /auth/users/search.
func (h *AuthHandler) SearchUsers(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "q is required"})
		return
	}
	limit := 10
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = parsed
	}
	excludeSelf := c.DefaultQuery("exclude_self", "true") != "false"

	result, err := h.auth.SearchUsers(c.Request.Context(), query, limit, excludeSelf)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *AuthHandler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrNotAuthenticated),
		errors.Is(err, domain.ErrRefreshTokenMissing),
		errors.Is(err, domain.ErrSessionExpired):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	default:
		var backendErr *domain.BackendError
		if errors.As(err, &backendErr) && backendErr.IsAuthRejection() {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "session rejected"})
			return
		}
		h.log.Error("request failed", "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "upstream failure"})
	}
}
