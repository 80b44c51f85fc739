package middleware

import (
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/LukaszDygon/sbcw-kiro-sub000/domain"
)

// LoginPath is where unauthenticated requests are sent, with the sign-out
// reason attached so the sign-in view can explain itself.
const LoginPath = "/login"

// Guard protects routes behind the auth controller. It listens on the
// event bus so a redirect after a forced expiry carries
// reason=session_expired rather than a generic unauthorized.
type Guard struct {
	auth     domain.AuthService
	activity domain.ActivityRecorder

	mu         sync.Mutex
	lastReason domain.LogoutReason
}

// NewGuard builds a guard and subscribes it to the lifecycle events.
func NewGuard(auth domain.AuthService, activity domain.ActivityRecorder, bus domain.EventBus) *Guard {
	g := &Guard{auth: auth, activity: activity}
	bus.Subscribe(domain.EventLogout, func(e domain.Event) { g.setReason(e.Reason) })
	bus.Subscribe(domain.EventSessionExpired, func(domain.Event) { g.setReason(domain.ReasonSessionExpired) })
	bus.Subscribe(domain.EventLogin, func(domain.Event) { g.setReason("") })
	return g
}

func (g *Guard) setReason(reason domain.LogoutReason) {
	g.mu.Lock()
	g.lastReason = reason
	g.mu.Unlock()
}

func (g *Guard) reason() domain.LogoutReason {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.lastReason == "" {
		return domain.ReasonUnauthorized
	}
	return g.lastReason
}

// RequireAuth rejects unauthenticated requests and counts authenticated
// ones as user activity.
func (g *Guard) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !g.auth.IsAuthenticated() {
			g.deny(c)
			return
		}
		if g.activity != nil {
			g.activity.RecordActivity()
		}
		c.Next()
	}
}

// RequireRole allows users whose role ranks at or above the required one.
// It implies RequireAuth.
func (g *Guard) RequireRole(role domain.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !g.auth.IsAuthenticated() {
			g.deny(c)
			return
		}
		if !g.auth.HasRole(role) {
			g.forbid(c)
			return
		}
		if g.activity != nil {
			g.activity.RecordActivity()
		}
		c.Next()
	}
}

// RequireAnyRole allows users matching at least one of the given roles.
func (g *Guard) RequireAnyRole(roles ...domain.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !g.auth.IsAuthenticated() {
			g.deny(c)
			return
		}
		if !g.auth.HasAnyRole(roles...) {
			g.forbid(c)
			return
		}
		if g.activity != nil {
			g.activity.RecordActivity()
		}
		c.Next()
	}
}

// RequirePermissions demands every listed permission.
func (g *Guard) RequirePermissions(permissions ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !g.auth.IsAuthenticated() {
			g.deny(c)
			return
		}
		if !g.auth.HasAllPermissions(permissions...) {
			g.forbid(c)
			return
		}
		if g.activity != nil {
			g.activity.RecordActivity()
		}
		c.Next()
	}
}

// RequireAnyPermission demands at least one of the listed permissions.
func (g *Guard) RequireAnyPermission(permissions ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !g.auth.IsAuthenticated() {
			g.deny(c)
			return
		}
		if !g.auth.HasAnyPermission(permissions...) {
			g.forbid(c)
			return
		}
		if g.activity != nil {
			g.activity.RecordActivity()
		}
		c.Next()
	}
}

func (g *Guard) deny(c *gin.Context) {
	reason := g.reason()
	if wantsJSON(c) {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error":  "authentication required",
			"reason": string(reason),
		})
		return
	}
	target := LoginPath + "?reason=" + url.QueryEscape(string(reason))
	c.Redirect(http.StatusFound, target)
	c.Abort()
}

func (g *Guard) forbid(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
		"error": "insufficient privileges",
	})
}

func wantsJSON(c *gin.Context) bool {
	if c.GetHeader("X-Requested-With") == "XMLHttpRequest" {
		return true
	}
	return strings.Contains(c.GetHeader("Accept"), "application/json")
}
