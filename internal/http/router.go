package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/LukaszDygon/sbcw-kiro-sub000/domain"
	"github.com/LukaszDygon/sbcw-kiro-sub000/internal/http/handlers"
	"github.com/LukaszDygon/sbcw-kiro-sub000/internal/http/middleware"
	"github.com/LukaszDygon/sbcw-kiro-sub000/internal/obs"
)

// BuildRouter assembles the HTTP surface: the public login flow, the
// guarded session endpoints and the operational routes.
func BuildRouter(
	handler *handlers.AuthHandler,
	guard *middleware.Guard,
	metrics *obs.Metrics,
	log *slog.Logger,
) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.RequestLogger(log))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if metrics != nil {
		router.GET("/metrics", gin.WrapH(metrics.Handler()))
	}

	auth := router.Group("/auth")
	{
		auth.GET("/login-url", handler.LoginURL)
		auth.POST("/login", handler.Login)
		auth.POST("/callback", handler.Callback)
	}

	session := router.Group("/auth", guard.RequireAuth())
	{
		session.GET("/me", handler.Me)
		session.POST("/me/refresh", handler.RefreshUser)
		session.POST("/refresh", handler.Refresh)
		session.GET("/session", handler.Session)
		session.POST("/extend", handler.Extend)
		session.POST("/logout", handler.Logout)
		session.POST("/permissions/refresh", handler.Permissions)
	}

	// Directory search backs the transfer recipient picker; plain
	// employees do not get it.
	search := router.Group("/auth", guard.RequireAnyRole(domain.RoleAdmin, domain.RoleFinance))
	{
		search.GET("/users/search", handler.SearchUsers)
	}

	return router
}
