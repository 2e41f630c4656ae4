package server

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/qrchat/internal/config"
	"github.com/zulandar/qrchat/internal/store"
)

// registerRoutes sets up all API routes on the Gin router.
func registerRoutes(router *gin.Engine, st *store.Store, cfg *config.Config) {
	api := router.Group("/api")

	// Visitor-facing endpoints. The session id in the shared link is the
	// only credential a visitor carries.
	api.GET("/sessions/:id", handleSessionCard(st, cfg))
	api.POST("/sessions/:id/visitors", handleRegisterVisitor(st))
	api.POST("/sessions/:id/messages", handlePostMessage(st))

	// Organizer endpoints sit behind the static admin credential.
	admin := api.Group("/admin", adminAuth(cfg.Admin.Key))
	admin.POST("/sessions", handleCreateSession(st, cfg))
	admin.GET("/sessions", handleListSessions(st, cfg))
	admin.PATCH("/sessions/:id", handleUpdateSession(st))
	admin.PUT("/sessions/:id/active", handleSetActive(st))
	admin.DELETE("/sessions/:id", handleDeleteSession(st))
	admin.GET("/sessions/:id/visitors", handleListVisitors(st))
	admin.GET("/sessions/:id/messages", handleListMessages(st))
	admin.GET("/sessions/:id/events", handleEvents(st))
}

// adminAuth gates organizer routes behind the configured static key. The
// key arrives in the X-Admin-Key header, or in the key query parameter for
// EventSource clients that cannot set headers.
func adminAuth(key string) gin.HandlerFunc {
	return func(c *gin.Context) {
		got := c.GetHeader("X-Admin-Key")
		if got == "" {
			got = c.Query("key")
		}
		if got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, APIResponse{
				Success: false,
				Message: "admin credentials required",
			})
			return
		}
		c.Next()
	}
}
