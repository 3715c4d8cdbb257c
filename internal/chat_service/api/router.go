package api

import (
	"mnemochat/internal/config"
	userapi "mnemochat/internal/user_service/api"
	"mnemochat/pkg/httpmiddleware"

	"github.com/gin-gonic/gin"
)

// SetupRouter configures and returns the chat service gin engine.
// Every route requires a valid token with a live session.
func SetupRouter(h *Handler, jwtSecret string, sessions userapi.SessionChecker, mw config.MiddlewareConfig) *gin.Engine {
	r := gin.Default()
	r.Use(httpmiddleware.FromConfig(mw)...)

	apiV1 := r.Group("/api/v1")
	apiV1.Use(userapi.AuthMiddleware(jwtSecret, sessions))
	{
		apiV1.POST("/chat", h.Chat)
		apiV1.GET("/conversations", h.ListConversations)
		apiV1.GET("/conversations/:id", h.GetConversation)
		apiV1.GET("/settings", h.GetSettings)
		apiV1.PUT("/settings", h.UpdateSettings)
		apiV1.GET("/facts", h.ListFacts)
	}

	return r
}
