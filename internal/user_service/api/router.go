package api

import (
	"mnemochat/internal/config"
	"mnemochat/pkg/httpmiddleware"

	"github.com/gin-gonic/gin"
)

// SetupRouter 配置并返回用户服务的 Gin 引擎实例。
func SetupRouter(h *Handler, jwtSecret string, sessions SessionChecker, mw config.MiddlewareConfig) *gin.Engine {
	// 使用默认中间件 (logger, recovery) 创建一个 Gin 引擎。
	r := gin.Default()
	r.Use(httpmiddleware.FromConfig(mw)...)

	authMiddleware := AuthMiddleware(jwtSecret, sessions)

	apiV1 := r.Group("/api/v1")
	{
		auth := apiV1.Group("/auth")
		{
			auth.POST("/register", h.Register)
			auth.POST("/login", h.Login)
			auth.POST("/logout", authMiddleware, h.Logout)
		}

		users := apiV1.Group("/users")
		users.Use(authMiddleware)
		{
			users.GET("/me", h.Me)
		}
	}

	return r
}
