package routers

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/zvonchat/zvon/config"
	"github.com/zvonchat/zvon/internal/handlers"
	"github.com/zvonchat/zvon/internal/middlewares"
	"github.com/zvonchat/zvon/internal/ws"
	"github.com/zvonchat/zvon/pkg/ratelimit"
)

// SetupRoutes wires the HTTP surface: auth endpoints, user/profile API,
// uploads, static media, and the websocket entry point.
func SetupRoutes(r *gin.Engine, cfg *config.Config,
	authHandler *handlers.AuthHandler,
	userHandler *handlers.UserHandler,
	uploadHandler *handlers.UploadHandler,
	hub *ws.Hub,
	limiter ratelimit.Limiter,
) {
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization"}
	r.Use(cors.New(corsConfig))

	if cfg.RateLimit.Enabled && limiter != nil {
		r.Use(middlewares.RateLimitMiddleware(limiter, &cfg.RateLimit))
	}

	// Websocket upgrade; auth via ?token= since browsers cannot set headers
	// on websocket requests.
	r.GET("/ws", middlewares.AuthMiddleware(), func(c *gin.Context) {
		ws.ServeWs(hub, c)
	})

	// Uploaded media is served straight from disk.
	r.Static(cfg.Upload.PublicPath, cfg.Upload.Dir)

	api := r.Group("/api")
	{
		api.POST("/register", authHandler.Register)
		api.POST("/login", authHandler.Login)

		authed := api.Group("", middlewares.AuthMiddleware())
		{
			authed.GET("/search", userHandler.Search)
			authed.GET("/users/all", userHandler.All)
			authed.GET("/user/:id", userHandler.Get)
			authed.POST("/upload", uploadHandler.Upload)

			authed.POST("/settings/avatar", userHandler.UpdateAvatar)
			authed.POST("/settings/username", userHandler.UpdateUsername)
			authed.POST("/settings/password", userHandler.UpdatePassword)
			authed.POST("/settings/theme", userHandler.UpdateTheme)

			authed.DELETE("/account", userHandler.DeleteAccount)
		}
	}
}
