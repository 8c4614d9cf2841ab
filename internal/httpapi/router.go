package httpapi

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/personaverse/persona-chat/internal/common"
	"github.com/personaverse/persona-chat/internal/config"
	"github.com/personaverse/persona-chat/internal/httpapi/handlers"
	"github.com/personaverse/persona-chat/internal/httpapi/middleware"
)

// NewRouter assembles the HTTP surface. revoker may be nil when no redis
// is configured.
func NewRouter(h *handlers.Handler, cfg config.Config, log *zap.Logger, revoker middleware.TokenRevoker) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true

	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(log))
	r.Use(middleware.Recovery(log))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{cfg.FrontendURL},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Idempotency-Key"},
		AllowCredentials: true,
	}))

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, "Route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, "Method not allowed")
	})

	r.GET("/health", h.Health)

	api := r.Group("/api")

	api.POST("/auth/login", h.Login)
	api.POST("/auth/logout", h.Logout)

	authed := api.Group("/")
	authed.Use(middleware.AuthRequired(cfg.JWTSecret, revoker))

	authed.GET("/auth/me", h.Me)

	authed.GET("/characters", h.ListCharacters)
	authed.POST("/characters", h.CreateCharacter)
	authed.PUT("/characters/:id", h.UpdateCharacter)
	authed.DELETE("/characters/:id", h.DeleteCharacter)

	authed.GET("/chat/messages/:characterId", h.GetMessages)
	authed.POST("/chat/messages", h.SendMessage)
	authed.POST("/chat/messages/async", h.SendMessageAsync)
	authed.GET("/chat/jobs/:id", h.GetChatJob)

	return r
}
