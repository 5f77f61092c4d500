package http

import (
	"log/slog"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/anonroom/anonroom/internal/config"
	"github.com/anonroom/anonroom/internal/metrics"
	"github.com/anonroom/anonroom/internal/service"
)

func SetupRouter(
	cfg *config.Config,
	sessions service.SessionInteractor,
	sessionController *SessionController,
	roomController *RoomController,
	messageController *MessageController,
	streamController *StreamController,
	log *slog.Logger,
) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(metrics.GinMiddleware())
	router.Use(SecurityHeaders())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{
		"http://localhost:3000",
		"http://localhost:5173",
	}
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{
		"Content-Type",
		"Origin",
		"Accept",
		"X-Session-Token",
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.ExposeHeaders = []string{"Set-Cookie"}
	router.Use(cors.New(corsConfig))

	router.GET("/healthz", func(ctx *gin.Context) {
		ctx.JSON(200, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")
	api.Use(RateLimitByIP(rate.Limit(10), 30))
	api.Use(ResolveSession(sessions, cfg.Session, log))

	api.GET("/session", sessionController.Show)
	api.PUT("/session", sessionController.Update)

	rooms := api.Group("/rooms")
	rooms.POST("", roomController.Create)
	rooms.GET("", roomController.List)
	rooms.GET("/:shareToken", roomController.Get)
	rooms.GET("/:shareToken/messages", messageController.List)
	rooms.POST("/:shareToken/messages", messageController.Create)
	rooms.DELETE("/:shareToken/messages/:id", messageController.Delete)
	rooms.GET("/:shareToken/ws", streamController.Subscribe)

	return router
}
