package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/cppla/topichub/config"
	"github.com/cppla/topichub/controllers"
	"github.com/cppla/topichub/fanout"
	"github.com/cppla/topichub/middleware"
	"github.com/cppla/topichub/registry"
	"github.com/cppla/topichub/store"
	"github.com/cppla/topichub/utils"
	"github.com/cppla/topichub/ws"
)

// SetupRouter wires routes, middlewares, and controllers.
func SetupRouter(engine *fanout.Engine, content store.ContentStore, log store.NotificationLog, reg *registry.Registry, hub *ws.Hub) *gin.Engine {
	cfg := config.Get()
	switch strings.ToLower(cfg.GinMode) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	// Replace default console logger with file-based zap logger
	gl, err := utils.NewRollingFileLogger(cfg.GinPath, cfg.LogLevel, cfg.LogMaxSizeMB, cfg.LogMaxBackups, cfg.LogMaxAgeDays, cfg.LogCompress)
	if err == nil {
		r.Use(utils.Ginzap(gl, time.RFC3339, true))
		r.Use(utils.RecoveryWithZap(gl, false))
	} else {
		// fallback to default recovery if logger failed to init
		r.Use(gin.Recovery())
	}

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*" {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	}
	r.Use(cors.New(corsCfg))

	// Uploaded images are served statically; the store only holds the
	// reference.
	r.Static("/static", "./static")

	r.GET("/health", func(ctx *gin.Context) {
		utils.Success(ctx, gin.H{"status": "ok"})
	})

	// Real-time channel: one session per connection, bound to a username
	// via the register event.
	r.GET("/ws", func(ctx *gin.Context) {
		ws.ServeWS(hub, ctx.Writer, ctx.Request)
	})

	postController := controllers.NewPostController(engine, content)
	notificationController := controllers.NewNotificationController(log)
	subscriptionController := controllers.NewSubscriptionController(reg)

	api := r.Group("/api/v1")
	api.Use(middleware.RateLimitMiddleware())

	api.POST("/posts", postController.CreatePost)
	api.GET("/posts", postController.ListPosts)
	api.GET("/posts/:topic", postController.ListPostsByTopic)
	api.PUT("/posts/:id", postController.UpdatePost)
	api.DELETE("/posts/:id", postController.DeletePost)
	api.GET("/search", postController.SearchPosts)

	api.GET("/notifications/:username", notificationController.ListNotifications)
	api.POST("/notifications/:username/clear", notificationController.ClearNotifications)

	api.POST("/subscribe", subscriptionController.Subscribe)
	api.POST("/unsubscribe", subscriptionController.Unsubscribe)
	api.GET("/subscriptions/:username", subscriptionController.ListSubscriptions)

	r.NoRoute(func(ctx *gin.Context) {
		utils.Error(ctx, http.StatusNotFound, utils.CodeRouteNotFound, "route not found")
	})

	return r
}
