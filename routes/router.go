package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/cppla/radiocms/config"
	"github.com/cppla/radiocms/controllers"
	"github.com/cppla/radiocms/media"
	"github.com/cppla/radiocms/middleware"
	"github.com/cppla/radiocms/models"
	"github.com/cppla/radiocms/utils"
)

// SetupRouter wires routes, middlewares, and controllers.
func SetupRouter(db *gorm.DB) *gin.Engine {
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
	r.MaxMultipartMemory = 32 << 20

	// Access log goes to its own rolling file; fall back to the app logger
	gl, err := utils.NewRollingFileLogger(cfg.GinPath, cfg.LogLevel, cfg.LogMaxSizeMB, cfg.LogMaxBackups, cfg.LogMaxAgeDays, cfg.LogCompress)
	if err != nil {
		utils.Sugar.Warnf("gin log file unavailable (%v), logging requests to the app logger", err)
		gl = utils.Logger
	}
	r.Use(utils.Ginzap(gl, time.RFC3339, true))
	r.Use(utils.RecoveryWithZap(gl, true))
	r.Use(middleware.RequestMetrics())

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*" {
		corsCfg.AllowAllOrigins = true
		corsCfg.AllowCredentials = false
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	}
	r.Use(cors.New(corsCfg))

	// Stored audio and post images
	r.Static(cfg.MediaURLPrefix, cfg.MediaRoot)

	r.GET("/health", func(ctx *gin.Context) {
		utils.Success(ctx, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	mediaService := media.NewService(db, cfg, utils.Logger)

	authController := controllers.NewAuthController(db)
	postController := controllers.NewPostController(db, mediaService.Storage())
	userController := controllers.NewUserController(db)
	mediaController := controllers.NewMediaController(mediaService)

	authRequired := middleware.AuthRequired(db)
	limited := middleware.RateLimit(cfg.RateLimitPerMinute)

	api := r.Group("/api/v1")

	authGroup := api.Group("/auth")
	authGroup.Use(middleware.RateLimit(cfg.RateLimitPerMinute))
	authGroup.POST("/login", authController.Login)
	authGroup.GET("/oauth/:provider/login", authController.OAuthRedirect)
	authGroup.GET("/oauth/:provider/callback", authController.OAuthCallback)
	authGroup.POST("/logout", authRequired, authController.Logout)
	authGroup.GET("/me", authRequired, authController.Me)
	authGroup.PUT("/password", authRequired, authController.ChangePassword)

	postsGroup := api.Group("/posts")
	postsGroup.GET("", postController.ListPublished)
	postsGroup.GET("/slug-available", postController.SlugAvailable)
	postsGroup.GET("/slug/:slug", postController.GetBySlug)
	postsGroup.GET("/slug/:slug/next", postController.NextBySlug)

	admin := api.Group("/admin")
	admin.Use(authRequired, limited)

	editors := admin.Group("")
	editors.Use(middleware.RequireRoles(models.RoleAdmin, models.RolePublisher))
	editors.GET("/posts", postController.AdminList)
	editors.GET("/posts/:id", postController.AdminGet)
	editors.POST("/posts", postController.Create)
	editors.PUT("/posts/:id", postController.Update)
	editors.DELETE("/posts/:id", postController.Delete)
	editors.PATCH("/posts/:id/published", postController.SetPublished)
	editors.PATCH("/posts/:id/ready", postController.ToggleReady)
	editors.POST("/images", postController.UploadImages)

	users := admin.Group("/users")
	users.Use(middleware.RequireRoles(models.RoleAdmin))
	users.GET("", userController.List)
	users.POST("/:id/roles/:role", userController.ToggleRole)
	users.POST("/:id/active", userController.ToggleActive)

	// Playlists are consumed by players without a session
	api.GET("/media/:collection/playlist.m3u", mediaController.Playlist)
	api.GET("/music/playlist", mediaController.MusicPlaylist)

	// Per-collection role checks happen in the media service
	studio := api.Group("")
	studio.Use(authRequired, limited, middleware.RequireRoles(models.RoleAdmin, models.RoleAnnouncer))
	studio.GET("/media/:collection", mediaController.List)
	studio.POST("/media/:collection/upload", mediaController.Upload)
	studio.PATCH("/media/:collection/:id/status", mediaController.SetStatus)
	studio.POST("/media/:collection/:id/archive", mediaController.ToggleArchive)
	studio.DELETE("/media/:collection/:id", mediaController.Delete)
	studio.POST("/media/:collection/:id/transmit", mediaController.Transmit)
	studio.POST("/audio", mediaController.Ingest)
	studio.POST("/broadcast", mediaController.Broadcast)

	r.NoRoute(func(ctx *gin.Context) {
		if strings.HasPrefix(ctx.Request.URL.Path, "/api/") {
			utils.Error(ctx, http.StatusNotFound, 40400, "api route not found")
			return
		}
		utils.Error(ctx, http.StatusNotFound, 40400, "not found")
	})

	return r
}
