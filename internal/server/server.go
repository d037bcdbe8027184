package server

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/meilisearch/meilisearch-go"
	"github.com/openshelf/openshelf/internal/config"
	"github.com/openshelf/openshelf/internal/handler"
	"github.com/openshelf/openshelf/internal/middleware"
	"github.com/openshelf/openshelf/internal/repository"
	"github.com/openshelf/openshelf/internal/service"
	"github.com/openshelf/openshelf/pkg/storage"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Server struct {
	engine      *gin.Engine
	db          *gorm.DB
	redisClient *redis.Client
}

func NewServer(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) *Server {
	userRepo := repository.NewUserRepository(db)
	postRepo := repository.NewPostRepository(db)
	voteRepo := repository.NewVoteRepository(db)
	commentRepo := repository.NewCommentRepository(db)
	reportRepo := repository.NewReportRepository(db)
	suggestionRepo := repository.NewSuggestionRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	imageStorage, err := storage.NewCloudinaryStorage()
	if err != nil {
		log.Printf("cloudinary storage unavailable, uploads disabled: %v", err)
		imageStorage = nil
	}

	meiliHost := cfg.MeiliSearchHost
	if !strings.HasPrefix(meiliHost, "http") {
		meiliHost = "http://" + meiliHost + ":7700"
	}
	meiliClient := meilisearch.New(meiliHost, meilisearch.WithAPIKey(cfg.MeiliMasterKey))
	searchSvc := service.NewSearchService(meiliClient)

	notificationSvc := service.NewNotificationService(notificationRepo, redisClient)
	viewSvc := service.NewViewService(redisClient, postRepo)
	if redisClient != nil {
		go viewSvc.StartViewSyncWorker(context.Background())
	}

	authSvc := service.NewAuthService(userRepo, cfg.BootstrapModHandle, redisClient)
	postSvc := service.NewPostService(postRepo, userRepo, searchSvc, viewSvc, redisClient)
	voteSvc := service.NewVoteService(voteRepo, postRepo, userRepo, reportRepo, notificationSvc, redisClient)
	commentSvc := service.NewCommentService(commentRepo, postRepo, userRepo, notificationSvc, redisClient)
	reportSvc := service.NewReportService(reportRepo, postRepo, commentRepo, userRepo, notificationSvc, redisClient)
	suggestionSvc := service.NewSuggestionService(suggestionRepo, voteRepo, postRepo, userRepo, notificationSvc, searchSvc, redisClient)
	moderationSvc := service.NewModerationService(userRepo, postRepo, commentRepo, notificationSvc, searchSvc)

	authHandler := handler.NewAuthHandler(authSvc)
	postHandler := handler.NewPostHandler(postSvc)
	voteHandler := handler.NewVoteHandler(voteSvc, suggestionSvc)
	commentHandler := handler.NewCommentHandler(commentSvc)
	reportHandler := handler.NewReportHandler(reportSvc)
	suggestionHandler := handler.NewSuggestionHandler(suggestionSvc)
	moderationHandler := handler.NewModerationHandler(moderationSvc)
	notificationHandler := handler.NewNotificationHandler(notificationSvc, redisClient)
	uploadHandler := handler.NewUploadHandler(imageStorage, userRepo)

	if cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	setupCORS(router, cfg.AllowedOrigins)
	router.Use(gin.Recovery())
	router.Use(gin.Logger())

	authMiddleware := middleware.NewAuthMiddleware(userRepo)

	api := router.Group("/api")

	auth := api.Group("/auth")
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
	}

	// Public reads. OptionalAuth lets authors and moderators see their own
	// held content.
	public := api.Group("")
	public.Use(authMiddleware.OptionalAuth())
	{
		public.GET("/posts", postHandler.ListPosts)
		public.GET("/posts/search", postHandler.SearchPosts)
		public.GET("/posts/slug/:slug", postHandler.GetPost)
		public.GET("/posts/:id/comments", commentHandler.ListComments)
		public.GET("/posts/:id/suggestions", suggestionHandler.ListSuggestions)
		public.GET("/profile/:username", authHandler.GetProfile)
	}

	protected := api.Group("")
	protected.Use(authMiddleware.RequireAuth())
	{
		protected.GET("/me", authHandler.Me)
		protected.PUT("/me/avatar", uploadHandler.UpdateAvatar)
		protected.POST("/uploads/image", uploadHandler.UploadImage)

		protected.POST("/posts", postHandler.CreatePost)
		protected.GET("/posts/me", postHandler.GetMyPosts)
		protected.PUT("/posts/:id", postHandler.UpdatePost)
		protected.DELETE("/posts/:id", postHandler.DeletePost)
		protected.POST("/posts/:id/vote", voteHandler.VotePost)

		protected.POST("/posts/:id/comments", commentHandler.CreateComment)
		protected.DELETE("/comments/:id", commentHandler.DeleteComment)

		protected.POST("/posts/:id/suggestions", suggestionHandler.CreateSuggestion)
		protected.POST("/suggestions/:id/vote", voteHandler.VoteSuggestion)
		protected.POST("/suggestions/:id/approve", suggestionHandler.ApproveSuggestion)
		protected.POST("/suggestions/:id/reject", suggestionHandler.RejectSuggestion)

		protected.POST("/reports", reportHandler.CreateReport)
		protected.POST("/posts/:id/links/report", reportHandler.CreateLinkReport)
		protected.GET("/posts/:id/link-reports", reportHandler.ListLinkReportsForPost)
		protected.POST("/link-reports/:id/resolve", reportHandler.ResolveLinkReport)
		protected.POST("/link-reports/:id/dismiss", reportHandler.DismissLinkReport)
		protected.PUT("/link-reports/:id/link", reportHandler.UpdateLinkFromReport)

		protected.GET("/notifications", notificationHandler.GetNotifications)
		protected.GET("/notifications/unread-count", notificationHandler.UnreadCount)
		protected.PUT("/notifications/:id/read", notificationHandler.MarkAsRead)
		protected.PUT("/notifications/read-all", notificationHandler.MarkAllAsRead)
		protected.GET("/notifications/ws", notificationHandler.HandleWebSocket)

		// Moderator routes. Per-capability checks happen in the services.
		mod := protected.Group("/mod")
		mod.Use(authMiddleware.RequireModerator())
		{
			mod.GET("/reports", reportHandler.ListReports)
			mod.GET("/link-reports", reportHandler.ListLinkReports)
			mod.POST("/reports/:id/resolve", reportHandler.ResolveReport)
			mod.POST("/reports/:id/dismiss", reportHandler.DismissReport)

			mod.PUT("/posts/:id/status", moderationHandler.SetPostStatus)
			mod.PUT("/comments/:id/status", moderationHandler.SetCommentStatus)
			mod.GET("/posts/:id/comments", commentHandler.ListAllComments)

			mod.GET("/users", moderationHandler.ListUsers)
			mod.PUT("/users/:id/status", moderationHandler.SetUserStatus)
			mod.POST("/users/:id/promote", moderationHandler.PromoteUser)
			mod.POST("/users/:id/demote", moderationHandler.DemoteUser)
		}
	}

	return &Server{
		engine:      router,
		db:          db,
		redisClient: redisClient,
	}
}

func (s *Server) Run(addr string) error {
	return s.engine.Run(addr)
}

func setupCORS(router *gin.Engine, allowedOrigins string) {
	var origins []string
	if allowedOrigins != "" {
		origins = strings.Split(allowedOrigins, ",")
	} else {
		origins = []string{"http://localhost:3000"}
	}

	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
}
