package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	_ "github.com/studyshare/studyshare-backend/docs"
	"github.com/studyshare/studyshare-backend/internal/config"
	"github.com/studyshare/studyshare-backend/internal/database"
	"github.com/studyshare/studyshare-backend/internal/handler"
	"github.com/studyshare/studyshare-backend/internal/middleware"
	"github.com/studyshare/studyshare-backend/internal/migration"
	"github.com/studyshare/studyshare-backend/internal/repository"
	"github.com/studyshare/studyshare-backend/internal/routes"
	"github.com/studyshare/studyshare-backend/internal/service"
	"github.com/studyshare/studyshare-backend/internal/ws"
	pkgcache "github.com/studyshare/studyshare-backend/pkg/cache"
	"github.com/studyshare/studyshare-backend/pkg/jwt"
	pkglogger "github.com/studyshare/studyshare-backend/pkg/logger"
	pkgredis "github.com/studyshare/studyshare-backend/pkg/redis"
	pkgstorage "github.com/studyshare/studyshare-backend/pkg/storage"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/gorm"
)

// @title           StudyShare Realtime API
// @version         1.0
// @description     Threaded comments, notifications and group chat for shared study files
//
// @host            localhost:8082
// @BasePath        /api
//
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description JWT Authorization header using the Bearer scheme. Example: "Bearer {token}"

const (
	localCacheSize  = 10000
	shutdownTimeout = 15 * time.Second
)

func main() {
	dotenvFiles := config.LoadDotEnv()

	configPath := config.Path()
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config %s: %v\n", configPath, err)
		os.Exit(1)
	}

	pkglogger.InitStructured(cfg.Server.Mode, cfg.Log.Level)
	log := pkglogger.GetLogger()
	log.Info().Str("app_env", config.Env()).Strs("env_files", dotenvFiles).Str("config", configPath).Msg("starting")
	config.LogResolved(cfg)

	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}

	// Database
	db, err := database.Open(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Database.Driver).Msg("failed to connect to database")
	}
	if cfg.Database.Driver == "sqlite" {
		// local development has no auth service owning the users table
		if err := migration.RunUsers(db); err != nil {
			log.Fatal().Err(err).Msg("users table migration failed")
		}
	}
	if err := migration.Run(db); err != nil {
		log.Fatal().Err(err).Msg("migration failed")
	}

	// Redis (optional)
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = pkgredis.NewClient(
			cfg.Redis.Host,
			cfg.Redis.Port,
			cfg.Redis.Password,
			cfg.Redis.DB,
			cfg.Redis.PoolSize,
		)
		if err != nil {
			log.Warn().Err(err).Msg("failed to connect to Redis, continuing with in-process cache and no relay")
			redisClient = nil
		} else {
			log.Info().Str("host", cfg.Redis.Host).Msg("connected to Redis")
		}
	}

	var cacheService pkgcache.Service
	if redisClient != nil {
		cacheService = pkgcache.NewService(redisClient)
	} else {
		cacheService, err = pkgcache.NewLocalService(localCacheSize)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create local cache")
		}
	}

	// File storage
	files, err := newFileStore(cfg.Storage)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Storage.Driver).Msg("failed to initialize file storage")
	}

	// Realtime gateway
	hub := ws.NewHub(redisClient, cfg.WS.RelayChannel)
	go hub.Run()

	jwtManager := jwt.NewManager(cfg.JWT.Secret, cfg.JWT.ExpiresIn)

	// Repositories and services
	userRepo := repository.NewUserRepository(db)
	commentRepo := repository.NewCommentRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	chatRepo := repository.NewGroupChatRepository(db)
	ledgerRepo := repository.NewReadLedgerRepository(db)

	users := service.NewUserDirectory(userRepo, cacheService)
	notificationService := service.NewNotificationService(notificationRepo, hub)
	commentService := service.NewCommentService(commentRepo, users, notificationService, hub, cacheService)
	groupChatService := service.NewGroupChatService(chatRepo, ledgerRepo, users, files, hub)
	readLedgerService := service.NewReadLedgerService(ledgerRepo, chatRepo)
	hub.UseChats(groupChatService)

	// Router
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(corsConfig(cfg.CORS.AllowOrigins)))
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.Metrics())
	router.Use(middleware.RequestLogger())

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/health", healthHandler(db, cacheService))

	// Swagger UI
	if cfg.IsDevelopment() {
		router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	if cfg.Storage.Driver == "local" {
		router.Static(cfg.Storage.PublicBaseURL, cfg.Storage.LocalDir)
	}

	routes.Setup(router,
		handler.NewCommentHandler(commentService),
		handler.NewNotificationHandler(notificationService),
		handler.NewGroupChatHandler(groupChatService, readLedgerService, cfg.Storage.MaxFileSizeMB),
		handler.NewWSHandler(hub, cfg.WS.AllowedOrigins),
		jwtManager,
		redisClient,
		cfg,
	)

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": gin.H{"code": "NOT_FOUND", "message": "not found"}})
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go reportDBStats(ctx, db)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}
	hub.Stop()
	if redisClient != nil {
		_ = redisClient.Close()
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

func corsConfig(allowOrigins string) cors.Config {
	cfg := cors.Config{
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-API-Key", "X-Request-ID", "Idempotency-Key"},
		AllowCredentials: true,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		ExposeHeaders:    []string{"X-Request-ID", "X-RateLimit-Remaining", "Retry-After"},
		MaxAge:           12 * time.Hour,
	}
	origins := config.SplitAndTrim(allowOrigins, ",")
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}
	cfg.AllowOrigins = origins
	return cfg
}

func newFileStore(cfg config.StorageConfig) (service.FileStore, error) {
	switch cfg.Driver {
	case "s3":
		return pkgstorage.NewS3Client(pkgstorage.S3Config{
			Endpoint:        cfg.Endpoint,
			Region:          cfg.Region,
			AccessKeyID:     cfg.AccessKeyID,
			SecretAccessKey: cfg.SecretAccessKey,
			Bucket:          cfg.Bucket,
			CDNURL:          cfg.CDNURL,
			BasePath:        cfg.BasePath,
			ForcePathStyle:  cfg.ForcePathStyle,
		})
	case "local", "":
		return pkgstorage.NewLocalStore(cfg.LocalDir, cfg.PublicBaseURL)
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Driver)
	}
}

func healthHandler(db *gorm.DB, cacheService pkgcache.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := http.StatusOK
		checks := gin.H{"database": "ok", "cache": "ok"}

		if sqlDB, err := db.DB(); err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
			checks["database"] = "unavailable"
			status = http.StatusServiceUnavailable
		}
		if err := cacheService.Ping(c.Request.Context()); err != nil {
			checks["cache"] = "degraded"
		}

		c.JSON(status, gin.H{
			"status":  http.StatusText(status),
			"service": "studyshare-backend",
			"checks":  checks,
			"time":    time.Now().Unix(),
		})
	}
}

func reportDBStats(ctx context.Context, db *gorm.DB) {
	sqlDB, err := db.DB()
	if err != nil {
		return
	}
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			middleware.SetDBConnectionsInUse(sqlDB.Stats().InUse)
		}
	}
}
