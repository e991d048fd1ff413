package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/smartstudy/platform-api/api/swagger"
	"github.com/smartstudy/platform-api/internal/handler"
	"github.com/smartstudy/platform-api/internal/middleware"
	"github.com/smartstudy/platform-api/internal/repository"
	"github.com/smartstudy/platform-api/internal/service"
	"github.com/smartstudy/platform-api/pkg/cache"
	"github.com/smartstudy/platform-api/pkg/config"
	"github.com/smartstudy/platform-api/pkg/database"
	"github.com/smartstudy/platform-api/pkg/logger"
	"github.com/smartstudy/platform-api/pkg/mailer"
	corsmiddleware "github.com/smartstudy/platform-api/pkg/middleware/cors"
	reqidmiddleware "github.com/smartstudy/platform-api/pkg/middleware/requestid"
	"github.com/smartstudy/platform-api/pkg/storage"
)

// App owns every long-lived resource and drives the serve/shutdown
// lifecycle: New wires dependencies, Run serves until a signal arrives,
// then connections drain before Close releases the resources.
type App struct {
	cfg    *config.Config
	logger *zap.Logger
	db     *sqlx.DB
	redis  *redis.Client
	server *http.Server
}

// New builds the fully wired application.
func New() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, caching and shared rate limits disabled", zap.Error(err))
		redisClient = nil
	}

	provider, err := buildStorage(cfg, logr)
	if err != nil {
		return nil, err
	}

	var mail mailer.Mailer
	if sg, err := mailer.NewSendGrid(cfg.Mail); err != nil {
		logr.Info("mailer not configured, reset links fall back to the response")
	} else {
		mail = sg
	}

	validate := validator.New()
	devMode := cfg.Env != config.EnvProduction

	userRepo := repository.NewUserRepository(db)
	noteRepo := repository.NewNoteRepository(db)
	reviewRepo := repository.NewReviewRepository(db)
	downloadRepo := repository.NewDownloadHistoryRepository(db)
	analyticsRepo := repository.NewAnalyticsRepository(db)

	metricsSvc := service.NewMetricsService()

	var cacheSvc *service.CacheService
	if redisClient != nil {
		cacheRepo := repository.NewCacheRepository(redisClient, logr)
		cacheSvc = service.NewCacheService(cacheRepo, metricsSvc, cfg.Analytics.CacheTTL, logr, cfg.Analytics.CacheEnabled)
	}

	authSvc := service.NewAuthService(userRepo, mail, validate, logr, cfg.JWT, cfg.Mail, devMode)
	noteSvc := service.NewNoteService(noteRepo, reviewRepo, downloadRepo, provider, metricsSvc, validate, logr, cfg.Uploads)
	reviewSvc := service.NewReviewService(reviewRepo, noteRepo, validate, logr)
	historySvc := service.NewDownloadHistoryService(downloadRepo, logr)
	analyticsSvc := service.NewAnalyticsService(analyticsRepo, downloadRepo, cacheSvc, metricsSvc, logr)

	handlers := handler.Handlers{
		Auth:      handler.NewAuthHandler(authSvc),
		Notes:     handler.NewNoteHandler(noteSvc),
		Reviews:   handler.NewReviewHandler(reviewSvc),
		Analytics: handler.NewAnalyticsHandler(analyticsSvc),
		Downloads: handler.NewDownloadHistoryHandler(historySvc, noteSvc, analyticsSvc),
		Metrics:   handler.NewMetricsHandler(metricsSvc, analyticsSvc),
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))
	r.Use(middleware.NewRateLimiter(redisClient, cfg.RateLimit, logr).Handler())

	handler.RegisterRoutes(r, cfg.APIPrefix, handlers, authSvc)

	if devMode {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	return &App{
		cfg:    cfg,
		logger: logr,
		db:     db,
		redis:  redisClient,
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}, nil
}

// Run serves HTTP until SIGINT or SIGTERM, then drains in-flight requests.
func (a *App) Run() error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Sugar().Infow("server starting", "addr", a.server.Addr, "env", a.cfg.Env)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("serve: %w", err)
	case sig := <-quit:
		a.logger.Sugar().Infow("shutting down", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := a.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// Close releases database and cache connections.
func (a *App) Close() {
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn("close postgres", zap.Error(err))
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("close redis", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}

// buildStorage prefers Supabase and falls back to local disk.
func buildStorage(cfg *config.Config, logr *zap.Logger) (storage.Provider, error) {
	if cfg.Storage.SupabaseURL != "" && cfg.Storage.SupabaseKey != "" {
		provider, err := storage.NewSupabaseStorage(cfg.Storage.SupabaseURL, cfg.Storage.SupabaseKey, cfg.Storage.SupabaseBucket)
		if err != nil {
			return nil, fmt.Errorf("init supabase storage: %w", err)
		}
		return provider, nil
	}
	logr.Info("supabase not configured, storing uploads on local disk", zap.String("dir", cfg.Storage.LocalDir))
	local, err := storage.NewLocalStorage(cfg.Storage.LocalDir)
	if err != nil {
		return nil, fmt.Errorf("init local storage: %w", err)
	}
	return local, nil
}
