package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/Chethan77667/Result-BBHC/api/swagger"
	"github.com/Chethan77667/Result-BBHC/internal/handler"
	"github.com/Chethan77667/Result-BBHC/internal/middleware"
	"github.com/Chethan77667/Result-BBHC/internal/repository"
	"github.com/Chethan77667/Result-BBHC/internal/service"
	"github.com/Chethan77667/Result-BBHC/pkg/cache"
	"github.com/Chethan77667/Result-BBHC/pkg/config"
	"github.com/Chethan77667/Result-BBHC/pkg/database"
	"github.com/Chethan77667/Result-BBHC/pkg/jobs"
	"github.com/Chethan77667/Result-BBHC/pkg/logger"
	corsmiddleware "github.com/Chethan77667/Result-BBHC/pkg/middleware/cors"
	reqidmiddleware "github.com/Chethan77667/Result-BBHC/pkg/middleware/requestid"
	"github.com/Chethan77667/Result-BBHC/pkg/storage"
)

// @title Result BBHC API
// @version 1.0.0
// @description Semester result sheet processing and reconciliation
// @BasePath /
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	store, err := storage.NewLocalStorage(cfg.Files.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init storage", "error", err)
	}

	metricsSvc := service.NewMetricsService()

	var cacheSvc *service.CacheService
	if cfg.Cache.Enabled {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		} else {
			cacheRepo := repository.NewCacheRepository(redisClient, logr)
			cacheSvc = service.NewCacheService(cacheRepo, metricsSvc, cfg.Cache.TTL, logr, true)
			defer cacheRepo.Close() //nolint:errcheck
		}
	}

	fileRepo := repository.NewResultFileRepository(db)

	resultSvc := service.NewResultService(fileRepo, store, nil, cacheSvc, metricsSvc, logr)
	queue := jobs.NewQueue("workbooks", resultSvc.ProcessJob, jobs.QueueConfig{
		Workers:    cfg.Worker.Concurrency,
		MaxRetries: cfg.Worker.MaxRetries,
		RetryDelay: cfg.Worker.RetryDelay,
		Logger:     logr,
	})
	resultSvc.AttachQueue(queue)
	reconcileSvc := service.NewReconcileService(resultSvc, fileRepo, store, cacheSvc, metricsSvc, logr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	queue.Start(ctx)
	defer queue.Stop()

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	resultHandler := handler.NewResultHandler(resultSvc, cfg.Files.MaxUploadBytes)
	reconcileHandler := handler.NewReconcileHandler(reconcileSvc, cfg.Files.MaxUploadBytes)

	api := r.Group(cfg.APIPrefix)
	{
		api.POST("/results/upload", resultHandler.Upload)
		api.GET("/results", resultHandler.List)
		api.GET("/results/:filename", resultHandler.Get)
		api.GET("/results/:filename/export", resultHandler.Export)
		api.POST("/results/:filename/reconcile", reconcileHandler.Reconcile)
		api.GET("/results/:filename/audit", reconcileHandler.Audit)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
