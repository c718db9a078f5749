package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/delivery-marketplace-api/config"
	"github.com/kendall-kelly/delivery-marketplace-api/logger"
	"github.com/kendall-kelly/delivery-marketplace-api/middleware"
	"github.com/kendall-kelly/delivery-marketplace-api/routes"
	"github.com/kendall-kelly/delivery-marketplace-api/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	appLog, err := logger.New(cfg.LogLevel, cfg.GoEnv)
	if err != nil {
		log.Fatalf("Failed to initialise logger: %v", err)
	}
	defer func() { _ = appLog.Sync() }()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	appLog.Info("starting delivery marketplace api", logger.String("env", cfg.GoEnv))

	if err := config.ConnectDatabase(); err != nil {
		appLog.Error("failed to connect to database", logger.Error(err))
		os.Exit(1)
	}
	db := config.GetDB()
	if err := config.AutoMigrate(db); err != nil {
		appLog.Error("failed to migrate database", logger.Error(err))
		os.Exit(1)
	}
	appLog.Info("database migration completed")

	deps := routes.Dependencies{
		Config:   cfg,
		Log:      appLog,
		DB:       db,
		UserInfo: services.NewAuth0Service(cfg),
	}

	deps.Auth, err = middleware.EnsureValidToken(cfg, appLog)
	if err != nil {
		appLog.Error("failed to set up token validation", logger.Error(err))
		os.Exit(1)
	}

	switch cfg.SessionBackend {
	case config.SessionBackendRedis:
		client, err := config.ConnectRedis(ctx, cfg)
		if err != nil {
			appLog.Error("failed to connect to redis", logger.Error(err))
			os.Exit(1)
		}
		defer func() { _ = client.Close() }()
		deps.Sessions = services.NewRedisSessionStore(client, cfg.SessionTTL)
	default:
		deps.Sessions = services.NewGormSessionStore(db)
	}
	appLog.Info("session store ready", logger.String("backend", cfg.SessionBackend))

	if cfg.AWSS3Bucket != "" {
		s3Service, err := services.NewS3Service(ctx, cfg)
		if err != nil {
			appLog.Error("failed to initialise S3", logger.Error(err))
			os.Exit(1)
		}
		deps.Images = s3Service
	} else {
		appLog.Warn("AWS_S3_BUCKET not set, proof image uploads are disabled")
	}

	if cfg.NotifyEmailEnabled {
		emailService, err := services.NewSESEmailService(ctx, cfg)
		if err != nil {
			appLog.Error("failed to initialise SES", logger.Error(err))
			os.Exit(1)
		}
		deps.Email = emailService
	}

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           routes.Setup(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		appLog.Info("server listening", logger.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLog.Error("server failed", logger.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	appLog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		appLog.Error("graceful shutdown failed", logger.Error(err))
	}
}
