package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/examhub/submission-service/internal/cache"
	"github.com/examhub/submission-service/internal/config"
	"github.com/examhub/submission-service/internal/handlers"
	"github.com/examhub/submission-service/internal/models"
	"github.com/examhub/submission-service/internal/repositories/postgres"
	"github.com/examhub/submission-service/internal/services"
	"github.com/examhub/submission-service/internal/utils"
	"github.com/examhub/submission-service/pkg"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		os.Exit(1)
	}

	var logger utils.Logger
	if cfg.Environment == "production" {
		logger = utils.NewDefaultLogger()
	} else {
		logger = utils.NewDevelopmentLogger()
	}

	db, err := pkg.InitDatabase(cfg)
	if err != nil {
		logger.Error("database init failed", "error", err)
		os.Exit(1)
	}

	if err := db.AutoMigrate(
		&models.Assessment{},
		&models.Question{},
		&models.QuestionPart{},
		&models.AuthoredAnswer{},
		&models.Submission{},
		&models.SubmissionAnswer{},
		&models.SubmissionAnswerEntry{},
		&models.User{},
	); err != nil {
		logger.Error("migration failed", "error", err)
		os.Exit(1)
	}

	redisClient, err := pkg.NewRedisClient(cfg)
	if err != nil {
		logger.Error("redis init failed", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	cacheService := cache.NewRedisCache(redisClient, logger.Slog())

	eventCfg := config.LoadEventConfig()
	publisher, err := eventCfg.CreateEventPublisher(logger.Slog())
	if err != nil {
		logger.Error("event publisher init failed", "error", err)
		os.Exit(1)
	}
	defer publisher.Close()

	validator := utils.NewValidator()
	repo := postgres.NewRepository(db)
	security := services.NewCasdoorSecurityService(cfg, logger)

	submissionService := services.NewSubmissionService(
		repo, security, cacheService, publisher, logger, validator, cfg)
	officializer := services.NewOfficializerService(
		repo, security, submissionService, logger, cfg)
	exporter := services.NewExportService(officializer, logger)

	sweeper := services.NewSweeper(repo, submissionService, logger, cfg)
	sweeper.Start(context.Background())
	defer sweeper.Stop()

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())

	hm := handlers.NewHandlerManager(
		submissionService, officializer, exporter, security, validator, logger)
	hm.SetupRoutes(router)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Info("server listening", "port", cfg.Port, "environment", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("shutdown failed", "error", err)
	}
}
