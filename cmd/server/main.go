package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"

	"github.com/nutriplan/nutriplan-backend/internal/config"
	"github.com/nutriplan/nutriplan-backend/internal/database"
	"github.com/nutriplan/nutriplan-backend/internal/membros"
	"github.com/nutriplan/nutriplan-backend/internal/notify"
	"github.com/nutriplan/nutriplan-backend/internal/openai"
	"github.com/nutriplan/nutriplan-backend/internal/repository"
	"github.com/nutriplan/nutriplan-backend/internal/server"
	"github.com/nutriplan/nutriplan-backend/internal/service"
	"github.com/nutriplan/nutriplan-backend/internal/storage"
	"github.com/nutriplan/nutriplan-backend/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logr := logger.New(cfg.LogLevel)

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("database connect: %v", err)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := database.Migrate(ctx, db); err != nil {
		log.Fatalf("database migrate: %v", err)
	}

	userRepo := repository.NewUserRepository(db)
	dietRepo := repository.NewDietRepository(db)

	membrosClient := membros.NewClient(cfg.MembrosBaseURL, cfg.MembrosAPIKey, cfg.RequestTimeout, logr)
	openaiClient := openai.NewClient(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.RequestTimeout, logr)
	generationService := service.NewGenerationService(logr, openaiClient, cfg.GenerationAttempts)

	var notifier service.Notifier = notify.Nop{}
	if cfg.AlertsEnabled() {
		telegramNotifier, err := notify.NewTelegramNotifier(cfg.TelegramBotToken, cfg.TelegramAdminChats, logr)
		if err != nil {
			log.Fatalf("telegram notifier: %v", err)
		}
		notifier = telegramNotifier
	}

	var archiver service.Archiver
	if cfg.ArchiveEnabled() {
		uploader, err := storage.NewUploader(storage.Config{
			Endpoint:      cfg.S3Endpoint,
			Region:        cfg.S3Region,
			AccessKey:     cfg.S3AccessKey,
			SecretKey:     cfg.S3SecretKey,
			Bucket:        cfg.S3Bucket,
			PublicBaseURL: cfg.S3PublicBaseURL,
			UsePathStyle:  cfg.S3UsePathStyle,
			Prefix:        cfg.S3Prefix,
		})
		if err != nil {
			log.Fatalf("storage uploader: %v", err)
		}
		archiver = uploader
	}

	checkoutService := service.NewCheckoutService(cfg, logr, dietRepo, membrosClient, generationService, notifier, archiver)

	srv := server.NewServer(cfg.ListenAddr, logr, userRepo, checkoutService)
	if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logr.Error("server stopped", "err", err)
	}
}
