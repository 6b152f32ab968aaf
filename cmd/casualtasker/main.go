package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"casual-tasker/internal/bot"
	"casual-tasker/internal/cache"
	"casual-tasker/internal/config"
	"casual-tasker/internal/logging"
	"casual-tasker/internal/repository"
	"casual-tasker/internal/service"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, logOut, err := logging.Init(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		log.Fatalf("logging: %v", err)
	}

	db, err := repository.NewDB(repository.Options{
		Driver:    cfg.DatabaseDriver,
		DSN:       cfg.DatabaseURL,
		LogWriter: logOut,
	})
	if err != nil {
		fatal(logger, "open database", err)
	}
	sqlDB, err := db.DB()
	if err == nil {
		defer sqlDB.Close()
	}

	fallback := repository.NewCategoryFallback(db)
	categoryStore := repository.NewCategoryStore(db, logger, fallback)
	taskStore := repository.NewTaskStore(db, logger, fallback)
	if err := repository.Seed(ctx, categoryStore, taskStore, fallback, logger); err != nil {
		fatal(logger, "seed database", err)
	}

	data, err := cache.NewDataRepository(ctx, categoryStore, taskStore, fallback, logger)
	if err != nil {
		fatal(logger, "load data", err)
	}
	defer data.Close()

	telegramBot, err := bot.New(cfg.TelegramToken, cfg.AllowedChatID, bot.Services{
		Categories: service.NewCategoryService(data.Categories),
		Tasks:      service.NewTaskService(data.Tasks),
		Reports:    service.NewReportService(data.Tasks, data.Categories),
		Data:       data,
	}, logger)
	if err != nil {
		fatal(logger, "create bot", err)
	}

	scheduler := service.NewSchedulerService(time.Local, logger)
	if _, err := scheduler.ScheduleInterval(cfg.ResyncInterval, func() {
		jobCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		if err := data.UpdateFromDB(jobCtx); err != nil {
			logger.Error("resync from database", "error", err)
		}
	}); err != nil {
		fatal(logger, "schedule resync", err)
	}
	if cfg.ReportTime != "" {
		if _, err := scheduler.ScheduleDaily(cfg.ReportTime, func() {
			jobCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			defer cancel()
			if err := telegramBot.SendReport(jobCtx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("daily report", "error", err)
			}
		}); err != nil {
			fatal(logger, "schedule report", err)
		}
	}
	scheduler.Start()
	defer scheduler.Stop()

	logger.Info("casual tasker started", "driver", cfg.DatabaseDriver, "resync", cfg.ResyncInterval)
	if err := telegramBot.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("bot stopped with error", "error", err)
		return
	}
	logger.Info("shutdown complete")
}

func fatal(logger *slog.Logger, msg string, err error) {
	logger.Error(msg, "error", err)
	os.Exit(1)
}
