package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:           "tgmediabot",
		Short:         "Telegram bot that downloads media by link, searches tracks and recognises songs",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), configPath)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to config file (yaml, json or toml)")
	return cmd
}

func run(ctx context.Context, configPath string) error {
	// .env необязателен, переменные окружения могут быть заданы снаружи
	_ = godotenv.Load()

	config, err := LoadConfig(configPath)
	if err != nil {
		logrus.Errorf("Ошибка конфигурации: %v", err)
		return err
	}
	logger := NewLogger(config.Log)

	storage, err := NewSQLiteStorage(config.Storage.Path, logger)
	if err != nil {
		logger.Errorf("Ошибка инициализации хранилища: %v", err)
		return err
	}
	defer storage.Close()

	sessions, closeSessions, err := newSessionStore(ctx, config.Session, logger)
	if err != nil {
		logger.Errorf("Ошибка инициализации сессий: %v", err)
		return err
	}
	defer closeSessions()

	downloader := NewYTDLPDownloader(config.Downloader, logger)
	metrics := NewMetrics()

	deps := ServiceDeps{
		Downloader: downloader,
		Searcher:   downloader,
		Previewer:  NewYouTubePreviewer(logger),
		Storage:    storage,
		Sessions:   sessions,
		Classifier: NewLinkClassifier(config.AllowedDomains),
		Metrics:    metrics,
		Logger:     logger,
	}
	if config.Recognizer.Enabled {
		deps.Converter = NewFFmpegConverter(config.Recognizer.FFmpeg, logger)
		deps.Recognizer = NewACRCloudRecognizer(config.Recognizer, logger)
	}

	telegramBot, err := NewTelegramBot(config.Telegram, logger)
	if err != nil {
		logger.Errorf("Ошибка инициализации Telegram-бота: %v", err)
		return err
	}
	deps.Telegram = telegramBot

	service := NewDownloadService(deps, ServiceOptions{
		Workers:       config.Downloader.Workers,
		SearchEnabled: config.Search.Enabled,
		SearchLimit:   config.Search.Limit,
		MaxUploadSize: config.Downloader.MaxUploadSize,
		MaxDuration:   config.Downloader.MaxDuration,
		SampleSeconds: config.Recognizer.SampleSeconds,
	})

	// Запускаем очистку
	sweepDirs := []string{os.TempDir()}
	if dir := config.Downloader.OutputDir; dir != "" && dir != os.TempDir() {
		sweepDirs = append(sweepDirs, dir)
	}
	go storage.CleanupWorker(ctx, config.Storage.CleanupInterval, config.Storage.Retention, sweepDirs...)

	server := NewHTTPServer(config.HTTP.Address, metrics, logger)
	go server.Start()

	logger.Println("Бот запущен")
	telegramBot.Start(ctx, service)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Printf("Ошибка остановки HTTP-сервера: %v", err)
	}
	logger.Println("Бот остановлен")
	return nil
}

func newSessionStore(ctx context.Context, cfg SessionConfig, logger *logrus.Logger) (SessionStore, func(), error) {
	switch cfg.Backend {
	case "redis":
		store, err := NewRedisSessionStore(ctx, cfg.Redis, cfg.TTL)
		if err != nil {
			return nil, nil, err
		}
		logger.Printf("Сессии хранятся в Redis %s", cfg.Redis.Addr)
		return store, func() { _ = store.Close() }, nil
	case "memory", "":
		store := NewMemorySessionStore(cfg.TTL)
		if cfg.TTL > 0 {
			go store.SweepWorker(ctx, cfg.TTL)
		}
		return store, func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown session backend %q", cfg.Backend)
	}
}
