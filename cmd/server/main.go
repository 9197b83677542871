package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/koopa0/system-design/color-duel/internal/config"
	"github.com/koopa0/system-design/color-duel/internal/game"
	"github.com/koopa0/system-design/color-duel/internal/publish"
	"github.com/koopa0/system-design/color-duel/internal/transport"
)

func main() {
	// 解析命令行參數
	var (
		configPath = flag.String("config", "", "配置檔路徑 (YAML)")
		port       = flag.Int("port", 8080, "服務器端口")
		logLevel   = flag.String("log-level", "info", "日誌級別 (debug, info, warn, error)")
		logFormat  = flag.String("log-format", "text", "日誌格式 (text, json)")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "載入配置失敗: %v\n", err)
		os.Exit(1)
	}

	// 只有明確指定的參數覆蓋配置檔與環境變數
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "port":
			cfg.Server.Port = *port
		case "log-level":
			cfg.Log.Level = *logLevel
		case "log-format":
			cfg.Log.Format = *logFormat
		}
	})
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "配置無效: %v\n", err)
		os.Exit(1)
	}

	logger := setupLogger(cfg.Log.Level, cfg.Log.Format)

	if err := run(cfg, logger); err != nil {
		logger.Error("服務器異常結束", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	// 連線表先建立：它同時是房間事件的接收者與 Hub 的投遞目標
	outbox := transport.NewOutbox(logger)

	notifiers := []game.Notifier{outbox}

	var publisher *publish.Publisher
	if cfg.NATS.URL != "" {
		p, err := publish.Connect(cfg.NATS.URL, cfg.NATS.Subject, logger)
		if err != nil {
			return err
		}
		publisher = p
		notifiers = append(notifiers, publisher)
		logger.Info("對局結果發佈已啟用", "url", cfg.NATS.URL, "subject", cfg.NATS.Subject)
	}

	registry := game.NewRegistry(logger, game.MultiNotifier(notifiers...), game.RegistryOptions{
		Session: game.Options{
			DurationSeconds: cfg.Game.DurationSeconds,
			TickInterval:    cfg.Game.TickInterval,
		},
		MaxRooms:          cfg.Game.MaxRooms,
		IdleTimeout:       cfg.Game.RoomIdleTimeout,
		FinishedRetention: cfg.Game.FinishedRetention,
		CleanupInterval:   cfg.Game.CleanupInterval,
	})

	hub := transport.NewHub(registry, outbox, logger, transport.HubOptions{
		RateCapacity: cfg.RateLimit.Capacity,
		RateRefill:   cfg.RateLimit.Refill,
	})

	handler := transport.NewHandler(registry, hub, logger)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      handler.Routes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("對戰服務器啟動",
			"port", cfg.Server.Port,
			"log_level", cfg.Log.Level,
			"log_format", cfg.Log.Format)

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// 等待中斷信號
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-serverErr:
		registry.Stop()
		hub.Stop()
		if publisher != nil {
			_ = publisher.Close()
		}
		return fmt.Errorf("服務器啟動失敗: %w", err)
	case <-ctx.Done():
	}

	logger.Info("收到關閉信號，開始優雅關閉...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	// 停止接受新連接
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("服務器關閉失敗", "error", err)
	}

	// 先結束所有房間（玩家收到 game-over），再關閉連線
	registry.Stop()
	hub.Stop()

	if publisher != nil {
		if err := publisher.Close(); err != nil {
			logger.Error("關閉發佈器失敗", "error", err)
		}
	}

	logger.Info("服務器已關閉")
	return nil
}

// setupLogger 設置日誌
func setupLogger(level, format string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level:     logLevel,
		AddSource: level == "debug",
	}

	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
