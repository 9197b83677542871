// Package config 載入服務配置：預設值 → YAML 檔 → 環境變數。
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// EnvPrefix 環境變數前綴，例如 COLOR_DUEL_SERVER_PORT
const EnvPrefix = "COLOR_DUEL_"

// Config 整個應用的配置
type Config struct {
	Server    ServerConfig    `yaml:"server" envPrefix:"SERVER_"`
	Log       LogConfig       `yaml:"log" envPrefix:"LOG_"`
	Game      GameConfig      `yaml:"game" envPrefix:"GAME_"`
	RateLimit RateLimitConfig `yaml:"rate_limit" envPrefix:"RATE_LIMIT_"`
	NATS      NATSConfig      `yaml:"nats" envPrefix:"NATS_"`
}

// ServerConfig HTTP 服務
type ServerConfig struct {
	Port            int           `yaml:"port" env:"PORT"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" env:"IDLE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
}

// LogConfig 日誌
type LogConfig struct {
	Level  string `yaml:"level" env:"LEVEL"`   // debug, info, warn, error
	Format string `yaml:"format" env:"FORMAT"` // text, json
}

// GameConfig 對局與房間生命週期
type GameConfig struct {
	DurationSeconds   int           `yaml:"duration_seconds" env:"DURATION_SECONDS"`
	TickInterval      time.Duration `yaml:"tick_interval" env:"TICK_INTERVAL"`
	RoomIdleTimeout   time.Duration `yaml:"room_idle_timeout" env:"ROOM_IDLE_TIMEOUT"`
	FinishedRetention time.Duration `yaml:"finished_retention" env:"FINISHED_RETENTION"`
	CleanupInterval   time.Duration `yaml:"cleanup_interval" env:"CLEANUP_INTERVAL"`
	MaxRooms          int           `yaml:"max_rooms" env:"MAX_ROOMS"`
}

// RateLimitConfig 每條連線的訊息限流
type RateLimitConfig struct {
	Capacity int64 `yaml:"capacity" env:"CAPACITY"`
	Refill   int64 `yaml:"refill" env:"REFILL"` // 每秒
}

// NATSConfig 對局結果發佈，URL 為空時停用
type NATSConfig struct {
	URL     string `yaml:"url" env:"URL"`
	Subject string `yaml:"subject" env:"SUBJECT"`
}

// Default 預設配置
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Game: GameConfig{
			DurationSeconds:   120,
			TickInterval:      time.Second,
			RoomIdleTimeout:   10 * time.Minute,
			FinishedRetention: time.Minute,
			CleanupInterval:   30 * time.Second,
		},
		RateLimit: RateLimitConfig{
			Capacity: 20,
			Refill:   10,
		},
		NATS: NATSConfig{
			Subject: "color-duel.match.finished",
		},
	}
}

// Load 讀取配置，不做驗證
//
// path 為空時只使用預設值與環境變數。命令行參數覆蓋之後再呼叫 Validate。
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		// #nosec G304 - path 來自命令行參數
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// Validate 檢查配置是否合理
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port 超出範圍: %d", c.Server.Port))
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level 無效: %q", c.Log.Level))
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format 無效: %q", c.Log.Format))
	}
	if c.Game.DurationSeconds <= 0 {
		errs = append(errs, errors.New("game.duration_seconds 必須大於 0"))
	}
	if c.Game.TickInterval <= 0 {
		errs = append(errs, errors.New("game.tick_interval 必須大於 0"))
	}
	if c.Game.CleanupInterval <= 0 {
		errs = append(errs, errors.New("game.cleanup_interval 必須大於 0"))
	}
	if c.Game.FinishedRetention <= 0 {
		errs = append(errs, errors.New("game.finished_retention 必須大於 0"))
	}
	if c.Game.RoomIdleTimeout < 0 {
		errs = append(errs, errors.New("game.room_idle_timeout 不可為負"))
	}
	if c.Game.MaxRooms < 0 {
		errs = append(errs, errors.New("game.max_rooms 不可為負"))
	}
	if c.RateLimit.Capacity <= 0 || c.RateLimit.Refill <= 0 {
		errs = append(errs, errors.New("rate_limit 容量與補充速率必須大於 0"))
	}
	if c.NATS.URL != "" && c.NATS.Subject == "" {
		errs = append(errs, errors.New("nats.subject 不可為空"))
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
