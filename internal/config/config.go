package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"tradedash/internal/orderentry"
)

const envPrefix = "TRADEDASH_"

type Config struct {
	Port                  int     `yaml:"port" env:"PORT"`
	Symbol                string  `yaml:"symbol" env:"SYMBOL"`
	Source                string  `yaml:"source" env:"SOURCE"` // "binance" or "mock"
	BinanceWSURL          string  `yaml:"binance_ws_url" env:"BINANCE_WS_URL"`
	DepthLevels           int     `yaml:"depth_levels" env:"DEPTH_LEVELS"`
	DepthIntervalMs       int     `yaml:"depth_interval_ms" env:"DEPTH_INTERVAL_MS"`
	ReconnectDelaySeconds int     `yaml:"reconnect_delay_seconds" env:"RECONNECT_DELAY_SECONDS"`
	TradeHistorySize      int     `yaml:"trade_history_size" env:"TRADE_HISTORY_SIZE"`
	AvailableFunds        float64 `yaml:"available_funds" env:"AVAILABLE_FUNDS"`
	DefaultLeverage       string  `yaml:"default_leverage" env:"DEFAULT_LEVERAGE"`
	DisplayLevels         int     `yaml:"display_levels" env:"DISPLAY_LEVELS"`
	MockIntervalMs        int     `yaml:"mock_interval_ms" env:"MOCK_INTERVAL_MS"`
	MockSeed              uint64  `yaml:"mock_seed" env:"MOCK_SEED"`
	RedisURL              string  `yaml:"redis_url" env:"REDIS_URL"`
	RedisPassword         string  `yaml:"redis_password" env:"REDIS_PASSWORD"`
	SnapshotTTLSeconds    int     `yaml:"snapshot_ttl_seconds" env:"SNAPSHOT_TTL_SECONDS"`
	MetricsEnabled        bool    `yaml:"metrics_enabled" env:"METRICS_ENABLED"`
	WebDir                string  `yaml:"web_dir" env:"WEB_DIR"`
	LogLevel              string  `yaml:"log_level" env:"LOG_LEVEL"`
}

func defaults() Config {
	return Config{
		Port:                  8087,
		Symbol:                "BTCUSDT",
		Source:                "binance",
		BinanceWSURL:          "wss://stream.binance.com:9443/ws",
		DepthLevels:           20,
		DepthIntervalMs:       100,
		ReconnectDelaySeconds: 3,
		TradeHistorySize:      20,
		AvailableFunds:        10000,
		DefaultLeverage:       "10X",
		DisplayLevels:         0,
		MockIntervalMs:        500,
		SnapshotTTLSeconds:    300,
		MetricsEnabled:        true,
		WebDir:                "./web",
		LogLevel:              "info",
	}
}

// Load reads path over the defaults, applies TRADEDASH_* environment overrides and validates.
func Load(path string) (Config, error) {
	cfg := defaults()
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("parse yaml: %w", err)
	}
	return finish(cfg)
}

// LoadOrDefault is Load, except a missing file means "defaults plus environment".
func LoadOrDefault(path string) (Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return finish(defaults())
	}
	return cfg, err
}

func finish(cfg Config) (Config, error) {
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: envPrefix}); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.normalize(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validation & normalization
func (c *Config) normalize() error {
	c.Symbol = strings.ToUpper(strings.TrimSpace(c.Symbol))
	if c.Symbol == "" {
		return errors.New("symbol required")
	}
	switch strings.ToLower(c.Source) {
	case "binance", "mock":
		c.Source = strings.ToLower(c.Source)
	default:
		return errors.New(`source must be "binance" or "mock"`)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return errors.New("invalid port")
	}
	switch c.DepthLevels {
	case 5, 10, 20:
	default:
		return errors.New("depth_levels must be 5, 10 or 20")
	}
	if c.DepthIntervalMs != 100 && c.DepthIntervalMs != 1000 {
		return errors.New("depth_interval_ms must be 100 or 1000")
	}
	if c.ReconnectDelaySeconds < 1 {
		return errors.New("reconnect_delay_seconds must be >=1")
	}
	if c.TradeHistorySize < 1 {
		return errors.New("trade_history_size must be >=1")
	}
	if c.AvailableFunds <= 0 {
		return errors.New("available_funds must be >0")
	}
	c.DefaultLeverage = strings.ToUpper(strings.TrimSpace(c.DefaultLeverage))
	if !orderentry.SupportedLeverage(c.DefaultLeverage) {
		return fmt.Errorf("default_leverage must be one of %s", strings.Join(orderentry.Leverages, ", "))
	}
	if c.DisplayLevels < 0 {
		return errors.New("display_levels must be >=0")
	}
	if c.MockIntervalMs < 10 {
		return errors.New("mock_interval_ms must be >=10")
	}
	if c.SnapshotTTLSeconds < 1 {
		return errors.New("snapshot_ttl_seconds must be >=1")
	}
	return nil
}

func (c Config) ReconnectDelay() time.Duration {
	return time.Duration(c.ReconnectDelaySeconds) * time.Second
}

func (c Config) MockInterval() time.Duration {
	return time.Duration(c.MockIntervalMs) * time.Millisecond
}

func (c Config) SnapshotTTL() time.Duration {
	return time.Duration(c.SnapshotTTLSeconds) * time.Second
}

func NewLogger(level string) *slog.Logger {
	return NewLoggerTo(os.Stdout, level)
}

// NewLoggerTo writes text logs to w. The terminal UI logs to a file so it does not draw
// over its own screen.
func NewLoggerTo(w io.Writer, level string) *slog.Logger {
	lvl := slog.LevelInfo
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	}
	h := slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})
	return slog.New(h)
}
