package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"oil-price-watch/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Logging  logging.Config `mapstructure:"logging"`
	Endpoint EndpointConfig `mapstructure:"endpoint"`
	Monitor  MonitorConfig  `mapstructure:"monitor"`
	Database DatabaseConfig `mapstructure:"database"`
	Alerting AlertingConfig `mapstructure:"alerting"`
	Export   ExportConfig   `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// EndpointConfig covers the upstream price endpoint.
type EndpointConfig struct {
	URL            string        `mapstructure:"url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	RetryCount     int           `mapstructure:"retry_count"`
	UserAgent      string        `mapstructure:"user_agent"`
}

// MonitorConfig governs the monitoring core.
type MonitorConfig struct {
	BaseInterval      time.Duration `mapstructure:"base_interval"`
	ChangeThreshold   float64       `mapstructure:"change_threshold"`
	HistoryFile       string        `mapstructure:"history_file"`
	NoChangeThreshold int           `mapstructure:"no_change_threshold"`
	RelaxMultiplier   int           `mapstructure:"relax_multiplier"`
	StartupDelay      time.Duration `mapstructure:"startup_delay"`
	ErrorBackoff      time.Duration `mapstructure:"error_backoff"`
	AdvisoryLockKey   int64         `mapstructure:"advisory_lock_key"`
}

// DatabaseConfig encapsulates the optional PostgreSQL archive.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// AlertingConfig defines alert thresholds and routing.
type AlertingConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Cooldown time.Duration  `mapstructure:"cooldown"`
	Channels []string       `mapstructure:"channels"`
	Telegram TelegramConfig `mapstructure:"telegram"`
}

// TelegramConfig 描述 Telegram 告警参数。
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	APIBase  string `mapstructure:"api_base"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("OILWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "oilwatch")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("endpoint.url", "https://play.myfly.club/oil-prices")
	v.SetDefault("endpoint.request_timeout", "30s")
	v.SetDefault("endpoint.retry_count", 3)
	v.SetDefault("endpoint.user_agent", "oilwatch/1.0")

	v.SetDefault("monitor.base_interval", "5m")
	v.SetDefault("monitor.change_threshold", 0.01)
	v.SetDefault("monitor.history_file", "price_history.json")
	v.SetDefault("monitor.no_change_threshold", 3)
	v.SetDefault("monitor.relax_multiplier", 3)
	v.SetDefault("monitor.startup_delay", "0s")
	v.SetDefault("monitor.error_backoff", "30s")
	v.SetDefault("monitor.advisory_lock_key", int64(0x6f696c77))

	v.SetDefault("alerting.enabled", false)
	v.SetDefault("alerting.cooldown", "0s")
	v.SetDefault("alerting.channels", []string{"telegram"})
	v.SetDefault("alerting.telegram.enabled", false)
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")

	v.SetDefault("export.max_data_points", 100000)

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Endpoint.URL == "" {
		return fmt.Errorf("endpoint.url is required")
	}
	if _, err := url.ParseRequestURI(c.Endpoint.URL); err != nil {
		return fmt.Errorf("endpoint.url is not a valid URL: %w", err)
	}
	if c.Monitor.BaseInterval <= 0 {
		return fmt.Errorf("monitor.base_interval must be greater than zero")
	}
	if c.Monitor.ChangeThreshold < 0 {
		return fmt.Errorf("monitor.change_threshold cannot be negative")
	}
	if c.Monitor.HistoryFile == "" {
		return fmt.Errorf("monitor.history_file is required")
	}
	if c.Monitor.NoChangeThreshold < 1 {
		return fmt.Errorf("monitor.no_change_threshold must be at least 1")
	}
	if c.Monitor.RelaxMultiplier < 1 {
		return fmt.Errorf("monitor.relax_multiplier must be at least 1")
	}
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}
	if c.Alerting.Telegram.Enabled {
		if c.Alerting.Telegram.BotToken == "" {
			return fmt.Errorf("alerting.telegram.bot_token 必须配置")
		}
		if c.Alerting.Telegram.ChatID == "" {
			return fmt.Errorf("alerting.telegram.chat_id 必须配置")
		}
	}
	return nil
}

// ResolveMaxPoints returns either the CLI override or config default.
func (c *Config) ResolveMaxPoints(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxDataPoints
}
