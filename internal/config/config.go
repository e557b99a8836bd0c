package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"panel-trends/internal/analytics"
	"panel-trends/internal/logging"
)

// Telemetry source identifiers.
const (
	SourcePostgres = "postgres"
	SourceHTTP     = "http"
)

// Config materialises application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logging   logging.Config  `mapstructure:"logging"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Analytics AnalyticsConfig `mapstructure:"analytics"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Watch     WatchConfig     `mapstructure:"watch"`
	Alerting  AlertingConfig  `mapstructure:"alerting"`
	Export    ExportConfig    `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsPath  string        `mapstructure:"migrations_path"`
}

// TelemetryConfig selects and tunes the telemetry reader.
type TelemetryConfig struct {
	Source         string        `mapstructure:"source"`
	BaseURL        string        `mapstructure:"base_url"`
	APIToken       string        `mapstructure:"api_token"`
	UserAgent      string        `mapstructure:"user_agent"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	MaxWindowDays  int           `mapstructure:"max_window_days"`
	MaxBodyBytes   int64         `mapstructure:"max_body_bytes"`
}

// AnalyticsConfig carries analyzer thresholds and request defaults.
type AnalyticsConfig struct {
	DefaultDays         int           `mapstructure:"default_days"`
	ImpactDaysBefore    int           `mapstructure:"impact_days_before"`
	ImpactDaysAfter     int           `mapstructure:"impact_days_after"`
	TimeseriesInterval  string        `mapstructure:"timeseries_interval"`
	TimeseriesLimit     int           `mapstructure:"timeseries_limit"`
	DecayDecline        float64       `mapstructure:"decay_decline_threshold"`
	DecayImprove        float64       `mapstructure:"decay_improve_threshold"`
	DustTrend           float64       `mapstructure:"dust_trend_threshold"`
	DustDropFraction    float64       `mapstructure:"dust_drop_fraction"`
	DustDropMaxGap      time.Duration `mapstructure:"dust_drop_max_gap"`
	MinCorrelation      int           `mapstructure:"min_correlation_samples"`
	StrongCorrelation   float64       `mapstructure:"strong_correlation"`
	ModerateCorrelation float64       `mapstructure:"moderate_correlation"`
}

// HTTPConfig governs the query API listener.
type HTTPConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// WatchConfig governs the maintenance suggestion sweep.
type WatchConfig struct {
	Interval        time.Duration `mapstructure:"interval"`
	AlignToBucket   bool          `mapstructure:"align_to_bucket"`
	StartupDelay    time.Duration `mapstructure:"startup_delay"`
	RunImmediately  bool          `mapstructure:"run_immediately"`
	AdvisoryLockKey int64         `mapstructure:"advisory_lock_key"`
	WindowDays      int           `mapstructure:"window_days"`
	Panels          []string      `mapstructure:"panels"`
}

// AlertingConfig defines where maintenance suggestions go.
type AlertingConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
}

// TelegramConfig describes the Telegram channel.
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	APIBase  string `mapstructure:"api_base"`
}

// KafkaConfig describes the maintenance workflow topic.
type KafkaConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Brokers      []string      `mapstructure:"brokers"`
	Topic        string        `mapstructure:"topic"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("PANELTRENDS")
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
	v.SetDefault("app.name", "paneltrends")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.migrations_path", "migrations")

	v.SetDefault("telemetry.source", SourcePostgres)
	v.SetDefault("telemetry.request_timeout", "10s")
	v.SetDefault("telemetry.user_agent", "paneltrends/1.0")
	v.SetDefault("telemetry.max_window_days", 365)
	v.SetDefault("telemetry.max_body_bytes", 32<<20)

	defaults := analytics.DefaultThresholds()
	v.SetDefault("analytics.default_days", 30)
	v.SetDefault("analytics.impact_days_before", 7)
	v.SetDefault("analytics.impact_days_after", 7)
	v.SetDefault("analytics.timeseries_interval", "hour")
	v.SetDefault("analytics.timeseries_limit", 48)
	v.SetDefault("analytics.decay_decline_threshold", defaults.DecayDeclineThreshold)
	v.SetDefault("analytics.decay_improve_threshold", defaults.DecayImproveThreshold)
	v.SetDefault("analytics.dust_trend_threshold", defaults.DustTrendThreshold)
	v.SetDefault("analytics.dust_drop_fraction", defaults.DustDropFraction)
	v.SetDefault("analytics.dust_drop_max_gap", defaults.DustDropMaxGap.String())
	v.SetDefault("analytics.min_correlation_samples", defaults.MinCorrelationSamples)
	v.SetDefault("analytics.strong_correlation", defaults.StrongCorrelation)
	v.SetDefault("analytics.moderate_correlation", defaults.ModerateCorrelation)

	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.read_timeout", "15s")
	v.SetDefault("http.write_timeout", "30s")
	v.SetDefault("http.shutdown_timeout", "10s")

	v.SetDefault("watch.interval", "1h")
	v.SetDefault("watch.align_to_bucket", true)
	v.SetDefault("watch.startup_delay", "0s")
	v.SetDefault("watch.run_immediately", true)
	v.SetDefault("watch.advisory_lock_key", int64(0x70747264))
	v.SetDefault("watch.window_days", 3)
	v.SetDefault("watch.panels", []string{})

	v.SetDefault("alerting.enabled", false)
	v.SetDefault("alerting.telegram.enabled", false)
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")
	v.SetDefault("alerting.kafka.enabled", false)
	v.SetDefault("alerting.kafka.topic", "maintenance.suggestions")
	v.SetDefault("alerting.kafka.write_timeout", "10s")

	v.SetDefault("export.max_data_points", 5000)
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

// Thresholds converts the analytics section into analyzer tuning.
func (c AnalyticsConfig) Thresholds() analytics.Thresholds {
	return analytics.Thresholds{
		DecayDeclineThreshold: c.DecayDecline,
		DecayImproveThreshold: c.DecayImprove,
		DustTrendThreshold:    c.DustTrend,
		DustDropFraction:      c.DustDropFraction,
		DustDropMaxGap:        c.DustDropMaxGap,
		MinCorrelationSamples: c.MinCorrelation,
		StrongCorrelation:     c.StrongCorrelation,
		ModerateCorrelation:   c.ModerateCorrelation,
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}
	switch c.Telemetry.Source {
	case SourcePostgres:
	case SourceHTTP:
		if c.Telemetry.BaseURL == "" {
			return fmt.Errorf("telemetry.base_url is required when telemetry.source is http")
		}
	default:
		return fmt.Errorf("telemetry.source must be %q or %q", SourcePostgres, SourceHTTP)
	}
	if c.Telemetry.MaxWindowDays <= 0 {
		return fmt.Errorf("telemetry.max_window_days must be greater than zero")
	}
	if c.Telemetry.MaxBodyBytes < 0 {
		return fmt.Errorf("telemetry.max_body_bytes cannot be negative")
	}
	if c.Analytics.DefaultDays <= 0 || c.Analytics.DefaultDays > c.Telemetry.MaxWindowDays {
		return fmt.Errorf("analytics.default_days must be within (0, telemetry.max_window_days]")
	}
	if c.Analytics.ImpactDaysBefore <= 0 || c.Analytics.ImpactDaysAfter <= 0 {
		return fmt.Errorf("analytics impact days must be greater than zero")
	}
	if c.Analytics.TimeseriesLimit <= 0 {
		return fmt.Errorf("analytics.timeseries_limit must be greater than zero")
	}
	if _, err := ParseInterval(c.Analytics.TimeseriesInterval); err != nil {
		return fmt.Errorf("analytics.timeseries_interval: %w", err)
	}
	if err := c.Analytics.Thresholds().Validate(); err != nil {
		return fmt.Errorf("analytics thresholds: %w", err)
	}
	if c.Watch.Interval <= 0 {
		return fmt.Errorf("watch.interval must be greater than zero")
	}
	if c.Watch.WindowDays <= 0 {
		return fmt.Errorf("watch.window_days must be greater than zero")
	}
	if c.Alerting.Telegram.Enabled {
		if c.Alerting.Telegram.BotToken == "" {
			return fmt.Errorf("alerting.telegram.bot_token is required")
		}
		if c.Alerting.Telegram.ChatID == "" {
			return fmt.Errorf("alerting.telegram.chat_id is required")
		}
	}
	if c.Alerting.Kafka.Enabled {
		if len(c.Alerting.Kafka.Brokers) == 0 {
			return fmt.Errorf("alerting.kafka.brokers is required")
		}
		if c.Alerting.Kafka.Topic == "" {
			return fmt.Errorf("alerting.kafka.topic is required")
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

// ParseInterval maps "hour", "day" or a Go duration to a bucket width.
func ParseInterval(s string) (time.Duration, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "hour", "hourly":
		return time.Hour, nil
	case "day", "daily":
		return 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid interval %q", s)
	}
	if d <= 0 {
		return 0, fmt.Errorf("interval must be positive")
	}
	return d, nil
}
