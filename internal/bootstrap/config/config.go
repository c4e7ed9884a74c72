package config

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"disasterwatch/internal/bootstrap/logging"
	"disasterwatch/internal/errs"
)

type Config struct {
	App      AppConfig      `mapstructure:"app"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Database DatabaseConfig `mapstructure:"database"`
	Cache    CacheConfig    `mapstructure:"cache"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Bluesky  BlueskyConfig  `mapstructure:"bluesky"`
	Events   EventsConfig   `mapstructure:"events"`
}

type AppConfig struct {
	Name      string `mapstructure:"name"`
	Env       string `mapstructure:"env"`
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
}

type HTTPConfig struct {
	Port               int           `mapstructure:"port"`
	ReadTimeout        time.Duration `mapstructure:"read_timeout"`
	WriteTimeout       time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout    time.Duration `mapstructure:"shutdown_timeout"`
	MaxBodyBytes       int64         `mapstructure:"max_body_bytes"`
	AllowedOrigins     []string      `mapstructure:"allowed_origins"`
	RateLimitPerSecond float64       `mapstructure:"rate_limit_per_second"`
	RateLimitBurst     int           `mapstructure:"rate_limit_burst"`
	// TrustProxy takes the client address from X-Forwarded-For / X-Real-IP.
	// Only enable it behind a proxy that sets those headers.
	TrustProxy bool `mapstructure:"trust_proxy"`
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type CacheConfig struct {
	DefaultTTL time.Duration `mapstructure:"default_ttl"`
}

type LLMConfig struct {
	APIKey  string        `mapstructure:"api_key"`
	BaseURL string        `mapstructure:"base_url"`
	Model   string        `mapstructure:"model"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type BlueskyConfig struct {
	Host         string        `mapstructure:"host"`
	Username     string        `mapstructure:"username"`
	Password     string        `mapstructure:"password"`
	PageSize     int           `mapstructure:"page_size"`
	Timeout      time.Duration `mapstructure:"timeout"`
	SessionReuse bool          `mapstructure:"session_reuse"`
	SessionTTL   time.Duration `mapstructure:"session_ttl"`
}

type EventsConfig struct {
	NATSURL     string `mapstructure:"nats_url"`
	NATSSubject string `mapstructure:"nats_subject"`
}

// legacyEnv maps config keys to the variable names the service historically read.
var legacyEnv = map[string]string{
	"http.port":        "PORT",
	"database.dsn":     "DATABASE_URL",
	"llm.api_key":      "GEMINI_API_KEY",
	"bluesky.username": "BLUE_SKY_APP_USERNAME",
	"bluesky.password": "BLUE_SKY_APP_PASSWORD",
}

func Load(ctx context.Context, configFile string) (Config, error) {
	if ctx == nil {
		return Config{}, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return Config{}, errs.Wrap(err, "check context")
	}

	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.config"))

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, errs.Wrap(err, "load .env")
	}

	v, err := newViper(logCtx, configFile)
	if err != nil {
		return Config{}, err
	}

	cfg, err := decode(v)
	if err != nil {
		return Config{}, err
	}

	logging.Info(
		logCtx,
		"config loaded",
		slog.String("app", cfg.App.Name),
		slog.String("env", cfg.App.Env),
		slog.String("database_driver", cfg.Database.Driver),
		slog.Int("http_port", cfg.HTTP.Port),
		slog.String("llm_model", cfg.LLM.Model),
		slog.Bool("bluesky_session_reuse", cfg.Bluesky.SessionReuse),
	)

	return cfg, nil
}

// Watch re-reads configFile whenever it changes and hands the result to onChange.
// It is a no-op when no config file is in use.
func Watch(ctx context.Context, configFile string, onChange func(Config)) error {
	if strings.TrimSpace(configFile) == "" || onChange == nil {
		return nil
	}

	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.config"))

	v, err := newViper(logCtx, configFile)
	if err != nil {
		return err
	}
	used := v.ConfigFileUsed()
	if used == "" {
		return nil
	}
	if _, err := os.Stat(used); err != nil {
		return nil
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		cfg, err := decode(v)
		if err != nil {
			logging.Warn(logCtx, "config reload rejected", slog.String("path", e.Name), slog.Any("err", errs.Loggable(err)))
			return
		}
		logging.Info(logCtx, "config reloaded", slog.String("path", e.Name))
		onChange(cfg)
	})
	v.WatchConfig()
	return nil
}

func newViper(ctx context.Context, configFile string) (*viper.Viper, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("DW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, legacy := range legacyEnv {
		primary := "DW_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, primary, legacy); err != nil {
			return nil, errs.Wrapf(err, "bind env %s", key)
		}
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist) {
			logging.Warn(ctx, "config file not found, fallback to defaults and env", slog.String("config_file", configFile))
		} else {
			return nil, errs.Wrap(err, "read config")
		}
	} else {
		logging.Info(ctx, "using config file", slog.String("path", v.ConfigFileUsed()))
	}

	return v, nil
}

func decode(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errs.Wrap(err, "unmarshal config")
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if strings.TrimSpace(c.Database.DSN) == "" {
		return errs.Mark(errs.ErrConfiguration, nil, "database.dsn is required")
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return errs.Mark(errs.ErrConfiguration, nil, "http.port must be between 1 and 65535")
	}
	if c.Cache.DefaultTTL <= 0 {
		return errs.Mark(errs.ErrConfiguration, nil, "cache.default_ttl must be positive")
	}
	if c.Bluesky.PageSize <= 0 || c.Bluesky.PageSize > 100 {
		return errs.Mark(errs.ErrConfiguration, nil, "bluesky.page_size must be between 1 and 100")
	}
	if c.Bluesky.SessionReuse && c.Bluesky.SessionTTL <= 0 {
		return errs.Mark(errs.ErrConfiguration, nil, "bluesky.session_ttl must be positive when session reuse is on")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "disasterwatch")
	v.SetDefault("app.env", "local")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.log_format", "text")

	v.SetDefault("http.port", 3000)
	v.SetDefault("http.read_timeout", "15s")
	v.SetDefault("http.write_timeout", "60s")
	v.SetDefault("http.shutdown_timeout", "10s")
	v.SetDefault("http.max_body_bytes", 10<<20)
	v.SetDefault("http.allowed_origins", []string{"*"})
	v.SetDefault("http.rate_limit_per_second", 0)
	v.SetDefault("http.rate_limit_burst", 20)
	v.SetDefault("http.trust_proxy", false)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", ".data/disasterwatch.sqlite")

	v.SetDefault("cache.default_ttl", "60m")

	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.base_url", "https://generativelanguage.googleapis.com/v1beta/openai/")
	v.SetDefault("llm.model", "gemini-2.5-flash-lite")
	v.SetDefault("llm.timeout", "30s")

	v.SetDefault("bluesky.host", "https://bsky.social")
	v.SetDefault("bluesky.username", "")
	v.SetDefault("bluesky.password", "")
	v.SetDefault("bluesky.page_size", 20)
	v.SetDefault("bluesky.timeout", "15s")
	v.SetDefault("bluesky.session_reuse", false)
	v.SetDefault("bluesky.session_ttl", "90m")

	v.SetDefault("events.nats_url", "")
	v.SetDefault("events.nats_subject", "disasterwatch.events")
}
