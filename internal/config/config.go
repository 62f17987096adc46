package config

import (
	"errors"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// DefaultUserAgent is the default User-Agent string sent with all HTTP requests.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:147.0) Gecko/20100101 Firefox/147.0"

type Config struct {
	Email                 string `mapstructure:"email"`
	Password              string `mapstructure:"password"`
	LoginURL              string `mapstructure:"login_url"`
	PortalURL             string `mapstructure:"portal_url"`
	ListingPath           string `mapstructure:"listing_path"`
	ReturnURL             string `mapstructure:"return_url"`
	SessionCookie         string `mapstructure:"session_cookie"`
	ProxyConnectionString string `mapstructure:"proxy_connection_string"`
	ClientTimeout         string `mapstructure:"client_timeout"`   // Go duration string like "30s", "1m", etc.
	DownloadTimeout       string `mapstructure:"download_timeout"` // Applies to edition file transfers
	UserAgent             string `mapstructure:"user_agent"`
	OutputDir             string `mapstructure:"output_dir"`
	LogLevel              string `mapstructure:"log_level"`

	// LinkLookup picks the download link matching strategy: "label" or "selector".
	LinkLookup    string            `mapstructure:"link_lookup"`
	LinkSelectors map[string]string `mapstructure:"link_selectors"` // format name -> CSS selector

	Cache struct {
		Provider      string `mapstructure:"provider"` // "file", "memory" or "redis"
		Size          int    `mapstructure:"size"`     // Maximum number of checksums kept
		TTL           string `mapstructure:"ttl"`      // Go duration string like "1h", "24h", etc.
		RedisAddress  string `mapstructure:"redis_address"`
		RedisPassword string `mapstructure:"redis_password"`
		RedisDB       int    `mapstructure:"redis_db"`
		Path          string `mapstructure:"path"` // Snapshot of the file provider, defaults to the user cache directory
	} `mapstructure:"cache"`
	Metrics struct {
		Textfile string `mapstructure:"textfile"` // node_exporter textfile collector target
	} `mapstructure:"metrics"`
	Sentry struct {
		DSN         string `mapstructure:"dsn"`
		Environment string `mapstructure:"environment"`
	} `mapstructure:"sentry"`
}

var (
	globalConfig *Config
	baseLogger   zerolog.Logger
	logger       zerolog.Logger
)

func init() {
	// Logs go to stderr, stdout carries the command's output
	baseLogger = newConsoleLogger(os.Stderr)
	logger = baseLogger
}

// newConsoleLogger builds a human-readable logger on w, coloured only when w is a terminal
func newConsoleLogger(w io.Writer) zerolog.Logger {
	noColor := true
	if f, ok := w.(*os.File); ok {
		noColor = !isatty.IsTerminal(f.Fd())
	}
	return zerolog.New(zerolog.ConsoleWriter{
		Out:     w,
		NoColor: noColor,
	}).With().Timestamp().Logger()
}

// SetLogOutput redirects log lines to w, keeping the current level.
// A previous run identifier is dropped.
func SetLogOutput(w io.Writer) {
	baseLogger = newConsoleLogger(w).Level(baseLogger.GetLevel())
	logger = baseLogger
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("email", "")
	v.SetDefault("password", "")
	v.SetDefault("login_url", "https://meine.zeit.de/anmelden")
	v.SetDefault("portal_url", "https://epaper.zeit.de")
	v.SetDefault("listing_path", "/abo/diezeit")
	v.SetDefault("return_url", "https://www.zeit.de/index")
	v.SetDefault("session_cookie", "zeit_sso_201501")
	v.SetDefault("client_timeout", "30s")
	v.SetDefault("download_timeout", "10m")
	v.SetDefault("output_dir", ".")
	v.SetDefault("log_level", "info")
	v.SetDefault("link_lookup", "label")
	v.SetDefault("cache.provider", "file")
	v.SetDefault("cache.size", 64)
	v.SetDefault("cache.ttl", "720h")
	v.SetDefault("cache.redis_address", "")
	v.SetDefault("cache.redis_password", "")
	v.SetDefault("cache.redis_db", 0)
	v.SetDefault("cache.path", "")
	v.SetDefault("metrics.textfile", "")
	v.SetDefault("sentry.dsn", "")
	v.SetDefault("sentry.environment", "")
}

// LoadConfig reads config.yaml (from ".", "./config" or configFile when set),
// APP_* environment variables and, when flags is non-nil, command-line flags.
// Flags use dashes where config keys use underscores.
func LoadConfig(configFile string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Environment variable support
	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Add specific environment variable for log level
	_ = v.BindEnv("log_level", "LOG_LEVEL")

	if flags != nil {
		var bindErr error
		flags.VisitAll(func(f *pflag.Flag) {
			key := strings.ReplaceAll(f.Name, "-", "_")
			if err := v.BindPFlag(key, f); err != nil {
				bindErr = errors.Join(bindErr, err)
			}
		})
		if bindErr != nil {
			return nil, bindErr
		}
	}

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || configFile != "" {
			return nil, err
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}
	if config.UserAgent == "" {
		config.UserAgent = DefaultUserAgent
	}

	return &config, nil
}

// Setup installs cfg as the process-wide configuration and applies its log level.
func Setup(cfg *Config) {
	// Parse and set log level from config
	level := zerolog.InfoLevel // default
	if cfg.LogLevel != "" {
		if parsedLevel, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
			level = parsedLevel
		} else {
			logger.Warn().Str("invalid_level", cfg.LogLevel).Msg("Invalid log level, using default 'info'")
		}
	}

	// Set the global log level
	zerolog.SetGlobalLevel(level)

	// Update logger with the configured level
	baseLogger = baseLogger.Level(level)
	logger = baseLogger

	logger.Debug().Str("level", level.String()).Msg("Logging configured")
	globalConfig = cfg
}

func GetConfig() *Config {
	return globalConfig
}

func GetUserAgent() string {
	if globalConfig != nil && globalConfig.UserAgent != "" {
		return globalConfig.UserAgent
	}

	return DefaultUserAgent
}

func GetLogger() zerolog.Logger {
	return logger
}

// WithRunID tags every subsequent log line with the given run identifier,
// replacing the identifier of a previous run.
func WithRunID(runID string) {
	logger = baseLogger.With().Str("run_id", runID).Logger()
}
