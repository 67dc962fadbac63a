package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/v0xg/lookaround/internal/browser"
	"go.uber.org/zap/zapcore"
)

// EnvPrefix prefixes every environment override, e.g. LOOKAROUND_BROWSER_ENGINE
const EnvPrefix = "LOOKAROUND"

// Config is the runtime configuration of the command line tool
type Config struct {
	Logger   LoggerConfig   `mapstructure:"logger" yaml:"logger"`
	Browser  BrowserConfig  `mapstructure:"browser" yaml:"browser"`
	Scraper  ScraperConfig  `mapstructure:"scraper" yaml:"scraper"`
	Handlers HandlersConfig `mapstructure:"handlers" yaml:"handlers"`
	Metrics  MetricsConfig  `mapstructure:"metrics" yaml:"metrics"`
}

// LoggerConfig holds the logging configuration
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig names the console colour of each level
type ColorConfig struct {
	Debug string `mapstructure:"debug" yaml:"debug"`
	Info  string `mapstructure:"info" yaml:"info"`
	Warn  string `mapstructure:"warn" yaml:"warn"`
	Error string `mapstructure:"error" yaml:"error"`
}

// BrowserConfig selects and tunes the browser engine
type BrowserConfig struct {
	Engine            string        `mapstructure:"engine" yaml:"engine"`
	Headless          bool          `mapstructure:"headless" yaml:"headless"`
	Bin               string        `mapstructure:"bin" yaml:"bin"`
	UserDataDir       string        `mapstructure:"user_data_dir" yaml:"user_data_dir"`
	Width             int           `mapstructure:"width" yaml:"width"`
	Height            int           `mapstructure:"height" yaml:"height"`
	Args              []string      `mapstructure:"args" yaml:"args"`
	ActionTimeout     time.Duration `mapstructure:"action_timeout" yaml:"action_timeout"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	UserAgent         string        `mapstructure:"user_agent" yaml:"user_agent"`
}

// ScraperConfig tunes the action interpreter
type ScraperConfig struct {
	// MaxClickRounds caps repeated clicks for nodes without max_rounds.
	// Zero means unlimited.
	MaxClickRounds     int           `mapstructure:"max_click_rounds" yaml:"max_click_rounds"`
	CookiePollInterval time.Duration `mapstructure:"cookie_poll_interval" yaml:"cookie_poll_interval"`
}

type HandlersConfig struct {
	Print    PrintConfig    `mapstructure:"print" yaml:"print"`
	Save     SaveConfig     `mapstructure:"save" yaml:"save"`
	Snapshot SnapshotConfig `mapstructure:"snapshot" yaml:"snapshot"`
	Assess   AssessConfig   `mapstructure:"assess" yaml:"assess"`
}

type PrintConfig struct {
	Chars int `mapstructure:"chars" yaml:"chars"`
}

type SaveConfig struct {
	Dir        string `mapstructure:"dir" yaml:"dir"`
	BucketSize int    `mapstructure:"bucket_size" yaml:"bucket_size"`
}

type SnapshotConfig struct {
	FrameDelay time.Duration `mapstructure:"frame_delay" yaml:"frame_delay"`
	MaxWidth   uint          `mapstructure:"max_width" yaml:"max_width"`
}

// AssessConfig configures the LLM backed page rating. The handler is only
// registered when a provider is set.
type AssessConfig struct {
	Provider string `mapstructure:"provider" yaml:"provider"`
	Model    string `mapstructure:"model" yaml:"model"`
	Criteria string `mapstructure:"criteria" yaml:"criteria"`
	MaxChars int    `mapstructure:"max_chars" yaml:"max_chars"`
}

type MetricsConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
}

// NewDefaultConfig returns the configuration used when nothing is set
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults registers every key with its default value. Environment
// overrides only apply to keys viper knows about.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "lookaround")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 28)
	v.SetDefault("logger.compress", false)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")

	// -- Browser --
	v.SetDefault("browser.engine", string(browser.Chrome))
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.bin", "")
	v.SetDefault("browser.user_data_dir", "")
	v.SetDefault("browser.width", 1280)
	v.SetDefault("browser.height", 720)
	v.SetDefault("browser.args", []string{})
	v.SetDefault("browser.action_timeout", "10s")
	v.SetDefault("browser.navigation_timeout", "30s")
	v.SetDefault("browser.user_agent", "")

	// -- Scraper --
	v.SetDefault("scraper.max_click_rounds", 0)
	v.SetDefault("scraper.cookie_poll_interval", "500ms")

	// -- Handlers --
	v.SetDefault("handlers.print.chars", 100)
	v.SetDefault("handlers.save.dir", "samples")
	v.SetDefault("handlers.save.bucket_size", 300)
	v.SetDefault("handlers.snapshot.frame_delay", "1s")
	v.SetDefault("handlers.snapshot.max_width", 800)
	v.SetDefault("handlers.assess.provider", "")
	v.SetDefault("handlers.assess.model", "")
	v.SetDefault("handlers.assess.criteria", "")
	v.SetDefault("handlers.assess.max_chars", 4000)

	// -- Metrics --
	v.SetDefault("metrics.addr", "")
}

// Load reads the configuration from file and environment. An empty path
// looks for lookaround.yaml in the working directory; a missing default
// file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("lookaround")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}
	return NewConfigFromViper(v)
}

// NewConfigFromViper unmarshals and validates the settings held by v
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for sane values
func (c *Config) Validate() error {
	if _, err := zapcore.ParseLevel(c.Logger.Level); err != nil {
		return fmt.Errorf("logger.level: %w", err)
	}
	if c.Logger.Format != "console" && c.Logger.Format != "json" {
		return fmt.Errorf("logger.format must be console or json, got %q", c.Logger.Format)
	}
	if _, err := browser.ParseEngine(c.Browser.Engine); err != nil {
		return fmt.Errorf("browser.engine: %w", err)
	}
	if c.Browser.Width <= 0 || c.Browser.Height <= 0 {
		return fmt.Errorf("browser.width and browser.height must be positive")
	}
	if c.Browser.ActionTimeout <= 0 || c.Browser.NavigationTimeout <= 0 {
		return fmt.Errorf("browser timeouts must be positive")
	}
	if c.Scraper.MaxClickRounds < 0 {
		return fmt.Errorf("scraper.max_click_rounds must not be negative")
	}
	if c.Scraper.CookiePollInterval <= 0 {
		return fmt.Errorf("scraper.cookie_poll_interval must be positive")
	}
	if c.Handlers.Print.Chars <= 0 {
		return fmt.Errorf("handlers.print.chars must be a positive integer")
	}
	if c.Handlers.Save.BucketSize <= 0 {
		return fmt.Errorf("handlers.save.bucket_size must be a positive integer")
	}
	if c.Handlers.Snapshot.FrameDelay <= 0 {
		return fmt.Errorf("handlers.snapshot.frame_delay must be positive")
	}
	switch c.Handlers.Assess.Provider {
	case "", "claude", "anthropic", "openai", "gpt":
	default:
		return fmt.Errorf("handlers.assess.provider: unknown provider %q (supported: claude, openai)", c.Handlers.Assess.Provider)
	}
	if c.Handlers.Assess.MaxChars <= 0 {
		return fmt.Errorf("handlers.assess.max_chars must be a positive integer")
	}
	return nil
}
