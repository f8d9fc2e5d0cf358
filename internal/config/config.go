package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Answer    AnswerConfig    `yaml:"answer" mapstructure:"answer"`
	Monitor   MonitorConfig   `yaml:"monitor" mapstructure:"monitor"`
	Analyze   AnalyzeConfig   `yaml:"analyze" mapstructure:"analyze"`
	Pitch     PitchConfig     `yaml:"pitch" mapstructure:"pitch"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	Path        string `yaml:"path" mapstructure:"path"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key          string `yaml:"key" mapstructure:"key"`
	CapableModel string `yaml:"capable_model" mapstructure:"capable_model"`
	FastModel    string `yaml:"fast_model" mapstructure:"fast_model"`
}

// AnswerConfig configures the question-answering pipeline.
type AnswerConfig struct {
	RulesPath       string `yaml:"rules_path" mapstructure:"rules_path"`
	CallTimeoutSecs int    `yaml:"call_timeout_secs" mapstructure:"call_timeout_secs"`
}

// MonitorConfig configures the web monitoring pass.
type MonitorConfig struct {
	RatePerSec   float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	IntervalMins int     `yaml:"interval_mins" mapstructure:"interval_mins"`
	TimeoutSecs  int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// AnalyzeConfig configures retroactive article labeling.
type AnalyzeConfig struct {
	Model       string `yaml:"model" mapstructure:"model"`
	Concurrency int    `yaml:"concurrency" mapstructure:"concurrency"`
	BatchLimit  int    `yaml:"batch_limit" mapstructure:"batch_limit"`
}

// PitchConfig configures the journalist pitch advisor.
type PitchConfig struct {
	Model string `yaml:"model" mapstructure:"model"`
	TopN  int    `yaml:"top_n" mapstructure:"top_n"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("SPIZ")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults. Keys with empty defaults are still registered: AutomaticEnv
	// only resolves env vars for keys viper already knows about.
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "spiz.db")
	v.SetDefault("store.database_url", "")
	v.SetDefault("anthropic.key", "")
	v.SetDefault("anthropic.capable_model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.fast_model", "claude-haiku-4-5-20251001")
	v.SetDefault("answer.rules_path", "")
	v.SetDefault("answer.call_timeout_secs", 60)
	v.SetDefault("monitor.rate_per_sec", 2.0)
	v.SetDefault("monitor.interval_mins", 30)
	v.SetDefault("monitor.timeout_secs", 10)
	v.SetDefault("analyze.model", "")
	v.SetDefault("analyze.concurrency", 4)
	v.SetDefault("analyze.batch_limit", 200)
	v.SetDefault("pitch.model", "")
	v.SetDefault("pitch.top_n", 10)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the configuration for a given run mode. Modes that talk
// to the model API require credentials; every mode requires a reachable
// store.
func (c *Config) Validate(mode string) error {
	var problems []string

	switch c.Store.Driver {
	case "postgres":
		if c.Store.DatabaseURL == "" {
			problems = append(problems, "store.database_url is required for driver postgres")
		}
	case "sqlite":
		if c.Store.Path == "" {
			problems = append(problems, "store.path is required for driver sqlite")
		}
	default:
		problems = append(problems, fmt.Sprintf("store.driver must be postgres or sqlite, got %q", c.Store.Driver))
	}

	needsKey := false
	switch mode {
	case "ingest", "monitor", "migrate":
	case "ask", "analyze", "pitch":
		needsKey = true
	case "serve":
		needsKey = true
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}
	if needsKey && c.Anthropic.Key == "" {
		problems = append(problems, "anthropic.key is required (SPIZ_ANTHROPIC_KEY)")
	}

	if mode == "analyze" || mode == "serve" {
		if c.Analyze.Concurrency < 1 || c.Analyze.Concurrency > 32 {
			problems = append(problems, "analyze.concurrency must be between 1 and 32")
		}
	}
	if mode == "monitor" || mode == "serve" {
		if c.Monitor.RatePerSec <= 0 {
			problems = append(problems, "monitor.rate_per_sec must be > 0")
		}
	}

	if len(problems) > 0 {
		return eris.New("config: " + strings.Join(problems, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
