package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the editorial pipeline service
type Config struct {
	General   GeneralConfig   `mapstructure:"general"`
	Server    ServerConfig    `mapstructure:"server"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
	Session   SessionConfig   `mapstructure:"session"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	Debug    bool   `mapstructure:"debug"`
	LogLevel string `mapstructure:"log_level"`
}

// ServerConfig contains HTTP server and streaming settings
type ServerConfig struct {
	Address           string        `mapstructure:"address"`
	AllowOrigins      []string      `mapstructure:"allow_origins"`
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
	StreamIdleTimeout time.Duration `mapstructure:"stream_idle_timeout"`
}

// LLMConfig contains LLM provider configurations
type LLMConfig struct {
	Providers map[string]LLMProvider `mapstructure:"providers"`
	Routing   LLMRoutingConfig       `mapstructure:"routing"`
}

// LLMProvider represents a single LLM provider configuration
type LLMProvider struct {
	Type    string              `mapstructure:"type"` // openai, local, etc.
	APIKey  string              `mapstructure:"api_key"`
	BaseURL string              `mapstructure:"base_url"`
	Models  map[string]LLMModel `mapstructure:"models"`
	Timeout time.Duration       `mapstructure:"timeout"`
}

// LLMModel represents a specific model configuration
type LLMModel struct {
	Name        string  `mapstructure:"name"`
	APIName     string  `mapstructure:"api_name"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	Temperature float64 `mapstructure:"temperature"`
}

// LLMRoutingConfig defines which model to use for each pipeline stage
type LLMRoutingConfig struct {
	Research string `mapstructure:"research"` // insight gathering
	Writing  string `mapstructure:"writing"`  // article drafting
	Editing  string `mapstructure:"editing"`  // polish pass
	Summary  string `mapstructure:"summary"`  // tweet distillation
	Fallback string `mapstructure:"fallback"` // fallback model
}

// ModelFor returns the routed model for a stage name, falling back when unset.
func (r LLMRoutingConfig) ModelFor(stage string) string {
	var m string
	switch stage {
	case "research":
		m = r.Research
	case "write":
		m = r.Writing
	case "edit":
		m = r.Editing
	case "tweet":
		m = r.Summary
	}
	if m == "" {
		m = r.Fallback
	}
	return m
}

// PipelineConfig contains pipeline runner settings
type PipelineConfig struct {
	MaxConcurrent int           `mapstructure:"max_concurrent"`
	RunTimeout    time.Duration `mapstructure:"run_timeout"`
	StageTimeout  time.Duration `mapstructure:"stage_timeout"`
}

// SessionConfig contains session store and reaper settings
type SessionConfig struct {
	StoreType    string        `mapstructure:"store_type"` // inmemory or redis
	Retention    time.Duration `mapstructure:"retention"`
	ReapInterval time.Duration `mapstructure:"reap_interval"`
	Redis        RedisConfig   `mapstructure:"redis"`
}

// RedisConfig contains Redis connection settings for the redis session store
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%s", r.Host, r.Port)
}

func (r RedisConfig) Validate() error {
	if strings.TrimSpace(r.Host) == "" {
		return fmt.Errorf("session.redis.host required when store_type is redis")
	}
	if strings.TrimSpace(r.Port) == "" {
		return fmt.Errorf("session.redis.port required when store_type is redis")
	}
	return nil
}

// TelemetryConfig contains metrics settings
type TelemetryConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Namespace string `mapstructure:"namespace"`
}

// LoadConfig loads config from file, with env overrides (EDITORIAL_*).
// All values have working defaults so the file itself is optional.
func LoadConfig(path string) *Config {
	viper.SetConfigName("config")
	viper.SetConfigType("json")

	viper.SetDefault("general.debug", false)
	viper.SetDefault("general.log_level", "info")
	viper.SetDefault("server.address", ":5001")
	viper.SetDefault("server.allow_origins", []string{"*"})
	viper.SetDefault("server.heartbeat_interval", time.Second)
	viper.SetDefault("server.stream_idle_timeout", 10*time.Minute)
	viper.SetDefault("llm.providers.openai.type", "openai")
	viper.SetDefault("llm.providers.openai.timeout", 2*time.Minute)
	viper.SetDefault("llm.routing.fallback", "gpt-4o-mini")
	viper.SetDefault("pipeline.max_concurrent", 8)
	viper.SetDefault("pipeline.run_timeout", 15*time.Minute)
	viper.SetDefault("pipeline.stage_timeout", 5*time.Minute)
	viper.SetDefault("session.store_type", "inmemory")
	viper.SetDefault("session.retention", time.Hour)
	viper.SetDefault("session.reap_interval", 5*time.Minute)
	viper.SetDefault("session.redis.db", 0)
	viper.SetDefault("telemetry.enabled", true)
	viper.SetDefault("telemetry.namespace", "editorial")

	if path == "" {
		viper.AddConfigPath("./config")
		viper.AddConfigPath(".")
	} else {
		viper.SetConfigFile(path)
	}

	viper.SetEnvPrefix("EDITORIAL")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		// defaults are complete; only a present-but-broken file is fatal
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			panic(fmt.Errorf("fatal error config file: %w", err))
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		panic(fmt.Errorf("fatal error config file: %w", err))
	}

	if config.Session.StoreType == "redis" {
		if err := config.Session.Redis.Validate(); err != nil {
			panic(err)
		}
	}
	return &config
}
