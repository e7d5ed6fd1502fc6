// Package config loads process configuration and character files.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/hupe1980/plugmesh/knowledge"
	"github.com/hupe1980/plugmesh/logging"
	"github.com/hupe1980/plugmesh/state"
)

// EnvPrefix prefixes environment overrides, e.g. PLUGMESH_SERVER_ADDR.
const EnvPrefix = "PLUGMESH"

// Config is the process configuration.
type Config struct {
	Character string          `mapstructure:"character"`
	Log       LogConfig       `mapstructure:"log"`
	Server    ServerConfig    `mapstructure:"server"`
	State     StateConfig     `mapstructure:"state"`
	Knowledge KnowledgeConfig `mapstructure:"knowledge"`

	v *viper.Viper
}

type LogConfig struct {
	Level     string `mapstructure:"level"`
	Format    string `mapstructure:"format"`
	AddSource bool   `mapstructure:"add_source"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

type StateConfig struct {
	CacheSize int `mapstructure:"cache_size"`
}

type KnowledgeConfig struct {
	TargetTokens     int `mapstructure:"target_tokens"`
	OverlapTokens    int `mapstructure:"overlap_tokens"`
	ModelContextSize int `mapstructure:"model_context_size"`
}

// Load reads the optional YAML file at path and applies environment
// overrides on top of the defaults.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("character", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.add_source", false)
	v.SetDefault("server.addr", ":3000")
	v.SetDefault("state.cache_size", state.DefaultCacheSize)
	v.SetDefault("knowledge.target_tokens", knowledge.DefaultTargetTokens)
	v.SetDefault("knowledge.overlap_tokens", knowledge.DefaultOverlapTokens)
	v.SetDefault("knowledge.model_context_size", knowledge.DefaultModelContextSize)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)

		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}
	}

	cfg := &Config{v: v}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.State.CacheSize <= 0 {
		return fmt.Errorf("state.cache_size must be positive, got %d", c.State.CacheSize)
	}

	if c.Knowledge.TargetTokens <= 0 {
		return fmt.Errorf("knowledge.target_tokens must be positive, got %d", c.Knowledge.TargetTokens)
	}

	if c.Knowledge.OverlapTokens < 0 || c.Knowledge.OverlapTokens >= c.Knowledge.TargetTokens {
		return fmt.Errorf("knowledge.overlap_tokens must be in [0, target_tokens), got %d", c.Knowledge.OverlapTokens)
	}

	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("unsupported log format %q", c.Log.Format)
	}

	return nil
}

// Get resolves a process-wide setting. Keys present in the configuration
// file or as prefixed environment variables win; otherwise the unprefixed
// environment variable is used. It satisfies engine.SettingsSource.
func (c *Config) Get(key string) any {
	if c.v != nil && c.v.IsSet(key) {
		return c.v.Get(key)
	}

	if val, ok := os.LookupEnv(key); ok {
		return val
	}

	return nil
}

// LoggerConfig maps the log section onto a logging configuration.
func (c *Config) LoggerConfig() *logging.LoggerConfig {
	lc := logging.DefaultLoggerConfig()
	lc.Level = logging.ParseLevel(c.Log.Level)
	lc.Format = strings.ToLower(c.Log.Format)
	lc.AddSource = c.Log.AddSource

	return lc
}

// ChunkOptions maps the knowledge section onto fragment sizing.
func (c *Config) ChunkOptions() knowledge.ChunkOptions {
	return knowledge.ChunkOptions{
		TargetTokens:     c.Knowledge.TargetTokens,
		OverlapTokens:    c.Knowledge.OverlapTokens,
		ModelContextSize: c.Knowledge.ModelContextSize,
	}
}
