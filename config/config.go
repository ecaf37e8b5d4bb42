package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Config holds the application's configuration
type Config struct {
	LogLevel         string        `mapstructure:"LOG_LEVEL"`
	LogFormat        string        `mapstructure:"LOG_FORMAT"`
	WorkDir          string        `mapstructure:"WORK_DIR"`
	ChainOrder       int           `mapstructure:"CHAIN_ORDER"`
	ResponseLimit    int           `mapstructure:"RESPONSE_LIMIT"`
	DatabaseURL      string        `mapstructure:"DATABASE_URL"`
	StoreProviders   []string      `mapstructure:"STORE_PROVIDERS"`
	StoreTimeout     time.Duration `mapstructure:"-"`
	// STORE_TIMEOUT is whole seconds; duration strings such as "30s" fail to decode.
	StoreTimeoutSecs int           `mapstructure:"STORE_TIMEOUT"`
	EngineCacheSize  int           `mapstructure:"ENGINE_CACHE_SIZE"`
	TrainConcurrency int           `mapstructure:"TRAIN_CONCURRENCY"`
	SplitSentences   bool          `mapstructure:"SPLIT_SENTENCES"`
	StripMarkdown    bool          `mapstructure:"STRIP_MARKDOWN"`
}

// Load reads config.yaml (if present) and the environment. An explicit path
// overrides the search locations.
func Load(logger *zap.Logger, path string) *Config {
	var config Config
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")        // For running locally
		v.AddConfigPath("../")      // For running from a subdir
		v.AddConfigPath("./config") // Common config folder
	}
	v.AutomaticEnv()

	// Set default values
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "console")
	v.SetDefault("WORK_DIR", "./work")
	v.SetDefault("CHAIN_ORDER", 2)
	v.SetDefault("RESPONSE_LIMIT", 0)
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("STORE_PROVIDERS", []string{"postgres", "fs"})
	v.SetDefault("STORE_TIMEOUT", 30)
	v.SetDefault("ENGINE_CACHE_SIZE", 64)
	v.SetDefault("TRAIN_CONCURRENCY", 1)
	v.SetDefault("SPLIT_SENTENCES", false)
	v.SetDefault("STRIP_MARKDOWN", true)

	if err := v.ReadInConfig(); err != nil {
		if logger != nil {
			logger.Warn("Could not read config file, using defaults/env vars", zap.Error(err))
		}
	}

	if err := v.Unmarshal(&config); err != nil {
		// Config unmarshaling is critical - fail fast during bootstrap
		if logger != nil {
			logger.Fatal("Unable to decode config into struct", zap.Error(err))
		} else {
			fmt.Fprintf(os.Stderr, "FATAL: Unable to decode config into struct: %v\n", err)
			os.Exit(1)
		}
	}

	config.normalize()
	return &config
}

func (c *Config) normalize() {
	// Env vars arrive as one comma separated string.
	var providers []string
	for _, p := range c.StoreProviders {
		for _, name := range strings.Split(p, ",") {
			name = strings.ToLower(strings.TrimSpace(name))
			if name != "" {
				providers = append(providers, name)
			}
		}
	}
	if len(providers) == 0 {
		providers = []string{"fs"}
	}
	c.StoreProviders = providers

	if c.EngineCacheSize <= 0 {
		c.EngineCacheSize = 64
	}
	if c.TrainConcurrency <= 0 {
		c.TrainConcurrency = 1
	}

	// Convert seconds to proper time.Duration
	c.StoreTimeout = time.Duration(c.StoreTimeoutSecs) * time.Second
}
