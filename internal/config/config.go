// Package config provides Viper-based hierarchical configuration:
// defaults, then an optional config.yaml, then ISDOC_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable
const EnvPrefix = "ISDOC"

// DefaultSchemaURL is the published ISDOC 6.0.2 invoice schema
const DefaultSchemaURL = "https://isdoc.cz/6.0.2/xsd/isdoc-invoice-6.0.2.xsd"

// Config represents the complete application configuration
type Config struct {
	Log struct {
		Level  string `mapstructure:"level" yaml:"level"`
		Format string `mapstructure:"format" yaml:"format"`
	} `mapstructure:"log" yaml:"log"`

	Server struct {
		Address      string        `mapstructure:"address" yaml:"address"`
		ReadTimeout  time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
		WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
		Debug        bool          `mapstructure:"debug" yaml:"debug"`
	} `mapstructure:"server" yaml:"server"`

	Export struct {
		Concurrency int    `mapstructure:"concurrency" yaml:"concurrency"`
		OutputDir   string `mapstructure:"output_dir" yaml:"output_dir"`
	} `mapstructure:"export" yaml:"export"`

	Validation struct {
		Schema    bool          `mapstructure:"schema" yaml:"schema"`
		SchemaURL string        `mapstructure:"schema_url" yaml:"schema_url"`
		Timeout   time.Duration `mapstructure:"timeout" yaml:"timeout"`
	} `mapstructure:"validation" yaml:"validation"`
}

// Load reads configuration. configFile may be empty to use the search path.
func Load(configFile string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("$HOME/.isdoc-export")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Default returns the configuration with only defaults applied
func Default() *Config {
	v := viper.New()
	setDefaults(v)

	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 2*time.Minute)
	v.SetDefault("server.debug", false)

	v.SetDefault("export.concurrency", 1)
	v.SetDefault("export.output_dir", ".")

	v.SetDefault("validation.schema", false)
	v.SetDefault("validation.schema_url", DefaultSchemaURL)
	v.SetDefault("validation.timeout", 30*time.Second)
}

// Validate checks configuration values
func (c *Config) Validate() error {
	switch strings.ToLower(c.Log.Format) {
	case "json", "console":
	default:
		return fmt.Errorf("invalid log format: %s (must be 'json' or 'console')", c.Log.Format)
	}

	if c.Export.Concurrency < 1 || c.Export.Concurrency > 64 {
		return fmt.Errorf("export.concurrency must be between 1 and 64, got: %d", c.Export.Concurrency)
	}

	if c.Validation.Schema && c.Validation.SchemaURL == "" {
		return fmt.Errorf("validation.schema_url required when schema validation is enabled")
	}

	return nil
}
