// Package config handles configuration loading for optionscope.
// It supports YAML config files with environment variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"optionscope/internal/logging"
)

// Config represents the complete application configuration.
type Config struct {
	API     APIConfig      `mapstructure:"api"     yaml:"api"`
	Polygon PolygonConfig  `mapstructure:"polygon" yaml:"polygon"`
	Chain   ChainConfig    `mapstructure:"chain"   yaml:"chain"`
	Logging logging.Config `mapstructure:"logging" yaml:"logging"`
}

// APIConfig holds HTTP API server settings.
type APIConfig struct {
	Host        string   `mapstructure:"host"         yaml:"host"`
	Port        int      `mapstructure:"port"         yaml:"port"`
	CORSOrigins []string `mapstructure:"cors_origins" yaml:"cors_origins"`
}

// PolygonConfig holds upstream provider settings. The API key itself is
// deliberately NOT stored here: it is read from the environment at request
// time so key rotation needs no restart, and a missing key fails the
// request cleanly instead of the process.
type PolygonConfig struct {
	BaseURL    string `mapstructure:"base_url"     yaml:"base_url"`
	APIKeyEnv  string `mapstructure:"api_key_env"  yaml:"api_key_env"`
	RatePerSec int    `mapstructure:"rate_per_sec" yaml:"rate_per_sec"`
}

// APIKey reads the upstream credential from the environment. Empty means
// the operator has not configured one.
func (p PolygonConfig) APIKey() string {
	return os.Getenv(p.APIKeyEnv)
}

// ChainConfig bounds the options-chain pipeline.
type ChainConfig struct {
	PageSize       int `mapstructure:"page_size"       yaml:"page_size"`
	MaxPages       int `mapstructure:"max_pages"       yaml:"max_pages"`
	MaxExpirations int `mapstructure:"max_expirations" yaml:"max_expirations"`
}

// Load reads the configuration from file and environment variables.
// Config file search order:
//  1. ./config/config.yaml (project root)
//  2. ~/.optionscope/config.yaml (home directory)
//  3. /etc/optionscope/config.yaml (system)
//
// Environment variables override config file values.
// Format: OPTIONSCOPE_<SECTION>_<KEY>, e.g., OPTIONSCOPE_API_PORT.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(filepath.Join(homeDir(), ".optionscope"))
	v.AddConfigPath("/etc/optionscope")

	v.SetEnvPrefix("OPTIONSCOPE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found — that's fine, use defaults + env vars.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	return &cfg, nil
}

// LoadFromFile reads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	v.SetEnvPrefix("OPTIONSCOPE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	return &cfg, nil
}

// setDefaults sets sensible defaults for all config values.
func setDefaults(v *viper.Viper) {
	// API defaults
	v.SetDefault("api.host", "0.0.0.0")
	v.SetDefault("api.port", 8080)
	v.SetDefault("api.cors_origins", []string{"http://localhost:3000"})

	// Polygon defaults
	v.SetDefault("polygon.base_url", "https://api.polygon.io")
	v.SetDefault("polygon.api_key_env", "POLYGON_API_KEY")
	v.SetDefault("polygon.rate_per_sec", 10)

	// Chain defaults
	v.SetDefault("chain.page_size", 250)
	v.SetDefault("chain.max_pages", 15)
	v.SetDefault("chain.max_expirations", 10)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.file", "")
}

// homeDir returns the user's home directory.
func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
