// Package config loads layered service configuration: struct defaults,
// then an optional YAML file, then FOODVISION_* environment variables.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists where config files are searched, in order.
// The first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/foodvision/config.yaml",
}

// ConfigPathEnvVar overrides the config file path when set.
const ConfigPathEnvVar = "CONFIG_PATH"

// envPrefix namespaces environment overrides, e.g. FOODVISION_SERVER_PORT.
const envPrefix = "FOODVISION_"

type ServerConfig struct {
	Host string `koanf:"host"`
	Port int    `koanf:"port" validate:"gte=1,lte=65535"`
}

type ModelConfig struct {
	// Path is the ONNX model file.
	Path string `koanf:"path" validate:"required"`
	// Metadata is the JSON sidecar describing shapes and preprocessing.
	Metadata string `koanf:"metadata" validate:"required"`
}

type CatalogConfig struct {
	// Path is the food catalog CSV (food_name,calories,protein,carbs,fats).
	Path string `koanf:"path" validate:"required"`
}

type UserLogConfig struct {
	// Dir is the root directory holding per-user log directories.
	Dir string `koanf:"dir" validate:"required"`
}

type LogConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error"`
	Format string `koanf:"format" validate:"oneof=json console"`
}

type Config struct {
	Server  ServerConfig  `koanf:"server"`
	Model   ModelConfig   `koanf:"model"`
	Catalog CatalogConfig `koanf:"catalog"`
	UserLog UserLogConfig `koanf:"userlog"`
	Log     LogConfig     `koanf:"log"`
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8000,
		},
		Model: ModelConfig{
			Path:     "models/food_classifier.onnx",
			Metadata: "models/food_classifier.json",
		},
		Catalog: CatalogConfig{
			Path: "data/food_info.csv",
		},
		UserLog: UserLogConfig{
			Dir: "data/user_logs",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load builds the configuration with precedence env > file > defaults.
func Load() (*Config, error) {
	return loadFrom(resolveConfigPath())
}

func loadFrom(configPath string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks struct-level constraints before the config is used.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// Addr returns the listen address for the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// resolveConfigPath picks the config file: CONFIG_PATH if set, otherwise the
// first default path that exists, otherwise none (defaults + env only).
func resolveConfigPath() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		return p
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// envTransform maps FOODVISION_SERVER_PORT to server.port. Only the first
// underscore separates section from key, so key names stay underscore-free.
func envTransform(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, envPrefix))
	return strings.Replace(key, "_", ".", 1)
}
