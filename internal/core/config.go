package core

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Database struct {
	Type             string `yaml:"type"`
	ConnectionString string `yaml:"connectionString"`
}

type UploadConfig struct {
	// MaxSize is an echo body limit string, e.g. "10M".
	MaxSize string `yaml:"maxSize"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type RateLimitConfig struct {
	Enabled      bool          `yaml:"enabled"`
	RedisAddress string        `yaml:"redisAddress"`
	Requests     int           `yaml:"requests"`
	Window       time.Duration `yaml:"window"`
}

type ServiceConfig struct {
	Port      int             `yaml:"port"`
	Database  Database        `yaml:"database"`
	Upload    UploadConfig    `yaml:"upload"`
	Logging   LoggingConfig   `yaml:"logging"`
	RateLimit RateLimitConfig `yaml:"rateLimit"`
}

const (
	defaultPort          = 8080
	defaultMaxUploadSize = "10M"
	defaultRateRequests  = 60
	defaultRateWindow    = time.Minute
)

// LoadEnvironment loads .env style files into the process environment.
// Missing files are ignored; already set variables win.
func LoadEnvironment(files ...string) error {
	for _, file := range files {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load env file %s: %w", file, err)
		}
	}
	return nil
}

// LoadConfig loads configuration from the specified YAML file.
// ${VAR} references are expanded from the environment before parsing.
func LoadConfig(configPath string) (*ServiceConfig, error) {
	// Read the config file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	// Parse YAML
	var config ServiceConfig
	err = yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &config)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
	}

	applyDefaults(&config)
	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration in %s: %w", configPath, err)
	}

	return &config, nil
}

func applyDefaults(config *ServiceConfig) {
	if config.Port == 0 {
		config.Port = defaultPort
	}
	if config.Database.Type == "" {
		config.Database.Type = "sqlite"
	}
	if config.Database.Type == "sqlite" && config.Database.ConnectionString == "" {
		config.Database.ConnectionString = "files.db"
	}
	if config.Upload.MaxSize == "" {
		config.Upload.MaxSize = defaultMaxUploadSize
	}
	if config.Logging.Level == "" {
		config.Logging.Level = "info"
	}
	if config.Logging.Format == "" {
		config.Logging.Format = "json"
	}
	if config.RateLimit.Requests == 0 {
		config.RateLimit.Requests = defaultRateRequests
	}
	if config.RateLimit.Window == 0 {
		config.RateLimit.Window = defaultRateWindow
	}
}

// validateConfig rejects values the server cannot start with
func validateConfig(config *ServiceConfig) error {
	if config.Port < 0 || config.Port > 65535 {
		return fmt.Errorf("port %d out of range", config.Port)
	}

	switch config.Database.Type {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported database type: %s", config.Database.Type)
	}
	if config.Database.ConnectionString == "" {
		return fmt.Errorf("database connectionString is required for %s", config.Database.Type)
	}

	if _, err := parseLogLevel(config.Logging.Level); err != nil {
		return err
	}
	if config.Logging.Format != "json" && config.Logging.Format != "text" {
		return fmt.Errorf("unsupported log format %q, expected json or text", config.Logging.Format)
	}

	if config.RateLimit.Enabled {
		if config.RateLimit.RedisAddress == "" {
			return fmt.Errorf("rateLimit.redisAddress is required when rate limiting is enabled")
		}
		if config.RateLimit.Requests <= 0 || config.RateLimit.Window <= 0 {
			return fmt.Errorf("rateLimit requests and window must be positive")
		}
	}

	return nil
}
