package infra

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"tap_talos/internal/domain"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "TAP_TALOS_"

// Config holds the tap settings.
// LoadConfig reads the file, then environment variables override sensitive fields.
// Singer configs are JSON; JSON is valid YAML, so the same decoder reads both.
type Config struct {
	APIKey    string `yaml:"api_key" validate:"required"`
	APISecret string `yaml:"api_secret" validate:"required"`
	APIHost   string `yaml:"api_host" validate:"required,hostname_rfc1123"`

	// RequestTimeout is in seconds; 0 means the HTTP client never times out.
	RequestTimeout int `yaml:"request_timeout" validate:"gte=0"`

	// SQLitePath enables the local balance mirror when set.
	SQLitePath string `yaml:"sqlite_path"`

	Logging struct {
		Level string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
		File  string `yaml:"file"`
	} `yaml:"logging"`
}

// Credentials returns the immutable API credentials.
func (c *Config) Credentials() domain.Credentials {
	return domain.NewCredentials(c.APIKey, c.APISecret, c.APIHost)
}

// LoadConfig reads the config file and applies environment overrides.
// An empty path builds the config from the environment alone.
func LoadConfig(path string) (*Config, error) {
	// Load .env file if it exists (ignore errors if file doesn't exist)
	_ = godotenv.Load()

	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("%w: %s", domain.ErrConfigNotFound, path)
			}
			return nil, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	overrideWithEnv(&cfg)
	cfg.APIHost = strings.TrimSuffix(cfg.APIHost, "/")

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks configuration validity.
// The first failing field is reported as a *domain.ConfigError.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return &domain.ConfigError{
				Field: configFieldName(fe.StructNamespace()),
				Err:   fmt.Errorf("failed %q validation", fe.Tag()),
			}
		}
		return err
	}

	return c.Credentials().Validate()
}

// configFieldName maps a struct namespace to the config key users write.
func configFieldName(ns string) string {
	switch ns {
	case "Config.APIKey":
		return "api_key"
	case "Config.APISecret":
		return "api_secret"
	case "Config.APIHost":
		return "api_host"
	case "Config.RequestTimeout":
		return "request_timeout"
	case "Config.Logging.Level":
		return "logging.level"
	default:
		return ns
	}
}

// overrideWithEnv replaces values with environment variables when present.
func overrideWithEnv(cfg *Config) {
	if key := os.Getenv(EnvPrefix + "API_KEY"); key != "" {
		cfg.APIKey = key
	}
	if secret := os.Getenv(EnvPrefix + "API_SECRET"); secret != "" {
		cfg.APISecret = secret
	}
	if host := os.Getenv(EnvPrefix + "API_HOST"); host != "" {
		cfg.APIHost = host
	}
	if timeout := os.Getenv(EnvPrefix + "REQUEST_TIMEOUT"); timeout != "" {
		if n, err := strconv.Atoi(timeout); err == nil {
			cfg.RequestTimeout = n
		}
	}
	if path := os.Getenv(EnvPrefix + "SQLITE_PATH"); path != "" {
		cfg.SQLitePath = path
	}
	if level := os.Getenv(EnvPrefix + "LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
	if file := os.Getenv(EnvPrefix + "LOG_FILE"); file != "" {
		cfg.Logging.File = file
	}
}
