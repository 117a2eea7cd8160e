package domain

import (
	"errors"
	"log/slog"
	"strings"
)

// Credentials identify the caller to the Talos API.
// Built once at startup and never mutated.
type Credentials struct {
	APIKey    string
	APISecret string
	APIHost   string // bare hostname, e.g. tal-295.sandbox.talostrading.com
}

// NewCredentials creates Credentials after trimming a trailing slash from the host.
func NewCredentials(apiKey, apiSecret, apiHost string) Credentials {
	return Credentials{
		APIKey:    apiKey,
		APISecret: apiSecret,
		APIHost:   strings.TrimSuffix(apiHost, "/"),
	}
}

// Validate checks the credentials are usable for signing.
func (c Credentials) Validate() error {
	if c.APIKey == "" {
		return &ConfigError{Field: "api_key", Err: errors.New("is required")}
	}
	if c.APISecret == "" {
		return &ConfigError{Field: "api_secret", Err: errors.New("is required")}
	}
	if c.APIHost == "" {
		return &ConfigError{Field: "api_host", Err: errors.New("is required")}
	}
	if strings.Contains(c.APIHost, "://") {
		return &ConfigError{Field: "api_host", Err: errors.New("must not include a scheme")}
	}
	if strings.ContainsAny(c.APIHost, "/?#") {
		return &ConfigError{Field: "api_host", Err: errors.New("must be a bare hostname")}
	}
	return nil
}

// String keeps the secret out of fmt output.
func (c Credentials) String() string {
	return "Credentials{APIKey:" + c.APIKey + " APISecret:[REDACTED] APIHost:" + c.APIHost + "}"
}

// LogValue keeps the secret out of slog output.
func (c Credentials) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("api_key", c.APIKey),
		slog.String("api_host", c.APIHost),
	)
}
