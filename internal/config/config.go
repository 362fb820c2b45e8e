// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rollcall Contributors

// Package config loads service configuration from defaults, an optional YAML
// file and command-line flags, in increasing order of precedence.
package config

import (
	"log/slog"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/rollcall/rollcall/internal/credential"
)

// Config is the root service configuration.
type Config struct {
	Server        ServerConfig        `koanf:"server" json:"server,omitempty"`
	Database      DatabaseConfig      `koanf:"database" json:"database,omitempty"`
	Auth          AuthConfig          `koanf:"auth" json:"auth,omitempty"`
	Log           LogConfig           `koanf:"log" json:"log,omitempty"`
	Observability ObservabilityConfig `koanf:"observability" json:"observability,omitempty"`
}

// ServerConfig configures the API listener.
type ServerConfig struct {
	// Addr is the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr" json:"addr,omitempty"`

	// ResetLinkBase is the URL prefix for password-reset links embedded in
	// emails, e.g. "https://app.example.com/lost-password".
	ResetLinkBase string `koanf:"reset_link_base" json:"reset_link_base,omitempty"`
}

// DatabaseConfig configures the PostgreSQL connection.
type DatabaseConfig struct {
	// URL is a postgres:// connection string.
	URL string `koanf:"url" json:"url,omitempty"`
}

// AuthConfig configures token signing and password hashing.
type AuthConfig struct {
	// TokenSecret signs session tokens. Required; no default.
	TokenSecret string `koanf:"token_secret" json:"token_secret,omitempty"`

	// BcryptCost is the password hashing cost factor. Zero selects the
	// built-in default.
	BcryptCost int `koanf:"bcrypt_cost" json:"bcrypt_cost,omitempty"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `koanf:"level" json:"level,omitempty" jsonschema:"enum=debug,enum=info,enum=warn,enum=error"`

	// Format is json or text.
	Format string `koanf:"format" json:"format,omitempty" jsonschema:"enum=json,enum=text"`
}

// ObservabilityConfig configures the metrics and health endpoint.
type ObservabilityConfig struct {
	Enabled bool   `koanf:"enabled" json:"enabled,omitempty"`
	Addr    string `koanf:"addr" json:"addr,omitempty"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:          ":8080",
			ResetLinkBase: "http://localhost:8080/lost-password",
		},
		Auth: AuthConfig{
			BcryptCost: credential.DefaultBcryptCost,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Observability: ObservabilityConfig{
			Enabled: true,
			Addr:    ":9100",
		},
	}
}

// Load builds the configuration: defaults, overlaid by the YAML file at path
// (when non-empty), overlaid by any set flags. The file is checked against
// the generated JSON Schema before it is merged.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := ValidateFile(path); err != nil {
			return nil, err
		}
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").
				With("path", path).
				Wrap(err)
		}
	}

	if flags != nil {
		// Only flags the caller actually set participate, so unset flags
		// never shadow file values or built-in defaults.
		provider := posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			if !f.Changed {
				return "", nil
			}
			return f.Name, posflag.FlagVal(flags, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").
				With("source", "flags").
				Wrap(err)
		}
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.Code("CONFIG_PARSE_FAILED").Wrap(err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration for values that cannot work.
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return oops.Code("CONFIG_INVALID").Errorf("database.url is required")
	}
	if c.Auth.TokenSecret == "" {
		return oops.Code("CONFIG_INVALID").Errorf("auth.token_secret is required")
	}
	if c.Auth.BcryptCost != 0 &&
		(c.Auth.BcryptCost < credential.MinBcryptCost || c.Auth.BcryptCost > credential.MaxBcryptCost) {
		return oops.Code("CONFIG_INVALID").
			With("bcrypt_cost", c.Auth.BcryptCost).
			Errorf("auth.bcrypt_cost must be between %d and %d",
				credential.MinBcryptCost, credential.MaxBcryptCost)
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		return err
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		return oops.Code("CONFIG_INVALID").
			With("format", c.Log.Format).
			Errorf("log.format must be json or text")
	}
	if c.Server.Addr == "" {
		return oops.Code("CONFIG_INVALID").Errorf("server.addr is required")
	}
	return nil
}

// SlogLevel maps the configured level name to a slog.Level.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	switch strings.ToLower(l.Level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, oops.Code("CONFIG_INVALID").
			With("level", l.Level).
			Errorf("log.level must be one of debug, info, warn, error")
	}
}
