// kteeth - session, token, and OAuth authentication backend
// SPDX-License-Identifier: MIT

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths searched for a config file, in
// order of priority. The first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/kteeth/config.yaml",
	"/etc/kteeth/config.yml",
}

// ConfigPathEnvVar overrides the config file search path.
const ConfigPathEnvVar = "CONFIG_PATH"

// Load builds the configuration from layered sources:
//  1. Defaults from defaultConfig
//  2. Optional YAML config file
//  3. Environment variables (highest priority)
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths lists config paths parsed as comma-separated slices
// when they arrive as env var strings.
var sliceConfigPaths = []string{
	"security.cors_origins",
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}

		// Already a slice when sourced from YAML.
		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}

		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envMappings maps environment variable names to koanf config paths.
// Unmapped variables are ignored so arbitrary environment noise never
// leaks into the config.
var envMappings = map[string]string{
	"profile": "profile",

	// Server
	"http_host":             "server.host",
	"http_port":             "server.port",
	"http_read_timeout":     "server.read_timeout",
	"http_write_timeout":    "server.write_timeout",
	"http_shutdown_timeout": "server.shutdown_timeout",

	// Database
	"db_host":              "database.host",
	"db_port":              "database.port",
	"db_name":              "database.name",
	"db_user":              "database.user",
	"db_password":          "database.password",
	"db_max_pool_size":     "database.max_pool_size",
	"db_min_idle":          "database.min_idle",
	"db_conn_max_lifetime": "database.conn_max_lifetime",
	"db_conn_timeout":      "database.conn_timeout",

	// JWT
	"jwt_private_key": "jwt.private_key",
	"jwt_secret":      "jwt.secret",
	"jwt_key_id":      "jwt.key_id",
	"jwt_issuer":      "jwt.issuer",
	"jwt_audience":    "jwt.audience",
	"jwt_realm":       "jwt.realm",
	"jwt_ttl":         "jwt.ttl",
	"jwt_jwks_url":    "jwt.jwks_url",

	// OAuth
	"google_client_id":     "oauth.client_id",
	"google_client_secret": "oauth.client_secret",
	"oauth_auth_url":       "oauth.auth_url",
	"oauth_token_url":      "oauth.token_url",
	"oauth_user_info_url":  "oauth.user_info_url",
	"oauth_redirect_url":   "oauth.redirect_url",
	"oauth_state_ttl":      "oauth.state_ttl",

	// Security
	"basic_username":     "security.basic_username",
	"basic_password":     "security.basic_password",
	"basic_realm":        "security.basic_realm",
	"session_cookie":     "security.session_cookie",
	"session_ttl":        "security.session_ttl",
	"session_store":      "security.session_store",
	"session_store_path": "security.session_store_path",
	"cookie_secure":      "security.cookie_secure",
	"rate_limit_reqs":    "security.rate_limit_reqs",
	"rate_limit_window":  "security.rate_limit_window",
	"cors_origins":       "security.cors_origins",

	// Logging
	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// envTransformFunc maps environment variable names to koanf paths:
// DB_HOST -> database.host, GOOGLE_CLIENT_ID -> oauth.client_id.
func envTransformFunc(key string) string {
	if mapped, ok := envMappings[strings.ToLower(key)]; ok {
		return mapped
	}
	return ""
}
