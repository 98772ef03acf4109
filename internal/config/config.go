// Copyright 2026 The NexusCentral Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Security      SecurityConfig
	RateLimit     RateLimitConfig
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	// PublicBaseURL is the externally reachable address used to build
	// download locators.
	PublicBaseURL string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	Database        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// SecurityConfig holds the control plane's secrets and tenant defaults
type SecurityConfig struct {
	// EncryptionKey keys the credential vault. Required.
	EncryptionKey string
	// AdminSecret gates every administrative endpoint. Required.
	AdminSecret string
	// TenantDBHost is the host written into synthetic tenant credentials.
	TenantDBHost string
	// DefaultMaxInstallations is the seat cap for new registrations.
	DefaultMaxInstallations int
}

// RateLimitConfig holds the governor's per-route budgets
type RateLimitConfig struct {
	ValidatePerMinute int
	CheckPerHour      int
	DownloadPerHour   int
	DefaultPerMinute  int
	AuditBufferSize   int
}

// ObservabilityConfig holds logging and tracing configuration
type ObservabilityConfig struct {
	LogLevel       string
	LogFormat      string
	OTELEnabled    bool
	ServiceName    string
	ServiceVersion string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:          getEnv("SERVER_HOST", "0.0.0.0"),
			Port:          getEnv("SERVER_PORT", "8080"),
			ReadTimeout:   parseDuration("SERVER_READ_TIMEOUT", "15s"),
			WriteTimeout:  parseDuration("SERVER_WRITE_TIMEOUT", "15s"),
			IdleTimeout:   parseDuration("SERVER_IDLE_TIMEOUT", "60s"),
			PublicBaseURL: getEnv("PUBLIC_BASE_URL", "http://localhost:8080"),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			User:            getEnv("DB_USER", "nexuscentral"),
			Password:        getEnv("DB_PASSWORD", ""),
			Database:        getEnv("DB_NAME", "nexuscentral"),
			SSLMode:         getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:    parseInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    parseInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: parseDuration("DB_CONN_MAX_LIFETIME", "5m"),
		},
		Security: SecurityConfig{
			EncryptionKey:           getEnv("ENCRYPTION_KEY", ""),
			AdminSecret:             getEnv("ADMIN_SECRET", ""),
			TenantDBHost:            getEnv("TENANT_DB_HOST", "db.nexus.internal"),
			DefaultMaxInstallations: parseInt("DEFAULT_MAX_INSTALLATIONS", 5),
		},
		RateLimit: RateLimitConfig{
			ValidatePerMinute: parseInt("RATELIMIT_VALIDATE_PER_MINUTE", 10),
			CheckPerHour:      parseInt("RATELIMIT_CHECK_PER_HOUR", 60),
			DownloadPerHour:   parseInt("RATELIMIT_DOWNLOAD_PER_HOUR", 5),
			DefaultPerMinute:  parseInt("RATELIMIT_DEFAULT_PER_MINUTE", 100),
			AuditBufferSize:   parseInt("AUDIT_BUFFER_SIZE", 256),
		},
		Observability: ObservabilityConfig{
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			LogFormat:      getEnv("LOG_FORMAT", "json"),
			OTELEnabled:    parseBool("OTEL_ENABLED", false),
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "nexuscentral"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "0.1.0"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Database.Password == "" {
		return fmt.Errorf("DB_PASSWORD is required")
	}
	if c.Security.EncryptionKey == "" {
		return fmt.Errorf("ENCRYPTION_KEY is required")
	}
	if c.Security.AdminSecret == "" {
		return fmt.Errorf("ADMIN_SECRET is required")
	}
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func parseBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func parseDuration(key string, defaultValue string) time.Duration {
	value := getEnv(key, defaultValue)
	d, err := time.ParseDuration(value)
	if err != nil {
		// Fallback to default
		d, _ = time.ParseDuration(defaultValue)
	}
	return d
}
