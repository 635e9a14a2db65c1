package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Environment string `envconfig:"ENVIRONMENT" default:"local"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`
	DBMinConns  int32  `envconfig:"VQ_DB_MIN_CONNS" default:"1"`
	DBMaxConns  int32  `envconfig:"VQ_DB_MAX_CONNS" default:"8"`

	MaxConcurrent int    `envconfig:"VQ_MAX_CONCURRENT" default:"2"`
	TargetLang    string `envconfig:"VQ_TARGET_LANG" default:"en"`
	ChunkSize     int    `envconfig:"VQ_CHUNK_SIZE" default:"3"`
	ChunkDelayMS  int    `envconfig:"VQ_CHUNK_DELAY_MS" default:"500"`

	// AdminTokenHash is a bcrypt hash of the admin API token. When empty,
	// the credential admin endpoints reject every request.
	AdminTokenHash string `envconfig:"VQ_ADMIN_TOKEN_HASH" default:""`

	CORSAllowedOrigins string `envconfig:"CORS_ALLOWED_ORIGINS" default:""`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.DBMinConns < 0 {
		return fmt.Errorf("VQ_DB_MIN_CONNS must be >= 0")
	}
	if c.DBMaxConns < 1 {
		return fmt.Errorf("VQ_DB_MAX_CONNS must be >= 1")
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("VQ_DB_MIN_CONNS (%d) cannot exceed VQ_DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	if c.MaxConcurrent < 1 {
		return fmt.Errorf("VQ_MAX_CONCURRENT must be >= 1")
	}
	if c.ChunkSize < 1 {
		return fmt.Errorf("VQ_CHUNK_SIZE must be >= 1")
	}
	if c.ChunkDelayMS < 0 {
		return fmt.Errorf("VQ_CHUNK_DELAY_MS must be >= 0")
	}
	if strings.TrimSpace(c.TargetLang) == "" {
		return fmt.Errorf("VQ_TARGET_LANG is required")
	}
	return nil
}

func (c *Config) ChunkDelay() time.Duration {
	if c == nil || c.ChunkDelayMS <= 0 {
		return 0
	}
	return time.Duration(c.ChunkDelayMS) * time.Millisecond
}

func (c *Config) CORSAllowedOriginsList() []string {
	if c == nil {
		return nil
	}

	parts := strings.Split(c.CORSAllowedOrigins, ",")
	origins := make([]string, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))
	for _, part := range parts {
		origin := strings.TrimSpace(part)
		if origin == "" {
			continue
		}
		if _, exists := seen[origin]; exists {
			continue
		}
		seen[origin] = struct{}{}
		origins = append(origins, origin)
	}
	return origins
}
