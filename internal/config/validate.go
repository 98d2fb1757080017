package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/adhocore/gronx"

	"github.com/nextlevelbuilder/gomemory/internal/crypto"
	"github.com/nextlevelbuilder/gomemory/internal/embedding"
)

var (
	storageBackends  = []string{"file", "sqlite", "postgres", "redis", "memory"}
	snapshotBackends = []string{"file", "s3", "redis", "none"}
	injectionActions = []string{"off", "log", "warn", "block"}
)

// Validate reports every configuration problem found, joined.
func (c *Config) Validate() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var errs []error
	add := func(format string, args ...any) { errs = append(errs, fmt.Errorf(format, args...)) }

	if !slices.Contains(storageBackends, c.Storage.Backend) {
		add("storage.backend: unknown backend %q", c.Storage.Backend)
	}
	switch c.Storage.Backend {
	case "postgres":
		if c.Storage.PostgresDSN == "" {
			add("storage.postgresDSN is required for the postgres backend")
		}
	case "redis":
		if c.Storage.RedisURL == "" {
			add("storage.redisURL is required for the redis backend")
		}
	}

	if c.Cache.MaxSize <= 0 {
		add("cache.maxSize must be positive, got %d", c.Cache.MaxSize)
	}

	if p := strings.ToLower(c.Embedding.Provider); p != "" && p != "none" && !slices.Contains(embedding.Providers, p) {
		add("embedding.provider: unknown provider %q", c.Embedding.Provider)
	}
	if c.Embedding.Dimensions < 0 {
		add("embedding.dimensions must not be negative")
	}
	if c.Embedding.TimeoutSeconds <= 0 {
		add("embedding.timeoutSeconds must be positive")
	}
	if c.Embedding.MaxRetries < 0 {
		add("embedding.maxRetries must not be negative")
	}

	if !slices.Contains(snapshotBackends, c.Vectors.Snapshot) {
		add("vectors.snapshot: unknown backend %q", c.Vectors.Snapshot)
	}
	if c.Vectors.Snapshot == "s3" && c.Vectors.S3.Bucket == "" {
		add("vectors.s3.bucket is required for s3 snapshots")
	}
	if c.Vectors.Snapshot == "redis" && c.Storage.RedisURL == "" {
		add("storage.redisURL is required for redis snapshots")
	}
	if k := c.Vectors.EncryptionKey; k != "" && !isSecretRef(k) {
		if _, err := crypto.DeriveKey(k); err != nil {
			add("vectors.encryptionKey: %v", err)
		}
	}
	if c.Vectors.AutosaveSeconds < 0 {
		add("vectors.autosaveSeconds must not be negative")
	}

	if c.Retention.Enabled && !gronx.New().IsValid(c.Retention.Schedule) {
		add("retention.schedule: invalid cron expression %q", c.Retention.Schedule)
	}
	if c.Retention.TemporaryTTLHours < 0 {
		add("retention.temporaryTTLHours must not be negative")
	}

	switch c.Server.Transport {
	case "", "stdio":
	case "http":
		if c.Server.HTTPAddr == "" {
			add("server.httpAddr is required for the http transport")
		}
	default:
		add("server.transport must be stdio or http, got %q", c.Server.Transport)
	}
	if a := c.Server.InjectionAction; a != "" && !slices.Contains(injectionActions, a) {
		add("server.injectionAction must be one of %s, got %q", strings.Join(injectionActions, ", "), a)
	}
	if c.Server.ToolCallsPerHour < 0 {
		add("server.toolCallsPerHour must not be negative")
	}

	if c.Telemetry.Enabled && c.Telemetry.Protocol != "grpc" && c.Telemetry.Protocol != "http" {
		add("telemetry.protocol must be grpc or http, got %q", c.Telemetry.Protocol)
	}

	return errors.Join(errs...)
}
