package config

import (
	"os"
	"strconv"
	"strings"
)

// ApplyEnvOverrides overlays GOMEMORY_* environment variables onto c.
// Unparsable numeric values are ignored.
func (c *Config) ApplyEnvOverrides() {
	c.mu.Lock()
	defer c.mu.Unlock()

	envStr := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	envInt := func(key string, dst *int) {
		if v, ok := os.LookupEnv(key); ok {
			if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
				*dst = n
			}
		}
	}
	envBool := func(key string, dst *bool) {
		if v, ok := os.LookupEnv(key); ok {
			if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
				*dst = b
			}
		}
	}

	envStr("GOMEMORY_STORAGE_BACKEND", &c.Storage.Backend)
	envStr("GOMEMORY_DATA_DIR", &c.Storage.DataDir)
	envStr("GOMEMORY_SQLITE_PATH", &c.Storage.SQLitePath)
	envStr("GOMEMORY_POSTGRES_DSN", &c.Storage.PostgresDSN)
	envStr("GOMEMORY_REDIS_URL", &c.Storage.RedisURL)

	envInt("GOMEMORY_CACHE_SIZE", &c.Cache.MaxSize)

	envStr("GOMEMORY_EMBEDDING_PROVIDER", &c.Embedding.Provider)
	envStr("GOMEMORY_EMBEDDING_API_KEY", &c.Embedding.APIKey)
	envStr("GOMEMORY_EMBEDDING_BASE_URL", &c.Embedding.BaseURL)
	envStr("GOMEMORY_EMBEDDING_MODEL", &c.Embedding.Model)
	envInt("GOMEMORY_EMBEDDING_DIMENSIONS", &c.Embedding.Dimensions)
	envInt("GOMEMORY_EMBEDDING_TIMEOUT", &c.Embedding.TimeoutSeconds)
	envInt("GOMEMORY_EMBEDDING_MAX_RETRIES", &c.Embedding.MaxRetries)

	envStr("GOMEMORY_VECTORS_SNAPSHOT", &c.Vectors.Snapshot)
	envStr("GOMEMORY_VECTORS_PATH", &c.Vectors.Path)
	envInt("GOMEMORY_VECTORS_AUTOSAVE", &c.Vectors.AutosaveSeconds)
	envStr("GOMEMORY_VECTORS_ENCRYPTION_KEY", &c.Vectors.EncryptionKey)
	envStr("GOMEMORY_S3_BUCKET", &c.Vectors.S3.Bucket)
	envStr("GOMEMORY_S3_ENDPOINT", &c.Vectors.S3.Endpoint)
	envStr("GOMEMORY_S3_REGION", &c.Vectors.S3.Region)

	envBool("GOMEMORY_RETENTION_ENABLED", &c.Retention.Enabled)
	envStr("GOMEMORY_RETENTION_SCHEDULE", &c.Retention.Schedule)
	envInt("GOMEMORY_TEMPORARY_TTL_HOURS", &c.Retention.TemporaryTTLHours)

	envStr("GOMEMORY_TRANSPORT", &c.Server.Transport)
	envStr("GOMEMORY_HTTP_ADDR", &c.Server.HTTPAddr)
	envStr("GOMEMORY_AUTH_TOKEN", &c.Server.AuthToken)
	envInt("GOMEMORY_TOOL_CALLS_PER_HOUR", &c.Server.ToolCallsPerHour)
	envStr("GOMEMORY_INJECTION_ACTION", &c.Server.InjectionAction)

	envBool("GOMEMORY_TELEMETRY_ENABLED", &c.Telemetry.Enabled)
	envStr("GOMEMORY_TELEMETRY_ENDPOINT", &c.Telemetry.Endpoint)
}
