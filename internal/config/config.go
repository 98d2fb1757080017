// Package config loads the gomemory configuration file.
//
// The file is JSON5 (comments and trailing commas allowed). Missing fields
// keep their defaults; GOMEMORY_* environment variables override the file.
package config

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/titanous/json5"
)

// DefaultPath is used when neither --config nor GOMEMORY_CONFIG is set.
const DefaultPath = "~/.gomemory/config.json"

// Config is the root configuration.
type Config struct {
	Storage   StorageConfig   `json:"storage"`
	Cache     CacheConfig     `json:"cache"`
	Embedding EmbeddingConfig `json:"embedding"`
	Vectors   VectorsConfig   `json:"vectors"`
	Retention RetentionConfig `json:"retention"`
	Telemetry TelemetryConfig `json:"telemetry"`
	Server    ServerConfig    `json:"server"`

	mu sync.RWMutex
}

type StorageConfig struct {
	Backend     string `json:"backend"` // "file", "sqlite", "postgres", "redis" or "memory"
	DataDir     string `json:"dataDir,omitempty"`
	SQLitePath  string `json:"sqlitePath,omitempty"`
	PostgresDSN string `json:"postgresDSN,omitempty"`
	RedisURL    string `json:"redisURL,omitempty"`
	KeyPrefix   string `json:"keyPrefix,omitempty"`
}

type CacheConfig struct {
	MaxSize int `json:"maxSize"`
}

// EmbeddingConfig selects the embedding provider. An empty provider (or
// "none") disables semantic search.
type EmbeddingConfig struct {
	Provider          string `json:"provider"`
	APIKey            string `json:"apiKey,omitempty"` // literal, "env:NAME" or "keyring:NAME"
	BaseURL           string `json:"baseURL,omitempty"`
	Model             string `json:"model,omitempty"`
	Dimensions        int    `json:"dimensions,omitempty"`
	TimeoutSeconds    int    `json:"timeoutSeconds"`
	MaxRetries        int    `json:"maxRetries"`
	RequestsPerMinute int    `json:"requestsPerMinute,omitempty"`
	CacheSize         int64  `json:"cacheSize,omitempty"`
	MaxTokens         int    `json:"maxTokens,omitempty"`
}

type VectorsConfig struct {
	Snapshot        string   `json:"snapshot"` // "file", "s3", "redis" or "none"
	Path            string   `json:"path,omitempty"`
	AutosaveSeconds int      `json:"autosaveSeconds"`
	S3              S3Config `json:"s3,omitempty"`
	// EncryptionKey seals snapshots with AES-256-GCM: literal, "env:NAME"
	// or "keyring:NAME". Empty stores them in plaintext.
	EncryptionKey string `json:"encryptionKey,omitempty"`
}

type S3Config struct {
	Bucket          string `json:"bucket,omitempty"`
	Key             string `json:"key,omitempty"`
	Region          string `json:"region,omitempty"`
	Endpoint        string `json:"endpoint,omitempty"`
	AccessKeyID     string `json:"accessKeyId,omitempty"`
	SecretAccessKey string `json:"secretAccessKey,omitempty"`
	ForcePathStyle  bool   `json:"forcePathStyle,omitempty"`
}

// RetentionConfig controls expiry of TEMPORARY records.
type RetentionConfig struct {
	Enabled           bool   `json:"enabled"`
	Schedule          string `json:"schedule"`
	TemporaryTTLHours int    `json:"temporaryTTLHours"`
}

// ServerConfig tunes the tool surface.
type ServerConfig struct {
	Transport string `json:"transport"` // "stdio" (default) or "http"
	HTTPAddr  string `json:"httpAddr,omitempty"`
	// AuthToken guards the HTTP transport: literal, "env:NAME" or "keyring:NAME".
	AuthToken string `json:"authToken,omitempty"`

	// ToolCallsPerHour caps calls per tool in a sliding hour; 0 disables the cap.
	ToolCallsPerHour int  `json:"toolCallsPerHour,omitempty"`
	ScrubErrors      bool `json:"scrubErrors"`
	// InjectionAction handles memory writes that look like prompt
	// injections: "off", "log", "warn" (default) or "block".
	InjectionAction string `json:"injectionAction"`
}

type TelemetryConfig struct {
	Enabled     bool              `json:"enabled"`
	Endpoint    string            `json:"endpoint,omitempty"`
	Protocol    string            `json:"protocol,omitempty"` // "grpc" (default) or "http"
	Insecure    bool              `json:"insecure,omitempty"`
	ServiceName string            `json:"serviceName,omitempty"`
	Headers     map[string]string `json:"headers,omitempty"`
}

// Default returns the built-in configuration: file storage under
// ~/.gomemory, no embedding provider, file snapshots autosaved every 30s.
func Default() *Config {
	return &Config{
		Storage: StorageConfig{
			Backend:    "file",
			DataDir:    "~/.gomemory/data",
			SQLitePath: "~/.gomemory/memory.db",
			KeyPrefix:  "gomemory",
		},
		Cache: CacheConfig{MaxSize: 1000},
		Embedding: EmbeddingConfig{
			TimeoutSeconds: 30,
			MaxRetries:     3,
			CacheSize:      2048,
			MaxTokens:      8191,
		},
		Vectors: VectorsConfig{
			Snapshot:        "file",
			Path:            "~/.gomemory/data/vectors.json",
			AutosaveSeconds: 30,
			S3:              S3Config{Key: "gomemory/vectors.json"},
		},
		Retention: RetentionConfig{
			Schedule:          "0 * * * *",
			TemporaryTTLHours: 24,
		},
		Telemetry: TelemetryConfig{Protocol: "grpc", ServiceName: "gomemory"},
		Server: ServerConfig{
			Transport:       "stdio",
			HTTPAddr:        "127.0.0.1:8765",
			ScrubErrors:     true,
			InjectionAction: "warn",
		},
	}
}

// Load reads path over the defaults and applies environment overrides. A
// missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(ExpandHome(path))
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := json5.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes cfg as indented JSON, creating parent directories. The file is
// written 0600 because it may hold an API key.
func Save(path string, cfg *Config) error {
	path = ExpandHome(path)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	cfg.mu.RLock()
	data, err := json.MarshalIndent(cfg, "", "  ")
	cfg.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return os.Rename(tmp, path)
}

// ResolvePath picks the config path: explicit flag, then GOMEMORY_CONFIG,
// then DefaultPath.
func ResolvePath(flag string) string {
	if flag != "" {
		return ExpandHome(flag)
	}
	if env := os.Getenv("GOMEMORY_CONFIG"); env != "" {
		return ExpandHome(env)
	}
	return ExpandHome(DefaultPath)
}

// ExpandHome replaces a leading "~" with the user's home directory.
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

// ReplaceFrom copies every section of src into c.
func (c *Config) ReplaceFrom(src *Config) {
	src.mu.RLock()
	storage, cache, emb, vec, ret, tel, srv := src.Storage, src.Cache, src.Embedding, src.Vectors, src.Retention, src.Telemetry, src.Server
	src.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.Storage, c.Cache, c.Embedding, c.Vectors, c.Retention, c.Telemetry, c.Server = storage, cache, emb, vec, ret, tel, srv
}

// Hash returns a short content hash, used to detect effective changes on reload.
func (c *Config) Hash() string {
	c.mu.RLock()
	data, _ := json.Marshal(c)
	c.mu.RUnlock()
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:8])
}

// MaskedCopy returns a copy with secrets replaced by "***", for display.
func (c *Config) MaskedCopy() *Config {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := &Config{
		Storage:   c.Storage,
		Cache:     c.Cache,
		Embedding: c.Embedding,
		Vectors:   c.Vectors,
		Retention: c.Retention,
		Telemetry: c.Telemetry,
		Server:    c.Server,
	}
	out.Embedding.APIKey = maskSecret(out.Embedding.APIKey)
	out.Vectors.S3.SecretAccessKey = maskSecret(out.Vectors.S3.SecretAccessKey)
	out.Vectors.EncryptionKey = maskSecret(out.Vectors.EncryptionKey)
	out.Server.AuthToken = maskSecret(out.Server.AuthToken)
	out.Storage.PostgresDSN = maskURLPassword(out.Storage.PostgresDSN)
	out.Storage.RedisURL = maskURLPassword(out.Storage.RedisURL)
	if len(c.Telemetry.Headers) > 0 {
		out.Telemetry.Headers = make(map[string]string, len(c.Telemetry.Headers))
		for k := range c.Telemetry.Headers {
			out.Telemetry.Headers[k] = "***"
		}
	}
	return out
}

// maskSecret hides literal secrets but keeps "env:" and "keyring:" references,
// which are not secret themselves.
func maskSecret(s string) string {
	if s == "" || strings.HasPrefix(s, envPrefix) || strings.HasPrefix(s, keyringPrefix) {
		return s
	}
	return "***"
}

func maskURLPassword(raw string) string {
	at := strings.LastIndex(raw, "@")
	scheme := strings.Index(raw, "://")
	if at < 0 || scheme < 0 || at < scheme {
		return raw
	}
	userinfo := raw[scheme+3 : at]
	colon := strings.Index(userinfo, ":")
	if colon < 0 {
		return raw
	}
	return raw[:scheme+3] + userinfo[:colon] + ":***" + raw[at:]
}
