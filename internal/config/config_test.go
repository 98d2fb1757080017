package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_MissingFileGivesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Storage.Backend != "file" || cfg.Cache.MaxSize != 1000 || cfg.Embedding.MaxRetries != 3 {
		t.Errorf("unexpected defaults: %+v", cfg.Storage)
	}
	if cfg.Embedding.Provider != "" {
		t.Errorf("provider = %q, want none by default", cfg.Embedding.Provider)
	}
}

func TestLoad_JSON5OverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	data := `{
	// comments and trailing commas are fine
	storage: { backend: "sqlite", sqlitePath: "/tmp/m.db", },
	embedding: { provider: "hash", dimensions: 128 },
	retention: { enabled: true, schedule: "*/10 * * * *" },
}`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Storage.Backend != "sqlite" || cfg.Storage.SQLitePath != "/tmp/m.db" {
		t.Errorf("storage = %+v", cfg.Storage)
	}
	if cfg.Embedding.Provider != "hash" || cfg.Embedding.Dimensions != 128 {
		t.Errorf("embedding = %+v", cfg.Embedding)
	}
	// Untouched fields keep defaults.
	if cfg.Embedding.TimeoutSeconds != 30 || cfg.Vectors.AutosaveSeconds != 30 {
		t.Errorf("defaults lost: timeout=%d autosave=%d", cfg.Embedding.TimeoutSeconds, cfg.Vectors.AutosaveSeconds)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("GOMEMORY_EMBEDDING_PROVIDER", "ollama")
	t.Setenv("GOMEMORY_CACHE_SIZE", "42")
	t.Setenv("GOMEMORY_RETENTION_ENABLED", "true")
	t.Setenv("GOMEMORY_EMBEDDING_DIMENSIONS", "not-a-number")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Embedding.Provider != "ollama" || cfg.Cache.MaxSize != 42 || !cfg.Retention.Enabled {
		t.Errorf("env not applied: %+v %+v", cfg.Embedding, cfg.Cache)
	}
	if cfg.Embedding.Dimensions != 0 {
		t.Errorf("bad number should be ignored, got %d", cfg.Embedding.Dimensions)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"unknown backend", func(c *Config) { c.Storage.Backend = "mongo" }, "storage.backend"},
		{"postgres without dsn", func(c *Config) { c.Storage.Backend = "postgres" }, "postgresDSN"},
		{"zero cache", func(c *Config) { c.Cache.MaxSize = 0 }, "cache.maxSize"},
		{"unknown provider", func(c *Config) { c.Embedding.Provider = "word2vec" }, "embedding.provider"},
		{"none provider", func(c *Config) { c.Embedding.Provider = "none" }, ""},
		{"s3 without bucket", func(c *Config) { c.Vectors.Snapshot = "s3" }, "vectors.s3.bucket"},
		{"bad schedule", func(c *Config) { c.Retention.Enabled = true; c.Retention.Schedule = "often" }, "retention.schedule"},
		{"short encryption key", func(c *Config) { c.Vectors.EncryptionKey = "hunter2" }, "vectors.encryptionKey"},
		{"encryption key reference", func(c *Config) { c.Vectors.EncryptionKey = "env:GOMEMORY_TEST_KEY" }, ""},
		{"negative tool rate", func(c *Config) { c.Server.ToolCallsPerHour = -1 }, "server.toolCallsPerHour"},
		{"unknown transport", func(c *Config) { c.Server.Transport = "grpc" }, "server.transport"},
		{"http without addr", func(c *Config) { c.Server.Transport = "http"; c.Server.HTTPAddr = "" }, "server.httpAddr"},
		{"bad telemetry protocol", func(c *Config) { c.Telemetry.Enabled = true; c.Telemetry.Protocol = "udp" }, "telemetry.protocol"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("err = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestSaveAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")
	cfg := Default()
	cfg.Embedding.Provider = "openai"
	cfg.Embedding.APIKey = "env:OPENAI_API_KEY"
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("mode = %v, want 0600", perm)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Hash() != cfg.Hash() {
		t.Error("hash differs after round trip")
	}
}

func TestMaskedCopy(t *testing.T) {
	cfg := Default()
	cfg.Embedding.APIKey = "sk-live-123"
	cfg.Storage.PostgresDSN = "postgres://app:hunter2@db:5432/mem"
	cfg.Telemetry.Headers = map[string]string{"Authorization": "Bearer x"}

	m := cfg.MaskedCopy()
	if m.Embedding.APIKey != "***" {
		t.Errorf("api key = %q", m.Embedding.APIKey)
	}
	if m.Storage.PostgresDSN != "postgres://app:***@db:5432/mem" {
		t.Errorf("dsn = %q", m.Storage.PostgresDSN)
	}
	if m.Telemetry.Headers["Authorization"] != "***" {
		t.Errorf("headers = %v", m.Telemetry.Headers)
	}
	if cfg.Embedding.APIKey != "sk-live-123" {
		t.Error("original was modified")
	}

	cfg.Embedding.APIKey = "keyring:openai"
	if got := cfg.MaskedCopy().Embedding.APIKey; got != "keyring:openai" {
		t.Errorf("keyring reference masked: %q", got)
	}
}

func TestResolveSecret(t *testing.T) {
	t.Setenv("GOMEMORY_TEST_KEY", "from-env")

	if v, err := ResolveSecret("env:GOMEMORY_TEST_KEY"); err != nil || v != "from-env" {
		t.Errorf("env ref = %q, %v", v, err)
	}
	if _, err := ResolveSecret("env:GOMEMORY_TEST_MISSING"); err == nil {
		t.Error("expected error for unset variable")
	}
	if v, err := ResolveSecret("plain-value"); err != nil || v != "plain-value" {
		t.Errorf("literal = %q, %v", v, err)
	}
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	if got := ExpandHome("~/x/y"); got != filepath.Join(home, "x", "y") {
		t.Errorf("ExpandHome = %q", got)
	}
	if got := ExpandHome("/abs/path"); got != "/abs/path" {
		t.Errorf("absolute path changed: %q", got)
	}
}

func TestWatcher_ReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(`{cache: {maxSize: 10}}`), 0o600); err != nil {
		t.Fatal(err)
	}

	w, err := NewWatcher(path, nil)
	if err != nil {
		t.Fatal(err)
	}
	w.debounce = 20 * time.Millisecond
	got := make(chan int, 4)
	w.OnChange(func(cfg *Config) { got <- cfg.Cache.MaxSize })
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if err := os.WriteFile(path, []byte(`{cache: {maxSize: 99}}`), 0o600); err != nil {
		t.Fatal(err)
	}

	select {
	case n := <-got:
		if n != 99 {
			t.Errorf("reloaded maxSize = %d, want 99", n)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("watcher never reloaded")
	}
}
