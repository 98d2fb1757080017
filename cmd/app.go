package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nextlevelbuilder/gomemory/internal/config"
	"github.com/nextlevelbuilder/gomemory/internal/embedding"
	"github.com/nextlevelbuilder/gomemory/internal/memory"
	"github.com/nextlevelbuilder/gomemory/internal/store"
	"github.com/nextlevelbuilder/gomemory/internal/store/file"
	"github.com/nextlevelbuilder/gomemory/internal/store/memstore"
	"github.com/nextlevelbuilder/gomemory/internal/store/redisstore"
	"github.com/nextlevelbuilder/gomemory/internal/store/sqlstore"
	"github.com/nextlevelbuilder/gomemory/internal/vectorstore"
)

// app bundles the collaborators built from a config.
type app struct {
	cfg      *config.Config
	store    store.RecordStore
	vectors  *vectorstore.Store
	snapshot vectorstore.SnapshotStore // nil when vectors are not persisted
	gateway  *embedding.Gateway
	engine   *memory.Engine
	apiKey   string // resolved embedding key, registered with the scrubber

	closers []func() error
}

// openApp builds the store, vector store, embedding gateway and engine.
// The engine is not initialized; the first operation loads it.
func openApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	rt := &app{cfg: cfg}

	st, err := openRecordStore(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}
	rt.store = st
	rt.closers = append(rt.closers, st.Close)

	snap, err := rt.openSnapshot(ctx)
	if err != nil {
		rt.closeAll()
		return nil, err
	}
	rt.snapshot = snap
	rt.vectors = vectorstore.New(vectorstore.Options{
		Snapshot:         snap,
		AutosaveInterval: time.Duration(cfg.Vectors.AutosaveSeconds) * time.Second,
		Logger:           logger,
	})

	gw, err := rt.openGateway(logger)
	if err != nil {
		rt.closeAll()
		return nil, err
	}
	rt.gateway = gw

	rt.engine, err = memory.NewEngine(memory.Options{
		Store:        st,
		Gateway:      gw,
		Vectors:      rt.vectors,
		CacheSize:    cfg.Cache.MaxSize,
		TemporaryTTL: time.Duration(cfg.Retention.TemporaryTTLHours) * time.Hour,
		Logger:       logger,
	})
	if err != nil {
		rt.closeAll()
		return nil, err
	}
	return rt, nil
}

func openRecordStore(ctx context.Context, sc config.StorageConfig) (store.RecordStore, error) {
	switch sc.Backend {
	case "", "file":
		return file.NewRecordStore(config.ExpandHome(sc.DataDir))
	case "sqlite":
		path := config.ExpandHome(sc.SQLitePath)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite dir: %w", err)
		}
		return sqlstore.OpenSQLite(path)
	case "postgres":
		return sqlstore.OpenPostgres(sc.PostgresDSN)
	case "redis":
		return redisstore.Open(ctx, sc.RedisURL, sc.KeyPrefix)
	case "memory":
		return memstore.New(), nil
	}
	return nil, fmt.Errorf("unknown storage backend %q", sc.Backend)
}

func (rt *app) openSnapshot(ctx context.Context) (vectorstore.SnapshotStore, error) {
	snap, err := rt.openSnapshotSink(ctx)
	if err != nil || snap == nil || rt.cfg.Vectors.EncryptionKey == "" {
		return snap, err
	}
	key, err := config.ResolveSecret(rt.cfg.Vectors.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("vectors.encryptionKey: %w", err)
	}
	return vectorstore.NewEncryptedSnapshot(snap, key)
}

func (rt *app) openSnapshotSink(ctx context.Context) (vectorstore.SnapshotStore, error) {
	vc := rt.cfg.Vectors
	switch vc.Snapshot {
	case "", "none":
		return nil, nil
	case "file":
		return vectorstore.NewFileSnapshot(config.ExpandHome(vc.Path)), nil
	case "s3":
		secret, err := config.ResolveSecret(vc.S3.SecretAccessKey)
		if err != nil {
			return nil, fmt.Errorf("vectors.s3.secretAccessKey: %w", err)
		}
		return vectorstore.NewS3Snapshot(ctx, vectorstore.S3Config{
			Bucket:         vc.S3.Bucket,
			Key:            vc.S3.Key,
			Region:         vc.S3.Region,
			Endpoint:       vc.S3.Endpoint,
			AccessKey:      vc.S3.AccessKeyID,
			SecretKey:      secret,
			ForcePathStyle: vc.S3.ForcePathStyle,
		})
	case "redis":
		opts, err := redis.ParseURL(rt.cfg.Storage.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		client := redis.NewClient(opts)
		rt.closers = append(rt.closers, client.Close)
		prefix := rt.cfg.Storage.KeyPrefix
		if prefix == "" {
			prefix = "gomemory"
		}
		return vectorstore.NewRedisSnapshot(client, prefix+":vectors"), nil
	}
	return nil, fmt.Errorf("unknown snapshot backend %q", vc.Snapshot)
}

// openGateway returns a gateway with a nil provider when no provider is
// configured, which leaves semantic search disabled.
func (rt *app) openGateway(logger *slog.Logger) (*embedding.Gateway, error) {
	ec := rt.cfg.Embedding
	key, err := config.ResolveSecret(ec.APIKey)
	if err != nil {
		return nil, fmt.Errorf("embedding.apiKey: %w", err)
	}
	rt.apiKey = key

	provider, err := embedding.NewProvider(embedding.Config{
		Provider:   ec.Provider,
		APIKey:     key,
		BaseURL:    ec.BaseURL,
		Model:      ec.Model,
		Dimensions: ec.Dimensions,
		Timeout:    time.Duration(ec.TimeoutSeconds) * time.Second,
	})
	if err != nil {
		return nil, err
	}
	if provider == nil {
		logger.Info("no embedding provider configured, semantic search disabled")
	}

	retry := embedding.DefaultRetryConfig()
	retry.MaxRetries = ec.MaxRetries
	if ec.TimeoutSeconds > 0 {
		retry.Timeout = time.Duration(ec.TimeoutSeconds) * time.Second
	}
	return embedding.NewGateway(provider, embedding.Options{
		Retry:             retry,
		RequestsPerMinute: ec.RequestsPerMinute,
		CacheSize:         ec.CacheSize,
		MaxTokens:         ec.MaxTokens,
		Logger:            logger,
	}), nil
}

// Close flushes the engine and releases the store and clients.
func (rt *app) Close(ctx context.Context) {
	rt.engine.Close(ctx)
	rt.closeAll()
}

func (rt *app) closeAll() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](); err != nil {
			slog.Warn("close failed", "error", err)
		}
	}
	rt.closers = nil
}

// withEngine opens the app for a one-shot command, runs fn and closes it.
func withEngine(fn func(ctx context.Context, e *memory.Engine) error) error {
	cfg := loadConfig()
	ctx := context.Background()
	rt, err := openApp(ctx, cfg, slog.Default())
	if err != nil {
		return err
	}
	defer rt.Close(ctx)
	return fn(ctx, rt.engine)
}
