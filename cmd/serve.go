package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/gomemory/internal/config"
	"github.com/nextlevelbuilder/gomemory/internal/cron"
	httpapi "github.com/nextlevelbuilder/gomemory/internal/http"
	"github.com/nextlevelbuilder/gomemory/internal/mcp"
	"github.com/nextlevelbuilder/gomemory/internal/memory"
	"github.com/nextlevelbuilder/gomemory/internal/tools"
)

func serveCmd() *cobra.Command {
	var transport, addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the memory tools over MCP (stdio or HTTP)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig()
			if transport != "" {
				cfg.Server.Transport = transport
			}
			if addr != "" {
				cfg.Server.HTTPAddr = addr
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runServe(cfg)
		},
	}
	cmd.Flags().StringVar(&transport, "transport", "", "stdio or http (default from config)")
	cmd.Flags().StringVar(&addr, "addr", "", "listen address for the http transport")
	return cmd
}

func runServe(cfg *config.Config) error {
	cfgPath := resolveConfigPath()
	logger := slog.Default()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry := initTelemetry(ctx, cfg)
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		shutdownTelemetry(sctx)
	}()

	rt, err := openApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		rt.Close(sctx)
	}()

	if err := rt.engine.Init(ctx); err != nil {
		return fmt.Errorf("initialize memory engine: %w", err)
	}
	rt.vectors.Start()

	registry, err := buildRegistry(ctx, rt, logger)
	if err != nil {
		return err
	}

	var sweeper *cron.Service
	if cfg.Retention.Enabled {
		sweeper, err = cron.NewService(cfg.Retention.Schedule, rt.engine.SweepExpired, logger)
		if err != nil {
			return err
		}
		if err := sweeper.Start(); err != nil {
			return err
		}
		defer sweeper.Stop()
	}

	watcher, err := config.NewWatcher(cfgPath, logger)
	if err != nil {
		logger.Warn("config hot reload unavailable", "error", err)
	} else {
		watcher.OnChange(reloadHandler(cfg, rt.engine, sweeper, logger))
		if err := watcher.Start(); err != nil {
			logger.Warn("config hot reload unavailable", "error", err)
		}
		defer watcher.Stop()
	}

	mcpServer := mcp.NewServer(registry, Version, logger)
	if cfg.Server.Transport == "http" {
		token, err := config.ResolveSecret(cfg.Server.AuthToken)
		if err != nil {
			return fmt.Errorf("server.authToken: %w", err)
		}
		if token == "" {
			logger.Warn("http transport without server.authToken; every client is trusted")
		}
		srv := httpapi.NewServer(cfg.Server.HTTPAddr, token, registry, mcpServer, logger)
		if err := srv.ListenAndServe(ctx); err != nil {
			return err
		}
	} else if err := mcpServer.ServeStdio(ctx, os.Stdin, os.Stdout); err != nil && ctx.Err() == nil {
		return err
	}
	logger.Info("shutting down")
	return nil
}

// buildRegistry registers the memory tools with the configured rate limit,
// credential scrubbing and injection guard.
func buildRegistry(ctx context.Context, rt *app, logger *slog.Logger) (*tools.Registry, error) {
	registry := tools.NewRegistry(logger)

	if n := rt.cfg.Server.ToolCallsPerHour; n > 0 {
		limiter := tools.NewToolRateLimiter(n)
		registry.SetRateLimiter(limiter)
		go func() {
			ticker := time.NewTicker(10 * time.Minute)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					limiter.Cleanup()
				}
			}
		}()
	}
	if rt.cfg.Server.ScrubErrors {
		scrubber := &tools.Scrubber{}
		scrubber.AddSecret(rt.apiKey)
		if token, err := config.ResolveSecret(rt.cfg.Server.AuthToken); err == nil {
			scrubber.AddSecret(token)
		}
		registry.SetScrubber(scrubber)
	}

	guard, err := tools.NewContentGuard(rt.cfg.Server.InjectionAction)
	if err != nil {
		return nil, err
	}
	registry.SetContentGuard(guard)

	tools.RegisterMemoryTools(registry, rt.engine)
	return registry, nil
}

// reloadHandler applies the settings that can change without a restart:
// cache size, TEMPORARY TTL and the retention schedule.
func reloadHandler(active *config.Config, engine *memory.Engine, sweeper *cron.Service, logger *slog.Logger) config.ChangeHandler {
	prev := snapshotSections(active)
	return func(next *config.Config) {
		cur := snapshotSections(next)
		if cur.storage != prev.storage || cur.embedding != prev.embedding || cur.vectors != prev.vectors {
			logger.Warn("storage, embedding or vector settings changed; restart to apply")
		}
		if cur.cacheSize != prev.cacheSize {
			engine.SetCacheSize(cur.cacheSize)
		}
		if cur.ttlHours != prev.ttlHours {
			engine.SetTemporaryTTL(time.Duration(cur.ttlHours) * time.Hour)
		}
		if sweeper != nil && cur.schedule != prev.schedule {
			if err := sweeper.SetSchedule(cur.schedule); err != nil {
				logger.Warn("retention schedule not applied", "error", err)
			}
		}
		active.ReplaceFrom(next)
		prev = cur
		logger.Info("config reloaded", "hash", next.Hash())
	}
}

type reloadable struct {
	storage   config.StorageConfig
	embedding config.EmbeddingConfig
	vectors   config.VectorsConfig
	cacheSize int
	ttlHours  int
	schedule  string
}

func snapshotSections(c *config.Config) reloadable {
	return reloadable{
		storage:   c.Storage,
		embedding: c.Embedding,
		vectors:   c.Vectors,
		cacheSize: c.Cache.MaxSize,
		ttlHours:  c.Retention.TemporaryTTLHours,
		schedule:  c.Retention.Schedule,
	}
}
