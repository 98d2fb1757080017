package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/gomemory/internal/config"
	"github.com/nextlevelbuilder/gomemory/internal/vectorstore"
)

func doctorCmd() *cobra.Command {
	var probe bool
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration, storage and embedding provider health",
		Run: func(cmd *cobra.Command, args []string) {
			runDoctor(probe)
		},
	}
	cmd.Flags().BoolVar(&probe, "probe", false, "send a test embedding request to the provider")
	return cmd
}

func runDoctor(probe bool) {
	fmt.Println(headingStyle.Render("gomemory doctor"))
	fmt.Printf("  Version:  %s\n", Version)
	fmt.Printf("  OS:       %s/%s\n", runtime.GOOS, runtime.GOARCH)
	fmt.Printf("  Go:       %s\n", runtime.Version())
	fmt.Println()

	cfgPath := resolveConfigPath()
	fmt.Printf("  Config:   %s", cfgPath)
	if _, err := os.Stat(cfgPath); err != nil {
		fmt.Println(warnStyle.Render(" (NOT FOUND, using defaults)"))
	} else {
		fmt.Println(okStyle.Render(" (OK)"))
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Println(errStyle.Render("  Config load error:"))
		for _, line := range strings.Split(err.Error(), "\n") {
			fmt.Println(errStyle.Render("    " + line))
		}
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	fmt.Println()
	fmt.Println("  Storage:")
	checkStorage(ctx, cfg)

	// Opening the full app covers the snapshot and provider settings.
	quiet := slog.New(slog.DiscardHandler)
	rt, err := openApp(ctx, cfg, quiet)
	if err != nil {
		fmt.Println()
		fmt.Println(errStyle.Render("  Setup error: " + err.Error()))
		return
	}
	defer rt.Close(ctx)

	fmt.Println()
	fmt.Println("  Vectors:")
	checkSnapshot(ctx, rt)

	fmt.Println()
	fmt.Println("  Embedding:")
	checkEmbedding(ctx, rt, probe)

	fmt.Println()
	fmt.Println("  Server:")
	fmt.Printf("    %-12s %s\n", "Transport:", cfg.Server.Transport)
	if cfg.Server.Transport == "http" {
		fmt.Printf("    %-12s %s\n", "Address:", cfg.Server.HTTPAddr)
		if cfg.Server.AuthToken == "" {
			fmt.Printf("    %-12s %s\n", "Auth:", warnStyle.Render("(no token, open to any client)"))
		}
	}
	fmt.Printf("    %-12s %s\n", "Guard:", cfg.Server.InjectionAction)

	fmt.Println()
	fmt.Println("  Retention:")
	if cfg.Retention.Enabled {
		fmt.Printf("    %-12s %s\n", "Schedule:", cfg.Retention.Schedule)
	} else {
		fmt.Printf("    %-12s %s\n", "Sweeper:", "disabled")
	}
	fmt.Printf("    %-12s %dh\n", "TTL:", cfg.Retention.TemporaryTTLHours)

	fmt.Println()
	fmt.Println("Doctor check complete.")
}

func checkStorage(ctx context.Context, cfg *config.Config) {
	sc := cfg.Storage
	fmt.Printf("    %-12s %s\n", "Backend:", sc.Backend)
	switch sc.Backend {
	case "file":
		fmt.Printf("    %-12s %s\n", "Data dir:", config.ExpandHome(sc.DataDir))
	case "sqlite":
		fmt.Printf("    %-12s %s\n", "Database:", config.ExpandHome(sc.SQLitePath))
	}

	st, err := openRecordStore(ctx, sc)
	if err != nil {
		fmt.Printf("    %-12s %s\n", "Status:", errStyle.Render(err.Error()))
		return
	}
	defer st.Close()
	files, err := st.ListFiles(ctx)
	if err != nil {
		fmt.Printf("    %-12s %s\n", "Status:", errStyle.Render(err.Error()))
		return
	}
	fmt.Printf("    %-12s %s (%d files)\n", "Status:", okStyle.Render("OK"), len(files))
}

// checkSnapshot loads the snapshot into a throwaway store that is never
// closed, so an unreadable snapshot is reported without being overwritten.
func checkSnapshot(ctx context.Context, rt *app) {
	fmt.Printf("    %-12s %s\n", "Snapshot:", rt.cfg.Vectors.Snapshot)
	if rt.snapshot == nil {
		fmt.Printf("    %-12s %s\n", "Status:", warnStyle.Render("(not persisted)"))
		return
	}
	fmt.Printf("    %-12s %s\n", "Location:", rt.snapshot.Location())
	vs := vectorstore.New(vectorstore.Options{Snapshot: rt.snapshot, Logger: slog.New(slog.DiscardHandler)})
	if err := vs.Load(ctx); err != nil && !errors.Is(err, vectorstore.ErrSnapshotNotFound) {
		fmt.Printf("    %-12s %s\n", "Status:", errStyle.Render(err.Error()))
		return
	}
	if vs.Dirty() {
		fmt.Printf("    %-12s %s\n", "Status:", warnStyle.Render("unreadable, vectors will be rebuilt from stored records on next start"))
		return
	}
	st := vs.Stats(ctx)
	fmt.Printf("    %-12s %s (%d vectors, %s)\n", "Status:", okStyle.Render("OK"),
		st.TotalVectors, formatBytes(st.SnapshotSizeBytes))
}

func checkEmbedding(ctx context.Context, rt *app, probe bool) {
	p := rt.gateway.Provider()
	if p == nil {
		fmt.Printf("    %-12s %s\n", "Provider:", warnStyle.Render("(not configured, semantic search disabled)"))
		return
	}
	fmt.Printf("    %-12s %s\n", "Provider:", p.Name())
	fmt.Printf("    %-12s %s (%d dims)\n", "Model:", p.Model(), p.Dimensions())
	if rt.apiKey != "" {
		fmt.Printf("    %-12s %s\n", "API key:", maskKey(rt.apiKey))
	}
	if !probe {
		return
	}
	start := time.Now()
	res, err := rt.gateway.GenerateEmbedding(ctx, "gomemory doctor probe")
	if err != nil {
		fmt.Printf("    %-12s %s\n", "Probe:", errStyle.Render(err.Error()))
		return
	}
	fmt.Printf("    %-12s %s (%d dims in %s)\n", "Probe:", okStyle.Render("OK"),
		res.Dimensions, time.Since(start).Round(time.Millisecond))
}

func maskKey(key string) string {
	if len(key) <= 8 {
		return strings.Repeat("*", len(key))
	}
	return key[:4] + strings.Repeat("*", len(key)-8) + key[len(key)-4:]
}
