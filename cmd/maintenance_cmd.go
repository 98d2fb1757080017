package cmd

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/gomemory/internal/memory"
	"github.com/nextlevelbuilder/gomemory/internal/store"
)

var (
	headingStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	labelStyle   = lipgloss.NewStyle().Faint(true).Width(18)
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	errStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

func reindexCmd() *cobra.Command {
	var (
		force      bool
		jsonOutput bool
	)
	cmd := &cobra.Command{
		Use:   "reindex",
		Short: "Generate embeddings for stored memories",
		Long:  "Embeds every memory that has no embedding yet. With --force, every memory is re-embedded.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(func(ctx context.Context, e *memory.Engine) error {
				report, err := e.GenerateEmbeddingsForExisting(ctx, memory.ReindexOptions{Force: force})
				if err != nil {
					return err
				}
				if jsonOutput {
					printJSON(report)
					return nil
				}
				fmt.Printf("Processed %d of %d memories (%d skipped, %d failed) in %s\n",
					report.Processed, report.Total, report.Skipped, report.Failed, report.Duration.Round(time.Millisecond))
				for _, msg := range report.Errors {
					fmt.Println(errStyle.Render("  " + msg))
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "re-embed memories that already have an embedding")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}

func similarityCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "similarity <text1> <text2>",
		Short: "Cosine similarity between the embeddings of two texts",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(func(ctx context.Context, e *memory.Engine) error {
				sim, err := e.CalculateSimilarity(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				fmt.Printf("%.6f\n", sim)
				return nil
			})
		},
	}
}

func statsCmd() *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show record, cache, index and vector statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(func(ctx context.Context, e *memory.Engine) error {
				st, err := e.Stats(ctx)
				if err != nil {
					return err
				}
				if jsonOutput {
					printJSON(st)
					return nil
				}
				printStats(st)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}

func sweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Delete expired TEMPORARY memories now",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(func(ctx context.Context, e *memory.Engine) error {
				n, err := e.SweepExpired(ctx, time.Now())
				if err != nil {
					return err
				}
				fmt.Printf("Removed %d expired memories\n", n)
				return nil
			})
		},
	}
}

func printStats(st *memory.Stats) {
	row := func(label string, value any) {
		fmt.Println(labelStyle.Render(label) + fmt.Sprint(value))
	}

	fmt.Println(headingStyle.Render("Records"))
	row("State", st.State)
	row("Total", st.TotalRecords)
	types := make([]store.RecordType, 0, len(st.ByType))
	for t := range st.ByType {
		types = append(types, t)
	}
	slices.Sort(types)
	for _, t := range types {
		row("  "+string(t), st.ByType[t])
	}
	if st.Expired > 0 {
		row("Expired", warnStyle.Render(fmt.Sprint(st.Expired)))
	}

	fmt.Println()
	fmt.Println(headingStyle.Render("Cache"))
	row("Size", fmt.Sprintf("%d / %d", st.Cache.Size, st.Cache.MaxSize))
	row("Hit rate", fmt.Sprintf("%.1f%% (%d hits, %d misses)", st.Cache.HitRate*100, st.Cache.Hits, st.Cache.Misses))

	fmt.Println()
	fmt.Println(headingStyle.Render("Index"))
	row("Tokens", st.Index.Tokens)
	row("Tags", st.Index.Tags)
	row("Conversations", st.Index.Conversations)
	row("Metadata keys", st.Index.Metadata)
	row("Dates", st.Index.Dates)

	fmt.Println()
	fmt.Println(headingStyle.Render("Vectors"))
	v := st.Vectors
	if v.Enabled {
		row("Semantic search", okStyle.Render("enabled"))
		row("Provider", fmt.Sprintf("%s (%s, %d dims)", v.Provider, v.Model, v.Dimensions))
	} else {
		row("Semantic search", warnStyle.Render("disabled"))
	}
	row("Vectors", v.TotalVectors)
	row("Avg dimensions", fmt.Sprintf("%.1f", v.AverageDimensions))
	row("Snapshot size", formatBytes(v.SnapshotSizeBytes))
	if !v.LastUpdated.IsZero() {
		row("Last updated", v.LastUpdated.Local().Format(time.DateTime))
	}
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
