package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/gomemory/internal/memory"
	"github.com/nextlevelbuilder/gomemory/internal/store"
)

// contentColumnWidth is the display width of the content preview in tables.
const contentColumnWidth = 60

func addCmd() *cobra.Command {
	var (
		typ          string
		conversation string
		tags         []string
		meta         map[string]string
		jsonOutput   bool
	)
	cmd := &cobra.Command{
		Use:   "add <content>",
		Short: "Store a new memory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := memory.CreateInput{Content: args[0], ConversationID: conversation, Tags: tags}
			var err error
			if in.Type, err = parseTypeFlag(typ); err != nil {
				return err
			}
			if in.Metadata, err = parseMetaFlag(meta); err != nil {
				return err
			}
			return withEngine(func(ctx context.Context, e *memory.Engine) error {
				rec, err := e.Create(ctx, in)
				if err != nil {
					return err
				}
				printRecord(rec, jsonOutput)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&typ, "type", "t", "GLOBAL", "GLOBAL, CONVERSATION or TEMPORARY")
	cmd.Flags().StringVar(&conversation, "conversation", "", "conversation id (required for CONVERSATION)")
	cmd.Flags().StringSliceVar(&tags, "tag", nil, "tag (repeatable)")
	cmd.Flags().StringToStringVar(&meta, "meta", nil, "metadata key=value (repeatable)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}

func getCmd() *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Show one memory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(func(ctx context.Context, e *memory.Engine) error {
				rec, err := e.Get(ctx, args[0])
				if err != nil {
					return err
				}
				printRecord(rec, jsonOutput)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}

func listCmd() *cobra.Command {
	var (
		q          memory.ReadQuery
		typ        string
		meta       map[string]string
		from, to   string
		jsonOutput bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List memories matching the given criteria, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if q.Type, err = parseTypeFlag(typ); err != nil {
				return err
			}
			if q.Metadata, err = parseMetaFlag(meta); err != nil {
				return err
			}
			if q.DateFrom, err = parseDateFlag(from, false); err != nil {
				return fmt.Errorf("--from: %w", err)
			}
			if q.DateTo, err = parseDateFlag(to, true); err != nil {
				return fmt.Errorf("--to: %w", err)
			}
			return withEngine(func(ctx context.Context, e *memory.Engine) error {
				recs, err := e.Read(ctx, q)
				if err != nil {
					return err
				}
				printRecords(recs, jsonOutput)
				return nil
			})
		},
	}
	f := cmd.Flags()
	f.StringVarP(&q.Text, "text", "q", "", "keywords that must all appear")
	f.StringSliceVar(&q.Tags, "tag", nil, "tag that must be present (repeatable)")
	f.StringVarP(&typ, "type", "t", "", "GLOBAL, CONVERSATION or TEMPORARY")
	f.StringVar(&q.ConversationID, "conversation", "", "conversation id")
	f.StringToStringVar(&meta, "meta", nil, "metadata key=value (repeatable)")
	f.StringVar(&from, "from", "", "created at or after (RFC 3339 or YYYY-MM-DD)")
	f.StringVar(&to, "to", "", "created at or before (RFC 3339 or YYYY-MM-DD)")
	f.StringVar(&q.Filter, "filter", "", `CEL expression, e.g. 'type == "GLOBAL" && "work" in tags'`)
	f.IntVarP(&q.Limit, "limit", "n", 20, "maximum results (0 = all)")
	f.IntVar(&q.Offset, "offset", 0, "skip this many results")
	f.BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}

func searchCmd() *cobra.Command {
	var (
		limit         int
		threshold     float64
		hybrid        bool
		keywordWeight float64
		jsonOutput    bool
	)
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Rank memories by semantic similarity to a query",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q := memory.SemanticQuery{Query: args[0], Limit: limit, Hybrid: hybrid}
			if cmd.Flags().Changed("threshold") {
				q.Threshold = &threshold
			}
			if cmd.Flags().Changed("keyword-weight") {
				q.KeywordWeight = &keywordWeight
			}
			return withEngine(func(ctx context.Context, e *memory.Engine) error {
				hits, err := e.SemanticSearch(ctx, q)
				if err != nil {
					return err
				}
				printHits(hits, jsonOutput)
				return nil
			})
		},
	}
	f := cmd.Flags()
	f.IntVarP(&limit, "limit", "n", memory.DefaultSearchLimit, "maximum results")
	f.Float64Var(&threshold, "threshold", 0.7, "minimum cosine similarity")
	f.BoolVar(&hybrid, "hybrid", false, "merge keyword matches into the ranking")
	f.Float64Var(&keywordWeight, "keyword-weight", memory.DefaultKeywordWeight, "keyword weight in hybrid mode, 0..1")
	f.BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}

func updateCmd() *cobra.Command {
	var (
		content    string
		tags       []string
		meta       map[string]string
		jsonOutput bool
	)
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change a memory's content, tags or metadata",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var in memory.UpdateInput
			if cmd.Flags().Changed("content") {
				in.Content = &content
			}
			if cmd.Flags().Changed("tag") {
				in.Tags = &tags
			}
			if cmd.Flags().Changed("meta") {
				md, err := parseMetaFlag(meta)
				if err != nil {
					return err
				}
				if md == nil {
					md = store.Metadata{}
				}
				in.Metadata = md
			}
			return withEngine(func(ctx context.Context, e *memory.Engine) error {
				rec, err := e.Update(ctx, args[0], in)
				if err != nil {
					return err
				}
				printRecord(rec, jsonOutput)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&content, "content", "", "new content (re-embedded)")
	cmd.Flags().StringSliceVar(&tags, "tag", nil, "replacement tag set (repeatable)")
	cmd.Flags().StringToStringVar(&meta, "meta", nil, "replacement metadata key=value (repeatable)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}

func deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a memory and its embedding",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(func(ctx context.Context, e *memory.Engine) error {
				if err := e.Delete(ctx, args[0]); err != nil {
					return err
				}
				fmt.Printf("Deleted memory %s\n", args[0])
				return nil
			})
		},
	}
}

// --- Flag parsing ---

func parseTypeFlag(s string) (store.RecordType, error) {
	if s == "" {
		return "", nil
	}
	t, ok := store.ParseRecordType(s)
	if !ok {
		return "", fmt.Errorf("invalid --type %q: want GLOBAL, CONVERSATION or TEMPORARY", s)
	}
	return t, nil
}

// parseMetaFlag decodes each value as JSON when possible, so --meta n=3
// stores a number and --meta ok=true a bool; anything else stays a string.
func parseMetaFlag(kv map[string]string) (store.Metadata, error) {
	if len(kv) == 0 {
		return nil, nil
	}
	raw := make(map[string]any, len(kv))
	for k, v := range kv {
		var decoded any
		if err := json.Unmarshal([]byte(v), &decoded); err == nil {
			raw[k] = decoded
		} else {
			raw[k] = v
		}
	}
	md, err := store.MetadataOf(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid --meta: %w", err)
	}
	return md, nil
}

func parseDateFlag(s string, endOfDay bool) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	d, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("want RFC 3339 or YYYY-MM-DD, got %q", s)
	}
	if endOfDay {
		d = d.Add(24*time.Hour - time.Nanosecond)
	}
	return d, nil
}

// --- Shared display ---

func printJSON(v any) {
	data, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(data))
}

func printRecord(rec *store.Record, jsonOutput bool) {
	if jsonOutput {
		printJSON(rec)
		return
	}
	fmt.Printf("ID:        %s\n", rec.ID)
	fmt.Printf("Type:      %s\n", rec.Type)
	if rec.ConversationID != "" {
		fmt.Printf("Conv:      %s\n", rec.ConversationID)
	}
	fmt.Printf("Created:   %s\n", rec.CreatedAt.Local().Format(time.DateTime))
	fmt.Printf("Updated:   %s\n", rec.UpdatedAt.Local().Format(time.DateTime))
	if rec.ExpiresAt != nil {
		fmt.Printf("Expires:   %s\n", rec.ExpiresAt.Local().Format(time.DateTime))
	}
	if len(rec.Tags) > 0 {
		fmt.Printf("Tags:      %s\n", strings.Join(rec.Tags, ", "))
	}
	for _, k := range rec.Metadata.Keys() {
		fmt.Printf("Meta:      %s=%s\n", k, rec.Metadata[k].String())
	}
	fmt.Printf("Embedding: %v\n", len(rec.Embedding) > 0)
	fmt.Println()
	fmt.Println(rec.Content)
}

func printRecords(recs []*store.Record, jsonOutput bool) {
	if jsonOutput {
		printJSON(recs)
		return
	}
	if len(recs) == 0 {
		fmt.Println("No memories found.")
		return
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "ID\tTYPE\tCREATED\tTAGS\tCONTENT\n")
	for _, r := range recs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			r.ID, r.Type, r.CreatedAt.Local().Format(time.DateTime),
			strings.Join(r.Tags, ","), preview(r.Content))
	}
	tw.Flush()
}

func printHits(hits []memory.SearchHit, jsonOutput bool) {
	if jsonOutput {
		printJSON(hits)
		return
	}
	if len(hits) == 0 {
		fmt.Println("No matches.")
		return
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "SCORE\tSOURCE\tID\tTYPE\tCONTENT\n")
	for _, h := range hits {
		fmt.Fprintf(tw, "%.4f\t%s\t%s\t%s\t%s\n",
			h.Similarity, h.Source, h.Record.ID, h.Record.Type, preview(h.Record.Content))
	}
	tw.Flush()
}

// preview flattens content to one line and truncates it by display width,
// so CJK text and emoji keep the table aligned.
func preview(content string) string {
	line := strings.Join(strings.Fields(content), " ")
	return runewidth.Truncate(line, contentColumnWidth, "…")
}
