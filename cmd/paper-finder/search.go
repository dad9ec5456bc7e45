// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/pdiddy/paper-finder/internal/pipeline"
	"github.com/pdiddy/paper-finder/internal/venue"
	"github.com/pdiddy/paper-finder/pkg/types"
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Run the paper search pipeline once",
	Long: `Search runs the full pipeline for one query: rewrite, venue fan-out,
abstract enrichment, and relevance filtering. Progress goes to stderr and
results to stdout. Without API keys the AI stages degrade: the query is
used verbatim and no papers are dropped.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().StringSlice("venues", nil, "venue codes to search (default: all)")
	searchCmd.Flags().Int("from", 2024, "publication year range start")
	searchCmd.Flags().Int("to", 2025, "publication year range end")
	searchCmd.Flags().Int("rows", 0, "results per venue (default from config)")
	searchCmd.Flags().Bool("no-journals", false, "skip journal venues")
	searchCmd.Flags().Bool("no-conferences", false, "skip conference venues")
	searchCmd.Flags().Bool("json", false, "output results as JSON")

	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})))

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	st, err := buildStages(cfg)
	if err != nil {
		return err
	}

	codes, _ := cmd.Flags().GetStringSlice("venues")
	fromYear, _ := cmd.Flags().GetInt("from")
	toYear, _ := cmd.Flags().GetInt("to")
	rows, _ := cmd.Flags().GetInt("rows")
	noJournals, _ := cmd.Flags().GetBool("no-journals")
	noConferences, _ := cmd.Flags().GetBool("no-conferences")
	asJSON, _ := cmd.Flags().GetBool("json")

	var sel venue.Selection
	sel.Journals = !noJournals
	sel.Conferences = !noConferences
	if len(codes) > 0 {
		sel.Codes = codes
	}

	req := pipeline.Request{
		Query:        strings.Join(args, " "),
		Venues:       st.catalog.Select(sel),
		FromYear:     fromYear,
		ToYear:       toYear,
		RowsPerVenue: rows,
	}

	result, err := st.orchestrator.Run(cmd.Context(), req, func(ev types.ProgressEvent) {
		fmt.Fprintf(os.Stderr, "[%s] %s\n", ev.Step, ev.Message)
	})
	if err != nil {
		return err
	}

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result.Papers)
	}

	fmt.Printf("Keywords: %s\n", result.Keywords)
	fmt.Printf("Papers: %d found, %d after filtering\n\n", result.TotalBefore, result.TotalAfter)

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "VENUE\tYEAR\tTITLE\tDOI")
	for _, p := range result.Papers {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", p.VenueCode, p.Year, truncate(p.Title, 70), p.DOI)
	}
	return tw.Flush()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
