// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pdiddy/paper-finder/internal/ai"
	"github.com/pdiddy/paper-finder/internal/enrich"
	"github.com/pdiddy/paper-finder/internal/filter"
	"github.com/pdiddy/paper-finder/internal/pipeline"
	"github.com/pdiddy/paper-finder/internal/quota"
	"github.com/pdiddy/paper-finder/internal/rewrite"
	"github.com/pdiddy/paper-finder/internal/search"
	"github.com/pdiddy/paper-finder/internal/server"
	"github.com/pdiddy/paper-finder/internal/venue"
	"github.com/pdiddy/paper-finder/pkg/types"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the paper search HTTP service",
	Long: `Serve exposes the pipeline over HTTP. POST /v1/paper_search streams
progress and results as server-sent events; the per-stage endpoints return
plain JSON. Quota counters live in a local SQLite database.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (default :8000)")
	serveCmd.Flags().Bool("debug", false, "enable debug logging")

	rootCmd.AddCommand(serveCmd)
}

// stages bundles everything built from one configuration.
type stages struct {
	catalog      *venue.Catalog
	orchestrator *pipeline.Orchestrator
	rewriter     *rewrite.Rewriter
	dispatcher   *search.Dispatcher
	enricher     *enrich.Enricher
	filter       *filter.Filter
}

// buildStages constructs the pipeline stages from cfg. The same wiring
// backs both the HTTP service and the one-shot search command.
func buildStages(cfg types.PipelineConfig) (*stages, error) {
	catalog, err := venue.Load(cfg.Search.CatalogFile)
	if err != nil {
		return nil, err
	}

	chat, err := ai.New(cfg.AI)
	if err != nil {
		return nil, err
	}

	rewriter := rewrite.New(chat)
	dispatcher := search.NewDispatcher(&search.CrossRefBackend{
		Client: &http.Client{Timeout: cfg.Search.Timeout},
		Cfg:    cfg.Search,
	}, cfg.Search)
	enricher := enrich.New(&enrich.SemanticScholarClient{
		Client: &http.Client{Timeout: cfg.Enrich.Timeout},
		Cfg:    cfg.Enrich,
	})
	relevance := filter.New(chat, cfg.Filter)

	return &stages{
		catalog:      catalog,
		orchestrator: pipeline.New(rewriter, dispatcher, enricher, relevance),
		rewriter:     rewriter,
		dispatcher:   dispatcher,
		enricher:     enricher,
		filter:       relevance,
	}, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	debug, _ := cmd.Flags().GetBool("debug")
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		cfg.Server.Addr = addr
	}

	st, err := buildStages(cfg)
	if err != nil {
		return err
	}

	store, err := quota.NewStore(cfg.Quota)
	if err != nil {
		return err
	}
	defer store.Close()

	srv := server.New(server.Deps{
		Orchestrator: st.orchestrator,
		Rewriter:     st.rewriter,
		Searcher:     st.dispatcher,
		Enricher:     st.enricher,
		Filter:       st.filter,
		Catalog:      st.catalog,
		Quota:        store,
	}, cfg.Server)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return srv.ListenAndServe(ctx)
}
