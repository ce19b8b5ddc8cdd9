package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/probelab/deepresearch/internal/api"
	clock "github.com/probelab/deepresearch/internal/clock/system"
	"github.com/probelab/deepresearch/internal/config"
	"github.com/probelab/deepresearch/internal/extractor"
	"github.com/probelab/deepresearch/internal/fetcher"
	id "github.com/probelab/deepresearch/internal/id/uuid"
	"github.com/probelab/deepresearch/internal/logging"
	"github.com/probelab/deepresearch/internal/metrics"
	"github.com/probelab/deepresearch/internal/planner"
	"github.com/probelab/deepresearch/internal/progress"
	"github.com/probelab/deepresearch/internal/progress/sinks"
	"github.com/probelab/deepresearch/internal/report"
	"github.com/probelab/deepresearch/internal/research"
	"github.com/probelab/deepresearch/internal/scorer"
	"github.com/probelab/deepresearch/internal/search"
	"github.com/probelab/deepresearch/internal/synthesizer"
)

// newResearchCmd creates the 'research' subcommand, which runs the whole
// pipeline for one query and writes the report files.
func newResearchCmd() *cobra.Command {
	var (
		maxResults  int
		maxLevel2   int
		maxPages    int
		deadlineSec int
		outputDir   string
	)

	cmd := &cobra.Command{
		Use:   "research [query...]",
		Short: "Run a deep research crawl for a query",
		Long: `Searches the web for the query, crawls the result pages and the pages
they link to, scores everything for relevance, and writes a JSON result
plus a Markdown report.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("configuration: %w", err)
			}
			if cmd.Flags().Changed("max-results") {
				cfg.Research.MaxInitialResults = maxResults
			}
			if cmd.Flags().Changed("max-level2") {
				cfg.Research.MaxLevel2PerPage = maxLevel2
			}
			if cmd.Flags().Changed("max-pages") {
				cfg.Research.MaxTotalPages = maxPages
			}
			if cmd.Flags().Changed("deadline") {
				cfg.Research.OverallDeadlineSeconds = deadlineSec
			}
			if cmd.Flags().Changed("output-dir") {
				cfg.Report.OutputDir = outputDir
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("configuration: %w", err)
			}
			return runResearch(cmd.Context(), cfg, strings.Join(args, " "))
		},
	}

	cmd.Flags().IntVar(&maxResults, "max-results", 20, "cap on initial search hits")
	cmd.Flags().IntVar(&maxLevel2, "max-level2", 10, "cap on level-2 links followed per page")
	cmd.Flags().IntVar(&maxPages, "max-pages", 0, "global page cap across both levels (0 = unlimited)")
	cmd.Flags().IntVar(&deadlineSec, "deadline", 120, "whole-run deadline in seconds")
	cmd.Flags().StringVar(&outputDir, "output-dir", "research_output", "directory for report files")

	return cmd
}

func runResearch(ctx context.Context, cfg config.Config, query string) error {
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck // best-effort flush

	metrics.Init()

	promSink, err := sinks.NewPrometheusSink(nil)
	if err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}
	hub := progress.NewHub(progress.Config{Logger: logger}, sinks.NewLogSink(logger), promSink)
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		hub.Close(closeCtx)
	}()

	if cfg.Server.Enabled {
		srv := api.NewServer(cfg.Server.Port, logger)
		srv.Start()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Warn("metrics server shutdown failed", zap.Error(err))
			}
		}()
	}

	pl := planner.New(
		planner.Config{
			MaxInitialResults: cfg.Research.MaxInitialResults,
			MaxLevel2PerPage:  cfg.Research.MaxLevel2PerPage,
			MaxTotalPages:     cfg.Research.MaxTotalPages,
			OverallDeadline:   cfg.OverallDeadline(),
		},
		search.NewDuckDuckGo(cfg.Search.Endpoint, cfg.HTTP.UserAgent, cfg.RequestTimeout()),
		fetcher.New(fetcher.Config{
			UserAgent:          cfg.HTTP.UserAgent,
			RequestTimeout:     cfg.RequestTimeout(),
			MaxRetries:         cfg.HTTP.MaxRetries,
			MaxBytes:           cfg.HTTP.MaxBytesPerPage,
			MaxConcurrency:     cfg.Crawler.MaxConcurrency,
			PerHostMinInterval: cfg.PerHostMinInterval(),
		}, logger),
		extractor.New(cfg.HTTP.MaxBytesPerPage, logger),
		scorer.New(),
		synthesizer.New(synthesizer.Config{MinRelevance: cfg.Research.MinRelevance}),
		clock.New(),
		id.NewGenerator(),
		hub,
		logger,
	)

	result := pl.Run(ctx, query)

	paths, err := report.WriteFiles(cfg.Report.OutputDir, result)
	if err != nil {
		return fmt.Errorf("write reports: %w", err)
	}

	printResult(result, paths)
	return nil
}

func printResult(result research.ResearchResult, paths []string) {
	fmt.Printf("Research completed in %.1fs: %d pages crawled, %d links discovered, %d failures.\n",
		result.Elapsed().Seconds(), result.TotalPagesCrawled, result.TotalLinksDiscovered, len(result.Failures))
	if result.Summary != "" {
		fmt.Println()
		fmt.Println(result.Summary)
	}
	if len(result.KeyFindings) > 0 {
		fmt.Println()
		fmt.Println("Key findings:")
		for i, finding := range result.KeyFindings {
			fmt.Printf("  %d. %s\n", i+1, finding)
		}
	}
	fmt.Println()
	for _, p := range paths {
		fmt.Printf("Report written to %s\n", p)
	}
}
