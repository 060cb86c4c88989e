// Command analyze runs one trending news analysis from the terminal,
// bypassing Slack entirely. Useful for trying prompt or taxonomy changes
// without a workspace in the loop.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"trendscope-pipeline/internal/config"
	"trendscope-pipeline/internal/models"
	"trendscope-pipeline/internal/pkg/logger"
	"trendscope-pipeline/internal/services"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var (
		category     string
		total        int
		from         string
		to           string
		query        string
		outputFormat string
		timeout      time.Duration
	)

	cmd := &cobra.Command{
		Use:          "analyze",
		Short:        "Run a trending news analysis and print the result",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			req := models.AnalysisRequest{
				Category:     category,
				Total:        total,
				From:         from,
				To:           to,
				Query:        query,
				OutputFormat: outputFormat,
			}
			return runAnalysis(cmd.Context(), req, timeout, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&category, "category", models.DefaultCategory, "news category to analyze")
	cmd.Flags().IntVar(&total, "total", models.DefaultTotal, "number of stories to fetch (1-100)")
	cmd.Flags().StringVar(&from, "from", "", "start date (YYYY-MM-DD), defaults to yesterday")
	cmd.Flags().StringVar(&to, "to", "", "end date (YYYY-MM-DD), defaults to today")
	cmd.Flags().StringVar(&query, "query", "", "optional search query")
	cmd.Flags().StringVar(&outputFormat, "output_format", models.FormatMarkdown, "output format: markdown or json")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "overall analysis timeout")

	return cmd
}

func runAnalysis(ctx context.Context, req models.AnalysisRequest, timeout time.Duration, out io.Writer) error {
	if req.Total < models.MinTotal || req.Total > models.MaxTotal {
		return fmt.Errorf("total must be between %d and %d", models.MinTotal, models.MaxTotal)
	}
	if req.OutputFormat != models.FormatMarkdown && req.OutputFormat != models.FormatJSON {
		return fmt.Errorf("output_format must be %q or %q", models.FormatMarkdown, models.FormatJSON)
	}
	req.From, req.To = req.DateRange(time.Now())

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.ValidatePipeline(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// Quiet by default; the report goes to stdout, diagnostics to stderr.
	logCfg := cfg.Log
	logCfg.Output = "stderr"
	log, err := logger.New(logCfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	newsService, err := services.NewNewsService(cfg.News, log)
	if err != nil {
		return fmt.Errorf("init news service: %w", err)
	}
	archiveService, err := services.NewArchiveService(cfg.Archive, log)
	if err != nil {
		return fmt.Errorf("init archive service: %w", err)
	}
	modelService, err := services.NewModelService(cfg.Model, log)
	if err != nil {
		return fmt.Errorf("init model service: %w", err)
	}

	pipeline := services.NewPipeline(
		newsService,
		modelService,
		modelService,
		archiveService,
		services.NewMemoryCache(),
		cfg.Pipeline,
		cfg.Archive.RelatedLimit,
		log,
	)

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	job := models.NewJob(req, models.RequestContext{UserID: "cli", UserName: "cli"})
	stories, err := pipeline.Run(runCtx, job)
	if err != nil {
		return err
	}

	result, err := pipeline.FormatResult(stories, req.OutputFormat)
	if err != nil {
		return err
	}

	fmt.Fprintln(out, result)
	return nil
}
