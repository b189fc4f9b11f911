// Package main provides the compintel command-line tool, which runs a scrape
// batch without the HTTP server and writes its exports to files.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/compintel/backend/config"
	"github.com/compintel/backend/internal/app"
	"github.com/compintel/backend/internal/domain"
	"github.com/compintel/backend/internal/logging"
	"github.com/compintel/backend/internal/usecase"
)

const (
	Version = "1.0.0"
	appName = "compintel"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           appName,
		Short:         "Competitor product intelligence",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(scrapeCmd())
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s version %s\n", appName, Version)
		},
	})

	return cmd
}

type scrapeOptions struct {
	urlsFile     string
	csvFile      string
	outFile      string
	providersOut string
	reportOut    string
	summary      bool
}

func scrapeCmd() *cobra.Command {
	var opts scrapeOptions

	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Scrape a batch of competitor pages",
		Long: `Scrape fetches each URL in turn, extracts product records with the
language model and prints a summary of the run.

URLs come from a text file with one URL per line (--urls, "-" reads stdin)
or from a CSV file with a url column and an optional competitor column (--csv).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			targets, err := loadTargets(cmd.InOrStdin(), opts)
			if err != nil {
				return err
			}

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}
			logger := logging.SetDefault(logging.Options{
				Level:  cfg.Log.Level,
				Format: cfg.Log.Format,
				Output: cmd.ErrOrStderr(),
			})

			out := cmd.OutOrStdout()
			pipeline := app.New(cfg, logger, func(url string, index, total int) {
				fmt.Fprintf(out, "[%d/%d] %s\n", index+1, total, url)
			})

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runScrape(ctx, out, pipeline, targets, opts)
		},
	}

	cmd.Flags().StringVar(&opts.urlsFile, "urls", "", "Text file with one URL per line (\"-\" for stdin)")
	cmd.Flags().StringVar(&opts.csvFile, "csv", "", "CSV file with url and optional competitor columns")
	cmd.Flags().StringVarP(&opts.outFile, "out", "o", "", "Write deduplicated products as CSV to this file")
	cmd.Flags().StringVar(&opts.providersOut, "providers-out", "", "Write reconciled provider views as YAML to this file")
	cmd.Flags().StringVar(&opts.reportOut, "report", "", "Write a comparative Markdown report to this file")
	cmd.Flags().BoolVar(&opts.summary, "summary", false, "Generate the short summary instead of the full report")
	cmd.MarkFlagsMutuallyExclusive("urls", "csv")
	cmd.MarkFlagsOneRequired("urls", "csv")

	return cmd
}

// loadTargets reads the batch from whichever input flag was given
func loadTargets(stdin io.Reader, opts scrapeOptions) ([]domain.BatchTarget, error) {
	path := opts.urlsFile
	if opts.csvFile != "" {
		path = opts.csvFile
	}

	var r io.Reader = stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open targets: %w", err)
		}
		defer f.Close()
		r = f
	}

	if opts.csvFile != "" {
		return usecase.ParseTargetsCSV(r)
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read targets: %w", err)
	}
	targets := usecase.ParseTargetsText(string(data))
	if len(targets) == 0 {
		return nil, fmt.Errorf("%w: no URLs in %s", domain.ErrInvalidRequest, path)
	}
	return targets, nil
}

func runScrape(ctx context.Context, out io.Writer, pipeline *app.App, targets []domain.BatchTarget, opts scrapeOptions) error {
	result, err := pipeline.Coordinator.Run(ctx, targets)
	if err != nil {
		return err
	}

	printSummary(out, result)

	products := result.AllProducts()
	if opts.outFile != "" {
		if err := writeFile(opts.outFile, func(w io.Writer) error {
			return usecase.ExportProductsCSV(w, products)
		}); err != nil {
			return err
		}
		fmt.Fprintf(out, "Products written to %s\n", opts.outFile)
	}

	if opts.providersOut == "" && opts.reportOut == "" {
		return nil
	}

	views := usecase.BuildProviderViews(products, pipeline.Config.Report.BaselineDomain)
	if opts.providersOut != "" {
		if err := writeFile(opts.providersOut, func(w io.Writer) error {
			return usecase.ExportProvidersYAML(w, views)
		}); err != nil {
			return err
		}
		fmt.Fprintf(out, "Provider views written to %s\n", opts.providersOut)
	}

	if opts.reportOut != "" {
		kind := usecase.ReportFull
		if opts.summary {
			kind = usecase.ReportSummary
		}
		report, err := pipeline.Reporter.Generate(ctx, views, kind)
		if err != nil {
			return fmt.Errorf("generate report: %w", err)
		}
		if err := writeFile(opts.reportOut, func(w io.Writer) error {
			_, err := io.WriteString(w, report)
			return err
		}); err != nil {
			return err
		}
		fmt.Fprintf(out, "Report written to %s\n", opts.reportOut)
	}

	return nil
}

func printSummary(out io.Writer, result *domain.BatchResult) {
	for _, e := range result.Errors {
		fmt.Fprintf(out, "ERROR %s: %s\n", e.URL, e.Error)
	}

	stats := result.Summary()
	fmt.Fprintf(out, "\nRun %s\n", result.RunID)
	fmt.Fprintf(out, "  URLs scraped:    %d\n", stats.TotalURLsScraped)
	fmt.Fprintf(out, "  URLs with data:  %d\n", stats.URLsWithData)
	fmt.Fprintf(out, "  Products:        %d\n", stats.TotalProducts)
	fmt.Fprintf(out, "  Errors:          %d\n", stats.ErrorsCount)
	if stats.AvgMonthlyPrice != nil {
		fmt.Fprintf(out, "  Monthly price:   avg %.2f, min %.2f, max %.2f\n",
			*stats.AvgMonthlyPrice, *stats.MinMonthlyPrice, *stats.MaxMonthlyPrice)
	}
	if stats.AvgAnnualPrice != nil {
		fmt.Fprintf(out, "  Annual price:    avg %.2f, min %.2f, max %.2f\n",
			*stats.AvgAnnualPrice, *stats.MinAnnualPrice, *stats.MaxAnnualPrice)
	}
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
