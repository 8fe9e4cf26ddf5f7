package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/danielbelay23/data-pipelines/pkg/lock"
	"github.com/danielbelay23/data-pipelines/pkg/ui"
)

var (
	ingestOnly     bool
	dbSyncOnly     bool
	timelineTarget int
	rateLimit      int
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Collect new data, then export it to SQL",
	Long: `Run one collection session followed by the SQL export.

The following list is collected only when the schedule gate says it is due;
the home timeline is collected every run. Ctrl-C stops after the current
page is saved.`,
	Example: `  # Full pipeline
  twpipeline run

  # Collection only, e.g. from cron every few hours
  twpipeline run --ingest-only

  # Re-export existing documents
  twpipeline run --db-sync-only`,
	Args: cobra.NoArgs,
	Run:  runPipeline,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().BoolVar(&ingestOnly, "ingest-only", false, "run only the collection step")
	runCmd.Flags().BoolVar(&dbSyncOnly, "db-sync-only", false, "run only the database export step")
	runCmd.Flags().IntVar(&timelineTarget, "timeline-target", 0, "new tweets to collect before stopping (0 keeps the configured value)")
	runCmd.Flags().IntVar(&rateLimit, "rate-limit", 0, "requests per minute (0 keeps the configured value)")
	runCmd.MarkFlagsMutuallyExclusive("ingest-only", "db-sync-only")
}

func runPipeline(cmd *cobra.Command, args []string) {
	flags := map[string]interface{}{}
	if timelineTarget > 0 {
		flags["timeline-target"] = timelineTarget
	}
	if rateLimit > 0 {
		flags["requests-per-minute"] = rateLimit
	}

	cfg, log, err := loadConfig(flags)
	if err != nil {
		ui.PrintError("Failed to load configuration", err.Error())
		os.Exit(1)
	}

	a, err := newApp(cfg, log)
	if err != nil {
		ui.PrintError("Failed to initialize", err.Error())
		os.Exit(1)
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ui.PrintBanner()
	exitCode := 0

	if !dbSyncOnly {
		exitCode = ingest(ctx, a, cfg.Timeline.TargetItems)
	}

	if !ingestOnly && ctx.Err() == nil {
		ui.PrintHighlight("Syncing documents to SQL")
		reports, err := a.export(ctx)
		if len(reports) > 0 {
			ui.PrintInfo("Export", describeReports(reports))
		}
		if err != nil {
			log.WithError(err).Error("Export failed")
			ui.PrintError("Export failed", err.Error())
			exitCode = 1
		} else {
			ui.PrintSuccess("Database sync completed")
		}
	}

	if exitCode != 0 {
		a.Close()
		os.Exit(exitCode)
	}
}

// ingest runs one collection session and returns the process exit code
func ingest(ctx context.Context, a *app, target int) int {
	p, err := a.pipeline()
	if err != nil {
		ui.PrintError("Failed to initialize pipeline", err.Error())
		return 1
	}

	ui.PrintInfo("Data directory", a.cfg.Storage.DataDir)
	ui.PrintHighlight("Collecting")

	summary, err := p.Run(ctx)
	a.writeMetrics()
	switch {
	case errors.Is(err, lock.ErrHeld):
		ui.PrintWarning("Another run holds the lock, nothing to do")
		return 0
	case err != nil:
		a.log.WithError(err).Error("Session aborted")
		ui.PrintError("Session aborted", err.Error())
		return 1
	}

	ui.PrintSummary(summary, target)
	if !summary.Success {
		return 1
	}
	return 0
}
