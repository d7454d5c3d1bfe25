package main

import (
	"fmt"
	"io"

	"github.com/jgoulah/dailyusage/internal/aggregator"
	"github.com/jgoulah/dailyusage/internal/config"
	"github.com/jgoulah/dailyusage/internal/publisher"
	"github.com/jgoulah/dailyusage/pkg/models"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	aggregateDate  string
	aggregateUntil string
	aggregateName  string
)

var aggregateCmd = &cobra.Command{
	Use:   "aggregate",
	Short: "Store the first and last reading of each source for a date",
	Long: `Reads the earliest and latest value of the meter and of every tracked device for the
given date and upserts one DailyUsage row per source. Sources without readings are skipped.

Exit status is 0 when every source succeeded (or had no data), 2 when some sources failed
and 1 when all of them failed.`,
	Args: cobra.NoArgs,
	RunE: runAggregate,
}

func init() {
	aggregateCmd.Flags().StringVar(&aggregateDate, "date", "", "Date to aggregate (YYYY-MM-DD or Nd for N days ago, default: today)")
	aggregateCmd.Flags().StringVar(&aggregateUntil, "until", "", "Aggregate every date from --date through this date (YYYY-MM-DD)")
	aggregateCmd.Flags().StringVar(&aggregateName, "name", "", "Summary name of the meter source (default: tuya)")
	rootCmd.AddCommand(aggregateCmd)
}

func runAggregate(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	now := timeNow()

	from, err := parseDate(aggregateDate, now)
	if err != nil {
		return fmt.Errorf("parsing --date: %w", err)
	}
	until := from
	if aggregateUntil != "" {
		if until, err = parseDate(aggregateUntil, now); err != nil {
			return fmt.Errorf("parsing --until: %w", err)
		}
		if until.Before(from) {
			return fmt.Errorf("--until %s is before --date %s", until.Format(models.DateLayout), from.Format(models.DateLayout))
		}
	}

	cmd.SilenceUsage = true
	fmt.Fprintf(out, "=== Aggregate started at %s ===\n", now.Format("2006-01-02 15:04:05 MST"))

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	db, dbCfg, err := openDB()
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	sources := config.RenameMeter(cfg.GetSources(), aggregateName)

	var opts []aggregator.Option
	if cfg.MQTT.Enabled {
		pub, err := publisher.New(cfg.MQTT)
		if err != nil {
			logger.Warn("MQTT publishing disabled for this run", zap.Error(err))
		} else {
			defer pub.Close()
			opts = append(opts, aggregator.WithNotifier(pub))
		}
	}

	fmt.Fprintf(out, "Aggregating %d sources from %s (%s to %s)...\n",
		len(sources), dbCfg.Redacted(), from.Format(models.DateLayout), until.Format(models.DateLayout))

	agg := aggregator.New(db, db, logger, opts...)
	result, err := agg.RunRange(cmd.Context(), from, until, sources)
	if err != nil {
		return err
	}

	printSummary(out, result)

	if code := result.ExitCode(); code != aggregator.ExitSuccess {
		return &ExitError{
			Code: code,
			Err: fmt.Errorf("%s: %d of %d sources failed: %w",
				result.Status(), len(result.Failed()), len(result.Outcomes), result.Err()),
		}
	}
	return nil
}

func printSummary(out io.Writer, result aggregator.Result) {
	fmt.Fprintln(out, "----------------------------------------------------")
	fmt.Fprintf(out, "%-12s  %-10s  %12s  %12s  %s\n", "Date", "Source", "First", "Last", "Status")
	fmt.Fprintln(out, "----------------------------------------------------")
	for _, o := range result.Outcomes {
		first, last := "-", "-"
		if o.Usage.First != nil {
			first = fmt.Sprintf("%.3f", *o.Usage.First)
		}
		if o.Usage.Last != nil {
			last = fmt.Sprintf("%.3f", *o.Usage.Last)
		}

		status := "✓"
		switch o.Status {
		case aggregator.StatusNoData:
			status = "no data"
		case aggregator.StatusFailed:
			status = fmt.Sprintf("FAILED: %v", o.Err)
		}
		fmt.Fprintf(out, "%-12s  %-10s  %12s  %12s  %s\n",
			o.Date.Format(models.DateLayout), o.Source.Name, first, last, status)
	}
	fmt.Fprintln(out, "----------------------------------------------------")
	fmt.Fprintf(out, "Written: %d, no data: %d, failed: %d (run %s)\n",
		result.Count(aggregator.StatusWritten), result.Count(aggregator.StatusNoData),
		result.Count(aggregator.StatusFailed), result.RunID)
}
