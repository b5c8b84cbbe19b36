package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/callisto/pkg/cli"
	"mercator-hq/callisto/pkg/config"
	"mercator-hq/callisto/pkg/history"
	"mercator-hq/callisto/pkg/throttle"
)

var historyFlags struct {
	since    time.Duration
	failures bool
	limit    int
	format   string
	prune    bool
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Query recorded dispatch outcomes",
	Long: `Query the dispatch outcome history recorded by the configured backend.

Requires history to be enabled in the configuration. For the SQLite backend
this reads the same database the running process writes; the memory backend
only holds records from the current process, so queries against it return
nothing here.

Examples:
  # Last 50 outcomes
  callisto history --limit 50

  # Failures from the last hour
  callisto history --since 1h --failures

  # CSV export
  callisto history --format csv > outcomes.csv

  # Delete records past the configured retention
  callisto history --prune`,
	RunE: runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().DurationVar(&historyFlags.since, "since", 0, "only records newer than this age")
	historyCmd.Flags().BoolVar(&historyFlags.failures, "failures", false, "only failed dispatches")
	historyCmd.Flags().IntVar(&historyFlags.limit, "limit", 100, "maximum records to return")
	historyCmd.Flags().StringVar(&historyFlags.format, "format", "text", "output format: text, json, csv")
	historyCmd.Flags().BoolVar(&historyFlags.prune, "prune", false, "delete records past the configured retention")
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return err
	}
	if !cfg.History.Enabled {
		return fmt.Errorf("history is not enabled in %s", cfgFile)
	}

	svc, err := throttle.New(cfg, throttle.Options{DisableMetrics: true})
	if err != nil {
		return cli.NewCommandError("history", err)
	}
	defer svc.Close()

	ctx := cli.SetupSignalHandler()

	if historyFlags.prune {
		deleted, err := svc.PruneHistory(ctx)
		if err != nil {
			return cli.NewCommandError("history", err)
		}
		fmt.Printf("Pruned %d records older than %s\n", deleted, cfg.History.Retention)
		return nil
	}

	filter := history.Filter{
		OnlyFailures: historyFlags.failures,
		Limit:        historyFlags.limit,
	}
	if historyFlags.since > 0 {
		filter.Since = time.Now().Add(-historyFlags.since)
	}

	records, err := svc.History(ctx, filter)
	if err != nil {
		return cli.NewCommandError("history", err)
	}

	switch historyFlags.format {
	case "json":
		return cli.NewFormatter(cli.FormatJSON).FormatTo(os.Stdout, records)

	case "csv":
		rows := make([][]string, 0, len(records))
		for _, r := range records {
			rows = append(rows, []string{
				r.ID,
				r.TaskID,
				r.Timestamp.Format(time.RFC3339),
				strconv.FormatBool(r.Success),
				r.Error,
				strconv.Itoa(r.Retries),
				r.WaitTime.String(),
				strconv.FormatBool(r.Degraded),
			})
		}
		formatter := &cli.CSVFormatter{Headers: []string{
			"id", "task_id", "timestamp", "success", "error", "retries", "wait_time", "degraded",
		}}
		return formatter.FormatTo(os.Stdout, rows)

	default:
		if len(records) == 0 {
			fmt.Println("No records")
			return nil
		}
		for _, r := range records {
			status := "ok"
			if !r.Success {
				status = "FAIL"
			}
			fmt.Printf("%s  %-4s  %-36s retries=%d wait=%s",
				r.Timestamp.Format(time.RFC3339), status, r.TaskID,
				r.Retries, r.WaitTime.Round(time.Millisecond))
			if r.Degraded {
				fmt.Print(" degraded")
			}
			if r.Error != "" {
				fmt.Printf("  %s", r.Error)
			}
			fmt.Println()
		}
		return nil
	}
}
