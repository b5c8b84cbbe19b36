package main

import (
	"context"
	"fmt"
	"math/rand/v2"
	"os"
	"sort"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/callisto/pkg/cli"
	"mercator-hq/callisto/pkg/config"
	"mercator-hq/callisto/pkg/dispatch"
	"mercator-hq/callisto/pkg/throttle"
)

var benchFlags struct {
	tasks       int
	concurrency int
	latency     time.Duration
	failureRate float64
	weight      int64
}

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Run a synthetic load through the configured limiters",
	Long: `Dispatch a batch of synthetic tasks through the configured limiters
and dispatcher, then report throughput, wait times, and outcomes.

Each task simulates a provider call with a configurable latency and failure
rate. Simulated failures are classified retryable, so the retry and backoff
path is exercised too.

Examples:
  # 100 tasks, default concurrency from config
  callisto bench --tasks 100

  # Heavier load with simulated flaky calls
  callisto bench --tasks 500 --concurrency 16 --failure-rate 0.2

  # Weighted tasks (e.g., token-cost limiters)
  callisto bench --tasks 50 --weight 250`,
	RunE: runBench,
}

func init() {
	rootCmd.AddCommand(benchCmd)

	benchCmd.Flags().IntVar(&benchFlags.tasks, "tasks", 100, "number of tasks to dispatch")
	benchCmd.Flags().IntVar(&benchFlags.concurrency, "concurrency", 0, "concurrency budget (0 uses config)")
	benchCmd.Flags().DurationVar(&benchFlags.latency, "latency", 20*time.Millisecond, "simulated call latency")
	benchCmd.Flags().Float64Var(&benchFlags.failureRate, "failure-rate", 0, "fraction of calls that fail transiently")
	benchCmd.Flags().Int64Var(&benchFlags.weight, "weight", 1, "limiter units consumed per task")
}

func runBench(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return err
	}
	if benchFlags.concurrency > 0 {
		cfg.Dispatch.MaxConcurrent = benchFlags.concurrency
	}

	var completed atomic.Int64
	progress := cli.NewProgressReporter(os.Stdout)

	svc, err := throttle.New(cfg, throttle.Options{
		Retryable: func(error) bool { return true },
		OnResult: func(dispatch.DispatchResult) {
			progress.Update(completed.Add(1))
		},
	})
	if err != nil {
		return cli.NewCommandError("bench", err)
	}
	defer svc.Close()

	ctx := cli.SetupSignalHandler()
	if err := svc.Start(ctx); err != nil {
		return cli.NewCommandError("bench", err)
	}

	fmt.Println("Callisto Bench")
	fmt.Println("==============")
	fmt.Printf("Tasks: %d\n", benchFlags.tasks)
	fmt.Printf("Concurrency: %d\n", cfg.Dispatch.MaxConcurrent)
	fmt.Printf("Limiters: %v\n", cfg.Dispatch.Limiters)
	fmt.Printf("Simulated latency: %s, failure rate: %.0f%%\n",
		benchFlags.latency, benchFlags.failureRate*100)
	fmt.Println()

	tasks := make([]dispatch.CallTask, benchFlags.tasks)
	for i := range tasks {
		tasks[i] = dispatch.CallTask{
			ID:     fmt.Sprintf("bench-%d", i),
			Weight: benchFlags.weight,
			Call:   simulatedCall,
		}
	}

	progress.Start(int64(benchFlags.tasks))
	start := time.Now()
	result, err := svc.DispatchBatch(ctx, tasks)
	elapsed := time.Since(start)
	progress.Finish()
	if err != nil {
		fmt.Printf("Batch ended early: %v\n", err)
	}
	if result == nil {
		return cli.NewCommandError("bench", err)
	}

	printBenchResults(result, elapsed)
	return nil
}

// simulatedCall sleeps for the configured latency and fails at the
// configured rate.
func simulatedCall(ctx context.Context) (any, error) {
	timer := time.NewTimer(benchFlags.latency)
	select {
	case <-ctx.Done():
		timer.Stop()
		return nil, ctx.Err()
	case <-timer.C:
	}

	if benchFlags.failureRate > 0 && rand.Float64() < benchFlags.failureRate {
		return nil, fmt.Errorf("simulated provider failure")
	}
	return "ok", nil
}

func printBenchResults(result *dispatch.BatchResult, elapsed time.Duration) {
	var (
		totalRetries int
		degraded     int
		waits        []time.Duration
	)
	for _, r := range result.Results {
		totalRetries += r.Retries
		if r.Degraded {
			degraded++
		}
		waits = append(waits, r.WaitTime)
	}
	sort.Slice(waits, func(i, j int) bool { return waits[i] < waits[j] })

	fmt.Println("Results")
	fmt.Println("-------")
	fmt.Printf("Completed: %d in %s (%.1f tasks/s)\n",
		result.Total(), elapsed.Round(time.Millisecond),
		float64(result.Total())/elapsed.Seconds())
	fmt.Printf("Succeeded: %d\n", result.SuccessCount)
	fmt.Printf("Failed: %d\n", result.FailureCount)
	fmt.Printf("Retries: %d\n", totalRetries)
	fmt.Printf("Degraded: %d\n", degraded)
	if len(waits) > 0 {
		fmt.Printf("Wait p50: %s  p95: %s  max: %s\n",
			percentile(waits, 0.50).Round(time.Microsecond),
			percentile(waits, 0.95).Round(time.Microsecond),
			waits[len(waits)-1].Round(time.Microsecond))
	}
}

// percentile returns the value at fraction p of the sorted durations.
func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(float64(len(sorted)-1) * p)
	return sorted[idx]
}
