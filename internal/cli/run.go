//-------------------------------------------------------------------------
//
// pgEdge Retail Warehouse Pipeline
//
// Copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/pgEdge/retail-dwh/internal/extract"
	"github.com/pgEdge/retail-dwh/internal/geo"
	"github.com/pgEdge/retail-dwh/internal/logging"
	"github.com/pgEdge/retail-dwh/internal/model"
	"github.com/pgEdge/retail-dwh/internal/pipeline"
	"github.com/pgEdge/retail-dwh/internal/warehouse"
)

var (
	runInput   string
	runGeoFile string
	runDate    string
	runWorkers int
	runDryRun  bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one monthly extract through the pipeline",
	Long: `Run one monthly order extract through the bronze, silver, and gold
layers. The gold layer is staged and promoted atomically: readers see
either the previous state or the complete new one, never a partial
load. A batch scoring below the quality gate threshold is reported
but not promoted.

Example:
  retail-dwh run --input orders_2017_11.csv --geo geography.csv \
      --connection "postgres://localhost/retail"
  retail-dwh run --input orders_2017_11.csv --geo geography.csv --dry-run`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVar(&runInput, "input", "",
		"extract CSV file to process (required)")
	runCmd.Flags().StringVar(&runGeoFile, "geo", "",
		"geography reference CSV (required)")
	runCmd.Flags().StringVar(&runDate, "run-date", "",
		"run date as YYYY-MM-DD (default: today)")
	runCmd.Flags().IntVar(&runWorkers, "workers", 0,
		"number of concurrent normalization workers")
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false,
		"process the batch in memory without touching the warehouse")
	runCmd.MarkFlagRequired("input")
	runCmd.MarkFlagRequired("geo")
}

func runRun(cmd *cobra.Command, args []string) error {
	// Override config with CLI flags
	if runWorkers > 0 {
		cfg.Run.Workers = runWorkers
	}
	if err := cfg.ValidateRun(); err != nil {
		return err
	}
	if !runDryRun && cfg.Connection == "" {
		return fmt.Errorf("connection string is required unless --dry-run is set")
	}

	date := time.Now().UTC().Truncate(24 * time.Hour)
	if runDate != "" {
		var err error
		date, err = time.Parse("2006-01-02", runDate)
		if err != nil {
			return fmt.Errorf("invalid --run-date %q: %w", runDate, err)
		}
	}

	ref, err := loadReference(runGeoFile)
	if err != nil {
		return err
	}

	raws, err := extract.ReadFile(runInput)
	if err != nil {
		return err
	}

	// Set up context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logging.Info().
			Str("signal", sig.String()).
			Msg("Received shutdown signal")
		cancel()
	}()

	startedAt := time.Now().UTC()
	var result *model.RunResult

	var sink warehouse.Sink
	if runDryRun {
		sink = warehouse.NewMemorySink()
		logging.Info().Msg("Dry run: using in-memory sink")
	} else {
		pool, err := warehouse.Connect(ctx, cfg.Connection)
		if err != nil {
			return fmt.Errorf("failed to connect to warehouse: %w", err)
		}
		defer pool.Close()
		sink = warehouse.NewPostgresSink(pool)

		if last, ok, err := warehouse.LastSuccessfulRun(ctx, pool); err != nil {
			logging.Warn().Err(err).Msg("Failed to read run ledger")
		} else if ok {
			logging.Info().
				Time("run_date", last).
				Msg("Previous successful run")
		}

		defer func() {
			// Best-effort ledger write also on failed runs.
			if result != nil {
				if err := warehouse.RecordRun(context.WithoutCancel(ctx), pool, result, startedAt); err != nil {
					logging.Error().Err(err).Msg("Failed to record run")
				}
			}
		}()
	}

	var runErr error
	result, runErr = pipeline.New(cfg, sink, ref).Run(ctx, raws, date)
	printSummary(cmd, result)
	return runErr
}

func loadReference(path string) (*geo.Reference, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open geography reference: %w", err)
	}
	defer f.Close()

	ref, err := geo.FromCSV(f)
	if err != nil {
		return nil, err
	}
	logging.Info().Int("postal_codes", ref.Size()).Msg("Loaded geography reference")
	return ref, nil
}

func printSummary(cmd *cobra.Command, result *model.RunResult) {
	cmd.Println()
	cmd.Printf("Run %s (%s)\n", result.RunID, result.Status)
	cmd.Printf("  Bronze records:  %d\n", result.BronzeRecords)
	cmd.Printf("  Silver records:  %d\n", result.SilverRecords)
	if result.Quality != nil {
		cmd.Printf("  Quality score:   %.2f\n", result.Quality.Score)
		for _, flag := range model.AllFlags {
			if count := result.Quality.FlagCounts[flag]; count > 0 {
				cmd.Printf("    %-24s %d\n", flag, count)
			}
		}
	}
	if result.Dedup != nil && result.Dedup.RowsDropped > 0 {
		cmd.Printf("  Deduplicated:    %d rows in %d groups\n",
			result.Dedup.RowsDropped, result.Dedup.GroupsResolved)
	}
	cmd.Printf("  Gold facts:      %d\n", result.GoldFacts)
	if result.Exceptions != nil && !result.Exceptions.Empty() {
		cmd.Printf("  Exceptions:      %d rejected, %d unresolved, %d measure exclusions\n",
			len(result.Exceptions.Rejections),
			len(result.Exceptions.Unresolved),
			len(result.Exceptions.ExcludedMeasures))
	}
	for _, timing := range result.Timings {
		cmd.Printf("  %-8s %s\n", timing.Stage, timing.Duration.Round(time.Millisecond))
	}
}
