//-------------------------------------------------------------------------
//
// pgEdge Retail Warehouse Pipeline
//
// Copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package warehouse

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pgEdge/retail-dwh/internal/logging"
	"github.com/pgEdge/retail-dwh/internal/model"
)

// RecordRun writes a run's outcome to the pipeline_runs ledger. Called
// once when the run starts (status pending) and once at the end with
// the terminal status, keyed by run ID.
func RecordRun(ctx context.Context, pool *pgxpool.Pool, result *model.RunResult, startedAt time.Time) error {
	var score *float64
	if result.Quality != nil {
		score = &result.Quality.Score
	}
	var finishedAt *time.Time
	if result.Status != "" {
		now := time.Now().UTC()
		finishedAt = &now
	}
	var errText *string
	if result.Err != "" {
		errText = &result.Err
	}
	stageReached := ""
	if result.Checkpoint != nil {
		stageReached = string(result.Checkpoint.Stage)
	}

	_, err := pool.Exec(ctx, `
        INSERT INTO pipeline_runs
            (run_id, run_date, status, stage_reached, quality_score, bronze_records,
             silver_records, gold_facts, started_at, finished_at, error)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
        ON CONFLICT (run_id) DO UPDATE SET
            status         = EXCLUDED.status,
            stage_reached  = EXCLUDED.stage_reached,
            quality_score  = EXCLUDED.quality_score,
            bronze_records = EXCLUDED.bronze_records,
            silver_records = EXCLUDED.silver_records,
            gold_facts     = EXCLUDED.gold_facts,
            finished_at    = EXCLUDED.finished_at,
            error          = EXCLUDED.error
    `, result.RunID, result.RunDate, string(result.Status), stageReached, score,
		result.BronzeRecords, result.SilverRecords, result.GoldFacts,
		startedAt, finishedAt, errText)
	if err != nil {
		return fmt.Errorf("failed to record run %s: %w", result.RunID, err)
	}

	logging.Debug().
		Str("run_id", result.RunID).
		Str("status", string(result.Status)).
		Msg("Recorded run")
	return nil
}

// LastSuccessfulRun returns the run date of the most recent promoted
// run, ok=false when the warehouse has never been loaded.
func LastSuccessfulRun(ctx context.Context, pool *pgxpool.Pool) (time.Time, bool, error) {
	var runDate time.Time
	err := pool.QueryRow(ctx, `
        SELECT run_date FROM pipeline_runs
        WHERE status = $1
        ORDER BY run_date DESC, started_at DESC
        LIMIT 1
    `, string(model.RunSucceeded)).Scan(&runDate)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, fmt.Errorf("failed to read last run: %w", err)
	}
	return runDate, true, nil
}
