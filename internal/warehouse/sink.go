//-------------------------------------------------------------------------
//
// pgEdge Retail Warehouse Pipeline
//
// Copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package warehouse persists the gold layer. Writes land in a staging
// area invisible to readers until the run promotes them in one atomic
// step, so a failed or gated run never leaves a partial gold layer
// behind.
package warehouse

import (
	"context"
	"errors"

	"github.com/pgEdge/retail-dwh/internal/model"
)

// ErrNoStagedRun is returned when promotion is requested for a run
// that never staged anything.
var ErrNoStagedRun = errors.New("no staged gold data for run")

// Sink is the gold-layer persistence contract. The write sequence for
// one run is StageGold, then any number of writes, then exactly one of
// PromoteGold or DiscardGold. Reads always see the last promoted state,
// never staged data.
type Sink interface {
	// StageGold opens a staging area for the run.
	StageGold(ctx context.Context, runID string) error

	// WriteDimension stages the full post-run row set of one
	// dimension. Existing rows are updated in place by surrogate key
	// at promotion, so closing an SCD2 version is an update, not a
	// delete.
	WriteDimension(ctx context.Context, runID string, dim model.Dimension, rows []model.DimensionRow) error

	// UpsertDateDimension stages calendar rows. Date keys already
	// present in the warehouse are overwritten with identical values,
	// making overlapping ranges harmless.
	UpsertDateDimension(ctx context.Context, runID string, rows []model.DateDimensionRow) error

	// AppendFacts stages the run's fact rows.
	AppendFacts(ctx context.Context, runID string, rows []model.FactRow) error

	// PromoteGold atomically publishes the run's staged rows.
	PromoteGold(ctx context.Context, runID string) error

	// DiscardGold drops the run's staged rows without publishing. It
	// is a no-op for a run that staged nothing.
	DiscardGold(ctx context.Context, runID string) error

	// DimensionRows returns the promoted rows of one dimension, every
	// version, for seeding the next run's dimension builder.
	DimensionRows(ctx context.Context, dim model.Dimension) ([]model.DimensionRow, error)

	// SurrogateHighWaterMark returns the highest promoted surrogate
	// key for a dimension, 0 when the dimension is empty.
	SurrogateHighWaterMark(ctx context.Context, dim model.Dimension) (int64, error)
}
