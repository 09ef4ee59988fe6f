//-------------------------------------------------------------------------
//
// pgEdge Retail Warehouse Pipeline
//
// Copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package pipeline orchestrates one monthly run through the bronze,
// silver, and gold layers. The run either promotes a complete gold
// layer or leaves the warehouse exactly as it was.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/pgEdge/retail-dwh/internal/config"
	"github.com/pgEdge/retail-dwh/internal/dedup"
	"github.com/pgEdge/retail-dwh/internal/dimension"
	"github.com/pgEdge/retail-dwh/internal/fact"
	"github.com/pgEdge/retail-dwh/internal/geo"
	"github.com/pgEdge/retail-dwh/internal/logging"
	"github.com/pgEdge/retail-dwh/internal/model"
	"github.com/pgEdge/retail-dwh/internal/normalize"
	"github.com/pgEdge/retail-dwh/internal/quality"
	"github.com/pgEdge/retail-dwh/internal/warehouse"
)

// ErrQualityGate is returned when the batch score falls below the
// configured gate threshold. Nothing reaches gold in that case.
var ErrQualityGate = errors.New("quality score below gate threshold")

// Pipeline runs monthly extracts through the medallion layers.
type Pipeline struct {
	cfg  *config.Config
	sink warehouse.Sink
	ref  *geo.Reference
}

// New creates a pipeline over a gold sink and geography reference.
func New(cfg *config.Config, sink warehouse.Sink, ref *geo.Reference) *Pipeline {
	return &Pipeline{cfg: cfg, sink: sink, ref: ref}
}

// Run processes one ingested batch. The returned result is always
// populated, also on failure; the error is non-nil for anything other
// than a clean promoted run.
func (p *Pipeline) Run(ctx context.Context, raws []model.RawRecord, runDate time.Time) (*model.RunResult, error) {
	result := &model.RunResult{
		RunID:      uuid.NewString(),
		RunDate:    runDate,
		Exceptions: &model.ExceptionReport{},
	}
	logging.Info().
		Str("run_id", result.RunID).
		Time("run_date", runDate).
		Int("records", len(raws)).
		Msg("Starting pipeline run")

	err := p.run(ctx, raws, result)
	p.conclude(result, err)
	return result, err
}

// Resume continues a cancelled or failed run from its last checkpoint
// under the same run identity. A run checkpointed after silver skips
// straight to the gate and gold; anything earlier reruns the whole
// pipeline from the raw batch.
func (p *Pipeline) Resume(ctx context.Context, prior *model.RunResult, raws []model.RawRecord) (*model.RunResult, error) {
	result := &model.RunResult{
		RunID:      prior.RunID,
		RunDate:    prior.RunDate,
		Exceptions: &model.ExceptionReport{},
	}

	cp := prior.Checkpoint
	if cp == nil || cp.Stage != model.StageSilver {
		logging.Info().
			Str("run_id", result.RunID).
			Msg("No silver checkpoint, rerunning from raw batch")
		err := p.run(ctx, raws, result)
		p.conclude(result, err)
		return result, err
	}

	logging.Info().
		Str("run_id", result.RunID).
		Str("checkpoint", string(cp.Stage)).
		Int("records", len(cp.Silver)).
		Msg("Resuming pipeline run")

	result.BronzeRecords = prior.BronzeRecords
	result.SilverRecords = prior.SilverRecords
	result.Quality = prior.Quality
	result.Dedup = prior.Dedup
	result.Exceptions = prior.Exceptions
	result.Checkpoint = cp

	err := p.resumeGold(ctx, cp.Silver, result)
	p.conclude(result, err)
	return result, err
}

// resumeGold reruns the gate and the gold stage over a silver snapshot.
func (p *Pipeline) resumeGold(ctx context.Context, silver []model.NormalizedRecord, result *model.RunResult) error {
	if err := p.gate(result); err != nil {
		return err
	}
	start := time.Now()
	if err := p.gold(ctx, silver, result); err != nil {
		return err
	}
	p.timing(result, model.StageGold, start)
	result.Checkpoint = &model.RunCheckpoint{Stage: model.StageGold}
	return nil
}

// conclude maps the stage error to a terminal status and logs the
// outcome.
func (p *Pipeline) conclude(result *model.RunResult, err error) {
	switch {
	case err == nil:
		result.Status = model.RunSucceeded
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		result.Status = model.RunCancelled
		result.Err = err.Error()
	case errors.Is(err, ErrQualityGate):
		result.Status = model.RunQualityGateFailed
		result.Err = err.Error()
	default:
		result.Status = model.RunFailed
		result.Err = err.Error()
	}

	event := logging.Info()
	if err != nil {
		event = logging.Error()
	}
	event.
		Str("run_id", result.RunID).
		Str("status", string(result.Status)).
		Int("bronze", result.BronzeRecords).
		Int("silver", result.SilverRecords).
		Int("gold_facts", result.GoldFacts).
		Msg("Pipeline run finished")
}

func (p *Pipeline) run(ctx context.Context, raws []model.RawRecord, result *model.RunResult) error {
	// Bronze: raw records are already immutable with provenance; the
	// stage only counts and checkpoints.
	start := time.Now()
	result.BronzeRecords = len(raws)
	p.timing(result, model.StageBronze, start)
	result.Checkpoint = &model.RunCheckpoint{Stage: model.StageBronze}
	if err := ctx.Err(); err != nil {
		return err
	}

	start = time.Now()
	silver, err := p.silver(ctx, raws, result)
	if err != nil {
		return err
	}
	p.timing(result, model.StageSilver, start)
	result.Checkpoint = &model.RunCheckpoint{Stage: model.StageSilver, Silver: silver}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := p.gate(result); err != nil {
		return err
	}

	start = time.Now()
	if err := p.gold(ctx, silver, result); err != nil {
		return err
	}
	p.timing(result, model.StageGold, start)
	result.Checkpoint = &model.RunCheckpoint{Stage: model.StageGold}
	return nil
}

// gate sits between silver and gold: a low-quality batch is fully
// processed and reported but never promoted.
func (p *Pipeline) gate(result *model.RunResult) error {
	if result.Quality.Score < p.cfg.Quality.GateThreshold {
		return fmt.Errorf("score %.2f < threshold %.2f: %w",
			result.Quality.Score, p.cfg.Quality.GateThreshold, ErrQualityGate)
	}
	return nil
}

// silverOutcome is one record's fate in the silver stage.
type silverOutcome struct {
	record    model.NormalizedRecord
	kept      bool
	rejection *model.Rejection
}

// silver normalizes and inspects the batch concurrently, then applies
// the serial steps that need the whole batch: cross-record duplicate
// flagging, deduplication, and scoring.
func (p *Pipeline) silver(ctx context.Context, raws []model.RawRecord, result *model.RunResult) ([]model.NormalizedRecord, error) {
	normalizer := normalize.New(p.cfg.Normalize.CurrencyScale)
	normalizer.InferFormats(raws)

	inspector, err := quality.NewInspector(p.cfg.Quality, p.ref)
	if err != nil {
		return nil, fmt.Errorf("failed to build inspector: %w", err)
	}

	outcomes := make([]silverOutcome, len(raws))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Run.Workers)
	for i := range raws {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			outcomes[i] = p.processOne(normalizer, inspector, raws[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var records []model.NormalizedRecord
	for _, outcome := range outcomes {
		if outcome.rejection != nil {
			result.Exceptions.Rejections = append(result.Exceptions.Rejections, *outcome.rejection)
		}
		if outcome.kept {
			records = append(records, outcome.record)
		}
	}

	inspector.FlagDuplicates(records)
	// Score the full inspected batch: flags on rows that deduplication
	// drops still count against the run.
	result.Quality = quality.Score(records, p.cfg.WeightTable())
	records, result.Dedup = dedup.Resolve(records)
	result.SilverRecords = len(records)

	logging.Info().
		Int("records", len(records)).
		Int("rejected", len(result.Exceptions.Rejections)).
		Int("deduplicated", result.Dedup.RowsDropped).
		Float64("score", result.Quality.Score).
		Msg("Silver layer complete")
	return records, nil
}

// processOne normalizes and inspects a single record.
func (p *Pipeline) processOne(normalizer *normalize.Normalizer, inspector *quality.Inspector, raw model.RawRecord) silverOutcome {
	rec, err := normalizer.Normalize(raw)
	if err != nil {
		rejection := &model.Rejection{
			SourceFile: raw.Provenance.SourceFile,
			RowNumber:  raw.Provenance.RowNumber,
			Reason:     err.Error(),
		}
		var unparseable *normalize.UnparseableError
		if errors.As(err, &unparseable) {
			rejection.Field = unparseable.Field
			rejection.Value = unparseable.Value
			rejection.Reason = unparseable.Reason
		}
		return silverOutcome{rejection: rejection}
	}

	verdict := inspector.InspectRecord(&rec)
	if verdict.Reject {
		return silverOutcome{rejection: &model.Rejection{
			SourceFile: raw.Provenance.SourceFile,
			RowNumber:  raw.Provenance.RowNumber,
			Reason:     verdict.Reason,
		}}
	}
	return silverOutcome{record: rec, kept: true}
}

// gold builds dimensions and facts, stages them, and promotes the run
// atomically. Any failure after staging discards the staged rows.
func (p *Pipeline) gold(ctx context.Context, silver []model.NormalizedRecord, result *model.RunResult) error {
	if len(silver) == 0 {
		logging.Info().Str("run_id", result.RunID).Msg("Nothing to promote")
		return nil
	}

	// Seed surrogate allocation from the sink's high-water marks, not
	// just the loaded history: a trimmed dimension read must never
	// cause key reuse.
	alloc := dimension.NewAllocator()
	builder := dimension.NewBuilder(alloc, result.RunDate, p.ref)
	for _, dim := range model.Dimensions {
		mark, err := p.sink.SurrogateHighWaterMark(ctx, dim)
		if err != nil {
			return fmt.Errorf("failed to read %s high-water mark: %w", dim, err)
		}
		alloc.Seed(dim, mark)

		existing, err := p.sink.DimensionRows(ctx, dim)
		if err != nil {
			return fmt.Errorf("failed to load %s: %w", dim, err)
		}
		builder.Load(existing)
		logging.Debug().
			Str("dimension", string(dim)).
			Int64("next_key", alloc.Peek(dim)).
			Msg("Seeded surrogate allocator")
	}
	builder.BuildFromRecords(silver)

	assembled := fact.NewAssembler(builder.Lookup(), p.ref).Assemble(silver)
	result.Exceptions.Unresolved = assembled.Unresolved
	result.Exceptions.ExcludedMeasures = assembled.ExcludedMeasures

	var dateRows []model.DateDimensionRow
	if from, to, ok := dimension.ObservedSpan(silver); ok {
		dateRows = dimension.DateRows(from, to)
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := p.sink.StageGold(ctx, result.RunID); err != nil {
		return fmt.Errorf("failed to open staging: %w", err)
	}
	if err := p.stage(ctx, builder, dateRows, assembled.Facts, result); err != nil {
		if discardErr := p.sink.DiscardGold(context.WithoutCancel(ctx), result.RunID); discardErr != nil {
			logging.Error().Err(discardErr).Str("run_id", result.RunID).Msg("Failed to discard staged run")
		}
		return err
	}

	if err := p.sink.PromoteGold(ctx, result.RunID); err != nil {
		return fmt.Errorf("failed to promote gold layer: %w", err)
	}

	result.GoldFacts = len(assembled.Facts)
	result.GoldDateRows = len(dateRows)
	result.GoldDimRows = make(map[model.Dimension]int, len(model.Dimensions))
	for _, dim := range model.Dimensions {
		result.GoldDimRows[dim] = len(builder.Rows(dim))
	}
	return nil
}

func (p *Pipeline) stage(ctx context.Context, builder *dimension.Builder, dateRows []model.DateDimensionRow, facts []model.FactRow, result *model.RunResult) error {
	for _, dim := range model.Dimensions {
		if err := p.sink.WriteDimension(ctx, result.RunID, dim, builder.Rows(dim)); err != nil {
			return fmt.Errorf("failed to stage %s: %w", dim, err)
		}
	}
	if err := p.sink.UpsertDateDimension(ctx, result.RunID, dateRows); err != nil {
		return fmt.Errorf("failed to stage date dimension: %w", err)
	}
	if err := p.sink.AppendFacts(ctx, result.RunID, facts); err != nil {
		return fmt.Errorf("failed to stage facts: %w", err)
	}
	return nil
}

func (p *Pipeline) timing(result *model.RunResult, stage model.Stage, start time.Time) {
	result.Timings = append(result.Timings, model.StageTiming{
		Stage:    stage,
		Duration: time.Since(start),
	})
	logging.Debug().
		Str("stage", string(stage)).
		Dur("took", time.Since(start)).
		Msg("Stage complete")
}
