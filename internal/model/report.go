package model

import "time"

// Stage names a pipeline stage for reporting.
type Stage string

const (
	StageBronze Stage = "bronze"
	StageSilver Stage = "silver"
	StageGold   Stage = "gold"
)

// WeightTable maps each quality flag to its penalty weight. Weights are
// configuration, not constants, so the score can be tuned without a
// code change.
type WeightTable map[Flag]float64

// QualityScoreReport is the run-level quality aggregate. One is
// produced per run and never mutated afterwards.
type QualityScoreReport struct {
	TotalRecords int
	FlagCounts   map[Flag]int
	AffectedRows map[Flag]int
	Weights      WeightTable

	// Score is 100 minus the weighted penalty sum per record, clamped
	// to [0, 100].
	Score float64
}

// DroppedRecord describes a record superseded during deduplication.
// Dropped rows stay in bronze for audit but are excluded from silver.
type DroppedRecord struct {
	Key        BusinessKey
	SourceFile string
	RowNumber  int
	Reason     string
}

// DeduplicationReport summarizes business-key resolution.
type DeduplicationReport struct {
	GroupsResolved int
	RowsDropped    int
	Dropped        []DroppedRecord
}

// Rejection is a row the normalizer could not parse at all.
type Rejection struct {
	SourceFile string
	RowNumber  int
	Field      string
	Value      string
	Reason     string
}

// UnresolvedKey is a silver record excluded from gold because a
// dimension foreign key could not be resolved.
type UnresolvedKey struct {
	Key        BusinessKey
	Stage      Stage
	Dimension  Dimension
	NaturalKey string
	Flags      []Flag
}

// ExcludedMeasure is a fact emitted without measures because a measure
// was negative or missing and no correction policy applied.
type ExcludedMeasure struct {
	Key    BusinessKey
	Fields []string
	Flags  []Flag
}

// ExceptionReport collects everything that needs manual remediation:
// hard rejects from normalization and gold-layer exclusions. Nothing in
// the pipeline is dropped silently.
type ExceptionReport struct {
	Rejections       []Rejection
	Unresolved       []UnresolvedKey
	ExcludedMeasures []ExcludedMeasure
}

// Empty reports whether the run produced no exceptions.
func (r *ExceptionReport) Empty() bool {
	return len(r.Rejections) == 0 && len(r.Unresolved) == 0 && len(r.ExcludedMeasures) == 0
}

// RunStatus is the terminal state of a pipeline run.
type RunStatus string

const (
	RunSucceeded         RunStatus = "succeeded"
	RunQualityGateFailed RunStatus = "quality_gate_failed"
	RunFailed            RunStatus = "failed"
	RunCancelled         RunStatus = "cancelled"
)

// StageTiming records how long one stage took.
type StageTiming struct {
	Stage    Stage
	Duration time.Duration
}

// RunCheckpoint marks the last fully completed stage of a run. A
// checkpoint taken after silver carries the record snapshot, so a
// cancelled or failed run can resume into gold without redoing
// normalization, inspection, and deduplication.
type RunCheckpoint struct {
	Stage  Stage
	Silver []NormalizedRecord
}

// RunResult is the structured outcome of one pipeline run, handed to
// the reporting collaborator.
type RunResult struct {
	RunID   string
	RunDate time.Time
	Status  RunStatus
	Err     string

	BronzeRecords int
	SilverRecords int
	GoldFacts     int
	GoldDimRows   map[Dimension]int
	GoldDateRows  int

	Quality    *QualityScoreReport
	Dedup      *DeduplicationReport
	Exceptions *ExceptionReport

	Timings []StageTiming

	// Checkpoint tracks the last completed stage. Pipeline.Resume
	// picks up from here.
	Checkpoint *RunCheckpoint
}
