package quality

import (
	"testing"

	"github.com/pgEdge/retail-dwh/internal/model"
)

func flagged(flags ...model.Flag) model.NormalizedRecord {
	rec := cleanRecord()
	for _, f := range flags {
		rec.Flags.Add(f)
	}
	return rec
}

func TestScoreCleanBatch(t *testing.T) {
	records := []model.NormalizedRecord{cleanRecord(), cleanRecord(), cleanRecord()}
	weights := model.WeightTable{model.FlagDuplicateKey: 10}

	report := Score(records, weights)
	if report.Score != 100 {
		t.Errorf("Clean batch should score 100, got %g", report.Score)
	}
	if report.TotalRecords != 3 {
		t.Errorf("TotalRecords = %d, want 3", report.TotalRecords)
	}
}

func TestScoreWeightedPenalty(t *testing.T) {
	// 4 records, one duplicate pair and one negative numeric:
	// penalty = 2*8 + 1*6 = 22; score = 100 - 22/4 = 94.5
	records := []model.NormalizedRecord{
		flagged(model.FlagDuplicateKey),
		flagged(model.FlagDuplicateKey),
		flagged(model.FlagNegativeNumeric),
		cleanRecord(),
	}
	weights := model.WeightTable{
		model.FlagDuplicateKey:    8,
		model.FlagNegativeNumeric: 6,
	}

	report := Score(records, weights)
	if report.Score != 94.5 {
		t.Errorf("Score = %g, want 94.5", report.Score)
	}
	if report.FlagCounts[model.FlagDuplicateKey] != 2 {
		t.Errorf("duplicate_key count = %d, want 2", report.FlagCounts[model.FlagDuplicateKey])
	}
	if report.AffectedRows[model.FlagNegativeNumeric] != 1 {
		t.Errorf("negative_numeric rows = %d, want 1", report.AffectedRows[model.FlagNegativeNumeric])
	}
}

func TestScoreClampedToZero(t *testing.T) {
	records := []model.NormalizedRecord{flagged(model.FlagMissingCriticalField)}
	weights := model.WeightTable{model.FlagMissingCriticalField: 500}

	report := Score(records, weights)
	if report.Score != 0 {
		t.Errorf("Score must clamp to 0, got %g", report.Score)
	}
}

func TestScoreDeterministic(t *testing.T) {
	records := []model.NormalizedRecord{
		flagged(model.FlagDuplicateKey, model.FlagMissingNumeric),
		flagged(model.FlagInvalidFormat),
		cleanRecord(),
	}
	weights := model.WeightTable{
		model.FlagDuplicateKey:   8,
		model.FlagMissingNumeric: 3,
		model.FlagInvalidFormat:  5,
	}

	first := Score(records, weights)
	for run := 0; run < 5; run++ {
		again := Score(records, weights)
		if again.Score != first.Score {
			t.Fatalf("Score not deterministic: %g vs %g", again.Score, first.Score)
		}
	}
}

func TestScoreRespectsWeightTable(t *testing.T) {
	records := []model.NormalizedRecord{flagged(model.FlagDuplicateKey)}

	lenient := Score(records, model.WeightTable{model.FlagDuplicateKey: 1})
	strict := Score(records, model.WeightTable{model.FlagDuplicateKey: 50})

	if lenient.Score != 99 {
		t.Errorf("Lenient score = %g, want 99", lenient.Score)
	}
	if strict.Score != 50 {
		t.Errorf("Strict score = %g, want 50", strict.Score)
	}
}

func TestScoreEmptyBatch(t *testing.T) {
	report := Score(nil, model.WeightTable{})
	if report.Score != 100 {
		t.Errorf("Empty batch scores 100, got %g", report.Score)
	}
	if report.TotalRecords != 0 {
		t.Errorf("TotalRecords = %d, want 0", report.TotalRecords)
	}
}
