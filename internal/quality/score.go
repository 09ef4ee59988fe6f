package quality

import "github.com/pgEdge/retail-dwh/internal/model"

// Score aggregates the batch into a QualityScoreReport. The score is
// 100 minus the weighted penalty sum per record, clamped to [0, 100]:
//
//	score = 100 - sum(flag_count_i * weight_i) / total_records
//
// Weights come from configuration so the same batch can be scored
// against different weight tables. Scoring is deterministic: the same
// records and weights always produce the same report.
func Score(records []model.NormalizedRecord, weights model.WeightTable) *model.QualityScoreReport {
	report := &model.QualityScoreReport{
		TotalRecords: len(records),
		FlagCounts:   make(map[model.Flag]int),
		AffectedRows: make(map[model.Flag]int),
		Weights:      weights,
		Score:        100,
	}
	if len(records) == 0 {
		return report
	}

	for idx := range records {
		for _, f := range records[idx].Flags.List() {
			report.FlagCounts[f]++
			report.AffectedRows[f]++
		}
	}

	penalty := 0.0
	for flag, count := range report.FlagCounts {
		penalty += float64(count) * weights[flag]
	}
	score := 100 - penalty/float64(report.TotalRecords)
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	report.Score = score
	return report
}
