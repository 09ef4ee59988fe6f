//-------------------------------------------------------------------------
//
// pgEdge Retail Warehouse Pipeline
//
// Copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package dedup resolves business-key collisions deterministically:
// the most complete record survives, ties go to the most recently
// ingested row. Superseded rows stay in bronze for audit and are
// reported, never silently dropped.
package dedup

import "github.com/pgEdge/retail-dwh/internal/model"

// Resolve collapses the batch to exactly one record per business key.
// Records with an incomplete key cannot collide meaningfully and pass
// through untouched. The survivor keeps its position in input order,
// so resolution is stable and idempotent: running Resolve on its own
// output returns the same records and an empty report.
func Resolve(records []model.NormalizedRecord) ([]model.NormalizedRecord, *model.DeduplicationReport) {
	report := &model.DeduplicationReport{}

	groups := make(map[model.BusinessKey][]int, len(records))
	for idx := range records {
		if !records[idx].Key.IsComplete() {
			continue
		}
		groups[records[idx].Key] = append(groups[records[idx].Key], idx)
	}

	dropped := make(map[int]bool)
	for key, members := range groups {
		if len(members) < 2 {
			continue
		}
		survivor := members[0]
		for _, idx := range members[1:] {
			if beats(&records[idx], &records[survivor]) {
				survivor = idx
			}
		}
		report.GroupsResolved++
		for _, idx := range members {
			if idx == survivor {
				continue
			}
			dropped[idx] = true
			report.RowsDropped++
			report.Dropped = append(report.Dropped, model.DroppedRecord{
				Key:        key,
				SourceFile: records[idx].Provenance.SourceFile,
				RowNumber:  records[idx].Provenance.RowNumber,
				Reason:     dropReason(&records[idx], &records[survivor]),
			})
		}
	}

	survivors := make([]model.NormalizedRecord, 0, len(records)-len(dropped))
	for idx := range records {
		if !dropped[idx] {
			survivors = append(survivors, records[idx])
		}
	}
	return survivors, report
}

// beats reports whether candidate should survive over incumbent.
// Ordering: completeness, then ingestion timestamp, then row number,
// so resolution never depends on input order.
func beats(candidate, incumbent *model.NormalizedRecord) bool {
	if candidate.Completeness != incumbent.Completeness {
		return candidate.Completeness > incumbent.Completeness
	}
	ct, it := candidate.Provenance.IngestedAt, incumbent.Provenance.IngestedAt
	if !ct.Equal(it) {
		return ct.After(it)
	}
	return candidate.Provenance.RowNumber > incumbent.Provenance.RowNumber
}

func dropReason(droppedRec, survivor *model.NormalizedRecord) string {
	if droppedRec.Completeness < survivor.Completeness {
		return "superseded by more complete record"
	}
	return "superseded by more recently ingested record"
}
