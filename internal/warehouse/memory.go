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
	"fmt"
	"sync"

	"github.com/pgEdge/retail-dwh/internal/model"
)

// MemorySink is an in-memory Sink with the same staging and promotion
// semantics as the PostgreSQL sink. It backs dry runs and tests.
type MemorySink struct {
	mu sync.Mutex

	dimensions map[model.Dimension][]model.DimensionRow
	dates      map[int64]model.DateDimensionRow
	facts      map[model.BusinessKey]model.FactRow

	staged map[string]*stagedRun
}

type stagedRun struct {
	dimensions map[model.Dimension][]model.DimensionRow
	dates      []model.DateDimensionRow
	facts      []model.FactRow
}

// NewMemorySink creates an empty in-memory sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{
		dimensions: make(map[model.Dimension][]model.DimensionRow),
		dates:      make(map[int64]model.DateDimensionRow),
		facts:      make(map[model.BusinessKey]model.FactRow),
		staged:     make(map[string]*stagedRun),
	}
}

// StageGold opens a fresh staging area for the run.
func (s *MemorySink) StageGold(_ context.Context, runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.staged[runID] = &stagedRun{dimensions: make(map[model.Dimension][]model.DimensionRow)}
	return nil
}

// WriteDimension stages dimension rows for the run.
func (s *MemorySink) WriteDimension(_ context.Context, runID string, dim model.Dimension, rows []model.DimensionRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, err := s.run(runID)
	if err != nil {
		return err
	}
	run.dimensions[dim] = append([]model.DimensionRow(nil), rows...)
	return nil
}

// UpsertDateDimension stages calendar rows for the run.
func (s *MemorySink) UpsertDateDimension(_ context.Context, runID string, rows []model.DateDimensionRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, err := s.run(runID)
	if err != nil {
		return err
	}
	run.dates = append(run.dates, rows...)
	return nil
}

// AppendFacts stages fact rows for the run.
func (s *MemorySink) AppendFacts(_ context.Context, runID string, rows []model.FactRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, err := s.run(runID)
	if err != nil {
		return err
	}
	run.facts = append(run.facts, rows...)
	return nil
}

// PromoteGold publishes the staged rows. Dimension rows replace earlier
// versions with the same surrogate key, dates and facts upsert by their
// natural identity.
func (s *MemorySink) PromoteGold(_ context.Context, runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	run, ok := s.staged[runID]
	if !ok || run.empty() {
		return fmt.Errorf("run %s: %w", runID, ErrNoStagedRun)
	}

	for dim, rows := range run.dimensions {
		for _, row := range rows {
			s.upsertDimensionRow(dim, row)
		}
	}
	for _, row := range run.dates {
		s.dates[row.DateKey] = row
	}
	for _, row := range run.facts {
		s.facts[row.Key] = row
	}

	delete(s.staged, runID)
	return nil
}

// DiscardGold drops the run's staged rows.
func (s *MemorySink) DiscardGold(_ context.Context, runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.staged, runID)
	return nil
}

// DimensionRows returns the promoted rows of one dimension.
func (s *MemorySink) DimensionRows(_ context.Context, dim model.Dimension) ([]model.DimensionRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.DimensionRow(nil), s.dimensions[dim]...), nil
}

// SurrogateHighWaterMark returns the highest promoted surrogate key.
func (s *MemorySink) SurrogateHighWaterMark(_ context.Context, dim model.Dimension) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var mark int64
	for _, row := range s.dimensions[dim] {
		if row.SurrogateKey > mark {
			mark = row.SurrogateKey
		}
	}
	return mark, nil
}

// Facts returns the promoted facts, for reporting and tests.
func (s *MemorySink) Facts() []model.FactRow {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := make([]model.FactRow, 0, len(s.facts))
	for _, row := range s.facts {
		rows = append(rows, row)
	}
	return rows
}

// DateRowCount returns the number of promoted calendar rows.
func (s *MemorySink) DateRowCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.dates)
}

func (s *MemorySink) run(runID string) (*stagedRun, error) {
	run, ok := s.staged[runID]
	if !ok {
		return nil, fmt.Errorf("run %s: staging not opened", runID)
	}
	return run, nil
}

func (s *MemorySink) upsertDimensionRow(dim model.Dimension, row model.DimensionRow) {
	rows := s.dimensions[dim]
	for i := range rows {
		if rows[i].SurrogateKey == row.SurrogateKey {
			rows[i] = row
			return
		}
	}
	s.dimensions[dim] = append(rows, row)
}

func (r *stagedRun) empty() bool {
	return len(r.dimensions) == 0 && len(r.dates) == 0 && len(r.facts) == 0
}
