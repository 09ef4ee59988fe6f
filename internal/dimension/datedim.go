//-------------------------------------------------------------------------
//
// pgEdge Retail Warehouse Pipeline
//
// Copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package dimension

import (
	"time"

	"github.com/pgEdge/retail-dwh/internal/model"
)

// DateRows generates one date dimension row per calendar day in the
// inclusive range [from, to]. The YYYYMMDD surrogate key is a pure
// function of the date, so regenerating an overlapping range yields
// identical rows and the sink can upsert them freely.
func DateRows(from, to time.Time) []model.DateDimensionRow {
	from = midnight(from)
	to = midnight(to)
	if to.Before(from) {
		return nil
	}

	var rows []model.DateDimensionRow
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		dow := int(d.Weekday())
		rows = append(rows, model.DateDimensionRow{
			DateKey:   model.DateKeyFor(d),
			Date:      d,
			Year:      d.Year(),
			Quarter:   (int(d.Month())-1)/3 + 1,
			Month:     int(d.Month()),
			Day:       d.Day(),
			DayOfWeek: dow,
			MonthName: d.Month().String(),
			DayName:   d.Weekday().String(),
			IsWeekend: dow == 0 || dow == 6,
		})
	}
	return rows
}

// ObservedSpan returns the earliest and latest dates referenced by the
// batch across order and ship dates. ok is false when no record carries
// a valid date, in which case there is nothing for the date dimension
// to cover.
func ObservedSpan(records []model.NormalizedRecord) (from, to time.Time, ok bool) {
	observe := func(nd model.NullDate) {
		if !nd.Valid {
			return
		}
		d := midnight(nd.Time)
		if !ok {
			from, to, ok = d, d, true
			return
		}
		if d.Before(from) {
			from = d
		}
		if d.After(to) {
			to = d
		}
	}
	for idx := range records {
		observe(records[idx].OrderDate)
		observe(records[idx].ShipDate)
	}
	return from, to, ok
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
