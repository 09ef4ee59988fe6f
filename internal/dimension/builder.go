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

	"github.com/pgEdge/retail-dwh/internal/geo"
	"github.com/pgEdge/retail-dwh/internal/model"
)

// Builder derives dimension rows from normalized records, maintaining
// a natural-key to current-surrogate-key index per dimension. Load it
// with the sink's existing rows before applying a batch so re-runs are
// idempotent and SCD2 history accumulates across runs.
type Builder struct {
	alloc   *Allocator
	runDate time.Time
	ref     *geo.Reference

	// rows holds every version, in insertion order, per dimension.
	rows map[model.Dimension][]model.DimensionRow
	// current maps natural key to the index of its open version.
	current map[model.Dimension]map[string]int
}

// NewBuilder creates a builder for one run.
func NewBuilder(alloc *Allocator, runDate time.Time, ref *geo.Reference) *Builder {
	b := &Builder{
		alloc:   alloc,
		runDate: midnight(runDate),
		ref:     ref,
		rows:    make(map[model.Dimension][]model.DimensionRow),
		current: make(map[model.Dimension]map[string]int),
	}
	for _, dim := range model.Dimensions {
		b.current[dim] = make(map[string]int)
	}
	return b
}

// Load seeds the builder with existing dimension rows from the sink.
// Surrogate high-water marks are fed to the allocator so new keys
// never collide with persisted ones.
func (b *Builder) Load(existing []model.DimensionRow) {
	for _, row := range existing {
		dim := row.Dimension
		b.rows[dim] = append(b.rows[dim], row)
		if row.IsCurrent {
			b.current[dim][row.NaturalKey] = len(b.rows[dim]) - 1
		}
		b.alloc.Seed(dim, row.SurrogateKey)
	}
}

// Apply upserts one natural key. New keys get a fresh surrogate key;
// unchanged attributes are a no-op; changed attributes close the open
// version and insert a new one for history-tracking dimensions, or
// overwrite in place for type 1 dimensions. Returns the current
// surrogate key for the natural key.
func (b *Builder) Apply(dim model.Dimension, naturalKey string, attrs map[string]string) int64 {
	idx, exists := b.current[dim][naturalKey]
	if !exists {
		return b.insert(dim, naturalKey, attrs)
	}

	open := &b.rows[dim][idx]
	if open.AttributesEqual(model.DimensionRow{Attributes: attrs}) {
		return open.SurrogateKey
	}

	if !dim.TracksHistory() || open.ValidFrom.Equal(b.runDate) {
		// Type 1 overwrite, or a within-run revision of a version
		// opened by this same batch. The surrogate key is stable;
		// only attributes change.
		open.Attributes = attrs
		return open.SurrogateKey
	}

	// SCD2: close the open version and insert a successor. Only
	// ValidTo and IsCurrent of the prior row ever change.
	open.ValidTo = b.runDate
	open.IsCurrent = false
	return b.insert(dim, naturalKey, attrs)
}

func (b *Builder) insert(dim model.Dimension, naturalKey string, attrs map[string]string) int64 {
	row := model.DimensionRow{
		Dimension:    dim,
		SurrogateKey: b.alloc.Next(dim),
		NaturalKey:   naturalKey,
		Attributes:   attrs,
		ValidFrom:    b.runDate,
		IsCurrent:    true,
	}
	b.rows[dim] = append(b.rows[dim], row)
	b.current[dim][naturalKey] = len(b.rows[dim]) - 1
	return row.SurrogateKey
}

// BuildFromRecords applies every record's dimension attributes. Records
// missing a dimension's natural key contribute nothing to that
// dimension; the fact assembler surfaces them as exceptions.
func (b *Builder) BuildFromRecords(records []model.NormalizedRecord) {
	for idx := range records {
		rec := &records[idx]
		if key, ok := CustomerNaturalKey(rec); ok {
			b.Apply(model.DimCustomer, key, CustomerAttributes(rec))
		}
		if key, ok := ProductNaturalKey(rec); ok {
			b.Apply(model.DimProduct, key, ProductAttributes(rec))
		}
		if key, attrs, ok := GeographyFor(rec, b.ref); ok {
			b.Apply(model.DimGeography, key, attrs)
		}
		if key, ok := ShipModeNaturalKey(rec); ok {
			b.Apply(model.DimShipMode, key, map[string]string{"name": rec.ShipMode.String})
		}
	}
}

// Rows returns every version of a dimension, in insertion order.
func (b *Builder) Rows(dim model.Dimension) []model.DimensionRow {
	return b.rows[dim]
}

// Lookup snapshots the builder's state for point-in-time foreign key
// resolution by the fact assembler.
func (b *Builder) Lookup() *Lookup {
	l := &Lookup{versions: make(map[model.Dimension]map[string][]model.DimensionRow)}
	for dim, rows := range b.rows {
		byKey := make(map[string][]model.DimensionRow)
		for _, row := range rows {
			byKey[row.NaturalKey] = append(byKey[row.NaturalKey], row)
		}
		l.versions[dim] = byKey
	}
	return l
}

// Lookup resolves natural keys to surrogate keys, either as of a date
// (SCD2 point-in-time) or at the current version.
type Lookup struct {
	versions map[model.Dimension]map[string][]model.DimensionRow
}

// AsOf returns the surrogate key whose version covered the given date.
// Dates preceding the earliest version resolve to that earliest
// version: the first version of a natural key stands in for all
// history before it was observed.
func (l *Lookup) AsOf(dim model.Dimension, naturalKey string, asOf time.Time) (int64, bool) {
	rows := l.versions[dim][naturalKey]
	if len(rows) == 0 {
		return 0, false
	}
	earliest := rows[0]
	for _, row := range rows {
		if row.CoversDate(asOf) {
			return row.SurrogateKey, true
		}
		if row.ValidFrom.Before(earliest.ValidFrom) {
			earliest = row
		}
	}
	if asOf.Before(earliest.ValidFrom) {
		return earliest.SurrogateKey, true
	}
	return 0, false
}

// Current returns the surrogate key of the open version.
func (l *Lookup) Current(dim model.Dimension, naturalKey string) (int64, bool) {
	for _, row := range l.versions[dim][naturalKey] {
		if row.IsCurrent {
			return row.SurrogateKey, true
		}
	}
	return 0, false
}

// CustomerNaturalKey returns the customer dimension natural key.
func CustomerNaturalKey(rec *model.NormalizedRecord) (string, bool) {
	return rec.CustomerID.String, rec.CustomerID.Valid
}

// CustomerAttributes returns the customer dimension attribute set.
func CustomerAttributes(rec *model.NormalizedRecord) map[string]string {
	return map[string]string{
		"customer_name": rec.CustomerName.String,
		"segment":       rec.Segment.String,
	}
}

// ProductNaturalKey returns the product dimension natural key.
func ProductNaturalKey(rec *model.NormalizedRecord) (string, bool) {
	return rec.Key.ProductID, rec.Key.ProductID != ""
}

// ProductAttributes returns the product dimension attribute set.
func ProductAttributes(rec *model.NormalizedRecord) map[string]string {
	return map[string]string{
		"product_name": rec.ProductName.String,
		"category":     rec.Category.String,
		"sub_category": rec.SubCategory.String,
	}
}

// GeographyFor resolves a record's geography through the reference and
// returns the natural key and attributes at the best granularity. A
// record that cannot be placed at all returns ok=false.
func GeographyFor(rec *model.NormalizedRecord, ref *geo.Reference) (string, map[string]string, bool) {
	if ref == nil {
		return "", nil, false
	}
	res := ref.Resolve(
		rec.PostalCode.String, rec.City.String, rec.State.String,
		rec.Region.String, rec.Country.String)
	switch res.Granularity {
	case geo.GranularityPostal:
		return res.Location.PostalCode, map[string]string{
			"postal_code": res.Location.PostalCode,
			"city":        res.Location.City,
			"state":       res.Location.State,
			"region":      res.Location.Region,
			"country":     res.Location.Country,
			"granularity": string(res.Granularity),
		}, true
	case geo.GranularityState:
		return "STATE:" + res.Location.State, map[string]string{
			"city":        res.Location.City,
			"state":       res.Location.State,
			"region":      res.Location.Region,
			"country":     res.Location.Country,
			"granularity": string(res.Granularity),
		}, true
	default:
		return "", nil, false
	}
}

// ShipModeNaturalKey returns the ship-mode dimension natural key.
func ShipModeNaturalKey(rec *model.NormalizedRecord) (string, bool) {
	if !rec.ShipMode.Valid {
		return "", false
	}
	return rec.ShipMode.String, true
}
