//-------------------------------------------------------------------------
//
// pgEdge Retail Warehouse Pipeline
//
// Copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package fact assembles the gold fact table from deduplicated silver
// records. Every emitted fact has fully resolved dimension keys; records
// that cannot resolve are routed to the exception report instead of
// being dropped.
package fact

import (
	"github.com/pgEdge/retail-dwh/internal/dimension"
	"github.com/pgEdge/retail-dwh/internal/geo"
	"github.com/pgEdge/retail-dwh/internal/model"
)

// Assembler resolves silver records against the dimension lookup and
// produces fact rows.
type Assembler struct {
	lookup *dimension.Lookup
	ref    *geo.Reference
}

// NewAssembler creates an assembler over a dimension snapshot.
func NewAssembler(lookup *dimension.Lookup, ref *geo.Reference) *Assembler {
	return &Assembler{lookup: lookup, ref: ref}
}

// Result is the outcome of assembling one batch.
type Result struct {
	Facts            []model.FactRow
	Unresolved       []model.UnresolvedKey
	ExcludedMeasures []model.ExcludedMeasure
}

// Assemble builds one fact row per resolvable record. Dimension keys
// resolve as of the order date, so a fact lands on the customer and
// product version that was current when the order was placed. A record
// failing any foreign key is excluded whole; a record whose measures
// are missing or negative still produces a fact, with null measures and
// an exclusion entry for the audit trail.
func (a *Assembler) Assemble(records []model.NormalizedRecord) *Result {
	result := &Result{}
	for idx := range records {
		rec := &records[idx]

		fact, unresolved := a.resolve(rec)
		if len(unresolved) > 0 {
			result.Unresolved = append(result.Unresolved, unresolved...)
			continue
		}

		if !rec.HasMeasures() {
			result.ExcludedMeasures = append(result.ExcludedMeasures, model.ExcludedMeasure{
				Key:    rec.Key,
				Fields: offendingMeasures(rec),
				Flags:  rec.Flags.List(),
			})
		} else {
			fact.Sales = rec.Sales
			fact.Quantity = rec.Quantity
			fact.Discount = rec.Discount
			fact.Profit = rec.Profit
			fact.DeliveryDays = rec.DeliveryDays
		}

		result.Facts = append(result.Facts, fact)
	}
	return result
}

// resolve maps every dimension foreign key for one record. It collects
// all failures rather than stopping at the first so the exception
// report names everything that needs fixing.
func (a *Assembler) resolve(rec *model.NormalizedRecord) (model.FactRow, []model.UnresolvedKey) {
	fact := model.FactRow{Key: rec.Key}
	var unresolved []model.UnresolvedKey

	miss := func(dim model.Dimension, naturalKey string) {
		unresolved = append(unresolved, model.UnresolvedKey{
			Key:        rec.Key,
			Stage:      model.StageGold,
			Dimension:  dim,
			NaturalKey: naturalKey,
			Flags:      rec.Flags.List(),
		})
	}

	if !rec.OrderDate.Valid {
		// Without an order date there is no point-in-time to resolve
		// against; nothing else can be looked up meaningfully.
		miss(model.DimDate, "order_date")
		return fact, unresolved
	}
	asOf := rec.OrderDate.Time
	fact.OrderDateKey = model.DateKeyFor(asOf)
	if rec.ShipDate.Valid {
		fact.ShipDateKey = model.DateKeyFor(rec.ShipDate.Time)
	}

	if key, ok := dimension.CustomerNaturalKey(rec); !ok {
		miss(model.DimCustomer, "")
	} else if sk, found := a.lookup.AsOf(model.DimCustomer, key, asOf); !found {
		miss(model.DimCustomer, key)
	} else {
		fact.CustomerKey = sk
	}

	if key, ok := dimension.ProductNaturalKey(rec); !ok {
		miss(model.DimProduct, "")
	} else if sk, found := a.lookup.AsOf(model.DimProduct, key, asOf); !found {
		miss(model.DimProduct, key)
	} else {
		fact.ProductKey = sk
	}

	if key, _, ok := dimension.GeographyFor(rec, a.ref); !ok {
		miss(model.DimGeography, "")
	} else if sk, found := a.lookup.Current(model.DimGeography, key); !found {
		miss(model.DimGeography, key)
	} else {
		fact.GeographyKey = sk
	}

	if key, ok := dimension.ShipModeNaturalKey(rec); !ok {
		miss(model.DimShipMode, "")
	} else if sk, found := a.lookup.Current(model.DimShipMode, key); !found {
		miss(model.DimShipMode, key)
	} else {
		fact.ShipModeKey = sk
	}

	return fact, unresolved
}

func offendingMeasures(rec *model.NormalizedRecord) []string {
	var fields []string
	if !rec.Sales.Valid || rec.Sales.Decimal.Sign() < 0 {
		fields = append(fields, "sales")
	}
	if !rec.Quantity.Valid || rec.Quantity.Int64 < 0 {
		fields = append(fields, "quantity")
	}
	if !rec.Discount.Valid {
		fields = append(fields, "discount")
	}
	if !rec.Profit.Valid {
		fields = append(fields, "profit")
	}
	return fields
}
