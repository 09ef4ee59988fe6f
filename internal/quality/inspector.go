//-------------------------------------------------------------------------
//
// pgEdge Retail Warehouse Pipeline
//
// Copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package quality evaluates normalized records against the
// completeness, validity, accuracy, consistency and uniqueness rules
// and aggregates the run-level quality score. Rules never short-circuit
// each other: every check runs on every record so the score reflects
// the whole defect surface.
package quality

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/pgEdge/retail-dwh/internal/config"
	"github.com/pgEdge/retail-dwh/internal/geo"
	"github.com/pgEdge/retail-dwh/internal/model"
)

// Verdict is the per-record outcome of inspection. Reject is only set
// by an explicit reject policy; flags alone never remove a record.
type Verdict struct {
	Reject bool
	Reason string
}

// Inspector applies the quality rules to normalized records.
type Inspector struct {
	critical []string
	policies config.PolicyConfig
	ref      *geo.Reference

	negativeDefault decimal.Decimal
	hasDefault      bool
}

// NewInspector builds an inspector. The geography reference may be nil,
// in which case accuracy checks are skipped.
func NewInspector(cfg config.QualityConfig, ref *geo.Reference) (*Inspector, error) {
	i := &Inspector{
		critical: cfg.CriticalFields,
		policies: cfg.Policies,
		ref:      ref,
	}
	if cfg.Policies.NegativeNumeric == config.PolicyDefault {
		d, err := decimal.NewFromString(cfg.Policies.NegativeNumericDefault)
		if err != nil {
			return nil, fmt.Errorf("invalid negative_numeric_default %q: %w",
				cfg.Policies.NegativeNumericDefault, err)
		}
		i.negativeDefault = d
		i.hasDefault = true
	}
	return i, nil
}

// InspectRecord runs the record-local rules (completeness, validity,
// accuracy, consistency), attaches flags and computes the per-record
// completeness score. It touches no shared state and is safe to call
// concurrently across distinct records.
func (i *Inspector) InspectRecord(rec *model.NormalizedRecord) Verdict {
	i.checkCompleteness(rec)
	verdict := i.checkValidity(rec)
	if v := i.checkAccuracy(rec); v.Reject {
		verdict = v
	}
	i.checkConsistency(rec)
	rec.Completeness = completeness(rec)
	return verdict
}

// FlagDuplicates runs the uniqueness rule across the batch, marking
// every record whose business key collides. Resolution is the
// deduplicator's job; nothing is dropped here.
func (i *Inspector) FlagDuplicates(records []model.NormalizedRecord) {
	seen := make(map[model.BusinessKey]int, len(records))
	for idx := range records {
		if !records[idx].Key.IsComplete() {
			continue
		}
		seen[records[idx].Key]++
	}
	for idx := range records {
		if seen[records[idx].Key] > 1 {
			records[idx].Flags.Add(model.FlagDuplicateKey)
		}
	}
}

func (i *Inspector) checkCompleteness(rec *model.NormalizedRecord) {
	present := fieldPresence(rec)
	for _, field := range i.critical {
		if !present[strings.ToLower(field)] {
			rec.Flags.Add(model.FlagMissingCriticalField)
			return
		}
	}
}

func (i *Inspector) checkValidity(rec *model.NormalizedRecord) Verdict {
	if !rec.Sales.Valid || !rec.Quantity.Valid || !rec.Discount.Valid || !rec.Profit.Valid {
		rec.Flags.Add(model.FlagMissingNumeric)
	}

	negative := (rec.Quantity.Valid && rec.Quantity.Int64 < 0) ||
		(rec.Sales.Valid && rec.Sales.Decimal.Sign() < 0)
	if !negative {
		return Verdict{}
	}

	switch i.policies.NegativeNumeric {
	case config.PolicyReject:
		return Verdict{Reject: true, Reason: "negative numeric measure"}
	case config.PolicyDefault:
		if i.hasDefault {
			i.applyNegativeDefault(rec)
			return Verdict{}
		}
		fallthrough
	default:
		// Flag, never silently clamp.
		rec.Flags.Add(model.FlagNegativeNumeric)
	}
	return Verdict{}
}

func (i *Inspector) applyNegativeDefault(rec *model.NormalizedRecord) {
	if rec.Quantity.Valid && rec.Quantity.Int64 < 0 {
		rec.Corrections = append(rec.Corrections, model.Correction{
			Field:    "quantity",
			Original: fmt.Sprintf("%d", rec.Quantity.Int64),
			Applied:  i.negativeDefault.String(),
			Rule:     "negative_numeric_default",
		})
		rec.Quantity = model.SomeInt(i.negativeDefault.IntPart())
	}
	if rec.Sales.Valid && rec.Sales.Decimal.Sign() < 0 {
		rec.Corrections = append(rec.Corrections, model.Correction{
			Field:    "sales",
			Original: rec.Sales.Decimal.String(),
			Applied:  i.negativeDefault.String(),
			Rule:     "negative_numeric_default",
		})
		rec.Sales = model.SomeDecimal(i.negativeDefault)
	}
}

// checkAccuracy cross-references the postal code against the geography
// reference. An unknown or missing code falls back to state-level
// resolution; the record is retained unless the policy says reject.
func (i *Inspector) checkAccuracy(rec *model.NormalizedRecord) Verdict {
	if i.ref == nil {
		return Verdict{}
	}
	res := i.ref.Resolve(
		rec.PostalCode.String, rec.City.String, rec.State.String,
		rec.Region.String, rec.Country.String)
	if res.Granularity == geo.GranularityPostal {
		return Verdict{}
	}

	switch i.policies.PostalCode {
	case config.PolicyReject:
		return Verdict{Reject: true, Reason: "postal code not in geography reference"}
	case config.PolicyDefault:
		rec.Corrections = append(rec.Corrections, model.Correction{
			Field:    "postal_code",
			Original: rec.PostalCode.String,
			Applied:  res.Location.State,
			Rule:     "state_fallback",
		})
	default:
		rec.Flags.Add(model.FlagInvalidFormat)
	}
	return Verdict{}
}

// checkConsistency verifies ship date is not before order date. The
// normalizer already invalidated delivery days for such records; this
// rule makes the defect visible in the score.
func (i *Inspector) checkConsistency(rec *model.NormalizedRecord) {
	if rec.OrderDate.Valid && rec.ShipDate.Valid && rec.ShipDate.Time.Before(rec.OrderDate.Time) {
		rec.Flags.Add(model.FlagInvalidFormat)
	}
}

// fieldPresence maps canonical field names to whether the record
// carries a value for them.
func fieldPresence(rec *model.NormalizedRecord) map[string]bool {
	return map[string]bool{
		"order_id":      rec.Key.OrderID != "",
		"product_id":    rec.Key.ProductID != "",
		"customer_id":   rec.CustomerID.Valid,
		"customer_name": rec.CustomerName.Valid,
		"segment":       rec.Segment.Valid,
		"ship_mode":     rec.ShipMode.Valid,
		"order_date":    rec.OrderDate.Valid,
		"ship_date":     rec.ShipDate.Valid,
		"country":       rec.Country.Valid,
		"city":          rec.City.Valid,
		"state":         rec.State.Valid,
		"postal_code":   rec.PostalCode.Valid,
		"region":        rec.Region.Valid,
		"category":      rec.Category.Valid,
		"sub_category":  rec.SubCategory.Valid,
		"product_name":  rec.ProductName.Valid,
		"sales":         rec.Sales.Valid,
		"quantity":      rec.Quantity.Valid,
		"discount":      rec.Discount.Valid,
		"profit":        rec.Profit.Valid,
	}
}

// completeness is the fraction of canonical fields present, used by the
// deduplicator to pick a survivor among colliding records.
func completeness(rec *model.NormalizedRecord) float64 {
	present := fieldPresence(rec)
	count := 0
	for _, ok := range present {
		if ok {
			count++
		}
	}
	return float64(count) / float64(len(present))
}
