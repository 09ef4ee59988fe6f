//-------------------------------------------------------------------------
//
// pgEdge Retail Warehouse Pipeline
//
// Copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package model defines the data types flowing through the pipeline:
// raw and normalized order records, quality flags, dimension and fact
// rows, and the per-run reports.
package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Provenance identifies where a raw record came from. It is attached at
// ingestion and carried unchanged through every later stage.
type Provenance struct {
	SourceFile string
	IngestedAt time.Time
	RowNumber  int
}

// RawRecord is one source row exactly as extracted, all fields as
// strings. Raw records are immutable once ingested (bronze layer).
type RawRecord struct {
	RowID        string
	OrderID      string
	OrderDate    string
	ShipDate     string
	ShipMode     string
	CustomerID   string
	CustomerName string
	Segment      string
	Country      string
	City         string
	State        string
	PostalCode   string
	Region       string
	ProductID    string
	Category     string
	SubCategory  string
	ProductName  string
	Sales        string
	Quantity     string
	Discount     string
	Profit       string

	Provenance Provenance
}

// NullString is a string that may be absent in the source.
type NullString struct {
	String string
	Valid  bool
}

// NullDate is a calendar date that may be absent or unparseable.
type NullDate struct {
	Time  time.Time
	Valid bool
}

// NullDecimal is a fixed-precision numeric that may be absent.
type NullDecimal struct {
	Decimal decimal.Decimal
	Valid   bool
}

// NullInt is an integer that may be absent or invalid.
type NullInt struct {
	Int64 int64
	Valid bool
}

// SomeString returns a present NullString.
func SomeString(s string) NullString { return NullString{String: s, Valid: true} }

// SomeDate returns a present NullDate.
func SomeDate(t time.Time) NullDate { return NullDate{Time: t, Valid: true} }

// SomeDecimal returns a present NullDecimal.
func SomeDecimal(d decimal.Decimal) NullDecimal { return NullDecimal{Decimal: d, Valid: true} }

// SomeInt returns a present NullInt.
func SomeInt(i int64) NullInt { return NullInt{Int64: i, Valid: true} }

// BusinessKey is the composite natural key of an order line. It is the
// uniqueness key enforced by deduplication: after the silver stage there
// is exactly one surviving record per business key.
type BusinessKey struct {
	OrderID   string
	ProductID string
}

// NewBusinessKey builds a business key from raw identifiers, trimming
// and upper-casing so formatting differences never split a key.
func NewBusinessKey(orderID, productID string) BusinessKey {
	return BusinessKey{
		OrderID:   strings.ToUpper(strings.TrimSpace(orderID)),
		ProductID: strings.ToUpper(strings.TrimSpace(productID)),
	}
}

// String renders the key in "order|product" form.
func (k BusinessKey) String() string {
	return fmt.Sprintf("%s|%s", k.OrderID, k.ProductID)
}

// IsComplete reports whether both key components are present.
func (k BusinessKey) IsComplete() bool {
	return k.OrderID != "" && k.ProductID != ""
}

// Correction records a value substitution applied by a configured
// remediation policy, for the audit trail.
type Correction struct {
	Field    string
	Original string
	Applied  string
	Rule     string
}

// NormalizedRecord is a RawRecord mapped to canonical types, plus the
// derived delivery days and any quality flags attached by inspection.
// A normalized record belongs to the run that produced it; a later run
// over the same bronze snapshot supersedes it rather than mutating it.
type NormalizedRecord struct {
	Key BusinessKey

	OrderDate NullDate
	ShipDate  NullDate
	ShipMode  NullString

	CustomerID   NullString
	CustomerName NullString
	Segment      NullString

	Country    NullString
	City       NullString
	State      NullString
	PostalCode NullString
	Region     NullString

	Category    NullString
	SubCategory NullString
	ProductName NullString

	Sales    NullDecimal
	Quantity NullInt
	Discount NullDecimal
	Profit   NullDecimal

	// DeliveryDays is ship date minus order date. Invalid when either
	// date is missing or the ship date precedes the order date.
	DeliveryDays NullInt

	Flags        FlagSet
	Completeness float64
	Corrections  []Correction

	Provenance Provenance
}

// HasMeasures reports whether the record carries a full, non-negative
// measure set and may contribute measures to the gold layer.
func (r *NormalizedRecord) HasMeasures() bool {
	if !r.Sales.Valid || !r.Quantity.Valid || !r.Discount.Valid || !r.Profit.Valid {
		return false
	}
	return r.Sales.Decimal.Sign() >= 0 && r.Quantity.Int64 >= 0
}
