//-------------------------------------------------------------------------
//
// pgEdge Retail Warehouse Pipeline
//
// Copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package normalize parses raw extract rows into canonical typed
// records: ISO dates, fixed-precision decimals, trimmed and case-folded
// text. Normalization is pure per record once the batch date format has
// been inferred, so it can fan out across workers.
package normalize

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cast"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/pgEdge/retail-dwh/internal/model"
)

// ErrUnparseableRecord marks a row that cannot be coerced into the
// canonical record shape and is hard-rejected at the bronze boundary.
var ErrUnparseableRecord = errors.New("unparseable record")

// UnparseableError carries enough context to report a hard reject.
type UnparseableError struct {
	Field  string
	Value  string
	Reason string
}

func (e *UnparseableError) Error() string {
	return fmt.Sprintf("unparseable record: field %s value %q: %s", e.Field, e.Value, e.Reason)
}

// Unwrap lets callers match with errors.Is(err, ErrUnparseableRecord).
func (e *UnparseableError) Unwrap() error { return ErrUnparseableRecord }

// Normalizer converts raw records to normalized records.
type Normalizer struct {
	scale int32
	order DayOrder
}

// New creates a Normalizer rounding money fields to the given scale.
func New(currencyScale int32) *Normalizer {
	return &Normalizer{
		scale: currencyScale,
		order: MonthFirst,
	}
}

// InferFormats scans the whole batch and fixes the reading order for
// ambiguous dates. Call once before Normalize; afterwards Normalize is
// pure per record.
func (n *Normalizer) InferFormats(raws []model.RawRecord) {
	values := make([]string, 0, len(raws)*2)
	for i := range raws {
		values = append(values, raws[i].OrderDate, raws[i].ShipDate)
	}
	n.order = InferDayOrder(values)
}

// DateOrder returns the inferred batch date order.
func (n *Normalizer) DateOrder() DayOrder { return n.order }

// Normalize converts one raw record. A non-coercible numeric value
// returns an UnparseableError; an irreconcilable date is flagged
// invalid_format and kept.
func (n *Normalizer) Normalize(raw model.RawRecord) (model.NormalizedRecord, error) {
	rec := model.NormalizedRecord{
		Key:        model.NewBusinessKey(raw.OrderID, raw.ProductID),
		Provenance: raw.Provenance,
	}

	rec.CustomerID = n.keyField(raw.CustomerID)
	rec.CustomerName = n.nameField(raw.CustomerName)
	rec.Segment = n.textField(raw.Segment)
	rec.ShipMode = n.textField(raw.ShipMode)

	rec.Country = n.textField(raw.Country)
	rec.City = n.nameField(raw.City)
	rec.State = n.textField(raw.State)
	rec.PostalCode = n.keyField(raw.PostalCode)
	rec.Region = n.textField(raw.Region)

	rec.Category = n.textField(raw.Category)
	rec.SubCategory = n.textField(raw.SubCategory)
	rec.ProductName = n.textField(raw.ProductName)

	var err error
	if rec.Sales, err = n.money("sales", raw.Sales); err != nil {
		return model.NormalizedRecord{}, err
	}
	if rec.Discount, err = n.money("discount", raw.Discount); err != nil {
		return model.NormalizedRecord{}, err
	}
	if rec.Profit, err = n.money("profit", raw.Profit); err != nil {
		return model.NormalizedRecord{}, err
	}
	if rec.Quantity, err = n.integer("quantity", raw.Quantity); err != nil {
		return model.NormalizedRecord{}, err
	}

	rec.OrderDate = n.date(raw.OrderDate, &rec)
	rec.ShipDate = n.date(raw.ShipDate, &rec)
	rec.DeliveryDays = deliveryDays(rec.OrderDate, rec.ShipDate)

	return rec, nil
}

// deliveryDays derives ship minus order in whole days. A negative span
// is represented as invalid rather than a negative count; the quality
// inspector raises the consistency flag.
func deliveryDays(order, ship model.NullDate) model.NullInt {
	if !order.Valid || !ship.Valid {
		return model.NullInt{}
	}
	days := int64(ship.Time.Sub(order.Time).Hours() / 24)
	if ship.Time.Before(order.Time) {
		return model.NullInt{}
	}
	return model.SomeInt(days)
}

func (n *Normalizer) date(value string, rec *model.NormalizedRecord) model.NullDate {
	trimmed := strings.TrimSpace(value)
	if isNullish(trimmed) {
		return model.NullDate{}
	}
	t, ok := ParseDate(trimmed, n.order)
	if !ok {
		rec.Flags.Add(model.FlagInvalidFormat)
		return model.NullDate{}
	}
	return model.SomeDate(t)
}

func (n *Normalizer) money(field, value string) (model.NullDecimal, error) {
	cleaned := cleanNumeric(value)
	if cleaned == "" {
		return model.NullDecimal{}, nil
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return model.NullDecimal{}, &UnparseableError{Field: field, Value: value, Reason: "not a number"}
	}
	return model.SomeDecimal(d.Round(n.scale)), nil
}

func (n *Normalizer) integer(field, value string) (model.NullInt, error) {
	cleaned := cleanNumeric(value)
	if cleaned == "" {
		return model.NullInt{}, nil
	}
	i, err := cast.ToInt64E(cleaned)
	if err != nil {
		// Tolerate integral values serialized as decimals ("3.0").
		if d, derr := decimal.NewFromString(cleaned); derr == nil && d.IsInteger() {
			return model.SomeInt(d.IntPart()), nil
		}
		return model.NullInt{}, &UnparseableError{Field: field, Value: value, Reason: "not an integer"}
	}
	return model.SomeInt(i), nil
}

// keyField trims and upper-cases identifier-like fields so formatting
// differences never split a key.
func (n *Normalizer) keyField(value string) model.NullString {
	trimmed := strings.TrimSpace(value)
	if isNullish(trimmed) {
		return model.NullString{}
	}
	return model.SomeString(strings.ToUpper(trimmed))
}

// nameField trims, collapses interior whitespace and title-cases
// display names. The caser is built per call: cases.Caser carries
// internal state and must not be shared across workers.
func (n *Normalizer) nameField(value string) model.NullString {
	trimmed := collapseSpaces(value)
	if isNullish(trimmed) {
		return model.NullString{}
	}
	titler := cases.Title(language.AmericanEnglish)
	return model.SomeString(titler.String(strings.ToLower(trimmed)))
}

func (n *Normalizer) textField(value string) model.NullString {
	trimmed := collapseSpaces(value)
	if isNullish(trimmed) {
		return model.NullString{}
	}
	return model.SomeString(trimmed)
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func isNullish(s string) bool {
	switch strings.ToLower(s) {
	case "", "null", "nil", "na", "n/a", "none":
		return true
	}
	return false
}

func cleanNumeric(value string) string {
	trimmed := strings.TrimSpace(value)
	if isNullish(trimmed) {
		return ""
	}
	trimmed = strings.ReplaceAll(trimmed, "$", "")
	trimmed = strings.ReplaceAll(trimmed, ",", "")
	// Accounting-style negatives: (12.50) means -12.50.
	if strings.HasPrefix(trimmed, "(") && strings.HasSuffix(trimmed, ")") {
		trimmed = "-" + trimmed[1:len(trimmed)-1]
	}
	return strings.TrimSpace(trimmed)
}
