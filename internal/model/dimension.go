package model

import "time"

// Dimension identifies one of the warehouse dimension tables.
type Dimension string

const (
	DimCustomer  Dimension = "dim_customer"
	DimProduct   Dimension = "dim_product"
	DimGeography Dimension = "dim_geography"
	DimShipMode  Dimension = "dim_ship_mode"

	// DimDate is built from the calendar, not from records, so it is
	// not part of Dimensions. It appears in exception reports when a
	// fact cannot resolve a date key.
	DimDate Dimension = "dim_date"
)

// Dimensions lists the record-driven dimensions in build order.
var Dimensions = []Dimension{DimCustomer, DimProduct, DimGeography, DimShipMode}

// TracksHistory reports whether the dimension keeps SCD type 2 history.
// Customer and product are versioned; geography and ship mode are
// type 1 overwrites.
func (d Dimension) TracksHistory() bool {
	return d == DimCustomer || d == DimProduct
}

// DimensionRow is one row of a dimension table. Surrogate keys are
// assigned once and never reused; for versioned dimensions only
// ValidTo and IsCurrent change after insertion.
type DimensionRow struct {
	Dimension    Dimension
	SurrogateKey int64
	NaturalKey   string
	Attributes   map[string]string

	// ValidFrom/ValidTo bound the version as a half-open interval
	// [ValidFrom, ValidTo). A zero ValidTo means the version is open.
	ValidFrom time.Time
	ValidTo   time.Time
	IsCurrent bool
}

// AttributesEqual compares the attribute sets of two rows.
func (r DimensionRow) AttributesEqual(other DimensionRow) bool {
	if len(r.Attributes) != len(other.Attributes) {
		return false
	}
	for k, v := range r.Attributes {
		if other.Attributes[k] != v {
			return false
		}
	}
	return true
}

// CoversDate reports whether the version was current on the given date.
func (r DimensionRow) CoversDate(d time.Time) bool {
	if d.Before(r.ValidFrom) {
		return false
	}
	return r.ValidTo.IsZero() || d.Before(r.ValidTo)
}

// DateDimensionRow is one calendar date in the role-neutral date
// dimension. The surrogate key is the YYYYMMDD encoding of the date,
// which makes regeneration over an overlapping range idempotent.
type DateDimensionRow struct {
	DateKey   int64
	Date      time.Time
	Year      int
	Quarter   int
	Month     int
	Day       int
	DayOfWeek int
	MonthName string
	DayName   string
	IsWeekend bool
}

// DateKeyFor encodes a date as its YYYYMMDD surrogate key.
func DateKeyFor(t time.Time) int64 {
	return int64(t.Year())*10000 + int64(t.Month())*100 + int64(t.Day())
}

// FactRow is one order line in the gold layer. Every foreign key
// resolves to an existing dimension row; the assembler never emits a
// fact otherwise.
type FactRow struct {
	Key BusinessKey

	CustomerKey  int64
	ProductKey   int64
	GeographyKey int64
	ShipModeKey  int64
	OrderDateKey int64
	ShipDateKey  int64

	Sales        NullDecimal
	Quantity     NullInt
	Discount     NullDecimal
	Profit       NullDecimal
	DeliveryDays NullInt
}
