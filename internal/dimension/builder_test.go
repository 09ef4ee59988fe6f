package dimension

import (
	"testing"
	"time"

	"github.com/pgEdge/retail-dwh/internal/geo"
	"github.com/pgEdge/retail-dwh/internal/model"
)

var (
	january  = time.Date(2017, 1, 1, 0, 0, 0, 0, time.UTC)
	february = time.Date(2017, 2, 1, 0, 0, 0, 0, time.UTC)
	march    = time.Date(2017, 3, 1, 0, 0, 0, 0, time.UTC)
)

func corporate() map[string]string {
	return map[string]string{"customer_name": "Claire Gute", "segment": "Corporate"}
}

func consumer() map[string]string {
	return map[string]string{"customer_name": "Claire Gute", "segment": "Consumer"}
}

func TestBuilderNewKeyInsertsCurrentVersion(t *testing.T) {
	b := NewBuilder(NewAllocator(), january, nil)

	key := b.Apply(model.DimCustomer, "CG-12520", consumer())
	if key != 1 {
		t.Errorf("First surrogate key = %d, want 1", key)
	}

	rows := b.Rows(model.DimCustomer)
	if len(rows) != 1 {
		t.Fatalf("Expected 1 row, got %d", len(rows))
	}
	if !rows[0].IsCurrent || !rows[0].ValidFrom.Equal(january) || !rows[0].ValidTo.IsZero() {
		t.Errorf("New version should be open from the run date: %+v", rows[0])
	}
}

func TestBuilderUnchangedAttributesAreNoOp(t *testing.T) {
	b := NewBuilder(NewAllocator(), january, nil)

	first := b.Apply(model.DimCustomer, "CG-12520", consumer())
	second := b.Apply(model.DimCustomer, "CG-12520", consumer())

	if first != second {
		t.Errorf("Unchanged attributes must keep the surrogate key: %d vs %d", first, second)
	}
	if len(b.Rows(model.DimCustomer)) != 1 {
		t.Errorf("Unchanged attributes must not add a version")
	}
}

func TestBuilderVersionsChangedCustomer(t *testing.T) {
	alloc := NewAllocator()

	b := NewBuilder(alloc, january, nil)
	oldKey := b.Apply(model.DimCustomer, "CG-12520", consumer())

	// A later run sees the same customer with a new segment.
	next := NewBuilder(alloc, february, nil)
	next.Load(b.Rows(model.DimCustomer))
	newKey := next.Apply(model.DimCustomer, "CG-12520", corporate())

	if newKey == oldKey {
		t.Fatal("Changed attributes on a versioned dimension must mint a new key")
	}

	rows := next.Rows(model.DimCustomer)
	if len(rows) != 2 {
		t.Fatalf("Expected 2 versions, got %d", len(rows))
	}

	closed, open := rows[0], rows[1]
	if closed.IsCurrent {
		t.Error("Prior version should be closed")
	}
	if !closed.ValidTo.Equal(february) {
		t.Errorf("Prior version ValidTo = %v, want %v", closed.ValidTo, february)
	}
	if !open.IsCurrent || !open.ValidTo.IsZero() {
		t.Error("New version should be the open one")
	}
	if closed.Attributes["segment"] != "Consumer" || open.Attributes["segment"] != "Corporate" {
		t.Error("Version attributes swapped")
	}
}

func TestBuilderExactlyOneCurrentPerKey(t *testing.T) {
	alloc := NewAllocator()
	b := NewBuilder(alloc, january, nil)
	b.Apply(model.DimCustomer, "CG-12520", consumer())

	for run, date := range []time.Time{february, march} {
		next := NewBuilder(alloc, date, nil)
		next.Load(b.Rows(model.DimCustomer))
		attrs := consumer()
		attrs["segment"] = attrs["segment"] + "-" + string(rune('2'+run))
		next.Apply(model.DimCustomer, "CG-12520", attrs)
		b = next
	}

	current := 0
	for _, row := range b.Rows(model.DimCustomer) {
		if row.IsCurrent {
			current++
		}
	}
	if current != 1 {
		t.Errorf("Expected exactly 1 current version, got %d", current)
	}
}

func TestBuilderHistoryDoesNotOverlap(t *testing.T) {
	alloc := NewAllocator()
	b := NewBuilder(alloc, january, nil)
	b.Apply(model.DimProduct, "FUR-BO-10001798", map[string]string{"product_name": "Bookcase"})

	next := NewBuilder(alloc, february, nil)
	next.Load(b.Rows(model.DimProduct))
	next.Apply(model.DimProduct, "FUR-BO-10001798", map[string]string{"product_name": "Somerset Bookcase"})

	rows := next.Rows(model.DimProduct)
	if len(rows) != 2 {
		t.Fatalf("Expected 2 versions, got %d", len(rows))
	}

	// Half-open intervals: the old version's ValidTo equals the new
	// version's ValidFrom, so no date is covered by both.
	boundary := rows[0].ValidTo
	if !boundary.Equal(rows[1].ValidFrom) {
		t.Errorf("Version boundary mismatch: %v vs %v", boundary, rows[1].ValidFrom)
	}
	if rows[0].CoversDate(boundary) {
		t.Error("Closed version must not cover its own ValidTo")
	}
	if !rows[1].CoversDate(boundary) {
		t.Error("Open version must cover its own ValidFrom")
	}
}

func TestBuilderType1OverwritesInPlace(t *testing.T) {
	alloc := NewAllocator()
	b := NewBuilder(alloc, january, nil)
	oldKey := b.Apply(model.DimGeography, "42420", map[string]string{"city": "Henderson"})

	next := NewBuilder(alloc, february, nil)
	next.Load(b.Rows(model.DimGeography))
	newKey := next.Apply(model.DimGeography, "42420", map[string]string{"city": "Henderson City"})

	if newKey != oldKey {
		t.Errorf("Type 1 dimension must keep its surrogate key: %d vs %d", newKey, oldKey)
	}
	rows := next.Rows(model.DimGeography)
	if len(rows) != 1 {
		t.Fatalf("Type 1 dimension must not grow versions, got %d rows", len(rows))
	}
	if rows[0].Attributes["city"] != "Henderson City" {
		t.Errorf("Attributes not overwritten: %v", rows[0].Attributes)
	}
}

func TestBuilderWithinRunRevisionUpdatesInPlace(t *testing.T) {
	b := NewBuilder(NewAllocator(), january, nil)

	first := b.Apply(model.DimCustomer, "CG-12520", consumer())
	second := b.Apply(model.DimCustomer, "CG-12520", corporate())

	if first != second {
		t.Errorf("Same-run revision must not mint a new key: %d vs %d", first, second)
	}
	rows := b.Rows(model.DimCustomer)
	if len(rows) != 1 {
		t.Fatalf("Same-run revision must not add a version, got %d", len(rows))
	}
	if rows[0].Attributes["segment"] != "Corporate" {
		t.Error("Latest attributes within the run should win")
	}
}

func TestBuilderLoadSeedsAllocator(t *testing.T) {
	alloc := NewAllocator()
	b := NewBuilder(alloc, february, nil)
	b.Load([]model.DimensionRow{{
		Dimension:    model.DimCustomer,
		SurrogateKey: 7,
		NaturalKey:   "CG-12520",
		Attributes:   consumer(),
		ValidFrom:    january,
		IsCurrent:    true,
	}})

	key := b.Apply(model.DimCustomer, "DV-13045", map[string]string{"customer_name": "Darrin Van Huff"})
	if key != 8 {
		t.Errorf("New key after loading high-water mark 7 = %d, want 8", key)
	}
}

func TestLookupAsOf(t *testing.T) {
	alloc := NewAllocator()
	b := NewBuilder(alloc, january, nil)
	b.Apply(model.DimCustomer, "CG-12520", consumer())

	next := NewBuilder(alloc, march, nil)
	next.Load(b.Rows(model.DimCustomer))
	next.Apply(model.DimCustomer, "CG-12520", corporate())

	lookup := next.Lookup()

	asOfFebruary, ok := lookup.AsOf(model.DimCustomer, "CG-12520", february)
	if !ok || asOfFebruary != 1 {
		t.Errorf("February should resolve to the first version, got %d ok=%v", asOfFebruary, ok)
	}

	asOfMarch, ok := lookup.AsOf(model.DimCustomer, "CG-12520", march)
	if !ok || asOfMarch != 2 {
		t.Errorf("March should resolve to the new version, got %d ok=%v", asOfMarch, ok)
	}

	// An order dated before the customer was first observed still
	// resolves, to the earliest version.
	early := time.Date(2016, 6, 1, 0, 0, 0, 0, time.UTC)
	asOfEarly, ok := lookup.AsOf(model.DimCustomer, "CG-12520", early)
	if !ok || asOfEarly != 1 {
		t.Errorf("Pre-history date should fall back to the earliest version, got %d ok=%v", asOfEarly, ok)
	}

	if _, ok := lookup.AsOf(model.DimCustomer, "UNKNOWN", march); ok {
		t.Error("Unknown natural key must not resolve")
	}
}

func TestLookupCurrent(t *testing.T) {
	alloc := NewAllocator()
	b := NewBuilder(alloc, january, nil)
	b.Apply(model.DimCustomer, "CG-12520", consumer())

	next := NewBuilder(alloc, february, nil)
	next.Load(b.Rows(model.DimCustomer))
	next.Apply(model.DimCustomer, "CG-12520", corporate())

	key, ok := next.Lookup().Current(model.DimCustomer, "CG-12520")
	if !ok || key != 2 {
		t.Errorf("Current = %d ok=%v, want 2", key, ok)
	}
}

func TestBuildFromRecords(t *testing.T) {
	ref := geo.NewReference([]geo.Entry{
		{PostalCode: "42420", City: "Henderson", State: "Kentucky", Region: "South", Country: "United States"},
	})
	b := NewBuilder(NewAllocator(), january, ref)

	rec := model.NormalizedRecord{
		Key:          model.NewBusinessKey("CA-2016-152156", "FUR-BO-10001798"),
		CustomerID:   model.SomeString("CG-12520"),
		CustomerName: model.SomeString("Claire Gute"),
		Segment:      model.SomeString("Consumer"),
		ShipMode:     model.SomeString("Second Class"),
		PostalCode:   model.SomeString("42420"),
		City:         model.SomeString("Henderson"),
		State:        model.SomeString("Kentucky"),
		Region:       model.SomeString("South"),
		Country:      model.SomeString("United States"),
		ProductName:  model.SomeString("Bush Somerset Collection Bookcase"),
		Category:     model.SomeString("Furniture"),
		SubCategory:  model.SomeString("Bookcases"),
	}
	b.BuildFromRecords([]model.NormalizedRecord{rec})

	for _, dim := range model.Dimensions {
		if len(b.Rows(dim)) != 1 {
			t.Errorf("%s: expected 1 row, got %d", dim, len(b.Rows(dim)))
		}
	}

	geoRows := b.Rows(model.DimGeography)
	if geoRows[0].NaturalKey != "42420" {
		t.Errorf("Geography natural key = %q, want postal code", geoRows[0].NaturalKey)
	}
	if geoRows[0].Attributes["granularity"] != "postal" {
		t.Errorf("Geography granularity = %q, want postal", geoRows[0].Attributes["granularity"])
	}
}

func TestGeographyForStateFallback(t *testing.T) {
	ref := geo.NewReference([]geo.Entry{
		{PostalCode: "42420", City: "Henderson", State: "Kentucky", Region: "South", Country: "United States"},
	})

	rec := model.NormalizedRecord{
		PostalCode: model.SomeString("99999"),
		City:       model.SomeString("Somewhere"),
		State:      model.SomeString("kentucky"),
		Region:     model.SomeString("South"),
		Country:    model.SomeString("United States"),
	}

	key, attrs, ok := GeographyFor(&rec, ref)
	if !ok {
		t.Fatal("State fallback should resolve")
	}
	if key != "STATE:Kentucky" {
		t.Errorf("Natural key = %q, want STATE:Kentucky", key)
	}
	if attrs["granularity"] != "state" {
		t.Errorf("granularity = %q, want state", attrs["granularity"])
	}
	if _, present := attrs["postal_code"]; present {
		t.Error("State-level geography must not carry a postal code")
	}
}

func TestGeographyForUnplaceable(t *testing.T) {
	ref := geo.NewReference(nil)
	rec := model.NormalizedRecord{State: model.SomeString("Atlantis")}

	if _, _, ok := GeographyFor(&rec, ref); ok {
		t.Error("Unplaceable record must not resolve")
	}
}

func TestBuildFromRecordsSkipsMissingNaturalKeys(t *testing.T) {
	b := NewBuilder(NewAllocator(), january, nil)
	b.BuildFromRecords([]model.NormalizedRecord{{
		Key: model.NewBusinessKey("CA-2016-152156", ""),
	}})

	for _, dim := range model.Dimensions {
		if len(b.Rows(dim)) != 0 {
			t.Errorf("%s: record without natural keys contributed %d rows", dim, len(b.Rows(dim)))
		}
	}
}
