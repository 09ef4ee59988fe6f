package quality

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pgEdge/retail-dwh/internal/config"
	"github.com/pgEdge/retail-dwh/internal/geo"
	"github.com/pgEdge/retail-dwh/internal/model"
)

func testRef() *geo.Reference {
	return geo.NewReference([]geo.Entry{
		{PostalCode: "42420", City: "Henderson", State: "Kentucky", Region: "South", Country: "United States"},
	})
}

func cleanRecord() model.NormalizedRecord {
	return model.NormalizedRecord{
		Key:          model.NewBusinessKey("CA-2017-152156", "FUR-BO-10001798"),
		OrderDate:    model.SomeDate(time.Date(2017, 11, 8, 0, 0, 0, 0, time.UTC)),
		ShipDate:     model.SomeDate(time.Date(2017, 11, 11, 0, 0, 0, 0, time.UTC)),
		ShipMode:     model.SomeString("Second Class"),
		CustomerID:   model.SomeString("CG-12520"),
		CustomerName: model.SomeString("Claire Gute"),
		Segment:      model.SomeString("Consumer"),
		Country:      model.SomeString("United States"),
		City:         model.SomeString("Henderson"),
		State:        model.SomeString("Kentucky"),
		PostalCode:   model.SomeString("42420"),
		Region:       model.SomeString("South"),
		Category:     model.SomeString("Furniture"),
		SubCategory:  model.SomeString("Bookcases"),
		ProductName:  model.SomeString("Bush Somerset Collection Bookcase"),
		Sales:        model.SomeDecimal(decimal.RequireFromString("261.96")),
		Quantity:     model.SomeInt(2),
		Discount:     model.SomeDecimal(decimal.Zero),
		Profit:       model.SomeDecimal(decimal.RequireFromString("41.91")),
		DeliveryDays: model.SomeInt(3),
	}
}

func newTestInspector(t *testing.T, mutate func(*config.QualityConfig)) *Inspector {
	t.Helper()
	cfg := config.DefaultConfig().Quality
	if mutate != nil {
		mutate(&cfg)
	}
	insp, err := NewInspector(cfg, testRef())
	if err != nil {
		t.Fatalf("NewInspector failed: %v", err)
	}
	return insp
}

func TestInspectCleanRecord(t *testing.T) {
	insp := newTestInspector(t, nil)
	rec := cleanRecord()

	verdict := insp.InspectRecord(&rec)
	if verdict.Reject {
		t.Fatalf("Clean record rejected: %s", verdict.Reason)
	}
	if rec.Flags.Len() != 0 {
		t.Errorf("Clean record flagged: %v", rec.Flags.List())
	}
	if rec.Completeness != 1 {
		t.Errorf("Expected completeness 1, got %g", rec.Completeness)
	}
}

func TestInspectMissingCriticalField(t *testing.T) {
	insp := newTestInspector(t, nil)
	rec := cleanRecord()
	rec.CustomerID = model.NullString{}

	insp.InspectRecord(&rec)
	if !rec.Flags.Has(model.FlagMissingCriticalField) {
		t.Error("Expected missing_critical_field flag")
	}
	if rec.Completeness >= 1 {
		t.Errorf("Completeness should drop, got %g", rec.Completeness)
	}
}

func TestInspectNegativeQuantityFlagged(t *testing.T) {
	insp := newTestInspector(t, nil)
	rec := cleanRecord()
	rec.Quantity = model.SomeInt(-3)

	verdict := insp.InspectRecord(&rec)
	if verdict.Reject {
		t.Fatal("Flag policy must retain the record")
	}
	if !rec.Flags.Has(model.FlagNegativeNumeric) {
		t.Error("Expected negative_numeric flag")
	}
	// Value is flagged, not clamped
	if rec.Quantity.Int64 != -3 {
		t.Errorf("Quantity must not be clamped, got %d", rec.Quantity.Int64)
	}
}

func TestInspectNegativeNumericRejectPolicy(t *testing.T) {
	insp := newTestInspector(t, func(q *config.QualityConfig) {
		q.Policies.NegativeNumeric = config.PolicyReject
	})
	rec := cleanRecord()
	rec.Quantity = model.SomeInt(-3)

	verdict := insp.InspectRecord(&rec)
	if !verdict.Reject {
		t.Error("Reject policy should reject the record")
	}
}

func TestInspectNegativeNumericDefaultPolicy(t *testing.T) {
	insp := newTestInspector(t, func(q *config.QualityConfig) {
		q.Policies.NegativeNumeric = config.PolicyDefault
		q.Policies.NegativeNumericDefault = "0"
	})
	rec := cleanRecord()
	rec.Quantity = model.SomeInt(-3)

	verdict := insp.InspectRecord(&rec)
	if verdict.Reject {
		t.Fatal("Default policy must retain the record")
	}
	if rec.Quantity.Int64 != 0 {
		t.Errorf("Expected corrected quantity 0, got %d", rec.Quantity.Int64)
	}
	if rec.Flags.Has(model.FlagNegativeNumeric) {
		t.Error("Corrected record should not carry the negative flag")
	}
	if len(rec.Corrections) != 1 || rec.Corrections[0].Rule != "negative_numeric_default" {
		t.Errorf("Expected correction audit entry, got %+v", rec.Corrections)
	}
}

func TestInspectMissingNumeric(t *testing.T) {
	insp := newTestInspector(t, nil)
	rec := cleanRecord()
	rec.Profit = model.NullDecimal{}

	insp.InspectRecord(&rec)
	if !rec.Flags.Has(model.FlagMissingNumeric) {
		t.Error("Expected missing_numeric flag for null profit")
	}
	if rec.Flags.Has(model.FlagNegativeNumeric) {
		t.Error("Null numeric must not be treated as negative")
	}
}

func TestInspectUnknownPostalCodeFlagged(t *testing.T) {
	insp := newTestInspector(t, nil)
	rec := cleanRecord()
	rec.PostalCode = model.SomeString("99999")

	verdict := insp.InspectRecord(&rec)
	if verdict.Reject {
		t.Fatal("Flag policy must retain the record")
	}
	if !rec.Flags.Has(model.FlagInvalidFormat) {
		t.Error("Expected invalid_format flag for unknown postal code")
	}
}

func TestInspectPostalCodeDefaultPolicy(t *testing.T) {
	insp := newTestInspector(t, func(q *config.QualityConfig) {
		q.Policies.PostalCode = config.PolicyDefault
	})
	rec := cleanRecord()
	rec.PostalCode = model.SomeString("99999")

	insp.InspectRecord(&rec)
	if rec.Flags.Has(model.FlagInvalidFormat) {
		t.Error("Default policy should correct instead of flag")
	}
	if len(rec.Corrections) != 1 || rec.Corrections[0].Rule != "state_fallback" {
		t.Errorf("Expected state fallback correction, got %+v", rec.Corrections)
	}
}

func TestInspectShipBeforeOrderConsistency(t *testing.T) {
	insp := newTestInspector(t, nil)
	rec := cleanRecord()
	rec.OrderDate = model.SomeDate(time.Date(2017, 11, 11, 0, 0, 0, 0, time.UTC))
	rec.ShipDate = model.SomeDate(time.Date(2017, 11, 8, 0, 0, 0, 0, time.UTC))
	rec.DeliveryDays = model.NullInt{}

	insp.InspectRecord(&rec)
	if !rec.Flags.Has(model.FlagInvalidFormat) {
		t.Error("Expected consistency flag when ship precedes order")
	}
}

func TestInspectRulesDoNotShortCircuit(t *testing.T) {
	insp := newTestInspector(t, nil)
	rec := cleanRecord()
	rec.CustomerID = model.NullString{}
	rec.Quantity = model.SomeInt(-1)
	rec.Profit = model.NullDecimal{}

	insp.InspectRecord(&rec)
	for _, want := range []model.Flag{
		model.FlagMissingCriticalField,
		model.FlagNegativeNumeric,
		model.FlagMissingNumeric,
	} {
		if !rec.Flags.Has(want) {
			t.Errorf("Expected flag %s to coexist, got %v", want, rec.Flags.List())
		}
	}
}

func TestFlagDuplicates(t *testing.T) {
	insp := newTestInspector(t, nil)

	a := cleanRecord()
	b := cleanRecord() // same business key
	c := cleanRecord()
	c.Key = model.NewBusinessKey("CA-2017-999999", "FUR-BO-10001798")

	records := []model.NormalizedRecord{a, b, c}
	insp.FlagDuplicates(records)

	if !records[0].Flags.Has(model.FlagDuplicateKey) || !records[1].Flags.Has(model.FlagDuplicateKey) {
		t.Error("Colliding records should both be flagged")
	}
	if records[2].Flags.Has(model.FlagDuplicateKey) {
		t.Error("Unique key must not be flagged")
	}
}
