package normalize

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/pgEdge/retail-dwh/internal/model"
)

func sampleRaw() model.RawRecord {
	return model.RawRecord{
		RowID:        "1",
		OrderID:      " ca-2017-152156 ",
		OrderDate:    "11/08/2017",
		ShipDate:     "11/11/2017",
		ShipMode:     "Second Class",
		CustomerID:   "cg-12520",
		CustomerName: "claire   gute",
		Segment:      "Consumer",
		Country:      "United States",
		City:         "henderson",
		State:        "Kentucky",
		PostalCode:   "42420",
		Region:       "South",
		ProductID:    "fur-bo-10001798",
		Category:     "Furniture",
		SubCategory:  "Bookcases",
		ProductName:  "Bush Somerset Collection Bookcase",
		Sales:        "261.96",
		Quantity:     "2",
		Discount:     "0",
		Profit:       "$41.9136",
		Provenance: model.Provenance{
			SourceFile: "orders_2017_11.csv",
			IngestedAt: time.Date(2017, 12, 1, 0, 0, 0, 0, time.UTC),
			RowNumber:  1,
		},
	}
}

func TestNormalizeCanonicalForms(t *testing.T) {
	n := New(2)
	rec, err := n.Normalize(sampleRaw())
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}

	if rec.Key.OrderID != "CA-2017-152156" || rec.Key.ProductID != "FUR-BO-10001798" {
		t.Errorf("Business key not canonicalized: %+v", rec.Key)
	}
	if rec.CustomerID.String != "CG-12520" {
		t.Errorf("CustomerID not upper-cased: %q", rec.CustomerID.String)
	}
	if rec.CustomerName.String != "Claire Gute" {
		t.Errorf("CustomerName not folded: %q", rec.CustomerName.String)
	}
	if rec.City.String != "Henderson" {
		t.Errorf("City not title-cased: %q", rec.City.String)
	}

	wantOrder := time.Date(2017, 11, 8, 0, 0, 0, 0, time.UTC)
	if !rec.OrderDate.Valid || !rec.OrderDate.Time.Equal(wantOrder) {
		t.Errorf("OrderDate = %+v, want %s", rec.OrderDate, wantOrder)
	}
	if !rec.DeliveryDays.Valid || rec.DeliveryDays.Int64 != 3 {
		t.Errorf("DeliveryDays = %+v, want 3", rec.DeliveryDays)
	}

	if !rec.Sales.Valid || rec.Sales.Decimal.String() != "261.96" {
		t.Errorf("Sales = %+v, want 261.96", rec.Sales)
	}
	// Profit rounds to the configured currency scale
	if !rec.Profit.Valid || rec.Profit.Decimal.String() != "41.91" {
		t.Errorf("Profit = %+v, want 41.91", rec.Profit)
	}
	if !rec.Quantity.Valid || rec.Quantity.Int64 != 2 {
		t.Errorf("Quantity = %+v, want 2", rec.Quantity)
	}
	if rec.Flags.Len() != 0 {
		t.Errorf("Unexpected flags: %v", rec.Flags.List())
	}
}

// One Normalizer is shared across pipeline workers, so Normalize must
// be safe and deterministic under concurrent use.
func TestNormalizeSharedAcrossGoroutines(t *testing.T) {
	n := New(2)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				rec, err := n.Normalize(sampleRaw())
				if err != nil {
					t.Errorf("Normalize failed: %v", err)
					return
				}
				if rec.CustomerName.String != "Claire Gute" {
					t.Errorf("CustomerName = %q, want Claire Gute", rec.CustomerName.String)
					return
				}
				if rec.City.String != "Henderson" {
					t.Errorf("City = %q, want Henderson", rec.City.String)
					return
				}
			}
		}()
	}
	wg.Wait()
}

func TestNormalizeMissingNumericIsNullNotZero(t *testing.T) {
	n := New(2)
	raw := sampleRaw()
	raw.Profit = ""
	raw.Quantity = "N/A"

	rec, err := n.Normalize(raw)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if rec.Profit.Valid {
		t.Error("Empty profit should be null, not zero")
	}
	if rec.Quantity.Valid {
		t.Error("N/A quantity should be null, not zero")
	}
}

func TestNormalizeHardReject(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*model.RawRecord)
	}{
		{name: "non-numeric sales", mutate: func(r *model.RawRecord) { r.Sales = "lots" }},
		{name: "non-numeric quantity", mutate: func(r *model.RawRecord) { r.Quantity = "two" }},
		{name: "non-numeric discount", mutate: func(r *model.RawRecord) { r.Discount = "10%off" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := New(2)
			raw := sampleRaw()
			tt.mutate(&raw)

			_, err := n.Normalize(raw)
			if err == nil {
				t.Fatal("Expected hard reject, got nil error")
			}
			if !errors.Is(err, ErrUnparseableRecord) {
				t.Errorf("Expected ErrUnparseableRecord, got: %v", err)
			}
			var ue *UnparseableError
			if !errors.As(err, &ue) {
				t.Errorf("Expected UnparseableError, got %T", err)
			}
		})
	}
}

func TestNormalizeIrreconcilableDateIsFlaggedNotRejected(t *testing.T) {
	n := New(2)
	raw := sampleRaw()
	raw.OrderDate = "13/32/2017"

	rec, err := n.Normalize(raw)
	if err != nil {
		t.Fatalf("Irreconcilable date must not hard-reject: %v", err)
	}
	if rec.OrderDate.Valid {
		t.Error("Irreconcilable date should be null")
	}
	if !rec.Flags.Has(model.FlagInvalidFormat) {
		t.Error("Expected invalid_format flag")
	}
	if rec.DeliveryDays.Valid {
		t.Error("DeliveryDays should be invalid without an order date")
	}
}

func TestNormalizeShipBeforeOrder(t *testing.T) {
	n := New(2)
	raw := sampleRaw()
	raw.OrderDate = "11/11/2017"
	raw.ShipDate = "11/08/2017"

	rec, err := n.Normalize(raw)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if rec.DeliveryDays.Valid {
		t.Error("DeliveryDays must be invalid, not negative, when ship precedes order")
	}
	if rec.DeliveryDays.Int64 < 0 {
		t.Errorf("DeliveryDays must never be negative, got %d", rec.DeliveryDays.Int64)
	}
}

func TestNormalizeAccountingNegative(t *testing.T) {
	n := New(2)
	raw := sampleRaw()
	raw.Profit = "(12.50)"

	rec, err := n.Normalize(raw)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if !rec.Profit.Valid || rec.Profit.Decimal.String() != "-12.5" {
		t.Errorf("Profit = %+v, want -12.5", rec.Profit)
	}
}

func TestNormalizeDecimalQuantity(t *testing.T) {
	n := New(2)
	raw := sampleRaw()
	raw.Quantity = "3.0"

	rec, err := n.Normalize(raw)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if !rec.Quantity.Valid || rec.Quantity.Int64 != 3 {
		t.Errorf("Quantity = %+v, want 3", rec.Quantity)
	}
}

func TestInferFormatsAppliesToBatch(t *testing.T) {
	n := New(2)

	mk := func(order, ship string) model.RawRecord {
		raw := sampleRaw()
		raw.OrderDate = order
		raw.ShipDate = ship
		return raw
	}
	batch := []model.RawRecord{
		mk("25-01-2017", "28-01-2017"),
		mk("14-03-2017", "17-03-2017"),
		mk("03-04-2017", "06-04-2017"), // ambiguous, resolved by batch order
	}

	n.InferFormats(batch)
	if n.DateOrder() != DayFirst {
		t.Fatalf("Expected day-first inference, got %s", n.DateOrder())
	}

	rec, err := n.Normalize(batch[2])
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	want := time.Date(2017, 4, 3, 0, 0, 0, 0, time.UTC)
	if !rec.OrderDate.Valid || !rec.OrderDate.Time.Equal(want) {
		t.Errorf("OrderDate = %+v, want %s", rec.OrderDate, want)
	}
}
