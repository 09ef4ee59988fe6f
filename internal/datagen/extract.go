//-------------------------------------------------------------------------
//
// pgEdge Retail Warehouse Pipeline
//
// Copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package datagen generates synthetic monthly extracts for testing the
// pipeline end to end. Generated data deliberately carries the defects
// the real feed has: duplicate order lines, negative quantities, mixed
// date formats, missing identifiers, and unknown postal codes.
package datagen

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/brianvoe/gofakeit/v7"

	"github.com/pgEdge/retail-dwh/internal/geo"
	"github.com/pgEdge/retail-dwh/internal/model"
)

var categories = map[string][]string{
	"Furniture":       {"Bookcases", "Chairs", "Tables", "Furnishings"},
	"Office Supplies": {"Binders", "Paper", "Storage", "Appliances", "Labels"},
	"Technology":      {"Phones", "Accessories", "Machines", "Copiers"},
}

var shipModes = []string{"Standard Class", "Second Class", "First Class", "Same Day"}

var segments = []string{"Consumer", "Corporate", "Home Office"}

// Generator produces synthetic extracts. Seeded generators are fully
// reproducible.
type Generator struct {
	faker    *gofakeit.Faker
	dirtRate float64

	customers []customer
	products  []product
	places    []geo.Entry
}

type customer struct {
	id      string
	name    string
	segment string
}

type product struct {
	id          string
	name        string
	category    string
	subCategory string
}

// NewGenerator creates a generator with a specific seed. A dirtRate of
// 0.1 means roughly one in ten rows carries an injected defect.
func NewGenerator(seed uint64, dirtRate float64) *Generator {
	g := &Generator{
		faker:    gofakeit.New(seed),
		dirtRate: dirtRate,
	}
	g.buildPools()
	return g
}

// buildPools creates the reusable customer, product, and geography
// pools so generated rows share keys the way a real feed does.
func (g *Generator) buildPools() {
	for i := 0; i < 200; i++ {
		g.customers = append(g.customers, customer{
			id:      fmt.Sprintf("%s-%05d", initials(g.faker.FirstName(), g.faker.LastName()), 10000+g.faker.IntRange(0, 89999)),
			name:    g.faker.FirstName() + " " + g.faker.LastName(),
			segment: segments[g.faker.IntRange(0, len(segments)-1)],
		})
	}

	for cat, subs := range categories {
		for _, sub := range subs {
			for i := 0; i < 20; i++ {
				g.products = append(g.products, product{
					id:          fmt.Sprintf("%s-%s-%08d", cat[:3], sub[:2], 10000000+g.faker.IntRange(0, 9999999)),
					name:        g.faker.ProductName(),
					category:    cat,
					subCategory: sub,
				})
			}
		}
	}

	for i := 0; i < 100; i++ {
		addr := g.faker.Address()
		g.places = append(g.places, geo.Entry{
			PostalCode: addr.Zip,
			City:       addr.City,
			State:      addr.State,
			Region:     []string{"East", "West", "Central", "South"}[g.faker.IntRange(0, 3)],
			Country:    "United States",
		})
	}
}

// Reference returns the geography reference matching the generated
// places, so generated postal codes resolve during inspection.
func (g *Generator) Reference() *geo.Reference {
	return geo.NewReference(g.places)
}

// WriteReferenceCSV writes the geography reference in the format the
// pipeline loads.
func (g *Generator) WriteReferenceCSV(dst io.Writer) error {
	w := csv.NewWriter(dst)
	if err := w.Write([]string{"postal_code", "city", "state", "region", "country"}); err != nil {
		return err
	}
	for _, p := range g.places {
		if err := w.Write([]string{p.PostalCode, p.City, p.State, p.Region, p.Country}); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// Records generates raw records for one monthly extract.
func (g *Generator) Records(month time.Time, rows int) []model.RawRecord {
	start := time.Date(month.Year(), month.Month(), 1, 0, 0, 0, 0, time.UTC)
	ingestedAt := time.Now().UTC()
	sourceFile := fmt.Sprintf("orders_%04d_%02d.csv", month.Year(), int(month.Month()))

	var records []model.RawRecord
	for i := 0; i < rows; i++ {
		rec := g.cleanRecord(start)
		g.maybeDirty(&rec, &records)
		rec.RowID = fmt.Sprintf("%d", len(records)+1)
		rec.Provenance = model.Provenance{
			SourceFile: sourceFile,
			IngestedAt: ingestedAt,
			RowNumber:  len(records) + 2,
		}
		records = append(records, rec)
	}
	return records
}

// WriteCSV generates one monthly extract in the source feed format.
func (g *Generator) WriteCSV(dst io.Writer, month time.Time, rows int) error {
	w := csv.NewWriter(dst)
	header := []string{
		"Row ID", "Order ID", "Order Date", "Ship Date", "Ship Mode",
		"Customer ID", "Customer Name", "Segment", "Country", "City",
		"State", "Postal Code", "Region", "Product ID", "Category",
		"Sub-Category", "Product Name", "Sales", "Quantity", "Discount",
		"Profit",
	}
	if err := w.Write(header); err != nil {
		return err
	}
	for _, rec := range g.Records(month, rows) {
		row := []string{
			rec.RowID, rec.OrderID, rec.OrderDate, rec.ShipDate, rec.ShipMode,
			rec.CustomerID, rec.CustomerName, rec.Segment, rec.Country, rec.City,
			rec.State, rec.PostalCode, rec.Region, rec.ProductID, rec.Category,
			rec.SubCategory, rec.ProductName, rec.Sales, rec.Quantity, rec.Discount,
			rec.Profit,
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func (g *Generator) cleanRecord(monthStart time.Time) model.RawRecord {
	cust := g.customers[g.faker.IntRange(0, len(g.customers)-1)]
	prod := g.products[g.faker.IntRange(0, len(g.products)-1)]
	place := g.places[g.faker.IntRange(0, len(g.places)-1)]

	orderDate := monthStart.AddDate(0, 0, g.faker.IntRange(0, 27))
	shipDate := orderDate.AddDate(0, 0, g.faker.IntRange(1, 7))

	sales := float64(g.faker.IntRange(500, 250000)) / 100
	quantity := g.faker.IntRange(1, 14)
	discount := float64(g.faker.IntRange(0, 8)) * 0.05
	profit := sales * (0.4 - discount) * float64(g.faker.IntRange(-2, 10)) / 10

	return model.RawRecord{
		OrderID:      fmt.Sprintf("%s-%d-%06d", []string{"CA", "US"}[g.faker.IntRange(0, 1)], orderDate.Year(), 100000+g.faker.IntRange(0, 99999)),
		OrderDate:    orderDate.Format("1/2/2006"),
		ShipDate:     shipDate.Format("1/2/2006"),
		ShipMode:     shipModes[g.faker.IntRange(0, len(shipModes)-1)],
		CustomerID:   cust.id,
		CustomerName: cust.name,
		Segment:      cust.segment,
		Country:      place.Country,
		City:         place.City,
		State:        place.State,
		PostalCode:   place.PostalCode,
		Region:       place.Region,
		ProductID:    prod.id,
		Category:     prod.category,
		SubCategory:  prod.subCategory,
		ProductName:  prod.name,
		Sales:        fmt.Sprintf("%.2f", sales),
		Quantity:     fmt.Sprintf("%d", quantity),
		Discount:     fmt.Sprintf("%g", discount),
		Profit:       fmt.Sprintf("%.4f", profit),
	}
}

// maybeDirty injects one defect into the record, or duplicates a prior
// record, at the configured rate.
func (g *Generator) maybeDirty(rec *model.RawRecord, prior *[]model.RawRecord) {
	if g.faker.Float64Range(0, 1) >= g.dirtRate {
		return
	}

	switch g.faker.IntRange(0, 7) {
	case 0: // duplicate of an earlier row, sometimes degraded
		if len(*prior) > 0 {
			dup := (*prior)[g.faker.IntRange(0, len(*prior)-1)]
			dup.Profit = ""
			*rec = dup
		}
	case 1:
		rec.Quantity = "-" + rec.Quantity
	case 2:
		rec.CustomerID = ""
	case 3: // day-first rendering of the same dates
		if d, err := time.Parse("1/2/2006", rec.OrderDate); err == nil {
			rec.OrderDate = d.Format("02-01-2006")
		}
		if d, err := time.Parse("1/2/2006", rec.ShipDate); err == nil {
			rec.ShipDate = d.Format("02-01-2006")
		}
	case 4:
		rec.PostalCode = "00000"
	case 5:
		rec.Profit = "null"
	case 6:
		rec.Sales = "$" + rec.Sales
	case 7:
		rec.OrderDate = "not a date"
	}
}

func initials(first, last string) string {
	return first[:1] + last[:1]
}
