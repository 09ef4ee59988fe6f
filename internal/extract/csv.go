//-------------------------------------------------------------------------
//
// pgEdge Retail Warehouse Pipeline
//
// Copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package extract ingests monthly order extracts into the bronze layer.
// Raw records keep every field as the source string; nothing is cleaned
// or rejected at this stage.
package extract

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/pgEdge/retail-dwh/internal/logging"
	"github.com/pgEdge/retail-dwh/internal/model"
)

// columns is the expected extract header, in order.
var columns = []string{
	"Row ID", "Order ID", "Order Date", "Ship Date", "Ship Mode",
	"Customer ID", "Customer Name", "Segment", "Country", "City",
	"State", "Postal Code", "Region", "Product ID", "Category",
	"Sub-Category", "Product Name", "Sales", "Quantity", "Discount",
	"Profit",
}

// ReadFile ingests one extract file.
func ReadFile(path string) ([]model.RawRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open extract: %w", err)
	}
	defer f.Close()
	return Read(f, path)
}

// Read ingests an extract from a stream. Every data row becomes a raw
// record with provenance; short rows and quoting problems fail the
// whole ingestion because a torn extract should be re-delivered, not
// half-loaded.
func Read(src io.Reader, sourceName string) ([]model.RawRecord, error) {
	reader := csv.NewReader(src)
	reader.FieldsPerRecord = len(columns)

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read extract header: %w", err)
	}
	if err := checkHeader(header); err != nil {
		return nil, err
	}

	ingestedAt := time.Now().UTC()
	var records []model.RawRecord
	rowNumber := 1
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read extract row %d: %w", rowNumber+1, err)
		}
		rowNumber++
		records = append(records, model.RawRecord{
			RowID:        row[0],
			OrderID:      row[1],
			OrderDate:    row[2],
			ShipDate:     row[3],
			ShipMode:     row[4],
			CustomerID:   row[5],
			CustomerName: row[6],
			Segment:      row[7],
			Country:      row[8],
			City:         row[9],
			State:        row[10],
			PostalCode:   row[11],
			Region:       row[12],
			ProductID:    row[13],
			Category:     row[14],
			SubCategory:  row[15],
			ProductName:  row[16],
			Sales:        row[17],
			Quantity:     row[18],
			Discount:     row[19],
			Profit:       row[20],
			Provenance: model.Provenance{
				SourceFile: sourceName,
				IngestedAt: ingestedAt,
				RowNumber:  rowNumber,
			},
		})
	}

	logging.Info().
		Str("source", sourceName).
		Int("records", len(records)).
		Msg("Ingested extract")
	return records, nil
}

func checkHeader(header []string) error {
	if len(header) != len(columns) {
		return fmt.Errorf("extract has %d columns, expected %d", len(header), len(columns))
	}
	for i, want := range columns {
		if !strings.EqualFold(strings.TrimSpace(header[i]), want) {
			return fmt.Errorf("extract column %d is %q, expected %q", i+1, header[i], want)
		}
	}
	return nil
}
