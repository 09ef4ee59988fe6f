//-------------------------------------------------------------------------
//
// pgEdge Retail Warehouse Pipeline
//
// Copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package geo provides the read-only geography reference used to
// validate postal codes and resolve records to a geography at the best
// available granularity. The pipeline does not own or refresh this
// data; it is injected by the caller.
package geo

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// Granularity is the precision at which a record's geography resolved.
type Granularity string

const (
	// GranularityPostal means the postal code matched the reference.
	GranularityPostal Granularity = "postal"

	// GranularityState means only the state could be confirmed; the
	// postal code was missing, malformed, or unknown.
	GranularityState Granularity = "state"

	// GranularityNone means the record could not be placed at all.
	GranularityNone Granularity = "none"
)

// Entry is one reference row: a postal code and the place it belongs to.
type Entry struct {
	PostalCode string
	City       string
	State      string
	Region     string
	Country    string
}

// Location is a resolved place.
type Location struct {
	PostalCode string
	City       string
	State      string
	Region     string
	Country    string
}

// Resolution is the outcome of placing one record.
type Resolution struct {
	Granularity Granularity
	Location    Location
}

// Reference is an immutable postal-code/state lookup.
type Reference struct {
	byPostal map[string]Location
	states   map[string]string // upper-cased name -> canonical name
}

// NewReference builds a reference from entries. Postal codes are
// normalized by trimming and upper-casing before indexing.
func NewReference(entries []Entry) *Reference {
	r := &Reference{
		byPostal: make(map[string]Location, len(entries)),
		states:   make(map[string]string),
	}
	for _, e := range entries {
		loc := Location{
			PostalCode: normalizeCode(e.PostalCode),
			City:       strings.TrimSpace(e.City),
			State:      strings.TrimSpace(e.State),
			Region:     strings.TrimSpace(e.Region),
			Country:    strings.TrimSpace(e.Country),
		}
		if loc.PostalCode != "" {
			r.byPostal[loc.PostalCode] = loc
		}
		if loc.State != "" {
			r.states[strings.ToUpper(loc.State)] = loc.State
		}
	}
	return r
}

// FromCSV loads a reference from a CSV stream with the header
// postal_code,city,state,region,country.
func FromCSV(src io.Reader) (*Reference, error) {
	reader := csv.NewReader(src)
	reader.FieldsPerRecord = 5

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read geography reference header: %w", err)
	}
	if len(header) != 5 || strings.TrimSpace(header[0]) != "postal_code" {
		return nil, fmt.Errorf("unexpected geography reference header: %v", header)
	}

	var entries []Entry
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read geography reference row: %w", err)
		}
		entries = append(entries, Entry{
			PostalCode: row[0],
			City:       row[1],
			State:      row[2],
			Region:     row[3],
			Country:    row[4],
		})
	}
	return NewReference(entries), nil
}

// LookupPostal returns the location for a postal code, if known.
func (r *Reference) LookupPostal(code string) (Location, bool) {
	loc, ok := r.byPostal[normalizeCode(code)]
	return loc, ok
}

// KnownState reports whether the state appears in the reference and
// returns its canonical spelling.
func (r *Reference) KnownState(state string) (string, bool) {
	canonical, ok := r.states[strings.ToUpper(strings.TrimSpace(state))]
	return canonical, ok
}

// Resolve places a record at the best available granularity. A known
// postal code wins; otherwise a known state gives a state-level
// fallback; otherwise the record is unplaced.
func (r *Reference) Resolve(postalCode, city, state, region, country string) Resolution {
	if loc, ok := r.LookupPostal(postalCode); ok {
		return Resolution{Granularity: GranularityPostal, Location: loc}
	}
	if canonical, ok := r.KnownState(state); ok {
		return Resolution{
			Granularity: GranularityState,
			Location: Location{
				City:    strings.TrimSpace(city),
				State:   canonical,
				Region:  strings.TrimSpace(region),
				Country: strings.TrimSpace(country),
			},
		}
	}
	return Resolution{Granularity: GranularityNone}
}

// Size returns the number of indexed postal codes.
func (r *Reference) Size() int { return len(r.byPostal) }

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
