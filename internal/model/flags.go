package model

// Flag marks a data quality defect detected on a normalized record.
// Flags are soft: a flagged record stays in the pipeline and the flag
// feeds the run-level quality score.
type Flag string

const (
	// FlagMissingCriticalField marks a record missing one of the
	// configured critical fields (order id, product id, customer id,
	// order date by default).
	FlagMissingCriticalField Flag = "missing_critical_field"

	// FlagInvalidFormat marks a value that could not be standardized,
	// such as an irreconcilable date or an inconsistent date pair.
	FlagInvalidFormat Flag = "invalid_format"

	// FlagDuplicateKey marks a business key shared by more than one
	// record. Resolution is deferred to the deduplicator.
	FlagDuplicateKey Flag = "duplicate_key"

	// FlagNegativeNumeric marks a negative value in a measure that
	// must be non-negative (quantity, sales).
	FlagNegativeNumeric Flag = "negative_numeric"

	// FlagMissingNumeric marks a genuinely absent numeric measure
	// (null, not zero).
	FlagMissingNumeric Flag = "missing_numeric"
)

// AllFlags lists every defined flag, in scoring order.
var AllFlags = []Flag{
	FlagMissingCriticalField,
	FlagInvalidFormat,
	FlagDuplicateKey,
	FlagNegativeNumeric,
	FlagMissingNumeric,
}

// FlagSet is the set of flags attached to one record. Multiple flags
// may coexist; adding a flag twice is a no-op.
type FlagSet map[Flag]struct{}

// Add inserts a flag into the set, allocating on first use.
func (s *FlagSet) Add(f Flag) {
	if *s == nil {
		*s = make(FlagSet)
	}
	(*s)[f] = struct{}{}
}

// Has reports whether the flag is present.
func (s FlagSet) Has(f Flag) bool {
	_, ok := s[f]
	return ok
}

// Len returns the number of distinct flags.
func (s FlagSet) Len() int { return len(s) }

// List returns the flags in scoring order for stable reporting.
func (s FlagSet) List() []Flag {
	out := make([]Flag, 0, len(s))
	for _, f := range AllFlags {
		if s.Has(f) {
			out = append(out, f)
		}
	}
	return out
}
