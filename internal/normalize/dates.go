package normalize

import (
	"strconv"
	"strings"
	"time"
)

// DayOrder is the inferred component order of ambiguous slash- or
// dash-separated dates in a batch.
type DayOrder int

const (
	// MonthFirst reads ambiguous dates as MM/DD/YYYY.
	MonthFirst DayOrder = iota

	// DayFirst reads ambiguous dates as DD-MM-YYYY.
	DayFirst
)

func (o DayOrder) String() string {
	if o == DayFirst {
		return "day-first"
	}
	return "month-first"
}

// dateParts splits a date string into three numeric components.
// yearLeading marks ISO-like values (YYYY first), whose component order
// is never ambiguous.
func dateParts(s string) (a, b, y int, yearLeading, ok bool) {
	s = strings.TrimSpace(s)
	var sep string
	switch {
	case strings.Contains(s, "/"):
		sep = "/"
	case strings.Contains(s, "-"):
		sep = "-"
	default:
		return 0, 0, 0, false, false
	}
	parts := strings.Split(s, sep)
	if len(parts) != 3 {
		return 0, 0, 0, false, false
	}
	nums := make([]int, 3)
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return 0, 0, 0, false, false
		}
		nums[i] = n
	}
	if nums[0] > 31 {
		return nums[1], nums[2], nums[0], true, true
	}
	return nums[0], nums[1], nums[2], false, true
}

// InferDayOrder scans a batch of date strings and votes on the order of
// ambiguous dates. A value votes only when exactly one reading is
// possible (one component exceeds 12). Ties resolve to month-first,
// the format of the source extracts.
func InferDayOrder(values []string) DayOrder {
	monthFirstVotes := 0
	dayFirstVotes := 0
	for _, v := range values {
		a, b, _, yearLeading, ok := dateParts(v)
		if !ok || yearLeading {
			continue
		}
		aIsMonth := a >= 1 && a <= 12
		bIsMonth := b >= 1 && b <= 12
		switch {
		case aIsMonth && !bIsMonth:
			monthFirstVotes++
		case bIsMonth && !aIsMonth:
			dayFirstVotes++
		}
	}
	if dayFirstVotes > monthFirstVotes {
		return DayFirst
	}
	return MonthFirst
}

// ParseDate standardizes one date string using the inferred batch
// order. ISO dates parse regardless of order; for separated dates the
// per-value heuristic (a component above 12 must be the day) overrides
// the batch inference. Returns false for empty or irreconcilable
// values.
func ParseDate(s string, order DayOrder) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	for _, layout := range []string{"2006-01-02", "2006/01/02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}

	a, b, y, yearLeading, ok := dateParts(s)
	if !ok {
		return time.Time{}, false
	}

	month, day := a, b
	if order == DayFirst && !yearLeading {
		month, day = b, a
	}
	// A component above 12 can only be the day.
	if a > 12 && a <= 31 {
		month, day = b, a
	} else if b > 12 && b <= 31 {
		month, day = a, b
	}

	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, false
	}
	if y < 100 {
		y += 2000
	}

	t := time.Date(y, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	// Reject normalized overflow such as February 30th.
	if t.Day() != day || t.Month() != time.Month(month) {
		return time.Time{}, false
	}
	return t, true
}
