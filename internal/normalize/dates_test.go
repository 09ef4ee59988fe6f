package normalize

import (
	"testing"
	"time"
)

func TestInferDayOrder(t *testing.T) {
	tests := []struct {
		name   string
		values []string
		want   DayOrder
	}{
		{
			name:   "mostly month first",
			values: []string{"01/25/2017", "03/14/2017", "11/30/2017", "25-01-2017"},
			want:   MonthFirst,
		},
		{
			name:   "mostly day first",
			values: []string{"25-01-2017", "14-03-2017", "30/11/2017", "01/25/2017"},
			want:   DayFirst,
		},
		{
			name:   "ambiguous only defaults to month first",
			values: []string{"01/02/2017", "03/04/2017", "05/06/2017"},
			want:   MonthFirst,
		},
		{
			name:   "empty batch defaults to month first",
			values: nil,
			want:   MonthFirst,
		},
		{
			name:   "iso dates cast no votes",
			values: []string{"2017-01-25", "2017-03-14", "30-11-2017"},
			want:   DayFirst,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := InferDayOrder(tt.values)
			if got != tt.want {
				t.Errorf("InferDayOrder() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		name   string
		value  string
		order  DayOrder
		want   time.Time
		wantOK bool
	}{
		{
			name:   "iso",
			value:  "2017-01-25",
			order:  MonthFirst,
			want:   time.Date(2017, 1, 25, 0, 0, 0, 0, time.UTC),
			wantOK: true,
		},
		{
			name:   "iso ignores day order",
			value:  "2017-01-02",
			order:  DayFirst,
			want:   time.Date(2017, 1, 2, 0, 0, 0, 0, time.UTC),
			wantOK: true,
		},
		{
			name:   "ambiguous month first",
			value:  "03/04/2017",
			order:  MonthFirst,
			want:   time.Date(2017, 3, 4, 0, 0, 0, 0, time.UTC),
			wantOK: true,
		},
		{
			name:   "ambiguous day first",
			value:  "03-04-2017",
			order:  DayFirst,
			want:   time.Date(2017, 4, 3, 0, 0, 0, 0, time.UTC),
			wantOK: true,
		},
		{
			name:   "day above 12 overrides month first order",
			value:  "25/01/2017",
			order:  MonthFirst,
			want:   time.Date(2017, 1, 25, 0, 0, 0, 0, time.UTC),
			wantOK: true,
		},
		{
			name:   "day above 12 overrides day first order",
			value:  "01-25-2017",
			order:  DayFirst,
			want:   time.Date(2017, 1, 25, 0, 0, 0, 0, time.UTC),
			wantOK: true,
		},
		{
			name:   "two digit year",
			value:  "06/15/17",
			order:  MonthFirst,
			want:   time.Date(2017, 6, 15, 0, 0, 0, 0, time.UTC),
			wantOK: true,
		},
		{
			name:   "empty",
			value:  "",
			order:  MonthFirst,
			wantOK: false,
		},
		{
			name:   "irreconcilable",
			value:  "13/32/2017",
			order:  MonthFirst,
			wantOK: false,
		},
		{
			name:   "february overflow",
			value:  "02/30/2017",
			order:  MonthFirst,
			wantOK: false,
		},
		{
			name:   "not a date",
			value:  "soon",
			order:  MonthFirst,
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseDate(tt.value, tt.order)
			if ok != tt.wantOK {
				t.Fatalf("ParseDate(%q) ok = %v, want %v", tt.value, ok, tt.wantOK)
			}
			if ok && !got.Equal(tt.want) {
				t.Errorf("ParseDate(%q) = %s, want %s", tt.value, got, tt.want)
			}
		})
	}
}
