package core

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ----------------------------------------------------------------------------
// ParseDecimal Tests
// ----------------------------------------------------------------------------

func TestParseDecimal(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantValid bool
		wantValue string
	}{
		// Valid: Basic numbers
		{name: "positive integer", input: "123", wantValid: true, wantValue: "123"},
		{name: "zero", input: "0", wantValid: true, wantValue: "0"},
		{name: "negative integer", input: "-456", wantValid: true, wantValue: "-456"},
		{name: "decimal number", input: "123.45", wantValid: true, wantValue: "123.45"},
		{name: "leading decimal point", input: ".99", wantValid: true, wantValue: "0.99"},
		{name: "explicit positive sign", input: "+123", wantValid: true, wantValue: "123"},
		{name: "scientific notation", input: "1.5e3", wantValid: true, wantValue: "1500"},

		// Valid: Currency symbols and separators
		{name: "dollar sign", input: "$1,234.56", wantValid: true, wantValue: "1234.56"},
		{name: "euro sign", input: "€1234.56", wantValid: true, wantValue: "1234.56"},
		{name: "pound sign", input: "£1234.56", wantValid: true, wantValue: "1234.56"},
		{name: "thousands separator", input: "1,234,567.89", wantValid: true, wantValue: "1234567.89"},

		// Valid: Accounting format
		{name: "accounting negative", input: "(123.45)", wantValid: true, wantValue: "-123.45"},
		{name: "accounting negative with currency", input: "($1,234.56)", wantValid: true, wantValue: "-1234.56"},
		{name: "accounting negative with spaces", input: "( 999.99 )", wantValid: true, wantValue: "-999.99"},

		// Valid: Whitespace
		{name: "surrounded by whitespace", input: "  123.45  ", wantValid: true, wantValue: "123.45"},

		// Invalid
		{name: "empty string", input: "", wantValid: false},
		{name: "only whitespace", input: "   ", wantValid: false},
		{name: "alphabetic string", input: "abc", wantValid: false},
		{name: "mixed alphanumeric", input: "12abc34", wantValid: false},
		{name: "only currency symbol", input: "$", wantValid: false},
		{name: "multiple decimal points", input: "12.34.56", wantValid: false},
		{name: "double negative", input: "--123", wantValid: false},
		{name: "negative after number", input: "123-", wantValid: false},
		{name: "NaN", input: "NaN", wantValid: false},
		{name: "decimal comma", input: "12,34", wantValid: false},
		{name: "short comma group", input: "1,5", wantValid: false},
		{name: "single digit groups", input: "1,2,3", wantValid: false},
		{name: "group too long", input: "1,2345.00", wantValid: false},
		{name: "leading comma", input: ",123", wantValid: false},
		{name: "comma after point", input: "1.234,56", wantValid: false},
		{name: "Infinity", input: "Infinity", wantValid: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseDecimal(tt.input)
			if ok != tt.wantValid {
				t.Fatalf("ParseDecimal(%q) ok = %v, want %v", tt.input, ok, tt.wantValid)
			}
			if !tt.wantValid {
				return
			}
			want := decimal.RequireFromString(tt.wantValue)
			if !got.Equal(want) {
				t.Errorf("ParseDecimal(%q) = %s, want %s", tt.input, got, want)
			}
		})
	}
}

func TestNullDecimal(t *testing.T) {
	if d := NullDecimal("abc"); d.Valid {
		t.Errorf("NullDecimal(abc) should be null, got %s", d.Decimal)
	}
	if d := NullDecimal(""); d.Valid {
		t.Error("NullDecimal(\"\") should be null")
	}
	d := NullDecimal("100.00")
	if !d.Valid || !d.Decimal.Equal(decimal.NewFromInt(100)) {
		t.Errorf("NullDecimal(100.00) = %+v", d)
	}
}

// ----------------------------------------------------------------------------
// ParseDate Tests
// ----------------------------------------------------------------------------

func TestParseDate(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantValid bool
		wantYear  int
		wantMonth time.Month
		wantDay   int
	}{
		{name: "ISO format", input: "2024-01-15", wantValid: true, wantYear: 2024, wantMonth: time.January, wantDay: 15},
		{name: "ISO leap day", input: "2024-02-29", wantValid: true, wantYear: 2024, wantMonth: time.February, wantDay: 29},
		{name: "ISO slashes", input: "2024/03/31", wantValid: true, wantYear: 2024, wantMonth: time.March, wantDay: 31},
		{name: "ISO no padding", input: "2024-3-1", wantValid: true, wantYear: 2024, wantMonth: time.March, wantDay: 1},
		{name: "day first", input: "01/02/2024", wantValid: true, wantYear: 2024, wantMonth: time.February, wantDay: 1},
		{name: "day first over 12", input: "13/02/2024", wantValid: true, wantYear: 2024, wantMonth: time.February, wantDay: 13},
		{name: "day first year end", input: "31/12/2024", wantValid: true, wantYear: 2024, wantMonth: time.December, wantDay: 31},
		{name: "day first no padding", input: "1/5/2024", wantValid: true, wantYear: 2024, wantMonth: time.May, wantDay: 1},
		{name: "day first dots", input: "15.01.2024", wantValid: true, wantYear: 2024, wantMonth: time.January, wantDay: 15},
		{name: "day first dashes", input: "15-01-2024", wantValid: true, wantYear: 2024, wantMonth: time.January, wantDay: 15},
		{name: "month first fallback", input: "01/15/2024", wantValid: true, wantYear: 2024, wantMonth: time.January, wantDay: 15},
		{name: "month name", input: "Jan 15, 2024", wantValid: true, wantYear: 2024, wantMonth: time.January, wantDay: 15},
		{name: "day month name", input: "15 Jan 2024", wantValid: true, wantYear: 2024, wantMonth: time.January, wantDay: 15},
		{name: "compact", input: "20240115", wantValid: true, wantYear: 2024, wantMonth: time.January, wantDay: 15},
		{name: "RFC3339 truncated to date", input: "2024-06-30T23:10:00Z", wantValid: true, wantYear: 2024, wantMonth: time.June, wantDay: 30},
		{name: "whitespace", input: "  2024-01-15  ", wantValid: true, wantYear: 2024, wantMonth: time.January, wantDay: 15},

		{name: "empty", input: "", wantValid: false},
		{name: "garbage", input: "not a date", wantValid: false},
		{name: "invalid month", input: "2024-13-01", wantValid: false},
		{name: "invalid leap day", input: "2023-02-29", wantValid: false},
		{name: "day zero", input: "2024-01-00", wantValid: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseDate(tt.input)
			if ok != tt.wantValid {
				t.Fatalf("ParseDate(%q) ok = %v, want %v", tt.input, ok, tt.wantValid)
			}
			if !tt.wantValid {
				return
			}
			if got.Year() != tt.wantYear || got.Month() != tt.wantMonth || got.Day() != tt.wantDay {
				t.Errorf("ParseDate(%q) = %s, want %04d-%02d-%02d",
					tt.input, got.Format("2006-01-02"), tt.wantYear, tt.wantMonth, tt.wantDay)
			}
		})
	}
}

func TestParseDate_TwoDigitYear(t *testing.T) {
	originalPivot := TwoDigitYearPivot
	defer func() { TwoDigitYearPivot = originalPivot }()
	TwoDigitYearPivot = 20

	tests := []struct {
		input    string
		wantYear int
	}{
		{"01/15/25", 2025},
		{"01/15/99", 1999},
		{"1-15-99", 1999},
		{"01.15.85", 1985},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := ParseDate(tt.input)
			if !ok {
				t.Fatalf("ParseDate(%q) returned invalid", tt.input)
			}
			if got.Year() != tt.wantYear {
				t.Errorf("ParseDate(%q).Year = %d, want %d", tt.input, got.Year(), tt.wantYear)
			}
		})
	}
}

func TestNullDate(t *testing.T) {
	if NullDate("2024-99-99") != nil {
		t.Error("NullDate should map unparseable input to nil")
	}
	if d := NullDate("2024-01-15"); d == nil || d.Format("2006-01-02") != "2024-01-15" {
		t.Errorf("NullDate(2024-01-15) = %v", d)
	}
}

// ----------------------------------------------------------------------------
// pgtype round trips
// ----------------------------------------------------------------------------

func TestPgNumericRoundTrip(t *testing.T) {
	for _, in := range []string{"0", "100.00", "-123.4567", "0.8", "60"} {
		t.Run(in, func(t *testing.T) {
			want := decimal.RequireFromString(in)
			n := ToPgNumeric(decimal.NullDecimal{Decimal: want, Valid: true})
			if !n.Valid {
				t.Fatalf("ToPgNumeric(%s) invalid", in)
			}
			got := FromPgNumeric(n)
			if !got.Valid || !got.Decimal.Equal(want) {
				t.Errorf("round trip %s = %+v", in, got)
			}
		})
	}

	if ToPgNumeric(decimal.NullDecimal{}).Valid {
		t.Error("null decimal should map to invalid numeric")
	}
}

func TestPgDateAndUUID(t *testing.T) {
	if ToPgDate(nil).Valid {
		t.Error("nil date should be invalid")
	}
	d := time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)
	if got := FromPgDate(ToPgDate(&d)); got == nil || !got.Equal(d) {
		t.Errorf("date round trip = %v", got)
	}

	id := uuid.New()
	if got := FromPgUUID(ToPgUUID(id)); got == nil || *got != id {
		t.Errorf("uuid round trip = %v", got)
	}

	var one int64 = 1
	if !ToPgInt8(&one).Valid || ToPgInt8(nil).Valid {
		t.Error("ToPgInt8 validity mismatch")
	}
}

// ----------------------------------------------------------------------------
// ToPgText / CleanCell Tests
// ----------------------------------------------------------------------------

func TestToPgText(t *testing.T) {
	tests := []struct {
		input     string
		wantValid bool
		want      string
	}{
		{"hello", true, "hello"},
		{"  padded  ", true, "padded"},
		{"", false, ""},
		{"   ", false, ""},
	}

	for _, tt := range tests {
		got := ToPgText(tt.input)
		if got.Valid != tt.wantValid || got.String != tt.want {
			t.Errorf("ToPgText(%q) = %+v, want valid=%v %q", tt.input, got, tt.wantValid, tt.want)
		}
		if FromPgText(got) != tt.want {
			t.Errorf("FromPgText(ToPgText(%q)) = %q", tt.input, FromPgText(got))
		}
	}
}

func TestCleanCell(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "simple string unchanged", input: "hello", want: "hello"},
		{name: "empty string", input: "", want: ""},
		{name: "surrounded by whitespace", input: "  hello  ", want: "hello"},
		{name: "Excel formula with quotes", input: `="12345"`, want: "12345"},
		{name: "bare equals sign", input: "=SUM(A1)", want: "SUM(A1)"},
		{name: "double quotes", input: `"hello"`, want: "hello"},
		{name: "whitespace and quotes", input: `  "hello"  `, want: "hello"},
		{name: "writer descriptor untouched", input: "Smith, John [IP001]", want: "Smith, John [IP001]"},
		{name: "only quotes", input: `""`, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CleanCell(tt.input); got != tt.want {
				t.Errorf("CleanCell(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
