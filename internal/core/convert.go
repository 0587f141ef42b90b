package core

// convert.go turns raw CSV text into typed values and moves those values in
// and out of pgtype.
//
// CSV input is messy:
//   - Multiple date formats (US, EU, ISO, etc.)
//   - Currency symbols and thousand separators in numbers
//   - Excel formula prefixes (="value")
//   - BOMs and stray quotes
//
// Parse* functions report ok=false for empty or unparseable input. Null*
// functions implement the importer's "parse or null" rule on top of them.

import (
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// numericRegex validates that a string is a valid numeric format after cleanup.
// Matches integers, decimals, and scientific notation.
var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// groupedRegex is the only shape a comma may appear in: thousands grouping.
// A decimal comma ("12,34") is rejected rather than read as 1234.
var groupedRegex = regexp.MustCompile(`^[+-]?\d{1,3}(,\d{3})+(\.\d+)?$`)

// TwoDigitYearPivot defines how 2-digit years are interpreted.
// Years that would result in dates more than this many years in the future
// are assumed to be in the previous century.
var TwoDigitYearPivot = 20

// Date layouts split by year format for proper 2-digit year handling.
// Numeric dates are read day first; month-first layouts only catch what
// cannot be a day-first date ("12/31/2024").
var (
	twoDigitYearLayouts = []string{
		"2/1/06", "02/01/06", "2-1-06", "2.1.06", "02.01.06",
		"1/2/06", "01/02/06", "1-2-06", "1.2.06", "01.02.06",
	}
	fourDigitYearLayouts = []string{
		"2006-01-02", "2006/01/02", "2006.01.02", "2006-1-2",
		"2/1/2006", "02/01/2006", "2-1-2006", "02-01-2006", "2.1.2006", "02.01.2006",
		"1/2/2006", "01/02/2006", "1-2-2006", "01-02-2006", "1.2.2006", "01.02.2006",
		"Jan 2, 2006", "2 Jan 2006", "January 2, 2006", "2 January 2006",
		"20060102",
		time.RFC3339,
	}
)

// ParseDecimal parses an amount. Accounting negatives "(12.50)", currency
// symbols and well-formed thousands separators are accepted.
func ParseDecimal(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, false
	}

	// Detect negative accounting format "(123.45)"
	isNegative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		isNegative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}

	s = strings.ReplaceAll(s, "$", "")
	s = strings.ReplaceAll(s, "€", "") // Euro
	s = strings.ReplaceAll(s, "£", "") // Pound
	s = strings.TrimSpace(s)
	if strings.Contains(s, ",") {
		if !groupedRegex.MatchString(s) {
			return decimal.Zero, false
		}
		s = strings.ReplaceAll(s, ",", "")
	}

	if isNegative {
		s = "-" + s
	}

	if !numericRegex.MatchString(s) {
		return decimal.Zero, false
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// NullDecimal is ParseDecimal with failures mapped to null.
func NullDecimal(s string) decimal.NullDecimal {
	d, ok := ParseDecimal(s)
	return decimal.NullDecimal{Decimal: d, Valid: ok}
}

// ParseDate parses a calendar date in any of the supported layouts.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	// Try 4-digit year layouts first (unambiguous)
	for _, layout := range fourDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return truncateDate(t), true
		}
	}

	// Try 2-digit year layouts with pivot year adjustment
	pivotYear := time.Now().Year() + TwoDigitYearPivot
	for _, layout := range twoDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			if t.Year() > pivotYear {
				t = t.AddDate(-100, 0, 0)
			}
			return t, true
		}
	}

	return time.Time{}, false
}

// NullDate is ParseDate with failures mapped to nil.
func NullDate(s string) *time.Time {
	t, ok := ParseDate(s)
	if !ok {
		return nil
	}
	return &t
}

func truncateDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// CleanCell trims whitespace, an Excel formula wrapper (="...") and
// surrounding double quotes. Apostrophes are kept ('Til Tuesday).
func CleanCell(s string) string {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "=\"") && strings.HasSuffix(s, "\"") {
		s = s[2 : len(s)-1]
	} else if strings.HasPrefix(s, "=") {
		s = s[1:]
	}

	return strings.TrimSpace(strings.Trim(s, `"`))
}

// ToPgText converts a string to pgtype.Text. Blank strings become NULL.
func ToPgText(s string) pgtype.Text {
	s = strings.TrimSpace(s)
	if s == "" {
		return pgtype.Text{Valid: false}
	}
	return pgtype.Text{String: s, Valid: true}
}

// FromPgText returns "" for NULL.
func FromPgText(t pgtype.Text) string {
	if !t.Valid {
		return ""
	}
	return t.String
}

// ToPgNumeric converts a nullable decimal to pgtype.Numeric.
func ToPgNumeric(d decimal.NullDecimal) pgtype.Numeric {
	if !d.Valid {
		return pgtype.Numeric{Valid: false}
	}
	var n pgtype.Numeric
	if err := n.Scan(d.Decimal.String()); err != nil {
		return pgtype.Numeric{Valid: false}
	}
	return n
}

// FromPgNumeric converts pgtype.Numeric to a nullable decimal. NaN and
// infinities map to null.
func FromPgNumeric(n pgtype.Numeric) decimal.NullDecimal {
	if !n.Valid || n.NaN || n.InfinityModifier != pgtype.Finite || n.Int == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: decimal.NewFromBigInt(n.Int, n.Exp), Valid: true}
}

// ToPgDate converts an optional date to pgtype.Date.
func ToPgDate(t *time.Time) pgtype.Date {
	if t == nil {
		return pgtype.Date{Valid: false}
	}
	return pgtype.Date{Time: *t, Valid: true}
}

// FromPgDate returns nil for NULL.
func FromPgDate(d pgtype.Date) *time.Time {
	if !d.Valid || d.InfinityModifier != pgtype.Finite {
		return nil
	}
	t := d.Time
	return &t
}

// FromPgTimestamptz returns nil for NULL.
func FromPgTimestamptz(ts pgtype.Timestamptz) *time.Time {
	if !ts.Valid {
		return nil
	}
	t := ts.Time
	return &t
}

// ToPgTimestamptz wraps a time as a non-null pgtype.Timestamptz.
func ToPgTimestamptz(t time.Time) pgtype.Timestamptz {
	return pgtype.Timestamptz{Time: t, Valid: true}
}

// ToPgUUID converts a uuid.UUID to pgtype.UUID.
func ToPgUUID(id uuid.UUID) pgtype.UUID {
	return pgtype.UUID{Bytes: id, Valid: true}
}

// FromPgUUID returns nil for NULL.
func FromPgUUID(u pgtype.UUID) *uuid.UUID {
	if !u.Valid {
		return nil
	}
	id := uuid.UUID(u.Bytes)
	return &id
}

// ToPgInt8 converts an optional id to pgtype.Int8.
func ToPgInt8(id *int64) pgtype.Int8 {
	if id == nil {
		return pgtype.Int8{Valid: false}
	}
	return pgtype.Int8{Int64: *id, Valid: true}
}
