package core

// validation.go is the import's pre-flight check.
//
// ValidateRows makes one complete pass over every row and reports every
// problem it finds. It has no side effects; the importer refuses to touch the
// database if it returns anything.

import "fmt"

// FieldType represents the expected data type for a CSV field.
type FieldType int

const (
	FieldText FieldType = iota
	FieldNumeric
	FieldDate
)

// FieldSpec defines the rule for one column. Required means the value must be
// non-blank; typed fields are only checked when a value is present.
type FieldSpec struct {
	Name     string
	Type     FieldType
	Required bool
}

// RoyaltyFieldSpecs are the rules applied to every import row, in reporting
// order.
var RoyaltyFieldSpecs = []FieldSpec{
	{Name: ColWorkID, Type: FieldText, Required: true},
	{Name: ColBatchID, Type: FieldText, Required: true},
	{Name: ColDistributedAmount, Type: FieldNumeric},
	{Name: ColPercentagePaid, Type: FieldNumeric},
	{Name: ColPeriodStart, Type: FieldDate},
	{Name: ColPeriodEnd, Type: FieldDate},
}

// ValidateRows checks every row against RoyaltyFieldSpecs.
func ValidateRows(rows []Row) []RowError {
	return ValidateRowsWith(RoyaltyFieldSpecs, rows)
}

// ValidateRowsWith checks every row against specs and returns the failures
// ordered by row, then by field.
func ValidateRowsWith(specs []FieldSpec, rows []Row) []RowError {
	var errs []RowError
	for _, row := range rows {
		for _, spec := range specs {
			if msg := ValidateCell(spec, row.Get(spec.Name)); msg != "" {
				errs = append(errs, RowError{Line: row.Line, Message: msg})
			}
		}
	}
	return errs
}

// ValidateCell returns a message for an invalid value, or "" if it passes.
func ValidateCell(spec FieldSpec, value string) string {
	if value == "" {
		if spec.Required {
			return fmt.Sprintf("%s is required", spec.Name)
		}
		return ""
	}

	switch spec.Type {
	case FieldNumeric:
		if _, ok := ParseDecimal(value); !ok {
			return fmt.Sprintf("%s must be numeric", spec.Name)
		}
	case FieldDate:
		if _, ok := ParseDate(value); !ok {
			return fmt.Sprintf("%s is invalid", spec.Name)
		}
	}
	return ""
}
