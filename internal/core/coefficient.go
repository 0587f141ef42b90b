package core

import "github.com/shopspring/decimal"

// coefficients maps a right-type group to the multiplier applied to its
// distributed amount. Groups are matched exactly.
var coefficients = map[string]decimal.Decimal{
	"MECH":  decimal.RequireFromString("0.8"),
	"PRINT": decimal.RequireFromString("0.8"),
	"SYNC":  decimal.RequireFromString("0.7"),
	"PERF":  decimal.RequireFromString("0.6"),
}

// DefaultCoefficient applies to any group not in the table.
var DefaultCoefficient = decimal.NewFromInt(1)

// CoefficientFor returns the multiplier for a right-type group.
func CoefficientFor(group string) decimal.Decimal {
	if c, ok := coefficients[group]; ok {
		return c
	}
	return DefaultCoefficient
}

// FinalAmount is distributed (null counts as zero) times the group's
// coefficient.
func FinalAmount(distributed decimal.NullDecimal, group string) decimal.Decimal {
	base := decimal.Zero
	if distributed.Valid {
		base = distributed.Decimal
	}
	return base.Mul(CoefficientFor(group))
}

// DisplayCoefficient is final/distributed as shown in exports. A null or zero
// distributed amount shows 0.
func DisplayCoefficient(distributed, final decimal.NullDecimal) decimal.Decimal {
	if !distributed.Valid || distributed.Decimal.IsZero() {
		return decimal.Zero
	}
	f := decimal.Zero
	if final.Valid {
		f = final.Decimal
	}
	return f.Div(distributed.Decimal)
}
