/*
wage.go - Gross wage calculation for one segment

PURPOSE:
  Combines elapsed minutes, break minutes, and an hourly rate into net
  worked hours and gross wage. All math at full decimal precision;
  rounding to 2 decimals happens once, at the point of persistence.

NEVER NEGATIVE:
  A break longer than the segment clamps worked minutes at zero, so the
  wage can never go negative.

SEE ALSO:
  - lifecycle.go:  Calls this on clock-out
  - correction.go: Calls this when revalidating edited segments
*/
package engine

import "github.com/shopspring/decimal"

// WageResult carries the unrounded outputs of a wage calculation.
// Use Rounded() for the values to persist.
type WageResult struct {
	WorkHours decimal.Decimal
	GrossWage decimal.Decimal
}

// Rounded returns the persistable 2-decimal values, half up.
func (r WageResult) Rounded() (workHours, grossWage decimal.Decimal) {
	return Round2(r.WorkHours), Round2(r.GrossWage)
}

// ComputeWage derives worked hours and gross pay from elapsed minutes,
// break minutes, and the resolved hourly rate.
//
//	work_hours = max(0, elapsed - break) / 60
//	gross_wage = work_hours * rate
func ComputeWage(elapsedMinutes, breakMinutes, hourlyRate decimal.Decimal) WageResult {
	worked := elapsedMinutes.Sub(breakMinutes)
	if worked.IsNegative() {
		worked = decimal.Zero
	}
	hours := worked.Div(sixty)
	return WageResult{
		WorkHours: hours,
		GrossWage: hours.Mul(hourlyRate),
	}
}
