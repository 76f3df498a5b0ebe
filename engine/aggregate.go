/*
aggregate.go - Day and month summary recomputation

PURPOSE:
  Rebuilds the derived DailySummary and MonthlySummary rows from closed
  entries. Summaries are always recomputed wholesale from the underlying
  segments - never incrementally patched - so a missed event can never
  leave them drifting from the truth.

DAY TOTAL SEMANTICS:
  total_hours sums each segment's minute-precision net hours (elapsed
  minus its own break) and then deducts the break policy applied to that
  sum a second time. Each segment has already paid its break, yet the day
  pays the statutory break for the combined hours once more. This mirrors
  the payroll rule this engine replicates for split days; summing the
  stored per-entry total_hours would give a different figure.

IDEMPOTENCE:
  Recomputing with unchanged entries yields identical rows, so concurrent
  recomputes are at worst redundant, never corrupting.

SEE ALSO:
  - lifecycle.go:  Triggers recompute on every clock-out
  - correction.go: Triggers recompute after every mutation
*/
package engine

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Aggregator rebuilds per-day and per-month summaries for one employee.
type Aggregator struct {
	Store    Store
	Location *time.Location
}

func NewAggregator(store Store, loc *time.Location) *Aggregator {
	if loc == nil {
		loc = DefaultLocation()
	}
	return &Aggregator{Store: store, Location: loc}
}

// =============================================================================
// DAY
// =============================================================================

// RecomputeDay rebuilds the daily summary for the calendar day containing
// day. When no closed entries remain the row is removed rather than left
// at zero, so working-day counts stay honest. Returns the upserted row,
// nil when the row was removed.
func (a *Aggregator) RecomputeDay(ctx context.Context, employeeID EmployeeID, day time.Time) (*DailySummary, error) {
	start, end := DayBounds(day, a.Location)

	entries, err := a.Store.ClosedEntriesInRange(ctx, employeeID, start, end)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		if err := a.Store.DeleteDailySummary(ctx, employeeID, start); err != nil {
			return nil, err
		}
		return nil, a.recomputeMonthOf(ctx, employeeID, start)
	}

	sumHours := decimal.Zero
	sumBreak := decimal.Zero
	for _, e := range entries {
		sumHours = sumHours.Add(e.NetHours())
		sumBreak = sumBreak.Add(e.BreakMinutes)
	}

	table, err := a.Store.BreakRules(ctx)
	if err != nil {
		return nil, err
	}
	dayBreak := BreakPolicy{Table: table}.Minutes(sumHours)

	total := sumHours.Sub(dayBreak.Div(sixty))
	if total.IsNegative() {
		total = decimal.Zero
	}

	summary := DailySummary{
		EmployeeID:        employeeID,
		Date:              start,
		TotalHours:        Round2(total),
		TotalBreakMinutes: Round2(sumBreak),
		Segments:          len(entries),
		UpdatedAt:         time.Now().In(a.Location),
	}
	if err := a.Store.UpsertDailySummary(ctx, summary); err != nil {
		return nil, err
	}
	if err := a.recomputeMonthOf(ctx, employeeID, start); err != nil {
		return nil, err
	}
	return &summary, nil
}

// RecomputeEntryDay recomputes the day and month the entry's clock-in
// falls into.
func (a *Aggregator) RecomputeEntryDay(ctx context.Context, entry *TimeEntry) error {
	_, err := a.RecomputeDay(ctx, entry.EmployeeID, entry.ClockIn)
	return err
}

// =============================================================================
// MONTH
// =============================================================================

// RecomputeMonth folds the month's daily summaries into the monthly row.
// A pure fold: no re-derivation from raw entries. Returns the upserted
// row, nil when no daily rows remain.
func (a *Aggregator) RecomputeMonth(ctx context.Context, employeeID EmployeeID, year int, month time.Month) (*MonthlySummary, error) {
	start, end := MonthBounds(year, month, a.Location)

	days, err := a.Store.DailySummariesInRange(ctx, employeeID, start, end)
	if err != nil {
		return nil, err
	}
	if len(days) == 0 {
		return nil, a.Store.DeleteMonthlySummary(ctx, employeeID, year, month)
	}

	totalHours := decimal.Zero
	totalBreak := decimal.Zero
	for _, d := range days {
		totalHours = totalHours.Add(d.TotalHours)
		totalBreak = totalBreak.Add(d.TotalBreakMinutes)
	}

	summary := MonthlySummary{
		EmployeeID:        employeeID,
		Year:              year,
		Month:             month,
		TotalHours:        Round2(totalHours),
		TotalBreakMinutes: Round2(totalBreak),
		WorkingDays:       len(days),
		UpdatedAt:         time.Now().In(a.Location),
	}
	if err := a.Store.UpsertMonthlySummary(ctx, summary); err != nil {
		return nil, err
	}
	return &summary, nil
}

func (a *Aggregator) recomputeMonthOf(ctx context.Context, employeeID EmployeeID, day time.Time) error {
	_, err := a.RecomputeMonth(ctx, employeeID, day.Year(), day.Month())
	return err
}
