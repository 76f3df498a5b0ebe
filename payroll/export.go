/*
Package payroll provides the read-only export layer for external payroll
processing.

PURPOSE:
  Collects closed time entries over a date range and rolls them up per
  employee for handover to the payroll provider. Byte-level export
  formats (CSV, DATEV) live outside this engine; this package produces
  the numbers they consume.

KEY FEATURES:
  - Period reports filtered by employment type
  - Cash-payment grouping split by paid-out vs outstanding entries
  - Monthly-hours-cap flagging from Employee.MaxMonthlyHours

Open entries never appear in any report. An employee still on the clock
at export time contributes only their closed segments.

SEE ALSO:
  - engine/store.go: The store interfaces this reads from
  - engine/payout.go: Where entries are marked paid out
*/
package payroll

import (
	"context"
	"time"

	"github.com/shiftbook/timeclock-engine/engine"
	"github.com/shopspring/decimal"
)

// Exporter builds payroll reports from the entry store.
type Exporter struct {
	Store engine.Store
}

// NewExporter creates a payroll exporter backed by store.
func NewExporter(store engine.Store) *Exporter {
	return &Exporter{Store: store}
}

// Filter narrows a period report.
type Filter struct {
	// EmploymentType limits the report to one type when non-nil.
	EmploymentType *engine.EmploymentType
	// CashOnly limits the report to cash-payment employees.
	CashOnly bool
}

// EmployeePeriod is one employee's rollup over a reporting period.
type EmployeePeriod struct {
	Employee     engine.Employee
	Entries      []engine.TimeEntry
	TotalHours   decimal.Decimal
	BreakMinutes decimal.Decimal
	GrossWage    decimal.Decimal
	// OverMonthlyCap is set when the employee has a configured monthly
	// hours cap and TotalHours exceeds it. Exceeding the cap is a
	// payroll review flag, not an error; the hours are still reported.
	OverMonthlyCap bool
}

// Period reports every matching employee with at least one closed entry
// whose clock-in falls in [from, to). Ordered by employee name.
func (e *Exporter) Period(ctx context.Context, from, to time.Time, filter Filter) ([]EmployeePeriod, error) {
	employees, err := e.Store.ListEmployees(ctx)
	if err != nil {
		return nil, err
	}
	entries, err := e.Store.AllClosedEntriesInRange(ctx, from, to)
	if err != nil {
		return nil, err
	}

	byEmployee := make(map[engine.EmployeeID][]engine.TimeEntry)
	for _, entry := range entries {
		byEmployee[entry.EmployeeID] = append(byEmployee[entry.EmployeeID], entry)
	}

	var periods []EmployeePeriod
	for _, emp := range employees {
		if filter.EmploymentType != nil && emp.EmploymentType != *filter.EmploymentType {
			continue
		}
		if filter.CashOnly && !emp.CashPayment {
			continue
		}
		empEntries := byEmployee[emp.ID]
		if len(empEntries) == 0 {
			continue
		}
		periods = append(periods, e.rollup(emp, empEntries))
	}
	return periods, nil
}

func (e *Exporter) rollup(emp engine.Employee, entries []engine.TimeEntry) EmployeePeriod {
	p := EmployeePeriod{Employee: emp, Entries: entries}
	for _, entry := range entries {
		p.TotalHours = p.TotalHours.Add(entry.TotalHours)
		p.BreakMinutes = p.BreakMinutes.Add(entry.BreakMinutes)
		p.GrossWage = p.GrossWage.Add(entry.GrossWage)
	}
	if emp.MaxMonthlyHours != nil && p.TotalHours.GreaterThan(*emp.MaxMonthlyHours) {
		p.OverMonthlyCap = true
	}
	return p
}

// CashStatement is the cash-payment report for one employee: which closed
// entries have been handed over and which are still outstanding.
type CashStatement struct {
	Employee       engine.Employee
	Paid           []engine.TimeEntry
	Unpaid         []engine.TimeEntry
	PaidWage        decimal.Decimal
	OutstandingWage decimal.Decimal
}

// CashStatements reports all cash-payment employees with closed entries in
// [from, to), each split into paid-out and outstanding entries.
func (e *Exporter) CashStatements(ctx context.Context, from, to time.Time) ([]CashStatement, error) {
	periods, err := e.Period(ctx, from, to, Filter{CashOnly: true})
	if err != nil {
		return nil, err
	}

	var statements []CashStatement
	for _, p := range periods {
		st := CashStatement{Employee: p.Employee}
		for _, entry := range p.Entries {
			if entry.PaidOutAt != nil {
				st.Paid = append(st.Paid, entry)
				st.PaidWage = st.PaidWage.Add(entry.GrossWage)
			} else {
				st.Unpaid = append(st.Unpaid, entry)
				st.OutstandingWage = st.OutstandingWage.Add(entry.GrossWage)
			}
		}
		statements = append(statements, st)
	}
	return statements, nil
}

// MonthlyReport is Period over one calendar month, resolved in loc.
func (e *Exporter) MonthlyReport(ctx context.Context, year int, month time.Month, loc *time.Location, filter Filter) ([]EmployeePeriod, error) {
	from, to := engine.MonthBounds(year, month, loc)
	return e.Period(ctx, from, to, filter)
}
