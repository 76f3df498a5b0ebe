/*
Package engine implements the time-entry lifecycle and wage computation core.

PURPOSE:
  This package contains the domain types and algorithms for workforce time
  tracking: clock-in/clock-out segments, statutory break deduction, gross
  wage calculation, day/month aggregation, and the audited correction
  workflow used by payroll administrators.

KEY CONCEPTS IN THIS FILE (types.go):
  - Employee:       Identity plus wage parameters (rate, cash payment flag)
  - TimeEntry:      One clock-in/clock-out segment; OPEN until clock-out is set
  - BreakRule:      One step of the worked-hours -> break-minutes table
  - DailySummary:   Derived per-day rollup of closed segments
  - MonthlySummary: Derived per-month rollup of daily summaries
  - EntryAudit:     Immutable record of an admin mutation (before/after state)

DESIGN PRINCIPLES:
  1. Precision: decimal.Decimal for hours and money, no float drift
  2. Derived data is rebuilt wholesale, never patched incrementally
  3. Strong typing for IDs prevents mixing employee/entry identifiers
  4. Audits are append-only; corrections never erase history

SEE ALSO:
  - lifecycle.go:  Clock-in/clock-out state machine
  - breaks.go:     Break policy step function
  - wage.go:       Wage calculation
  - aggregate.go:  Day/month recomputation
  - correction.go: Edit/split/delete with audit trail
*/
package engine

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type EmployeeID string
type EntryID string
type ShiftID string
type AuditID string

// ActorID identifies the user performing an administrative mutation.
// Supplied by the admin UI; the engine records it, never authenticates it.
type ActorID string

// NewEntryID returns a fresh random entry id.
func NewEntryID() EntryID { return EntryID(uuid.NewString()) }

// NewAuditID returns a fresh random audit id.
func NewAuditID() AuditID { return AuditID(uuid.NewString()) }

// =============================================================================
// EMPLOYEE - Referenced by the core, never mutated by it
// =============================================================================

type EmploymentType string

const (
	EmploymentPermanent EmploymentType = "permanent"
	EmploymentTemporary EmploymentType = "temporary"
)

// Employee carries the wage parameters the engine needs. Management of
// employee records (hiring, departments, schedules) lives outside the core.
type Employee struct {
	ID              EmployeeID
	Name            string
	RFIDTag         string // terminal badge id, empty when none assigned
	HourlyRate      *decimal.Decimal
	EmploymentType  EmploymentType
	CashPayment     bool
	MaxMonthlyHours *decimal.Decimal
	CreatedAt       time.Time
}

// Rate returns the employee's hourly rate, zero when none is configured.
func (e *Employee) Rate() decimal.Decimal {
	if e == nil || e.HourlyRate == nil {
		return decimal.Zero
	}
	return *e.HourlyRate
}

// =============================================================================
// BREAK RULES - Step table mapping worked hours to mandatory break minutes
// =============================================================================

// BreakRule is one step of the break table: from MinHours worked upward,
// BreakMinutes apply (until a higher step takes over).
type BreakRule struct {
	MinHours     decimal.Decimal
	BreakMinutes decimal.Decimal
	Active       bool
}

// BreakTable is an ordered set of break rules. See breaks.go for semantics.
type BreakTable []BreakRule

// =============================================================================
// TIME ENTRY - The central entity: one clock-in/clock-out segment
// =============================================================================

// TimeEntry is a single worked segment. ClockOut == nil means the segment is
// OPEN; a closed segment always has TotalHours and GrossWage populated.
//
// All timestamps are naive local wall-clock times in the engine's configured
// location (see clock.go). Duration arithmetic must never mix locations.
type TimeEntry struct {
	ID         EntryID
	EmployeeID EmployeeID
	ShiftID    ShiftID // opaque link to a planned shift, empty when ad hoc

	ClockIn  time.Time
	ClockOut *time.Time

	BreakMinutes       decimal.Decimal
	TotalHours         decimal.Decimal // net worked hours, rounded to 2 decimals
	GrossWage          decimal.Decimal // rounded to 2 decimals
	OverrideHourlyRate *decimal.Decimal

	AdminNote string
	IsManual  bool

	PaidOutAt *time.Time // cash payout marker, see payout.go

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsOpen reports whether the segment has not been clocked out yet.
func (e *TimeEntry) IsOpen() bool {
	return e.ClockOut == nil
}

// ResolveRate returns the hourly rate for this entry: the per-entry override
// when present, else the employee's rate, else zero.
func (e *TimeEntry) ResolveRate(emp *Employee) decimal.Decimal {
	if e.OverrideHourlyRate != nil {
		return *e.OverrideHourlyRate
	}
	return emp.Rate()
}

// ElapsedMinutes returns the minutes between clock-in and clock-out at full
// precision. Zero for open entries.
func (e *TimeEntry) ElapsedMinutes() decimal.Decimal {
	if e.ClockOut == nil {
		return decimal.Zero
	}
	return MinutesBetween(e.ClockIn, *e.ClockOut)
}

// NetHours returns the minute-precision worked hours of a closed entry:
// elapsed minutes minus break minutes, clamped at zero, divided by 60.
// This is the unrounded value the aggregation engine sums; TotalHours is
// the same quantity rounded for persistence.
func (e *TimeEntry) NetHours() decimal.Decimal {
	worked := e.ElapsedMinutes().Sub(e.BreakMinutes)
	if worked.IsNegative() {
		worked = decimal.Zero
	}
	return worked.Div(sixty)
}

// WorkedHours resolves the hours of an entry with a single documented
// precedence: the stored TotalHours for closed entries, else the value
// derived from the raw timestamps. Callers should not re-derive elsewhere.
func (e *TimeEntry) WorkedHours() decimal.Decimal {
	if !e.IsOpen() {
		return e.TotalHours
	}
	return e.NetHours()
}

// =============================================================================
// SUMMARIES - Derived rollups, rebuilt wholesale on every relevant change
// =============================================================================

// DailySummary aggregates all closed entries of one employee whose clock-in
// falls on one calendar day. Unique per (employee, date).
type DailySummary struct {
	EmployeeID        EmployeeID
	Date              time.Time // midnight, engine location
	TotalHours        decimal.Decimal
	TotalBreakMinutes decimal.Decimal
	Segments          int
	UpdatedAt         time.Time
}

// MonthlySummary folds the month's daily summaries. Unique per
// (employee, year, month).
type MonthlySummary struct {
	EmployeeID        EmployeeID
	Year              int
	Month             time.Month
	TotalHours        decimal.Decimal
	TotalBreakMinutes decimal.Decimal
	WorkingDays       int
	UpdatedAt         time.Time
}

// =============================================================================
// AUDIT - Immutable before/after records of correction-workflow mutations
// =============================================================================

type AuditAction string

const (
	AuditCreated AuditAction = "created"
	AuditUpdated AuditAction = "updated"
	AuditSplit   AuditAction = "split"
	AuditDeleted AuditAction = "deleted"
)

// EntrySnapshot captures the mutable fields of a TimeEntry for the audit
// trail. Stored as JSON by the persistence layer.
type EntrySnapshot struct {
	ClockIn            time.Time        `json:"clock_in"`
	ClockOut           *time.Time       `json:"clock_out"`
	BreakMinutes       decimal.Decimal  `json:"break_minutes"`
	TotalHours         decimal.Decimal  `json:"total_hours"`
	GrossWage          decimal.Decimal  `json:"gross_wage"`
	OverrideHourlyRate *decimal.Decimal `json:"override_hourly_rate,omitempty"`
	AdminNote          string           `json:"admin_note,omitempty"`
}

// Snapshot captures the entry's current audited fields.
func (e *TimeEntry) Snapshot() EntrySnapshot {
	return EntrySnapshot{
		ClockIn:            e.ClockIn,
		ClockOut:           e.ClockOut,
		BreakMinutes:       e.BreakMinutes,
		TotalHours:         e.TotalHours,
		GrossWage:          e.GrossWage,
		OverrideHourlyRate: e.OverrideHourlyRate,
		AdminNote:          e.AdminNote,
	}
}

// EntryAudit is one append-only audit row. OldValues is nil only for
// creation, NewValues is nil only for deletion. Audits are never edited.
type EntryAudit struct {
	ID        AuditID
	EntryID   EntryID
	ActorID   ActorID
	Action    AuditAction
	OldValues *EntrySnapshot
	NewValues *EntrySnapshot
	Note      string
	Metadata  map[string]string // action-specific data, e.g. split segment ids
	CreatedAt time.Time
}

// =============================================================================
// DECIMAL HELPERS
// =============================================================================

var sixty = decimal.NewFromInt(60)

// Round2 rounds to 2 decimal places, half up. Applied at the point of
// persistence only; intermediate math keeps full precision.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// MinutesBetween returns the full-precision minutes from a to b.
// Both endpoints must already be in the same location.
func MinutesBetween(a, b time.Time) decimal.Decimal {
	return decimal.NewFromInt(int64(b.Sub(a) / time.Second)).Div(sixty)
}

// MustParseDecimal parses s, returning zero on malformed input.
func MustParseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
