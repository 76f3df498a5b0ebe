/*
lifecycle.go - Clock-in/clock-out state machine for one employee

PURPOSE:
  Owns the OPEN -> CLOSED transition of a time entry: conflict-safe
  clock-in, clock-out with quarter-hour rounding, midnight rollover,
  break resolution, wage computation, and the synchronous day/month
  recompute that follows every close.

STATE MACHINE:
  (none) --ClockIn--> OPEN (clock_out null)
  OPEN  --ClockOut--> CLOSED (hours + wage populated)

  CLOSED entries are only ever mutated by the correction workflow
  (correction.go); the lifecycle never reopens a segment.

CONCURRENCY:
  Two terminals scanning the same badge at once must not create two open
  segments. The store's InsertOpenEntry is a transactional compare-and-
  insert (partial unique index); the pre-fetch of the open entry here is
  only for the error payload, never the enforcement.

ROUNDING MODES:
  The RFID terminal rounds punches to the nearest quarter hour; the
  manual entry form does not. Both call sites share this one component
  and differ only in PunchOptions.RoundQuarterHour.

SEE ALSO:
  - clock.go:     Rounding, rollover, zone handling
  - breaks.go:    Break policy applied on close
  - aggregate.go: Recompute triggered after close
*/
package engine

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// =============================================================================
// LIFECYCLE
// =============================================================================

// Lifecycle drives clock-in and clock-out for time entries.
type Lifecycle struct {
	Store    TxStore
	Location *time.Location
	Agg      *Aggregator
	Log      logrus.FieldLogger
}

// NewLifecycle wires a lifecycle over the given store and zone.
func NewLifecycle(store TxStore, loc *time.Location, log logrus.FieldLogger) *Lifecycle {
	if loc == nil {
		loc = DefaultLocation()
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Lifecycle{
		Store:    store,
		Location: loc,
		Agg:      NewAggregator(store, loc),
		Log:      log,
	}
}

// PunchOptions controls a single clock-in.
type PunchOptions struct {
	// RoundQuarterHour rounds the punch to the nearest 15 minutes
	// (terminal behavior). Manual punches leave it false.
	RoundQuarterHour bool
	// ShiftID links the entry to a planned shift. Opaque to the engine.
	ShiftID ShiftID
	// Manual marks entries originating from the manual-entry form.
	Manual bool
}

// CloseOptions controls a single clock-out.
type CloseOptions struct {
	RoundQuarterHour bool
	// BreakOverride replaces the policy-derived break minutes when set.
	BreakOverride *decimal.Decimal
}

// =============================================================================
// CLOCK IN
// =============================================================================

// ClockIn opens a new segment for the employee at the given wall-clock
// time. Fails with a ConflictError carrying the existing open entry when
// the employee is already clocked in.
func (l *Lifecycle) ClockIn(ctx context.Context, employeeID EmployeeID, at time.Time, opts PunchOptions) (*TimeEntry, error) {
	emp, err := l.Store.GetEmployee(ctx, employeeID)
	if err != nil {
		return nil, err
	}
	if emp == nil {
		return nil, newEmployeeNotFound(string(employeeID))
	}

	at = at.In(l.Location)
	if opts.RoundQuarterHour {
		at = RoundQuarterHour(at)
	}

	now := time.Now().In(l.Location)
	entry := &TimeEntry{
		ID:         NewEntryID(),
		EmployeeID: employeeID,
		ShiftID:    opts.ShiftID,
		ClockIn:    at,
		IsManual:   opts.Manual,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := l.Store.InsertOpenEntry(ctx, entry); err != nil {
		if errors.Is(err, ErrAlreadyClockedIn) {
			open, lookupErr := l.Store.OpenEntry(ctx, employeeID)
			if lookupErr != nil {
				return nil, lookupErr
			}
			return nil, &ConflictError{EmployeeID: employeeID, OpenEntry: open}
		}
		return nil, err
	}
	return entry, nil
}

// ClockInByTag resolves an RFID tag and clocks in with terminal rounding.
func (l *Lifecycle) ClockInByTag(ctx context.Context, tag string, at time.Time) (*TimeEntry, error) {
	emp, err := l.Store.GetEmployeeByTag(ctx, tag)
	if err != nil {
		return nil, err
	}
	if emp == nil {
		return nil, newEmployeeNotFound(tag)
	}
	return l.ClockIn(ctx, emp.ID, at, PunchOptions{RoundQuarterHour: true})
}

// =============================================================================
// CLOCK OUT
// =============================================================================

// ClockOut closes the employee's open segment: rounds the punch when
// requested, rolls overnight clock-outs forward a day, resolves the break,
// computes hours and wage, persists the closed entry, and recomputes the
// day and month summaries.
func (l *Lifecycle) ClockOut(ctx context.Context, employeeID EmployeeID, at time.Time, opts CloseOptions) (*TimeEntry, error) {
	emp, err := l.Store.GetEmployee(ctx, employeeID)
	if err != nil {
		return nil, err
	}
	if emp == nil {
		return nil, newEmployeeNotFound(string(employeeID))
	}

	entry, err := l.Store.OpenEntry(ctx, employeeID)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, newNoOpenEntry(employeeID)
	}

	at = at.In(l.Location)
	if opts.RoundQuarterHour {
		at = RoundQuarterHour(at)
	}
	out := RollOvernight(entry.ClockIn, at)

	v := &ValidationError{}
	if !out.After(entry.ClockIn) {
		v.Add("clock_out", "must be after clock_in")
	}
	if opts.BreakOverride != nil && opts.BreakOverride.IsNegative() {
		v.Add("break_minutes", "must not be negative")
	}
	if err := v.Err(); err != nil {
		return nil, err
	}

	elapsed := MinutesBetween(entry.ClockIn, out)

	var breakMinutes decimal.Decimal
	if opts.BreakOverride != nil {
		breakMinutes = *opts.BreakOverride
	} else {
		policy, err := l.breakPolicy(ctx)
		if err != nil {
			return nil, err
		}
		breakMinutes = policy.Minutes(elapsed.Div(sixty))
	}

	wage := ComputeWage(elapsed, breakMinutes, entry.ResolveRate(emp))
	hours, gross := wage.Rounded()

	entry.ClockOut = &out
	entry.BreakMinutes = breakMinutes
	entry.TotalHours = hours
	entry.GrossWage = gross
	entry.UpdatedAt = time.Now().In(l.Location)

	if err := l.Store.UpdateEntry(ctx, entry); err != nil {
		return nil, err
	}

	l.noteSplitShift(ctx, entry)

	if err := l.Agg.RecomputeEntryDay(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// ClockOutByTag resolves an RFID tag and clocks out with terminal rounding.
func (l *Lifecycle) ClockOutByTag(ctx context.Context, tag string, at time.Time) (*TimeEntry, error) {
	emp, err := l.Store.GetEmployeeByTag(ctx, tag)
	if err != nil {
		return nil, err
	}
	if emp == nil {
		return nil, newEmployeeNotFound(tag)
	}
	return l.ClockOut(ctx, emp.ID, at, CloseOptions{RoundQuarterHour: true})
}

// breakPolicy loads the configured rule table; the statutory fallback
// applies when the table has no active rules.
func (l *Lifecycle) breakPolicy(ctx context.Context) (BreakPolicy, error) {
	table, err := l.Store.BreakRules(ctx)
	if err != nil {
		return BreakPolicy{}, err
	}
	return BreakPolicy{Table: table}, nil
}

// noteSplitShift logs when the day now holds several closed segments.
// Informational only: split shifts stay separate entries and the log
// never blocks the close.
func (l *Lifecycle) noteSplitShift(ctx context.Context, entry *TimeEntry) {
	start, end := DayBounds(entry.ClockIn, l.Location)
	entries, err := l.Store.ClosedEntriesInRange(ctx, entry.EmployeeID, start, end)
	if err != nil || len(entries) < 2 {
		return
	}
	l.Log.WithFields(logrus.Fields{
		"employee_id": entry.EmployeeID,
		"date":        start.Format("2006-01-02"),
		"segments":    len(entries),
	}).Info("split shift detected")
}
