/*
correction.go - Audited administrative mutations of closed segments

PURPOSE:
  Admins fix the timesheet here: create a missed segment, edit a wrong
  punch, split a double shift, or delete a bogus entry. Every mutation
  writes exactly one audit row capturing before/after state, inside the
  same transaction as the mutation itself - either both land or neither.

AUDIT LINEAGE:
  A split keeps the original entry id for its first segment, so the audit
  history of the original entry stays attached to it. Deleting an entry
  never deletes its audit rows.

FAILURE SEMANTICS:
  Validation failures carry field-level detail and reject synchronously.
  A failure mid-split or mid-delete rolls back everything; prior audits
  and the original entry survive untouched.

SEE ALSO:
  - aggregate.go: Summaries recomputed after every mutation
  - wage.go:      Edited segments are re-valued, never trusted as given
*/
package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultDeleteNote is recorded when an admin deletes without a reason.
const DefaultDeleteNote = "entry removed by administrator"

// Corrections is the administrative mutation surface over time entries.
type Corrections struct {
	Store    TxStore
	Location *time.Location
	Agg      *Aggregator
}

func NewCorrections(store TxStore, loc *time.Location) *Corrections {
	if loc == nil {
		loc = DefaultLocation()
	}
	return &Corrections{
		Store:    store,
		Location: loc,
		Agg:      NewAggregator(store, loc),
	}
}

// =============================================================================
// PARAMETERS
// =============================================================================

// EntryParams is the full mutable state an admin submits for a segment.
// OverrideHourlyRate nil clears any existing override.
type EntryParams struct {
	ClockIn            time.Time
	ClockOut           time.Time
	BreakMinutes       decimal.Decimal
	OverrideHourlyRate *decimal.Decimal
	Note               string
}

// Segment is one piece of a split.
type Segment struct {
	ClockIn      time.Time
	ClockOut     time.Time
	BreakMinutes decimal.Decimal
}

func (p EntryParams) validate() error {
	v := &ValidationError{}
	if p.ClockIn.IsZero() {
		v.Add("clock_in", "is required")
	}
	if p.ClockOut.IsZero() {
		v.Add("clock_out", "is required")
	} else if !p.ClockOut.After(p.ClockIn) {
		v.Add("clock_out", "must be after clock_in")
	}
	if p.BreakMinutes.IsNegative() {
		v.Add("break_minutes", "must not be negative")
	}
	return v.Err()
}

func validateSegments(segments []Segment) error {
	v := &ValidationError{}
	if len(segments) < 2 {
		v.Add("segments", "a split needs at least two segments")
		return v.Err()
	}
	for i, s := range segments {
		field := fmt.Sprintf("segments[%d]", i)
		if !s.ClockOut.After(s.ClockIn) {
			v.Add(field+".clock_out", "must be after clock_in")
		}
		if s.BreakMinutes.IsNegative() {
			v.Add(field+".break_minutes", "must not be negative")
		}
	}
	return v.Err()
}

// =============================================================================
// CREATE - manual segment entered after the fact
// =============================================================================

// CreateEntry persists a closed, manually entered segment and its
// "created" audit row.
func (c *Corrections) CreateEntry(ctx context.Context, employeeID EmployeeID, shiftID ShiftID, p EntryParams, actor ActorID) (*TimeEntry, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	emp, err := c.Store.GetEmployee(ctx, employeeID)
	if err != nil {
		return nil, err
	}
	if emp == nil {
		return nil, newEmployeeNotFound(string(employeeID))
	}

	now := time.Now().In(c.Location)
	entry := &TimeEntry{
		ID:                 NewEntryID(),
		EmployeeID:         employeeID,
		ShiftID:            shiftID,
		ClockIn:            p.ClockIn.In(c.Location),
		OverrideHourlyRate: p.OverrideHourlyRate,
		AdminNote:          p.Note,
		IsManual:           true,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	out := p.ClockOut.In(c.Location)
	entry.ClockOut = &out
	entry.BreakMinutes = p.BreakMinutes

	wage := ComputeWage(entry.ElapsedMinutes(), entry.BreakMinutes, entry.ResolveRate(emp))
	entry.TotalHours, entry.GrossWage = wage.Rounded()

	snap := entry.Snapshot()
	err = c.Store.WithTx(ctx, func(s Store) error {
		if err := s.InsertEntry(ctx, entry); err != nil {
			return err
		}
		return s.AppendAudit(ctx, EntryAudit{
			ID:        NewAuditID(),
			EntryID:   entry.ID,
			ActorID:   actor,
			Action:    AuditCreated,
			NewValues: &snap,
			Note:      p.Note,
			CreatedAt: now,
		})
	})
	if err != nil {
		return nil, err
	}
	if _, err := c.Agg.RecomputeDay(ctx, employeeID, entry.ClockIn); err != nil {
		return nil, err
	}
	return entry, nil
}

// =============================================================================
// UPDATE
// =============================================================================

// UpdateEntry overwrites a segment's punches, break, and rate override,
// re-values it, persists, and records an "updated" audit row with the
// full before/after snapshots.
func (c *Corrections) UpdateEntry(ctx context.Context, id EntryID, p EntryParams, actor ActorID) (*TimeEntry, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	entry, err := c.Store.GetEntry(ctx, id)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, newEntryNotFound(id)
	}
	emp, err := c.Store.GetEmployee(ctx, entry.EmployeeID)
	if err != nil {
		return nil, err
	}
	if emp == nil {
		return nil, newEmployeeNotFound(string(entry.EmployeeID))
	}

	oldSnap := entry.Snapshot()
	oldDay := entry.ClockIn

	entry.ClockIn = p.ClockIn.In(c.Location)
	out := p.ClockOut.In(c.Location)
	entry.ClockOut = &out
	entry.BreakMinutes = p.BreakMinutes
	entry.OverrideHourlyRate = p.OverrideHourlyRate
	entry.AdminNote = p.Note
	entry.UpdatedAt = time.Now().In(c.Location)

	wage := ComputeWage(entry.ElapsedMinutes(), entry.BreakMinutes, entry.ResolveRate(emp))
	entry.TotalHours, entry.GrossWage = wage.Rounded()

	newSnap := entry.Snapshot()
	err = c.Store.WithTx(ctx, func(s Store) error {
		if err := s.UpdateEntry(ctx, entry); err != nil {
			return err
		}
		return s.AppendAudit(ctx, EntryAudit{
			ID:        NewAuditID(),
			EntryID:   entry.ID,
			ActorID:   actor,
			Action:    AuditUpdated,
			OldValues: &oldSnap,
			NewValues: &newSnap,
			Note:      p.Note,
			CreatedAt: entry.UpdatedAt,
		})
	})
	if err != nil {
		return nil, err
	}
	if err := c.recomputeDays(ctx, entry.EmployeeID, oldDay, entry.ClockIn); err != nil {
		return nil, err
	}
	return entry, nil
}

// =============================================================================
// SPLIT
// =============================================================================

// SplitEntry divides one closed segment into two or more. The first
// segment overwrites the original entry in place, preserving its id and
// audit lineage; the rest become new manual entries inheriting employee,
// shift, and rate override. All segments plus the single "split" audit
// row persist atomically, or nothing does.
func (c *Corrections) SplitEntry(ctx context.Context, id EntryID, segments []Segment, actor ActorID, note string) ([]TimeEntry, error) {
	if err := validateSegments(segments); err != nil {
		return nil, err
	}
	entry, err := c.Store.GetEntry(ctx, id)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, newEntryNotFound(id)
	}
	if entry.IsOpen() {
		return nil, (&ValidationError{}).Add("id", "cannot split an open segment")
	}
	emp, err := c.Store.GetEmployee(ctx, entry.EmployeeID)
	if err != nil {
		return nil, err
	}
	if emp == nil {
		return nil, newEmployeeNotFound(string(entry.EmployeeID))
	}

	rate := entry.ResolveRate(emp)
	now := time.Now().In(c.Location)
	oldSnap := entry.Snapshot()
	oldDay := entry.ClockIn

	apply := func(e *TimeEntry, seg Segment) {
		e.ClockIn = seg.ClockIn.In(c.Location)
		out := seg.ClockOut.In(c.Location)
		e.ClockOut = &out
		e.BreakMinutes = seg.BreakMinutes
		wage := ComputeWage(MinutesBetween(e.ClockIn, out), seg.BreakMinutes, rate)
		e.TotalHours, e.GrossWage = wage.Rounded()
		e.UpdatedAt = now
	}

	apply(entry, segments[0])

	extras := make([]*TimeEntry, 0, len(segments)-1)
	for _, seg := range segments[1:] {
		extra := &TimeEntry{
			ID:                 NewEntryID(),
			EmployeeID:         entry.EmployeeID,
			ShiftID:            entry.ShiftID,
			OverrideHourlyRate: entry.OverrideHourlyRate,
			IsManual:           true,
			CreatedAt:          now,
		}
		apply(extra, seg)
		extras = append(extras, extra)
	}

	newIDs := make([]string, len(extras))
	for i, e := range extras {
		newIDs[i] = string(e.ID)
	}
	newSnap := entry.Snapshot()

	err = c.Store.WithTx(ctx, func(s Store) error {
		if err := s.UpdateEntry(ctx, entry); err != nil {
			return err
		}
		for _, e := range extras {
			if err := s.InsertEntry(ctx, e); err != nil {
				return err
			}
		}
		return s.AppendAudit(ctx, EntryAudit{
			ID:        NewAuditID(),
			EntryID:   entry.ID,
			ActorID:   actor,
			Action:    AuditSplit,
			OldValues: &oldSnap,
			NewValues: &newSnap,
			Note:      note,
			Metadata: map[string]string{
				"segments":      fmt.Sprintf("%d", len(segments)),
				"new_entry_ids": strings.Join(newIDs, ","),
			},
			CreatedAt: now,
		})
	})
	if err != nil {
		return nil, err
	}

	days := []time.Time{oldDay, entry.ClockIn}
	for _, e := range extras {
		days = append(days, e.ClockIn)
	}
	if err := c.recomputeDays(ctx, entry.EmployeeID, days...); err != nil {
		return nil, err
	}

	result := []TimeEntry{*entry}
	for _, e := range extras {
		result = append(result, *e)
	}
	return result, nil
}

// =============================================================================
// DELETE
// =============================================================================

// DeleteEntry records a "deleted" audit row with the final snapshot, then
// removes the entry. The audit history stays.
func (c *Corrections) DeleteEntry(ctx context.Context, id EntryID, actor ActorID, reason string) error {
	entry, err := c.Store.GetEntry(ctx, id)
	if err != nil {
		return err
	}
	if entry == nil {
		return newEntryNotFound(id)
	}

	if reason == "" {
		reason = DefaultDeleteNote
	}
	snap := entry.Snapshot()

	err = c.Store.WithTx(ctx, func(s Store) error {
		if err := s.AppendAudit(ctx, EntryAudit{
			ID:        NewAuditID(),
			EntryID:   entry.ID,
			ActorID:   actor,
			Action:    AuditDeleted,
			OldValues: &snap,
			Note:      reason,
			CreatedAt: time.Now().In(c.Location),
		}); err != nil {
			return err
		}
		return s.DeleteEntry(ctx, entry.ID)
	})
	if err != nil {
		return err
	}
	if _, err := c.Agg.RecomputeDay(ctx, entry.EmployeeID, entry.ClockIn); err != nil {
		return err
	}
	return nil
}

// =============================================================================
// AUDIT LOG
// =============================================================================

// AuditLog returns the entry's audit rows, newest first. Works for
// deleted entries too; history outlives the entry.
func (c *Corrections) AuditLog(ctx context.Context, id EntryID) ([]EntryAudit, error) {
	return c.Store.AuditsForEntry(ctx, id)
}

// recomputeDays recomputes each distinct calendar day once.
func (c *Corrections) recomputeDays(ctx context.Context, employeeID EmployeeID, days ...time.Time) error {
	seen := make(map[time.Time]bool)
	for _, d := range days {
		day := DayOf(d, c.Location)
		if seen[day] {
			continue
		}
		seen[day] = true
		if _, err := c.Agg.RecomputeDay(ctx, employeeID, day); err != nil {
			return err
		}
	}
	return nil
}
