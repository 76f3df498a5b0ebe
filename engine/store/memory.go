// Package store provides an in-memory engine.Store implementation for
// tests and development. It reproduces the SQLite store's semantics,
// including the one-open-entry compare-and-insert and transactional
// rollback, under a single mutex.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shiftbook/timeclock-engine/engine"
)

type dayKey struct {
	Employee engine.EmployeeID
	Date     string // YYYY-MM-DD
}

type monthKey struct {
	Employee engine.EmployeeID
	Year     int
	Month    time.Month
}

type data struct {
	employees map[engine.EmployeeID]engine.Employee
	rules     engine.BreakTable
	entries   map[engine.EntryID]engine.TimeEntry
	daily     map[dayKey]engine.DailySummary
	monthly   map[monthKey]engine.MonthlySummary
	audits    map[engine.EntryID][]engine.EntryAudit
}

func newData() *data {
	return &data{
		employees: make(map[engine.EmployeeID]engine.Employee),
		entries:   make(map[engine.EntryID]engine.TimeEntry),
		daily:     make(map[dayKey]engine.DailySummary),
		monthly:   make(map[monthKey]engine.MonthlySummary),
		audits:    make(map[engine.EntryID][]engine.EntryAudit),
	}
}

func (d *data) clone() *data {
	c := newData()
	for k, v := range d.employees {
		c.employees[k] = v
	}
	c.rules = append(engine.BreakTable(nil), d.rules...)
	for k, v := range d.entries {
		c.entries[k] = v
	}
	for k, v := range d.daily {
		c.daily[k] = v
	}
	for k, v := range d.monthly {
		c.monthly[k] = v
	}
	for k, v := range d.audits {
		c.audits[k] = append([]engine.EntryAudit(nil), v...)
	}
	return c
}

// Memory is an in-memory engine.TxStore.
type Memory struct {
	mu sync.RWMutex
	d  *data
}

func NewMemory() *Memory {
	return &Memory{d: newData()}
}

// WithTx runs fn against a view of the store; on error the previous
// state is restored wholesale, mirroring a database rollback.
func (m *Memory) WithTx(_ context.Context, fn func(engine.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	backup := m.d.clone()
	if err := fn(&view{d: m.d}); err != nil {
		m.d = backup
		return err
	}
	return nil
}

// view exposes the data without locking; only reachable while the
// Memory mutex is held by WithTx.
type view struct {
	d *data
}

// =============================================================================
// EMPLOYEES
// =============================================================================

func (d *data) saveEmployee(emp engine.Employee) error {
	d.employees[emp.ID] = emp
	return nil
}

func (d *data) getEmployee(id engine.EmployeeID) (*engine.Employee, error) {
	emp, ok := d.employees[id]
	if !ok {
		return nil, nil
	}
	return &emp, nil
}

func (d *data) getEmployeeByTag(tag string) (*engine.Employee, error) {
	if tag == "" {
		return nil, nil
	}
	for _, emp := range d.employees {
		if emp.RFIDTag == tag {
			e := emp
			return &e, nil
		}
	}
	return nil, nil
}

func (d *data) listEmployees() ([]engine.Employee, error) {
	out := make([]engine.Employee, 0, len(d.employees))
	for _, emp := range d.employees {
		out = append(out, emp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// =============================================================================
// BREAK RULES
// =============================================================================

func (d *data) breakRules() (engine.BreakTable, error) {
	return append(engine.BreakTable(nil), d.rules...), nil
}

func (d *data) replaceBreakRules(rules engine.BreakTable) error {
	d.rules = append(engine.BreakTable(nil), rules...)
	return nil
}

// =============================================================================
// TIME ENTRIES
// =============================================================================

func (d *data) insertOpenEntry(entry *engine.TimeEntry) error {
	for _, e := range d.entries {
		if e.EmployeeID == entry.EmployeeID && e.IsOpen() {
			return engine.ErrAlreadyClockedIn
		}
	}
	d.entries[entry.ID] = *entry
	return nil
}

func (d *data) insertEntry(entry *engine.TimeEntry) error {
	d.entries[entry.ID] = *entry
	return nil
}

func (d *data) openEntry(employeeID engine.EmployeeID) (*engine.TimeEntry, error) {
	for _, e := range d.entries {
		if e.EmployeeID == employeeID && e.IsOpen() {
			entry := e
			return &entry, nil
		}
	}
	return nil, nil
}

func (d *data) getEntry(id engine.EntryID) (*engine.TimeEntry, error) {
	e, ok := d.entries[id]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (d *data) updateEntry(entry *engine.TimeEntry) error {
	if _, ok := d.entries[entry.ID]; !ok {
		return engine.ErrEntryNotFound
	}
	d.entries[entry.ID] = *entry
	return nil
}

func (d *data) deleteEntry(id engine.EntryID) error {
	delete(d.entries, id)
	return nil
}

func (d *data) closedEntriesInRange(employeeID engine.EmployeeID, from, to time.Time) ([]engine.TimeEntry, error) {
	var out []engine.TimeEntry
	for _, e := range d.entries {
		if e.EmployeeID != employeeID || e.IsOpen() {
			continue
		}
		if e.ClockIn.Before(from) || !e.ClockIn.Before(to) {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ClockIn.Before(out[j].ClockIn) })
	return out, nil
}

func (d *data) allClosedEntriesInRange(from, to time.Time) ([]engine.TimeEntry, error) {
	var out []engine.TimeEntry
	for _, e := range d.entries {
		if e.IsOpen() || e.ClockIn.Before(from) || !e.ClockIn.Before(to) {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].EmployeeID != out[j].EmployeeID {
			return out[i].EmployeeID < out[j].EmployeeID
		}
		return out[i].ClockIn.Before(out[j].ClockIn)
	})
	return out, nil
}

// =============================================================================
// SUMMARIES
// =============================================================================

func dkey(employeeID engine.EmployeeID, date time.Time) dayKey {
	return dayKey{Employee: employeeID, Date: date.Format("2006-01-02")}
}

func (d *data) upsertDailySummary(s engine.DailySummary) error {
	d.daily[dkey(s.EmployeeID, s.Date)] = s
	return nil
}

func (d *data) getDailySummary(employeeID engine.EmployeeID, date time.Time) (*engine.DailySummary, error) {
	s, ok := d.daily[dkey(employeeID, date)]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (d *data) dailySummariesInRange(employeeID engine.EmployeeID, from, to time.Time) ([]engine.DailySummary, error) {
	var out []engine.DailySummary
	for _, s := range d.daily {
		if s.EmployeeID != employeeID || s.Date.Before(from) || !s.Date.Before(to) {
			continue
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (d *data) deleteDailySummary(employeeID engine.EmployeeID, date time.Time) error {
	delete(d.daily, dkey(employeeID, date))
	return nil
}

func (d *data) upsertMonthlySummary(s engine.MonthlySummary) error {
	d.monthly[monthKey{Employee: s.EmployeeID, Year: s.Year, Month: s.Month}] = s
	return nil
}

func (d *data) getMonthlySummary(employeeID engine.EmployeeID, year int, month time.Month) (*engine.MonthlySummary, error) {
	s, ok := d.monthly[monthKey{Employee: employeeID, Year: year, Month: month}]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (d *data) deleteMonthlySummary(employeeID engine.EmployeeID, year int, month time.Month) error {
	delete(d.monthly, monthKey{Employee: employeeID, Year: year, Month: month})
	return nil
}

// =============================================================================
// AUDITS
// =============================================================================

func (d *data) appendAudit(audit engine.EntryAudit) error {
	d.audits[audit.EntryID] = append(d.audits[audit.EntryID], audit)
	return nil
}

func (d *data) auditsForEntry(entryID engine.EntryID) ([]engine.EntryAudit, error) {
	rows := d.audits[entryID]
	out := make([]engine.EntryAudit, len(rows))
	for i, a := range rows {
		out[len(rows)-1-i] = a // newest first
	}
	return out, nil
}

// =============================================================================
// INTERFACE PLUMBING - locked Memory methods and unlocked view methods
// =============================================================================

func (m *Memory) SaveEmployee(_ context.Context, emp engine.Employee) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.d.saveEmployee(emp)
}

func (m *Memory) GetEmployee(_ context.Context, id engine.EmployeeID) (*engine.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.d.getEmployee(id)
}

func (m *Memory) GetEmployeeByTag(_ context.Context, tag string) (*engine.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.d.getEmployeeByTag(tag)
}

func (m *Memory) ListEmployees(_ context.Context) ([]engine.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.d.listEmployees()
}

func (m *Memory) BreakRules(_ context.Context) (engine.BreakTable, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.d.breakRules()
}

func (m *Memory) ReplaceBreakRules(_ context.Context, rules engine.BreakTable) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.d.replaceBreakRules(rules)
}

func (m *Memory) InsertOpenEntry(_ context.Context, entry *engine.TimeEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.d.insertOpenEntry(entry)
}

func (m *Memory) InsertEntry(_ context.Context, entry *engine.TimeEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.d.insertEntry(entry)
}

func (m *Memory) OpenEntry(_ context.Context, employeeID engine.EmployeeID) (*engine.TimeEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.d.openEntry(employeeID)
}

func (m *Memory) GetEntry(_ context.Context, id engine.EntryID) (*engine.TimeEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.d.getEntry(id)
}

func (m *Memory) UpdateEntry(_ context.Context, entry *engine.TimeEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.d.updateEntry(entry)
}

func (m *Memory) DeleteEntry(_ context.Context, id engine.EntryID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.d.deleteEntry(id)
}

func (m *Memory) ClosedEntriesInRange(_ context.Context, employeeID engine.EmployeeID, from, to time.Time) ([]engine.TimeEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.d.closedEntriesInRange(employeeID, from, to)
}

func (m *Memory) AllClosedEntriesInRange(_ context.Context, from, to time.Time) ([]engine.TimeEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.d.allClosedEntriesInRange(from, to)
}

func (m *Memory) UpsertDailySummary(_ context.Context, s engine.DailySummary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.d.upsertDailySummary(s)
}

func (m *Memory) GetDailySummary(_ context.Context, employeeID engine.EmployeeID, date time.Time) (*engine.DailySummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.d.getDailySummary(employeeID, date)
}

func (m *Memory) DailySummariesInRange(_ context.Context, employeeID engine.EmployeeID, from, to time.Time) ([]engine.DailySummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.d.dailySummariesInRange(employeeID, from, to)
}

func (m *Memory) DeleteDailySummary(_ context.Context, employeeID engine.EmployeeID, date time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.d.deleteDailySummary(employeeID, date)
}

func (m *Memory) UpsertMonthlySummary(_ context.Context, s engine.MonthlySummary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.d.upsertMonthlySummary(s)
}

func (m *Memory) GetMonthlySummary(_ context.Context, employeeID engine.EmployeeID, year int, month time.Month) (*engine.MonthlySummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.d.getMonthlySummary(employeeID, year, month)
}

func (m *Memory) DeleteMonthlySummary(_ context.Context, employeeID engine.EmployeeID, year int, month time.Month) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.d.deleteMonthlySummary(employeeID, year, month)
}

func (m *Memory) AppendAudit(_ context.Context, audit engine.EntryAudit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.d.appendAudit(audit)
}

func (m *Memory) AuditsForEntry(_ context.Context, entryID engine.EntryID) ([]engine.EntryAudit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.d.auditsForEntry(entryID)
}

func (v *view) SaveEmployee(_ context.Context, emp engine.Employee) error {
	return v.d.saveEmployee(emp)
}

func (v *view) GetEmployee(_ context.Context, id engine.EmployeeID) (*engine.Employee, error) {
	return v.d.getEmployee(id)
}

func (v *view) GetEmployeeByTag(_ context.Context, tag string) (*engine.Employee, error) {
	return v.d.getEmployeeByTag(tag)
}

func (v *view) ListEmployees(_ context.Context) ([]engine.Employee, error) {
	return v.d.listEmployees()
}

func (v *view) BreakRules(_ context.Context) (engine.BreakTable, error) {
	return v.d.breakRules()
}

func (v *view) ReplaceBreakRules(_ context.Context, rules engine.BreakTable) error {
	return v.d.replaceBreakRules(rules)
}

func (v *view) InsertOpenEntry(_ context.Context, entry *engine.TimeEntry) error {
	return v.d.insertOpenEntry(entry)
}

func (v *view) InsertEntry(_ context.Context, entry *engine.TimeEntry) error {
	return v.d.insertEntry(entry)
}

func (v *view) OpenEntry(_ context.Context, employeeID engine.EmployeeID) (*engine.TimeEntry, error) {
	return v.d.openEntry(employeeID)
}

func (v *view) GetEntry(_ context.Context, id engine.EntryID) (*engine.TimeEntry, error) {
	return v.d.getEntry(id)
}

func (v *view) UpdateEntry(_ context.Context, entry *engine.TimeEntry) error {
	return v.d.updateEntry(entry)
}

func (v *view) DeleteEntry(_ context.Context, id engine.EntryID) error {
	return v.d.deleteEntry(id)
}

func (v *view) ClosedEntriesInRange(_ context.Context, employeeID engine.EmployeeID, from, to time.Time) ([]engine.TimeEntry, error) {
	return v.d.closedEntriesInRange(employeeID, from, to)
}

func (v *view) AllClosedEntriesInRange(_ context.Context, from, to time.Time) ([]engine.TimeEntry, error) {
	return v.d.allClosedEntriesInRange(from, to)
}

func (v *view) UpsertDailySummary(_ context.Context, s engine.DailySummary) error {
	return v.d.upsertDailySummary(s)
}

func (v *view) GetDailySummary(_ context.Context, employeeID engine.EmployeeID, date time.Time) (*engine.DailySummary, error) {
	return v.d.getDailySummary(employeeID, date)
}

func (v *view) DailySummariesInRange(_ context.Context, employeeID engine.EmployeeID, from, to time.Time) ([]engine.DailySummary, error) {
	return v.d.dailySummariesInRange(employeeID, from, to)
}

func (v *view) DeleteDailySummary(_ context.Context, employeeID engine.EmployeeID, date time.Time) error {
	return v.d.deleteDailySummary(employeeID, date)
}

func (v *view) UpsertMonthlySummary(_ context.Context, s engine.MonthlySummary) error {
	return v.d.upsertMonthlySummary(s)
}

func (v *view) GetMonthlySummary(_ context.Context, employeeID engine.EmployeeID, year int, month time.Month) (*engine.MonthlySummary, error) {
	return v.d.getMonthlySummary(employeeID, year, month)
}

func (v *view) DeleteMonthlySummary(_ context.Context, employeeID engine.EmployeeID, year int, month time.Month) error {
	return v.d.deleteMonthlySummary(employeeID, year, month)
}

func (v *view) AppendAudit(_ context.Context, audit engine.EntryAudit) error {
	return v.d.appendAudit(audit)
}

func (v *view) AuditsForEntry(_ context.Context, entryID engine.EntryID) ([]engine.EntryAudit, error) {
	return v.d.auditsForEntry(entryID)
}
