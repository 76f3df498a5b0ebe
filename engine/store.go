/*
store.go - Persistence interfaces for the time-tracking engine

PURPOSE:
  Defines the contract between the domain logic and the database. The
  engine never touches SQL; implementations live in store/sqlite (the
  production store) and engine/store (in-memory, for tests).

THE ONE-OPEN-ENTRY INVARIANT:
  At most one TimeEntry per employee may have a null clock-out. A plain
  "SELECT then INSERT" loses that race under duplicate RFID scans, so
  InsertOpenEntry must be a transactional compare-and-insert: the SQLite
  implementation backs it with a partial unique index on employee_id
  WHERE clock_out IS NULL and translates the constraint violation into
  ErrAlreadyClockedIn. The in-memory store reproduces the same semantics
  under its mutex.

ATOMICITY:
  TxStore.WithTx gives the correction workflow all-or-nothing writes:
  a split either persists every segment plus its audit row, or nothing.

AUDIT CONTRACT:
  time_entry_audits is append-only. No Update, no Delete; deleting an
  entry never cascades into its audit history.

SEE ALSO:
  - store/sqlite/sqlite.go: Production implementation
  - engine/store/memory.go: In-memory implementation for tests
*/
package engine

import (
	"context"
	"time"
)

// =============================================================================
// EMPLOYEES & BREAK RULES (reference data)
// =============================================================================

// EmployeeStore persists employee reference data. The engine reads it;
// writes come from the admin collaborator.
type EmployeeStore interface {
	SaveEmployee(ctx context.Context, emp Employee) error
	// GetEmployee returns (nil, nil) when the id is unknown.
	GetEmployee(ctx context.Context, id EmployeeID) (*Employee, error)
	// GetEmployeeByTag resolves an RFID tag. Returns (nil, nil) when unknown.
	GetEmployeeByTag(ctx context.Context, tag string) (*Employee, error)
	ListEmployees(ctx context.Context) ([]Employee, error)
}

// RuleStore persists the admin-editable break rule table.
type RuleStore interface {
	BreakRules(ctx context.Context) (BreakTable, error)
	// ReplaceBreakRules swaps the whole table atomically.
	ReplaceBreakRules(ctx context.Context, rules BreakTable) error
}

// =============================================================================
// TIME ENTRIES
// =============================================================================

type EntryStore interface {
	// InsertOpenEntry persists a new OPEN entry, enforcing the one-open-
	// entry invariant. Returns ErrAlreadyClockedIn (possibly wrapped) when
	// the employee already has an open segment.
	InsertOpenEntry(ctx context.Context, entry *TimeEntry) error

	// InsertEntry persists a closed entry (manual creation, split segments).
	InsertEntry(ctx context.Context, entry *TimeEntry) error

	// OpenEntry returns the employee's open segment, (nil, nil) when none.
	OpenEntry(ctx context.Context, employeeID EmployeeID) (*TimeEntry, error)

	// GetEntry returns (nil, nil) when the id is unknown.
	GetEntry(ctx context.Context, id EntryID) (*TimeEntry, error)

	UpdateEntry(ctx context.Context, entry *TimeEntry) error
	DeleteEntry(ctx context.Context, id EntryID) error

	// ClosedEntriesInRange returns one employee's closed entries whose
	// clock-in falls in [from, to), ordered by clock-in.
	ClosedEntriesInRange(ctx context.Context, employeeID EmployeeID, from, to time.Time) ([]TimeEntry, error)

	// AllClosedEntriesInRange returns every employee's closed entries whose
	// clock-in falls in [from, to), ordered by employee then clock-in.
	// Read path for the payroll export layer.
	AllClosedEntriesInRange(ctx context.Context, from, to time.Time) ([]TimeEntry, error)
}

// =============================================================================
// SUMMARIES
// =============================================================================

type SummaryStore interface {
	// UpsertDailySummary overwrites the row keyed by (employee, date).
	UpsertDailySummary(ctx context.Context, s DailySummary) error
	// GetDailySummary returns (nil, nil) when no row exists.
	GetDailySummary(ctx context.Context, employeeID EmployeeID, date time.Time) (*DailySummary, error)
	// DailySummariesInRange returns daily rows with date in [from, to),
	// ordered by date.
	DailySummariesInRange(ctx context.Context, employeeID EmployeeID, from, to time.Time) ([]DailySummary, error)
	// DeleteDailySummary removes the row; absent rows are not an error.
	DeleteDailySummary(ctx context.Context, employeeID EmployeeID, date time.Time) error

	// UpsertMonthlySummary overwrites the row keyed by (employee, year, month).
	UpsertMonthlySummary(ctx context.Context, s MonthlySummary) error
	// GetMonthlySummary returns (nil, nil) when no row exists.
	GetMonthlySummary(ctx context.Context, employeeID EmployeeID, year int, month time.Month) (*MonthlySummary, error)
	// DeleteMonthlySummary removes the row; absent rows are not an error.
	DeleteMonthlySummary(ctx context.Context, employeeID EmployeeID, year int, month time.Month) error
}

// =============================================================================
// AUDIT LOG
// =============================================================================

// AuditStore is APPEND-ONLY. No update, no delete, ever.
type AuditStore interface {
	AppendAudit(ctx context.Context, audit EntryAudit) error
	// AuditsForEntry returns all audit rows for the entry, newest first.
	AuditsForEntry(ctx context.Context, entryID EntryID) ([]EntryAudit, error)
}

// =============================================================================
// COMBINED STORE
// =============================================================================

// Store bundles every persistence concern of the engine.
type Store interface {
	EmployeeStore
	RuleStore
	EntryStore
	SummaryStore
	AuditStore
}

// TxStore adds transactional execution. If fn returns an error the
// transaction rolls back and no partial state survives.
type TxStore interface {
	Store
	WithTx(ctx context.Context, fn func(Store) error) error
}
