/*
Package sqlite provides the SQLite-backed implementation of the engine's
storage interfaces.

PURPOSE:
  Implements engine.TxStore (employees, break rules, time entries, daily
  and monthly summaries, audit log) using SQLite. The same patterns apply
  to PostgreSQL - only minor SQL dialect differences.

KEY TABLES:
  employees:          Wage reference data, unique RFID tag
  break_rules:        Admin-editable break step table
  time_entries:       Clock-in/clock-out segments
  daily_summaries:    Derived day rollups, unique (employee, date)
  monthly_summaries:  Derived month rollups, unique (employee, year, month)
  time_entry_audits:  Append-only correction audit trail

THE CRITICAL INDEX:
  idx_one_open_entry is a partial unique index on employee_id WHERE
  clock_out IS NULL. InsertOpenEntry is therefore a transactional
  compare-and-insert: two concurrent clock-ins for one employee cannot
  both commit, regardless of application-level checks. The violation is
  translated to engine.ErrAlreadyClockedIn.

TIMESTAMPS:
  Naive local wall-clock strings ("2006-01-02 15:04:05"), interpreted in
  the location the store is constructed with. No UTC conversion anywhere;
  mixing zones is how daylight-saving bugs corrupt elapsed minutes.

WAL MODE:
  Opened with WAL for concurrent readers and crash recovery.

USAGE:
  store, err := sqlite.New("./data/timeclock.db", loc)
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - engine/store.go: Interface definitions
  - engine/store/memory.go: In-memory implementation for tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/shiftbook/timeclock-engine/engine"
	"github.com/shopspring/decimal"
)

const (
	timeLayout = "2006-01-02 15:04:05"
	dateLayout = "2006-01-02"
)

// Store implements engine.TxStore using SQLite.
type Store struct {
	db  *sql.DB
	loc *time.Location
	mu  sync.RWMutex
}

// New opens (and migrates) a SQLite store. Use ":memory:" for tests.
// Timestamps are read and written as naive wall-clock times in loc.
func New(dbPath string, loc *time.Location) (*Store, error) {
	if loc == nil {
		loc = engine.DefaultLocation()
	}
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite allows one writer, and a pooled second connection to a
	// ":memory:" DSN would open a separate empty database.
	db.SetMaxOpenConns(1)

	store := &Store{db: db, loc: loc}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS employees (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		rfid_tag TEXT,
		hourly_rate TEXT,
		employment_type TEXT NOT NULL DEFAULT 'permanent',
		cash_payment INTEGER NOT NULL DEFAULT 0,
		max_monthly_hours TEXT,
		created_at TEXT NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_employees_rfid
		ON employees(rfid_tag) WHERE rfid_tag IS NOT NULL AND rfid_tag != '';

	CREATE TABLE IF NOT EXISTS break_rules (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		min_hours TEXT NOT NULL,
		break_minutes TEXT NOT NULL,
		active INTEGER NOT NULL DEFAULT 1
	);

	CREATE INDEX IF NOT EXISTS idx_break_rules_min_hours
		ON break_rules(min_hours);

	CREATE TABLE IF NOT EXISTS time_entries (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL REFERENCES employees(id),
		shift_id TEXT,
		clock_in TEXT NOT NULL,
		clock_out TEXT,
		break_minutes TEXT NOT NULL DEFAULT '0',
		total_hours TEXT NOT NULL DEFAULT '0',
		gross_wage TEXT NOT NULL DEFAULT '0',
		override_hourly_rate TEXT,
		admin_note TEXT,
		is_manual INTEGER NOT NULL DEFAULT 0,
		paid_out_at TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- CRITICAL: at most one OPEN segment per employee. Clock-in relies on
	-- this index, not on a SELECT-then-INSERT, so duplicate RFID scans
	-- cannot race their way into two open entries.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_one_open_entry
		ON time_entries(employee_id) WHERE clock_out IS NULL;

	CREATE INDEX IF NOT EXISTS idx_entries_employee_clock_in
		ON time_entries(employee_id, clock_in);
	CREATE INDEX IF NOT EXISTS idx_entries_clock_in
		ON time_entries(clock_in);

	CREATE TABLE IF NOT EXISTS daily_summaries (
		employee_id TEXT NOT NULL,
		work_date TEXT NOT NULL,
		total_hours TEXT NOT NULL DEFAULT '0',
		total_break_minutes TEXT NOT NULL DEFAULT '0',
		segments INTEGER NOT NULL DEFAULT 0,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (employee_id, work_date)
	);

	CREATE TABLE IF NOT EXISTS monthly_summaries (
		employee_id TEXT NOT NULL,
		year INTEGER NOT NULL,
		month INTEGER NOT NULL,
		total_hours TEXT NOT NULL DEFAULT '0',
		total_break_minutes TEXT NOT NULL DEFAULT '0',
		working_days INTEGER NOT NULL DEFAULT 0,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (employee_id, year, month)
	);

	-- Append-only. No UPDATE or DELETE statements exist for this table.
	CREATE TABLE IF NOT EXISTS time_entry_audits (
		id TEXT PRIMARY KEY,
		time_entry_id TEXT NOT NULL,
		actor_id TEXT NOT NULL,
		action TEXT NOT NULL,
		old_values TEXT,
		new_values TEXT,
		note TEXT,
		metadata TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_audits_entry
		ON time_entry_audits(time_entry_id, created_at DESC);
	`

	_, err := s.db.Exec(schema)
	return err
}

// dbtx is satisfied by *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx executes fn inside one database transaction. An error from fn
// rolls everything back; no partial split or delete survives.
func (s *Store) WithTx(ctx context.Context, fn func(engine.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&txStore{q: tx, parent: s}); err != nil {
		return err
	}
	return tx.Commit()
}

// txStore routes every call through the open transaction.
type txStore struct {
	q      *sql.Tx
	parent *Store
}

// =============================================================================
// EMPLOYEES
// =============================================================================

const employeeColumns = `id, name, rfid_tag, hourly_rate, employment_type, cash_payment, max_monthly_hours, created_at`

func (s *Store) saveEmployee(ctx context.Context, q dbtx, emp engine.Employee) error {
	query := `
		INSERT INTO employees (` + employeeColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			rfid_tag = excluded.rfid_tag,
			hourly_rate = excluded.hourly_rate,
			employment_type = excluded.employment_type,
			cash_payment = excluded.cash_payment,
			max_monthly_hours = excluded.max_monthly_hours
	`
	createdAt := emp.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().In(s.loc)
	}
	_, err := q.ExecContext(ctx, query,
		emp.ID,
		emp.Name,
		nullString(emp.RFIDTag),
		nullDecimal(emp.HourlyRate),
		string(emp.EmploymentType),
		emp.CashPayment,
		nullDecimal(emp.MaxMonthlyHours),
		createdAt.Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("failed to save employee: %w", err)
	}
	return nil
}

func (s *Store) scanEmployee(row interface{ Scan(...any) error }) (*engine.Employee, error) {
	var (
		emp            engine.Employee
		tag            sql.NullString
		rate           sql.NullString
		employmentType string
		maxHours       sql.NullString
		createdAt      string
	)
	err := row.Scan(&emp.ID, &emp.Name, &tag, &rate, &employmentType, &emp.CashPayment, &maxHours, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan employee: %w", err)
	}
	emp.RFIDTag = tag.String
	emp.HourlyRate = decimalPtr(rate)
	emp.EmploymentType = engine.EmploymentType(employmentType)
	emp.MaxMonthlyHours = decimalPtr(maxHours)
	emp.CreatedAt = s.parseTime(createdAt)
	return &emp, nil
}

func (s *Store) getEmployee(ctx context.Context, q dbtx, id engine.EmployeeID) (*engine.Employee, error) {
	row := q.QueryRowContext(ctx, `SELECT `+employeeColumns+` FROM employees WHERE id = ?`, id)
	return s.scanEmployee(row)
}

func (s *Store) getEmployeeByTag(ctx context.Context, q dbtx, tag string) (*engine.Employee, error) {
	if tag == "" {
		return nil, nil
	}
	row := q.QueryRowContext(ctx, `SELECT `+employeeColumns+` FROM employees WHERE rfid_tag = ?`, tag)
	return s.scanEmployee(row)
}

func (s *Store) listEmployees(ctx context.Context, q dbtx) ([]engine.Employee, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+employeeColumns+` FROM employees ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var employees []engine.Employee
	for rows.Next() {
		emp, err := s.scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		employees = append(employees, *emp)
	}
	return employees, rows.Err()
}

// =============================================================================
// BREAK RULES
// =============================================================================

func (s *Store) breakRules(ctx context.Context, q dbtx) (engine.BreakTable, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT min_hours, break_minutes, active FROM break_rules ORDER BY CAST(min_hours AS REAL) ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var table engine.BreakTable
	for rows.Next() {
		var minHours, breakMinutes string
		var active bool
		if err := rows.Scan(&minHours, &breakMinutes, &active); err != nil {
			return nil, err
		}
		table = append(table, engine.BreakRule{
			MinHours:     engine.MustParseDecimal(minHours),
			BreakMinutes: engine.MustParseDecimal(breakMinutes),
			Active:       active,
		})
	}
	return table, rows.Err()
}

func (s *Store) replaceBreakRules(ctx context.Context, q dbtx, rules engine.BreakTable) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM break_rules`); err != nil {
		return err
	}
	for _, r := range rules {
		_, err := q.ExecContext(ctx,
			`INSERT INTO break_rules (min_hours, break_minutes, active) VALUES (?, ?, ?)`,
			r.MinHours.String(), r.BreakMinutes.String(), r.Active)
		if err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// TIME ENTRIES
// =============================================================================

const entryColumns = `id, employee_id, shift_id, clock_in, clock_out, break_minutes, total_hours, gross_wage, override_hourly_rate, admin_note, is_manual, paid_out_at, created_at, updated_at`

func (s *Store) insertEntry(ctx context.Context, q dbtx, entry *engine.TimeEntry) error {
	query := `
		INSERT INTO time_entries (` + entryColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := q.ExecContext(ctx, query,
		entry.ID,
		entry.EmployeeID,
		nullString(string(entry.ShiftID)),
		entry.ClockIn.Format(timeLayout),
		s.nullTime(entry.ClockOut),
		entry.BreakMinutes.String(),
		entry.TotalHours.String(),
		entry.GrossWage.String(),
		nullDecimal(entry.OverrideHourlyRate),
		nullString(entry.AdminNote),
		entry.IsManual,
		s.nullTime(entry.PaidOutAt),
		entry.CreatedAt.Format(timeLayout),
		entry.UpdatedAt.Format(timeLayout),
	)
	if err != nil {
		if isOpenEntryConflict(err) {
			return engine.ErrAlreadyClockedIn
		}
		return fmt.Errorf("failed to insert time entry: %w", err)
	}
	return nil
}

func (s *Store) scanEntry(row interface{ Scan(...any) error }) (*engine.TimeEntry, error) {
	var (
		entry        engine.TimeEntry
		shiftID      sql.NullString
		clockIn      string
		clockOut     sql.NullString
		breakMinutes string
		totalHours   string
		grossWage    string
		overrideRate sql.NullString
		adminNote    sql.NullString
		paidOutAt    sql.NullString
		createdAt    string
		updatedAt    string
	)
	err := row.Scan(&entry.ID, &entry.EmployeeID, &shiftID, &clockIn, &clockOut,
		&breakMinutes, &totalHours, &grossWage, &overrideRate, &adminNote,
		&entry.IsManual, &paidOutAt, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan time entry: %w", err)
	}
	entry.ShiftID = engine.ShiftID(shiftID.String)
	entry.ClockIn = s.parseTime(clockIn)
	entry.ClockOut = s.timePtr(clockOut)
	entry.BreakMinutes = engine.MustParseDecimal(breakMinutes)
	entry.TotalHours = engine.MustParseDecimal(totalHours)
	entry.GrossWage = engine.MustParseDecimal(grossWage)
	entry.OverrideHourlyRate = decimalPtr(overrideRate)
	entry.AdminNote = adminNote.String
	entry.PaidOutAt = s.timePtr(paidOutAt)
	entry.CreatedAt = s.parseTime(createdAt)
	entry.UpdatedAt = s.parseTime(updatedAt)
	return &entry, nil
}

func (s *Store) openEntry(ctx context.Context, q dbtx, employeeID engine.EmployeeID) (*engine.TimeEntry, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM time_entries WHERE employee_id = ? AND clock_out IS NULL`,
		employeeID)
	return s.scanEntry(row)
}

func (s *Store) getEntry(ctx context.Context, q dbtx, id engine.EntryID) (*engine.TimeEntry, error) {
	row := q.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM time_entries WHERE id = ?`, id)
	return s.scanEntry(row)
}

func (s *Store) updateEntry(ctx context.Context, q dbtx, entry *engine.TimeEntry) error {
	query := `
		UPDATE time_entries SET
			shift_id = ?,
			clock_in = ?,
			clock_out = ?,
			break_minutes = ?,
			total_hours = ?,
			gross_wage = ?,
			override_hourly_rate = ?,
			admin_note = ?,
			is_manual = ?,
			paid_out_at = ?,
			updated_at = ?
		WHERE id = ?
	`
	res, err := q.ExecContext(ctx, query,
		nullString(string(entry.ShiftID)),
		entry.ClockIn.Format(timeLayout),
		s.nullTime(entry.ClockOut),
		entry.BreakMinutes.String(),
		entry.TotalHours.String(),
		entry.GrossWage.String(),
		nullDecimal(entry.OverrideHourlyRate),
		nullString(entry.AdminNote),
		entry.IsManual,
		s.nullTime(entry.PaidOutAt),
		entry.UpdatedAt.Format(timeLayout),
		entry.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update time entry: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return engine.ErrEntryNotFound
	}
	return nil
}

func (s *Store) deleteEntry(ctx context.Context, q dbtx, id engine.EntryID) error {
	_, err := q.ExecContext(ctx, `DELETE FROM time_entries WHERE id = ?`, id)
	return err
}

func (s *Store) queryEntries(ctx context.Context, q dbtx, query string, args ...any) ([]engine.TimeEntry, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query time entries: %w", err)
	}
	defer rows.Close()

	var entries []engine.TimeEntry
	for rows.Next() {
		entry, err := s.scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}
	return entries, rows.Err()
}

func (s *Store) closedEntriesInRange(ctx context.Context, q dbtx, employeeID engine.EmployeeID, from, to time.Time) ([]engine.TimeEntry, error) {
	query := `
		SELECT ` + entryColumns + ` FROM time_entries
		WHERE employee_id = ? AND clock_out IS NOT NULL
		  AND clock_in >= ? AND clock_in < ?
		ORDER BY clock_in ASC
	`
	return s.queryEntries(ctx, q, query, employeeID, from.Format(timeLayout), to.Format(timeLayout))
}

func (s *Store) allClosedEntriesInRange(ctx context.Context, q dbtx, from, to time.Time) ([]engine.TimeEntry, error) {
	query := `
		SELECT ` + entryColumns + ` FROM time_entries
		WHERE clock_out IS NOT NULL
		  AND clock_in >= ? AND clock_in < ?
		ORDER BY employee_id ASC, clock_in ASC
	`
	return s.queryEntries(ctx, q, query, from.Format(timeLayout), to.Format(timeLayout))
}

// =============================================================================
// SUMMARIES
// =============================================================================

const dailyColumns = `employee_id, work_date, total_hours, total_break_minutes, segments, updated_at`

func (s *Store) upsertDailySummary(ctx context.Context, q dbtx, sum engine.DailySummary) error {
	query := `
		INSERT INTO daily_summaries (` + dailyColumns + `)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(employee_id, work_date) DO UPDATE SET
			total_hours = excluded.total_hours,
			total_break_minutes = excluded.total_break_minutes,
			segments = excluded.segments,
			updated_at = excluded.updated_at
	`
	_, err := q.ExecContext(ctx, query,
		sum.EmployeeID,
		sum.Date.Format(dateLayout),
		sum.TotalHours.String(),
		sum.TotalBreakMinutes.String(),
		sum.Segments,
		sum.UpdatedAt.Format(timeLayout),
	)
	return err
}

func (s *Store) scanDailySummary(row interface{ Scan(...any) error }) (*engine.DailySummary, error) {
	var (
		sum        engine.DailySummary
		workDate   string
		totalHours string
		totalBreak string
		updatedAt  string
	)
	err := row.Scan(&sum.EmployeeID, &workDate, &totalHours, &totalBreak, &sum.Segments, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan daily summary: %w", err)
	}
	sum.Date = s.parseDate(workDate)
	sum.TotalHours = engine.MustParseDecimal(totalHours)
	sum.TotalBreakMinutes = engine.MustParseDecimal(totalBreak)
	sum.UpdatedAt = s.parseTime(updatedAt)
	return &sum, nil
}

func (s *Store) getDailySummary(ctx context.Context, q dbtx, employeeID engine.EmployeeID, date time.Time) (*engine.DailySummary, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+dailyColumns+` FROM daily_summaries WHERE employee_id = ? AND work_date = ?`,
		employeeID, date.Format(dateLayout))
	return s.scanDailySummary(row)
}

func (s *Store) dailySummariesInRange(ctx context.Context, q dbtx, employeeID engine.EmployeeID, from, to time.Time) ([]engine.DailySummary, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+dailyColumns+` FROM daily_summaries
		 WHERE employee_id = ? AND work_date >= ? AND work_date < ?
		 ORDER BY work_date ASC`,
		employeeID, from.Format(dateLayout), to.Format(dateLayout))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sums []engine.DailySummary
	for rows.Next() {
		sum, err := s.scanDailySummary(rows)
		if err != nil {
			return nil, err
		}
		sums = append(sums, *sum)
	}
	return sums, rows.Err()
}

func (s *Store) deleteDailySummary(ctx context.Context, q dbtx, employeeID engine.EmployeeID, date time.Time) error {
	_, err := q.ExecContext(ctx,
		`DELETE FROM daily_summaries WHERE employee_id = ? AND work_date = ?`,
		employeeID, date.Format(dateLayout))
	return err
}

func (s *Store) upsertMonthlySummary(ctx context.Context, q dbtx, sum engine.MonthlySummary) error {
	query := `
		INSERT INTO monthly_summaries (employee_id, year, month, total_hours, total_break_minutes, working_days, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(employee_id, year, month) DO UPDATE SET
			total_hours = excluded.total_hours,
			total_break_minutes = excluded.total_break_minutes,
			working_days = excluded.working_days,
			updated_at = excluded.updated_at
	`
	_, err := q.ExecContext(ctx, query,
		sum.EmployeeID,
		sum.Year,
		int(sum.Month),
		sum.TotalHours.String(),
		sum.TotalBreakMinutes.String(),
		sum.WorkingDays,
		sum.UpdatedAt.Format(timeLayout),
	)
	return err
}

func (s *Store) getMonthlySummary(ctx context.Context, q dbtx, employeeID engine.EmployeeID, year int, month time.Month) (*engine.MonthlySummary, error) {
	var (
		sum        engine.MonthlySummary
		monthInt   int
		totalHours string
		totalBreak string
		updatedAt  string
	)
	err := q.QueryRowContext(ctx,
		`SELECT employee_id, year, month, total_hours, total_break_minutes, working_days, updated_at
		 FROM monthly_summaries WHERE employee_id = ? AND year = ? AND month = ?`,
		employeeID, year, int(month),
	).Scan(&sum.EmployeeID, &sum.Year, &monthInt, &totalHours, &totalBreak, &sum.WorkingDays, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan monthly summary: %w", err)
	}
	sum.Month = time.Month(monthInt)
	sum.TotalHours = engine.MustParseDecimal(totalHours)
	sum.TotalBreakMinutes = engine.MustParseDecimal(totalBreak)
	sum.UpdatedAt = s.parseTime(updatedAt)
	return &sum, nil
}

func (s *Store) deleteMonthlySummary(ctx context.Context, q dbtx, employeeID engine.EmployeeID, year int, month time.Month) error {
	_, err := q.ExecContext(ctx,
		`DELETE FROM monthly_summaries WHERE employee_id = ? AND year = ? AND month = ?`,
		employeeID, year, int(month))
	return err
}

// =============================================================================
// AUDIT LOG (append-only)
// =============================================================================

func (s *Store) appendAudit(ctx context.Context, q dbtx, audit engine.EntryAudit) error {
	oldJSON, err := marshalSnapshot(audit.OldValues)
	if err != nil {
		return err
	}
	newJSON, err := marshalSnapshot(audit.NewValues)
	if err != nil {
		return err
	}
	var metaJSON any
	if len(audit.Metadata) > 0 {
		b, err := json.Marshal(audit.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal audit metadata: %w", err)
		}
		metaJSON = string(b)
	}

	query := `
		INSERT INTO time_entry_audits (id, time_entry_id, actor_id, action, old_values, new_values, note, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = q.ExecContext(ctx, query,
		audit.ID,
		audit.EntryID,
		audit.ActorID,
		string(audit.Action),
		oldJSON,
		newJSON,
		nullString(audit.Note),
		metaJSON,
		audit.CreatedAt.Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("failed to append audit: %w", err)
	}
	return nil
}

func (s *Store) auditsForEntry(ctx context.Context, q dbtx, entryID engine.EntryID) ([]engine.EntryAudit, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, time_entry_id, actor_id, action, old_values, new_values, note, metadata, created_at
		 FROM time_entry_audits WHERE time_entry_id = ?
		 ORDER BY created_at DESC, rowid DESC`,
		entryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var audits []engine.EntryAudit
	for rows.Next() {
		var (
			audit     engine.EntryAudit
			action    string
			oldJSON   sql.NullString
			newJSON   sql.NullString
			note      sql.NullString
			metaJSON  sql.NullString
			createdAt string
		)
		if err := rows.Scan(&audit.ID, &audit.EntryID, &audit.ActorID, &action,
			&oldJSON, &newJSON, &note, &metaJSON, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit: %w", err)
		}
		audit.Action = engine.AuditAction(action)
		if audit.OldValues, err = unmarshalSnapshot(oldJSON); err != nil {
			return nil, err
		}
		if audit.NewValues, err = unmarshalSnapshot(newJSON); err != nil {
			return nil, err
		}
		audit.Note = note.String
		if metaJSON.Valid && metaJSON.String != "" {
			if err := json.Unmarshal([]byte(metaJSON.String), &audit.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal audit metadata: %w", err)
			}
		}
		audit.CreatedAt = s.parseTime(createdAt)
		audits = append(audits, audit)
	}
	return audits, rows.Err()
}

// =============================================================================
// INTERFACE PLUMBING
// =============================================================================

func (s *Store) SaveEmployee(ctx context.Context, emp engine.Employee) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveEmployee(ctx, s.db, emp)
}

func (s *Store) GetEmployee(ctx context.Context, id engine.EmployeeID) (*engine.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getEmployee(ctx, s.db, id)
}

func (s *Store) GetEmployeeByTag(ctx context.Context, tag string) (*engine.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getEmployeeByTag(ctx, s.db, tag)
}

func (s *Store) ListEmployees(ctx context.Context) ([]engine.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listEmployees(ctx, s.db)
}

func (s *Store) BreakRules(ctx context.Context) (engine.BreakTable, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.breakRules(ctx, s.db)
}

func (s *Store) ReplaceBreakRules(ctx context.Context, rules engine.BreakTable) error {
	return s.WithTx(ctx, func(st engine.Store) error {
		return st.ReplaceBreakRules(ctx, rules)
	})
}

func (s *Store) InsertOpenEntry(ctx context.Context, entry *engine.TimeEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertEntry(ctx, s.db, entry)
}

func (s *Store) InsertEntry(ctx context.Context, entry *engine.TimeEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertEntry(ctx, s.db, entry)
}

func (s *Store) OpenEntry(ctx context.Context, employeeID engine.EmployeeID) (*engine.TimeEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.openEntry(ctx, s.db, employeeID)
}

func (s *Store) GetEntry(ctx context.Context, id engine.EntryID) (*engine.TimeEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getEntry(ctx, s.db, id)
}

func (s *Store) UpdateEntry(ctx context.Context, entry *engine.TimeEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateEntry(ctx, s.db, entry)
}

func (s *Store) DeleteEntry(ctx context.Context, id engine.EntryID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteEntry(ctx, s.db, id)
}

func (s *Store) ClosedEntriesInRange(ctx context.Context, employeeID engine.EmployeeID, from, to time.Time) ([]engine.TimeEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closedEntriesInRange(ctx, s.db, employeeID, from, to)
}

func (s *Store) AllClosedEntriesInRange(ctx context.Context, from, to time.Time) ([]engine.TimeEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.allClosedEntriesInRange(ctx, s.db, from, to)
}

func (s *Store) UpsertDailySummary(ctx context.Context, sum engine.DailySummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.upsertDailySummary(ctx, s.db, sum)
}

func (s *Store) GetDailySummary(ctx context.Context, employeeID engine.EmployeeID, date time.Time) (*engine.DailySummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getDailySummary(ctx, s.db, employeeID, date)
}

func (s *Store) DailySummariesInRange(ctx context.Context, employeeID engine.EmployeeID, from, to time.Time) ([]engine.DailySummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dailySummariesInRange(ctx, s.db, employeeID, from, to)
}

func (s *Store) DeleteDailySummary(ctx context.Context, employeeID engine.EmployeeID, date time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteDailySummary(ctx, s.db, employeeID, date)
}

func (s *Store) UpsertMonthlySummary(ctx context.Context, sum engine.MonthlySummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.upsertMonthlySummary(ctx, s.db, sum)
}

func (s *Store) GetMonthlySummary(ctx context.Context, employeeID engine.EmployeeID, year int, month time.Month) (*engine.MonthlySummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getMonthlySummary(ctx, s.db, employeeID, year, month)
}

func (s *Store) DeleteMonthlySummary(ctx context.Context, employeeID engine.EmployeeID, year int, month time.Month) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteMonthlySummary(ctx, s.db, employeeID, year, month)
}

func (s *Store) AppendAudit(ctx context.Context, audit engine.EntryAudit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendAudit(ctx, s.db, audit)
}

func (s *Store) AuditsForEntry(ctx context.Context, entryID engine.EntryID) ([]engine.EntryAudit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.auditsForEntry(ctx, s.db, entryID)
}

func (t *txStore) SaveEmployee(ctx context.Context, emp engine.Employee) error {
	return t.parent.saveEmployee(ctx, t.q, emp)
}

func (t *txStore) GetEmployee(ctx context.Context, id engine.EmployeeID) (*engine.Employee, error) {
	return t.parent.getEmployee(ctx, t.q, id)
}

func (t *txStore) GetEmployeeByTag(ctx context.Context, tag string) (*engine.Employee, error) {
	return t.parent.getEmployeeByTag(ctx, t.q, tag)
}

func (t *txStore) ListEmployees(ctx context.Context) ([]engine.Employee, error) {
	return t.parent.listEmployees(ctx, t.q)
}

func (t *txStore) BreakRules(ctx context.Context) (engine.BreakTable, error) {
	return t.parent.breakRules(ctx, t.q)
}

func (t *txStore) ReplaceBreakRules(ctx context.Context, rules engine.BreakTable) error {
	return t.parent.replaceBreakRules(ctx, t.q, rules)
}

func (t *txStore) InsertOpenEntry(ctx context.Context, entry *engine.TimeEntry) error {
	return t.parent.insertEntry(ctx, t.q, entry)
}

func (t *txStore) InsertEntry(ctx context.Context, entry *engine.TimeEntry) error {
	return t.parent.insertEntry(ctx, t.q, entry)
}

func (t *txStore) OpenEntry(ctx context.Context, employeeID engine.EmployeeID) (*engine.TimeEntry, error) {
	return t.parent.openEntry(ctx, t.q, employeeID)
}

func (t *txStore) GetEntry(ctx context.Context, id engine.EntryID) (*engine.TimeEntry, error) {
	return t.parent.getEntry(ctx, t.q, id)
}

func (t *txStore) UpdateEntry(ctx context.Context, entry *engine.TimeEntry) error {
	return t.parent.updateEntry(ctx, t.q, entry)
}

func (t *txStore) DeleteEntry(ctx context.Context, id engine.EntryID) error {
	return t.parent.deleteEntry(ctx, t.q, id)
}

func (t *txStore) ClosedEntriesInRange(ctx context.Context, employeeID engine.EmployeeID, from, to time.Time) ([]engine.TimeEntry, error) {
	return t.parent.closedEntriesInRange(ctx, t.q, employeeID, from, to)
}

func (t *txStore) AllClosedEntriesInRange(ctx context.Context, from, to time.Time) ([]engine.TimeEntry, error) {
	return t.parent.allClosedEntriesInRange(ctx, t.q, from, to)
}

func (t *txStore) UpsertDailySummary(ctx context.Context, sum engine.DailySummary) error {
	return t.parent.upsertDailySummary(ctx, t.q, sum)
}

func (t *txStore) GetDailySummary(ctx context.Context, employeeID engine.EmployeeID, date time.Time) (*engine.DailySummary, error) {
	return t.parent.getDailySummary(ctx, t.q, employeeID, date)
}

func (t *txStore) DailySummariesInRange(ctx context.Context, employeeID engine.EmployeeID, from, to time.Time) ([]engine.DailySummary, error) {
	return t.parent.dailySummariesInRange(ctx, t.q, employeeID, from, to)
}

func (t *txStore) DeleteDailySummary(ctx context.Context, employeeID engine.EmployeeID, date time.Time) error {
	return t.parent.deleteDailySummary(ctx, t.q, employeeID, date)
}

func (t *txStore) UpsertMonthlySummary(ctx context.Context, sum engine.MonthlySummary) error {
	return t.parent.upsertMonthlySummary(ctx, t.q, sum)
}

func (t *txStore) GetMonthlySummary(ctx context.Context, employeeID engine.EmployeeID, year int, month time.Month) (*engine.MonthlySummary, error) {
	return t.parent.getMonthlySummary(ctx, t.q, employeeID, year, month)
}

func (t *txStore) DeleteMonthlySummary(ctx context.Context, employeeID engine.EmployeeID, year int, month time.Month) error {
	return t.parent.deleteMonthlySummary(ctx, t.q, employeeID, year, month)
}

func (t *txStore) AppendAudit(ctx context.Context, audit engine.EntryAudit) error {
	return t.parent.appendAudit(ctx, t.q, audit)
}

func (t *txStore) AuditsForEntry(ctx context.Context, entryID engine.EntryID) ([]engine.EntryAudit, error) {
	return t.parent.auditsForEntry(ctx, t.q, entryID)
}

// =============================================================================
// HELPERS
// =============================================================================

func (s *Store) parseTime(v string) time.Time {
	t, _ := time.ParseInLocation(timeLayout, v, s.loc)
	return t
}

func (s *Store) parseDate(v string) time.Time {
	t, _ := time.ParseInLocation(dateLayout, v, s.loc)
	return t
}

func (s *Store) nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(timeLayout)
}

func (s *Store) timePtr(v sql.NullString) *time.Time {
	if !v.Valid || v.String == "" {
		return nil
	}
	t := s.parseTime(v.String)
	return &t
}

func nullString(v string) sql.NullString {
	if v == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: v, Valid: true}
}

func nullDecimal(d *decimal.Decimal) any {
	if d == nil {
		return nil
	}
	return d.String()
}

func decimalPtr(v sql.NullString) *decimal.Decimal {
	if !v.Valid || v.String == "" {
		return nil
	}
	d := engine.MustParseDecimal(v.String)
	return &d
}

func marshalSnapshot(snap *engine.EntrySnapshot) (any, error) {
	if snap == nil {
		return nil, nil
	}
	b, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	return string(b), nil
}

func unmarshalSnapshot(v sql.NullString) (*engine.EntrySnapshot, error) {
	if !v.Valid || v.String == "" {
		return nil, nil
	}
	var snap engine.EntrySnapshot
	if err := json.Unmarshal([]byte(v.String), &snap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	return &snap, nil
}

// isOpenEntryConflict detects a violation of idx_one_open_entry. SQLite
// reports plain-column unique indexes by column, not index name, so the
// message is "UNIQUE constraint failed: time_entries.employee_id". The
// employee_id column carries no other unique index.
func isOpenEntryConflict(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique &&
		strings.Contains(sqliteErr.Error(), "time_entries.employee_id")
}
