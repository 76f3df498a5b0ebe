/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

TYPES:
  Employee:
    EmployeeDTO, CreateEmployeeRequest

  Clocking:
    PunchRequest, ManualPunchRequest

  Entries:
    EntryDTO, CreateEntryRequest, UpdateEntryRequest, SplitEntryRequest

  Summaries:
    DailySummaryDTO, MonthlySummaryDTO

  Audit:
    AuditDTO

  Break rules:
    BreakRulesDTO (wraps factory.BreakConfigJSON)

TIME FORMAT:
  Clock times travel as local wall-clock strings ("2006-01-02 15:04:05"),
  matching what the terminal displays and what the store persists. No
  timezone suffix; the server's configured location is authoritative.

MONEY FORMAT:
  Decimals are serialized as JSON strings ("10.47") to keep clients from
  binary-float rounding. shopspring/decimal does this natively.

VALIDATION:
  Request types carry go-playground/validator struct tags; handlers run
  them through a shared validator instance before touching the engine.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/rules.go: BreakConfigJSON type
*/
package api

import (
	"time"

	"github.com/shiftbook/timeclock-engine/engine"
	"github.com/shiftbook/timeclock-engine/factory"
	"github.com/shopspring/decimal"
)

const clockLayout = "2006-01-02 15:04:05"

// =============================================================================
// EMPLOYEES
// =============================================================================

// EmployeeDTO represents an employee in API responses.
type EmployeeDTO struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	RFIDTag         string  `json:"rfid_tag,omitempty"`
	HourlyRate      *string `json:"hourly_rate,omitempty"`
	EmploymentType  string  `json:"employment_type"`
	CashPayment     bool    `json:"cash_payment"`
	MaxMonthlyHours *string `json:"max_monthly_hours,omitempty"`
	CreatedAt       string  `json:"created_at,omitempty"`
}

// CreateEmployeeRequest is the request to create an employee.
type CreateEmployeeRequest struct {
	ID              string   `json:"id" validate:"required"`
	Name            string   `json:"name" validate:"required"`
	RFIDTag         string   `json:"rfid_tag,omitempty"`
	HourlyRate      *float64 `json:"hourly_rate,omitempty" validate:"omitempty,gte=0"`
	EmploymentType  string   `json:"employment_type" validate:"omitempty,oneof=permanent temporary"`
	CashPayment     bool     `json:"cash_payment,omitempty"`
	MaxMonthlyHours *float64 `json:"max_monthly_hours,omitempty" validate:"omitempty,gt=0"`
}

// =============================================================================
// CLOCKING
// =============================================================================

// PunchRequest is a terminal punch: RFID tag, quarter-hour rounding applied.
type PunchRequest struct {
	RFIDTag string `json:"rfid_tag" validate:"required"`
	// At overrides the punch time; defaults to now. Local wall clock.
	At string `json:"at,omitempty"`
}

// ManualPunchRequest is an admin punch: employee id, exact minute kept.
type ManualPunchRequest struct {
	EmployeeID   string   `json:"employee_id" validate:"required"`
	At           string   `json:"at,omitempty"`
	ShiftID      string   `json:"shift_id,omitempty"`
	BreakMinutes *float64 `json:"break_minutes,omitempty" validate:"omitempty,gte=0"`
}

// =============================================================================
// ENTRIES
// =============================================================================

// EntryDTO represents a time entry in API responses.
type EntryDTO struct {
	ID                 string  `json:"id"`
	EmployeeID         string  `json:"employee_id"`
	ShiftID            string  `json:"shift_id,omitempty"`
	ClockIn            string  `json:"clock_in"`
	ClockOut           *string `json:"clock_out,omitempty"`
	BreakMinutes       string  `json:"break_minutes"`
	TotalHours         string  `json:"total_hours"`
	GrossWage          string  `json:"gross_wage"`
	OverrideHourlyRate *string `json:"override_hourly_rate,omitempty"`
	AdminNote          string  `json:"admin_note,omitempty"`
	IsManual           bool    `json:"is_manual"`
	PaidOutAt          *string `json:"paid_out_at,omitempty"`
	Open               bool    `json:"open"`
}

// CreateEntryRequest creates a closed entry retroactively.
type CreateEntryRequest struct {
	EmployeeID         string   `json:"employee_id" validate:"required"`
	ShiftID            string   `json:"shift_id,omitempty"`
	ClockIn            string   `json:"clock_in" validate:"required"`
	ClockOut           string   `json:"clock_out" validate:"required"`
	BreakMinutes       float64  `json:"break_minutes" validate:"gte=0"`
	OverrideHourlyRate *float64 `json:"override_hourly_rate,omitempty" validate:"omitempty,gte=0"`
	Note               string   `json:"note,omitempty"`
	Actor              string   `json:"actor" validate:"required"`
}

// UpdateEntryRequest corrects an existing entry.
type UpdateEntryRequest struct {
	ClockIn            string   `json:"clock_in" validate:"required"`
	ClockOut           string   `json:"clock_out" validate:"required"`
	BreakMinutes       float64  `json:"break_minutes" validate:"gte=0"`
	OverrideHourlyRate *float64 `json:"override_hourly_rate,omitempty" validate:"omitempty,gte=0"`
	Note               string   `json:"note,omitempty"`
	Actor              string   `json:"actor" validate:"required"`
}

// SplitEntryRequest splits one entry into two or more segments.
type SplitEntryRequest struct {
	Segments []SegmentRequest `json:"segments" validate:"required,min=2,dive"`
	Note     string           `json:"note,omitempty"`
	Actor    string           `json:"actor" validate:"required"`
}

// SegmentRequest is one piece of a split.
type SegmentRequest struct {
	ClockIn      string  `json:"clock_in" validate:"required"`
	ClockOut     string  `json:"clock_out" validate:"required"`
	BreakMinutes float64 `json:"break_minutes" validate:"gte=0"`
}

// =============================================================================
// SUMMARIES
// =============================================================================

// DailySummaryDTO represents one day's rollup.
type DailySummaryDTO struct {
	EmployeeID        string `json:"employee_id"`
	Date              string `json:"date"`
	TotalHours        string `json:"total_hours"`
	TotalBreakMinutes string `json:"total_break_minutes"`
	Segments          int    `json:"segments"`
}

// MonthlySummaryDTO represents one month's rollup.
type MonthlySummaryDTO struct {
	EmployeeID        string `json:"employee_id"`
	Year              int    `json:"year"`
	Month             int    `json:"month"`
	TotalHours        string `json:"total_hours"`
	TotalBreakMinutes string `json:"total_break_minutes"`
	WorkingDays       int    `json:"working_days"`
}

// =============================================================================
// AUDIT
// =============================================================================

// AuditDTO represents one audit record.
type AuditDTO struct {
	ID        string                `json:"id"`
	EntryID   string                `json:"entry_id"`
	ActorID   string                `json:"actor_id"`
	Action    string                `json:"action"`
	OldValues *engine.EntrySnapshot `json:"old_values,omitempty"`
	NewValues *engine.EntrySnapshot `json:"new_values,omitempty"`
	Note      string                `json:"note,omitempty"`
	Metadata  map[string]string     `json:"metadata,omitempty"`
	CreatedAt string                `json:"created_at"`
}

// =============================================================================
// BREAK RULES
// =============================================================================

// BreakRulesDTO wraps the break table config for GET/PUT.
type BreakRulesDTO struct {
	Rules []factory.BreakRuleJSON `json:"rules" validate:"required,dive"`
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrorResponse is the JSON error envelope. Fields carries field-level
// validation failures for correction UIs.
type ErrorResponse struct {
	Error   string              `json:"error"`
	Details string              `json:"details,omitempty"`
	Fields  []engine.FieldError `json:"fields,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toEmployeeDTO(e engine.Employee) EmployeeDTO {
	return EmployeeDTO{
		ID:              string(e.ID),
		Name:            e.Name,
		RFIDTag:         e.RFIDTag,
		HourlyRate:      decimalString(e.HourlyRate),
		EmploymentType:  string(e.EmploymentType),
		CashPayment:     e.CashPayment,
		MaxMonthlyHours: decimalString(e.MaxMonthlyHours),
		CreatedAt:       e.CreatedAt.Format(time.RFC3339),
	}
}

func toEntryDTO(e engine.TimeEntry) EntryDTO {
	return EntryDTO{
		ID:                 string(e.ID),
		EmployeeID:         string(e.EmployeeID),
		ShiftID:            string(e.ShiftID),
		ClockIn:            e.ClockIn.Format(clockLayout),
		ClockOut:           clockString(e.ClockOut),
		BreakMinutes:       e.BreakMinutes.String(),
		TotalHours:         e.TotalHours.String(),
		GrossWage:          e.GrossWage.String(),
		OverrideHourlyRate: decimalString(e.OverrideHourlyRate),
		AdminNote:          e.AdminNote,
		IsManual:           e.IsManual,
		PaidOutAt:          clockString(e.PaidOutAt),
		Open:               e.IsOpen(),
	}
}

func toDailySummaryDTO(s engine.DailySummary) DailySummaryDTO {
	return DailySummaryDTO{
		EmployeeID:        string(s.EmployeeID),
		Date:              s.Date.Format("2006-01-02"),
		TotalHours:        s.TotalHours.String(),
		TotalBreakMinutes: s.TotalBreakMinutes.String(),
		Segments:          s.Segments,
	}
}

func toMonthlySummaryDTO(s engine.MonthlySummary) MonthlySummaryDTO {
	return MonthlySummaryDTO{
		EmployeeID:        string(s.EmployeeID),
		Year:              s.Year,
		Month:             int(s.Month),
		TotalHours:        s.TotalHours.String(),
		TotalBreakMinutes: s.TotalBreakMinutes.String(),
		WorkingDays:       s.WorkingDays,
	}
}

func toAuditDTO(a engine.EntryAudit) AuditDTO {
	return AuditDTO{
		ID:        string(a.ID),
		EntryID:   string(a.EntryID),
		ActorID:   string(a.ActorID),
		Action:    string(a.Action),
		OldValues: a.OldValues,
		NewValues: a.NewValues,
		Note:      a.Note,
		Metadata:  a.Metadata,
		CreatedAt: a.CreatedAt.Format(time.RFC3339),
	}
}

func decimalString(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := d.String()
	return &s
}

func clockString(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(clockLayout)
	return &s
}

func floatDecimal(v *float64) *decimal.Decimal {
	if v == nil {
		return nil
	}
	d := decimal.NewFromFloat(*v)
	return &d
}
