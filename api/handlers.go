/*
handlers.go - HTTP API handlers for the time clock engine

PURPOSE:
  Exposes the time clock engine via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Clocking:
    POST   /api/clock/in               Terminal clock-in (RFID, rounded)
    POST   /api/clock/out              Terminal clock-out (RFID, rounded)
    POST   /api/clock/manual/in        Admin clock-in (exact minute)
    POST   /api/clock/manual/out       Admin clock-out (exact minute)

  Employees:
    GET    /api/employees              List all employees
    POST   /api/employees              Create employee
    GET    /api/employees/{id}         Get employee details
    GET    /api/employees/{id}/entries Closed+open entries in a range
    GET    /api/employees/{id}/days/{date}            Daily summary
    GET    /api/employees/{id}/months/{year}/{month}  Monthly summary

  Entries (corrections):
    POST   /api/entries                Create closed entry retroactively
    GET    /api/entries/{id}           Get one entry
    PUT    /api/entries/{id}           Correct times/break/rate
    POST   /api/entries/{id}/split     Split into 2+ segments
    DELETE /api/entries/{id}           Remove (reason in ?reason=, actor in ?actor=)
    GET    /api/entries/{id}/audits    Audit trail, newest first
    POST   /api/entries/{id}/payout    Mark paid out (cash)
    DELETE /api/entries/{id}/payout    Undo payout mark

  Break rules:
    GET    /api/break-rules            Current table
    PUT    /api/break-rules            Replace table

ERROR HANDLING:
  Engine errors are classified, not string-matched:
  - 400: engine.IsValidation (field details included)
  - 404: engine.IsNotFound
  - 409: engine.IsConflict (open entry attached in details)
  - 422: engine.IsPrecondition (e.g. payout on an open entry)
  - 500: everything else

SECURITY NOTE:
  Currently NO authentication or authorization. The terminal endpoints
  trust the RFID tag; the correction endpoints trust the submitted actor.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shiftbook/timeclock-engine/engine"
	"github.com/shiftbook/timeclock-engine/factory"
	"github.com/sirupsen/logrus"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store       engine.TxStore
	Lifecycle   *engine.Lifecycle
	Corrections *engine.Corrections
	Payouts     *engine.Payouts
	Agg         *engine.Aggregator
	Location    *time.Location
	Log         logrus.FieldLogger

	validate        *validator.Validate
	currentScenario string
}

// NewHandler creates a new handler with the given store.
func NewHandler(store engine.TxStore, loc *time.Location, log logrus.FieldLogger) *Handler {
	if loc == nil {
		loc = engine.DefaultLocation()
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Handler{
		Store:       store,
		Lifecycle:   engine.NewLifecycle(store, loc, log),
		Corrections: engine.NewCorrections(store, loc),
		Payouts:     engine.NewPayouts(store, loc),
		Agg:         engine.NewAggregator(store, loc),
		Location:    loc,
		Log:         log,
		validate:    validator.New(),
	}
}

// decode parses and validates a JSON request body.
func (h *Handler) decode(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return h.validate.Struct(dst)
}

// punchTime parses an optional wall-clock override, defaulting to now.
func (h *Handler) punchTime(raw string) (time.Time, error) {
	if raw == "" {
		return time.Now().In(h.Location), nil
	}
	t, err := time.ParseInLocation(clockLayout, raw, h.Location)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q (use %s)", raw, clockLayout)
	}
	return t, nil
}

// =============================================================================
// CLOCKING
// =============================================================================

// TerminalClockIn handles an RFID punch-in.
// POST /api/clock/in
func (h *Handler) TerminalClockIn(w http.ResponseWriter, r *http.Request) {
	var req PunchRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	at, err := h.punchTime(req.At)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid punch time", err)
		return
	}

	entry, err := h.Lifecycle.ClockInByTag(r.Context(), req.RFIDTag, at)
	if err != nil {
		writeEngineError(w, "Failed to clock in", err)
		return
	}
	writeJSON(w, http.StatusCreated, toEntryDTO(*entry))
}

// TerminalClockOut handles an RFID punch-out.
// POST /api/clock/out
func (h *Handler) TerminalClockOut(w http.ResponseWriter, r *http.Request) {
	var req PunchRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	at, err := h.punchTime(req.At)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid punch time", err)
		return
	}

	entry, err := h.Lifecycle.ClockOutByTag(r.Context(), req.RFIDTag, at)
	if err != nil {
		writeEngineError(w, "Failed to clock out", err)
		return
	}
	writeJSON(w, http.StatusOK, toEntryDTO(*entry))
}

// ManualClockIn opens a segment for an employee at the exact minute.
// POST /api/clock/manual/in
func (h *Handler) ManualClockIn(w http.ResponseWriter, r *http.Request) {
	var req ManualPunchRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	at, err := h.punchTime(req.At)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid punch time", err)
		return
	}

	entry, err := h.Lifecycle.ClockIn(r.Context(), engine.EmployeeID(req.EmployeeID), at, engine.PunchOptions{
		ShiftID: engine.ShiftID(req.ShiftID),
		Manual:  true,
	})
	if err != nil {
		writeEngineError(w, "Failed to clock in", err)
		return
	}
	writeJSON(w, http.StatusCreated, toEntryDTO(*entry))
}

// ManualClockOut closes a segment at the exact minute, optionally with a
// break override.
// POST /api/clock/manual/out
func (h *Handler) ManualClockOut(w http.ResponseWriter, r *http.Request) {
	var req ManualPunchRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	at, err := h.punchTime(req.At)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid punch time", err)
		return
	}

	entry, err := h.Lifecycle.ClockOut(r.Context(), engine.EmployeeID(req.EmployeeID), at, engine.CloseOptions{
		BreakOverride: floatDecimal(req.BreakMinutes),
	})
	if err != nil {
		writeEngineError(w, "Failed to clock out", err)
		return
	}
	writeJSON(w, http.StatusOK, toEntryDTO(*entry))
}

// =============================================================================
// EMPLOYEE HANDLERS
// =============================================================================

// ListEmployees returns all employees.
// GET /api/employees
func (h *Handler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	employees, err := h.Store.ListEmployees(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list employees", err)
		return
	}

	dtos := make([]EmployeeDTO, len(employees))
	for i, e := range employees {
		dtos[i] = toEmployeeDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetEmployee returns a single employee.
// GET /api/employees/{id}
func (h *Handler) GetEmployee(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	emp, err := h.Store.GetEmployee(r.Context(), engine.EmployeeID(id))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get employee", err)
		return
	}
	if emp == nil {
		writeError(w, http.StatusNotFound, "Employee not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toEmployeeDTO(*emp))
}

// CreateEmployee creates or updates an employee record.
// POST /api/employees
func (h *Handler) CreateEmployee(w http.ResponseWriter, r *http.Request) {
	var req CreateEmployeeRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	employmentType := engine.EmploymentType(req.EmploymentType)
	if req.EmploymentType == "" {
		employmentType = engine.EmploymentPermanent
	}
	emp := engine.Employee{
		ID:              engine.EmployeeID(req.ID),
		Name:            req.Name,
		RFIDTag:         req.RFIDTag,
		HourlyRate:      floatDecimal(req.HourlyRate),
		EmploymentType:  employmentType,
		CashPayment:     req.CashPayment,
		MaxMonthlyHours: floatDecimal(req.MaxMonthlyHours),
		CreatedAt:       time.Now().In(h.Location),
	}
	if err := h.Store.SaveEmployee(r.Context(), emp); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create employee", err)
		return
	}
	writeJSON(w, http.StatusCreated, toEmployeeDTO(emp))
}

// GetEmployeeEntries returns the employee's entries in [from, to),
// including an open entry when present.
// GET /api/employees/{id}/entries?from=YYYY-MM-DD&to=YYYY-MM-DD
func (h *Handler) GetEmployeeEntries(w http.ResponseWriter, r *http.Request) {
	id := engine.EmployeeID(chi.URLParam(r, "id"))
	from, to, err := h.dateRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date range", err)
		return
	}

	entries, err := h.Store.ClosedEntriesInRange(r.Context(), id, from, to)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get entries", err)
		return
	}
	open, err := h.Store.OpenEntry(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get open entry", err)
		return
	}

	dtos := make([]EntryDTO, 0, len(entries)+1)
	for _, e := range entries {
		dtos = append(dtos, toEntryDTO(e))
	}
	if open != nil && !open.ClockIn.Before(from) && open.ClockIn.Before(to) {
		dtos = append(dtos, toEntryDTO(*open))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetDailySummary returns the rollup for one day.
// GET /api/employees/{id}/days/{date}
func (h *Handler) GetDailySummary(w http.ResponseWriter, r *http.Request) {
	id := engine.EmployeeID(chi.URLParam(r, "id"))
	date, err := time.ParseInLocation("2006-01-02", chi.URLParam(r, "date"), h.Location)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date (use YYYY-MM-DD)", err)
		return
	}

	sum, err := h.Store.GetDailySummary(r.Context(), id, date)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get daily summary", err)
		return
	}
	if sum == nil {
		writeError(w, http.StatusNotFound, "No summary for that day", nil)
		return
	}
	writeJSON(w, http.StatusOK, toDailySummaryDTO(*sum))
}

// GetMonthlySummary returns the rollup for one month.
// GET /api/employees/{id}/months/{year}/{month}
func (h *Handler) GetMonthlySummary(w http.ResponseWriter, r *http.Request) {
	id := engine.EmployeeID(chi.URLParam(r, "id"))
	year, err := strconv.Atoi(chi.URLParam(r, "year"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid year", err)
		return
	}
	monthInt, err := strconv.Atoi(chi.URLParam(r, "month"))
	if err != nil || monthInt < 1 || monthInt > 12 {
		writeError(w, http.StatusBadRequest, "Invalid month", err)
		return
	}

	sum, err := h.Store.GetMonthlySummary(r.Context(), id, year, time.Month(monthInt))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get monthly summary", err)
		return
	}
	if sum == nil {
		writeError(w, http.StatusNotFound, "No summary for that month", nil)
		return
	}
	writeJSON(w, http.StatusOK, toMonthlySummaryDTO(*sum))
}

// =============================================================================
// ENTRY CORRECTION HANDLERS
// =============================================================================

// CreateEntry records a closed segment after the fact.
// POST /api/entries
func (h *Handler) CreateEntry(w http.ResponseWriter, r *http.Request) {
	var req CreateEntryRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	params, err := h.entryParams(req.ClockIn, req.ClockOut, req.BreakMinutes, req.OverrideHourlyRate, req.Note)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid entry times", err)
		return
	}

	entry, err := h.Corrections.CreateEntry(r.Context(),
		engine.EmployeeID(req.EmployeeID), engine.ShiftID(req.ShiftID), params, engine.ActorID(req.Actor))
	if err != nil {
		writeEngineError(w, "Failed to create entry", err)
		return
	}
	writeJSON(w, http.StatusCreated, toEntryDTO(*entry))
}

// GetEntry returns a single entry.
// GET /api/entries/{id}
func (h *Handler) GetEntry(w http.ResponseWriter, r *http.Request) {
	id := engine.EntryID(chi.URLParam(r, "id"))
	entry, err := h.Store.GetEntry(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get entry", err)
		return
	}
	if entry == nil {
		writeError(w, http.StatusNotFound, "Entry not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toEntryDTO(*entry))
}

// UpdateEntry corrects an entry's times, break, rate, or note.
// PUT /api/entries/{id}
func (h *Handler) UpdateEntry(w http.ResponseWriter, r *http.Request) {
	id := engine.EntryID(chi.URLParam(r, "id"))
	var req UpdateEntryRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	params, err := h.entryParams(req.ClockIn, req.ClockOut, req.BreakMinutes, req.OverrideHourlyRate, req.Note)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid entry times", err)
		return
	}

	entry, err := h.Corrections.UpdateEntry(r.Context(), id, params, engine.ActorID(req.Actor))
	if err != nil {
		writeEngineError(w, "Failed to update entry", err)
		return
	}
	writeJSON(w, http.StatusOK, toEntryDTO(*entry))
}

// SplitEntry splits a closed entry into two or more segments.
// POST /api/entries/{id}/split
func (h *Handler) SplitEntry(w http.ResponseWriter, r *http.Request) {
	id := engine.EntryID(chi.URLParam(r, "id"))
	var req SplitEntryRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	segments := make([]engine.Segment, 0, len(req.Segments))
	for _, s := range req.Segments {
		in, err := time.ParseInLocation(clockLayout, s.ClockIn, h.Location)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid segment clock_in", err)
			return
		}
		out, err := time.ParseInLocation(clockLayout, s.ClockOut, h.Location)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid segment clock_out", err)
			return
		}
		segments = append(segments, engine.Segment{
			ClockIn:      in,
			ClockOut:     out,
			BreakMinutes: *floatDecimal(&s.BreakMinutes),
		})
	}

	result, err := h.Corrections.SplitEntry(r.Context(), id, segments, engine.ActorID(req.Actor), req.Note)
	if err != nil {
		writeEngineError(w, "Failed to split entry", err)
		return
	}
	dtos := make([]EntryDTO, len(result))
	for i, e := range result {
		dtos[i] = toEntryDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// DeleteEntry removes an entry, leaving a tombstone audit.
// DELETE /api/entries/{id}?actor=&reason=
func (h *Handler) DeleteEntry(w http.ResponseWriter, r *http.Request) {
	id := engine.EntryID(chi.URLParam(r, "id"))
	actor := r.URL.Query().Get("actor")
	if actor == "" {
		writeError(w, http.StatusBadRequest, "actor query parameter is required", nil)
		return
	}

	err := h.Corrections.DeleteEntry(r.Context(), id, engine.ActorID(actor), r.URL.Query().Get("reason"))
	if err != nil {
		writeEngineError(w, "Failed to delete entry", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": string(id)})
}

// GetEntryAudits returns the audit trail for an entry, newest first.
// GET /api/entries/{id}/audits
func (h *Handler) GetEntryAudits(w http.ResponseWriter, r *http.Request) {
	id := engine.EntryID(chi.URLParam(r, "id"))
	audits, err := h.Corrections.AuditLog(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get audits", err)
		return
	}

	dtos := make([]AuditDTO, len(audits))
	for i, a := range audits {
		dtos[i] = toAuditDTO(a)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// PAYOUT HANDLERS
// =============================================================================

// MarkPayout stamps a closed entry as handed over in cash.
// POST /api/entries/{id}/payout
func (h *Handler) MarkPayout(w http.ResponseWriter, r *http.Request) {
	id := engine.EntryID(chi.URLParam(r, "id"))
	entry, err := h.Payouts.MarkPaid(r.Context(), id)
	if err != nil {
		writeEngineError(w, "Failed to mark payout", err)
		return
	}
	writeJSON(w, http.StatusOK, toEntryDTO(*entry))
}

// UnmarkPayout clears the payout stamp.
// DELETE /api/entries/{id}/payout
func (h *Handler) UnmarkPayout(w http.ResponseWriter, r *http.Request) {
	id := engine.EntryID(chi.URLParam(r, "id"))
	entry, err := h.Payouts.UnmarkPaid(r.Context(), id)
	if err != nil {
		writeEngineError(w, "Failed to unmark payout", err)
		return
	}
	writeJSON(w, http.StatusOK, toEntryDTO(*entry))
}

// =============================================================================
// BREAK RULE HANDLERS
// =============================================================================

// GetBreakRules returns the configured break table.
// GET /api/break-rules
func (h *Handler) GetBreakRules(w http.ResponseWriter, r *http.Request) {
	table, err := h.Store.BreakRules(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get break rules", err)
		return
	}
	writeJSON(w, http.StatusOK, BreakRulesDTO{Rules: factory.ToJSON(table).Rules})
}

// PutBreakRules replaces the break table.
// PUT /api/break-rules
func (h *Handler) PutBreakRules(w http.ResponseWriter, r *http.Request) {
	var req BreakRulesDTO
	if err := h.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	table, err := factory.FromJSON(factory.BreakConfigJSON{Rules: req.Rules})
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid break rules", err)
		return
	}
	if err := h.Store.ReplaceBreakRules(r.Context(), table); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save break rules", err)
		return
	}
	writeJSON(w, http.StatusOK, BreakRulesDTO{Rules: factory.ToJSON(table).Rules})
}

// =============================================================================
// HELPERS
// =============================================================================

func (h *Handler) entryParams(clockIn, clockOut string, breakMinutes float64, overrideRate *float64, note string) (engine.EntryParams, error) {
	in, err := time.ParseInLocation(clockLayout, clockIn, h.Location)
	if err != nil {
		return engine.EntryParams{}, fmt.Errorf("invalid clock_in %q (use %s)", clockIn, clockLayout)
	}
	out, err := time.ParseInLocation(clockLayout, clockOut, h.Location)
	if err != nil {
		return engine.EntryParams{}, fmt.Errorf("invalid clock_out %q (use %s)", clockOut, clockLayout)
	}
	return engine.EntryParams{
		ClockIn:            in,
		ClockOut:           out,
		BreakMinutes:       *floatDecimal(&breakMinutes),
		OverrideHourlyRate: floatDecimal(overrideRate),
		Note:               note,
	}, nil
}

// dateRange parses ?from= and ?to= as local dates. to is exclusive and
// extended by one day so "to=2024-03-31" includes the 31st.
func (h *Handler) dateRange(r *http.Request) (time.Time, time.Time, error) {
	fromStr := r.URL.Query().Get("from")
	toStr := r.URL.Query().Get("to")
	if fromStr == "" || toStr == "" {
		return time.Time{}, time.Time{}, fmt.Errorf("from and to query parameters are required")
	}
	from, err := time.ParseInLocation("2006-01-02", fromStr, h.Location)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid from date: %w", err)
	}
	to, err := time.ParseInLocation("2006-01-02", toStr, h.Location)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid to date: %w", err)
	}
	return from, to.AddDate(0, 0, 1), nil
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeEngineError maps the engine's error taxonomy onto HTTP status codes.
func writeEngineError(w http.ResponseWriter, message string, err error) {
	var vErr *engine.ValidationError
	if errors.As(err, &vErr) {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   message,
			Details: vErr.Error(),
			Fields:  vErr.Fields,
		})
		return
	}

	switch {
	case engine.IsConflict(err):
		writeError(w, http.StatusConflict, message, err)
	case engine.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case engine.IsValidation(err):
		writeError(w, http.StatusBadRequest, message, err)
	case engine.IsPrecondition(err):
		writeError(w, http.StatusUnprocessableEntity, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}
