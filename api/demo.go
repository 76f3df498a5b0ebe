/*
demo.go - Demo roster loaders for development and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with realistic
	data for testing and demos. Each scenario creates employees and a week
	of closed shifts, so summaries, audits, and reports have something to
	show immediately.

AVAILABLE SCENARIOS:

	weekday-crew:  Three employees covering day, evening, and lunch service
	split-shifts:  One waiter working split lunch/dinner service
	cash-payouts:  Cash-payment employee with partly settled entries

HOW SCENARIOS WORK:
 1. Create employees (upsert, safe to repeat)
 2. Record closed shifts for the previous calendar week via the
    correction workflow, so daily and monthly summaries materialize
 3. Optionally stamp payouts

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "weekday-crew"}

NOTE:

	Loaders add data on top of whatever exists. Intended for a fresh
	development database; loading twice duplicates the shifts.

SEE ALSO:
  - server.go: Scenario routes
  - engine/correction.go: CreateEntry used by the loaders
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shiftbook/timeclock-engine/engine"
	"github.com/shopspring/decimal"
)

// demoActor is recorded on all audit rows the loaders create.
const demoActor = engine.ActorID("demo-loader")

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

// ScenarioDTO describes one loadable demo roster.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

var scenarios = []ScenarioDTO{
	{
		ID:          "weekday-crew",
		Name:        "Weekday Crew",
		Description: "Three employees covering day, evening, and lunch service for a week",
		Category:    "clocking",
	},
	{
		ID:          "split-shifts",
		Name:        "Split Shifts",
		Description: "One waiter on split lunch/dinner service, two segments a day",
		Category:    "clocking",
	},
	{
		ID:          "cash-payouts",
		Name:        "Cash Payouts",
		Description: "Cash-payment employee with half the week already handed over",
		Category:    "payroll",
	},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the most recently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	if h.currentScenario == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	for _, s := range scenarios {
		if s.ID == h.currentScenario {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, ScenarioDTO{ID: h.currentScenario, Name: h.currentScenario})
}

// LoadScenario loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ScenarioID string `json:"scenario_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	ctx := r.Context()
	var err error
	switch req.ScenarioID {
	case "weekday-crew":
		err = h.loadWeekdayCrewScenario(ctx)
	case "split-shifts":
		err = h.loadSplitShiftsScenario(ctx)
	case "cash-payouts":
		err = h.loadCashPayoutsScenario(ctx)
	default:
		writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load scenario: %v", err), err)
		return
	}

	h.currentScenario = req.ScenarioID
	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func (h *Handler) loadWeekdayCrewScenario(ctx context.Context) error {
	monday := h.previousMonday()

	if err := h.seedDemoEmployee(ctx, "demo-anna", "Anna Day", "demo-tag-anna", "16.5", false); err != nil {
		return err
	}
	if err := h.seedDemoEmployee(ctx, "demo-ben", "Ben Evening", "demo-tag-ben", "13", false); err != nil {
		return err
	}
	if err := h.seedDemoEmployee(ctx, "demo-maria", "Maria Lunch", "demo-tag-maria", "14", true); err != nil {
		return err
	}

	for day := 0; day < 5; day++ {
		date := monday.AddDate(0, 0, day)
		// Anna: full day shift, statutory break applies
		if err := h.seedDemoShift(ctx, "demo-anna", date, 9, 0, 17, 30, 30); err != nil {
			return err
		}
		// Ben: evening service, under the break threshold
		if err := h.seedDemoShift(ctx, "demo-ben", date, 17, 0, 23, 0, 0); err != nil {
			return err
		}
	}
	// Maria: lunch service three days a week
	for _, day := range []int{0, 2, 4} {
		date := monday.AddDate(0, 0, day)
		if err := h.seedDemoShift(ctx, "demo-maria", date, 11, 0, 15, 0, 0); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) loadSplitShiftsScenario(ctx context.Context) error {
	monday := h.previousMonday()

	if err := h.seedDemoEmployee(ctx, "demo-kurt", "Kurt Split", "demo-tag-kurt", "15", false); err != nil {
		return err
	}
	for day := 0; day < 5; day++ {
		date := monday.AddDate(0, 0, day)
		if err := h.seedDemoShift(ctx, "demo-kurt", date, 11, 0, 14, 30, 0); err != nil {
			return err
		}
		if err := h.seedDemoShift(ctx, "demo-kurt", date, 17, 30, 22, 0, 0); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) loadCashPayoutsScenario(ctx context.Context) error {
	monday := h.previousMonday()

	if err := h.seedDemoEmployee(ctx, "demo-rosa", "Rosa Cash", "demo-tag-rosa", "14", true); err != nil {
		return err
	}
	for day := 0; day < 4; day++ {
		date := monday.AddDate(0, 0, day)
		entry, err := h.createDemoShift(ctx, "demo-rosa", date, 18, 0, 23, 30, 0)
		if err != nil {
			return err
		}
		// First half of the week already handed over
		if day < 2 {
			if _, err := h.Payouts.MarkPaid(ctx, entry.ID); err != nil {
				return err
			}
		}
	}
	return nil
}

// =============================================================================
// SEEDING HELPERS
// =============================================================================

func (h *Handler) seedDemoEmployee(ctx context.Context, id, name, tag, rate string, cash bool) error {
	hourly := engine.MustParseDecimal(rate)
	return h.Store.SaveEmployee(ctx, engine.Employee{
		ID:             engine.EmployeeID(id),
		Name:           name,
		RFIDTag:        tag,
		HourlyRate:     &hourly,
		EmploymentType: engine.EmploymentPermanent,
		CashPayment:    cash,
		CreatedAt:      time.Now().In(h.Location),
	})
}

func (h *Handler) seedDemoShift(ctx context.Context, employee string, date time.Time, inH, inM, outH, outM int, breakMin int) error {
	_, err := h.createDemoShift(ctx, employee, date, inH, inM, outH, outM, breakMin)
	return err
}

func (h *Handler) createDemoShift(ctx context.Context, employee string, date time.Time, inH, inM, outH, outM int, breakMin int) (*engine.TimeEntry, error) {
	params := engine.EntryParams{
		ClockIn:      time.Date(date.Year(), date.Month(), date.Day(), inH, inM, 0, 0, h.Location),
		ClockOut:     time.Date(date.Year(), date.Month(), date.Day(), outH, outM, 0, 0, h.Location),
		BreakMinutes: decimal.NewFromInt(int64(breakMin)),
		Note:         "demo data",
	}
	return h.Corrections.CreateEntry(ctx, engine.EmployeeID(employee), "", params, demoActor)
}

// previousMonday returns midnight of the Monday of last week.
func (h *Handler) previousMonday() time.Time {
	now := time.Now().In(h.Location)
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, h.Location)
	sinceMonday := (int(midnight.Weekday()) + 6) % 7
	return midnight.AddDate(0, 0, -sinceMonday-7)
}
