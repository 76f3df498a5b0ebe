/*
handlers_test.go - HTTP-level tests for the API

Drives the chi router through httptest with the in-memory store behind
it, covering the terminal flow, the correction endpoints, and the error
status mapping.
*/
package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shiftbook/timeclock-engine/api"
	"github.com/shiftbook/timeclock-engine/engine"
	"github.com/shiftbook/timeclock-engine/engine/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

type testAPI struct {
	router http.Handler
	store  *store.Memory
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)

	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	mem := store.NewMemory()
	h := api.NewHandler(mem, loc, log)
	return &testAPI{router: api.NewRouter(h), store: mem}
}

func (a *testAPI) seedEmployee(t *testing.T, id, tag, rate string) {
	t.Helper()
	hourly := engine.MustParseDecimal(rate)
	require.NoError(t, a.store.SaveEmployee(context.Background(), engine.Employee{
		ID:             engine.EmployeeID(id),
		Name:           "Test " + id,
		RFIDTag:        tag,
		HourlyRate:     &hourly,
		EmploymentType: engine.EmploymentPermanent,
	}))
}

// do runs a request through the router and decodes the JSON response.
func (a *testAPI) do(t *testing.T, method, path string, body any, out any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	if out != nil && rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
	}
	return rec
}

func punchBody(tag, at string) map[string]string {
	body := map[string]string{"rfid_tag": tag}
	if at != "" {
		body["at"] = at
	}
	return body
}

// =============================================================================
// TERMINAL FLOW
// =============================================================================

func TestAPI_TerminalClockInOut_FullShift(t *testing.T) {
	// GIVEN: Anna with a registered tag
	a := newTestAPI(t)
	a.seedEmployee(t, "anna", "tag-anna", "15")

	// WHEN: She punches in at 09:07 (rounds to 09:00)
	var entry api.EntryDTO
	rec := a.do(t, http.MethodPost, "/api/clock/in", punchBody("tag-anna", "2024-03-11 09:07:00"), &entry)

	// THEN: An open entry at the rounded time
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "anna", entry.EmployeeID)
	assert.Equal(t, "2024-03-11 09:00:00", entry.ClockIn)
	assert.True(t, entry.Open)
	assert.Nil(t, entry.ClockOut)

	// WHEN: She punches out at 17:07 (rounds to 17:00, 8h elapsed)
	var closed api.EntryDTO
	rec = a.do(t, http.MethodPost, "/api/clock/out", punchBody("tag-anna", "2024-03-11 17:07:00"), &closed)

	// THEN: Break deducted, hours and wage computed
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, closed.Open)
	require.NotNil(t, closed.ClockOut)
	assert.Equal(t, "2024-03-11 17:00:00", *closed.ClockOut)
	assert.Equal(t, "30", closed.BreakMinutes)
	assert.Equal(t, "7.5", closed.TotalHours)
	assert.Equal(t, "112.5", closed.GrossWage)
}

func TestAPI_DoubleClockIn_Returns409(t *testing.T) {
	a := newTestAPI(t)
	a.seedEmployee(t, "anna", "tag-anna", "15")

	rec := a.do(t, http.MethodPost, "/api/clock/in", punchBody("tag-anna", "2024-03-11 09:00:00"), nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	var errResp api.ErrorResponse
	rec = a.do(t, http.MethodPost, "/api/clock/in", punchBody("tag-anna", "2024-03-11 10:00:00"), &errResp)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "Failed to clock in", errResp.Error)
}

func TestAPI_UnknownTag_Returns404(t *testing.T) {
	a := newTestAPI(t)

	rec := a.do(t, http.MethodPost, "/api/clock/in", punchBody("no-such-tag", ""), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPI_ClockOutWithoutOpenEntry_Returns404(t *testing.T) {
	a := newTestAPI(t)
	a.seedEmployee(t, "anna", "tag-anna", "15")

	rec := a.do(t, http.MethodPost, "/api/clock/out", punchBody("tag-anna", ""), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPI_MissingTag_Returns400(t *testing.T) {
	a := newTestAPI(t)

	rec := a.do(t, http.MethodPost, "/api/clock/in", map[string]string{}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPI_ManualPunch_KeepsExactMinute(t *testing.T) {
	a := newTestAPI(t)
	a.seedEmployee(t, "anna", "tag-anna", "15")

	var entry api.EntryDTO
	rec := a.do(t, http.MethodPost, "/api/clock/manual/in",
		map[string]any{"employee_id": "anna", "at": "2024-03-11 09:07:00"}, &entry)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "2024-03-11 09:07:00", entry.ClockIn)
	assert.True(t, entry.IsManual)
}

// =============================================================================
// EMPLOYEES
// =============================================================================

func TestAPI_CreateAndGetEmployee(t *testing.T) {
	a := newTestAPI(t)

	var created api.EmployeeDTO
	rec := a.do(t, http.MethodPost, "/api/employees", map[string]any{
		"id":          "maria",
		"name":        "Maria Stein",
		"rfid_tag":    "tag-maria",
		"hourly_rate": 13.5,
	}, &created)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "permanent", created.EmploymentType)
	require.NotNil(t, created.HourlyRate)
	assert.Equal(t, "13.5", *created.HourlyRate)

	var got api.EmployeeDTO
	rec = a.do(t, http.MethodGet, "/api/employees/maria", nil, &got)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Maria Stein", got.Name)
}

func TestAPI_CreateEmployee_MissingName_Returns400(t *testing.T) {
	a := newTestAPI(t)

	rec := a.do(t, http.MethodPost, "/api/employees", map[string]any{"id": "x"}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPI_GetEmployee_Unknown_Returns404(t *testing.T) {
	a := newTestAPI(t)

	rec := a.do(t, http.MethodGet, "/api/employees/ghost", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPI_EmployeeEntries_IncludesOpenEntry(t *testing.T) {
	a := newTestAPI(t)
	a.seedEmployee(t, "anna", "tag-anna", "15")

	rec := a.do(t, http.MethodPost, "/api/clock/in", punchBody("tag-anna", "2024-03-11 09:00:00"), nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	var entries []api.EntryDTO
	rec = a.do(t, http.MethodGet, "/api/employees/anna/entries?from=2024-03-11&to=2024-03-11", nil, &entries)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].Open)
}

// =============================================================================
// SUMMARIES
// =============================================================================

func TestAPI_DailySummary_AfterClockOut(t *testing.T) {
	a := newTestAPI(t)
	a.seedEmployee(t, "anna", "tag-anna", "15")
	a.do(t, http.MethodPost, "/api/clock/in", punchBody("tag-anna", "2024-03-11 09:00:00"), nil)
	a.do(t, http.MethodPost, "/api/clock/out", punchBody("tag-anna", "2024-03-11 14:00:00"), nil)

	var sum api.DailySummaryDTO
	rec := a.do(t, http.MethodGet, "/api/employees/anna/days/2024-03-11", nil, &sum)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2024-03-11", sum.Date)
	assert.Equal(t, "5", sum.TotalHours)
	assert.Equal(t, 1, sum.Segments)

	var month api.MonthlySummaryDTO
	rec = a.do(t, http.MethodGet, "/api/employees/anna/months/2024/3", nil, &month)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, month.WorkingDays)
}

func TestAPI_DailySummary_Missing_Returns404(t *testing.T) {
	a := newTestAPI(t)
	a.seedEmployee(t, "anna", "tag-anna", "15")

	rec := a.do(t, http.MethodGet, "/api/employees/anna/days/2024-03-11", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPI_MonthlySummary_BadMonth_Returns400(t *testing.T) {
	a := newTestAPI(t)

	rec := a.do(t, http.MethodGet, "/api/employees/anna/months/2024/13", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// CORRECTIONS
// =============================================================================

func TestAPI_CreateEntry_Retroactive(t *testing.T) {
	a := newTestAPI(t)
	a.seedEmployee(t, "anna", "tag-anna", "15")

	var entry api.EntryDTO
	rec := a.do(t, http.MethodPost, "/api/entries", map[string]any{
		"employee_id":   "anna",
		"clock_in":      "2024-03-11 09:00:00",
		"clock_out":     "2024-03-11 17:00:00",
		"break_minutes": 30,
		"actor":         "admin-1",
	}, &entry)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.True(t, entry.IsManual)
	assert.Equal(t, "7.5", entry.TotalHours)

	var audits []api.AuditDTO
	rec = a.do(t, http.MethodGet, "/api/entries/"+entry.ID+"/audits", nil, &audits)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, audits, 1)
	assert.Equal(t, "created", audits[0].Action)
	assert.Equal(t, "admin-1", audits[0].ActorID)
}

func TestAPI_CreateEntry_ReversedTimes_Returns400WithFields(t *testing.T) {
	a := newTestAPI(t)
	a.seedEmployee(t, "anna", "tag-anna", "15")

	var errResp api.ErrorResponse
	rec := a.do(t, http.MethodPost, "/api/entries", map[string]any{
		"employee_id":   "anna",
		"clock_in":      "2024-03-11 17:00:00",
		"clock_out":     "2024-03-11 09:00:00",
		"break_minutes": 0,
		"actor":         "admin-1",
	}, &errResp)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotEmpty(t, errResp.Fields)
	assert.Equal(t, "clock_out", errResp.Fields[0].Field)
}

func TestAPI_UpdateEntry_Revalues(t *testing.T) {
	a := newTestAPI(t)
	a.seedEmployee(t, "anna", "tag-anna", "15")

	var entry api.EntryDTO
	a.do(t, http.MethodPost, "/api/entries", map[string]any{
		"employee_id":   "anna",
		"clock_in":      "2024-03-11 09:00:00",
		"clock_out":     "2024-03-11 17:00:00",
		"break_minutes": 30,
		"actor":         "admin-1",
	}, &entry)

	var updated api.EntryDTO
	rec := a.do(t, http.MethodPut, "/api/entries/"+entry.ID, map[string]any{
		"clock_in":      "2024-03-11 09:00:00",
		"clock_out":     "2024-03-11 18:00:00",
		"break_minutes": 45,
		"actor":         "admin-2",
	}, &updated)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "8.25", updated.TotalHours)
	assert.Equal(t, "123.75", updated.GrossWage)
}

func TestAPI_SplitEntry(t *testing.T) {
	// GIVEN: A closed 09:00-17:00 entry
	a := newTestAPI(t)
	a.seedEmployee(t, "anna", "tag-anna", "15")

	var entry api.EntryDTO
	a.do(t, http.MethodPost, "/api/entries", map[string]any{
		"employee_id":   "anna",
		"clock_in":      "2024-03-11 09:00:00",
		"clock_out":     "2024-03-11 17:00:00",
		"break_minutes": 30,
		"actor":         "admin-1",
	}, &entry)

	// WHEN: It is split into lunch and dinner service
	var segments []api.EntryDTO
	rec := a.do(t, http.MethodPost, "/api/entries/"+entry.ID+"/split", map[string]any{
		"segments": []map[string]any{
			{"clock_in": "2024-03-11 09:00:00", "clock_out": "2024-03-11 13:00:00", "break_minutes": 0},
			{"clock_in": "2024-03-11 14:00:00", "clock_out": "2024-03-11 17:00:00", "break_minutes": 0},
		},
		"actor": "admin-1",
	}, &segments)

	// THEN: Two closed segments, the first keeping the original id
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, segments, 2)
	assert.Equal(t, entry.ID, segments[0].ID)
	assert.NotEqual(t, entry.ID, segments[1].ID)
	assert.Equal(t, "4", segments[0].TotalHours)
	assert.Equal(t, "3", segments[1].TotalHours)
}

func TestAPI_SplitEntry_SingleSegment_Returns400(t *testing.T) {
	a := newTestAPI(t)
	a.seedEmployee(t, "anna", "tag-anna", "15")

	var entry api.EntryDTO
	a.do(t, http.MethodPost, "/api/entries", map[string]any{
		"employee_id":   "anna",
		"clock_in":      "2024-03-11 09:00:00",
		"clock_out":     "2024-03-11 17:00:00",
		"break_minutes": 30,
		"actor":         "admin-1",
	}, &entry)

	rec := a.do(t, http.MethodPost, "/api/entries/"+entry.ID+"/split", map[string]any{
		"segments": []map[string]any{
			{"clock_in": "2024-03-11 09:00:00", "clock_out": "2024-03-11 13:00:00", "break_minutes": 0},
		},
		"actor": "admin-1",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPI_DeleteEntry_RequiresActor(t *testing.T) {
	a := newTestAPI(t)
	a.seedEmployee(t, "anna", "tag-anna", "15")

	var entry api.EntryDTO
	a.do(t, http.MethodPost, "/api/entries", map[string]any{
		"employee_id":   "anna",
		"clock_in":      "2024-03-11 09:00:00",
		"clock_out":     "2024-03-11 17:00:00",
		"break_minutes": 30,
		"actor":         "admin-1",
	}, &entry)

	rec := a.do(t, http.MethodDelete, "/api/entries/"+entry.ID, nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var resp map[string]any
	rec = a.do(t, http.MethodDelete,
		fmt.Sprintf("/api/entries/%s?actor=admin-1&reason=duplicate", entry.ID), nil, &resp)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, entry.ID, resp["deleted"])

	rec = a.do(t, http.MethodGet, "/api/entries/"+entry.ID, nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// =============================================================================
// PAYOUTS
// =============================================================================

func TestAPI_Payout_RoundTrip(t *testing.T) {
	a := newTestAPI(t)
	a.seedEmployee(t, "anna", "tag-anna", "15")

	var entry api.EntryDTO
	a.do(t, http.MethodPost, "/api/entries", map[string]any{
		"employee_id":   "anna",
		"clock_in":      "2024-03-11 09:00:00",
		"clock_out":     "2024-03-11 17:00:00",
		"break_minutes": 30,
		"actor":         "admin-1",
	}, &entry)

	var marked api.EntryDTO
	rec := a.do(t, http.MethodPost, "/api/entries/"+entry.ID+"/payout", nil, &marked)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotNil(t, marked.PaidOutAt)

	var cleared api.EntryDTO
	rec = a.do(t, http.MethodDelete, "/api/entries/"+entry.ID+"/payout", nil, &cleared)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, cleared.PaidOutAt)
}

func TestAPI_Payout_OnOpenEntry_Returns422(t *testing.T) {
	a := newTestAPI(t)
	a.seedEmployee(t, "anna", "tag-anna", "15")

	var open api.EntryDTO
	rec := a.do(t, http.MethodPost, "/api/clock/in", punchBody("tag-anna", "2024-03-11 09:00:00"), &open)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = a.do(t, http.MethodPost, "/api/entries/"+open.ID+"/payout", nil, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

// =============================================================================
// BREAK RULES
// =============================================================================

func TestAPI_BreakRules_PutThenGet(t *testing.T) {
	a := newTestAPI(t)

	rec := a.do(t, http.MethodPut, "/api/break-rules", map[string]any{
		"rules": []map[string]any{
			{"min_hours": 4, "break_minutes": 20},
			{"min_hours": 8, "break_minutes": 40},
		},
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var rules api.BreakRulesDTO
	rec = a.do(t, http.MethodGet, "/api/break-rules", nil, &rules)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, rules.Rules, 2)
	assert.Equal(t, 4.0, rules.Rules[0].MinHours)
	assert.Equal(t, 40.0, rules.Rules[1].BreakMinutes)
}

func TestAPI_BreakRules_GovernClockOut(t *testing.T) {
	// GIVEN: A custom table with a 4h threshold
	a := newTestAPI(t)
	a.seedEmployee(t, "anna", "tag-anna", "15")
	rec := a.do(t, http.MethodPut, "/api/break-rules", map[string]any{
		"rules": []map[string]any{{"min_hours": 4, "break_minutes": 20}},
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// WHEN: A 5h shift closes
	a.do(t, http.MethodPost, "/api/clock/in", punchBody("tag-anna", "2024-03-11 09:00:00"), nil)
	var closed api.EntryDTO
	rec = a.do(t, http.MethodPost, "/api/clock/out", punchBody("tag-anna", "2024-03-11 14:00:00"), &closed)

	// THEN: The configured rule applies instead of the default table
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "20", closed.BreakMinutes)
}

// =============================================================================
// DEMO SCENARIOS
// =============================================================================

func TestAPI_Scenarios_LoadWeekdayCrew(t *testing.T) {
	a := newTestAPI(t)

	var list []api.ScenarioDTO
	rec := a.do(t, http.MethodGet, "/api/scenarios", nil, &list)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, list)

	var resp map[string]string
	rec = a.do(t, http.MethodPost, "/api/scenarios/load", map[string]string{"scenario_id": "weekday-crew"}, &resp)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "loaded", resp["status"])

	var employees []api.EmployeeDTO
	rec = a.do(t, http.MethodGet, "/api/employees", nil, &employees)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, employees, 3)

	var current api.ScenarioDTO
	rec = a.do(t, http.MethodGet, "/api/scenarios/current", nil, &current)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "weekday-crew", current.ID)
}

func TestAPI_Scenarios_UnknownID_Returns400(t *testing.T) {
	a := newTestAPI(t)

	rec := a.do(t, http.MethodPost, "/api/scenarios/load", map[string]string{"scenario_id": "nope"}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPI_Healthz(t *testing.T) {
	a := newTestAPI(t)
	rec := a.do(t, http.MethodGet, "/healthz", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
