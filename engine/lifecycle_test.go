package engine_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shiftbook/timeclock-engine/engine"
	"github.com/shiftbook/timeclock-engine/engine/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func dec(s string) decimal.Decimal {
	return engine.MustParseDecimal(s)
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func loc(t *testing.T) *time.Location {
	t.Helper()
	l, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)
	return l
}

func ts(t *testing.T, value string) time.Time {
	t.Helper()
	v, err := time.ParseInLocation("2006-01-02 15:04:05", value, loc(t))
	require.NoError(t, err)
	return v
}

func quietLog() logrus.FieldLogger {
	l := logrus.New()
	l.SetLevel(logrus.ErrorLevel)
	return l
}

func newTestLifecycle(t *testing.T) (*engine.Lifecycle, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	return engine.NewLifecycle(mem, loc(t), quietLog()), mem
}

func seedEmployee(t *testing.T, s engine.Store, id, tag, rate string) engine.Employee {
	t.Helper()
	emp := engine.Employee{
		ID:             engine.EmployeeID(id),
		Name:           "Test " + id,
		RFIDTag:        tag,
		HourlyRate:     decPtr(rate),
		EmploymentType: engine.EmploymentPermanent,
		CreatedAt:      time.Now(),
	}
	require.NoError(t, s.SaveEmployee(context.Background(), emp))
	return emp
}

// =============================================================================
// CLOCK IN
// =============================================================================

func TestLifecycle_ClockIn_CreatesOpenEntry(t *testing.T) {
	lc, mem := newTestLifecycle(t)
	seedEmployee(t, mem, "anna", "tag-anna", "15")
	ctx := context.Background()

	entry, err := lc.ClockIn(ctx, "anna", ts(t, "2024-03-11 09:02:00"), engine.PunchOptions{})
	require.NoError(t, err)

	assert.True(t, entry.IsOpen())
	assert.Equal(t, ts(t, "2024-03-11 09:02:00"), entry.ClockIn)
	assert.False(t, entry.IsManual)

	open, err := mem.OpenEntry(ctx, "anna")
	require.NoError(t, err)
	require.NotNil(t, open)
	assert.Equal(t, entry.ID, open.ID)
}

func TestLifecycle_ClockIn_TerminalRoundsToQuarterHour(t *testing.T) {
	lc, mem := newTestLifecycle(t)
	seedEmployee(t, mem, "anna", "tag-anna", "15")

	entry, err := lc.ClockInByTag(context.Background(), "tag-anna", ts(t, "2024-03-11 09:07:00"))
	require.NoError(t, err)

	assert.Equal(t, ts(t, "2024-03-11 09:00:00"), entry.ClockIn)
}

func TestLifecycle_ClockIn_SecondPunchConflicts(t *testing.T) {
	// GIVEN: Anna is already clocked in
	lc, mem := newTestLifecycle(t)
	seedEmployee(t, mem, "anna", "tag-anna", "15")
	ctx := context.Background()

	first, err := lc.ClockIn(ctx, "anna", ts(t, "2024-03-11 09:00:00"), engine.PunchOptions{})
	require.NoError(t, err)

	// WHEN: She punches in again
	_, err = lc.ClockIn(ctx, "anna", ts(t, "2024-03-11 09:30:00"), engine.PunchOptions{})

	// THEN: Conflict, carrying the existing open entry
	require.Error(t, err)
	assert.True(t, engine.IsConflict(err))

	var conflict *engine.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, first.ID, conflict.OpenEntry.ID)
}

func TestLifecycle_ClockIn_ConcurrentPunchesOneWinner(t *testing.T) {
	// GIVEN: Two simultaneous punches for the same employee, as when a
	// badge is scanned twice in quick succession
	lc, mem := newTestLifecycle(t)
	seedEmployee(t, mem, "anna", "tag-anna", "15")
	ctx := context.Background()

	at := ts(t, "2024-03-11 09:00:00")
	start := make(chan struct{})
	results := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			<-start
			_, err := lc.ClockIn(ctx, "anna", at, engine.PunchOptions{})
			results <- err
		}()
	}
	close(start)

	// THEN: Exactly one punch opens an entry, the other conflicts
	var successes, conflicts int
	for i := 0; i < 2; i++ {
		err := <-results
		if err == nil {
			successes++
			continue
		}
		assert.True(t, engine.IsConflict(err))
		conflicts++
	}
	assert.Equal(t, 1, successes)
	assert.Equal(t, 1, conflicts)

	open, err := mem.OpenEntry(ctx, "anna")
	require.NoError(t, err)
	require.NotNil(t, open)
}

func TestLifecycle_ClockIn_UnknownEmployee(t *testing.T) {
	lc, _ := newTestLifecycle(t)

	_, err := lc.ClockIn(context.Background(), "ghost", ts(t, "2024-03-11 09:00:00"), engine.PunchOptions{})
	assert.True(t, engine.IsNotFound(err))
}

func TestLifecycle_ClockIn_UnknownTag(t *testing.T) {
	lc, _ := newTestLifecycle(t)

	_, err := lc.ClockInByTag(context.Background(), "no-such-tag", ts(t, "2024-03-11 09:00:00"))
	assert.True(t, engine.IsNotFound(err))
}

// =============================================================================
// CLOCK OUT
// =============================================================================

func TestLifecycle_ClockOut_ComputesBreakHoursAndWage(t *testing.T) {
	// GIVEN: Anna clocked in at 09:00 at 15/h
	lc, mem := newTestLifecycle(t)
	seedEmployee(t, mem, "anna", "tag-anna", "15")
	ctx := context.Background()

	_, err := lc.ClockIn(ctx, "anna", ts(t, "2024-03-11 09:00:00"), engine.PunchOptions{})
	require.NoError(t, err)

	// WHEN: She clocks out after eight hours
	entry, err := lc.ClockOut(ctx, "anna", ts(t, "2024-03-11 17:00:00"), engine.CloseOptions{})
	require.NoError(t, err)

	// THEN: 30 break minutes by policy, 7.5 hours, 112.50 gross
	assert.False(t, entry.IsOpen())
	assert.True(t, entry.BreakMinutes.Equal(dec("30")), "got %s", entry.BreakMinutes)
	assert.True(t, entry.TotalHours.Equal(dec("7.5")), "got %s", entry.TotalHours)
	assert.True(t, entry.GrossWage.Equal(dec("112.5")), "got %s", entry.GrossWage)
}

func TestLifecycle_ClockOut_ShortShiftNoBreak(t *testing.T) {
	lc, mem := newTestLifecycle(t)
	seedEmployee(t, mem, "anna", "tag-anna", "15")
	ctx := context.Background()

	_, err := lc.ClockIn(ctx, "anna", ts(t, "2024-03-11 09:00:00"), engine.PunchOptions{})
	require.NoError(t, err)

	entry, err := lc.ClockOut(ctx, "anna", ts(t, "2024-03-11 14:00:00"), engine.CloseOptions{})
	require.NoError(t, err)

	assert.True(t, entry.BreakMinutes.IsZero())
	assert.True(t, entry.TotalHours.Equal(dec("5")))
}

func TestLifecycle_ClockOut_BreakOverrideWins(t *testing.T) {
	lc, mem := newTestLifecycle(t)
	seedEmployee(t, mem, "anna", "tag-anna", "15")
	ctx := context.Background()

	_, err := lc.ClockIn(ctx, "anna", ts(t, "2024-03-11 09:00:00"), engine.PunchOptions{})
	require.NoError(t, err)

	entry, err := lc.ClockOut(ctx, "anna", ts(t, "2024-03-11 17:00:00"), engine.CloseOptions{
		BreakOverride: decPtr("60"),
	})
	require.NoError(t, err)

	assert.True(t, entry.BreakMinutes.Equal(dec("60")))
	assert.True(t, entry.TotalHours.Equal(dec("7")))
}

func TestLifecycle_ClockOut_OvernightShift(t *testing.T) {
	// GIVEN: A closing shift starting at 22:00
	lc, mem := newTestLifecycle(t)
	seedEmployee(t, mem, "kurt", "tag-kurt", "14")
	ctx := context.Background()

	_, err := lc.ClockIn(ctx, "kurt", ts(t, "2024-03-11 22:00:00"), engine.PunchOptions{})
	require.NoError(t, err)

	// WHEN: The terminal sends a 06:00 clock-out
	entry, err := lc.ClockOut(ctx, "kurt", ts(t, "2024-03-11 06:00:00"), engine.CloseOptions{})
	require.NoError(t, err)

	// THEN: The clock-out rolls to the next day; 8h minus 30 break
	require.NotNil(t, entry.ClockOut)
	assert.Equal(t, ts(t, "2024-03-12 06:00:00"), *entry.ClockOut)
	assert.True(t, entry.TotalHours.Equal(dec("7.5")))

	// AND: The whole shift books to the clock-in day
	sum, err := mem.GetDailySummary(ctx, "kurt", ts(t, "2024-03-11 00:00:00"))
	require.NoError(t, err)
	require.NotNil(t, sum)
	assert.Equal(t, 1, sum.Segments)
}

func TestLifecycle_ClockOut_NoOpenEntry(t *testing.T) {
	lc, mem := newTestLifecycle(t)
	seedEmployee(t, mem, "anna", "tag-anna", "15")

	_, err := lc.ClockOut(context.Background(), "anna", ts(t, "2024-03-11 17:00:00"), engine.CloseOptions{})
	assert.True(t, engine.IsNotFound(err))
}

func TestLifecycle_ClockOut_UpdatesDailyAndMonthlySummary(t *testing.T) {
	lc, mem := newTestLifecycle(t)
	seedEmployee(t, mem, "anna", "tag-anna", "15")
	ctx := context.Background()

	_, err := lc.ClockIn(ctx, "anna", ts(t, "2024-03-11 09:00:00"), engine.PunchOptions{})
	require.NoError(t, err)
	_, err = lc.ClockOut(ctx, "anna", ts(t, "2024-03-11 17:00:00"), engine.CloseOptions{})
	require.NoError(t, err)

	// The day rollup re-applies the break policy to the 7.5h net sum,
	// trimming another half hour. Payroll wants the stricter number.
	daily, err := mem.GetDailySummary(ctx, "anna", ts(t, "2024-03-11 00:00:00"))
	require.NoError(t, err)
	require.NotNil(t, daily)
	assert.True(t, daily.TotalHours.Equal(dec("7")), "got %s", daily.TotalHours)
	assert.Equal(t, 1, daily.Segments)

	monthly, err := mem.GetMonthlySummary(ctx, "anna", 2024, time.March)
	require.NoError(t, err)
	require.NotNil(t, monthly)
	assert.True(t, monthly.TotalHours.Equal(dec("7")))
	assert.Equal(t, 1, monthly.WorkingDays)
}

func TestLifecycle_ClockOut_OverrideRateOnEntry(t *testing.T) {
	// GIVEN: An open entry carrying an override rate
	lc, mem := newTestLifecycle(t)
	seedEmployee(t, mem, "anna", "tag-anna", "15")
	ctx := context.Background()

	entry, err := lc.ClockIn(ctx, "anna", ts(t, "2024-03-11 09:00:00"), engine.PunchOptions{})
	require.NoError(t, err)
	entry.OverrideHourlyRate = decPtr("20")
	require.NoError(t, mem.UpdateEntry(ctx, entry))

	// WHEN: Closing a five hour shift
	closed, err := lc.ClockOut(ctx, "anna", ts(t, "2024-03-11 14:00:00"), engine.CloseOptions{})
	require.NoError(t, err)

	// THEN: The override rate, not the employee rate, priced the shift
	assert.True(t, closed.GrossWage.Equal(dec("100")), "got %s", closed.GrossWage)
}

func TestLifecycle_ReClockInAfterClockOut(t *testing.T) {
	// Split shift: lunch service, break, dinner service
	lc, mem := newTestLifecycle(t)
	seedEmployee(t, mem, "anna", "tag-anna", "15")
	ctx := context.Background()

	_, err := lc.ClockIn(ctx, "anna", ts(t, "2024-03-11 11:00:00"), engine.PunchOptions{})
	require.NoError(t, err)
	_, err = lc.ClockOut(ctx, "anna", ts(t, "2024-03-11 14:00:00"), engine.CloseOptions{})
	require.NoError(t, err)

	_, err = lc.ClockIn(ctx, "anna", ts(t, "2024-03-11 17:00:00"), engine.PunchOptions{})
	require.NoError(t, err)
	_, err = lc.ClockOut(ctx, "anna", ts(t, "2024-03-11 22:00:00"), engine.CloseOptions{})
	require.NoError(t, err)

	start, end := engine.DayBounds(ts(t, "2024-03-11 12:00:00"), loc(t))
	entries, err := mem.ClosedEntriesInRange(ctx, "anna", start, end)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestLifecycle_ClockOut_ConfiguredTableOverridesFallback(t *testing.T) {
	// GIVEN: A stricter configured break table
	lc, mem := newTestLifecycle(t)
	seedEmployee(t, mem, "anna", "tag-anna", "15")
	ctx := context.Background()
	require.NoError(t, mem.ReplaceBreakRules(ctx, engine.BreakTable{
		{MinHours: dec("4"), BreakMinutes: dec("20"), Active: true},
	}))

	_, err := lc.ClockIn(ctx, "anna", ts(t, "2024-03-11 09:00:00"), engine.PunchOptions{})
	require.NoError(t, err)
	entry, err := lc.ClockOut(ctx, "anna", ts(t, "2024-03-11 14:00:00"), engine.CloseOptions{})
	require.NoError(t, err)

	assert.True(t, entry.BreakMinutes.Equal(dec("20")), "got %s", entry.BreakMinutes)
}
