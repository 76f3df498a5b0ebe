package engine_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shiftbook/timeclock-engine/engine"
	"github.com/shiftbook/timeclock-engine/engine/store"
)

func newTestPayouts(t *testing.T) (*engine.Payouts, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	return engine.NewPayouts(mem, loc(t)), mem
}

func TestPayouts_MarkPaid_StampsClosedEntry(t *testing.T) {
	payouts, mem := newTestPayouts(t)
	seedEmployee(t, mem, "anna", "tag-anna", "15")
	entry := closedEntry(t, mem, "anna", "2024-03-11 09:00:00", "2024-03-11 17:00:00", "30", "7.5", "112.5")

	marked, err := payouts.MarkPaid(context.Background(), entry.ID)
	require.NoError(t, err)
	require.NotNil(t, marked.PaidOutAt)
	assert.WithinDuration(t, time.Now(), *marked.PaidOutAt, 5*time.Second)
}

func TestPayouts_MarkPaid_Unmark_RoundTrip(t *testing.T) {
	payouts, mem := newTestPayouts(t)
	seedEmployee(t, mem, "anna", "tag-anna", "15")
	entry := closedEntry(t, mem, "anna", "2024-03-11 09:00:00", "2024-03-11 17:00:00", "30", "7.5", "112.5")
	ctx := context.Background()

	_, err := payouts.MarkPaid(ctx, entry.ID)
	require.NoError(t, err)

	cleared, err := payouts.UnmarkPaid(ctx, entry.ID)
	require.NoError(t, err)
	assert.Nil(t, cleared.PaidOutAt)

	// The toggle never touches hours or wage
	assert.True(t, cleared.TotalHours.Equal(dec("7.5")))
	assert.True(t, cleared.GrossWage.Equal(dec("112.5")))
}

func TestPayouts_MarkPaid_OpenEntryRejected(t *testing.T) {
	payouts, mem := newTestPayouts(t)
	seedEmployee(t, mem, "anna", "tag-anna", "15")
	ctx := context.Background()

	open := engine.TimeEntry{
		ID:         engine.NewEntryID(),
		EmployeeID: "anna",
		ClockIn:    ts(t, "2024-03-11 09:00:00"),
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}
	require.NoError(t, mem.InsertOpenEntry(ctx, &open))

	_, err := payouts.MarkPaid(ctx, open.ID)
	require.Error(t, err)
	assert.True(t, engine.IsPrecondition(err))
}

func TestPayouts_MarkPaid_NotFound(t *testing.T) {
	payouts, _ := newTestPayouts(t)
	_, err := payouts.MarkPaid(context.Background(), "missing")
	assert.True(t, engine.IsNotFound(err))
}

func TestPayouts_LeaveNoAuditTrail(t *testing.T) {
	// Payout toggles are operational bookkeeping, not corrections
	payouts, mem := newTestPayouts(t)
	seedEmployee(t, mem, "anna", "tag-anna", "15")
	entry := closedEntry(t, mem, "anna", "2024-03-11 09:00:00", "2024-03-11 17:00:00", "30", "7.5", "112.5")
	ctx := context.Background()

	_, err := payouts.MarkPaid(ctx, entry.ID)
	require.NoError(t, err)
	_, err = payouts.UnmarkPaid(ctx, entry.ID)
	require.NoError(t, err)

	audits, err := mem.AuditsForEntry(ctx, entry.ID)
	require.NoError(t, err)
	assert.Empty(t, audits)
}
