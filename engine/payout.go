/*
payout.go - Cash payout flag over closed segments

PURPOSE:
  Cash-paid employees get their wages handed over against a report; the
  report generator marks the covered segments so they are not paid twice.
  This is a thin timestamp toggle, deliberately outside the correction
  workflow: toggling payout writes no audit row.
*/
package engine

import (
	"context"
	"time"
)

// Payouts toggles the paid-out marker on closed entries.
type Payouts struct {
	Store    Store
	Location *time.Location
}

func NewPayouts(store Store, loc *time.Location) *Payouts {
	if loc == nil {
		loc = DefaultLocation()
	}
	return &Payouts{Store: store, Location: loc}
}

// MarkPaid stamps paid_out_at on a closed entry. Open entries fail with
// a PreconditionError: an unfinished shift has no payable wage yet.
func (p *Payouts) MarkPaid(ctx context.Context, id EntryID) (*TimeEntry, error) {
	entry, err := p.Store.GetEntry(ctx, id)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, newEntryNotFound(id)
	}
	if entry.IsOpen() {
		return nil, &PreconditionError{EntryID: id, Reason: "cannot mark an open entry as paid out"}
	}

	now := time.Now().In(p.Location)
	entry.PaidOutAt = &now
	entry.UpdatedAt = now
	if err := p.Store.UpdateEntry(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// UnmarkPaid clears paid_out_at, returning the segment to the unpaid pool.
func (p *Payouts) UnmarkPaid(ctx context.Context, id EntryID) (*TimeEntry, error) {
	entry, err := p.Store.GetEntry(ctx, id)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, newEntryNotFound(id)
	}

	entry.PaidOutAt = nil
	entry.UpdatedAt = time.Now().In(p.Location)
	if err := p.Store.UpdateEntry(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}
