/*
breaks.go - Break policy: worked hours -> mandatory break minutes

PURPOSE:
  German working-time rules require unpaid breaks once a shift exceeds
  certain lengths. The policy is a step function over an ordered rule
  table: the LAST rule whose threshold is met supplies the break, rules
  do not add up. A 9-hour rule replaces the 6-hour rule, it does not
  stack on top of it.

TWO SOURCES OF RULES:
  1. Configured table (break_rules storage, admin-editable) - authoritative
     whenever at least one active rule exists.
  2. Built-in statutory fallback - used only when the table is empty:
     under 6h -> 0 min, 6h up to and including 9h -> 30 min, above 9h -> 45 min.

DETERMINISM:
  Pure function of its inputs, no side effects, safe for concurrent use.

SEE ALSO:
  - factory/rules.go: Parses rule configuration into a BreakTable
  - lifecycle.go:     Applies the policy on clock-out
  - aggregate.go:     Re-applies the policy at the day level
*/
package engine

import (
	"sort"

	"github.com/shopspring/decimal"
)

// =============================================================================
// BREAK TABLE - Configured step function
// =============================================================================

// Active returns the active rules sorted ascending by MinHours.
func (t BreakTable) Active() BreakTable {
	var rules BreakTable
	for _, r := range t {
		if r.Active {
			rules = append(rules, r)
		}
	}
	sort.SliceStable(rules, func(i, j int) bool {
		return rules[i].MinHours.LessThan(rules[j].MinHours)
	})
	return rules
}

// MinutesFor selects the break minutes of the last active rule whose
// MinHours threshold is met or exceeded by workedHours. Zero when no
// rule qualifies.
func (t BreakTable) MinutesFor(workedHours decimal.Decimal) decimal.Decimal {
	minutes := decimal.Zero
	for _, r := range t.Active() {
		if r.MinHours.LessThanOrEqual(workedHours) {
			minutes = r.BreakMinutes
		}
	}
	return minutes
}

// =============================================================================
// BREAK POLICY - Table when configured, statutory fallback otherwise
// =============================================================================

// BreakPolicy resolves break minutes from the configured table, falling
// back to the statutory defaults when the table has no active rules.
// Inject explicitly; there is no hidden global rule set.
type BreakPolicy struct {
	Table BreakTable
}

// Minutes returns the mandatory break for the given worked hours.
func (p BreakPolicy) Minutes(workedHours decimal.Decimal) decimal.Decimal {
	if workedHours.IsNegative() {
		return decimal.Zero
	}
	if len(p.Table.Active()) > 0 {
		return p.Table.MinutesFor(workedHours)
	}
	return fallbackBreakMinutes(workedHours)
}

var (
	sixHours     = decimal.NewFromInt(6)
	nineHours    = decimal.NewFromInt(9)
	thirtyMin    = decimal.NewFromInt(30)
	fortyFiveMin = decimal.NewFromInt(45)
)

// fallbackBreakMinutes is the hardcoded statutory default. Note the
// boundaries: exactly 6h already earns 30 min, exactly 9h still 30 min,
// 45 min only strictly above 9h.
func fallbackBreakMinutes(workedHours decimal.Decimal) decimal.Decimal {
	switch {
	case workedHours.GreaterThan(nineHours):
		return fortyFiveMin
	case workedHours.GreaterThanOrEqual(sixHours):
		return thirtyMin
	default:
		return decimal.Zero
	}
}
