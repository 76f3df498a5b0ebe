/*
clock.go - Wall-clock handling: timezone, rounding, midnight rollover

PURPOSE:
  The system tracks shifts in one fixed local timezone (restaurants do not
  span zones). Timestamps are stored as naive local wall-clock values and
  every piece of duration arithmetic normalizes both endpoints into the
  configured location first, so daylight-saving transitions cannot corrupt
  elapsed-minute counts.

QUARTER-HOUR ROUNDING:
  Terminal (RFID) punches round to the nearest 15-minute mark, half up;
  minute 52:30 and later rolls into the next hour. Manual API punches are
  stored as given. The rounding is a per-call option on the lifecycle so
  both behaviors share one code path.

MIDNIGHT ROLLOVER:
  A clock-out earlier on the wall clock than its clock-in is an overnight
  shift: the clock-out is moved forward 24 hours. This is normal operation
  for evening staff, not an error.

SEE ALSO:
  - lifecycle.go: Applies rounding and rollover on clock-in/out
  - aggregate.go: Uses day/month bounds for summary windows
*/
package engine

import "time"

// DefaultLocationName is the zone the engine assumes when none is configured.
const DefaultLocationName = "Europe/Berlin"

// DefaultLocation loads the default zone, falling back to the host's local
// zone if tzdata is unavailable.
func DefaultLocation() *time.Location {
	loc, err := time.LoadLocation(DefaultLocationName)
	if err != nil {
		return time.Local
	}
	return loc
}

// =============================================================================
// ROUNDING
// =============================================================================

// RoundQuarterHour rounds t to the nearest 15-minute mark, half up.
// 07:52:30 becomes 08:00.
func RoundQuarterHour(t time.Time) time.Time {
	return t.Round(15 * time.Minute)
}

// =============================================================================
// OVERNIGHT SHIFTS
// =============================================================================

// RollOvernight moves clockOut forward one day when it lands before
// clockIn on the wall clock.
func RollOvernight(clockIn, clockOut time.Time) time.Time {
	if clockOut.Before(clockIn) {
		return clockOut.Add(24 * time.Hour)
	}
	return clockOut
}

// =============================================================================
// CALENDAR WINDOWS
// =============================================================================

// DayOf truncates t to midnight in loc.
func DayOf(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// DayBounds returns [start, end) of the calendar day containing t in loc.
func DayBounds(t time.Time, loc *time.Location) (start, end time.Time) {
	start = DayOf(t, loc)
	return start, start.AddDate(0, 0, 1)
}

// MonthBounds returns [start, end) of the given month in loc.
func MonthBounds(year int, month time.Month, loc *time.Location) (start, end time.Time) {
	start = time.Date(year, month, 1, 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 1, 0)
}

// SameDay reports whether a and b fall on the same calendar day in loc.
func SameDay(a, b time.Time, loc *time.Location) bool {
	return DayOf(a, loc).Equal(DayOf(b, loc))
}
