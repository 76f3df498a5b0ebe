/*
Package factory provides JSON to Go break-rule conversion.

PURPOSE:
  Converts JSON break-rule definitions into an engine.BreakTable. This
  enables break configuration without code changes - restaurant managers
  can define the statutory break table in JSON, and the factory creates
  the proper Go structs.

WHY JSON?
  - Non-developers can adjust the break table
  - Easy integration with an admin UI
  - Version control for rule definitions
  - Database storage of rule configs

JSON SCHEMA:
  {
    "rules": [
      {"min_hours": 6, "break_minutes": 30},
      {"min_hours": 9, "break_minutes": 45, "active": true}
    ]
  }

KEY FEATURES:
  - Validates rule values (non-negative, no duplicate thresholds)
  - "active" defaults to true when omitted
  - Order in the file does not matter; the table sorts by threshold

USAGE:
  table, err := factory.ParseBreakRules(jsonStr)
  // or from a config file next to the binary
  table, err := factory.LoadBreakRules("./config/breaks.json")

SEE ALSO:
  - engine/breaks.go: BreakTable and BreakPolicy
*/
package factory

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/shiftbook/timeclock-engine/engine"
	"github.com/shopspring/decimal"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// BreakConfigJSON is the JSON representation of the break table.
type BreakConfigJSON struct {
	Rules []BreakRuleJSON `json:"rules"`
}

// BreakRuleJSON is one step of the table.
type BreakRuleJSON struct {
	MinHours     float64 `json:"min_hours"`
	BreakMinutes float64 `json:"break_minutes"`
	Active       *bool   `json:"active,omitempty"` // Default true
}

// =============================================================================
// PARSING
// =============================================================================

// ParseBreakRules parses a JSON string into a BreakTable.
func ParseBreakRules(jsonStr string) (engine.BreakTable, error) {
	var cfg BreakConfigJSON
	if err := json.Unmarshal([]byte(jsonStr), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse break rules JSON: %w", err)
	}
	return FromJSON(cfg)
}

// LoadBreakRules reads and parses a break-rule config file.
func LoadBreakRules(path string) (engine.BreakTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read break rules file: %w", err)
	}
	return ParseBreakRules(string(data))
}

// FromJSON converts BreakConfigJSON to an engine.BreakTable.
func FromJSON(cfg BreakConfigJSON) (engine.BreakTable, error) {
	seen := make(map[string]bool)
	var table engine.BreakTable
	for i, rj := range cfg.Rules {
		if rj.MinHours < 0 {
			return nil, fmt.Errorf("rule %d: min_hours must not be negative", i)
		}
		if rj.BreakMinutes < 0 {
			return nil, fmt.Errorf("rule %d: break_minutes must not be negative", i)
		}

		minHours := decimal.NewFromFloat(rj.MinHours)
		if seen[minHours.String()] {
			return nil, fmt.Errorf("rule %d: duplicate min_hours threshold %s", i, minHours)
		}
		seen[minHours.String()] = true

		active := true
		if rj.Active != nil {
			active = *rj.Active
		}
		table = append(table, engine.BreakRule{
			MinHours:     minHours,
			BreakMinutes: decimal.NewFromFloat(rj.BreakMinutes),
			Active:       active,
		})
	}
	return table, nil
}

// ToJSON converts a BreakTable back to its JSON form, e.g. for an admin UI.
func ToJSON(table engine.BreakTable) BreakConfigJSON {
	cfg := BreakConfigJSON{}
	for _, r := range table {
		active := r.Active
		mh, _ := r.MinHours.Float64()
		bm, _ := r.BreakMinutes.Float64()
		cfg.Rules = append(cfg.Rules, BreakRuleJSON{
			MinHours:     mh,
			BreakMinutes: bm,
			Active:       &active,
		})
	}
	return cfg
}

// DefaultBreakRulesJSON returns the built-in German hospitality table:
// 30 minutes from six hours, 45 minutes strictly above nine. Rule
// thresholds are inclusive, so the 45-minute step sits just past 9.
// Durations are recorded at second granularity (the smallest value
// above 9h is 9h1s ~ 9.00028), which 9.0001 catches and exactly 9h
// does not.
func DefaultBreakRulesJSON() string {
	return `{
		"rules": [
			{"min_hours": 6, "break_minutes": 30},
			{"min_hours": 9.0001, "break_minutes": 45}
		]
	}`
}
