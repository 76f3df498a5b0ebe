package factory_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shiftbook/timeclock-engine/engine"
	"github.com/shiftbook/timeclock-engine/factory"
)

func TestParseBreakRules_Basic(t *testing.T) {
	jsonStr := `{
		"rules": [
			{"min_hours": 6, "break_minutes": 30},
			{"min_hours": 9.01, "break_minutes": 45}
		]
	}`

	table, err := factory.ParseBreakRules(jsonStr)
	require.NoError(t, err)
	require.Len(t, table, 2)

	assert.True(t, table[0].MinHours.Equal(engine.MustParseDecimal("6")))
	assert.True(t, table[0].BreakMinutes.Equal(engine.MustParseDecimal("30")))
	assert.True(t, table[0].Active, "active should default to true")
	assert.True(t, table[1].MinHours.Equal(engine.MustParseDecimal("9.01")))
}

func TestParseBreakRules_ExplicitInactive(t *testing.T) {
	jsonStr := `{"rules": [{"min_hours": 6, "break_minutes": 30, "active": false}]}`

	table, err := factory.ParseBreakRules(jsonStr)
	require.NoError(t, err)
	require.Len(t, table, 1)
	assert.False(t, table[0].Active)
}

func TestParseBreakRules_InvalidJSON(t *testing.T) {
	_, err := factory.ParseBreakRules(`{"rules": [`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse break rules JSON")
}

func TestParseBreakRules_NegativeValuesRejected(t *testing.T) {
	_, err := factory.ParseBreakRules(`{"rules": [{"min_hours": -1, "break_minutes": 30}]}`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "min_hours must not be negative")

	_, err = factory.ParseBreakRules(`{"rules": [{"min_hours": 6, "break_minutes": -5}]}`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "break_minutes must not be negative")
}

func TestParseBreakRules_DuplicateThresholdRejected(t *testing.T) {
	jsonStr := `{
		"rules": [
			{"min_hours": 6, "break_minutes": 30},
			{"min_hours": 6, "break_minutes": 45}
		]
	}`

	_, err := factory.ParseBreakRules(jsonStr)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate min_hours threshold")
}

func TestParseBreakRules_EmptyTableAllowed(t *testing.T) {
	table, err := factory.ParseBreakRules(`{"rules": []}`)
	require.NoError(t, err)
	assert.Empty(t, table)
}

func TestLoadBreakRules_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "breaks.json")
	require.NoError(t, os.WriteFile(path, []byte(factory.DefaultBreakRulesJSON()), 0o644))

	table, err := factory.LoadBreakRules(path)
	require.NoError(t, err)
	require.Len(t, table, 2)
	assert.True(t, table[0].MinHours.Equal(engine.MustParseDecimal("6")))
}

func TestLoadBreakRules_MissingFile(t *testing.T) {
	_, err := factory.LoadBreakRules(filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read break rules file")
}

func TestDefaultBreakRules_MatchStatutoryBoundaries(t *testing.T) {
	// GIVEN: The seeded default table
	table, err := factory.ParseBreakRules(factory.DefaultBreakRulesJSON())
	require.NoError(t, err)
	seeded := engine.BreakPolicy{Table: table}
	statutory := engine.BreakPolicy{}

	// THEN: It agrees with the statutory fallback at every boundary,
	// including one second past nine hours
	cases := []struct{ hours, want string }{
		{"5.99", "0"},
		{"6", "30"},
		{"9", "30"},
		{"9.0003", "45"}, // 9h1s, smallest recordable duration above nine
		{"10", "45"},
	}
	for _, tc := range cases {
		hours := engine.MustParseDecimal(tc.hours)
		got := seeded.Minutes(hours)
		assert.True(t, got.Equal(engine.MustParseDecimal(tc.want)), "hours=%s got=%s", tc.hours, got)
		assert.True(t, got.Equal(statutory.Minutes(hours)), "hours=%s diverges from fallback", tc.hours)
	}
}

func TestToJSON_RoundTrip(t *testing.T) {
	original, err := factory.ParseBreakRules(factory.DefaultBreakRulesJSON())
	require.NoError(t, err)

	cfg := factory.ToJSON(original)
	require.Len(t, cfg.Rules, 2)
	assert.Equal(t, 6.0, cfg.Rules[0].MinHours)
	assert.Equal(t, 30.0, cfg.Rules[0].BreakMinutes)
	require.NotNil(t, cfg.Rules[0].Active)
	assert.True(t, *cfg.Rules[0].Active)

	back, err := factory.FromJSON(cfg)
	require.NoError(t, err)
	require.Len(t, back, 2)
	assert.True(t, back[1].BreakMinutes.Equal(engine.MustParseDecimal("45")))
}
