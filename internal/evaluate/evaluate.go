// Package evaluate implements the trigger evaluator: a pure function from
// (trigger rule, condition snapshot) to a match decision with a reproducible
// reason trail. No I/O, no side effects, no clock.
//
// Checks run in a fixed order and short-circuit on the first failure. The
// order is a stable contract so failure reasons are reproducible across
// runs and in tests, not a semantic requirement.
package evaluate

import (
	"fmt"
	"math"

	"swellwatch/internal/types"
)

// NoForecastReason is the reason reported when a snapshot carries no
// forecast data at all. Absence of data is a normal non-match, not an error.
const NoForecastReason = "no forecast data available"

// conditionCheck is one named constraint check. A nil trigger constraint
// passes; a constrained check against a missing measurement fails with an
// "unavailable" reason rather than guessing.
type conditionCheck struct {
	name string
	run  func(t *types.Trigger, s *types.ConditionSnapshot) (ok bool, detail string)
}

// checkOrder is the fixed evaluation sequence.
var checkOrder = []conditionCheck{
	{"wave_height", checkWaveHeight},
	{"wave_period", checkWavePeriod},
	{"swell_direction", checkSwellDirection},
	{"wind_speed", checkWindSpeed},
	{"wind_direction", checkWindDirection},
	{"tide_phase", checkTidePhase},
	{"tide_height", checkTideHeight},
}

// Evaluate runs the trigger's constraints against the snapshot in the fixed
// check order. Every present constraint must pass for a match; unset
// constraints always pass.
func Evaluate(t *types.Trigger, s *types.ConditionSnapshot) types.MatchResult {
	result := types.MatchResult{}
	if s != nil {
		result.Snapshot = *s
	}

	if !s.HasForecast() {
		result.Matched = false
		result.FailedCheck = "forecast"
		result.Reason = NoForecastReason
		result.Trail = []string{NoForecastReason}
		return result
	}

	for _, check := range checkOrder {
		ok, detail := check.run(t, s)
		result.Trail = append(result.Trail, detail)
		if !ok {
			result.Matched = false
			result.FailedCheck = check.name
			result.Reason = detail
			return result
		}
	}

	result.Matched = true
	return result
}

func checkWaveHeight(t *types.Trigger, s *types.ConditionSnapshot) (bool, string) {
	return checkRange("wave height", "ft", s.WaveHeightFt, t.MinWaveHeight, t.MaxWaveHeight)
}

func checkWavePeriod(t *types.Trigger, s *types.ConditionSnapshot) (bool, string) {
	return checkRange("wave period", "s", s.WavePeriodS, t.MinWavePeriod, t.MaxWavePeriod)
}

func checkSwellDirection(t *types.Trigger, s *types.ConditionSnapshot) (bool, string) {
	return checkDirection("swell direction", s.SwellDirectionDeg, t.MinSwellDirection, t.MaxSwellDirection)
}

func checkWindSpeed(t *types.Trigger, s *types.ConditionSnapshot) (bool, string) {
	return checkRange("wind speed", "kt", s.WindSpeedKt, t.MinWindSpeed, t.MaxWindSpeed)
}

func checkWindDirection(t *types.Trigger, s *types.ConditionSnapshot) (bool, string) {
	return checkDirection("wind direction", s.WindDirectionDeg, t.MinWindDirection, t.MaxWindDirection)
}

// checkTidePhase enforces the trigger's rising/falling constraint. A
// measured slack phase is compatible with either direction and never fails
// the check; any other mismatch fails.
func checkTidePhase(t *types.Trigger, s *types.ConditionSnapshot) (bool, string) {
	if t.TideType == "" {
		return true, "tide phase unconstrained"
	}
	if s.TidePhase == "" {
		return false, "tide phase data unavailable"
	}
	if s.TidePhase == types.TideSlack {
		return true, fmt.Sprintf("tide slack, compatible with %s", t.TideType)
	}
	if s.TidePhase == t.TideType {
		return true, fmt.Sprintf("tide %s as required", s.TidePhase)
	}
	return false, fmt.Sprintf("tide %s, wanted %s", s.TidePhase, t.TideType)
}

func checkTideHeight(t *types.Trigger, s *types.ConditionSnapshot) (bool, string) {
	return checkRange("tide height", "ft", s.TideHeightFt, t.MinTideHeight, t.MaxTideHeight)
}

// checkRange applies an optional [min, max] constraint to an optional
// measurement. Unset bounds pass; a set bound against a nil measurement
// fails with an "unavailable" reason.
func checkRange(field, unit string, value, min, max *float64) (bool, string) {
	if min == nil && max == nil {
		return true, field + " unconstrained"
	}
	if value == nil {
		return false, field + " data unavailable"
	}
	v := *value
	if min != nil && v < *min {
		return false, fmt.Sprintf("%s %.1f%s below minimum %.1f%s", field, v, unit, *min, unit)
	}
	if max != nil && v > *max {
		return false, fmt.Sprintf("%s %.1f%s above maximum %.1f%s", field, v, unit, *max, unit)
	}
	return true, fmt.Sprintf("%s %.1f%s within range", field, v, unit)
}

// checkDirection applies an optional directional [min, max] window in
// degrees to an optional measured bearing. Both bounds are required to
// constrain; a half-open directional window is treated as unconstrained.
func checkDirection(field string, value, min, max *float64) (bool, string) {
	if min == nil || max == nil {
		return true, field + " unconstrained"
	}
	if value == nil {
		return false, field + " data unavailable"
	}
	d := normalizeDegrees(*value)
	lo := normalizeDegrees(*min)
	hi := normalizeDegrees(*max)
	if inDirectionalRange(d, lo, hi) {
		return true, fmt.Sprintf("%s %.0f° within %.0f°-%.0f°", field, d, lo, hi)
	}
	return false, fmt.Sprintf("%s %.0f° outside %.0f°-%.0f°", field, d, lo, hi)
}

// inDirectionalRange reports whether bearing d falls inside [min, max].
// When min > max the window crosses north (e.g. 315 -> 45) and the test is
// d >= min OR d <= max. A naive min <= d <= max comparison silently breaks
// for any northerly window.
func inDirectionalRange(d, min, max float64) bool {
	if min <= max {
		return d >= min && d <= max
	}
	return d >= min || d <= max
}

// normalizeDegrees maps any bearing onto [0, 360).
func normalizeDegrees(d float64) float64 {
	m := math.Mod(d, 360)
	if m < 0 {
		m += 360
	}
	return m
}
