package types

import "time"

// Location is a geographic coordinate with an optional display name.
type Location struct {
	Lat         float64 `json:"lat" db:"location_lat"`
	Lon         float64 `json:"lon" db:"location_lon"`
	DisplayName string  `json:"display_name,omitempty" db:"location_display_name"`
}

// Spot is a named surf break a user monitors.
type Spot struct {
	ID       string   `json:"id" db:"id"`
	Name     string   `json:"name" db:"name"`
	Location Location `json:"location" db:"-"`
	// BuoyID is the nearest NDBC station, used only to attach live buoy
	// readings to alert messages. Empty for spots with no nearby station.
	BuoyID   string `json:"buoy_id,omitempty" db:"buoy_id"`
	Timezone string `json:"timezone" db:"timezone"`
}

// Trigger is a user's saved rule describing the surf/wind/tide conditions
// that should produce an alert for one spot.
//
// Every constraint field is independently optional: a nil pointer (or empty
// enum value) is an open constraint and always passes its check.
type Trigger struct {
	ID     string `json:"id" db:"id"`
	UserID string `json:"user_id" db:"user_id"`
	SpotID string `json:"spot_id" db:"spot_id"`

	// Qualitative label the user called these conditions.
	Label ConditionLabel `json:"label,omitempty" db:"label"`

	// Numeric ranges. Heights in feet, period in seconds, wind in knots.
	MinWaveHeight *float64 `json:"min_wave_height,omitempty" db:"min_wave_height"`
	MaxWaveHeight *float64 `json:"max_wave_height,omitempty" db:"max_wave_height"`
	MinWavePeriod *float64 `json:"min_wave_period,omitempty" db:"min_wave_period"`
	MaxWavePeriod *float64 `json:"max_wave_period,omitempty" db:"max_wave_period"`
	MinWindSpeed  *float64 `json:"min_wind_speed,omitempty" db:"min_wind_speed"`
	MaxWindSpeed  *float64 `json:"max_wind_speed,omitempty" db:"max_wind_speed"`
	MinTideHeight *float64 `json:"min_tide_height,omitempty" db:"min_tide_height"`
	MaxTideHeight *float64 `json:"max_tide_height,omitempty" db:"max_tide_height"`

	// Directional ranges in degrees, normalized to [0, 360). A range whose
	// min exceeds its max wraps through north (e.g. 315 -> 45).
	MinSwellDirection *float64 `json:"min_swell_direction,omitempty" db:"min_swell_direction"`
	MaxSwellDirection *float64 `json:"max_swell_direction,omitempty" db:"max_swell_direction"`
	MinWindDirection  *float64 `json:"min_wind_direction,omitempty" db:"min_wind_direction"`
	MaxWindDirection  *float64 `json:"max_wind_direction,omitempty" db:"max_wind_direction"`

	// TideType constrains the tide phase. Empty means any. A measured
	// "slack" phase is compatible with either rising or falling.
	TideType TidePhase `json:"tide_type,omitempty" db:"tide_type"`

	// Presentation
	Style          NotificationStyle `json:"style" db:"style"`
	CustomTemplate string            `json:"custom_template,omitempty" db:"custom_template"`
	DisplayName    string            `json:"display_name,omitempty" db:"display_name"`
	Emoji          string            `json:"emoji,omitempty" db:"emoji"`

	Enabled   bool      `json:"enabled" db:"enabled"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`

	// Hydrated by the store's list query (joined, not columns of triggers).
	Spot      Spot             `json:"spot" db:"-"`
	Recipient Recipient        `json:"-" db:"-"`
	PrevState *EvaluationState `json:"-" db:"-"`
}

// Name returns the user-facing trigger name, falling back to the spot name.
func (t *Trigger) Name() string {
	if t.DisplayName != "" {
		return t.DisplayName
	}
	return t.Spot.Name
}

// Validate performs sanity checks on the non-directional numeric ranges.
// Directional ranges are exempt: min > max is the wraparound encoding.
func (t *Trigger) Validate() error {
	ranges := []struct {
		field    string
		min, max *float64
	}{
		{"wave_height", t.MinWaveHeight, t.MaxWaveHeight},
		{"wave_period", t.MinWavePeriod, t.MaxWavePeriod},
		{"wind_speed", t.MinWindSpeed, t.MaxWindSpeed},
		{"tide_height", t.MinTideHeight, t.MaxTideHeight},
	}
	for _, r := range ranges {
		if r.min != nil && r.max != nil && *r.min > *r.max {
			return NewAppErrorWithDetails(ErrCodeValidationTriggerRange,
				"trigger range minimum exceeds maximum", nil,
				map[string]any{"trigger_id": t.ID, "field": r.field})
		}
	}
	return nil
}

// Recipient carries the delivery endpoints for a trigger's owner.
type Recipient struct {
	UserID       string        `json:"user_id"`
	Email        string        `json:"email"`
	DeviceTokens []string      `json:"device_tokens"`
	Channels     []ChannelType `json:"channels"`
}

// HasChannel reports whether the recipient has the given channel enabled.
func (r Recipient) HasChannel(ch ChannelType) bool {
	for _, c := range r.Channels {
		if c == ch {
			return true
		}
	}
	return false
}

// EvaluationState is the per-trigger runtime state maintained across runs.
// It is the cross-run memory the suppression guard needs for rising-edge
// detection; the ledger alone only records sends.
type EvaluationState struct {
	TriggerID       string    `json:"trigger_id" db:"trigger_id"`
	LastEvaluatedAt time.Time `json:"last_evaluated_at" db:"last_evaluated_at"`
	LastMatched     bool      `json:"last_matched" db:"last_matched"`
}

// ConditionSnapshot is the environmental reading used for one evaluation.
// Forecast-derived fields are pointers: the provider may return partial
// snapshots (no tide station inland, no wind model offshore), and a nil
// field is "not reported", not zero.
//
// Buoy is supplementary live data attached for message display only; it
// never participates in evaluation.
type ConditionSnapshot struct {
	WaveHeightFt      *float64  `json:"wave_height_ft,omitempty"`
	WavePeriodS       *float64  `json:"wave_period_s,omitempty"`
	SwellDirectionDeg *float64  `json:"swell_direction_deg,omitempty"`
	WindSpeedKt       *float64  `json:"wind_speed_kt,omitempty"`
	WindDirectionDeg  *float64  `json:"wind_direction_deg,omitempty"`
	TideHeightFt      *float64  `json:"tide_height_ft,omitempty"`
	TidePhase         TidePhase `json:"tide_phase,omitempty"`

	FetchedAt time.Time        `json:"fetched_at"`
	Buoy      *BuoyObservation `json:"buoy,omitempty"`
}

// HasForecast reports whether the snapshot carries any forecast-derived
// field at all. A snapshot without forecast data evaluates to a normal
// non-match ("no forecast data available"), never an error.
func (s *ConditionSnapshot) HasForecast() bool {
	if s == nil {
		return false
	}
	return s.WaveHeightFt != nil || s.WavePeriodS != nil ||
		s.SwellDirectionDeg != nil || s.WindSpeedKt != nil ||
		s.WindDirectionDeg != nil || s.TideHeightFt != nil ||
		s.TidePhase != ""
}

// BuoyObservation is a live reading from an NDBC station.
type BuoyObservation struct {
	StationID    string    `json:"station_id"`
	WaveHeightFt *float64  `json:"wave_height_ft,omitempty"`
	WavePeriodS  *float64  `json:"wave_period_s,omitempty"`
	WaterTempF   *float64  `json:"water_temp_f,omitempty"`
	ObservedAt   time.Time `json:"observed_at"`
}

// MatchResult is the output of evaluating one trigger against one snapshot.
type MatchResult struct {
	Matched bool `json:"matched"`
	// FailedCheck names the first constraint that failed, empty on a match.
	// Checks run in a fixed order, so this is reproducible.
	FailedCheck string `json:"failed_check,omitempty"`
	// Reason is the human-readable explanation for the first failure, or
	// empty on a match.
	Reason string `json:"reason,omitempty"`
	// Trail records one line per check actually executed, in order. Used
	// for diagnostics and the audit record.
	Trail []string `json:"trail,omitempty"`
	// Snapshot holds the values the decision was made against, for message
	// rendering and audit.
	Snapshot ConditionSnapshot `json:"snapshot"`
}

// ChannelOutcome records the result of one channel's dispatch attempt.
type ChannelOutcome struct {
	Channel       ChannelType    `json:"channel"`
	Status        DeliveryStatus `json:"status"`
	ProviderRef   string         `json:"provider_ref,omitempty"`
	FailureReason string         `json:"failure_reason,omitempty"`
	DurationMS    int64          `json:"duration_ms"`
}

// SentAlert is one ledger row: what was sent, when, with what outcome.
// Rows are immutable once written and are never mutated or deleted by the
// pipeline.
type SentAlert struct {
	ID        string          `json:"id" db:"id"`
	TriggerID string          `json:"trigger_id" db:"trigger_id"`
	SpotID    string          `json:"spot_id" db:"spot_id"`
	UserID    string          `json:"user_id" db:"user_id"`
	SentAt    time.Time       `json:"sent_at" db:"sent_at"`
	Label     ConditionLabel  `json:"label,omitempty" db:"label"`
	Message   string          `json:"message" db:"message"`
	Outcomes  ChannelOutcomes `json:"outcomes" db:"outcomes"`
}

// RunSummary is the observability record produced by one orchestrator run.
type RunSummary struct {
	RunID      string    `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	DryRun     bool      `json:"dry_run"`

	Evaluated  int `json:"evaluated"`
	Matched    int `json:"matched"`
	Sent       int `json:"sent"`
	Suppressed int `json:"suppressed"`
	// Skipped counts matches whose recipient had no enabled channel to send
	// on. They are not failures; the trigger alerts once a channel exists.
	Skipped int `json:"skipped"`
	// Failed counts triggers that could not be processed this run (provider
	// outage, dispatch wiring failure, deadline expiry). They are picked up
	// again on the next scheduled run.
	Failed int `json:"failed"`
	// LedgerFailures counts alerts that were dispatched but whose ledger
	// write failed. Non-zero values are a run-health signal for operators:
	// the user got the alert, the audit record is missing.
	LedgerFailures int `json:"ledger_failures"`
	// WouldSend counts alerts a dry run would have dispatched.
	WouldSend int `json:"would_send,omitempty"`
}
