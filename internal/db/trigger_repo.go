package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"swellwatch/internal/types"
)

// TriggerRepository provides data access for the triggers table and its
// companion trigger_evaluation_state table. It implements
// types.TriggerStore.
type TriggerRepository struct {
	db DBTX
}

// NewTriggerRepository creates a TriggerRepository backed by the given
// database connection (pool or transaction).
func NewTriggerRepository(db DBTX) *TriggerRepository {
	return &TriggerRepository{db: db}
}

// triggerColumns is the standard column set for trigger list queries,
// including the joined spot, recipient, and evaluation state columns.
const triggerColumns = `t.id, t.user_id, t.spot_id, t.label,
	t.min_wave_height, t.max_wave_height,
	t.min_wave_period, t.max_wave_period,
	t.min_wind_speed, t.max_wind_speed,
	t.min_tide_height, t.max_tide_height,
	t.min_swell_direction, t.max_swell_direction,
	t.min_wind_direction, t.max_wind_direction,
	t.tide_type, t.style, t.custom_template, t.display_name, t.emoji,
	t.enabled, t.created_at, t.updated_at,
	s.id, s.name, s.location_lat, s.location_lon, s.location_display_name,
	s.buoy_id, s.timezone,
	u.id, u.email, u.device_tokens, u.channels,
	es.last_evaluated_at, es.last_matched`

// ListEnabledTriggers returns every enabled trigger, each hydrated with its
// spot, its owner's delivery endpoints, and its previous evaluation state
// (nil for triggers never evaluated). Ordering by spot groups triggers so
// the orchestrator's per-spot snapshot cache sees good locality.
func (r *TriggerRepository) ListEnabledTriggers(ctx context.Context) ([]types.Trigger, error) {
	query := `
		SELECT ` + triggerColumns + `
		FROM triggers t
		JOIN spots s ON s.id = t.spot_id
		JOIN users u ON u.id = t.user_id
		LEFT JOIN trigger_evaluation_state es ON es.trigger_id = t.id
		WHERE t.enabled = true
		ORDER BY t.spot_id, t.created_at`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list enabled triggers", err)
	}
	defer rows.Close()

	var triggers []types.Trigger
	for rows.Next() {
		trigger, scanErr := scanTrigger(rows)
		if scanErr != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan trigger row", scanErr)
		}
		triggers = append(triggers, *trigger)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating trigger rows", err)
	}

	return triggers, nil
}

// SetEvaluationState upserts the per-trigger evaluation state after a run.
// One row per trigger; the previous state is overwritten.
func (r *TriggerRepository) SetEvaluationState(ctx context.Context, triggerID string, matched bool, evaluatedAt time.Time) error {
	query := `
		INSERT INTO trigger_evaluation_state (trigger_id, last_evaluated_at, last_matched)
		VALUES ($1, $2, $3)
		ON CONFLICT (trigger_id) DO UPDATE
		SET last_evaluated_at = EXCLUDED.last_evaluated_at,
		    last_matched = EXCLUDED.last_matched`

	if _, err := r.db.Exec(ctx, query, triggerID, evaluatedAt, matched); err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to upsert evaluation state", err)
	}
	return nil
}

// scanTrigger scans one joined row into a hydrated types.Trigger. The
// column order must match triggerColumns.
func scanTrigger(rows pgx.Rows) (*types.Trigger, error) {
	var t types.Trigger
	var (
		label               *string
		tideType            *string
		customTemplate      *string
		displayName         *string
		emoji               *string
		locationDisplayName *string
		buoyID              *string
		channels            []string
		lastEvaluatedAt     *time.Time
		lastMatched         *bool
	)

	err := rows.Scan(
		&t.ID,
		&t.UserID,
		&t.SpotID,
		&label,
		&t.MinWaveHeight,
		&t.MaxWaveHeight,
		&t.MinWavePeriod,
		&t.MaxWavePeriod,
		&t.MinWindSpeed,
		&t.MaxWindSpeed,
		&t.MinTideHeight,
		&t.MaxTideHeight,
		&t.MinSwellDirection,
		&t.MaxSwellDirection,
		&t.MinWindDirection,
		&t.MaxWindDirection,
		&tideType,
		&t.Style,
		&customTemplate,
		&displayName,
		&emoji,
		&t.Enabled,
		&t.CreatedAt,
		&t.UpdatedAt,
		&t.Spot.ID,
		&t.Spot.Name,
		&t.Spot.Location.Lat,
		&t.Spot.Location.Lon,
		&locationDisplayName,
		&buoyID,
		&t.Spot.Timezone,
		&t.Recipient.UserID,
		&t.Recipient.Email,
		&t.Recipient.DeviceTokens,
		&channels,
		&lastEvaluatedAt,
		&lastMatched,
	)
	if err != nil {
		return nil, err
	}

	// Hydrate optional fields from nullable columns.
	if label != nil {
		t.Label = types.ConditionLabel(*label)
	}
	if tideType != nil {
		t.TideType = types.TidePhase(*tideType)
	}
	if customTemplate != nil {
		t.CustomTemplate = *customTemplate
	}
	if displayName != nil {
		t.DisplayName = *displayName
	}
	if emoji != nil {
		t.Emoji = *emoji
	}
	if locationDisplayName != nil {
		t.Spot.Location.DisplayName = *locationDisplayName
	}
	if buoyID != nil {
		t.Spot.BuoyID = *buoyID
	}
	for _, ch := range channels {
		t.Recipient.Channels = append(t.Recipient.Channels, types.ChannelType(ch))
	}

	// Both state columns are NULL together on the LEFT JOIN miss.
	if lastEvaluatedAt != nil && lastMatched != nil {
		t.PrevState = &types.EvaluationState{
			TriggerID:       t.ID,
			LastEvaluatedAt: *lastEvaluatedAt,
			LastMatched:     *lastMatched,
		}
	}

	return &t, nil
}

// Compile-time assertion that TriggerRepository satisfies TriggerStore.
var _ types.TriggerStore = (*TriggerRepository)(nil)
