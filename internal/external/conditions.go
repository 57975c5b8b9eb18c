package external

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"swellwatch/internal/types"
)

// ConditionsClient implements types.ConditionsProvider against the marine
// conditions service. One GET per spot returns the forecast-derived
// snapshot for "now"; any field the service cannot resolve for the
// location (tide at non-coastal stations, wind offshore) is simply absent
// from the response and stays nil on the snapshot.
type ConditionsClient struct {
	base    *BaseClient
	baseURL string
	apiKey  types.SecretString
	clock   types.Clock
}

// ConditionsClientConfig holds the configuration for a ConditionsClient.
type ConditionsClientConfig struct {
	// BaseURL of the conditions service, no trailing slash.
	BaseURL string
	APIKey  types.SecretString
	// Timeout bounds one fetch including retries.
	Timeout   time.Duration
	UserAgent string
	Clock     types.Clock
}

// NewConditionsClient creates a ConditionsClient.
func NewConditionsClient(cfg ConditionsClientConfig) *ConditionsClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	clock := cfg.Clock
	if clock == nil {
		clock = types.RealClock{}
	}
	return &ConditionsClient{
		base: NewBaseClient(
			&http.Client{Timeout: timeout},
			"conditions",
			DefaultRetryPolicy(),
			cfg.UserAgent,
		),
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		clock:   clock,
	}
}

// conditionsResponse is the service's wire shape. All fields optional.
type conditionsResponse struct {
	WaveHeightFt      *float64 `json:"wave_height_ft"`
	WavePeriodS       *float64 `json:"wave_period_s"`
	SwellDirectionDeg *float64 `json:"swell_direction_deg"`
	WindSpeedKt       *float64 `json:"wind_speed_kt"`
	WindDirectionDeg  *float64 `json:"wind_direction_deg"`
	Tide              *struct {
		HeightFt *float64 `json:"height_ft"`
		Phase    string   `json:"phase"`
	} `json:"tide"`
}

// FetchConditions returns the current snapshot for the spot's coordinates.
// A 404 from the service (unknown location) maps to an empty snapshot,
// which downstream evaluates as a normal "no forecast data" non-match.
func (c *ConditionsClient) FetchConditions(ctx context.Context, spot types.Spot) (*types.ConditionSnapshot, error) {
	u := fmt.Sprintf("%s/v1/conditions?lat=%s&lon=%s",
		c.baseURL,
		url.QueryEscape(fmt.Sprintf("%.4f", spot.Location.Lat)),
		url.QueryEscape(fmt.Sprintf("%.4f", spot.Location.Lon)),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected,
			"failed to build conditions request", err)
	}
	if key := c.apiKey.Unmask(); key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}

	resp, err := c.base.Do(req)
	if err != nil {
		return nil, types.NewAppErrorWithDetails(types.ErrCodeProviderUnavailable,
			"conditions fetch failed", err, map[string]any{"spot_id": spot.ID})
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return &types.ConditionSnapshot{FetchedAt: c.clock.Now()}, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, types.NewAppErrorWithDetails(types.ErrCodeProviderUnavailable,
			fmt.Sprintf("conditions service returned %d", resp.StatusCode), nil,
			map[string]any{"spot_id": spot.ID})
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeProviderUnavailable,
			"failed to read conditions response", err)
	}

	var cr conditionsResponse
	if err := json.Unmarshal(body, &cr); err != nil {
		return nil, types.NewAppError(types.ErrCodeProviderUnavailable,
			"malformed conditions response", err)
	}

	snapshot := &types.ConditionSnapshot{
		WaveHeightFt:      cr.WaveHeightFt,
		WavePeriodS:       cr.WavePeriodS,
		SwellDirectionDeg: cr.SwellDirectionDeg,
		WindSpeedKt:       cr.WindSpeedKt,
		WindDirectionDeg:  cr.WindDirectionDeg,
		FetchedAt:         c.clock.Now(),
	}
	if cr.Tide != nil {
		snapshot.TideHeightFt = cr.Tide.HeightFt
		snapshot.TidePhase = parseTidePhase(cr.Tide.Phase)
	}
	return snapshot, nil
}

// parseTidePhase maps the service's phase string onto the domain enum,
// dropping anything unrecognized rather than failing the snapshot.
func parseTidePhase(s string) types.TidePhase {
	switch types.TidePhase(s) {
	case types.TideRising, types.TideFalling, types.TideSlack:
		return types.TidePhase(s)
	}
	return ""
}

// Compile-time assertion that ConditionsClient satisfies ConditionsProvider.
var _ types.ConditionsProvider = (*ConditionsClient)(nil)
