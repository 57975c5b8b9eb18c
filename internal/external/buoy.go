package external

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"swellwatch/internal/types"
)

const (
	defaultNDBCBaseURL = "https://www.ndbc.noaa.gov/data/realtime2"

	metersToFeet = 3.28084
)

// NDBCClient fetches live observations from NOAA NDBC stations. The
// realtime2 feed is a fixed-width text table; only the newest row is used.
//
// Buoy data is strictly supplementary: a fetch failure degrades to a nil
// observation upstream, it never fails an alert run.
type NDBCClient struct {
	client  *http.Client
	baseURL string
	clock   types.Clock
	// maxElapsed bounds the retry loop per fetch.
	maxElapsed time.Duration
}

// NewNDBCClient creates an NDBCClient. baseURL may be empty for the
// production NOAA endpoint.
func NewNDBCClient(baseURL string, clock types.Clock) *NDBCClient {
	if baseURL == "" {
		baseURL = defaultNDBCBaseURL
	}
	if clock == nil {
		clock = types.RealClock{}
	}
	return &NDBCClient{
		client:     &http.Client{Timeout: 15 * time.Second},
		baseURL:    baseURL,
		clock:      clock,
		maxElapsed: 30 * time.Second,
	}
}

// FetchObservation returns the most recent reading for the station.
func (c *NDBCClient) FetchObservation(ctx context.Context, stationID string) (*types.BuoyObservation, error) {
	url := fmt.Sprintf("%s/%s.txt", c.baseURL, stationID)

	var body []byte
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("build request: %w", err))
		}
		resp, err := c.client.Do(req)
		if err != nil {
			return fmt.Errorf("fetch station %s: %w", stationID, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusNotFound {
			return backoff.Permanent(fmt.Errorf("station %s not found", stationID))
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("fetch station %s: status %d", stationID, resp.StatusCode)
		}

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read body: %w", err)
		}
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = c.maxElapsed
	if err := backoff.Retry(operation, backoff.WithContext(bo, ctx)); err != nil {
		return nil, types.NewAppErrorWithDetails(types.ErrCodeProviderUnavailable,
			"buoy fetch failed", err, map[string]any{"station_id": stationID})
	}

	obs, err := parseRealtime2(stationID, body)
	if err != nil {
		return nil, types.NewAppErrorWithDetails(types.ErrCodeProviderNoData,
			"buoy feed unparseable", err, map[string]any{"station_id": stationID})
	}
	return obs, nil
}

// parseRealtime2 extracts the newest data row from an NDBC realtime2 table.
//
// The format is two header lines (#YY MM DD hh mm WVHT DPD ... WTMP ...)
// followed by rows newest-first, with "MM" marking a missing value.
func parseRealtime2(stationID string, body []byte) (*types.BuoyObservation, error) {
	scanner := bufio.NewScanner(strings.NewReader(string(body)))

	var columns []string
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "#") {
			// First header line names the columns, second gives units.
			if columns == nil {
				columns = strings.Fields(strings.TrimPrefix(line, "#"))
			}
			continue
		}
		if columns == nil {
			return nil, fmt.Errorf("data row before header")
		}
		return parseRealtime2Row(stationID, columns, strings.Fields(line))
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("no data rows")
}

func parseRealtime2Row(stationID string, columns, fields []string) (*types.BuoyObservation, error) {
	if len(fields) < 5 || len(fields) > len(columns) {
		return nil, fmt.Errorf("malformed row: %d fields for %d columns", len(fields), len(columns))
	}

	byName := make(map[string]string, len(columns))
	for i, name := range columns {
		if i < len(fields) {
			byName[name] = fields[i]
		}
	}

	observedAt, err := parseRealtime2Time(byName)
	if err != nil {
		return nil, err
	}

	obs := &types.BuoyObservation{
		StationID:  stationID,
		ObservedAt: observedAt,
	}
	// WVHT and WTMP are metric in the feed; convert to the units the rest
	// of the pipeline speaks.
	if v, ok := realtime2Value(byName, "WVHT"); ok {
		ft := v * metersToFeet
		obs.WaveHeightFt = &ft
	}
	if v, ok := realtime2Value(byName, "DPD"); ok {
		obs.WavePeriodS = &v
	}
	if v, ok := realtime2Value(byName, "WTMP"); ok {
		f := v*9/5 + 32
		obs.WaterTempF = &f
	}
	return obs, nil
}

func parseRealtime2Time(byName map[string]string) (time.Time, error) {
	parts := make([]int, 0, 5)
	for _, col := range []string{"YY", "MM", "DD", "hh", "mm"} {
		raw, ok := byName[col]
		if !ok {
			return time.Time{}, fmt.Errorf("missing time column %s", col)
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return time.Time{}, fmt.Errorf("parse time column %s: %w", col, err)
		}
		parts = append(parts, n)
	}
	return time.Date(parts[0], time.Month(parts[1]), parts[2], parts[3], parts[4], 0, 0, time.UTC), nil
}

// realtime2Value returns a numeric column value, treating NDBC's "MM"
// sentinel (and absent columns) as missing.
func realtime2Value(byName map[string]string, col string) (float64, bool) {
	raw, ok := byName[col]
	if !ok || raw == "MM" {
		return 0, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

var _ types.BuoyObserver = (*NDBCClient)(nil)
