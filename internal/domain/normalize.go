package domain

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Normalization drop reasons. The orchestrator counts these; they are never
// fatal to a page.
var (
	ErrMissingState      = errors.New("feature has no state in any aliased field")
	ErrMissingWaterLevel = errors.New("feature has no water level in any aliased field")
)

// Geometry is the ArcGIS point shape attached to a feature: x is longitude,
// y is latitude.
type Geometry struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// RawFeature is one feature as returned by the station-query service. The
// attribute schema varies across stations, so attributes stay an untyped map
// until normalization.
type RawFeature struct {
	Attributes map[string]any `json:"attributes"`
	Geometry   *Geometry      `json:"geometry"`
}

// Field aliases observed across WRIS layers. Order matters: the first
// populated alias wins.
var (
	stateAliases      = []string{"state_name", "state", "STATE_NAME"}
	districtAliases   = []string{"district_name", "district", "DISTRICT_NAME"}
	blockAliases      = []string{"block_name", "block", "tehsil_name"}
	villageAliases    = []string{"village_name", "place_name", "site_name", "village"}
	stationAliases    = []string{"station_code", "station_id", "stn_code", "id"}
	waterLevelAliases = []string{"water_level", "depth_to_water_level", "water_level_mbgl", "wl_mbgl"}
	dateAliases       = []string{"measurement_date", "date", "data_time", "obs_date"}
	availabilityAlias = []string{"availability_bcm", "availability"}
)

// NormalizeFeature maps a raw upstream feature into a validated
// GroundwaterRecord, resolving a PIN code through resolver when the feature
// names a village. A nil resolver disables enrichment. Features missing a
// state or a water level are rejected with the sentinel errors above.
func NormalizeFeature(ctx context.Context, f RawFeature, resolver PinCodeResolver) (GroundwaterRecord, error) {
	attrs := f.Attributes

	state := firstString(attrs, stateAliases)
	if state == "" {
		return GroundwaterRecord{}, ErrMissingState
	}

	level, ok := firstNumber(attrs, waterLevelAliases)
	if !ok {
		return GroundwaterRecord{}, ErrMissingWaterLevel
	}

	district := firstString(attrs, districtAliases)
	village := firstString(attrs, villageAliases)

	var pin string
	if village != "" && resolver != nil {
		pin, _ = resolver.Resolve(ctx, village, district)
	}

	rec := GroundwaterRecord{
		Location: Location{
			State:     state,
			District:  district,
			Block:     firstString(attrs, blockAliases),
			Village:   village,
			PinCode:   pin,
			StationID: firstString(attrs, stationAliases),
		},
		Date:           parseDate(attrs),
		WaterLevelMBGL: level,
		Trend:          parseTrend(attrs["trend"]),
		Source:         SourceWRIS,
		Quality:        parseQuality(attrs["quality"]),
	}

	if v, ok := firstNumber(attrs, availabilityAlias); ok {
		rec.AvailabilityBCM = &v
	}
	if f.Geometry != nil {
		rec.Location.Coordinates = NewGeoPoint(f.Geometry.X, f.Geometry.Y)
	}

	if err := rec.Validate(); err != nil {
		return GroundwaterRecord{}, fmt.Errorf("normalize feature: %w", err)
	}
	return rec, nil
}

// firstString returns the first alias whose value is a non-blank string or a
// number (station codes arrive as either), trimmed.
func firstString(attrs map[string]any, aliases []string) string {
	for _, k := range aliases {
		switch v := attrs[k].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		case int:
			return strconv.Itoa(v)
		}
	}
	return ""
}

// firstNumber returns the first alias holding a numeric value, accepting
// numeric strings since some layers publish measurements as text.
func firstNumber(attrs map[string]any, aliases []string) (float64, bool) {
	for _, k := range aliases {
		switch v := attrs[k].(type) {
		case float64:
			return v, true
		case int:
			return float64(v), true
		case string:
			if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
				return f, true
			}
		}
	}
	return 0, false
}

// parseDate reads the first populated date alias. ArcGIS serves epoch
// milliseconds; some layers serve ISO strings. Features with no usable date
// are stamped with the current time so they still land under a unique
// (station, date) key for this run.
func parseDate(attrs map[string]any) time.Time {
	for _, k := range dateAliases {
		switch v := attrs[k].(type) {
		case float64:
			if v > 0 {
				return time.UnixMilli(int64(v)).UTC()
			}
		case string:
			s := strings.TrimSpace(v)
			if s == "" {
				continue
			}
			for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
				if t, err := time.Parse(layout, s); err == nil {
					return t.UTC()
				}
			}
		}
	}
	return clock.Now().UTC()
}

// parseTrend maps the upstream trend value onto the enum, dropping anything
// unrecognized to absent: upstream is noisy and trend is optional.
func parseTrend(v any) Trend {
	s, _ := v.(string)
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "rising":
		return TrendRising
	case "falling":
		return TrendFalling
	case "stable":
		return TrendStable
	default:
		return ""
	}
}

// parseQuality converts an embedded quality-metric object, keeping only
// numeric values.
func parseQuality(v any) map[string]float64 {
	m, ok := v.(map[string]any)
	if !ok || len(m) == 0 {
		return nil
	}
	out := make(map[string]float64, len(m))
	for k, raw := range m {
		if f, ok := raw.(float64); ok {
			out[k] = f
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
