package domain

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Trend is the reported direction of the water table at a station.
type Trend string

const (
	TrendRising  Trend = "Rising"
	TrendFalling Trend = "Falling"
	TrendStable  Trend = "Stable"
)

// Source identifies which upstream system a record was ingested from.
type Source string

// SourceWRIS tags records ingested from the India-WRIS station service.
const SourceWRIS Source = "WRIS"

// pinCodeRe matches a valid Indian postal PIN code.
var pinCodeRe = regexp.MustCompile(`^\d{6}$`)

// GeoPoint is a GeoJSON point: coordinates are (longitude, latitude).
type GeoPoint struct {
	Type        string     `bson:"type" json:"type"`
	Coordinates [2]float64 `bson:"coordinates" json:"coordinates"`
}

// NewGeoPoint builds a GeoJSON point from longitude and latitude.
func NewGeoPoint(lon, lat float64) *GeoPoint {
	return &GeoPoint{Type: "Point", Coordinates: [2]float64{lon, lat}}
}

// Location is the administrative and geographic placement of a station.
// Only state is mandatory; everything else depends on what the upstream
// layer happened to publish.
type Location struct {
	State    string `bson:"state" json:"state"`
	District string `bson:"district,omitempty" json:"district,omitempty"`
	Block    string `bson:"block,omitempty" json:"block,omitempty"`
	Village  string `bson:"village,omitempty" json:"village,omitempty"`
	PinCode  string `bson:"pinCode,omitempty" json:"pinCode,omitempty"`
	// StationID is stored even when empty: the upsert filter matches on
	// location.stationId equality, and a missing field does not match "".
	StationID   string    `bson:"stationId" json:"stationId,omitempty"`
	Coordinates *GeoPoint `bson:"coordinates,omitempty" json:"coordinates,omitempty"`
}

// GroundwaterRecord is one groundwater level observation at one station on
// one date. CreatedAt/UpdatedAt are store-managed and excluded from the
// document body written by the bulk upserter.
type GroundwaterRecord struct {
	Location        Location           `bson:"location" json:"location"`
	Date            time.Time          `bson:"date" json:"date"`
	WaterLevelMBGL  float64            `bson:"waterLevelMbgl" json:"waterLevelMbgl"`
	AvailabilityBCM *float64           `bson:"availabilityBcm,omitempty" json:"availabilityBcm,omitempty"`
	Trend           Trend              `bson:"trend,omitempty" json:"trend,omitempty"`
	Source          Source             `bson:"source" json:"source"`
	Quality         map[string]float64 `bson:"quality,omitempty" json:"quality,omitempty"`

	CreatedAt time.Time `bson:"-" json:"createdAt,omitempty"`
	UpdatedAt time.Time `bson:"-" json:"updatedAt,omitempty"`
}

// Validate enforces the record invariants independently of any storage-engine
// schema: required state and date, a plausible water level, enum-valid trend
// and source, and a well-formed PIN code when one is present.
func (r *GroundwaterRecord) Validate() error {
	if strings.TrimSpace(r.Location.State) == "" {
		return fmt.Errorf("record missing state")
	}
	if r.Date.IsZero() {
		return fmt.Errorf("record missing date")
	}
	if r.Source != SourceWRIS {
		return fmt.Errorf("invalid source %q", r.Source)
	}
	switch r.Trend {
	case "", TrendRising, TrendFalling, TrendStable:
	default:
		return fmt.Errorf("invalid trend %q", r.Trend)
	}
	if r.Location.PinCode != "" && !pinCodeRe.MatchString(r.Location.PinCode) {
		return fmt.Errorf("invalid pin code %q", r.Location.PinCode)
	}
	return nil
}

// SaveStats reports the outcome of one bulk upsert batch.
type SaveStats struct {
	Inserted int64
	Updated  int64
}

// Total is the number of documents the batch touched.
func (s SaveStats) Total() int64 { return s.Inserted + s.Updated }

// PinCodeResolver resolves a postal PIN code for a village. Implementations
// degrade internally: a failed or empty lookup reports ok=false and never an
// error, so enrichment can never block a record.
type PinCodeResolver interface {
	Resolve(ctx context.Context, village, district string) (pin string, ok bool)
}
