// Package domain models groundwater monitoring records ingested from the
// India-WRIS station-query service.
//
// # Data Source
//
// Records originate from the Water Resources Information System (WRIS)
// groundwater stations layer, an ArcGIS MapServer queried over HTTP with a
// SQL-style where clause and a forward-only pagination cursor. Each feature
// carries an "attributes" map and an optional point geometry.
//
// # Upstream Schema Conventions
//
// The attribute schema is not stable across stations; the same logical field
// appears under several names depending on which agency published the layer:
//
//	state:       state_name | state | STATE_NAME
//	district:    district_name | district | DISTRICT_NAME
//	block:       block_name | block | tehsil_name
//	village:     village_name | place_name | site_name | village
//	station id:  station_code | station_id | stn_code | id
//	water level: water_level | depth_to_water_level | water_level_mbgl | wl_mbgl
//	date:        measurement_date | date | data_time | obs_date
//
// Normalization tries each alias in order and takes the first populated value.
// Dates arrive either as epoch milliseconds (the ArcGIS convention) or as
// ISO-8601 / yyyy-mm-dd strings.
//
// Water levels are meters below ground level (MBGL): larger numbers mean a
// deeper water table. Availability, where reported, is in billion cubic
// meters (BCM).
//
// Geometry is an ArcGIS (x, y) pair, which maps to GeoJSON (longitude,
// latitude) order unchanged.
//
// # Idempotency Key
//
// The tuple (location.stationId, date) identifies a logical record. The
// station code is upstream's durable identifier; place names are noisy and
// inconsistently cased, so they never participate in the key. The bulk writer
// upserts on this tuple, which makes re-running ingestion against the same
// upstream data a no-op rather than a source of duplicates.
package domain
