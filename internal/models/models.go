package models

import (
	"encoding/json"
	"fmt"
)

// Pollutant identifies a particulate-matter fraction tracked by the dashboard.
type Pollutant string

const (
	PM10 Pollutant = "PM10"
	PM25 Pollutant = "PM2.5"
	PM1  Pollutant = "PM1"
)

// ParsePollutant maps a user-facing pollutant name to its enum value.
func ParsePollutant(s string) (Pollutant, error) {
	switch Pollutant(s) {
	case PM10, PM25, PM1:
		return Pollutant(s), nil
	}
	return "", fmt.Errorf("unknown pollutant %q", s)
}

// ISO returns the observation-type code used by both upstream APIs.
func (p Pollutant) ISO() string {
	switch p {
	case PM10:
		return "24"
	case PM25:
		return "39"
	case PM1:
		return "68"
	}
	return ""
}

// IDPrefix returns the measure-identifier prefix convention used by the
// reference-station network to distinguish co-located measures. PM1 has no
// reliable prefix; see xair.Disambiguate for the fallback policy.
func (p Pollutant) IDPrefix() string {
	switch p {
	case PM10:
		return "PC"
	case PM25:
		return "P2"
	case PM1:
		return "PM1"
	}
	return ""
}

// Unit returns the display unit for the pollutant.
func (p Pollutant) Unit() string {
	return "µg/m³"
}

// Threshold holds the French regulatory information and alert levels for one
// pollutant, in µg/m³.
type Threshold struct {
	Information float64 `json:"seuil_information"`
	Alert       float64 `json:"seuil_alerte"`
}

// Thresholds is an immutable lookup of regulatory levels per pollutant.
// Pollutants without a defined regime (PM1) are simply absent.
type Thresholds map[Pollutant]Threshold

// DefaultThresholds returns the FR regime table.
func DefaultThresholds() Thresholds {
	return Thresholds{
		PM10: {Information: 50, Alert: 80},
		PM25: {Information: 20, Alert: 25},
	}
}

// Lookup returns the threshold for a pollutant, reporting whether one is
// defined at all.
func (t Thresholds) Lookup(p Pollutant) (Threshold, bool) {
	th, ok := t[p]
	return th, ok
}

// SensorSite describes a microsensor deployment as returned by the telemetry
// API sites catalogue.
type SensorSite struct {
	SiteID       int     `json:"site_id"`
	SiteName     string  `json:"site_name"`
	Lat          float64 `json:"lat"`
	Lon          float64 `json:"lon"`
	DeviceID     int     `json:"device_id"`
	ScanInterval int     `json:"scan_interval,omitempty"`
	Campaign     string  `json:"campaign,omitempty"`
}

// StationSite describes a regulatory reference station.
type StationSite struct {
	ID    string  `json:"id"`
	Label string  `json:"label"`
	Lat   float64 `json:"lat"`
	Lon   float64 `json:"lon"`
}

// ExceedanceCount is a threshold-exceedance tally which may be not applicable
// when the pollutant has no regulatory threshold. Not-applicable is distinct
// from a count of zero and serializes as "N/A".
type ExceedanceCount struct {
	Applicable bool
	Count      int
}

// MarshalJSON renders the count, or "N/A" when no threshold is defined.
func (c ExceedanceCount) MarshalJSON() ([]byte, error) {
	if !c.Applicable {
		return json.Marshal("N/A")
	}
	return json.Marshal(c.Count)
}

// SummaryRow holds the per-column aggregates shown in the dashboard summary
// table. Created fresh per request, never mutated.
type SummaryRow struct {
	Name             string          `json:"name"`
	Mean             float64         `json:"mean"`
	Min              float64         `json:"min"`
	Max              float64         `json:"max"`
	P90              float64         `json:"p90"`
	InfoExceedances  ExceedanceCount `json:"exceedance_info_count"`
	AlertExceedances ExceedanceCount `json:"exceedance_alert_count"`
}
