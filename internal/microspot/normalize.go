package microspot

import (
	"math"
	"time"

	"github.com/atmosud/micaexp/internal/frame"
	"github.com/atmosud/micaexp/internal/models"
)

// Device mirrors one entry of the nested observations payload:
// device -> datastreams -> observations.
type Device struct {
	ID           int          `json:"id"`
	ScanInterval int          `json:"scanInterval"`
	Datastreams  []Datastream `json:"datastreams"`
}

// Datastream carries one campaign's observation list plus its location.
type Datastream struct {
	ID           int           `json:"id"`
	Campaign     Campaign      `json:"campaign"`
	Location     *Location     `json:"location"`
	Observations []Observation `json:"observations"`
}

// Campaign identifies the measurement campaign a datastream belongs to.
type Campaign struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Location is the deployment site attached to a datastream. Position is
// [lat, lon].
type Location struct {
	ID       int       `json:"id"`
	Name     string    `json:"name"`
	Position []float64 `json:"position"`
}

// Observation is a single measured point. Value fields are pointers because
// either may be absent depending on the requested aggregation.
type Observation struct {
	HappenedAt    string   `json:"happenedAt"`
	ValueRaw      *float64 `json:"valueRaw"`
	ValueModified *float64 `json:"valueModified"`
	IsoCode       string   `json:"isoCode"`
}

// Normalize flattens the nested payload into a single series for the given
// pollutant. Quarter-hourly data exposes the raw value, hourly the
// quality-modified one; a missing value field becomes a missing cell rather
// than an error. Timestamps are parsed permissively (unparseable rows are
// dropped) and coerced to UTC. A payload with no usable observations yields
// an empty series, which downstream treats as a render-nothing case.
func Normalize(devices []Device, poll models.Pollutant, aggregation string) (frame.Series, *models.SensorSite) {
	var (
		times  []time.Time
		values []float64
		site   *models.SensorSite
	)

	for _, dev := range devices {
		for _, ds := range dev.Datastreams {
			if site == nil {
				site = siteOf(dev, ds)
			}
			for _, obs := range ds.Observations {
				if obs.IsoCode != "" && obs.IsoCode != poll.ISO() {
					continue
				}
				ts, ok := parseTimestamp(obs.HappenedAt)
				if !ok {
					continue
				}
				times = append(times, ts)
				values = append(values, valueOf(obs, aggregation))
			}
		}
	}

	return frame.NewSeries(times, values), site
}

func valueOf(obs Observation, aggregation string) float64 {
	var v *float64
	if aggregation == AggregationQuarter {
		v = obs.ValueRaw
	} else {
		v = obs.ValueModified
	}
	if v == nil {
		return math.NaN()
	}
	return *v
}

func siteOf(dev Device, ds Datastream) *models.SensorSite {
	site := &models.SensorSite{
		DeviceID:     dev.ID,
		ScanInterval: dev.ScanInterval,
		Campaign:     ds.Campaign.Name,
	}
	if ds.Location != nil {
		site.SiteID = ds.Location.ID
		site.SiteName = ds.Location.Name
		if len(ds.Location.Position) >= 2 {
			site.Lat = ds.Location.Position[0]
			site.Lon = ds.Location.Position[1]
		}
	}
	return site
}

// parseTimestamp accepts the timestamp formats observed in the wild and
// strips the zone down to naive UTC.
func parseTimestamp(raw string) (time.Time, bool) {
	for _, layout := range []string{
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
	} {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts.UTC(), true
		}
	}
	return time.Time{}, false
}
