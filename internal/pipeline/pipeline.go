// Package pipeline runs the per-request fetch, alignment and aggregation flow
// that turns raw upstream observations into the tables the dashboard renders.
package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/atmosud/micaexp/internal/frame"
	"github.com/atmosud/micaexp/internal/microspot"
	"github.com/atmosud/micaexp/internal/models"
	"github.com/atmosud/micaexp/internal/stats"
	"github.com/atmosud/micaexp/internal/xair"
)

// Pipeline bundles the upstream clients and the immutable configuration the
// statistics need. All state is request-scoped; the pipeline itself is safe
// for concurrent use.
type Pipeline struct {
	Sensors    *microspot.Client
	Station    *xair.Client
	Thresholds models.Thresholds
	Coverage   float64
	Logger     *slog.Logger
}

// New builds a pipeline. A nil thresholds table falls back to the FR regime,
// a zero coverage to the default gate.
func New(sensors *microspot.Client, station *xair.Client, thresholds models.Thresholds, coverage float64, logger *slog.Logger) *Pipeline {
	if thresholds == nil {
		thresholds = models.DefaultThresholds()
	}
	if coverage <= 0 {
		coverage = frame.DefaultCoverage
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		Sensors:    sensors,
		Station:    station,
		Thresholds: thresholds,
		Coverage:   coverage,
		Logger:     logger,
	}
}

// Request selects what to compare: one pollutant, one or more sensor devices,
// zero or one reference station, over [Start, End].
type Request struct {
	Pollutant models.Pollutant
	Devices   []int
	Station   string
	Start     time.Time
	End       time.Time
}

// Result carries every table the visualization layer consumes, keyed by
// column name, with no rendering concerns.
type Result struct {
	Quarter     *frame.Frame `json:"quarter_hourly"`
	Hourly      *frame.Frame `json:"hourly"`
	HourlyGated *frame.Frame `json:"hourly_gated"`
	Daily       *frame.Frame `json:"daily"`

	Summary     []models.SummaryRow `json:"summary"`
	Correlation stats.Matrix        `json:"correlation"`

	Rolling24hQuarter *frame.Frame `json:"rolling_24h_quarter_hourly"`
	Rolling24hHourly  *frame.Frame `json:"rolling_24h_hourly"`

	DiurnalWorkweek stats.Profile `json:"diurnal_workweek"`
	DiurnalWeekend  stats.Profile `json:"diurnal_weekend"`

	Sites []models.SensorSite `json:"sites"`
}

type sensorFetch struct {
	quarter frame.Series
	hourly  frame.Series
	site    *models.SensorSite
}

// Run executes one synchronous pipeline pass. A failed or empty source never
// aborts the request: its column comes back all-missing and the degradation
// is logged.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Result, error) {
	var (
		stationQuarter frame.Series
		stationHourly  frame.Series
		wg             sync.WaitGroup
	)

	if req.Station != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			stationQuarter = p.fetchStation(ctx, req, xair.DatatypeBase)
			stationHourly = p.fetchStation(ctx, req, xair.DatatypeHourly)
		}()
	}

	fetches := make([]sensorFetch, len(req.Devices))
	for i, deviceID := range req.Devices {
		wg.Add(1)
		go func(i, deviceID int) {
			defer wg.Done()
			fetches[i] = p.fetchSensor(ctx, req, deviceID)
		}(i, deviceID)
	}
	wg.Wait()

	quarterInputs := make([]frame.Input, 0, len(req.Devices)+1)
	hourlyInputs := make([]frame.Input, 0, len(req.Devices)+1)
	if req.Station != "" {
		quarterInputs = append(quarterInputs, frame.Input{Name: frame.StationColumn, Series: stationQuarter})
		hourlyInputs = append(hourlyInputs, frame.Input{Name: frame.StationColumn, Series: stationHourly})
	}

	sites := make([]models.SensorSite, 0, len(req.Devices))
	for i, deviceID := range req.Devices {
		name := frame.SensorColumn(deviceID)
		quarterInputs = append(quarterInputs, frame.Input{Name: name, Series: fetches[i].quarter})
		hourlyInputs = append(hourlyInputs, frame.Input{Name: name, Series: fetches[i].hourly})
		if fetches[i].site != nil {
			sites = append(sites, *fetches[i].site)
		}
	}

	quarter := frame.Align(req.Start, req.End, frame.StepQuarter, quarterInputs)
	hourly := frame.Align(req.Start, req.End, frame.StepHour, hourlyInputs)
	hourlyGated, daily := frame.HourlyDaily(quarter, p.Coverage)

	return &Result{
		Quarter:           quarter,
		Hourly:            hourly,
		HourlyGated:       hourlyGated,
		Daily:             daily,
		Summary:           stats.Summary(hourly, req.Pollutant, p.Thresholds),
		Correlation:       stats.Correlation(hourly),
		Rolling24hQuarter: stats.RollingMean(quarter, stats.Window24h(frame.StepQuarter)),
		Rolling24hHourly:  stats.RollingMean(hourly, stats.Window24h(frame.StepHour)),
		DiurnalWorkweek:   stats.DiurnalProfile(quarter, stats.Workweek),
		DiurnalWeekend:    stats.DiurnalProfile(quarter, stats.Weekend),
		Sites:             sites,
	}, nil
}

// fetchStation returns the station series for one granularity, degrading to
// an empty series on failure.
func (p *Pipeline) fetchStation(ctx context.Context, req Request, datatype string) frame.Series {
	series, err := p.Station.FetchSeries(ctx, xair.Query{
		Site:      req.Station,
		Pollutant: req.Pollutant,
		Datatype:  datatype,
		Start:     req.Start,
		End:       req.End,
	})
	if err != nil {
		p.Logger.Warn("station source unavailable, continuing without it",
			"station", req.Station,
			"datatype", datatype,
			"err", err,
		)
		return frame.Series{}
	}
	if series.Empty() {
		p.Logger.Info("station returned no observations",
			"station", req.Station,
			"datatype", datatype,
		)
	}
	return series
}

// fetchSensor returns both granularities for one device, degrading each to an
// empty series on failure.
func (p *Pipeline) fetchSensor(ctx context.Context, req Request, deviceID int) sensorFetch {
	var out sensorFetch

	quarter, site, err := p.Sensors.FetchObservations(ctx, microspot.Query{
		Pollutant:   req.Pollutant,
		DeviceID:    deviceID,
		Aggregation: microspot.AggregationQuarter,
		Start:       req.Start,
		End:         req.End,
	})
	if err != nil {
		p.Logger.Warn("sensor source unavailable, continuing without it",
			"device", deviceID,
			"aggregation", microspot.AggregationQuarter,
			"err", err,
		)
	} else {
		out.quarter = quarter
		out.site = site
	}

	hourly, site, err := p.Sensors.FetchObservations(ctx, microspot.Query{
		Pollutant:   req.Pollutant,
		DeviceID:    deviceID,
		Aggregation: microspot.AggregationHourly,
		Start:       req.Start,
		End:         req.End,
	})
	if err != nil {
		p.Logger.Warn("sensor source unavailable, continuing without it",
			"device", deviceID,
			"aggregation", microspot.AggregationHourly,
			"err", err,
		)
	} else {
		out.hourly = hourly
		if out.site == nil {
			out.site = site
		}
	}

	return out
}
