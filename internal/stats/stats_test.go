package stats

import (
	"encoding/json"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/atmosud/micaexp/internal/frame"
	"github.com/atmosud/micaexp/internal/models"
)

func ts(t *testing.T, value string) time.Time {
	t.Helper()
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		t.Fatalf("parse %s: %v", value, err)
	}
	return parsed.UTC()
}

// scenarioFrame is the two-source comparison fixture: sensor A has a gap,
// station B is complete, over 4 hourly timestamps.
func scenarioFrame(t *testing.T) *frame.Frame {
	t.Helper()
	start := ts(t, "2024-01-08T00:00:00Z")
	times := make([]time.Time, 4)
	for i := range times {
		times[i] = start.Add(time.Duration(i) * time.Hour)
	}
	return frame.Align(start, times[3], frame.StepHour, []frame.Input{
		{Name: frame.StationColumn, Series: frame.NewSeries(times, []float64{12, 22, 32, 42})},
		{Name: "microcapteur_1", Series: frame.NewSeries(times, []float64{10, 20, math.NaN(), 40})},
	})
}

func TestSummaryScenario(t *testing.T) {
	f := scenarioFrame(t)

	rows := Summary(f, models.PM10, models.DefaultThresholds())

	if got, want := len(rows), 2; got != want {
		t.Fatalf("rows: got %d, want %d", got, want)
	}
	if got, want := f.NumRows(), 4; got != want {
		t.Fatalf("frame rows: got %d, want %d", got, want)
	}

	var sensor models.SummaryRow
	for _, row := range rows {
		if row.Name == "microcapteur_1" {
			sensor = row
		}
	}
	if math.Abs(sensor.Mean-23.3333) > 0.001 {
		t.Fatalf("sensor mean: got %v, want 23.33", sensor.Mean)
	}
	if sensor.Min != 10 || sensor.Max != 40 {
		t.Fatalf("sensor min/max: got %v/%v, want 10/40", sensor.Min, sensor.Max)
	}
}

func TestSummaryAllMissingColumnReportsZero(t *testing.T) {
	start := ts(t, "2024-01-08T00:00:00Z")
	f := frame.Align(start, start.Add(3*time.Hour), frame.StepHour, []frame.Input{
		{Name: "microcapteur_9", Series: frame.Series{}},
	})

	rows := Summary(f, models.PM10, models.DefaultThresholds())

	row := rows[0]
	if row.Mean != 0 || row.Min != 0 || row.Max != 0 || row.P90 != 0 {
		t.Fatalf("all-missing aggregates: got %+v, want zeros", row)
	}
	if !row.InfoExceedances.Applicable || row.InfoExceedances.Count != 0 {
		t.Fatalf("all-missing exceedances: got %+v, want applicable zero", row.InfoExceedances)
	}
}

func TestSummaryExceedanceCountsAreStrict(t *testing.T) {
	start := ts(t, "2024-01-08T00:00:00Z")
	times := make([]time.Time, 4)
	for i := range times {
		times[i] = start.Add(time.Duration(i) * time.Hour)
	}
	// 50 is the PM10 information level: equality must not count.
	f := frame.Align(start, times[3], frame.StepHour, []frame.Input{
		{Name: frame.StationColumn, Series: frame.NewSeries(times, []float64{50, 51, 81, 20})},
	})

	rows := Summary(f, models.PM10, models.DefaultThresholds())

	if got, want := rows[0].InfoExceedances.Count, 2; got != want {
		t.Fatalf("info exceedances: got %d, want %d", got, want)
	}
	if got, want := rows[0].AlertExceedances.Count, 1; got != want {
		t.Fatalf("alert exceedances: got %d, want %d", got, want)
	}
}

func TestSummaryPM1ReportsNotApplicable(t *testing.T) {
	f := scenarioFrame(t)

	rows := Summary(f, models.PM1, models.DefaultThresholds())

	for _, row := range rows {
		if row.InfoExceedances.Applicable || row.AlertExceedances.Applicable {
			t.Fatalf("PM1 exceedances must be not applicable: %+v", row)
		}
	}

	raw, err := json.Marshal(rows[0])
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(raw), `"exceedance_info_count":"N/A"`) {
		t.Fatalf("sentinel not serialized as N/A: %s", raw)
	}
}

func TestRollingMeanFirstPointEqualsFirstValue(t *testing.T) {
	f := scenarioFrame(t)

	rolled := RollingMean(f, Window24h(frame.StepHour))

	if got, want := rolled.Column(frame.StationColumn)[0], 12.0; got != want {
		t.Fatalf("first rolling point: got %v, want %v", got, want)
	}
	// Second point covers two samples.
	if got, want := rolled.Column(frame.StationColumn)[1], 17.0; got != want {
		t.Fatalf("second rolling point: got %v, want %v", got, want)
	}
	// The sensor gap is skipped, not poisoning the window.
	if got, want := rolled.Column("microcapteur_1")[2], 15.0; got != want {
		t.Fatalf("rolling over gap: got %v, want %v", got, want)
	}
}

func TestRollingMeanWindowLimitsLookback(t *testing.T) {
	start := ts(t, "2024-01-08T00:00:00Z")
	times := make([]time.Time, 5)
	for i := range times {
		times[i] = start.Add(time.Duration(i) * time.Hour)
	}
	f := frame.Align(start, times[4], frame.StepHour, []frame.Input{
		{Name: frame.StationColumn, Series: frame.NewSeries(times, []float64{0, 0, 0, 10, 20})},
	})

	rolled := RollingMean(f, 2)

	if got, want := rolled.Column(frame.StationColumn)[4], 15.0; got != want {
		t.Fatalf("trailing window: got %v, want %v", got, want)
	}
}

func TestWindow24h(t *testing.T) {
	if got, want := Window24h(frame.StepHour), 24; got != want {
		t.Fatalf("hourly window: got %d, want %d", got, want)
	}
	if got, want := Window24h(frame.StepQuarter), 96; got != want {
		t.Fatalf("quarter-hourly window: got %d, want %d", got, want)
	}
}

func TestCorrelationPairwiseComplete(t *testing.T) {
	f := scenarioFrame(t)

	m := Correlation(f)

	// B is A+2 on the 3 rows where A is present: perfect correlation.
	var i, j int
	for k, name := range m.Columns {
		if name == frame.StationColumn {
			i = k
		} else {
			j = k
		}
	}
	if got := m.Values[i][j]; math.Abs(got-1.0) > 1e-9 {
		t.Fatalf("pairwise correlation: got %v, want 1.0", got)
	}
	if got := m.Values[i][i]; math.Abs(got-1.0) > 1e-9 {
		t.Fatalf("self correlation: got %v, want 1.0", got)
	}
}

func TestCorrelationInsufficientOverlapIsNaN(t *testing.T) {
	start := ts(t, "2024-01-08T00:00:00Z")
	times := make([]time.Time, 4)
	for i := range times {
		times[i] = start.Add(time.Duration(i) * time.Hour)
	}
	f := frame.Align(start, times[3], frame.StepHour, []frame.Input{
		{Name: frame.StationColumn, Series: frame.NewSeries(times, []float64{1, 2, math.NaN(), math.NaN()})},
		{Name: "microcapteur_1", Series: frame.NewSeries(times, []float64{math.NaN(), math.NaN(), 3, 4})},
	})

	m := Correlation(f)

	if got := m.Values[0][1]; !math.IsNaN(got) {
		t.Fatalf("no overlapping rows: got %v, want NaN", got)
	}

	raw, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(raw), "null") {
		t.Fatalf("NaN entry not serialized as null: %s", raw)
	}
}
