// Package stats derives the numeric summaries the dashboard renders: per-column
// aggregates, threshold exceedances, rolling means and the pairwise correlation
// matrix, all missing-aware.
package stats

import (
	"encoding/json"
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/atmosud/micaexp/internal/frame"
	"github.com/atmosud/micaexp/internal/models"
)

// Summary computes one SummaryRow per column of the hourly frame. Aggregates
// ignore missing values; a column with no data at all reports zeros so the
// table still formats. Exceedance counts compare strictly against the
// pollutant's information/alert levels and report not-applicable when the
// pollutant has no regulatory threshold.
func Summary(hourly *frame.Frame, poll models.Pollutant, thresholds models.Thresholds) []models.SummaryRow {
	th, hasThreshold := thresholds.Lookup(poll)

	rows := make([]models.SummaryRow, 0, len(hourly.Columns))
	for _, name := range hourly.Columns {
		vals := observed(hourly.Data[name])

		row := models.SummaryRow{
			Name:             name,
			InfoExceedances:  models.ExceedanceCount{Applicable: hasThreshold},
			AlertExceedances: models.ExceedanceCount{Applicable: hasThreshold},
		}
		if len(vals) > 0 {
			row.Mean = stat.Mean(vals, nil)
			row.Min = minOf(vals)
			row.Max = maxOf(vals)
			row.P90 = quantile(vals, 0.9)
		}
		if hasThreshold {
			for _, v := range vals {
				if v > th.Information {
					row.InfoExceedances.Count++
				}
				if v > th.Alert {
					row.AlertExceedances.Count++
				}
			}
		}
		rows = append(rows, row)
	}
	return rows
}

// RollingMean computes a trailing moving average per column. The window covers
// the last `window` rows; a point is the mean of the non-missing values inside
// its window, so the first output equals the first input (single-sample
// window) and an all-missing window stays missing.
func RollingMean(f *frame.Frame, window int) *frame.Frame {
	out := frame.New(f.Index, f.Columns)
	for _, name := range f.Columns {
		src := f.Data[name]
		dst := out.Data[name]
		for i := range src {
			lo := i - window + 1
			if lo < 0 {
				lo = 0
			}
			sum, count := 0.0, 0
			for j := lo; j <= i; j++ {
				if !math.IsNaN(src[j]) {
					sum += src[j]
					count++
				}
			}
			if count > 0 {
				dst[i] = sum / float64(count)
			}
		}
	}
	return out
}

// Window24h returns the rolling-window length that spans 24 calendar hours at
// the given sampling step: 24 samples at hourly, 96 at quarter-hourly.
func Window24h(step time.Duration) int {
	return int(24 * time.Hour / step)
}

// Matrix is a square pairwise correlation matrix over frame columns. Entries
// with fewer than two complete pairs are NaN and serialize as null.
type Matrix struct {
	Columns []string
	Values  [][]float64
}

// Correlation computes the Pearson correlation between every pair of columns,
// using only rows where both columns are simultaneously non-missing.
func Correlation(f *frame.Frame) Matrix {
	n := len(f.Columns)
	m := Matrix{
		Columns: append([]string(nil), f.Columns...),
		Values:  make([][]float64, n),
	}
	for i := range m.Values {
		m.Values[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			r := pairwiseCorrelation(f.Data[f.Columns[i]], f.Data[f.Columns[j]])
			m.Values[i][j] = r
			m.Values[j][i] = r
		}
	}
	return m
}

func pairwiseCorrelation(a, b []float64) float64 {
	xs := make([]float64, 0, len(a))
	ys := make([]float64, 0, len(b))
	for i := range a {
		if !math.IsNaN(a[i]) && !math.IsNaN(b[i]) {
			xs = append(xs, a[i])
			ys = append(ys, b[i])
		}
	}
	if len(xs) < 2 {
		return math.NaN()
	}
	return stat.Correlation(xs, ys, nil)
}

// MarshalJSON renders the matrix with NaN entries as null.
func (m Matrix) MarshalJSON() ([]byte, error) {
	values := make([][]*float64, len(m.Values))
	for i, row := range m.Values {
		values[i] = make([]*float64, len(row))
		for j := range row {
			if !math.IsNaN(row[j]) {
				v := row[j]
				values[i][j] = &v
			}
		}
	}
	return json.Marshal(struct {
		Columns []string     `json:"columns"`
		Values  [][]*float64 `json:"values"`
	}{m.Columns, values})
}

func observed(vals []float64) []float64 {
	out := make([]float64, 0, len(vals))
	for _, v := range vals {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}

func quantile(vals []float64, q float64) float64 {
	sorted := append([]float64(nil), vals...)
	sort.Float64s(sorted)
	return stat.Quantile(q, stat.Empirical, sorted, nil)
}

func minOf(vals []float64) float64 {
	m := vals[0]
	for _, v := range vals[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

func maxOf(vals []float64) float64 {
	m := vals[0]
	for _, v := range vals[1:] {
		if v > m {
			m = v
		}
	}
	return m
}
