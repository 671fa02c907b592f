// Package frame holds the time-aligned tabular representation shared by the
// whole pipeline: a strictly increasing UTC timestamp index with one float64
// column per data source, missing cells kept explicit as NaN.
package frame

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"
)

// Sampling steps supported by both upstream APIs.
const (
	StepQuarter = 15 * time.Minute
	StepHour    = time.Hour
)

// StationColumn is the reserved column name for the reference station.
const StationColumn = "station"

// SensorColumn returns the column name for a microsensor device.
func SensorColumn(deviceID int) string {
	return fmt.Sprintf("microcapteur_%d", deviceID)
}

// Series is an ordered, time-indexed sequence of values for one source and
// one pollutant. Missing values are NaN. The index is strictly increasing and
// de-duplicated.
type Series struct {
	Times  []time.Time
	Values []float64
}

// NewSeries builds a Series from parallel slices, sorting by time and keeping
// the first value seen for a duplicated timestamp.
func NewSeries(times []time.Time, values []float64) Series {
	if len(times) != len(values) {
		panic("frame: times and values length mismatch")
	}
	idx := make([]int, len(times))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return times[idx[a]].Before(times[idx[b]]) })

	s := Series{
		Times:  make([]time.Time, 0, len(times)),
		Values: make([]float64, 0, len(values)),
	}
	for _, i := range idx {
		n := len(s.Times)
		if n > 0 && s.Times[n-1].Equal(times[i]) {
			continue
		}
		s.Times = append(s.Times, times[i])
		s.Values = append(s.Values, values[i])
	}
	return s
}

// Empty reports whether the series has no observations.
func (s Series) Empty() bool {
	return len(s.Times) == 0
}

// Frame is a table whose rows are timestamps and whose columns are data
// sources. All columns share the identical index; missing cells are NaN.
type Frame struct {
	Index   []time.Time
	Columns []string
	Data    map[string][]float64
}

// New returns a frame over the given index with the given columns, every cell
// missing.
func New(index []time.Time, columns []string) *Frame {
	f := &Frame{
		Index:   index,
		Columns: append([]string(nil), columns...),
		Data:    make(map[string][]float64, len(columns)),
	}
	for _, col := range f.Columns {
		f.Data[col] = missingColumn(len(index))
	}
	return f
}

func missingColumn(n int) []float64 {
	vals := make([]float64, n)
	for i := range vals {
		vals[i] = math.NaN()
	}
	return vals
}

// Column returns the values for a named column, or nil when absent.
func (f *Frame) Column(name string) []float64 {
	return f.Data[name]
}

// NumRows returns the index length.
func (f *Frame) NumRows() int {
	return len(f.Index)
}

// Input pairs a column name with its source series for alignment.
type Input struct {
	Name   string
	Series Series
}

// Align joins the input series onto a shared index spanning [start, end] at
// the given step. The index is the union of the synthetic grid and every
// observed timestamp inside the bounds (outer join), so a timestamp present
// in any source is present in the result and an all-empty input set still
// yields a usable index. A source with no observations contributes an
// all-missing column rather than being dropped.
func Align(start, end time.Time, step time.Duration, inputs []Input) *Frame {
	start = start.UTC()
	end = end.UTC()

	seen := make(map[int64]struct{})
	index := make([]time.Time, 0)
	add := func(ts time.Time) {
		key := ts.UnixNano()
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		index = append(index, ts)
	}

	for ts := start; !ts.After(end); ts = ts.Add(step) {
		add(ts)
	}
	for _, in := range inputs {
		for _, ts := range in.Series.Times {
			ts = ts.UTC()
			if ts.Before(start) || ts.After(end) {
				continue
			}
			add(ts)
		}
	}
	sort.Slice(index, func(a, b int) bool { return index[a].Before(index[b]) })

	columns := make([]string, 0, len(inputs))
	for _, in := range inputs {
		columns = append(columns, in.Name)
	}
	f := New(index, columns)

	pos := make(map[int64]int, len(index))
	for i, ts := range index {
		pos[ts.UnixNano()] = i
	}
	for _, in := range inputs {
		col := f.Data[in.Name]
		for i, ts := range in.Series.Times {
			if at, ok := pos[ts.UTC().UnixNano()]; ok {
				col[at] = in.Series.Values[i]
			}
		}
	}
	return f
}

// MarshalJSON renders the frame as a plain tabular structure keyed by column
// name, with RFC3339 timestamps and missing cells as null.
func (f *Frame) MarshalJSON() ([]byte, error) {
	index := make([]string, len(f.Index))
	for i, ts := range f.Index {
		index[i] = ts.Format("2006-01-02T15:04:05Z")
	}
	columns := make(map[string][]*float64, len(f.Columns))
	for _, name := range f.Columns {
		src := f.Data[name]
		vals := make([]*float64, len(src))
		for i := range src {
			if !math.IsNaN(src[i]) {
				v := src[i]
				vals[i] = &v
			}
		}
		columns[name] = vals
	}
	return json.Marshal(struct {
		Index   []string              `json:"index"`
		Columns []string              `json:"column_order"`
		Data    map[string][]*float64 `json:"columns"`
	}{index, f.Columns, columns})
}
