package frame

import (
	"math"
	"strings"
	"testing"
	"time"
)

func ts(t *testing.T, value string) time.Time {
	t.Helper()
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		t.Fatalf("parse %s: %v", value, err)
	}
	return parsed.UTC()
}

func hourlySeries(t *testing.T, start string, values ...float64) Series {
	t.Helper()
	first := ts(t, start)
	times := make([]time.Time, len(values))
	for i := range values {
		times[i] = first.Add(time.Duration(i) * time.Hour)
	}
	return NewSeries(times, values)
}

func TestNewSeriesSortsAndDedups(t *testing.T) {
	t0 := ts(t, "2024-01-08T00:00:00Z")
	s := NewSeries(
		[]time.Time{t0.Add(2 * time.Hour), t0, t0.Add(time.Hour), t0},
		[]float64{30, 10, 20, 99},
	)

	if got, want := len(s.Times), 3; got != want {
		t.Fatalf("len: got %d, want %d", got, want)
	}
	for i := 1; i < len(s.Times); i++ {
		if !s.Times[i-1].Before(s.Times[i]) {
			t.Fatalf("index not strictly increasing at %d", i)
		}
	}
	if s.Values[0] != 10 {
		t.Fatalf("duplicate resolution: got %v, want first value 10", s.Values[0])
	}
}

func TestAlignIndexSpansBounds(t *testing.T) {
	start := ts(t, "2024-01-08T00:00:00Z")
	end := ts(t, "2024-01-08T03:00:00Z")

	f := Align(start, end, StepHour, []Input{
		{Name: "microcapteur_1", Series: hourlySeries(t, "2024-01-08T01:00:00Z", 20, 30)},
	})

	if got, want := f.NumRows(), 4; got != want {
		t.Fatalf("rows: got %d, want %d", got, want)
	}
	if !f.Index[0].Equal(start) || !f.Index[3].Equal(end) {
		t.Fatalf("index bounds: got [%v, %v], want [%v, %v]", f.Index[0], f.Index[3], start, end)
	}
	for i := 1; i < len(f.Index); i++ {
		if got := f.Index[i].Sub(f.Index[i-1]); got != StepHour {
			t.Fatalf("step at %d: got %v, want %v", i, got, StepHour)
		}
	}

	col := f.Column("microcapteur_1")
	if !math.IsNaN(col[0]) || col[1] != 20 || col[2] != 30 || !math.IsNaN(col[3]) {
		t.Fatalf("column values: got %v", col)
	}
}

func TestAlignSyntheticIndexWhenAllEmpty(t *testing.T) {
	start := ts(t, "2024-01-08T00:00:00Z")
	end := ts(t, "2024-01-08T01:00:00Z")

	f := Align(start, end, StepQuarter, []Input{
		{Name: "microcapteur_7", Series: Series{}},
	})

	if got, want := f.NumRows(), 5; got != want {
		t.Fatalf("rows: got %d, want %d", got, want)
	}
	for _, v := range f.Column("microcapteur_7") {
		if !math.IsNaN(v) {
			t.Fatalf("expected all-missing column, got %v", v)
		}
	}
}

func TestAlignOuterJoinKeepsObservedTimestamps(t *testing.T) {
	start := ts(t, "2024-01-08T00:00:00Z")
	end := ts(t, "2024-01-08T02:00:00Z")
	offGrid := ts(t, "2024-01-08T00:30:00Z")

	f := Align(start, end, StepHour, []Input{
		{Name: StationColumn, Series: NewSeries([]time.Time{offGrid}, []float64{42})},
		{Name: "microcapteur_1", Series: hourlySeries(t, "2024-01-08T00:00:00Z", 1, 2, 3)},
	})

	if got, want := f.NumRows(), 4; got != want {
		t.Fatalf("rows: got %d, want %d", got, want)
	}
	if f.Column(StationColumn)[1] != 42 {
		t.Fatalf("off-grid observation lost: %v", f.Column(StationColumn))
	}
	// The other source must carry an explicit missing cell at the union row.
	if !math.IsNaN(f.Column("microcapteur_1")[1]) {
		t.Fatalf("expected missing cell at union row, got %v", f.Column("microcapteur_1")[1])
	}
}

func TestAlignDropsOutOfBoundsObservations(t *testing.T) {
	start := ts(t, "2024-01-08T00:00:00Z")
	end := ts(t, "2024-01-08T01:00:00Z")

	f := Align(start, end, StepHour, []Input{
		{Name: StationColumn, Series: hourlySeries(t, "2024-01-07T23:00:00Z", 5, 6, 7, 8)},
	})

	if got, want := f.NumRows(), 2; got != want {
		t.Fatalf("rows: got %d, want %d", got, want)
	}
	col := f.Column(StationColumn)
	if col[0] != 6 || col[1] != 7 {
		t.Fatalf("in-bounds values: got %v", col)
	}
}

func TestAlignIdempotent(t *testing.T) {
	start := ts(t, "2024-01-08T00:00:00Z")
	end := ts(t, "2024-01-08T03:00:00Z")
	series := hourlySeries(t, "2024-01-08T00:00:00Z", 10, 20, 30, 40)

	first := Align(start, end, StepHour, []Input{{Name: StationColumn, Series: series}})
	second := Align(start, end, StepHour, []Input{
		{Name: StationColumn, Series: NewSeries(first.Index, first.Column(StationColumn))},
	})

	if second.NumRows() != first.NumRows() {
		t.Fatalf("re-alignment changed row count: %d vs %d", second.NumRows(), first.NumRows())
	}
	for i, v := range second.Column(StationColumn) {
		if v != first.Column(StationColumn)[i] {
			t.Fatalf("re-alignment changed value at %d: %v vs %v", i, v, first.Column(StationColumn)[i])
		}
	}
}

func TestFrameMarshalJSONNullsMissing(t *testing.T) {
	start := ts(t, "2024-01-08T00:00:00Z")
	f := Align(start, start.Add(time.Hour), StepHour, []Input{
		{Name: StationColumn, Series: NewSeries([]time.Time{start}, []float64{12.5})},
	})

	raw, err := f.MarshalJSON()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	got := string(raw)
	for _, want := range []string{`"station":[12.5,null]`, `"2024-01-08T00:00:00Z"`} {
		if !strings.Contains(got, want) {
			t.Fatalf("marshal output missing %q: %s", want, got)
		}
	}
}
