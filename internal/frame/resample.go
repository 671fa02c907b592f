package frame

import (
	"math"
	"time"
)

// DefaultCoverage is the minimum fraction of non-missing native samples a
// bucket needs before its aggregate is trusted.
const DefaultCoverage = 0.75

// Resample downsamples a native-resolution frame into buckets of the given
// width. For each bucket and each column independently the coverage is the
// count of non-missing native samples over the count expected from the step;
// a bucket at or above the threshold emits the mean of the available samples,
// anything below emits missing. This keeps an hour or a day with one lucky
// reading from masquerading as measured.
func Resample(native *Frame, step, bucket time.Duration, threshold float64) *Frame {
	expected := int(bucket / step)
	if expected < 1 {
		expected = 1
	}

	labels := make([]time.Time, 0)
	rows := make(map[int64][]int)
	for i, ts := range native.Index {
		lb := ts.Truncate(bucket)
		key := lb.UnixNano()
		if _, ok := rows[key]; !ok {
			labels = append(labels, lb)
		}
		rows[key] = append(rows[key], i)
	}

	out := New(labels, native.Columns)
	for _, name := range native.Columns {
		src := native.Data[name]
		dst := out.Data[name]
		for li, lb := range labels {
			sum, count := 0.0, 0
			for _, i := range rows[lb.UnixNano()] {
				if !math.IsNaN(src[i]) {
					sum += src[i]
					count++
				}
			}
			coverage := float64(count) / float64(expected)
			if count > 0 && coverage >= threshold {
				dst[li] = sum / float64(count)
			}
		}
	}
	return out
}

// HourlyDaily coverage-gates a quarter-hourly frame into hourly and daily
// frames. The daily frame is gated against native samples directly, not
// derived from the hourly one.
func HourlyDaily(native *Frame, threshold float64) (hourly, daily *Frame) {
	hourly = Resample(native, StepQuarter, time.Hour, threshold)
	daily = Resample(native, StepQuarter, 24*time.Hour, threshold)
	return hourly, daily
}
