package stats

import (
	"encoding/json"
	"math"
	"sort"
	"time"

	"github.com/atmosud/micaexp/internal/frame"
)

// WeekSection selects which calendar days feed a diurnal profile.
type WeekSection string

const (
	Workweek WeekSection = "workweek"
	Weekend  WeekSection = "weekend"
)

func (s WeekSection) contains(ts time.Time) bool {
	wd := ts.Weekday()
	if s == Weekend {
		return wd == time.Saturday || wd == time.Sunday
	}
	return wd >= time.Monday && wd <= time.Friday
}

// Profile is an average daily cycle: one row per distinct time-of-day present
// in the source frame, ordered within the 24-hour cycle, one column per
// source. A partition with no rows yields an empty profile.
type Profile struct {
	TimeOfDay []string
	Columns   []string
	Data      map[string][]float64
}

// DiurnalProfile buckets the frame's rows by time-of-day, restricted to the
// requested week section, and averages each column per bucket ignoring
// missing values.
func DiurnalProfile(f *frame.Frame, section WeekSection) Profile {
	type acc struct {
		sum   float64
		count int
	}

	keys := make([]int, 0)
	buckets := make(map[int]map[string]*acc)
	for i, ts := range f.Index {
		if !section.contains(ts) {
			continue
		}
		key := secondOfDay(ts)
		cols, ok := buckets[key]
		if !ok {
			cols = make(map[string]*acc, len(f.Columns))
			buckets[key] = cols
			keys = append(keys, key)
		}
		for _, name := range f.Columns {
			v := f.Data[name][i]
			if math.IsNaN(v) {
				continue
			}
			a := cols[name]
			if a == nil {
				a = &acc{}
				cols[name] = a
			}
			a.sum += v
			a.count++
		}
	}
	sort.Ints(keys)

	p := Profile{
		TimeOfDay: make([]string, 0, len(keys)),
		Columns:   append([]string(nil), f.Columns...),
		Data:      make(map[string][]float64, len(f.Columns)),
	}
	for _, name := range p.Columns {
		p.Data[name] = make([]float64, 0, len(keys))
	}
	for _, key := range keys {
		p.TimeOfDay = append(p.TimeOfDay, formatSecondOfDay(key))
		for _, name := range p.Columns {
			v := math.NaN()
			if a := buckets[key][name]; a != nil {
				v = a.sum / float64(a.count)
			}
			p.Data[name] = append(p.Data[name], v)
		}
	}
	return p
}

func secondOfDay(ts time.Time) int {
	return ts.Hour()*3600 + ts.Minute()*60 + ts.Second()
}

func formatSecondOfDay(s int) string {
	return time.Date(0, 1, 1, s/3600, s/60%60, s%60, 0, time.UTC).Format("15:04:05")
}

// Empty reports whether the profile has no rows.
func (p Profile) Empty() bool {
	return len(p.TimeOfDay) == 0
}

// MarshalJSON renders the profile as a column-keyed table with missing cells
// as null.
func (p Profile) MarshalJSON() ([]byte, error) {
	columns := make(map[string][]*float64, len(p.Columns))
	for _, name := range p.Columns {
		src := p.Data[name]
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
		TimeOfDay []string              `json:"time_of_day"`
		Columns   []string              `json:"column_order"`
		Data      map[string][]*float64 `json:"columns"`
	}{p.TimeOfDay, p.Columns, columns})
}
