package xair

import (
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/atmosud/micaexp/internal/models"
)

// Record is one flattened station data point before series assembly.
type Record struct {
	MeasureID string
	Time      time.Time
	Value     float64
	State     string
}

// validStates is the allow-list of quality-state codes treated as measured
// values. Everything else is nulled before use.
var validStates = map[string]struct{}{
	"A": {}, "O": {}, "R": {}, "P": {},
}

// MaskStates replaces the value of any record whose quality state is outside
// the allow-list with missing. Records are kept so the time axis stays dense.
func MaskStates(records []Record) []Record {
	out := make([]Record, len(records))
	for i, rec := range records {
		if _, ok := validStates[rec.State]; !ok {
			rec.Value = math.NaN()
		}
		out[i] = rec
	}
	return out
}

// Disambiguate narrows colliding measure ids down to the requested site using
// the pollutant's id-prefix convention: the prefix concatenated with the
// first two characters of the site name. PM1 has no firm convention; when the
// PM1-style prefix matches nothing the first measure id encountered is kept,
// a legacy policy that is logged rather than silently trusted.
func Disambiguate(records []Record, site string, poll models.Pollutant, logger *slog.Logger) []Record {
	if len(records) == 0 {
		return records
	}
	if logger == nil {
		logger = slog.Default()
	}

	fragment := poll.IDPrefix() + sitePrefix(site)

	switch poll {
	case models.PM10, models.PM25:
		return filterContains(records, fragment, false)
	default:
		if matched := filterContains(records, fragment, true); len(matched) > 0 {
			return matched
		}
		first := records[0].MeasureID
		logger.Warn("ambiguous station measure, keeping first candidate",
			"site", site,
			"pollutant", string(poll),
			"measure", first,
		)
		return filterExact(records, first)
	}
}

func sitePrefix(site string) string {
	if len(site) < 2 {
		return site
	}
	return site[:2]
}

func filterContains(records []Record, fragment string, fold bool) []Record {
	if fold {
		fragment = strings.ToLower(fragment)
	}
	out := make([]Record, 0, len(records))
	for _, rec := range records {
		id := rec.MeasureID
		if fold {
			id = strings.ToLower(id)
		}
		if strings.Contains(id, fragment) {
			out = append(out, rec)
		}
	}
	return out
}

func filterExact(records []Record, id string) []Record {
	out := make([]Record, 0, len(records))
	for _, rec := range records {
		if rec.MeasureID == id {
			out = append(out, rec)
		}
	}
	return out
}
