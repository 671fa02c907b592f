// Package xair talks to the regulatory reference-station API (XR): a measures
// lookup resolving site + pollutant to measure ids, then a data fetch per
// granularity, with quality-state masking and duplicate-measure
// disambiguation.
package xair

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/atmosud/micaexp/internal/frame"
	"github.com/atmosud/micaexp/internal/models"
)

// Datatype values accepted by the data endpoint.
const (
	DatatypeBase   = "base" // 15-minute
	DatatypeHourly = "hourly"
)

// Client issues requests against the XR public API.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	Logger  *slog.Logger
}

// NewClient builds a client for the given API base URL.
func NewClient(baseURL string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{BaseURL: baseURL, HTTP: httpClient, Logger: logger}
}

// Query describes one station fetch.
type Query struct {
	Site      string
	Pollutant models.Pollutant
	Datatype  string
	Start     time.Time
	End       time.Time
}

// FetchSeries retrieves the station series for a site and pollutant at the
// requested granularity. Quality states outside the allow-list are nulled;
// colliding measure ids are narrowed with the pollutant's prefix convention.
func (c *Client) FetchSeries(ctx context.Context, q Query) (frame.Series, error) {
	measureIDs, err := c.fetchMeasureIDs(ctx, q.Site, q.Pollutant)
	if err != nil {
		return frame.Series{}, err
	}
	if len(measureIDs) == 0 {
		return frame.Series{}, nil
	}

	records, err := c.fetchData(ctx, measureIDs, q)
	if err != nil {
		return frame.Series{}, err
	}

	records = MaskStates(records)
	records = Disambiguate(records, q.Site, q.Pollutant, c.Logger)

	times := make([]time.Time, len(records))
	values := make([]float64, len(records))
	for i, rec := range records {
		times[i] = rec.Time
		values[i] = rec.Value
	}
	return frame.NewSeries(times, values), nil
}

type measuresResponse struct {
	Measures []struct {
		ID string `json:"id"`
	} `json:"measures"`
}

func (c *Client) fetchMeasureIDs(ctx context.Context, site string, poll models.Pollutant) ([]string, error) {
	params := url.Values{}
	params.Set("sites", site)
	params.Set("physicals", poll.ISO())

	var payload measuresResponse
	if err := c.get(ctx, "/v2/measures", params, &payload); err != nil {
		return nil, fmt.Errorf("fetch measures: %w", err)
	}

	ids := make([]string, 0, len(payload.Measures))
	for _, m := range payload.Measures {
		ids = append(ids, m.ID)
	}
	return ids, nil
}

type dataResponse struct {
	Data []dataEntry `json:"data"`
}

type dataEntry struct {
	ID     string     `json:"id"`
	Base   *dataBlock `json:"sta"`
	Hourly *dataBlock `json:"hourly"`
}

type dataBlock struct {
	Unit struct {
		ID string `json:"id"`
	} `json:"unit"`
	Data []dataPoint `json:"data"`
}

type dataPoint struct {
	Date  string   `json:"date"`
	Value *float64 `json:"value"`
	State string   `json:"state"`
}

func (c *Client) fetchData(ctx context.Context, measureIDs []string, q Query) ([]Record, error) {
	params := url.Values{}
	params.Set("from", dayFloor(q.Start))
	params.Set("to", dayFloor(q.End))
	params.Set("measures", strings.Join(measureIDs, ","))
	params.Set("dataTypes", q.Datatype)

	var payload dataResponse
	if err := c.get(ctx, "/v2/data", params, &payload); err != nil {
		return nil, fmt.Errorf("fetch data: %w", err)
	}

	records := make([]Record, 0)
	for _, entry := range payload.Data {
		block := entry.Base
		if q.Datatype == DatatypeHourly {
			block = entry.Hourly
		}
		if block == nil {
			continue
		}
		for _, pt := range block.Data {
			ts, err := time.Parse("2006-01-02T15:04:05Z", pt.Date)
			if err != nil {
				continue
			}
			// A null value stays missing even when the quality state is valid.
			rec := Record{MeasureID: entry.ID, Time: ts.UTC(), Value: math.NaN(), State: pt.State}
			if pt.Value != nil {
				rec.Value = *pt.Value
			}
			records = append(records, rec)
		}
	}
	return records, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return err
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	return nil
}

// dayFloor formats a bound as the start of its UTC day, the granularity the
// data endpoint expects.
func dayFloor(ts time.Time) string {
	return ts.UTC().Truncate(24 * time.Hour).Format("2006-01-02T15:04:05Z")
}

// StationSites retrieves the reference-station catalogue.
func (c *Client) StationSites(ctx context.Context, site string) ([]models.StationSite, error) {
	params := url.Values{}
	if site != "" {
		params.Set("sites", site)
	}

	var payload struct {
		Sites []struct {
			ID      string `json:"id"`
			Label   string `json:"labelSite"`
			Address struct {
				Latitude  float64 `json:"latitude"`
				Longitude float64 `json:"longitude"`
			} `json:"address"`
		} `json:"sites"`
	}
	if err := c.get(ctx, "/v2/sites", params, &payload); err != nil {
		return nil, fmt.Errorf("fetch sites: %w", err)
	}

	sites := make([]models.StationSite, 0, len(payload.Sites))
	for _, s := range payload.Sites {
		sites = append(sites, models.StationSite{
			ID:    s.ID,
			Label: s.Label,
			Lat:   s.Address.Latitude,
			Lon:   s.Address.Longitude,
		})
	}
	return sites, nil
}
