// Package microspot talks to the microsensor telemetry export API and
// normalizes its nested observation payloads into flat series.
package microspot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/atmosud/micaexp/internal/frame"
	"github.com/atmosud/micaexp/internal/models"
)

// Aggregation values accepted by the observations endpoint.
const (
	AggregationQuarter = "15 m"
	AggregationHourly  = "1 h"
)

// Client issues authenticated requests to the telemetry API.
type Client struct {
	ObservationsURL string
	SitesURL        string
	APIKey          string
	HTTP            *http.Client
}

// NewClient builds a client with the given endpoints and bearer key.
func NewClient(observationsURL, sitesURL, apiKey string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		ObservationsURL: observationsURL,
		SitesURL:        sitesURL,
		APIKey:          apiKey,
		HTTP:            httpClient,
	}
}

// Query describes one observations fetch for a single device and pollutant.
type Query struct {
	Pollutant   models.Pollutant
	DeviceID    int
	Aggregation string
	Start       time.Time
	End         time.Time
}

type observationsRequest struct {
	Timezone             string   `json:"timezone"`
	Studies              []string `json:"studies"`
	Campaigns            []string `json:"campaigns"`
	ObservationTypeCodes []string `json:"observationTypeCodes"`
	Devices              []int    `json:"devices"`
	Aggregation          string   `json:"aggregation"`
	DateRange            []string `json:"dateRange"`
}

// FetchObservations retrieves and flattens the observations for one device.
// The returned site descriptor is nil when the response carries no location.
func (c *Client) FetchObservations(ctx context.Context, q Query) (frame.Series, *models.SensorSite, error) {
	payload := observationsRequest{
		Timezone:             "Europe/Paris",
		Studies:              []string{},
		Campaigns:            []string{},
		ObservationTypeCodes: []string{q.Pollutant.ISO()},
		Devices:              []int{q.DeviceID},
		Aggregation:          q.Aggregation,
		DateRange: []string{
			q.Start.UTC().Format(time.RFC3339),
			q.End.UTC().Format(time.RFC3339),
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return frame.Series{}, nil, fmt.Errorf("encode observations query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.ObservationsURL, bytes.NewReader(body))
	if err != nil {
		return frame.Series{}, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return frame.Series{}, nil, fmt.Errorf("request observations: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return frame.Series{}, nil, fmt.Errorf("unexpected status %s", resp.Status)
	}

	var devices []Device
	if err := json.NewDecoder(resp.Body).Decode(&devices); err != nil {
		return frame.Series{}, nil, fmt.Errorf("decode observations payload: %w", err)
	}

	series, site := Normalize(devices, q.Pollutant, q.Aggregation)
	return series, site, nil
}

// FetchSites retrieves the microsensor sites catalogue used to populate the
// dashboard sidebar.
func (c *Client) FetchSites(ctx context.Context) ([]models.SensorSite, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.SitesURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request sensor sites: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}

	var payload []siteRecord
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode sites payload: %w", err)
	}

	sites := make([]models.SensorSite, 0, len(payload))
	for _, rec := range payload {
		sites = append(sites, models.SensorSite{
			SiteID:   rec.SiteID,
			SiteName: rec.SiteName,
			Lat:      rec.Lat,
			Lon:      rec.Lon,
			DeviceID: rec.DeviceID,
			Campaign: rec.Campaign,
		})
	}
	return sites, nil
}

type siteRecord struct {
	SiteID   int     `json:"id_site"`
	SiteName string  `json:"nom_site"`
	Lat      float64 `json:"lat"`
	Lon      float64 `json:"lon"`
	DeviceID int     `json:"id_capteur"`
	Campaign string  `json:"nom_campagne"`
}
