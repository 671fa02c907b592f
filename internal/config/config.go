package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultObservationsURL   = "https://spot.atmo-france.org/export-api/observations"
	defaultSensorSitesURL    = "https://api.atmosud.org/observations/capteurs/sites"
	defaultRequestTimeout    = 30 * time.Second
	defaultCoverageThreshold = 0.75
	defaultPort              = 8080
	defaultDays              = 5
)

// Config holds environment-driven settings for the comparison API.
type Config struct {
	MicrospotObservationsURL string
	MicrospotSitesURL        string
	MicrospotKey             string
	XairBaseURL              string
	Port                     int
	BearerToken              string
	RequestTimeout           time.Duration
	CoverageThreshold        float64
	DefaultDays              int
	AppEnv                   string
}

// Load reads configuration from environment variables (optionally .env).
func Load() (Config, error) {
	_ = godotenv.Load() // ignore missing file

	cfg := Config{
		MicrospotObservationsURL: defaultObservationsURL,
		MicrospotSitesURL:        defaultSensorSitesURL,
		Port:                     defaultPort,
		RequestTimeout:           defaultRequestTimeout,
		CoverageThreshold:        defaultCoverageThreshold,
		DefaultDays:              defaultDays,
		AppEnv:                   "dev",
	}

	cfg.XairBaseURL = strings.TrimSpace(os.Getenv("XAIR_BASE_URL"))
	if cfg.XairBaseURL == "" {
		return cfg, errors.New("XAIR_BASE_URL is required")
	}

	if u := strings.TrimSpace(os.Getenv("MICROSPOT_OBSERVATIONS_URL")); u != "" {
		cfg.MicrospotObservationsURL = u
	}
	if u := strings.TrimSpace(os.Getenv("MICROSPOT_SITES_URL")); u != "" {
		cfg.MicrospotSitesURL = u
	}

	cfg.MicrospotKey = strings.TrimSpace(os.Getenv("MICROSPOT_REQUEST_KEY"))
	if cfg.MicrospotKey == "" {
		return cfg, errors.New("MICROSPOT_REQUEST_KEY is required")
	}

	if portStr := os.Getenv("PORT"); portStr != "" {
		if port, err := strconv.Atoi(portStr); err == nil && port > 0 {
			cfg.Port = port
		} else {
			return cfg, fmt.Errorf("invalid PORT: %s", portStr)
		}
	}

	if v := strings.TrimSpace(os.Getenv("REQUEST_TIMEOUT")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid REQUEST_TIMEOUT: %w", err)
		}
		cfg.RequestTimeout = d
	}

	if v := strings.TrimSpace(os.Getenv("COVERAGE_THRESHOLD")); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < 0 || f > 1 {
			return cfg, fmt.Errorf("invalid COVERAGE_THRESHOLD: %s", v)
		}
		cfg.CoverageThreshold = f
	}

	if daysStr := os.Getenv("API_DEFAULT_DAYS"); daysStr != "" {
		if days, err := strconv.Atoi(daysStr); err == nil && days > 0 {
			cfg.DefaultDays = days
		} else {
			return cfg, fmt.Errorf("invalid API_DEFAULT_DAYS: %s", daysStr)
		}
	}

	cfg.BearerToken = os.Getenv("API_BEARER_TOKEN")

	if env := strings.TrimSpace(os.Getenv("APP_ENV")); env != "" {
		cfg.AppEnv = env
	}

	return cfg, nil
}

// ListenAddr returns the host:port string for the HTTP server.
func (c Config) ListenAddr() string {
	return fmt.Sprintf(":%d", c.Port)
}
