package http

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/atmosud/micaexp/internal/models"
	"github.com/atmosud/micaexp/internal/pipeline"
)

func (s *Server) handleListSites(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), s.cfg.RequestTimeout)
	defer cancel()

	sites, err := s.sensors.FetchSites(ctx)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"sites": sites})
}

func (s *Server) handleListStations(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), s.cfg.RequestTimeout)
	defer cancel()

	stations, err := s.station.StationSites(ctx, c.Query("site"))
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"stations": stations})
}

func (s *Server) handleCompare(c *gin.Context) {
	poll, err := models.ParsePollutant(c.DefaultQuery("pollutant", string(models.PM10)))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	devices, err := parseDevices(c.Query("devices"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid devices"})
		return
	}

	station := c.Query("station")
	if len(devices) == 0 && station == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "at least one of devices or station is required"})
		return
	}

	end := time.Now().UTC().Truncate(time.Hour)
	start := end.Add(-time.Duration(s.cfg.DefaultDays) * 24 * time.Hour)

	if startStr := c.Query("start"); startStr != "" {
		t, err := time.Parse(time.RFC3339, startStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid start timestamp"})
			return
		}
		start = t.UTC()
	}

	if endStr := c.Query("end"); endStr != "" {
		t, err := time.Parse(time.RFC3339, endStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid end timestamp"})
			return
		}
		end = t.UTC()
	}

	if !start.Before(end) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "start must be before end"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), s.cfg.RequestTimeout)
	defer cancel()

	result, err := s.pipe.Run(ctx, pipeline.Request{
		Pollutant: poll,
		Devices:   devices,
		Station:   station,
		Start:     start,
		End:       end,
	})
	if err != nil {
		s.logger.Error("pipeline run failed", "pollutant", string(poll), "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, result)
}

func parseDevices(raw string) ([]int, error) {
	if raw == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	devices := make([]int, 0, len(parts))
	for _, part := range parts {
		id, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, err
		}
		devices = append(devices, id)
	}
	return devices, nil
}
