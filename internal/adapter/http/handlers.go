package http

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/couchcryptid/arso-air-quality-etl/internal/domain"
	"github.com/couchcryptid/arso-air-quality-etl/internal/pipeline"
	"github.com/couchcryptid/arso-air-quality-etl/internal/stations"
	"github.com/gin-gonic/gin"
)

const (
	readTimeout   = 10 * time.Second
	ingestTimeout = 50 * time.Second
)

func (s *Server) handleRoot(c *gin.Context) {
	c.String(http.StatusOK, "Hello from Slovenia Air Quality")
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "OK",
		"message": "Slovenia Air Quality Monitoring",
		"version": Version,
	})
}

func (s *Server) handleListStations(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), readTimeout)
	defer cancel()

	id := strings.TrimSpace(c.Query("id"))
	name := strings.TrimSpace(c.Query("name"))
	if id != "" || name != "" {
		st, err := s.stations.Lookup(ctx, id, name)
		if err != nil {
			s.writeLookupError(c, err)
			return
		}
		c.JSON(http.StatusOK, st)
		return
	}

	all, err := s.stations.All(ctx)
	if err != nil {
		s.writeLookupError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stations": all, "count": len(all)})
}

func (s *Server) handleGetStation(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), readTimeout)
	defer cancel()

	st, err := s.stations.ByID(ctx, c.Param("id"))
	if err != nil {
		s.writeLookupError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (s *Server) handleClearCache(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), readTimeout)
	defer cancel()

	snap, err := s.stations.Refresh(ctx)
	if err != nil {
		s.writeLookupError(c, err)
		return
	}

	var sample *domain.StationSnapshot
	if len(snap.Stations) > 0 {
		sample = &snap.Stations[0]
	}
	c.JSON(http.StatusOK, gin.H{
		"message":        "Cache cleared and reloaded",
		"stations_count": len(snap.Stations),
		"sample_station": sample,
		"cache_status":   "Cleared and refreshed",
	})
}

func (s *Server) handleIngest(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), ingestTimeout)
	defer cancel()

	out := s.ingester.RunOnce(ctx)
	switch {
	case errors.Is(out.Err, pipeline.ErrRunInProgress):
		c.JSON(http.StatusConflict, out)
	case !out.Success:
		c.JSON(http.StatusBadGateway, out)
	default:
		c.JSON(http.StatusOK, out)
	}
}

func (s *Server) handleStoreStats(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), readTimeout)
	defer cancel()

	stats, err := s.storeStats.Stats(ctx)
	if err != nil {
		s.logger.Error("store stats failed", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Store unavailable"})
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (s *Server) writeLookupError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, stations.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Station not found"})
	case errors.Is(err, domain.ErrNoSnapshot):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Station data not available yet"})
	default:
		s.logger.Error("station lookup failed", "path", c.Request.URL.Path, "error", err)
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
