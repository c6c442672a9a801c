package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/statusbeacon-dev/statusbeacon/db"
	"github.com/statusbeacon-dev/statusbeacon/internal/poller"
	"github.com/statusbeacon-dev/statusbeacon/internal/tracker"
)

type HealthResponse struct {
	Status               string     `json:"status"`
	LastPollTime         *time.Time `json:"last_poll_time"`
	StatusDatAgeSeconds  *float64   `json:"status_dat_age_seconds"`
	DataIsStale          bool       `json:"data_is_stale"`
	ActiveIncidentsCount int        `json:"active_incidents_count"`
	DatabaseAccessible   bool       `json:"database_accessible"`
}

func HealthCheck(p *poller.Poller) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		last, err := p.LastPoll()

		if err != nil {
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read poll metadata"})
			return
		}

		active, err := tracker.New(db.DB).ActiveIncidents()

		if err != nil {
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count active incidents"})
			return
		}

		isStale := p.IsDataStale()

		status := "healthy"
		if isStale {
			status = "stale"
		}
		if len(active) > 0 {
			status = "degraded"
		}

		response := HealthResponse{
			Status:               status,
			DataIsStale:          isStale,
			ActiveIncidentsCount: len(active),
			DatabaseAccessible:   true,
		}
		if last != nil {
			response.LastPollTime = &last.LastPollTime
			age := time.Since(last.StatusDatMtime).Seconds()
			response.StatusDatAgeSeconds = &age
		}

		ctx.JSON(http.StatusOK, response)
	}
}
