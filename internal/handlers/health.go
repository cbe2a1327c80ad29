package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stwalsh4118/staylens/internal/dataset"
	apierrors "github.com/stwalsh4118/staylens/internal/errors"
	"github.com/stwalsh4118/staylens/internal/middleware"
)

// APIVersion is the current version of the API
const APIVersion = "0.1.0"

// HealthHandler handles health check and readiness endpoints.
type HealthHandler struct {
	ds        *dataset.Dataset
	startTime time.Time
	env       string
}

// NewHealthHandler creates a new HealthHandler instance.
func NewHealthHandler(ds *dataset.Dataset, env string) *HealthHandler {
	return &HealthHandler{
		ds:        ds,
		startTime: time.Now(),
		env:       env,
	}
}

// HealthResponse represents the basic health check response.
type HealthResponse struct {
	Status string `json:"status"`
}

// ReadyResponse represents the readiness check response.
type ReadyResponse struct {
	Status  string `json:"status"`
	Dataset string `json:"dataset"`
	Rows    int    `json:"rows"`
}

// InfoResponse represents the API information response.
type InfoResponse struct {
	Version     string            `json:"version"`
	Environment string            `json:"environment"`
	Uptime      string            `json:"uptime"`
	Source      string            `json:"source"`
	Rows        int               `json:"rows"`
	LoadedAt    time.Time         `json:"loaded_at"`
	Load        dataset.LoadStats `json:"load"`
}

// Health handles GET /health endpoint.
// This is a basic liveness check that always returns 200 OK.
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status: "healthy",
	})
}

// Ready handles GET /health/ready endpoint.
// The service is ready once the dataset holds at least one listing.
func (h *HealthHandler) Ready(c *gin.Context) {
	rows := 0
	if h.ds != nil {
		rows = h.ds.Len()
	}

	if rows == 0 {
		if log := middleware.GetLogger(c); log != nil {
			log.Warn("Readiness check failed: dataset is empty", nil)
		}
		apierrors.NotReady(c, "Dataset has no listings")
		return
	}

	c.JSON(http.StatusOK, ReadyResponse{
		Status:  "ready",
		Dataset: "loaded",
		Rows:    rows,
	})
}

// Info handles GET /api/v1/info endpoint.
// Returns API metadata including version, environment, uptime and dataset provenance.
func (h *HealthHandler) Info(c *gin.Context) {
	resp := InfoResponse{
		Version:     APIVersion,
		Environment: h.env,
		Uptime:      formatUptime(time.Since(h.startTime)),
	}
	if h.ds != nil {
		resp.Source = h.ds.Source()
		resp.Rows = h.ds.Len()
		resp.LoadedAt = h.ds.LoadedAt()
		resp.Load = h.ds.Stats()
	}

	c.JSON(http.StatusOK, resp)
}

// formatUptime formats a duration into a human-readable string.
func formatUptime(d time.Duration) string {
	days := int(d.Hours() / 24)
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm %ds", days, hours, minutes, seconds)
	}
	return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
}
