package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tamos/tamos-client-go/internal/service"
	"github.com/tamos/tamos-client-go/pkg/response"
)

// SimHandler handles simulation, polling and heatmap commands
type SimHandler struct {
	service *service.SimulationService
}

// NewSimHandler creates a new simulation handler
func NewSimHandler(service *service.SimulationService) *SimHandler {
	return &SimHandler{service: service}
}

// PollRequest is the body of POST /api/v1/poll/start
type PollRequest struct {
	IntervalMs int `json:"interval_ms" binding:"min=0"`
}

// StartSimulation handles POST /api/v1/sim/start
func (h *SimHandler) StartSimulation(c *gin.Context) {
	h.service.StartSimulation()
	response.Accepted(c, gin.H{"command": "start simulation"})
}

// ResetSimulation handles DELETE /api/v1/sim/reset
func (h *SimHandler) ResetSimulation(c *gin.Context) {
	h.service.ResetSimulation()
	response.Accepted(c, gin.H{"command": "reset simulation"})
}

// StartPolling handles POST /api/v1/poll/start
func (h *SimHandler) StartPolling(c *gin.Context) {
	var req PollRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, "Invalid polling request", err)
			return
		}
	}

	// Zero falls back to the configured interval.
	h.service.StartPolling(time.Duration(req.IntervalMs) * time.Millisecond)
	response.Success(c, h.service.PollStats())
}

// StopPolling handles POST /api/v1/poll/stop
func (h *SimHandler) StopPolling(c *gin.Context) {
	h.service.StopPolling()
	response.Success(c, h.service.PollStats())
}

// GetPollStats handles GET /api/v1/poll
func (h *SimHandler) GetPollStats(c *gin.Context) {
	response.Success(c, h.service.PollStats())
}

// GenerateHeatmap handles POST /api/v1/heatmap/generate
func (h *SimHandler) GenerateHeatmap(c *gin.Context) {
	h.service.GenerateHeatmap()
	response.Accepted(c, gin.H{"command": "generate heatmap"})
}

// FetchHeatmap handles POST /api/v1/heatmap/fetch
func (h *SimHandler) FetchHeatmap(c *gin.Context) {
	h.service.FetchHeatmap()
	response.Accepted(c, gin.H{"command": "fetch heatmap"})
}

// FetchRouteData handles POST /api/v1/routes/fetch
func (h *SimHandler) FetchRouteData(c *gin.Context) {
	h.service.FetchRouteData()
	response.Accepted(c, gin.H{"command": "fetch route data"})
}

// ReportKeys handles POST /api/v1/keys
func (h *SimHandler) ReportKeys(c *gin.Context) {
	var keys []string
	if err := c.ShouldBindJSON(&keys); err != nil {
		response.Error(c, http.StatusBadRequest, "Key list must be an array of strings", err)
		return
	}
	h.service.ReportKeys(keys)
	response.Success(c, gin.H{"count": len(keys)})
}
