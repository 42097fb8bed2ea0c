package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tamos/tamos-client-go/internal/service"
)

// FeedStats reports the UI event feed
type FeedStats interface {
	Clients() int64
	Dropped() uint64
}

// HealthHandler reports store, poller and feed status
type HealthHandler struct {
	shapes *service.ShapeService
	sim    *service.SimulationService
	feed   FeedStats
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(shapes *service.ShapeService, sim *service.SimulationService, feed FeedStats) *HealthHandler {
	return &HealthHandler{shapes: shapes, sim: sim, feed: feed}
}

// Health handles GET /health and GET /api/v1/health. The store being
// unavailable degrades the status but the client keeps serving.
func (h *HealthHandler) Health(c *gin.Context) {
	available, count := h.shapes.StoreStatus(c.Request.Context())
	status := "ok"
	if !available {
		status = "degraded"
	}

	body := gin.H{
		"status": status,
		"store": gin.H{
			"available": available,
			"shapes":    count,
		},
		"poller": h.sim.PollStats(),
	}
	if h.feed != nil {
		body["feed"] = gin.H{
			"clients": h.feed.Clients(),
			"dropped": h.feed.Dropped(),
		}
	}
	c.JSON(http.StatusOK, body)
}
