package api

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tamos/tamos-client-go/internal/handler"
	"github.com/tamos/tamos-client-go/internal/middleware"
	"github.com/tamos/tamos-client-go/internal/service"
	"github.com/tamos/tamos-client-go/internal/transport/ws"
)

// Deps are the services the router exposes
type Deps struct {
	Simulation *service.SimulationService
	Shapes     *service.ShapeService
	Feed       *ws.Server
	// Limiter throttles command routes; nil disables rate limiting
	Limiter *middleware.RateLimiter
	Logger  *log.Logger
}

// SetupRouter 设置路由
func SetupRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.Logger(d.Logger))

	// CORS 中间件
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	simHandler := handler.NewSimHandler(d.Simulation)
	shapeHandler := handler.NewShapeHandler(d.Shapes)
	var feed handler.FeedStats
	if d.Feed != nil {
		feed = d.Feed
	}
	healthHandler := handler.NewHealthHandler(d.Shapes, d.Simulation, feed)

	// 健康检查
	r.GET("/health", healthHandler.Health)

	// API 路由组
	api := r.Group("/api/v1")
	api.GET("/health", healthHandler.Health)

	cmd := api.Group("")
	if d.Limiter != nil {
		cmd.Use(middleware.RateLimit(d.Limiter))
	}
	{
		sim := cmd.Group("/sim")
		{
			sim.POST("/start", simHandler.StartSimulation)
			sim.DELETE("/reset", simHandler.ResetSimulation)
		}

		poll := cmd.Group("/poll")
		{
			poll.POST("/start", simHandler.StartPolling)
			poll.POST("/stop", simHandler.StopPolling)
		}

		heatmap := cmd.Group("/heatmap")
		{
			heatmap.POST("/generate", simHandler.GenerateHeatmap)
			heatmap.POST("/fetch", simHandler.FetchHeatmap)
		}

		cmd.POST("/routes/fetch", simHandler.FetchRouteData)
		cmd.POST("/keys", simHandler.ReportKeys)

		shapes := cmd.Group("/shapes")
		{
			shapes.PUT("", shapeHandler.SaveShapes)
			shapes.POST("/import", shapeHandler.ImportShapes)
			shapes.POST("/restore", shapeHandler.RestoreShapes)
		}
	}

	// Reads are not rate limited.
	api.GET("/poll", simHandler.GetPollStats)
	api.GET("/shapes", shapeHandler.GetShapes)
	api.GET("/shapes/export", shapeHandler.ExportShapes)

	if d.Feed != nil {
		api.GET("/ws", gin.WrapF(d.Feed.Handler()))
	}

	return r
}
