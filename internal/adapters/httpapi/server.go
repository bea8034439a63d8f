// Package httpapi exposes flows, the agent catalog, settings and the runtime
// message registry over HTTP.
//
// Flow names may contain slashes; clients escape them as %2F in path
// parameters.
package httpapi

import (
	"expvar"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/stn/agent-stream-app/internal/app/services"
	"github.com/stn/agent-stream-app/internal/core/events"
	"github.com/stn/agent-stream-app/internal/infrastructure/logging"
	"github.com/stn/agent-stream-app/internal/infrastructure/metrics"
)

// Version is reported by /health.
var Version = "dev"

// Deps are the services behind the router.
type Deps struct {
	Flows    *services.FlowService
	Configs  *services.ConfigService
	Registry *events.Registry
	Logger   *zap.Logger
}

type handler struct {
	flows    *services.FlowService
	configs  *services.ConfigService
	registry *events.Registry
	logger   *zap.Logger
}

// APIResponse is the envelope of every JSON response.
type APIResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Details any    `json:"details,omitempty"`
}

func sendResponse(c *gin.Context, statusCode int, resp APIResponse) {
	c.JSON(statusCode, resp)
}

func sendSuccess(c *gin.Context, data any) {
	sendResponse(c, http.StatusOK, APIResponse{Success: true, Data: data})
}

func sendCreated(c *gin.Context, data any) {
	sendResponse(c, http.StatusCreated, APIResponse{Success: true, Data: data})
}

func sendError(c *gin.Context, statusCode int, errorMsg string) {
	sendResponse(c, statusCode, APIResponse{Success: false, Error: errorMsg})
}

// NewRouter builds the gin router with routes and middleware.
func NewRouter(deps Deps) *gin.Engine {
	h := &handler{
		flows:    deps.Flows,
		configs:  deps.Configs,
		registry: deps.Registry,
		logger:   logging.OrNop(deps.Logger).Named("http"),
	}

	r := gin.New()
	r.UseRawPath = true
	r.Use(gin.Recovery())
	r.Use(requestLogger(h.logger))
	// CORS
	r.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	})

	r.GET("/health", handleHealth)
	r.GET("/metrics", func(c *gin.Context) {
		c.Header("Content-Type", metrics.ContentType)
		metrics.WritePrometheus(c.Writer)
	})
	r.GET("/debug/vars", gin.WrapH(expvar.Handler()))

	r.GET("/agents", h.listAgents)
	r.POST("/nodes", h.newNode)

	r.GET("/flows", h.listFlows)
	r.POST("/flows", h.newFlow)
	r.GET("/flows/check", h.checkFlows)
	r.POST("/flows/import", h.importFlow)
	r.GET("/flows/:name", h.getFlow)
	r.PUT("/flows/:name", h.saveFlow)
	r.DELETE("/flows/:name", h.removeFlow)
	r.POST("/flows/:name/rename", h.renameFlow)
	r.POST("/flows/:name/nodes", h.addNode)
	r.DELETE("/flows/:name/nodes/:id", h.removeNode)
	r.POST("/flows/:name/edges", h.addEdge)
	r.DELETE("/flows/:name/edges/:id", h.removeEdge)

	r.GET("/global-configs/:agent", h.getGlobalConfig)
	r.PUT("/global-configs/:agent", h.setGlobalConfig)
	r.GET("/settings/core", h.getCoreSettings)
	r.PATCH("/settings/core", h.patchCoreSettings)

	r.POST("/events/display", h.publishDisplay)
	r.POST("/events/error", h.publishError)
	r.POST("/events/input", h.publishInput)
	r.GET("/events/stream", h.streamEvents)

	return r
}

func handleHealth(c *gin.Context) {
	sendSuccess(c, gin.H{"status": "healthy", "timestamp": time.Now().Unix(), "version": Version})
}

// requestLogger logs one line per request.
func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}
		switch status := c.Writer.Status(); {
		case status >= http.StatusInternalServerError:
			logger.Error("request", fields...)
		case status >= http.StatusBadRequest:
			logger.Warn("request", fields...)
		default:
			logger.Debug("request", fields...)
		}
	}
}
