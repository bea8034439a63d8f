// Package main provides the agentflow HTTP server with debug endpoints.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof" // register /debug/pprof
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/stn/agent-stream-app/internal/adapters/httpapi"
	"github.com/stn/agent-stream-app/internal/app/bootstrap"
	"github.com/stn/agent-stream-app/internal/config"
	"github.com/stn/agent-stream-app/internal/infrastructure/logging"
)

// Version information set during build
var Version = "dev"

func main() {
	if err := run(); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer app.Close()

	httpapi.Version = Version
	router := newRouter(app)

	logger.Info("starting agentflow server",
		zap.String("version", Version),
		zap.String("store", cfg.Store),
		zap.String("catalog", cfg.CatalogDir))
	return httpapi.Serve(ctx, cfg.Server.Addr, router, cfg.Server.ShutdownTimeout, logger, app.Registry.Close)
}

// newRouter adds the root page, /healthz and pprof to the API router.
func newRouter(app *bootstrap.App) *gin.Engine {
	router := httpapi.NewRouter(httpapi.Deps{
		Flows:    app.Flows,
		Configs:  app.Configs,
		Registry: app.Registry,
		Logger:   app.Logger,
	})
	router.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, fmt.Sprintln("agentflow server is running. See /health, /metrics, /debug/vars, /debug/pprof/"))
	})
	router.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	router.Any("/debug/pprof/*path", gin.WrapH(http.DefaultServeMux))
	return router
}
