package main

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/ehr/anesthesia/internal/config"
	"github.com/ehr/anesthesia/internal/domain/forms"
	"github.com/ehr/anesthesia/internal/platform/capture"
	"github.com/ehr/anesthesia/internal/platform/db"
	"github.com/ehr/anesthesia/internal/platform/middleware"
	"github.com/ehr/anesthesia/internal/platform/rendercache"
)

const version = "0.1.0"

// serverDeps are the resources newServer wires into handlers.
type serverDeps struct {
	Forms forms.Repository
	InTx  forms.TxFunc
	Cache rendercache.Cache
	Ping  func(context.Context) error
	Stats func() *db.PoolStats
}

func newServer(cfg *config.Config, logger zerolog.Logger, deps serverDeps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.BodyLimit(cfg.BodyLimit, cfg.ImportLimit))
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:  cfg.CORSOrigins,
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders:  []string{"Content-Type", "If-None-Match", middleware.RequestIDHeader},
		ExposeHeaders: []string{"ETag", "Content-Disposition", middleware.RequestIDHeader},
	}))

	apiV1 := e.Group("/api/v1")

	// Forms
	formSvc := forms.NewService(deps.Forms)
	if deps.InTx != nil {
		formSvc.SetTxFunc(deps.InTx)
	}
	formSvc.SetRenderCache(deps.Cache, cfg.RenderCacheTTL)
	formSvc.SetChartSize(cfg.ChartWidth, cfg.ChartHeight)
	formSvc.SetLogger(logger.With().Str("component", "forms").Logger())
	forms.NewHandler(formSvc).RegisterRoutes(apiV1)

	// Capture sessions
	hub := capture.NewHub(logger.With().Str("component", "capture-hub").Logger())
	captureHandler := capture.NewHandler(hub, formSvc, capture.Sizes{
		SignatureWidth:  cfg.SignatureWidth,
		SignatureHeight: cfg.SignatureHeight,
		ChartWidth:      cfg.ChartWidth,
		ChartHeight:     cfg.ChartHeight,
	}, cfg.CORSOrigins, logger.With().Str("component", "capture").Logger())
	captureHandler.RegisterRoutes(apiV1)

	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})
	e.GET("/health/db", db.HealthHandler(deps.Ping, deps.Stats))

	return e
}
