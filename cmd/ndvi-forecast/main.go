package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	httpapi "github.com/agrowatch/ndvi-forecast/internal/api/http"
	"github.com/agrowatch/ndvi-forecast/internal/config"
	"github.com/agrowatch/ndvi-forecast/internal/ndvi"
	"github.com/agrowatch/ndvi-forecast/internal/scheduler"
	"github.com/agrowatch/ndvi-forecast/internal/sentinel"
)

func main() {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// Shared HTTP client for outbound provider calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}

	// Acquisition client; missing credentials are fatal here, before any
	// request is served.
	client, err := sentinel.NewClient(httpClient, cfg.SHClientID, cfg.SHClientSecret)
	if err != nil {
		log.Fatalf("failed to create sentinel client: %v", err)
	}

	// Core pipeline service.
	service := ndvi.NewService(client, ndvi.Options{
		FilterPolicy:        cfg.FilterPolicy,
		SlopeEpsilon:        cfg.SlopeEpsilon,
		CloudCoverTolerance: cfg.CloudCoverTolerance,
		UniquePerDate:       cfg.UniquePerDate,
		SampleWorkers:       cfg.SampleWorkers,
		DefaultSampling: ndvi.SampleSpec{
			Policy: cfg.SamplePolicy,
			K:      cfg.FilmstripSize,
		},
	})

	// Monitor that periodically re-runs forecasts for configured areas.
	monitor := scheduler.New(cfg.MonitorAreas, cfg.MonitorInterval, cfg.MonitorLookbackDays, service)
	if err := monitor.Start(); err != nil {
		log.Fatalf("failed to start monitor: %v", err)
	}
	defer monitor.Stop()

	// Basic app configuration
	app := fiber.New(fiber.Config{
		AppName:               "ndvi-forecast",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          60 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// Centralized error response
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	// Global middleware
	app.Use(logger.New())
	app.Use(recover.New())

	// Basic health endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "ndvi-forecast",
		})
	})

	// API routes.
	httpapi.RegisterRoutes(app, service)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Printf("fiber server stopped: %v", err)
		}
	}()

	// Wait for termination signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("error during shutdown: %v", err)
	}
}
