package scheduler

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/google/uuid"

	"github.com/agrowatch/ndvi-forecast/internal/geo"
	"github.com/agrowatch/ndvi-forecast/internal/ndvi"
)

// Area is a named region the monitor re-checks on every tick.
type Area struct {
	Name string
	Box  geo.AreaOfInterest
}

// Monitor periodically re-runs the forecast pipeline for configured areas
// and logs each verdict. Every run builds a fresh series and discards it;
// nothing is persisted between ticks.
type Monitor struct {
	scheduler    *gocron.Scheduler
	service      *ndvi.Service
	areas        []Area
	interval     time.Duration
	lookbackDays int
}

// New creates a new Monitor.
func New(areas []Area, interval time.Duration, lookbackDays int, service *ndvi.Service) *Monitor {
	s := gocron.NewScheduler(time.UTC)
	return &Monitor{
		scheduler:    s,
		service:      service,
		areas:        areas,
		interval:     interval,
		lookbackDays: lookbackDays,
	}
}

// Start schedules the periodic job and starts the underlying scheduler.
func (m *Monitor) Start() error {
	if len(m.areas) == 0 {
		log.Println("monitor: no areas configured; nothing to schedule")
		return nil
	}

	interval := m.interval
	if interval <= 0 {
		interval = 24 * time.Hour
	}

	_, err := m.scheduler.Every(interval).Do(func() {
		runID := uuid.NewString()
		log.Printf("monitor: run %s checking %d areas", runID, len(m.areas))

		var wg sync.WaitGroup
		for _, area := range m.areas {
			area := area
			wg.Add(1)
			go func() {
				defer wg.Done()

				ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
				defer cancel()

				window := geo.LastDays(m.lookbackDays)
				report, err := m.service.Forecast(ctx, area.Box, window, ndvi.SampleSpec{Policy: ndvi.SampleNone})
				if err != nil {
					log.Printf("monitor: run %s area %s failed: %v", runID, area.Name, err)
					return
				}

				log.Printf("monitor: run %s area %s verdict=%s slope=%.5f/day confidence=%.2f current=%.3f predicted=%.3f",
					runID, area.Name, report.Forecast.Trend, report.Forecast.Slope,
					report.Forecast.Confidence, report.Summary.CurrentHealth, report.Summary.PredictedHealth)
			}()
		}
		wg.Wait()
		log.Printf("monitor: run %s completed", runID)
	})
	if err != nil {
		return err
	}

	m.scheduler.StartAsync()
	return nil
}

// Stop stops the scheduler and cancels any future jobs.
func (m *Monitor) Stop() {
	if m.scheduler != nil {
		m.scheduler.Stop()
	}
}
