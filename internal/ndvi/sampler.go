package ndvi

import (
	"context"
	"fmt"
	"log"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/agrowatch/ndvi-forecast/internal/geo"
)

// ImageSource fetches corroborating true-color imagery for a single date.
// A (nil, nil) return means no image is available for that date.
type ImageSource interface {
	TrueColor(ctx context.Context, area geo.AreaOfInterest, date time.Time) ([]byte, error)
}

// SamplePolicy selects which series dates get corroborating imagery.
type SamplePolicy string

const (
	// SampleLatest fetches the single most recent date.
	SampleLatest SamplePolicy = "latest"
	// SampleFilmstrip fetches K dates evenly spaced across the series.
	SampleFilmstrip SamplePolicy = "filmstrip"
	// SampleContrast fetches the peak and trough dates.
	SampleContrast SamplePolicy = "contrast"
	// SampleNone skips imagery entirely (export-only callers).
	SampleNone SamplePolicy = "none"
)

// ParseSamplePolicy maps a configuration string to a SamplePolicy.
func ParseSamplePolicy(s string) (SamplePolicy, error) {
	switch SamplePolicy(s) {
	case SampleLatest, SampleFilmstrip, SampleContrast:
		return SamplePolicy(s), nil
	default:
		return "", fmt.Errorf("unknown sample policy %q", s)
	}
}

// SampleSpec is the per-request sampling choice. K only applies to filmstrip.
type SampleSpec struct {
	Policy SamplePolicy
	K      int
}

// Sampler selects representative dates from a series and fetches imagery
// through a bounded worker pool.
type Sampler struct {
	source  ImageSource
	workers int
}

// NewSampler creates a Sampler issuing at most workers concurrent fetches.
func NewSampler(source ImageSource, workers int) *Sampler {
	if workers <= 0 {
		workers = 4
	}
	return &Sampler{source: source, workers: workers}
}

// Collect fetches imagery for the dates selected by spec. Per-date failures
// drop that date from the output without aborting the rest; the result is
// ordered by date regardless of fetch completion order.
func (s *Sampler) Collect(ctx context.Context, area geo.AreaOfInterest, series *Series, spec SampleSpec) []VisualSample {
	dates := SelectDates(series, spec)
	if len(dates) == 0 {
		return nil
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		samples []VisualSample
	)
	sem := make(chan struct{}, s.workers)

	for _, d := range dates {
		d := d
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			img, err := s.source.TrueColor(ctx, area, d)
			if err != nil {
				// Log and continue; a single date must not abort the batch.
				log.Printf("visual sample fetch failed for %s: %v", d.Format("2006-01-02"), err)
				return
			}
			if img == nil {
				return
			}

			mu.Lock()
			samples = append(samples, VisualSample{Date: d, Image: img})
			mu.Unlock()
		}()
	}
	wg.Wait()

	sort.Slice(samples, func(i, j int) bool {
		return samples[i].Date.Before(samples[j].Date)
	})
	return samples
}

// SelectDates picks the dates a spec calls for, in ascending order. The
// result never exceeds the number of distinct positions in the series and is
// never padded.
func SelectDates(series *Series, spec SampleSpec) []time.Time {
	readings := series.Readings()
	if len(readings) == 0 {
		return nil
	}

	switch spec.Policy {
	case SampleNone:
		return nil
	case SampleFilmstrip:
		return filmstripDates(readings, spec.K)
	case SampleContrast:
		peak, _ := series.Peak()
		trough, _ := series.Trough()
		if peak.Date.Equal(trough.Date) {
			return []time.Time{peak.Date}
		}
		if trough.Date.Before(peak.Date) {
			return []time.Time{trough.Date, peak.Date}
		}
		return []time.Time{peak.Date, trough.Date}
	default:
		return []time.Time{readings[len(readings)-1].Date}
	}
}

// filmstripDates interpolates K positions evenly over the series index,
// rounds them and deduplicates. Shrinks to the available count when fewer
// than K distinct dates exist.
func filmstripDates(readings []Reading, k int) []time.Time {
	n := len(readings)
	if k <= 1 || n == 1 {
		return []time.Time{readings[n-1].Date}
	}
	if k >= n {
		k = n
	}

	dates := make([]time.Time, 0, k)
	for i := 0; i < k; i++ {
		pos := int(math.Round(float64(i) * float64(n-1) / float64(k-1)))
		d := readings[pos].Date
		if len(dates) > 0 && d.Equal(dates[len(dates)-1]) {
			continue
		}
		dates = append(dates, d)
	}
	return dates
}
