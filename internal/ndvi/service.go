package ndvi

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/agrowatch/ndvi-forecast/internal/geo"
)

// ErrNoUsableData is returned when the provider yielded zero passes that
// survive the quality filter. It is an operationally normal state; the
// caller's remedy is to widen the date range or relax the filter policy.
var ErrNoUsableData = errors.New("no usable passes in window; widen the date range or relax the filter policy")

// Acquirer is the acquisition boundary the pipeline consumes.
// IndexSeries returns raw per-date index aggregates; transient provider
// failures surface as an empty slice, not an error. TrueColor returns
// (nil, nil) when no image exists for the date.
type Acquirer interface {
	ImageSource
	IndexSeries(ctx context.Context, area geo.AreaOfInterest, window geo.TimeWindow, maxCloudCover float64) ([]Reading, error)
}

// Options configure one Service instance. All values are fixed at
// construction; per-request variation happens through SampleSpec only.
type Options struct {
	// FilterPolicy decides which raw readings are trustworthy.
	FilterPolicy Policy
	// SlopeEpsilon is the classification sensitivity threshold.
	SlopeEpsilon float64
	// CloudCoverTolerance is the 0..1 hint passed to the provider on bulk
	// queries.
	CloudCoverTolerance float64
	// UniquePerDate collapses repeated dates to the first accepted reading.
	UniquePerDate bool
	// SampleWorkers bounds concurrent image fetches.
	SampleWorkers int
	// DefaultSampling applies when a request leaves the sampling choice empty.
	DefaultSampling SampleSpec
}

// Service runs the acquisition-cleaning-forecasting pipeline. Each request
// owns its series and report exclusively; nothing is shared across requests.
type Service struct {
	client  Acquirer
	opts    Options
	sampler *Sampler
}

// NewService creates a Service over the given acquisition client.
func NewService(client Acquirer, opts Options) *Service {
	if opts.FilterPolicy == "" {
		opts.FilterPolicy = PolicyStrict
	}
	if opts.SlopeEpsilon <= 0 {
		opts.SlopeEpsilon = 0.005
	}
	if opts.CloudCoverTolerance <= 0 || opts.CloudCoverTolerance > 1 {
		opts.CloudCoverTolerance = 0.2
	}
	return &Service{
		client:  client,
		opts:    opts,
		sampler: NewSampler(client, opts.SampleWorkers),
	}
}

// Forecast runs the full pipeline for one area and window: fetch, filter,
// fit, classify, sample. Missing-credential errors propagate; an empty or
// fully-rejected result returns ErrNoUsableData.
func (s *Service) Forecast(ctx context.Context, area geo.AreaOfInterest, window geo.TimeWindow, sampling SampleSpec) (*ForecastReport, error) {
	if err := area.Validate(); err != nil {
		return nil, fmt.Errorf("invalid area: %w", err)
	}
	if err := window.Validate(); err != nil {
		return nil, fmt.Errorf("invalid window: %w", err)
	}

	raw, err := s.client.IndexSeries(ctx, area, window, s.opts.CloudCoverTolerance)
	if err != nil {
		return nil, err
	}

	accepted := Filter(raw, s.opts.FilterPolicy)
	if len(accepted) == 0 {
		log.Printf("no usable readings for %s between %s and %s (raw=%d, policy=%s)",
			area.Key(), window.Start.Format("2006-01-02"), window.End.Format("2006-01-02"),
			len(raw), s.opts.FilterPolicy)
		return nil, ErrNoUsableData
	}

	mode := DedupeNone
	if s.opts.UniquePerDate {
		mode = DedupeKeepFirst
	}
	series := NewSeries(accepted, mode)

	forecast := FitTrend(series, s.opts.SlopeEpsilon)

	if sampling.Policy == "" {
		sampling = s.opts.DefaultSampling
	}
	if sampling.Policy == "" {
		sampling.Policy = SampleLatest
	}
	samples := s.sampler.Collect(ctx, area, series, sampling)

	latest, err := series.Latest()
	if err != nil {
		return nil, err
	}
	predicted := latest.Value
	if n := len(forecast.FutureValues); n > 0 {
		predicted = forecast.FutureValues[n-1]
	}

	return &ForecastReport{
		Area:     area,
		Window:   window,
		Readings: series.Readings(),
		Forecast: forecast,
		Summary: Summary{
			CurrentHealth:   latest.Value,
			PredictedHealth: predicted,
			Delta:           predicted - latest.Value,
		},
		Samples: samples,
		Export:  series.Export(),
	}, nil
}
