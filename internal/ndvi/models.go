package ndvi

import (
	"time"

	"github.com/agrowatch/ndvi-forecast/internal/geo"
)

// Trend is the discrete verdict derived from the fitted slope.
type Trend string

const (
	TrendGrowth  Trend = "growth"
	TrendStable  Trend = "stable"
	TrendDecline Trend = "decline"
)

// Reading is a single NDVI observation for an area on a calendar date.
// Values are nominally in [-1, 1]; dates are midnight UTC.
type Reading struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}

// ForecastResult is the projected trend over the forecast horizon.
// FutureDates and FutureValues are parallel slices of equal length.
type ForecastResult struct {
	FutureDates  []time.Time `json:"futureDates"`
	FutureValues []float64   `json:"futureValues"`
	Slope        float64     `json:"slopePerDay"`
	Confidence   float64     `json:"confidence"`
	Trend        Trend       `json:"trend"`
}

// VisualSample pairs a series date with corroborating true-color imagery.
type VisualSample struct {
	Date  time.Time `json:"date"`
	Image []byte    `json:"image"` // PNG bytes, base64-encoded in JSON
}

// ExportRow is the stable {date, value} projection handed to exporters.
// Column order is fixed: date first, then value.
type ExportRow struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
}

// Summary carries the headline metrics the presentation layer displays.
type Summary struct {
	CurrentHealth   float64 `json:"currentHealth"`
	PredictedHealth float64 `json:"predictedHealth"`
	Delta           float64 `json:"delta"`
}

// ForecastReport is the full pipeline output for one request. It owns its
// series exclusively; nothing is retained once the response is returned.
type ForecastReport struct {
	Area     geo.AreaOfInterest `json:"area"`
	Window   geo.TimeWindow     `json:"window"`
	Readings []Reading          `json:"readings"`
	Forecast ForecastResult     `json:"forecast"`
	Summary  Summary            `json:"summary"`
	Samples  []VisualSample     `json:"samples,omitempty"`
	Export   []ExportRow        `json:"export"`
}
