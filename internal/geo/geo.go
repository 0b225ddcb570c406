package geo

import (
	"fmt"
	"time"
)

// AreaOfInterest is a WGS84 bounding box for the monitored region.
type AreaOfInterest struct {
	MinLon float64 `json:"minLon"`
	MinLat float64 `json:"minLat"`
	MaxLon float64 `json:"maxLon"`
	MaxLat float64 `json:"maxLat"`
}

// Validate checks axis ordering and coordinate ranges.
func (a AreaOfInterest) Validate() error {
	if a.MinLon < -180 || a.MaxLon > 180 || a.MinLat < -90 || a.MaxLat > 90 {
		return fmt.Errorf("bounding box out of WGS84 range: %s", a.Key())
	}
	if a.MinLon >= a.MaxLon {
		return fmt.Errorf("min longitude %f must be less than max longitude %f", a.MinLon, a.MaxLon)
	}
	if a.MinLat >= a.MaxLat {
		return fmt.Errorf("min latitude %f must be less than max latitude %f", a.MinLat, a.MaxLat)
	}
	return nil
}

// Key returns a canonical string for indexing and logging this area.
func (a AreaOfInterest) Key() string {
	return fmt.Sprintf("%.4f,%.4f,%.4f,%.4f", a.MinLon, a.MinLat, a.MaxLon, a.MaxLat)
}

// BoxAround builds a bounding box of the given span in degrees centered on a point.
// Used for areas configured as a geocoded address rather than an explicit box.
func BoxAround(lat, lon, span float64) AreaOfInterest {
	half := span / 2
	return AreaOfInterest{
		MinLon: lon - half,
		MinLat: lat - half,
		MaxLon: lon + half,
		MaxLat: lat + half,
	}
}

// TimeWindow is an inclusive date range for requested historical readings.
type TimeWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Validate checks window ordering.
func (w TimeWindow) Validate() error {
	if w.Start.IsZero() || w.End.IsZero() {
		return fmt.Errorf("time window requires both start and end dates")
	}
	if w.End.Before(w.Start) {
		return fmt.Errorf("window start %s is after end %s",
			w.Start.Format("2006-01-02"), w.End.Format("2006-01-02"))
	}
	return nil
}

// Contains reports whether t falls inside the window, inclusive on both ends.
func (w TimeWindow) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// LastDays returns a window covering the given number of days up to today (UTC).
func LastDays(days int) TimeWindow {
	now := time.Now().UTC()
	end := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return TimeWindow{Start: end.AddDate(0, 0, -days), End: end}
}
