package ndvi

import (
	"errors"
	"sort"
)

// ErrEmptySeries is returned when a value accessor is called on a series
// with no readings.
var ErrEmptySeries = errors.New("ndvi series has no readings")

// DedupeMode controls how repeated dates within one series are handled.
type DedupeMode int

const (
	// DedupeNone passes duplicate dates through untouched.
	DedupeNone DedupeMode = iota
	// DedupeKeepFirst keeps the first accepted reading per date. The filter
	// runs before the series is built, so the survivor is the earliest
	// trustworthy pass of that day.
	DedupeKeepFirst
)

// Series holds accepted readings in ascending date order. It is built fresh
// per forecast request and discarded with the response.
type Series struct {
	readings []Reading
}

// NewSeries sorts the given readings by date and applies the dedupe mode.
// The input slice is not modified.
func NewSeries(readings []Reading, mode DedupeMode) *Series {
	sorted := make([]Reading, len(readings))
	copy(sorted, readings)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date)
	})

	if mode == DedupeKeepFirst && len(sorted) > 1 {
		unique := sorted[:1]
		for _, r := range sorted[1:] {
			if !r.Date.Equal(unique[len(unique)-1].Date) {
				unique = append(unique, r)
			}
		}
		sorted = unique
	}

	return &Series{readings: sorted}
}

// Count returns the number of readings in the series.
func (s *Series) Count() int {
	return len(s.readings)
}

// Readings returns the ordered readings backing the series.
func (s *Series) Readings() []Reading {
	return s.readings
}

// Latest returns the most recent reading.
func (s *Series) Latest() (Reading, error) {
	if len(s.readings) == 0 {
		return Reading{}, ErrEmptySeries
	}
	return s.readings[len(s.readings)-1], nil
}

// Peak returns the reading with the highest index value.
func (s *Series) Peak() (Reading, error) {
	if len(s.readings) == 0 {
		return Reading{}, ErrEmptySeries
	}
	best := s.readings[0]
	for _, r := range s.readings[1:] {
		if r.Value > best.Value {
			best = r
		}
	}
	return best, nil
}

// Trough returns the reading with the lowest index value.
func (s *Series) Trough() (Reading, error) {
	if len(s.readings) == 0 {
		return Reading{}, ErrEmptySeries
	}
	worst := s.readings[0]
	for _, r := range s.readings[1:] {
		if r.Value < worst.Value {
			worst = r
		}
	}
	return worst, nil
}

// Export returns the stable {date, value} projection of the series with a
// fixed column order across calls.
func (s *Series) Export() []ExportRow {
	rows := make([]ExportRow, 0, len(s.readings))
	for _, r := range s.readings {
		rows = append(rows, ExportRow{
			Date:  r.Date.Format("2006-01-02"),
			Value: r.Value,
		})
	}
	return rows
}
