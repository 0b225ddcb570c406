package ndvi

import "time"

// ForecastHorizonDays is how far the fitted trend is projected past the last
// observed day offset.
const ForecastHorizonDays = 14

// FitTrend fits index_value ≈ a + b*day_offset by ordinary least squares,
// where day_offset counts days from the earliest reading, then projects the
// line ForecastHorizonDays past the last observed offset.
//
// Fewer than 2 distinct day offsets is not an error: the result is a flat
// forecast at the observed value with slope 0 and confidence 0. A perfectly
// constant series fits itself exactly and reports confidence 1.0.
// The function is pure and never fails.
func FitTrend(s *Series, epsilon float64) ForecastResult {
	readings := s.Readings()
	if len(readings) == 0 {
		return ForecastResult{Trend: TrendStable}
	}

	base := readings[0].Date
	offsets := make([]float64, len(readings))
	distinct := make(map[int]struct{}, len(readings))
	lastOffset := 0
	for i, r := range readings {
		days := int(r.Date.Sub(base).Hours() / 24)
		offsets[i] = float64(days)
		distinct[days] = struct{}{}
		if days > lastOffset {
			lastOffset = days
		}
	}

	futureDates := make([]time.Time, ForecastHorizonDays)
	futureValues := make([]float64, ForecastHorizonDays)
	for i := range futureDates {
		futureDates[i] = base.AddDate(0, 0, lastOffset+i+1)
	}

	if len(distinct) < 2 {
		// Degenerate fit: hold the observed level flat.
		level := readings[len(readings)-1].Value
		for i := range futureValues {
			futureValues[i] = level
		}
		return ForecastResult{
			FutureDates:  futureDates,
			FutureValues: futureValues,
			Slope:        0,
			Confidence:   0,
			Trend:        Classify(0, epsilon),
		}
	}

	var meanX, meanY float64
	n := float64(len(readings))
	for i, r := range readings {
		meanX += offsets[i]
		meanY += r.Value
	}
	meanX /= n
	meanY /= n

	var sxx, sxy, syy float64
	for i, r := range readings {
		dx := offsets[i] - meanX
		dy := r.Value - meanY
		sxx += dx * dx
		sxy += dx * dy
		syy += dy * dy
	}

	slope := sxy / sxx
	intercept := meanY - slope*meanX

	// R² against the observed points. Zero total variance means a constant
	// series: the zero-slope line is a perfect fit of it, so 1.0.
	confidence := 1.0
	if syy > 0 {
		var sse float64
		for i, r := range readings {
			resid := r.Value - (intercept + slope*offsets[i])
			sse += resid * resid
		}
		confidence = clampConfidence(1 - sse/syy)
	}

	for i := range futureValues {
		futureValues[i] = intercept + slope*float64(lastOffset+i+1)
	}

	return ForecastResult{
		FutureDates:  futureDates,
		FutureValues: futureValues,
		Slope:        slope,
		Confidence:   confidence,
		Trend:        Classify(slope, epsilon),
	}
}

// clampConfidence bounds R² to [0, 1] before exposure. A fit worse than the
// mean baseline reports 0, never a negative value.
func clampConfidence(r2 float64) float64 {
	if r2 < 0 {
		return 0
	}
	if r2 > 1 {
		return 1
	}
	return r2
}

// Classify maps a fitted slope to a discrete verdict given the sensitivity
// threshold epsilon. Confidence never gates the decision.
func Classify(slope, epsilon float64) Trend {
	switch {
	case slope > epsilon:
		return TrendGrowth
	case slope < -epsilon:
		return TrendDecline
	default:
		return TrendStable
	}
}
