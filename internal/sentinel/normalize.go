package sentinel

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// rawSample is the single output contract both response shapes normalize to.
type rawSample struct {
	Timestamp time.Time
	Value     float64
}

// responseNormalizer unifies the provider's response shapes. The statistics
// mode returns a timestamped interval per aggregate; the process mode returns
// the aggregates and an out-of-band parallel list of timestamps in its
// userdata section. One implementation per shape; the pipeline never branches
// on shape.
type responseNormalizer interface {
	Normalize(body []byte) ([]rawSample, error)
}

// normalizerFor probes the response body and picks the matching shape.
func normalizerFor(body []byte) responseNormalizer {
	var probe struct {
		Userdata json.RawMessage `json:"userdata"`
	}
	if err := json.Unmarshal(body, &probe); err == nil && len(probe.Userdata) > 0 {
		return parallelMetadataResponse{}
	}
	return inlineStatsResponse{}
}

// inlineStatsResponse handles the statistics shape, where each aggregate
// carries its own interval timestamp.
type inlineStatsResponse struct{}

func (inlineStatsResponse) Normalize(body []byte) ([]rawSample, error) {
	var payload struct {
		Data []struct {
			Interval struct {
				From string `json:"from"`
			} `json:"interval"`
			Outputs struct {
				NDVI struct {
					Bands struct {
						B0 struct {
							Stats struct {
								Mean *float64 `json:"mean"`
							} `json:"stats"`
						} `json:"B0"`
					} `json:"bands"`
				} `json:"ndvi"`
			} `json:"outputs"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decoding statistics response: %w", err)
	}

	samples := make([]rawSample, 0, len(payload.Data))
	for _, entry := range payload.Data {
		ts, err := time.Parse(time.RFC3339, entry.Interval.From)
		if err != nil {
			return nil, fmt.Errorf("bad interval timestamp %q: %w", entry.Interval.From, err)
		}
		samples = append(samples, rawSample{
			Timestamp: ts.UTC(),
			Value:     meanOrNaN(entry.Outputs.NDVI.Bands.B0.Stats.Mean),
		})
	}
	return samples, nil
}

// parallelMetadataResponse handles the process shape, where index aggregates
// and their acquisition timestamps arrive as two parallel lists.
type parallelMetadataResponse struct{}

func (parallelMetadataResponse) Normalize(body []byte) ([]rawSample, error) {
	var payload struct {
		NDVI     []*float64 `json:"ndvi"`
		Userdata struct {
			Timestamps []string `json:"timestamps"`
		} `json:"userdata"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decoding process response: %w", err)
	}
	if len(payload.NDVI) != len(payload.Userdata.Timestamps) {
		return nil, fmt.Errorf("mismatched response lists: %d values, %d timestamps",
			len(payload.NDVI), len(payload.Userdata.Timestamps))
	}

	samples := make([]rawSample, 0, len(payload.NDVI))
	for i, v := range payload.NDVI {
		ts, err := time.Parse(time.RFC3339, payload.Userdata.Timestamps[i])
		if err != nil {
			return nil, fmt.Errorf("bad userdata timestamp %q: %w", payload.Userdata.Timestamps[i], err)
		}
		samples = append(samples, rawSample{
			Timestamp: ts.UTC(),
			Value:     meanOrNaN(v),
		})
	}
	return samples, nil
}

// meanOrNaN maps a missing aggregate (null over a fully masked area) to NaN
// so the quality filter sees and drops it.
func meanOrNaN(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}
