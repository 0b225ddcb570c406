package sentinel

import (
	"math"
	"testing"
	"time"
)

const inlineBody = `{
  "data": [
    {
      "interval": {"from": "2024-01-01T00:00:00Z", "to": "2024-01-02T00:00:00Z"},
      "outputs": {"ndvi": {"bands": {"B0": {"stats": {"mean": 0.42}}}}}
    },
    {
      "interval": {"from": "2024-01-06T00:00:00Z", "to": "2024-01-07T00:00:00Z"},
      "outputs": {"ndvi": {"bands": {"B0": {"stats": {"mean": null}}}}}
    }
  ]
}`

const parallelBody = `{
  "ndvi": [0.42, null],
  "userdata": {"timestamps": ["2024-01-01T10:20:30Z", "2024-01-06T10:20:30Z"]}
}`

func TestNormalizerDetection(t *testing.T) {
	if _, ok := normalizerFor([]byte(inlineBody)).(inlineStatsResponse); !ok {
		t.Error("inline body should select the inline normalizer")
	}
	if _, ok := normalizerFor([]byte(parallelBody)).(parallelMetadataResponse); !ok {
		t.Error("parallel body should select the parallel normalizer")
	}
}

// Both shapes must produce the same samples for equivalent content.
func TestBothShapesNormalizeAlike(t *testing.T) {
	inline, err := inlineStatsResponse{}.Normalize([]byte(inlineBody))
	if err != nil {
		t.Fatalf("inline: %v", err)
	}
	parallel, err := parallelMetadataResponse{}.Normalize([]byte(parallelBody))
	if err != nil {
		t.Fatalf("parallel: %v", err)
	}

	if len(inline) != 2 || len(parallel) != 2 {
		t.Fatalf("lengths: inline %d, parallel %d, want 2 each", len(inline), len(parallel))
	}

	if inline[0].Value != 0.42 || parallel[0].Value != 0.42 {
		t.Errorf("first values: inline %v, parallel %v", inline[0].Value, parallel[0].Value)
	}
	if !math.IsNaN(inline[1].Value) || !math.IsNaN(parallel[1].Value) {
		t.Error("null aggregates must normalize to NaN in both shapes")
	}

	wantDay := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	if !inline[0].Timestamp.Truncate(24*time.Hour).Equal(wantDay) ||
		!parallel[0].Timestamp.Truncate(24*time.Hour).Equal(wantDay) {
		t.Errorf("first timestamps disagree: inline %s, parallel %s",
			inline[0].Timestamp, parallel[0].Timestamp)
	}
}

func TestParallelShapeLengthMismatch(t *testing.T) {
	body := `{"ndvi": [0.1, 0.2], "userdata": {"timestamps": ["2024-01-01T00:00:00Z"]}}`
	if _, err := (parallelMetadataResponse{}).Normalize([]byte(body)); err == nil {
		t.Fatal("expected error for mismatched value/timestamp lists")
	}
}

func TestInlineShapeBadTimestamp(t *testing.T) {
	body := `{"data": [{"interval": {"from": "yesterday"}, "outputs": {"ndvi": {"bands": {"B0": {"stats": {"mean": 0.1}}}}}}]}`
	if _, err := (inlineStatsResponse{}).Normalize([]byte(body)); err == nil {
		t.Fatal("expected error for malformed timestamp")
	}
}
