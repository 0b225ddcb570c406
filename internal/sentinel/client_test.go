package sentinel

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/agrowatch/ndvi-forecast/internal/geo"
)

func testArea() geo.AreaOfInterest {
	return geo.AreaOfInterest{MinLon: -90.44, MinLat: 38.97, MaxLon: -90.43, MaxLat: 38.98}
}

func testWindow() geo.TimeWindow {
	return geo.TimeWindow{
		Start: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
	}
}

// newTestClient points a client at the given server with fast backoff.
func newTestClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	c, err := NewClient(srv.Client(), "test-id", "test-secret")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	c.baseURL = srv.URL
	c.httpCfg.Backoff = BackoffConfig{
		MaxRetries:      1,
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
	}
	return c
}

func tokenHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"access_token": "tok", "expires_in": 3600}`))
}

func TestNewClientMissingCredentials(t *testing.T) {
	_, err := NewClient(http.DefaultClient, "", "")
	var authErr *AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("got %v, want AuthError", err)
	}
}

func TestIndexSeriesInlineShape(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc(tokenPath, tokenHandler)
	mux.HandleFunc(statisticsPath, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("missing bearer token, got %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"data": [
				{"interval": {"from": "2024-01-03T10:15:00Z"}, "outputs": {"ndvi": {"bands": {"B0": {"stats": {"mean": 0.31}}}}}},
				{"interval": {"from": "2024-01-08T10:15:00Z"}, "outputs": {"ndvi": {"bands": {"B0": {"stats": {"mean": null}}}}}},
				{"interval": {"from": "2023-12-25T10:15:00Z"}, "outputs": {"ndvi": {"bands": {"B0": {"stats": {"mean": 0.2}}}}}}
			]
		}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := newTestClient(t, srv)
	readings, err := c.IndexSeries(context.Background(), testArea(), testWindow(), 0.2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// The out-of-window pass is dropped; the null aggregate survives as NaN
	// for the quality filter to judge.
	if len(readings) != 2 {
		t.Fatalf("readings: got %d, want 2", len(readings))
	}
	want := time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)
	if !readings[0].Date.Equal(want) {
		t.Errorf("timestamp not normalized to calendar date: got %s, want %s", readings[0].Date, want)
	}
	if readings[0].Value != 0.31 {
		t.Errorf("value: got %v, want 0.31", readings[0].Value)
	}
	if !math.IsNaN(readings[1].Value) {
		t.Errorf("null aggregate: got %v, want NaN", readings[1].Value)
	}
}

func TestIndexSeriesParallelShape(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc(tokenPath, tokenHandler)
	mux.HandleFunc(statisticsPath, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"ndvi": [0.25, 0.5],
			"userdata": {"timestamps": ["2024-01-03T10:15:00Z", "2024-01-13T10:15:00Z"]}
		}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := newTestClient(t, srv)
	readings, err := c.IndexSeries(context.Background(), testArea(), testWindow(), 0.2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(readings) != 2 {
		t.Fatalf("readings: got %d, want 2", len(readings))
	}
	if readings[1].Value != 0.5 {
		t.Errorf("value: got %v, want 0.5", readings[1].Value)
	}
	if !readings[0].Date.Equal(time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("date not normalized: got %s", readings[0].Date)
	}
}

func TestIndexSeriesTransientFailureYieldsEmpty(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc(tokenPath, tokenHandler)
	mux.HandleFunc(statisticsPath, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := newTestClient(t, srv)
	readings, err := c.IndexSeries(context.Background(), testArea(), testWindow(), 0.2)
	if err != nil {
		t.Fatalf("transient failure must not surface as an error, got %v", err)
	}
	if len(readings) != 0 {
		t.Fatalf("expected empty result, got %d readings", len(readings))
	}
}

func TestIndexSeriesRejectedCredentials(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc(tokenPath, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := newTestClient(t, srv)
	_, err := c.IndexSeries(context.Background(), testArea(), testWindow(), 0.2)
	var authErr *AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("got %v, want AuthError", err)
	}
}

func TestTrueColorHappyPath(t *testing.T) {
	png := []byte{0x89, 'P', 'N', 'G'}
	mux := http.NewServeMux()
	mux.HandleFunc(tokenPath, tokenHandler)
	mux.HandleFunc(processPath, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(png)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := newTestClient(t, srv)
	img, err := c.TrueColor(context.Background(), testArea(), time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(img) != len(png) {
		t.Fatalf("image bytes: got %d, want %d", len(img), len(png))
	}
}

func TestTrueColorUnavailableDateYieldsNone(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc(tokenPath, tokenHandler)
	mux.HandleFunc(processPath, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := newTestClient(t, srv)
	img, err := c.TrueColor(context.Background(), testArea(), time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("per-date failure must not surface as an error, got %v", err)
	}
	if img != nil {
		t.Fatal("expected no image for unavailable date")
	}
}

func TestTokenIsCachedAcrossCalls(t *testing.T) {
	var tokenCalls int
	mux := http.NewServeMux()
	mux.HandleFunc(tokenPath, func(w http.ResponseWriter, r *http.Request) {
		tokenCalls++
		tokenHandler(w, r)
	})
	mux.HandleFunc(statisticsPath, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"data": []}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := newTestClient(t, srv)
	for i := 0; i < 3; i++ {
		if _, err := c.IndexSeries(context.Background(), testArea(), testWindow(), 0.2); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if tokenCalls != 1 {
		t.Fatalf("token endpoint called %d times, want 1", tokenCalls)
	}
}
