package sentinel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/agrowatch/ndvi-forecast/internal/geo"
	"github.com/agrowatch/ndvi-forecast/internal/ndvi"
)

const (
	defaultBaseURL = "https://services.sentinel-hub.com"
	tokenPath      = "/oauth/token"
	statisticsPath = "/api/v1/statistics"
	processPath    = "/api/v1/process"

	dataCollection = "sentinel-2-l2a"

	// Leeway subtracted from the token lifetime before refreshing.
	tokenRefreshMargin = 60 * time.Second

	// Cloud tolerance for single-date visual requests. A cloudy image is
	// better corroboration than no image.
	trueColorCloudCover = 1.0
)

// ndviEvalscript computes (NIR - RED) / (NIR + RED) per pixel; the
// statistics aggregation averages it over the requested area.
const ndviEvalscript = `//VERSION=3
function setup() {
  return {
    input: ["B04", "B08", "dataMask"],
    output: [
      { id: "ndvi", bands: 1, sampleType: "FLOAT32" },
      { id: "dataMask", bands: 1 }
    ]
  };
}
function evaluatePixel(sample) {
  let ndvi = (sample.B08 - sample.B04) / (sample.B08 + sample.B04);
  return { ndvi: [ndvi], dataMask: [sample.dataMask] };
}`

// trueColorEvalscript renders RGB brightened by a fixed 2.5 gain.
const trueColorEvalscript = `//VERSION=3
function setup() {
  return {
    input: ["B02", "B03", "B04"],
    output: { bands: 3, sampleType: "AUTO" }
  };
}
function evaluatePixel(sample) {
  return [2.5 * sample.B04, 2.5 * sample.B03, 2.5 * sample.B02];
}`

// Client adapts (area, window) requests into Sentinel Hub calls and
// normalizes the responses into readings. It holds no per-request state;
// only the OAuth token is cached between calls.
type Client struct {
	baseURL      string
	clientID     string
	clientSecret string
	httpCfg      HTTPClientConfig
	circuit      *gobreaker.CircuitBreaker

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// NewClient creates a Client. Credentials are resolved by the caller before
// construction; missing credentials are a fatal AuthError here, never a
// deferred failure mid-pipeline.
func NewClient(httpClient *http.Client, clientID, clientSecret string) (*Client, error) {
	if clientID == "" || clientSecret == "" {
		return nil, &AuthError{Reason: "client id and secret must be configured"}
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "sentinelhub",
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
	})

	return &Client{
		baseURL:      defaultBaseURL,
		clientID:     clientID,
		clientSecret: clientSecret,
		httpCfg: HTTPClientConfig{
			Client: httpClient,
			Backoff: BackoffConfig{
				MaxRetries:      3,
				InitialInterval: 500 * time.Millisecond,
				MaxInterval:     5 * time.Second,
			},
		},
		circuit: cb,
	}, nil
}

// IndexSeries fetches area-averaged NDVI aggregates for every available pass
// in the window, with timestamps normalized to calendar dates regardless of
// response shape. Transient provider failures yield an empty result, not an
// error: "no data today" is operationally normal and the caller applies its
// no-data policy. Authentication failures propagate.
func (c *Client) IndexSeries(ctx context.Context, area geo.AreaOfInterest, window geo.TimeWindow, maxCloudCover float64) ([]ndvi.Reading, error) {
	token, err := c.token(ctx)
	if err != nil {
		if IsAuthError(err) {
			return nil, err
		}
		log.Printf("sentinel: token fetch failed for %s, treating as empty result: %v", area.Key(), err)
		return nil, nil
	}

	body, err := json.Marshal(statisticsRequest(area, window, maxCloudCover))
	if err != nil {
		return nil, fmt.Errorf("encoding statistics request: %w", err)
	}

	resp, err := c.doJSON(ctx, token, statisticsPath, body)
	if err != nil {
		if IsAuthError(err) {
			return nil, err
		}
		log.Printf("sentinel: bulk index query failed for %s, treating as empty result: %v", area.Key(), err)
		return nil, nil
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Printf("sentinel: reading bulk response for %s failed, treating as empty result: %v", area.Key(), err)
		return nil, nil
	}

	samples, err := normalizerFor(raw).Normalize(raw)
	if err != nil {
		log.Printf("sentinel: malformed bulk response for %s, treating as empty result: %v", area.Key(), err)
		return nil, nil
	}

	readings := make([]ndvi.Reading, 0, len(samples))
	for _, s := range samples {
		d := toCalendarDate(s.Timestamp)
		if !window.Contains(d) {
			continue
		}
		readings = append(readings, ndvi.Reading{Date: d, Value: s.Value})
	}
	return readings, nil
}

// TrueColor fetches a brightened RGB image for a single date, or (nil, nil)
// if no image is available then. A per-date failure never aborts a batch;
// only authentication errors propagate.
func (c *Client) TrueColor(ctx context.Context, area geo.AreaOfInterest, date time.Time) ([]byte, error) {
	token, err := c.token(ctx)
	if err != nil {
		if IsAuthError(err) {
			return nil, err
		}
		return nil, nil
	}

	body, err := json.Marshal(processRequest(area, date))
	if err != nil {
		return nil, fmt.Errorf("encoding process request: %w", err)
	}

	resp, err := c.doJSON(ctx, token, processPath, body)
	if err != nil {
		if IsAuthError(err) {
			return nil, err
		}
		log.Printf("sentinel: true-color fetch failed for %s on %s: %v",
			area.Key(), date.Format("2006-01-02"), err)
		return nil, nil
	}
	defer resp.Body.Close()

	img, err := io.ReadAll(resp.Body)
	if err != nil || len(img) == 0 {
		return nil, nil
	}
	return img, nil
}

func (c *Client) doJSON(ctx context.Context, token, path string, body []byte) (*http.Response, error) {
	buildRequest := func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodPost, c.baseURL+path, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	}
	return doRequestWithResilience(ctx, c.httpCfg, c.circuit, buildRequest)
}

// token returns a cached OAuth access token, refreshing it via the
// client-credentials grant when close to expiry.
func (c *Client) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && time.Now().Before(c.tokenExpiry.Add(-tokenRefreshMargin)) {
		return c.accessToken, nil
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", c.clientID)
	form.Set("client_secret", c.clientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+tokenPath, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpCfg.Client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden ||
		resp.StatusCode == http.StatusBadRequest {
		return "", &AuthError{Reason: fmt.Sprintf("token endpoint rejected credentials with %d", resp.StatusCode)}
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token endpoint returned %d", resp.StatusCode)
	}

	var payload struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("decoding token response: %w", err)
	}
	if payload.AccessToken == "" {
		return "", &AuthError{Reason: "token endpoint returned an empty token"}
	}

	c.accessToken = payload.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(payload.ExpiresIn) * time.Second)
	return c.accessToken, nil
}

func statisticsRequest(area geo.AreaOfInterest, window geo.TimeWindow, maxCloudCover float64) map[string]any {
	return map[string]any{
		"input": map[string]any{
			"bounds": bounds(area),
			"data": []map[string]any{{
				"type": dataCollection,
				"dataFilter": map[string]any{
					"maxCloudCoverage": maxCloudCover * 100,
				},
			}},
		},
		"aggregation": map[string]any{
			"timeRange": map[string]string{
				"from": window.Start.Format(time.RFC3339),
				"to":   window.End.AddDate(0, 0, 1).Format(time.RFC3339),
			},
			"aggregationInterval": map[string]string{"of": "P1D"},
			"evalscript":          ndviEvalscript,
		},
	}
}

func processRequest(area geo.AreaOfInterest, date time.Time) map[string]any {
	day := toCalendarDate(date)
	return map[string]any{
		"input": map[string]any{
			"bounds": bounds(area),
			"data": []map[string]any{{
				"type": dataCollection,
				"dataFilter": map[string]any{
					"timeRange": map[string]string{
						"from": day.Format(time.RFC3339),
						"to":   day.AddDate(0, 0, 1).Format(time.RFC3339),
					},
					"maxCloudCoverage": trueColorCloudCover * 100,
				},
			}},
		},
		"output": map[string]any{
			"responses": []map[string]any{{
				"identifier": "default",
				"format":     map[string]string{"type": "image/png"},
			}},
		},
		"evalscript": trueColorEvalscript,
	}
}

func bounds(area geo.AreaOfInterest) map[string]any {
	return map[string]any{
		"bbox": []float64{area.MinLon, area.MinLat, area.MaxLon, area.MaxLat},
		"properties": map[string]string{
			"crs": "http://www.opengis.net/def/crs/EPSG/0/4326",
		},
	}
}

// toCalendarDate truncates a timestamp to its calendar date at midnight UTC.
func toCalendarDate(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
