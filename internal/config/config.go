package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelvins/geocoder"

	"github.com/agrowatch/ndvi-forecast/internal/geo"
	"github.com/agrowatch/ndvi-forecast/internal/ndvi"
	"github.com/agrowatch/ndvi-forecast/internal/scheduler"
)

// AppConfig is the immutable application configuration, built once at process
// start and passed into the components that need it.
type AppConfig struct {
	// Sentinel Hub credentials, resolved secrets-file-first then environment.
	SHClientID     string
	SHClientSecret string

	HTTPTimeout time.Duration

	FilterPolicy        ndvi.Policy
	SlopeEpsilon        float64
	CloudCoverTolerance float64
	UniquePerDate       bool

	SamplePolicy  ndvi.SamplePolicy
	FilmstripSize int
	SampleWorkers int

	// Areas re-checked periodically by the monitor.
	MonitorAreas        []scheduler.Area
	MonitorInterval     time.Duration
	MonitorLookbackDays int

	Port string
}

// Load reads configuration from environment with sensible defaults.
// Credentials layer a secrets file over the process environment, matching
// deployments where a mounted secret store takes priority.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}
	if secrets := os.Getenv("SH_SECRETS_FILE"); secrets != "" {
		if err := godotenv.Overload(secrets); err != nil {
			return nil, fmt.Errorf("loading secrets file %s: %w", secrets, err)
		}
	}

	cfg := &AppConfig{}

	cfg.SHClientID = os.Getenv("SH_CLIENT_ID")
	cfg.SHClientSecret = os.Getenv("SH_CLIENT_SECRET")

	timeoutStr := getenvDefault("HTTP_TIMEOUT", "30s")
	timeout, err := time.ParseDuration(timeoutStr)
	if err != nil {
		return nil, fmt.Errorf("invalid HTTP_TIMEOUT: %w", err)
	}
	cfg.HTTPTimeout = timeout

	policy, err := ndvi.ParsePolicy(getenvDefault("FILTER_POLICY", string(ndvi.PolicyStrict)))
	if err != nil {
		return nil, err
	}
	cfg.FilterPolicy = policy

	cfg.SlopeEpsilon = getenvFloat("SLOPE_EPSILON", 0.005)
	cfg.CloudCoverTolerance = getenvFloat("CLOUD_COVER_TOLERANCE", 0.2)
	cfg.UniquePerDate = getenvDefault("UNIQUE_PER_DATE", "false") == "true"

	samplePolicy, err := ndvi.ParseSamplePolicy(getenvDefault("SAMPLE_POLICY", string(ndvi.SampleLatest)))
	if err != nil {
		return nil, err
	}
	cfg.SamplePolicy = samplePolicy
	cfg.FilmstripSize = getenvInt("FILMSTRIP_SIZE", 4)
	cfg.SampleWorkers = getenvInt("SAMPLE_WORKERS", 4)

	intervalStr := getenvDefault("MONITOR_INTERVAL", "24h")
	interval, err := time.ParseDuration(intervalStr)
	if err != nil {
		return nil, fmt.Errorf("invalid MONITOR_INTERVAL: %w", err)
	}
	cfg.MonitorInterval = interval
	cfg.MonitorLookbackDays = getenvInt("MONITOR_LOOKBACK_DAYS", 60)

	areas, err := loadMonitorAreas()
	if err != nil {
		return nil, err
	}
	cfg.MonitorAreas = areas

	cfg.Port = getenvDefault("PORT", "8080")

	return cfg, nil
}

// loadMonitorAreas parses areas from MONITOR_BBOXES
// ("name:minLon,minLat,maxLon,maxLat;...") and MONITOR_ADDRESSES
// ("name:street address;..."), geocoding the latter once at startup into
// boxes of MONITOR_BOX_SPAN degrees.
func loadMonitorAreas() ([]scheduler.Area, error) {
	var areas []scheduler.Area

	for _, entry := range splitEntries(os.Getenv("MONITOR_BBOXES")) {
		name, rest, ok := strings.Cut(entry, ":")
		if !ok {
			return nil, fmt.Errorf("malformed MONITOR_BBOXES entry %q; want name:minLon,minLat,maxLon,maxLat", entry)
		}
		parts := strings.Split(rest, ",")
		if len(parts) != 4 {
			return nil, fmt.Errorf("bounding box for %q needs 4 coordinates", name)
		}
		coords := make([]float64, 4)
		for i, p := range parts {
			f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
			if err != nil {
				return nil, fmt.Errorf("bounding box for %q: %w", name, err)
			}
			coords[i] = f
		}
		box := geo.AreaOfInterest{MinLon: coords[0], MinLat: coords[1], MaxLon: coords[2], MaxLat: coords[3]}
		if err := box.Validate(); err != nil {
			return nil, fmt.Errorf("bounding box for %q: %w", name, err)
		}
		areas = append(areas, scheduler.Area{Name: strings.TrimSpace(name), Box: box})
	}

	addresses := splitEntries(os.Getenv("MONITOR_ADDRESSES"))
	if len(addresses) > 0 {
		apiKey := os.Getenv("GEOCODER_API_KEY")
		if apiKey == "" {
			log.Printf("WARN: MONITOR_ADDRESSES set but GEOCODER_API_KEY is missing; skipping address areas")
			return areas, nil
		}
		geocoder.ApiKey = apiKey
		span := getenvFloat("MONITOR_BOX_SPAN", 0.02)

		for _, entry := range addresses {
			name, addr, ok := strings.Cut(entry, ":")
			if !ok {
				return nil, fmt.Errorf("malformed MONITOR_ADDRESSES entry %q; want name:address", entry)
			}
			loc, err := geocoder.Geocoding(geocoder.Address{Street: strings.TrimSpace(addr)})
			if err != nil {
				log.Printf("WARN: geocoding %q failed, skipping: %v", name, err)
				continue
			}
			areas = append(areas, scheduler.Area{
				Name: strings.TrimSpace(name),
				Box:  geo.BoxAround(loc.Latitude, loc.Longitude, span),
			})
		}
	}

	return areas, nil
}

func splitEntries(s string) []string {
	var entries []string
	for _, e := range strings.Split(s, ";") {
		if e = strings.TrimSpace(e); e != "" {
			entries = append(entries, e)
		}
	}
	return entries
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getenvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err == nil {
			return f
		}
	}
	return def
}
