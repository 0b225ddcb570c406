package httpapi

import (
	"errors"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/agrowatch/ndvi-forecast/internal/geo"
	"github.com/agrowatch/ndvi-forecast/internal/ndvi"
	"github.com/agrowatch/ndvi-forecast/internal/sentinel"
)

var validate = validator.New()

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, service *ndvi.Service) {
	v1 := app.Group("/api/v1")

	v1.Get("/forecast", func(c *fiber.Ctx) error {
		var req forecastQuery
		if err := req.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		report, err := service.Forecast(c.Context(), req.area(), req.window(), req.sampling())
		if err != nil {
			return mapServiceError(err)
		}

		return c.JSON(report)
	})

	// Stable {date, value} projection for export; no imagery is fetched.
	v1.Get("/export", func(c *fiber.Ctx) error {
		var req forecastQuery
		if err := req.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		report, err := service.Forecast(c.Context(), req.area(), req.window(), ndvi.SampleSpec{Policy: ndvi.SampleNone})
		if err != nil {
			return mapServiceError(err)
		}

		return c.JSON(fiber.Map{
			"area":   report.Area,
			"window": report.Window,
			"rows":   report.Export,
		})
	})
}

func mapServiceError(err error) error {
	if errors.Is(err, ndvi.ErrNoUsableData) {
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	}
	if sentinel.IsAuthError(err) {
		return fiber.NewError(fiber.StatusBadGateway, "imagery provider credentials missing or rejected")
	}
	return fiber.NewError(fiber.StatusInternalServerError, "failed to run forecast pipeline")
}

// forecastQuery holds query parameters for the forecast endpoints.
type forecastQuery struct {
	MinLon float64 `validate:"min=-180,max=180"`
	MinLat float64 `validate:"min=-90,max=90"`
	MaxLon float64 `validate:"min=-180,max=180,gtfield=MinLon"`
	MaxLat float64 `validate:"min=-90,max=90,gtfield=MinLat"`

	Start time.Time `validate:"required"`
	End   time.Time `validate:"required,gtefield=Start"`

	Samples string `validate:"omitempty,oneof=latest filmstrip contrast"`
	K       int    `validate:"omitempty,min=1,max=12"`
}

func (q *forecastQuery) bind(c *fiber.Ctx) error {
	var err error
	if q.MinLon, err = parseFloat(c, "minLon"); err != nil {
		return err
	}
	if q.MinLat, err = parseFloat(c, "minLat"); err != nil {
		return err
	}
	if q.MaxLon, err = parseFloat(c, "maxLon"); err != nil {
		return err
	}
	if q.MaxLat, err = parseFloat(c, "maxLat"); err != nil {
		return err
	}

	if q.Start, err = parseDate(c, "start"); err != nil {
		return err
	}
	if q.End, err = parseDate(c, "end"); err != nil {
		return err
	}

	q.Samples = c.Query("samples")
	if kStr := c.Query("k"); kStr != "" {
		k, err := strconv.Atoi(kStr)
		if err != nil {
			return errors.New("k must be an integer")
		}
		q.K = k
	}
	return nil
}

func (q forecastQuery) area() geo.AreaOfInterest {
	return geo.AreaOfInterest{
		MinLon: q.MinLon,
		MinLat: q.MinLat,
		MaxLon: q.MaxLon,
		MaxLat: q.MaxLat,
	}
}

func (q forecastQuery) window() geo.TimeWindow {
	return geo.TimeWindow{Start: q.Start, End: q.End}
}

func (q forecastQuery) sampling() ndvi.SampleSpec {
	spec := ndvi.SampleSpec{Policy: ndvi.SamplePolicy(q.Samples), K: q.K}
	if spec.Policy == ndvi.SampleFilmstrip && spec.K == 0 {
		spec.K = 4
	}
	return spec
}

func parseFloat(c *fiber.Ctx, key string) (float64, error) {
	s := c.Query(key)
	if s == "" {
		return 0, errors.New(key + " query parameter is required")
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, errors.New(key + " must be a number")
	}
	return f, nil
}

// parseDate accepts calendar dates (2006-01-02) or RFC3339 timestamps.
func parseDate(c *fiber.Ctx, key string) (time.Time, error) {
	s := c.Query(key)
	if s == "" {
		return time.Time{}, errors.New(key + " query parameter is required")
	}
	if ts, err := time.Parse("2006-01-02", s); err == nil {
		return ts.UTC(), nil
	}
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts.UTC(), nil
	}
	return time.Time{}, errors.New(key + " must be YYYY-MM-DD or RFC3339")
}
