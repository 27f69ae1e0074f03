package httpapi

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/aqi-collector/internal/airquality"
	"github.com/i474232898/aqi-collector/internal/scheduler"
	"github.com/i474232898/aqi-collector/internal/store"
)

// StatusProvider exposes the polling loop status.
type StatusProvider interface {
	Status() scheduler.Status
}

// CircuitReporter exposes the outbound circuit breaker state.
type CircuitReporter interface {
	CircuitState() string
}

// Deps are the collaborators the routes read from.
type Deps struct {
	Service *airquality.Service
	// Scheduler and Circuit are nil when collection is disabled.
	Scheduler StatusProvider
	Circuit   CircuitReporter
	Now       func() time.Time
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, deps Deps) {
	now := deps.Now
	if now == nil {
		now = time.Now
	}

	v1 := app.Group("/api/v1")

	// Always 200: absent data is reported as explicit nulls.
	v1.Get("/air/current", func(c *fiber.Ctx) error {
		return c.JSON(deps.Service.Current(now()))
	})

	v1.Get("/air/status", func(c *fiber.Ctx) error {
		resp := statusResponse{
			Enabled:       deps.Scheduler != nil,
			MaxAgeSeconds: deps.Service.Gate().MaxAge().Seconds(),
		}

		if deps.Scheduler != nil {
			st := deps.Scheduler.Status()
			resp.Scheduler = &st
		}
		if deps.Circuit != nil {
			resp.Circuit = deps.Circuit.CircuitState()
		}

		reading, err := deps.Service.Latest()
		switch {
		case err == nil:
			resp.Reading = &reading
			resp.Fresh = deps.Service.Current(now()).Available()
		case errors.Is(err, store.ErrNotFound):
			// nothing collected yet
		default:
			return fiber.NewError(fiber.StatusInternalServerError, "failed to read cached reading")
		}

		return c.JSON(resp)
	})
}

type statusResponse struct {
	Enabled       bool                `json:"enabled"`
	Scheduler     *scheduler.Status   `json:"scheduler"`
	Circuit       string              `json:"circuit,omitempty"`
	Reading       *airquality.Reading `json:"reading"`
	Fresh         bool                `json:"fresh"`
	MaxAgeSeconds float64             `json:"maxAgeSeconds"`
}
