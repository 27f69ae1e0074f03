package airquality

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/i474232898/aqi-collector/internal/metrics"
)

const publishTimeout = 5 * time.Second

// ServiceOptions configures a Service.
type ServiceOptions struct {
	// Interval is the normal polling interval; the gate serves readings up to
	// twice this old.
	Interval time.Duration

	LogSuccess bool
	LogErrors  bool

	Logger     *slog.Logger
	Publishers []Publisher
}

// Service runs fetch cycles against the provider and keeps the freshness cache current.
type Service struct {
	store      Store
	provider   Provider
	gate       *Gate
	publishers []Publisher
	logger     *slog.Logger
	logSuccess bool
	logErrors  bool
}

// NewService creates a new Service.
func NewService(store Store, provider Provider, opts ServiceOptions) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:      store,
		provider:   provider,
		gate:       NewGate(store, opts.Interval, logger, opts.LogSuccess),
		publishers: opts.Publishers,
		logger:     logger,
		logSuccess: opts.LogSuccess,
		logErrors:  opts.LogErrors,
	}
}

// Gate returns the read side used by the host pipeline.
func (s *Service) Gate() *Gate {
	return s.gate
}

// FetchAndStore runs one fetch cycle. On success the reading replaces the
// cached one and is handed to every publisher. On failure the cache is left
// untouched so the last good reading keeps aging out naturally.
func (s *Service) FetchAndStore(ctx context.Context) (Reading, error) {
	if s.provider == nil {
		return Reading{}, InternalFault("no_provider", fmt.Errorf("no air quality provider configured"))
	}

	start := time.Now()
	reading, err := s.provider.Fetch(ctx)
	metrics.FetchLatency.Observe(time.Since(start).Seconds())

	if err != nil && ctx.Err() == context.Canceled {
		// shutdown, not an API failure
		return Reading{}, err
	}
	if err != nil {
		metrics.FetchAttempts.WithLabelValues("failure").Inc()
		metrics.FetchFailures.WithLabelValues(string(KindOf(err)), ReasonOf(err)).Inc()
		s.logFailure(err)
		return Reading{}, err
	}

	metrics.FetchAttempts.WithLabelValues("success").Inc()
	metrics.LastValue.Set(float64(reading.Value))

	if !reading.KnownPollutant() {
		metrics.UnknownPollutants.Inc()
		if s.logErrors {
			s.logger.Warn("unknown pollutant code", "code", reading.PollutantCode)
		}
	}

	s.store.SaveReading(reading)

	if s.logSuccess {
		s.logger.Info("collected air quality data",
			"aqi", reading.Value,
			"pollutant", reading.PrimaryFactor,
			"level", reading.Category,
		)
		s.logger.Debug("data from station",
			"city", reading.Station.City,
			"state", reading.Station.State,
			"country", reading.Station.Country,
		)
	}

	s.publish(ctx, reading)
	return reading, nil
}

func (s *Service) publish(ctx context.Context, reading Reading) {
	if len(s.publishers) == 0 {
		return
	}

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	for _, p := range s.publishers {
		if err := p.Publish(pubCtx, reading); err != nil {
			metrics.PublishErrors.WithLabelValues(p.Name()).Inc()
			s.logger.Warn("failed to publish reading", "publisher", p.Name(), "err", err)
		}
	}
}

func (s *Service) logFailure(err error) {
	kind := KindOf(err)
	if kind == KindInternal {
		s.logger.Error("unexpected error collecting air quality data", "reason", ReasonOf(err), "err", err)
		return
	}
	if !s.logErrors {
		return
	}
	s.logger.Error("air quality fetch failed", "kind", kind, "reason", ReasonOf(err), "err", err)
}

// Current delegates to the gate.
func (s *Service) Current(now time.Time) Observation {
	return s.gate.Current(now)
}

// Latest delegates to the underlying store.
func (s *Service) Latest() (Reading, error) {
	return s.store.Latest()
}
