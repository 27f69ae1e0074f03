package scheduler

import (
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/i474232898/aqi-collector/internal/airquality"
	"github.com/i474232898/aqi-collector/internal/metrics"
)

// DefaultReportInterval is how often the reporter refreshes freshness gauges.
const DefaultReportInterval = time.Minute

// Reporter periodically checks the age of the cached reading, keeps the
// freshness gauges current and logs when the reading goes stale.
type Reporter struct {
	scheduler *gocron.Scheduler
	store     airquality.Store
	maxAge    time.Duration
	every     time.Duration
	logger    *slog.Logger
	now       func() time.Time

	// wasFresh is only touched by the singleton job.
	wasFresh bool
}

// NewReporter creates a new Reporter.
func NewReporter(store airquality.Store, maxAge, every time.Duration, logger *slog.Logger) *Reporter {
	if every <= 0 {
		every = DefaultReportInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Reporter{
		scheduler: gocron.NewScheduler(time.UTC),
		store:     store,
		maxAge:    maxAge,
		every:     every,
		logger:    logger,
		now:       time.Now,
	}
}

// Start schedules the periodic job and starts the underlying scheduler.
func (r *Reporter) Start() error {
	_, err := r.scheduler.Every(r.every).SingletonMode().Do(r.report)
	if err != nil {
		return err
	}

	r.scheduler.StartAsync()
	return nil
}

// Stop stops the scheduler and cancels any future jobs.
func (r *Reporter) Stop() {
	if r.scheduler != nil {
		r.scheduler.Stop()
	}
}

func (r *Reporter) report() {
	reading, err := r.store.Latest()
	if err != nil {
		metrics.ReadingAgeSeconds.Set(-1)
		metrics.ReadingFresh.Set(0)
		r.logger.Debug("reporter: no reading cached yet")
		return
	}

	age := r.now().Sub(reading.CapturedAt)
	fresh := age <= r.maxAge

	metrics.ReadingAgeSeconds.Set(age.Seconds())
	if fresh {
		metrics.ReadingFresh.Set(1)
	} else {
		metrics.ReadingFresh.Set(0)
	}

	switch {
	case r.wasFresh && !fresh:
		r.logger.Warn("reporter: cached reading is stale, pipeline will receive no data",
			"age", age.Round(time.Second), "max_age", r.maxAge)
	case !r.wasFresh && fresh:
		r.logger.Debug("reporter: cached reading is fresh", "age", age.Round(time.Second))
	}
	r.wasFresh = fresh
}
