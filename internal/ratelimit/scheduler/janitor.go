package scheduler

import (
	"context"
	"time"

	"investor-portal/internal/ratelimit/usecase"

	kitlog "github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/robfig/cron/v3"
)

// Janitor periodically sweeps stale rate-limit records.
type Janitor struct {
	limiter  *usecase.Limiter
	cron     *cron.Cron
	schedule string
	timeout  time.Duration
	logger   kitlog.Logger
}

func NewJanitor(limiter *usecase.Limiter, schedule string, logger kitlog.Logger) *Janitor {
	if schedule == "" {
		schedule = "@every 15m"
	}
	return &Janitor{
		limiter:  limiter,
		cron:     cron.New(),
		schedule: schedule,
		timeout:  time.Minute,
		logger:   kitlog.With(logger, "component", "ratelimit_janitor"),
	}
}

// Start registers the sweep and begins the schedule. It fails only on an
// unparsable schedule.
func (j *Janitor) Start() error {
	if _, err := j.cron.AddFunc(j.schedule, j.Sweep); err != nil {
		return err
	}
	j.cron.Start()
	level.Info(j.logger).Log("msg", "janitor started", "schedule", j.schedule)
	return nil
}

// Stop waits for a running sweep to finish.
func (j *Janitor) Stop() {
	<-j.cron.Stop().Done()
	level.Info(j.logger).Log("msg", "janitor stopped")
}

// Sweep runs one cleanup pass. Errors are logged and swallowed.
func (j *Janitor) Sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	n, err := j.limiter.Cleanup(ctx)
	if err != nil {
		level.Warn(j.logger).Log("msg", "rate limit cleanup failed", "err", err)
		return
	}
	if n > 0 {
		level.Info(j.logger).Log("msg", "removed stale rate limit records", "count", n)
	}
}
