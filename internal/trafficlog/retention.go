package trafficlog

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/hession/llmseo/internal/logger"
)

// DefaultSchedule runs retention once a day.
const DefaultSchedule = "@daily"

// Retention periodically prunes traffic lines older than the configured age.
type Retention struct {
	log      *Logger
	maxAge   time.Duration
	schedule string
	cron     *cron.Cron
	now      func() time.Time
}

// NewRetention creates a retention job. days <= 0 disables pruning.
func NewRetention(l *Logger, days int, schedule string) *Retention {
	if schedule == "" {
		schedule = DefaultSchedule
	}
	return &Retention{
		log:      l,
		maxAge:   time.Duration(days) * 24 * time.Hour,
		schedule: schedule,
		now:      time.Now,
	}
}

// Start registers the job and starts the scheduler.
func (r *Retention) Start() error {
	if r.maxAge <= 0 {
		return nil
	}
	c := cron.New()
	if _, err := c.AddFunc(r.schedule, r.run); err != nil {
		return fmt.Errorf("invalid retention schedule %q: %w", r.schedule, err)
	}
	c.Start()
	r.cron = c
	return nil
}

// Stop waits for a running prune to finish.
func (r *Retention) Stop() {
	if r.cron != nil {
		<-r.cron.Stop().Done()
	}
}

// RunOnce prunes immediately.
func (r *Retention) RunOnce() (int, error) {
	if r.maxAge <= 0 {
		return 0, nil
	}
	return r.log.Prune(r.now().Add(-r.maxAge))
}

func (r *Retention) run() {
	removed, err := r.RunOnce()
	if err != nil {
		logger.Error("Traffic log retention failed: %v", err)
		return
	}
	if removed > 0 {
		logger.Info("Traffic log retention removed %d lines", removed)
	}
}
