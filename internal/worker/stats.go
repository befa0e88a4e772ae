package worker

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/sandrun/internal/models"
	"github.com/ternarybob/sandrun/internal/store"
)

// StatsReporter logs queue depth by lifecycle state on a schedule, so a
// worker deployment shows progress even when the queue sits idle.
type StatsReporter struct {
	cron   *cron.Cron
	store  store.Store
	logger arbor.ILogger
}

// NewStatsReporter schedules the reporter; schedule accepts cron specs
// and descriptors like "@every 1m".
func NewStatsReporter(st store.Store, logger arbor.ILogger, schedule string) (*StatsReporter, error) {
	r := &StatsReporter{
		cron:   cron.New(),
		store:  st,
		logger: logger,
	}
	if _, err := r.cron.AddFunc(schedule, r.report); err != nil {
		return nil, fmt.Errorf("invalid stats schedule %q: %w", schedule, err)
	}
	return r, nil
}

// Start begins scheduled reporting
func (r *StatsReporter) Start() {
	r.cron.Start()
}

// Stop halts the schedule and waits for a running report to finish
func (r *StatsReporter) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
}

func (r *StatsReporter) report() {
	counts, err := r.store.CountByStatus(context.Background())
	if err != nil {
		r.logger.Warn().Err(err).Msg("Failed to collect queue stats")
		return
	}
	r.logger.Info().
		Int("queued", counts[models.JobStatusQueued]).
		Int("running", counts[models.JobStatusRunning]).
		Int("succeeded", counts[models.JobStatusSucceeded]).
		Int("failed", counts[models.JobStatusFailed]).
		Msg("Queue stats")
}
