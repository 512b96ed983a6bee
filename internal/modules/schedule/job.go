// README: Cron wrapper around the sweep with explicit start/stop and a single-run entry point.
package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// SweepJob runs ProcessScheduled on a fixed interval. The sweep logic itself
// lives in the service so tests can invoke RunOnce without a clock.
type SweepJob struct {
	svc      *Service
	cron     *cron.Cron
	interval time.Duration
	logger   *slog.Logger
}

func NewSweepJob(svc *Service, interval time.Duration, logger *slog.Logger) *SweepJob {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &SweepJob{
		svc:      svc,
		cron:     cron.New(),
		interval: interval,
		logger:   logger.With("component", "sweep_job"),
	}
}

func (j *SweepJob) Start() error {
	_, err := j.cron.AddFunc(fmt.Sprintf("@every %s", j.interval), func() {
		ctx := context.Background()
		res, err := j.svc.ProcessScheduled(ctx)
		if err != nil {
			j.logger.ErrorContext(ctx, "scheduled order sweep failed", "error", err)
			return
		}
		if res.Selected > 0 {
			j.logger.InfoContext(ctx, "scheduled order sweep finished",
				"selected", res.Selected, "promoted", res.Promoted, "skipped", res.Skipped)
		}
	})
	if err != nil {
		return err
	}
	j.cron.Start()
	j.logger.Info("scheduled order sweep started", "interval", j.interval.String())
	return nil
}

func (j *SweepJob) Stop() {
	j.cron.Stop()
	j.logger.Info("scheduled order sweep stopped")
}

// RunOnce executes a single sweep pass outside the cron schedule.
func (j *SweepJob) RunOnce(ctx context.Context) (SweepResult, error) {
	return j.svc.ProcessScheduled(ctx)
}
