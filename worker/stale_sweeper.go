package worker

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"mapslead/metrics"
	"mapslead/models"
)

// InterruptedReason is recorded on runs whose background task no longer exists.
const InterruptedReason = "interrupted: simulation is no longer running"

// StaleSweeper fails running jobs and campaigns that no live task owns, such
// as runs cut short by a process restart.
type StaleSweeper struct {
	DB         *gorm.DB
	Supervisor *Supervisor
	Logger     *logrus.Entry
	Interval   time.Duration
	Grace      time.Duration
	Now        func() time.Time
}

func NewStaleSweeper(db *gorm.DB, sup *Supervisor, interval time.Duration, logger *logrus.Entry) *StaleSweeper {
	return &StaleSweeper{
		DB:         db,
		Supervisor: sup,
		Logger:     logger,
		Interval:   interval,
		Grace:      time.Minute,
		Now:        func() time.Time { return time.Now().UTC() },
	}
}

func (ss *StaleSweeper) Start(ctx context.Context) {
	ss.Logger.Info("Stale sweeper started")

	// nothing can be running yet, so every running record is orphaned
	ss.sweep(ctx, 0)

	if ss.Interval <= 0 {
		return
	}
	ticker := time.NewTicker(ss.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			ss.Logger.Info("Stale sweeper shutting down...")
			return
		case <-ticker.C:
			ss.sweep(ctx, ss.Grace)
		}
	}
}

func (ss *StaleSweeper) sweep(ctx context.Context, grace time.Duration) {
	jobs, err := ss.Sweep(ctx, grace)
	if err != nil {
		ss.Logger.WithError(err).Error("Error sweeping stale runs")
		return
	}
	if jobs > 0 {
		ss.Logger.WithField("count", jobs).Warn("Marked orphaned runs failed")
	}
}

// Sweep fails orphaned running records created more than grace ago and
// returns how many were updated.
func (ss *StaleSweeper) Sweep(ctx context.Context, grace time.Duration) (int, error) {
	cutoff := ss.Now().Add(-grace)

	jobs, err := ss.sweepModel(ctx, &models.ScrapingJob{}, metrics.KindScrape, models.JobStatusRunning, models.JobStatusFailed, cutoff)
	if err != nil {
		return jobs, err
	}
	campaigns, err := ss.sweepModel(ctx, &models.EmailCampaign{}, metrics.KindCampaign, models.CampaignStatusRunning, models.CampaignStatusFailed, cutoff)
	return jobs + campaigns, err
}

func (ss *StaleSweeper) sweepModel(ctx context.Context, model interface{}, kind, running, failed string, cutoff time.Time) (int, error) {
	var ids []string
	if err := ss.DB.WithContext(ctx).Model(model).
		Where("status = ? AND created_at <= ?", running, cutoff).
		Pluck("id", &ids).Error; err != nil {
		return 0, err
	}

	swept := 0
	for _, id := range ids {
		if ss.Supervisor.Running(kind, id) {
			continue
		}
		if err := markFailed(ss.DB.WithContext(ctx), model, id, running, failed, InterruptedReason); err != nil {
			return swept, err
		}
		swept++
	}
	return swept, nil
}
