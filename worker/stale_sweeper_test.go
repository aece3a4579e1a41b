package worker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mapslead/metrics"
	"mapslead/models"
)

func TestStaleSweeper_FailsOrphanedRuns(t *testing.T) {
	h := newHarness(t, NewLockedRand(1))
	orphanJob := createJob(t, h.db, "user-1", 10)
	orphanCampaign := createCampaign(t, h.db, "user-1", []string{})

	done := createJob(t, h.db, "user-1", 10)
	require.NoError(t, h.db.Model(&models.ScrapingJob{}).Where("id = ?", done.ID).
		Update("status", models.JobStatusCompleted).Error)

	sweeper := NewStaleSweeper(h.db, h.sup, 0, testLogger())
	swept, err := sweeper.Sweep(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 2, swept)

	job := loadJob(t, h.db, orphanJob.ID)
	assert.Equal(t, models.JobStatusFailed, job.Status)
	require.NotNil(t, job.Error)
	assert.Equal(t, InterruptedReason, *job.Error)
	assert.NotNil(t, job.CompletedAt)

	campaign := loadCampaign(t, h.db, orphanCampaign.ID)
	assert.Equal(t, models.CampaignStatusFailed, campaign.Status)

	assert.Equal(t, models.JobStatusCompleted, loadJob(t, h.db, done.ID).Status)
}

func TestStaleSweeper_RespectsGraceAndLiveTasks(t *testing.T) {
	h := newHarness(t, NewLockedRand(1))
	fresh := createJob(t, h.db, "user-1", 10)
	live := createJob(t, h.db, "user-1", 10)

	release := make(chan struct{})
	require.True(t, h.sup.Go(metrics.KindScrape, live.ID, func(ctx context.Context) error {
		<-release
		return nil
	}, nil))
	defer func() {
		close(release)
		h.sup.Wait()
	}()

	sweeper := NewStaleSweeper(h.db, h.sup, 0, testLogger())

	swept, err := sweeper.Sweep(context.Background(), time.Hour)
	require.NoError(t, err)
	assert.Zero(t, swept, "records younger than the grace period are left alone")

	swept, err = sweeper.Sweep(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 1, swept)

	assert.Equal(t, models.JobStatusFailed, loadJob(t, h.db, fresh.ID).Status)
	assert.Equal(t, models.JobStatusRunning, loadJob(t, h.db, live.ID).Status)
}

func TestStaleSweeper_StartSweepsOnce(t *testing.T) {
	h := newHarness(t, NewLockedRand(1))
	orphan := createJob(t, h.db, "user-1", 10)

	// without an interval Start returns after the startup sweep
	NewStaleSweeper(h.db, h.sup, 0, testLogger()).Start(context.Background())

	assert.Equal(t, models.JobStatusFailed, loadJob(t, h.db, orphan.ID).Status)
}
