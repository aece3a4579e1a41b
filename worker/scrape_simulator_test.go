package worker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"mapslead/models"
	"mapslead/utils"
)

func createJob(t *testing.T, db *gorm.DB, userID string, total int) models.ScrapingJob {
	t.Helper()
	job := models.ScrapingJob{
		UserID:     userID,
		Keyword:    "dentist",
		Location:   "New York",
		Status:     models.JobStatusRunning,
		TotalLeads: total,
	}
	require.NoError(t, db.Create(&job).Error)
	return job
}

func loadJob(t *testing.T, db *gorm.DB, id string) models.ScrapingJob {
	t.Helper()
	var job models.ScrapingJob
	require.NoError(t, db.First(&job, "id = ?", id).Error)
	return job
}

func TestScrapeSimulator_CompletesJobWithNumberedLeads(t *testing.T) {
	h := newHarness(t, NewLockedRand(7))
	job := createJob(t, h.db, "user-1", 3)

	require.NoError(t, h.sims.Scraper.Run(context.Background(), job.ID, "user-1"))

	got := loadJob(t, h.db, job.ID)
	assert.Equal(t, models.JobStatusCompleted, got.Status)
	assert.Equal(t, 100, got.Progress)
	assert.Equal(t, 3, got.ScrapedLeads)
	require.Len(t, got.Results, 3)
	require.NotNil(t, got.CompletedAt)
	assert.False(t, got.CompletedAt.Before(got.CreatedAt))

	var count int64
	require.NoError(t, h.db.Model(&models.Lead{}).Where("user_id = ?", "user-1").Count(&count).Error)
	assert.EqualValues(t, 3, count)

	for i, leadID := range got.Results {
		var lead models.Lead
		require.NoError(t, h.db.First(&lead, "id = ?", leadID).Error)
		assert.True(t, strings.HasSuffix(lead.BusinessName, fmt.Sprintf(" #%d", i+1)), lead.BusinessName)
		assert.Equal(t, models.LeadStatusNew, lead.Status)
		assert.Equal(t, models.SourceGoogleMaps, lead.Source)
		assert.False(t, lead.LastActivity.Before(lead.CreatedAt))
		require.NotNil(t, lead.Email)
	}
}

func TestScrapeSimulator_ProgressIsMonotonic(t *testing.T) {
	h := newHarness(t, NewLockedRand(1))
	h.sims.Scraper.Interval = 2 * time.Millisecond
	job := createJob(t, h.db, "user-1", 20)

	done := make(chan error, 1)
	go func() { done <- h.sims.Scraper.Run(context.Background(), job.ID, "user-1") }()

	last := -1
	for finished := false; !finished; {
		select {
		case err := <-done:
			require.NoError(t, err)
			finished = true
		default:
		}

		snapshot := loadJob(t, h.db, job.ID)
		assert.GreaterOrEqual(t, snapshot.Progress, last)
		assert.LessOrEqual(t, snapshot.Progress, 100)
		assert.Len(t, snapshot.Results, snapshot.ScrapedLeads)
		last = snapshot.Progress
	}

	final := loadJob(t, h.db, job.ID)
	assert.Equal(t, 100, final.Progress)
	assert.Equal(t, final.TotalLeads, final.ScrapedLeads)
}

func TestScrapeSimulator_AppliesFiltersAndSources(t *testing.T) {
	h := newHarness(t, NewLockedRand(3))
	job := models.ScrapingJob{
		UserID:      "user-1",
		Keyword:     "clinic",
		Location:    "Boston",
		Status:      models.JobStatusRunning,
		TotalLeads:  12,
		Filters:     models.JobFilters{MinReviews: utils.Pointer(500)},
		DataSources: []string{models.SourceYelp, "Unknown Directory"},
	}
	require.NoError(t, h.db.Create(&job).Error)

	require.NoError(t, h.sims.Scraper.Run(context.Background(), job.ID, "user-1"))

	var leads []models.Lead
	require.NoError(t, h.db.Where("user_id = ?", "user-1").Find(&leads).Error)
	require.Len(t, leads, 12)
	for _, lead := range leads {
		require.NotNil(t, lead.ReviewCount)
		assert.GreaterOrEqual(t, *lead.ReviewCount, 500)
		assert.Equal(t, models.SourceYelp, lead.Source)
	}
}

func TestScrapeSimulator_ZeroTargetCompletesImmediately(t *testing.T) {
	h := newHarness(t, NewLockedRand(1))
	job := createJob(t, h.db, "user-1", 0)

	require.NoError(t, h.sims.Scraper.Run(context.Background(), job.ID, "user-1"))

	got := loadJob(t, h.db, job.ID)
	assert.Equal(t, models.JobStatusCompleted, got.Status)
	assert.Equal(t, 100, got.Progress)
	assert.Empty(t, got.Results)
}

func TestScrapeSimulator_StopsWhenRecordIsGone(t *testing.T) {
	h := newHarness(t, NewLockedRand(1))

	t.Run("deleted before start", func(t *testing.T) {
		job := createJob(t, h.db, "user-1", 5)
		require.NoError(t, h.db.Delete(&models.ScrapingJob{}, "id = ?", job.ID).Error)

		err := h.sims.Scraper.Run(context.Background(), job.ID, "user-1")
		assert.True(t, errors.Is(err, ErrRecordGone))
	})

	t.Run("owned by another user", func(t *testing.T) {
		job := createJob(t, h.db, "user-2", 5)

		err := h.sims.Scraper.Run(context.Background(), job.ID, "user-1")
		assert.True(t, errors.Is(err, ErrRecordGone))
	})

	t.Run("no longer running", func(t *testing.T) {
		job := createJob(t, h.db, "user-3", 5)
		require.NoError(t, h.db.Model(&models.ScrapingJob{}).Where("id = ?", job.ID).
			Update("status", models.JobStatusFailed).Error)

		err := h.sims.Scraper.Run(context.Background(), job.ID, "user-3")
		assert.True(t, errors.Is(err, ErrRecordGone))

		var count int64
		require.NoError(t, h.db.Model(&models.Lead{}).Where("user_id = ?", "user-3").Count(&count).Error)
		assert.Zero(t, count, "the lead insert is rolled back with the progress update")
	})
}

func TestEligibleTemplates_FallsBackToFullPool(t *testing.T) {
	pool := eligibleTemplates(DefaultLeadTemplates, models.JobFilters{MinReviews: utils.Pointer(100000)})
	assert.Len(t, pool, len(DefaultLeadTemplates))

	withoutWebsite := eligibleTemplates(DefaultLeadTemplates, models.JobFilters{HasWebsite: utils.Pointer(false)})
	assert.Len(t, withoutWebsite, len(DefaultLeadTemplates))

	popular := eligibleTemplates(DefaultLeadTemplates, models.JobFilters{MinReviews: utils.Pointer(500)})
	assert.Len(t, popular, 3)
}
