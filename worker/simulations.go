package worker

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"mapslead/metrics"
	"mapslead/models"
)

// Bounds of the lead target drawn for a new scraping job.
const (
	MinTotalLeads = 50
	MaxTotalLeads = 100
)

// Simulations is the entry point the request layer uses to launch and cancel
// background runs. Start calls return immediately.
type Simulations struct {
	DB         *gorm.DB
	Supervisor *Supervisor
	Scraper    *ScrapeSimulator
	Campaigns  *CampaignSimulator
	Random     Random
	Logger     *logrus.Entry
}

func NewSimulations(db *gorm.DB, sup *Supervisor, scraper *ScrapeSimulator, campaigns *CampaignSimulator, rnd Random, logger *logrus.Entry) *Simulations {
	return &Simulations{
		DB:         db,
		Supervisor: sup,
		Scraper:    scraper,
		Campaigns:  campaigns,
		Random:     rnd,
		Logger:     logger,
	}
}

// NewTotalLeads draws a job target uniformly from [MinTotalLeads, MaxTotalLeads].
func (s *Simulations) NewTotalLeads() int {
	return MinTotalLeads + s.Random.Intn(MaxTotalLeads-MinTotalLeads+1)
}

func (s *Simulations) StartJobSimulation(jobID, userID string) {
	started := s.Supervisor.Go(metrics.KindScrape, jobID, func(ctx context.Context) error {
		return s.Scraper.Run(ctx, jobID, userID)
	}, func(reason string) {
		s.markJobFailed(jobID, reason)
	})
	if !started {
		s.Logger.WithField("job_id", jobID).Warn("Scraping simulation not started: already running or shutting down")
	}
}

func (s *Simulations) StartCampaignSimulation(campaignID string) {
	started := s.Supervisor.Go(metrics.KindCampaign, campaignID, func(ctx context.Context) error {
		return s.Campaigns.Run(ctx, campaignID)
	}, func(reason string) {
		s.markCampaignFailed(campaignID, reason)
	})
	if !started {
		s.Logger.WithField("campaign_id", campaignID).Warn("Campaign simulation not started: already running or shutting down")
	}
}

// CancelJob stops the job's background run, if any.
func (s *Simulations) CancelJob(jobID string) bool {
	return s.Supervisor.Cancel(metrics.KindScrape, jobID)
}

// CancelCampaign stops the campaign's background run, if any.
func (s *Simulations) CancelCampaign(campaignID string) bool {
	return s.Supervisor.Cancel(metrics.KindCampaign, campaignID)
}

func (s *Simulations) markJobFailed(jobID, reason string) {
	if err := markFailed(s.DB, &models.ScrapingJob{}, jobID, models.JobStatusRunning, models.JobStatusFailed, reason); err != nil {
		s.Logger.WithError(err).WithField("job_id", jobID).Error("Failed to mark scraping job failed")
	}
}

func (s *Simulations) markCampaignFailed(campaignID, reason string) {
	if err := markFailed(s.DB, &models.EmailCampaign{}, campaignID, models.CampaignStatusRunning, models.CampaignStatusFailed, reason); err != nil {
		s.Logger.WithError(err).WithField("campaign_id", campaignID).Error("Failed to mark campaign failed")
	}
}

// markFailed moves a record that is still running to the failed state.
func markFailed(db *gorm.DB, model interface{}, id, running, failed, reason string) error {
	return db.Model(model).
		Where("id = ? AND status = ?", id, running).
		Updates(map[string]interface{}{
			"status":       failed,
			"error":        reason,
			"completed_at": time.Now().UTC(),
		}).Error
}
