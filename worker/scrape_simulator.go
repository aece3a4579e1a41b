package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"mapslead/metrics"
	"mapslead/models"
	"mapslead/utils"
)

// ScrapeSimulator drives a ScrapingJob from running to completed, producing
// one lead per Interval.
type ScrapeSimulator struct {
	DB        *gorm.DB
	Random    Random
	Interval  time.Duration
	Templates []LeadTemplate
	Metrics   *metrics.Metrics
	Logger    *logrus.Entry
	Now       func() time.Time
}

func NewScrapeSimulator(db *gorm.DB, rnd Random, interval time.Duration, m *metrics.Metrics, logger *logrus.Entry) *ScrapeSimulator {
	return &ScrapeSimulator{
		DB:        db,
		Random:    rnd,
		Interval:  interval,
		Templates: DefaultLeadTemplates,
		Metrics:   m,
		Logger:    logger,
		Now:       func() time.Time { return time.Now().UTC() },
	}
}

// Run executes the job to completion. The job's own record is written only by
// this run; each step inserts the lead and advances progress, scraped_leads
// and results in a single transaction so readers never see a dangling id.
func (s *ScrapeSimulator) Run(ctx context.Context, jobID, userID string) error {
	var job models.ScrapingJob
	if err := s.DB.WithContext(ctx).Where("id = ? AND user_id = ?", jobID, userID).First(&job).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrRecordGone
		}
		return fmt.Errorf("load scraping job %s: %w", jobID, err)
	}

	total := job.TotalLeads
	pool := eligibleTemplates(s.Templates, job.Filters)
	sources := requestedSources(job.DataSources)
	results := make([]string, 0, total)

	log := s.Logger.WithFields(logrus.Fields{"job_id": jobID, "user_id": userID, "total": total})
	log.Info("Scraping simulation started")

	for i := 1; i <= total; i++ {
		if err := sleep(ctx, s.Interval); err != nil {
			return err
		}

		lead := s.synthesize(pool, sources, userID, i)
		results = append(results, lead.ID)

		err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(&lead).Error; err != nil {
				return fmt.Errorf("insert lead %d/%d: %w", i, total, err)
			}

			res := tx.Model(&models.ScrapingJob{}).
				Where("id = ? AND status = ?", jobID, models.JobStatusRunning).
				Select("progress", "scraped_leads", "results").
				Updates(&models.ScrapingJob{
					Progress:     i * 100 / total,
					ScrapedLeads: i,
					Results:      results,
				})
			if res.Error != nil {
				return fmt.Errorf("update job progress: %w", res.Error)
			}
			if res.RowsAffected == 0 {
				return ErrRecordGone
			}
			return nil
		})
		if err != nil {
			return err
		}
		s.Metrics.LeadsSynthesized.Inc()
	}

	completedAt := s.Now()
	res := s.DB.WithContext(ctx).Model(&models.ScrapingJob{}).
		Where("id = ? AND status = ?", jobID, models.JobStatusRunning).
		Select("status", "progress", "completed_at").
		Updates(&models.ScrapingJob{
			Status:      models.JobStatusCompleted,
			Progress:    100,
			CompletedAt: &completedAt,
		})
	if res.Error != nil {
		return fmt.Errorf("complete scraping job: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrRecordGone
	}

	log.Info("Scraping simulation completed")
	return nil
}

// synthesize copies a random template and suffixes its name with the 1-based sequence number.
func (s *ScrapeSimulator) synthesize(pool []LeadTemplate, sources []string, userID string, seq int) models.Lead {
	tpl := pool[s.Random.Intn(len(pool))]

	source := tpl.Source
	if len(sources) > 0 {
		source = sources[s.Random.Intn(len(sources))]
	}

	now := s.Now()
	return models.Lead{
		ID:           uuid.NewString(),
		UserID:       userID,
		BusinessName: fmt.Sprintf("%s #%d", tpl.BusinessName, seq),
		Address:      optional(tpl.Address),
		Website:      optional(tpl.Website),
		Email:        optional(tpl.Email),
		Phone:        optional(tpl.Phone),
		Rating:       utils.Pointer(tpl.Rating),
		ReviewCount:  utils.Pointer(tpl.ReviewCount),
		GMBLink:      optional(tpl.GMBLink),
		Source:       source,
		Status:       models.LeadStatusNew,
		Tags:         []string{},
		CreatedAt:    now,
		LastActivity: now,
	}
}

// requestedSources keeps the known sources a job asked for, in order, without duplicates.
func requestedSources(requested []string) []string {
	seen := make(map[string]bool, len(requested))
	var out []string
	for _, src := range requested {
		if models.ValidLeadSource(src) && !seen[src] {
			seen[src] = true
			out = append(out, src)
		}
	}
	return out
}
