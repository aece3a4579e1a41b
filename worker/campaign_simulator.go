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
)

// Engagement odds for a simulated send. Clicks are only drawn for opened mail.
const (
	DefaultOpenProbability  = 0.6
	DefaultClickProbability = 0.3
)

// CampaignSimulator walks a campaign's fixed lead list and records one
// EmailLog per lead with randomized engagement.
type CampaignSimulator struct {
	DB               *gorm.DB
	Random           Random
	Interval         time.Duration
	OpenProbability  float64
	ClickProbability float64
	Metrics          *metrics.Metrics
	Logger           *logrus.Entry
	Now              func() time.Time
}

func NewCampaignSimulator(db *gorm.DB, rnd Random, interval time.Duration, m *metrics.Metrics, logger *logrus.Entry) *CampaignSimulator {
	return &CampaignSimulator{
		DB:               db,
		Random:           rnd,
		Interval:         interval,
		OpenProbability:  DefaultOpenProbability,
		ClickProbability: DefaultClickProbability,
		Metrics:          m,
		Logger:           logger,
		Now:              func() time.Time { return time.Now().UTC() },
	}
}

type engagement struct {
	opened  bool
	clicked bool
}

func (e engagement) outcome() string {
	switch {
	case e.clicked:
		return models.EmailStatusClicked
	case e.opened:
		return models.EmailStatusOpened
	default:
		return models.EmailStatusSent
	}
}

func (s *CampaignSimulator) draw() engagement {
	var e engagement
	e.opened = s.Random.Float64() < s.OpenProbability
	if e.opened {
		e.clicked = s.Random.Float64() < s.ClickProbability
	}
	return e
}

// Run sends to every lead of the campaign in list order, then completes it.
// The counters of one send move in a single UPDATE, so
// clicked_count <= opened_count <= sent_count holds for any reader.
func (s *CampaignSimulator) Run(ctx context.Context, campaignID string) error {
	var campaign models.EmailCampaign
	if err := s.DB.WithContext(ctx).Where("id = ?", campaignID).First(&campaign).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrRecordGone
		}
		return fmt.Errorf("load campaign %s: %w", campaignID, err)
	}

	log := s.Logger.WithFields(logrus.Fields{"campaign_id": campaignID, "leads": len(campaign.LeadIDs)})
	log.Info("Campaign simulation started")

	for _, leadID := range campaign.LeadIDs {
		if err := sleep(ctx, s.Interval); err != nil {
			return err
		}
		if err := s.send(ctx, &campaign, leadID); err != nil {
			return err
		}
	}

	completedAt := s.Now()
	res := s.DB.WithContext(ctx).Model(&models.EmailCampaign{}).
		Where("id = ? AND status = ?", campaignID, models.CampaignStatusRunning).
		Select("status", "completed_at").
		Updates(&models.EmailCampaign{
			Status:      models.CampaignStatusCompleted,
			CompletedAt: &completedAt,
		})
	if res.Error != nil {
		return fmt.Errorf("complete campaign: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrRecordGone
	}

	log.Info("Campaign simulation completed")
	return nil
}

func (s *CampaignSimulator) send(ctx context.Context, campaign *models.EmailCampaign, leadID string) error {
	e := s.draw()
	now := s.Now()

	entry := models.EmailLog{
		ID:         uuid.NewString(),
		CampaignID: campaign.ID,
		LeadID:     leadID,
		Status:     e.outcome(),
		SentAt:     now,
	}
	opened, clicked := 0, 0
	if e.opened {
		entry.OpenedAt = &now
		opened = 1
	}
	if e.clicked {
		entry.ClickedAt = &now
		clicked = 1
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&entry).Error; err != nil {
			return fmt.Errorf("insert email log for lead %s: %w", leadID, err)
		}

		// the lead may have been deleted since the campaign was created
		if err := tx.Model(&models.Lead{}).
			Where("id = ? AND user_id = ?", leadID, campaign.UserID).
			Updates(map[string]interface{}{
				"status":        models.LeadStatusEmailed,
				"last_activity": now,
			}).Error; err != nil {
			return fmt.Errorf("mark lead %s emailed: %w", leadID, err)
		}

		res := tx.Model(&models.EmailCampaign{}).
			Where("id = ? AND status = ?", campaign.ID, models.CampaignStatusRunning).
			Updates(map[string]interface{}{
				"sent_count":    gorm.Expr("sent_count + ?", 1),
				"opened_count":  gorm.Expr("opened_count + ?", opened),
				"clicked_count": gorm.Expr("clicked_count + ?", clicked),
			})
		if res.Error != nil {
			return fmt.Errorf("update campaign counters: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrRecordGone
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.Metrics.EmailsSimulated.WithLabelValues(e.outcome()).Inc()
	return nil
}
