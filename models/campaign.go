package models

import (
	"time"

	"gorm.io/gorm"
)

// Campaign status values. Draft and paused are declared for schema
// compatibility; campaigns start running as soon as they are created.
const (
	CampaignStatusDraft     = "draft"
	CampaignStatusRunning   = "running"
	CampaignStatusCompleted = "completed"
	CampaignStatusPaused    = "paused"
	CampaignStatusFailed    = "failed"
)

// EmailCampaign is a batch send against a fixed set of leads
type EmailCampaign struct {
	ID     string `gorm:"primaryKey;size:36" json:"id"`
	UserID string `gorm:"not null;index;size:36" json:"user_id"`

	Name    string   `gorm:"not null" json:"name"`
	Subject string   `gorm:"not null" json:"subject"`
	Body    string   `gorm:"type:text" json:"body"`
	LeadIDs []string `gorm:"serializer:json" json:"lead_ids"`

	Status      string  `gorm:"not null;default:'draft';index" json:"status"` // draft, running, completed, paused, failed
	TotalEmails int     `gorm:"not null;default:0" json:"total_emails"`
	Error       *string `json:"error,omitempty"`

	// Statistics (denormalized, written by the campaign simulator)
	SentCount    int `gorm:"not null;default:0" json:"sent_count"`
	OpenedCount  int `gorm:"not null;default:0" json:"opened_count"`
	ClickedCount int `gorm:"not null;default:0" json:"clicked_count"`
	RepliedCount int `gorm:"not null;default:0" json:"replied_count"`

	FollowUpEnabled   bool `gorm:"not null" json:"follow_up_enabled"`
	FollowUpDelayDays int  `gorm:"not null" json:"follow_up_delay_days"`

	CreatedAt   time.Time  `gorm:"index" json:"created_at"`
	CompletedAt *time.Time `json:"completed_at"`
}

func (EmailCampaign) TableName() string {
	return "campaigns"
}

func (c *EmailCampaign) BeforeCreate(tx *gorm.DB) error {
	c.ID = ensureID(c.ID)
	if c.Status == "" {
		c.Status = CampaignStatusDraft
	}
	if c.LeadIDs == nil {
		c.LeadIDs = []string{}
	}
	return nil
}

// IsTerminal reports whether the campaign can no longer make progress
func (c *EmailCampaign) IsTerminal() bool {
	return c.Status == CampaignStatusCompleted || c.Status == CampaignStatusFailed
}
