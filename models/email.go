package models

import (
	"time"

	"gorm.io/gorm"
)

// Email log status values
const (
	EmailStatusSent    = "sent"
	EmailStatusOpened  = "opened"
	EmailStatusClicked = "clicked"
	EmailStatusReplied = "replied"
	EmailStatusFailed  = "failed"
)

// EmailLog records the outcome of one send attempt. Logs are history:
// deleting a campaign or a lead leaves them in place.
type EmailLog struct {
	ID         string `gorm:"primaryKey;size:36" json:"id"`
	CampaignID string `gorm:"not null;index;size:36" json:"campaign_id"`
	LeadID     string `gorm:"not null;index;size:36" json:"lead_id"`

	Status    string     `gorm:"not null;default:'sent'" json:"status"` // sent, opened, clicked, replied, failed
	SentAt    time.Time  `gorm:"not null" json:"sent_at"`
	OpenedAt  *time.Time `json:"opened_at"`
	ClickedAt *time.Time `json:"clicked_at"`
	RepliedAt *time.Time `json:"replied_at"`
}

func (e *EmailLog) BeforeCreate(tx *gorm.DB) error {
	e.ID = ensureID(e.ID)
	if e.Status == "" {
		e.Status = EmailStatusSent
	}
	if e.SentAt.IsZero() {
		e.SentAt = time.Now().UTC()
	}
	return nil
}
