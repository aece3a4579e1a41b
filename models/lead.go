package models

import (
	"time"

	"gorm.io/gorm"
)

// Lead status values
const (
	LeadStatusNew      = "New"
	LeadStatusEmailed  = "Emailed"
	LeadStatusFollowUp = "Follow-up"
	LeadStatusReplied  = "Replied"
)

// Lead sources a scraping job can report
const (
	SourceGoogleMaps    = "Google Maps"
	SourceYelp          = "Yelp"
	SourceFacebookPages = "Facebook Pages"
	SourceTrustpilot    = "Trustpilot"
)

var (
	LeadStatuses = []string{LeadStatusNew, LeadStatusEmailed, LeadStatusFollowUp, LeadStatusReplied}
	LeadSources  = []string{SourceGoogleMaps, SourceYelp, SourceFacebookPages, SourceTrustpilot}
)

// Lead represents a prospective business contact owned by a single user
type Lead struct {
	ID     string `gorm:"primaryKey;size:36" json:"id"`
	UserID string `gorm:"not null;index;size:36" json:"user_id"`

	BusinessName string   `gorm:"not null" json:"business_name"`
	Address      *string  `json:"address"`
	Website      *string  `json:"website"`
	Email        *string  `json:"email"`
	Phone        *string  `json:"phone"`
	Rating       *float64 `json:"rating"`
	ReviewCount  *int     `json:"review_count"`
	GMBLink      *string  `json:"gmb_link"`

	Source string   `gorm:"not null;default:'Google Maps';index" json:"source"`
	Status string   `gorm:"not null;default:'New';index" json:"status"` // New, Emailed, Follow-up, Replied
	Notes  *string  `json:"notes"`
	Tags   []string `gorm:"serializer:json" json:"tags"`

	CreatedAt    time.Time `gorm:"index" json:"created_at"`
	LastActivity time.Time `json:"last_activity"`
}

func (l *Lead) BeforeCreate(tx *gorm.DB) error {
	l.ID = ensureID(l.ID)
	if l.Source == "" {
		l.Source = SourceGoogleMaps
	}
	if l.Status == "" {
		l.Status = LeadStatusNew
	}
	if l.Tags == nil {
		l.Tags = []string{}
	}
	now := time.Now().UTC()
	if l.CreatedAt.IsZero() {
		l.CreatedAt = now
	}
	if l.LastActivity.Before(l.CreatedAt) {
		l.LastActivity = l.CreatedAt
	}
	return nil
}

// ValidLeadStatus reports whether status is one of the lead statuses
func ValidLeadStatus(status string) bool {
	return contains(LeadStatuses, status)
}

func ValidLeadSource(source string) bool {
	return contains(LeadSources, source)
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}
