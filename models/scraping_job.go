package models

import (
	"time"

	"gorm.io/gorm"
)

// Scraping job status values. Pending is declared for schema compatibility;
// jobs are created directly in the running state.
const (
	JobStatusPending   = "pending"
	JobStatusRunning   = "running"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
)

// JobFilters narrows the pool of businesses a scraping job draws from
type JobFilters struct {
	HasWebsite *bool `json:"has_website"`
	HasEmail   *bool `json:"has_email"`
	MinReviews *int  `json:"min_reviews"`
}

// ScrapingJob represents one simulated scrape run
type ScrapingJob struct {
	ID     string `gorm:"primaryKey;size:36" json:"id"`
	UserID string `gorm:"not null;index;size:36" json:"user_id"`

	Keyword     string     `gorm:"not null" json:"keyword"`
	Location    string     `gorm:"not null" json:"location"`
	Filters     JobFilters `gorm:"serializer:json" json:"filters"`
	DataSources []string   `gorm:"serializer:json" json:"data_sources"`

	Status       string   `gorm:"not null;default:'pending';index" json:"status"` // pending, running, completed, failed
	Progress     int      `gorm:"not null;default:0" json:"progress"`
	TotalLeads   int      `gorm:"not null;default:0" json:"total_leads"`
	ScrapedLeads int      `gorm:"not null;default:0" json:"scraped_leads"`
	Results      []string `gorm:"serializer:json" json:"results"` // Lead IDs
	Error        *string  `json:"error,omitempty"`

	CreatedAt   time.Time  `gorm:"index" json:"created_at"`
	CompletedAt *time.Time `json:"completed_at"`
}

func (j *ScrapingJob) BeforeCreate(tx *gorm.DB) error {
	j.ID = ensureID(j.ID)
	if j.Status == "" {
		j.Status = JobStatusPending
	}
	if j.Results == nil {
		j.Results = []string{}
	}
	if j.DataSources == nil {
		j.DataSources = []string{}
	}
	return nil
}

// IsTerminal reports whether the job can no longer make progress
func (j *ScrapingJob) IsTerminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}
