// Package analytics computes per-user reporting figures and caches them
// for a short window.
package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"

	"mapslead/metrics"
	"mapslead/models"
	"mapslead/utils"
)

// DefaultTTL is how long a computed family is served from the cache.
const DefaultTTL = 60 * time.Second

// Cached report families
const (
	FamilySummary    = "summary"
	FamilySources    = "sources"
	FamilyEngagement = "engagement"
)

type Summary struct {
	TotalLeads     int64   `json:"total_leads"`
	TotalCampaigns int64   `json:"total_campaigns"`
	OpenRate       float64 `json:"open_rate"`
	ReplyRate      float64 `json:"reply_rate"`
}

type SourceCount struct {
	Name  string `json:"name"`
	Value int64  `json:"value"`
}

type Sources struct {
	LeadsBySource []SourceCount `json:"leads_by_source"`
}

type Engagement struct {
	EmailsSent int64   `json:"emails_sent"`
	OpenRate   float64 `json:"open_rate"`
	ReplyRate  float64 `json:"reply_rate"`
}

type DateCount struct {
	Date  string `json:"date"`
	Count int64  `json:"count"`
}

// Dashboard is the uncached overview shown on the landing page.
type Dashboard struct {
	TotalLeads      int64                  `json:"total_leads"`
	ActiveCampaigns int64                  `json:"active_campaigns"`
	EmailsSent      int64                  `json:"emails_sent"`
	OpenRate        float64                `json:"open_rate"`
	ReplyRate       float64                `json:"reply_rate"`
	LeadsByDate     []DateCount            `json:"leads_by_date"`
	LeadsBySource   []SourceCount          `json:"leads_by_source"`
	RecentCampaigns []models.EmailCampaign `json:"recent_campaigns"`
}

// Aggregator answers analytics queries for one user at a time. Results of the
// cached families may be up to TTL stale.
type Aggregator struct {
	DB      *gorm.DB
	Cache   Cache
	TTL     time.Duration
	Metrics *metrics.Metrics
	Logger  *logrus.Entry
	Now     func() time.Time

	group singleflight.Group
}

func NewAggregator(db *gorm.DB, cache Cache, ttl time.Duration, m *metrics.Metrics, logger *logrus.Entry) *Aggregator {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Aggregator{
		DB:      db,
		Cache:   cache,
		TTL:     ttl,
		Metrics: m,
		Logger:  logger,
		Now:     func() time.Time { return time.Now().UTC() },
	}
}

// CacheKey is the cache key of one family for one user.
func CacheKey(family, userID string) string {
	return fmt.Sprintf("analytics:%s:%s", family, userID)
}

// Lookup returns the serialized report for family. A fresh cached entry is
// returned byte for byte; otherwise the report is recomputed and stored.
func (a *Aggregator) Lookup(ctx context.Context, family, userID string) ([]byte, error) {
	compute, ok := a.computer(family)
	if !ok {
		return nil, fmt.Errorf("unknown analytics family %q", family)
	}
	key := CacheKey(family, userID)

	if cached, hit := a.cached(ctx, family, key); hit {
		return cached, nil
	}

	v, err, _ := a.group.Do(key, func() (interface{}, error) {
		report, err := compute(ctx, userID)
		if err != nil {
			return nil, err
		}
		payload, err := json.Marshal(report)
		if err != nil {
			return nil, fmt.Errorf("encode %s report: %w", family, err)
		}
		if err := a.Cache.Set(ctx, key, payload, a.TTL); err != nil {
			a.Logger.WithError(err).WithField("key", key).Warn("Failed to store analytics report")
		}
		return payload, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

func (a *Aggregator) cached(ctx context.Context, family, key string) ([]byte, bool) {
	payload, hit, err := a.Cache.Get(ctx, key)
	switch {
	case err != nil:
		a.Logger.WithError(err).WithField("key", key).Warn("Analytics cache read failed, recomputing")
		a.Metrics.AnalyticsCacheLookups.WithLabelValues(family, "error").Inc()
		return nil, false
	case hit:
		a.Metrics.AnalyticsCacheLookups.WithLabelValues(family, "hit").Inc()
		return payload, true
	default:
		a.Metrics.AnalyticsCacheLookups.WithLabelValues(family, "miss").Inc()
		return nil, false
	}
}

func (a *Aggregator) computer(family string) (func(context.Context, string) (interface{}, error), bool) {
	switch family {
	case FamilySummary:
		return func(ctx context.Context, userID string) (interface{}, error) { return a.computeSummary(ctx, userID) }, true
	case FamilySources:
		return func(ctx context.Context, userID string) (interface{}, error) { return a.computeSources(ctx, userID) }, true
	case FamilyEngagement:
		return func(ctx context.Context, userID string) (interface{}, error) { return a.computeEngagement(ctx, userID) }, true
	}
	return nil, false
}

func (a *Aggregator) Summary(ctx context.Context, userID string) (Summary, error) {
	var s Summary
	err := a.decode(ctx, FamilySummary, userID, &s)
	return s, err
}

func (a *Aggregator) Sources(ctx context.Context, userID string) (Sources, error) {
	var s Sources
	err := a.decode(ctx, FamilySources, userID, &s)
	return s, err
}

func (a *Aggregator) Engagement(ctx context.Context, userID string) (Engagement, error) {
	var e Engagement
	err := a.decode(ctx, FamilyEngagement, userID, &e)
	return e, err
}

func (a *Aggregator) decode(ctx context.Context, family, userID string, out interface{}) error {
	payload, err := a.Lookup(ctx, family, userID)
	if err != nil {
		return err
	}
	return json.Unmarshal(payload, out)
}

type campaignTotals struct {
	Campaigns int64
	Sent      int64
	Opened    int64
	Replied   int64
}

func (a *Aggregator) campaignTotals(ctx context.Context, userID string) (campaignTotals, error) {
	var t campaignTotals
	err := a.DB.WithContext(ctx).Model(&models.EmailCampaign{}).
		Select("COUNT(*) AS campaigns, "+
			"COALESCE(SUM(sent_count), 0) AS sent, "+
			"COALESCE(SUM(opened_count), 0) AS opened, "+
			"COALESCE(SUM(replied_count), 0) AS replied").
		Where("user_id = ?", userID).
		Scan(&t).Error
	if err != nil {
		return t, fmt.Errorf("campaign totals: %w", err)
	}
	return t, nil
}

func (a *Aggregator) leadCount(ctx context.Context, userID string) (int64, error) {
	var n int64
	if err := a.DB.WithContext(ctx).Model(&models.Lead{}).Where("user_id = ?", userID).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count leads: %w", err)
	}
	return n, nil
}

// leadsBySource orders sources by lead count, largest first, then by name.
func (a *Aggregator) leadsBySource(ctx context.Context, userID string) ([]SourceCount, error) {
	out := []SourceCount{}
	err := a.DB.WithContext(ctx).Model(&models.Lead{}).
		Select("source AS name, COUNT(*) AS value").
		Where("user_id = ?", userID).
		Group("source").
		Order("value DESC, name ASC").
		Scan(&out).Error
	if err != nil {
		return nil, fmt.Errorf("leads by source: %w", err)
	}
	return out, nil
}

func (a *Aggregator) computeSummary(ctx context.Context, userID string) (Summary, error) {
	leads, err := a.leadCount(ctx, userID)
	if err != nil {
		return Summary{}, err
	}
	t, err := a.campaignTotals(ctx, userID)
	if err != nil {
		return Summary{}, err
	}
	return Summary{
		TotalLeads:     leads,
		TotalCampaigns: t.Campaigns,
		OpenRate:       utils.Percent(t.Opened, t.Sent),
		ReplyRate:      utils.Percent(t.Replied, t.Sent),
	}, nil
}

func (a *Aggregator) computeSources(ctx context.Context, userID string) (Sources, error) {
	bySource, err := a.leadsBySource(ctx, userID)
	if err != nil {
		return Sources{}, err
	}
	return Sources{LeadsBySource: bySource}, nil
}

func (a *Aggregator) computeEngagement(ctx context.Context, userID string) (Engagement, error) {
	t, err := a.campaignTotals(ctx, userID)
	if err != nil {
		return Engagement{}, err
	}
	return Engagement{
		EmailsSent: t.Sent,
		OpenRate:   utils.Percent(t.Opened, t.Sent),
		ReplyRate:  utils.Percent(t.Replied, t.Sent),
	}, nil
}

// Dashboard is always computed from the store.
func (a *Aggregator) Dashboard(ctx context.Context, userID string) (Dashboard, error) {
	leads, err := a.leadCount(ctx, userID)
	if err != nil {
		return Dashboard{}, err
	}
	t, err := a.campaignTotals(ctx, userID)
	if err != nil {
		return Dashboard{}, err
	}
	byDate, err := a.leadsByDate(ctx, userID, 7)
	if err != nil {
		return Dashboard{}, err
	}
	bySource, err := a.leadsBySource(ctx, userID)
	if err != nil {
		return Dashboard{}, err
	}

	recent := []models.EmailCampaign{}
	if err := a.DB.WithContext(ctx).Where("user_id = ?", userID).
		Order("created_at DESC").Limit(5).Find(&recent).Error; err != nil {
		return Dashboard{}, fmt.Errorf("recent campaigns: %w", err)
	}

	return Dashboard{
		TotalLeads:      leads,
		ActiveCampaigns: t.Campaigns,
		EmailsSent:      t.Sent,
		OpenRate:        utils.Percent(t.Opened, t.Sent),
		ReplyRate:       utils.Percent(t.Replied, t.Sent),
		LeadsByDate:     byDate,
		LeadsBySource:   bySource,
		RecentCampaigns: recent,
	}, nil
}

// leadsByDate counts leads created on each of the last days UTC days,
// oldest first, including days with no leads.
func (a *Aggregator) leadsByDate(ctx context.Context, userID string, days int) ([]DateCount, error) {
	today := a.Now().UTC().Truncate(24 * time.Hour)
	start := today.AddDate(0, 0, -(days - 1))

	var created []time.Time
	if err := a.DB.WithContext(ctx).Model(&models.Lead{}).
		Where("user_id = ? AND created_at >= ?", userID, start).
		Pluck("created_at", &created).Error; err != nil {
		return nil, fmt.Errorf("leads by date: %w", err)
	}

	counts := make(map[string]int64, days)
	for _, ts := range created {
		counts[ts.UTC().Format("2006-01-02")]++
	}

	out := make([]DateCount, 0, days)
	for d := start; !d.After(today); d = d.AddDate(0, 0, 1) {
		date := d.Format("2006-01-02")
		out = append(out, DateCount{Date: date, Count: counts[date]})
	}
	return out, nil
}
