package worker

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"mapslead/models"
)

func createLeads(t *testing.T, db *gorm.DB, userID string, n int) []string {
	t.Helper()
	ids := make([]string, 0, n)
	for i := 0; i < n; i++ {
		lead := models.Lead{UserID: userID, BusinessName: fmt.Sprintf("Business %d", i+1)}
		require.NoError(t, db.Create(&lead).Error)
		ids = append(ids, lead.ID)
	}
	return ids
}

func createCampaign(t *testing.T, db *gorm.DB, userID string, leadIDs []string) models.EmailCampaign {
	t.Helper()
	campaign := models.EmailCampaign{
		UserID:      userID,
		Name:        "Spring outreach",
		Subject:     "Hello",
		Body:        "Hi there",
		LeadIDs:     leadIDs,
		Status:      models.CampaignStatusRunning,
		TotalEmails: len(leadIDs),
	}
	require.NoError(t, db.Create(&campaign).Error)
	return campaign
}

func loadCampaign(t *testing.T, db *gorm.DB, id string) models.EmailCampaign {
	t.Helper()
	var c models.EmailCampaign
	require.NoError(t, db.First(&c, "id = ?", id).Error)
	return c
}

func TestCampaignSimulator_RecordsEngagement(t *testing.T) {
	// lead 1: opened (0.1) and clicked (0.1); lead 2: not opened (0.9)
	rnd := &scriptedRandom{floats: []float64{0.1, 0.1, 0.9}}
	h := newHarness(t, rnd)
	leadIDs := createLeads(t, h.db, "user-1", 2)
	campaign := createCampaign(t, h.db, "user-1", leadIDs)

	require.NoError(t, h.sims.Campaigns.Run(context.Background(), campaign.ID))

	got := loadCampaign(t, h.db, campaign.ID)
	assert.Equal(t, models.CampaignStatusCompleted, got.Status)
	assert.Equal(t, 2, got.SentCount)
	assert.Equal(t, 1, got.OpenedCount)
	assert.Equal(t, 1, got.ClickedCount)
	assert.Zero(t, got.RepliedCount)
	require.NotNil(t, got.CompletedAt)

	var logs []models.EmailLog
	require.NoError(t, h.db.Where("campaign_id = ?", campaign.ID).Order("sent_at").Find(&logs).Error)
	require.Len(t, logs, 2)

	byLead := map[string]models.EmailLog{}
	for _, l := range logs {
		byLead[l.LeadID] = l
	}
	first := byLead[leadIDs[0]]
	assert.Equal(t, models.EmailStatusClicked, first.Status)
	assert.NotNil(t, first.OpenedAt)
	assert.NotNil(t, first.ClickedAt)

	second := byLead[leadIDs[1]]
	assert.Equal(t, models.EmailStatusSent, second.Status)
	assert.Nil(t, second.OpenedAt)
	assert.Nil(t, second.ClickedAt)

	for _, id := range leadIDs {
		var lead models.Lead
		require.NoError(t, h.db.First(&lead, "id = ?", id).Error)
		assert.Equal(t, models.LeadStatusEmailed, lead.Status)
		assert.False(t, lead.LastActivity.Before(lead.CreatedAt))
	}
}

func TestCampaignSimulator_OpenedWithoutClick(t *testing.T) {
	rnd := &scriptedRandom{floats: []float64{0.5, 0.5}}
	h := newHarness(t, rnd)
	leadIDs := createLeads(t, h.db, "user-1", 1)
	campaign := createCampaign(t, h.db, "user-1", leadIDs)

	require.NoError(t, h.sims.Campaigns.Run(context.Background(), campaign.ID))

	var entry models.EmailLog
	require.NoError(t, h.db.First(&entry, "campaign_id = ?", campaign.ID).Error)
	assert.Equal(t, models.EmailStatusOpened, entry.Status)
	assert.NotNil(t, entry.OpenedAt)
	assert.Nil(t, entry.ClickedAt)
}

func TestCampaignSimulator_EmptyLeadList(t *testing.T) {
	h := newHarness(t, NewLockedRand(1))
	campaign := createCampaign(t, h.db, "user-1", []string{})

	require.NoError(t, h.sims.Campaigns.Run(context.Background(), campaign.ID))

	got := loadCampaign(t, h.db, campaign.ID)
	assert.Equal(t, models.CampaignStatusCompleted, got.Status)
	assert.Zero(t, got.SentCount)

	var count int64
	require.NoError(t, h.db.Model(&models.EmailLog{}).Where("campaign_id = ?", campaign.ID).Count(&count).Error)
	assert.Zero(t, count)
}

func TestCampaignSimulator_LeavesOtherUsersLeadsAlone(t *testing.T) {
	h := newHarness(t, NewLockedRand(1))
	own := createLeads(t, h.db, "user-1", 1)
	foreign := createLeads(t, h.db, "user-2", 1)
	campaign := createCampaign(t, h.db, "user-1", append(own, foreign...))

	require.NoError(t, h.sims.Campaigns.Run(context.Background(), campaign.ID))

	var lead models.Lead
	require.NoError(t, h.db.First(&lead, "id = ?", foreign[0]).Error)
	assert.Equal(t, models.LeadStatusNew, lead.Status)

	require.NoError(t, h.db.First(&lead, "id = ?", own[0]).Error)
	assert.Equal(t, models.LeadStatusEmailed, lead.Status)

	assert.Equal(t, 2, loadCampaign(t, h.db, campaign.ID).SentCount)
}

func TestCampaignSimulator_CountersStayOrdered(t *testing.T) {
	h := newHarness(t, NewLockedRand(42))
	leadIDs := createLeads(t, h.db, "user-1", 200)
	campaign := createCampaign(t, h.db, "user-1", leadIDs)

	require.NoError(t, h.sims.Campaigns.Run(context.Background(), campaign.ID))

	got := loadCampaign(t, h.db, campaign.ID)
	assert.Equal(t, 200, got.SentCount)
	assert.LessOrEqual(t, got.ClickedCount, got.OpenedCount)
	assert.LessOrEqual(t, got.OpenedCount, got.SentCount)
	// 0.6 open rate over 200 sends
	assert.InDelta(t, 120, got.OpenedCount, 40)

	var opened, clicked int64
	require.NoError(t, h.db.Model(&models.EmailLog{}).
		Where("campaign_id = ? AND opened_at IS NOT NULL", campaign.ID).Count(&opened).Error)
	require.NoError(t, h.db.Model(&models.EmailLog{}).
		Where("campaign_id = ? AND clicked_at IS NOT NULL", campaign.ID).Count(&clicked).Error)
	assert.EqualValues(t, got.OpenedCount, opened)
	assert.EqualValues(t, got.ClickedCount, clicked)
}

func TestCampaignSimulator_StopsWhenCampaignLeavesRunning(t *testing.T) {
	h := newHarness(t, NewLockedRand(1))
	leadIDs := createLeads(t, h.db, "user-1", 3)
	campaign := createCampaign(t, h.db, "user-1", leadIDs)
	require.NoError(t, h.db.Model(&models.EmailCampaign{}).Where("id = ?", campaign.ID).
		Update("status", models.CampaignStatusFailed).Error)

	err := h.sims.Campaigns.Run(context.Background(), campaign.ID)
	assert.ErrorIs(t, err, ErrRecordGone)

	var count int64
	require.NoError(t, h.db.Model(&models.EmailLog{}).Where("campaign_id = ?", campaign.ID).Count(&count).Error)
	assert.Zero(t, count)
}
