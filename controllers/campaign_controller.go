package controller

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"mapslead/middleware"
	"mapslead/models"
	"mapslead/utils"
	"mapslead/worker"
)

type CreateCampaignRequest struct {
	Name              string   `json:"name" validate:"required,max=200"`
	Subject           string   `json:"subject" validate:"required,max=300"`
	Body              string   `json:"body"`
	LeadIDs           []string `json:"lead_ids"`
	FollowUpEnabled   *bool    `json:"follow_up_enabled"`
	FollowUpDelayDays *int     `json:"follow_up_delay_days" validate:"omitempty,min=0,max=365"`
}

type CampaignController struct {
	DB     *gorm.DB
	Sims   *worker.Simulations
	Logger *logrus.Entry
}

func NewCampaignController(db *gorm.DB, sims *worker.Simulations, logger *logrus.Entry) *CampaignController {
	return &CampaignController{
		DB:     db,
		Sims:   sims,
		Logger: logger,
	}
}

// CreateCampaign stores a running campaign over the given leads and starts sending.
// Lead ids are taken as given; ids that do not resolve still produce a log entry.
func (cc *CampaignController) CreateCampaign(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)

	var req CreateCampaignRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	campaign := models.EmailCampaign{
		UserID:            user.ID,
		Name:              req.Name,
		Subject:           req.Subject,
		Body:              req.Body,
		LeadIDs:           req.LeadIDs,
		Status:            models.CampaignStatusRunning,
		TotalEmails:       len(req.LeadIDs),
		FollowUpEnabled:   true,
		FollowUpDelayDays: 3,
	}
	if req.FollowUpEnabled != nil {
		campaign.FollowUpEnabled = *req.FollowUpEnabled
	}
	if req.FollowUpDelayDays != nil {
		campaign.FollowUpDelayDays = *req.FollowUpDelayDays
	}

	if err := cc.DB.Create(&campaign).Error; err != nil {
		utils.LogError("campaign_create_failed", err, map[string]interface{}{"user_id": user.ID})
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to create campaign", err)
	}

	cc.Sims.StartCampaignSimulation(campaign.ID)

	cc.Logger.WithFields(logrus.Fields{"campaign_id": campaign.ID, "user_id": user.ID, "leads": campaign.TotalEmails}).Info("Campaign started")
	return c.JSON(fiber.Map{"campaign_id": campaign.ID, "status": "started"})
}

// ListCampaigns returns the user's 100 most recent campaigns
func (cc *CampaignController) ListCampaigns(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)

	campaigns := []models.EmailCampaign{}
	if err := cc.DB.Where("user_id = ?", user.ID).Order("created_at DESC").Limit(100).Find(&campaigns).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch campaigns", err)
	}
	return c.JSON(campaigns)
}

func (cc *CampaignController) GetCampaign(c *fiber.Ctx) error {
	campaign, err := cc.find(c)
	if err != nil {
		return cc.notFoundOr(c, err)
	}
	return c.JSON(campaign)
}

// GetCampaignLogs returns the campaign's send log in send order
func (cc *CampaignController) GetCampaignLogs(c *fiber.Ctx) error {
	campaign, err := cc.find(c)
	if err != nil {
		return cc.notFoundOr(c, err)
	}

	logs := []models.EmailLog{}
	if err := cc.DB.Where("campaign_id = ?", campaign.ID).Order("sent_at ASC").Find(&logs).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch email logs", err)
	}
	return c.JSON(logs)
}

// DeleteCampaign removes the campaign and stops sending. Its email logs are kept.
func (cc *CampaignController) DeleteCampaign(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)
	campaignID := c.Params("id")

	result := cc.DB.Where("id = ? AND user_id = ?", campaignID, user.ID).Delete(&models.EmailCampaign{})
	if result.Error != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to delete campaign", result.Error)
	}
	if result.RowsAffected == 0 {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Campaign not found", nil)
	}
	cc.Sims.CancelCampaign(campaignID)

	return c.JSON(utils.MessageResponse("Campaign deleted successfully"))
}

func (cc *CampaignController) find(c *fiber.Ctx) (*models.EmailCampaign, error) {
	user := middleware.CurrentUser(c)

	var campaign models.EmailCampaign
	if err := cc.DB.Where("id = ? AND user_id = ?", c.Params("id"), user.ID).First(&campaign).Error; err != nil {
		return nil, err
	}
	return &campaign, nil
}

func (cc *CampaignController) notFoundOr(c *fiber.Ctx, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Campaign not found", nil)
	}
	return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch campaign", err)
}
