package controller

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"mapslead/middleware"
	"mapslead/models"
	"mapslead/utils"
	"mapslead/worker"
)

type StartScraperRequest struct {
	Keyword     string   `json:"keyword" validate:"required,max=200"`
	Location    string   `json:"location" validate:"required,max=200"`
	HasWebsite  *bool    `json:"has_website"`
	HasEmail    *bool    `json:"has_email"`
	MinReviews  *int     `json:"min_reviews" validate:"omitempty,min=0"`
	DataSources []string `json:"data_sources"`
}

type ScraperController struct {
	DB     *gorm.DB
	Sims   *worker.Simulations
	Logger *logrus.Entry
}

func NewScraperController(db *gorm.DB, sims *worker.Simulations, logger *logrus.Entry) *ScraperController {
	return &ScraperController{
		DB:     db,
		Sims:   sims,
		Logger: logger,
	}
}

// StartScraper creates a running job and launches its simulation in the background
func (sc *ScraperController) StartScraper(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)

	var req StartScraperRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}
	for _, src := range req.DataSources {
		if !models.ValidLeadSource(src) {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", fmt.Errorf("unknown data source %q", src))
		}
	}

	job := models.ScrapingJob{
		UserID:   user.ID,
		Keyword:  req.Keyword,
		Location: req.Location,
		Filters: models.JobFilters{
			HasWebsite: req.HasWebsite,
			HasEmail:   req.HasEmail,
			MinReviews: req.MinReviews,
		},
		DataSources: req.DataSources,
		Status:      models.JobStatusRunning,
		TotalLeads:  sc.Sims.NewTotalLeads(),
	}
	if err := sc.DB.Create(&job).Error; err != nil {
		utils.LogError("scraping_job_create_failed", err, map[string]interface{}{"user_id": user.ID})
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to create scraping job", err)
	}

	sc.Sims.StartJobSimulation(job.ID, user.ID)

	sc.Logger.WithFields(logrus.Fields{"job_id": job.ID, "user_id": user.ID, "total": job.TotalLeads}).Info("Scraping job started")
	return c.JSON(fiber.Map{"job_id": job.ID, "status": "started"})
}

func (sc *ScraperController) GetStatus(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)

	var job models.ScrapingJob
	if err := sc.DB.Where("id = ? AND user_id = ?", c.Params("id"), user.ID).First(&job).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Job not found", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to load job", err)
	}
	return c.JSON(job)
}

// ListJobs returns the user's 100 most recent jobs
func (sc *ScraperController) ListJobs(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)

	jobs := []models.ScrapingJob{}
	if err := sc.DB.Where("user_id = ?", user.ID).Order("created_at DESC").Limit(100).Find(&jobs).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to load jobs", err)
	}
	return c.JSON(jobs)
}

// DeleteJob removes the job and stops its simulation. Leads it produced are kept.
func (sc *ScraperController) DeleteJob(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)
	jobID := c.Params("id")

	result := sc.DB.Where("id = ? AND user_id = ?", jobID, user.ID).Delete(&models.ScrapingJob{})
	if result.Error != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to delete job", result.Error)
	}
	if result.RowsAffected == 0 {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Job not found", nil)
	}
	sc.Sims.CancelJob(jobID)

	return c.JSON(utils.MessageResponse("Job deleted successfully"))
}
