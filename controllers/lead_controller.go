package controller

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"mapslead/middleware"
	"mapslead/models"
	"mapslead/utils"
)

const (
	defaultLeadPageSize = 50
	maxLeadPageSize     = 1000
)

type LeadController struct {
	DB     *gorm.DB
	Logger *logrus.Entry
}

func NewLeadController(db *gorm.DB, logger *logrus.Entry) *LeadController {
	return &LeadController{
		DB:     db,
		Logger: logger,
	}
}

// LeadInput carries the editable lead fields. Absent fields are left untouched on update.
type LeadInput struct {
	BusinessName *string   `json:"business_name" validate:"omitempty,min=1,max=300"`
	Address      *string   `json:"address"`
	Website      *string   `json:"website"`
	Email        *string   `json:"email"`
	Phone        *string   `json:"phone"`
	Rating       *float64  `json:"rating" validate:"omitempty,min=0,max=5"`
	ReviewCount  *int      `json:"review_count" validate:"omitempty,min=0"`
	GMBLink      *string   `json:"gmb_link"`
	Source       *string   `json:"source"`
	Status       *string   `json:"status"`
	Notes        *string   `json:"notes"`
	Tags         *[]string `json:"tags"`
}

func (in LeadInput) validate() error {
	if err := utils.ValidateStruct(in); err != nil {
		return err
	}
	if in.Status != nil && !models.ValidLeadStatus(*in.Status) {
		return fmt.Errorf("status must be one of: %s", strings.Join(models.LeadStatuses, ", "))
	}
	if in.Source != nil && !models.ValidLeadSource(*in.Source) {
		return fmt.Errorf("source must be one of: %s", strings.Join(models.LeadSources, ", "))
	}
	if in.Email != nil && *in.Email != "" {
		if err := utils.ValidateEmailFormat(*in.Email); err != nil {
			return err
		}
	}
	return nil
}

// apply copies the present fields onto lead and returns their column names.
func (in LeadInput) apply(lead *models.Lead) []string {
	var cols []string
	set := func(col string, present bool, assign func()) {
		if present {
			assign()
			cols = append(cols, col)
		}
	}
	set("business_name", in.BusinessName != nil, func() { lead.BusinessName = *in.BusinessName })
	set("address", in.Address != nil, func() { lead.Address = in.Address })
	set("website", in.Website != nil, func() { lead.Website = in.Website })
	set("email", in.Email != nil, func() { lead.Email = in.Email })
	set("phone", in.Phone != nil, func() { lead.Phone = in.Phone })
	set("rating", in.Rating != nil, func() { lead.Rating = in.Rating })
	set("review_count", in.ReviewCount != nil, func() { lead.ReviewCount = in.ReviewCount })
	set("gmb_link", in.GMBLink != nil, func() { lead.GMBLink = in.GMBLink })
	set("source", in.Source != nil, func() { lead.Source = *in.Source })
	set("status", in.Status != nil, func() { lead.Status = *in.Status })
	set("notes", in.Notes != nil, func() { lead.Notes = in.Notes })
	set("tags", in.Tags != nil, func() { lead.Tags = normalizeTags(*in.Tags) })
	return cols
}

func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag != "" && !seen[tag] {
			seen[tag] = true
			out = append(out, tag)
		}
	}
	return out
}

// GetLeads returns a page of the user's leads, newest first, with the total matching count
func (lc *LeadController) GetLeads(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)

	skip, _ := strconv.Atoi(c.Query("skip", "0"))
	limit, _ := strconv.Atoi(c.Query("limit", strconv.Itoa(defaultLeadPageSize)))
	if skip < 0 {
		skip = 0
	}
	if limit <= 0 {
		limit = defaultLeadPageSize
	}
	if limit > maxLeadPageSize {
		limit = maxLeadPageSize
	}

	query := lc.DB.Model(&models.Lead{}).Where("user_id = ?", user.ID)
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if source := c.Query("source"); source != "" {
		query = query.Where("source = ?", source)
	}
	if search := strings.TrimSpace(c.Query("search")); search != "" {
		pattern := "%" + strings.ToLower(search) + "%"
		query = query.Where("LOWER(business_name) LIKE ? OR LOWER(email) LIKE ?", pattern, pattern)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to count leads", err)
	}

	leads := []models.Lead{}
	if err := query.Order("created_at DESC").Offset(skip).Limit(limit).Find(&leads).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch leads", err)
	}

	return c.JSON(fiber.Map{"leads": leads, "total": total})
}

func (lc *LeadController) CreateLead(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)

	var input LeadInput
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if input.BusinessName == nil || strings.TrimSpace(*input.BusinessName) == "" {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", errors.New("business_name is required"))
	}
	if err := input.validate(); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	lead := models.Lead{UserID: user.ID}
	input.apply(&lead)
	if err := lc.DB.Create(&lead).Error; err != nil {
		utils.LogError("lead_create_failed", err, map[string]interface{}{"user_id": user.ID})
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to create lead", err)
	}

	return c.Status(fiber.StatusCreated).JSON(lead)
}

func (lc *LeadController) GetLead(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)

	var lead models.Lead
	if err := lc.DB.Where("id = ? AND user_id = ?", c.Params("id"), user.ID).First(&lead).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Lead not found", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch lead", err)
	}
	return c.JSON(lead)
}

// UpdateLead applies the given fields and refreshes last_activity
func (lc *LeadController) UpdateLead(c *fiber.Ctx) error {
	var input LeadInput
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if input.BusinessName != nil && strings.TrimSpace(*input.BusinessName) == "" {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", errors.New("business_name must not be empty"))
	}
	if err := input.validate(); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	var changes models.Lead
	cols := input.apply(&changes)
	return lc.touch(c, &changes, cols, "Lead updated successfully")
}

func (lc *LeadController) DeleteLead(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)

	result := lc.DB.Where("id = ? AND user_id = ?", c.Params("id"), user.ID).Delete(&models.Lead{})
	if result.Error != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to delete lead", result.Error)
	}
	if result.RowsAffected == 0 {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Lead not found", nil)
	}
	return c.JSON(utils.MessageResponse("Lead deleted successfully"))
}

// BulkDeleteLeads deletes the listed leads owned by the user; foreign ids are ignored
func (lc *LeadController) BulkDeleteLeads(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)

	var ids []string
	if err := c.BodyParser(&ids); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if len(ids) == 0 {
		return c.JSON(fiber.Map{"deleted_count": 0})
	}

	result := lc.DB.Where("id IN ? AND user_id = ?", ids, user.ID).Delete(&models.Lead{})
	if result.Error != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to delete leads", result.Error)
	}
	return c.JSON(fiber.Map{"deleted_count": result.RowsAffected})
}

func (lc *LeadController) AddNote(c *fiber.Ctx) error {
	var input struct {
		Text string `json:"text"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}

	changes := models.Lead{Notes: utils.Pointer(input.Text)}
	return lc.touch(c, &changes, []string{"notes"}, "Note added successfully")
}

// SetTags replaces the lead's tags
func (lc *LeadController) SetTags(c *fiber.Ctx) error {
	var input struct {
		Tags []string `json:"tags"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}

	changes := models.Lead{Tags: normalizeTags(input.Tags)}
	return lc.touch(c, &changes, []string{"tags"}, "Tags updated successfully")
}

// touch writes cols from changes plus a fresh last_activity to the user's lead.
func (lc *LeadController) touch(c *fiber.Ctx, changes *models.Lead, cols []string, message string) error {
	user := middleware.CurrentUser(c)

	changes.LastActivity = time.Now().UTC()
	cols = append(cols, "last_activity")

	result := lc.DB.Model(&models.Lead{}).
		Where("id = ? AND user_id = ?", c.Params("id"), user.ID).
		Select(cols).
		Updates(changes)
	if result.Error != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update lead", result.Error)
	}
	if result.RowsAffected == 0 {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Lead not found", nil)
	}
	return c.JSON(utils.MessageResponse(message))
}
