package controller

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"mapslead/ai"
	"mapslead/utils"
)

type AIController struct {
	Drafter *ai.Drafter
	Logger  *logrus.Entry
}

func NewAIController(drafter *ai.Drafter, logger *logrus.Entry) *AIController {
	return &AIController{Drafter: drafter, Logger: logger}
}

// GenerateFollowUp always answers with a draft; generator problems yield the fallback text
func (ac *AIController) GenerateFollowUp(c *fiber.Ctx) error {
	var req ai.FollowUpRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	return c.JSON(ac.Drafter.Draft(c.UserContext(), req))
}
