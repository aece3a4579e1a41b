package controller

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"mapslead/analytics"
	"mapslead/middleware"
	"mapslead/utils"
)

type AnalyticsController struct {
	Aggregator *analytics.Aggregator
	Logger     *logrus.Entry
}

func NewAnalyticsController(agg *analytics.Aggregator, logger *logrus.Entry) *AnalyticsController {
	return &AnalyticsController{Aggregator: agg, Logger: logger}
}

func (ac *AnalyticsController) Dashboard(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)

	dashboard, err := ac.Aggregator.Dashboard(c.UserContext(), user.ID)
	if err != nil {
		utils.LogError("analytics_dashboard_failed", err, map[string]interface{}{"user_id": user.ID})
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to compute dashboard", err)
	}
	return c.JSON(dashboard)
}

func (ac *AnalyticsController) Summary(c *fiber.Ctx) error {
	return ac.cached(c, analytics.FamilySummary)
}

func (ac *AnalyticsController) Sources(c *fiber.Ctx) error {
	return ac.cached(c, analytics.FamilySources)
}

func (ac *AnalyticsController) Engagement(c *fiber.Ctx) error {
	return ac.cached(c, analytics.FamilyEngagement)
}

// cached writes the stored report bytes as they are.
func (ac *AnalyticsController) cached(c *fiber.Ctx, family string) error {
	user := middleware.CurrentUser(c)

	payload, err := ac.Aggregator.Lookup(c.UserContext(), family, user.ID)
	if err != nil {
		utils.LogError("analytics_lookup_failed", err, map[string]interface{}{"user_id": user.ID, "family": family})
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to compute analytics", err)
	}

	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Send(payload)
}
