package controller

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// Version is reported by the health endpoint.
const Version = "v1.0"

type HealthController struct {
	DB      *gorm.DB
	Started time.Time
}

func NewHealthController(db *gorm.DB) *HealthController {
	return &HealthController{DB: db, Started: time.Now()}
}

func (hc *HealthController) Health(c *fiber.Ctx) error {
	status := "ok"
	code := fiber.StatusOK
	if sqlDB, err := hc.DB.DB(); err != nil || sqlDB.PingContext(c.UserContext()) != nil {
		status = "degraded"
		code = fiber.StatusServiceUnavailable
	}

	return c.Status(code).JSON(fiber.Map{
		"status":  status,
		"uptime":  time.Since(hc.Started).Round(time.Second).String(),
		"version": Version,
	})
}
