package utils

import (
	"fmt"
	"math"

	"github.com/gofiber/fiber/v2"
)

// GenerateRateLimitKey creates a unique key for rate limiting
func GenerateRateLimitKey(userID, path string) string {
	return fmt.Sprintf("rl:%s:%s", userID, path)
}

// Pointer returns a pointer to the given value
func Pointer[T any](v T) *T {
	return &v
}

// Round1 rounds to one decimal place
func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// Percent returns part/total*100 rounded to one decimal, or 0 when total is 0
func Percent(part, total int64) float64 {
	if total <= 0 {
		return 0
	}
	return Round1(float64(part) / float64(total) * 100)
}

// ErrorResponse creates a standardized error response
func ErrorResponse(c *fiber.Ctx, status int, message string, err error) error {
	response := fiber.Map{
		"success": false,
		"message": message,
		"data":    nil,
	}
	if err != nil && status < fiber.StatusInternalServerError {
		response["details"] = err.Error()
	}
	return c.Status(status).JSON(response)
}

// MessageResponse creates the plain acknowledgement body used by mutating endpoints
func MessageResponse(message string) fiber.Map {
	return fiber.Map{"message": message}
}
