package controller

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"mapslead/middleware"
	"mapslead/models"
	"mapslead/utils"
)

type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

type LoginRequest struct {
	Email      string `json:"email" validate:"required,email"`
	Password   string `json:"password" validate:"required"`
	RememberMe bool   `json:"remember_me"`
}

type TokenResponse struct {
	Token string `json:"token"`
	Email string `json:"email"`
}

type AuthController struct {
	DB     *gorm.DB
	Logger *logrus.Entry
	Secret string
	// RememberTTL is the token lifetime for remember_me logins; other tokens last a day
	RememberTTL time.Duration
}

func NewAuthController(db *gorm.DB, logger *logrus.Entry, secret string, rememberDays int) *AuthController {
	return &AuthController{
		DB:          db,
		Logger:      logger,
		Secret:      secret,
		RememberTTL: time.Duration(rememberDays) * 24 * time.Hour,
	}
}

func (ac *AuthController) Register(c *fiber.Ctx) error {
	var req RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := utils.ValidateStruct(req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}
	if err := utils.ValidateEmailFormat(req.Email); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	var existing models.User
	err := ac.DB.Where("email = ?", req.Email).First(&existing).Error
	if err == nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Email already registered", nil)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		utils.LogError("user_lookup_failed", err, map[string]interface{}{"email": req.Email})
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to register user", err)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to hash password", err)
	}

	user := models.User{Email: req.Email, PasswordHash: string(hashedPassword)}
	if err := ac.DB.Create(&user).Error; err != nil {
		utils.LogError("user_create_failed", err, map[string]interface{}{"email": req.Email})
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to create user", err)
	}

	token, err := utils.GenerateJWTToken(ac.Secret, user.ID, user.Email, 24*time.Hour)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to generate token", err)
	}

	utils.LogEvent("user_registered", map[string]interface{}{"user_id": user.ID})
	return c.JSON(TokenResponse{Token: token, Email: user.Email})
}

func (ac *AuthController) Login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := utils.ValidateStruct(req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	var user models.User
	if err := ac.DB.Where("email = ?", req.Email).First(&user).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusUnauthorized, "Invalid credentials", nil)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return utils.ErrorResponse(c, fiber.StatusUnauthorized, "Invalid credentials", nil)
	}

	ttl := 24 * time.Hour
	if req.RememberMe {
		ttl = ac.RememberTTL
	}
	token, err := utils.GenerateJWTToken(ac.Secret, user.ID, user.Email, ttl)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to generate token", err)
	}

	return c.JSON(TokenResponse{Token: token, Email: user.Email})
}

func (ac *AuthController) Me(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)
	return c.JSON(fiber.Map{"id": user.ID, "email": user.Email})
}
