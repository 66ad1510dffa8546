package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/crmflow/crm-automation/internal/api/dto"
	"github.com/crmflow/crm-automation/internal/service"
	apperrors "github.com/crmflow/crm-automation/pkg/util/errorutil"
)

// AuthHandler issues tokens to service accounts.
type AuthHandler struct {
	service *service.AuthService
}

// NewAuthHandler constructs handler.
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{service: authService}
}

// Token POST /auth/token.
func (h *AuthHandler) Token(c *fiber.Ctx) error {
	var req dto.TokenRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.ClientID) == "" || req.ClientSecret == "" {
		return apperrors.NewValidationError("client_id, client_secret required", nil)
	}
	token, exp, err := h.service.Login(c.UserContext(), req.ClientID, req.ClientSecret)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.TokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresAt:   exp,
	}})
}
