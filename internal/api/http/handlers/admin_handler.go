package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/crmflow/crm-automation/internal/api/dto"
	"github.com/crmflow/crm-automation/internal/domain"
	"github.com/crmflow/crm-automation/internal/service"
	apperrors "github.com/crmflow/crm-automation/pkg/util/errorutil"
)

// AdminHandler manages SLA windows, assignment rules and manual sweeps.
type AdminHandler struct {
	sla        *service.SLAService
	assignment *service.AssignmentService
}

// NewAdminHandler constructs handler.
func NewAdminHandler(sla *service.SLAService, assignment *service.AssignmentService) *AdminHandler {
	return &AdminHandler{sla: sla, assignment: assignment}
}

// GetSLAConfig GET /admin/sla-config.
func (h *AdminHandler) GetSLAConfig(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"data": h.sla.Config()})
}

// UpdateSLAConfig PATCH /admin/sla-config.
func (h *AdminHandler) UpdateSLAConfig(c *fiber.Ctx) error {
	var patch domain.SLAConfigPatch
	if err := c.BodyParser(&patch); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	cfg, err := h.sla.UpdateConfig(c.UserContext(), patch)
	if err != nil {
		return apperrors.MapError(err)
	}
	return c.JSON(fiber.Map{"data": cfg})
}

// CheckSLA POST /admin/sla/check.
func (h *AdminHandler) CheckSLA(c *fiber.Ctx) error {
	breached, err := h.sla.CheckBreaches(c.UserContext())
	if err != nil {
		return apperrors.MapError(err)
	}
	return c.JSON(fiber.Map{"data": dto.SweepResponse{Breached: breached}})
}

// ListAssignmentRules GET /admin/assignment-rules.
func (h *AdminHandler) ListAssignmentRules(c *fiber.Ctx) error {
	rules, err := h.assignment.ListRules(c.UserContext())
	if err != nil {
		return err
	}
	if rules == nil {
		rules = []domain.AssignmentRule{}
	}
	return c.JSON(fiber.Map{"data": dto.AssignmentRulesResponse{
		Rules:     rules,
		AgentPool: h.assignment.Pool(),
	}})
}

// CreateAssignmentRule POST /admin/assignment-rules.
func (h *AdminHandler) CreateAssignmentRule(c *fiber.Ctx) error {
	var req dto.CreateAssignmentRuleRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	rule, err := h.assignment.AddRule(c.UserContext(), domain.AssignmentRule{
		Category:   req.Category,
		Priority:   req.Priority,
		AssigneeID: req.AssigneeID,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": rule})
}

// DeleteAssignmentRule DELETE /admin/assignment-rules/:id.
func (h *AdminHandler) DeleteAssignmentRule(c *fiber.Ctx) error {
	if err := h.assignment.RemoveRule(c.UserContext(), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}
