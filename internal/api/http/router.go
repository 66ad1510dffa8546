package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/crmflow/crm-automation/internal/api/http/handlers"
	"github.com/crmflow/crm-automation/internal/auth"
	"github.com/crmflow/crm-automation/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Tickets        *handlers.TicketsHandler
	Events         *handlers.EventsHandler
	Admin          *handlers.AdminHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/metrics", cfg.Health.Metrics)

	app.Post("/auth/token", cfg.Auth.Token)

	api := app.Group("/api/v1", cfg.AuthMiddleware.Handle, auth.RequireRole())
	adminOnly := auth.RequireRole(domain.RoleAdmin)
	staff := auth.RequireRole(domain.RoleAdmin, domain.RoleAgent)
	ingest := auth.RequireRole(domain.RoleAdmin, domain.RoleService)

	tickets := api.Group("/tickets")
	tickets.Post("", cfg.Tickets.CreateTicket)
	tickets.Get("", cfg.Tickets.ListTickets)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Patch("/:id", staff, cfg.Tickets.UpdateTicket)
	tickets.Post("/:id/assign", staff, cfg.Tickets.AssignTicket)
	tickets.Delete("/:id", adminOnly, cfg.Tickets.DeleteTicket)
	tickets.Get("/:id/audit", staff, cfg.Tickets.AuditTrail)

	api.Get("/timeline/:entityId", cfg.Events.Timeline)
	api.Post("/events", ingest, cfg.Events.Ingest)
	api.Get("/triggers", cfg.Events.ListTriggers)

	admin := api.Group("/admin", adminOnly)
	admin.Get("/sla-config", cfg.Admin.GetSLAConfig)
	admin.Patch("/sla-config", cfg.Admin.UpdateSLAConfig)
	admin.Post("/sla/check", cfg.Admin.CheckSLA)
	admin.Get("/assignment-rules", cfg.Admin.ListAssignmentRules)
	admin.Post("/assignment-rules", cfg.Admin.CreateAssignmentRule)
	admin.Delete("/assignment-rules/:id", cfg.Admin.DeleteAssignmentRule)
}
