package http

import (
	"bytes"
	"encoding/json"
	"io"
	stdhttp "net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/crmflow/crm-automation/internal/api/http/handlers"
	"github.com/crmflow/crm-automation/internal/auth"
	"github.com/crmflow/crm-automation/internal/config"
	"github.com/crmflow/crm-automation/internal/domain"
	"github.com/crmflow/crm-automation/internal/events"
	"github.com/crmflow/crm-automation/internal/observability"
	"github.com/crmflow/crm-automation/internal/repository"
	"github.com/crmflow/crm-automation/internal/service"
)

type RouterTestSuite struct {
	suite.Suite
	app        *fiber.App
	tokens     *auth.TokenManager
	adminToken string
	agentToken string
	svcToken   string
}

func TestRouterSuite(t *testing.T) {
	suite.Run(t, new(RouterTestSuite))
}

func (s *RouterTestSuite) SetupTest() {
	logger := zap.NewNop()
	metrics := observability.NewMetrics()
	store := repository.NewMemoryStore()

	recorder := service.NewRecorder(service.RecorderDependencies{
		AuditRepo:    store.AuditLogs(),
		TimelineRepo: store.Timeline(),
	})
	outbox := service.NewNotificationService(nil, logger)
	dispatcher := events.NewDispatcher(events.DispatcherDependencies{
		Executor: service.NewActionExecutor(service.ExecutorDependencies{
			Notifications: outbox,
			Tasks:         outbox,
			Email:         outbox,
			Meetings:      outbox,
			Assignments:   outbox,
			Deals:         outbox,
			Metrics:       metrics,
		}),
		Timeline: recorder,
		Metrics:  metrics,
	})
	events.RegisterAll(dispatcher, events.DefaultTriggers())

	sla, err := service.NewSLAService(service.SLADependencies{
		Config:     domain.DefaultSLAConfig(),
		ConfigRepo: store.SLAConfig(),
		TicketRepo: store.Tickets(),
		Recorder:   recorder,
		Dispatcher: dispatcher,
	})
	s.Require().NoError(err)
	assignment := service.NewAssignmentService(service.AssignmentDependencies{
		RuleRepo:  store.AssignmentRules(),
		AgentPool: []string{"X", "Y", "Z"},
	})
	tickets := service.NewTicketService(service.TicketDependencies{
		TicketRepo: store.Tickets(),
		Recorder:   recorder,
		SLA:        sla,
		Assignment: assignment,
		Dispatcher: dispatcher,
	})

	hash, err := bcrypt.GenerateFromPassword([]byte("ingest-secret"), bcrypt.MinCost)
	s.Require().NoError(err)
	s.tokens = auth.NewTokenManager("test-secret", 5)
	authService := service.NewAuthService(config.AuthConfig{
		ServiceAccounts: map[string]config.ServiceAccount{
			"ingest": {Role: string(domain.RoleService), SecretHash: string(hash)},
		},
	}, s.tokens, logger)

	s.app = fiber.New()
	RegisterMiddlewares(s.app, logger, metrics, 0)
	RegisterRoutes(s.app, RouteConfig{
		Health:         handlers.NewHealthHandler("crm-automation", "test", nil, nil, metrics),
		Auth:           handlers.NewAuthHandler(authService),
		Tickets:        handlers.NewTicketsHandler(tickets),
		Events:         handlers.NewEventsHandler(service.NewEventService(dispatcher, recorder, logger)),
		Admin:          handlers.NewAdminHandler(sla, assignment),
		AuthMiddleware: auth.NewAuthMiddleware(s.tokens),
	})

	s.adminToken = s.token("admin-1", domain.RoleAdmin)
	s.agentToken = s.token("agent-1", domain.RoleAgent)
	s.svcToken = s.token("ingest", domain.RoleService)
}

func (s *RouterTestSuite) token(subject string, role domain.Role) string {
	_, token, err := s.tokens.GenerateToken(subject, role)
	s.Require().NoError(err)
	return token
}

func (s *RouterTestSuite) do(method, path, token string, body any) (int, map[string]any) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := s.app.Test(req)
	s.Require().NoError(err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	s.Require().NoError(err)
	out := map[string]any{}
	if len(raw) > 0 {
		s.Require().NoError(json.Unmarshal(raw, &out))
	}
	return resp.StatusCode, out
}

func errorCode(body map[string]any) string {
	errObj, _ := body["error"].(map[string]any)
	code, _ := errObj["code"].(string)
	return code
}

func (s *RouterTestSuite) createTicket(body map[string]any) map[string]any {
	status, resp := s.do(stdhttp.MethodPost, "/api/v1/tickets", s.agentToken, body)
	s.Require().Equal(stdhttp.StatusCreated, status)
	return resp["data"].(map[string]any)
}

func (s *RouterTestSuite) TestHealth() {
	status, body := s.do(stdhttp.MethodGet, "/health/live", "", nil)
	s.Equal(stdhttp.StatusOK, status)
	s.Equal("alive", body["status"])

	status, body = s.do(stdhttp.MethodGet, "/health/ready", "", nil)
	s.Equal(stdhttp.StatusOK, status)
	s.Equal("disabled", body["dependencies"].(map[string]any)["postgres"])
}

func (s *RouterTestSuite) TestRequiresAuthentication() {
	status, body := s.do(stdhttp.MethodGet, "/api/v1/tickets", "", nil)

	s.Equal(stdhttp.StatusUnauthorized, status)
	s.Equal("UNAUTHORIZED", errorCode(body))
}

func (s *RouterTestSuite) TestTicketLifecycle() {
	ticket := s.createTicket(map[string]any{"subject": "Cannot log in", "priority": "high"})
	id := ticket["id"].(string)
	s.Equal("X", ticket["assigned_to"])
	s.Regexp(`^TCK-`, ticket["ticket_id"])

	status, body := s.do(stdhttp.MethodPatch, "/api/v1/tickets/"+id, s.agentToken, map[string]any{"status": "in_progress"})
	s.Require().Equal(stdhttp.StatusOK, status)
	s.Equal("in_progress", body["data"].(map[string]any)["status"])

	status, body = s.do(stdhttp.MethodGet, "/api/v1/tickets/"+id+"/audit", s.agentToken, nil)
	s.Require().Equal(stdhttp.StatusOK, status)
	entries := body["data"].([]any)
	s.Require().Len(entries, 2)
	s.Equal("update", entries[0].(map[string]any)["action"])

	status, body = s.do(stdhttp.MethodDelete, "/api/v1/tickets/"+id, s.agentToken, nil)
	s.Equal(stdhttp.StatusForbidden, status)
	s.Equal("FORBIDDEN", errorCode(body))

	status, _ = s.do(stdhttp.MethodDelete, "/api/v1/tickets/"+id, s.adminToken, nil)
	s.Equal(stdhttp.StatusNoContent, status)

	status, body = s.do(stdhttp.MethodGet, "/api/v1/tickets/"+id, s.agentToken, nil)
	s.Equal(stdhttp.StatusNotFound, status)
	s.Equal("NOT_FOUND", errorCode(body))
}

func (s *RouterTestSuite) TestCreateTicketValidation() {
	status, body := s.do(stdhttp.MethodPost, "/api/v1/tickets", s.agentToken, map[string]any{"subject": ""})
	s.Equal(stdhttp.StatusBadRequest, status)
	s.Equal("VALIDATION_FAILED", errorCode(body))

	status, body = s.do(stdhttp.MethodPost, "/api/v1/tickets", s.agentToken, map[string]any{"subject": "x", "priority": "urgent"})
	s.Equal(stdhttp.StatusUnprocessableEntity, status)
	s.Equal("CONFIGURATION_ERROR", errorCode(body))
}

func (s *RouterTestSuite) TestIngestEvent() {
	event := map[string]any{
		"type":        "contact_update",
		"entity_id":   "contact-9",
		"entity_type": "contact",
		"payload":     map[string]any{"ownerId": "rep-2"},
	}

	status, _ := s.do(stdhttp.MethodPost, "/api/v1/events", s.agentToken, event)
	s.Equal(stdhttp.StatusForbidden, status)

	status, body := s.do(stdhttp.MethodPost, "/api/v1/events", s.svcToken, event)
	s.Require().Equal(stdhttp.StatusAccepted, status)
	data := body["data"].(map[string]any)
	s.EqualValues(1, data["matched_triggers"])
	s.EqualValues(2, data["actions_executed"])

	status, body = s.do(stdhttp.MethodGet, "/api/v1/timeline/contact-9", s.agentToken, nil)
	s.Require().Equal(stdhttp.StatusOK, status)
	s.Len(body["data"].([]any), 1)
}

func (s *RouterTestSuite) TestServiceAccountToken() {
	status, _ := s.do(stdhttp.MethodPost, "/auth/token", "", map[string]any{"client_id": "ingest", "client_secret": "wrong"})
	s.Equal(stdhttp.StatusUnauthorized, status)

	status, body := s.do(stdhttp.MethodPost, "/auth/token", "", map[string]any{"client_id": "ingest", "client_secret": "ingest-secret"})
	s.Require().Equal(stdhttp.StatusOK, status)
	token := body["data"].(map[string]any)["access_token"].(string)

	claims, err := s.tokens.ParseToken(token)
	s.Require().NoError(err)
	s.Equal(domain.RoleService, claims.Role)
}

func (s *RouterTestSuite) TestAdminSLAConfig() {
	status, _ := s.do(stdhttp.MethodGet, "/api/v1/admin/sla-config", s.agentToken, nil)
	s.Equal(stdhttp.StatusForbidden, status)

	status, body := s.do(stdhttp.MethodPatch, "/api/v1/admin/sla-config", s.adminToken, map[string]any{"critical": -1})
	s.Equal(stdhttp.StatusBadRequest, status)
	s.Equal("VALIDATION_FAILED", errorCode(body))

	status, body = s.do(stdhttp.MethodPatch, "/api/v1/admin/sla-config", s.adminToken, map[string]any{"critical": 2})
	s.Require().Equal(stdhttp.StatusOK, status)
	s.EqualValues(2, body["data"].(map[string]any)["critical"])

	status, body = s.do(stdhttp.MethodPost, "/api/v1/admin/sla/check", s.adminToken, nil)
	s.Require().Equal(stdhttp.StatusOK, status)
	s.EqualValues(0, body["data"].(map[string]any)["breached"])
}

func (s *RouterTestSuite) TestAssignmentRules() {
	status, body := s.do(stdhttp.MethodPost, "/api/v1/admin/assignment-rules", s.adminToken, map[string]any{
		"category": "billing", "priority": "high", "assignee_id": "billing-lead",
	})
	s.Require().Equal(stdhttp.StatusCreated, status)
	ruleID := body["data"].(map[string]any)["id"].(string)

	ticket := s.createTicket(map[string]any{"subject": "Refund", "category": "billing", "priority": "high"})
	s.Equal("billing-lead", ticket["assigned_to"])

	status, _ = s.do(stdhttp.MethodDelete, "/api/v1/admin/assignment-rules/"+ruleID, s.adminToken, nil)
	s.Equal(stdhttp.StatusNoContent, status)

	status, body = s.do(stdhttp.MethodGet, "/api/v1/admin/assignment-rules", s.adminToken, nil)
	s.Require().Equal(stdhttp.StatusOK, status)
	data := body["data"].(map[string]any)
	s.Empty(data["rules"])
	s.Equal([]any{"X", "Y", "Z"}, data["agent_pool"])
}
