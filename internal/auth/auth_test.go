package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/crmflow/crm-automation/internal/domain"
	apperrors "github.com/crmflow/crm-automation/pkg/util/errorutil"
)

func TestTokenRoundTrip(t *testing.T) {
	tm := NewTokenManager("secret", 15)
	meta, token, err := tm.GenerateToken("svc-ingest", domain.RoleService)
	require.NoError(t, err)
	assert.Equal(t, 15*time.Minute, meta.ExpiresAt.Sub(meta.IssuedAt))

	claims, err := tm.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "svc-ingest", claims.SubjectID)
	assert.Equal(t, domain.RoleService, claims.Role)
}

func TestParseTokenRejectsForeignSecret(t *testing.T) {
	_, token, err := NewTokenManager("one", 5).GenerateToken("u-1", domain.RoleAgent)
	require.NoError(t, err)

	_, err = NewTokenManager("two", 5).ParseToken(token)
	assert.Error(t, err)
}

func TestParseTokenRejectsExpired(t *testing.T) {
	tm := NewTokenManager("secret", 1)
	tm.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	_, token, err := tm.GenerateToken("u-1", domain.RoleAgent)
	require.NoError(t, err)

	_, err = tm.ParseToken(token)
	assert.Error(t, err)
}

func TestGenerateTokenRejectsUnknownRole(t *testing.T) {
	_, _, err := NewTokenManager("secret", 5).GenerateToken("u-1", "ROOT")
	assert.Error(t, err)
}

func TestHashSecret(t *testing.T) {
	hash, err := HashSecret("s3cret", bcrypt.MinCost)
	require.NoError(t, err)

	assert.NoError(t, CompareSecret(hash, "s3cret"))
	assert.Error(t, CompareSecret(hash, "guess"))
}

func TestMiddlewareAndRoles(t *testing.T) {
	tm := NewTokenManager("secret", 5)
	app := fiber.New(fiber.Config{ErrorHandler: func(c *fiber.Ctx, err error) error {
		return c.SendStatus(apperrors.ToDomainError(err).HTTPStatus)
	}})
	app.Get("/any", NewAuthMiddleware(tm).Handle, RequireRole(), func(c *fiber.Ctx) error {
		return c.SendString(ActorID(c))
	})
	app.Get("/admin", NewAuthMiddleware(tm).Handle, RequireRole(domain.RoleAdmin), func(c *fiber.Ctx) error {
		return c.SendStatus(http.StatusNoContent)
	})

	_, agentToken, err := tm.GenerateToken("agent-1", domain.RoleAgent)
	require.NoError(t, err)
	_, adminToken, err := tm.GenerateToken("admin-1", domain.RoleAdmin)
	require.NoError(t, err)

	tests := []struct {
		name   string
		path   string
		header string
		want   int
	}{
		{"missing header", "/any", "", http.StatusUnauthorized},
		{"wrong scheme", "/any", "Basic abc", http.StatusUnauthorized},
		{"garbage token", "/any", "Bearer nope", http.StatusUnauthorized},
		{"any authenticated caller", "/any", "Bearer " + agentToken, http.StatusOK},
		{"role not allowed", "/admin", "Bearer " + agentToken, http.StatusForbidden},
		{"role allowed", "/admin", "Bearer " + adminToken, http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}
