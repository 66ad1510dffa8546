package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/crmflow/crm-automation/internal/auth"
	"github.com/crmflow/crm-automation/internal/config"
	"github.com/crmflow/crm-automation/internal/domain"
	"github.com/crmflow/crm-automation/internal/observability"
	apperrors "github.com/crmflow/crm-automation/pkg/util/errorutil"
)

// AuthService exchanges service-account credentials for access tokens.
type AuthService struct {
	accounts map[string]config.ServiceAccount
	tokenMgr *auth.TokenManager
	logger   *zap.Logger
}

// NewAuthService builds the service.
func NewAuthService(cfg config.AuthConfig, tokens *auth.TokenManager, logger *zap.Logger) *AuthService {
	return &AuthService{
		accounts: cfg.ServiceAccounts,
		tokenMgr: tokens,
		logger:   observability.Named(logger, "auth"),
	}
}

// Login verifies clientID/secret and returns a signed token with its expiry.
func (s *AuthService) Login(_ context.Context, clientID, secret string) (string, time.Time, error) {
	account, ok := s.accounts[clientID]
	if !ok {
		return "", time.Time{}, apperrors.NewUnauthorized("invalid credentials")
	}
	if err := auth.CompareSecret(account.SecretHash, secret); err != nil {
		s.logger.Warn("service account login rejected", zap.String("client_id", clientID))
		return "", time.Time{}, apperrors.NewUnauthorized("invalid credentials")
	}
	return s.IssueToken(clientID, domain.Role(account.Role))
}

// IssueToken signs a token for subjectID without checking credentials.
func (s *AuthService) IssueToken(subjectID string, role domain.Role) (string, time.Time, error) {
	meta, token, err := s.tokenMgr.GenerateToken(subjectID, role)
	if err != nil {
		return "", time.Time{}, apperrors.NewValidationError(err.Error(), map[string]any{"role": string(role)})
	}
	return token, meta.ExpiresAt, nil
}
