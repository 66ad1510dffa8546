package errorutil

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5"

	"github.com/crmflow/crm-automation/internal/domain"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError("VALIDATION_FAILED", message, http.StatusBadRequest, details)
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       "NOT_FOUND",
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

func NewUnauthorized(message string) error {
	return NewDomainError("UNAUTHORIZED", message, http.StatusUnauthorized, nil)
}

func NewForbidden(message string) error {
	return NewDomainError("FORBIDDEN", message, http.StatusForbidden, nil)
}

func NewConflict(message string, details map[string]any) error {
	return NewDomainError("CONFLICT", message, http.StatusConflict, details)
}

// NewConfigurationError reports SLA/assignment misconfiguration that blocks an operation.
func NewConfigurationError(err error) error {
	return &DomainError{
		Code:       "CONFIGURATION_ERROR",
		Message:    err.Error(),
		HTTPStatus: http.StatusUnprocessableEntity,
		Err:        err,
	}
}

// NewAuditFailed reports that a mutation was applied but its audit or timeline entry was not written.
func NewAuditFailed(ticketID string, err error) error {
	return &DomainError{
		Code:       "AUDIT_FAILED",
		Message:    "change applied but its audit trail could not be written",
		HTTPStatus: http.StatusInternalServerError,
		Details:    map[string]any{"ticket_id": ticketID, "audit_failed": true},
		Err:        errors.Join(domain.ErrAuditFailed, err),
	}
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       "INTERNAL_ERROR",
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	switch {
	case errors.Is(err, pgx.ErrNoRows), errors.Is(err, domain.ErrTicketNotFound):
		return NewNotFound("ticket", nil).(*DomainError)
	case errors.Is(err, domain.ErrRuleNotFound):
		return NewNotFound("assignment rule", nil).(*DomainError)
	case errors.Is(err, domain.ErrTicketConflict):
		return NewConflict(err.Error(), nil).(*DomainError)
	case errors.Is(err, domain.ErrUnknownPriority),
		errors.Is(err, domain.ErrEmptyAgentPool):
		return NewConfigurationError(err).(*DomainError)
	case errors.Is(err, domain.ErrInvalidSLAConfig):
		validationErr := NewValidationError(err.Error(), nil).(*DomainError)
		validationErr.Err = err
		return validationErr
	case errors.Is(err, domain.ErrInvalidStatus),
		errors.Is(err, domain.ErrInvalidPriority),
		errors.Is(err, domain.ErrSubjectRequired),
		errors.Is(err, domain.ErrInvalidTrigger):
		return NewValidationError(err.Error(), nil).(*DomainError)
	}
	return NewInternalError(err).(*DomainError)
}

// MapError converts err into a DomainError while keeping the error interface.
func MapError(err error) error {
	if err == nil {
		return nil
	}
	return ToDomainError(err)
}
