package domain_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/paybridge/gateway-reconciler/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestDomainError_Error(t *testing.T) {
	err := domain.NewDomainError(domain.ErrorCodeTxnNotFound, "transaction not found")
	assert.Equal(t, "TXN_NOT_FOUND: transaction not found", err.Error())

	wrapped := domain.WrapError(domain.ErrorCodeDatabaseError, "persist attempt", errors.New("connection reset"))
	assert.Equal(t, "INTERNAL_DATABASE_ERROR: persist attempt: connection reset", wrapped.Error())
}

func TestDomainError_Unwrap(t *testing.T) {
	inner := errors.New("connection reset")
	err := domain.WrapError(domain.ErrorCodeDatabaseError, "persist attempt", inner)

	assert.True(t, errors.Is(err, inner))
}

func TestDomainError_UnwrapThroughFmtWrapping(t *testing.T) {
	err := domain.WrapError(domain.ErrorCodeGatewayError, "gateway call failed", errors.New("i/o timeout"))
	outer := fmt.Errorf("authorize: %w", err)

	assert.Equal(t, domain.ErrorCodeGatewayError, domain.GetErrorCode(outer))
}

func TestGetErrorCode_NonDomainError(t *testing.T) {
	assert.Equal(t, domain.ErrorCode(""), domain.GetErrorCode(errors.New("plain")))
	assert.Equal(t, domain.ErrorCode(""), domain.GetErrorCode(nil))
}

func TestIsDomainError(t *testing.T) {
	err := domain.NewDomainError(domain.ErrorCodeTenantNotConfigured, "no reporting credentials")

	assert.True(t, domain.IsDomainError(err, domain.ErrorCodeTenantNotConfigured))
	assert.False(t, domain.IsDomainError(err, domain.ErrorCodeGatewayError))
}

func TestIsNotFoundError(t *testing.T) {
	assert.True(t, domain.IsNotFoundError(domain.NewDomainError(domain.ErrorCodeTxnNotFound, "missing")))
	assert.True(t, domain.IsNotFoundError(domain.NewDomainError(domain.ErrorCodeRowNotFound, "missing")))
	assert.False(t, domain.IsNotFoundError(domain.NewDomainError(domain.ErrorCodeInternalError, "boom")))
	assert.False(t, domain.IsNotFoundError(errors.New("missing")))
}

func TestIsGatewayError(t *testing.T) {
	assert.True(t, domain.IsGatewayError(domain.NewDomainError(domain.ErrorCodeGatewayError, "failed")))
	assert.True(t, domain.IsGatewayError(domain.NewDomainError(domain.ErrorCodeGatewayTimeout, "timeout")))
	assert.True(t, domain.IsGatewayError(domain.NewDomainError(domain.ErrorCodeGatewayDeclined, "declined")))
	assert.False(t, domain.IsGatewayError(domain.NewDomainError(domain.ErrorCodeDatabaseError, "down")))
}

func TestDomainError_WithDetail(t *testing.T) {
	err := domain.NewDomainError(domain.ErrorCodeValidationFailed, "bad amount").
		WithDetail("amount", "-5").
		WithDetail("currency", "USD")

	assert.Equal(t, "-5", err.Details["amount"])
	assert.Equal(t, "USD", err.Details["currency"])
}
