package payment_test

import (
	"context"
	"errors"
	"testing"

	"github.com/paybridge/gateway-reconciler/internal/domain/models"
	"github.com/paybridge/gateway-reconciler/internal/domain/ports"
	"github.com/paybridge/gateway-reconciler/internal/services/payment"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func zeroAmountRequest() payment.Request {
	req := baseRequest()
	req.Amount = decimal.Zero
	req.Options.ForceValidation = true
	return req
}

func isZeroAmount(r *ports.GatewayRequest) bool {
	return r.Amount.IsZero()
}

func isValidationAmount(r *ports.GatewayRequest) bool {
	return r.Amount.Equal(models.DefaultForceValidationAmount)
}

func TestAuthorize_ForceValidation_RetriesAndVoids(t *testing.T) {
	f := newFixture()
	f.expectPersistence()
	f.resolver.On("DuplicateCheckEnabled", mock.Anything, "tenant-1").Return(false)

	f.gateway.On("Authorize", mock.Anything, mock.MatchedBy(isZeroAmount)).
		Return(&ports.GatewayResponse{
			Status:    models.StatusError,
			ErrorCode: "234",
			Message:   "merchant configuration problem",
		}, nil).Once()
	f.gateway.On("Authorize", mock.Anything, mock.MatchedBy(isValidationAmount)).
		Return(&ports.GatewayResponse{
			Status:                  models.StatusProcessed,
			FirstPaymentReferenceID: "req-retry",
		}, nil).Once()
	f.gateway.On("Void", mock.Anything, mock.Anything).
		Return(&ports.GatewayResponse{Status: models.StatusProcessed}, nil).Once()

	f.rows.On("Find", mock.Anything, nil, mock.Anything).
		Return(&models.GatewayResponseRow{ID: "row-orig", TransactionID: "txn-1"}, nil)
	f.rows.On("RebindTransaction", mock.Anything, nil, mock.Anything, mock.Anything).Return(nil)

	resp, err := f.svc.Authorize(context.Background(), zeroAmountRequest())

	require.NoError(t, err)
	assert.Equal(t, models.StatusProcessed, resp.Status)
	assert.Equal(t, "req-retry", resp.FirstPaymentReferenceID)
	f.gateway.AssertExpectations(t)
	f.rows.AssertCalled(t, "RebindTransaction", mock.Anything, nil, mock.Anything, mock.Anything)
}

func TestAuthorize_ForceValidation_EachAttemptGetsItsOwnRecord(t *testing.T) {
	f := newFixture()
	f.resolver.On("DuplicateCheckEnabled", mock.Anything, "tenant-1").Return(false)

	var recordIDs []string
	f.txns.On("Create", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			recordIDs = append(recordIDs, args.Get(2).(*models.TransactionRecord).ID)
		}).Return(nil)
	var rowIDs []string
	f.rows.On("Create", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			rowIDs = append(rowIDs, args.Get(2).(*models.GatewayResponseRow).ID)
		}).Return(nil)
	f.rows.On("RecordOutcome", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.txns.On("MarkStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	f.gateway.On("Authorize", mock.Anything, mock.MatchedBy(isZeroAmount)).
		Return(&ports.GatewayResponse{
			Status:    models.StatusError,
			ErrorCode: "234",
		}, nil).Once()
	f.gateway.On("Authorize", mock.Anything, mock.MatchedBy(isValidationAmount)).
		Return(&ports.GatewayResponse{
			Status:                  models.StatusProcessed,
			FirstPaymentReferenceID: "req-retry",
		}, nil).Once()
	f.gateway.On("Void", mock.Anything, mock.Anything).
		Return(&ports.GatewayResponse{Status: models.StatusProcessed}, nil).Once()

	f.rows.On("Find", mock.Anything, nil, mock.Anything).
		Return(&models.GatewayResponseRow{ID: "row-orig", TransactionID: "txn-1"}, nil)
	f.rows.On("RebindTransaction", mock.Anything, nil, mock.Anything, mock.Anything).Return(nil)

	_, err := f.svc.Authorize(context.Background(), zeroAmountRequest())
	require.NoError(t, err)

	// Failed zero-amount auth, the non-zero retry and the void are three
	// attempts, each with its own record
	require.Len(t, recordIDs, 3)
	seen := make(map[string]bool, len(recordIDs))
	for _, id := range recordIDs {
		assert.False(t, seen[id], "transaction record id %q reused", id)
		seen[id] = true
	}
	assert.Equal(t, "txn-1", recordIDs[0])
	assert.NotEqual(t, "txn-1", recordIDs[1])

	// The retry's response row ends up bound to the caller-visible id
	require.Len(t, rowIDs, 3)
	f.rows.AssertCalled(t, "RebindTransaction", mock.Anything, nil, rowIDs[1], "txn-1")
}

func TestAuthorize_ForceValidation_RetryFailureReturnsOriginal(t *testing.T) {
	f := newFixture()
	f.txns.On("Create", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.rows.On("Create", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.rows.On("RecordOutcome", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.txns.On("MarkStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.resolver.On("DuplicateCheckEnabled", mock.Anything, "tenant-1").Return(false)

	f.gateway.On("Authorize", mock.Anything, mock.MatchedBy(isZeroAmount)).
		Return(&ports.GatewayResponse{
			Status:    models.StatusError,
			ErrorCode: "234",
		}, nil).Once()
	f.gateway.On("Authorize", mock.Anything, mock.MatchedBy(isValidationAmount)).
		Return(nil, errors.New("i/o timeout")).Once()

	resp, err := f.svc.Authorize(context.Background(), zeroAmountRequest())

	require.NoError(t, err)
	assert.Equal(t, "234", resp.ErrorCode)
	f.gateway.AssertNotCalled(t, "Void")
	f.rows.AssertNotCalled(t, "RebindTransaction")
}

func TestAuthorize_ForceValidation_FailedRetryIsNotVoided(t *testing.T) {
	f := newFixture()
	f.expectPersistence()
	f.resolver.On("DuplicateCheckEnabled", mock.Anything, "tenant-1").Return(false)

	f.gateway.On("Authorize", mock.Anything, mock.MatchedBy(isZeroAmount)).
		Return(&ports.GatewayResponse{
			Status:    models.StatusError,
			ErrorCode: "234",
		}, nil).Once()
	f.gateway.On("Authorize", mock.Anything, mock.MatchedBy(isValidationAmount)).
		Return(&ports.GatewayResponse{
			Status:    models.StatusError,
			ErrorCode: "231",
			Message:   "invalid account number",
		}, nil).Once()

	f.rows.On("Find", mock.Anything, nil, mock.Anything).
		Return(&models.GatewayResponseRow{ID: "row-orig", TransactionID: "txn-1"}, nil)
	f.rows.On("RebindTransaction", mock.Anything, nil, mock.Anything, mock.Anything).Return(nil)

	resp, err := f.svc.Authorize(context.Background(), zeroAmountRequest())

	// The declined retry is the caller's answer; there is nothing to void
	require.NoError(t, err)
	assert.Equal(t, "231", resp.ErrorCode)
	f.gateway.AssertNotCalled(t, "Void")
}

func TestAuthorize_ForceValidation_NotTriggeredForNonZeroAmount(t *testing.T) {
	f := newFixture()
	f.expectPersistence()
	f.resolver.On("DuplicateCheckEnabled", mock.Anything, "tenant-1").Return(false)

	f.gateway.On("Authorize", mock.Anything, mock.Anything).
		Return(&ports.GatewayResponse{
			Status:    models.StatusError,
			ErrorCode: "234",
		}, nil).Once()

	req := baseRequest()
	req.Options.ForceValidation = true

	resp, err := f.svc.Authorize(context.Background(), req)

	require.NoError(t, err)
	assert.Equal(t, "234", resp.ErrorCode)
	f.gateway.AssertNumberOfCalls(t, "Authorize", 1)
}

func TestAuthorize_ForceValidation_NotTriggeredWhenDisabled(t *testing.T) {
	f := newFixture()
	f.expectPersistence()
	f.resolver.On("DuplicateCheckEnabled", mock.Anything, "tenant-1").Return(false)

	f.gateway.On("Authorize", mock.Anything, mock.Anything).
		Return(&ports.GatewayResponse{
			Status:    models.StatusError,
			ErrorCode: "234",
		}, nil).Once()

	req := zeroAmountRequest()
	req.Options.ForceValidation = false

	resp, err := f.svc.Authorize(context.Background(), req)

	require.NoError(t, err)
	assert.Equal(t, "234", resp.ErrorCode)
	f.gateway.AssertNumberOfCalls(t, "Authorize", 1)
}
