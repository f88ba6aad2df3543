package reconciliation_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/paybridge/gateway-reconciler/internal/domain/models"
	"github.com/paybridge/gateway-reconciler/internal/domain/ports"
	"github.com/paybridge/gateway-reconciler/internal/services/reconciliation"
	"github.com/stretchr/testify/mock"
)

// MockTransactionRepository mocks the transaction repository
type MockTransactionRepository struct {
	mock.Mock
}

func (m *MockTransactionRepository) Create(ctx context.Context, tx ports.DBTX, record *models.TransactionRecord) error {
	args := m.Called(ctx, tx, record)
	return args.Error(0)
}

func (m *MockTransactionRepository) ListByPayment(ctx context.Context, db ports.DBTX, tenantID, paymentID string) ([]*models.TransactionRecord, error) {
	args := m.Called(ctx, db, tenantID, paymentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.TransactionRecord), args.Error(1)
}

func (m *MockTransactionRepository) FindRefundCandidate(ctx context.Context, db ports.DBTX, tenantID, paymentID string) (*models.TransactionRecord, error) {
	args := m.Called(ctx, db, tenantID, paymentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.TransactionRecord), args.Error(1)
}

func (m *MockTransactionRepository) MarkStatus(ctx context.Context, tx ports.DBTX, recordID string, status models.TransactionStatus) error {
	args := m.Called(ctx, tx, recordID, status)
	return args.Error(0)
}

func (m *MockTransactionRepository) ListPaymentsWithUndefined(ctx context.Context, db ports.DBTX, tenantID string, olderThan time.Time, limit int32) ([]string, error) {
	args := m.Called(ctx, db, tenantID, olderThan, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func newTestSweeper(txns *MockTransactionRepository, rows *MockResponseRowRepository, resolver *MockReportClientResolver, tenants []string) *reconciliation.Sweeper {
	janitor := reconciliation.NewJanitor(resolver, rows, nopLogger{})
	janitor.Now = fixedNow
	sweeper := reconciliation.NewSweeper(txns, janitor, tenants, time.Minute, 50, nopLogger{})
	sweeper.Now = fixedNow
	return sweeper
}

func TestSweeper_ScansEveryPaymentWithUndefinedRecords(t *testing.T) {
	txns := new(MockTransactionRepository)
	rows := new(MockResponseRowRepository)
	resolver := new(MockReportClientResolver)

	settled := &models.TransactionRecord{
		ID:     "txn-1",
		Type:   models.TypeAuthorize,
		Status: models.StatusProcessed,
	}
	txns.On("ListPaymentsWithUndefined", mock.Anything, nil, "tenant-1", mock.Anything, int32(50)).
		Return([]string{"payment-1", "payment-2"}, nil)
	txns.On("ListByPayment", mock.Anything, nil, "tenant-1", "payment-1").
		Return([]*models.TransactionRecord{settled}, nil).Once()
	txns.On("ListByPayment", mock.Anything, nil, "tenant-1", "payment-2").
		Return([]*models.TransactionRecord{settled}, nil).Once()

	sweeper := newTestSweeper(txns, rows, resolver, []string{"tenant-1"})
	sweeper.SweepOnce(context.Background())

	txns.AssertExpectations(t)
}

func TestSweeper_CutoffExcludesRecentRecords(t *testing.T) {
	txns := new(MockTransactionRepository)
	rows := new(MockResponseRowRepository)
	resolver := new(MockReportClientResolver)

	expectedCutoff := fixedNow().Add(-models.DefaultJanitorDelayThreshold)
	txns.On("ListPaymentsWithUndefined", mock.Anything, nil, "tenant-1", expectedCutoff, int32(50)).
		Return([]string{}, nil)

	sweeper := newTestSweeper(txns, rows, resolver, []string{"tenant-1"})
	sweeper.SweepOnce(context.Background())

	txns.AssertExpectations(t)
	txns.AssertNotCalled(t, "ListByPayment")
}

func TestSweeper_ListingErrorSkipsTenant(t *testing.T) {
	txns := new(MockTransactionRepository)
	rows := new(MockResponseRowRepository)
	resolver := new(MockReportClientResolver)

	txns.On("ListPaymentsWithUndefined", mock.Anything, nil, "tenant-1", mock.Anything, int32(50)).
		Return(nil, errors.New("connection refused"))
	txns.On("ListPaymentsWithUndefined", mock.Anything, nil, "tenant-2", mock.Anything, int32(50)).
		Return([]string{}, nil)

	sweeper := newTestSweeper(txns, rows, resolver, []string{"tenant-1", "tenant-2"})
	sweeper.SweepOnce(context.Background())

	// The second tenant is still swept after the first one fails
	txns.AssertExpectations(t)
}
