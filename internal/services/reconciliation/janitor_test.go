package reconciliation_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/paybridge/gateway-reconciler/internal/domain/models"
	"github.com/paybridge/gateway-reconciler/internal/domain/ports"
	"github.com/paybridge/gateway-reconciler/internal/services/reconciliation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockResponseRowRepository mocks the response row repository
type MockResponseRowRepository struct {
	mock.Mock
}

func (m *MockResponseRowRepository) Create(ctx context.Context, tx ports.DBTX, row *models.GatewayResponseRow) error {
	args := m.Called(ctx, tx, row)
	return args.Error(0)
}

func (m *MockResponseRowRepository) Find(ctx context.Context, db ports.DBTX, id string) (*models.GatewayResponseRow, error) {
	args := m.Called(ctx, db, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.GatewayResponseRow), args.Error(1)
}

func (m *MockResponseRowRepository) RecordOutcome(ctx context.Context, tx ports.DBTX, id string, resp *ports.GatewayResponse) error {
	args := m.Called(ctx, tx, id, resp)
	return args.Error(0)
}

func (m *MockResponseRowRepository) Cancel(ctx context.Context, tx ports.DBTX, id string) error {
	args := m.Called(ctx, tx, id)
	return args.Error(0)
}

func (m *MockResponseRowRepository) UpdateFromReport(ctx context.Context, tx ports.DBTX, id string, report *models.Report) error {
	args := m.Called(ctx, tx, id, report)
	return args.Error(0)
}

func (m *MockResponseRowRepository) RebindTransaction(ctx context.Context, tx ports.DBTX, id string, newTransactionID string) error {
	args := m.Called(ctx, tx, id, newTransactionID)
	return args.Error(0)
}

func fixedNow() time.Time {
	return time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
}

func undefinedRecord(id string, age time.Duration) *models.TransactionRecord {
	return &models.TransactionRecord{
		ID:        id,
		PaymentID: "payment-1",
		TenantID:  "tenant-1",
		Type:      models.TypeAuthorize,
		Status:    models.StatusUndefined,
		Properties: []models.Property{
			{Key: models.PropertyResponseID, Value: "row-" + id},
		},
		CreatedAt: fixedNow().Add(-age),
	}
}

func newTestJanitor(resolver ports.ReportClientResolver, rows ports.ResponseRowRepository) *reconciliation.Janitor {
	j := reconciliation.NewJanitor(resolver, rows, nopLogger{})
	j.Now = fixedNow
	return j
}

func TestJanitor_YoungRecordsAreLeftAlone(t *testing.T) {
	resolver := new(MockReportClientResolver)
	rows := new(MockResponseRowRepository)
	janitor := newTestJanitor(resolver, rows)

	records := []*models.TransactionRecord{undefinedRecord("txn-1", 2*time.Minute)}

	stale := janitor.Scan(context.Background(), "tenant-1", records, models.CallOptions{})

	assert.False(t, stale)
	resolver.AssertNotCalled(t, "ReportClientFor")
	rows.AssertNotCalled(t, "Cancel")
	rows.AssertNotCalled(t, "UpdateFromReport")
}

func TestJanitor_SettledRecordsAreSkipped(t *testing.T) {
	resolver := new(MockReportClientResolver)
	rows := new(MockResponseRowRepository)
	janitor := newTestJanitor(resolver, rows)

	rec := undefinedRecord("txn-1", 2*time.Hour)
	rec.Status = models.StatusProcessed

	stale := janitor.Scan(context.Background(), "tenant-1", []*models.TransactionRecord{rec}, models.CallOptions{})

	assert.False(t, stale)
	resolver.AssertNotCalled(t, "ReportClientFor")
}

func TestJanitor_MissingResponseRowIDIsSkipped(t *testing.T) {
	resolver := new(MockReportClientResolver)
	rows := new(MockResponseRowRepository)
	janitor := newTestJanitor(resolver, rows)

	rec := undefinedRecord("txn-1", 2*time.Hour)
	rec.Properties = nil

	stale := janitor.Scan(context.Background(), "tenant-1", []*models.TransactionRecord{rec}, models.CallOptions{})

	assert.False(t, stale)
	resolver.AssertNotCalled(t, "ReportClientFor")
}

func TestJanitor_ReportUnavailableDefersEvenPastCancelThreshold(t *testing.T) {
	client := new(MockReportClient)
	client.On("SingleTransactionReport", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("report API down"))

	resolver := new(MockReportClientResolver)
	resolver.On("ReportClientFor", mock.Anything, "tenant-1").Return(client, nil)

	rows := new(MockResponseRowRepository)
	janitor := newTestJanitor(resolver, rows)

	records := []*models.TransactionRecord{undefinedRecord("txn-1", 48*time.Hour)}

	stale := janitor.Scan(context.Background(), "tenant-1", records, models.CallOptions{})

	assert.False(t, stale)
	rows.AssertNotCalled(t, "Cancel")
	rows.AssertNotCalled(t, "UpdateFromReport")
}

func TestJanitor_UnconfiguredTenantDefers(t *testing.T) {
	resolver := new(MockReportClientResolver)
	resolver.On("ReportClientFor", mock.Anything, "tenant-1").Return(nil, nil)

	rows := new(MockResponseRowRepository)
	janitor := newTestJanitor(resolver, rows)

	records := []*models.TransactionRecord{undefinedRecord("txn-1", 48*time.Hour)}

	stale := janitor.Scan(context.Background(), "tenant-1", records, models.CallOptions{})

	assert.False(t, stale)
	rows.AssertNotCalled(t, "Cancel")
}

func TestJanitor_EmptyReportBeforeCancelThresholdDefers(t *testing.T) {
	client := new(MockReportClient)
	client.On("SingleTransactionReport", mock.Anything, mock.Anything, mock.Anything).
		Return(&models.Report{}, nil)

	resolver := new(MockReportClientResolver)
	resolver.On("ReportClientFor", mock.Anything, "tenant-1").Return(client, nil)

	rows := new(MockResponseRowRepository)
	janitor := newTestJanitor(resolver, rows)

	// Past the delay threshold, short of the cancel threshold
	records := []*models.TransactionRecord{undefinedRecord("txn-1", 30*time.Minute)}

	stale := janitor.Scan(context.Background(), "tenant-1", records, models.CallOptions{})

	assert.False(t, stale)
	rows.AssertNotCalled(t, "Find")
	rows.AssertNotCalled(t, "Cancel")
	rows.AssertNotCalled(t, "UpdateFromReport")
}

func TestJanitor_EmptyReportPastCancelThresholdCancels(t *testing.T) {
	client := new(MockReportClient)
	client.On("SingleTransactionReport", mock.Anything, mock.Anything, mock.Anything).
		Return(&models.Report{}, nil)

	resolver := new(MockReportClientResolver)
	resolver.On("ReportClientFor", mock.Anything, "tenant-1").Return(client, nil)

	rows := new(MockResponseRowRepository)
	rows.On("Find", mock.Anything, nil, "row-txn-1").
		Return(&models.GatewayResponseRow{ID: "row-txn-1", TransactionID: "txn-1"}, nil)
	rows.On("Cancel", mock.Anything, nil, "row-txn-1").Return(nil)

	janitor := newTestJanitor(resolver, rows)

	records := []*models.TransactionRecord{undefinedRecord("txn-1", 2*time.Hour)}

	stale := janitor.Scan(context.Background(), "tenant-1", records, models.CallOptions{})

	assert.True(t, stale)
	rows.AssertCalled(t, "Cancel", mock.Anything, nil, "row-txn-1")
	rows.AssertNotCalled(t, "UpdateFromReport")
}

func TestJanitor_MatchingReportPastCancelThresholdStillUpdates(t *testing.T) {
	client := new(MockReportClient)
	client.On("SingleTransactionReport", mock.Anything, mock.Anything, mock.Anything).
		Return(&models.Report{RequestID: "req-1", Success: true, RowCount: 1}, nil)

	resolver := new(MockReportClientResolver)
	resolver.On("ReportClientFor", mock.Anything, "tenant-1").Return(client, nil)

	rows := new(MockResponseRowRepository)
	rows.On("Find", mock.Anything, nil, "row-txn-1").
		Return(&models.GatewayResponseRow{ID: "row-txn-1", TransactionID: "txn-1"}, nil)
	rows.On("UpdateFromReport", mock.Anything, nil, "row-txn-1", mock.Anything).Return(nil)

	janitor := newTestJanitor(resolver, rows)

	// Way past the cancel threshold, but the report matches: repair, not cancel
	records := []*models.TransactionRecord{undefinedRecord("txn-1", 48*time.Hour)}

	stale := janitor.Scan(context.Background(), "tenant-1", records, models.CallOptions{})

	assert.True(t, stale)
	rows.AssertNotCalled(t, "Cancel")
	rows.AssertCalled(t, "UpdateFromReport", mock.Anything, nil, "row-txn-1", mock.MatchedBy(func(r *models.Report) bool {
		return r.RequestID == "req-1" && r.Success
	}))
}

func TestJanitor_MatchingReportRepairsRecord(t *testing.T) {
	client := new(MockReportClient)
	client.On("SingleTransactionReport", mock.Anything, mock.Anything, mock.Anything).
		Return(&models.Report{RequestID: "req-1", Success: false, RowCount: 1}, nil)

	resolver := new(MockReportClientResolver)
	resolver.On("ReportClientFor", mock.Anything, "tenant-1").Return(client, nil)

	rows := new(MockResponseRowRepository)
	rows.On("Find", mock.Anything, nil, "row-txn-1").
		Return(&models.GatewayResponseRow{ID: "row-txn-1", TransactionID: "txn-1"}, nil)
	rows.On("UpdateFromReport", mock.Anything, nil, "row-txn-1", mock.Anything).Return(nil)

	janitor := newTestJanitor(resolver, rows)

	records := []*models.TransactionRecord{undefinedRecord("txn-1", 30*time.Minute)}

	stale := janitor.Scan(context.Background(), "tenant-1", records, models.CallOptions{})

	assert.True(t, stale)
	rows.AssertExpectations(t)
}

func TestJanitor_ReportClaimedBySiblingIsNotAMatch(t *testing.T) {
	client := new(MockReportClient)
	client.On("SingleTransactionReport", mock.Anything, mock.Anything, mock.Anything).
		Return(&models.Report{RequestID: "req-sibling", Success: true, RowCount: 1}, nil)

	resolver := new(MockReportClientResolver)
	resolver.On("ReportClientFor", mock.Anything, "tenant-1").Return(client, nil)

	rows := new(MockResponseRowRepository)
	rows.On("Find", mock.Anything, nil, "row-txn-2").
		Return(&models.GatewayResponseRow{ID: "row-txn-2", TransactionID: "txn-2"}, nil)
	rows.On("Cancel", mock.Anything, nil, "row-txn-2").Return(nil)

	janitor := newTestJanitor(resolver, rows)

	sibling := undefinedRecord("txn-1", 3*time.Hour)
	sibling.Status = models.StatusProcessed
	sibling.FirstPaymentReferenceID = "req-sibling"

	records := []*models.TransactionRecord{
		sibling,
		undefinedRecord("txn-2", 2*time.Hour),
	}

	stale := janitor.Scan(context.Background(), "tenant-1", records, models.CallOptions{})

	assert.True(t, stale)
	rows.AssertCalled(t, "Cancel", mock.Anything, nil, "row-txn-2")
	rows.AssertNotCalled(t, "UpdateFromReport")
}

func TestJanitor_ReportWithoutRequestIDIsNotAMatch(t *testing.T) {
	client := new(MockReportClient)
	client.On("SingleTransactionReport", mock.Anything, mock.Anything, mock.Anything).
		Return(&models.Report{RequestID: "", Success: true, RowCount: 1}, nil)

	resolver := new(MockReportClientResolver)
	resolver.On("ReportClientFor", mock.Anything, "tenant-1").Return(client, nil)

	rows := new(MockResponseRowRepository)
	rows.On("Find", mock.Anything, nil, "row-txn-1").
		Return(&models.GatewayResponseRow{ID: "row-txn-1", TransactionID: "txn-1"}, nil)
	rows.On("Cancel", mock.Anything, nil, "row-txn-1").Return(nil)

	janitor := newTestJanitor(resolver, rows)

	records := []*models.TransactionRecord{undefinedRecord("txn-1", 2*time.Hour)}

	stale := janitor.Scan(context.Background(), "tenant-1", records, models.CallOptions{})

	assert.True(t, stale)
	rows.AssertCalled(t, "Cancel", mock.Anything, nil, "row-txn-1")
}

func TestJanitor_ExplicitOrderIDOverridesDerivation(t *testing.T) {
	client := new(MockReportClient)
	client.On("SingleTransactionReport", mock.Anything, "order-42", mock.Anything).
		Return(&models.Report{RequestID: "req-1", Success: true, RowCount: 1}, nil)

	resolver := new(MockReportClientResolver)
	resolver.On("ReportClientFor", mock.Anything, "tenant-1").Return(client, nil)

	rows := new(MockResponseRowRepository)
	rows.On("Find", mock.Anything, nil, "row-txn-1").
		Return(&models.GatewayResponseRow{ID: "row-txn-1", TransactionID: "txn-1"}, nil)
	rows.On("UpdateFromReport", mock.Anything, nil, "row-txn-1", mock.Anything).Return(nil)

	janitor := newTestJanitor(resolver, rows)

	records := []*models.TransactionRecord{undefinedRecord("txn-1", 30*time.Minute)}

	stale := janitor.Scan(context.Background(), "tenant-1", records, models.CallOptions{OrderID: "order-42"})

	require.True(t, stale)
	client.AssertCalled(t, "SingleTransactionReport", mock.Anything, "order-42", mock.Anything)
}

func TestJanitor_SecondScanAfterRepairIsANoOp(t *testing.T) {
	client := new(MockReportClient)
	client.On("SingleTransactionReport", mock.Anything, mock.Anything, mock.Anything).
		Return(&models.Report{RequestID: "req-1", Success: true, RowCount: 1}, nil)

	resolver := new(MockReportClientResolver)
	resolver.On("ReportClientFor", mock.Anything, "tenant-1").Return(client, nil)

	rows := new(MockResponseRowRepository)
	rows.On("Find", mock.Anything, nil, "row-txn-1").
		Return(&models.GatewayResponseRow{ID: "row-txn-1", TransactionID: "txn-1"}, nil)
	rows.On("UpdateFromReport", mock.Anything, nil, "row-txn-1", mock.Anything).Return(nil)

	janitor := newTestJanitor(resolver, rows)

	rec := undefinedRecord("txn-1", 30*time.Minute)
	require.True(t, janitor.Scan(context.Background(), "tenant-1", []*models.TransactionRecord{rec}, models.CallOptions{}))

	// A re-read after the first scan observes the repaired state
	rec.Status = models.StatusProcessed
	rec.FirstPaymentReferenceID = "req-1"

	stale := janitor.Scan(context.Background(), "tenant-1", []*models.TransactionRecord{rec}, models.CallOptions{})
	assert.False(t, stale)
	rows.AssertNumberOfCalls(t, "UpdateFromReport", 1)
}
